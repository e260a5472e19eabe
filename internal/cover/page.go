package cover

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultPageBase 是公开视频页的地址前缀（后接 BV 号）。
const DefaultPageBase = "https://www.bilibili.com/video/"

// ErrNoCoverOnPage 表示页面里找不到封面地址。
var ErrNoCoverOnPage = errors.New("视频页中未找到封面地址")

// ParsePageCover 从视频页 HTML 中取封面地址：优先 og:image，其次 itemprop=image。
//
// 页面给出的地址通常是 "//i0.hdslb.com/...jpg@100w_100h_1c.webp" 形式：
// 去掉 "@" 之后的缩放参数，并补全 https 协议。
func ParsePageCover(html []byte) (string, error) {
	if len(html) == 0 {
		return "", errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}

	for _, sel := range []string{
		`meta[property="og:image"]`,
		`meta[itemprop="image"]`,
		`link[itemprop="image"]`,
	} {
		s := doc.Find(sel).First()
		v, ok := s.Attr("content")
		if !ok {
			v, _ = s.Attr("href")
		}
		if u := normalizeCoverURL(v); u != "" {
			return u, nil
		}
	}
	return "", ErrNoCoverOnPage
}

func normalizeCoverURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if i := strings.Index(u, "@"); i > 0 {
		u = u[:i]
	}
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return ""
	}
	return u
}

// LookupFromPage 抓取 BV 号对应的视频页并解析封面地址（用于 entry.json 没有 cover 的情况）。
func (f *Fetcher) LookupFromPage(ctx context.Context, bvid string) (string, error) {
	if f == nil || f.client == nil {
		return "", errors.New("cover fetcher 未初始化")
	}
	bvid = strings.TrimSpace(bvid)
	if bvid == "" {
		return "", errors.New("bvid 为空")
	}

	pageURL := f.pageBase + bvid
	resp, err := f.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		return "", &HTTPStatusError{URL: pageURL, StatusCode: resp.StatusCode()}
	}
	return ParsePageCover(resp.Bytes())
}
