// Package cover 下载视频封面并写到输出目录。
//
// 约束：
// - 单次 GET，不重试；非 200 或网络错误直接返回给上层（只记为警告）
// - 写入采用临时文件 + rename，失败不会留下半截图片
package cover

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/John-Robertt/BiliMerge/internal/infra/fsx"
	"github.com/John-Robertt/BiliMerge/internal/infra/httpx"
	"github.com/John-Robertt/BiliMerge/internal/infra/imgx"
)

const (
	DefaultTimeout = 10 * time.Second

	// 单张封面的大小上限，防止异常响应占满内存。
	maxCoverBytes = 32 << 20

	referer = "https://www.bilibili.com/"
)

// HTTPStatusError 表示服务器返回了非 200 的状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Options 是 Fetcher 的构造参数。
type Options struct {
	Timeout  time.Duration // <=0 使用 DefaultTimeout
	ProxyURL string        // 为空表示直连
	PageBase string        // 视频页地址前缀，为空使用 https://www.bilibili.com/video/
}

// Fetcher 持有一个 resty client，供整次运行复用。
type Fetcher struct {
	client   *resty.Client
	pageBase string
}

// Result 描述一次成功保存的封面。
type Result struct {
	Path      string
	Bytes     int
	Converted bool // PNG 被转成了 JPEG
}

func New(opts Options) (*Fetcher, error) {
	tr, err := httpx.NewTransport(opts.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("代理配置无效：%w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	pageBase := strings.TrimSpace(opts.PageBase)
	if pageBase == "" {
		pageBase = DefaultPageBase
	}

	c := resty.New()
	c.SetTransport(tr)
	c.SetTimeout(timeout)
	c.SetRetryCount(0)
	c.SetResponseBodyLimit(maxCoverBytes)
	c.SetHeader("Referer", referer)

	return &Fetcher{client: c, pageBase: pageBase}, nil
}

// Close 释放底层连接。
func (f *Fetcher) Close() error {
	if f == nil || f.client == nil {
		return nil
	}
	return f.client.Close()
}

// Download 对 u 发起一次 GET，仅 200 视为成功。
func (f *Fetcher) Download(ctx context.Context, u string) ([]byte, error) {
	if f == nil || f.client == nil {
		return nil, errors.New("cover fetcher 未初始化")
	}
	u = strings.TrimSpace(u)
	if u == "" {
		return nil, errors.New("封面地址为空")
	}

	resp, err := f.client.R().SetContext(ctx).Get(u)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode()}
	}
	b := resp.Bytes()
	if len(b) == 0 {
		return nil, errors.New("封面响应为空")
	}
	return b, nil
}

// Save 下载 u 并写入 dst；PNG 会被转成 JPEG 以匹配 .jpg 扩展名，其它内容原样写入。
func (f *Fetcher) Save(ctx context.Context, u, dst string) (Result, error) {
	b, err := f.Download(ctx, u)
	if err != nil {
		return Result{}, err
	}
	out, converted, err := imgx.NormalizeCoverJPEG(b)
	if err != nil {
		return Result{}, fmt.Errorf("封面转码失败：%w", err)
	}
	if err := fsx.WriteFileAtomicReplace(filepath.Dir(dst), filepath.Base(dst), out); err != nil {
		return Result{}, err
	}
	return Result{Path: dst, Bytes: len(out), Converted: converted}, nil
}
