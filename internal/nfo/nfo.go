package nfo

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/John-Robertt/BiliMerge/internal/domain"
)

const videoPageBase = "https://www.bilibili.com/video/"

type episodeDetails struct {
	XMLName xml.Name `xml:"episodedetails"`

	Title     string `xml:"title"`
	ShowTitle string `xml:"showtitle,omitempty"`
	Studio    string `xml:"studio,omitempty"`

	Aired     string `xml:"aired,omitempty"`
	Premiered string `xml:"premiered,omitempty"`
	Year      int    `xml:"year,omitempty"`

	UniqueIDs []uniqueID `xml:"uniqueid,omitempty"`

	Thumb   string `xml:"thumb,omitempty"`
	Website string `xml:"website,omitempty"`
}

type uniqueID struct {
	Type    string `xml:"type,attr"`
	Default bool   `xml:"default,attr,omitempty"`
	Value   string `xml:",chardata"`
}

// Encode 把单个分集转成 Kodi/Jellyfin/Emby 可读取的 episodedetails NFO（XML）。
//
// 规则：
// - title 取分集标题（去空白），为空回退到占位名
// - aired/year 仅在日期有效（不是 00000000）时输出
// - thumb 指向同目录下的封面文件名；coverName 为空则不输出
func Encode(e domain.CacheEntry, p domain.OutputPaths, coverName string) ([]byte, error) {
	title := strings.TrimSpace(e.PartTitle)
	if title == "" {
		title = domain.PlaceholderTitle
	}

	m := episodeDetails{
		Title:     title,
		ShowTitle: strings.TrimSpace(e.Title),
		Studio:    strings.TrimSpace(e.OwnerName),
		Thumb:     strings.TrimSpace(coverName),
	}

	if aired, year, ok := isoDate(p.DateStamp); ok {
		m.Aired = aired
		m.Premiered = aired
		m.Year = year
	}

	if bvid := strings.TrimSpace(e.BVID); bvid != "" {
		m.UniqueIDs = append(m.UniqueIDs, uniqueID{Type: "bilibili", Default: true, Value: bvid})
		if _, ok := domain.ParseBVID(bvid); ok {
			m.Website = videoPageBase + bvid
		}
	}
	if cid := strings.TrimSpace(e.CID); cid != "" {
		m.UniqueIDs = append(m.UniqueIDs, uniqueID{Type: "cid", Default: len(m.UniqueIDs) == 0, Value: cid})
	}

	b, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	const header = `<?xml version="1.0" encoding="UTF-8" standalone="yes" ?>` + "\n"
	return append([]byte(header), b...), nil
}

// isoDate 把 YYYYMMDD 转成 YYYY-MM-DD；占位日期或格式不对时返回 ok=false。
func isoDate(stamp string) (string, int, bool) {
	if len(stamp) != 8 || stamp == "00000000" {
		return "", 0, false
	}
	year, err := strconv.Atoi(stamp[:4])
	if err != nil || year <= 0 {
		return "", 0, false
	}
	for _, c := range stamp {
		if c < '0' || c > '9' {
			return "", 0, false
		}
	}
	return stamp[:4] + "-" + stamp[4:6] + "-" + stamp[6:], year, true
}
