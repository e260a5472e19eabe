// Package entry 读取分集缓存目录中的 entry.json。
//
// entry.json 由缓存客户端生成，字段类型并不稳定（cid 可能是字符串或数字，
// 时间戳偶尔是字符串）。这里一次性解码成 domain.CacheEntry，并补齐所有默认值；
// 下游只消费 CacheEntry，不再读取原始 JSON。
package entry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/John-Robertt/BiliMerge/internal/domain"
)

// FileName 是分集目录下元数据文件的固定名称。
const FileName = "entry.json"

// ParseError 表示元数据不可读或不是合法 JSON（MetadataParseFailure）。
// 上层据此跳过该分集并继续处理后续分集。
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("解析 %q 失败：%v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

type rawEntry struct {
	BVID            looseString     `json:"bvid"`
	Title           looseString     `json:"title"`
	OwnerName       looseString     `json:"owner_name"`
	Cover           looseString     `json:"cover"`
	TimeCreateStamp json.RawMessage `json:"time_create_stamp"`
	PageData        *rawPageData    `json:"page_data"`
}

type rawPageData struct {
	Part looseString     `json:"part"`
	CID  json.RawMessage `json:"cid"`
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Read 读取并解析 path 指向的 entry.json。
// 返回的 CacheEntry 一定已补齐默认值；失败时返回 *ParseError。
func Read(path string) (domain.CacheEntry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.CacheEntry{}, &ParseError{Path: path, Err: err}
	}
	e, err := Decode(b)
	if err != nil {
		return domain.CacheEntry{}, &ParseError{Path: path, Err: err}
	}
	return e, nil
}

// Decode 解析 entry.json 的字节内容（Read 的纯函数部分，便于测试）。
func Decode(b []byte) (domain.CacheEntry, error) {
	b = bytes.TrimPrefix(b, utf8BOM)

	var raw rawEntry
	if err := json.Unmarshal(b, &raw); err != nil {
		return domain.CacheEntry{}, err
	}

	var page rawPageData
	if raw.PageData != nil {
		page = *raw.PageData
	}

	e := domain.CacheEntry{
		BVID:      raw.BVID.Value,
		Title:     raw.Title.Or(domain.PlaceholderTitle),
		OwnerName: raw.OwnerName.Or(domain.PlaceholderOwner),
		CoverURL:  strings.ReplaceAll(raw.Cover.Value, `\/`, "/"),
		CID:       rawText(page.CID),
	}

	// 分集名回退链：part -> title（原始值，不含占位）-> cid_<cid> -> 占位。
	switch {
	case page.Part.Value != "":
		e.PartTitle = page.Part.Value
	case raw.Title.Value != "":
		e.PartTitle = raw.Title.Value
	case e.CID != "":
		e.PartTitle = "cid_" + e.CID
	default:
		e.PartTitle = domain.PlaceholderTitle
	}

	e.CreatedAtMillis, e.CreatedAtMalformed = parseMillis(raw.TimeCreateStamp)
	return e, nil
}

// looseString 接受 JSON 字符串、数字或 null；Set 表示字段存在且非 null。
type looseString struct {
	Value string
	Set   bool
}

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = looseString{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString{Value: v, Set: true}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("期望字符串或数字，实际 %s", string(b))
	}
	*s = looseString{Value: n.String(), Set: true}
	return nil
}

// Or 在字段缺失（或为 null）时返回 def。字段存在但为空串时保持空串。
func (s looseString) Or(def string) string {
	if !s.Set {
		return def
	}
	return s.Value
}

// rawText 把 cid 这类“字符串或数字”的字段统一为文本；缺失/null/其他类型返回空串。
func rawText(raw json.RawMessage) string {
	var s looseString
	if len(raw) == 0 {
		return ""
	}
	if err := s.UnmarshalJSON(raw); err != nil {
		return ""
	}
	return strings.TrimSpace(s.Value)
}

// parseMillis 解析 time_create_stamp。
//
//   - 缺失或 null：0（epoch），不算异常
//   - 整数或有限浮点数：截断为 int64
//   - 其他（字符串、布尔、对象……）：0，并标记 malformed
func parseMillis(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	s := string(raw)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		if f > math.MaxInt64 || f < math.MinInt64 {
			return 0, true
		}
		return int64(f), false
	}
	return 0, true
}
