package domain

import (
	"regexp"
	"strings"
)

// BVID 是作品（稿件）的公开标识，形如 BV1xx411c7mD。
//
// 缓存中的 bvid 允许为空或格式异常；只有在需要访问站点（例如封面页回退）时才要求合法。
type BVID string

var bvidRE = regexp.MustCompile(`^BV1[0-9A-Za-z]{9}$`)

// ParseBVID 校验 bvid 字符串。大小写敏感：BV 前缀必须大写。
func ParseBVID(s string) (BVID, bool) {
	s = strings.TrimSpace(s)
	if !bvidRE.MatchString(s) {
		return "", false
	}
	return BVID(s), true
}
