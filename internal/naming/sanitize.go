package naming

import (
	"strings"

	"github.com/John-Robertt/BiliMerge/internal/domain"
)

// forbidden 是会被直接删除（而不是替换）的字符。
var forbidden = strings.NewReplacer(
	"/", "",
	"\\", "",
	"?", "",
	"<", "",
	">", "",
	"*", "",
	":", "",
	"|", "",
)

// Sanitize 删除 / \ ? < > * : | 并返回可作为单个路径段的名称；结果为空时返回占位名。
//
// 注意：删除而非替换意味着不同标题可能得到同一名称（例如 "a/b" 与 "ab"），
// 由 CollisionTracker 负责发现并提示，这里不改变命名策略。
func Sanitize(s string) string {
	out := forbidden.Replace(s)
	if out == "" {
		return domain.PlaceholderTitle
	}
	return out
}
