package domain

const (
	// PlaceholderTitle 是标题/分集名缺失或清洗后为空时的固定占位。
	PlaceholderTitle = "未命名视频"
	// PlaceholderOwner 是 UP 主名缺失时的固定占位。
	PlaceholderOwner = "未知UP主"
)

// CacheEntry 是一个分集缓存目录中 entry.json 的结构化结果。
//
// 约束：
// - 每个字段都有确定的默认值；元数据缺失只会让派生名称“退化”，不会中止该分集
// - 只在 Entry Reader 边界解码一次，下游不再回头读取原始 JSON
type CacheEntry struct {
	BVID      string
	Title     string
	OwnerName string
	PartTitle string
	CoverURL  string
	CID       string

	// CreatedAtMillis 是 Unix 毫秒时间戳；缺失或格式异常时为 0。
	CreatedAtMillis int64
	// CreatedAtMalformed 表示字段存在但不是整数（对应“时间戳错误”，日期退化为 00000000）。
	CreatedAtMalformed bool
}
