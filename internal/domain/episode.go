package domain

// EpisodeDir 描述扫描得到的一个分集缓存目录（只做 stat，不读内容）。
//
// 不变量：
// - Path 必须是 clean + absolute
// - MetadataPath = Path/entry.json，且扫描时已确认存在
type EpisodeDir struct {
	WorkID       string // <input>/<work-id>
	Name         string // <episode-dir>
	Path         string
	MetadataPath string
}

// Key 返回 "<work-id>/<episode-dir>"，用于日志与报告定位。
func (e EpisodeDir) Key() string {
	return e.WorkID + "/" + e.Name
}
