package domain

// OutputPaths 是由元数据派生的输出位置（不单独持久化）。
//
//	<output-root>/<OwnerName>/<FolderName>/<BaseName>.{mp4,jpg,nfo}
type OutputPaths struct {
	DateStamp  string // YYYYMMDD，无法解析时为 00000000
	BaseName   string // sanitize(DateStamp + "_" + PartTitle)
	FolderName string // sanitize(PartTitle)

	Dir   string
	Video string
	Cover string
	NFO   string
}
