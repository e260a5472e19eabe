package scan

import (
	"os"
	"path/filepath"

	"github.com/John-Robertt/BiliMerge/internal/domain"
	"github.com/John-Robertt/BiliMerge/internal/entry"
)

// Unreadable 记录一个无法列出内容的作品目录（不影响其它目录的扫描）。
type Unreadable struct {
	WorkID string
	Path   string
	Err    error
}

// Result 是一次扫描的结果。
type Result struct {
	Episodes   []domain.EpisodeDir
	Unreadable []Unreadable
}

// ScanEpisodes 枚举 <inputRoot>/<work-id>/<episode-dir>/entry.json。
//
// 规则：
// - 只看两层目录；非目录项直接忽略
// - 分集目录下没有 entry.json（或 entry.json 是目录）时跳过，不算错误
// - 输出按 work-id、episode-dir 字典序排列（os.ReadDir 已排序）
// - inputRoot 本身不可读时返回 error；单个作品目录不可读记入 Unreadable 后继续
//
// 注意：扫描阶段只做 stat，不读文件内容。
func ScanEpisodes(inputRoot string) (Result, error) {
	root, err := filepath.Abs(inputRoot)
	if err != nil {
		return Result{}, err
	}

	works, err := os.ReadDir(root)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, w := range works {
		if !isDir(root, w) {
			continue
		}
		workPath := filepath.Join(root, w.Name())

		eps, err := os.ReadDir(workPath)
		if err != nil {
			res.Unreadable = append(res.Unreadable, Unreadable{WorkID: w.Name(), Path: workPath, Err: err})
			continue
		}

		for _, ep := range eps {
			if !isDir(workPath, ep) {
				continue
			}
			epPath := filepath.Join(workPath, ep.Name())
			meta := filepath.Join(epPath, entry.FileName)
			fi, err := os.Stat(meta)
			if err != nil || fi.IsDir() {
				continue
			}
			res.Episodes = append(res.Episodes, domain.EpisodeDir{
				WorkID:       w.Name(),
				Name:         ep.Name(),
				Path:         epPath,
				MetadataPath: meta,
			})
		}
	}
	return res, nil
}

// isDir 对符号链接做一次 Stat，允许指向目录的链接。
func isDir(parent string, d os.DirEntry) bool {
	if d.IsDir() {
		return true
	}
	if d.Type()&os.ModeSymlink == 0 {
		return false
	}
	fi, err := os.Stat(filepath.Join(parent, d.Name()))
	return err == nil && fi.IsDir()
}
