// Package quarantine 把无法合并的音视频分片原样复制到备份目录，便于人工恢复。
package quarantine

import (
	"fmt"
	"path/filepath"

	"github.com/John-Robertt/BiliMerge/internal/domain"
	"github.com/John-Robertt/BiliMerge/internal/infra/fsx"
)

// CopyError 表示备份过程中的某一步失败（上层映射为 fallback_copy_failed）。
type CopyError struct {
	Src string
	Dst string
	Err error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("备份 %q -> %q 失败：%v", e.Src, e.Dst, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// Dir 返回 <root>/<workID>/<episodeDir>。
func Dir(root, workID, episodeDir string) string {
	return filepath.Join(root, workID, episodeDir)
}

// Relocate 把 pair 中的两个分片复制为 <root>/<workID>/<episodeDir>/{video,audio}.m4s。
//
// 档位信息不保留；目录重复创建是幂等的；源文件只读，不会被移动或删除。
// 返回备份目录与复制的总字节数。
func Relocate(root, workID, episodeDir string, pair domain.FragmentPair) (string, int64, error) {
	dst := Dir(root, workID, episodeDir)

	var total int64
	for _, f := range []struct{ src, name string }{
		{pair.Video, domain.VideoFragmentName},
		{pair.Audio, domain.AudioFragmentName},
	} {
		n, err := fsx.CopyFileAtomic(f.src, dst, f.name)
		if err != nil {
			return dst, total, &CopyError{Src: f.src, Dst: filepath.Join(dst, f.name), Err: err}
		}
		total += n
	}
	return dst, total, nil
}
