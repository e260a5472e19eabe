package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// 通过可替换的函数指针，让测试能稳定模拟 EXDEV / rename 失败。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径类型冲突（例如期望目录但实际是文件）。
// 上层可把它映射为 error_code=output_path_failed。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename 失败。
// 本包只在同目录内做 temp -> final 的 rename，出现 EXDEV 说明目录被挂载点替换，直接失败。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘重命名失败（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice 判断 err 是否为跨盘（EXDEV）错误。
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
// 目标已存在时按 os.Rename 语义覆盖。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// EnsureDir 幂等地创建目录：已存在则复用；路径被文件占用时返回 PathTypeConflictError。
func EnsureDir(dir string) error {
	if fi, err := os.Stat(dir); err == nil {
		if fi.IsDir() {
			return nil
		}
		return &PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		// MkdirAll 遇到中间路径是文件时返回 ENOTDIR，这里统一成类型冲突。
		var pe *os.PathError
		if errors.As(err, &pe) {
			if fi, e := os.Stat(pe.Path); e == nil && !fi.IsDir() {
				return &PathTypeConflictError{Path: pe.Path, Want: "dir", Got: "file"}
			}
		}
		return err
	}
	return nil
}

// TempPrefix 是本包创建的临时文件名前缀。临时名长度与目标名无关，
// 目标名接近文件系统 255 字节上限时临时文件也能创建。
const TempPrefix = ".bilimerge-"

// TempPath 返回 dir 下与 name 同扩展名的隐藏临时文件路径（不创建文件）。
// 外部进程（例如 ffmpeg）依赖扩展名推断容器格式，因此扩展名必须保留。
func TempPath(dir, name string) (string, error) {
	f, err := os.CreateTemp(dir, TempPrefix+"*"+filepath.Ext(name))
	if err != nil {
		return "", err
	}
	p := f.Name()
	_ = f.Close()
	_ = os.Remove(p)
	return p, nil
}

// WriteFileAtomicReplace 在 dir 下原子写入 name（临时文件 + rename），目标已存在则覆盖。
//
// - 临时文件必须与目标文件在同目录，以保证 rename 的原子性
// - 对临时文件做 Sync；目录 Sync 采用 best-effort（避免平台差异导致误报失败）
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	return writeAtomic(dir, name, 0o644, func(w io.Writer) error {
		return writeAll(w, data)
	})
}

// CopyFileAtomic 把 src 逐字节复制为 dir/name（临时文件 + rename），目标已存在则覆盖。
// src 只读，不会被移动或删除。
func CopyFileAtomic(src, dir, name string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	var n int64
	err = writeAtomic(dir, name, 0o644, func(w io.Writer) error {
		c, e := io.Copy(w, in)
		n = c
		return e
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func writeAtomic(dir, name string, perm os.FileMode, fill func(io.Writer) error) error {
	if err := EnsureDir(dir); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	// 同目录临时文件（前缀带 '.'，避免半成品出现在媒体库视图里）。
	tmp, err := os.CreateTemp(dir, TempPrefix+"*"+filepath.Ext(name))
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := fill(tmp); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := Rename(tmpName, dst); err != nil {
		return err
	}

	_ = syncDirBestEffort(dir)
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
