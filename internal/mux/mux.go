// Package mux 把同一分集的音视频分片无损封装为单个 mp4（外部 ffmpeg 进程）。
//
// 失败分两类：
//   - ffmpeg 以非零状态退出（含超时被杀）：*MergeError，上层据此触发分片备份
//   - 其它（找不到可执行文件、临时文件/重命名失败等）：普通 error，上层只记录
package mux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/John-Robertt/BiliMerge/internal/infra/fsx"
)

// Muxer 是外部封装操作的最小契约，测试里用假实现替换。
type Muxer interface {
	Mux(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// DefaultBin 是未配置时使用的 ffmpeg 可执行文件名（从 PATH 查找）。
const DefaultBin = "ffmpeg"

// stderr 只保留末尾这么多字节写进错误信息。
const stderrTailBytes = 2048

// 测试可替换为假的进程构造。
var execCommand = exec.CommandContext

// MergeError 表示 ffmpeg 以非零状态结束。
type MergeError struct {
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *MergeError) Error() string {
	msg := fmt.Sprintf("ffmpeg 退出码 %d", e.ExitCode)
	if e.TimedOut {
		msg = "ffmpeg 超时被终止"
	}
	if e.Stderr != "" {
		msg += "：" + e.Stderr
	}
	return msg
}

func (e *MergeError) Unwrap() error { return e.Err }

// IsMergeFailure 判断 err 是否为 ffmpeg 自身报告的失败（应触发备份）。
func IsMergeFailure(err error) bool {
	var me *MergeError
	return errors.As(err, &me)
}

// FFmpeg 通过外部 ffmpeg 进程做 stream copy。
type FFmpeg struct {
	Bin     string
	Timeout time.Duration // 0 表示不限时
}

// Args 构造 ffmpeg 参数：两路输入各取第一条视频/音频流，直接复制，强制覆盖输出。
func Args(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "copy",
		outputPath,
	}
}

// Mux 先写入目标目录下的隐藏临时文件，成功后 rename 覆盖 outputPath。
// 任何失败都不会在 outputPath 留下半成品。
func (f FFmpeg) Mux(ctx context.Context, videoPath, audioPath, outputPath string) error {
	bin := f.Bin
	if bin == "" {
		bin = DefaultBin
	}

	dir := filepath.Dir(outputPath)
	tmp, err := fsx.TempPath(dir, filepath.Base(outputPath))
	if err != nil {
		return fmt.Errorf("创建临时输出失败：%w", err)
	}
	defer func() { _ = os.Remove(tmp) }()

	runCtx := ctx
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := execCommand(runCtx, bin, Args(videoPath, audioPath, tmp)...)
	cmd.Stdout = nil
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	if err := cmd.Run(); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return &MergeError{
				ExitCode: ee.ExitCode(),
				Stderr:   tail(stderr.String(), stderrTailBytes),
				TimedOut: errors.Is(runCtx.Err(), context.DeadlineExceeded),
				Err:      err,
			}
		}
		return fmt.Errorf("启动 ffmpeg 失败（%s）：%w", bin, err)
	}

	if err := fsx.Rename(tmp, outputPath); err != nil {
		return fmt.Errorf("移动合并结果失败：%w", err)
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	// 避免从多字节字符中间截断
	for i := 0; i < len(s) && i < 4; i++ {
		if s[i]&0xC0 != 0x80 {
			return s[i:]
		}
	}
	return s
}
