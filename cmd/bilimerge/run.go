package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/BiliMerge/internal/app/run"
	"github.com/John-Robertt/BiliMerge/internal/config"
	"github.com/John-Robertt/BiliMerge/internal/cover"
	"github.com/John-Robertt/BiliMerge/internal/logging"
)

// lockFileName 位于 base 下，防止两个进程同时处理同一套目录。
const lockFileName = ".bilimerge.lock"

// errItemsFailed 表示运行完成但存在 failed 条目（退出码 1，报告已输出）。
var errItemsFailed = errors.New("存在失败条目")

var executablePath = os.Executable

func runBatch(cmd *cobra.Command, args []string, opts runOptions) error {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	base, err := resolveBase(args)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	eff, err := config.LoadEffective(base, config.CLIArgs{
		ConfigPath:  opts.configPath,
		FFmpeg:      opts.ffmpeg,
		FFmpegSet:   flags.Changed("ffmpeg"),
		LogLevel:    opts.logLevel,
		LogLevelSet: flags.Changed("log-level"),
		DryRun:      opts.dryRun,
	})
	if err != nil {
		rr := reportForConfigError(base, opts.dryRun, err)
		if opts.reportPath != "" {
			if werr := writeReportFile(opts.reportPath, rr); werr != nil {
				fmt.Fprintf(stderr, "写入报告失败：%v\n", werr)
			}
		}
		emitReport(stdout, stderr, rr)
		return errItemsFailed
	}

	// dry-run 不写任何文件，锁文件也不例外。
	if !eff.DryRun {
		lock := flock.New(filepath.Join(eff.Base, lockFileName))
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("获取运行锁失败：%w", err)
		}
		if !locked {
			return fmt.Errorf("另一个 bilimerge 正在处理 %s", eff.Base)
		}
		defer func() { _ = lock.Unlock() }()
	}

	lg, err := logging.New(eff.Log, logging.Options{Console: stderr, Color: isTerminal(stderr)})
	if err != nil {
		return fmt.Errorf("初始化日志失败：%w", err)
	}
	defer func() { _ = lg.Close() }()

	fetcher, err := cover.New(cover.Options{Timeout: eff.CoverTimeout, ProxyURL: eff.ProxyURL})
	if err != nil {
		return err
	}
	defer func() { _ = fetcher.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progressW, interactive := pickProgressWriter(stdout, stderr)
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.ExecuteWithObserver(ctx, eff, run.Deps{Cover: fetcher, Logger: lg.Logger}, obs)

	if opts.reportPath != "" {
		if err := writeReportFile(opts.reportPath, rr); err != nil {
			fmt.Fprintf(stderr, "写入报告失败：%v\n", err)
			emitReport(stdout, stderr, rr)
			return errItemsFailed
		}
	}

	emitReport(stdout, stderr, rr)
	if interactive {
		emitLocations(progressW, eff, opts.reportPath)
	}

	if rr.Interrupted {
		return context.Canceled
	}
	if rr.Summary.Failed > 0 {
		return errItemsFailed
	}
	return nil
}

// resolveBase 返回布局根目录：显式参数优先，否则为程序所在目录（解析符号链接）。
func resolveBase(args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return filepath.Abs(args[0])
	}
	exe, err := executablePath()
	if err != nil {
		return "", fmt.Errorf("定位程序所在目录失败：%w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func pickProgressWriter(stdout, stderr io.Writer) (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTerminal(stderr) {
		return stderr, true
	}
	// 仅重定向 stderr 时 stdout 仍是终端，此时 stdout 输出的是摘要而不是 JSON。
	if isTerminal(stdout) {
		return stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig, reportPath string) {
	if w == nil {
		return
	}
	if reportPath != "" {
		if abs, err := filepath.Abs(reportPath); err == nil {
			reportPath = abs
		}
		fmt.Fprintf(w, "report: %s\n", reportPath)
	}
	fmt.Fprintf(w, "out: %s\n", eff.OutputRoot)
	fmt.Fprintf(w, "fallback: %s\n", eff.FallbackRoot)
}
