// Package logging 构造整次运行共用的 zap logger。
//
// 控制台输出写 stderr（stdout 留给 JSON 报告）；配置了 log.file 时再 tee 一份到
// lumberjack 轮转文件。
package logging

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/John-Robertt/BiliMerge/internal/config"
)

// Options 描述控制台侧的输出目标。
type Options struct {
	Console io.Writer // nil 表示 os.Stderr
	Color   bool      // 控制台是否使用彩色级别（通常仅在 TTY 下开启）
}

// Logger 包装 zap.Logger，并持有需要在退出时关闭的文件 sink。
type Logger struct {
	*zap.Logger
	file *lumberjack.Logger
}

// New 使用给定配置创建日志记录器。cfg.Level 已在配置阶段校验过。
func New(cfg config.LogConfig, opts Options) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	consoleConfig := encoderConfig
	if opts.Color {
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.AddSync(console), level),
	}

	l := &Logger{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, err
		}
		l.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(l.file), level))
	}

	l.Logger = zap.New(zapcore.NewTee(cores...))
	return l, nil
}

// Close 刷新缓冲并关闭文件 sink。
func (l *Logger) Close() error {
	if l == nil || l.Logger == nil {
		return nil
	}
	_ = l.Logger.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
