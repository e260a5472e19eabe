package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"

	"github.com/John-Robertt/BiliMerge/internal/domain"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

// FileName 是 base 目录下可选配置文件的固定名称。
const FileName = "bilimerge.toml"

const (
	DefaultInputDir    = "待处理文件夹"
	DefaultOutputDir   = "输出文件夹1"
	DefaultFallbackDir = "输出文件夹2"

	DefaultFFmpeg       = "ffmpeg"
	DefaultCoverTimeout = 10 * time.Second
	DefaultLogLevel     = "info"

	DefaultLogMaxSizeMB  = 20
	DefaultLogMaxBackups = 3
	DefaultLogMaxAgeDays = 30
)

// CLIArgs 是命令行传入的参数，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：CLI > 配置文件 > 默认值。
type CLIArgs struct {
	ConfigPath string

	FFmpeg    string
	FFmpegSet bool

	LogLevel    string
	LogLevelSet bool

	DryRun bool
}

// FileConfig 对应 bilimerge.toml 的解析结构。未出现的字段保持零值/nil，由 merge 填默认。
type FileConfig struct {
	InputDir    string `toml:"input_dir"`
	OutputDir   string `toml:"output_dir"`
	FallbackDir string `toml:"fallback_dir"`

	FFmpeg              string `toml:"ffmpeg"`
	MuxTimeoutSeconds   int    `toml:"mux_timeout_seconds"`
	CoverTimeoutSeconds int    `toml:"cover_timeout_seconds"`
	Proxy               string `toml:"proxy"`

	Tiers    []int  `toml:"tiers"`
	Timezone string `toml:"timezone"`

	QuarantineOnUnknown *bool `toml:"quarantine_on_unknown"`
	CoverFromPage       *bool `toml:"cover_from_page"`
	WriteNFO            *bool `toml:"write_nfo"`

	Log FileLogConfig `toml:"log"`
}

type FileLogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   *bool  `toml:"compress"`
}

// EffectiveConfig 是合并并规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
// 构造后视为只读：需要切片时使用 Tiers() 取副本。
type EffectiveConfig struct {
	Base       string
	ConfigPath string // 实际读取到的配置文件；未读取时为空

	InputRoot    string
	OutputRoot   string
	FallbackRoot string

	FFmpeg       string
	MuxTimeout   time.Duration // 0 表示不限时
	CoverTimeout time.Duration
	ProxyURL     string

	tiers    []domain.Tier
	Location *time.Location

	QuarantineOnUnknown bool
	CoverFromPage       bool
	WriteNFO            bool
	DryRun              bool

	Log LogConfig
}

// LogConfig 是日志输出的最终配置；File 为空表示只写 stderr。
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Tiers 返回清晰度优先级的副本。
func (c EffectiveConfig) Tiers() []domain.Tier {
	return append([]domain.Tier(nil), c.tiers...)
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取配置文件并与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则尝试 <base>/bilimerge.toml（可选；不存在时全部使用默认值）
//
// 覆盖优先级：CLI > 配置文件 > 默认值。目录字段为相对路径时相对 base。
func LoadEffective(base string, cli CLIArgs) (EffectiveConfig, error) {
	baseAbs, err := filepath.Abs(strings.TrimSpace(base))
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: base, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
		exists  bool
	)
	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		cfgPath = absCleanFrom(baseAbs, p)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		cfgPath = filepath.Join(baseAbs, FileName)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}

	eff, err := merge(baseAbs, cli, fc)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if exists {
		eff.ConfigPath = cfgPath
	}
	return eff, nil
}

func merge(base string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	eff := EffectiveConfig{
		Base:         base,
		InputRoot:    absCleanFrom(base, orDefault(fc.InputDir, DefaultInputDir)),
		OutputRoot:   absCleanFrom(base, orDefault(fc.OutputDir, DefaultOutputDir)),
		FallbackRoot: absCleanFrom(base, orDefault(fc.FallbackDir, DefaultFallbackDir)),
		DryRun:       cli.DryRun,
	}
	if err := distinctRoots(eff.InputRoot, eff.OutputRoot, eff.FallbackRoot); err != nil {
		return EffectiveConfig{}, err
	}

	// ffmpeg：CLI > config > 默认
	eff.FFmpeg = orDefault(fc.FFmpeg, DefaultFFmpeg)
	if cli.FFmpegSet {
		eff.FFmpeg = strings.TrimSpace(cli.FFmpeg)
		if eff.FFmpeg == "" {
			return EffectiveConfig{}, errors.New("--ffmpeg 不能为空")
		}
	}

	if fc.MuxTimeoutSeconds < 0 {
		return EffectiveConfig{}, fmt.Errorf("mux_timeout_seconds 不能为负数：%d", fc.MuxTimeoutSeconds)
	}
	eff.MuxTimeout = time.Duration(fc.MuxTimeoutSeconds) * time.Second

	switch {
	case fc.CoverTimeoutSeconds < 0:
		return EffectiveConfig{}, fmt.Errorf("cover_timeout_seconds 不能为负数：%d", fc.CoverTimeoutSeconds)
	case fc.CoverTimeoutSeconds == 0:
		eff.CoverTimeout = DefaultCoverTimeout
	default:
		eff.CoverTimeout = time.Duration(fc.CoverTimeoutSeconds) * time.Second
	}

	proxyURL := strings.TrimSpace(fc.Proxy)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, fmt.Errorf("proxy 无效：%q", proxyURL)
		}
	}
	eff.ProxyURL = proxyURL

	tiers, err := parseTiers(fc.Tiers)
	if err != nil {
		return EffectiveConfig{}, err
	}
	eff.tiers = tiers

	loc, err := loadLocation(fc.Timezone)
	if err != nil {
		return EffectiveConfig{}, err
	}
	eff.Location = loc

	eff.QuarantineOnUnknown = boolOr(fc.QuarantineOnUnknown, false)
	eff.CoverFromPage = boolOr(fc.CoverFromPage, false)
	eff.WriteNFO = boolOr(fc.WriteNFO, false)

	lc, err := mergeLog(base, cli, fc.Log)
	if err != nil {
		return EffectiveConfig{}, err
	}
	eff.Log = lc
	return eff, nil
}

func mergeLog(base string, cli CLIArgs, fl FileLogConfig) (LogConfig, error) {
	level := orDefault(fl.Level, DefaultLogLevel)
	if cli.LogLevelSet {
		level = strings.TrimSpace(cli.LogLevel)
	}
	level = strings.ToLower(level)
	if _, err := zapcore.ParseLevel(level); err != nil {
		return LogConfig{}, fmt.Errorf("日志级别无效：%q", level)
	}

	lc := LogConfig{
		Level:      level,
		MaxSizeMB:  DefaultLogMaxSizeMB,
		MaxBackups: DefaultLogMaxBackups,
		MaxAgeDays: DefaultLogMaxAgeDays,
		Compress:   boolOr(fl.Compress, false),
	}
	if f := strings.TrimSpace(fl.File); f != "" {
		lc.File = absCleanFrom(base, f)
	}
	for _, v := range []struct {
		name string
		in   int
		out  *int
	}{
		{"max_size_mb", fl.MaxSizeMB, &lc.MaxSizeMB},
		{"max_backups", fl.MaxBackups, &lc.MaxBackups},
		{"max_age_days", fl.MaxAgeDays, &lc.MaxAgeDays},
	} {
		if v.in < 0 {
			return LogConfig{}, fmt.Errorf("log.%s 不能为负数：%d", v.name, v.in)
		}
		if v.in > 0 {
			*v.out = v.in
		}
	}
	return lc, nil
}

func parseTiers(in []int) ([]domain.Tier, error) {
	if len(in) == 0 {
		return append([]domain.Tier(nil), domain.DefaultTiers...), nil
	}
	seen := make(map[int]struct{}, len(in))
	out := make([]domain.Tier, 0, len(in))
	for _, t := range in {
		if t <= 0 {
			return nil, fmt.Errorf("tiers 只能包含正整数：%d", t)
		}
		if _, ok := seen[t]; ok {
			return nil, fmt.Errorf("tiers 含重复值：%d", t)
		}
		seen[t] = struct{}{}
		out = append(out, domain.Tier(t))
	}
	return out, nil
}

// loadLocation 解析时区；为空或 "Local" 时使用本机时区。
func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone 无效：%q：%w", name, err)
	}
	return loc, nil
}

func distinctRoots(input, output, fallback string) error {
	if input == output || input == fallback || output == fallback {
		return fmt.Errorf("input_dir/output_dir/fallback_dir 必须互不相同：%q %q %q", input, output, fallback)
	}
	for _, out := range []string{output, fallback} {
		if isUnder(out, input) {
			return fmt.Errorf("输出目录不能位于输入目录内：%q", out)
		}
	}
	return nil
}

func isUnder(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 TOML 配置文件（未知字段视为错误，便于发现拼写错误）。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
