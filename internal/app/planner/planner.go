package planner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/John-Robertt/BiliMerge/internal/domain"
	"github.com/John-Robertt/BiliMerge/internal/infra/fsx"
	"github.com/John-Robertt/BiliMerge/internal/naming"
)

// ErrNoQualifyingTier 表示没有任何清晰度目录同时具备 video.m4s 与 audio.m4s。
var ErrNoQualifyingTier = errors.New("没有可用的清晰度目录（video/audio 不完整）")

// InvalidDateStamp 是时间戳无法解析或超出范围时使用的占位日期。
const InvalidDateStamp = "00000000"

// ResolveTier 按 tiers 的顺序选出第一个同时存在 video.m4s 与 audio.m4s（均为普通文件）的目录。
// 只有一半的目录会被跳过；全部不满足时返回 ErrNoQualifyingTier。
func ResolveTier(episodeDir string, tiers []domain.Tier) (domain.FragmentPair, error) {
	for _, t := range tiers {
		dir := filepath.Join(episodeDir, t.String())
		v := filepath.Join(dir, domain.VideoFragmentName)
		a := filepath.Join(dir, domain.AudioFragmentName)
		if isRegular(v) && isRegular(a) {
			return domain.FragmentPair{Tier: t, Video: v, Audio: a}, nil
		}
	}
	return domain.FragmentPair{}, ErrNoQualifyingTier
}

func isRegular(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

// DateStamp 把毫秒时间戳格式化为 loc 时区下的 YYYYMMDD。
// 第二个返回值为 false 表示时间戳不可用（字段格式错误或年份超出 1..9999），此时返回 00000000。
func DateStamp(millis int64, malformed bool, loc *time.Location) (string, bool) {
	if malformed {
		return InvalidDateStamp, false
	}
	if loc == nil {
		loc = time.Local
	}
	t := time.UnixMilli(millis).In(loc)
	if y := t.Year(); y < 1 || y > 9999 {
		return InvalidDateStamp, false
	}
	return t.Format("20060102"), true
}

// PlanOutput 基于条目元数据计算输出路径（纯函数，不触碰文件系统）。
//
// 目录：<outputRoot>/<owner>/<sanitize(part)>/（owner 仅去除路径分隔符）
// 文件：<sanitize(date_part)>.{mp4,jpg,nfo}
func PlanOutput(outputRoot string, e domain.CacheEntry, loc *time.Location) domain.OutputPaths {
	date, _ := DateStamp(e.CreatedAtMillis, e.CreatedAtMalformed, loc)

	part := strings.TrimSpace(e.PartTitle)
	if part == "" {
		part = domain.PlaceholderTitle
	}

	base := naming.Sanitize(date + "_" + part)
	folder := naming.Sanitize(part)
	dir := filepath.Join(outputRoot, ownerSegment(e.OwnerName), folder)

	return domain.OutputPaths{
		DateStamp:  date,
		BaseName:   base,
		FolderName: folder,
		Dir:        dir,
		Video:      filepath.Join(dir, base+".mp4"),
		Cover:      filepath.Join(dir, base+".jpg"),
		NFO:        filepath.Join(dir, base+".nfo"),
	}
}

// ownerSegment 保证 UP 主名称只占一级目录，不会借助分隔符或 ".." 跳出输出根目录。
func ownerSegment(owner string) string {
	s := strings.NewReplacer("/", "", "\\", "").Replace(owner)
	if s == "" || s == "." || s == ".." {
		return domain.PlaceholderOwner
	}
	return s
}

// EnsureOutputDir 幂等创建输出目录；路径被非目录占用时返回 *fsx.PathTypeConflictError。
func EnsureOutputDir(dir string) error {
	return fsx.EnsureDir(dir)
}
