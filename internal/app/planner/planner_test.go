package planner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/BiliMerge/internal/domain"
	"github.com/John-Robertt/BiliMerge/internal/infra/fsx"
)

func TestResolveTier_PrefersHigherTier(t *testing.T) {
	ep := t.TempDir()
	for _, tier := range []string{"80", "64", "32"} {
		writePair(t, filepath.Join(ep, tier), true, true)
	}

	pair, err := ResolveTier(ep, domain.DefaultTiers)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if pair.Tier != 80 {
		t.Fatalf("期望选择 80，实际 %d", pair.Tier)
	}
	if pair.Video != filepath.Join(ep, "80", "video.m4s") || pair.Audio != filepath.Join(ep, "80", "audio.m4s") {
		t.Fatalf("路径不符合预期：%+v", pair)
	}
}

func TestResolveTier_SkipsPartialPairs(t *testing.T) {
	ep := t.TempDir()
	writePair(t, filepath.Join(ep, "80"), true, false)
	writePair(t, filepath.Join(ep, "64"), false, true)
	writePair(t, filepath.Join(ep, "32"), true, true)

	pair, err := ResolveTier(ep, domain.DefaultTiers)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if pair.Tier != 32 {
		t.Fatalf("期望回退到 32，实际 %d", pair.Tier)
	}
}

func TestResolveTier_VideoOnlyEverywhere(t *testing.T) {
	ep := t.TempDir()
	for _, tier := range []string{"80", "64", "32"} {
		writePair(t, filepath.Join(ep, tier), true, false)
	}

	_, err := ResolveTier(ep, domain.DefaultTiers)
	if !errors.Is(err, ErrNoQualifyingTier) {
		t.Fatalf("期望 ErrNoQualifyingTier，实际：%v", err)
	}
}

func TestResolveTier_DirectoryNamedLikeFragmentDoesNotQualify(t *testing.T) {
	ep := t.TempDir()
	dir := filepath.Join(ep, "80")
	if err := os.MkdirAll(filepath.Join(dir, "video.m4s"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	writeFile(t, filepath.Join(dir, "audio.m4s"))

	if _, err := ResolveTier(ep, domain.DefaultTiers); !errors.Is(err, ErrNoQualifyingTier) {
		t.Fatalf("目录不应被当作分片文件：%v", err)
	}
}

func TestResolveTier_CustomOrder(t *testing.T) {
	ep := t.TempDir()
	writePair(t, filepath.Join(ep, "80"), true, true)
	writePair(t, filepath.Join(ep, "116"), true, true)

	pair, err := ResolveTier(ep, []domain.Tier{116, 80})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if pair.Tier != 116 {
		t.Fatalf("期望按配置顺序选择 116，实际 %d", pair.Tier)
	}
}

func TestDateStamp(t *testing.T) {
	cases := []struct {
		name      string
		millis    int64
		malformed bool
		want      string
		ok        bool
	}{
		{"正常", 1700000000000, false, "20231114", true},
		{"缺省为 epoch", 0, false, "19700101", true},
		{"格式错误", 0, true, "00000000", false},
		{"年份越界", 1 << 62, false, "00000000", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := DateStamp(tc.millis, tc.malformed, time.UTC)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("DateStamp=%q,%v 期望 %q,%v", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestDateStamp_UsesLocation(t *testing.T) {
	// 2023-11-14 23:30 UTC 在 UTC+8 已是 11-15
	ms := time.Date(2023, 11, 14, 23, 30, 0, 0, time.UTC).UnixMilli()
	loc := time.FixedZone("CST", 8*3600)
	if got, _ := DateStamp(ms, false, loc); got != "20231115" {
		t.Fatalf("期望 20231115，实际 %q", got)
	}
}

func TestPlanOutput_Deterministic(t *testing.T) {
	e := domain.CacheEntry{
		OwnerName:       "某UP主",
		PartTitle:       "  第1集: 开始?  ",
		CreatedAtMillis: 1700000000000,
	}

	a := PlanOutput("/out", e, time.UTC)
	b := PlanOutput("/out", e, time.UTC)
	if a != b {
		t.Fatalf("相同输入应得到相同输出：%+v vs %+v", a, b)
	}

	if a.BaseName != "20231114_第1集 开始" {
		t.Fatalf("BaseName 不符合预期：%q", a.BaseName)
	}
	if a.FolderName != "第1集 开始" {
		t.Fatalf("FolderName 不符合预期：%q", a.FolderName)
	}
	wantDir := filepath.Join("/out", "某UP主", "第1集 开始")
	if a.Dir != wantDir {
		t.Fatalf("Dir=%q 期望 %q", a.Dir, wantDir)
	}
	if a.Video != filepath.Join(wantDir, "20231114_第1集 开始.mp4") ||
		a.Cover != filepath.Join(wantDir, "20231114_第1集 开始.jpg") ||
		a.NFO != filepath.Join(wantDir, "20231114_第1集 开始.nfo") {
		t.Fatalf("文件路径不符合预期：%+v", a)
	}
}

func TestPlanOutput_ForbiddenCharsRemovedEverywhere(t *testing.T) {
	e := domain.CacheEntry{OwnerName: "u", PartTitle: `a/b\c?d<e>f*g:h|i`}
	p := PlanOutput("/out", e, time.UTC)
	for _, s := range []string{p.BaseName, p.FolderName} {
		if strings.ContainsAny(s, `/\?<>*:|`) {
			t.Fatalf("仍含非法字符：%q", s)
		}
	}
	if p.FolderName != "abcdefghi" || p.BaseName != "19700101_abcdefghi" {
		t.Fatalf("字符应被删除而非替换：%+v", p)
	}
}

func TestPlanOutput_BlankPartUsesPlaceholder(t *testing.T) {
	e := domain.CacheEntry{OwnerName: "u", PartTitle: "   ", CreatedAtMalformed: true}
	p := PlanOutput("/out", e, time.UTC)
	if p.FolderName != domain.PlaceholderTitle {
		t.Fatalf("期望占位文件夹名，实际 %q", p.FolderName)
	}
	if p.BaseName != "00000000_"+domain.PlaceholderTitle {
		t.Fatalf("BaseName 不符合预期：%q", p.BaseName)
	}
}

func TestEnsureOutputDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "owner", "folder")
	if err := EnsureOutputDir(dir); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := EnsureOutputDir(dir); err != nil {
		t.Fatalf("重复创建应复用已有目录：%v", err)
	}

	blocked := filepath.Join(root, "blocked")
	writeFile(t, blocked)
	err := EnsureOutputDir(filepath.Join(blocked, "folder"))
	var pe *fsx.PathTypeConflictError
	if !errors.As(err, &pe) {
		t.Fatalf("期望 PathTypeConflictError，实际：%v", err)
	}
}

func writePair(t *testing.T, dir string, video, audio bool) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if video {
		writeFile(t, filepath.Join(dir, "video.m4s"))
	}
	if audio {
		writeFile(t, filepath.Join(dir, "audio.m4s"))
	}
}

func writeFile(t *testing.T, p string) {
	t.Helper()
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func TestPlanOutput_OwnerStaysSingleSegment(t *testing.T) {
	cases := map[string]string{
		"AC/DC": "ACDC",
		"..":    domain.PlaceholderOwner,
		"":      domain.PlaceholderOwner,
		"UP:主?": "UP:主?",
	}
	for owner, want := range cases {
		p := PlanOutput("/out", domain.CacheEntry{OwnerName: owner, PartTitle: "p"}, time.UTC)
		if got := filepath.Join("/out", want, "p"); p.Dir != got {
			t.Fatalf("owner=%q Dir=%q 期望 %q", owner, p.Dir, got)
		}
	}
}
