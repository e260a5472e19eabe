package run

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/John-Robertt/BiliMerge/internal/config"
	"github.com/John-Robertt/BiliMerge/internal/cover"
	"github.com/John-Robertt/BiliMerge/internal/mux"
)

type muxCall struct {
	Video, Audio, Output string
}

// fakeMuxer 默认把 "merged:<video>" 写到输出路径；fn 非 nil 时由 fn 决定结果。
type fakeMuxer struct {
	mu    sync.Mutex
	calls []muxCall
	fn    func(call muxCall) error
}

func (f *fakeMuxer) Mux(ctx context.Context, video, audio, output string) error {
	call := muxCall{Video: video, Audio: audio, Output: output}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(call)
	}
	return os.WriteFile(output, []byte("merged:"+video), 0o644)
}

func (f *fakeMuxer) Calls() []muxCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]muxCall(nil), f.calls...)
}

var errExitStatus = &mux.MergeError{ExitCode: 1, Stderr: "Invalid data found when processing input"}

// fakeCover 记录调用；saveErr 非 nil 时模拟下载失败。
type fakeCover struct {
	saved   []string
	lookups []string
	pageURL string
	pageErr error
	saveErr error
}

func (f *fakeCover) Save(ctx context.Context, url, dst string) (cover.Result, error) {
	f.saved = append(f.saved, url)
	if f.saveErr != nil {
		return cover.Result{}, f.saveErr
	}
	if err := os.WriteFile(dst, []byte("jpg:"+url), 0o644); err != nil {
		return cover.Result{}, err
	}
	return cover.Result{Path: dst, Bytes: 4 + len(url)}, nil
}

func (f *fakeCover) LookupFromPage(ctx context.Context, bvid string) (string, error) {
	f.lookups = append(f.lookups, bvid)
	if f.pageErr != nil {
		return "", f.pageErr
	}
	if f.pageURL == "" {
		return "", errors.New("no cover")
	}
	return f.pageURL, nil
}

// loadEff 在 base 下写入配置（固定 UTC 时区）并返回最终配置。
func loadEff(t *testing.T, base, extraTOML string, cli config.CLIArgs) config.EffectiveConfig {
	t.Helper()
	body := "timezone = \"UTC\"\n" + extraTOML
	writeFile(t, filepath.Join(base, config.FileName), []byte(body))
	eff, err := config.LoadEffective(base, cli)
	if err != nil {
		t.Fatalf("加载配置失败：%v", err)
	}
	return eff
}

// addEpisode 在 <base>/待处理文件夹/<work>/<ep>/ 下写入 entry.json 与指定档位的分片。
// tiers 的值为 "va"（完整）、"v"（只有视频）、"a"（只有音频）。
func addEpisode(t *testing.T, eff config.EffectiveConfig, work, ep, entryJSON string, tiers map[string]string) string {
	t.Helper()
	dir := filepath.Join(eff.InputRoot, work, ep)
	writeFile(t, filepath.Join(dir, "entry.json"), []byte(entryJSON))
	for tier, kinds := range tiers {
		for _, k := range kinds {
			switch k {
			case 'v':
				writeFile(t, filepath.Join(dir, tier, "video.m4s"), []byte("V-"+work+"-"+ep+"-"+tier))
			case 'a':
				writeFile(t, filepath.Join(dir, tier, "audio.m4s"), []byte("A-"+work+"-"+ep+"-"+tier))
			}
		}
	}
	return dir
}

func writeFile(t *testing.T, p string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("读取 %q 失败：%v", p, err)
	}
	return string(b)
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
