package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/BiliMerge/internal/app/run"
	"github.com/John-Robertt/BiliMerge/internal/config"
	"github.com/John-Robertt/BiliMerge/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的简洁进度输出。
//
// - 过程信息只写到 stderr（或 fallback 到 stdout 的终端），不影响 JSON 输出
// - 事件驱动：run 层只发事件，这里决定如何展示
// - keepalive：ffmpeg 合并大文件时长时间没有新行，定期提示当前分集
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total   int
	done    int
	current string
	merged  int
	quar    int
	fail    int
	skip    int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
	stopped       bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "apply"
	modeHint := ""
	if eff.DryRun {
		mode = "dry-run"
		modeHint = " (不合并/不复制/不下载)"
	}

	fmt.Fprintf(p.w, "[%s] bilimerge run (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  base: %s\n", eff.Base)
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	} else {
		fmt.Fprintln(p.w, "  config: (默认值)")
	}
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  ffmpeg: %s\n", truncate(eff.FFmpeg, 120))
	fmt.Fprintf(p.w, "  tiers: %s\n", formatTiers(eff.Tiers()))
	if eff.Location != nil {
		fmt.Fprintf(p.w, "  timezone: %s\n", eff.Location.String())
	}
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  cover_from_page: %s  write_nfo: %s  quarantine_on_unknown: %s\n",
		onOff(eff.CoverFromPage), onOff(eff.WriteNFO), onOff(eff.QuarantineOnUnknown),
	)

	fmt.Fprintln(p.w, "目录:")
	fmt.Fprintf(p.w, "  input: %s\n", eff.InputRoot)
	fmt.Fprintf(p.w, "  output: %s\n", eff.OutputRoot)
	fmt.Fprintf(p.w, "  fallback: %s\n", eff.FallbackRoot)
	if eff.Log.File != "" {
		fmt.Fprintf(p.w, "  log: %s\n", eff.Log.File)
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		p.total = intField(fields, "episodes")
		fmt.Fprintf(p.w, "扫描: episodes=%d unreadable=%d (%s)\n\n",
			p.total, intField(fields, "unreadable"), formatShortDuration(dur),
		)
		if p.total > 0 && !p.tickerStarted && !p.stopped {
			p.startTickerLocked()
		}
	case "exec":
		p.stopTickerLocked()
		fmt.Fprintf(p.w, "\n执行: merged=%d quarantined=%d skipped=%d failed=%d planned=%d (%s)\n",
			intField(fields, "merged"),
			intField(fields, "quarantined"),
			intField(fields, "skipped"),
			intField(fields, "failed"),
			intField(fields, "planned"),
			formatElapsed(dur),
		)
	default:
		// 未知阶段也不要静默。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemStart(idx, total int, ep domain.EpisodeDir) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.current = ep.Key()
}

func (p *progressUI) OnItemDone(idx, total int, ep domain.EpisodeDir, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total
	p.current = ""

	var status string
	switch res.Status {
	case domain.StatusMerged:
		p.merged++
		status = "OK"
	case domain.StatusQuarantined:
		p.quar++
		status = "QUAR"
	case domain.StatusFailed:
		p.fail++
		status = "FAIL"
	case domain.StatusSkipped:
		p.skip++
		status = "SKIP"
	case domain.StatusPlanned:
		status = "PLAN"
	default:
		status = strings.ToUpper(res.Status)
	}

	warn := ""
	if len(res.Warnings) > 0 {
		warn = " warn=" + warningCodes(res.Warnings)
	}

	switch res.Status {
	case domain.StatusFailed, domain.StatusQuarantined, domain.StatusSkipped:
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s%s (%s)\n",
			idx, total, ep.Key(), status, res.ErrorCode, truncate(res.ErrorMsg, 160), warn, formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s tier=%d%s (%s)\n",
			idx, total, ep.Key(), status, res.Tier, warn, formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.done >= p.total {
		p.stopTickerLocked()
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}
	stopCh := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.stopped {
					p.mu.Unlock()
					return
				}
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintln(p.w, p.keepaliveLineLocked())
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stopCh:
				return
			}
		}
	}()
}

// stopTickerLocked 可重复调用；停止后不会再输出 keepalive。
func (p *progressUI) stopTickerLocked() {
	p.stopped = true
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) keepaliveLineLocked() string {
	line := fmt.Sprintf("进度: done=%d/%d ok=%d quar=%d fail=%d skip=%d elapsed=%s",
		p.done, p.total, p.merged, p.quar, p.fail, p.skip, formatElapsed(time.Since(p.startedAt)),
	)
	if p.current != "" {
		line += " 当前=" + p.current
	}
	return line
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatTiers(tiers []domain.Tier) string {
	parts := make([]string, 0, len(tiers))
	for _, t := range tiers {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, " > ")
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

// truncate 按字符截断，避免切坏中文。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	default:
		return 0
	}
}
