package run

import (
	"time"

	"github.com/John-Robertt/BiliMerge/internal/config"
	"github.com/John-Robertt/BiliMerge/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：CLI 可能同时在自己的 ticker goroutine 里输出 keepalive。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束/就绪时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemStart 在开始处理某个分集前调用（keepalive 用它显示当前分集）。
	OnItemStart(idx, total int, ep domain.EpisodeDir)
	// OnItemDone 在某个分集处理完成时调用（用于每条结果的一行输出）。
	OnItemDone(idx, total int, ep domain.EpisodeDir, res domain.ItemResult, dur time.Duration)
}
