package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/BiliMerge/internal/app/planner"
	"github.com/John-Robertt/BiliMerge/internal/config"
	"github.com/John-Robertt/BiliMerge/internal/cover"
	"github.com/John-Robertt/BiliMerge/internal/domain"
	"github.com/John-Robertt/BiliMerge/internal/entry"
	"github.com/John-Robertt/BiliMerge/internal/infra/fsx"
	"github.com/John-Robertt/BiliMerge/internal/mux"
	"github.com/John-Robertt/BiliMerge/internal/naming"
	"github.com/John-Robertt/BiliMerge/internal/nfo"
	"github.com/John-Robertt/BiliMerge/internal/quarantine"
	"github.com/John-Robertt/BiliMerge/internal/scan"
)

// CoverFetcher 是封面下载的最小契约（*cover.Fetcher 实现它；测试可替换）。
type CoverFetcher interface {
	Save(ctx context.Context, url, dst string) (cover.Result, error)
	LookupFromPage(ctx context.Context, bvid string) (string, error)
}

// Deps 是执行阶段依赖的外部协作者。
//
// - Muxer 为 nil 时使用 mux.FFmpeg{Bin: eff.FFmpeg, Timeout: eff.MuxTimeout}
// - Cover 为 nil 时不下载封面
// - Logger 为 nil 时不输出日志
type Deps struct {
	Muxer  mux.Muxer
	Cover  CoverFetcher
	Logger *zap.Logger
}

// Execute 执行一次批量合并，并返回对外稳定的 RunReport。
// 所有错误都降级为分集级结果：单个分集失败不影响其它分集。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.RunReport {
	started := time.Now().UTC()
	if obs != nil {
		obs.OnStart(eff)
	}

	if deps.Muxer == nil {
		deps.Muxer = mux.FFmpeg{Bin: eff.FFmpeg, Timeout: eff.MuxTimeout}
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Base:      eff.Base,
		DryRun:    eff.DryRun,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, 64),
	}
	log = log.With(zap.String("run_id", rr.RunID))

	scanStarted := time.Now()
	res, err := scan.ScanEpisodes(eff.InputRoot)
	if err != nil {
		log.Error("[错误] 无法读取输入目录", zap.String("dir", eff.InputRoot), zap.Error(err))
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeInputUnreadable, fmt.Sprintf("无法读取输入目录 %q：%v", eff.InputRoot, err)))
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}
	for _, u := range res.Unreadable {
		log.Error("[错误] 无法读取作品目录", zap.String("dir", u.Path), zap.Error(u.Err))
		it := syntheticFailed(domain.ErrCodeInputUnreadable, fmt.Sprintf("无法读取作品目录 %q：%v", u.Path, u.Err))
		it.WorkID = u.WorkID
		rr.Items = append(rr.Items, it)
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"episodes":   len(res.Episodes),
			"unreadable": len(res.Unreadable),
		}, time.Since(scanStarted))
	}

	p := &pipeline{
		eff:        eff,
		tiers:      eff.Tiers(),
		muxer:      deps.Muxer,
		cover:      deps.Cover,
		log:        log,
		collisions: naming.NewCollisionTracker(),
	}

	execStarted := time.Now()
	total := len(res.Episodes)
	for i, ep := range res.Episodes {
		// 取消只在分集之间生效：正在处理的分集总是完整结束。
		if ctx.Err() != nil {
			rr.Interrupted = true
			log.Warn("[错误] 运行已中断", zap.Int("remaining", total-i))
			break
		}
		if obs != nil {
			obs.OnItemStart(i+1, total, ep)
		}
		oneStarted := time.Now()
		item := p.processSafe(ctx, ep)
		rr.Items = append(rr.Items, item)
		if obs != nil {
			obs.OnItemDone(i+1, total, ep, item, time.Since(oneStarted))
		}
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"merged":      rr.Summary.Merged,
			"quarantined": rr.Summary.Quarantined,
			"skipped":     rr.Summary.Skipped,
			"failed":      rr.Summary.Failed,
			"planned":     rr.Summary.Planned,
		}, time.Since(execStarted))
	}
	return rr
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Warnings:  []domain.Warning{},
	}
}

// pipeline 持有一次运行内所有分集共享的只读依赖与命名冲突记录。
type pipeline struct {
	eff        config.EffectiveConfig
	tiers      []domain.Tier
	muxer      mux.Muxer
	cover      CoverFetcher
	log        *zap.Logger
	collisions *naming.CollisionTracker
}

// processSafe 是单个分集的隔离边界：panic 被记录为 unknown_failed，不影响后续分集。
func (p *pipeline) processSafe(ctx context.Context, ep domain.EpisodeDir) (item domain.ItemResult) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("[未知错误] 处理分集时发生 panic", zap.String("episode", ep.Key()), zap.Any("panic", r))
			item = fail(domain.ItemResult{
				WorkID:   ep.WorkID,
				Episode:  ep.Name,
				Warnings: []domain.Warning{},
			}, domain.ErrCodeUnknownFailed, fmt.Sprintf("panic: %v", r))
		}
	}()
	return p.process(ctx, ep)
}

func (p *pipeline) process(ctx context.Context, ep domain.EpisodeDir) domain.ItemResult {
	log := p.log.With(zap.String("episode", ep.Key()))
	item := domain.ItemResult{
		WorkID:   ep.WorkID,
		Episode:  ep.Name,
		Warnings: []domain.Warning{},
	}

	e, err := entry.Read(ep.MetadataPath)
	if err != nil {
		log.Error("[解析错误] "+ep.MetadataPath, zap.Error(err))
		log.Error("[错误] 无法解析元数据，跳过", zap.String("dir", ep.Path))
		return fail(item, domain.ErrCodeMetadataParseFailed, err.Error())
	}
	item.BVID = e.BVID
	item.Part = e.PartTitle

	if _, ok := planner.DateStamp(e.CreatedAtMillis, e.CreatedAtMalformed, p.eff.Location); !ok {
		log.Warn("[时间戳错误] 使用 00000000 作为日期", zap.Int64("time_create_stamp", e.CreatedAtMillis), zap.Bool("malformed", e.CreatedAtMalformed))
		item.Warnings = append(item.Warnings, domain.Warning{Code: domain.ErrCodeTimestampInvalid, Msg: "time_create_stamp 无法解析，日期使用 00000000"})
	}

	pair, err := planner.ResolveTier(ep.Path, p.tiers)
	if err != nil {
		log.Warn("[错误] 缺少音视频文件，跳过", zap.String("dir", ep.Path))
		item.Status = domain.StatusSkipped
		item.ErrorCode = domain.ErrCodeNoQualifyingTier
		item.ErrorMsg = err.Error()
		return item
	}
	item.Tier = int(pair.Tier)

	paths := planner.PlanOutput(p.eff.OutputRoot, e, p.eff.Location)
	if prev, collided := p.collisions.Claim(paths.Video, ep.Key()); collided {
		msg := fmt.Sprintf("输出路径与 %s 相同，后处理的分集会覆盖先前的文件", prev)
		log.Warn("[错误] 命名冲突", zap.String("output", paths.Video), zap.String("other", prev))
		item.Warnings = append(item.Warnings, domain.Warning{Code: domain.ErrCodeNameCollision, Msg: msg})
	}

	if p.eff.DryRun {
		item.Status = domain.StatusPlanned
		item.Output = paths.Video
		return item
	}

	if err := planner.EnsureOutputDir(paths.Dir); err != nil {
		log.Error("[路径创建失败] "+paths.Dir, zap.Error(err))
		return fail(item, domain.ErrCodeOutputPathFailed, err.Error())
	}

	if err := p.muxer.Mux(ctx, pair.Video, pair.Audio, paths.Video); err != nil {
		return p.handleMuxError(ctx, log, item, ep, pair, err)
	}

	item.Status = domain.StatusMerged
	item.Output = paths.Video
	log.Info("[成功] 已合并到 "+paths.Video, zap.Int("tier", item.Tier), zap.String("size", fileSize(paths.Video)))

	p.fetchCover(ctx, log, &item, e, paths)
	p.writeNFO(log, &item, e, paths)
	return item
}

// handleMuxError 区分 ffmpeg 报告的失败（备份分片）与其它异常（默认只记录）。
func (p *pipeline) handleMuxError(ctx context.Context, log *zap.Logger, item domain.ItemResult, ep domain.EpisodeDir, pair domain.FragmentPair, err error) domain.ItemResult {
	if ctx.Err() != nil {
		// 被中断时 ffmpeg 的退出码不说明分片有问题。
		log.Warn("[未知错误] 合并被中断", zap.Error(err))
		return fail(item, domain.ErrCodeUnknownFailed, "合并被中断："+err.Error())
	}

	code := domain.ErrCodeMergeFailed
	if mux.IsMergeFailure(err) {
		log.Error("[合并失败] "+ep.Name, zap.Error(err))
	} else {
		code = domain.ErrCodeUnknownFailed
		log.Error("[未知错误] "+err.Error(), zap.String("dir", ep.Path))
		if !p.eff.QuarantineOnUnknown {
			return fail(item, code, err.Error())
		}
	}

	dir, n, cerr := quarantine.Relocate(p.eff.FallbackRoot, ep.WorkID, ep.Name, pair)
	if cerr != nil {
		log.Error("[备份失败] "+cerr.Error(), zap.NamedError("merge_error", err))
		return fail(item, domain.ErrCodeFallbackCopyFailed, fmt.Sprintf("%v；备份失败：%v", err, cerr))
	}
	log.Info("[备份] 原始文件已保存到 "+dir, zap.String("size", humanize.Bytes(uint64(n))))

	item.Status = domain.StatusQuarantined
	item.ErrorCode = code
	item.ErrorMsg = err.Error()
	item.QuarantineDir = dir
	return item
}

func (p *pipeline) fetchCover(ctx context.Context, log *zap.Logger, item *domain.ItemResult, e domain.CacheEntry, paths domain.OutputPaths) {
	if p.cover == nil {
		return
	}

	u := e.CoverURL
	if u == "" && p.eff.CoverFromPage {
		if bvid, ok := domain.ParseBVID(e.BVID); ok {
			found, err := p.cover.LookupFromPage(ctx, string(bvid))
			if err != nil {
				log.Warn("[封面下载失败] 视频页中未取到封面", zap.String("bvid", string(bvid)), zap.Error(err))
				item.Warnings = append(item.Warnings, domain.Warning{Code: domain.ErrCodeCoverFetchFailed, Msg: err.Error()})
				return
			}
			u = found
		}
	}
	if u == "" {
		return
	}

	res, err := p.cover.Save(ctx, u, paths.Cover)
	if err != nil {
		log.Warn("[封面下载失败] "+u, zap.Error(err))
		item.Warnings = append(item.Warnings, domain.Warning{Code: domain.ErrCodeCoverFetchFailed, Msg: err.Error()})
		return
	}
	item.Cover = res.Path
	log.Debug("封面已保存", zap.String("path", res.Path), zap.String("size", humanize.Bytes(uint64(res.Bytes))), zap.Bool("png_converted", res.Converted))
}

func (p *pipeline) writeNFO(log *zap.Logger, item *domain.ItemResult, e domain.CacheEntry, paths domain.OutputPaths) {
	if !p.eff.WriteNFO {
		return
	}
	coverName := ""
	if item.Cover != "" {
		coverName = filepath.Base(item.Cover)
	}
	b, err := nfo.Encode(e, paths, coverName)
	if err == nil {
		err = fsx.WriteFileAtomicReplace(paths.Dir, filepath.Base(paths.NFO), b)
	}
	if err != nil {
		log.Warn("[错误] NFO 写入失败", zap.String("path", paths.NFO), zap.Error(err))
		item.Warnings = append(item.Warnings, domain.Warning{Code: domain.ErrCodeNFOWriteFailed, Msg: err.Error()})
	}
}

func fail(item domain.ItemResult, code, msg string) domain.ItemResult {
	item.Status = domain.StatusFailed
	item.ErrorCode = code
	item.ErrorMsg = msg
	return item
}

func fileSize(p string) string {
	fi, err := os.Stat(p)
	if err != nil {
		return "?"
	}
	return humanize.Bytes(uint64(fi.Size()))
}
