package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusMerged      = "merged"
	StatusQuarantined = "quarantined"
	StatusSkipped     = "skipped"
	StatusFailed      = "failed"
	// StatusPlanned 仅出现在 dry-run：已完成解析与规划，但没有任何写入。
	StatusPlanned = "planned"
)

const (
	ErrCodeMetadataParseFailed = "metadata_parse_failed"
	ErrCodeTimestampInvalid    = "timestamp_invalid"
	ErrCodeNoQualifyingTier    = "no_qualifying_tier"
	ErrCodeOutputPathFailed    = "output_path_failed"
	ErrCodeMergeFailed         = "merge_failed"
	ErrCodeUnknownFailed       = "unknown_failed"
	ErrCodeCoverFetchFailed    = "cover_fetch_failed"
	ErrCodeFallbackCopyFailed  = "fallback_copy_failed"
	ErrCodeNameCollision       = "name_collision"
	ErrCodeNFOWriteFailed      = "nfo_write_failed"
	ErrCodeInputUnreadable     = "input_unreadable"
	ErrCodeConfigInvalid       = "config_invalid"
)

// RunReport 是对外稳定输出（stdout JSON / --report 文件）的结构。
type RunReport struct {
	RunID  string `json:"run_id"`
	Base   string `json:"base"`
	DryRun bool   `json:"dry_run"`
	// Interrupted 表示运行被取消（例如 Ctrl-C），之后的分集未处理、不在 items 中。
	Interrupted bool `json:"interrupted"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Merged      int `json:"merged"`
	Quarantined int `json:"quarantined"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	Planned     int `json:"planned"`
}

// ItemResult 是单个分集的处理结果。分集之间互不影响。
type ItemResult struct {
	WorkID  string `json:"work_id"`
	Episode string `json:"episode"`
	BVID    string `json:"bvid"`
	Part    string `json:"part"`
	Tier    int    `json:"tier"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Output        string `json:"output"`
	Cover         string `json:"cover"`
	QuarantineDir string `json:"quarantine_dir"`

	// Warnings 记录不影响状态的问题（封面下载失败、时间戳异常、命名冲突等）。
	Warnings []Warning `json:"warnings"`
}

type Warning struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Key 返回 "<work-id>/<episode>"；合成条目（例如输入目录不可读）返回空串。
func (it ItemResult) Key() string {
	if it.WorkID == "" && it.Episode == "" {
		return ""
	}
	return it.WorkID + "/" + it.Episode
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 work_id/episode 字典序；合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Key()
		b := r.Items[j].Key()
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for i := range r.Items {
		if r.Items[i].Warnings == nil {
			r.Items[i].Warnings = []Warning{}
		}
		switch r.Items[i].Status {
		case StatusMerged:
			s.Merged++
		case StatusQuarantined:
			s.Quarantined++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusPlanned:
			s.Planned++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	if r.Items == nil {
		r.Items = []ItemResult{}
	}
	return json.Marshal(Alias(r))
}
