package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/BiliMerge/internal/config"
	"github.com/John-Robertt/BiliMerge/internal/domain"
	"github.com/John-Robertt/BiliMerge/internal/infra/fsx"
)

func emitReport(stdout, stderr io.Writer, rr domain.RunReport) {
	if isTerminal(stdout) {
		fmt.Fprintln(stdout, summaryLine(rr))
		if len(rr.Items) > 0 {
			fmt.Fprintln(stdout, renderItemsTable(rr))
		}
		for _, line := range failedLines(rr) {
			fmt.Fprintln(stderr, line)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(stderr, summaryLine(rr))
}

func summaryLine(rr domain.RunReport) string {
	s := rr.Summary
	line := fmt.Sprintf("完成：merged=%d quarantined=%d skipped=%d failed=%d",
		s.Merged, s.Quarantined, s.Skipped, s.Failed,
	)
	if rr.DryRun {
		line += fmt.Sprintf(" planned=%d (dry-run)", s.Planned)
	}
	if rr.Interrupted {
		line += " (已中断)"
	}
	return line
}

// failedLines 为每个 failed 条目生成一行定位信息。
func failedLines(rr domain.RunReport) []string {
	var out []string
	for _, it := range rr.Items {
		if it.Status != domain.StatusFailed {
			continue
		}
		key := it.Key()
		if key == "" {
			key = "<run>"
		}
		out = append(out, fmt.Sprintf("%s %s: %s", key, it.ErrorCode, it.ErrorMsg))
	}
	return out
}

func renderItemsTable(rr domain.RunReport) string {
	headers := []string{"分集", "状态", "档位", "错误码", "位置", "警告"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft}

	rows := make([][]string, 0, len(rr.Items))
	for _, it := range rr.Items {
		key := it.Key()
		if key == "" {
			key = "<run>"
		}
		tier := "-"
		if it.Tier > 0 {
			tier = strconv.Itoa(it.Tier)
		}
		rows = append(rows, []string{
			truncate(key, 48),
			it.Status,
			tier,
			it.ErrorCode,
			truncate(itemLocation(rr.Base, it), 72),
			warningCodes(it.Warnings),
		})
	}
	return renderTable(headers, rows, aligns)
}

// itemLocation 返回条目最相关的路径（输出文件或隔离目录），尽量显示为相对 base 的路径。
func itemLocation(base string, it domain.ItemResult) string {
	p := it.Output
	if it.Status == domain.StatusQuarantined {
		p = it.QuarantineDir
	}
	if p == "" {
		return ""
	}
	if base != "" {
		if rel, err := filepath.Rel(base, p); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return p
}

func warningCodes(ws []domain.Warning) string {
	if len(ws) == 0 {
		return ""
	}
	codes := make([]string, 0, len(ws))
	for _, w := range ws {
		codes = append(codes, w.Code)
	}
	return strings.Join(codes, ",")
}

func reportForConfigError(base string, dryRun bool, err error) domain.RunReport {
	now := time.Now().UTC()
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rr := domain.RunReport{
		RunID:      uuid.NewString(),
		Base:       base,
		DryRun:     dryRun,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
			Warnings:  []domain.Warning{},
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(path string, rr domain.RunReport) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Dir(abs), filepath.Base(abs), b)
}
