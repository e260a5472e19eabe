package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := RunReport{
		Base:       "/abs/base",
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []ItemResult{
			{WorkID: "BV2", Episode: "c_1", Status: StatusSkipped},
			{Status: StatusFailed, ErrorCode: ErrCodeInputUnreadable}, // 合成项
			{WorkID: "BV1", Episode: "c_2", Status: StatusQuarantined},
			{WorkID: "BV1", Episode: "c_1", Status: StatusMerged},
		},
	}

	r.Finalize()

	got := []string{r.Items[0].Key(), r.Items[1].Key(), r.Items[2].Key(), r.Items[3].Key()}
	want := []string{"BV1/c_1", "BV1/c_2", "BV2/c_1", ""}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("items 排序不符合契约：got=%v want=%v", got, want)
		}
	}
	if r.Summary.Merged != 1 || r.Summary.Quarantined != 1 || r.Summary.Skipped != 1 || r.Summary.Failed != 1 {
		t.Fatalf("summary 统计不正确：%+v", r.Summary)
	}
	for _, it := range r.Items {
		if it.Warnings == nil {
			t.Fatalf("warnings 不应为 nil（JSON 需输出 []）：%+v", it)
		}
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestRunReport_MarshalEmptyItems(t *testing.T) {
	b, err := json.Marshal(RunReport{})
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte(`"items":[]`)) {
		t.Fatalf("空 items 应输出 []：%s", string(b))
	}
}

func TestParseBVID(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"BV1xx411c7mD", true},
		{" BV1GJ411x7h7 ", true},
		{"bv1xx411c7mD", false},
		{"BV1xx411c7m", false},
		{"", false},
		{"av170001", false},
	}
	for _, c := range cases {
		_, ok := ParseBVID(c.in)
		if ok != c.ok {
			t.Fatalf("ParseBVID(%q) ok=%v，期望 %v", c.in, ok, c.ok)
		}
	}
}
