package naming

import (
	"testing"

	"github.com/John-Robertt/BiliMerge/internal/domain"
)

func TestSanitize_RemovesForbiddenChars(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"第1集: 开始", "第1集 开始"},
		{`a/b\c?d<e>f*g:h|i`, "abcdefghi"},
		{"正常标题", "正常标题"},
		{"  保留空白  ", "  保留空白  "},
		{"???", domain.PlaceholderTitle},
		{"", domain.PlaceholderTitle},
	}
	for _, c := range cases {
		if got := Sanitize(c.in); got != c.want {
			t.Fatalf("Sanitize(%q)=%q，期望 %q", c.in, got, c.want)
		}
	}
}

func TestSanitize_RemovalCanCollapseDistinctNames(t *testing.T) {
	// 删除策略会让不同标题得到同一名称：这里锁定该行为，防止被“悄悄修复”。
	a := Sanitize("PV: 正式版")
	b := Sanitize("PV 正式版")
	if a != b {
		t.Fatalf("期望两者清洗后相同，实际 %q vs %q", a, b)
	}

	ct := NewCollisionTracker()
	if _, dup := ct.Claim("/out/up/"+a+".mp4", "BV1/c_1"); dup {
		t.Fatalf("首次登记不应冲突")
	}
	prev, dup := ct.Claim("/out/up/"+b+".mp4", "BV1/c_2")
	if !dup || prev != "BV1/c_1" {
		t.Fatalf("期望检测到冲突且 prev=BV1/c_1，实际 dup=%v prev=%q", dup, prev)
	}
}

func TestCollisionTracker_SameOwnerNotCollision(t *testing.T) {
	ct := NewCollisionTracker()
	ct.Claim("/out/x.mp4", "BV1/c_1")
	if _, dup := ct.Claim("/out/x.mp4", "BV1/c_1"); dup {
		t.Fatalf("同一 owner 重复登记不应视为冲突")
	}
}
