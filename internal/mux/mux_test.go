package mux

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestArgs_StreamCopyAndOverwrite(t *testing.T) {
	got := Args("v.m4s", "a.m4s", "out.mp4")
	want := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error", "-y",
		"-i", "v.m4s", "-i", "a.m4s",
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "copy", "-c:a", "copy",
		"out.mp4",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("参数不符合预期：\n got=%v\nwant=%v", got, want)
	}
}

func TestIsMergeFailure(t *testing.T) {
	me := &MergeError{ExitCode: 1, Stderr: "Invalid data"}
	if !IsMergeFailure(me) {
		t.Fatalf("MergeError 应被识别")
	}
	if !IsMergeFailure(fmt.Errorf("包装：%w", me)) {
		t.Fatalf("包装后的 MergeError 应被识别")
	}
	if IsMergeFailure(errors.New("exec: not found")) {
		t.Fatalf("普通错误不应被识别为合并失败")
	}
	if !strings.Contains(me.Error(), "退出码 1") || !strings.Contains(me.Error(), "Invalid data") {
		t.Fatalf("错误信息应包含退出码与 stderr：%q", me.Error())
	}
}

func TestTail_KeepsUTF8Boundary(t *testing.T) {
	s := strings.Repeat("错", 10) // 每个字符 3 字节
	got := tail(s, 7)
	if !strings.HasPrefix(got, "错") || len(got) != 6 {
		t.Fatalf("截断结果不符合预期：%q", got)
	}
	if tail("  short \n", 100) != "short" {
		t.Fatalf("短字符串应原样（去空白）返回")
	}
}
