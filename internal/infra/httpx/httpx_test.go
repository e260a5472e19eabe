package httpx

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestNewTransport_ProxyDisablesKeepAlive(t *testing.T) {
	tr, err := NewTransport("http://127.0.0.1:8080")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if tr.Base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !tr.Base.DisableKeepAlives || !tr.DisableKeepAlives {
		t.Fatalf("代理模式应禁用 keep-alive")
	}
}

func TestNewTransport_NoProxyKeepsDefault(t *testing.T) {
	tr, err := NewTransport("  ")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if tr.Base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}
	if tr.Base.DisableKeepAlives {
		t.Fatalf("不期望禁用 keep-alive")
	}
}

func TestNewTransport_InvalidProxyURL(t *testing.T) {
	for _, p := range []string{"http://[::1", "127.0.0.1:8080"} {
		if _, err := NewTransport(p); err == nil {
			t.Fatalf("proxy=%q 期望错误，但得到 nil", p)
		}
	}
}

func TestTransport_SetsUAAndNoRetry(t *testing.T) {
	var hits int32
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		gotUA.Store(r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr, err := NewTransport("")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	c := &http.Client{Transport: tr}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("状态码应原样返回：%d", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("不应重试，实际请求 %d 次", n)
	}
	if ua, _ := gotUA.Load().(string); ua == "" || ua == "Go-http-client/1.1" {
		t.Fatalf("期望随机 UA，实际 %q", ua)
	}
}

func TestIsLibraryUA(t *testing.T) {
	cases := map[string]bool{
		"":                                  true,
		"go-resty/3.0.0-beta.3 (https://resty.dev)": true,
		"Go-http-client/1.1":                true,
		"Mozilla/5.0 (X11; Linux x86_64)":   false,
	}
	for ua, want := range cases {
		if got := isLibraryUA(ua); got != want {
			t.Fatalf("isLibraryUA(%q)=%v 期望 %v", ua, got, want)
		}
	}
}
