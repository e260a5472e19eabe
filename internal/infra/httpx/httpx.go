package httpx

import (
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Transport 给每个请求补上随机 UA，并在代理模式下禁止连接复用。
// 不做重试：请求失败直接返回给调用方。
type Transport struct {
	Base *http.Transport

	ua *uaPool

	// DisableKeepAlives 决定是否对 Request 设置 Close=true（额外保险）。
	// 真正禁用 keep-alive 依赖 Base.DisableKeepAlives。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	r := req.Clone(req.Context())
	if isLibraryUA(r.Header.Get("User-Agent")) {
		r.Header.Set("User-Agent", t.ua.random())
	}
	if t.DisableKeepAlives {
		r.Close = true
	}
	return t.Base.RoundTrip(r)
}

// isLibraryUA 判断 UA 是否为空或是 HTTP 库自带的默认值（resty 总会补一个）。
func isLibraryUA(ua string) bool {
	ua = strings.TrimSpace(ua)
	return ua == "" || strings.HasPrefix(ua, "go-resty/") || strings.HasPrefix(ua, "Go-http-client/")
}

// NewTransport 构造封面/页面请求使用的 RoundTripper（交给 resty.SetTransport）。
//
// 规则：
// - proxyURL 非空：走代理，且禁用 keep-alive（每请求新连接）
// - 内置 UA 池：未显式设置 UA（或只有库默认 UA）的请求随机选一个
func NewTransport(proxyURL string) (*Transport, error) {
	proxyURL = strings.TrimSpace(proxyURL)
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}

	disableKeepAlives := false
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("代理地址缺少 scheme 或 host")
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	return &Transport{
		Base:              base,
		ua:                globalUA,
		DisableKeepAlives: disableKeepAlives,
	}, nil
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	uas := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
