package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds every outbound call a source makes.
const DefaultTimeout = 20 * time.Second

// Global proxy configuration keys
const (
	ConfigProxyURL     = "proxyUrl"
	ConfigProxyEnabled = "proxyEnabled"
)

// Transport owns the outbound HTTP resources of one source. Clients are
// built lazily so construction never performs I/O, and the proxy policy is
// re-read on every call so configuration edits apply without a reload.
type Transport struct {
	name    string
	sess    SettingsStore
	cfg     Config
	timeout time.Duration

	mu      sync.Mutex
	byProxy map[string]*http.Transport
	closed  bool
}

// NewTransport creates the transport for the named source.
func NewTransport(name string, sess SettingsStore, cfg Config) *Transport {
	return &Transport{
		name:    name,
		sess:    sess,
		cfg:     cfg,
		timeout: DefaultTimeout,
		byProxy: make(map[string]*http.Transport),
	}
}

// WithTimeout overrides the client timeout.
func (t *Transport) WithTimeout(d time.Duration) *Transport {
	t.timeout = d
	return t
}

// Client returns an HTTP client honoring the source's proxy policy.
func (t *Transport) Client(ctx context.Context) (*http.Client, error) {
	proxy, err := t.proxyFor(ctx)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, fmt.Errorf("%s transport is closed", t.name)
	}

	key := ""
	if proxy != nil {
		key = proxy.String()
	}
	rt, ok := t.byProxy[key]
	if !ok {
		rt = http.DefaultTransport.(*http.Transport).Clone()
		if proxy != nil {
			rt.Proxy = http.ProxyURL(proxy)
		} else {
			rt.Proxy = nil
		}
		t.byProxy[key] = rt
	}

	return &http.Client{Transport: rt, Timeout: t.timeout}, nil
}

// proxyFor resolves the proxy URL. A proxy is used only when enabled
// globally, configured, and enabled for this source.
func (t *Transport) proxyFor(ctx context.Context) (*url.URL, error) {
	if t.cfg == nil {
		return nil, nil
	}
	proxyURL := strings.TrimSpace(t.cfg.Get(ctx, ConfigProxyURL, ""))
	enabled := strings.EqualFold(t.cfg.Get(ctx, ConfigProxyEnabled, "false"), "true")
	if !enabled || proxyURL == "" || t.sess == nil {
		return nil, nil
	}

	settings, err := t.sess.AllSourceSettings(ctx)
	if err != nil {
		zap.S().Named(t.name).Warnw("could not read source settings for proxy policy", "error", err)
		return nil, nil
	}
	useProxy := false
	for _, s := range settings {
		if s.ProviderName == t.name {
			useProxy = s.UseProxy
			break
		}
	}
	if !useProxy {
		return nil, nil
	}

	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, Unconfigured(t.name, fmt.Sprintf("invalid proxy url %q", proxyURL))
	}
	return parsed, nil
}

// Close drops idle connections. Later calls are no-ops.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	for _, rt := range t.byProxy {
		rt.CloseIdleConnections()
	}
	t.byProxy = nil
	t.closed = true
	return nil
}

// CheckStatus converts non-2xx responses into an upstream failure.
func CheckStatus(name string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return UpstreamFailure(name, resp.StatusCode)
}

// Status texts reported by connectivity checks
const (
	StatusConnected   = "connected"
	StatusCheckFailed = "check failed"
)

// StatusFromCode renders a connectivity probe outcome.
func StatusFromCode(code, want int) string {
	if code == want {
		return StatusConnected
	}
	if code == http.StatusUnauthorized {
		return "connection failed (invalid API key)"
	}
	return fmt.Sprintf("connection failed (status code: %d)", code)
}

// StatusFromError renders a failed connectivity probe.
func StatusFromError(err error) string {
	var perr *ProviderError
	if errors.As(err, &perr) && perr.Code == CodeUnconfigured {
		return "not configured: " + perr.Message
	}
	return "connection failed: " + err.Error()
}
