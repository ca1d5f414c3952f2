package tvdb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dashotv/tvdb/openapi"
	"github.com/google/go-cmp/cmp"

	"github.com/Digital-Shane/mediameta/internal/provider"
	"github.com/Digital-Shane/mediameta/internal/provider/providertest"
)

// fakeTVDB serves the v4 API for the host tvdb.test. It is registered as
// the HTTP proxy, so it only sees requests that went through the proxy.
type fakeTVDB struct {
	mu       sync.Mutex
	requests []string
}

func (f *fakeTVDB) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.Host+r.URL.Path)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path != "/v4/login" && r.Header.Get("Authorization") != "Bearer tok" {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status":"failure"}`)
		return
	}
	switch r.URL.Path {
	case "/v4/login":
		fmt.Fprint(w, `{"data":{"token":"tok"},"status":"success"}`)
	case "/v4/search":
		fmt.Fprint(w, searchFixture)
	case "/v4/series/424536/extended":
		fmt.Fprint(w, seriesFixture)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"status":"failure"}`)
	}
}

func (f *fakeTVDB) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func TestSDKClient_UsesSourceProxy(t *testing.T) {
	fake := &fakeTVDB{}
	proxy := httptest.NewServer(fake)
	t.Cleanup(proxy.Close)

	sess := providertest.NewSession()
	sess.Put(provider.SourceSetting{ProviderName: "tvdb", UseProxy: true})
	cfg := providertest.Config{
		ConfigAPIKey:                "key",
		provider.ConfigProxyEnabled: "true",
		provider.ConfigProxyURL:     proxy.URL,
	}

	transport := provider.NewTransport(providerName, sess, cfg)
	p := NewWithLogin(cfg, sdkLogin(transportDoer{transport}, openapi.WithServerURL("http://tvdb.test/v4")))
	p.transport = transport
	t.Cleanup(func() { _ = p.Close() })
	ctx := context.Background()

	records, err := p.Search(ctx, "Frieren", provider.User{}, provider.MediaTypeAny)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(records) != 1 || records[0].ID != "424536" {
		t.Errorf("Search() = %+v, want the Frieren series", records)
	}

	record, err := p.Details(ctx, "424536", provider.User{}, provider.MediaTypeTV)
	if err != nil {
		t.Fatalf("Details() error = %v", err)
	}
	if record == nil || record.ImdbID != "tt22248376" {
		t.Errorf("Details() = %+v, want imdb id tt22248376", record)
	}

	missing, err := p.Details(ctx, "7", provider.User{}, provider.MediaTypeAny)
	if err != nil || missing != nil {
		t.Errorf("Details(7) = %v, %v, want nil, nil", missing, err)
	}

	want := []string{
		"POST tvdb.test/v4/login",
		"GET tvdb.test/v4/search",
		"GET tvdb.test/v4/series/424536/extended",
		"GET tvdb.test/v4/series/7/extended",
	}
	if diff := cmp.Diff(want, fake.seen()); diff != "" {
		t.Errorf("proxied requests mismatch (-want +got):\n%s", diff)
	}
}

func TestSDKLogin_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status":"failure"}`)
	}))
	t.Cleanup(server.Close)

	transport := provider.NewTransport(providerName, providertest.NewSession(), providertest.Config{})
	t.Cleanup(func() { _ = transport.Close() })

	login := sdkLogin(transportDoer{transport}, openapi.WithServerURL(server.URL))
	_, err := login("bad")
	if !provider.IsUpstreamStatus(mapError(err), http.StatusUnauthorized) {
		t.Errorf("login error = %v, want upstream 401", err)
	}
}
