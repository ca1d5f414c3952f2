package so360

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"

	"github.com/Digital-Shane/mediameta/internal/provider"
	"github.com/Digital-Shane/mediameta/internal/provider/providertest"
)

const frierenSearch = `so.jsonp_video_search_result({"data":{"result":{"res":[
{"title":"葬送的芙莉莲","play_link_obj":{"play_link":"https://www.360kan.com/ct/Pb8ubH7lRmbrMn.html"}},
{"title":"芙莉莲 剧场版","play_link_obj":{"play_link":"https://www.360kan.com/mv/Q4Rw=.html"}},
{"title":"下架","play_link_obj":{"play_link":"https://www.360kan.com/tv/gone.html"}},
{"title":"空页","play_link_obj":{"play_link":"https://www.360kan.com/va/empty.html"}},
{"title":"无链接"},
{"title":"外链","play_link_obj":{"play_link":"https://v.qq.com/x/cover/abc.html"}}
]}}})`

const seriesPage = `<html><head>
<script>var other = 1;</script>
<script>window.g_initialData = {"coverInfo":{"coverInfo":{"id":"Pb8ubH7lRmbrMn","title":"葬送的芙莉莲","sub_title":"Frieren","description":"勇者一行人击败魔王之后。","cover":"https://p.ssl.qhimg.com/f.jpg","year":"2023","cat":"动漫,日本"}}};</script>
</head><body></body></html>`

const moviePage = `<html><head>
<script>window.g_initialData = {"coverInfo":{"coverInfo":{"id":"Q4Rw=","title":"芙莉莲 剧场版","cat":"电影,日本"}}};</script>
</head><body></body></html>`

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("missing User-Agent header")
		}
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, "<html></html>")
		case "/search/index":
			if r.URL.Query().Get("from") != "so_video" {
				t.Errorf("search from = %q", r.URL.Query().Get("from"))
			}
			switch r.URL.Query().Get("kw") {
			case "frieren":
				fmt.Fprint(w, frierenSearch)
			case "boom":
				w.WriteHeader(http.StatusBadGateway)
			default:
				fmt.Fprint(w, `{"data":{"result":{"res":[]}}}`)
			}
		case "/ct/Pb8ubH7lRmbrMn.html":
			fmt.Fprint(w, seriesPage)
		case "/mv/Q4Rw=.html":
			fmt.Fprint(w, moviePage)
		case "/va/empty.html":
			fmt.Fprint(w, "<html><script>var x = 1;</script></html>")
		case "/tv/down.html":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	p := New(providertest.NewSession(), providertest.Config{}).(*Provider)
	p.apiBase = server.URL
	p.webBase = server.URL
	t.Cleanup(func() { _ = p.Close() })
	return p
}

var (
	seriesRecord = provider.Record{
		Provider:  "360",
		ID:        "ct_Pb8ubH7lRmbrMn",
		SourceID:  "ct_Pb8ubH7lRmbrMn",
		Title:     "葬送的芙莉莲",
		ImageURL:  "https://p.ssl.qhimg.com/f.jpg",
		Details:   "勇者一行人击败魔王之后。",
		AliasesCN: []string{"Frieren"},
	}
	movieRecord = provider.Record{
		Provider: "360",
		ID:       "mv_Q4Rw=",
		SourceID: "mv_Q4Rw=",
		Title:    "芙莉莲 剧场版",
	}
)

func TestSearch(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		keyword   string
		mediaType provider.MediaType
		want      []provider.Record
	}{
		{"all", "frieren", provider.MediaTypeAny, []provider.Record{seriesRecord, movieRecord}},
		{"tv only", "frieren", provider.MediaTypeTV, []provider.Record{seriesRecord}},
		{"movie only", "frieren", provider.MediaTypeMovie, []provider.Record{movieRecord}},
		{"no hits", "nothing", provider.MediaTypeAny, []provider.Record{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Search(ctx, tt.keyword, provider.User{}, tt.mediaType)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Search() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := p.Search(ctx, "boom", provider.User{}, provider.MediaTypeAny); !provider.IsUpstreamStatus(err, http.StatusBadGateway) {
		t.Errorf("Search(boom) error = %v, want upstream 502", err)
	}
}

func TestDetails(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	got, err := p.Details(ctx, "ct_Pb8ubH7lRmbrMn", provider.User{}, provider.MediaTypeTV)
	if err != nil {
		t.Fatalf("Details() error = %v", err)
	}
	if diff := cmp.Diff(&seriesRecord, got); diff != "" {
		t.Errorf("Details() mismatch (-want +got):\n%s", diff)
	}

	for _, id := range []string{"tv_gone", "va_empty"} {
		if got, err := p.Details(ctx, id, provider.User{}, provider.MediaTypeAny); err != nil || got != nil {
			t.Errorf("Details(%s) = %v, %v, want nil, nil", id, got, err)
		}
	}

	if _, err := p.Details(ctx, "tv_down", provider.User{}, provider.MediaTypeAny); !provider.IsUpstreamStatus(err, http.StatusServiceUnavailable) {
		t.Errorf("Details(tv_down) error = %v, want upstream 503", err)
	}
	for _, id := range []string{"", "Pb8ubH7lRmbrMn", "xx_abc", "tv_", "tv_a/b", "tv_x/tv/abc"} {
		if _, err := p.Details(ctx, id, provider.User{}, provider.MediaTypeAny); !errors.Is(err, provider.ErrInvalidRequest) {
			t.Errorf("Details(%q) error = %v, want invalid request", id, err)
		}
	}
}

func TestSearchAliases(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	got, err := p.SearchAliases(ctx, "frieren", provider.User{})
	if err != nil {
		t.Fatalf("SearchAliases() error = %v", err)
	}
	if diff := cmp.Diff([]string{"Frieren", "葬送的芙莉莲"}, got.Sorted()); diff != "" {
		t.Errorf("SearchAliases() mismatch (-want +got):\n%s", diff)
	}

	for _, keyword := range []string{"nothing", "boom"} {
		if got, err := p.SearchAliases(ctx, keyword, provider.User{}); err != nil || len(got) != 0 {
			t.Errorf("SearchAliases(%s) = %v, %v, want empty", keyword, got, err)
		}
	}
}

func TestConnectivityAndActions(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	if got := p.CheckConnectivity(ctx); got != provider.StatusConnected {
		t.Errorf("CheckConnectivity() = %q", got)
	}
	p.webBase += "/tv/down.html"
	if got := p.CheckConnectivity(ctx); got != "connection failed (status code: 503)" {
		t.Errorf("CheckConnectivity() against a failing page = %q", got)
	}
	if _, err := p.ExecuteAction(ctx, "get_comments", nil, provider.User{}, nil); !errors.Is(err, provider.ErrUnsupportedAction) {
		t.Errorf("ExecuteAction() error = %v", err)
	}
}

func TestTrimJSONP(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{`so.jsonp_video_search_result({"a":1})`, `{"a":1}`},
		{" so.jsonp_video_search_result({\"a\":1});\n", `{"a":1}`},
		{`other({"a":1})`, `other({"a":1})`},
	}
	for _, tt := range tests {
		if got := string(trimJSONP([]byte(tt.in), searchCallback)); got != tt.want {
			t.Errorf("trimJSONP(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCoverInfoMediaType(t *testing.T) {
	tests := []struct {
		cat  string
		want provider.MediaType
	}{
		{"", provider.MediaTypeAny},
		{"电影,美国", provider.MediaTypeMovie},
		{"动漫,日本", provider.MediaTypeTV},
		{"电视剧,中国大陆", provider.MediaTypeTV},
	}
	for _, tt := range tests {
		if got := (coverInfo{Cat: tt.cat}).mediaType(); got != tt.want {
			t.Errorf("mediaType(%q) = %q, want %q", tt.cat, got, tt.want)
		}
	}
}

func TestParseCoverInfo_MalformedData(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<script>window.g_initialData = {"coverInfo": nope};</script>`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := parseCoverInfo(doc); err == nil {
		t.Error("parseCoverInfo() accepted malformed data")
	}
}
