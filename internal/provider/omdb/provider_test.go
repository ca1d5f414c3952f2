package omdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Digital-Shane/mediameta/internal/provider"
	"github.com/Digital-Shane/mediameta/internal/provider/providertest"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	resp := &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp
}

const interstellar = `{
	"Title": "Interstellar",
	"Year": "2014",
	"Runtime": "169 min",
	"Genre": "Adventure, Drama, Sci-Fi",
	"Plot": "A team of explorers travel through a wormhole in space.",
	"Language": "English",
	"Country": "USA",
	"imdbRating": "8.6",
	"imdbID": "tt0816692",
	"Type": "movie",
	"Response": "True"
}`

const notFound = `{"Response": "False", "Error": "Movie not found!"}`

func newTestProvider(t *testing.T, cfg providertest.Config, fn roundTripFunc) *Provider {
	t.Helper()
	p := New(providertest.NewSession(), cfg).(*Provider)
	p.httpClient = func(context.Context) (*http.Client, error) {
		return &http.Client{Transport: fn}, nil
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestSearch(t *testing.T) {
	var queries []string
	p := newTestProvider(t, providertest.Config{ConfigAPIKey: "testing"}, func(req *http.Request) (*http.Response, error) {
		queries = append(queries, req.URL.Query().Get("t"))
		if req.URL.Query().Get("t") == "Interstellar" {
			return jsonResponse(http.StatusOK, interstellar), nil
		}
		return jsonResponse(http.StatusOK, notFound), nil
	})
	ctx := context.Background()

	got, err := p.Search(ctx, " Interstellar ", provider.User{}, provider.MediaTypeMovie)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []provider.Record{{
		Provider: "omdb",
		ID:       "tt0816692",
		SourceID: "tt0816692",
		ImdbID:   "tt0816692",
		Title:    "Interstellar",
		Details:  "Year: 2014",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Search() mismatch (-want +got):\n%s", diff)
	}

	empty, err := p.Search(ctx, "nothing", provider.User{}, provider.MediaTypeMovie)
	if err != nil || len(empty) != 0 {
		t.Errorf("Search(nothing) = %v, %v, want empty", empty, err)
	}
	if diff := cmp.Diff([]string{"Interstellar", "nothing"}, queries); diff != "" {
		t.Errorf("queries mismatch (-want +got):\n%s", diff)
	}
}

func TestDetails(t *testing.T) {
	p := newTestProvider(t, providertest.Config{ConfigAPIKey: "testing"}, func(req *http.Request) (*http.Response, error) {
		if req.URL.Query().Get("i") == "tt0816692" {
			return jsonResponse(http.StatusOK, interstellar), nil
		}
		return jsonResponse(http.StatusOK, `{"Response": "False", "Error": "Incorrect IMDb ID."}`), nil
	})
	ctx := context.Background()

	got, err := p.Details(ctx, "tt0816692", provider.User{}, provider.MediaTypeAny)
	if err != nil {
		t.Fatalf("Details() error = %v", err)
	}
	want := &provider.Record{
		Provider: "omdb",
		ID:       "tt0816692",
		SourceID: "tt0816692",
		ImdbID:   "tt0816692",
		Title:    "Interstellar",
		Details:  "A team of explorers travel through a wormhole in space.",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Details() mismatch (-want +got):\n%s", diff)
	}

	missing, err := p.Details(ctx, "tt0000000", provider.User{}, provider.MediaTypeAny)
	if err != nil || missing != nil {
		t.Errorf("Details(unknown) = %v, %v, want nil, nil", missing, err)
	}

	if _, err := p.Details(ctx, "12", provider.User{}, provider.MediaTypeAny); !errors.Is(err, provider.ErrInvalidRequest) {
		t.Errorf("Details(12) error = %v, want invalid request", err)
	}
}

func TestRequiresAPIKey(t *testing.T) {
	called := false
	p := newTestProvider(t, providertest.Config{}, func(*http.Request) (*http.Response, error) {
		called = true
		return jsonResponse(http.StatusOK, interstellar), nil
	})

	if _, err := p.Search(context.Background(), "x", provider.User{}, provider.MediaTypeAny); !errors.Is(err, provider.ErrUnconfigured) {
		t.Errorf("Search() error = %v, want unconfigured", err)
	}
	if got := p.CheckConnectivity(context.Background()); !strings.HasPrefix(got, "not configured") {
		t.Errorf("CheckConnectivity() = %q", got)
	}
	if called {
		t.Error("request sent without an API key")
	}
}

func TestCheckConnectivity(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"connected", interstellar, provider.StatusConnected},
		{"invalid key", `{"Response": "False", "Error": "Invalid API key!"}`, "connection failed (invalid API key)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, providertest.Config{ConfigAPIKey: "testing"}, func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, tt.body), nil
			})
			if got := p.CheckConnectivity(context.Background()); got != tt.want {
				t.Errorf("CheckConnectivity() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"Movie not found!", provider.ErrNotFound},
		{"Invalid API key!", provider.ErrUpstreamFailure},
		{"Request limit reached!", provider.ErrUpstreamFailure},
		{"connection reset", provider.ErrUpstreamFailure},
	}
	for _, tt := range tests {
		if err := mapError(errors.New(tt.msg)); !errors.Is(err, tt.want) {
			t.Errorf("mapError(%q) = %v, want %v", tt.msg, err, tt.want)
		}
	}
	if err := mapError(context.Canceled); !errors.Is(err, context.Canceled) {
		t.Errorf("mapError(canceled) = %v", err)
	}
}

func TestAliasesAndActions(t *testing.T) {
	p := newTestProvider(t, providertest.Config{ConfigAPIKey: "testing"}, nil)
	aliases, err := p.SearchAliases(context.Background(), "x", provider.User{})
	if err != nil || len(aliases) != 0 {
		t.Errorf("SearchAliases() = %v, %v", aliases, err)
	}
	if _, err := p.ExecuteAction(context.Background(), "x", nil, provider.User{}, nil); !errors.Is(err, provider.ErrUnsupportedAction) {
		t.Errorf("ExecuteAction() error = %v", err)
	}
}
