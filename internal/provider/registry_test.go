package provider_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Digital-Shane/mediameta/internal/provider"
	"github.com/Digital-Shane/mediameta/internal/provider/providertest"
)

// newObservedRegistry returns a registry whose warnings and errors are
// captured for assertions.
func newObservedRegistry(sess provider.Session, cfg provider.Config, discover func() []provider.Descriptor) (*provider.Registry, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return provider.NewRegistry(sess, cfg, discover, zap.New(core).Sugar()), logs
}

// freshCatalog builds new fake sources on every discovery so reloads get
// distinct instances. built collects every instance handed out.
func freshCatalog(built *[]*providertest.Source, names ...string) func() []provider.Descriptor {
	return func() []provider.Descriptor {
		descs := make([]provider.Descriptor, 0, len(names))
		for _, name := range names {
			descs = append(descs, provider.Descriptor{
				Name: name,
				New: func(provider.Session, provider.Config) provider.Source {
					src := &providertest.Source{SourceName: name}
					*built = append(*built, src)
					return src
				},
			})
		}
		return descs
	}
}

func TestRegistry_ReloadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sess := providertest.NewSession()
	var built []*providertest.Source
	reg, _ := newObservedRegistry(sess, providertest.Config{}, freshCatalog(&built, "tmdb", "bangumi"))

	reg.Reload(ctx)
	firstNames := reg.LoadedNames()
	firstSettings := reg.Settings()

	reg.Reload(ctx)
	if diff := cmp.Diff(firstNames, reg.LoadedNames()); diff != "" {
		t.Errorf("LoadedNames() changed across reloads (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(firstSettings, reg.Settings()); diff != "" {
		t.Errorf("Settings() changed across reloads (-first +second):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"bangumi", "tmdb"}, firstNames); diff != "" {
		t.Errorf("LoadedNames() mismatch (-want +got):\n%s", diff)
	}

	// The first generation is closed once the second is in place.
	if len(built) != 4 {
		t.Fatalf("built %d instances, want 4", len(built))
	}
	for _, src := range built[:2] {
		if src.Closed() != 1 {
			t.Errorf("first generation %s closed %d times, want 1", src.SourceName, src.Closed())
		}
	}
	for _, src := range built[2:] {
		if src.Closed() != 0 {
			t.Errorf("live instance %s closed %d times, want 0", src.SourceName, src.Closed())
		}
		if got, _ := reg.Get(src.SourceName); got != provider.Source(src) {
			t.Errorf("Get(%s) did not return the latest instance", src.SourceName)
		}
	}
}

func TestRegistry_ReloadSkipsBadDescriptors(t *testing.T) {
	good := &providertest.Source{SourceName: "good"}
	discover := func() []provider.Descriptor {
		return []provider.Descriptor{
			{Name: "", New: func(provider.Session, provider.Config) provider.Source { return good }},
			{Name: "nofactory"},
			{Name: "_template", New: func(provider.Session, provider.Config) provider.Source { return good }},
			{Name: "base", New: func(provider.Session, provider.Config) provider.Source { return good }},
			{Name: "panics", New: func(provider.Session, provider.Config) provider.Source { panic("boom") }},
			{Name: "nil", New: func(provider.Session, provider.Config) provider.Source { return nil }},
			providertest.Descriptor(good),
		}
	}
	reg, logs := newObservedRegistry(providertest.NewSession(), providertest.Config{}, discover)

	reg.Reload(context.Background())

	if diff := cmp.Diff([]string{"good"}, reg.LoadedNames()); diff != "" {
		t.Errorf("LoadedNames() mismatch (-want +got):\n%s", diff)
	}
	if n := logs.FilterMessage("failed to instantiate metadata source").Len(); n != 2 {
		t.Errorf("instantiate failures logged = %d, want 2", n)
	}
}

func TestRegistry_ReloadSurvivesDiscoveryPanic(t *testing.T) {
	reg, logs := newObservedRegistry(providertest.NewSession(), providertest.Config{}, func() []provider.Descriptor {
		panic("catalog exploded")
	})

	reg.Reload(context.Background())

	if names := reg.LoadedNames(); len(names) != 0 {
		t.Errorf("LoadedNames() = %v, want empty", names)
	}
	if logs.FilterMessage("metadata source discovery panicked").Len() != 1 {
		t.Error("discovery panic was not logged")
	}
}

func TestRegistry_DuplicateNameLastWins(t *testing.T) {
	first := &providertest.Source{SourceName: "tmdb"}
	second := &providertest.Source{SourceName: "tmdb"}
	discover := func() []provider.Descriptor {
		return []provider.Descriptor{providertest.Descriptor(first), providertest.Descriptor(second)}
	}
	reg, logs := newObservedRegistry(providertest.NewSession(), providertest.Config{}, discover)

	reg.Reload(context.Background())

	if diff := cmp.Diff([]string{"tmdb"}, reg.LoadedNames()); diff != "" {
		t.Errorf("LoadedNames() mismatch (-want +got):\n%s", diff)
	}
	got, _ := reg.Get("tmdb")
	if got != provider.Source(second) {
		t.Error("Get(tmdb) returned the first discovered instance, want the last")
	}
	if logs.FilterMessage("duplicate metadata source discovered, overriding").Len() != 1 {
		t.Error("duplicate name warning was not logged")
	}
}

func TestRegistry_ReloadWithBrokenSettingsStore(t *testing.T) {
	sess := providertest.NewSession()
	sess.Err = errors.New("database locked")
	var built []*providertest.Source
	reg, logs := newObservedRegistry(sess, providertest.Config{}, freshCatalog(&built, "tvdb"))

	reg.Reload(context.Background())

	if diff := cmp.Diff([]string{"tvdb"}, reg.LoadedNames()); diff != "" {
		t.Errorf("LoadedNames() mismatch (-want +got):\n%s", diff)
	}
	if settings := reg.Settings(); len(settings) != 0 {
		t.Errorf("Settings() = %v, want empty", settings)
	}
	if logs.FilterMessage("failed to load metadata source settings").Len() != 1 {
		t.Error("settings read failure was not logged")
	}
}

func TestRegistry_SettingsFilteredToDiscovered(t *testing.T) {
	sess := providertest.NewSession()
	sess.Put(provider.SourceSetting{ProviderName: "retired", DisplayOrder: 1})
	var built []*providertest.Source
	reg, _ := newObservedRegistry(sess, providertest.Config{}, freshCatalog(&built, "imdb"))

	reg.Reload(context.Background())

	want := []provider.SourceSetting{{ProviderName: "imdb", DisplayOrder: 2}}
	if diff := cmp.Diff(want, reg.Settings()); diff != "" {
		t.Errorf("Settings() mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_DispatchUnknownSource(t *testing.T) {
	ctx := context.Background()
	reg, _ := newObservedRegistry(providertest.NewSession(), providertest.Config{}, nil)
	reg.Reload(ctx)

	_, err := reg.Search(ctx, "nonexistent", "x", provider.User{}, provider.MediaTypeTV)
	if !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("Search() error = %v, want NotFound", err)
	}
	_, err = reg.Details(ctx, "nonexistent", "1", provider.User{}, provider.MediaTypeTV)
	if !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("Details() error = %v, want NotFound", err)
	}
	_, err = reg.ExecuteAction(ctx, "nonexistent", "ping", nil, provider.User{}, nil)
	if !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("ExecuteAction() error = %v, want NotFound", err)
	}
	_, err = reg.ProviderConfig(ctx, "nonexistent")
	if !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("ProviderConfig() error = %v, want NotFound", err)
	}
}

func TestRegistry_SearchErrorNormalization(t *testing.T) {
	tests := []struct {
		name     string
		search   func() ([]provider.Record, error)
		wantCode string
	}{
		{
			name:     "plain error becomes unexpected",
			search:   func() ([]provider.Record, error) { return nil, errors.New("socket closed") },
			wantCode: provider.CodeUnexpected,
		},
		{
			name:     "upstream failure keeps its code",
			search:   func() ([]provider.Record, error) { return nil, provider.UpstreamFailure("src", http.StatusBadGateway) },
			wantCode: provider.CodeUpstreamFailure,
		},
		{
			name:     "unconfigured keeps its code",
			search:   func() ([]provider.Record, error) { return nil, provider.Unconfigured("src", "API key missing") },
			wantCode: provider.CodeUnconfigured,
		},
		{
			name:     "panic becomes unexpected",
			search:   func() ([]provider.Record, error) { panic("nil map") },
			wantCode: provider.CodeUnexpected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			src := &providertest.Source{
				SourceName: "src",
				SearchFunc: func(context.Context, string, provider.User, provider.MediaType) ([]provider.Record, error) {
					return tt.search()
				},
			}
			reg, _ := newObservedRegistry(providertest.NewSession(), providertest.Config{}, func() []provider.Descriptor {
				return []provider.Descriptor{providertest.Descriptor(src)}
			})
			reg.Reload(ctx)

			_, err := reg.Search(ctx, "src", "x", provider.User{}, provider.MediaTypeMovie)
			var perr *provider.ProviderError
			if !errors.As(err, &perr) {
				t.Fatalf("Search() error = %v, want *ProviderError", err)
			}
			if perr.Code != tt.wantCode {
				t.Errorf("Search() code = %s, want %s", perr.Code, tt.wantCode)
			}
			if perr.Provider != "src" {
				t.Errorf("Search() provider = %q, want src", perr.Provider)
			}
		})
	}
}

func TestRegistry_DetailsAndActions(t *testing.T) {
	ctx := context.Background()
	src := &providertest.Source{
		SourceName: "tmdb",
		DetailsFunc: func(_ context.Context, id string, _ provider.User, _ provider.MediaType) (*provider.Record, error) {
			if id == "missing" {
				return nil, nil
			}
			return &provider.Record{Provider: "tmdb", ID: id, Title: "Frieren"}, nil
		},
		ActionFunc: func(_ context.Context, action string, payload map[string]any, _ provider.User, _ *http.Request) (any, error) {
			if action != "echo" {
				return nil, provider.UnsupportedAction("tmdb", action)
			}
			return payload["v"], nil
		},
	}
	reg, _ := newObservedRegistry(providertest.NewSession(), providertest.Config{}, func() []provider.Descriptor {
		return []provider.Descriptor{providertest.Descriptor(src)}
	})
	reg.Reload(ctx)

	record, err := reg.Details(ctx, "tmdb", "209867", provider.User{}, provider.MediaTypeTV)
	if err != nil {
		t.Fatalf("Details() error = %v, want nil", err)
	}
	if diff := cmp.Diff(&provider.Record{Provider: "tmdb", ID: "209867", Title: "Frieren"}, record); diff != "" {
		t.Errorf("Details() mismatch (-want +got):\n%s", diff)
	}

	record, err = reg.Details(ctx, "tmdb", "missing", provider.User{}, provider.MediaTypeTV)
	if err != nil || record != nil {
		t.Errorf("Details(missing) = %v, %v, want nil, nil", record, err)
	}

	got, err := reg.ExecuteAction(ctx, "tmdb", "echo", map[string]any{"v": 3}, provider.User{}, nil)
	if err != nil || got != 3 {
		t.Errorf("ExecuteAction(echo) = %v, %v, want 3, nil", got, err)
	}

	_, err = reg.ExecuteAction(ctx, "tmdb", "nope", nil, provider.User{}, nil)
	if !errors.Is(err, provider.ErrUnsupportedAction) {
		t.Errorf("ExecuteAction(nope) error = %v, want UnsupportedAction", err)
	}
}

// mappingSource adds episode mapping support to a fake source
type mappingSource struct {
	*providertest.Source
	calls []string
}

func (m *mappingSource) UpdateEpisodeMappings(_ context.Context, tvID int, groupID string, _ provider.User) error {
	m.calls = append(m.calls, groupID)
	if tvID < 0 {
		return errors.New("bad id")
	}
	return nil
}

func TestRegistry_UpdateTMDBMappings(t *testing.T) {
	ctx := context.Background()

	t.Run("tmdb not loaded", func(t *testing.T) {
		reg, logs := newObservedRegistry(providertest.NewSession(), providertest.Config{}, nil)
		reg.Reload(ctx)
		if err := reg.UpdateTMDBMappings(ctx, 1, "g", provider.User{}); err != nil {
			t.Errorf("UpdateTMDBMappings() error = %v, want nil", err)
		}
		if logs.Len() != 1 {
			t.Errorf("logged %d entries, want 1 warning", logs.Len())
		}
	})

	t.Run("tmdb without capability", func(t *testing.T) {
		src := &providertest.Source{SourceName: "tmdb"}
		reg, _ := newObservedRegistry(providertest.NewSession(), providertest.Config{}, func() []provider.Descriptor {
			return []provider.Descriptor{providertest.Descriptor(src)}
		})
		reg.Reload(ctx)
		if err := reg.UpdateTMDBMappings(ctx, 1, "g", provider.User{}); err != nil {
			t.Errorf("UpdateTMDBMappings() error = %v, want nil", err)
		}
	})

	t.Run("delegates to tmdb", func(t *testing.T) {
		src := &mappingSource{Source: &providertest.Source{SourceName: "tmdb"}}
		reg, _ := newObservedRegistry(providertest.NewSession(), providertest.Config{}, func() []provider.Descriptor {
			return []provider.Descriptor{{Name: "tmdb", New: func(provider.Session, provider.Config) provider.Source { return src }}}
		})
		reg.Reload(ctx)

		if err := reg.UpdateTMDBMappings(ctx, 1, "group-a", provider.User{}); err != nil {
			t.Errorf("UpdateTMDBMappings() error = %v, want nil", err)
		}
		err := reg.UpdateTMDBMappings(ctx, -1, "group-b", provider.User{})
		if !errors.Is(err, provider.ErrUnexpected) {
			t.Errorf("UpdateTMDBMappings() error = %v, want Unexpected", err)
		}
		if diff := cmp.Diff([]string{"group-a", "group-b"}, src.calls); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestRegistry_CloseIsBestEffort(t *testing.T) {
	a := &providertest.Source{SourceName: "a", CloseFunc: func() error { return errors.New("close failed") }}
	b := &providertest.Source{SourceName: "b"}
	c := &providertest.Source{SourceName: "c", CloseFunc: func() error { panic("close panicked") }}
	reg, logs := newObservedRegistry(providertest.NewSession(), providertest.Config{}, func() []provider.Descriptor {
		return []provider.Descriptor{providertest.Descriptor(a), providertest.Descriptor(b), providertest.Descriptor(c)}
	})
	reg.Reload(context.Background())

	reg.Close()

	for _, src := range []*providertest.Source{a, b, c} {
		if src.Closed() != 1 {
			t.Errorf("%s closed %d times, want 1", src.SourceName, src.Closed())
		}
	}
	if names := reg.LoadedNames(); len(names) != 0 {
		t.Errorf("LoadedNames() after Close = %v, want empty", names)
	}
	if n := logs.FilterMessage("error closing metadata source").Len(); n != 2 {
		t.Errorf("close failures logged = %d, want 2", n)
	}

	// A second close has nothing left to do.
	reg.Close()
	if b.Closed() != 1 {
		t.Errorf("b closed %d times after second Close, want 1", b.Closed())
	}
}

func TestCapabilitiesOf(t *testing.T) {
	plain := &providertest.Source{SourceName: "plain"}
	mapped := &mappingSource{Source: &providertest.Source{SourceName: "tmdb"}}

	if diff := cmp.Diff(provider.Capabilities{}, provider.CapabilitiesOf(plain)); diff != "" {
		t.Errorf("CapabilitiesOf(plain) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(provider.Capabilities{EpisodeMappings: true}, provider.CapabilitiesOf(mapped)); diff != "" {
		t.Errorf("CapabilitiesOf(mapped) mismatch (-want +got):\n%s", diff)
	}
}
