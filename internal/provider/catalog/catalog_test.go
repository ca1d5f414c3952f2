package catalog

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Digital-Shane/mediameta/internal/provider"
	"github.com/Digital-Shane/mediameta/internal/provider/providertest"
)

func TestBuiltin(t *testing.T) {
	descriptors := Builtin()

	var names []string
	for _, desc := range descriptors {
		if err := provider.ValidateDescriptor(desc); err != nil {
			t.Errorf("ValidateDescriptor(%s) error = %v", desc.Name, err)
		}
		names = append(names, desc.Name)
	}
	want := []string{"360", "bangumi", "douban", "imdb", "omdb", "tmdb", "tvdb"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Builtin() names mismatch (-want +got):\n%s", diff)
	}
}

// Every built-in source must construct without I/O and report the name it
// was registered under.
func TestBuiltinConstruct(t *testing.T) {
	sess := providertest.NewSession()
	cfg := providertest.Config{}
	for _, desc := range Builtin() {
		src := desc.New(sess, cfg)
		if src.Name() != desc.Name {
			t.Errorf("source %q reports name %q", desc.Name, src.Name())
		}
		if err := src.Close(); err != nil {
			t.Errorf("Close(%s) error = %v", desc.Name, err)
		}
		if err := src.Close(); err != nil {
			t.Errorf("second Close(%s) error = %v", desc.Name, err)
		}
	}
}

func TestBuiltinRegistry(t *testing.T) {
	sess := providertest.NewSession()
	registry := provider.NewRegistry(sess, providertest.Config{}, Builtin, nil)
	registry.Reload(context.Background())
	defer registry.Close()

	if diff := cmp.Diff([]string{"360", "bangumi", "douban", "imdb", "omdb", "tmdb", "tvdb"}, registry.LoadedNames()); diff != "" {
		t.Errorf("LoadedNames() mismatch (-want +got):\n%s", diff)
	}

	caps := provider.CapabilitiesOf(mustGet(t, registry, "bangumi"))
	if !caps.Routes {
		t.Errorf("bangumi capabilities = %+v, want routes", caps)
	}
	caps = provider.CapabilitiesOf(mustGet(t, registry, "tmdb"))
	if !caps.EpisodeMappings {
		t.Errorf("tmdb capabilities = %+v, want episode mappings", caps)
	}

	// Every built-in source resolves its configuration.
	for _, name := range registry.LoadedNames() {
		if _, err := registry.ProviderConfig(context.Background(), name); err != nil {
			t.Errorf("ProviderConfig(%s) error = %v", name, err)
		}
	}
	cfg, _ := registry.ProviderConfig(context.Background(), "360")
	if diff := cmp.Diff(map[string]string{}, cfg); diff != "" {
		t.Errorf("ProviderConfig(360) mismatch (-want +got):\n%s", diff)
	}
}

func mustGet(t *testing.T, registry *provider.Registry, name string) provider.Source {
	t.Helper()
	src, ok := registry.Get(name)
	if !ok {
		t.Fatalf("source %q not loaded", name)
	}
	return src
}
