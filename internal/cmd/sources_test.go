package cmd

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

func sourceStatuses(t *testing.T, db string) map[string]provider.SourceStatus {
	t.Helper()
	out := mustExecute(t, db, "sources", "--json")
	rows := decodeJSON[[]provider.SourceStatus](t, out)
	byName := make(map[string]provider.SourceStatus, len(rows))
	for _, r := range rows {
		byName[r.ProviderName] = r
	}
	return byName
}

func TestSourcesCommand(t *testing.T) {
	db := useFakeCatalog(t)

	got := sourceStatuses(t, db)
	want := map[string]provider.SourceStatus{
		"alpha": {ProviderName: "alpha", DisplayOrder: 1, Status: provider.StatusConnected},
		"beta":  {ProviderName: "beta", DisplayOrder: 2, Status: "not configured: API key missing"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}

	table := mustExecute(t, db, "sources")
	for _, s := range []string{"alpha", "beta", "Aux Search", "not configured"} {
		if !strings.Contains(table, s) {
			t.Errorf("sources table missing %q:\n%s", s, table)
		}
	}
}

func TestSourcesSettingsCommands(t *testing.T) {
	db := useFakeCatalog(t)

	mustExecute(t, db, "sources", "enable", "beta")
	mustExecute(t, db, "sources", "proxy", "beta", "on")
	mustExecute(t, db, "sources", "order", "beta", "0")

	got := sourceStatuses(t, db)["beta"]
	want := provider.SourceStatus{
		ProviderName:       "beta",
		IsAuxSearchEnabled: true,
		DisplayOrder:       0,
		Status:             "not configured: API key missing",
		UseProxy:           true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("beta mismatch (-want +got):\n%s", diff)
	}

	mustExecute(t, db, "sources", "disable", "beta")
	if sourceStatuses(t, db)["beta"].IsAuxSearchEnabled {
		t.Error("beta still enabled after disable")
	}
}

func TestSourcesSettingsCommands_Errors(t *testing.T) {
	db := useFakeCatalog(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown source", []string{"sources", "enable", "nope"}},
		{"bad order", []string{"sources", "order", "alpha", "first"}},
		{"negative order", []string{"sources", "order", "alpha", "-1"}},
		{"bad switch", []string{"sources", "proxy", "alpha", "maybe"}},
		{"missing args", []string{"sources", "proxy", "alpha"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, db, tt.args...); err == nil {
				t.Errorf("%v succeeded, want error", tt.args)
			}
		})
	}
}

func TestSourcesConfigCommand(t *testing.T) {
	db := useFakeCatalog(t)
	if out := mustExecute(t, db, "sources", "config", "alpha"); strings.TrimSpace(out) != "{}" {
		t.Errorf("sources config alpha = %q, want {}", out)
	}
	if _, err := execute(t, db, "sources", "config", "nope"); err == nil {
		t.Error("sources config for an unknown source succeeded")
	}
}

func TestParseSwitch(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"on", true, false},
		{"true", true, false},
		{"off", false, false},
		{"0", false, false},
		{"maybe", false, true},
	}
	for _, tt := range tests {
		got, err := parseSwitch(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseSwitch(%q) = %v, %v", tt.in, got, err)
		}
	}
}
