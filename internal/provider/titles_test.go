package provider

import "testing"

func TestCleanMovieTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"Frieren", "Frieren"},
		{"劇場版 呪術廻戦 0", "呪術廻戦 0"},
		{"Jujutsu Kaisen 0: The Movie", "Jujutsu Kaisen 0"},
		{"The Movie: Mugen Train", "Mugen Train"},
		{"Demon Slayer the movie  - ", "Demon Slayer"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := CleanMovieTitle(tt.in); got != tt.want {
				t.Errorf("CleanMovieTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestContainsCJK(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Sousou no Frieren", false},
		{"葬送的芙莉莲", true},
		{"ふりーれん", true},
		{"フリーレン", true},
		{"", false},
	}

	for _, tt := range tests {
		if got := ContainsCJK(tt.in); got != tt.want {
			t.Errorf("ContainsCJK(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestYear(t *testing.T) {
	if got := Year("2023-09-29"); got != "2023" {
		t.Errorf("Year() = %q, want 2023", got)
	}
	if got := Year("20"); got != "" {
		t.Errorf("Year() = %q, want empty", got)
	}
}

func TestPayloadFields(t *testing.T) {
	payload := map[string]any{
		"tmdbId":  float64(209867),
		"groupId": " 5f1b ",
		"count":   "12",
		"bad":     "x",
		"native":  7,
	}

	if got := PayloadString(payload, "tmdbId"); got != "209867" {
		t.Errorf("PayloadString(tmdbId) = %q, want 209867", got)
	}
	if got := PayloadString(payload, "groupId"); got != "5f1b" {
		t.Errorf("PayloadString(groupId) = %q, want 5f1b", got)
	}
	if got := PayloadString(payload, "missing"); got != "" {
		t.Errorf("PayloadString(missing) = %q, want empty", got)
	}
	if got := PayloadInt(payload, "tmdbId"); got != 209867 {
		t.Errorf("PayloadInt(tmdbId) = %d, want 209867", got)
	}
	if got := PayloadInt(payload, "count"); got != 12 {
		t.Errorf("PayloadInt(count) = %d, want 12", got)
	}
	if got := PayloadInt(payload, "bad"); got != 0 {
		t.Errorf("PayloadInt(bad) = %d, want 0", got)
	}
	if got := PayloadInt(payload, "native"); got != 7 {
		t.Errorf("PayloadInt(native) = %d, want 7", got)
	}
}
