package provider

import (
	"regexp"
	"strings"
	"unicode"
)

// ContainsCJK reports whether s has any Han, Hiragana or Katakana rune.
func ContainsCJK(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}

var (
	movieMarkers   = regexp.MustCompile(`(?i)\s*(?:劇場版|the movie)\s*:?`)
	repeatedSpaces = regexp.MustCompile(`\s{2,}`)
)

// CleanMovieTitle strips theatrical release markers such as "劇場版" and
// "The Movie" so alias matching sees the bare title.
func CleanMovieTitle(title string) string {
	if title == "" {
		return ""
	}
	cleaned := movieMarkers.ReplaceAllString(title, "")
	cleaned = repeatedSpaces.ReplaceAllString(cleaned, " ")
	return strings.Trim(strings.TrimSpace(cleaned), ":- ")
}

// Year returns the leading four digit year of a date string, or "".
func Year(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}
