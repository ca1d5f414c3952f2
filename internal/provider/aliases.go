package provider

import (
	"sort"
	"strings"
)

// AliasSet is a deduplicated set of alternate titles. Case is preserved.
type AliasSet map[string]struct{}

// NewAliasSet builds a set from the given values.
func NewAliasSet(values ...string) AliasSet {
	set := make(AliasSet, len(values))
	for _, v := range values {
		set.Add(v)
	}
	return set
}

// Add inserts a value.
func (s AliasSet) Add(values ...string) {
	for _, v := range values {
		s[v] = struct{}{}
	}
}

// Compact removes blank entries and returns s.
func (s AliasSet) Compact() AliasSet {
	for v := range s {
		if strings.TrimSpace(v) == "" {
			delete(s, v)
		}
	}
	return s
}

// Contains reports whether value is present.
func (s AliasSet) Contains(value string) bool {
	_, ok := s[value]
	return ok
}

// Sorted returns the values in lexical order.
func (s AliasSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
