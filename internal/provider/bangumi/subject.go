package bangumi

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

// subject is a search hit or a full subject record
type subject struct {
	ID      int               `json:"id"`
	Name    string            `json:"name"`
	NameCN  string            `json:"name_cn"`
	Date    string            `json:"date"`
	Images  map[string]string `json:"images"`
	Infobox []infoboxItem     `json:"infobox"`
}

type infoboxItem struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// values returns the entry as a list. Strings split on "/" and lists keep
// the v field of each element.
func (i infoboxItem) values() []string {
	var out []string
	if text, ok := i.text(); ok {
		for _, part := range strings.Split(text, "/") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	var list []struct {
		V string `json:"v"`
	}
	if err := json.Unmarshal(i.Value, &list); err != nil {
		return nil
	}
	for _, item := range list {
		if v := strings.TrimSpace(item.V); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// rawValues is like values but keeps string entries whole
func (i infoboxItem) rawValues() []string {
	if text, ok := i.text(); ok {
		return []string{text}
	}
	var list []struct {
		V string `json:"v"`
	}
	if err := json.Unmarshal(i.Value, &list); err != nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item.V != "" {
			out = append(out, item.V)
		}
	}
	return out
}

func (i infoboxItem) text() (string, bool) {
	var s string
	if err := json.Unmarshal(i.Value, &s); err != nil {
		return "", false
	}
	return strings.TrimSpace(s), true
}

var imageSizes = []string{"large", "common", "medium", "small", "grid"}

func (s subject) imageURL() string {
	for _, size := range imageSizes {
		if u := s.Images[size]; u != "" {
			return u
		}
	}
	return ""
}

func (s subject) displayName() string {
	if cn := provider.CleanMovieTitle(s.NameCN); cn != "" {
		return cn
	}
	return provider.CleanMovieTitle(s.Name)
}

type subjectAliases struct {
	nameEn     string
	nameRomaji string
	aliasesCN  []string
}

// aliases reads the English name, romaji name and Chinese aliases from the
// infobox
func (s subject) aliases() subjectAliases {
	var out subjectAliases
	seen := make(map[string]bool)
	for _, item := range s.Infobox {
		switch strings.TrimSpace(item.Key) {
		case "英文名":
			if text, ok := item.text(); ok {
				out.nameEn = provider.CleanMovieTitle(text)
			}
		case "罗马字":
			if text, ok := item.text(); ok {
				out.nameRomaji = provider.CleanMovieTitle(text)
			}
		case "别名":
			for _, alias := range item.values() {
				alias = provider.CleanMovieTitle(alias)
				if alias == "" || !hasHan(alias) || seen[alias] {
					continue
				}
				seen[alias] = true
				out.aliasesCN = append(out.aliasesCN, alias)
			}
		}
	}
	return out
}

var staffKeys = []string{"导演", "原作", "脚本", "人物设定", "系列构成", "总作画监督"}

const maxDetailParts = 5

// details renders the air date and the main staff credits
func (s subject) details() string {
	var parts []string
	if s.Date != "" {
		if d, err := time.Parse(time.DateOnly, s.Date); err == nil {
			parts = append(parts, d.Format("2006年01月02日"))
		} else {
			parts = append(parts, s.Date)
		}
	}

	staff := make(map[string]string)
	for _, item := range s.Infobox {
		if _, ok := staff[item.Key]; ok {
			continue
		}
		if text, ok := item.text(); ok {
			if text != "" {
				staff[item.Key] = text
			}
			continue
		}
		if names := item.values(); len(names) > 0 {
			staff[item.Key] = strings.Join(names, "、")
		}
	}
	for _, key := range staffKeys {
		if len(parts) >= maxDetailParts {
			break
		}
		if v := staff[key]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " / ")
}

func (s subject) record() *provider.Record {
	aliases := s.aliases()
	id := strconv.Itoa(s.ID)
	return &provider.Record{
		Provider:   providerName,
		ID:         id,
		SourceID:   id,
		Title:      s.displayName(),
		NameJp:     provider.CleanMovieTitle(s.Name),
		ImageURL:   s.imageURL(),
		Details:    s.details(),
		NameEn:     aliases.nameEn,
		NameRomaji: aliases.nameRomaji,
		AliasesCN:  aliases.aliasesCN,
	}
}

func hasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
