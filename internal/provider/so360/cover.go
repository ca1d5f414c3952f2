package so360

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

var (
	playLinkPattern    = regexp.MustCompile(`/(tv|va|ct|mv)/([a-zA-Z0-9=]+)\.html`)
	itemIDPattern      = regexp.MustCompile(`^(tv|va|ct|mv)_([a-zA-Z0-9=]+)$`)
	initialDataPattern = regexp.MustCompile(`window\.g_initialData\s*=\s*(\{.*?\});`)
)

// searchResponse is the payload of /search/index once the JSONP wrapper is
// removed
type searchResponse struct {
	Data *struct {
		Result *struct {
			Res []searchItem `json:"res"`
		} `json:"result"`
	} `json:"data"`
}

type searchItem struct {
	Title    string `json:"title"`
	PlayLink *struct {
		PlayLink string `json:"play_link"`
	} `json:"play_link_obj"`
}

// itemID builds the "<kind>_<id>" identifier from the item's play link
func (i searchItem) itemID() string {
	if i.PlayLink == nil {
		return ""
	}
	m := playLinkPattern.FindStringSubmatch(i.PlayLink.PlayLink)
	if m == nil {
		return ""
	}
	return m[1] + "_" + m[2]
}

func (r searchResponse) items() []searchItem {
	if r.Data == nil || r.Data.Result == nil {
		return nil
	}
	return r.Data.Result.Res
}

// splitID separates an item id into its page kind and page id
func splitID(id string) (kind, pageID string, ok bool) {
	m := itemIDPattern.FindStringSubmatch(id)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// trimJSONP strips a callback wrapper such as cb({...}) from body
func trimJSONP(body []byte, callback string) []byte {
	body = bytes.TrimSpace(body)
	if !bytes.HasPrefix(body, []byte(callback+"(")) {
		return body
	}
	body = bytes.TrimPrefix(body, []byte(callback+"("))
	body = bytes.TrimSuffix(body, []byte(";"))
	return bytes.TrimSuffix(body, []byte(")"))
}

// coverInfo is the show summary embedded in a detail page
type coverInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	SubTitle    string `json:"sub_title"`
	Description string `json:"description"`
	Cover       string `json:"cover"`
	Year        string `json:"year"`
	Cat         string `json:"cat"`
}

// mediaType classifies the page by its category list, e.g. "动漫,日本".
// Anything that is not a movie but has a category is treated as a series.
func (c coverInfo) mediaType() provider.MediaType {
	switch {
	case c.Cat == "":
		return provider.MediaTypeAny
	case strings.Contains(c.Cat, "电影"):
		return provider.MediaTypeMovie
	default:
		return provider.MediaTypeTV
	}
}

func (c coverInfo) record(id string) *provider.Record {
	record := &provider.Record{
		Provider: providerName,
		ID:       id,
		SourceID: id,
		Title:    c.Title,
		ImageURL: c.Cover,
		Details:  c.Description,
	}
	if c.SubTitle != "" {
		record.AliasesCN = []string{c.SubTitle}
	}
	return record
}

// parseCoverInfo extracts the cover info from the page's g_initialData
// script. A page without one yields nil.
func parseCoverInfo(doc *goquery.Document) (*coverInfo, error) {
	var raw string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := initialDataPattern.FindStringSubmatch(s.Text()); m != nil {
			raw = m[1]
			return false
		}
		return true
	})
	if raw == "" {
		return nil, nil
	}

	var data struct {
		CoverInfo struct {
			CoverInfo *coverInfo `json:"coverInfo"`
		} `json:"coverInfo"`
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("failed to decode g_initialData: %w", err)
	}
	return data.CoverInfo.CoverInfo, nil
}
