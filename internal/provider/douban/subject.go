package douban

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

var imdbIDPattern = regexp.MustCompile(`tt\d+`)

func parseSubject(doc *goquery.Document, id string) *provider.Record {
	info := doc.Find("div#info").First()
	if info.Length() == 0 {
		return nil
	}
	fields := infoFields(info)

	title := strings.TrimSpace(doc.Find(`span[property="v:itemreviewed"]`).First().Text())
	if title == "" {
		title = "unknown title"
	}

	var aliases []string
	for _, alias := range strings.Split(fields["又名"], "/") {
		if alias = strings.TrimSpace(alias); alias != "" {
			aliases = append(aliases, alias)
		}
	}

	imdbID := strings.TrimSpace(info.Find(`a[href*="imdb.com"]`).First().Text())
	if imdbID == "" {
		imdbID = imdbIDPattern.FindString(fields["IMDb"])
	}

	image, _ := doc.Find(`img[rel="v:image"]`).First().Attr("src")
	return &provider.Record{
		Provider:  providerName,
		ID:        id,
		SourceID:  id,
		Title:     title,
		ImageURL:  image,
		Details:   collapseSpace(doc.Find(`span[property="v:summary"]`).First().Text()),
		ImdbID:    imdbID,
		AliasesCN: aliases,
	}
}

// infoFields reads the "label: value" lines of the info block. Lines are
// separated by <br> elements and labels are span.pl elements, either direct
// children or wrapped in a span with the value.
func infoFields(info *goquery.Selection) map[string]string {
	fields := make(map[string]string)
	var label string
	var value strings.Builder

	flush := func() {
		if label != "" {
			fields[label] = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value.String()), ":"))
		}
		label = ""
		value.Reset()
	}

	info.Contents().Each(func(_ int, node *goquery.Selection) {
		switch {
		case goquery.NodeName(node) == "br":
			flush()
		case node.Is("span.pl"):
			flush()
			label = labelText(node.Text())
		case goquery.NodeName(node) == "span" && node.Find("span.pl").Length() > 0:
			flush()
			label = labelText(node.Find("span.pl").First().Text())
			value.WriteString(node.Find("span.attrs").Text())
		default:
			value.WriteString(node.Text())
		}
	})
	flush()
	return fields
}

func labelText(s string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ":"))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
