// Package imdb implements the IMDb metadata source by scraping imdb.com.
package imdb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

const providerName = "imdb"

const (
	defaultBaseURL = "https://www.imdb.com"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptLanguage = "en-US,en;q=0.9,zh-CN;q=0.8,zh;q=0.7"
)

var (
	titleIDPattern = regexp.MustCompile(`/title/(tt\d+)`)
	yearPattern    = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
)

// Provider implements provider.Source for IMDb
type Provider struct {
	transport *provider.Transport
	baseURL   string
}

// New creates the IMDb source. It needs no configuration.
func New(sess provider.Session, cfg provider.Config) provider.Source {
	return &Provider{
		transport: provider.NewTransport(providerName, sess, cfg),
		baseURL:   defaultBaseURL,
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Close releases the HTTP transport
func (p *Provider) Close() error {
	return p.transport.Close()
}

func (p *Provider) get(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	client, err := p.transport.Client(ctx)
	if err != nil {
		return nil, err
	}
	target := p.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := client.Do(req)
	if err != nil {
		return nil, provider.RequestFailed(providerName, err)
	}
	return resp, nil
}

func (p *Provider) page(ctx context.Context, path string, params url.Values) (*goquery.Document, int, error) {
	resp, err := p.get(ctx, path, params)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, resp.StatusCode, nil
	}
	if err := provider.CheckStatus(providerName, resp); err != nil {
		return nil, resp.StatusCode, err
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, resp.StatusCode, nil
}

// Search scrapes the title results of the find page. Both the legacy
// findList table and the current list layout are understood.
func (p *Provider) Search(ctx context.Context, keyword string, _ provider.User, _ provider.MediaType) ([]provider.Record, error) {
	doc, _, err := p.page(ctx, "/find", url.Values{"q": {keyword}, "s": {"tt"}})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return []provider.Record{}, nil
	}

	records := []provider.Record{}
	seen := make(map[string]bool)
	add := func(link, image *goquery.Selection, text string) {
		href, _ := link.Attr("href")
		match := titleIDPattern.FindStringSubmatch(href)
		if match == nil || seen[match[1]] {
			return
		}
		seen[match[1]] = true
		src, _ := image.Attr("src")
		year := ""
		if m := yearPattern.FindStringSubmatch(text); m != nil {
			year = m[1]
		}
		records = append(records, provider.Record{
			Provider: providerName,
			ID:       match[1],
			SourceID: match[1],
			ImdbID:   match[1],
			Title:    strings.TrimSpace(link.Text()),
			ImageURL: src,
			Details:  "Year: " + year,
		})
	}

	doc.Find("table.findList tr").Each(func(_ int, row *goquery.Selection) {
		text := row.Find("td.result_text")
		if text.Length() == 0 {
			return
		}
		add(text.Find("a").First(), row.Find("td.primary_photo img").First(), text.Text())
	})
	doc.Find("li.find-title-result").Each(func(_ int, item *goquery.Selection) {
		add(item.Find("a.ipc-metadata-list-summary-item__t").First(), item.Find("img").First(), item.Text())
	})
	return records, nil
}

// Details scrapes the title page. A missing title yields nil.
func (p *Provider) Details(ctx context.Context, id string, _ provider.User, _ provider.MediaType) (*provider.Record, error) {
	doc, _, err := p.page(ctx, "/title/"+url.PathEscape(id)+"/", nil)
	if err != nil || doc == nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = "unknown title"
	}
	image, _ := doc.Find(`[data-testid="hero-media__poster"] img`).First().Attr("src")
	return &provider.Record{
		Provider: providerName,
		ID:       id,
		SourceID: id,
		ImdbID:   id,
		Title:    title,
		ImageURL: image,
		Details:  strings.TrimSpace(doc.Find(`span[data-testid="plot-l"]`).First().Text()),
	}, nil
}

// SearchAliases returns an empty set; IMDb pages do not list useful aliases
func (p *Provider) SearchAliases(context.Context, string, provider.User) (provider.AliasSet, error) {
	return provider.NewAliasSet(), nil
}

// CheckConnectivity loads the home page
func (p *Provider) CheckConnectivity(ctx context.Context) string {
	resp, err := p.get(ctx, "/", nil)
	if err != nil {
		return provider.StatusFromError(err)
	}
	resp.Body.Close()
	return provider.StatusFromCode(resp.StatusCode, http.StatusOK)
}

// ExecuteAction rejects every action
func (p *Provider) ExecuteAction(_ context.Context, action string, _ map[string]any, _ provider.User, _ *http.Request) (any, error) {
	return nil, provider.UnsupportedAction(providerName, action)
}
