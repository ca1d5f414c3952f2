// Package douban implements the Douban movie metadata source by scraping
// movie.douban.com.
package douban

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

const providerName = "douban"

// ConfigCookie is the configuration key holding the browser cookie sent
// with every request
const ConfigCookie = "doubanCookie"

const (
	defaultBaseURL = "https://movie.douban.com"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Provider implements provider.Source for Douban
type Provider struct {
	cfg       provider.Config
	transport *provider.Transport
	baseURL   string
	log       *zap.SugaredLogger
}

// New creates the Douban source. It performs no I/O.
func New(sess provider.Session, cfg provider.Config) provider.Source {
	return newProvider(sess, cfg, defaultBaseURL)
}

func newProvider(sess provider.Session, cfg provider.Config, baseURL string) *Provider {
	return &Provider{
		cfg:       cfg,
		transport: provider.NewTransport(providerName, sess, cfg),
		baseURL:   baseURL,
		log:       zap.S().Named(providerName),
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
	if cookie := strings.TrimSpace(p.cfg.Get(ctx, ConfigCookie, "")); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, provider.RequestFailed(providerName, err)
	}
	return resp, nil
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

type searchResponse struct {
	Subjects []struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Cover       string `json:"cover"`
		Type        string `json:"type"`
		ReleaseYear string `json:"release_year"`
	} `json:"subjects"`
}

// Search queries the subject suggestion endpoint
func (p *Provider) Search(ctx context.Context, keyword string, _ provider.User, _ provider.MediaType) ([]provider.Record, error) {
	resp, err := p.get(ctx, "/j/search_subjects", url.Values{"q": {keyword}, "cat": {"1002"}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := provider.CheckStatus(providerName, resp); err != nil {
		return nil, err
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}

	records := make([]provider.Record, 0, len(result.Subjects))
	for _, item := range result.Subjects {
		records = append(records, provider.Record{
			Provider: providerName,
			ID:       item.ID,
			SourceID: item.ID,
			Title:    item.Title,
			ImageURL: item.Cover,
			Details:  item.Type + " / " + item.ReleaseYear,
		})
	}
	return records, nil
}

// Details scrapes the subject page. Missing subjects and pages without an
// info block yield nil.
func (p *Provider) Details(ctx context.Context, id string, _ provider.User, _ provider.MediaType) (*provider.Record, error) {
	resp, err := p.get(ctx, "/subject/"+url.PathEscape(id)+"/", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := provider.CheckStatus(providerName, resp); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse subject page: %w", err)
	}
	return parseSubject(doc, id), nil
}

// SearchAliases collects the names of the best match. Failures are logged
// and yield an empty set.
func (p *Provider) SearchAliases(ctx context.Context, keyword string, user provider.User) (provider.AliasSet, error) {
	aliases := provider.NewAliasSet()

	results, err := p.Search(ctx, keyword, user, provider.MediaTypeAny)
	if err != nil {
		p.log.Warnw("douban alias search failed", "keyword", keyword, "error", err)
		return aliases, nil
	}
	if len(results) == 0 {
		return aliases, nil
	}

	details, err := p.Details(ctx, results[0].ID, user, provider.MediaTypeAny)
	if err != nil {
		p.log.Warnw("douban alias details failed", "id", results[0].ID, "error", err)
		return aliases, nil
	}
	if details == nil {
		return aliases, nil
	}
	aliases.Add(details.Title, details.NameEn)
	aliases.Add(details.AliasesCN...)
	return aliases.Compact(), nil
}
