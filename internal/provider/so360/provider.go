// Package so360 implements the 360kan metadata source. Searches go through
// the so.360.cn video API and details are scraped from 360kan pages.
package so360

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

const providerName = "360"

const (
	defaultAPIBase = "https://api.so.360.cn"
	defaultWebBase = "https://www.360kan.com"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	searchCallback     = "so.jsonp_video_search_result"
	searchPageSize     = 20
	detailsConcurrency = 4
)

// Provider implements provider.Source for 360kan
type Provider struct {
	transport *provider.Transport
	apiBase   string
	webBase   string
	log       *zap.SugaredLogger
}

// New creates the 360 source. It needs no configuration.
func New(sess provider.Session, cfg provider.Config) provider.Source {
	return &Provider{
		transport: provider.NewTransport(providerName, sess, cfg),
		apiBase:   defaultAPIBase,
		webBase:   defaultWebBase,
		log:       zap.S().Named("so360"),
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

func (p *Provider) get(ctx context.Context, target string, params url.Values) (*http.Response, error) {
	client, err := p.transport.Client(ctx)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, provider.RequestFailed(providerName, err)
	}
	return resp, nil
}

func (p *Provider) searchItems(ctx context.Context, keyword string) ([]searchItem, error) {
	params := url.Values{
		"kw":         {keyword},
		"from":       {"so_video"},
		"pn":         {"1"},
		"ps":         {fmt.Sprint(searchPageSize)},
		"scene":      {"video_home"},
		"scene_type": {"1"},
	}
	resp, err := p.get(ctx, p.apiBase+"/search/index", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := provider.CheckStatus(providerName, resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.RequestFailed(providerName, err)
	}
	var result searchResponse
	if err := json.Unmarshal(trimJSONP(body, searchCallback), &result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return result.items(), nil
}

// Search queries the video API and loads the detail page of every hit.
// Hits whose page cannot be loaded are logged and skipped.
func (p *Provider) Search(ctx context.Context, keyword string, _ provider.User, mediaType provider.MediaType) ([]provider.Record, error) {
	items, err := p.searchItems(ctx, keyword)
	if err != nil {
		return nil, err
	}

	found := make([]*provider.Record, len(items))
	var g errgroup.Group
	g.SetLimit(detailsConcurrency)
	for i, item := range items {
		id := item.itemID()
		if id == "" {
			continue
		}
		g.Go(func() error {
			info, err := p.cover(ctx, id)
			if err != nil {
				p.log.Errorw("failed to load 360 details", "id", id, "error", err)
				return nil
			}
			if info == nil || (mediaType.Valid() && info.mediaType() != mediaType) {
				return nil
			}
			found[i] = info.record(id)
			return nil
		})
	}
	_ = g.Wait()

	records := []provider.Record{}
	for _, record := range found {
		if record != nil {
			records = append(records, *record)
		}
	}
	return records, nil
}

// Details scrapes the page of one item. Ids have the form "<kind>_<id>",
// e.g. "tv_Pb8ubH7lRmbrMn". A missing page yields nil.
func (p *Provider) Details(ctx context.Context, id string, _ provider.User, _ provider.MediaType) (*provider.Record, error) {
	info, err := p.cover(ctx, id)
	if err != nil || info == nil {
		return nil, err
	}
	return info.record(id), nil
}

func (p *Provider) cover(ctx context.Context, id string) (*coverInfo, error) {
	kind, pageID, ok := splitID(id)
	if !ok {
		return nil, provider.InvalidRequest(providerName, fmt.Sprintf("invalid 360 id %q", id))
	}

	resp, err := p.get(ctx, fmt.Sprintf("%s/%s/%s.html", p.webBase, kind, pageID), nil)
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
		return nil, fmt.Errorf("failed to parse page %s: %w", id, err)
	}

	info, err := parseCoverInfo(doc)
	if err != nil {
		return nil, err
	}
	if info == nil {
		p.log.Warnw("360 page has no cover info", "id", id)
	}
	return info, nil
}

// SearchAliases returns the title and subtitle of the best match. Failures
// are logged and yield an empty set.
func (p *Provider) SearchAliases(ctx context.Context, keyword string, user provider.User) (provider.AliasSet, error) {
	aliases := provider.NewAliasSet()
	records, err := p.Search(ctx, keyword, user, provider.MediaTypeAny)
	if err != nil {
		p.log.Warnw("360 alias search failed", "keyword", keyword, "error", err)
		return aliases, nil
	}
	if len(records) == 0 {
		return aliases, nil
	}
	best := records[0]
	aliases.Add(best.Title)
	aliases.Add(best.AliasesCN...)
	return aliases.Compact(), nil
}

// CheckConnectivity loads the 360kan home page
func (p *Provider) CheckConnectivity(ctx context.Context) string {
	resp, err := p.get(ctx, p.webBase, nil)
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
