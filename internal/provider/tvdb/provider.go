// Package tvdb implements the TheTVDB metadata source.
package tvdb

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	tvdbapi "github.com/dashotv/tvdb"
	"github.com/dashotv/tvdb/openapi/models/operations"
	"github.com/dashotv/tvdb/openapi/models/sdkerrors"
	"github.com/dashotv/tvdb/openapi/models/shared"
	"go.uber.org/zap"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

const providerName = "tvdb"

// ConfigAPIKey is the configuration key holding the v4 API key
const ConfigAPIKey = "tvdbApiKey"

// TVDBClient captures the dashotv client methods used by this source.
type TVDBClient interface {
	GetSearchResults(request operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error)
	GetSeriesExtended(id float64, meta *operations.GetSeriesExtendedQueryParamMeta, short *bool) (*tvdbapi.GetSeriesExtendedResponse, error)
}

// LoginFunc exchanges an API key for an authenticated client.
type LoginFunc func(apiKey string) (TVDBClient, error)

// Provider implements provider.Source for TVDB
type Provider struct {
	cfg       provider.Config
	login     LoginFunc
	transport *provider.Transport
	log       *zap.SugaredLogger

	mu     sync.Mutex
	client TVDBClient
	apiKey string
}

// New creates the TVDB source. Login is deferred to the first call. All
// requests honor the source's proxy setting.
func New(sess provider.Session, cfg provider.Config) provider.Source {
	transport := provider.NewTransport(providerName, sess, cfg)
	p := NewWithLogin(cfg, sdkLogin(transportDoer{transport}))
	p.transport = transport
	return p
}

// NewWithLogin creates the source with a custom login function.
func NewWithLogin(cfg provider.Config, login LoginFunc) *Provider {
	return &Provider{
		cfg:   cfg,
		login: login,
		log:   zap.S().Named(providerName),
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Close drops the logged in client and releases the HTTP transport
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = nil
	p.apiKey = ""
	if p.transport != nil {
		return p.transport.Close()
	}
	return nil
}

// clientFor returns a client logged in with the configured key. A changed
// key triggers a fresh login.
func (p *Provider) clientFor(ctx context.Context) (TVDBClient, error) {
	key := strings.TrimSpace(p.cfg.Get(ctx, ConfigAPIKey, ""))
	if key == "" {
		return nil, provider.Unconfigured(providerName, "API key missing")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && p.apiKey == key {
		return p.client, nil
	}

	client, err := p.login(key)
	if err != nil {
		return nil, mapError(err)
	}
	p.client = client
	p.apiKey = key
	return client, nil
}

// Search looks up series by title. Movies and people are dropped.
func (p *Provider) Search(ctx context.Context, keyword string, _ provider.User, _ provider.MediaType) ([]provider.Record, error) {
	client, err := p.clientFor(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.TrimSpace(keyword)
	resp, err := client.GetSearchResults(operations.GetSearchResultsRequest{Query: &query})
	if err != nil {
		return nil, mapError(err)
	}
	if resp == nil {
		return []provider.Record{}, nil
	}

	records := make([]provider.Record, 0, len(resp.Data))
	for _, candidate := range resp.Data {
		if pointerToString(candidate.Type) != "series" {
			continue
		}
		id := firstNonEmptyString(pointerToString(candidate.TvdbID), pointerToString(candidate.ID))
		if id == "" {
			continue
		}
		records = append(records, provider.Record{
			Provider: providerName,
			ID:       id,
			SourceID: id,
			TvdbID:   id,
			Title:    firstNonEmptyString(pointerToString(candidate.Name), pointerToString(candidate.NameTranslated), pointerToString(candidate.Title)),
			ImageURL: pointerToString(candidate.ImageURL),
			Details:  "Year: " + pointerToString(candidate.Year),
		})
	}
	return records, nil
}

// Details fetches the extended series record. A missing series yields nil.
func (p *Provider) Details(ctx context.Context, id string, _ provider.User, _ provider.MediaType) (*provider.Record, error) {
	seriesID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return nil, provider.InvalidRequest(providerName, "series id must be numeric")
	}

	client, err := p.clientFor(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.GetSeriesExtended(float64(seriesID), nil, nil)
	if err != nil {
		mapped := mapError(err)
		if provider.IsUpstreamStatus(mapped, http.StatusNotFound) {
			return nil, nil
		}
		return nil, mapped
	}
	if resp == nil || resp.Data == nil {
		return nil, nil
	}

	series := resp.Data
	recordID := strconv.FormatInt(seriesID, 10)
	if series.ID != nil {
		recordID = strconv.FormatInt(*series.ID, 10)
	}
	return &provider.Record{
		Provider: providerName,
		ID:       recordID,
		SourceID: recordID,
		TvdbID:   recordID,
		Title:    pointerToString(series.Name),
		ImageURL: pointerToString(series.Image),
		Details:  pointerToString(series.Overview),
		ImdbID:   findRemoteID(series.RemoteIds, "IMDB"),
	}, nil
}

// SearchAliases is not supported by TVDB and always returns an empty set
func (p *Provider) SearchAliases(context.Context, string, provider.User) (provider.AliasSet, error) {
	return provider.NewAliasSet(), nil
}

// CheckConnectivity logs in and runs a probe search
func (p *Provider) CheckConnectivity(ctx context.Context) string {
	client, err := p.clientFor(ctx)
	if err != nil {
		if provider.IsUpstreamStatus(err, http.StatusUnauthorized) {
			return provider.StatusFromCode(http.StatusUnauthorized, http.StatusOK)
		}
		return provider.StatusFromError(err)
	}
	query := "test"
	if _, err := client.GetSearchResults(operations.GetSearchResultsRequest{Query: &query}); err != nil {
		return provider.StatusFromError(mapError(err))
	}
	return provider.StatusConnected
}

// ExecuteAction rejects every action
func (p *Provider) ExecuteAction(_ context.Context, action string, _ map[string]any, _ provider.User, _ *http.Request) (any, error) {
	return nil, provider.UnsupportedAction(providerName, action)
}

// findRemoteID returns the id of the first remote id whose source name
// matches exactly
func findRemoteID(ids []shared.RemoteID, source string) string {
	for _, remote := range ids {
		if pointerToString(remote.SourceName) == source {
			return pointerToString(remote.ID)
		}
	}
	return ""
}

func pointerToString(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func firstNonEmptyString(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

// mapError classifies client errors. SDK errors carry the status code;
// anything else only exposes it as text.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var perr *provider.ProviderError
	if errors.As(err, &perr) {
		return perr
	}
	var sdkErr *sdkerrors.SDKError
	if errors.As(err, &sdkErr) {
		return provider.UpstreamFailure(providerName, sdkErr.StatusCode)
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "401"), strings.Contains(lower, "unauthorized"), strings.Contains(lower, "apikey"):
		return provider.UpstreamFailure(providerName, http.StatusUnauthorized)
	case strings.Contains(lower, "429"), strings.Contains(lower, "too many"):
		return provider.UpstreamFailure(providerName, http.StatusTooManyRequests)
	case strings.Contains(lower, "404"), strings.Contains(lower, "not found"):
		return provider.UpstreamFailure(providerName, http.StatusNotFound)
	case strings.Contains(lower, "503"), strings.Contains(lower, "unavailable"):
		return provider.UpstreamFailure(providerName, http.StatusServiceUnavailable)
	default:
		return provider.RequestFailed(providerName, err)
	}
}
