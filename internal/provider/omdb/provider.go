// Package omdb implements the Open Movie Database metadata source.
package omdb

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Digital-Shane/omdb"
	"go.uber.org/zap"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

const providerName = "omdb"

// ConfigAPIKey is the configuration key holding the OMDb API key
const ConfigAPIKey = "omdbApiKey"

// Provider implements provider.Source for OMDb
type Provider struct {
	cfg        provider.Config
	transport  *provider.Transport
	httpClient func(context.Context) (*http.Client, error)
	log        *zap.SugaredLogger
}

// New creates the OMDb source. It performs no I/O.
func New(sess provider.Session, cfg provider.Config) provider.Source {
	p := &Provider{
		cfg:       cfg,
		transport: provider.NewTransport(providerName, sess, cfg),
		log:       zap.S().Named(providerName),
	}
	p.httpClient = p.transport.Client
	return p
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Close releases the HTTP transport
func (p *Provider) Close() error {
	return p.transport.Close()
}

func (p *Provider) client(ctx context.Context) (*omdb.Client, error) {
	key := strings.TrimSpace(p.cfg.Get(ctx, ConfigAPIKey, ""))
	if key == "" {
		return nil, provider.Unconfigured(providerName, "API key missing")
	}
	httpClient, err := p.httpClient(ctx)
	if err != nil {
		return nil, err
	}
	return omdb.NewClient(key, httpClient), nil
}

// Search looks up a title. OMDb answers title queries with its single best
// match, so at most one record is returned.
func (p *Provider) Search(ctx context.Context, keyword string, _ provider.User, mediaType provider.MediaType) ([]provider.Record, error) {
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}

	query := omdb.QueryData{Title: strings.TrimSpace(keyword), SearchType: searchType(mediaType)}
	result, err := client.SearchByTitle(query)
	if err != nil {
		if err = mapError(err); errors.Is(err, provider.ErrNotFound) {
			return []provider.Record{}, nil
		}
		return nil, err
	}

	record := toRecord(result)
	if record == nil {
		return []provider.Record{}, nil
	}
	record.Details = "Year: " + omdb.FirstYear(yearOf(result))
	return []provider.Record{*record}, nil
}

// Details looks up a title by IMDb id. Unknown ids yield nil.
func (p *Provider) Details(ctx context.Context, id string, _ provider.User, _ provider.MediaType) (*provider.Record, error) {
	if !strings.HasPrefix(id, "tt") {
		return nil, provider.InvalidRequest(providerName, "OMDb details require an IMDb id")
	}
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.SearchByImdbID(omdb.QueryData{ImdbID: id, Plot: "short"})
	if err != nil {
		if err = mapError(err); errors.Is(err, provider.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toRecord(result), nil
}

// SearchAliases returns an empty set; OMDb only knows English titles
func (p *Provider) SearchAliases(context.Context, string, provider.User) (provider.AliasSet, error) {
	return provider.NewAliasSet(), nil
}

// CheckConnectivity looks up a well known title
func (p *Provider) CheckConnectivity(ctx context.Context) string {
	client, err := p.client(ctx)
	if err != nil {
		return provider.StatusFromError(err)
	}
	if _, err := client.SearchByImdbID(omdb.QueryData{ImdbID: "tt0816692"}); err != nil {
		if err = mapError(err); provider.IsUpstreamStatus(err, http.StatusUnauthorized) {
			return provider.StatusFromCode(http.StatusUnauthorized, http.StatusOK)
		}
		return provider.StatusFromError(err)
	}
	return provider.StatusConnected
}

// ExecuteAction rejects every action
func (p *Provider) ExecuteAction(_ context.Context, action string, _ map[string]any, _ provider.User, _ *http.Request) (any, error) {
	return nil, provider.UnsupportedAction(providerName, action)
}

func searchType(mediaType provider.MediaType) string {
	switch mediaType {
	case provider.MediaTypeTV:
		return "series"
	case provider.MediaTypeMovie:
		return "movie"
	default:
		return ""
	}
}

func toRecord(result any) *provider.Record {
	var title, plot, imdbID string
	switch r := result.(type) {
	case omdb.MovieResult:
		title, plot, imdbID = r.Title, r.Plot, r.ImdbID
	case *omdb.MovieResult:
		title, plot, imdbID = r.Title, r.Plot, r.ImdbID
	case omdb.SeriesResult:
		title, plot, imdbID = r.Title, r.Plot, r.ImdbID
	case *omdb.SeriesResult:
		title, plot, imdbID = r.Title, r.Plot, r.ImdbID
	default:
		return nil
	}
	if imdbID == "" {
		return nil
	}
	return &provider.Record{
		Provider: providerName,
		ID:       imdbID,
		SourceID: imdbID,
		ImdbID:   imdbID,
		Title:    title,
		Details:  plot,
	}
}

func yearOf(result any) string {
	switch r := result.(type) {
	case omdb.MovieResult:
		return r.Year
	case *omdb.MovieResult:
		return r.Year
	case omdb.SeriesResult:
		return r.Year
	case *omdb.SeriesResult:
		return r.Year
	}
	return ""
}

// mapError classifies client errors by their message
func mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "invalid api key"), strings.Contains(lower, "missing omdb api key"):
		return provider.UpstreamFailure(providerName, http.StatusUnauthorized)
	case strings.Contains(lower, "not found"), strings.Contains(lower, "incorrect imdb id"):
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeNotFound, Message: err.Error(), Err: err}
	case strings.Contains(lower, "limit reached"), strings.Contains(lower, "too many requests"):
		return provider.UpstreamFailure(providerName, http.StatusTooManyRequests)
	default:
		return provider.RequestFailed(providerName, err)
	}
}
