// Package tmdb implements the The Movie Database metadata source.
package tmdb

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

const providerName = "tmdb"

// Configuration keys
const (
	ConfigAPIKey       = "tmdbApiKey"
	ConfigAPIBaseURL   = "tmdbApiBaseUrl"
	ConfigImageBaseURL = "tmdbImageBaseUrl"
)

const (
	defaultAPIBaseURL   = "https://api.themoviedb.org"
	defaultImageBaseURL = "https://image.tmdb.org/t/p/w500"
	detailsCacheTTL     = 30 * time.Minute
)

// Provider implements provider.Source for TMDB
type Provider struct {
	sess      provider.Session
	cfg       provider.Config
	transport *provider.Transport
	limiter   *rateLimiter
	cache     *cache.Cache
	log       *zap.SugaredLogger
}

// New creates the TMDB source. It performs no I/O.
func New(sess provider.Session, cfg provider.Config) provider.Source {
	return &Provider{
		sess:      sess,
		cfg:       cfg,
		transport: provider.NewTransport(providerName, sess, cfg),
		limiter:   newRateLimiter(38, 10*time.Second), // 38 requests per 10 seconds
		cache:     cache.New(detailsCacheTTL, 10*time.Minute),
		log:       zap.S().Named(providerName),
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Close releases the HTTP transport and drops cached details
func (p *Provider) Close() error {
	p.cache.Flush()
	return p.transport.Close()
}

// CheckConnectivity probes the configuration endpoint
func (p *Provider) CheckConnectivity(ctx context.Context) string {
	api, err := p.api(ctx)
	if err != nil {
		return provider.StatusFromError(err)
	}
	code, err := api.status(ctx, "/configuration")
	if err != nil {
		return provider.StatusFromError(err)
	}
	return provider.StatusFromCode(code, http.StatusOK)
}

// ExecuteAction runs the episode group actions
func (p *Provider) ExecuteAction(ctx context.Context, action string, payload map[string]any, user provider.User, _ *http.Request) (any, error) {
	switch action {
	case "get_episode_groups":
		tvID := provider.PayloadString(payload, "tmdbId")
		if tvID == "" {
			return nil, provider.InvalidRequest(providerName, "tmdbId is required")
		}
		return p.episodeGroups(ctx, tvID)
	case "get_all_episodes":
		groupID := provider.PayloadString(payload, "egid")
		tvID := provider.PayloadString(payload, "tmdbId")
		if groupID == "" || tvID == "" {
			return nil, provider.InvalidRequest(providerName, "egid and tmdbId are required")
		}
		return p.allEpisodes(ctx, tvID, groupID)
	case "update_mappings":
		tvID := provider.PayloadInt(payload, "tmdbId")
		groupID := provider.PayloadString(payload, "groupId")
		if tvID <= 0 || groupID == "" {
			return nil, provider.InvalidRequest(providerName, "tmdbId and groupId are required")
		}
		if err := p.UpdateEpisodeMappings(ctx, tvID, groupID, user); err != nil {
			return nil, err
		}
		return map[string]string{"message": "mappings updated"}, nil
	default:
		return nil, provider.UnsupportedAction(providerName, action)
	}
}

// api resolves the configuration needed for one call
func (p *Provider) api(ctx context.Context) (*apiClient, error) {
	key := strings.TrimSpace(p.cfg.Get(ctx, ConfigAPIKey, ""))
	if key == "" {
		return nil, provider.Unconfigured(providerName, "API key missing")
	}
	// v4 read access tokens are JWTs; only v3 keys are accepted.
	if strings.HasPrefix(key, "eyJ") {
		return nil, provider.Unconfigured(providerName, "the API key looks like a v4 access token, a v3 API key is required")
	}

	client, err := p.transport.Client(ctx)
	if err != nil {
		return nil, err
	}

	return &apiClient{
		http:    client,
		baseURL: apiBaseURL(p.cfg.Get(ctx, ConfigAPIBaseURL, defaultAPIBaseURL)),
		apiKey:  key,
		limiter: p.limiter,
	}, nil
}

func (p *Provider) imageBaseURL(ctx context.Context) string {
	return normalizeImageBaseURL(p.cfg.Get(ctx, ConfigImageBaseURL, defaultImageBaseURL))
}

// apiBaseURL appends the /3 version segment when missing
func apiBaseURL(domain string) string {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	if domain == "" {
		domain = defaultAPIBaseURL
	}
	if strings.HasSuffix(domain, "/3") {
		return domain
	}
	return domain + "/3"
}

// normalizeImageBaseURL appends the w500 size path to bare image hosts
func normalizeImageBaseURL(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return defaultImageBaseURL
	}
	if !strings.Contains(base, "/t/p/") {
		return strings.TrimRight(base, "/") + "/t/p/w500"
	}
	return strings.TrimRight(base, "/")
}

func imageURL(base, path string) string {
	if path == "" {
		return ""
	}
	return base + path
}
