// Package bangumi implements the Bangumi (bgm.tv) metadata source, including
// the per-user OAuth flow that lets searches run with the user's token.
package bangumi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

const providerName = "bangumi"

// Configuration keys
const (
	ConfigClientID     = "bangumiClientId"
	ConfigClientSecret = "bangumiClientSecret"
)

const (
	defaultAPIBaseURL   = "https://api.bgm.tv"
	defaultOAuthBaseURL = "https://bgm.tv"
	userAgent           = "mediameta/1.0 (https://github.com/Digital-Shane/mediameta)"
)

// Provider implements provider.Source for Bangumi
type Provider struct {
	sess      provider.Session
	cfg       provider.Config
	transport *provider.Transport
	apiBase   string
	oauthBase string
	log       *zap.SugaredLogger
}

// New creates the Bangumi source. It performs no I/O.
func New(sess provider.Session, cfg provider.Config) provider.Source {
	return newProvider(sess, cfg, defaultAPIBaseURL, defaultOAuthBaseURL)
}

func newProvider(sess provider.Session, cfg provider.Config, apiBase, oauthBase string) *Provider {
	return &Provider{
		sess:      sess,
		cfg:       cfg,
		transport: provider.NewTransport(providerName, sess, cfg),
		apiBase:   apiBase,
		oauthBase: oauthBase,
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

// CheckConnectivity pings the API, which answers 204 when healthy
func (p *Provider) CheckConnectivity(ctx context.Context) string {
	resp, err := p.do(ctx, http.MethodGet, p.apiBase+"/v0/ping", nil, "")
	if err != nil {
		return provider.StatusFromError(err)
	}
	resp.Body.Close()
	return provider.StatusFromCode(resp.StatusCode, http.StatusNoContent)
}

// token returns the user's access token, or an empty string for anonymous
// access
func (p *Provider) token(ctx context.Context, user provider.User) string {
	auth, err := p.sess.BangumiAuth(ctx, user.ID)
	if err != nil {
		p.log.Warnw("failed to read bangumi auth, continuing anonymously", "user_id", user.ID, "error", err)
		return ""
	}
	if auth == nil || !auth.IsAuthenticated {
		return ""
	}
	return auth.AccessToken
}

// do sends a request with the Bangumi headers. A JSON body is encoded when
// body is non-nil.
func (p *Provider) do(ctx context.Context, method, target string, body any, token string) (*http.Response, error) {
	client, err := p.transport.Client(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, provider.RequestFailed(providerName, err)
	}
	return resp, nil
}

// call sends a request and decodes a successful response into out
func (p *Provider) call(ctx context.Context, method, target string, body any, token string, out any) error {
	resp, err := p.do(ctx, method, target, body, token)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := provider.CheckStatus(providerName, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", target, err)
	}
	return nil
}

func (p *Provider) subjectURL(id string) string {
	return p.apiBase + "/v0/subjects/" + url.PathEscape(id)
}
