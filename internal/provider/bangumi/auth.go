package bangumi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

// ExecuteAction runs the OAuth actions
func (p *Provider) ExecuteAction(ctx context.Context, action string, payload map[string]any, user provider.User, _ *http.Request) (any, error) {
	switch action {
	case "get_auth_state":
		return p.sess.BangumiAuth(ctx, user.ID)
	case "get_auth_url":
		authURL, err := p.authURL(ctx, user, provider.PayloadString(payload, "redirect_uri"))
		if err != nil {
			return nil, err
		}
		return map[string]string{"url": authURL}, nil
	case "logout":
		if err := p.sess.DeleteBangumiAuth(ctx, user.ID); err != nil {
			return nil, err
		}
		return map[string]string{"message": "logged out"}, nil
	case "handle_auth_callback":
		code := provider.PayloadString(payload, "code")
		state := provider.PayloadString(payload, "state")
		if code == "" || state == "" {
			return nil, provider.InvalidRequest(providerName, "code and state are required")
		}
		userID, err := p.sess.ConsumeOAuthState(ctx, state)
		if err != nil || userID != user.ID {
			return nil, provider.InvalidRequest(providerName, "invalid state")
		}
		if err := p.exchangeCode(ctx, userID, code, provider.PayloadString(payload, "redirect_uri")); err != nil {
			return nil, err
		}
		return map[string]string{"message": "authorization succeeded"}, nil
	default:
		return nil, provider.UnsupportedAction(providerName, action)
	}
}

func (p *Provider) authURL(ctx context.Context, user provider.User, redirectURI string) (string, error) {
	clientID := strings.TrimSpace(p.cfg.Get(ctx, ConfigClientID, ""))
	if clientID == "" {
		return "", provider.Unconfigured(providerName, "app id missing")
	}
	state, err := p.sess.CreateOAuthState(ctx, user.ID)
	if err != nil {
		return "", err
	}

	q := url.Values{
		"client_id":     {clientID},
		"response_type": {"code"},
		"state":         {state},
	}
	if redirectURI != "" {
		q.Set("redirect_uri", redirectURI)
	}
	return p.oauthBase + "/oauth/authorize?" + q.Encode(), nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	UserID       int64  `json:"user_id"`
}

type bangumiUser struct {
	ID       int64             `json:"id"`
	Username string            `json:"username"`
	Nickname string            `json:"nickname"`
	Avatar   map[string]string `json:"avatar"`
}

// exchangeCode trades an authorization code for tokens and stores them with
// the Bangumi profile of the user.
func (p *Provider) exchangeCode(ctx context.Context, userID int64, code, redirectURI string) error {
	clientID := strings.TrimSpace(p.cfg.Get(ctx, ConfigClientID, ""))
	clientSecret := strings.TrimSpace(p.cfg.Get(ctx, ConfigClientSecret, ""))
	if clientID == "" || clientSecret == "" {
		return provider.Unconfigured(providerName, "app id or app secret missing")
	}

	client, err := p.transport.Client(ctx)
	if err != nil {
		return err
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"code":          {code},
	}
	if redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.oauthBase+"/oauth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return provider.RequestFailed(providerName, err)
	}
	defer resp.Body.Close()
	if err := provider.CheckStatus(providerName, resp); err != nil {
		return err
	}
	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return provider.UpstreamFailure(providerName, http.StatusBadGateway)
	}

	var me bangumiUser
	if err := p.call(ctx, http.MethodGet, p.apiBase+"/v0/me", nil, token.AccessToken, &me); err != nil {
		return err
	}

	auth := provider.BangumiAuth{
		UserID:          userID,
		IsAuthenticated: true,
		BangumiUserID:   me.ID,
		Nickname:        me.Nickname,
		AvatarURL:       me.Avatar["large"],
		AccessToken:     token.AccessToken,
		RefreshToken:    token.RefreshToken,
		ExpiresAt:       time.Now().Add(time.Duration(token.ExpiresIn) * time.Second).Unix(),
	}
	if err := p.sess.SaveBangumiAuth(ctx, auth); err != nil {
		return err
	}
	p.log.Infow("bangumi authorization stored", "user_id", userID, "bangumi_user_id", me.ID)
	return nil
}

// Routes serves the OAuth redirect target. The state token identifies the
// user, so the callback needs no session of its own.
func (p *Provider) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/auth/callback", p.handleCallback)
	return r
}

func (p *Provider) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		http.Error(w, "missing code or state", http.StatusBadRequest)
		return
	}

	userID, err := p.sess.ConsumeOAuthState(r.Context(), state)
	if err != nil {
		p.log.Warnw("rejected bangumi oauth callback", "error", err)
		http.Error(w, "invalid or expired state", http.StatusBadRequest)
		return
	}

	redirectURI := (&url.URL{Scheme: requestScheme(r), Host: r.Host, Path: r.URL.Path}).String()
	if err := p.exchangeCode(r.Context(), userID, code, redirectURI); err != nil {
		p.log.Errorw("bangumi token exchange failed", "user_id", userID, "error", err)
		status := http.StatusInternalServerError
		var perr *provider.ProviderError
		if errors.As(err, &perr) {
			status = perr.HTTPStatus()
		}
		http.Error(w, "authorization failed: "+err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, callbackPage)
}

func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

const callbackPage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Bangumi</title></head>
<body><p>Authorization succeeded. You can close this window.</p>
<script>if (window.opener) { window.opener.postMessage("bangumi-auth-complete", "*"); window.close(); }</script>
</body></html>`
