package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

// apiClient issues v3 API calls with the key passed as a query parameter
type apiClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limiter *rateLimiter
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func (c *apiClient) do(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	if err := c.limiter.wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, provider.RequestFailed(providerName, err)
	}
	return resp, nil
}

// get decodes a successful response into out
func (c *apiClient) get(ctx context.Context, path string, params url.Values, out any) error {
	resp, err := c.do(ctx, path, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := provider.CheckStatus(providerName, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// status returns the HTTP status of a request without decoding the body
func (c *apiClient) status(ctx context.Context, path string) (int, error) {
	resp, err := c.do(ctx, path, nil)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
