package tvdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tvdbapi "github.com/dashotv/tvdb"
	"github.com/dashotv/tvdb/openapi"
	"github.com/dashotv/tvdb/openapi/models/operations"
	"github.com/dashotv/tvdb/openapi/models/shared"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

// transportDoer sends SDK requests through the source transport so the
// proxy policy is resolved per request.
type transportDoer struct {
	transport *provider.Transport
}

func (d transportDoer) Do(req *http.Request) (*http.Response, error) {
	client, err := d.transport.Client(req.Context())
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}

// sdkClient implements TVDBClient on the generated SDK. The dashotv Client
// wrapper builds its SDK with the default HTTP client, so it is only used
// for its response types.
type sdkClient struct {
	sdk *openapi.SDK
	ctx context.Context
}

func (c *sdkClient) GetSearchResults(request operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error) {
	r, err := c.sdk.Search.GetSearchResults(c.ctx, request)
	if err != nil {
		return nil, err
	}
	if r.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-200 response: %d", r.StatusCode)
	}
	return r.Object, nil
}

func (c *sdkClient) GetSeriesExtended(id float64, meta *operations.GetSeriesExtendedQueryParamMeta, short *bool) (*tvdbapi.GetSeriesExtendedResponse, error) {
	r, err := c.sdk.Series.GetSeriesExtended(c.ctx, id, meta, short)
	if err != nil {
		return nil, err
	}
	if r.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-200 response: %d", r.StatusCode)
	}
	return r.Object, nil
}

// sdkLogin returns a LoginFunc that exchanges the API key for a bearer token
// and builds an authenticated SDK. Every request goes through doer.
func sdkLogin(doer openapi.HTTPClient, opts ...openapi.SDKOption) LoginFunc {
	return func(apiKey string) (TVDBClient, error) {
		ctx := context.Background()
		base := append([]openapi.SDKOption{openapi.WithClient(doer)}, opts...)

		r, err := openapi.New(base...).Login.PostLogin(ctx, operations.PostLoginRequestBody{Apikey: apiKey})
		if err != nil {
			return nil, err
		}
		if r.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("non-200 response: %d", r.StatusCode)
		}
		token := r.Object.GetData().GetToken()
		if token == nil || *token == "" {
			return nil, errors.New("login response has no token")
		}

		authed := append(base, openapi.WithSecurity(shared.Security{BearerAuth: *token}))
		return &sdkClient{sdk: openapi.New(authed...), ctx: ctx}, nil
	}
}
