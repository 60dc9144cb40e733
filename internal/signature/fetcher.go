package signature

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/newrelic/agent-control/internal/acerrors"
)

// Fetcher retrieves the current JWKS document from the configured
// endpoint (spec §4.D).
type Fetcher interface {
	Fetch(ctx context.Context) (JWKSet, error)
}

// HTTPFetcher fetches the JWKS document over the shared HTTP client
// (§1 "HTTP proxy" is a collaborator injected via internal/httpclient,
// not reimplemented here).
type HTTPFetcher struct {
	Client *http.Client
	URL    string
}

func NewHTTPFetcher(client *http.Client, url string) *HTTPFetcher {
	return &HTTPFetcher{Client: client, URL: url}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (JWKSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return JWKSet{}, acerrors.New(acerrors.KindExternalIO, "signature.Fetch", err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return JWKSet{}, acerrors.New(acerrors.KindExternalIO, "signature.Fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return JWKSet{}, acerrors.New(acerrors.KindExternalIO, "signature.Fetch",
			fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode))
	}

	var set JWKSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return JWKSet{}, acerrors.New(acerrors.KindParse, "signature.Fetch", err)
	}
	return set, nil
}
