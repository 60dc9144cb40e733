// Package httpclient builds the *http.Client the signature validator
// uses to fetch the JWKS, with proxy and root-CA configuration (spec
// §1's "HTTP proxy" external collaborator) injected here. The OpAMP
// wrapper does not use it; it runs on opamp-go's own HTTP client.
package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/newrelic/agent-control/internal/config"
)

// New builds an *http.Client configured from cfg.Proxy, starting from
// go-cleanhttp's pooled-transport defaults rather than
// http.DefaultClient's shared, mutation-prone global transport.
func New(cfg config.ProxyConfig, extraRootCAs *x509.CertPool) (*http.Client, error) {
	transport := cleanhttp.DefaultPooledTransport()

	if cfg.URL != "" {
		proxyURL, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if extraRootCAs != nil {
		transport.TLSClientConfig = &tls.Config{RootCAs: extraRootCAs}
	}

	return &http.Client{Transport: transport}, nil
}
