package httpclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newrelic/agent-control/internal/config"
)

func TestNew_NoProxy(t *testing.T) {
	client, err := New(config.ProxyConfig{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, client.Transport)
}

func TestNew_InvalidProxyURL(t *testing.T) {
	_, err := New(config.ProxyConfig{URL: "://bad"}, nil)
	require.Error(t, err)
}
