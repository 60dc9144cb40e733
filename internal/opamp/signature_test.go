package opamp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newrelic/agent-control/internal/config"
)

func TestExtractSignature_Absent(t *testing.T) {
	sig, err := extractSignature(config.Body{"config.yaml": "agents: {}"})
	require.NoError(t, err)
	assert.Empty(t, sig)
}

func TestExtractSignature_Present(t *testing.T) {
	body := config.Body{
		remoteConfigSignatureLabel: `{"config.yaml":[{"signature":"c2ln","signing_algorithm":"EdDSA","key_id":"k1"}]}`,
	}
	sig, err := extractSignature(body)
	require.NoError(t, err)
	require.Contains(t, sig, "config.yaml")
	assert.Equal(t, "k1", sig["config.yaml"][0].KeyID)
}

func TestExtractSignature_Malformed(t *testing.T) {
	_, err := extractSignature(config.Body{remoteConfigSignatureLabel: "not json"})
	require.Error(t, err)
}
