package signature

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newrelic/agent-control/internal/config"
)

type staticFetcher struct {
	set   JWKSet
	calls int
}

func (f *staticFetcher) Fetch(ctx context.Context) (JWKSet, error) {
	f.calls++
	return f.set, nil
}

func ed25519JWK(t *testing.T, kid string, pub ed25519.PublicKey) JWK {
	t.Helper()
	return JWK{Kid: kid, Kty: "OKP", Crv: "Ed25519", Alg: "EdDSA", X: base64.RawURLEncoding.EncodeToString(pub)}
}

func TestValidator_DisabledAlwaysSucceeds(t *testing.T) {
	v := NewValidator(&staticFetcher{}, false)
	err := v.VerifyBody(context.Background(), config.Body{"config.yaml": "anything"}, nil)
	require.NoError(t, err)
}

func TestValidator_EnabledRejectsMissingSignature(t *testing.T) {
	v := NewValidator(&staticFetcher{}, true)
	err := v.VerifyBody(context.Background(), config.Body{"config.yaml": "agents: {}"}, config.Signature{})
	require.Error(t, err)
}

func TestValidator_VerifiesEd25519Signature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	payload := []byte("agents: {}")
	sig := ed25519.Sign(priv, payload)

	fetcher := &staticFetcher{set: JWKSet{Keys: []JWK{ed25519JWK(t, "key-1", pub)}}}
	v := NewValidator(fetcher, true)

	body := config.Body{"config.yaml": string(payload)}
	sigs := config.Signature{"config.yaml": {{
		Signature:        base64.StdEncoding.EncodeToString(sig),
		SigningAlgorithm: "EdDSA",
		KeyID:            "key-1",
	}}}

	require.NoError(t, v.VerifyBody(context.Background(), body, sigs))
	assert.Equal(t, 1, fetcher.calls)
}

func TestValidator_RefetchesOnceOnUnknownKeyThenFails(t *testing.T) {
	fetcher := &staticFetcher{set: JWKSet{Keys: []JWK{}}}
	v := NewValidator(fetcher, true)

	body := config.Body{"config.yaml": "agents: {}"}
	sigs := config.Signature{"config.yaml": {{
		Signature:        base64.StdEncoding.EncodeToString([]byte("not-a-real-sig-but-64-bytes-of-padding-01234567890123456789012")),
		SigningAlgorithm: "EdDSA",
		KeyID:            "missing-key",
	}}}

	err := v.VerifyBody(context.Background(), body, sigs)
	require.Error(t, err)
	assert.Equal(t, 2, fetcher.calls)
}
