// Package signature implements component D: JWKS-backed signature
// validation of remote configs (spec §4.D).
package signature

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/newrelic/agent-control/internal/acerrors"
	"github.com/newrelic/agent-control/internal/config"
)

// Validator maintains the ordered, cached list of public keys fetched
// from a JWKS endpoint and verifies remote config signatures against
// it (spec §4.D).
type Validator struct {
	fetcher Fetcher
	enabled bool

	mu   sync.Mutex
	keys []JWK
}

// NewValidator builds a Validator. When enabled is false, VerifyBody
// always succeeds, matching spec §4.D: "when disabled, the validator
// returns success unconditionally."
func NewValidator(fetcher Fetcher, enabled bool) *Validator {
	return &Validator{fetcher: fetcher, enabled: enabled}
}

// signingMethods maps a SignatureRecord's declared algorithm to the
// golang-jwt verifier that understands it. Ed25519 is mandatory (spec
// §4.D); RS256 is additionally supported since it is the next most
// common JWKS algorithm.
var signingMethods = map[string]jwt.SigningMethod{
	"EdDSA": jwt.SigningMethodEdDSA,
	"RS256": jwt.SigningMethodRS256,
}

// VerifyBody validates every file label present in body against sig,
// rejecting the whole remote config if any label lacks a signature
// record or fails verification under every known key (spec §4.D: "A
// remote config whose Signature is absent or invalid is rejected
// before persistence").
func (v *Validator) VerifyBody(ctx context.Context, body config.Body, sig config.Signature) error {
	if !v.enabled {
		return nil
	}
	for label, payload := range body {
		records := sig[label]
		if len(records) == 0 {
			return acerrors.New(acerrors.KindSignature, "signature.VerifyBody",
				fmt.Errorf("no signature for %q", label))
		}
		if err := v.verifyAny(ctx, []byte(payload), records); err != nil {
			return acerrors.New(acerrors.KindSignature, "signature.VerifyBody", err)
		}
	}
	return nil
}

// verifyAny succeeds if any of records validates payload against a
// known key (spec §4.D: "succeeds if any known key validates the
// signature").
func (v *Validator) verifyAny(ctx context.Context, payload []byte, records []config.SignatureRecord) error {
	var lastErr error
	for _, rec := range records {
		if err := v.verifyOne(ctx, payload, rec); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no signature records")
	}
	return lastErr
}

func (v *Validator) verifyOne(ctx context.Context, payload []byte, rec config.SignatureRecord) error {
	method, ok := signingMethods[rec.SigningAlgorithm]
	if !ok {
		return fmt.Errorf("unsupported signing algorithm %q", rec.SigningAlgorithm)
	}

	sig, err := base64.StdEncoding.DecodeString(rec.Signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	key, err := v.lookup(ctx, rec.KeyID)
	if err != nil {
		return err
	}
	pub, err := key.PublicKey()
	if err != nil {
		return err
	}
	return method.Verify(string(payload), sig, pub)
}

// lookup returns the cached key matching kid, re-fetching the JWKS
// once before failing if it is not found (spec §4.D key rotation
// rule).
func (v *Validator) lookup(ctx context.Context, kid string) (JWK, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.keys == nil {
		if err := v.refreshLocked(ctx); err != nil {
			return JWK{}, err
		}
	}
	if k, ok := find(v.keys, kid); ok {
		return k, nil
	}

	if err := v.refreshLocked(ctx); err != nil {
		return JWK{}, err
	}
	if k, ok := find(v.keys, kid); ok {
		return k, nil
	}
	return JWK{}, fmt.Errorf("unknown key id %q after refetch", kid)
}

func (v *Validator) refreshLocked(ctx context.Context) error {
	set, err := v.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	v.keys = set.Keys
	return nil
}

func find(keys []JWK, kid string) (JWK, bool) {
	for _, k := range keys {
		if k.Kid == kid {
			return k, true
		}
	}
	return JWK{}, false
}
