package config

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Hash is the content digest of a RemoteConfig body, used as an
// idempotency key and in status reporting (spec §3, §4.B).
type Hash string

// Body maps a file label to a YAML document, the wire shape of
// AgentRemoteConfig.config_map (spec §6).
type Body map[string]string

// ComputeHash returns the stable content digest of body: labels are
// sorted before hashing so Hash does not depend on map iteration
// order (spec §4.B "Hash is the digest of the remote body bytes").
func (b Body) ComputeHash() Hash {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(b[k]))
		h.Write([]byte{0})
	}
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// SignatureRecord is one entry of the CustomMessage signature map
// (spec §6): {signature (base64), signing_algorithm, key_id}.
type SignatureRecord struct {
	Signature       string `json:"signature"`
	SigningAlgorithm string `json:"signing_algorithm"`
	KeyID           string `json:"key_id"`
}

// Signature is the set of signature records carried alongside a
// remote config body, keyed by the same file label as Body (spec §6).
type Signature map[string][]SignatureRecord

// ConfigStateKind is the remote-config application state (spec §3, §4.E Figure 1).
type ConfigStateKind string

const (
	ConfigStateUnknown  ConfigStateKind = "unknown"
	ConfigStateApplying ConfigStateKind = "applying"
	ConfigStateApplied  ConfigStateKind = "applied"
	ConfigStateFailed   ConfigStateKind = "failed"
)

// ConfigState carries the application state, plus the failure message
// when Kind is Failed (spec §3 "ConfigState ∈ {Applying, Applied,
// Failed(error), Unknown}").
type ConfigState struct {
	Kind    ConfigStateKind `json:"kind"`
	Message string          `json:"message,omitempty"`
}

func StateApplying() ConfigState { return ConfigState{Kind: ConfigStateApplying} }
func StateApplied() ConfigState  { return ConfigState{Kind: ConfigStateApplied} }
func StateFailed(msg string) ConfigState {
	return ConfigState{Kind: ConfigStateFailed, Message: msg}
}

// RemoteConfig is the tuple (AgentId, ConfigHash, Body?, Signature?)
// of spec §3. It is created once on receipt and never mutated; only
// its persisted State changes.
type RemoteConfig struct {
	AgentID   AgentID         `json:"agent_id"`
	Hash      Hash            `json:"hash"`
	Body      Body            `json:"body,omitempty"`
	Signature Signature       `json:"signature,omitempty"`
	State     ConfigState     `json:"state"`
}

// NewRemoteConfig builds a RemoteConfig with a freshly computed hash
// and ConfigStateUnknown, the state every received-but-not-yet-applied
// config starts in before the Reconciler transitions it to Applying.
func NewRemoteConfig(agentID AgentID, body Body, sig Signature) RemoteConfig {
	return RemoteConfig{
		AgentID:   agentID,
		Hash:      body.ComputeHash(),
		Body:      body,
		Signature: sig,
		State:     ConfigState{Kind: ConfigStateUnknown},
	}
}
