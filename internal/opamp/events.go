// Package opamp wraps a bidirectional OpAMP session with the control
// plane, translating protocol messages into the internal events the
// Reconciler consumes and publishing Agent Control's outbound state
// (spec §4.E).
package opamp

import (
	"github.com/newrelic/agent-control/internal/config"
)

// Event is one of the inbound translations spec §4.E requires the
// wrapper to produce.
type Event interface{ isEvent() }

// ValidRemoteConfigReceived is emitted after signature and schema
// validation pass (spec §4.E).
type ValidRemoteConfigReceived struct {
	Config config.RemoteConfig
}

func (ValidRemoteConfigReceived) isEvent() {}

// InvalidRemoteConfigReceived is emitted when validation fails; Hash
// is the rejected body's hash so the server can be told which config
// failed (spec §4.E).
type InvalidRemoteConfigReceived struct {
	Hash config.Hash
	Err  error
}

func (InvalidRemoteConfigReceived) isEvent() {}

// ConnectionStateChanged reports a reachable/unreachable transition,
// feeding the local status endpoint (spec §4.E).
type ConnectionStateChanged struct {
	Reachable      bool
	HTTPStatusCode int
}

func (ConnectionStateChanged) isEvent() {}
