// Package reconciler implements component G: the single-threaded
// Agent Control event loop that owns the running supervisor set and
// drives it to match the effective AgentControlConfig (spec §4.G).
package reconciler

import (
	"github.com/newrelic/agent-control/internal/config"
	"github.com/newrelic/agent-control/internal/health"
)

// Event is one of the inputs the loop's channel carries (spec §4.G:
// "OpAMP inbound events, supervisor health/version events, an
// application-level stop request, and a periodic tick").
type Event interface{ isEvent() }

// LocalConfigChanged carries a freshly loaded local+env
// AgentControlConfig (layers 1-2 of spec §4.B).
type LocalConfigChanged struct{ Config config.AgentControlConfig }

func (LocalConfigChanged) isEvent() {}

// RemoteConfigValid carries a signature- and schema-validated remote
// config, ready to be layered over the local config (spec §4.B layer 3).
type RemoteConfigValid struct{ Config config.RemoteConfig }

func (RemoteConfigValid) isEvent() {}

// RemoteConfigInvalid carries a remote config that failed validation;
// the Reconciler reports Failed without touching the running set.
type RemoteConfigInvalid struct {
	Hash config.Hash
	Err  error
}

func (RemoteConfigInvalid) isEvent() {}

// SupervisorHealthChanged is emitted by a running supervisor whenever
// its health changes.
type SupervisorHealthChanged struct {
	AgentID config.AgentID
	Health  health.Health
}

func (SupervisorHealthChanged) isEvent() {}

// VersionTick requests a periodic version refresh for every running
// sub-agent (spec §4.G step 4).
type VersionTick struct{}

func (VersionTick) isEvent() {}

// StopRequested is the application-level shutdown signal (spec §4.G:
// "a termination request causes the client to stop ... without
// waiting for in-flight reconciliation" per §4.E, mirrored here for
// the Reconciler's own loop).
type StopRequested struct{}

func (StopRequested) isEvent() {}
