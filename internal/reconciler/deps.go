package reconciler

import (
	"context"

	"github.com/newrelic/agent-control/internal/agenttype"
	"github.com/newrelic/agent-control/internal/config"
	"github.com/newrelic/agent-control/internal/health"
	"github.com/newrelic/agent-control/internal/supervisor"
)

// AgentTypeLoader resolves an AgentTypeId to its parsed Agent Type
// document (spec §4.C).
type AgentTypeLoader interface {
	Load(ctx context.Context, id config.AgentTypeID) (agenttype.Document, error)
}

// SupervisorFactory builds the right supervisor variant for a
// sub-agent (spec §4.F: "Two variants share one interface").
type SupervisorFactory interface {
	New(agentID config.AgentID, typeID config.AgentTypeID, chartVersion string) supervisor.Supervisor
}

// GarbageCollector is the subset of component H the Reconciler drives
// directly: enqueueing a single sub-agent's resources for removal
// (spec §4.G step 2, §4.H collect).
type GarbageCollector interface {
	Collect(ctx context.Context, id config.AgentID, agentTypeID config.AgentTypeID) error
}

// StatusPublisher is the subset of the OpAMP wrapper (component E) the
// Reconciler drives: outbound effective config, remote-config status,
// and Agent Control's own health (spec §4.E, §4.G steps 3-5).
type StatusPublisher interface {
	PublishEffectiveConfig(ctx context.Context, yamlBody string) error
	PublishRemoteConfigStatus(hash config.Hash, state config.ConfigState) error
	PublishHealth(h health.Health) error
}

// Repository is the subset of component B the Reconciler drives
// directly for remote-config persistence and per-agent values (spec
// §4.B, §6).
type Repository interface {
	StoreRemote(ctx context.Context, rc config.RemoteConfig) error
	UpdateState(ctx context.Context, agentID config.AgentID, state config.ConfigState) error
	LoadValues(ctx context.Context, agentID config.AgentID) (map[string]any, error)
}
