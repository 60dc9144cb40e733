// Package supervisor declares the interface shared by the process and
// Kubernetes sub-agent supervisor variants (spec §4.F).
package supervisor

import (
	"context"

	"github.com/newrelic/agent-control/internal/agenttype"
	"github.com/newrelic/agent-control/internal/health"
)

// Supervisor starts a sub-agent from its rendered deployment
// artifacts. Implementations are the process and Kubernetes variants
// (spec §4.F: "Two variants share one interface").
type Supervisor interface {
	Start(ctx context.Context, artifacts agenttype.DeploymentArtifacts) (StartedHandle, error)
}

// StartedHandle is a running sub-agent instance.
type StartedHandle interface {
	Stop(ctx context.Context) error
	CheckHealth(ctx context.Context) health.Health
	CheckVersion(ctx context.Context) (version string, ok bool)
}
