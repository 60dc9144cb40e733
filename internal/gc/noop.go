package gc

import (
	"context"

	"github.com/newrelic/agent-control/internal/config"
)

// Noop is the process-variant garbage collector. The process
// supervisor keeps no on-disk or API-server state beyond the running
// process itself, which Reconciler.applyConfig already stops before
// invoking Collect, so there is nothing left to reclaim.
type Noop struct{}

func (Noop) Collect(context.Context, config.AgentID, config.AgentTypeID) error { return nil }
