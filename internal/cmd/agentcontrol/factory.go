package agentcontrol

import (
	"time"

	"github.com/rancher/wrangler/v2/pkg/apply"
	"github.com/sirupsen/logrus"
	"k8s.io/client-go/dynamic"

	"github.com/newrelic/agent-control/internal/config"
	"github.com/newrelic/agent-control/internal/supervisor"
	"github.com/newrelic/agent-control/internal/supervisor/k8s"
	"github.com/newrelic/agent-control/internal/supervisor/process"
)

// supervisorFactory implements reconciler.SupervisorFactory, choosing
// the Kubernetes variant when k8s clients were wired and the process
// variant otherwise (spec §4.F: "Two variants share one interface").
type supervisorFactory struct {
	apply     apply.Apply
	dyn       dynamic.Interface
	namespace string

	restartDelay time.Duration
	maxRestarts  int
	stopGrace    time.Duration
	processLogs  chan<- process.LogLine
	log          *logrus.Entry
}

func (f *supervisorFactory) New(agentID config.AgentID, typeID config.AgentTypeID, chartVersion string) supervisor.Supervisor {
	if f.apply != nil {
		return k8s.New(f.apply, f.dyn, f.namespace, agentID, typeID, chartVersion)
	}
	return process.New(func() process.RestartPolicy {
		return process.NewFixed(f.restartDelay, f.maxRestarts)
	}, f.stopGrace, f.processLogs, f.log.WithField("agent_id", agentID))
}
