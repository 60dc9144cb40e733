package k8s

import (
	"context"
	"fmt"
	"time"

	"github.com/rancher/wrangler/v2/pkg/apply"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	"github.com/newrelic/agent-control/internal/agenttype"
	"github.com/newrelic/agent-control/internal/config"
	"github.com/newrelic/agent-control/internal/health"
	"github.com/newrelic/agent-control/internal/supervisor"
)

// releaseGVR identifies the HelmRelease custom resource this
// supervisor reads back for health/version (spec §4.F).
var releaseGVR = schema.GroupVersionResource{
	Group:    "helm.toolkit.fluxcd.io",
	Version:  "v2",
	Resource: "helmreleases",
}

// Supervisor is the Kubernetes-variant implementation of
// supervisor.Supervisor, scoped to one AgentId (spec §3 ownership:
// "each supervisor exclusively owns ... the Kubernetes objects it
// created").
type Supervisor struct {
	Apply        apply.Apply
	Dynamic      dynamic.Interface
	Namespace    string
	AgentID      config.AgentID
	AgentTypeID  config.AgentTypeID
	ChartVersion string
}

func New(a apply.Apply, dyn dynamic.Interface, namespace string, agentID config.AgentID, agentTypeID config.AgentTypeID, chartVersion string) *Supervisor {
	return &Supervisor{
		Apply: a, Dynamic: dyn, Namespace: namespace,
		AgentID: agentID, AgentTypeID: agentTypeID, ChartVersion: chartVersion,
	}
}

func (s *Supervisor) Start(ctx context.Context, artifacts agenttype.DeploymentArtifacts) (supervisor.StartedHandle, error) {
	if artifacts.K8s == nil {
		return nil, fmt.Errorf("k8s supervisor: no kubernetes artifacts")
	}

	objs, err := Build(s.AgentID, s.AgentTypeID, s.Namespace, artifacts.K8s, s.ChartVersion)
	if err != nil {
		return nil, err
	}

	runtimeObjs := make([]runtime.Object, 0, len(objs))
	for i := range objs {
		runtimeObjs = append(runtimeObjs, &objs[i])
	}

	setID := fmt.Sprintf("agent-control-%s", s.AgentID)
	if err := s.Apply.WithSetID(setID).WithDynamicLookup().WithDefaultNamespace(s.Namespace).ApplyObjects(runtimeObjs...); err != nil {
		return nil, fmt.Errorf("apply kubernetes objects: %w", err)
	}

	return &Handle{
		dynamic:   s.Dynamic,
		namespace: s.Namespace,
		name:      releaseName(s.AgentID),
		startTime: time.Now(),
	}, nil
}

// Handle tracks the HelmRelease object this supervisor created, to
// compute health/version on demand (spec §4.F).
type Handle struct {
	dynamic   dynamic.Interface
	namespace string
	name      string
	startTime time.Time
}

// Stop is a no-op: removing the underlying objects is the garbage
// collector's responsibility once the Reconciler enqueues it (spec
// §4.G step 2 "Removed: stop supervisor, deregister, enqueue GC").
func (h *Handle) Stop(ctx context.Context) error { return nil }

func (h *Handle) CheckHealth(ctx context.Context) health.Health {
	obj, err := h.dynamic.Resource(releaseGVR).Namespace(h.namespace).Get(ctx, h.name, metav1.GetOptions{})
	if err != nil {
		return health.Unhealthy("failed to read HelmRelease status", err, time.Now()).WithStartTime(h.startTime)
	}
	return HealthFromHelmRelease(obj, time.Now()).WithStartTime(h.startTime)
}

func (h *Handle) CheckVersion(ctx context.Context) (string, bool) {
	obj, err := h.dynamic.Resource(releaseGVR).Namespace(h.namespace).Get(ctx, h.name, metav1.GetOptions{})
	if err != nil {
		return "", false
	}
	return ExtractVersion(obj)
}

