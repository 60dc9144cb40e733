// Package gc implements component H: discovering Kubernetes resources
// Agent Control manages and deleting exactly those no longer declared
// (spec §4.H).
package gc

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	"github.com/newrelic/agent-control/internal/acerrors"
	"github.com/newrelic/agent-control/internal/config"
	"github.com/newrelic/agent-control/internal/supervisor/k8s"
)

// ActiveAgent is one entry of the active set passed to Retain (spec
// §4.H: "active_ids: set<(AgentId, AgentTypeId)>").
type ActiveAgent struct {
	AgentID     config.AgentID
	AgentTypeID config.AgentTypeID
}

// GC is the Kubernetes-variant garbage collector. It scans every kind
// in Kinds across Namespace, using Mapper to skip kinds whose API is
// absent from the cluster (spec §4.H, grounded on
// internal/cmd/agent/start.go's newMappers/RESTMapper usage).
type GC struct {
	Dynamic   dynamic.Interface
	Mapper    meta.RESTMapper
	Kinds     []config.TypeMeta
	Namespace string
	Log       *logrus.Entry
}

func New(dyn dynamic.Interface, mapper meta.RESTMapper, kinds []config.TypeMeta, namespace string, log *logrus.Entry) *GC {
	return &GC{Dynamic: dyn, Mapper: mapper, Kinds: kinds, Namespace: namespace, Log: log}
}

// Retain deletes every managed resource whose agent-id label is
// not the sentinel and that is either not a member of active, or whose
// AgentTypeId annotation differs from the active set's entry for that AgentId
// (spec §4.H retain).
func (g *GC) Retain(ctx context.Context, active []ActiveAgent) error {
	byID := make(map[config.AgentID]config.AgentTypeID, len(active))
	for _, a := range active {
		byID[a.AgentID] = a.AgentTypeID
	}

	return g.forEachManaged(ctx, func(obj resourceRef) error {
		if obj.agentID == string(config.SentinelAgentID) {
			return nil
		}
		wantType, isActive := byID[config.AgentID(obj.agentID)]
		if isActive && wantType.String() == obj.agentTypeID {
			return nil
		}
		return g.delete(ctx, obj)
	})
}

// Collect deletes every managed resource whose agent-id label equals
// id and whose AgentTypeId annotation equals agentTypeID (spec §4.H
// collect). The sentinel id is rejected: GC must never delete Agent
// Control's own resources.
func (g *GC) Collect(ctx context.Context, id config.AgentID, agentTypeID config.AgentTypeID) error {
	if id == config.SentinelAgentID {
		return acerrors.New(acerrors.KindValidation, "gc.Collect", fmt.Errorf("refusing to collect the agent control sentinel id"))
	}

	return g.forEachManaged(ctx, func(obj resourceRef) error {
		if obj.agentID != string(id) || obj.agentTypeID != agentTypeID.String() {
			return nil
		}
		return g.delete(ctx, obj)
	})
}

type resourceRef struct {
	gvr         schema.GroupVersionResource
	namespace   string
	name        string
	agentID     string
	agentTypeID string
}

// forEachManaged lists every object of every configured kind carrying
// the managed-by label and invokes fn for each. Resources without the
// label are left untouched unconditionally, matching them is simply
// never attempted here. A kind whose API is absent from the cluster is
// skipped with a debug log, not a failure (spec §4.H).
func (g *GC) forEachManaged(ctx context.Context, fn func(resourceRef) error) error {
	for _, kind := range g.Kinds {
		gvk := schema.FromAPIVersionAndKind(kind.APIVersion, kind.Kind)
		mapping, err := g.Mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
		if err != nil {
			g.Log.WithField("gvk", gvk.String()).WithError(err).Debug("gc: kind not present in cluster, skipping")
			continue
		}

		list, err := g.Dynamic.Resource(mapping.Resource).Namespace(g.Namespace).
			List(ctx, metav1.ListOptions{LabelSelector: k8s.LabelManagedBy + "=" + k8s.ManagedByValue})
		if err != nil {
			return fmt.Errorf("gc: listing %s: %w", gvk, err)
		}

		for _, item := range list.Items {
			ref := resourceRef{
				gvr:         mapping.Resource,
				namespace:   item.GetNamespace(),
				name:        item.GetName(),
				agentID:     item.GetLabels()[k8s.LabelAgentID],
				agentTypeID: item.GetAnnotations()[k8s.AnnotationAgentTypeID],
			}
			if err := fn(ref); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *GC) delete(ctx context.Context, ref resourceRef) error {
	g.Log.WithField("name", ref.name).WithField("agent_id", ref.agentID).Info("gc: deleting orphaned resource")
	err := g.Dynamic.Resource(ref.gvr).Namespace(ref.namespace).Delete(ctx, ref.name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("gc: deleting %s/%s: %w", ref.namespace, ref.name, err)
	}
	return nil
}
