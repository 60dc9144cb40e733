// Package k8s implements the Kubernetes supervisor variant: rendering
// an Agent Type's Kubernetes artifacts into HelmRepository/HelmRelease
// objects, applying them idempotently, and deriving health/version
// from their observed status (spec §4.F).
package k8s

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Labels and annotation every object this supervisor creates carries
// (spec §4.F: "Each object carries two mandatory labels... plus an
// annotation carrying the full AgentTypeId"), also the contract the
// garbage collector (§4.H) scans for.
const (
	LabelManagedBy = "managed-by"
	LabelAgentID   = "agent-id"

	ManagedByValue = "agent-control"

	AnnotationAgentTypeID = "newrelic.com/agent-type-id"
)

// HelmRepositorySpec mirrors the subset of
// source.toolkit.fluxcd.io/v1's HelmRepository spec Agent Control
// needs to point at a chart repository.
type HelmRepositorySpec struct {
	URL      string `json:"url"`
	Interval string `json:"interval"`
}

// HelmReleaseChartSpec mirrors helm.toolkit.fluxcd.io/v2's
// HelmRelease chart reference.
type HelmReleaseChartSpec struct {
	Chart   string               `json:"chart"`
	Version string               `json:"version,omitempty"`
	SourceRef HelmReleaseSourceRef `json:"sourceRef"`
}

type HelmReleaseSourceRef struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

type HelmReleaseChart struct {
	Spec HelmReleaseChartSpec `json:"spec"`
}

// HelmReleaseSpec mirrors the subset of helm.toolkit.fluxcd.io/v2's
// HelmRelease spec Agent Control emits: which chart, from where, with
// which values.
type HelmReleaseSpec struct {
	Chart       HelmReleaseChart       `json:"chart"`
	Interval    string                 `json:"interval"`
	Values      map[string]interface{} `json:"values,omitempty"`
	ReleaseName string                 `json:"releaseName,omitempty"`
}

// HelmReleaseStatus mirrors enough of the real CRD's status for
// health/version extraction (spec §4.F).
type HelmReleaseStatus struct {
	Conditions            []Condition      `json:"conditions,omitempty"`
	LastAttemptedRevision string           `json:"lastAttemptedRevision,omitempty"`
	History               []HistoryEntry   `json:"history,omitempty"`
}

type Condition struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type HistoryEntry struct {
	ChartVersion string `json:"chartVersion"`
	Status       string `json:"status"`
}

// Object is the minimal typed shape Agent Control builds before
// converting to unstructured for apply (spec §4.F: "a set of typed
// Kubernetes objects").
type Object struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`
	Spec              interface{} `json:"spec,omitempty"`
	Status            interface{} `json:"status,omitempty"`
}

// WithManagedLabels sets the mandatory managed-by/agent-id labels and
// the AgentTypeId annotation (spec §4.F, §4.H).
func WithManagedLabels(o *Object, agentID, agentTypeID string) {
	if o.Labels == nil {
		o.Labels = map[string]string{}
	}
	o.Labels[LabelManagedBy] = ManagedByValue
	o.Labels[LabelAgentID] = agentID

	if o.Annotations == nil {
		o.Annotations = map[string]string{}
	}
	o.Annotations[AnnotationAgentTypeID] = agentTypeID
}
