package k8s

import (
	"encoding/json"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/newrelic/agent-control/internal/agenttype"
	"github.com/newrelic/agent-control/internal/config"
)

// repositoryName and releaseName derive deterministic, DNS-safe
// object names from an AgentId, so repeated reconciliation always
// targets the same objects (apply-if-changed needs a stable identity).
func repositoryName(agentID config.AgentID) string { return fmt.Sprintf("%s-repo", agentID) }
func releaseName(agentID config.AgentID) string     { return string(agentID) }

// Build renders artifacts into the HelmRepository/HelmRelease object
// pair for agentID, with the mandatory labels and AgentTypeId
// annotation already applied (spec §4.F).
func Build(agentID config.AgentID, agentTypeID config.AgentTypeID, namespace string, artifacts *agenttype.K8sArtifacts, chartVersion string) ([]unstructured.Unstructured, error) {
	values := map[string]interface{}{}
	if artifacts.ValuesYAML != "" {
		if err := yaml.Unmarshal([]byte(artifacts.ValuesYAML), &values); err != nil {
			return nil, fmt.Errorf("unmarshal rendered values: %w", err)
		}
	}

	repo := Object{
		TypeMeta: metav1.TypeMeta{APIVersion: "source.toolkit.fluxcd.io/v1", Kind: "HelmRepository"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      repositoryName(agentID),
			Namespace: namespace,
		},
		Spec: HelmRepositorySpec{URL: artifacts.Repository, Interval: "10m"},
	}
	WithManagedLabels(&repo, string(agentID), agentTypeID.String())

	release := Object{
		TypeMeta: metav1.TypeMeta{APIVersion: "helm.toolkit.fluxcd.io/v2", Kind: "HelmRelease"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      releaseName(agentID),
			Namespace: namespace,
		},
		Spec: HelmReleaseSpec{
			Chart: HelmReleaseChart{Spec: HelmReleaseChartSpec{
				Chart:   artifacts.Chart,
				Version: chartVersion,
				SourceRef: HelmReleaseSourceRef{Kind: "HelmRepository", Name: repositoryName(agentID)},
			}},
			Interval:    "5m",
			Values:      values,
			ReleaseName: releaseName(agentID),
		},
	}
	WithManagedLabels(&release, string(agentID), agentTypeID.String())

	repoU, err := toUnstructured(repo)
	if err != nil {
		return nil, err
	}
	releaseU, err := toUnstructured(release)
	if err != nil {
		return nil, err
	}
	return []unstructured.Unstructured{repoU, releaseU}, nil
}

func toUnstructured(o Object) (unstructured.Unstructured, error) {
	raw, err := json.Marshal(o)
	if err != nil {
		return unstructured.Unstructured{}, err
	}
	var content map[string]interface{}
	if err := json.Unmarshal(raw, &content); err != nil {
		return unstructured.Unstructured{}, err
	}
	return unstructured.Unstructured{Object: content}, nil
}
