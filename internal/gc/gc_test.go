package gc

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic/fake"

	"github.com/newrelic/agent-control/internal/config"
	"github.com/newrelic/agent-control/internal/supervisor/k8s"
)

var helmReleaseGVR = schema.GroupVersionResource{Group: "helm.toolkit.fluxcd.io", Version: "v2", Resource: "helmreleases"}

// fakeMapper maps exactly the HelmRelease kind the tests register, and
// returns an error for everything else (simulating a kind absent from
// the cluster, which forEachManaged must skip rather than fail on).
type fakeMapper struct {
	known map[schema.GroupVersionKind]schema.GroupVersionResource
}

func (m *fakeMapper) RESTMapping(gk schema.GroupKind, versions ...string) (*meta.RESTMapping, error) {
	version := ""
	if len(versions) > 0 {
		version = versions[0]
	}
	gvk := gk.WithVersion(version)
	gvr, ok := m.known[gvk]
	if !ok {
		return nil, &meta.NoKindMatchError{GroupKind: gk}
	}
	return &meta.RESTMapping{Resource: gvr, GroupVersionKind: gvk, Scope: meta.RESTScopeNamespace}, nil
}

func (m *fakeMapper) RESTMappings(gk schema.GroupKind, versions ...string) ([]*meta.RESTMapping, error) {
	return nil, nil
}
func (m *fakeMapper) ResourceFor(schema.GroupVersionResource) (schema.GroupVersionResource, error) {
	return schema.GroupVersionResource{}, nil
}
func (m *fakeMapper) ResourcesFor(schema.GroupVersionResource) ([]schema.GroupVersionResource, error) {
	return nil, nil
}
func (m *fakeMapper) KindFor(schema.GroupVersionResource) (schema.GroupVersionKind, error) {
	return schema.GroupVersionKind{}, nil
}
func (m *fakeMapper) KindsFor(schema.GroupVersionResource) ([]schema.GroupVersionKind, error) {
	return nil, nil
}

func newTestGC(t *testing.T, objs ...runtime.Object) (*GC, *fake.FakeDynamicClient) {
	t.Helper()
	scheme := runtime.NewScheme()
	listKinds := map[schema.GroupVersionResource]string{helmReleaseGVR: "HelmReleaseList"}
	client := fake.NewSimpleDynamicClientWithCustomListKinds(scheme, listKinds, objs...)

	mapper := &fakeMapper{known: map[schema.GroupVersionKind]schema.GroupVersionResource{
		{Group: "helm.toolkit.fluxcd.io", Version: "v2", Kind: "HelmRelease"}: helmReleaseGVR,
	}}

	kinds := []config.TypeMeta{
		{APIVersion: "helm.toolkit.fluxcd.io/v2", Kind: "HelmRelease"},
		{APIVersion: "acme.example.com/v1", Kind: "Widget"}, // absent from cluster, must be skipped
	}

	return New(client, mapper, kinds, "newrelic", logrus.NewEntry(logrus.New())), client
}

func managedRelease(name, agentID, agentTypeID string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "helm.toolkit.fluxcd.io/v2",
		"kind":       "HelmRelease",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": "newrelic",
			"labels": map[string]interface{}{
				k8s.LabelManagedBy: k8s.ManagedByValue,
				k8s.LabelAgentID:   agentID,
			},
			"annotations": map[string]interface{}{
				k8s.AnnotationAgentTypeID: agentTypeID,
			},
		},
	}}
}

func TestCollect_DeletesMatchingAgentIDAndType(t *testing.T) {
	g, client := newTestGC(t, managedRelease("rolldice1", "rolldice1", "newrelic/com.newrelic.infra:1.2.3"))

	agentTypeID, err := config.ParseAgentTypeID("newrelic/com.newrelic.infra:1.2.3")
	require.NoError(t, err)

	err = g.Collect(context.Background(), "rolldice1", agentTypeID)
	require.NoError(t, err)

	list, err := client.Resource(helmReleaseGVR).Namespace("newrelic").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
}

func TestCollect_LeavesMismatchedAgentTypeUntouched(t *testing.T) {
	g, client := newTestGC(t, managedRelease("rolldice1", "rolldice1", "newrelic/com.newrelic.infra:1.0.0"))

	newType, err := config.ParseAgentTypeID("newrelic/com.newrelic.infra:2.0.0")
	require.NoError(t, err)

	err = g.Collect(context.Background(), "rolldice1", newType)
	require.NoError(t, err)

	list, err := client.Resource(helmReleaseGVR).Namespace("newrelic").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1, "resource with a different AgentTypeId annotation must survive Collect")
}

func TestCollect_RejectsSentinelID(t *testing.T) {
	g, _ := newTestGC(t)
	agentTypeID, err := config.ParseAgentTypeID("newrelic/com.newrelic.infra:1.2.3")
	require.NoError(t, err)

	err = g.Collect(context.Background(), config.SentinelAgentID, agentTypeID)
	assert.Error(t, err)
}

func TestRetain_DeletesOrphansNotInActiveSet(t *testing.T) {
	g, client := newTestGC(t,
		managedRelease("rolldice1", "rolldice1", "newrelic/com.newrelic.infra:1.2.3"),
		managedRelease("rolldice2", "rolldice2", "newrelic/com.newrelic.infra:1.2.3"),
	)

	activeType, err := config.ParseAgentTypeID("newrelic/com.newrelic.infra:1.2.3")
	require.NoError(t, err)

	err = g.Retain(context.Background(), []ActiveAgent{{AgentID: "rolldice1", AgentTypeID: activeType}})
	require.NoError(t, err)

	list, err := client.Resource(helmReleaseGVR).Namespace("newrelic").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "rolldice1", list.Items[0].GetLabels()[k8s.LabelAgentID])
}

func TestRetain_KeepsSentinelResources(t *testing.T) {
	g, client := newTestGC(t, managedRelease("agent-control-core", string(config.SentinelAgentID), "newrelic/agent-control:1.0.0"))

	err := g.Retain(context.Background(), nil)
	require.NoError(t, err)

	list, err := client.Resource(helmReleaseGVR).Namespace("newrelic").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
}
