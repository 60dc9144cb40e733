package k8s

import (
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/newrelic/agent-control/internal/health"
)

// HealthFromHelmRelease computes Health from a HelmRelease's Ready
// condition (spec §4.F: "for a HelmRelease, the Ready condition").
func HealthFromHelmRelease(obj *unstructured.Unstructured, now time.Time) health.Health {
	conditions, found, _ := unstructured.NestedSlice(obj.Object, "status", "conditions")
	if !found {
		return health.Unhealthy("no status reported yet", nil, now)
	}
	for _, c := range conditions {
		cond, ok := c.(map[string]interface{})
		if !ok || cond["type"] != "Ready" {
			continue
		}
		if cond["status"] == "True" {
			return health.Healthy("ready", now)
		}
		reason, _ := cond["reason"].(string)
		return health.Unhealthy("not ready", fmtErr(reason), now)
	}
	return health.Unhealthy("no Ready condition reported", nil, now)
}

// HealthFromStatefulSet computes Health from ready_replicas vs desired
// (spec §4.F).
func HealthFromStatefulSet(obj *unstructured.Unstructured, now time.Time) health.Health {
	desired, _, _ := unstructured.NestedInt64(obj.Object, "spec", "replicas")
	ready, _, _ := unstructured.NestedInt64(obj.Object, "status", "readyReplicas")
	if ready >= desired && desired > 0 {
		return health.Healthy("ready replicas match desired", now)
	}
	return health.Unhealthy("ready replicas below desired", fmtErr("not enough ready replicas"), now)
}

// HealthFromDaemonSet computes Health from number_unavailable == 0 and
// number_ready >= desired (spec §4.F).
func HealthFromDaemonSet(obj *unstructured.Unstructured, now time.Time) health.Health {
	unavailable, _, _ := unstructured.NestedInt64(obj.Object, "status", "numberUnavailable")
	ready, _, _ := unstructured.NestedInt64(obj.Object, "status", "numberReady")
	desired, _, _ := unstructured.NestedInt64(obj.Object, "status", "desiredNumberScheduled")
	if unavailable == 0 && ready >= desired {
		return health.Healthy("all daemon pods ready", now)
	}
	return health.Unhealthy("daemon pods not fully ready", fmtErr("unavailable or unready daemon pods"), now)
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func fmtErr(msg string) error {
	if msg == "" {
		return nil
	}
	return simpleErr(msg)
}
