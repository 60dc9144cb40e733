package k8s

import "k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

// ExtractVersion implements spec §4.F's priority chain:
// spec.chart.spec.version (if not "*"), then
// status.lastAttemptedRevision, then the most recently deployed entry
// in status.history.
func ExtractVersion(obj *unstructured.Unstructured) (string, bool) {
	if v, found, _ := unstructured.NestedString(obj.Object, "spec", "chart", "spec", "version"); found && v != "" && v != "*" {
		return v, true
	}
	if v, found, _ := unstructured.NestedString(obj.Object, "status", "lastAttemptedRevision"); found && v != "" {
		return v, true
	}

	history, found, _ := unstructured.NestedSlice(obj.Object, "status", "history")
	if !found {
		return "", false
	}
	for _, h := range history {
		entry, ok := h.(map[string]interface{})
		if !ok {
			continue
		}
		if entry["status"] == "deployed" {
			if v, ok := entry["chartVersion"].(string); ok {
				return v, true
			}
		}
	}
	return "", false
}
