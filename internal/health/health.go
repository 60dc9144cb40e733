// Package health implements the Health sum type of spec §3: a value is
// either Healthy or Unhealthy, always carrying a status and a
// status-time, with Unhealthy additionally carrying a last error.
package health

import "time"

// Health is a snapshot of a component's status at StatusTime.
type Health struct {
	Healthy        bool      `json:"healthy"`
	Status         string    `json:"status"`
	LastError      string    `json:"last_error,omitempty"`
	StatusTime     time.Time `json:"status_time"`
	StartTime      time.Time `json:"start_time,omitempty"`
}

// Healthy builds a healthy snapshot with the given human-readable status.
func Healthy(status string, now time.Time) Health {
	return Health{Healthy: true, Status: status, StatusTime: now}
}

// Unhealthy builds an unhealthy snapshot carrying the triggering error.
func Unhealthy(status string, lastErr error, now time.Time) Health {
	h := Health{Healthy: false, Status: status, StatusTime: now}
	if lastErr != nil {
		h.LastError = lastErr.Error()
	}
	return h
}

// WithStartTime returns a copy of h with StartTime set; used for
// sub-agent health, which additionally tracks when the supervisor
// started the workload (spec §3).
func (h Health) WithStartTime(t time.Time) Health {
	h.StartTime = t
	return h
}

// Aggregate reduces a set of Health values to a single one: unhealthy
// if any input is unhealthy, carrying the first encountered error;
// healthy otherwise. Used by the Reconciler (§4.G step 5) to report
// Agent Control's own health, which is defined independently of
// sub-agent health (aggregation here is a general helper, not itself
// mandated for Agent Control's own status by the spec).
func Aggregate(status string, now time.Time, all ...Health) Health {
	for _, h := range all {
		if !h.Healthy {
			unhealthy := Unhealthy(status, nil, now)
			unhealthy.LastError = h.LastError
			return unhealthy
		}
	}
	return Healthy(status, now)
}
