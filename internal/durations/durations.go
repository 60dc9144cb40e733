// Package durations centralizes the time constants used across Agent
// Control's reconciliation, supervision, and retry paths.
package durations

import "time"

const (
	// ReconcilerTickInterval drives the periodic version-refresh tick (§4.G step 4).
	ReconcilerTickInterval = time.Minute * 1
	// OpAMPReconnectRetry bounds how often the OpAMP client retries a failed dial.
	OpAMPReconnectRetry = time.Second * 10
	// JWKSRefetchTimeout bounds the one allowed re-fetch on signing-key rotation (§4.D).
	JWKSRefetchTimeout = time.Second * 10
	// ProcessStopGracePeriod is the SIGTERM to SIGKILL grace window (§4.F).
	ProcessStopGracePeriod = time.Second * 15
	// ProcessRestartWindow bounds how far back failures count toward max_retries.
	ProcessRestartWindow = time.Minute * 5
	// GarbageCollectInterval is the fallback periodic sweep in addition to event-driven GC.
	GarbageCollectInterval = time.Minute * 10
	// KubernetesApplyTimeout is the per-call deadline for a server-side apply (§5).
	KubernetesApplyTimeout = time.Second * 30
	// KubernetesDiscoveryInvalidate matches the discovery-cache refresh cadence.
	KubernetesDiscoveryInvalidate = time.Second * 30
	// StatusServerReadTimeout bounds reads on the local status endpoint.
	StatusServerReadTimeout = time.Second * 5
	// StatusServerWriteTimeout bounds writes on the local status endpoint.
	StatusServerWriteTimeout = time.Second * 5
	// StopDrainTimeout bounds how long a process-wide stop waits for supervisors to exit.
	StopDrainTimeout = time.Second * 30
)
