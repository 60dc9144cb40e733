// Package kvstore implements the narrow persistence abstraction of
// spec §9: get/set/delete keyed by (namespace, agent id, key), with two
// namespaces — "local" (read-only, operator-provisioned) and "fleet-data"
// (read-write, control-plane-mutable) — and two interchangeable
// backends: a directory on disk (host) and a ConfigMap per agent
// (Kubernetes), per spec §6.
package kvstore

import "context"

// Namespace distinguishes operator-provisioned state from
// control-plane-mutable state (spec §4.A).
type Namespace string

const (
	NamespaceLocal Namespace = "local"
	NamespaceFleet Namespace = "fleet-data"
)

// Store is the persistence abstraction every component in §4.A/§4.B
// reads and writes through. Implementations must allow concurrent
// reads; writes to the same key are serialized by the implementation
// (spec §5 "Shared resources").
type Store interface {
	// Get returns the stored bytes for (namespace, agentID, key), or
	// ok=false if absent. A deserialization error by the caller is not
	// this layer's concern; Get only reports presence/absence.
	Get(ctx context.Context, ns Namespace, agentID, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, ns Namespace, agentID, key string, value []byte) error
	Delete(ctx context.Context, ns Namespace, agentID, key string) error
}

// Well-known keys, matching the on-disk/ConfigMap layout of spec §6.
const (
	KeyLocalConfig  = "local_config"
	KeyRemoteConfig = "remote_config"
	KeyInstanceID   = "instance_id"
	KeyValues       = "values"
)
