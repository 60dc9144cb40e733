package config

import (
	"context"
	"encoding/json"

	"sigs.k8s.io/yaml"

	"github.com/newrelic/agent-control/internal/acerrors"
	"github.com/newrelic/agent-control/internal/kvstore"
)

// Capabilities is the OpAMP capability set advertised by the control
// plane for one agent (spec §4.B "capability gate").
type Capabilities map[string]struct{}

const CapabilityAcceptsRemoteConfig = "AcceptsRemoteConfig"

func (c Capabilities) Has(cap string) bool {
	_, ok := c[cap]
	return ok
}

func NewCapabilities(caps ...string) Capabilities {
	c := make(Capabilities, len(caps))
	for _, cp := range caps {
		c[cp] = struct{}{}
	}
	return c
}

// Repository implements component B's per-agent remote/local config
// contract (spec §4.B): load_local, load_remote, store_remote,
// get_hash, update_state, delete_remote. Backed by a kvstore.Store so
// the same code serves both the host (directory) and Kubernetes
// (ConfigMap) variants.
type Repository struct {
	kv                    kvstore.Store
	remoteManagementDisabled bool
}

func NewRepository(kv kvstore.Store, remoteManagementDisabled bool) *Repository {
	return &Repository{kv: kv, remoteManagementDisabled: remoteManagementDisabled}
}

// LoadLocal returns the operator-provisioned local body for agentID,
// or ok=false if none exists.
func (r *Repository) LoadLocal(ctx context.Context, agentID AgentID) (Body, bool, error) {
	raw, ok, err := r.kv.Get(ctx, kvstore.NamespaceLocal, string(agentID), kvstore.KeyLocalConfig)
	if err != nil {
		return nil, false, acerrors.New(acerrors.KindLoad, "Repository.LoadLocal", err)
	}
	if !ok {
		return nil, false, nil
	}
	var body Body
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, false, acerrors.New(acerrors.KindParse, "Repository.LoadLocal", err)
	}
	return body, true, nil
}

// LoadRemote returns the persisted RemoteConfig for agentID, or
// ok=false if either remote management is globally disabled, the
// capability set lacks AcceptsRemoteConfig (spec §4.B "Capability
// gate"), or none has been received yet.
func (r *Repository) LoadRemote(ctx context.Context, agentID AgentID, caps Capabilities) (*RemoteConfig, bool, error) {
	if r.remoteManagementDisabled || !caps.Has(CapabilityAcceptsRemoteConfig) {
		return nil, false, nil
	}

	raw, ok, err := r.kv.Get(ctx, kvstore.NamespaceFleet, string(agentID), kvstore.KeyRemoteConfig)
	if err != nil {
		return nil, false, acerrors.New(acerrors.KindLoad, "Repository.LoadRemote", err)
	}
	if !ok {
		return nil, false, nil
	}
	var rc RemoteConfig
	if err := json.Unmarshal(raw, &rc); err != nil {
		return nil, false, acerrors.New(acerrors.KindParse, "Repository.LoadRemote", err)
	}
	return &rc, true, nil
}

// StoreRemote persists rc. It is idempotent on identical body+hash
// (spec §4.B "Hash semantics") — callers should check GetHash first
// when they want to skip a redundant write, but StoreRemote itself
// simply overwrites, since the stored bytes would be identical anyway.
func (r *Repository) StoreRemote(ctx context.Context, rc RemoteConfig) error {
	raw, err := json.Marshal(rc)
	if err != nil {
		return acerrors.New(acerrors.KindStore, "Repository.StoreRemote", err)
	}
	if err := r.kv.Set(ctx, kvstore.NamespaceFleet, string(rc.AgentID), kvstore.KeyRemoteConfig, raw); err != nil {
		return acerrors.New(acerrors.KindStore, "Repository.StoreRemote", err)
	}
	return nil
}

// GetHash returns the hash of the currently persisted remote config
// for agentID, or ok=false if none is persisted.
func (r *Repository) GetHash(ctx context.Context, agentID AgentID) (Hash, bool, error) {
	rc, ok, err := r.LoadRemote(ctx, agentID, NewCapabilities(CapabilityAcceptsRemoteConfig))
	if err != nil || !ok {
		return "", ok, err
	}
	return rc.Hash, true, nil
}

// UpdateState rewrites only the State of the persisted remote config
// for agentID, preserving Body and Hash exactly (spec §4.B "update_state
// must preserve the body and hash, changing only state").
func (r *Repository) UpdateState(ctx context.Context, agentID AgentID, state ConfigState) error {
	raw, ok, err := r.kv.Get(ctx, kvstore.NamespaceFleet, string(agentID), kvstore.KeyRemoteConfig)
	if err != nil {
		return acerrors.New(acerrors.KindLoad, "Repository.UpdateState", err)
	}
	if !ok {
		return acerrors.New(acerrors.KindStore, "Repository.UpdateState", errNoRemoteConfig(agentID))
	}
	var rc RemoteConfig
	if err := json.Unmarshal(raw, &rc); err != nil {
		return acerrors.New(acerrors.KindParse, "Repository.UpdateState", err)
	}
	rc.State = state
	return r.StoreRemote(ctx, rc)
}

// LoadValues returns the fleet-persisted AgentValues for agentID —
// `<remote_dir>/fleet-data/<agent_id>/values.yaml` on the host variant,
// the fleet-data-<agent_id> ConfigMap's "values" key on Kubernetes
// (spec §6) — or an empty set if none has been stored yet.
func (r *Repository) LoadValues(ctx context.Context, agentID AgentID) (map[string]any, error) {
	raw, ok, err := r.kv.Get(ctx, kvstore.NamespaceFleet, string(agentID), kvstore.KeyValues)
	if err != nil {
		return nil, acerrors.New(acerrors.KindLoad, "Repository.LoadValues", err)
	}
	if !ok {
		return map[string]any{}, nil
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, acerrors.New(acerrors.KindParse, "Repository.LoadValues", err)
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}

// DeleteRemote removes the persisted remote config for agentID.
func (r *Repository) DeleteRemote(ctx context.Context, agentID AgentID) error {
	if err := r.kv.Delete(ctx, kvstore.NamespaceFleet, string(agentID), kvstore.KeyRemoteConfig); err != nil {
		return acerrors.New(acerrors.KindDelete, "Repository.DeleteRemote", err)
	}
	return nil
}

type errNoRemoteConfig AgentID

func (e errNoRemoteConfig) Error() string {
	return "no remote config persisted for agent " + string(e)
}
