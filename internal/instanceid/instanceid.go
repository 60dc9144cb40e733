// Package instanceid implements component A: minting and persisting a
// stable ULID per AgentId, keyed by a tuple of environment identifiers
// (spec §3 InstanceId, §4.A).
package instanceid

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"time"

	"github.com/oklog/ulid"

	"github.com/newrelic/agent-control/internal/acerrors"
	"github.com/newrelic/agent-control/internal/kvstore"
)

// ID is a ULID identifying one managed agent's instance across restarts.
type ID string

// Identifiers is the tuple InstanceId is keyed on (spec §3). If any
// field changes between runs, Get mints a new ID.
type Identifiers struct {
	Hostname         string `json:"hostname"`
	MachineID        string `json:"machine_id"`
	CloudInstanceID  string `json:"cloud_instance_id,omitempty"`
	HostID           string `json:"host_id,omitempty"`
	FleetID          string `json:"fleet_id,omitempty"`
}

type record struct {
	ID          ID          `json:"id"`
	Identifiers Identifiers `json:"identifiers"`
}

// Store mints and persists InstanceIds in the kvstore "fleet-data"
// namespace, keyed by AgentId.
type Store struct {
	kv kvstore.Store
}

func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

// Get implements the algorithm of spec §4.A: load the stored
// (id, identifiers); if present and identifiers are unchanged, reuse
// the stored id; otherwise mint a fresh ULID, persist it, and return
// it. A deserialization error is treated as absence (mint).
func (s *Store) Get(ctx context.Context, agentID string, current Identifiers) (ID, error) {
	raw, ok, err := s.kv.Get(ctx, kvstore.NamespaceFleet, agentID, kvstore.KeyInstanceID)
	if err != nil {
		return "", acerrors.New(acerrors.KindLoad, "instanceid.Store.Get", err)
	}

	if ok {
		var rec record
		if err := json.Unmarshal(raw, &rec); err == nil {
			if rec.Identifiers == current {
				return rec.ID, nil
			}
		}
		// Deserialization error or changed identifiers both fall through to minting.
	}

	id, err := mint()
	if err != nil {
		return "", acerrors.New(acerrors.KindExternalIO, "instanceid.Store.Get", err)
	}
	if err := s.Set(ctx, agentID, id, current); err != nil {
		return "", err
	}
	return id, nil
}

// Set persists id and its current identifiers for agentID.
func (s *Store) Set(ctx context.Context, agentID string, id ID, current Identifiers) error {
	raw, err := json.Marshal(record{ID: id, Identifiers: current})
	if err != nil {
		return acerrors.New(acerrors.KindStore, "instanceid.Store.Set", err)
	}
	if err := s.kv.Set(ctx, kvstore.NamespaceFleet, agentID, kvstore.KeyInstanceID, raw); err != nil {
		return acerrors.New(acerrors.KindStore, "instanceid.Store.Set", err)
	}
	return nil
}

func mint() (ID, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return ID(id.String()), nil
}
