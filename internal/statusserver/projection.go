// Package statusserver implements component I: a read-only local HTTP
// endpoint reporting Agent Control's own health, fleet connectivity,
// and every sub-agent's health as a JSON snapshot (spec §4.I).
package statusserver

import (
	"sync"
	"time"

	"github.com/newrelic/agent-control/internal/config"
	"github.com/newrelic/agent-control/internal/health"
)

// FleetStatus reflects the OpAMP connection state (spec §4.I "fleet").
type FleetStatus struct {
	Enabled      bool
	Endpoint     string
	Reachable    bool
	ErrorCode    int
	ErrorMessage string
}

// subAgentEntry is one entry of the sub_agents projection.
type subAgentEntry struct {
	agentType string
	startTime time.Time
	health    health.Health
}

// Projection is the status server's own thread-safe copy of state,
// updated by direct calls from the Reconciler and the OpAMP client
// rather than by reading their internals (spec §4.I: "maintains its
// own projection").
type Projection struct {
	mu sync.Mutex

	agentControlHealth health.Health
	fleet               FleetStatus
	subAgents           map[config.AgentID]subAgentEntry
}

func NewProjection() *Projection {
	return &Projection{
		agentControlHealth: health.Healthy("starting", time.Now()),
		subAgents:          map[config.AgentID]subAgentEntry{},
	}
}

// SetAgentControlHealth records Agent Control's own health (spec
// §4.G step 5: unhealthy iff a failure occurred applying its own
// remote config).
func (p *Projection) SetAgentControlHealth(h health.Health) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.agentControlHealth = h
}

// SetFleetStatus records the current OpAMP connection state.
func (p *Projection) SetFleetStatus(fs FleetStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fleet = fs
}

// SetSubAgent records or refreshes one sub-agent's health.
func (p *Projection) SetSubAgent(id config.AgentID, agentType config.AgentTypeID, startTime time.Time, h health.Health) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subAgents[id] = subAgentEntry{agentType: agentType.String(), startTime: startTime, health: h}
}

// RemoveSubAgent drops a sub-agent once its supervisor has stopped.
func (p *Projection) RemoveSubAgent(id config.AgentID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subAgents, id)
}

// SubAgentIDs returns the currently projected sub-agent ids, so a
// caller syncing the whole running set can find entries to remove.
func (p *Projection) SubAgentIDs() []config.AgentID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]config.AgentID, 0, len(p.subAgents))
	for id := range p.subAgents {
		out = append(out, id)
	}
	return out
}

// Snapshot renders the current projection into the spec §4.I response
// shape.
func (p *Projection) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		AgentControl: AgentControlStatus{
			Healthy:   p.agentControlHealth.Healthy,
			Status:    p.agentControlHealth.Status,
			LastError: p.agentControlHealth.LastError,
		},
		Fleet: FleetStatusView{
			Enabled:      p.fleet.Enabled,
			Endpoint:     p.fleet.Endpoint,
			Reachable:    p.fleet.Reachable,
			ErrorCode:    p.fleet.ErrorCode,
			ErrorMessage: p.fleet.ErrorMessage,
		},
		SubAgents: make(map[string]SubAgentView, len(p.subAgents)),
	}

	for id, entry := range p.subAgents {
		snap.SubAgents[string(id)] = SubAgentView{
			AgentID:                string(id),
			AgentType:              entry.agentType,
			AgentStartTimeUnixNano: entry.startTime.UnixNano(),
			HealthInfo: HealthView{
				Healthy:             entry.health.Healthy,
				Status:              entry.health.Status,
				LastError:           entry.health.LastError,
				StartTimeUnixNano:   entry.startTime.UnixNano(),
				StatusTimeUnixNano:  entry.health.StatusTime.UnixNano(),
			},
		}
	}
	return snap
}
