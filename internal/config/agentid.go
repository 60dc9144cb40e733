package config

import (
	"regexp"

	"github.com/newrelic/agent-control/internal/acerrors"
)

// AgentID is the opaque per-sub-agent identifier of spec §3. It is
// stable across restarts and forms the primary key of every per-agent
// artifact (instance id, remote config, supervisor, GC resources).
type AgentID string

// SentinelAgentID is the reserved AgentId denoting Agent Control
// itself (spec §3). GC must never delete resources labeled with it
// (spec §4.H).
const SentinelAgentID AgentID = "agent-control"

var agentIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// Validate reports whether id matches the AgentId grammar of spec §3.
// The empty string is invalid everywhere it is checked here; the
// Agent Type engine's own additional "empty is invalid" note (§3)
// is the same rule applied in that one extra context.
func (id AgentID) Validate() error {
	if !agentIDPattern.MatchString(string(id)) {
		return acerrors.New(acerrors.KindValidation, "AgentID.Validate", errInvalidAgentID(id))
	}
	return nil
}

type errInvalidAgentID AgentID

func (e errInvalidAgentID) Error() string {
	return "invalid agent id: " + string(e)
}

// IsSentinel reports whether id is the Agent Control sentinel.
func (id AgentID) IsSentinel() bool {
	return id == SentinelAgentID
}
