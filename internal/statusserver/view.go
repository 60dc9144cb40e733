package statusserver

// Snapshot is the exact JSON shape of spec §4.I's GET response.
type Snapshot struct {
	AgentControl AgentControlStatus      `json:"agent_control"`
	Fleet        FleetStatusView         `json:"fleet"`
	SubAgents    map[string]SubAgentView `json:"sub_agents"`
}

type AgentControlStatus struct {
	Healthy   bool   `json:"healthy"`
	Status    string `json:"status"`
	LastError string `json:"last_error,omitempty"`
}

type FleetStatusView struct {
	Enabled      bool   `json:"enabled"`
	Endpoint     string `json:"endpoint,omitempty"`
	Reachable    bool   `json:"reachable"`
	ErrorCode    int    `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type SubAgentView struct {
	AgentID                string     `json:"agent_id"`
	AgentType              string     `json:"agent_type"`
	AgentStartTimeUnixNano int64      `json:"agent_start_time_unix_nano"`
	HealthInfo             HealthView `json:"health_info"`
}

type HealthView struct {
	Healthy            bool   `json:"healthy"`
	Status             string `json:"status"`
	LastError          string `json:"last_error,omitempty"`
	StartTimeUnixNano  int64  `json:"start_time_unix_nano"`
	StatusTimeUnixNano int64  `json:"status_time_unix_nano"`
}
