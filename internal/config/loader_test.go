package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLocalConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o640))
	return p
}

// Scenario A: local-only config loads.
func TestLoadAgentControlConfig_LocalOnly(t *testing.T) {
	p := writeLocalConfig(t, `
agents: {}
fleet_control:
  endpoint: http://127.0.0.1/v1/opamp
`)
	cfg, err := LoadAgentControlConfig(p)
	require.NoError(t, err)
	assert.Empty(t, cfg.Dynamic.Agents)
	assert.Equal(t, "http://127.0.0.1/v1/opamp", cfg.FleetControl.Endpoint)
}

// Scenario B: env override creates a sub-agent.
func TestLoadAgentControlConfig_EnvOverrideCreatesSubAgent(t *testing.T) {
	p := writeLocalConfig(t, `agents: {}`)

	t.Setenv("NR_AC_AGENTS__ROLLDICE1__AGENT_TYPE", "ns/com.newrelic.infra:0.0.2")

	cfg, err := LoadAgentControlConfig(p)
	require.NoError(t, err)

	require.Contains(t, cfg.Dynamic.Agents, AgentID("rolldice1"))
	assert.Equal(t, AgentTypeID{Namespace: "ns", Name: "com.newrelic.infra", Version: "0.0.2"}, cfg.Dynamic.Agents["rolldice1"].AgentType)
}

func TestAgentControlConfig_Merge_RemoteReplacesDynamicWholesale(t *testing.T) {
	p := writeLocalConfig(t, `
agents:
  local1:
    agent_type: ns/a:1.0.0
`)
	base, err := LoadAgentControlConfig(p)
	require.NoError(t, err)
	require.Contains(t, base.Dynamic.Agents, AgentID("local1"))

	merged := base.Merge(&Dynamic{Agents: map[AgentID]SubAgentConfig{}})
	assert.Empty(t, merged.Dynamic.Agents)
	// other sections untouched
	assert.Equal(t, base.FleetControl, merged.FleetControl)

	// rollback: merging with nil falls back to local
	rolledBack := merged.Merge(nil)
	assert.Contains(t, rolledBack.Dynamic.Agents, AgentID("local1"))
}
