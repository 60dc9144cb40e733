package statusserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newrelic/agent-control/internal/config"
	"github.com/newrelic/agent-control/internal/health"
)

func TestProjection_SnapshotShape(t *testing.T) {
	p := NewProjection()
	p.SetAgentControlHealth(health.Healthy("running", time.Now()))
	p.SetFleetStatus(FleetStatus{Enabled: true, Endpoint: "https://fleet.example.com", Reachable: true})

	agentType, err := config.ParseAgentTypeID("newrelic/com.newrelic.infra:1.2.3")
	require.NoError(t, err)
	start := time.Now()
	p.SetSubAgent("rolldice1", agentType, start, health.Healthy("running", start))

	snap := p.Snapshot()
	assert.True(t, snap.AgentControl.Healthy)
	assert.True(t, snap.Fleet.Enabled)
	assert.True(t, snap.Fleet.Reachable)
	require.Contains(t, snap.SubAgents, "rolldice1")
	assert.Equal(t, "newrelic/com.newrelic.infra:1.2.3", snap.SubAgents["rolldice1"].AgentType)
	assert.Equal(t, start.UnixNano(), snap.SubAgents["rolldice1"].AgentStartTimeUnixNano)
}

func TestProjection_RemoveSubAgent(t *testing.T) {
	p := NewProjection()
	agentType, err := config.ParseAgentTypeID("newrelic/com.newrelic.infra:1.2.3")
	require.NoError(t, err)
	p.SetSubAgent("rolldice1", agentType, time.Now(), health.Healthy("running", time.Now()))
	p.RemoveSubAgent("rolldice1")

	snap := p.Snapshot()
	assert.NotContains(t, snap.SubAgents, "rolldice1")
}

func TestServer_StatusEndpointReturnsJSON(t *testing.T) {
	p := NewProjection()
	p.SetAgentControlHealth(health.Unhealthy("remote config failed", assertErr{"boom"}, time.Now()))

	s := New(":0", p, logrus.NewEntry(logrus.New()))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.False(t, snap.AgentControl.Healthy)
	assert.Equal(t, "boom", snap.AgentControl.LastError)
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
