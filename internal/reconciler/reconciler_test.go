package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newrelic/agent-control/internal/agenttype"
	"github.com/newrelic/agent-control/internal/config"
	"github.com/newrelic/agent-control/internal/health"
	"github.com/newrelic/agent-control/internal/supervisor"
)

func agentType(t *testing.T, s string) config.AgentTypeID {
	t.Helper()
	id, err := config.ParseAgentTypeID(s)
	require.NoError(t, err)
	return id
}

type fakeLoader struct {
	docs map[string]agenttype.Document
	err  error
}

func (f *fakeLoader) Load(_ context.Context, id config.AgentTypeID) (agenttype.Document, error) {
	if f.err != nil {
		return agenttype.Document{}, f.err
	}
	doc, ok := f.docs[id.String()]
	if !ok {
		doc = agenttype.Document{ID: id}
	}
	return doc, nil
}

type fakeHandle struct {
	stopped bool
	health  health.Health
}

func (h *fakeHandle) Stop(context.Context) error { h.stopped = true; return nil }
func (h *fakeHandle) CheckHealth(context.Context) health.Health {
	return h.health
}
func (h *fakeHandle) CheckVersion(context.Context) (string, bool) { return "1.0.0", true }

type fakeFactory struct {
	started []config.AgentID
}

func (f *fakeFactory) New(agentID config.AgentID, _ config.AgentTypeID, _ string) supervisor.Supervisor {
	return &fakeSupervisor{factory: f, agentID: agentID}
}

type fakeSupervisor struct {
	factory *fakeFactory
	agentID config.AgentID
}

func (s *fakeSupervisor) Start(context.Context, agenttype.DeploymentArtifacts) (supervisor.StartedHandle, error) {
	s.factory.started = append(s.factory.started, s.agentID)
	return &fakeHandle{health: health.Healthy("ok", time.Now())}, nil
}

type fakeGC struct {
	collected []config.AgentID
}

func (g *fakeGC) Collect(_ context.Context, id config.AgentID, _ config.AgentTypeID) error {
	g.collected = append(g.collected, id)
	return nil
}

type fakeStatus struct {
	effectiveConfig string
	states          []config.ConfigState
	healths         []health.Health
}

func (s *fakeStatus) PublishEffectiveConfig(_ context.Context, yamlBody string) error {
	s.effectiveConfig = yamlBody
	return nil
}
func (s *fakeStatus) PublishRemoteConfigStatus(_ config.Hash, state config.ConfigState) error {
	s.states = append(s.states, state)
	return nil
}
func (s *fakeStatus) PublishHealth(h health.Health) error {
	s.healths = append(s.healths, h)
	return nil
}

type fakeRepo struct {
	stored []config.RemoteConfig
	states map[config.AgentID]config.ConfigState
}

func (r *fakeRepo) StoreRemote(_ context.Context, rc config.RemoteConfig) error {
	r.stored = append(r.stored, rc)
	return nil
}
func (r *fakeRepo) UpdateState(_ context.Context, agentID config.AgentID, state config.ConfigState) error {
	if r.states == nil {
		r.states = map[config.AgentID]config.ConfigState{}
	}
	r.states[agentID] = state
	return nil
}
func (r *fakeRepo) LoadValues(_ context.Context, _ config.AgentID) (map[string]any, error) {
	return map[string]any{}, nil
}

func newTestReconciler() (*Reconciler, *fakeFactory, *fakeGC, *fakeStatus, *fakeRepo) {
	factory := &fakeFactory{}
	gc := &fakeGC{}
	status := &fakeStatus{}
	repo := &fakeRepo{}
	log := logrus.NewEntry(logrus.New())
	r := New(&fakeLoader{}, factory, gc, status, repo, log)
	return r, factory, gc, status, repo
}

func TestReconciler_LocalConfigChanged_StartsAddedAgents(t *testing.T) {
	r, factory, _, status, _ := newTestReconciler()

	cfg := config.AgentControlConfig{
		Dynamic: config.Dynamic{Agents: map[config.AgentID]config.SubAgentConfig{
			"rolldice1": {AgentType: agentType(t, "newrelic/com.newrelic.infra:1.2.3")},
		}},
	}

	r.handle(context.Background(), LocalConfigChanged{Config: cfg})

	assert.Contains(t, factory.started, config.AgentID("rolldice1"))
	assert.Len(t, r.running, 1)
	assert.NotEmpty(t, status.effectiveConfig)
}

func TestReconciler_LocalConfigChanged_StopsRemovedAgents(t *testing.T) {
	r, _, gc, _, _ := newTestReconciler()

	first := config.AgentControlConfig{
		Dynamic: config.Dynamic{Agents: map[config.AgentID]config.SubAgentConfig{
			"rolldice1": {AgentType: agentType(t, "newrelic/com.newrelic.infra:1.2.3")},
		}},
	}
	r.handle(context.Background(), LocalConfigChanged{Config: first})
	require.Len(t, r.running, 1)

	second := config.AgentControlConfig{Dynamic: config.Dynamic{Agents: map[config.AgentID]config.SubAgentConfig{}}}
	r.handle(context.Background(), LocalConfigChanged{Config: second})

	assert.Empty(t, r.running)
	assert.Contains(t, gc.collected, config.AgentID("rolldice1"))
}

func TestReconciler_LocalConfigChanged_UnchangedAgentNotRestarted(t *testing.T) {
	r, factory, _, _, _ := newTestReconciler()

	cfg := config.AgentControlConfig{
		Dynamic: config.Dynamic{Agents: map[config.AgentID]config.SubAgentConfig{
			"rolldice1": {AgentType: agentType(t, "newrelic/com.newrelic.infra:1.2.3")},
		}},
	}
	r.handle(context.Background(), LocalConfigChanged{Config: cfg})
	require.Len(t, factory.started, 1)

	r.handle(context.Background(), LocalConfigChanged{Config: cfg})
	assert.Len(t, factory.started, 1, "unchanged agent must not be restarted")
}

func TestReconciler_RemoteConfigValid_FailureDoesNotMutateRunningSet(t *testing.T) {
	r, factory, _, status, repo := newTestReconciler()
	r.types = &fakeLoader{err: errors.New("boom")}

	cfg := config.AgentControlConfig{
		Dynamic: config.Dynamic{Agents: map[config.AgentID]config.SubAgentConfig{
			"rolldice1": {AgentType: agentType(t, "newrelic/com.newrelic.infra:1.2.3")},
		}},
	}
	r.applied = cfg
	r.running["rolldice1"] = &runningAgent{
		config: cfg.Dynamic.Agents["rolldice1"],
		handle: &fakeHandle{health: health.Healthy("ok", time.Now())},
	}

	body := config.Body{config.RemoteConfigLabel: "agents:\n  rolldice2:\n    agent_type: newrelic/com.newrelic.infra:1.2.3\n"}
	rc := config.RemoteConfig{AgentID: config.SentinelAgentID, Hash: config.Hash("h1"), Body: body}

	r.handle(context.Background(), RemoteConfigValid{Config: rc})

	assert.Len(t, r.running, 1, "failed remote config must not mutate the running set")
	assert.Empty(t, factory.started)
	require.NotEmpty(t, status.states)
	assert.Equal(t, config.ConfigStateFailed, status.states[len(status.states)-1].Kind)
	assert.Empty(t, repo.stored, "a failed remote config must never be persisted")
	assert.Empty(t, repo.states, "a failed remote config must not mutate any persisted state")
}

func TestReconciler_RemoteConfigValid_InvalidYAMLNotPersisted(t *testing.T) {
	r, _, _, status, repo := newTestReconciler()

	rc := config.RemoteConfig{
		AgentID: config.SentinelAgentID,
		Hash:    config.Hash("bad"),
		Body:    config.Body{config.RemoteConfigLabel: "invalid_yaml_content"},
	}

	r.handle(context.Background(), RemoteConfigValid{Config: rc})

	assert.Empty(t, repo.stored, "an invalid body must never be persisted")
	require.NotEmpty(t, status.states)
	assert.Equal(t, config.ConfigStateFailed, status.states[len(status.states)-1].Kind)
}

func TestReconciler_RemoteConfigValid_FailedFollowupKeepsPreviousApplied(t *testing.T) {
	r, _, _, _, repo := newTestReconciler()

	good := config.RemoteConfig{
		AgentID: config.SentinelAgentID,
		Hash:    config.Hash("h1"),
		Body:    config.Body{config.RemoteConfigLabel: "agents: {}\n"},
	}
	r.handle(context.Background(), RemoteConfigValid{Config: good})
	require.Len(t, repo.stored, 1)
	require.Equal(t, good.Body, repo.stored[0].Body)

	bad := config.RemoteConfig{
		AgentID: config.SentinelAgentID,
		Hash:    config.Hash("h2"),
		Body:    config.Body{config.RemoteConfigLabel: "invalid_yaml_content"},
	}
	r.handle(context.Background(), RemoteConfigValid{Config: bad})

	require.Len(t, repo.stored, 1, "the invalid follow-up must not be persisted")
	assert.Equal(t, good.Body, repo.stored[0].Body, "the previously applied body must remain authoritative")
}

func TestReconciler_RemoteConfigInvalid_DoesNotPanic(t *testing.T) {
	r, _, _, _, _ := newTestReconciler()
	r.handle(context.Background(), RemoteConfigInvalid{Hash: config.Hash("h1"), Err: errors.New("bad signature")})
	assert.Empty(t, r.running)
}

func TestReconciler_SupervisorHealthChanged_UpdatesSnapshot(t *testing.T) {
	r, _, _, _, _ := newTestReconciler()
	r.running["rolldice1"] = &runningAgent{health: health.Healthy("ok", time.Now())}

	unhealthy := health.Unhealthy("crashed", errors.New("exit 1"), time.Now())
	r.handle(context.Background(), SupervisorHealthChanged{AgentID: "rolldice1", Health: unhealthy})

	snap := r.Snapshot()
	assert.False(t, snap["rolldice1"].Healthy)
}

func TestReconciler_Run_StopsOnStopRequested(t *testing.T) {
	r, _, _, _, _ := newTestReconciler()
	events := make(chan Event, 1)
	events <- StopRequested{}

	done := make(chan struct{})
	go func() {
		r.Run(context.Background(), events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after StopRequested")
	}
}
