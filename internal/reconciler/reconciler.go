package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"sigs.k8s.io/yaml"

	"github.com/newrelic/agent-control/internal/agenttype"
	"github.com/newrelic/agent-control/internal/config"
	"github.com/newrelic/agent-control/internal/health"
	"github.com/newrelic/agent-control/internal/supervisor"
)

// runningAgent is one entry of the Reconciler's owned supervisor set.
type runningAgent struct {
	config  config.SubAgentConfig
	handle  supervisor.StartedHandle
	health  health.Health
	version string
}

// Reconciler is component G: the single-threaded loop that owns the
// running supervisor set and the currently applied AgentControlConfig
// (spec §4.G).
type Reconciler struct {
	types       AgentTypeLoader
	supervisors SupervisorFactory
	gc          GarbageCollector
	status      StatusPublisher
	repo        Repository
	log         *logrus.Entry

	running map[config.AgentID]*runningAgent
	applied config.AgentControlConfig

	// lastAppliedHash records the hash of the last remote config that
	// was successfully applied.
	lastAppliedHash config.Hash

	// onChange, when set, is invoked after every processed event with
	// the current running set, from the same goroutine that owns
	// r.running — the status server's projection is kept current this
	// way instead of reading the Reconciler's state directly (spec §4.I).
	onChange func(map[config.AgentID]SubAgentSnapshot)
}

// OnChange registers fn to be called with the current running set
// after every processed event. Must be called before Run.
func (r *Reconciler) OnChange(fn func(map[config.AgentID]SubAgentSnapshot)) {
	r.onChange = fn
}

func New(types AgentTypeLoader, supervisors SupervisorFactory, gc GarbageCollector, status StatusPublisher, repo Repository, log *logrus.Entry) *Reconciler {
	return &Reconciler{
		types: types, supervisors: supervisors, gc: gc, status: status, repo: repo, log: log,
		running: map[config.AgentID]*runningAgent{},
	}
}

// Run drains events until ctx is cancelled or a StopRequested arrives.
// Events are processed strictly one at a time, in arrival order (spec
// §5 "single thread processing a bounded MPMC channel"; spec §4.G
// "Ordering").
func (r *Reconciler) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if _, stop := e.(StopRequested); stop {
				return
			}
			r.handle(ctx, e)
			if r.onChange != nil {
				r.onChange(r.SubAgents())
			}
		}
	}
}

func (r *Reconciler) handle(ctx context.Context, e Event) {
	switch ev := e.(type) {
	case LocalConfigChanged:
		r.applyConfig(ctx, ev.Config, nil)
	case RemoteConfigValid:
		r.applyRemote(ctx, ev.Config)
	case RemoteConfigInvalid:
		r.fail(ctx, ev.Hash, ev.Err)
	case SupervisorHealthChanged:
		if ra, ok := r.running[ev.AgentID]; ok {
			ra.health = ev.Health
		}
	case VersionTick:
		r.refreshVersions(ctx)
	}
}

// applyRemote implements spec §4.G step 1 + §4.E's state machine for
// one remote config: Applying, then Applied on success or Failed on
// any failure. Validation precedes persistence (spec §4.G ordering):
// rc is only written to the repository once parsing and applyConfig
// have both succeeded, so a rejected body never reaches the fleet
// namespace and a failed follow-up never overwrites the previously
// Applied body, which remains authoritative (spec §4.E, §7).
func (r *Reconciler) applyRemote(ctx context.Context, rc config.RemoteConfig) {
	_ = r.status.PublishRemoteConfigStatus(rc.Hash, config.StateApplying())

	dynamic, err := config.ParseDynamic(rc.Body)
	if err != nil {
		r.fail(ctx, rc.Hash, fmt.Errorf("parse remote config: %w", err))
		return
	}

	merged := r.applied.Merge(&dynamic)
	if err := r.applyConfig(ctx, merged, &rc.Hash); err != nil {
		r.fail(ctx, rc.Hash, err)
		return
	}

	rc.State = config.StateApplied()
	if err := r.repo.StoreRemote(ctx, rc); err != nil {
		r.log.WithError(err).Warn("failed to persist applied remote config")
	}

	r.lastAppliedHash = rc.Hash
	_ = r.status.PublishRemoteConfigStatus(rc.Hash, config.StateApplied())
	_ = r.status.PublishHealth(health.Healthy("remote config applied", time.Now()))
}

// fail reports a Failed transition over OpAMP only. It must not touch
// the repository: whatever remote config is currently persisted (the
// last successfully Applied one, or none) stays exactly as it was.
func (r *Reconciler) fail(_ context.Context, hash config.Hash, err error) {
	r.log.WithError(err).Warn("remote config application failed, keeping previous config authoritative")
	_ = r.status.PublishRemoteConfigStatus(hash, config.StateFailed(err.Error()))
	_ = r.status.PublishHealth(health.Unhealthy("remote config application failed", err, time.Now()))
}

// applyConfig runs the spec §4.G step-2 diff algorithm. If hash is
// non-nil, this application came from a remote config and errors must
// not mutate r.running or r.applied (handled by validating every
// added/changed Agent Type before starting or stopping anything).
func (r *Reconciler) applyConfig(ctx context.Context, cfg config.AgentControlConfig, hash *config.Hash) error {
	added, removed, changed, err := r.planAndValidate(ctx, cfg)
	if err != nil {
		return err
	}

	for _, id := range removed {
		ra := r.running[id]
		_ = ra.handle.Stop(ctx)
		_ = r.gc.Collect(ctx, id, ra.config.AgentType)
		delete(r.running, id)
	}
	for _, c := range changed {
		ra := r.running[c.id]
		_ = ra.handle.Stop(ctx)
		_ = r.gc.Collect(ctx, c.id, ra.config.AgentType)
		r.start(ctx, c.id, c.sub, c.artifacts)
	}
	for _, a := range added {
		r.start(ctx, a.id, a.sub, a.artifacts)
	}

	r.applied = cfg
	r.publishEffectiveConfig(ctx, cfg)
	return nil
}

type plannedAgent struct {
	id        config.AgentID
	sub       config.SubAgentConfig
	artifacts agenttype.DeploymentArtifacts
}

// planAndValidate computes the diff and binds+renders every
// added/changed agent's Agent Type up front against its fleet-
// persisted AgentValues (component C, spec §3/§6), so a validation
// failure (spec §4.C MissingDefault/InvalidVariant/TypeMismatch/
// UnresolvedReference or a parse failure) aborts before any supervisor
// is touched or r.running/r.applied are mutated (spec §4.G step 4
// rollback invariant).
func (r *Reconciler) planAndValidate(ctx context.Context, cfg config.AgentControlConfig) (added, removed, changed []plannedAgent, err error) {
	for id, ra := range r.running {
		if _, ok := cfg.Dynamic.Agents[id]; !ok {
			removed = append(removed, plannedAgent{id: id, sub: ra.config})
		}
	}

	for id, sub := range cfg.Dynamic.Agents {
		ra, exists := r.running[id]
		if exists && ra.config.AgentType.Equal(sub.AgentType) && ra.config.ChartVersion == sub.ChartVersion {
			continue
		}

		doc, derr := r.types.Load(ctx, sub.AgentType)
		if derr != nil {
			return nil, nil, nil, fmt.Errorf("load agent type %s for %s: %w", sub.AgentType, id, derr)
		}

		values, verr := r.repo.LoadValues(ctx, id)
		if verr != nil {
			return nil, nil, nil, fmt.Errorf("load values for %s: %w", id, verr)
		}

		bound, berr := agenttype.Bind(doc, agenttype.AgentValues(values), cfg.VariableConstraints)
		if berr != nil {
			return nil, nil, nil, fmt.Errorf("bind values for %s: %w", id, berr)
		}

		artifacts, rerr := agenttype.Render(doc, bound)
		if rerr != nil {
			return nil, nil, nil, fmt.Errorf("render artifacts for %s: %w", id, rerr)
		}

		entry := plannedAgent{id: id, sub: sub, artifacts: artifacts}
		if exists {
			changed = append(changed, entry)
		} else {
			added = append(added, entry)
		}
	}
	return added, removed, changed, nil
}

func (r *Reconciler) start(ctx context.Context, id config.AgentID, sub config.SubAgentConfig, artifacts agenttype.DeploymentArtifacts) {
	sup := r.supervisors.New(id, sub.AgentType, sub.ChartVersion)
	handle, err := sup.Start(ctx, artifacts)
	if err != nil {
		r.log.WithField("agent_id", id).WithError(err).Warn("failed to start supervisor")
		return
	}

	now := time.Now()
	r.running[id] = &runningAgent{config: sub, handle: handle, health: health.Healthy("starting", now).WithStartTime(now)}
}

func (r *Reconciler) refreshVersions(ctx context.Context) {
	for id, ra := range r.running {
		if v, ok := ra.handle.CheckVersion(ctx); ok {
			ra.version = v
		}
		ra.health = ra.handle.CheckHealth(ctx)
		_ = id
	}
}

func (r *Reconciler) publishEffectiveConfig(ctx context.Context, cfg config.AgentControlConfig) {
	raw, err := yaml.Marshal(cfg.Dynamic)
	if err != nil {
		r.log.WithError(err).Warn("failed to marshal effective config")
		return
	}
	_ = r.status.PublishEffectiveConfig(ctx, string(raw))
}

// Snapshot returns a read-only view of the running set for the status
// server (spec §4.I); it is safe to call only from the Reconciler's
// own goroutine or after Run has returned.
func (r *Reconciler) Snapshot() map[config.AgentID]health.Health {
	out := make(map[config.AgentID]health.Health, len(r.running))
	for id, ra := range r.running {
		out[id] = ra.health
	}
	return out
}

// SubAgentSnapshot is one running agent's identity and health, as the
// local status endpoint's projection needs it (spec §4.I).
type SubAgentSnapshot struct {
	AgentType config.AgentTypeID
	Health    health.Health
}

// SubAgents returns AgentType and Health for every currently running
// agent; same single-goroutine caveat as Snapshot.
func (r *Reconciler) SubAgents() map[config.AgentID]SubAgentSnapshot {
	out := make(map[config.AgentID]SubAgentSnapshot, len(r.running))
	for id, ra := range r.running {
		out[id] = SubAgentSnapshot{AgentType: ra.config.AgentType, Health: ra.health}
	}
	return out
}
