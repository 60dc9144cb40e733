package agentcontrol

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rancher/wrangler/v2/pkg/apply"
	"github.com/rancher/wrangler/v2/pkg/kubeconfig"
	"github.com/rancher/wrangler/v2/pkg/ticker"
	"github.com/sirupsen/logrus"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/restmapper"

	"github.com/newrelic/agent-control/internal/agenttype"
	"github.com/newrelic/agent-control/internal/config"
	"github.com/newrelic/agent-control/internal/gc"
	"github.com/newrelic/agent-control/internal/health"
	"github.com/newrelic/agent-control/internal/httpclient"
	"github.com/newrelic/agent-control/internal/instanceid"
	"github.com/newrelic/agent-control/internal/kvstore"
	"github.com/newrelic/agent-control/internal/opamp"
	"github.com/newrelic/agent-control/internal/reconciler"
	"github.com/newrelic/agent-control/internal/signature"
	"github.com/newrelic/agent-control/internal/statusserver"
	"github.com/newrelic/agent-control/internal/supervisor/process"
	"github.com/newrelic/agent-control/internal/version"
)

// runOptions is the wiring input the cobra layer hands to run, one
// field per CLI flag/env var declared on AgentControl (spec §6).
type runOptions struct {
	ConfigFile          string
	AgentTypesDir       string
	StateDir            string
	StatusAddr          string
	RestartDelaySeconds int
	MaxRestarts         int
}

// run wires every component spec §4 names into one running process:
// load config, build the storage/identity/signature collaborators,
// start the OpAMP session, pick the process or Kubernetes supervisor
// variant, start the local status endpoint, and drive the Reconciler
// event loop until ctx is cancelled (spec §5).
func run(ctx context.Context, opts runOptions, log *logrus.Entry) error {
	cfg, err := config.LoadAgentControlConfig(opts.ConfigFile)
	if err != nil {
		return fmt.Errorf("load local config: %w", err)
	}

	httpClient, err := httpclient.New(cfg.Proxy, nil)
	if err != nil {
		return fmt.Errorf("build http client: %w", err)
	}

	var (
		kv       kvstore.Store
		factory  = &supervisorFactory{log: log}
		collector reconciler.GarbageCollector = gc.Noop{}
	)
	factory.restartDelay = time.Duration(opts.RestartDelaySeconds) * time.Second
	factory.maxRestarts = opts.MaxRestarts
	factory.stopGrace = 10 * time.Second
	factory.processLogs = make(chan process.LogLine, 64)

	if cfg.K8s != nil {
		restConfig, err := kubeconfig.GetNonInteractiveClientConfig("").ClientConfig()
		if err != nil {
			return fmt.Errorf("load kubernetes client config: %w", err)
		}
		a, mapper, dyn, err := localClientsFromConfig(ctx, restConfig)
		if err != nil {
			return fmt.Errorf("build kubernetes clients: %w", err)
		}
		clientset, err := kubernetes.NewForConfig(restConfig)
		if err != nil {
			return fmt.Errorf("build kubernetes clientset: %w", err)
		}

		factory.apply = a
		factory.dyn = dyn
		factory.namespace = cfg.K8s.Namespace
		collector = gc.New(dyn, mapper, cfg.K8s.CRTypeMeta, cfg.K8s.Namespace, log)
		kv = kvstore.NewConfigMap(clientset, cfg.K8s.Namespace)
	} else {
		kv = kvstore.NewDirectory(opts.StateDir)
	}

	repo := config.NewRepository(kv, cfg.FleetControl.Endpoint == "")
	idStore := instanceid.NewStore(kv)

	hostname, _ := os.Hostname()
	instID, err := idStore.Get(ctx, string(config.SentinelAgentID), instanceid.Identifiers{
		Hostname:  hostname,
		MachineID: readMachineID(),
		HostID:    cfg.HostID,
		FleetID:   cfg.FleetID,
	})
	if err != nil {
		return fmt.Errorf("resolve instance id: %w", err)
	}
	log = log.WithField("instance_id", instID)

	fetcher := signature.NewHTTPFetcher(httpClient, cfg.SignatureValidation.JWKSURL)
	validator := signature.NewValidator(fetcher, cfg.SignatureValidation.Enabled)

	opampClient := opamp.NewClient(config.SentinelAgentID, validator, log)
	if cfg.FleetControl.Endpoint != "" {
		if err := opampClient.Start(ctx, cfg.FleetControl.Endpoint, cfg.FleetControl.APIKey, opamp.Description{
			AgentID:     config.SentinelAgentID,
			Version:     version.FriendlyVersion(),
			Hostname:    hostname,
			FleetID:     cfg.FleetID,
			ClusterName: clusterName(cfg),
		}); err != nil {
			return fmt.Errorf("start opamp session: %w", err)
		}
		defer func() { _ = opampClient.Stop(context.Background()) }()
	}

	types := agenttype.NewFileLoader(opts.AgentTypesDir)
	rec := reconciler.New(types, factory, collector, opampClient, repo, log)

	projection := statusserver.NewProjection()
	projection.SetFleetStatus(statusserver.FleetStatus{
		Enabled:  cfg.FleetControl.Endpoint != "",
		Endpoint: cfg.FleetControl.Endpoint,
	})
	rec.OnChange(func(running map[config.AgentID]reconciler.SubAgentSnapshot) {
		syncProjection(projection, running)
	})

	srv := statusserver.New(opts.StatusAddr, projection, log)
	srvErrCh := make(chan error, 1)
	go func() { srvErrCh <- srv.Start(ctx) }()

	events := make(chan reconciler.Event, 32)
	events <- reconciler.LocalConfigChanged{Config: cfg}

	go bridgeOpAMPEvents(ctx, opampClient, events, projection)
	go tickVersions(ctx, events)

	recDone := make(chan struct{})
	go func() {
		rec.Run(ctx, events)
		close(recDone)
	}()

	select {
	case <-ctx.Done():
	case <-recDone:
	}
	return <-srvErrCh
}

// bridgeOpAMPEvents translates opamp.Event into reconciler.Event,
// keeping the Reconciler ignorant of the OpAMP wire protocol (spec
// §4.E: the wrapper "translates protocol messages into the internal
// events the Reconciler consumes").
func bridgeOpAMPEvents(ctx context.Context, c *opamp.Client, out chan<- reconciler.Event, projection *statusserver.Projection) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-c.Events:
			if !ok {
				return
			}
			switch ev := e.(type) {
			case opamp.ValidRemoteConfigReceived:
				out <- reconciler.RemoteConfigValid{Config: ev.Config}
			case opamp.InvalidRemoteConfigReceived:
				out <- reconciler.RemoteConfigInvalid{Hash: ev.Hash, Err: ev.Err}
			case opamp.ConnectionStateChanged:
				fs := statusserver.FleetStatus{Enabled: true, Reachable: ev.Reachable, ErrorCode: ev.HTTPStatusCode}
				projection.SetFleetStatus(fs)
			}
		}
	}
}

// tickVersions requests a periodic sub-agent version/health refresh
// (spec §4.G step 4).
func tickVersions(ctx context.Context, out chan<- reconciler.Event) {
	for range ticker.Context(ctx, 30*time.Second) {
		select {
		case out <- reconciler.VersionTick{}:
		default:
		}
	}
}

func syncProjection(p *statusserver.Projection, running map[config.AgentID]reconciler.SubAgentSnapshot) {
	seen := map[config.AgentID]struct{}{}
	for id, snap := range running {
		seen[id] = struct{}{}
		start := snap.Health.StartTime
		if start.IsZero() {
			start = snap.Health.StatusTime
		}
		p.SetSubAgent(id, snap.AgentType, start, snap.Health)
	}
	for _, id := range p.SubAgentIDs() {
		if _, ok := seen[id]; !ok {
			p.RemoveSubAgent(id)
		}
	}
	p.SetAgentControlHealth(health.Aggregate("sub-agents running", time.Now(), healthValues(running)...))
}

func healthValues(running map[config.AgentID]reconciler.SubAgentSnapshot) []health.Health {
	out := make([]health.Health, 0, len(running))
	for _, snap := range running {
		out = append(out, snap.Health)
	}
	return out
}

// localClientsFromConfig builds the apply/RESTMapper/dynamic client
// set the Kubernetes supervisor and garbage collector variants need,
// grounded on internal/cmd/agent/apply.go's LocalClients.
func localClientsFromConfig(ctx context.Context, restConfig *rest.Config) (apply.Apply, meta.RESTMapper, dynamic.Interface, error) {
	d, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, nil, nil, err
	}
	disc := memory.NewMemCacheClient(d)
	mapper := restmapper.NewDeferredDiscoveryRESTMapper(disc)

	go func() {
		for range ticker.Context(ctx, 30*time.Second) {
			disc.Invalidate()
			mapper.Reset()
		}
	}()

	dyn, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, nil, nil, err
	}

	a, err := apply.NewForConfig(restConfig)
	if err != nil {
		return nil, nil, nil, err
	}
	a = a.WithDynamicLookup()

	return a, mapper, dyn, nil
}

func clusterName(cfg config.AgentControlConfig) string {
	if cfg.K8s == nil {
		return ""
	}
	return cfg.K8s.ClusterName
}

// readMachineID reads /etc/machine-id, the de-facto stable host
// identifier on Linux; no ecosystem library in the reference pack
// wraps this, so it is read directly (see DESIGN.md).
func readMachineID() string {
	raw, err := os.ReadFile("/etc/machine-id")
	if err != nil {
		return ""
	}
	return string(raw)
}
