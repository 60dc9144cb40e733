package opamp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/open-telemetry/opamp-go/client"
	"github.com/open-telemetry/opamp-go/client/types"
	"github.com/open-telemetry/opamp-go/protobufs"
	"github.com/sirupsen/logrus"

	"github.com/newrelic/agent-control/internal/acerrors"
	"github.com/newrelic/agent-control/internal/config"
	"github.com/newrelic/agent-control/internal/health"
	"github.com/newrelic/agent-control/internal/signature"
)

// remoteConfigSignatureLabel is the well-known file label a
// CustomMessage-free AgentRemoteConfig.config_map carries its detached
// signature metadata under, alongside the agent's own config bodies.
const remoteConfigSignatureLabel = "signature.json"

// Description is the identifying and non-identifying attribute set
// reported in the agent description message (spec §4.E).
type Description struct {
	AgentID     config.AgentID
	AgentType   config.AgentTypeID
	Version     string
	Hostname    string
	FleetID     string
	ClusterName string
}

// Client wraps an OpAMP session for one AgentId (Agent Control itself,
// or a sub-agent reported on Agent Control's behalf). Inbound protocol
// messages are translated into Events and delivered on Events; callers
// drive outbound state with Publish*.
type Client struct {
	inner     client.OpAMPClient
	validator *signature.Validator
	agentID   config.AgentID
	log       *logrus.Entry

	effectiveMu     sync.Mutex
	effectiveConfig string

	Events chan Event
}

// NewClient builds a Client for agentID, verifying inbound remote
// config signatures with validator before emitting
// ValidRemoteConfigReceived (spec §4.D, §4.E).
func NewClient(agentID config.AgentID, validator *signature.Validator, log *logrus.Entry) *Client {
	return &Client{
		inner:     client.NewHTTP(newLoggerAdapter(log)),
		validator: validator,
		agentID:   agentID,
		log:       log,
		Events:    make(chan Event, 16),
	}
}

// Start opens the session. ctx bounds only the initial connect; the
// session itself runs until Stop.
func (c *Client) Start(ctx context.Context, endpoint, apiKey string, description Description) error {
	ident, err := agentDescription(description)
	if err != nil {
		return acerrors.New(acerrors.KindExternalIO, "opamp.Start", err)
	}

	settings := types.StartSettings{
		OpAMPServerURL: endpoint,
		InstanceUid:    types.InstanceUid([]byte(description.AgentID)),
		Callbacks: types.CallbacksStruct{
			OnConnectFunc: func(ctx context.Context) {
				c.emit(ConnectionStateChanged{Reachable: true})
			},
			OnConnectFailedFunc: func(ctx context.Context, err error) {
				c.emit(ConnectionStateChanged{Reachable: false})
			},
			OnMessageFunc:         c.onMessage,
			GetEffectiveConfigFunc: c.getEffectiveConfig,
		},
		Capabilities: protobufs.AgentCapabilities_AgentCapabilities_ReportsStatus |
			protobufs.AgentCapabilities_AgentCapabilities_ReportsEffectiveConfig |
			protobufs.AgentCapabilities_AgentCapabilities_ReportsHealth |
			protobufs.AgentCapabilities_AgentCapabilities_AcceptsRemoteConfig |
			protobufs.AgentCapabilities_AgentCapabilities_ReportsRemoteConfig,
	}
	if apiKey != "" {
		settings.Header = authHeader(apiKey)
	}

	if err := c.inner.SetAgentDescription(ident); err != nil {
		return acerrors.New(acerrors.KindExternalIO, "opamp.Start", err)
	}
	if err := c.inner.Start(ctx, settings); err != nil {
		return acerrors.New(acerrors.KindExternalIO, "opamp.Start", err)
	}
	return nil
}

func (c *Client) Stop(ctx context.Context) error {
	return c.inner.Stop(ctx)
}

// PublishEffectiveConfig reports the textual snapshot the supervisor
// is actually running (spec §4.E invariant: "the effective
// configuration reported to OpAMP is always the one the supervisors
// are actually running").
func (c *Client) PublishEffectiveConfig(ctx context.Context, yamlBody string) error {
	c.effectiveMu.Lock()
	c.effectiveConfig = yamlBody
	c.effectiveMu.Unlock()
	return c.inner.UpdateEffectiveConfig(ctx)
}

func (c *Client) getEffectiveConfig(ctx context.Context) (*protobufs.EffectiveConfig, error) {
	c.effectiveMu.Lock()
	body := c.effectiveConfig
	c.effectiveMu.Unlock()

	return &protobufs.EffectiveConfig{
		ConfigMap: &protobufs.AgentConfigMap{
			ConfigMap: map[string]*protobufs.AgentConfigFile{
				"": {Body: []byte(body)},
			},
		},
	}, nil
}

// PublishHealth reports a Health snapshot (spec §4.E).
func (c *Client) PublishHealth(h health.Health) error {
	return c.inner.SetHealth(&protobufs.ComponentHealth{
		Healthy:            h.Healthy,
		Status:             h.Status,
		LastError:          h.LastError,
		StatusTimeUnixNano: uint64(h.StatusTime.UnixNano()),
		StartTimeUnixNano:  uint64(h.StartTime.UnixNano()),
	})
}

// PublishRemoteConfigStatus reports the state machine transition for
// hash (spec §4.E "Remote config status").
func (c *Client) PublishRemoteConfigStatus(hash config.Hash, state config.ConfigState) error {
	status := &protobufs.RemoteConfigStatus{
		LastRemoteConfigHash: []byte(hash),
	}
	switch state.Kind {
	case config.ConfigStateApplying:
		status.Status = protobufs.RemoteConfigStatuses_RemoteConfigStatuses_APPLYING
	case config.ConfigStateApplied:
		status.Status = protobufs.RemoteConfigStatuses_RemoteConfigStatuses_APPLIED
	case config.ConfigStateFailed:
		status.Status = protobufs.RemoteConfigStatuses_RemoteConfigStatuses_FAILED
		status.ErrorMessage = state.Message
	}
	return c.inner.SetRemoteConfigStatus(status)
}

func (c *Client) onMessage(ctx context.Context, msg *types.MessageData) {
	if msg.RemoteConfig == nil {
		return
	}

	body := make(config.Body, len(msg.RemoteConfig.Config.ConfigMap))
	for label, file := range msg.RemoteConfig.Config.ConfigMap {
		body[label] = string(file.Body)
	}

	sig, err := extractSignature(body)
	if err != nil {
		c.emit(InvalidRemoteConfigReceived{Hash: config.Hash(fmt.Sprintf("%x", msg.RemoteConfig.ConfigHash)), Err: err})
		return
	}
	delete(body, remoteConfigSignatureLabel)

	if err := c.validator.VerifyBody(ctx, body, sig); err != nil {
		c.emit(InvalidRemoteConfigReceived{Hash: body.ComputeHash(), Err: err})
		return
	}

	c.emit(ValidRemoteConfigReceived{Config: config.NewRemoteConfig(c.agentID, body, sig)})
}

func extractSignature(body config.Body) (config.Signature, error) {
	raw, ok := body[remoteConfigSignatureLabel]
	if !ok {
		return config.Signature{}, nil
	}
	var sig config.Signature
	if err := json.Unmarshal([]byte(raw), &sig); err != nil {
		return nil, fmt.Errorf("decode signature metadata: %w", err)
	}
	return sig, nil
}

func (c *Client) emit(e Event) {
	select {
	case c.Events <- e:
	default:
		c.log.Warn("opamp event channel full, dropping event")
	}
}

func agentDescription(d Description) (*protobufs.AgentDescription, error) {
	return &protobufs.AgentDescription{
		IdentifyingAttributes: []*protobufs.KeyValue{
			stringKV("agent.id", string(d.AgentID)),
			stringKV("agent.type.id", d.AgentType.String()),
			stringKV("agent.version", d.Version),
		},
		NonIdentifyingAttributes: []*protobufs.KeyValue{
			stringKV("host.name", d.Hostname),
			stringKV("fleet.id", d.FleetID),
			stringKV("k8s.cluster.name", d.ClusterName),
		},
	}, nil
}

func stringKV(key, value string) *protobufs.KeyValue {
	return &protobufs.KeyValue{
		Key:   key,
		Value: &protobufs.AnyValue{Value: &protobufs.AnyValue_StringValue{StringValue: value}},
	}
}

func authHeader(apiKey string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+apiKey)
	return h
}
