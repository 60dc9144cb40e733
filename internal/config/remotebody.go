package config

import (
	"sigs.k8s.io/yaml"

	"github.com/newrelic/agent-control/internal/acerrors"
)

// RemoteConfigLabel is the file label Agent Control's own remote
// config is delivered under in AgentRemoteConfig.config_map (spec §6).
const RemoteConfigLabel = "config.yaml"

type dynamicDoc struct {
	Agents map[AgentID]SubAgentConfig `json:"agents" yaml:"agents"`
}

// ParseDynamic parses the Agent Control remote config body's YAML
// document (spec scenario C/D: bodies like "agents: {}") into a
// Dynamic section. Returns a Validation-kind error on malformed YAML,
// matching spec scenario C's "Failed(<message mentioning YAML type
// error>)" expectation.
func ParseDynamic(body Body) (Dynamic, error) {
	raw, ok := body[RemoteConfigLabel]
	if !ok {
		// No file under the well-known label: treat as an explicit
		// empty dynamic section rather than an error, since an agent
		// may send a remote config for a different purpose only.
		return Dynamic{Agents: map[AgentID]SubAgentConfig{}}, nil
	}

	var doc dynamicDoc
	if err := yaml.UnmarshalStrict([]byte(raw), &doc); err != nil {
		return Dynamic{}, acerrors.New(acerrors.KindValidation, "ParseDynamic", err)
	}
	if doc.Agents == nil {
		doc.Agents = map[AgentID]SubAgentConfig{}
	}
	for id := range doc.Agents {
		if err := id.Validate(); err != nil {
			return Dynamic{}, err
		}
	}
	return Dynamic{Agents: doc.Agents}, nil
}
