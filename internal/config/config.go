// Package config implements component B: loading, merging, and
// persisting Agent Control's own configuration and each sub-agent's
// remote configuration (spec §3, §4.B, §6).
package config

// SubAgentConfig pairs an AgentId with the AgentTypeId it should run,
// plus an optional Kubernetes chart version override (spec §3).
type SubAgentConfig struct {
	AgentType    AgentTypeID `json:"agent_type" yaml:"agent_type"`
	ChartVersion string      `json:"chart_version,omitempty" yaml:"chart_version,omitempty"`
}

// LogConfig is the "log" root key of the local config file (spec §6).
type LogConfig struct {
	Level string `json:"level,omitempty" yaml:"level,omitempty" mapstructure:"level"`
}

// FleetControlConfig is the "fleet_control" root key (spec §6).
type FleetControlConfig struct {
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// K8sConfig is the optional "k8s" root key (spec §6).
type K8sConfig struct {
	Namespace    string        `json:"namespace,omitempty" yaml:"namespace,omitempty" mapstructure:"namespace"`
	ClusterName  string        `json:"cluster_name,omitempty" yaml:"cluster_name,omitempty" mapstructure:"cluster_name"`
	CRTypeMeta   []TypeMeta    `json:"cr_type_meta,omitempty" yaml:"cr_type_meta,omitempty" mapstructure:"cr_type_meta"`
	ChartVersion string        `json:"chart_version,omitempty" yaml:"chart_version,omitempty" mapstructure:"chart_version"`
}

// TypeMeta identifies a Kubernetes kind the garbage collector must
// enumerate (spec §4.H).
type TypeMeta struct {
	APIVersion string `json:"api_version" yaml:"api_version" mapstructure:"api_version"`
	Kind       string `json:"kind" yaml:"kind" mapstructure:"kind"`
}

// ProxyConfig is the "proxy" root key; consumed, not implemented here
// per spec §1 (HTTP proxy configuration is an external collaborator).
type ProxyConfig struct {
	URL      string `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`
	NoProxy  string `json:"no_proxy,omitempty" yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// SignatureValidationConfig is the "signature_validation" root key (spec §4.D, §6).
type SignatureValidationConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	JWKSURL string `json:"jwks_url,omitempty" yaml:"jwks_url,omitempty" mapstructure:"jwks_url"`
}

// Dynamic is the set of configured sub-agents — the only part of
// AgentControlConfig mutable via remote config (spec §4.B rule 3).
type Dynamic struct {
	Agents map[AgentID]SubAgentConfig `json:"agents" yaml:"agents" mapstructure:"agents"`
}

// AgentControlConfig is Agent Control's own effective configuration
// (spec §3). It is produced by merging, in increasing precedence: the
// local file/ConfigMap, environment overrides, and the dynamic section
// of a validated remote config (spec §4.B).
type AgentControlConfig struct {
	Log                 LogConfig                 `json:"log" yaml:"log" mapstructure:"log"`
	FleetControl        FleetControlConfig        `json:"fleet_control" yaml:"fleet_control" mapstructure:"fleet_control"`
	K8s                 *K8sConfig                `json:"k8s,omitempty" yaml:"k8s,omitempty" mapstructure:"k8s"`
	Proxy               ProxyConfig               `json:"proxy" yaml:"proxy" mapstructure:"proxy"`
	SignatureValidation SignatureValidationConfig `json:"signature_validation" yaml:"signature_validation" mapstructure:"signature_validation"`
	HostID              string                    `json:"host_id,omitempty" yaml:"host_id,omitempty" mapstructure:"host_id"`
	FleetID             string                    `json:"fleet_id,omitempty" yaml:"fleet_id,omitempty" mapstructure:"fleet_id"`

	// AgentsRaw decodes the local file's root-level "agents" key.
	// LoadAgentControlConfig copies it into Dynamic.Agents after
	// unmarshaling; Dynamic itself is derived state, not a decode target.
	AgentsRaw map[AgentID]SubAgentConfig `json:"-" yaml:"agents" mapstructure:"agents"`
	Dynamic   Dynamic                    `json:"-" yaml:"-" mapstructure:"-"`

	// VariableConstraints is the fleet-wide registry of variable
	// constraint sets a `string` Agent Type variable's `variants` can
	// reference (spec §3, §4.C).
	VariableConstraints map[string][]string `json:"variable_constraints,omitempty" yaml:"variable_constraints,omitempty" mapstructure:"variable_constraints"`

	// local/remote Dynamic sections kept separately so Merge can
	// implement the "remote replaces local's dynamic section wholesale"
	// rule (spec §4.B) without losing the local value on rollback.
	localAgents map[AgentID]SubAgentConfig
}

// Merge implements spec §4.B's layering rules on top of an already
// local+env-merged base: the dynamic section of remoteDynamic, when
// non-nil, replaces the base's dynamic agents set wholesale; every
// other section is never overridden remotely.
func (c AgentControlConfig) Merge(remoteDynamic *Dynamic) AgentControlConfig {
	merged := c
	if c.localAgents == nil {
		merged.localAgents = c.Dynamic.Agents
	}
	if remoteDynamic != nil {
		merged.Dynamic = *remoteDynamic
	} else {
		merged.Dynamic = Dynamic{Agents: merged.localAgents}
	}
	return merged
}
