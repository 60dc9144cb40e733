package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/newrelic/agent-control/internal/acerrors"
)

// EnvPrefix and EnvSeparator implement spec §6's environment override
// contract: names beginning with NR_AC_ use "__" to nest
// (NR_AC_AGENTS__ROLLDICE1__AGENT_TYPE=... sets
// dynamic.agents.rolldice1.agent_type), case-insensitively below the
// prefix.
const (
	EnvPrefix    = "NR_AC"
	EnvSeparator = "__"
)

// LoadAgentControlConfig implements spec §4.B layers 1 and 2: the
// local YAML file, then environment overrides. The dynamic/remote
// layer (layer 3) is applied separately via Merge once a remote
// config has been validated, since it requires OpAMP capability
// negotiation this function does not have access to.
func LoadAgentControlConfig(localPath string) (AgentControlConfig, error) {
	v := viper.New()
	v.SetConfigFile(localPath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", EnvSeparator, "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return AgentControlConfig{}, acerrors.New(acerrors.KindParse, "LoadAgentControlConfig", err)
	}

	bindEnvOverrides(v)

	var cfg AgentControlConfig
	if err := v.Unmarshal(&cfg, viperDecoderOpts); err != nil {
		return AgentControlConfig{}, acerrors.New(acerrors.KindParse, "LoadAgentControlConfig", err)
	}
	if cfg.AgentsRaw == nil {
		cfg.AgentsRaw = map[AgentID]SubAgentConfig{}
	}
	cfg.Dynamic = Dynamic{Agents: cfg.AgentsRaw}
	cfg.localAgents = cfg.AgentsRaw
	return cfg, nil
}

// bindEnvOverrides explicitly binds the known nested keys so viper's
// AutomaticEnv also reaches map-valued leaves like
// "agents.<id>.agent_type", which AutomaticEnv alone cannot discover
// (viper only auto-binds keys it has already seen in the config file
// or via explicit BindEnv).
func bindEnvOverrides(v *viper.Viper) {
	known := []string{
		"log.level",
		"fleet_control.endpoint",
		"fleet_control.api_key",
		"k8s.namespace",
		"k8s.cluster_name",
		"k8s.chart_version",
		"proxy.url",
		"proxy.no_proxy",
		"signature_validation.enabled",
		"signature_validation.jwks_url",
		"host_id",
		"fleet_id",
	}
	for _, k := range known {
		_ = v.BindEnv(k)
	}

	// agents.<id>.agent_type / agents.<id>.chart_version are dynamic
	// map keys; bind one per already-declared agent, plus scan the
	// environment directly for keys the local file never declared
	// (spec scenario B: "agents: {}" with
	// NR_AC_AGENTS__ROLLDICE1__AGENT_TYPE still creates the agent).
	for id := range v.GetStringMap("agents") {
		_ = v.BindEnv("agents." + id + ".agent_type")
		_ = v.BindEnv("agents." + id + ".chart_version")
	}
	discoverAgentEnvOverrides(v)
}
