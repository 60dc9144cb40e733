package config

import (
	"os"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// discoverAgentEnvOverrides scans the process environment for
// NR_AC_AGENTS__<id>__<field> variables and sets them directly on v,
// so an AgentId that was never declared in the local file (spec
// scenario B) still ends up in the merged config. AutomaticEnv cannot
// do this on its own because viper only auto-binds keys it already
// knows about.
func discoverAgentEnvOverrides(v *viper.Viper) {
	prefix := EnvPrefix + "_AGENTS" + EnvSeparator
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		parts := strings.SplitN(rest, EnvSeparator, 2)
		if len(parts) != 2 {
			continue
		}
		agentID := strings.ToLower(parts[0])
		field := strings.ToLower(parts[1])
		v.Set("agents."+agentID+"."+field, value)
	}
}

// viperDecoderOpts configures mapstructure to parse AgentTypeID and
// AgentID leaf values from their textual wire forms.
func viperDecoderOpts(c *mapstructure.DecoderConfig) {
	c.DecodeHook = mapstructure.ComposeDecodeHookFunc(stringToAgentTypeIDHook)
}

func stringToAgentTypeIDHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(AgentTypeID{}) {
		return data, nil
	}
	return ParseAgentTypeID(data.(string))
}
