// Package agentcontrol is the cobra command tree for the agent-control
// binary, grounded on internal/cmd/agent/root.go, adapted to drop
// leader election: Agent Control is single-host/single-writer per
// spec §5, not a multi-replica controller.
package agentcontrol

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	command "github.com/newrelic/agent-control/internal/cmd"
	"github.com/newrelic/agent-control/internal/version"
)

// AgentControl is the root command's flag/env struct (spec §6).
type AgentControl struct {
	command.DebugConfig
	ConfigFile    string `usage:"path to the local agent-control config file" env:"CONFIG_FILE" default:"/etc/newrelic/agent-control/config.yaml"`
	AgentTypesDir string `usage:"directory of Agent Type documents" env:"AGENT_TYPES_DIR" default:"/etc/newrelic/agent-control/agent-types"`
	StateDir      string `usage:"directory agent-control persists instance id, local and fleet-mutated state under (host variant only)" env:"STATE_DIR" default:"/var/lib/newrelic/agent-control"`
	StatusAddr    string `usage:"listen address for the local status endpoint" env:"STATUS_ADDR" default:"localhost:51200"`
	RestartDelaySeconds int `usage:"fixed delay between process-variant restart attempts, in seconds" env:"RESTART_DELAY_SECONDS" default:"5"`
	MaxRestarts   int    `usage:"max consecutive restarts before a process-variant supervisor goes unhealthy" env:"MAX_RESTARTS" default:"5"`
}

func (a *AgentControl) PersistentPre(cmd *cobra.Command, _ []string) error {
	if err := a.SetupDebug(); err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	if a.ConfigFile == "" {
		return fmt.Errorf("--config-file or env CONFIG_FILE is required")
	}
	return nil
}

func (a *AgentControl) Run(cmd *cobra.Command, _ []string) error {
	log := logrus.NewEntry(logrus.StandardLogger())
	if a.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return run(cmd.Context(), runOptions{
		ConfigFile:          a.ConfigFile,
		AgentTypesDir:       a.AgentTypesDir,
		StateDir:            a.StateDir,
		StatusAddr:          a.StatusAddr,
		RestartDelaySeconds: a.RestartDelaySeconds,
		MaxRestarts:         a.MaxRestarts,
	}, log)
}

func App() *cobra.Command {
	return command.Command(&AgentControl{}, cobra.Command{
		Version: version.FriendlyVersion(),
	})
}
