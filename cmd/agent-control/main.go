// Package main is the entrypoint for the agent-control binary.
package main

import (
	"errors"
	"os"
	_ "net/http/pprof"

	"github.com/rancher/wrangler/v2/pkg/signals"

	"github.com/newrelic/agent-control/internal/acerrors"
	command "github.com/newrelic/agent-control/internal/cmd"
	"github.com/newrelic/agent-control/internal/cmd/agentcontrol"
)

func main() {
	ctx := signals.SetupSignalContext()
	cmd := agentcontrol.App()
	if err := cmd.ExecuteContext(ctx); err != nil {
		command.ExitWithCode(exitCode(err), err.Error())
	}
}

// exitCode maps a top-level error to the exit-code contract of spec
// §6: a malformed local config file is distinguished from a missing
// one so orchestrators (systemd, a Kubernetes restart policy) can
// tell "fix the file" apart from "the mount isn't there yet".
func exitCode(err error) int {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return command.ExitFileNotFound
	case acerrors.Is(err, acerrors.KindParse):
		return command.ExitInvalidYAML
	default:
		return command.ExitBadCLI
	}
}
