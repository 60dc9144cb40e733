package process

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newrelic/agent-control/internal/agenttype"
)

func TestSupervisor_StartAndStop(t *testing.T) {
	logs := make(chan LogLine, 16)
	sup := New(func() RestartPolicy { return None{} }, 2*time.Second, logs, logrus.NewEntry(logrus.New()))

	artifacts := agenttype.DeploymentArtifacts{
		Process: &agenttype.ProcessArtifacts{
			Executables: []agenttype.ExecutableArtifact{{Path: "/bin/sleep", Args: []string{"30"}}},
		},
	}

	handle, err := sup.Start(context.Background(), artifacts)
	require.NoError(t, err)

	require.NoError(t, handle.Stop(context.Background()))

	h := handle.CheckHealth(context.Background())
	assert.NotZero(t, h.StartTime)
}

func TestSupervisor_StopDuringRestartWindowDoesNotHang(t *testing.T) {
	logs := make(chan LogLine, 16)
	sup := New(func() RestartPolicy { return NewFixed(time.Millisecond, 1000) }, 200*time.Millisecond, logs, logrus.NewEntry(logrus.New()))

	artifacts := agenttype.DeploymentArtifacts{
		Process: &agenttype.ProcessArtifacts{
			Executables: []agenttype.ExecutableArtifact{{Path: "/bin/false"}},
		},
	}

	handle, err := sup.Start(context.Background(), artifacts)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- handle.Stop(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return; the restart loop relaunched a process outside the SIGTERM/SIGKILL snapshot")
	}
}

func TestSupervisor_RejectsMissingArtifacts(t *testing.T) {
	sup := New(func() RestartPolicy { return None{} }, time.Second, make(chan LogLine, 1), logrus.NewEntry(logrus.New()))
	_, err := sup.Start(context.Background(), agenttype.DeploymentArtifacts{})
	require.Error(t, err)
}

func TestFixed_AllowsUpToMaxRetries(t *testing.T) {
	f := NewFixed(10*time.Millisecond, 2)
	assert.True(t, f.Allow(1))
	assert.True(t, f.Allow(2))
	assert.False(t, f.Allow(3))
}
