package agenttype

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newrelic/agent-control/internal/config"
)

func TestFileLoader_LoadsAndParsesDocument(t *testing.T) {
	dir := t.TempDir()
	id, err := config.ParseAgentTypeID("newrelic/com.newrelic.infra:1.2.3")
	require.NoError(t, err)

	typeDir := filepath.Join(dir, id.Namespace, id.Name)
	require.NoError(t, os.MkdirAll(typeDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(typeDir, id.Version+".yaml"), []byte(`
variables:
  license_key:
    kind: string
    required: true
deployment:
  process:
    executables:
      - path: /usr/bin/newrelic-infra
`), 0o644))

	loader := NewFileLoader(dir)
	doc, err := loader.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Contains(t, doc.Variables, "license_key")
}

func TestFileLoader_MissingFileIsError(t *testing.T) {
	id, err := config.ParseAgentTypeID("newrelic/com.newrelic.infra:1.2.3")
	require.NoError(t, err)

	loader := NewFileLoader(t.TempDir())
	_, err = loader.Load(context.Background(), id)
	assert.Error(t, err)
}
