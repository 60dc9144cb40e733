package agenttype

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/newrelic/agent-control/internal/config"
)

// FileLoader resolves an AgentTypeId to a parsed Document by reading
// "<dir>/<namespace>/<name>/<version>.yaml" off disk. The directory
// comes from the --agent-types-dir flag (AGENT_TYPES_DIR); OCI-registry
// distribution of Agent Type artifacts (as the original implementation's
// package/oci module does) is a supplemental distribution mechanism
// this loader does not implement — see DESIGN.md.
type FileLoader struct {
	Dir string
}

func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{Dir: dir}
}

func (l *FileLoader) Load(_ context.Context, id config.AgentTypeID) (Document, error) {
	path := filepath.Join(l.Dir, id.Namespace, id.Name, id.Version+".yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("loading agent type %s: %w", id, err)
	}
	return Parse(id, raw)
}
