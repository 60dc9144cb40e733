package config

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/newrelic/agent-control/internal/acerrors"
)

// AgentTypeID is the triple (namespace, name, semver) of spec §3,
// rendered textually as "namespace/name:version".
type AgentTypeID struct {
	Namespace string
	Name      string
	Version   string
}

func (id AgentTypeID) String() string {
	return fmt.Sprintf("%s/%s:%s", id.Namespace, id.Name, id.Version)
}

// ParseAgentTypeID parses the "namespace/name:version" textual form.
func ParseAgentTypeID(s string) (AgentTypeID, error) {
	nsName, version, ok := strings.Cut(s, ":")
	if !ok {
		return AgentTypeID{}, acerrors.New(acerrors.KindParse, "ParseAgentTypeID", fmt.Errorf("missing version in %q", s))
	}
	ns, name, ok := strings.Cut(nsName, "/")
	if !ok {
		return AgentTypeID{}, acerrors.New(acerrors.KindParse, "ParseAgentTypeID", fmt.Errorf("missing namespace in %q", s))
	}
	if ns == "" || name == "" || version == "" {
		return AgentTypeID{}, acerrors.New(acerrors.KindParse, "ParseAgentTypeID", fmt.Errorf("empty component in %q", s))
	}
	return AgentTypeID{Namespace: ns, Name: name, Version: version}, nil
}

// Equal reports exact (namespace, name, version) equality, used by GC
// (spec §4.H) to compare a resource's annotated AgentTypeId against
// the currently configured one.
func (id AgentTypeID) Equal(other AgentTypeID) bool {
	return id.Namespace == other.Namespace && id.Name == other.Name && id.Version == other.Version
}

// Compare orders two AgentTypeIds: bytewise on Namespace then Name,
// semver precedence on Version (spec §3). If either Version does not
// parse as semver, the two Versions are compared bytewise as strings
// instead, so Compare never panics or errors.
func (id AgentTypeID) Compare(other AgentTypeID) int {
	if c := strings.Compare(id.Namespace, other.Namespace); c != 0 {
		return c
	}
	if c := strings.Compare(id.Name, other.Name); c != 0 {
		return c
	}
	v1, err1 := semver.NewVersion(id.Version)
	v2, err2 := semver.NewVersion(other.Version)
	if err1 != nil || err2 != nil {
		return strings.Compare(id.Version, other.Version)
	}
	return v1.Compare(v2)
}
