// Package agenttype implements component C: parsing and validating an
// Agent Type document, and rendering it plus a set of AgentValues into
// concrete deployment artifacts (spec §4.C).
package agenttype

import (
	"fmt"

	"sigs.k8s.io/yaml"

	"github.com/newrelic/agent-control/internal/acerrors"
	"github.com/newrelic/agent-control/internal/config"
)

// Kind is one of the variable kinds named in spec §3.
type Kind string

const (
	KindString   Kind = "string"
	KindBool     Kind = "bool"
	KindNumber   Kind = "number"
	KindYAML     Kind = "yaml"
	KindFilePath Kind = "file_path"
	KindDirPath  Kind = "dir_path"
)

// Variable is one entry of an Agent Type's variable schema (spec §3:
// "name -> {kind, required?, default?, constraints?}").
type Variable struct {
	Kind     Kind     `json:"kind"`
	Required bool     `json:"required,omitempty"`
	Default  *string  `json:"default,omitempty"`
	Variants []string `json:"variants,omitempty"`
}

// hasDefault reports whether Default was present in the document,
// distinguishing it from an explicit empty-string default.
func (v Variable) hasDefault() bool { return v.Default != nil }

// Document is a parsed, not-yet-validated Agent Type (spec §3, §4.C).
type Document struct {
	ID        config.AgentTypeID  `json:"-"`
	Variables map[string]Variable `json:"variables"`
	Deploy    DeploySections      `json:"deployment"`
}

// DeploySections keys the deployment template by environment (spec
// §3: "one or more deployment sections keyed by environment").
type DeploySections struct {
	Process *ProcessSection `json:"process,omitempty"`
	K8s     *K8sSection     `json:"k8s,omitempty"`
}

// ProcessSection is the process-host deployment template: one or more
// executables with a templated argv and environment (spec §4.F).
type ProcessSection struct {
	Executables []ExecutableTemplate `json:"executables"`
}

// ExecutableTemplate is a single process-variant executable before
// variable substitution. Path, Args and Env entries may reference
// variables with "{{.VarName}}" placeholders.
type ExecutableTemplate struct {
	Path string            `json:"path"`
	Args []string          `json:"args,omitempty"`
	Env  map[string]string `json:"env,omitempty"`
}

// K8sSection is the Kubernetes-variant deployment template: a Helm
// chart reference plus templated values (spec §4.F).
type K8sSection struct {
	Chart       string `json:"chart"`
	Repository  string `json:"repository"`
	ValuesYAML  string `json:"values"`
}

// Parse decodes an Agent Type document and enforces spec §3's parse-time
// invariant: every variable is either required or has a default.
func Parse(id config.AgentTypeID, raw []byte) (Document, error) {
	var doc Document
	if err := yaml.UnmarshalStrict(raw, &doc); err != nil {
		return Document{}, acerrors.New(acerrors.KindParse, "agenttype.Parse", err)
	}
	doc.ID = id

	for name, v := range doc.Variables {
		if !v.Required && !v.hasDefault() {
			return Document{}, acerrors.New(acerrors.KindValidation, "agenttype.Parse",
				&Error{Kind: MissingDefault, Variable: name})
		}
	}
	return doc, nil
}

// ErrKind is one of the render-time error kinds named in spec §4.C.
type ErrKind string

const (
	MissingDefault      ErrKind = "MissingDefault"
	InvalidVariant      ErrKind = "InvalidVariant"
	TypeMismatch        ErrKind = "TypeMismatch"
	UnresolvedReference ErrKind = "UnresolvedReference"
)

// Error is a typed Agent Type validation/render failure (spec §4.C).
type Error struct {
	Kind     ErrKind
	Variable string
	Detail   string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Variable)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Variable, e.Detail)
}
