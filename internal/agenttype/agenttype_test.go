package agenttype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newrelic/agent-control/internal/config"
)

func mustTypeID(t *testing.T) config.AgentTypeID {
	t.Helper()
	id, err := config.ParseAgentTypeID("newrelic/com.newrelic.infra:1.0.0")
	require.NoError(t, err)
	return id
}

func TestParse_RejectsVariableWithoutDefaultOrRequired(t *testing.T) {
	raw := []byte(`
variables:
  log_level:
    kind: string
`)
	_, err := Parse(mustTypeID(t), raw)
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, MissingDefault, e.Kind)
}

func TestBindAndRender_Process(t *testing.T) {
	def := "info"
	doc := Document{
		Variables: map[string]Variable{
			"log_level": {Kind: KindString, Default: &def},
			"port":      {Kind: KindNumber, Required: true},
		},
		Deploy: DeploySections{
			Process: &ProcessSection{
				Executables: []ExecutableTemplate{{
					Path: "/usr/bin/newrelic-infra",
					Args: []string{"--log-level", "{{.log_level}}"},
					Env:  map[string]string{"PORT": "{{.port}}"},
				}},
			},
		},
	}

	bound, err := Bind(doc, AgentValues{"port": float64(8080)}, nil)
	require.NoError(t, err)
	assert.Equal(t, "info", bound["log_level"].FinalValue)

	artifacts, err := Render(doc, bound)
	require.NoError(t, err)
	require.NotNil(t, artifacts.Process)
	exe := artifacts.Process.Executables[0]
	assert.Equal(t, []string{"--log-level", "info"}, exe.Args)
	assert.Equal(t, "8080", exe.Env["PORT"])
}

func TestBind_InvalidVariant(t *testing.T) {
	doc := Document{
		Variables: map[string]Variable{
			"mode": {Kind: KindString, Required: true, Variants: []string{"privileged", "unprivileged"}},
		},
	}
	_, err := Bind(doc, AgentValues{"mode": "root"}, nil)
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, InvalidVariant, e.Kind)
}

func TestBind_VariantsResolvedAgainstConstraintRegistry(t *testing.T) {
	doc := Document{
		Variables: map[string]Variable{
			"mode": {Kind: KindString, Required: true, Variants: []string{"deployment_modes"}},
		},
	}
	constraints := map[string][]string{"deployment_modes": {"privileged", "unprivileged"}}

	_, err := Bind(doc, AgentValues{"mode": "privileged"}, constraints)
	require.NoError(t, err)

	_, err = Bind(doc, AgentValues{"mode": "root"}, constraints)
	require.Error(t, err)
}

func TestBind_MissingRequiredNoDefault(t *testing.T) {
	doc := Document{
		Variables: map[string]Variable{
			"port": {Kind: KindNumber, Required: true},
		},
	}
	_, err := Bind(doc, AgentValues{}, nil)
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, MissingDefault, e.Kind)
}

func TestRender_UnresolvedReference(t *testing.T) {
	doc := Document{
		Variables: map[string]Variable{},
		Deploy: DeploySections{
			Process: &ProcessSection{
				Executables: []ExecutableTemplate{{Path: "{{.nonexistent}}"}},
			},
		},
	}
	_, err := Render(doc, Bound{})
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, UnresolvedReference, e.Kind)
}

func TestRender_K8sValuesTemplate(t *testing.T) {
	doc := Document{
		Variables: map[string]Variable{
			"license_key": {Kind: KindString, Required: true},
		},
		Deploy: DeploySections{
			K8s: &K8sSection{
				Chart:      "newrelic-infrastructure",
				Repository: "https://newrelic.github.io/helm-charts",
				ValuesYAML: "licenseKey: {{ .Values.license_key }}\n",
			},
		},
	}
	bound, err := Bind(doc, AgentValues{"license_key": "abc123"}, nil)
	require.NoError(t, err)

	artifacts, err := Render(doc, bound)
	require.NoError(t, err)
	require.NotNil(t, artifacts.K8s)
	assert.Contains(t, artifacts.K8s.ValuesYAML, "licenseKey: abc123")
}
