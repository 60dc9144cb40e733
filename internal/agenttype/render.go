package agenttype

import (
	"bytes"
	"strconv"
	"strings"
	"text/template"

	helmchart "helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chartutil"
	"helm.sh/helm/v3/pkg/engine"
)

// ExecutableArtifact is a fully-resolved process-variant executable,
// ready for the process supervisor to spawn (spec §4.F).
type ExecutableArtifact struct {
	Path string
	Args []string
	Env  map[string]string
}

// ProcessArtifacts is the rendered process-variant deployment.
type ProcessArtifacts struct {
	Executables []ExecutableArtifact
}

// K8sArtifacts is the rendered Kubernetes-variant deployment: enough
// to build the HelmRelease/HelmRepository pair (spec §4.F); the
// concrete typed objects are assembled by internal/supervisor/k8s,
// which also injects the managed-by/agent-id labels and the
// AgentTypeId annotation (spec §4.F).
type K8sArtifacts struct {
	Chart      string
	Repository string
	ValuesYAML string
}

// DeploymentArtifacts is the output of Render: the concrete inputs
// one of the two supervisor variants needs to start a sub-agent (spec
// §3 "DeploymentArtifacts").
type DeploymentArtifacts struct {
	Process *ProcessArtifacts
	K8s     *K8sArtifacts
}

// Render substitutes bound values into doc's deployment template(s),
// returning the concrete artifacts for whichever variant(s) doc
// declares. An unknown {{.Name}} placeholder in the template yields
// *Error{Kind: UnresolvedReference} (spec §4.C).
func Render(doc Document, bound Bound) (DeploymentArtifacts, error) {
	data := make(map[string]string, len(bound))
	for name, bv := range bound {
		data[name] = bv.FinalValue
	}

	var artifacts DeploymentArtifacts

	if doc.Deploy.Process != nil {
		process, err := renderProcess(doc.Deploy.Process, data)
		if err != nil {
			return DeploymentArtifacts{}, err
		}
		artifacts.Process = process
	}

	if doc.Deploy.K8s != nil {
		k8s, err := renderK8s(doc.Deploy.K8s, data)
		if err != nil {
			return DeploymentArtifacts{}, err
		}
		artifacts.K8s = k8s
	}

	return artifacts, nil
}

func renderProcess(section *ProcessSection, data map[string]string) (*ProcessArtifacts, error) {
	out := &ProcessArtifacts{Executables: make([]ExecutableArtifact, 0, len(section.Executables))}
	for _, exe := range section.Executables {
		path, err := substitute("path", exe.Path, data)
		if err != nil {
			return nil, err
		}
		args := make([]string, 0, len(exe.Args))
		for i, a := range exe.Args {
			rendered, err := substitute(fieldName("args", i), a, data)
			if err != nil {
				return nil, err
			}
			args = append(args, rendered)
		}
		env := make(map[string]string, len(exe.Env))
		for k, v := range exe.Env {
			rendered, err := substitute("env."+k, v, data)
			if err != nil {
				return nil, err
			}
			env[k] = rendered
		}
		out.Executables = append(out.Executables, ExecutableArtifact{Path: path, Args: args, Env: env})
	}
	return out, nil
}

// renderK8s templates section.ValuesYAML the same way the Helm SDK
// templates a chart's values.yaml: the variable placeholders are
// exposed under .Values, so an Agent Type author writes
// "{{ .Values.logLevel }}" exactly as in a Helm chart template.
func renderK8s(section *K8sSection, data map[string]string) (*K8sArtifacts, error) {
	values := make(map[string]interface{}, len(data))
	for k, v := range data {
		values[k] = v
	}

	c := &helmchart.Chart{
		Metadata: &helmchart.Metadata{Name: section.Chart, Version: "0.0.0"},
		Templates: []*helmchart.File{
			{Name: "templates/values.yaml", Data: []byte(section.ValuesYAML)},
		},
	}

	renderValues, err := chartutil.ToRenderValues(c, values, chartutil.ReleaseOptions{}, nil)
	if err != nil {
		return nil, &Error{Kind: UnresolvedReference, Variable: "values", Detail: err.Error()}
	}

	rendered, err := engine.Engine{Strict: true}.Render(c, renderValues)
	if err != nil {
		return nil, &Error{Kind: UnresolvedReference, Variable: "values", Detail: err.Error()}
	}

	out := rendered[c.Name()+"/templates/values.yaml"]
	return &K8sArtifacts{Chart: section.Chart, Repository: section.Repository, ValuesYAML: out}, nil
}

func substitute(field, text string, data map[string]string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New(field).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", &Error{Kind: UnresolvedReference, Variable: field, Detail: err.Error()}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", &Error{Kind: UnresolvedReference, Variable: field, Detail: err.Error()}
	}
	return buf.String(), nil
}

func fieldName(prefix string, i int) string {
	return prefix + "[" + strconv.Itoa(i) + "]"
}
