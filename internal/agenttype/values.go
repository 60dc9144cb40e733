package agenttype

import (
	"fmt"
	"strconv"

	"sigs.k8s.io/yaml"
)

// AgentValues is the input to binding: a mapping from variable name to
// a trivial value (spec §3).
type AgentValues map[string]any

// BoundValue is a variable after successful binding: its kind-checked
// final_value, ready for template substitution (spec §3).
type BoundValue struct {
	Kind       Kind
	FinalValue string
	raw        any
}

// Bound is the result of binding AgentValues against a Document's
// variable schema: every variable name the template may reference,
// each with its resolved final_value.
type Bound map[string]BoundValue

// constraintSets resolves a `string` variable's `variants` against the
// fleet-wide VariableConstraints registry when a variant name (rather
// than a literal list) is given; see spec §3 "optionally resolved
// against a fleet-wide constraint map".
type constraintSets = map[string][]string

// Bind type-checks values against doc's variable schema, applying
// defaults for omitted variables, and returns the bound set ready for
// rendering. Errors are *Error with Kind one of MissingDefault,
// InvalidVariant, TypeMismatch (spec §4.C).
func Bind(doc Document, values AgentValues, constraints constraintSets) (Bound, error) {
	bound := make(Bound, len(doc.Variables))

	for name, v := range doc.Variables {
		raw, present := values[name]
		if !present {
			if v.hasDefault() {
				raw = *v.Default
			} else if v.Required {
				return nil, &Error{Kind: MissingDefault, Variable: name}
			}
		}

		bv, err := checkAndCoerce(name, v, raw)
		if err != nil {
			return nil, err
		}

		if v.Kind == KindString && len(v.Variants) > 0 {
			allowed := resolveVariants(v.Variants, constraints)
			if !contains(allowed, bv.FinalValue) {
				return nil, &Error{Kind: InvalidVariant, Variable: name,
					Detail: fmt.Sprintf("%q not in %v", bv.FinalValue, allowed)}
			}
		}

		bound[name] = bv
	}
	return bound, nil
}

func resolveVariants(declared []string, constraints constraintSets) []string {
	if len(declared) == 1 {
		if set, ok := constraints[declared[0]]; ok {
			return set
		}
	}
	return declared
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func checkAndCoerce(name string, v Variable, raw any) (BoundValue, error) {
	switch v.Kind {
	case KindString, KindFilePath, KindDirPath:
		s, ok := raw.(string)
		if !ok {
			return BoundValue{}, &Error{Kind: TypeMismatch, Variable: name,
				Detail: fmt.Sprintf("want string, got %T", raw)}
		}
		return BoundValue{Kind: v.Kind, FinalValue: s, raw: raw}, nil

	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return BoundValue{}, &Error{Kind: TypeMismatch, Variable: name,
				Detail: fmt.Sprintf("want bool, got %T", raw)}
		}
		return BoundValue{Kind: v.Kind, FinalValue: strconv.FormatBool(b), raw: raw}, nil

	case KindNumber:
		switch n := raw.(type) {
		case float64:
			return BoundValue{Kind: v.Kind, FinalValue: strconv.FormatFloat(n, 'f', -1, 64), raw: raw}, nil
		case int:
			return BoundValue{Kind: v.Kind, FinalValue: strconv.Itoa(n), raw: raw}, nil
		default:
			return BoundValue{}, &Error{Kind: TypeMismatch, Variable: name,
				Detail: fmt.Sprintf("want number, got %T", raw)}
		}

	case KindYAML:
		out, err := yaml.Marshal(raw)
		if err != nil {
			return BoundValue{}, &Error{Kind: TypeMismatch, Variable: name, Detail: err.Error()}
		}
		return BoundValue{Kind: v.Kind, FinalValue: string(out), raw: raw}, nil

	default:
		return BoundValue{}, &Error{Kind: TypeMismatch, Variable: name,
			Detail: fmt.Sprintf("unknown variable kind %q", v.Kind)}
	}
}
