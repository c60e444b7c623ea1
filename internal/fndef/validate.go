package fndef

import (
	"fmt"
	"reflect"
	"strings"
)

// ContainsTemplate reports whether a string value carries an embedded
// template expression. This is the single source of truth for the
// static-vs-templated split; every compilation target must use it so the
// targets never diverge on what counts as templated.
func ContainsTemplate(s string) bool {
	return strings.Contains(s, "{")
}

// ValidationError describes one schema violation in a definition's inputs.
type ValidationError struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("input %q: %s", e.Key, e.Message)
}

// ValidateInputs checks raw input values against the declared schema.
//
// Enforced: required slots are present (or have a default), static values
// match their declared type, choice values are members of the declared
// choices. Not enforced: keys absent from the schema pass through as a
// loose map (accepted, unvalidated), and templated values skip type checks
// because their runtime type is unknowable until evaluation.
func ValidateInputs(schema []InputSpec, inputs map[string]InputValue) []ValidationError {
	var errs []ValidationError

	for _, spec := range schema {
		iv, ok := inputs[spec.Key]
		if !ok {
			if spec.Required && spec.Default == nil {
				errs = append(errs, ValidationError{Key: spec.Key, Message: "required input is missing"})
			}
			continue
		}
		if spec.Required && iv.Value == nil {
			errs = append(errs, ValidationError{Key: spec.Key, Message: "required input is null"})
			continue
		}
		if err := checkType(spec, iv.Value); err != nil {
			errs = append(errs, *err)
		}
	}

	return errs
}

// checkType validates a single value against its declared type. Templated
// strings and nil values are accepted for every type.
func checkType(spec InputSpec, v any) *ValidationError {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok && ContainsTemplate(s) {
		return nil
	}

	switch spec.Type {
	case InputTypeString:
		if _, ok := v.(string); !ok {
			return &ValidationError{Key: spec.Key, Message: fmt.Sprintf("expected string, got %T", v)}
		}
	case InputTypeBoolean:
		if _, ok := v.(bool); !ok {
			return &ValidationError{Key: spec.Key, Message: fmt.Sprintf("expected boolean, got %T", v)}
		}
	case InputTypeDictionary:
		if _, ok := v.(map[string]any); !ok {
			return &ValidationError{Key: spec.Key, Message: fmt.Sprintf("expected dictionary, got %T", v)}
		}
	case InputTypeChoice:
		for _, c := range spec.Choices {
			if looseEqual(c, v) {
				return nil
			}
		}
		return &ValidationError{Key: spec.Key, Message: fmt.Sprintf("value %v is not one of the declared choices", v)}
	case InputTypeJSON:
		// Any structured value is acceptable.
	default:
		return &ValidationError{Key: spec.Key, Message: fmt.Sprintf("unknown input type %q", spec.Type)}
	}
	return nil
}

// looseEqual compares choice values with numeric tolerance so that an
// authored 1 matches a decoded 1.0 (JSON and CUE decode numbers into
// different Go types).
func looseEqual(a, b any) bool {
	if na, oka := asFloat(a); oka {
		if nb, okb := asFloat(b); okb {
			return na == nb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
