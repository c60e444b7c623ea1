package template

import "github.com/driftline/sitefn/internal/fndef"

// Kind tags the result of classifying one input value.
type Kind int

const (
	// Literal values are embedded verbatim in the generated program.
	Literal Kind = iota
	// TemplateString values contain at least one embedded expression.
	TemplateString
	// TemplateStruct values are objects or arrays. They are ALWAYS treated
	// as templated because they may contain nested expressions at
	// arbitrary depth.
	TemplateStruct
)

// Classified is the tagged variant produced by Classify. Downstream
// compiler stages pattern-match on Kind instead of re-inspecting the raw
// value's Go type.
type Classified struct {
	Kind  Kind
	Value any
}

// Classify decides static versus templated for one input value. Pure; any
// value classifies successfully.
func Classify(v any) Classified {
	switch val := v.(type) {
	case string:
		if fndef.ContainsTemplate(val) {
			return Classified{Kind: TemplateString, Value: v}
		}
		return Classified{Kind: Literal, Value: v}
	case map[string]any:
		return Classified{Kind: TemplateStruct, Value: v}
	case []any:
		return Classified{Kind: TemplateStruct, Value: v}
	default:
		return Classified{Kind: Literal, Value: v}
	}
}

// IsStatic reports whether the value will be embedded verbatim.
func (c Classified) IsStatic() bool { return c.Kind == Literal }
