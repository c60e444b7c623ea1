package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/sitefn/internal/fndef"
)

func TestLintCleanDefinition(t *testing.T) {
	def := &fndef.FunctionDefinition{
		Body: "function onEvent() {}",
		Inputs: map[string]fndef.InputValue{
			"base": {Value: "{event.properties.url}", Order: 0},
			"full": {Value: "{inputs.base}?src=banner", Order: 1},
		},
	}

	assert.Empty(t, LintDefinition(def))
}

func TestLintUndeclaredReference(t *testing.T) {
	def := &fndef.FunctionDefinition{
		Body: "function onEvent() {}",
		Inputs: map[string]fndef.InputValue{
			"greeting": {Value: "Hello {inputs.nickname}"},
		},
	}

	warnings := LintDefinition(def)
	require.Len(t, warnings, 1)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "undeclared input")
	assert.Contains(t, warnings[0].Message, "nickname")
	assert.Equal(t, []string{"greeting", "nickname"}, warnings[0].Path)
}

func TestLintForwardReference(t *testing.T) {
	def := &fndef.FunctionDefinition{
		Body: "function onEvent() {}",
		Inputs: map[string]fndef.InputValue{
			"early": {Value: "{inputs.late}", Order: 0},
			"late":  {Value: "{event.event}", Order: 1},
		},
	}

	warnings := LintDefinition(def)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "resolves later")
	assert.Equal(t, []string{"early", "late"}, warnings[0].Path)
}

func TestLintSelfReference(t *testing.T) {
	def := &fndef.FunctionDefinition{
		Body: "function onEvent() {}",
		Inputs: map[string]fndef.InputValue{
			"loop": {Value: "{inputs.loop}"},
		},
	}

	warnings := LintDefinition(def)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "references itself")
	assert.Equal(t, []string{"loop", "loop"}, warnings[0].Path)
}

func TestLintReferenceCycle(t *testing.T) {
	def := &fndef.FunctionDefinition{
		Body: "function onEvent() {}",
		Inputs: map[string]fndef.InputValue{
			"a": {Value: "{inputs.b}", Order: 0},
			"b": {Value: "{inputs.a}", Order: 1},
		},
	}

	warnings := LintDefinition(def)
	// One forward reference (a reads b) plus the cycle itself.
	require.Len(t, warnings, 2)

	var cycle *LintWarning
	for i := range warnings {
		if len(warnings[i].Path) == 3 {
			cycle = &warnings[i]
		}
	}
	require.NotNil(t, cycle)
	assert.Contains(t, cycle.Message, "cycle")
	assert.Equal(t, cycle.Path[0], cycle.Path[len(cycle.Path)-1])
}

func TestLintMappingOverrides(t *testing.T) {
	def := &fndef.FunctionDefinition{
		Body: "function onEvent() {}",
		Inputs: map[string]fndef.InputValue{
			"base": {Value: "https://example.test"},
		},
		Mappings: []fndef.Mapping{
			{
				Name: "docs",
				Inputs: map[string]fndef.InputValue{
					// Reading a top-level input from an override is fine: the
					// mapping works on a fully resolved copy.
					"full": {Value: "{inputs.base}/docs"},
				},
			},
			{
				Name: "broken",
				Inputs: map[string]fndef.InputValue{
					"full": {Value: "{inputs.missing}"},
				},
			},
			{
				Name:     "retired",
				Disabled: true,
				Inputs: map[string]fndef.InputValue{
					"full": {Value: "{inputs.also_missing}"},
				},
			},
		},
	}

	warnings := LintDefinition(def)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "mappings.broken")
	assert.Contains(t, warnings[0].Message, "missing")
}

func TestLintNestedStructValues(t *testing.T) {
	def := &fndef.FunctionDefinition{
		Body: "function onEvent() {}",
		Inputs: map[string]fndef.InputValue{
			"payload": {Value: map[string]any{
				"headers": map[string]any{"X-User": "{inputs.who}"},
				"tags":    []any{"static", "{inputs.who}"},
			}},
		},
	}

	warnings := LintDefinition(def)
	// The undeclared key is referenced twice inside the struct.
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.Contains(t, w.Message, "who")
	}
}

func TestLintIgnoresMalformedTemplates(t *testing.T) {
	def := &fndef.FunctionDefinition{
		Body: "function onEvent() {}",
		Inputs: map[string]fndef.InputValue{
			"bad": {Value: "{inputs."},
		},
	}

	// Malformed templates are the compiler's problem, not the linter's.
	assert.Empty(t, LintDefinition(def))
}
