package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  Kind
	}{
		{"plain string", "hello", Literal},
		{"bool", true, Literal},
		{"number", float64(3), Literal},
		{"nil", nil, Literal},
		{"templated string", "Hello {person.properties.name}", TemplateString},
		{"escaped brace still templated", "{{literal}}", TemplateString},
		{"object always templated", map[string]any{"plain": "value"}, TemplateStruct},
		{"array always templated", []any{"plain"}, TemplateStruct},
		{"nested template in object", map[string]any{"k": "{event.properties.url}"}, TemplateStruct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.value)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.value, got.Value)
		})
	}
}

func TestClassifyIsStatic(t *testing.T) {
	assert.True(t, Classify("plain").IsStatic())
	assert.False(t, Classify("{event}").IsStatic())
	assert.False(t, Classify(map[string]any{}).IsStatic())
}
