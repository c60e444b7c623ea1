package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTemplatePlainText(t *testing.T) {
	tpl, err := ParseTemplate("no expressions here")
	require.NoError(t, err)
	require.Len(t, tpl.Segments, 1)
	assert.Equal(t, "no expressions here", tpl.Segments[0].Text)
	assert.Nil(t, tpl.Segments[0].Expr)
}

func TestParseTemplateSingleExpression(t *testing.T) {
	tpl, err := ParseTemplate("{person.properties.name}")
	require.NoError(t, err)
	require.Len(t, tpl.Segments, 1)
	expr := tpl.Segments[0].Expr
	require.NotNil(t, expr)
	assert.Equal(t, "person", expr.Root)
	require.Len(t, expr.Accessors, 2)
	assert.Equal(t, "properties", expr.Accessors[0].Field)
	assert.Equal(t, "name", expr.Accessors[1].Field)
}

func TestParseTemplateMixedSegments(t *testing.T) {
	tpl, err := ParseTemplate("Hello {person.properties.name}, welcome to {event.properties.url}!")
	require.NoError(t, err)
	require.Len(t, tpl.Segments, 5)
	assert.Equal(t, "Hello ", tpl.Segments[0].Text)
	assert.Equal(t, "person", tpl.Segments[1].Expr.Root)
	assert.Equal(t, ", welcome to ", tpl.Segments[2].Text)
	assert.Equal(t, "event", tpl.Segments[3].Expr.Root)
	assert.Equal(t, "!", tpl.Segments[4].Text)
}

func TestParseTemplateBracketAccessors(t *testing.T) {
	tpl, err := ParseTemplate(`{event.properties["utm source"]}`)
	require.NoError(t, err)
	expr := tpl.Segments[0].Expr
	require.Len(t, expr.Accessors, 2)
	assert.Equal(t, "utm source", expr.Accessors[1].Field)

	tpl, err = ParseTemplate("{event.properties.tags[0]}")
	require.NoError(t, err)
	expr = tpl.Segments[0].Expr
	require.Len(t, expr.Accessors, 3)
	assert.True(t, expr.Accessors[2].IsIndex)
	assert.Equal(t, 0, expr.Accessors[2].Index)

	tpl, err = ParseTemplate("{groups['acme'].properties.plan}")
	require.NoError(t, err)
	expr = tpl.Segments[0].Expr
	assert.Equal(t, "groups", expr.Root)
	assert.Equal(t, "acme", expr.Accessors[0].Field)
}

func TestParseTemplateEscapedBrace(t *testing.T) {
	tpl, err := ParseTemplate("a {{literal}} brace")
	require.NoError(t, err)
	require.Len(t, tpl.Segments, 1)
	assert.Equal(t, "a {literal}} brace", tpl.Segments[0].Text)
}

func TestParseTemplateWhitespaceInsideExpression(t *testing.T) {
	tpl, err := ParseTemplate("{ person.properties.name }")
	require.NoError(t, err)
	require.Len(t, tpl.Segments, 1)
	assert.Equal(t, "person", tpl.Segments[0].Expr.Root)
}

func TestParseTemplateErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unterminated", "Hello {person.properties.name"},
		{"empty expression", "Hello {}"},
		{"missing field after dot", "{person.}"},
		{"bad character", "{person + event}"},
		{"unterminated bracket", "{event.properties['x'}"},
		{"unterminated string", `{event.properties["x}`},
		{"bare brace at end", "trailing {"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate(tt.input)
			require.Error(t, err)
			var perr *ParseError
			assert.ErrorAs(t, err, &perr)
		})
	}
}
