package jsir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderExprLiterals(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"string", Lit{Value: "hi"}, `"hi"`},
		{"int", Lit{Value: 42}, "42"},
		{"bool", Lit{Value: true}, "true"},
		{"null", Lit{Value: nil}, "null"},
		{"array", Array{Elems: []Expr{Lit{Value: 1}, Lit{Value: "a"}}}, `[1, "a"]`},
		{"empty object", Object{}, "{}"},
		{"object", Object{Entries: []Entry{{Key: "a", Value: Lit{Value: 1}}, {Key: "b", Value: Ident{Name: "x"}}}}, `{ "a": 1, "b": x }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderExpr(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderExprAccessChain(t *testing.T) {
	expr := Member{Object: Member{Object: GetGlobal("person"), Property: "properties"}, Property: "name"}
	got, err := RenderExpr(expr)
	require.NoError(t, err)
	assert.Equal(t, `__getGlobal("person").properties.name`, got)
}

func TestRenderExprMemberFallsBackToIndex(t *testing.T) {
	got, err := RenderExpr(Member{Object: Ident{Name: "obj"}, Property: "weird key"})
	require.NoError(t, err)
	assert.Equal(t, `obj["weird key"]`, got)

	got, err = RenderExpr(Member{Object: Ident{Name: "obj"}, Property: "0leading"})
	require.NoError(t, err)
	assert.Equal(t, `obj["0leading"]`, got)
}

func TestRenderExprConcat(t *testing.T) {
	expr := Binary{
		Op:   "+",
		Left: Lit{Value: "Hello "},
		Right: Call{
			Callee: Ident{Name: "__txt"},
			Args:   []Expr{Member{Object: Member{Object: GetGlobal("person"), Property: "properties"}, Property: "name"}},
		},
	}
	got, err := RenderExpr(expr)
	require.NoError(t, err)
	assert.Equal(t, `("Hello " + __txt(__getGlobal("person").properties.name))`, got)
}

func TestRenderExprUnaryAndTernary(t *testing.T) {
	got, err := RenderExpr(Unary{Op: "!", Operand: Ident{Name: "ok"}})
	require.NoError(t, err)
	assert.Equal(t, "!(ok)", got)

	got, err = RenderExpr(Ternary{
		Cond: Binary{Op: "===", Left: Ident{Name: "name"}, Right: Lit{Value: "inputs"}},
		Then: Ident{Name: "inputs"},
		Else: Index{Object: Ident{Name: "globals"}, Key: Ident{Name: "name"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `((name === "inputs") ? inputs : globals[name])`, got)
}

func TestRenderProgramStatements(t *testing.T) {
	p := &Program{Stmts: []Stmt{
		VarDecl{Name: "inputs", Value: Object{Entries: []Entry{{Key: "greeting", Value: Lit{Value: "hi"}}}}},
		If{Cond: Unary{Op: "!", Operand: Ident{Name: "ok"}}, Then: []Stmt{Return{}}},
		Assign{Target: Index{Object: Ident{Name: "inputs"}, Key: Lit{Value: "name"}}, Value: Lit{Value: nil}},
	}}

	got, err := Render(p)
	require.NoError(t, err)
	assert.Equal(t,
		"var inputs = { \"greeting\": \"hi\" };\n"+
			"if (!(ok)) {\n"+
			"  return;\n"+
			"}\n"+
			"inputs[\"name\"] = null;\n",
		got)
}

func TestRenderIIFEStatement(t *testing.T) {
	p := &Program{Stmts: []Stmt{
		ExprStmt{X: IIFE(nil, []Stmt{Return{Value: Lit{Value: 1}}})},
	}}

	got, err := Render(p)
	require.NoError(t, err)
	assert.Equal(t,
		"(function () {\n"+
			"  return 1;\n"+
			"})();\n",
		got)
}

func TestRenderSwitchTryCatch(t *testing.T) {
	p := &Program{Stmts: []Stmt{
		Switch{On: Ident{Name: "key"}, Cases: []Case{{
			Match: Lit{Value: "name"},
			Body: []Stmt{Try{
				Body:  []Stmt{Return{Value: Lit{Value: 1}}},
				Catch: []Stmt{Return{Value: Lit{Value: nil}}},
			}},
		}}},
	}}

	got, err := Render(p)
	require.NoError(t, err)
	assert.Equal(t,
		"switch (key) {\n"+
			"  case \"name\":\n"+
			"    try {\n"+
			"      return 1;\n"+
			"    } catch (e) {\n"+
			"      return null;\n"+
			"    }\n"+
			"}\n",
		got)
}

func TestRenderNestedFunctions(t *testing.T) {
	p := &Program{Stmts: []Stmt{
		FuncDecl{Name: "outer", Params: []string{"globals"}, Body: []Stmt{
			VarDecl{Name: "get", Value: Func{Params: []string{"name"}, Body: []Stmt{
				Return{Value: Index{Object: Ident{Name: "globals"}, Key: Ident{Name: "name"}}},
			}}},
			Return{Value: Ident{Name: "get"}},
		}},
	}}

	got, err := Render(p)
	require.NoError(t, err)
	assert.Equal(t,
		"function outer(globals) {\n"+
			"  var get = function (name) {\n"+
			"    return globals[name];\n"+
			"  };\n"+
			"  return get;\n"+
			"}\n",
		got)
}

func TestRenderRawCalleeParenthesized(t *testing.T) {
	got, err := RenderExpr(Call{Callee: Raw{Text: "function () { return {}; }"}})
	require.NoError(t, err)
	assert.Equal(t, "(function () { return {}; })()", got)
}

func TestRenderDeterministic(t *testing.T) {
	p := &Program{Stmts: []Stmt{
		ExprStmt{X: IIFE(nil, []Stmt{
			VarDecl{Name: "x", Value: Object{Entries: []Entry{{Key: "b", Value: Lit{Value: 2}}, {Key: "a", Value: Lit{Value: 1}}}}},
			Return{Value: Ident{Name: "x"}},
		})},
	}}

	first, err := Render(p)
	require.NoError(t, err)
	second, err := Render(p)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	// Entry order is preserved as authored, not sorted.
	assert.Contains(t, first, `{ "b": 2, "a": 1 }`)
}

func TestRenderLiteralError(t *testing.T) {
	_, err := Render(&Program{Stmts: []Stmt{ExprStmt{X: Lit{Value: struct{}{}}}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render literal")
}
