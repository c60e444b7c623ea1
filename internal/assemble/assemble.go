package assemble

import (
	"fmt"
	"strings"

	"github.com/driftline/sitefn/internal/filter"
	"github.com/driftline/sitefn/internal/fndef"
	"github.com/driftline/sitefn/internal/jsir"
	"github.com/driftline/sitefn/internal/template"
)

// hostObject is the generated program's single environment dependency: an
// object the host page provides with loadGlobals(), globalsForEvent(event)
// and onEvent(fn).
const hostObject = "__sfHost"

// Version identifies the generator for artifact cache keying. Bump on any
// change to emitted program text.
const Version = "1"

// CompileError is a compilation failure. Generation is atomic: when
// Compile returns an error, no partial program text exists.
type CompileError struct {
	FunctionID string
	Stage      string // "inputs", "filters", "body", "mapping", "render"
	Err        error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile function %q: %s: %v", e.FunctionID, e.Stage, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Compile generates the browser script for one definition. Output is
// byte-deterministic: equal definitions produce identical text.
func Compile(ctx *Context, def *fndef.FunctionDefinition) (string, error) {
	if ctx == nil {
		ctx = NewContext()
	}
	fail := func(stage string, err error) (string, error) {
		return "", &CompileError{FunctionID: def.ID, Stage: stage, Err: err}
	}

	if verrs := fndef.ValidateInputs(def.InputsSchema, def.Inputs); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, v := range verrs {
			msgs[i] = v.Error()
		}
		return fail("inputs", fmt.Errorf("%s", strings.Join(msgs, "; ")))
	}

	if ctx.Target == TargetSite {
		if err := rejectSecretValues(def); err != nil {
			return fail("inputs", err)
		}
	}

	bc, err := ctx.bodyCompiler()
	if err != nil {
		return fail("body", err)
	}
	body, err := bc.Compile(def.Body, ctx.Target)
	if err != nil {
		return fail("body", err)
	}
	ctx.diagf("compiled body for %s (onLoad=%v onEvent=%v)", def.ID, body.HasOnLoad, body.HasOnEvent)

	statics, templated, err := classifyInputs(withDefaults(def.InputsSchema, def.Inputs))
	if err != nil {
		return fail("inputs", err)
	}
	ctx.diagf("classified inputs for %s: %d static, %d templated", def.ID, len(statics), len(templated))

	topFilter, err := filter.Compile(def.Filters, ctx.TestAccountConditions)
	if err != nil {
		return fail("filters", err)
	}

	enabled := def.EnabledMappings()
	// A definition without mappings invokes the event hook directly; one
	// whose mappings are all disabled invokes nothing.
	invocable := len(def.Mappings) == 0 || len(enabled) > 0
	emitEvent := body.HasOnEvent && invocable

	prog := []jsir.Stmt{textHelperDecl()}
	if emitEvent && len(enabled) > 0 {
		prog = append(prog, cloneHelperDecl())
	}
	prog = append(prog,
		jsir.VarDecl{Name: "source", Value: jsir.Call{Callee: jsir.Raw{Text: body.Factory}}},
		buildInputsDecl(statics, templated),
	)

	if body.HasOnLoad {
		prog = append(prog, loadSection())
	}
	if emitEvent {
		section, err := eventSection(topFilter, enabled)
		if err != nil {
			return fail("mapping", err)
		}
		prog = append(prog, section)
	}

	// The whole program lives in one self-invoking closure so repeated
	// injections on the same page cannot collide.
	wrapped := jsir.Program{Stmts: []jsir.Stmt{jsir.ExprStmt{X: jsir.IIFE(nil, prog)}}}
	text, err := jsir.Render(&wrapped)
	if err != nil {
		return fail("render", err)
	}
	return text, nil
}

// rejectSecretValues refuses any value bound to a secret-declared slot.
// The generated script is injected into end-user pages, so a secret value
// written into it would be public text; secret slots are served by the
// trusted evaluator on the server target instead.
func rejectSecretValues(def *fndef.FunctionDefinition) error {
	for _, spec := range def.InputsSchema {
		if !spec.Secret {
			continue
		}
		if _, ok := def.Inputs[spec.Key]; ok || spec.Default != nil {
			return fmt.Errorf("secret input %q cannot be embedded in a browser script", spec.Key)
		}
		for _, m := range def.EnabledMappings() {
			if _, ok := m.Inputs[spec.Key]; ok {
				return fmt.Errorf("mapping %q: secret input %q cannot be embedded in a browser script", m.Name, spec.Key)
			}
		}
	}
	return nil
}

// withDefaults merges schema defaults into the authored inputs. A declared
// slot whose key the author left out contributes its default value, placed
// ahead of the authored entries so templated inputs can read it. Validation
// counts a default toward a required slot, so the default must reach the
// generated program.
func withDefaults(schema []fndef.InputSpec, inputs map[string]fndef.InputValue) map[string]fndef.InputValue {
	var missing []fndef.InputSpec
	for _, spec := range schema {
		if spec.Default == nil {
			continue
		}
		if _, ok := inputs[spec.Key]; ok {
			continue
		}
		missing = append(missing, spec)
	}
	if len(missing) == 0 {
		return inputs
	}

	merged := make(map[string]fndef.InputValue, len(inputs)+len(missing))
	for k, iv := range inputs {
		merged[k] = iv
	}
	// Negative ranks sort defaults before authored entries of the same order.
	for i, spec := range missing {
		merged[spec.Key] = fndef.InputValue{Value: spec.Default, Rank: i - len(missing)}
	}
	return merged
}

// templatedInput is one compiled templated input in emission order.
type templatedInput struct {
	key  string
	expr jsir.Expr
}

// classifyInputs splits inputs into static literal entries and compiled
// templated inputs, both in ascending order.
func classifyInputs(inputs map[string]fndef.InputValue) ([]jsir.Entry, []templatedInput, error) {
	var statics []jsir.Entry
	var tpl []templatedInput
	for _, k := range fndef.OrderedInputKeys(inputs) {
		c := template.Classify(inputs[k].Value)
		if c.IsStatic() {
			statics = append(statics, jsir.Entry{Key: k, Value: jsir.Lit{Value: c.Value}})
			continue
		}
		expr, err := template.Compile(c)
		if err != nil {
			return nil, nil, fmt.Errorf("input %q: %w", k, err)
		}
		tpl = append(tpl, templatedInput{key: k, expr: expr})
	}
	return statics, tpl, nil
}

// buildInputsDecl emits the input resolution function. It is pure with
// respect to its two parameters: no caching across calls.
func buildInputsDecl(statics []jsir.Entry, templated []templatedInput) jsir.Stmt {
	body := []jsir.Stmt{
		jsir.VarDecl{Name: "inputs", Value: jsir.Object{Entries: statics}},
		accessorShadow(true),
	}
	if len(templated) > 0 {
		body = append(body, resolverDecl("__resolveInput", templated, true))
		for _, t := range templated {
			body = append(body, jsir.Assign{
				Target: jsir.Index{Object: jsir.Ident{Name: "inputs"}, Key: jsir.Lit{Value: t.key}},
				Value:  jsir.Call{Callee: jsir.Ident{Name: "__resolveInput"}, Args: []jsir.Expr{jsir.Lit{Value: t.key}}},
			})
		}
	}
	body = append(body, jsir.Return{Value: jsir.Ident{Name: "inputs"}})
	return jsir.FuncDecl{Name: "buildInputs", Params: []string{"globals", "initial"}, Body: body}
}

// resolverDecl emits the switch-based resolution function. Each case is
// guarded by try/catch; failures return null. When guardInitial is set the
// diagnostic log is suppressed for initial (startup/preview) calls.
func resolverDecl(name string, items []templatedInput, guardInitial bool) jsir.Stmt {
	cases := make([]jsir.Case, 0, len(items))
	for _, it := range items {
		logStmt := jsir.ExprStmt{X: jsir.Call{
			Callee: jsir.Member{Object: jsir.Ident{Name: "console"}, Property: "error"},
			Args: []jsir.Expr{
				jsir.Lit{Value: fmt.Sprintf("[sitefn] failed to resolve input %q:", it.key)},
				jsir.Ident{Name: "e"},
			},
		}}
		var catch []jsir.Stmt
		if guardInitial {
			catch = append(catch, jsir.If{
				Cond: jsir.Unary{Op: "!", Operand: jsir.Ident{Name: "initial"}},
				Then: []jsir.Stmt{logStmt},
			})
		} else {
			catch = append(catch, logStmt)
		}
		catch = append(catch, jsir.Return{Value: jsir.Lit{Value: nil}})

		cases = append(cases, jsir.Case{
			Match: jsir.Lit{Value: it.key},
			Body: []jsir.Stmt{jsir.Try{
				Body:  []jsir.Stmt{jsir.Return{Value: it.expr}},
				Catch: catch,
			}},
		})
	}
	return jsir.FuncDecl{Name: name, Params: []string{"key"}, Body: []jsir.Stmt{
		jsir.Switch{On: jsir.Ident{Name: "key"}, Cases: cases},
		jsir.Return{Value: jsir.Lit{Value: nil}},
	}}
}

// accessorShadow redefines the global accessor for the current scope. When
// inputsAware is set, the symbolic name "inputs" resolves to the local
// in-progress inputs object; everything else goes through the
// caller-supplied globals.
func accessorShadow(inputsAware bool) jsir.Stmt {
	name := jsir.Ident{Name: "name"}
	lookup := jsir.Index{Object: jsir.Ident{Name: "globals"}, Key: name}
	var ret jsir.Expr = lookup
	if inputsAware {
		ret = jsir.Ternary{
			Cond: jsir.Binary{Op: "===", Left: name, Right: jsir.Lit{Value: "inputs"}},
			Then: jsir.Ident{Name: "inputs"},
			Else: lookup,
		}
	}
	return jsir.VarDecl{Name: jsir.GlobalAccessor, Value: jsir.Func{
		Params: []string{"name"},
		Body:   []jsir.Stmt{jsir.Return{Value: ret}},
	}}
}

// loadSection invokes the load hook once at injection time. initial=true
// suppresses resolution logging: initialization globals are necessarily
// incomplete.
func loadSection() jsir.Stmt {
	return jsir.If{
		Cond: jsir.Member{Object: jsir.Ident{Name: "source"}, Property: "onLoad"},
		Then: []jsir.Stmt{jsir.ExprStmt{X: jsir.Call{
			Callee: jsir.Member{Object: jsir.Ident{Name: "source"}, Property: "onLoad"},
			Args: []jsir.Expr{jsir.Object{Entries: []jsir.Entry{{
				Key: "inputs",
				Value: jsir.Call{Callee: jsir.Ident{Name: "buildInputs"}, Args: []jsir.Expr{
					jsir.Call{Callee: jsir.Member{Object: jsir.Ident{Name: hostObject}, Property: "loadGlobals"}},
					jsir.Lit{Value: true},
				}},
			}}}},
		}}},
	}
}

// eventSection subscribes to the host's event-capture notifications and
// emits the filter-gated per-event dispatch with mapping fan-out.
func eventSection(topFilter jsir.Expr, mappings []fndef.Mapping) (jsir.Stmt, error) {
	handler := []jsir.Stmt{
		jsir.VarDecl{Name: "globals", Value: jsir.Call{
			Callee: jsir.Member{Object: jsir.Ident{Name: hostObject}, Property: "globalsForEvent"},
			Args:   []jsir.Expr{jsir.Ident{Name: "event"}},
		}},
		accessorShadow(false),
	}
	if !isTrue(topFilter) {
		handler = append(handler, jsir.If{
			Cond: jsir.Unary{Op: "!", Operand: topFilter},
			Then: []jsir.Stmt{jsir.Return{}},
		})
	}
	handler = append(handler, jsir.VarDecl{Name: "inputs", Value: jsir.Call{
		Callee: jsir.Ident{Name: "buildInputs"},
		Args:   []jsir.Expr{jsir.Ident{Name: "globals"}, jsir.Lit{Value: false}},
	}})

	if len(mappings) == 0 {
		handler = append(handler, invokeOnEvent())
	}
	for _, m := range mappings {
		block, err := mappingBlock(m)
		if err != nil {
			return nil, err
		}
		handler = append(handler, block)
	}

	return jsir.If{
		Cond: jsir.Member{Object: jsir.Ident{Name: "source"}, Property: "onEvent"},
		Then: []jsir.Stmt{jsir.ExprStmt{X: jsir.Call{
			Callee: jsir.Member{Object: jsir.Ident{Name: hostObject}, Property: "onEvent"},
			Args:   []jsir.Expr{jsir.Func{Params: []string{"event"}, Body: handler}},
		}}},
	}, nil
}

// mappingBlock emits one enabled mapping's isolated closure. The closure
// receives a structural deep copy of the top-level inputs as its "inputs"
// parameter, so override resolution and any hook-side mutation cannot leak
// into siblings or the top-level object.
func mappingBlock(m fndef.Mapping) (jsir.Stmt, error) {
	body := []jsir.Stmt{accessorShadow(true)}

	staticOv, templatedOv, err := classifyInputs(m.Inputs)
	if err != nil {
		return nil, fmt.Errorf("mapping %q: %w", m.Name, err)
	}
	for _, e := range staticOv {
		body = append(body, jsir.Assign{
			Target: jsir.Index{Object: jsir.Ident{Name: "inputs"}, Key: jsir.Lit{Value: e.Key}},
			Value:  e.Value,
		})
	}
	if len(templatedOv) > 0 {
		body = append(body, resolverDecl("__resolveOverride", templatedOv, false))
		for _, t := range templatedOv {
			body = append(body, jsir.Assign{
				Target: jsir.Index{Object: jsir.Ident{Name: "inputs"}, Key: jsir.Lit{Value: t.key}},
				Value:  jsir.Call{Callee: jsir.Ident{Name: "__resolveOverride"}, Args: []jsir.Expr{jsir.Lit{Value: t.key}}},
			})
		}
	}

	if !m.Filters.Empty() {
		mf, err := filter.CompileNode(m.Filters)
		if err != nil {
			return nil, fmt.Errorf("mapping %q: %w", m.Name, err)
		}
		body = append(body, jsir.If{
			Cond: jsir.Unary{Op: "!", Operand: mf},
			Then: []jsir.Stmt{jsir.Return{}},
		})
	}

	body = append(body, invokeOnEvent())

	clone := jsir.Call{Callee: jsir.Ident{Name: jsir.HelperClone}, Args: []jsir.Expr{jsir.Ident{Name: "inputs"}}}
	return jsir.ExprStmt{X: jsir.IIFE([]string{"inputs"}, body, clone)}, nil
}

func invokeOnEvent() jsir.Stmt {
	return jsir.ExprStmt{X: jsir.Call{
		Callee: jsir.Member{Object: jsir.Ident{Name: "source"}, Property: "onEvent"},
		Args: []jsir.Expr{jsir.Object{Entries: []jsir.Entry{
			{Key: "inputs", Value: jsir.Ident{Name: "inputs"}},
			{Key: "event", Value: jsir.Ident{Name: "event"}},
		}}},
	}}
}

func textHelperDecl() jsir.Stmt {
	v := jsir.Ident{Name: "v"}
	return jsir.FuncDecl{Name: jsir.HelperText, Params: []string{"v"}, Body: []jsir.Stmt{
		jsir.Return{Value: jsir.Ternary{
			Cond: jsir.Binary{Op: "==", Left: v, Right: jsir.Lit{Value: nil}},
			Then: jsir.Lit{Value: ""},
			Else: jsir.Call{Callee: jsir.Ident{Name: "String"}, Args: []jsir.Expr{v}},
		}},
	}}
}

func cloneHelperDecl() jsir.Stmt {
	v := jsir.Ident{Name: "v"}
	stringify := jsir.Call{
		Callee: jsir.Member{Object: jsir.Ident{Name: "JSON"}, Property: "stringify"},
		Args:   []jsir.Expr{v},
	}
	return jsir.FuncDecl{Name: jsir.HelperClone, Params: []string{"v"}, Body: []jsir.Stmt{
		jsir.Return{Value: jsir.Call{
			Callee: jsir.Member{Object: jsir.Ident{Name: "JSON"}, Property: "parse"},
			Args:   []jsir.Expr{stringify},
		}},
	}}
}

func isTrue(e jsir.Expr) bool {
	lit, ok := e.(jsir.Lit)
	return ok && lit.Value == true
}
