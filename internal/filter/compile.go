package filter

import (
	"fmt"
	"strings"

	"github.com/driftline/sitefn/internal/fndef"
	"github.com/driftline/sitefn/internal/jsir"
)

// CompileError is a malformed filter tree: an unknown operator, property
// type, or combinator, or an operand of the wrong shape. Fatal to the
// whole compilation; this compiler has no degraded output.
type CompileError struct {
	Key     string
	Message string
}

func (e *CompileError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("filter condition %q: %s", e.Key, e.Message)
	}
	return fmt.Sprintf("filter: %s", e.Message)
}

// Compile lowers a filter set to one boolean expression fragment. The
// test-account exclusion conditions, when enabled, are folded in as
// implicit AND-ed conditions; the assembler never treats them specially.
// An empty tree compiles to the literal true.
func Compile(f fndef.FilterSet, testAccounts []fndef.Condition) (jsir.Expr, error) {
	expr, err := CompileNode(f.Tree)
	if err != nil {
		return nil, err
	}

	if f.FilterTestAccounts {
		for _, cond := range testAccounts {
			c, err := compileCondition(cond)
			if err != nil {
				return nil, err
			}
			expr = conjoin(expr, c)
		}
	}

	return expr, nil
}

// CompileNode lowers one filter subtree. AND nodes become short-circuit
// conjunctions, OR nodes short-circuit disjunctions, leaves a single
// comparison chosen by the condition's operator.
func CompileNode(n fndef.FilterNode) (jsir.Expr, error) {
	if n.Cond != nil {
		return compileCondition(*n.Cond)
	}

	op := n.Op
	if op == "" {
		op = fndef.BoolAnd
	}
	var jsOp string
	switch op {
	case fndef.BoolAnd:
		jsOp = "&&"
	case fndef.BoolOr:
		jsOp = "||"
	default:
		return nil, &CompileError{Message: fmt.Sprintf("unknown combinator %q", op)}
	}

	var exprs []jsir.Expr
	for _, child := range n.Children {
		if child.Empty() {
			continue
		}
		e, err := CompileNode(child)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}

	if len(exprs) == 0 {
		return jsir.Lit{Value: true}, nil
	}
	expr := exprs[0]
	for _, e := range exprs[1:] {
		expr = jsir.Binary{Op: jsOp, Left: expr, Right: e}
	}
	return expr, nil
}

func conjoin(a, b jsir.Expr) jsir.Expr {
	if lit, ok := a.(jsir.Lit); ok && lit.Value == true {
		return b
	}
	return jsir.Binary{Op: "&&", Left: a, Right: b}
}

func compileCondition(c fndef.Condition) (jsir.Expr, error) {
	if c.Key == "" {
		return nil, &CompileError{Message: "condition key is empty"}
	}
	acc, err := accessor(c)
	if err != nil {
		return nil, err
	}
	return compare(c, acc)
}

// accessor builds the property read for a condition's key.
func accessor(c fndef.Condition) (jsir.Expr, error) {
	switch c.PropertyType {
	case fndef.PropertyMeta:
		return jsir.Member{Object: jsir.GetGlobal("event"), Property: c.Key}, nil
	case fndef.PropertyEvent:
		return propertyRead(jsir.GetGlobal("event"), c.Key), nil
	case fndef.PropertyPerson:
		return propertyRead(jsir.GetGlobal("person"), c.Key), nil
	case fndef.PropertyGroup:
		group, rest, ok := strings.Cut(c.Key, ".")
		if !ok {
			return nil, &CompileError{Key: c.Key, Message: "group condition key must be \"<group>.<property>\""}
		}
		return propertyRead(jsir.Member{Object: jsir.GetGlobal("groups"), Property: group}, rest), nil
	default:
		return nil, &CompileError{Key: c.Key, Message: fmt.Sprintf("unknown property type %q", c.PropertyType)}
	}
}

// propertyRead reads owner.properties.<path>, splitting dotted paths into
// nested member access.
func propertyRead(owner jsir.Expr, path string) jsir.Expr {
	expr := jsir.Member{Object: owner, Property: "properties"}
	var out jsir.Expr = expr
	for _, part := range strings.Split(path, ".") {
		out = jsir.Member{Object: out, Property: part}
	}
	return out
}

// compare lowers one condition's operator to a comparison fragment.
func compare(c fndef.Condition, acc jsir.Expr) (jsir.Expr, error) {
	switch c.Operator {
	case fndef.OpExact:
		return jsir.Binary{Op: "===", Left: acc, Right: jsir.Lit{Value: c.Value}}, nil
	case fndef.OpIsNot:
		return jsir.Binary{Op: "!==", Left: acc, Right: jsir.Lit{Value: c.Value}}, nil
	case fndef.OpIsSet:
		return jsir.Binary{Op: "!=", Left: acc, Right: jsir.Lit{Value: nil}}, nil
	case fndef.OpIsNotSet:
		return jsir.Binary{Op: "==", Left: acc, Right: jsir.Lit{Value: nil}}, nil
	case fndef.OpGt:
		return jsir.Binary{Op: ">", Left: acc, Right: jsir.Lit{Value: c.Value}}, nil
	case fndef.OpGte:
		return jsir.Binary{Op: ">=", Left: acc, Right: jsir.Lit{Value: c.Value}}, nil
	case fndef.OpLt:
		return jsir.Binary{Op: "<", Left: acc, Right: jsir.Lit{Value: c.Value}}, nil
	case fndef.OpLte:
		return jsir.Binary{Op: "<=", Left: acc, Right: jsir.Lit{Value: c.Value}}, nil
	case fndef.OpIContains, fndef.OpNotIContains:
		needle, ok := c.Value.(string)
		if !ok {
			return nil, &CompileError{Key: c.Key, Message: fmt.Sprintf("%s requires a string value, got %T", c.Operator, c.Value)}
		}
		found := jsir.Binary{
			Op: "!==",
			Left: jsir.Call{
				Callee: jsir.Member{Object: lowercased(acc), Property: "indexOf"},
				Args:   []jsir.Expr{jsir.Lit{Value: strings.ToLower(needle)}},
			},
			Right: jsir.Lit{Value: -1},
		}
		if c.Operator == fndef.OpNotIContains {
			return jsir.Unary{Op: "!", Operand: found}, nil
		}
		return found, nil
	case fndef.OpRegex, fndef.OpNotRegex:
		pattern, ok := c.Value.(string)
		if !ok {
			return nil, &CompileError{Key: c.Key, Message: fmt.Sprintf("%s requires a string value, got %T", c.Operator, c.Value)}
		}
		matched := jsir.Call{
			Callee: jsir.Member{
				Object:   jsir.New{Callee: jsir.Ident{Name: "RegExp"}, Args: []jsir.Expr{jsir.Lit{Value: pattern}}},
				Property: "test",
			},
			Args: []jsir.Expr{asText(acc)},
		}
		if c.Operator == fndef.OpNotRegex {
			return jsir.Unary{Op: "!", Operand: matched}, nil
		}
		return matched, nil
	case fndef.OpIn, fndef.OpNotIn:
		values, ok := c.Value.([]any)
		if !ok {
			return nil, &CompileError{Key: c.Key, Message: fmt.Sprintf("%s requires an array value, got %T", c.Operator, c.Value)}
		}
		op := "!=="
		if c.Operator == fndef.OpNotIn {
			op = "==="
		}
		return jsir.Binary{
			Op: op,
			Left: jsir.Call{
				Callee: jsir.Member{Object: jsir.Lit{Value: values}, Property: "indexOf"},
				Args:   []jsir.Expr{acc},
			},
			Right: jsir.Lit{Value: -1},
		}, nil
	default:
		return nil, &CompileError{Key: c.Key, Message: fmt.Sprintf("unknown operator %q", c.Operator)}
	}
}

func asText(e jsir.Expr) jsir.Expr {
	return jsir.Call{Callee: jsir.Ident{Name: jsir.HelperText}, Args: []jsir.Expr{e}}
}

func lowercased(e jsir.Expr) jsir.Expr {
	return jsir.Call{Callee: jsir.Member{Object: asText(e), Property: "toLowerCase"}}
}
