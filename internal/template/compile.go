package template

import (
	"fmt"

	"github.com/driftline/sitefn/internal/fndef"
	"github.com/driftline/sitefn/internal/jsir"
)

// Compile lowers one classified value to an expression fragment. Literal
// values become literals; templated values become expressions that read
// runtime state through the global-accessor indirection.
func Compile(c Classified) (jsir.Expr, error) {
	switch c.Kind {
	case Literal:
		return jsir.Lit{Value: c.Value}, nil
	case TemplateString:
		return compileString(c.Value.(string))
	case TemplateStruct:
		return compileStruct(c.Value)
	default:
		return nil, fmt.Errorf("unknown classification kind %d", c.Kind)
	}
}

// compileString compiles a template string. A template that is exactly one
// embedded expression preserves the expression's runtime type; anything
// mixed with literal text compiles to string concatenation with null and
// undefined rendered as the empty string.
func compileString(s string) (jsir.Expr, error) {
	tpl, err := ParseTemplate(s)
	if err != nil {
		return nil, err
	}

	if len(tpl.Segments) == 0 {
		return jsir.Lit{Value: ""}, nil
	}
	if len(tpl.Segments) == 1 {
		seg := tpl.Segments[0]
		if seg.Expr != nil {
			return compilePath(seg.Expr), nil
		}
		return jsir.Lit{Value: seg.Text}, nil
	}

	var expr jsir.Expr
	for _, seg := range tpl.Segments {
		var part jsir.Expr
		if seg.Expr != nil {
			part = jsir.Call{Callee: jsir.Ident{Name: jsir.HelperText}, Args: []jsir.Expr{compilePath(seg.Expr)}}
		} else {
			part = jsir.Lit{Value: seg.Text}
		}
		if expr == nil {
			expr = part
		} else {
			expr = jsir.Binary{Op: "+", Left: expr, Right: part}
		}
	}
	return expr, nil
}

// compileStruct recursively compiles an object or array value. Static
// leaves embed as literals, templated leaves as compiled sub-expressions;
// the result is a structural literal. Object keys are emitted in canonical
// order so compilation stays byte-deterministic over Go map iteration.
func compileStruct(v any) (jsir.Expr, error) {
	switch val := v.(type) {
	case map[string]any:
		obj := jsir.Object{Entries: make([]jsir.Entry, 0, len(val))}
		for _, k := range fndef.CanonicalKeyOrder(val) {
			sub, err := compileNested(val[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			obj.Entries = append(obj.Entries, jsir.Entry{Key: k, Value: sub})
		}
		return obj, nil
	case []any:
		arr := jsir.Array{Elems: make([]jsir.Expr, 0, len(val))}
		for i, elem := range val {
			sub, err := compileNested(elem)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			arr.Elems = append(arr.Elems, sub)
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("struct compilation requires an object or array, got %T", v)
	}
}

func compileNested(v any) (jsir.Expr, error) {
	return Compile(Classify(v))
}

// compilePath lowers a parsed path to an accessor chain rooted at the
// global indirection: {person.properties.name} becomes
// __getGlobal("person").properties.name.
func compilePath(p *Path) jsir.Expr {
	expr := jsir.GetGlobal(p.Root)
	for _, acc := range p.Accessors {
		if acc.IsIndex {
			expr = jsir.Index{Object: expr, Key: jsir.Lit{Value: acc.Index}}
		} else {
			expr = jsir.Member{Object: expr, Property: acc.Field}
		}
	}
	return expr
}
