package jsir

import (
	"fmt"
	"strings"

	"github.com/driftline/sitefn/internal/fndef"
)

const indentUnit = "  "

// Render produces the program text. Rendering is total over well-formed
// trees; the only failure mode is a Lit carrying a value that canonical
// JSON cannot represent.
func Render(p *Program) (string, error) {
	r := &renderer{}
	for _, s := range p.Stmts {
		r.stmt(s, 0)
	}
	if r.err != nil {
		return "", r.err
	}
	return r.buf.String(), nil
}

// RenderExpr renders a single expression fragment, primarily for tests and
// diagnostics.
func RenderExpr(e Expr) (string, error) {
	r := &renderer{}
	r.expr(e, 0)
	if r.err != nil {
		return "", r.err
	}
	return r.buf.String(), nil
}

type renderer struct {
	buf strings.Builder
	err error
}

func (r *renderer) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf(format, args...)
	}
}

func (r *renderer) line(indent int, s string) {
	for i := 0; i < indent; i++ {
		r.buf.WriteString(indentUnit)
	}
	r.buf.WriteString(s)
	r.buf.WriteString("\n")
}

func (r *renderer) open(indent int, s string) {
	for i := 0; i < indent; i++ {
		r.buf.WriteString(indentUnit)
	}
	r.buf.WriteString(s)
}

func (r *renderer) stmt(s Stmt, indent int) {
	switch st := s.(type) {
	case ExprStmt:
		r.open(indent, "")
		r.expr(st.X, indent)
		r.buf.WriteString(";\n")
	case VarDecl:
		r.open(indent, "var "+st.Name+" = ")
		r.expr(st.Value, indent)
		r.buf.WriteString(";\n")
	case FuncDecl:
		r.line(indent, "function "+st.Name+"("+strings.Join(st.Params, ", ")+") {")
		r.block(st.Body, indent+1)
		r.line(indent, "}")
	case Assign:
		r.open(indent, "")
		r.expr(st.Target, indent)
		r.buf.WriteString(" = ")
		r.expr(st.Value, indent)
		r.buf.WriteString(";\n")
	case Return:
		if st.Value == nil {
			r.line(indent, "return;")
			return
		}
		r.open(indent, "return ")
		r.expr(st.Value, indent)
		r.buf.WriteString(";\n")
	case If:
		r.open(indent, "if (")
		r.expr(st.Cond, indent)
		r.buf.WriteString(") {\n")
		r.block(st.Then, indent+1)
		if len(st.Else) > 0 {
			r.line(indent, "} else {")
			r.block(st.Else, indent+1)
		}
		r.line(indent, "}")
	case Switch:
		r.open(indent, "switch (")
		r.expr(st.On, indent)
		r.buf.WriteString(") {\n")
		for _, c := range st.Cases {
			r.open(indent+1, "case ")
			r.expr(c.Match, indent+1)
			r.buf.WriteString(":\n")
			r.block(c.Body, indent+2)
		}
		r.line(indent, "}")
	case Try:
		r.line(indent, "try {")
		r.block(st.Body, indent+1)
		param := st.Param
		if param == "" {
			param = "e"
		}
		r.line(indent, "} catch ("+param+") {")
		r.block(st.Catch, indent+1)
		r.line(indent, "}")
	default:
		r.fail("unsupported statement type: %T", s)
	}
}

func (r *renderer) block(stmts []Stmt, indent int) {
	for _, s := range stmts {
		r.stmt(s, indent)
	}
}

func (r *renderer) expr(e Expr, indent int) {
	switch ex := e.(type) {
	case Lit:
		b, err := fndef.MarshalCanonical(ex.Value)
		if err != nil {
			r.fail("render literal: %v", err)
			return
		}
		r.buf.Write(b)
	case Ident:
		r.buf.WriteString(ex.Name)
	case Raw:
		r.buf.WriteString(ex.Text)
	case Member:
		r.expr(ex.Object, indent)
		if identSafe(ex.Property) {
			r.buf.WriteString("." + ex.Property)
			return
		}
		r.buf.WriteString("[")
		r.expr(Lit{Value: ex.Property}, indent)
		r.buf.WriteString("]")
	case Index:
		r.expr(ex.Object, indent)
		r.buf.WriteString("[")
		r.expr(ex.Key, indent)
		r.buf.WriteString("]")
	case Call:
		switch ex.Callee.(type) {
		case Func, Raw:
			r.buf.WriteString("(")
			r.expr(ex.Callee, indent)
			r.buf.WriteString(")")
		default:
			r.expr(ex.Callee, indent)
		}
		r.buf.WriteString("(")
		for i, a := range ex.Args {
			if i > 0 {
				r.buf.WriteString(", ")
			}
			r.expr(a, indent)
		}
		r.buf.WriteString(")")
	case New:
		r.buf.WriteString("new ")
		r.expr(ex.Callee, indent)
		r.buf.WriteString("(")
		for i, a := range ex.Args {
			if i > 0 {
				r.buf.WriteString(", ")
			}
			r.expr(a, indent)
		}
		r.buf.WriteString(")")
	case Unary:
		r.buf.WriteString(ex.Op + "(")
		r.expr(ex.Operand, indent)
		r.buf.WriteString(")")
	case Binary:
		r.buf.WriteString("(")
		r.expr(ex.Left, indent)
		r.buf.WriteString(" " + ex.Op + " ")
		r.expr(ex.Right, indent)
		r.buf.WriteString(")")
	case Ternary:
		r.buf.WriteString("(")
		r.expr(ex.Cond, indent)
		r.buf.WriteString(" ? ")
		r.expr(ex.Then, indent)
		r.buf.WriteString(" : ")
		r.expr(ex.Else, indent)
		r.buf.WriteString(")")
	case Object:
		if len(ex.Entries) == 0 {
			r.buf.WriteString("{}")
			return
		}
		r.buf.WriteString("{ ")
		for i, entry := range ex.Entries {
			if i > 0 {
				r.buf.WriteString(", ")
			}
			r.expr(Lit{Value: entry.Key}, indent)
			r.buf.WriteString(": ")
			r.expr(entry.Value, indent)
		}
		r.buf.WriteString(" }")
	case Array:
		r.buf.WriteString("[")
		for i, elem := range ex.Elems {
			if i > 0 {
				r.buf.WriteString(", ")
			}
			r.expr(elem, indent)
		}
		r.buf.WriteString("]")
	case Func:
		r.buf.WriteString("function (" + strings.Join(ex.Params, ", ") + ") {\n")
		r.block(ex.Body, indent+1)
		r.open(indent, "}")
	default:
		r.fail("unsupported expression type: %T", e)
	}
}

// identSafe reports whether a property name can be emitted with dot
// notation. Reserved words are rare in property position and valid there
// in modern engines, so only the character set is checked.
func identSafe(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_' || c == '$':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
