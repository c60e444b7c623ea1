package jsir

// Expr is a JavaScript expression node. The interface is sealed: only the
// node types in this package implement it.
type Expr interface {
	isExpr()
}

// Lit is a literal value rendered as canonical JSON. Supported Go types:
// nil, string, bool, int, int64, float64, []any, map[string]any.
type Lit struct {
	Value any
}

// Ident is a bare identifier reference.
type Ident struct {
	Name string
}

// Raw is an opaque spliced fragment, used for the externally compiled body
// factory. The renderer never inspects it.
type Raw struct {
	Text string
}

// Member is property access obj.prop, falling back to obj["prop"] when the
// property is not a safe identifier.
type Member struct {
	Object   Expr
	Property string
}

// Index is computed access obj[key].
type Index struct {
	Object Expr
	Key    Expr
}

// Call invokes a callee. Function-expression and raw callees are wrapped
// in parentheses so immediately-invoked closures render correctly.
type Call struct {
	Callee Expr
	Args   []Expr
}

// Unary applies a prefix operator. The operand is always parenthesized.
type Unary struct {
	Op      string
	Operand Expr
}

// Binary applies an infix operator. Rendered fully parenthesized so the
// backend needs no precedence table.
type Binary struct {
	Op          string
	Left, Right Expr
}

// Ternary is the conditional expression cond ? then : else.
type Ternary struct {
	Cond, Then, Else Expr
}

// New is constructor invocation, e.g. new RegExp("^/docs/").
type New struct {
	Callee Expr
	Args   []Expr
}

// Entry is one ordered key/value pair of an object literal.
type Entry struct {
	Key   string
	Value Expr
}

// Object is an object literal with explicit entry order.
type Object struct {
	Entries []Entry
}

// Array is an array literal.
type Array struct {
	Elems []Expr
}

// Func is an anonymous function expression.
type Func struct {
	Params []string
	Body   []Stmt
}

func (Lit) isExpr()     {}
func (Ident) isExpr()   {}
func (Raw) isExpr()     {}
func (Member) isExpr()  {}
func (Index) isExpr()   {}
func (Call) isExpr()    {}
func (New) isExpr()     {}
func (Unary) isExpr()   {}
func (Binary) isExpr()  {}
func (Ternary) isExpr() {}
func (Object) isExpr()  {}
func (Array) isExpr()   {}
func (Func) isExpr()    {}

// Stmt is a JavaScript statement node.
type Stmt interface {
	isStmt()
}

// ExprStmt evaluates an expression for its side effect.
type ExprStmt struct {
	X Expr
}

// VarDecl declares and initializes a var-scoped variable.
type VarDecl struct {
	Name  string
	Value Expr
}

// FuncDecl declares a named function.
type FuncDecl struct {
	Name   string
	Params []string
	Body   []Stmt
}

// Assign writes a value to an assignable target (Ident, Member, Index).
type Assign struct {
	Target Expr
	Value  Expr
}

// Return exits the enclosing function; Value may be nil for a bare return.
type Return struct {
	Value Expr
}

// If branches on a condition; Else may be empty.
type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// Case is one arm of a Switch.
type Case struct {
	Match Expr
	Body  []Stmt
}

// Switch dispatches on a value. No default arm: generated switches are
// always followed by a fallback statement instead.
type Switch struct {
	On    Expr
	Cases []Case
}

// Try wraps statements in try/catch.
type Try struct {
	Body  []Stmt
	Param string
	Catch []Stmt
}

func (ExprStmt) isStmt() {}
func (VarDecl) isStmt()  {}
func (FuncDecl) isStmt() {}
func (Assign) isStmt()   {}
func (Return) isStmt()   {}
func (If) isStmt()       {}
func (Switch) isStmt()   {}
func (Try) isStmt()      {}

// Program is a sequence of top-level statements.
type Program struct {
	Stmts []Stmt
}

// IIFE builds an immediately-invoked function expression. Used for the
// whole-program wrapper and for per-mapping isolation blocks.
func IIFE(params []string, body []Stmt, args ...Expr) Call {
	return Call{Callee: Func{Params: params, Body: body}, Args: args}
}

// GetGlobal builds the global-accessor call __getGlobal("<name>"), the
// single indirection every compiled expression resolves runtime state
// through.
func GetGlobal(name string) Expr {
	return Call{Callee: Ident{Name: GlobalAccessor}, Args: []Expr{Lit{Value: name}}}
}

// Well-known identifiers in the generated program. The assembler emits the
// helper definitions; compiled fragments reference them by name.
const (
	// GlobalAccessor is the accessor indirection. Each lifecycle phase of
	// the generated program shadows it locally with a closure over that
	// phase's live globals.
	GlobalAccessor = "__getGlobal"
	// HelperText coerces a value to string, mapping null/undefined to "".
	HelperText = "__txt"
	// HelperClone structurally deep-copies a value.
	HelperClone = "__clone"
)
