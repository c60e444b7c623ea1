// Package jsir provides a small statement/expression tree for the generated
// browser script, plus the single textual backend that renders it.
//
// The runtime assembler builds a jsir.Program instead of concatenating
// strings, so scope nesting and accessor shadowing are structural
// invariants of the tree rather than accidents of interpolation order.
// Rendering is byte-deterministic: the same tree always renders to the
// same text.
//
// The node set is deliberately minimal: just enough JavaScript to express
// the generated program shape (closures, switch-based input resolution,
// try/catch isolation, short-circuit filters). It is not a general JS AST.
package jsir
