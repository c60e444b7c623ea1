// Package preflight evaluates filter trees directly against sample event
// documents, without generating or running any browser script.
//
// It exists so authors can check filter matching from the CLI before
// deploying a definition. The evaluator mirrors the comparison semantics of
// the generated program; where host-language coercions cannot be reproduced
// exactly (regular expression dialect, text conversion of composite
// values), it approximates and the scenario runner reports the condition
// that decided the outcome so mismatches are easy to trace.
package preflight
