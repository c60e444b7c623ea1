// Package assemble generates the single self-contained browser script for
// a function definition.
//
// The assembler is a synchronous, single-pass generator: it classifies
// inputs, compiles templated values and filter trees into expression
// fragments, splices in the externally compiled body factory, and renders
// one program wrapped in a self-invoking closure. Generation is atomic:
// any sub-compiler failure aborts the pass and no partial text is
// returned. Compiling the same definition twice yields byte-identical
// output.
//
// The generated program's runtime contract:
//
//   - buildInputs(globals, initial) resolves static inputs verbatim and
//     templated inputs in ascending order through a switch guarded by
//     try/catch; failures log when initial is false and default to null
//     silently when initial is true. The function is pure with respect to
//     its parameters; there is no cross-call caching.
//   - The load hook runs once at injection time with initial=true.
//   - The per-event hook is gated by the top-level filter; a false filter
//     produces no observable work. Filter evaluation is deliberately NOT
//     wrapped in try/catch.
//   - Each enabled mapping runs in its own closure over a structural deep
//     copy of the top-level inputs; disabled mappings contribute zero
//     emitted code.
package assemble
