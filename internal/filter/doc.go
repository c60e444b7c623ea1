// Package filter compiles filter trees into boolean expression fragments
// for the generated program.
//
// Filter fragments use the same global-accessor convention as compiled
// templates, so filter code and input code share one runtime globals
// object. Unlike input resolution, filter evaluation in the generated
// program is NOT wrapped in try/catch: a throwing filter propagates out of
// the per-event hook. That asymmetry is intentional and load-bearing.
package filter
