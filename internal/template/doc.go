// Package template classifies input values as static or templated and
// compiles templated values into expression fragments for the generated
// program.
//
// The template grammar is fixed and narrow: "{" opens an embedded
// expression, an expression is a dotted/indexed path rooted at a runtime
// global ({person.properties.name}, {event.properties["utm source"]},
// {inputs.greeting}), and "{{" escapes a literal brace. Compiled
// expressions read runtime state exclusively through the global-accessor
// indirection, so the same fragment can run in any lifecycle phase.
package template
