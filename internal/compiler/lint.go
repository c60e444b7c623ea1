package compiler

import (
	"fmt"
	"strings"

	"github.com/driftline/sitefn/internal/fndef"
	"github.com/driftline/sitefn/internal/template"
)

// LintWarning flags a suspicious but compilable construct in a definition.
//
// These are warnings, not errors, because the generated program tolerates
// all of them: an unknown or not-yet-resolved input reference reads as
// undefined at runtime, which an author may rely on deliberately.
type LintWarning struct {
	Path    []string `json:"path,omitempty"` // reference chain, e.g. ["a", "b", "a"]
	Message string   `json:"message"`
	Level   string   `json:"level"` // "warning" or "info"
}

// LintDefinition performs static reference analysis on templated inputs.
//
// Templated inputs may read earlier computed inputs through the "inputs"
// global, which makes declaration order semantic. The linter flags:
//   - references to input keys that are never declared
//   - forward references (reading an input that resolves later, so the
//     read observes undefined)
//   - reference cycles, found as strongly connected components of the
//     input dependency graph
//
// Mapping overrides are checked against the merged key set: an override
// reading a top-level input sees its fully resolved copy, so only
// references to sibling overrides can be forward references.
func LintDefinition(def *fndef.FunctionDefinition) []LintWarning {
	warnings := lintInputs(def.Inputs, nil, "inputs")
	for _, m := range def.Mappings {
		if m.Disabled {
			continue
		}
		scope := fmt.Sprintf("mappings.%s.inputs", m.Name)
		warnings = append(warnings, lintInputs(m.Inputs, def.Inputs, scope)...)
	}
	return warnings
}

// lintInputs checks one input map. base holds already-resolved keys from
// the enclosing scope (top-level inputs, for mapping overrides).
func lintInputs(inputs, base map[string]fndef.InputValue, scope string) []LintWarning {
	keys := fndef.OrderedInputKeys(inputs)
	position := make(map[string]int, len(keys))
	for i, k := range keys {
		position[k] = i
	}

	var warnings []LintWarning
	graph := make(dependencyGraph)
	for _, k := range keys {
		graph[k] = []string{}
		for _, ref := range inputRefs(inputs[k].Value) {
			refPos, local := position[ref]
			if !local {
				if _, inherited := base[ref]; inherited {
					continue
				}
				warnings = append(warnings, LintWarning{
					Path:    []string{k, ref},
					Message: fmt.Sprintf("%s.%s references undeclared input %q", scope, k, ref),
					Level:   "warning",
				})
				continue
			}
			graph[k] = append(graph[k], ref)
			if ref != k && refPos > position[k] {
				warnings = append(warnings, LintWarning{
					Path:    []string{k, ref},
					Message: fmt.Sprintf("%s.%s reads input %q which resolves later and is still undefined", scope, k, ref),
					Level:   "warning",
				})
			}
		}
	}

	// Detect strongly connected components (cycles)
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph, scope))
		}
	}

	return warnings
}

// inputRefs collects the input keys a value's embedded expressions read
// through the "inputs" global. Strings that fail to parse contribute
// nothing; the compiler proper reports those as errors.
func inputRefs(value any) []string {
	var refs []string
	collectInputRefs(value, &refs)
	return refs
}

func collectInputRefs(value any, refs *[]string) {
	switch v := value.(type) {
	case string:
		if !fndef.ContainsTemplate(v) {
			return
		}
		tpl, err := template.ParseTemplate(v)
		if err != nil {
			return
		}
		for _, seg := range tpl.Segments {
			if seg.Expr == nil || seg.Expr.Root != "inputs" {
				continue
			}
			if len(seg.Expr.Accessors) > 0 && !seg.Expr.Accessors[0].IsIndex {
				*refs = append(*refs, seg.Expr.Accessors[0].Field)
			}
		}
	case map[string]any:
		for _, elem := range v {
			collectInputRefs(elem, refs)
		}
	case []any:
		for _, elem := range v {
			collectInputRefs(elem, refs)
		}
	}
}

// dependencyGraph maps input key → input keys it reads.
type dependencyGraph map[string][]string

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of input keys.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	// Visit all nodes in a stable order so warning output is deterministic.
	for _, node := range sortedNodes(graph) {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func sortedNodes(graph dependencyGraph) []string {
	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	// insertion sort; graphs here are tiny
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j] < nodes[j-1]; j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
	return nodes
}

// cycleSCCToWarning converts an SCC to a cycle warning. For self-loops the
// path is [key, key]; for multi-node cycles it is one traversal of the
// component back to its start.
func cycleSCCToWarning(scc []string, graph dependencyGraph, scope string) LintWarning {
	if len(scc) == 1 {
		key := scc[0]
		return LintWarning{
			Path:    []string{key, key},
			Message: fmt.Sprintf("%s.%s references itself", scope, key),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return LintWarning{
		Path:    path,
		Message: fmt.Sprintf("%s: input reference cycle: %s", scope, strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC by following edges
// between members until the walk returns to its start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
