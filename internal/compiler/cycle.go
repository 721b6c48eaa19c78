package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// CycleWarning represents a loop in the supertype chain of model classes.
//
// Unlike most validation findings a cycle is always fatal: field
// inheritance and instanceOf checks walk the chain and would never
// terminate.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["org.acme.A", "org.acme.B", "org.acme.A"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // Always "error"
}

// AnalyzeInheritance performs static cycle analysis on class supertypes.
//
// The algorithm:
//  1. Build class → supertype graph from the declarations
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle
//
// An acyclic hierarchy returns an empty list. Results are ordered by the
// first class of each cycle so output is deterministic.
func AnalyzeInheritance(classes []ir.ClassDeclaration) []CycleWarning {
	if len(classes) == 0 {
		return []CycleWarning{}
	}

	graph := buildInheritanceGraph(classes)
	sccs := tarjanSCC(graph)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			slices.Sort(scc)
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// dependencyGraph maps class → classes it depends on.
type dependencyGraph map[string][]string

// buildInheritanceGraph adds an edge from each class to its supertype.
// Undeclared supertypes are left out; they are reported elsewhere.
func buildInheritanceGraph(classes []ir.ClassDeclaration) dependencyGraph {
	graph := make(dependencyGraph)
	declared := make(map[string]bool, len(classes))
	for _, c := range classes {
		declared[c.FullyQualifiedName()] = true
	}
	for _, c := range classes {
		fqn := c.FullyQualifiedName()
		if graph[fqn] == nil {
			graph[fqn] = []string{}
		}
		if c.SuperType != "" && declared[c.SuperType] {
			graph[fqn] = append(graph[fqn], c.SuperType)
		}
	}
	return graph
}

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
// Returns a list of SCCs, where each SCC is a list of class names.
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
		// Set the depth index for v
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		// Consider successors of v
		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				// Successor w has not yet been visited; recurse on it
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				// Successor w is on stack and hence in the current SCC
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

	// Visit all nodes in sorted order for stable SCC membership order
	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
//
// The path shows the cycle sequence by reconstructing a path through the SCC.
// For self-loops, the path is [class, class].
// For multi-node cycles, the path shows a cycle traversal.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		// Self-loop
		fqn := scc[0]
		return CycleWarning{
			Path:    []string{fqn, fqn},
			Message: fmt.Sprintf("class %s extends itself", fqn),
			Level:   "error",
		}
	}

	// Multi-node cycle - reconstruct a cycle path
	path := reconstructCyclePath(scc, graph)

	pathStr := strings.Join(path, " → ")
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("inheritance cycle: %s", pathStr),
		Level:   "error",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: Start at first node in SCC, follow edges to other SCC members,
// continue until we return to start node.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	// Build set of SCC members for fast lookup
	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	// Start at first node
	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	// Follow edges within SCC until we return to start
	for {
		visited[current] = true

		// Find next SCC member reachable from current
		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			// No more unvisited neighbors in SCC
			break
		}

		path = append(path, next)

		if next == start {
			// Completed the cycle
			break
		}

		current = next
	}

	return path
}
