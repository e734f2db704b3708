package compiler

import (
	"fmt"
	"slices"
	"strings"
)

// QueryCycle is a set of queries that reach themselves through query
// sources. A cycle can never be expanded into a finite chain.
type QueryCycle struct {
	Path []string `json:"path"` // ["a", "b", "a"]
}

func (c QueryCycle) String() string {
	return strings.Join(c.Path, " -> ")
}

// referenceGraph maps a query name to the queries it reads from.
type referenceGraph map[string][]string

// findCycles reports every strongly connected component of graph that
// is a cycle: more than one query, or one query reading itself.
//
// Components are reported in a deterministic order, each path starting
// at its smallest member.
func findCycles(graph referenceGraph) []QueryCycle {
	var cycles []QueryCycle
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			slices.Sort(scc)
			cycles = append(cycles, QueryCycle{Path: reconstructCyclePath(scc, graph)})
		}
	}
	slices.SortFunc(cycles, func(a, b QueryCycle) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return cycles
}

func hasSelfLoop(node string, graph referenceGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(graph referenceGraph) [][]string {
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

// reconstructCyclePath walks from the first member of scc along edges
// inside the component until it returns to the start.
func reconstructCyclePath(scc []string, graph referenceGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		next := ""
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			// Dead end inside the component; close the loop explicitly.
			return append(path, start)
		}
		path = append(path, next)
		if next == start {
			return path
		}
		current = next
	}
}

func cycleError(c QueryCycle) *CompileError {
	return &CompileError{
		Field:   "query." + c.Path[0],
		Message: fmt.Sprintf("query cycle: %s", c),
	}
}
