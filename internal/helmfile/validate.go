package helmfile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iacgraph/iacgraph/internal/diagnostic"
)

// Validate checks every release's `needs` entries against the set of
// defined releases and detects dependency cycles (§4.10). resolveNeed
// resolves a `needs` entry against either a bare release name or a
// `namespace/name` pair, per the §3.7 invariant.
func Validate(hf *Helmfile) []diagnostic.Diagnostic {
	var diags []diagnostic.Diagnostic

	byName := map[string]*Release{}
	byNamespacedName := map[string]*Release{}
	for _, r := range hf.Releases {
		byName[r.Name] = r
		byNamespacedName[r.Namespace+"/"+r.Name] = r
	}

	edges := map[string][]string{}
	for _, r := range hf.Releases {
		for _, need := range r.Needs {
			target, ok := resolveNeed(need, byName, byNamespacedName)
			if !ok {
				diags = append(diags, diagnostic.Diagnostic{
					Code:     diagnostic.CodeUnknownDependency,
					Message:  fmt.Sprintf("release %q needs undefined release %q", r.Name, need),
					Severity: diagnostic.SeverityError,
					Location: &diagnostic.Location{File: hf.FilePath, LineStart: r.LineNumber, LineEnd: r.LineNumber},
				})
				continue
			}
			edges[r.Name] = append(edges[r.Name], target.Name)
		}
	}

	for _, cycle := range detectCycles(releaseNames(hf.Releases), edges) {
		diags = append(diags, diagnostic.Diagnostic{
			Code:     diagnostic.CodeCircularDependency,
			Message:  fmt.Sprintf("circular dependency: %s", strings.Join(cycle, " -> ")),
			Severity: diagnostic.SeverityError,
			Location: &diagnostic.Location{File: hf.FilePath},
		})
	}

	return diags
}

func resolveNeed(need string, byName, byNamespacedName map[string]*Release) (*Release, bool) {
	if r, ok := byNamespacedName[need]; ok {
		return r, true
	}
	if r, ok := byName[need]; ok {
		return r, true
	}
	return nil, false
}

func releaseNames(releases []*Release) []string {
	names := make([]string, 0, len(releases))
	for _, r := range releases {
		names = append(names, r.Name)
	}
	return names
}

// detectCycles runs a DFS with a `visiting` recursion-stack set over edges,
// recording the full cycle path whenever a node still in `visiting` is
// reached again (adapted from the dependency graph's DFS cycle detector).
func detectCycles(nodes []string, edges map[string][]string) [][]string {
	var cycles [][]string
	visited := map[string]bool{}
	visiting := map[string]bool{}
	var path []string

	var dfs func(node string)
	dfs = func(node string) {
		visited[node] = true
		visiting[node] = true
		path = append(path, node)

		for _, neighbor := range edges[node] {
			if !visited[neighbor] {
				dfs(neighbor)
				continue
			}
			if visiting[neighbor] {
				cycleStart := -1
				for i, n := range path {
					if n == neighbor {
						cycleStart = i
						break
					}
				}
				if cycleStart >= 0 {
					cycle := append([]string{}, path[cycleStart:]...)
					cycle = append(cycle, neighbor)
					cycles = append(cycles, cycle)
				}
			}
		}

		path = path[:len(path)-1]
		visiting[node] = false
	}

	sortedNodes := append([]string(nil), nodes...)
	sort.Strings(sortedNodes)
	for _, n := range sortedNodes {
		if !visited[n] {
			dfs(n)
		}
	}

	return cycles
}

// TopologicalOrder returns release names in DFS post-order over `needs`
// (dependencies before dependents), per §4.10's topological-order utility.
func TopologicalOrder(hf *Helmfile) []string {
	byName := map[string]*Release{}
	byNamespacedName := map[string]*Release{}
	for _, r := range hf.Releases {
		byName[r.Name] = r
		byNamespacedName[r.Namespace+"/"+r.Name] = r
	}

	visited := map[string]bool{}
	var order []string

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		r, ok := byName[name]
		if !ok {
			return
		}
		needs := append([]string(nil), r.Needs...)
		sort.Strings(needs)
		for _, need := range needs {
			if target, ok := resolveNeed(need, byName, byNamespacedName); ok {
				visit(target.Name)
			}
		}
		order = append(order, name)
	}

	names := releaseNames(hf.Releases)
	sort.Strings(names)
	for _, n := range names {
		visit(n)
	}

	return order
}
