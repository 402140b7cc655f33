/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package serve

import "sort"

// Planner expands a set of changed namespaces into a full, ordered
// reload plan.
type Planner struct {
	Oracle DependencyOracle // nil means "analysis environment absent"
	Digest *DigestStore
}

// Plan computes the reload plan for changedNS, optionally force-including
// explicitAdditional. The memoization cache used for transitive-dependent
// lookups is constructed here and discarded on return — it never leaks
// across separate Plan invocations.
func (p *Planner) Plan(changedNS, explicitAdditional []string) []NS {
	effective := dedupOrdered(changedNS, explicitAdditional)

	if p.Oracle == nil {
		// Analysis environment absent: return input unchanged, no expansion.
		out := make([]NS, len(effective))
		for i, n := range effective {
			out[i] = NS{Name: n}
		}
		return out
	}

	cache := make(map[string][]string) // per-invocation memo, keyed by namespace name

	effectiveSet := toSet(effective)

	dependents := map[string]bool{}
	for _, n := range effective {
		for _, d := range p.transitiveDependents(n, cache) {
			dependents[d] = true
		}
	}

	additional := make([]string, 0, len(dependents))
	for d := range dependents {
		if !effectiveSet[d] {
			additional = append(additional, d)
		}
	}
	sort.Strings(additional) // map iteration order is random; keep the tie-break stable

	all := append(append([]string{}, effective...), additional...)
	allSet := toSet(all)

	var always []string
	for _, ns := range p.Oracle.AllNamespaces() {
		if ns.FigwheelAlways && !allSet[ns.Name] {
			always = append(always, ns.Name)
		}
	}

	universe := append(append([]string{}, all...), always...)

	metaFileChanged := make(map[string]bool, len(additional))
	if p.Digest != nil {
		for _, n := range additional {
			metaFileChanged[n] = p.Digest.Changed(p.Oracle.TargetFileFor(n))
		}
	}
	alwaysSet := toSet(always)

	ordered := topoSort(universe, cache, func(n string) []string {
		return p.transitiveDependents(n, cache)
	})

	out := make([]NS, len(ordered))
	for i, name := range ordered {
		out[i] = NS{
			Name:              name,
			FileChangedOnDisk: metaFileChanged[name],
			FigwheelAlways:    alwaysSet[name],
		}
	}
	return out
}

// transitiveDependents computes the set of namespaces that transitively
// depend on root, via an iterative worklist (no recursion), memoized in
// cache for the lifetime of one Plan invocation.
func (p *Planner) transitiveDependents(root string, cache map[string][]string) []string {
	if v, ok := cache[root]; ok {
		return v
	}

	var order []string
	visited := map[string]bool{}
	queued := map[string]bool{root: true}
	queue := []string{root}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, d := range p.Oracle.DirectDependents(n) {
			if !visited[d] {
				visited[d] = true
				order = append(order, d)
			}
			if !queued[d] {
				queued[d] = true
				queue = append(queue, d)
			}
		}
	}

	cache[root] = order
	return order
}

// topoSort orders universe so that if b is a transitive dependent of a,
// a precedes b. Ties (unrelated pairs) are broken by universe's original
// order, yielding a deterministic total order — a real topological sort,
// not the source's non-strict comparator.
func topoSort(universe []string, cache map[string][]string, transDeps func(string) []string) []string {
	inUniverse := toSet(universe)

	indegree := make(map[string]int, len(universe))
	adj := make(map[string][]string, len(universe))
	for _, n := range universe {
		indegree[n] = 0
	}
	for _, n := range universe {
		for _, d := range transDeps(n) {
			if inUniverse[d] {
				adj[n] = append(adj[n], d)
				indegree[d]++
			}
		}
	}

	remaining := toSet(universe)
	result := make([]string, 0, len(universe))

	for len(result) < len(universe) {
		picked := ""
		for _, n := range universe {
			if remaining[n] && indegree[n] == 0 {
				picked = n
				break
			}
		}
		if picked == "" {
			// Cycle among the remaining nodes: break the tie by emitting
			// the earliest-ordered remaining node so the sort still
			// terminates with a total order.
			for _, n := range universe {
				if remaining[n] {
					picked = n
					break
				}
			}
		}
		result = append(result, picked)
		delete(remaining, picked)
		for _, d := range adj[picked] {
			indegree[d]--
		}
	}

	return result
}

func dedupOrdered(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, i := range items {
		s[i] = true
	}
	return s
}
