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

import "sync"

// DependencyOracle is the external interface to the compiler's
// dependency analysis. It is read-only from the Planner's
// perspective; results may change between calls.
type DependencyOracle interface {
	// DirectDependents returns the immediate reverse edges for ns.
	DirectDependents(ns string) []string
	// AllNamespaces returns every currently known namespace, with
	// metadata (FigwheelAlways) attached.
	AllNamespaces() []NS
	// TargetFileFor returns the emitted artifact path for ns.
	TargetFileFor(ns string) string
}

// MapOracle is an in-memory reference DependencyOracle, useful for
// tests and for running without an attached compiler toolchain. A real
// deployment backs DependencyOracle with the compiler's own analysis
// output instead.
type MapOracle struct {
	mu sync.RWMutex

	// dependents[a] = namespaces that directly depend on a.
	dependents map[string][]string
	always     map[string]bool
	targets    map[string]string
	order      []string // insertion order, for deterministic AllNamespaces
}

// NewMapOracle creates an empty oracle.
func NewMapOracle() *MapOracle {
	return &MapOracle{
		dependents: make(map[string][]string),
		always:     make(map[string]bool),
		targets:    make(map[string]string),
	}
}

// AddNamespace registers ns (idempotent), optionally marking it
// "always reload" and giving it a target artifact path.
func (o *MapOracle) AddNamespace(ns string, always bool, target string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.dependents[ns]; !ok {
		o.dependents[ns] = nil
		o.order = append(o.order, ns)
	}
	if always {
		o.always[ns] = true
	}
	if target != "" {
		o.targets[ns] = target
	}
}

// AddEdge records that "dependent" directly depends on "dependency"
// (i.e. dependency's direct dependents include dependent).
func (o *MapOracle) AddEdge(dependency, dependent string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.dependents[dependency]; !ok {
		o.order = append(o.order, dependency)
	}
	if _, ok := o.dependents[dependent]; !ok {
		o.dependents[dependent] = nil
		o.order = append(o.order, dependent)
	}
	o.dependents[dependency] = append(o.dependents[dependency], dependent)
}

func (o *MapOracle) DirectDependents(ns string) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, len(o.dependents[ns]))
	copy(out, o.dependents[ns])
	return out
}

func (o *MapOracle) AllNamespaces() []NS {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]NS, 0, len(o.order))
	for _, name := range o.order {
		out = append(out, NS{Name: name, FigwheelAlways: o.always[name]})
	}
	return out
}

func (o *MapOracle) TargetFileFor(ns string) string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if t, ok := o.targets[ns]; ok {
		return t
	}
	return ns
}
