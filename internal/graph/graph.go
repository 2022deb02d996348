// Package graph maintains the directed acyclic dependency graph between
// registered services: boot-stage layering, transitive health aggregation,
// and cycle-safe edge registration.
package graph

import (
	"sort"
	"sync"
)

// Graph is the dependency graph. One mutex serializes every mutation; reads
// take the shared lock only long enough to walk current adjacency.
type Graph struct {
	mu       sync.RWMutex
	vertices map[string]struct{}
	deps     map[string]map[string]struct{} // dependent -> its dependencies
	rdeps    map[string]map[string]struct{} // dependency -> its dependents
	probes   map[string]bool                // latest own-probe result
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		vertices: make(map[string]struct{}),
		deps:     make(map[string]map[string]struct{}),
		rdeps:    make(map[string]map[string]struct{}),
		probes:   make(map[string]bool),
	}
}

// AddVertex registers a service id with no edges.
func (g *Graph) AddVertex(id string) {
	g.mu.Lock()
	g.vertices[id] = struct{}{}
	g.mu.Unlock()
}

// AddEdge declares that dependent requires dependsOn. The edge is rejected
// and the graph left unchanged when it would close a cycle.
func (g *Graph) AddEdge(dependent, dependsOn string) error {
	if dependent == dependsOn {
		return ErrCycle(dependent, dependsOn)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	// Cycle iff dependent is already reachable from dependsOn along
	// dependency edges. Checked before any mutation.
	if g.reachable(dependsOn, dependent) {
		return ErrCycle(dependent, dependsOn)
	}
	g.vertices[dependent] = struct{}{}
	g.vertices[dependsOn] = struct{}{}
	if g.deps[dependent] == nil {
		g.deps[dependent] = make(map[string]struct{})
	}
	g.deps[dependent][dependsOn] = struct{}{}
	if g.rdeps[dependsOn] == nil {
		g.rdeps[dependsOn] = make(map[string]struct{})
	}
	g.rdeps[dependsOn][dependent] = struct{}{}
	return nil
}

// RemoveVertex drops a service and every edge touching it.
func (g *Graph) RemoveVertex(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.vertices, id)
	delete(g.probes, id)
	for dep := range g.deps[id] {
		delete(g.rdeps[dep], id)
	}
	delete(g.deps, id)
	for dependent := range g.rdeps[id] {
		delete(g.deps[dependent], id)
	}
	delete(g.rdeps, id)
}

// reachable reports whether to is reachable from from along dependency
// edges. Caller holds the lock.
func (g *Graph) reachable(from, to string) bool {
	if from == to {
		return true
	}
	seen := map[string]struct{}{from: {}}
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for next := range g.deps[cur] {
			if next == to {
				return true
			}
			if _, ok := seen[next]; !ok {
				seen[next] = struct{}{}
				stack = append(stack, next)
			}
		}
	}
	return false
}

// Has reports whether id is a registered vertex.
func (g *Graph) Has(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.vertices[id]
	return ok
}

// Dependencies returns the direct dependencies of id, sorted.
func (g *Graph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.deps[id])
}

// Vertices returns all registered ids, sorted.
func (g *Graph) Vertices() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.vertices)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
