package graph

import "sort"

// SetProbe records the latest own-probe result for a service.
func (g *Graph) SetProbe(id string, ok bool) {
	g.mu.Lock()
	g.probes[id] = ok
	g.mu.Unlock()
}

// IsHealthy reports whether id's own probe passes AND every dependency is
// itself recursively healthy. Dependency failure propagates upward even when
// the dependent's own probe still passes. An unprobed service is unhealthy.
func (g *Graph) IsHealthy(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.healthy(id, make(map[string]bool))
}

// healthy memoizes per-call; the graph is acyclic so recursion terminates.
// Caller holds the lock.
func (g *Graph) healthy(id string, memo map[string]bool) bool {
	if v, ok := memo[id]; ok {
		return v
	}
	if !g.probes[id] {
		memo[id] = false
		return false
	}
	for dep := range g.deps[id] {
		if !g.healthy(dep, memo) {
			memo[id] = false
			return false
		}
	}
	memo[id] = true
	return true
}

// BlockedDependents returns the services that must not be (re)started while
// id is unhealthy: its transitive dependents, sorted.
func (g *Graph) BlockedDependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := make(map[string]struct{})
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for dependent := range g.rdeps[cur] {
			if _, ok := seen[dependent]; !ok {
				seen[dependent] = struct{}{}
				stack = append(stack, dependent)
			}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
