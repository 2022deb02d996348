package graph

import "sort"

// BootPlan performs topological layering (Kahn's algorithm): each stage
// holds every service whose dependencies are all satisfied by earlier
// stages. Stages are sorted for deterministic output. The edge set is
// acyclic by construction, so every vertex lands in some stage.
func (g *Graph) BootPlan() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	indeg := make(map[string]int, len(g.vertices))
	for v := range g.vertices {
		indeg[v] = len(g.deps[v])
	}

	var plan [][]string
	remaining := len(indeg)
	for remaining > 0 {
		var stage []string
		for v, d := range indeg {
			if d == 0 {
				stage = append(stage, v)
			}
		}
		sort.Strings(stage)
		for _, v := range stage {
			delete(indeg, v)
			for dependent := range g.rdeps[v] {
				if _, ok := indeg[dependent]; ok {
					indeg[dependent]--
				}
			}
		}
		remaining -= len(stage)
		plan = append(plan, stage)
	}
	return plan
}
