package depgraph

import "fmt"

// resolutionOrder computes a topological order over blocking edges with
// Kahn's algorithm. Instead of popping an arbitrary ready node, it always
// takes the highest-priority one, breaking ties by node insertion order,
// so the output is deterministic and respects node priorities. Returns
// ErrCycleDetected when the order would omit nodes. Callers must hold g.mu.
func (g *Graph) resolutionOrder() ([]string, error) {
	adj := g.blockingDependents()

	pos := make(map[string]int, len(g.order)) // insertion index, for tie-breaking
	inDegree := make(map[string]int, len(g.nodes))
	for i, id := range g.order {
		pos[id] = i
		inDegree[id] = 0
	}
	for i := range g.edges {
		if g.edges[i].Blocking {
			inDegree[g.edges[i].To]++
		}
	}

	var ready []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		// Highest priority wins; equal priorities resolve by insertion order.
		best := 0
		for i := 1; i < len(ready); i++ {
			a, b := g.nodes[ready[i]], g.nodes[ready[best]]
			if a.Priority > b.Priority ||
				(a.Priority == b.Priority && pos[ready[i]] < pos[ready[best]]) {
				best = i
			}
		}
		id := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		order = append(order, id)

		for _, next := range adj[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("resolution order covers %d of %d nodes: %w",
			len(order), len(g.nodes), ErrCycleDetected)
	}
	return order, nil
}
