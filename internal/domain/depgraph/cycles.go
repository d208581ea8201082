package depgraph

// detectCycles runs a DFS with an explicit recursion stack over blocking
// edges and returns every disjoint cycle reachable from unvisited roots.
// Each cycle is reported as a closed walk: the first node repeats at the
// end ([A B A]). Overlapping cycles sharing visited nodes are not
// enumerated exhaustively; the first cycle found per DFS root wins.
// Known limitation, kept for deterministic and bounded behavior.
//
// Roots and neighbors are visited in insertion order so results are
// reproducible. Callers must hold g.mu.
func (g *Graph) detectCycles() [][]string {
	adj := g.blockingDependents()

	const (
		white = 0 // unvisited
		gray  = 1 // on the recursion stack
		black = 2 // fully explored
	)
	color := make(map[string]int, len(g.nodes))

	var cycles [][]string
	var stack []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)

		for _, next := range adj[id] {
			switch color[next] {
			case gray:
				// Back edge: the cycle is the stack slice from next onward.
				start := 0
				for i, s := range stack {
					if s == next {
						start = i
						break
					}
				}
				cycle := make([]string, 0, len(stack)-start+1)
				cycle = append(cycle, stack[start:]...)
				cycle = append(cycle, next)
				cycles = append(cycles, cycle)
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white {
			stack = stack[:0]
			if visit(id) {
				// The walk aborted mid-stack; recolor the abandoned
				// nodes so a later root does not mistake them for an
				// active walk and report a phantom back edge.
				for _, s := range stack {
					color[s] = black
				}
			}
		}
	}
	return cycles
}

// blockingDependents builds a from->to adjacency over blocking edges only,
// preserving edge insertion order. Callers must hold g.mu.
func (g *Graph) blockingDependents() map[string][]string {
	adj := make(map[string][]string, len(g.nodes))
	for i := range g.edges {
		if !g.edges[i].Blocking {
			continue
		}
		adj[g.edges[i].From] = append(adj[g.edges[i].From], g.edges[i].To)
	}
	return adj
}

// blockingDeps builds a to->from adjacency over blocking edges only.
// Callers must hold g.mu.
func (g *Graph) blockingDeps() map[string][]string {
	adj := make(map[string][]string, len(g.nodes))
	for i := range g.edges {
		if !g.edges[i].Blocking {
			continue
		}
		adj[g.edges[i].To] = append(adj[g.edges[i].To], g.edges[i].From)
	}
	return adj
}
