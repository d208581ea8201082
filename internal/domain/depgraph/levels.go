package depgraph

import "fmt"

// Levels computes the longest-path topological depth of every node over
// blocking edges: 0 for nodes with no dependencies, otherwise one more
// than the deepest dependency. Longest-path levels (not shortest)
// guarantee a dependency never lands in a later-or-equal level than its
// dependents. Returns ErrCycleDetected for cyclic graphs.
func (g *Graph) Levels() (map[string]int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := g.ensureDerived()
	if len(d.cycles) > 0 {
		return nil, fmt.Errorf("levels: %w", ErrCycleDetected)
	}

	deps := g.blockingDeps()
	levels := make(map[string]int, len(g.nodes))
	done := make(map[string]bool, len(g.nodes))

	var level func(id string) int
	level = func(id string) int {
		if done[id] {
			return levels[id]
		}
		lv := 0
		for _, dep := range deps[id] {
			if dl := level(dep) + 1; dl > lv {
				lv = dl
			}
		}
		levels[id] = lv
		done[id] = true
		return lv
	}
	for _, id := range g.order {
		level(id)
	}
	return levels, nil
}
