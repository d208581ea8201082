package depgraph

import (
	"sort"
	"time"
)

// slackEpsilon absorbs rounding noise when comparing earliest and latest
// start times. A node is critical when its slack is below this tolerance.
const slackEpsilon = time.Millisecond

// analyzeCriticalPath runs the Critical Path Method over blocking edges.
// The forward pass memoizes earliest starts (the naive recursion is
// exponential on diamond-shaped graphs), the backward pass computes latest
// starts from the project completion time, and the path is reconstructed
// by chaining zero-slack nodes in dependency order. The graph must be
// acyclic; callers check cycles first. Callers must hold g.mu.
func (g *Graph) analyzeCriticalPath() *CriticalPath {
	deps := g.blockingDeps()
	dependents := g.blockingDependents()

	earliest := make(map[string]time.Duration, len(g.nodes))
	var forward func(id string) time.Duration
	forward = func(id string) time.Duration {
		if es, ok := earliest[id]; ok {
			return es
		}
		var es time.Duration
		for _, dep := range deps[id] {
			finish := forward(dep) + g.nodes[dep].Estimate
			if finish > es {
				es = finish
			}
		}
		earliest[id] = es
		return es
	}

	var completion time.Duration
	for _, id := range g.order {
		if finish := forward(id) + g.nodes[id].Estimate; finish > completion {
			completion = finish
		}
	}

	latest := make(map[string]time.Duration, len(g.nodes))
	var backward func(id string) time.Duration
	backward = func(id string) time.Duration {
		if ls, ok := latest[id]; ok {
			return ls
		}
		// Latest finish is bounded by the latest start of every dependent;
		// sinks may finish at project completion.
		lf := completion
		for _, dep := range dependents[id] {
			if ls := backward(dep); ls < lf {
				lf = ls
			}
		}
		ls := lf - g.nodes[id].Estimate
		latest[id] = ls
		return ls
	}
	for _, id := range g.order {
		backward(id)
	}

	return &CriticalPath{
		Path:          g.reconstructPath(earliest, latest),
		Completion:    completion,
		EarliestStart: earliest,
		LatestStart:   latest,
	}
}

// reconstructPath orders the zero-slack nodes by earliest start, keeping
// insertion order among simultaneous critical nodes. Callers must hold g.mu.
func (g *Graph) reconstructPath(earliest, latest map[string]time.Duration) []string {
	var path []string
	for _, id := range g.order {
		slack := latest[id] - earliest[id]
		if slack < 0 {
			slack = -slack
		}
		if slack < slackEpsilon {
			path = append(path, id)
		}
	}
	sort.SliceStable(path, func(i, j int) bool {
		return earliest[path[i]] < earliest[path[j]]
	})
	return path
}
