package depgraph

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrDuplicateNode indicates an AddNode call reused an existing node ID.
	ErrDuplicateNode = errors.New("duplicate node id")
	// ErrDanglingEdge indicates an edge referencing a node not in the graph.
	ErrDanglingEdge = errors.New("edge references unknown node")
	// ErrCycleDetected indicates a circular dependency where an acyclic
	// result was required.
	ErrCycleDetected = errors.New("circular dependency detected")
	// ErrNodeNotFound indicates a lookup for an unknown node ID.
	ErrNodeNotFound = errors.New("node not found")
)

// Graph is a directed dependency graph with memoized derived views.
// All mutations are serialized by an internal mutex; derived fields
// (cycles, critical path, resolution order) are invalidated on mutation
// and recomputed lazily on first read, never returned stale.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	order []string // node IDs in insertion order, for deterministic iteration
	edges []Edge

	// adjacency kept mutually consistent with edges
	deps       map[string][]string // node -> IDs it depends on
	dependents map[string][]string // node -> IDs depending on it

	derived *derived // nil until first read after a mutation
}

// derived holds the memoized views recomputed together after a mutation.
type derived struct {
	cycles   [][]string
	topo     []string
	topoErr  error
	critical *CriticalPath
	critErr  error
}

// CriticalPath is the result of a CPM analysis over an acyclic graph.
type CriticalPath struct {
	Path           []string                 `json:"path"`
	Completion     time.Duration            `json:"completion"`
	EarliestStart  map[string]time.Duration `json:"earliest_start"`
	LatestStart    map[string]time.Duration `json:"latest_start"`
}

// New creates an empty dependency graph.
func New() *Graph {
	return &Graph{
		nodes:      make(map[string]*Node),
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
	}
}

// Build constructs a graph from node and edge slices. Node IDs must be
// unique and every edge endpoint must name a declared node. A cyclic
// input is accepted: cycles surface through Cycles and the conflict
// analyzer, not as a build failure.
func Build(nodes []Node, edges []Edge) (*Graph, error) {
	g := New()
	for i := range nodes {
		if err := g.AddNode(nodes[i]); err != nil {
			return nil, err
		}
	}
	for i := range edges {
		if err := g.AddEdge(edges[i]); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddNode registers a node. Status defaults to available when unset.
func (g *Graph) AddNode(n Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("node %s: %w", n.ID, ErrDuplicateNode)
	}
	if n.Status == "" {
		n.Status = StatusAvailable
	}
	node := n
	g.nodes[n.ID] = &node
	g.order = append(g.order, n.ID)
	g.invalidate()
	return nil
}

// AddEdge registers a directed dependency edge. Both endpoints must
// already be present in the graph.
func (g *Graph) AddEdge(e Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[e.From]; !ok {
		return fmt.Errorf("edge %s->%s: from: %w", e.From, e.To, ErrDanglingEdge)
	}
	if _, ok := g.nodes[e.To]; !ok {
		return fmt.Errorf("edge %s->%s: to: %w", e.From, e.To, ErrDanglingEdge)
	}
	g.edges = append(g.edges, e)
	g.deps[e.To] = append(g.deps[e.To], e.From)
	g.dependents[e.From] = append(g.dependents[e.From], e.To)
	g.invalidate()
	return nil
}

// Node returns a copy of the node with the given ID.
func (g *Graph) Node(id string) (Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return Node{}, fmt.Errorf("node %s: %w", id, ErrNodeNotFound)
	}
	return *n, nil
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.nodes[id])
	}
	return out
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Dependencies returns the IDs the given node depends on.
func (g *Graph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, len(g.deps[id]))
	copy(out, g.deps[id])
	return out
}

// Dependents returns the IDs that depend on the given node.
func (g *Graph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, len(g.dependents[id]))
	copy(out, g.dependents[id])
	return out
}

// SetNodeStatus updates a node's status. Derived views are invalidated
// because readiness-dependent analyses consume status.
func (g *Graph) SetNodeStatus(id string, status NodeStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("node %s: %w", id, ErrNodeNotFound)
	}
	n.Status = status
	g.invalidate()
	return nil
}

// SetNodeEstimate updates a node's estimated resolution time.
func (g *Graph) SetNodeEstimate(id string, estimate time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("node %s: %w", id, ErrNodeNotFound)
	}
	n.Estimate = estimate
	g.invalidate()
	return nil
}

// DemoteEdge downgrades the edge between from and to so it no longer
// constrains scheduling: its kind becomes soft and blocking is cleared.
// Used by cycle-breaking resolution.
func (g *Graph) DemoteEdge(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.edges {
		if g.edges[i].From == from && g.edges[i].To == to {
			g.edges[i].Kind = EdgeSoft
			g.edges[i].Blocking = false
			g.invalidate()
			return nil
		}
	}
	return fmt.Errorf("edge %s->%s: %w", from, to, ErrDanglingEdge)
}

// Cycles returns all disjoint cycles found by DFS. See detectCycles for
// the enumeration guarantee.
func (g *Graph) Cycles() [][]string {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := g.ensureDerived()
	out := make([][]string, len(d.cycles))
	for i, c := range d.cycles {
		cp := make([]string, len(c))
		copy(cp, c)
		out[i] = cp
	}
	return out
}

// ResolutionOrder returns a priority-aware topological order over blocking
// edges, or ErrCycleDetected when no complete order exists.
func (g *Graph) ResolutionOrder() ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := g.ensureDerived()
	if d.topoErr != nil {
		return nil, d.topoErr
	}
	out := make([]string, len(d.topo))
	copy(out, d.topo)
	return out, nil
}

// AnalyzeCriticalPath returns the CPM result for the graph, or
// ErrCycleDetected for cyclic graphs (CPM is undefined on cycles).
func (g *Graph) AnalyzeCriticalPath() (*CriticalPath, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := g.ensureDerived()
	if d.critErr != nil {
		return nil, d.critErr
	}
	return d.critical, nil
}

// invalidate drops the memoized derived views. Callers must hold g.mu.
func (g *Graph) invalidate() {
	g.derived = nil
}

// ensureDerived recomputes all derived views if stale. Callers must hold
// g.mu for writing: the memo is shared state.
func (g *Graph) ensureDerived() *derived {
	if g.derived != nil {
		return g.derived
	}

	d := &derived{}
	d.cycles = g.detectCycles()
	d.topo, d.topoErr = g.resolutionOrder()
	if len(d.cycles) > 0 {
		d.critErr = fmt.Errorf("critical path: %w", ErrCycleDetected)
	} else {
		d.critical = g.analyzeCriticalPath()
	}
	g.derived = d
	return d
}
