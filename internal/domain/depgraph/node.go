// Package depgraph defines the dependency graph used for team coordination:
// typed nodes and edges, cycle detection, critical-path analysis, and a
// priority-aware topological resolution order.
package depgraph

import "time"

// NodeKind identifies what a graph node represents.
type NodeKind string

const (
	KindTask      NodeKind = "task"
	KindResource  NodeKind = "resource"
	KindTeam      NodeKind = "team"
	KindKnowledge NodeKind = "knowledge"
)

// NodeStatus is the lifecycle state of a node.
type NodeStatus string

const (
	StatusAvailable NodeStatus = "available"
	StatusBusy      NodeStatus = "busy"
	StatusBlocked   NodeStatus = "blocked"
	StatusFailed    NodeStatus = "failed"
)

// EdgeKind classifies a dependency edge.
type EdgeKind string

const (
	EdgeHard      EdgeKind = "hard"
	EdgeSoft      EdgeKind = "soft"
	EdgeResource  EdgeKind = "resource"
	EdgeKnowledge EdgeKind = "knowledge"
	EdgeTemporal  EdgeKind = "temporal"
)

// Node is a single vertex in a dependency graph.
type Node struct {
	ID       string        `json:"id"`
	Kind     NodeKind      `json:"kind"`
	Name     string        `json:"name"`
	Status   NodeStatus    `json:"status"`
	Priority int           `json:"priority"`
	Estimate time.Duration `json:"estimate"`
}

// Edge is a directed dependency: To depends on From, so From must resolve
// before To. Only Blocking edges constrain scheduling order; non-blocking
// edges are hints.
type Edge struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	Kind      EdgeKind `json:"kind"`
	Weight    float64  `json:"weight"`
	Blocking  bool     `json:"blocking"`
	Condition string   `json:"condition,omitempty"`
}
