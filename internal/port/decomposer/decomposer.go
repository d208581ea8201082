// Package decomposer defines the port for the external task-decomposition
// oracle that turns free-text task descriptions into graph nodes and edges.
package decomposer

import (
	"context"
	"errors"
	"fmt"

	"github.com/kunho817/shattered-moon-mcp/internal/domain/depgraph"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/task"
)

// ErrOracleUnavailable indicates the decomposition oracle failed or timed
// out. Recovered locally via the single-node heuristic fallback; logged,
// never surfaced as a request failure.
var ErrOracleUnavailable = errors.New("decomposition oracle unavailable")

// NodeSpec is one node of a decomposition result, carrying the graph node
// plus the task scheduling attributes the oracle suggests.
type NodeSpec struct {
	depgraph.Node
	SuggestedTeam  string          `json:"suggested_team,omitempty"`
	Complexity     task.Complexity `json:"complexity,omitempty"`
	Atomicity      int             `json:"atomicity,omitempty"`
	Parallelizable bool            `json:"parallelizable"`
}

// Result is a decomposition oracle response.
type Result struct {
	Nodes []NodeSpec      `json:"nodes"`
	Edges []depgraph.Edge `json:"edges"`
}

// Validate rejects malformed oracle output: empty decompositions and
// edges referencing undeclared nodes. Malformed output is treated the
// same as oracle failure so callers fall back to the heuristic graph.
func (r *Result) Validate() error {
	if len(r.Nodes) == 0 {
		return fmt.Errorf("empty decomposition: %w", ErrOracleUnavailable)
	}
	ids := make(map[string]bool, len(r.Nodes))
	for i := range r.Nodes {
		if r.Nodes[i].ID == "" {
			return fmt.Errorf("node %d has no id: %w", i, ErrOracleUnavailable)
		}
		ids[r.Nodes[i].ID] = true
	}
	for i := range r.Edges {
		if !ids[r.Edges[i].From] || !ids[r.Edges[i].To] {
			return fmt.Errorf("edge %s->%s references undeclared node: %w",
				r.Edges[i].From, r.Edges[i].To, ErrOracleUnavailable)
		}
	}
	return nil
}

// Decomposer is the port interface for the task-decomposition oracle.
type Decomposer interface {
	// Decompose breaks a task description into graph nodes and edges.
	// Implementations may fail or time out; callers must tolerate both.
	Decompose(ctx context.Context, taskText, contextText string) (*Result, error)
}
