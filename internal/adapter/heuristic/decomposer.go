// Package heuristic provides the local fallbacks used when the oracle is
// unreachable: a single-node decomposer and a table-driven strategy
// advisor, so the pipeline keeps moving with a degraded breakdown.
package heuristic

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kunho817/shattered-moon-mcp/internal/domain/depgraph"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/task"
	"github.com/kunho817/shattered-moon-mcp/internal/port/decomposer"
)

const (
	defaultEstimate = time.Hour
	maxNameLen      = 80
)

// Decomposer is the single-node fallback decomposer.
type Decomposer struct{}

var _ decomposer.Decomposer = (*Decomposer)(nil)

// New creates the fallback decomposer.
func New() *Decomposer {
	return &Decomposer{}
}

// Decompose wraps the whole objective in one task node. No edges, no
// parallelism: the degraded graph trades granularity for availability.
func (d *Decomposer) Decompose(_ context.Context, taskText, _ string) (*decomposer.Result, error) {
	objective := strings.TrimSpace(taskText)
	if objective == "" {
		return nil, fmt.Errorf("empty objective: %w", decomposer.ErrOracleUnavailable)
	}

	name := objective
	if len(name) > maxNameLen {
		// Back off to a rune boundary so the cut never splits a
		// multi-byte character.
		cut := maxNameLen
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}

	return &decomposer.Result{
		Nodes: []decomposer.NodeSpec{
			{
				Node: depgraph.Node{
					ID:       "objective",
					Kind:     depgraph.KindTask,
					Name:     name,
					Status:   depgraph.StatusAvailable,
					Priority: 5,
					Estimate: defaultEstimate,
				},
				Complexity:     task.ComplexityHigh,
				Atomicity:      1,
				Parallelizable: false,
			},
		},
	}, nil
}
