// Package service implements coordination logic on top of ports.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	otelad "github.com/kunho817/shattered-moon-mcp/internal/adapter/otel"
	"github.com/kunho817/shattered-moon-mcp/internal/adapter/ws"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/conflict"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/depgraph"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/task"
	"github.com/kunho817/shattered-moon-mcp/internal/port/auditlog"
	"github.com/kunho817/shattered-moon-mcp/internal/port/broadcast"
	"github.com/kunho817/shattered-moon-mcp/internal/port/decomposer"
	"github.com/kunho817/shattered-moon-mcp/internal/port/messagequeue"
)

// ErrGraphNotFound is returned when a graph ID is not registered.
var ErrGraphNotFound = errors.New("graph not found")

// GraphRecord holds a registered dependency graph with its task breakdown
// and the latest analysis results.
type GraphRecord struct {
	ID         string                `json:"id"`
	Graph      *depgraph.Graph       `json:"-"`
	Tasks      map[string]*task.Task `json:"tasks"`
	Conflicts  []conflict.Conflict   `json:"conflicts,omitempty"`
	Strategies []conflict.Strategy   `json:"strategies,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// CreateGraphRequest describes a graph to build: either an explicit
// node/edge list, or a free-text objective handed to the decomposition
// oracle.
type CreateGraphRequest struct {
	Objective string                `json:"objective,omitempty"`
	Context   string                `json:"context,omitempty"`
	Nodes     []decomposer.NodeSpec `json:"nodes,omitempty"`
	Edges     []depgraph.Edge       `json:"edges,omitempty"`
}

// CoordinatorService manages dependency graphs: creation, conflict
// analysis, and conflict resolution.
type CoordinatorService struct {
	oracle   decomposer.Decomposer
	fallback decomposer.Decomposer
	resolver *conflict.Resolver
	queue    messagequeue.Queue
	hub      broadcast.Broadcaster
	audit    auditlog.Log
	metrics  *otelad.Metrics

	mu     sync.RWMutex
	graphs map[string]*GraphRecord
}

// NewCoordinatorService creates a CoordinatorService. oracle may be nil
// when no decomposition backend is configured; fallback is used whenever
// the oracle fails.
func NewCoordinatorService(oracle, fallback decomposer.Decomposer, resolver *conflict.Resolver, queue messagequeue.Queue, hub broadcast.Broadcaster, audit auditlog.Log) *CoordinatorService {
	return &CoordinatorService{
		oracle:   oracle,
		fallback: fallback,
		resolver: resolver,
		queue:    queue,
		hub:      hub,
		audit:    audit,
		graphs:   make(map[string]*GraphRecord),
	}
}

// SetMetrics attaches metric instruments. A nil receiver field means
// instrumentation is disabled.
func (s *CoordinatorService) SetMetrics(m *otelad.Metrics) {
	s.metrics = m
}

// CreateGraph builds and registers a dependency graph. Cyclic input is
// accepted: cycles surface later as circular conflicts rather than
// failing creation. Structural errors (duplicate nodes, dangling edges)
// are returned to the caller.
func (s *CoordinatorService) CreateGraph(ctx context.Context, req CreateGraphRequest) (*GraphRecord, error) {
	specs := req.Nodes
	edges := req.Edges

	if len(specs) == 0 {
		result, err := s.decompose(ctx, req.Objective, req.Context)
		if err != nil {
			return nil, err
		}
		specs = result.Nodes
		edges = result.Edges
	}

	nodes := make([]depgraph.Node, len(specs))
	for i := range specs {
		nodes[i] = specs[i].Node
	}

	g, err := depgraph.Build(nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	now := time.Now()
	rec := &GraphRecord{
		ID:        uuid.NewString(),
		Graph:     g,
		Tasks:     tasksFromSpecs(specs, g, now),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.graphs[rec.ID] = rec
	s.mu.Unlock()

	cyclic := len(g.Cycles()) > 0
	s.publish(ctx, messagequeue.SubjectGraphCreated, messagequeue.GraphCreatedPayload{
		GraphID:   rec.ID,
		NodeCount: g.Len(),
		EdgeCount: len(g.Edges()),
		Cyclic:    cyclic,
	})

	if s.metrics != nil {
		s.metrics.GraphsCreated.Add(ctx, 1)
	}

	slog.Info("graph created",
		"graph_id", rec.ID, "nodes", g.Len(), "edges", len(g.Edges()), "cyclic", cyclic)
	return rec, nil
}

// decompose asks the oracle for a breakdown, falling back to the
// heuristic decomposer when the oracle fails or returns garbage.
func (s *CoordinatorService) decompose(ctx context.Context, objective, contextText string) (*decomposer.Result, error) {
	if objective == "" {
		return nil, errors.New("objective or explicit nodes required")
	}

	if s.oracle != nil {
		result, err := s.oracle.Decompose(ctx, objective, contextText)
		if err == nil {
			err = result.Validate()
		}
		if err == nil {
			return result, nil
		}
		slog.Warn("oracle decomposition failed, using fallback", "error", err)
	}

	if s.fallback == nil {
		return nil, decomposer.ErrOracleUnavailable
	}
	result, err := s.fallback.Decompose(ctx, objective, contextText)
	if err != nil {
		return nil, fmt.Errorf("fallback decomposition: %w", err)
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("fallback decomposition: %w", err)
	}
	return result, nil
}

// Graph returns a registered graph record.
func (s *CoordinatorService) Graph(id string) (*GraphRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.graphs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, id)
	}
	return rec, nil
}

// ListGraphs returns all registered graphs ordered by creation time.
func (s *CoordinatorService) ListGraphs() []*GraphRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*GraphRecord, 0, len(s.graphs))
	for _, rec := range s.graphs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// AnalyzeConflicts runs conflict analysis on a graph. Analyzing an
// unmodified graph twice yields identical conflicts.
func (s *CoordinatorService) AnalyzeConflicts(ctx context.Context, graphID string) ([]conflict.Conflict, error) {
	rec, err := s.Graph(graphID)
	if err != nil {
		return nil, err
	}

	conflicts := conflict.Analyze(rec.Graph)

	s.mu.Lock()
	rec.Conflicts = conflicts
	rec.UpdatedAt = time.Now()
	s.mu.Unlock()

	for i := range conflicts {
		c := &conflicts[i]
		s.publish(ctx, messagequeue.SubjectConflictFound, messagequeue.ConflictFoundPayload{
			GraphID:    graphID,
			ConflictID: c.ID,
			Kind:       string(c.Kind),
			Severity:   string(c.Severity),
			Nodes:      c.AffectedNodes,
		})
		s.broadcastEvent(ctx, ws.EventConflictFound, ws.ConflictFoundEvent{
			GraphID:    graphID,
			ConflictID: c.ID,
			Kind:       string(c.Kind),
			Severity:   string(c.Severity),
			Nodes:      c.AffectedNodes,
		})
	}

	if s.metrics != nil {
		s.metrics.ConflictsDetected.Add(ctx, int64(len(conflicts)))
	}

	slog.Info("conflicts analyzed", "graph_id", graphID, "count", len(conflicts))
	return conflicts, nil
}

// ResolveConflicts generates resolution strategies for the graph's
// conflicts and applies the auto-resolvable low-risk ones. Every
// generated strategy is appended to the audit log.
func (s *CoordinatorService) ResolveConflicts(ctx context.Context, graphID string) ([]conflict.Strategy, error) {
	rec, err := s.Graph(graphID)
	if err != nil {
		return nil, err
	}

	conflicts := conflict.Analyze(rec.Graph)
	ctx, span := otelad.StartResolutionSpan(ctx, graphID, len(conflicts))
	defer span.End()

	strategies, err := s.resolver.Resolve(ctx, rec.Graph, conflicts)
	if err != nil {
		return nil, fmt.Errorf("resolve conflicts: %w", err)
	}

	s.mu.Lock()
	rec.Conflicts = conflict.Analyze(rec.Graph) // re-analyze after mutation
	rec.Strategies = append(rec.Strategies, strategies...)
	rec.UpdatedAt = time.Now()
	s.mu.Unlock()

	applied := 0
	for i := range strategies {
		st := &strategies[i]
		if err := s.appendAudit(ctx, graphID, st); err != nil {
			slog.Error("audit append failed", "graph_id", graphID, "strategy_id", st.ID, "error", err)
		}
		subject := messagequeue.SubjectStrategyRecorded
		if st.Applied {
			subject = messagequeue.SubjectStrategyApplied
			applied++
		}
		s.publish(ctx, subject, messagequeue.StrategyPayload{
			GraphID:     graphID,
			StrategyID:  st.ID,
			ConflictID:  st.ConflictID,
			Type:        string(st.Type),
			RiskLevel:   string(st.RiskLevel),
			Applied:     st.Applied,
			Probability: st.SuccessProbability,
		})
	}

	if applied > 0 {
		s.publish(ctx, messagequeue.SubjectGraphUpdated, messagequeue.GraphUpdatedPayload{
			GraphID: graphID,
			Reason:  fmt.Sprintf("%d strategies applied", applied),
		})
	}
	if s.metrics != nil {
		s.metrics.StrategiesApplied.Add(ctx, int64(applied))
	}

	slog.Info("conflicts resolved",
		"graph_id", graphID, "strategies", len(strategies), "applied", applied)
	return strategies, nil
}

// StrategyHistory returns the most recent audit entries for a graph.
func (s *CoordinatorService) StrategyHistory(ctx context.Context, graphID string, limit int) ([]auditlog.Entry, error) {
	if _, err := s.Graph(graphID); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.Recent(ctx, graphID, limit)
}

func (s *CoordinatorService) appendAudit(ctx context.Context, graphID string, st *conflict.Strategy) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Append(ctx, auditlog.Entry{
		ID:         uuid.NewString(),
		GraphID:    graphID,
		ConflictID: st.ConflictID,
		Strategy:   *st,
		Applied:    st.Applied,
		CreatedAt:  time.Now(),
	})
}

func (s *CoordinatorService) publish(ctx context.Context, subject string, payload any) {
	publishJSON(ctx, s.queue, subject, payload)
}

func (s *CoordinatorService) broadcastEvent(ctx context.Context, eventType string, payload any) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastEvent(ctx, eventType, payload)
}

// tasksFromSpecs builds the task breakdown from decomposition specs.
// Only task-kind nodes become schedulable tasks; dependencies come from
// the graph's blocking edges.
func tasksFromSpecs(specs []decomposer.NodeSpec, g *depgraph.Graph, now time.Time) map[string]*task.Task {
	tasks := make(map[string]*task.Task)
	for i := range specs {
		spec := &specs[i]
		if spec.Kind != depgraph.KindTask {
			continue
		}
		tasks[spec.ID] = &task.Task{
			ID:             spec.ID,
			Title:          spec.Name,
			SuggestedTeam:  spec.SuggestedTeam,
			Status:         task.StatusPending,
			Priority:       spec.Priority,
			Complexity:     spec.Complexity,
			Atomicity:      spec.Atomicity,
			Parallelizable: spec.Parallelizable,
			Estimate:       spec.Estimate,
			DependsOn:      g.Dependencies(spec.ID),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}
	return tasks
}
