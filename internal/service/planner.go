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

	"github.com/kunho817/shattered-moon-mcp/internal/domain/conflict"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/schedule"
	"github.com/kunho817/shattered-moon-mcp/internal/port/messagequeue"
)

// ErrPlanNotFound is returned when a plan ID is not registered.
var ErrPlanNotFound = errors.New("plan not found")

// GraphSource resolves graph records for planning. Implemented by
// CoordinatorService.
type GraphSource interface {
	Graph(id string) (*GraphRecord, error)
}

// PlannerService turns registered graphs into phased execution plans.
type PlannerService struct {
	graphs   GraphSource
	queue    messagequeue.Queue
	schedCfg schedule.SchedulerConfig
	allocCfg schedule.AllocatorConfig

	mu    sync.RWMutex
	plans map[string]*schedule.Plan
}

// NewPlannerService creates a PlannerService.
func NewPlannerService(graphs GraphSource, queue messagequeue.Queue, schedCfg schedule.SchedulerConfig, allocCfg schedule.AllocatorConfig) *PlannerService {
	return &PlannerService{
		graphs:   graphs,
		queue:    queue,
		schedCfg: schedCfg,
		allocCfg: allocCfg,
		plans:    make(map[string]*schedule.Plan),
	}
}

// CreatePlan builds a phased execution plan for the graph. Cyclic graphs
// are rejected: callers must resolve circular conflicts first. Unresolved
// high or critical conflicts do not block planning but are surfaced as
// plan alerts.
func (s *PlannerService) CreatePlan(ctx context.Context, graphID string, opts schedule.Options) (*schedule.Plan, error) {
	rec, err := s.graphs.Graph(graphID)
	if err != nil {
		return nil, err
	}

	phases, err := schedule.BuildPhases(rec.Graph, rec.Tasks, opts, s.schedCfg)
	if err != nil {
		return nil, fmt.Errorf("build phases: %w", err)
	}

	total := schedule.PlanDuration(phases)
	now := time.Now()
	p := &schedule.Plan{
		ID:            uuid.NewString(),
		GraphID:       graphID,
		Status:        schedule.StatusCreated,
		Options:       opts,
		Tasks:         rec.Tasks,
		Phases:        phases,
		Allocations:   schedule.ComputeAllocations(rec.Tasks, opts.PriorityTeams, s.schedCfg.DefaultTeam, s.allocCfg),
		TotalDuration: total,
		Parallelism:   schedule.ParallelismRatio(rec.Tasks, total),
		Alerts:        planAlerts(rec.Conflicts, opts, total),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	s.plans[p.ID] = p
	s.mu.Unlock()

	s.publishPlanCreated(ctx, p)

	slog.Info("plan created",
		"plan_id", p.ID, "graph_id", graphID,
		"phases", len(phases), "tasks", len(rec.Tasks), "duration", total)
	return p, nil
}

// Plan returns a registered plan.
func (s *PlannerService) Plan(id string) (*schedule.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return p, nil
}

// ListPlans returns all plans ordered by creation time.
func (s *PlannerService) ListPlans() []*schedule.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*schedule.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *PlannerService) publishPlanCreated(ctx context.Context, p *schedule.Plan) {
	if s.queue == nil {
		return
	}
	publishJSON(ctx, s.queue, messagequeue.SubjectPlanCreated, messagequeue.PlanCreatedPayload{
		PlanID:      p.ID,
		GraphID:     p.GraphID,
		PhaseCount:  len(p.Phases),
		TaskCount:   len(p.Tasks),
		DurationSec: int64(p.TotalDuration.Seconds()),
	})
}

// planAlerts collects warnings attached to a new plan: unresolved
// severe conflicts and budget overruns.
func planAlerts(conflicts []conflict.Conflict, opts schedule.Options, total time.Duration) []string {
	var alerts []string
	for i := range conflicts {
		c := &conflicts[i]
		if c.Severity == conflict.SeverityHigh || c.Severity == conflict.SeverityCritical {
			alerts = append(alerts, fmt.Sprintf("unresolved %s conflict %s (%s)", c.Kind, c.ID, c.Severity))
		}
	}
	if opts.MaxDuration > 0 && total > opts.MaxDuration {
		alerts = append(alerts, fmt.Sprintf("plan duration %s exceeds budget %s", total, opts.MaxDuration))
	}
	return alerts
}
