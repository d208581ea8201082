package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kunho817/shattered-moon-mcp/internal/adapter/ws"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/schedule"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/task"
	"github.com/kunho817/shattered-moon-mcp/internal/port/broadcast"
	"github.com/kunho817/shattered-moon-mcp/internal/port/capability"
	"github.com/kunho817/shattered-moon-mcp/internal/port/messagequeue"
)

// OptimizerService rebalances workload between teams on existing plans.
type OptimizerService struct {
	plans    *PlannerService
	registry capability.Registry
	queue    messagequeue.Queue
	hub      broadcast.Broadcaster
	allocCfg schedule.AllocatorConfig
}

// NewOptimizerService creates an OptimizerService. registry may be nil:
// rebalancing then picks the first available destination team.
func NewOptimizerService(plans *PlannerService, registry capability.Registry, queue messagequeue.Queue, hub broadcast.Broadcaster, allocCfg schedule.AllocatorConfig) *OptimizerService {
	return &OptimizerService{
		plans:    plans,
		registry: registry,
		queue:    queue,
		hub:      hub,
		allocCfg: allocCfg,
	}
}

// OptimizeExecution runs one rebalancing pass over the plan, moving
// movable tasks off overloaded teams. Returns the applied moves; an
// empty slice means the plan was already balanced.
func (s *OptimizerService) OptimizeExecution(ctx context.Context, planID string) ([]schedule.Move, error) {
	p, err := s.plans.Plan(planID)
	if err != nil {
		return nil, err
	}

	// Rebalancing rewrites allocations and task assignments, so it
	// holds the plan lock against a concurrent execution pass. The
	// degraded-to-created transition rides the same critical section;
	// publishes happen after the lock is dropped.
	p.Lock()
	moves := schedule.Rebalance(p, s.scorer(ctx), s.allocCfg)
	recovered := p.Status == schedule.StatusDegraded && len(moves) > 0
	if recovered {
		p.Status = schedule.StatusCreated
	}
	p.Unlock()

	for _, m := range moves {
		publishJSON(ctx, s.queue, messagequeue.SubjectRebalance, messagequeue.RebalancePayload{
			PlanID:   p.ID,
			TaskID:   m.TaskID,
			FromTeam: m.FromTeam,
			ToTeam:   m.ToTeam,
		})
		if s.hub != nil {
			s.hub.BroadcastEvent(ctx, ws.EventRebalance, ws.RebalanceEvent{
				PlanID:   p.ID,
				TaskID:   m.TaskID,
				FromTeam: m.FromTeam,
				ToTeam:   m.ToTeam,
			})
		}
	}

	// A rebalanced degraded plan becomes runnable again.
	if recovered {
		publishJSON(ctx, s.queue, messagequeue.SubjectPlanStatus, messagequeue.PlanStatusPayload{
			PlanID: p.ID,
			Status: string(schedule.StatusCreated),
			Detail: "workload rebalanced",
		})
		if s.hub != nil {
			s.hub.BroadcastEvent(ctx, ws.EventPlanStatus, ws.PlanStatusEvent{
				PlanID: p.ID,
				Status: string(schedule.StatusCreated),
				Detail: "workload rebalanced",
			})
		}
	}

	slog.Info("plan optimized", "plan_id", p.ID, "moves", len(moves))
	return moves, nil
}

// scorer adapts the capability registry into a rebalancing scorer.
// A team's score for a task is its strongest skill matching a word of
// the task title, so "api gateway" prefers a team strong in "api".
func (s *OptimizerService) scorer(ctx context.Context) schedule.Scorer {
	if s.registry == nil {
		return nil
	}
	return func(teamID string, t *task.Task) float64 {
		skills, err := s.registry.TeamCapability(ctx, teamID)
		if err != nil {
			slog.Debug("capability lookup failed", "team", teamID, "error", err)
			return 0
		}
		best := 0.0
		for _, word := range strings.Fields(strings.ToLower(t.Title)) {
			if v, ok := skills[word]; ok && v > best {
				best = v
			}
		}
		return best
	}
}
