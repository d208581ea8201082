package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	otelad "github.com/kunho817/shattered-moon-mcp/internal/adapter/otel"
	"github.com/kunho817/shattered-moon-mcp/internal/adapter/ws"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/schedule"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/task"
	"github.com/kunho817/shattered-moon-mcp/internal/port/broadcast"
	"github.com/kunho817/shattered-moon-mcp/internal/port/executor"
	"github.com/kunho817/shattered-moon-mcp/internal/port/messagequeue"
)

// ExecutionConfig tunes the plan execution engine.
type ExecutionConfig struct {
	// MaxParallel caps concurrently running tasks across a phase.
	MaxParallel int
	// BottleneckFactor flags a phase as a bottleneck when its wall-clock
	// time exceeds this multiple of its expected duration.
	BottleneckFactor float64
}

// DefaultExecutionConfig returns the engine defaults.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		MaxParallel:      4,
		BottleneckFactor: 1.5,
	}
}

// PhaseReport summarizes one executed phase.
type PhaseReport struct {
	Index      int            `json:"index"`
	Expected   time.Duration  `json:"expected"`
	Actual     time.Duration  `json:"actual"`
	Bottleneck bool           `json:"bottleneck"`
	Results    []*task.Result `json:"results"`
}

// ExecutionReport is the outcome of running a plan to completion.
type ExecutionReport struct {
	PlanID      string          `json:"plan_id"`
	Status      schedule.Status `json:"status"`
	Phases      []PhaseReport   `json:"phases"`
	Failed      []string        `json:"failed,omitempty"`
	Bottlenecks []int           `json:"bottlenecks,omitempty"`
	Duration    time.Duration   `json:"duration"`
}

// ExecutionService runs plans phase by phase through the task executor.
type ExecutionService struct {
	plans   *PlannerService
	exec    executor.TaskExecutor
	queue   messagequeue.Queue
	hub     broadcast.Broadcaster
	metrics *otelad.Metrics
	cfg     ExecutionConfig
	now     func() time.Time
}

// NewExecutionService creates an ExecutionService. metrics may be nil.
func NewExecutionService(plans *PlannerService, exec executor.TaskExecutor, queue messagequeue.Queue, hub broadcast.Broadcaster, metrics *otelad.Metrics, cfg ExecutionConfig) *ExecutionService {
	return &ExecutionService{
		plans:   plans,
		exec:    exec,
		queue:   queue,
		hub:     hub,
		metrics: metrics,
		cfg:     cfg,
		now:     time.Now,
	}
}

// ExecutePlan runs every phase of the plan in order. Tasks within a phase
// run concurrently, bounded by MaxParallel and the plan's target
// parallelism. Task failures and cancellations degrade the plan instead
// of aborting it: remaining phases still run, and the report carries the
// failed task IDs. Phases that overrun their expected duration by the
// bottleneck factor are flagged.
func (s *ExecutionService) ExecutePlan(ctx context.Context, planID string) (*ExecutionReport, error) {
	p, err := s.plans.Plan(planID)
	if err != nil {
		return nil, err
	}

	ctx, span := otelad.StartPlanSpan(ctx, p.ID, p.GraphID)
	defer span.End()

	s.setPlanStatus(ctx, p, schedule.StatusRunning, "")

	report := &ExecutionReport{PlanID: p.ID, Status: schedule.StatusRunning}
	started := s.now()

	for i := range p.Phases {
		phase := &p.Phases[i]
		pr := s.runPhase(ctx, p, phase)
		report.Phases = append(report.Phases, pr)
		if pr.Bottleneck {
			report.Bottlenecks = append(report.Bottlenecks, phase.Index)
		}
		for _, res := range pr.Results {
			if res.Status != task.StatusCompleted {
				report.Failed = append(report.Failed, res.TaskID)
			}
		}
	}

	report.Duration = s.now().Sub(started)

	status := schedule.StatusCompleted
	detail := ""
	switch {
	case len(report.Failed) > 0:
		status = schedule.StatusDegraded
		detail = fmt.Sprintf("%d tasks failed", len(report.Failed))
	case len(report.Bottlenecks) > 0:
		// Every task finished, but the plan ran far enough behind its
		// estimates that the rebalancer should get a look at it.
		status = schedule.StatusDegraded
		detail = fmt.Sprintf("%d bottleneck phases", len(report.Bottlenecks))
	}
	report.Status = status
	s.setPlanStatus(ctx, p, status, detail)

	if s.metrics != nil {
		s.metrics.PlansExecuted.Add(ctx, 1)
		s.metrics.TasksFailed.Add(ctx, int64(len(report.Failed)))
		s.metrics.PlanParallelism.Record(ctx, p.Parallelism)
	}

	slog.Info("plan executed",
		"plan_id", p.ID, "status", status,
		"failed", len(report.Failed), "bottlenecks", len(report.Bottlenecks),
		"duration", report.Duration)
	return report, nil
}

// runPhase executes one phase's tasks concurrently and reports timing.
func (s *ExecutionService) runPhase(ctx context.Context, p *schedule.Plan, phase *schedule.Phase) PhaseReport {
	ctx, span := otelad.StartPhaseSpan(ctx, p.ID, phase.Index)
	defer span.End()

	publishJSON(ctx, s.queue, messagequeue.SubjectPhaseStarted, messagequeue.PhasePayload{
		PlanID:     p.ID,
		PhaseIndex: phase.Index,
		Tasks:      phase.Tasks,
	})
	s.broadcast(ctx, ws.EventPhaseStarted, ws.PhaseEvent{
		PlanID:     p.ID,
		PhaseIndex: phase.Index,
		Tasks:      phase.Tasks,
	})

	limit := s.cfg.MaxParallel
	if po := p.Options.TargetParallelism; po > 0 && po < limit {
		limit = po
	}
	if limit < 1 {
		limit = 1
	}

	var (
		mu      sync.Mutex
		results []*task.Result
	)

	phaseStart := s.now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, id := range phase.Tasks {
		t, ok := p.Tasks[id]
		if !ok {
			continue
		}
		g.Go(func() error {
			res := s.runTask(gctx, p, t)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil // failures degrade, never abort the group
		})
	}
	_ = g.Wait()

	actual := s.now().Sub(phaseStart)
	degraded := false
	for _, res := range results {
		if res.Status != task.StatusCompleted {
			degraded = true
			break
		}
	}

	// A phase is a bottleneck when its wall-clock time overruns its
	// expected duration, or when any single task overruns its own
	// estimate. The per-task check catches slow tasks masked by a
	// phase whose expected duration was dominated by a longer sibling.
	bottleneck := phase.Expected > 0 && float64(actual) > s.cfg.BottleneckFactor*float64(phase.Expected)
	p.Lock()
	for _, res := range results {
		t, ok := p.Tasks[res.TaskID]
		if !ok || t.Estimate <= 0 {
			continue
		}
		if float64(res.Duration) > s.cfg.BottleneckFactor*float64(t.Estimate) {
			bottleneck = true
			break
		}
	}
	p.Unlock()
	if bottleneck {
		slog.Warn("phase bottleneck detected",
			"plan_id", p.ID, "phase", phase.Index,
			"expected", phase.Expected, "actual", actual)
	}

	publishJSON(ctx, s.queue, messagequeue.SubjectPhaseCompleted, messagequeue.PhasePayload{
		PlanID:      p.ID,
		PhaseIndex:  phase.Index,
		Tasks:       phase.Tasks,
		DurationSec: int64(actual.Seconds()),
		Degraded:    degraded,
	})
	s.broadcast(ctx, ws.EventPhaseCompleted, ws.PhaseEvent{
		PlanID:     p.ID,
		PhaseIndex: phase.Index,
		Tasks:      phase.Tasks,
		Degraded:   degraded,
	})

	if s.metrics != nil {
		s.metrics.PhaseDuration.Record(ctx, actual.Seconds())
	}

	return PhaseReport{
		Index:      phase.Index,
		Expected:   phase.Expected,
		Actual:     actual,
		Bottleneck: bottleneck,
		Results:    results,
	}
}

// runTask executes a single task, translating executor errors and
// context cancellation into failed results.
func (s *ExecutionService) runTask(ctx context.Context, p *schedule.Plan, t *task.Task) *task.Result {
	p.Lock()
	t.Status = task.StatusRunning
	t.UpdatedAt = s.now()
	team := t.SuggestedTeam
	deadline := t.Deadline
	p.Unlock()

	s.broadcast(ctx, ws.EventTaskStatus, ws.TaskStatusEvent{
		PlanID: p.ID,
		TaskID: t.ID,
		Team:   team,
		Status: string(task.StatusRunning),
	})

	runCtx := ctx
	if deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	start := s.now()
	res, err := s.exec.Run(runCtx, t)
	if err != nil {
		res = &task.Result{
			TaskID:   t.ID,
			Status:   task.StatusFailed,
			Duration: s.now().Sub(start),
			Error:    err.Error(),
		}
		if runCtx.Err() != nil {
			res.Status = task.StatusCancelled
			res.Error = runCtx.Err().Error()
		}
	}

	p.Lock()
	t.Status = res.Status
	t.Actual = res.Duration
	t.UpdatedAt = s.now()
	team = t.SuggestedTeam
	p.Unlock()

	publishJSON(ctx, s.queue, messagequeue.SubjectTaskResult, messagequeue.TaskResultPayload{
		PlanID:      p.ID,
		TaskID:      t.ID,
		Status:      string(res.Status),
		DurationSec: int64(res.Duration.Seconds()),
		Error:       res.Error,
	})
	s.broadcast(ctx, ws.EventTaskStatus, ws.TaskStatusEvent{
		PlanID: p.ID,
		TaskID: t.ID,
		Team:   team,
		Status: string(res.Status),
	})

	return res
}

func (s *ExecutionService) setPlanStatus(ctx context.Context, p *schedule.Plan, status schedule.Status, detail string) {
	p.Lock()
	p.Status = status
	p.UpdatedAt = s.now()
	p.Unlock()

	publishJSON(ctx, s.queue, messagequeue.SubjectPlanStatus, messagequeue.PlanStatusPayload{
		PlanID: p.ID,
		Status: string(status),
		Detail: detail,
	})
	s.broadcast(ctx, ws.EventPlanStatus, ws.PlanStatusEvent{
		PlanID: p.ID,
		Status: string(status),
		Detail: detail,
	})
}

func (s *ExecutionService) broadcast(ctx context.Context, eventType string, payload any) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastEvent(ctx, eventType, payload)
}
