// Package schedule builds phased execution plans from resolved dependency
// graphs and keeps team workloads balanced while plans run.
package schedule

import (
	"sync"
	"time"

	"github.com/kunho817/shattered-moon-mcp/internal/domain/task"
)

// Status is the lifecycle state of an execution plan.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusDegraded  Status = "degraded"
)

// Options tunes plan creation for one planning request.
type Options struct {
	TargetParallelism int           `json:"target_parallelism,omitempty"` // caps concurrent tasks per burst; 0 = unbounded
	MaxDuration       time.Duration `json:"max_duration,omitempty"`       // alert when the plan exceeds this; 0 = no limit
	PriorityTeams     []string      `json:"priority_teams,omitempty"`     // preferred ordering for allocation and rebalancing
}

// Phase is a batch of tasks at the same topological depth. Tasks inside
// one phase have no blocking dependencies between them.
type Phase struct {
	Index          int                 `json:"index"`
	Level          int                 `json:"level"` // topological depth in the source graph
	Tasks          []string            `json:"tasks"`
	ParallelGroups [][]string          `json:"parallel_groups"`
	DependsOn      []int               `json:"depends_on,omitempty"` // prior phase indices
	Assignments    map[string][]string `json:"assignments"`          // team -> task IDs
	Expected       time.Duration       `json:"expected"`             // bounded by the slowest task
}

// Allocation is one team's share of a plan's workload.
type Allocation struct {
	Team        string        `json:"team"`
	Tasks       []string      `json:"tasks"`
	Assigned    time.Duration `json:"assigned"`
	Utilization float64       `json:"utilization"` // assigned / capacity
	PeakTime    time.Duration `json:"peak_time"`   // longest single task
	BufferTime  time.Duration `json:"buffer_time"` // remaining capacity, floored at zero
}

// Plan is a phased execution plan over a task breakdown. It is mutable
// while running: the rebalancer rewrites assignments and allocations.
// Callers that mutate or read a plan concurrently with execution must
// hold its lock.
type Plan struct {
	mu sync.Mutex

	ID            string                `json:"id"`
	GraphID       string                `json:"graph_id"`
	Status        Status                `json:"status"`
	Options       Options               `json:"options"`
	Tasks         map[string]*task.Task `json:"tasks"` // the input breakdown
	Phases        []Phase               `json:"phases"`
	Allocations   []Allocation          `json:"allocations"`
	TotalDuration time.Duration         `json:"total_duration"`
	Parallelism   float64               `json:"parallelism"` // total work / plan duration (avg concurrency)
	Alerts        []string              `json:"alerts,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// Lock acquires the plan's mutation lock.
func (p *Plan) Lock() { p.mu.Lock() }

// Unlock releases the plan's mutation lock.
func (p *Plan) Unlock() { p.mu.Unlock() }

// Move records one rebalancing reassignment.
type Move struct {
	TaskID   string `json:"task_id"`
	FromTeam string `json:"from_team"`
	ToTeam   string `json:"to_team"`
}
