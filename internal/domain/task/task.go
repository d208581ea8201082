// Package task defines the Task domain entity scheduled by execution plans.
package task

import "time"

// Status represents the current state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal returns true if the task is in a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Complexity rates how demanding a task is. Critical tasks are pinned to
// their assigned team and never rebalanced.
type Complexity string

const (
	ComplexityLow      Complexity = "low"
	ComplexityMedium   Complexity = "medium"
	ComplexityHigh     Complexity = "high"
	ComplexityCritical Complexity = "critical"
)

// Task represents a unit of work assigned to a team within an execution plan.
type Task struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	SuggestedTeam  string        `json:"suggested_team"`
	Status         Status        `json:"status"`
	Priority       int           `json:"priority"`
	Complexity     Complexity    `json:"complexity"`
	Atomicity      int           `json:"atomicity"` // 1-10, how indivisible the task is
	Parallelizable bool          `json:"parallelizable"`
	Estimate       time.Duration `json:"estimate"`
	Actual         time.Duration `json:"actual,omitempty"`
	DependsOn      []string      `json:"depends_on,omitempty"`
	Deadline       time.Duration `json:"deadline,omitempty"` // per-task budget; zero means none
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Result holds the outcome reported by a task executor.
type Result struct {
	TaskID   string        `json:"task_id"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Movable reports whether the rebalancer may move this task to another
// team: it must be parallelizable and not critical-complexity.
func (t *Task) Movable() bool {
	return t.Parallelizable && t.Complexity != ComplexityCritical
}
