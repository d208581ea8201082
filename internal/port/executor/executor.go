// Package executor defines the port for carrying out scheduled tasks.
// The core's job is scheduling, not simulating work: callers inject an
// implementation, and tests inject a deterministic fake.
package executor

import (
	"context"

	"github.com/kunho817/shattered-moon-mcp/internal/domain/task"
)

// TaskExecutor runs one task to completion. Run must honor context
// cancellation and deadlines; both are reported as task failure by the
// execution engine, never as a stalled plan.
type TaskExecutor interface {
	Run(ctx context.Context, t *task.Task) (*task.Result, error)
}
