package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/kunho817/shattered-moon-mcp/internal/domain/task"
	"github.com/kunho817/shattered-moon-mcp/internal/port/executor"
)

const (
	dispatchPrefix = "tasks.dispatch."

	// dispatchFallbackTeam routes tasks without a team assignment.
	dispatchFallbackTeam = "unassigned"
)

// ErrNoWorker is returned when no worker is subscribed to a team's
// dispatch subject.
var ErrNoWorker = errors.New("no worker listening on dispatch subject")

// Executor dispatches tasks to team workers over core NATS request-reply.
// Each team listens on "tasks.dispatch.<team>" and replies with a task
// result; no responder means the task fails immediately rather than
// stalling the plan.
type Executor struct {
	q *Queue
}

var _ executor.TaskExecutor = (*Executor)(nil)

// NewExecutor creates a dispatch executor backed by the queue's
// connection.
func NewExecutor(q *Queue) *Executor {
	return &Executor{q: q}
}

// Run sends the task to its team's dispatch subject and waits for the
// worker's reply. Context cancellation and deadlines abort the wait.
func (e *Executor) Run(ctx context.Context, t *task.Task) (*task.Result, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal task %s: %w", t.ID, err)
	}

	subject := dispatchPrefix + dispatchTeam(t.SuggestedTeam)
	msg, err := e.q.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, fmt.Errorf("task %s team %s: %w", t.ID, t.SuggestedTeam, ErrNoWorker)
		}
		return nil, fmt.Errorf("dispatch task %s: %w", t.ID, err)
	}

	var res task.Result
	if err := json.Unmarshal(msg.Data, &res); err != nil {
		return nil, fmt.Errorf("decode result for task %s: %w", t.ID, err)
	}
	if res.TaskID == "" {
		res.TaskID = t.ID
	}
	if !res.Status.IsTerminal() {
		return nil, fmt.Errorf("task %s: worker replied with non-terminal status %q", t.ID, res.Status)
	}
	return &res, nil
}

// dispatchTeam normalizes a team name into a subject token.
func dispatchTeam(team string) string {
	team = strings.ToLower(strings.TrimSpace(team))
	if team == "" {
		return dispatchFallbackTeam
	}
	return strings.ReplaceAll(team, " ", "_")
}
