// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	// Pending messages are processed; no new messages are accepted.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject constants for NATS subjects used by the coordination engine.
const (
	SubjectGraphCreated  = "graphs.created"   // a dependency graph was built
	SubjectGraphUpdated  = "graphs.updated"   // nodes or edges changed after resolution
	SubjectConflictFound = "graphs.conflicts" // conflicts detected during analysis

	SubjectStrategyRecorded = "strategies.recorded" // a resolution strategy was generated
	SubjectStrategyApplied  = "strategies.applied"  // a strategy mutated the graph

	SubjectPlanCreated    = "plans.created"
	SubjectPlanStatus     = "plans.status" // status transitions (running, completed, degraded)
	SubjectPhaseStarted   = "plans.phase.started"
	SubjectPhaseCompleted = "plans.phase.completed"
	SubjectTaskResult     = "plans.task.result" // per-task outcome during execution
	SubjectRebalance      = "plans.rebalance"   // workload moves between teams
)
