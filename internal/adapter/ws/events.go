package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventPlanStatus     = "plan.status"
	EventPhaseStarted   = "phase.started"
	EventPhaseCompleted = "phase.completed"
	EventTaskStatus     = "task.status"
	EventConflictFound  = "conflict.found"
	EventRebalance      = "rebalance.applied"
)

// PlanStatusEvent is broadcast when a plan's status changes.
type PlanStatusEvent struct {
	PlanID string `json:"plan_id"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// PhaseEvent is broadcast when a phase starts or completes.
type PhaseEvent struct {
	PlanID     string   `json:"plan_id"`
	PhaseIndex int      `json:"phase_index"`
	Tasks      []string `json:"tasks"`
	Degraded   bool     `json:"degraded,omitempty"`
}

// TaskStatusEvent is broadcast when a task's status changes during execution.
type TaskStatusEvent struct {
	PlanID string `json:"plan_id"`
	TaskID string `json:"task_id"`
	Team   string `json:"team"`
	Status string `json:"status"`
}

// ConflictFoundEvent is broadcast when graph analysis detects a conflict.
type ConflictFoundEvent struct {
	GraphID    string   `json:"graph_id"`
	ConflictID string   `json:"conflict_id"`
	Kind       string   `json:"kind"`
	Severity   string   `json:"severity"`
	Nodes      []string `json:"nodes"`
}

// RebalanceEvent is broadcast when a workload move is applied.
type RebalanceEvent struct {
	PlanID   string `json:"plan_id"`
	TaskID   string `json:"task_id"`
	FromTeam string `json:"from_team"`
	ToTeam   string `json:"to_team"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
