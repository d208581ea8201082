package messagequeue

// GraphCreatedPayload is the schema for graphs.created messages.
type GraphCreatedPayload struct {
	GraphID   string `json:"graph_id"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
	Cyclic    bool   `json:"cyclic"`
}

// GraphUpdatedPayload is the schema for graphs.updated messages.
type GraphUpdatedPayload struct {
	GraphID string `json:"graph_id"`
	Reason  string `json:"reason"`
}

// ConflictFoundPayload is the schema for graphs.conflicts messages.
type ConflictFoundPayload struct {
	GraphID    string   `json:"graph_id"`
	ConflictID string   `json:"conflict_id"`
	Kind       string   `json:"kind"`
	Severity   string   `json:"severity"`
	Nodes      []string `json:"nodes"`
}

// StrategyPayload is the schema for strategies.recorded and
// strategies.applied messages.
type StrategyPayload struct {
	GraphID     string  `json:"graph_id"`
	StrategyID  string  `json:"strategy_id"`
	ConflictID  string  `json:"conflict_id"`
	Type        string  `json:"type"`
	RiskLevel   string  `json:"risk_level"`
	Applied     bool    `json:"applied"`
	Probability float64 `json:"success_probability"`
}

// PlanCreatedPayload is the schema for plans.created messages.
type PlanCreatedPayload struct {
	PlanID      string `json:"plan_id"`
	GraphID     string `json:"graph_id"`
	PhaseCount  int    `json:"phase_count"`
	TaskCount   int    `json:"task_count"`
	DurationSec int64  `json:"duration_sec"`
}

// PlanStatusPayload is the schema for plans.status messages.
type PlanStatusPayload struct {
	PlanID string `json:"plan_id"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// PhasePayload is the schema for plans.phase.started and
// plans.phase.completed messages.
type PhasePayload struct {
	PlanID      string   `json:"plan_id"`
	PhaseIndex  int      `json:"phase_index"`
	Tasks       []string `json:"tasks"`
	DurationSec int64    `json:"duration_sec,omitempty"`
	Degraded    bool     `json:"degraded,omitempty"`
}

// TaskResultPayload is the schema for plans.task.result messages.
type TaskResultPayload struct {
	PlanID      string `json:"plan_id"`
	TaskID      string `json:"task_id"`
	Status      string `json:"status"`
	DurationSec int64  `json:"duration_sec"`
	Error       string `json:"error,omitempty"`
}

// RebalancePayload is the schema for plans.rebalance messages.
type RebalancePayload struct {
	PlanID   string `json:"plan_id"`
	TaskID   string `json:"task_id"`
	FromTeam string `json:"from_team"`
	ToTeam   string `json:"to_team"`
}
