package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kunho817/shattered-moon-mcp/internal/adapter/ws"
	"github.com/kunho817/shattered-moon-mcp/internal/config"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/schedule"
	"github.com/kunho817/shattered-moon-mcp/internal/port/messagequeue"
	"github.com/kunho817/shattered-moon-mcp/internal/service"
)

const maxRequestBodySize = 1 << 20 // 1 MB

const defaultHistoryLimit = 50

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Coordinator *service.CoordinatorService
	Planner     *service.PlannerService
	Runner      *service.ExecutionService
	Optimizer   *service.OptimizerService
	Hub         *ws.Hub
	Queue       messagequeue.Queue
	Config      *config.Holder
}

// --- Graphs ---

// CreateGraph builds a dependency graph from an objective or an explicit
// node/edge list.
func (h *Handlers) CreateGraph(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[service.CreateGraphRequest](w, r)
	if !ok {
		return
	}
	if req.Objective == "" && len(req.Nodes) == 0 {
		writeError(w, http.StatusBadRequest, "objective or nodes is required")
		return
	}
	rec, err := h.Coordinator.CreateGraph(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "failed to create graph")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// ListGraphs returns all graphs ordered by creation time.
func (h *Handlers) ListGraphs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Coordinator.ListGraphs())
}

// GetGraph returns one graph with its conflicts and strategies.
func (h *Handlers) GetGraph(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	rec, err := h.Coordinator.Graph(id)
	if err != nil {
		writeDomainError(w, err, "graph not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// AnalyzeConflicts runs conflict detection on a graph.
func (h *Handlers) AnalyzeConflicts(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	conflicts, err := h.Coordinator.AnalyzeConflicts(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "graph not found")
		return
	}
	writeJSON(w, http.StatusOK, conflicts)
}

// ResolveConflicts generates strategies and applies the auto-resolvable
// ones.
func (h *Handlers) ResolveConflicts(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	strategies, err := h.Coordinator.ResolveConflicts(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "graph not found")
		return
	}
	writeJSON(w, http.StatusOK, strategies)
}

// StrategyHistory lists recent resolution strategies for a graph.
func (h *Handlers) StrategyHistory(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := h.Coordinator.StrategyHistory(r.Context(), id, limit)
	if err != nil {
		writeDomainError(w, err, "graph not found")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Plans ---

type createPlanRequest struct {
	TargetParallelism  int      `json:"target_parallelism"`
	MaxDurationMinutes int      `json:"max_duration_minutes"`
	PriorityTeams      []string `json:"priority_teams"`
}

// CreatePlan builds a phased execution plan for a graph.
func (h *Handlers) CreatePlan(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	req, ok := readJSON[createPlanRequest](w, r)
	if !ok {
		return
	}
	opts := schedule.Options{
		TargetParallelism: req.TargetParallelism,
		MaxDuration:       time.Duration(req.MaxDurationMinutes) * time.Minute,
		PriorityTeams:     req.PriorityTeams,
	}
	p, err := h.Planner.CreatePlan(r.Context(), id, opts)
	if err != nil {
		writeDomainError(w, err, "failed to create plan")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListPlans returns all plans ordered by creation time.
func (h *Handlers) ListPlans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Planner.ListPlans())
}

// GetPlan returns one plan with phases and allocations.
func (h *Handlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	p, err := h.Planner.Plan(id)
	if err != nil {
		writeDomainError(w, err, "plan not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ExecutePlan runs a plan to completion and returns the report.
func (h *Handlers) ExecutePlan(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	report, err := h.Runner.ExecutePlan(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "plan not found")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// OptimizeExecution runs one rebalancing pass over a plan.
func (h *Handlers) OptimizeExecution(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	moves, err := h.Optimizer.OptimizeExecution(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "plan not found")
		return
	}
	if moves == nil {
		moves = []schedule.Move{}
	}
	writeJSON(w, http.StatusOK, moves)
}

// --- Infrastructure ---

// Health reports process liveness and queue connectivity.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{"status": "ok"}
	if h.Queue != nil {
		status["nats_connected"] = h.Queue.IsConnected()
	}
	if h.Config != nil {
		cfg := h.Config.Get()
		status["oracle_url"] = cfg.Oracle.URL
		status["nats_url"] = cfg.NATS.URL
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleWS upgrades the connection and registers it with the event hub.
func (h *Handlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, "websocket hub not configured")
		return
	}
	h.Hub.HandleWS(w, r)
}
