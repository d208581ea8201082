package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kunho817/shattered-moon-mcp/internal/domain/depgraph"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/schedule"
	"github.com/kunho817/shattered-moon-mcp/internal/port/decomposer"
	"github.com/kunho817/shattered-moon-mcp/internal/service"
)

const historyLimit = 50

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.createGraphTool(),
		s.analyzeConflictsTool(),
		s.resolveConflictsTool(),
		s.strategyHistoryTool(),
		s.createPlanTool(),
		s.executePlanTool(),
		s.optimizeExecutionTool(),
		s.planStatusTool(),
	)
}

func (s *Server) createGraphTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("create_dependency_graph",
		mcplib.WithDescription("Create a dependency graph from an objective or an explicit node/edge list"),
		mcplib.WithString("objective",
			mcplib.Description("Free-text objective to decompose into tasks"),
		),
		mcplib.WithString("context",
			mcplib.Description("Additional context for the decomposition"),
		),
		mcplib.WithString("nodes_json",
			mcplib.Description("Explicit node list as a JSON array; overrides decomposition"),
		),
		mcplib.WithString("edges_json",
			mcplib.Description("Explicit edge list as a JSON array"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleCreateGraph}
}

func (s *Server) analyzeConflictsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("analyze_conflicts",
		mcplib.WithDescription("Detect circular dependencies, resource contention, and knowledge gaps in a graph"),
		mcplib.WithString("graph_id",
			mcplib.Required(),
			mcplib.Description("The graph ID to analyze"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleAnalyzeConflicts}
}

func (s *Server) resolveConflictsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("resolve_conflicts",
		mcplib.WithDescription("Generate resolution strategies for detected conflicts and apply the auto-resolvable ones"),
		mcplib.WithString("graph_id",
			mcplib.Required(),
			mcplib.Description("The graph ID to resolve"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleResolveConflicts}
}

func (s *Server) strategyHistoryTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_strategy_history",
		mcplib.WithDescription("List recent resolution strategies recorded for a graph, newest first"),
		mcplib.WithString("graph_id",
			mcplib.Required(),
			mcplib.Description("The graph ID to look up"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleStrategyHistory}
}

func (s *Server) createPlanTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("create_execution_plan",
		mcplib.WithDescription("Build a phased execution plan with team allocations for a graph"),
		mcplib.WithString("graph_id",
			mcplib.Required(),
			mcplib.Description("The graph ID to plan"),
		),
		mcplib.WithNumber("target_parallelism",
			mcplib.Description("Cap on concurrent tasks per burst; 0 means unbounded"),
		),
		mcplib.WithNumber("max_duration_minutes",
			mcplib.Description("Alert when the plan exceeds this many minutes"),
		),
		mcplib.WithString("priority_teams",
			mcplib.Description("Comma-separated team names preferred for allocation"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleCreatePlan}
}

func (s *Server) executePlanTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("execute_plan",
		mcplib.WithDescription("Run a plan phase by phase and report per-task outcomes and bottlenecks"),
		mcplib.WithString("plan_id",
			mcplib.Required(),
			mcplib.Description("The plan ID to execute"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleExecutePlan}
}

func (s *Server) optimizeExecutionTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("optimize_execution",
		mcplib.WithDescription("Rebalance workload from overloaded teams to underutilized ones on a plan"),
		mcplib.WithString("plan_id",
			mcplib.Required(),
			mcplib.Description("The plan ID to rebalance"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleOptimizeExecution}
}

func (s *Server) planStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_plan_status",
		mcplib.WithDescription("Get the current status, phases, and allocations of a plan"),
		mcplib.WithString("plan_id",
			mcplib.Required(),
			mcplib.Description("The plan ID to look up"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handlePlanStatus}
}

func (s *Server) handleCreateGraph(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Coordinator == nil {
		return mcplib.NewToolResultError("coordinator not configured"), nil
	}
	args := req.GetArguments()

	create := service.CreateGraphRequest{}
	if v, ok := args["objective"].(string); ok {
		create.Objective = v
	}
	if v, ok := args["context"].(string); ok {
		create.Context = v
	}
	if v, ok := args["nodes_json"].(string); ok && v != "" {
		var nodes []decomposer.NodeSpec
		if err := json.Unmarshal([]byte(v), &nodes); err != nil {
			return mcplib.NewToolResultErrorFromErr("invalid nodes_json", err), nil
		}
		create.Nodes = nodes
	}
	if v, ok := args["edges_json"].(string); ok && v != "" {
		var edges []depgraph.Edge
		if err := json.Unmarshal([]byte(v), &edges); err != nil {
			return mcplib.NewToolResultErrorFromErr("invalid edges_json", err), nil
		}
		create.Edges = edges
	}

	rec, err := s.deps.Coordinator.CreateGraph(ctx, create)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to create graph", err), nil
	}
	return marshalResult(rec)
}

func (s *Server) handleAnalyzeConflicts(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Coordinator == nil {
		return mcplib.NewToolResultError("coordinator not configured"), nil
	}
	graphID, result := requireString(req, "graph_id")
	if result != nil {
		return result, nil
	}
	conflicts, err := s.deps.Coordinator.AnalyzeConflicts(ctx, graphID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to analyze graph %s", graphID), err,
		), nil
	}
	return marshalResult(conflicts)
}

func (s *Server) handleResolveConflicts(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Coordinator == nil {
		return mcplib.NewToolResultError("coordinator not configured"), nil
	}
	graphID, result := requireString(req, "graph_id")
	if result != nil {
		return result, nil
	}
	strategies, err := s.deps.Coordinator.ResolveConflicts(ctx, graphID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to resolve graph %s", graphID), err,
		), nil
	}
	return marshalResult(strategies)
}

func (s *Server) handleStrategyHistory(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Coordinator == nil {
		return mcplib.NewToolResultError("coordinator not configured"), nil
	}
	graphID, result := requireString(req, "graph_id")
	if result != nil {
		return result, nil
	}
	entries, err := s.deps.Coordinator.StrategyHistory(ctx, graphID, historyLimit)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to read history for graph %s", graphID), err,
		), nil
	}
	return marshalResult(entries)
}

func (s *Server) handleCreatePlan(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Planner == nil {
		return mcplib.NewToolResultError("planner not configured"), nil
	}
	graphID, result := requireString(req, "graph_id")
	if result != nil {
		return result, nil
	}

	args := req.GetArguments()
	opts := schedule.Options{}
	if v, ok := args["target_parallelism"].(float64); ok {
		opts.TargetParallelism = int(v)
	}
	if v, ok := args["max_duration_minutes"].(float64); ok && v > 0 {
		opts.MaxDuration = time.Duration(v) * time.Minute
	}
	if v, ok := args["priority_teams"].(string); ok && v != "" {
		for _, team := range strings.Split(v, ",") {
			if team = strings.TrimSpace(team); team != "" {
				opts.PriorityTeams = append(opts.PriorityTeams, team)
			}
		}
	}

	p, err := s.deps.Planner.CreatePlan(ctx, graphID, opts)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to plan graph %s", graphID), err,
		), nil
	}
	return marshalResult(p)
}

func (s *Server) handleExecutePlan(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Runner == nil {
		return mcplib.NewToolResultError("runner not configured"), nil
	}
	planID, result := requireString(req, "plan_id")
	if result != nil {
		return result, nil
	}
	report, err := s.deps.Runner.ExecutePlan(ctx, planID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to execute plan %s", planID), err,
		), nil
	}
	return marshalResult(report)
}

func (s *Server) handleOptimizeExecution(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Optimizer == nil {
		return mcplib.NewToolResultError("optimizer not configured"), nil
	}
	planID, result := requireString(req, "plan_id")
	if result != nil {
		return result, nil
	}
	moves, err := s.deps.Optimizer.OptimizeExecution(ctx, planID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to optimize plan %s", planID), err,
		), nil
	}
	if moves == nil {
		moves = []schedule.Move{}
	}
	return marshalResult(moves)
}

func (s *Server) handlePlanStatus(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Planner == nil {
		return mcplib.NewToolResultError("planner not configured"), nil
	}
	planID, result := requireString(req, "plan_id")
	if result != nil {
		return result, nil
	}
	p, err := s.deps.Planner.Plan(planID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get plan %s", planID), err,
		), nil
	}
	return marshalResult(p)
}

func requireString(req mcplib.CallToolRequest, key string) (string, *mcplib.CallToolResult) { //nolint:gocritic // hugeParam: mcp-go handler signature
	args := req.GetArguments()
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", mcplib.NewToolResultError(key + " is required")
	}
	return v, nil
}

func marshalResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return toolResultJSON(string(data)), nil
}
