// Package mcp exposes the planning engine over the Model Context
// Protocol, so AI agents can build graphs, resolve conflicts, and run
// plans as tools.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kunho817/shattered-moon-mcp/internal/domain/conflict"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/schedule"
	"github.com/kunho817/shattered-moon-mcp/internal/port/auditlog"
	"github.com/kunho817/shattered-moon-mcp/internal/service"
)

// ServerConfig holds MCP server settings. An empty APIKey disables
// authentication.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	APIKey  string
}

// GraphCoordinator is the graph-facing surface the MCP tools need.
type GraphCoordinator interface {
	CreateGraph(ctx context.Context, req service.CreateGraphRequest) (*service.GraphRecord, error)
	AnalyzeConflicts(ctx context.Context, graphID string) ([]conflict.Conflict, error)
	ResolveConflicts(ctx context.Context, graphID string) ([]conflict.Strategy, error)
	StrategyHistory(ctx context.Context, graphID string, limit int) ([]auditlog.Entry, error)
	Graph(id string) (*service.GraphRecord, error)
	ListGraphs() []*service.GraphRecord
}

// PlanCreator builds and reads execution plans.
type PlanCreator interface {
	CreatePlan(ctx context.Context, graphID string, opts schedule.Options) (*schedule.Plan, error)
	Plan(id string) (*schedule.Plan, error)
	ListPlans() []*schedule.Plan
}

// PlanRunner executes plans.
type PlanRunner interface {
	ExecutePlan(ctx context.Context, planID string) (*service.ExecutionReport, error)
}

// PlanOptimizer rebalances running plans.
type PlanOptimizer interface {
	OptimizeExecution(ctx context.Context, planID string) ([]schedule.Move, error)
}

// ServerDeps carries the service dependencies for tool handlers. Nil
// fields disable the corresponding tools with an error result.
type ServerDeps struct {
	Coordinator GraphCoordinator
	Planner     PlanCreator
	Runner      PlanRunner
	Optimizer   PlanOptimizer
}

// Server exposes tools and resources over MCP.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *http.Server
}

// NewServer creates an MCP server with all tools and resources registered.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying MCP server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start serves MCP over streamable HTTP in the background. Requests
// are authenticated when an API key is configured.
func (s *Server) Start() error {
	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer)
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           AuthMiddleware(s.cfg.APIKey, streamable),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server error", "error", err)
		}
	}()
	slog.Info("mcp server started", "addr", s.cfg.Addr, "auth", s.cfg.APIKey != "")
	return nil
}

// Stop gracefully shuts down the MCP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func toolResultJSON(text string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(text)
}
