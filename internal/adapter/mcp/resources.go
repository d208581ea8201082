package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"shatteredmoon://graphs",
			"Dependency Graphs",
			mcplib.WithResourceDescription("List of all dependency graphs with conflict state"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleGraphsResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			"shatteredmoon://plans",
			"Execution Plans",
			mcplib.WithResourceDescription("List of all execution plans with phases and allocations"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handlePlansResource,
	)
}

func (s *Server) handleGraphsResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Coordinator == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"coordinator not configured"}`,
			},
		}, nil
	}
	graphs := s.deps.Coordinator.ListGraphs()
	data, err := json.Marshal(graphs)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handlePlansResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Planner == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"planner not configured"}`,
			},
		}, nil
	}
	plans := s.deps.Planner.ListPlans()
	data, err := json.Marshal(plans)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
