package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources exposes read-only coordinator state as MCP resources.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"baton://status",
			"Coordinator Status",
			mcplib.WithResourceDescription("Live counts of active handoffs, pending messages and store connectivity"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleStatusResource,
	)
}

// jsonResource wraps a JSON document as the single content item of a read
// response.
func jsonResource(uri, text string) []mcplib.ResourceContents {
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		},
	}
}

func (s *Server) handleStatusResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Status == nil {
		return jsonResource(req.Params.URI, `{"error":"status service not configured"}`), nil
	}

	data, err := json.Marshal(s.deps.Status.Snapshot())
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, string(data)), nil
}
