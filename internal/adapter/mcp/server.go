// Package mcp exposes the coordinator to MCP-compatible agent tooling
// over streamable HTTP.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/relaykit/baton/internal/domain/handoff"
	"github.com/relaykit/baton/internal/domain/message"
	"github.com/relaykit/baton/internal/service"
)

// MessageSender sends and reads agent messages.
type MessageSender interface {
	Send(ctx context.Context, req *message.CreateRequest) (*message.Message, error)
	Get(ctx context.Context, id string) (*message.Message, error)
}

// HandoffCoordinator drives the handoff lifecycle.
type HandoffCoordinator interface {
	Initiate(ctx context.Context, req *handoff.CreateRequest) (*handoff.Handoff, error)
	Complete(ctx context.Context, id string, received map[string]json.RawMessage) (*handoff.Handoff, error)
	Get(ctx context.Context, id string) (*handoff.Handoff, error)
}

// StatusReader reports a point-in-time coordinator snapshot.
type StatusReader interface {
	Snapshot() service.Status
}

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	// APIKey enables bearer-token auth on the endpoint when non-empty.
	APIKey string
}

// ServerDeps carries the coordinator services the MCP surface exposes.
// A nil field disables the corresponding tools with a tool-result error.
type ServerDeps struct {
	Messages MessageSender
	Handoffs HandoffCoordinator
	Status   StatusReader
}

// Server exposes coordinator tools and resources over MCP.
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
			mcpserver.WithToolCapabilities(true),
			mcpserver.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start binds the configured address and serves MCP over streamable HTTP
// at /mcp in the background. It fails only when the listener cannot be
// bound; tool failures surface inside tool results.
func (s *Server) Start() error {
	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer)
	mux := http.NewServeMux()
	mux.Handle("/mcp", streamable)
	mux.Handle("/mcp/", streamable)

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("mcp listen: %w", err)
	}

	s.httpServer = &http.Server{
		Handler:           AuthMiddleware(s.cfg.APIKey, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("mcp server listening", "addr", ln.Addr().String())
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the MCP listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// toolResultJSON wraps an already-encoded JSON document in a text result.
func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}
