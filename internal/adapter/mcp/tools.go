package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/relaykit/baton/internal/domain/handoff"
	"github.com/relaykit/baton/internal/domain/message"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.sendMessageTool(),
		s.getMessageTool(),
		s.initiateHandoffTool(),
		s.completeHandoffTool(),
		s.getHandoffTool(),
		s.getStatusTool(),
	)
}

func (s *Server) sendMessageTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("send_message",
		mcplib.WithDescription("Send a direct message from one agent to another"),
		mcplib.WithString("from",
			mcplib.Required(),
			mcplib.Description("Sender agent ID"),
		),
		mcplib.WithString("to",
			mcplib.Required(),
			mcplib.Description("Recipient agent ID"),
		),
		mcplib.WithString("content",
			mcplib.Required(),
			mcplib.Description("Message payload as a JSON document"),
		),
		mcplib.WithString("priority",
			mcplib.Description("Delivery priority: low, normal or high"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleSendMessage,
	}
}

func (s *Server) getMessageTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_message",
		mcplib.WithDescription("Get a message by ID"),
		mcplib.WithString("message_id",
			mcplib.Required(),
			mcplib.Description("The message ID to look up"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetMessage,
	}
}

func (s *Server) initiateHandoffTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("initiate_handoff",
		mcplib.WithDescription("Initiate a deliverable handoff between two agents"),
		mcplib.WithString("from",
			mcplib.Required(),
			mcplib.Description("Agent handing the work off"),
		),
		mcplib.WithString("to",
			mcplib.Required(),
			mcplib.Description("Agent taking the work over"),
		),
		mcplib.WithString("deliverables",
			mcplib.Required(),
			mcplib.Description(`JSON array of required deliverables, e.g. [{"name":"report","rule":"object"}]`),
		),
		mcplib.WithNumber("timeout_ms",
			mcplib.Description("Handoff timeout in milliseconds"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleInitiateHandoff,
	}
}

func (s *Server) completeHandoffTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("complete_handoff",
		mcplib.WithDescription("Deliver artifacts for a pending handoff and complete it"),
		mcplib.WithString("handoff_id",
			mcplib.Required(),
			mcplib.Description("The handoff to complete"),
		),
		mcplib.WithString("received",
			mcplib.Required(),
			mcplib.Description("JSON object mapping deliverable names to delivered values"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleCompleteHandoff,
	}
}

func (s *Server) getHandoffTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_handoff",
		mcplib.WithDescription("Get a handoff by ID"),
		mcplib.WithString("handoff_id",
			mcplib.Required(),
			mcplib.Description("The handoff ID to look up"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetHandoff,
	}
}

func (s *Server) getStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_status",
		mcplib.WithDescription("Get coordinator status: active handoffs, pending messages, store connectivity"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetStatus,
	}
}

func (s *Server) handleSendMessage(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Messages == nil {
		return mcplib.NewToolResultError("message service not configured"), nil
	}
	args := req.GetArguments()
	from, ok := args["from"].(string)
	if !ok || from == "" {
		return mcplib.NewToolResultError("from is required"), nil
	}
	to, ok := args["to"].(string)
	if !ok || to == "" {
		return mcplib.NewToolResultError("to is required"), nil
	}
	content, ok := args["content"].(string)
	if !ok || content == "" {
		return mcplib.NewToolResultError("content is required"), nil
	}
	if !json.Valid([]byte(content)) {
		return mcplib.NewToolResultError("content must be a valid JSON document"), nil
	}
	cr := &message.CreateRequest{
		From:    from,
		To:      to,
		Content: json.RawMessage(content),
	}
	if priority, ok := args["priority"].(string); ok {
		cr.Priority = message.Priority(priority)
	}
	msg, err := s.deps.Messages.Send(ctx, cr)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to send message", err), nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal message", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetMessage(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Messages == nil {
		return mcplib.NewToolResultError("message service not configured"), nil
	}
	args := req.GetArguments()
	messageID, ok := args["message_id"].(string)
	if !ok || messageID == "" {
		return mcplib.NewToolResultError("message_id is required"), nil
	}
	msg, err := s.deps.Messages.Get(ctx, messageID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get message %s", messageID), err,
		), nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal message", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleInitiateHandoff(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Handoffs == nil {
		return mcplib.NewToolResultError("handoff service not configured"), nil
	}
	args := req.GetArguments()
	from, ok := args["from"].(string)
	if !ok || from == "" {
		return mcplib.NewToolResultError("from is required"), nil
	}
	to, ok := args["to"].(string)
	if !ok || to == "" {
		return mcplib.NewToolResultError("to is required"), nil
	}
	rawDeliverables, ok := args["deliverables"].(string)
	if !ok || rawDeliverables == "" {
		return mcplib.NewToolResultError("deliverables is required"), nil
	}
	var deliverables []handoff.Requirement
	if err := json.Unmarshal([]byte(rawDeliverables), &deliverables); err != nil {
		return mcplib.NewToolResultErrorFromErr("deliverables must be a JSON array", err), nil
	}
	cr := &handoff.CreateRequest{
		From:         from,
		To:           to,
		Deliverables: deliverables,
	}
	if timeoutMs, ok := args["timeout_ms"].(float64); ok {
		cr.TimeoutMs = int64(timeoutMs)
	}
	h, err := s.deps.Handoffs.Initiate(ctx, cr)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to initiate handoff", err), nil
	}
	data, err := json.Marshal(h)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal handoff", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleCompleteHandoff(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Handoffs == nil {
		return mcplib.NewToolResultError("handoff service not configured"), nil
	}
	args := req.GetArguments()
	handoffID, ok := args["handoff_id"].(string)
	if !ok || handoffID == "" {
		return mcplib.NewToolResultError("handoff_id is required"), nil
	}
	rawReceived, ok := args["received"].(string)
	if !ok || rawReceived == "" {
		return mcplib.NewToolResultError("received is required"), nil
	}
	var received map[string]json.RawMessage
	if err := json.Unmarshal([]byte(rawReceived), &received); err != nil {
		return mcplib.NewToolResultErrorFromErr("received must be a JSON object", err), nil
	}
	h, err := s.deps.Handoffs.Complete(ctx, handoffID, received)
	if err != nil {
		// A rejected completion keeps the handoff pending; return the
		// report so the caller can see what is still owed.
		var verr *handoff.ValidationError
		if errors.As(err, &verr) {
			if report, merr := json.Marshal(verr.Report); merr == nil {
				return mcplib.NewToolResultError("handoff incomplete: " + string(report)), nil
			}
		}
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to complete handoff %s", handoffID), err,
		), nil
	}
	data, err := json.Marshal(h)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal handoff", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetHandoff(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Handoffs == nil {
		return mcplib.NewToolResultError("handoff service not configured"), nil
	}
	args := req.GetArguments()
	handoffID, ok := args["handoff_id"].(string)
	if !ok || handoffID == "" {
		return mcplib.NewToolResultError("handoff_id is required"), nil
	}
	h, err := s.deps.Handoffs.Get(ctx, handoffID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get handoff %s", handoffID), err,
		), nil
	}
	data, err := json.Marshal(h)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal handoff", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetStatus(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Status == nil {
		return mcplib.NewToolResultError("status service not configured"), nil
	}
	data, err := json.Marshal(s.deps.Status.Snapshot())
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal status", err), nil
	}
	return toolResultJSON(string(data)), nil
}
