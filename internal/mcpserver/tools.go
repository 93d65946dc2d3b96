package mcpserver

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flemzord/majlis/internal/agent"
	"github.com/flemzord/majlis/internal/sandbox"
)

func conversationArg(req mcp.CallToolRequest) string {
	if conv := strings.TrimSpace(req.GetString("conversation", "")); conv != "" {
		return conv
	}
	return DefaultConversation
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	conv := conversationArg(req)

	var progress []string
	resp := s.agent.HandleText(ctx, agent.Request{
		Conversation: conv,
		Text:         text,
		Progress: func(_ context.Context, msg string) {
			progress = append(progress, msg)
		},
	})
	s.logger.Debug("mcp: ask", "conversation", conv, "route", resp.Route, "steps", resp.Steps)

	out := resp.Text
	if len(progress) > 0 {
		out = strings.Join(progress, "\n\n") + "\n\n" + resp.Text
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleIngest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := s.agent.IngestText(ctx, conversationArg(req), title, content)
	return mcp.NewToolResultText(res.Text), nil
}

func (s *Server) handleListKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.agent.Knowledge(ctx, conversationArg(req))), nil
}

func (s *Server) handleStartDiscussion(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.agent.StartDiscussion(conversationArg(req))), nil
}

func (s *Server) handleStopDiscussion(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.agent.StopDiscussion(conversationArg(req))), nil
}

func (s *Server) handleRunCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind := sandbox.KindCode
	if req.GetString("language", "python") == "shell" {
		kind = sandbox.KindShell
	}

	res := s.runner.Run(ctx, kind, code)
	if res.Outcome == sandbox.OutcomeError {
		return mcp.NewToolResultError(res.String()), nil
	}
	return mcp.NewToolResultText(res.String()), nil
}
