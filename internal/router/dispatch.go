package router

import (
	"context"
	"log/slog"

	"github.com/flemzord/majlis/internal/agent"
	"github.com/flemzord/majlis/internal/channel"
	"github.com/flemzord/majlis/pkg/message"
)

// Agent is the set of orchestrator entry points the router dispatches to.
type Agent interface {
	HandleText(ctx context.Context, req agent.Request) agent.Response
	HandleVoice(ctx context.Context, conversation string, audio []byte, mimeType string, progress agent.ProgressFunc) agent.Response
	HandleImage(ctx context.Context, conversation string, image []byte, mimeType, caption string) agent.Response
	HandleDocumentIngest(ctx context.Context, conversation, name, mimeType string, data []byte) agent.IngestResult
	StartDiscussion(conversation string) string
	StopDiscussion(conversation string) string
	ClearMemory(ctx context.Context, conversation string) string
	Status(ctx context.Context, conversation string) string
	Knowledge(ctx context.Context, conversation string) string
	Help() string
}

var _ Agent = (*agent.Orchestrator)(nil)

// AgentHandler maps chat events onto orchestrator entry points: slash
// commands to the control entry points, media to the voice, image and
// document entry points, everything else to HandleText.
type AgentHandler struct {
	agent  Agent
	logger *slog.Logger
}

var _ Handler = (*AgentHandler)(nil)

// NewAgentHandler creates an AgentHandler.
func NewAgentHandler(a Agent, logger *slog.Logger) *AgentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentHandler{agent: a, logger: logger.With("component", "router")}
}

// Handle implements Handler.
func (h *AgentHandler) Handle(ctx context.Context, conv string, msg message.InboundMessage, reply ReplyFunc) {
	progress := agent.ProgressFunc(reply)

	if b, ok := msg.Media(); ok {
		switch b.Type {
		case message.BlockAudio:
			reply(ctx, h.agent.HandleVoice(ctx, conv, b.Data, b.MIMEType, progress).Text)
		case message.BlockImage:
			caption := b.Caption
			if caption == "" {
				caption = msg.TextContent()
			}
			reply(ctx, h.agent.HandleImage(ctx, conv, b.Data, b.MIMEType, caption).Text)
		case message.BlockFile:
			reply(ctx, h.agent.HandleDocumentIngest(ctx, conv, b.FileName, b.MIMEType, b.Data).Text)
		}
		return
	}

	text := msg.TextContent()
	if cmd, _, ok := channel.ParseCommand(text); ok {
		h.logger.Info("router: command", "conversation", conv, "command", cmd)
		reply(ctx, h.command(ctx, conv, cmd))
		return
	}
	reply(ctx, h.agent.HandleText(ctx, agent.Request{Conversation: conv, Text: text, Progress: progress}).Text)
}

func (h *AgentHandler) command(ctx context.Context, conv string, cmd channel.Command) string {
	switch cmd {
	case channel.CommandStart:
		return h.agent.StartDiscussion(conv)
	case channel.CommandStop:
		return h.agent.StopDiscussion(conv)
	case channel.CommandClear:
		return h.agent.ClearMemory(ctx, conv)
	case channel.CommandStatus:
		return h.agent.Status(ctx, conv)
	case channel.CommandKnowledge:
		return h.agent.Knowledge(ctx, conv)
	default:
		return h.agent.Help()
	}
}
