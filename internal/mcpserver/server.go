// Package mcpserver exposes the orchestrator as Model Context Protocol tools
// so desktop assistants can consult the majlis, feed its knowledge base and
// use its sandbox.
package mcpserver

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flemzord/majlis/internal/agent"
	"github.com/flemzord/majlis/internal/sandbox"
)

// DefaultConversation scopes tool calls that name no conversation.
const DefaultConversation = "mcp:local"

// Agent is the subset of orchestrator entry points served as tools.
type Agent interface {
	HandleText(ctx context.Context, req agent.Request) agent.Response
	IngestText(ctx context.Context, conversation, title, content string) agent.IngestResult
	Knowledge(ctx context.Context, conversation string) string
	StartDiscussion(conversation string) string
	StopDiscussion(conversation string) string
}

var _ Agent = (*agent.Orchestrator)(nil)

// Runner executes snippets. *sandbox.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, kind sandbox.Kind, source string) sandbox.Result
}

// Server registers the majlis tools on an MCP server.
type Server struct {
	agent  Agent
	runner Runner
	mcp    *server.MCPServer
	logger *slog.Logger
}

// New builds the MCP server. A nil runner leaves run_code unregistered.
func New(a Agent, runner Runner, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		agent:  a,
		runner: runner,
		logger: logger.With("component", "mcp"),
		mcp: server.NewMCPServer(
			"majlis",
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
			server.WithInstructions(instructions),
		),
	}
	s.registerTools()
	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio serves JSON-RPC over the given streams until ctx is done or
// stdin closes.
func (s *Server) ServeStdio(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	s.logger.Info("mcp: serving on stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, stdin, stdout)
}

func (s *Server) registerTools() {
	conversation := mcp.WithString("conversation",
		mcp.Description("Conversation id scoping memory and knowledge. Defaults to "+DefaultConversation+"."),
	)

	s.mcp.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Ask the council a question. Complex requests are planned, executed step by step and synthesized by several personas."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The question or request.")),
		conversation,
	), s.handleAsk)

	s.mcp.AddTool(mcp.NewTool("ingest_document",
		mcp.WithDescription("Add a text document to the conversation's knowledge base. Duplicates are detected by content hash."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Document title.")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Plain text or Markdown content.")),
		conversation,
	), s.handleIngest)

	s.mcp.AddTool(mcp.NewTool("list_knowledge",
		mcp.WithDescription("List the documents of the conversation's knowledge base."),
		conversation,
	), s.handleListKnowledge)

	s.mcp.AddTool(mcp.NewTool("start_discussion",
		mcp.WithDescription("Start the ambient persona discussion in a conversation."),
		conversation,
	), s.handleStartDiscussion)

	s.mcp.AddTool(mcp.NewTool("stop_discussion",
		mcp.WithDescription("Stop the ambient persona discussion in a conversation."),
		conversation,
	), s.handleStopDiscussion)

	if s.runner != nil {
		s.mcp.AddTool(mcp.NewTool("run_code",
			mcp.WithDescription("Run a Python or shell snippet in the sandbox and return its output."),
			mcp.WithString("code", mcp.Required(), mcp.Description("Source to execute.")),
			mcp.WithString("language",
				mcp.Description("python (default) or shell."),
				mcp.Enum("python", "shell"),
			),
		), s.handleRunCode)
	}
}

const instructions = `majlis is a council of AI personas with layered memory and a per-conversation knowledge base.
Use "ask" for questions, "ingest_document" to teach it, "list_knowledge" to inspect what it knows and
"run_code" to execute snippets in its sandbox.`
