package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flemzord/majlis/internal/mcpserver"
	"github.com/flemzord/majlis/pkg/app"
)

func mcpCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the orchestrator as MCP tools over stdio",
		Long: `Serve ask, ingest_document, list_knowledge, run_code, start_discussion and
stop_discussion over the Model Context Protocol on stdin/stdout.

Channel and gateway modules are not started in this mode. Logs go to stderr.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			params := flags.params()
			params.Headless = true
			return serveMCP(params)
		},
	}
}

func serveMCP(params app.RunParams) error {
	rt, err := app.Build(params)
	if err != nil {
		return err
	}
	if err := rt.App.Start(); err != nil {
		return err
	}
	defer rt.App.Stop()

	var runner mcpserver.Runner
	if rt.Sandbox != nil {
		runner = rt.Sandbox
	}
	srv := mcpserver.New(rt.Orchestrator, runner, params.Version, rt.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
}
