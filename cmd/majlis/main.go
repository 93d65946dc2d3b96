// Package main is the entry point for the majlis CLI.
package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/flemzord/majlis/internal/core"
	"github.com/flemzord/majlis/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command that builds the application.
type globalFlags struct {
	configPath string
	dataDir    string
	logLevel   string
}

func (f *globalFlags) params() app.RunParams {
	return app.RunParams{
		ConfigPath: f.configPath,
		Version:    version,
		Commit:     commit,
		Date:       date,
		DataDir:    f.dataDir,
		LogLevel:   f.logLevel,
	}
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "majlis",
		Short:         "A council of AI personas with layered memory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "Override the data directory")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides log_level")

	root.AddCommand(
		versionCmd(),
		startCmd(flags),
		configCmd(flags),
		initCmd(),
		serviceCmd(flags),
		mcpCmd(flags),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "majlis %s (commit: %s, built: %s)\n", version, commit, date)
	groups := core.ModulesByNamespace()
	if len(groups) == 0 {
		fmt.Fprintln(w, "\nNo compiled modules.")
		return
	}
	fmt.Fprintln(w, "\nCompiled modules:")
	for _, ns := range slices.Sorted(maps.Keys(groups)) {
		fmt.Fprintf(w, "  %s:\n", ns)
		for _, id := range groups[ns] {
			fmt.Fprintf(w, "    %s\n", id)
		}
	}
}

func startCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start majlis with all configured modules",
		RunE: func(_ *cobra.Command, _ []string) error {
			return app.Run(flags.params())
		},
	}
}

func configCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration and provision every module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := flags.params()
			params.ConfigPath = args[0]
			rt, err := app.Build(params)
			if err != nil {
				return err
			}
			defer rt.App.Close()

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Configuration OK (%d modules)\n", len(rt.ModuleIDs))
			for _, id := range rt.ModuleIDs {
				fmt.Fprintf(w, "  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}
