package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sha1n/relic-history/internal/app"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "relic-history"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "Revision history search",
		Long:    "Indexes the revision history of a repository and serves faceted search over it as an MCP server",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithFlags(cmd.Flags(), version)
		},
	}

	rootCmd.SetVersionTemplate(`{{.Version}}
`)
	app.RegisterFlags(rootCmd.Flags())

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithFlags(cmd.Flags(), version)
		},
	}
	app.RegisterFlags(serveCmd.Flags())

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Index revisions added since the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.RunIndexCommand(ctx, app.DefaultCommandParams(), cmd.Flags())
		},
	}
	app.RegisterIndexFlags(indexCmd.Flags())

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed revision history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunSearchCommand(app.DefaultCommandParams(), cmd.Flags(), args[0])
		},
	}
	app.RegisterSearchFlags(searchCmd.Flags())

	rootCmd.AddCommand(serveCmd, indexCmd, searchCmd)
	rootCmd.SetArgs(args)

	return rootCmd.ExecuteContext(context.Background())
}

func runWithFlags(flags *pflag.FlagSet, version string) error {
	return app.RunWithDeps(context.Background(), app.DefaultRunParams(), flags, version)
}
