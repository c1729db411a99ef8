package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/relic-history/internal/config"
	"github.com/sha1n/relic-history/internal/history"
	mcputil "github.com/sha1n/relic-history/internal/mcp"
	"github.com/sha1n/relic-history/internal/metrics"
	"github.com/sha1n/relic-history/internal/sourcecontrol"
	"github.com/spf13/pflag"
)

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	StartSSEServer    func(*mcp.Server, *config.Settings, *metrics.Metrics) error
	CreateServer      func(*config.Settings, *metrics.Metrics) (*mcp.Server, func(), error)
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateMCPServer,
	}
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := loadValidSettings(params.LoadSettings, params.ValidSettings, flags)
	if err != nil {
		return err
	}

	configureLogging()
	slog.Info("Starting relic-history server", "version", version)
	config.Log(settings)

	m := metrics.New()
	mcpServer, cleanup, err := params.CreateServer(settings, m)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	if settings.Transport == "stdio" {
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return mcpServer.Run(ctx, transport)
	}

	slog.Info("Starting SSE server", "host", settings.Host, "port", settings.Port)
	return params.StartSSEServer(mcpServer, settings, m)
}

func loadValidSettings(
	load func(*pflag.FlagSet) (*config.Settings, error),
	validate func(*config.Settings) error,
	flags *pflag.FlagSet,
) (*config.Settings, error) {
	settings, err := load(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	// Validate settings for conflicting configurations
	if err := validate(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return settings, nil
}

// configureLogging always uses stderr; stdout carries the stdio transport and command output
func configureLogging() {
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))
}

// newSource creates the revision source configured in settings
func newSource(settings *config.Settings) (sourcecontrol.RevisionSource, error) {
	return sourcecontrol.NewSource(sourcecontrol.Options{
		Provider: settings.Source.Provider,
		Location: settings.Source.Location,
		Username: settings.Source.Username,
		Password: settings.Source.Password,
	})
}

// CreateMCPServer creates the MCP server with the history tools registered.
// The history service syncs on start and then in the background until cleanup.
func CreateMCPServer(settings *config.Settings, m *metrics.Metrics) (*mcp.Server, func(), error) {
	src, err := newSource(settings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create revision source: %w", err)
	}

	svc, err := history.NewService(settings, src, m)
	if err != nil {
		_ = src.Close()
		return nil, nil, fmt.Errorf("failed to create history service: %w", err)
	}

	// Initialize in background context (not tied to request context)
	if err := svc.Initialize(context.Background()); err != nil {
		slog.Error("History initialization failed", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)

	cleanup := func() {
		cancel()
		if err := svc.Close(); err != nil {
			slog.Error("Failed to close history service", "error", err)
		}
	}

	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:    "relic-history",
		Version: "1.0.0",
		History: svc,
	})

	return server, cleanup, nil
}
