package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/relic-history/internal/history"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string

	// History serves the revision history tools. Without it the server has no tools.
	History *history.Service
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.History != nil {
		history.RegisterSearchTool(s, cfg.History)
		history.RegisterRevisionTool(s, cfg.History)
	}

	return s
}
