package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/relic-history/internal/domain"
	"github.com/sha1n/relic-history/internal/search"
)

// RevisionArgument defines get_revision parameters.
type RevisionArgument struct {
	Revision int64 `json:"revision" jsonschema_description:"Revision number as shown by search_revisions (e.g. 1234)"`
}

// RevisionHandler handles the get_revision MCP tool.
type RevisionHandler struct {
	service *Service
}

// NewRevisionHandler creates a new revision handler.
func NewRevisionHandler(service *Service) *RevisionHandler {
	return &RevisionHandler{
		service: service,
	}
}

// Handle looks up one indexed revision and returns its details.
func (h *RevisionHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args RevisionArgument) (*mcp.CallToolResult, any, error) {
	if !h.service.IsReady() {
		return errorResult("Revision lookup is not available. The revision history is still being indexed. Please try again later."), nil, nil
	}

	if args.Revision < 0 {
		return errorResult("Revision cannot be negative"), nil, nil
	}

	hit, found, err := h.service.Revision(args.Revision)
	if err != nil {
		return errorResult(fmt.Sprintf("Lookup failed: %s", err)), nil, nil
	}
	if !found {
		return errorResult(fmt.Sprintf("Revision not found: %d", args.Revision)), nil, nil
	}

	return textResult(formatRevision(hit)), nil, nil
}

// formatRevision renders the stored fields of a revision as markdown.
func formatRevision(hit search.Hit) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Revision**: %d", hit.RevisionNumber()))
	if rev := hit.Revision(); rev != "" && rev != fmt.Sprint(hit.RevisionNumber()) {
		sb.WriteString(fmt.Sprintf(" (%s)", rev))
	}
	sb.WriteString("\n")

	if author := hit.Author(); author != "" {
		sb.WriteString(fmt.Sprintf("**Author**: %s\n", author))
	}
	if date, ok := hit.Date(); ok {
		sb.WriteString(fmt.Sprintf("**Date**: %s\n", date.Format("2006-01-02 15:04:05 MST")))
	}

	paths, changes := hit.Paths(), hit.Changes()
	if len(paths) > 0 {
		sb.WriteString("\n**Changed paths**:\n")
		for i, path := range paths {
			change := ""
			if i < len(changes) {
				change = changes[i]
			}
			sb.WriteString(fmt.Sprintf("- %s %s\n", change, path))
		}
	}

	copies, copyRevs := hit.Texts(domain.FieldCopyPath), hit.Texts(domain.FieldCopyRevision)
	if len(copies) > 0 {
		sb.WriteString("\n**Copied from**:\n")
		for i, path := range copies {
			if i < len(copyRevs) {
				sb.WriteString(fmt.Sprintf("- %s@%s\n", path, copyRevs[i]))
			} else {
				sb.WriteString(fmt.Sprintf("- %s\n", path))
			}
		}
	}

	if msg := strings.TrimSpace(hit.Message()); msg != "" {
		sb.WriteString(fmt.Sprintf("\n```\n%s\n```\n", msg))
	}
	return sb.String()
}

// GetToolDefinition returns the MCP tool definition.
func (h *RevisionHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_revision",
		Description: "Show the author, date, message and changed paths of one indexed revision",
	}
}

// RegisterRevisionTool registers the get_revision tool with an MCP server.
func RegisterRevisionTool(server *mcp.Server, service *Service) {
	handler := NewRevisionHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
