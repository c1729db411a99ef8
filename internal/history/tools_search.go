package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/relic-history/internal/domain"
	"github.com/sha1n/relic-history/internal/search"
)

// SearchArgument defines search parameters.
type SearchArgument struct {
	Query      string   `json:"query" jsonschema_description:"Query in classic syntax, e.g. 'Author:alice AND Message:fix', 'RevisionNumber:[100 TO 200]' or 'Date:20070101'"`
	Sort       string   `json:"sort,omitempty" jsonschema_description:"Sort field with optional '-' prefix for descending, or '_score' for relevance (default: -RevisionNumber)"`
	Facets     []string `json:"facets,omitempty" jsonschema_description:"Category paths to count, e.g. 'Author' or 'Date/2007'"`
	FacetLimit int      `json:"facet_limit,omitempty" jsonschema_description:"Maximum labels per facet (default: 10)"`
	Limit      int      `json:"limit,omitempty" jsonschema_description:"Maximum number of revisions to return"`
}

// SearchHandler handles the search_revisions MCP tool.
type SearchHandler struct {
	service *Service
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service *Service) *SearchHandler {
	return &SearchHandler{
		service: service,
	}
}

// Handle executes the search and returns formatted results.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if !h.service.IsReady() {
		return errorResult("Search is not available. The revision history is still being indexed. Please try again later."), nil, nil
	}

	if strings.TrimSpace(args.Query) == "" {
		return errorResult("Query cannot be empty"), nil, nil
	}
	if args.Limit < 0 {
		return errorResult("Limit cannot be negative"), nil, nil
	}

	opts := SearchOptions{
		Query: args.Query,
		Sort:  args.Sort,
		Limit: args.Limit,
	}
	if len(args.Facets) > 0 {
		opts.Facets = make(map[string]int, len(args.Facets))
		for _, path := range args.Facets {
			opts.Facets[path] = args.FacetLimit
		}
	}

	result, err := h.service.Search(opts)
	if err != nil {
		var parseErr *search.ParseError
		switch {
		case errors.As(err, &parseErr):
			return errorResult(fmt.Sprintf("Invalid query: %s", parseErr)), nil, nil
		case errors.Is(err, domain.ErrConfiguration):
			return errorResult(fmt.Sprintf("Invalid search: %s", err)), nil, nil
		default:
			return errorResult(fmt.Sprintf("Search failed: %s", err)), nil, nil
		}
	}

	return textResult(formatSearchResult(result, args.Query)), nil, nil
}

// formatSearchResult renders hits and facet counts as markdown.
func formatSearchResult(result *search.Result, queryStr string) string {
	var sb strings.Builder

	if result.TotalHits == 0 {
		sb.WriteString(fmt.Sprintf("No revisions found for query: %s\n", queryStr))
	} else {
		sb.WriteString(fmt.Sprintf("Found %d revisions for '%s':\n\n", result.TotalHits, queryStr))
		for i, hit := range result.Hits {
			sb.WriteString(fmt.Sprintf("### %d. r%d", i+1, hit.RevisionNumber()))
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
			sb.WriteString(fmt.Sprintf("**Paths**: %d changed\n", len(hit.Paths())))
			if line := FirstLine(hit.Message()); line != "" {
				sb.WriteString(fmt.Sprintf("\n%s\n", line))
			}
			sb.WriteString("\n")
		}

		if result.TotalHits > uint64(len(result.Hits)) {
			sb.WriteString(fmt.Sprintf("... and %d more revisions\n", result.TotalHits-uint64(len(result.Hits))))
		}
	}

	for _, facet := range result.Facets {
		sb.WriteString(fmt.Sprintf("\n## Facet %s (%d)\n", facet.Path, facet.Value))
		if len(facet.Children) == 0 {
			sb.WriteString("(no values)\n")
		}
		for _, child := range facet.Children {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", child.Label, child.Count))
		}
	}

	return sb.String()
}

// FirstLine returns the first non-blank line of a message, trimmed.
func FirstLine(message string) string {
	for line := range strings.Lines(message) {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	result := textResult(text)
	result.IsError = true
	return result
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name: "search_revisions",
		Description: "Search the revision history of the indexed repository. " +
			"Fields: RevisionNumber, Revision, Author, Date, Message, Path, Change, CopyPath, CopyRevisionNumber, CopyRevision. " +
			"Unqualified terms search commit messages. Facets count revisions per Author or per Date/yyyy/MM/dd/HH.",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, service *Service) {
	handler := NewSearchHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
