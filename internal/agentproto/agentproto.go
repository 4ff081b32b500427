// Package agentproto exposes the query engine and store status as an
// MCP stdio server: search_context and get_status tools. Adapted from
// the teacher's cmd/mcp.go tool registration (search_codebase,
// get_file_summary, get_project_overview, list_indexed_files), cut
// down to the two tools this spec names and rewired onto the hybrid
// query engine instead of HybridRetrieve.
package agentproto

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"contextd/internal/query"
	"contextd/internal/store"
)

const defaultLimit = 10

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

// Server wraps an MCP server exposing search_context and get_status.
type Server struct {
	engine    *query.Engine
	st        store.Store
	modelName string
	modelDim  int
	mcp       *mcpserver.MCPServer
}

// New builds an agentproto Server. modelName/modelDim are echoed back
// by get_status the same way GET /status reports them.
func New(engine *query.Engine, st store.Store, modelName string, modelDim int) *Server {
	s := &Server{engine: engine, st: st, modelName: modelName, modelDim: modelDim}

	s.mcp = mcpserver.NewMCPServer("contextd", "1.0.0", mcpserver.WithToolCapabilities(false))
	s.mcp.AddTool(searchContextTool(), s.handleSearchContext)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return s
}

// Serve blocks, reading newline-delimited JSON-RPC requests from
// stdin and writing responses to stdout.
func (s *Server) Serve() error {
	return mcpserver.ServeStdio(s.mcp)
}

func searchContextTool() mcp.Tool {
	return mcp.NewTool("search_context",
		mcp.WithDescription("Hybrid semantic + lexical search over the locally indexed files. Returns ranked excerpts with file paths."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or keyword query"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default 10)"),
		),
		mcp.WithString("file_types",
			mcp.Description("Comma-separated list of file extensions to restrict the search to, e.g. \"go,md\""),
		),
		mcp.WithNumber("min_score",
			mcp.Description("Drop results scoring below this fused relevance threshold"),
		),
	)
}

func getStatusTool() mcp.Tool {
	return mcp.NewTool("get_status",
		mcp.WithDescription("Report indexing status: file/chunk counts, database size, and the active embedding model."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func (s *Server) handleSearchContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	queryText := req.GetString("query", "")
	if queryText == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	limit := req.GetInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	minScore := req.GetFloat("min_score", 0)

	var fileTypes []string
	if raw := req.GetString("file_types", ""); raw != "" {
		for _, ext := range strings.Split(raw, ",") {
			if ext = strings.TrimSpace(ext); ext != "" {
				fileTypes = append(fileTypes, ext)
			}
		}
	}

	results, err := s.engine.Search(ctx, queryText, limit, store.Predicates{
		FileTypes: fileTypes,
		MinScore:  minScore,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatSearchResults(queryText, results)), nil
}

func (s *Server) handleGetStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.st.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"indexed_files: %d\nfailed_files: %d\ntotal_chunks: %d\ndb_size_bytes: %d\nmodel_type: %s\nmodel_dim: %d",
		stats.FileCount, stats.FailedFiles, stats.ChunkCount, stats.DBSizeBytes, s.modelName, s.modelDim,
	)), nil
}

func formatSearchResults(queryText string, results []query.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: %q", queryText)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d)\n\n", queryText, len(results))
	for i, r := range results {
		fmt.Fprintf(&sb, "### %d. %s", i+1, r.Path)
		if r.Symbol != "" {
			fmt.Fprintf(&sb, " (%s)", r.Symbol)
		}
		fmt.Fprintf(&sb, "\n\nscore: %.4f, kind: %s\n\n%s\n\n", r.Score, r.Kind, r.Text)
	}
	return sb.String()
}
