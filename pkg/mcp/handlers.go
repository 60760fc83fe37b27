package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// jsonResult marshals v as the single text-content item of a successful
// tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal result: %w", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(b)}}}, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: msg}},
		IsError: true,
	}
}

func (s *Server) handleFindDefinition(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	if name, ok := args["name"].(string); ok && name != "" {
		return jsonResult(s.index.FindDefinitions(name))
	}

	uri, _ := args["uri"].(string)
	line, hasLine := args["line"].(float64)
	column, hasColumn := args["column"].(float64)
	if uri == "" || !hasLine || !hasColumn {
		return errorResult("find_definition requires either {name} or {uri, line, column}"), nil
	}
	return jsonResult(s.index.FindDefinitionAt(uri, uint32(line), uint32(column)))
}

func (s *Server) handleFindReferences(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := req.GetArguments()["name"].(string)
	if name == "" {
		return errorResult("find_references requires {name}"), nil
	}
	return jsonResult(s.index.FindReferencesByName(name))
}

func (s *Server) handleSearchSymbols(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)
	if query == "" {
		return errorResult("search_symbols requires {query}"), nil
	}
	limit := 20
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}
	originURI, _ := args["originUri"].(string)
	return jsonResult(s.index.SearchSymbols(query, limit, originURI))
}

func (s *Server) handleGetFileSymbols(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uri, _ := req.GetArguments()["uri"].(string)
	if uri == "" {
		return errorResult("get_file_symbols requires {uri}"), nil
	}
	return jsonResult(s.index.GetFileSymbols(uri))
}

func (s *Server) handleGetFileImports(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uri, _ := req.GetArguments()["uri"].(string)
	if uri == "" {
		return errorResult("get_file_imports requires {uri}"), nil
	}
	return jsonResult(s.index.GetFileImports(uri))
}

// handleIndexFiles drives a bulk reindex, forwarding total/done/currentFile
// progress to the client as a standard MCP progress notification whenever
// the request carries a progress token (SPEC_FULL.md §6).
func (s *Server) handleIndexFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, ok := req.GetArguments()["uris"].([]any)
	if !ok || len(raw) == 0 {
		return errorResult("index_files requires a non-empty {uris} array"), nil
	}
	uris := make([]string, 0, len(raw))
	for _, v := range raw {
		if u, ok := v.(string); ok {
			uris = append(uris, u)
		}
	}

	var token mcp.ProgressToken
	if req.Params.Meta != nil {
		token = req.Params.Meta.ProgressToken
	}
	mcpServer := server.ServerFromContext(ctx)

	err := s.persistent.EnsureUpToDateWithProgress(ctx, uris, func(done, total int, currentFile string) {
		if token == nil || mcpServer == nil {
			return
		}
		_ = mcpServer.SendNotificationToClient(ctx, "notifications/progress", map[string]any{
			"progressToken": token,
			"progress":      done,
			"total":         total,
			"currentFile":   currentFile,
		})
	})
	if err != nil {
		return errorResult(fmt.Sprintf("index_files failed: %v", err)), nil
	}
	return jsonResult(s.persistent.Stats())
}
