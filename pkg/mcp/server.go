// Package mcp adapts pkg/mergedindex's read surface onto
// github.com/mark3labs/mcp-go tools (spec.md §6's "host request protocol"
// seam, SPEC_FULL.md §6). Grounded on the teacher's pkg/mcp: the same
// server.ServerOption assembly (WithToolCapabilities, WithRecovery,
// WithToolHandlerMiddleware) and the same server.ServerTool wiring list in
// NewServer, pointed at five symbol-index read operations plus the
// index_files bulk-index operation instead of the teacher's
// catalog/validator tool set.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/smartindex/core/pkg/mcplog"
	"github.com/smartindex/core/pkg/mergedindex"
	"github.com/smartindex/core/pkg/persistentindex"
)

const serverVersion = "0.1.0-dev"

// Server implements the MCP server exposing the symbol index's read
// operations and its bulk-index operation.
type Server struct {
	mcpServer  *server.MCPServer
	index      *mergedindex.Index
	persistent *persistentindex.Index
	logger     *mcplog.Logger // may be nil if logging is disabled
}

// NewServer creates a new MCP server backed by index (the merged read
// façade) and persistent (needed directly by index_files, since bulk
// indexing isn't itself a mergedindex read operation). Pass nil for logger
// to disable JSONL tool-call logging.
func NewServer(index *mergedindex.Index, persistent *persistentindex.Index, logger *mcplog.Logger) *Server {
	s := &Server{index: index, persistent: persistent, logger: logger}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if logger != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}

	s.mcpServer = server.NewMCPServer("smartindex", serverVersion, opts...)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: findDefinitionTool(), Handler: s.handleFindDefinition},
		server.ServerTool{Tool: findReferencesTool(), Handler: s.handleFindReferences},
		server.ServerTool{Tool: searchSymbolsTool(), Handler: s.handleSearchSymbols},
		server.ServerTool{Tool: getFileSymbolsTool(), Handler: s.handleGetFileSymbols},
		server.ServerTool{Tool: getFileImportsTool(), Handler: s.handleGetFileImports},
		server.ServerTool{Tool: indexFilesTool(), Handler: s.handleIndexFiles},
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// Close shuts down the logger if one is active. Should be deferred after NewServer.
func (s *Server) Close() error {
	if s.logger != nil {
		return s.logger.Close()
	}
	return nil
}
