package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// findDefinitionTool resolves a symbol at a specific editor position to its
// declaration(s), or looks a name up directly when no position is given.
func findDefinitionTool() mcp.Tool {
	return mcp.NewTool("find_definition",
		mcp.WithDescription("Find the declaration(s) of the symbol at a file position, or by name"),
		mcp.WithString("uri", mcp.Description("File URI of the position; ignored when name is given")),
		mcp.WithNumber("line", mcp.Description("1-based line of the symbol occurrence")),
		mcp.WithNumber("column", mcp.Description("1-based column of the symbol occurrence")),
		mcp.WithString("name", mcp.Description("Symbol name to look up directly, instead of a position")),
	)
}

// findReferencesTool returns every usage of a symbol name across the
// workspace (open buffers and the persisted index merged).
func findReferencesTool() mcp.Tool {
	return mcp.NewTool("find_references",
		mcp.WithDescription("Find every reference to a symbol name across the workspace"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Symbol name to search references for")),
	)
}

// searchSymbolsTool implements workspace-wide fuzzy symbol search.
func searchSymbolsTool() mcp.Tool {
	return mcp.NewTool("search_symbols",
		mcp.WithDescription("Fuzzy-search workspace symbols by name, ranked and capped"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Fuzzy query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum results to return (default 20)")),
		mcp.WithString("originUri", mcp.Description("File the search was issued from, for same-directory ranking bonus")),
	)
}

// getFileSymbolsTool lists every declaration in one file.
func getFileSymbolsTool() mcp.Tool {
	return mcp.NewTool("get_file_symbols",
		mcp.WithDescription("List every symbol declared in a file"),
		mcp.WithString("uri", mcp.Required(), mcp.Description("File URI")),
	)
}

// getFileImportsTool lists one file's import statements.
func getFileImportsTool() mcp.Tool {
	return mcp.NewTool("get_file_imports",
		mcp.WithDescription("List every import statement in a file"),
		mcp.WithString("uri", mcp.Required(), mcp.Description("File URI")),
	)
}

// indexFilesTool drives a bulk (re)index of a file list, streaming
// total/done/currentFile progress notifications while it runs
// (SPEC_FULL.md §6).
func indexFilesTool() mcp.Tool {
	return mcp.NewTool("index_files",
		mcp.WithDescription("(Re)index a list of files, reporting progress as each completes"),
		mcp.WithArray("uris", mcp.Required(), mcp.Description("File URIs to index")),
	)
}
