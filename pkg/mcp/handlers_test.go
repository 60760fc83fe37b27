package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartindex/core/pkg/mergedindex"
	"github.com/smartindex/core/pkg/openfileindex"
	"github.com/smartindex/core/pkg/parser"
	"github.com/smartindex/core/pkg/parser/queries"
	"github.com/smartindex/core/pkg/persistentindex"
	"github.com/smartindex/core/pkg/shardstore"
	"github.com/smartindex/core/pkg/workerpool"
)

func testServer(t *testing.T) (*Server, *persistentindex.Index, string) {
	t.Helper()
	store := shardstore.New(shardstore.DefaultConfig(t.TempDir()), nil)
	pm := parser.NewParserManager(nil)
	qm := queries.NewQueryManager(pm, nil)
	pool := workerpool.New(workerpool.Config{NumWorkers: 2}, pm, qm, nil)
	t.Cleanup(pool.Stop)

	persistent := persistentindex.New(persistentindex.Config{}, store, pool, nil)
	openFiles := openfileindex.New(openfileindex.Config{}, pool, persistent, nil)
	index := mergedindex.New(openFiles, persistent)

	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte(`export function greet(name: string) { return name; }`), 0o644))
	require.NoError(t, persistent.EnsureUpToDate(context.Background(), []string{path}))

	return NewServer(index, persistent, nil), persistent, path
}

func makeRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestHandleFindDefinitionByName(t *testing.T) {
	s, _, _ := testServer(t)
	result, err := s.handleFindDefinition(context.Background(), makeRequest("find_definition", map[string]any{"name": "greet"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var syms []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultJSON(t, result)), &syms))
	require.Len(t, syms, 1)
	assert.Equal(t, "greet", syms[0]["Name"])
}

func TestHandleFindDefinitionByPosition(t *testing.T) {
	s, _, path := testServer(t)
	syms := s.index.GetFileSymbols(path)
	require.Len(t, syms, 1)

	result, err := s.handleFindDefinition(context.Background(), makeRequest("find_definition", map[string]any{
		"uri":    path,
		"line":   float64(syms[0].Location.Line),
		"column": float64(syms[0].Location.Column),
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var found []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultJSON(t, result)), &found))
	require.Len(t, found, 1)
}

func TestHandleFindDefinitionMissingArgsErrors(t *testing.T) {
	s, _, _ := testServer(t)
	result, err := s.handleFindDefinition(context.Background(), makeRequest("find_definition", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleFindReferences(t *testing.T) {
	s, persistent, _ := testServer(t)
	dir := t.TempDir()
	usePath := filepath.Join(dir, "use.ts")
	require.NoError(t, os.WriteFile(usePath, []byte("greet('x');"), 0o644))
	require.NoError(t, persistent.EnsureUpToDate(context.Background(), []string{usePath}))

	result, err := s.handleFindReferences(context.Background(), makeRequest("find_references", map[string]any{"name": "greet"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var refs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultJSON(t, result)), &refs))
	assert.NotEmpty(t, refs)
}

func TestHandleSearchSymbols(t *testing.T) {
	s, _, _ := testServer(t)
	result, err := s.handleSearchSymbols(context.Background(), makeRequest("search_symbols", map[string]any{"query": "gre"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var syms []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultJSON(t, result)), &syms))
	assert.NotEmpty(t, syms)
}

func TestHandleSearchSymbolsRequiresQuery(t *testing.T) {
	s, _, _ := testServer(t)
	result, err := s.handleSearchSymbols(context.Background(), makeRequest("search_symbols", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleGetFileSymbols(t *testing.T) {
	s, _, path := testServer(t)
	result, err := s.handleGetFileSymbols(context.Background(), makeRequest("get_file_symbols", map[string]any{"uri": path}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var syms []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultJSON(t, result)), &syms))
	require.Len(t, syms, 1)
}

func TestHandleGetFileImports(t *testing.T) {
	s, persistent, _ := testServer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "b.ts")
	require.NoError(t, os.WriteFile(path, []byte(`import { x } from 'mod';`), 0o644))
	require.NoError(t, persistent.EnsureUpToDate(context.Background(), []string{path}))

	result, err := s.handleGetFileImports(context.Background(), makeRequest("get_file_imports", map[string]any{"uri": path}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var imports []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultJSON(t, result)), &imports))
	require.Len(t, imports, 1)
}

func TestHandleIndexFilesIndexesNewFiles(t *testing.T) {
	s, _, _ := testServer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "c.ts")
	require.NoError(t, os.WriteFile(path, []byte(`export function freshlyAdded() {}`), 0o644))

	result, err := s.handleIndexFiles(context.Background(), makeRequest("index_files", map[string]any{
		"uris": []any{path},
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.NotEmpty(t, s.index.FindDefinitions("freshlyAdded"))
}

func TestHandleIndexFilesRequiresURIs(t *testing.T) {
	s, _, _ := testServer(t)
	result, err := s.handleIndexFiles(context.Background(), makeRequest("index_files", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
