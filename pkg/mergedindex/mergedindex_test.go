package mergedindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartindex/core/pkg/openfileindex"
	"github.com/smartindex/core/pkg/parser"
	"github.com/smartindex/core/pkg/parser/queries"
	"github.com/smartindex/core/pkg/persistentindex"
	"github.com/smartindex/core/pkg/shardstore"
	"github.com/smartindex/core/pkg/types"
	"github.com/smartindex/core/pkg/workerpool"
)

func newTestRig(t *testing.T) (*Index, *persistentindex.Index, *openfileindex.Index) {
	t.Helper()
	store := shardstore.New(shardstore.DefaultConfig(t.TempDir()), nil)
	pm := parser.NewParserManager(nil)
	qm := queries.NewQueryManager(pm, nil)
	pool := workerpool.New(workerpool.Config{NumWorkers: 2}, pm, qm, nil)
	t.Cleanup(pool.Stop)

	persistent := persistentindex.New(persistentindex.Config{}, store, pool, nil)
	openFiles := openfileindex.New(openfileindex.Config{}, pool, persistent, nil)
	return New(openFiles, persistent), persistent, openFiles
}

func TestFindDefinitionsMergesBothSources(t *testing.T) {
	merged, persistent, openFiles := newTestRig(t)
	dir := t.TempDir()

	onDisk := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(onDisk, []byte(`export function fromDisk() {}`), 0o644))
	require.NoError(t, persistent.EnsureUpToDate(context.Background(), []string{onDisk}))

	require.NoError(t, openFiles.DidOpen(context.Background(), "file:///open.ts", []byte(`export function fromBuffer() {}`)))

	defs := merged.FindDefinitions("fromDisk")
	require.Len(t, defs, 1)

	defs = merged.FindDefinitions("fromBuffer")
	require.Len(t, defs, 1)
}

func TestGetFileSymbolsOpenFileWinsOnURIOverlap(t *testing.T) {
	merged, persistent, openFiles := newTestRig(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")

	require.NoError(t, os.WriteFile(path, []byte(`export function stale() {}`), 0o644))
	require.NoError(t, persistent.EnsureUpToDate(context.Background(), []string{path}))
	require.Len(t, merged.FindDefinitions("stale"), 1)

	// Open the same URI with different (unsaved) content; the merged view
	// should now surface the buffer's symbol instead of the stale one,
	// without duplicating the location.
	require.NoError(t, openFiles.DidOpen(context.Background(), path, []byte(`export function fresh() {}`)))

	assert.Empty(t, merged.GetFileSymbols(path+"-doesnotexist"))
	syms := merged.GetFileSymbols(path)
	require.Len(t, syms, 1)
	assert.Equal(t, "fresh", syms[0].Name)
}

func TestSearchSymbolsAppliesOpenFileContextBonus(t *testing.T) {
	merged, persistent, openFiles := newTestRig(t)
	dir := t.TempDir()

	diskPath := filepath.Join(dir, "disk.ts")
	require.NoError(t, os.WriteFile(diskPath, []byte(`export function loadData() {}`), 0o644))
	require.NoError(t, persistent.EnsureUpToDate(context.Background(), []string{diskPath}))

	require.NoError(t, openFiles.DidOpen(context.Background(), "file:///open/loadStuff.ts", []byte(`export function loadStuff() {}`)))

	results := merged.SearchSymbols("load", 10, "")
	require.NotEmpty(t, results)

	// The open-file symbol should outrank the on-disk one thanks to the
	// open-file context bonus, even though both are valid subsequence
	// matches of comparable raw score.
	assert.Equal(t, "loadStuff", results[0].Name)
}

func TestFindDefinitionAtResolvesDeclarationPosition(t *testing.T) {
	merged, persistent, _ := newTestRig(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte(`export function greet() {}`), 0o644))
	require.NoError(t, persistent.EnsureUpToDate(context.Background(), []string{path}))

	syms := merged.GetFileSymbols(path)
	require.Len(t, syms, 1)

	at := merged.FindDefinitionAt(path, syms[0].Location.Line, syms[0].Location.Column)
	require.Len(t, at, 1)
	assert.Equal(t, "greet", at[0].Name)
}

func TestFindDefinitionAtResolvesReferencePosition(t *testing.T) {
	merged, persistent, _ := newTestRig(t)
	dir := t.TempDir()

	def := filepath.Join(dir, "def.ts")
	require.NoError(t, os.WriteFile(def, []byte(`export function greet() {}`), 0o644))

	use := filepath.Join(dir, "use.ts")
	require.NoError(t, os.WriteFile(use, []byte("import { greet } from './def';\ngreet();"), 0o644))

	require.NoError(t, persistent.EnsureUpToDate(context.Background(), []string{def, use}))

	refs := merged.GetFileReferences(use)
	require.NotEmpty(t, refs)

	var callRef *types.IndexedReference
	for i := range refs {
		if refs[i].SymbolName == "greet" {
			callRef = &refs[i]
			break
		}
	}
	require.NotNil(t, callRef, "expected a reference to greet in use.ts")

	at := merged.FindDefinitionAt(use, callRef.Location.Line, callRef.Location.Column)
	require.NotEmpty(t, at)
	assert.Equal(t, def, at[0].Location.URI)
}

func TestGetFileImportsPrefersOpenBuffer(t *testing.T) {
	merged, _, openFiles := newTestRig(t)
	require.NoError(t, openFiles.DidOpen(context.Background(), "file:///a.ts", []byte(`import { x } from 'mod';`)))

	imports := merged.GetFileImports("file:///a.ts")
	require.Len(t, imports, 1)
	assert.Equal(t, "mod", imports[0].ModuleSpecifier)
}
