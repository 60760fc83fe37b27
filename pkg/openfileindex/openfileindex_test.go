package openfileindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartindex/core/pkg/parser"
	"github.com/smartindex/core/pkg/parser/queries"
	"github.com/smartindex/core/pkg/persistentindex"
	"github.com/smartindex/core/pkg/shardstore"
	"github.com/smartindex/core/pkg/workerpool"
)

func newTestRig(t *testing.T) (*Index, *persistentindex.Index, *workerpool.Pool) {
	t.Helper()
	store := shardstore.New(shardstore.DefaultConfig(t.TempDir()), nil)
	pm := parser.NewParserManager(nil)
	qm := queries.NewQueryManager(pm, nil)
	pool := workerpool.New(workerpool.Config{NumWorkers: 2}, pm, qm, nil)
	t.Cleanup(pool.Stop)

	persistent := persistentindex.New(persistentindex.Config{}, store, pool, nil)
	idx := New(Config{DebounceWindow: 30 * time.Millisecond}, pool, persistent, nil)
	return idx, persistent, pool
}

func TestDidOpenWithoutPriorPersistentEntryTriggersSelfHeal(t *testing.T) {
	idx, persistent, _ := newTestRig(t)
	content := []byte(`export function greet() { return 1; }`)

	require.NoError(t, idx.DidOpen(context.Background(), "file:///a.ts", content))

	assert.True(t, idx.IsOpen("file:///a.ts"))
	assert.NotEmpty(t, idx.GetSymbols("file:///a.ts"))

	// Self-heal should have pushed the extraction into the persistent
	// index even though ensureUpToDate was never called.
	assert.Len(t, persistent.FindDefinitions("greet"), 1)
}

func TestDidOpenMatchingHashSkipsSelfHeal(t *testing.T) {
	idx, persistent, _ := newTestRig(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	content := []byte(`export function greet() { return 1; }`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	require.NoError(t, persistent.EnsureUpToDate(context.Background(), []string{path}))
	statsBefore := persistent.Stats()

	require.NoError(t, idx.DidOpen(context.Background(), path, content))

	statsAfter := persistent.Stats()
	assert.Equal(t, statsBefore, statsAfter)
}

func TestDidCloseDropsMirror(t *testing.T) {
	idx, _, _ := newTestRig(t)
	require.NoError(t, idx.DidOpen(context.Background(), "file:///a.ts", []byte(`const x = 1;`)))
	assert.True(t, idx.IsOpen("file:///a.ts"))

	idx.DidClose("file:///a.ts")
	assert.False(t, idx.IsOpen("file:///a.ts"))
	assert.Nil(t, idx.GetSymbols("file:///a.ts"))
}

func TestDidChangeDebouncesAndReplaces(t *testing.T) {
	idx, _, _ := newTestRig(t)
	require.NoError(t, idx.DidOpen(context.Background(), "file:///a.ts", []byte(`export function first() {}`)))
	require.Len(t, idx.GetSymbols("file:///a.ts"), 1)

	idx.DidChange("file:///a.ts", []byte(`export function second() {}`))
	idx.DidChange("file:///a.ts", []byte(`export function third() {}`))

	require.Eventually(t, func() bool {
		syms := idx.GetSymbols("file:///a.ts")
		return len(syms) == 1 && syms[0].Name == "third"
	}, time.Second, 5*time.Millisecond)
}

func TestOpenURIsReflectsCurrentlyOpenFiles(t *testing.T) {
	idx, _, _ := newTestRig(t)
	require.NoError(t, idx.DidOpen(context.Background(), "file:///a.ts", []byte(`const x = 1;`)))
	require.NoError(t, idx.DidOpen(context.Background(), "file:///b.ts", []byte(`const y = 2;`)))

	open := idx.OpenURIs()
	assert.True(t, open["file:///a.ts"])
	assert.True(t, open["file:///b.ts"])
	assert.Len(t, open, 2)

	idx.DidClose("file:///a.ts")
	open = idx.OpenURIs()
	assert.False(t, open["file:///a.ts"])
}
