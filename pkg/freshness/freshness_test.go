package freshness

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartindex/core/pkg/openfileindex"
	"github.com/smartindex/core/pkg/parser"
	"github.com/smartindex/core/pkg/parser/queries"
	"github.com/smartindex/core/pkg/persistentindex"
	"github.com/smartindex/core/pkg/shardstore"
	"github.com/smartindex/core/pkg/workerpool"
)

func newTestPersistentIndex(t *testing.T) *persistentindex.Index {
	t.Helper()
	store := shardstore.New(shardstore.DefaultConfig(t.TempDir()), nil)
	pm := parser.NewParserManager(nil)
	qm := queries.NewQueryManager(pm, nil)
	pool := workerpool.New(workerpool.Config{NumWorkers: 2}, pm, qm, nil)
	t.Cleanup(pool.Stop)
	return persistentindex.New(persistentindex.Config{}, store, pool, nil)
}

func TestDriverForwardsEditorEventsToOpenFileIndex(t *testing.T) {
	store := shardstore.New(shardstore.DefaultConfig(t.TempDir()), nil)
	pm := parser.NewParserManager(nil)
	qm := queries.NewQueryManager(pm, nil)
	pool := workerpool.New(workerpool.Config{NumWorkers: 1}, pm, qm, nil)
	t.Cleanup(pool.Stop)
	persistent := persistentindex.New(persistentindex.Config{}, store, pool, nil)
	openFiles := openfileindex.New(openfileindex.Config{}, pool, persistent, nil)

	driver := New(persistent, openFiles, nil)
	require.NoError(t, driver.DidOpen(context.Background(), "file:///a.ts", []byte(`const x = 1;`)))
	assert.True(t, openFiles.IsOpen("file:///a.ts"))

	driver.DidClose("file:///a.ts")
	assert.False(t, openFiles.IsOpen("file:///a.ts"))
}

func TestFileWatcherDetectsNewFile(t *testing.T) {
	persistent := newTestPersistentIndex(t)
	dir := t.TempDir()

	fw, err := NewFileWatcher(persistent, WatcherOptions{
		Stabilization: 20 * time.Millisecond,
		PollInterval:  5 * time.Millisecond,
		Debounce:      20 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, fw.Start(dir))
	t.Cleanup(func() { _ = fw.Stop() })

	path := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte(`export function watched() {}`), 0o644))

	require.Eventually(t, func() bool {
		return len(persistent.FindDefinitions("watched")) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFileWatcherRemovesDeletedFile(t *testing.T) {
	persistent := newTestPersistentIndex(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte(`export function toDelete() {}`), 0o644))
	require.NoError(t, persistent.EnsureUpToDate(context.Background(), []string{path}))
	require.Len(t, persistent.FindDefinitions("toDelete"), 1)

	fw, err := NewFileWatcher(persistent, WatcherOptions{
		Stabilization: 20 * time.Millisecond,
		PollInterval:  5 * time.Millisecond,
		Debounce:      20 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, fw.Start(dir))
	t.Cleanup(func() { _ = fw.Stop() })

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		return len(persistent.FindDefinitions("toDelete")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func initTestRepo(t *testing.T, dir string) *gogit.Repository {
	t.Helper()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	return repo
}

func commitFile(t *testing.T, repo *gogit.Repository, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit("test commit: "+name, &gogit.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func TestVCSWatcherReconcilesOnHeadChange(t *testing.T) {
	dir := t.TempDir()
	repo := initTestRepo(t, dir)
	commitFile(t, repo, dir, "a.ts", `export function initial() {}`)

	persistent := newTestPersistentIndex(t)
	w, err := NewVCSWatcher(dir, persistent, 10*time.Millisecond, nil)
	require.NoError(t, err)
	w.Start()
	t.Cleanup(w.Stop)

	commitFile(t, repo, dir, "b.ts", `export function addedLater() {}`)

	require.Eventually(t, func() bool {
		return len(persistent.FindDefinitions("addedLater")) == 1
	}, 3*time.Second, 20*time.Millisecond)
}
