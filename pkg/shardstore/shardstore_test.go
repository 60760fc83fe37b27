package shardstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartindex/core/pkg/types"
)

func newTestStore(t *testing.T, coalesce time.Duration) *Store {
	t.Helper()
	cfg := Config{
		Root:              t.TempDir(),
		CoalesceWindow:    coalesce,
		PendingCeiling:    100,
		LockHighWaterMark: 10000,
	}
	return New(cfg, nil)
}

func sampleShard(uri string) types.FileShard {
	return types.FileShard{
		URI:          uri,
		ContentHash:  "h1",
		Mtime:        100,
		ShardVersion: types.CurrentShardVersion,
		Symbols: []types.IndexedSymbol{
			{ID: types.NewSymbolID("aaaa1111", "", "foo", ""), Name: "foo", Kind: types.SymbolFunction},
		},
	}
}

func TestWriteReadRoundTrip_NoCoalescing(t *testing.T) {
	s := newTestStore(t, 0)
	shard := sampleShard("file:///a.ts")

	require.NoError(t, s.Write(shard))

	got, found, err := s.Read(shard.URI)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, shard.URI, got.URI)
	assert.Equal(t, shard.ContentHash, got.ContentHash)
}

func TestReadMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t, 0)
	_, found, err := s.Read("file:///missing.ts")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCoalescing_LastWriteWins(t *testing.T) {
	s := newTestStore(t, 50*time.Millisecond)
	uri := "file:///b.ts"

	shard1 := sampleShard(uri)
	shard1.ContentHash = "v1"
	shard2 := sampleShard(uri)
	shard2.ContentHash = "v2"

	require.NoError(t, s.Write(shard1))
	require.NoError(t, s.Write(shard2))

	// Read before the coalescing window elapses should see the latest
	// pending write, not v1 and not disk silence.
	got, found, err := s.Read(uri)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v2", got.ContentHash)

	s.Flush()

	got, found, err = s.Read(uri)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v2", got.ContentHash)
}

func TestRemove(t *testing.T) {
	s := newTestStore(t, 0)
	shard := sampleShard("file:///c.ts")
	require.NoError(t, s.Write(shard))

	require.NoError(t, s.Remove(shard.URI))

	_, found, err := s.Read(shard.URI)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRemoveIdempotent(t *testing.T) {
	s := newTestStore(t, 0)
	assert.NoError(t, s.Remove("file:///never-written.ts"))
}

func TestPathForHashFanout(t *testing.T) {
	s := newTestStore(t, 0)
	path := s.pathFor("file:///x.ts")

	dir1 := filepath.Base(filepath.Dir(filepath.Dir(path)))
	dir2 := filepath.Base(filepath.Dir(path))
	assert.Len(t, dir1, 2)
	assert.Len(t, dir2, 2)
}

func TestBackpressureForcesFlush(t *testing.T) {
	s := newTestStore(t, time.Hour) // window long enough that only ceiling triggers a flush
	s.cfg.PendingCeiling = 2

	require.NoError(t, s.Write(sampleShard("file:///1.ts")))
	require.NoError(t, s.Write(sampleShard("file:///2.ts")))
	require.NoError(t, s.Write(sampleShard("file:///3.ts"))) // exceeds ceiling, forces oldest flush

	// The oldest (1.ts) should now be durably on disk even though the
	// coalescing window hasn't elapsed.
	path := s.pathFor("file:///1.ts")
	assert.FileExists(t, path)
}

func TestWalkVisitsAllPersistedShards(t *testing.T) {
	s := newTestStore(t, 0)
	require.NoError(t, s.Write(sampleShard("file:///one.ts")))
	require.NoError(t, s.Write(sampleShard("file:///two.ts")))

	seen := map[string]bool{}
	err := s.Walk(func(shard types.FileShard) error {
		seen[shard.URI] = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, seen["file:///one.ts"])
	assert.True(t, seen["file:///two.ts"])
}

func TestWithLockSerializesAccess(t *testing.T) {
	s := newTestStore(t, 0)
	uri := "file:///locked.ts"
	require.NoError(t, s.Write(sampleShard(uri)))

	done := make(chan struct{})
	s.WithLock(uri, func(readNoLock func() (types.FileShard, bool, error), writeNoLock func(types.FileShard) error) {
		go func() {
			// A concurrent WithLock call for the same URI must block until
			// this callback returns.
			s.WithLock(uri, func(_ func() (types.FileShard, bool, error), _ func(types.FileShard) error) {})
			close(done)
		}()
		time.Sleep(20 * time.Millisecond)
		select {
		case <-done:
			t.Fatal("concurrent WithLock for the same URI did not block")
		default:
		}
		shard, found, err := readNoLock()
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, uri, shard.URI)
	})
	<-done
}
