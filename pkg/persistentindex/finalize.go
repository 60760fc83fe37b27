package persistentindex

import (
	"context"

	"github.com/smartindex/core/pkg/finalizer"
	"github.com/smartindex/core/pkg/types"
)

// Finalize implements spec §4.6 Phases 2-3: build the action-group lookup
// from every shard currently on disk, resolve every file's pending
// references against it, batch-write the newly-resolved references back
// (pkg/finalizer.WriteBack already applies its own per-file timeout and
// partial-failure semantics), then refresh the in-memory reference index
// and shard cache for whatever files changed.
//
// Scans the whole store rather than just the files EnsureUpToDate just
// touched, since a pending reference in an untouched file can resolve
// against an action group defined in a file that was just (re)indexed.
func (idx *Index) Finalize(ctx context.Context) error {
	// Walk reads only what is on disk; push out shards still sitting in the
	// write-coalescing buffer so the files just indexed are visible to it.
	idx.store.Flush()
	shards := make(map[string]types.FileShard)
	if err := idx.store.Walk(func(shard types.FileShard) error {
		shards[shard.URI] = shard
		return nil
	}); err != nil {
		return err
	}

	pendingByFile := make(map[string][]types.PendingReference)
	for uri, shard := range shards {
		if len(shard.PendingReferences) > 0 {
			pendingByFile[uri] = shard.PendingReferences
		}
	}
	if len(pendingByFile) == 0 {
		return nil
	}

	lookup := finalizer.BuildLookup(shards)
	resolved, stillPending := finalizer.Resolve(lookup, pendingByFile)
	if len(resolved) == 0 {
		return nil
	}

	finalizer.WriteBack(ctx, idx.store, idx.logger, resolved, stillPending, idx.cfg.FinalizeTimeout)

	for uri := range resolved {
		shard, found, err := idx.store.Read(uri)
		if err != nil || !found {
			continue
		}
		idx.mu.Lock()
		idx.indexShardLocked(uri, shard)
		idx.mu.Unlock()
	}
	return nil
}
