// Package openfileindex holds one extraction result per editor-open URI,
// entirely in memory (spec.md §4.7 / SPEC_FULL.md §4.8): a 500ms
// didChange debounce, drop-on-didClose, and a didOpen self-heal check
// that compares the open buffer's content hash against the persistent
// index's recorded hash, enqueuing a high-priority re-index on mismatch.
//
// Grounded on gnana997-uispec/pkg/indexer/watcher.go's debounce-timer
// idiom (one time.Timer per watched key, reset on repeated events) and
// on pkg/indexer/types.go's FileSymbols.ContentHash field, which this
// package's self-heal check plays the same role as.
package openfileindex

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smartindex/core/pkg/persistentindex"
	"github.com/smartindex/core/pkg/types"
	"github.com/smartindex/core/pkg/workerpool"
)

// DefaultDebounce is spec.md §5's editor debounce timeout.
const DefaultDebounce = 500 * time.Millisecond

// Config configures an Index.
type Config struct {
	// DebounceWindow is how long didChange waits for further edits before
	// re-extracting (default DefaultDebounce).
	DebounceWindow time.Duration
}

type openEntry struct {
	content []byte
	hash    string
	shard   types.FileShard
	timer   *time.Timer
}

// Index is the in-memory mirror of editor-open files. Safe for
// concurrent use.
type Index struct {
	cfg        Config
	logger     *slog.Logger
	pool       *workerpool.Pool
	persistent *persistentindex.Index

	mu   sync.RWMutex
	open map[string]*openEntry
}

// New constructs an Index. pool is used for every extraction (both the
// immediate didOpen-triggered work and the debounced didChange
// work); persistent is consulted for the didOpen self-heal hash check
// and updated directly when self-heal fires.
func New(cfg Config, pool *workerpool.Pool, persistent *persistentindex.Index, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultDebounce
	}
	return &Index{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		persistent: persistent,
		open:       make(map[string]*openEntry),
	}
}

// DidOpen registers uri as open with the given buffer content, extracting
// it immediately (no debounce — an open is a discrete event, not a
// stream of edits). If the buffer's content hash disagrees with what the
// persistent index has on record for uri, this is an external edit or a
// branch switch that happened while the editor was closed: the result
// already extracted here is pushed straight into the persistent index as
// a high-priority self-heal, with no second extraction needed.
func (idx *Index) DidOpen(ctx context.Context, uri string, content []byte) error {
	hash := persistentindex.ContentHashOf(content)

	storedHash, known := idx.persistent.ContentHash(uri)
	selfHeal := !known || storedHash != hash

	priority := workerpool.PriorityNormal
	if selfHeal {
		priority = workerpool.PriorityHigh
	}

	future := idx.pool.Submit(workerpool.Task{FilePath: uri, Content: content}, priority)
	result := idx.waitFor(ctx, future)
	if result.Err != nil {
		return result.Err
	}

	shard := shardFromResult(uri, result, hash)

	idx.mu.Lock()
	idx.open[uri] = &openEntry{content: content, hash: hash, shard: shard}
	idx.mu.Unlock()

	if selfHeal {
		idx.logger.Info("self-heal: open-file hash mismatch against persistent index", "uri", uri)
		if err := idx.persistent.UpdateFile(uri, result.Extract, hash, time.Now().UnixNano()); err != nil {
			idx.logger.Warn("self-heal update of persistent index failed", "uri", uri, "error", err)
		}
	}
	return nil
}

// DidChange re-extracts uri's buffer after DebounceWindow has elapsed
// with no further DidChange calls for the same uri (last-write-wins,
// matching pkg/shardstore's write-coalescing shape).
func (idx *Index) DidChange(uri string, content []byte) {
	idx.mu.Lock()
	entry, ok := idx.open[uri]
	if !ok {
		entry = &openEntry{}
		idx.open[uri] = entry
	}
	entry.content = content
	if entry.timer != nil {
		entry.timer.Stop()
	}
	entry.timer = time.AfterFunc(idx.cfg.DebounceWindow, func() {
		idx.reExtract(uri)
	})
	idx.mu.Unlock()
}

func (idx *Index) reExtract(uri string) {
	idx.mu.RLock()
	entry, ok := idx.open[uri]
	var content []byte
	if ok {
		content = entry.content
	}
	idx.mu.RUnlock()
	if !ok {
		return
	}

	future := idx.pool.Submit(workerpool.Task{FilePath: uri, Content: content}, workerpool.PriorityNormal)
	result := future.Wait()
	if result.Err != nil {
		idx.logger.Warn("debounced re-extraction failed", "uri", uri, "error", result.Err)
		return
	}

	hash := persistentindex.ContentHashOf(content)
	shard := shardFromResult(uri, result, hash)

	idx.mu.Lock()
	if e, ok := idx.open[uri]; ok {
		e.hash = hash
		e.shard = shard
	}
	idx.mu.Unlock()
}

// DidClose drops uri's in-memory mirror, canceling any pending debounce.
func (idx *Index) DidClose(uri string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if entry, ok := idx.open[uri]; ok {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(idx.open, uri)
	}
}

// IsOpen reports whether uri currently has an open-file mirror.
func (idx *Index) IsOpen(uri string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.open[uri]
	return ok
}

// OpenURIs returns the set of currently open URIs, for
// pkg/fuzzy.ContextBonus's open-file bonus.
func (idx *Index) OpenURIs() map[string]bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string]bool, len(idx.open))
	for uri := range idx.open {
		out[uri] = true
	}
	return out
}

// Shard returns uri's current in-memory extraction result, if open.
func (idx *Index) Shard(uri string) (types.FileShard, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	entry, ok := idx.open[uri]
	if !ok {
		return types.FileShard{}, false
	}
	return entry.shard, true
}

// GetSymbols returns uri's current open-buffer symbols, or nil if uri
// isn't open.
func (idx *Index) GetSymbols(uri string) []types.IndexedSymbol {
	shard, ok := idx.Shard(uri)
	if !ok {
		return nil
	}
	return shard.Symbols
}

// GetReferences returns uri's current open-buffer references, or nil if
// uri isn't open.
func (idx *Index) GetReferences(uri string) []types.IndexedReference {
	shard, ok := idx.Shard(uri)
	if !ok {
		return nil
	}
	return shard.References
}

func (idx *Index) waitFor(ctx context.Context, future *workerpool.Future) workerpool.Result {
	select {
	case res := <-future.Done():
		return res
	case <-ctx.Done():
		return workerpool.Result{Err: ctx.Err()}
	}
}

func shardFromResult(uri string, result workerpool.Result, hash string) types.FileShard {
	return types.FileShard{
		URI:               uri,
		ContentHash:       hash,
		Mtime:             time.Now().UnixNano(),
		Symbols:           result.Extract.Symbols,
		References:        result.Extract.References,
		Imports:           result.Extract.Imports,
		ReExports:         result.Extract.ReExports,
		PendingReferences: result.Extract.PendingReferences,
		ShardVersion:      types.CurrentShardVersion,
		LastIndexedAt:     time.Now().UnixMilli(),
	}
}
