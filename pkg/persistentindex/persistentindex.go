// Package persistentindex implements the workspace-wide symbol index
// (spec.md §4.6 / SPEC_FULL.md §4.7): the inverted-index set, the
// freshness decision that drives incremental reindexing, and the
// three-phase pipeline (parallel extraction, in-memory lookup build,
// batch finalization).
//
// Grounded on gnana997-uispec/pkg/indexer/indexer.go's SymbolIndexer,
// which already has the right shape for this: a primary hash map plus an
// LRU-cached secondary structure plus a reverse index for O(1) eviction.
// This package generalizes that shape to the spec's four named inverted
// indices and drops the teacher's in-memory-only model in favor of
// pkg/shardstore as the durable source of truth — the LRU cache here
// holds decoded shards, not the only copy of the data.
package persistentindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/smartindex/core/pkg/extractor"
	"github.com/smartindex/core/pkg/finalizer"
	"github.com/smartindex/core/pkg/fuzzy"
	"github.com/smartindex/core/pkg/idxerrors"
	"github.com/smartindex/core/pkg/shardstore"
	"github.com/smartindex/core/pkg/types"
	"github.com/smartindex/core/pkg/workerpool"
)

// Config configures an Index.
type Config struct {
	// ShardCacheSize bounds the LRU cache of decoded shards Phase 2 and
	// the read operations share. Default 500.
	ShardCacheSize int
	// MaxParallelExtractions bounds concurrent withLock calls during
	// Phase 1 (default 0: one per file in the batch, so only the worker
	// pool's own workers bound how many extractions run at once).
	MaxParallelExtractions int
	// FinalizeTimeout is the per-file Phase 3 write timeout (default 5s).
	FinalizeTimeout time.Duration
	// Exclude reports whether a sanitized path should never be indexed.
	Exclude func(uri string) bool
}

// Index is the persistent, workspace-wide symbol index. Safe for
// concurrent use.
type Index struct {
	cfg    Config
	logger *slog.Logger

	store *shardstore.Store
	pool  *workerpool.Pool

	mu                 sync.RWMutex
	metadata           map[string]types.FileMetadata
	symbolNameIndex    map[string]map[string]bool // name -> set<uri>
	symbolIDIndex      map[types.SymbolID]string  // id -> uri
	fileToSymbolIDs    map[string]map[types.SymbolID]bool
	referenceNameIndex map[string]map[string]bool // name -> set<uri>

	shardCache *lru.Cache[string, types.FileShard]
}

// New constructs an Index backed by store and pool. Call Load once at
// startup to rebuild in-memory state from whatever shards already exist
// on disk (see DESIGN.md's "infer from shard scan" decision).
func New(cfg Config, store *shardstore.Store, pool *workerpool.Pool, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShardCacheSize <= 0 {
		cfg.ShardCacheSize = 500
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = finalizer.DefaultWriteTimeout
	}
	if cfg.Exclude == nil {
		cfg.Exclude = func(string) bool { return false }
	}

	cache, err := lru.New[string, types.FileShard](cfg.ShardCacheSize)
	if err != nil {
		panic(fmt.Sprintf("persistentindex: invalid shard cache size: %v", err))
	}

	return &Index{
		cfg:                cfg,
		logger:             logger,
		store:              store,
		pool:               pool,
		metadata:           make(map[string]types.FileMetadata),
		symbolNameIndex:    make(map[string]map[string]bool),
		symbolIDIndex:      make(map[types.SymbolID]string),
		fileToSymbolIDs:    make(map[string]map[types.SymbolID]bool),
		referenceNameIndex: make(map[string]map[string]bool),
		shardCache:         cache,
	}
}

// Load rebuilds the in-memory metadata and inverted indices from every
// shard already persisted in the store. Call once at startup, before
// concurrent traffic begins.
func (idx *Index) Load() error {
	return idx.store.Walk(func(shard types.FileShard) error {
		idx.mu.Lock()
		idx.indexShardLocked(shard.URI, shard)
		idx.mu.Unlock()
		return nil
	})
}

// ProgressFunc reports bulk-indexing progress: done files completed out of
// total enqueued, and the file most recently finished (SPEC_FULL.md §6's
// MCP progress notification: total/done/currentFile).
type ProgressFunc func(done, total int, currentFile string)

// EnsureUpToDate drives a full or incremental index build over fileList
// (spec §4.6). Unreadable or excluded paths are dropped with a
// diagnostic; everything else is classified cache-hit or enqueued per the
// freshness decision, extracted in parallel (Phase 1), then finalized
// (Phases 2-3).
func (idx *Index) EnsureUpToDate(ctx context.Context, fileList []string) error {
	return idx.EnsureUpToDateWithProgress(ctx, fileList, nil)
}

// EnsureUpToDateWithProgress is EnsureUpToDate with an optional onProgress
// callback invoked once per file as its extraction completes, so a caller
// driving a long bulk index (pkg/mcp's index tool) can surface incremental
// progress. onProgress may be nil.
func (idx *Index) EnsureUpToDateWithProgress(ctx context.Context, fileList []string, onProgress ProgressFunc) error {
	var toEnqueue []string
	for _, raw := range fileList {
		uri, err := SanitizePath(raw)
		if err != nil {
			idx.logger.Debug("dropping unsanitizable path", "raw", raw, "error", err)
			continue
		}
		if idx.cfg.Exclude(uri) {
			continue
		}

		info, statErr := os.Stat(uri)
		if statErr != nil {
			if os.IsNotExist(statErr) {
				idx.logger.Debug("dropping non-existent path", "uri", uri)
				continue
			}
			idx.logger.Warn("stat failed, enqueuing anyway", "uri", uri, "error", statErr)
			toEnqueue = append(toEnqueue, uri)
			continue
		}

		if idx.isFreshLocked(uri, info) {
			continue
		}
		toEnqueue = append(toEnqueue, uri)
	}

	if err := idx.extractParallel(ctx, toEnqueue, onProgress); err != nil {
		return err
	}
	return idx.Finalize(ctx)
}

// isFreshLocked implements spec §4.6's freshness decision: mtime equality
// is the fast path; a content-hash comparison is the fallback whenever
// mtime doesn't match (covering both "no prior mtime" and ordinary edits)
// so a touch-without-edit or filesystem mtime-resolution artifact doesn't
// force a needless re-extraction. A shardVersion mismatch always forces
// re-index regardless of content, since the decoded shape itself is
// stale.
func (idx *Index) isFreshLocked(uri string, info os.FileInfo) bool {
	idx.mu.RLock()
	meta, ok := idx.metadata[uri]
	idx.mu.RUnlock()
	if !ok {
		return false
	}
	if meta.ShardVersion != types.CurrentShardVersion {
		return false
	}

	currentMtime := info.ModTime().UnixNano()
	if meta.Mtime == currentMtime {
		return true
	}

	content, err := os.ReadFile(uri)
	if err != nil {
		return false
	}
	if contentHash(content) == meta.ContentHash {
		// Content unchanged; refresh the recorded mtime so the fast path
		// succeeds next time without re-reading the file.
		idx.mu.Lock()
		meta.Mtime = currentMtime
		idx.metadata[uri] = meta
		idx.mu.Unlock()
		return true
	}
	return false
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// extractParallel is Phase 1: fan out withLock-bound extraction+update
// across toEnqueue, bounded by MaxParallelExtractions, using errgroup to
// propagate cancellation (spec.md §4.6 Phase 1). onProgress, if non-nil, is
// invoked once per file as it finishes (success or failure alike count
// toward done, since both retire the file from the in-flight set).
func (idx *Index) extractParallel(ctx context.Context, toEnqueue []string, onProgress ProgressFunc) error {
	if len(toEnqueue) == 0 {
		return nil
	}

	total := len(toEnqueue)
	var done int
	var doneMu sync.Mutex
	reportDone := func(uri string) {
		if onProgress == nil {
			return
		}
		doneMu.Lock()
		done++
		n := done
		doneMu.Unlock()
		onProgress(n, total, uri)
	}

	limit := idx.cfg.MaxParallelExtractions
	if limit <= 0 {
		limit = len(toEnqueue)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, uri := range toEnqueue {
		uri := uri
		g.Go(func() error {
			defer reportDone(uri)
			future := idx.pool.Submit(workerpool.Task{FilePath: uri}, workerpool.PriorityNormal)
			select {
			case res := <-future.Done():
				if res.Err != nil {
					idx.logger.Warn("extraction failed, leaving prior shard intact", "uri", uri, "error", res.Err)
					return nil
				}
				content, err := os.ReadFile(uri)
				if err != nil {
					idx.logger.Warn("re-read for content hash failed after extraction", "uri", uri, "error", err)
					return nil
				}
				info, err := os.Stat(uri)
				if err != nil {
					idx.logger.Warn("stat failed after extraction", "uri", uri, "error", err)
					return nil
				}
				return idx.UpdateFile(uri, res.Extract, contentHash(content), info.ModTime().UnixNano())
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return g.Wait()
}

// UpdateFile implements spec §4.6's `updateFile`: an atomic replace of
// one file's contribution to the index, durable via the shard store's
// withLock and reflected in the in-memory inverted indices.
func (idx *Index) UpdateFile(uri string, result *extractor.PerFileResult, contentHash string, mtime int64) error {
	shard := types.FileShard{
		URI:               uri,
		ContentHash:       contentHash,
		Mtime:             mtime,
		Symbols:           result.Symbols,
		References:        result.References,
		Imports:           result.Imports,
		ReExports:         result.ReExports,
		PendingReferences: result.PendingReferences,
		ShardVersion:  types.CurrentShardVersion,
		LastIndexedAt: time.Now().UnixMilli(),
	}

	var writeErr error
	idx.store.WithLock(uri, func(_ func() (types.FileShard, bool, error), writeNoLock func(types.FileShard) error) {
		writeErr = writeNoLock(shard)
	})
	if writeErr != nil {
		return writeErr
	}

	idx.mu.Lock()
	idx.indexShardLocked(uri, shard)
	idx.mu.Unlock()
	return nil
}

// RemoveFile implements spec §4.6's `removeFile`: symmetric eviction from
// disk and from all four inverted indices atomically with respect to
// reads (spec §3 invariant 4).
func (idx *Index) RemoveFile(uri string) error {
	if err := idx.store.Remove(uri); err != nil {
		return err
	}

	idx.mu.Lock()
	idx.unindexLocked(uri)
	idx.shardCache.Remove(uri)
	idx.mu.Unlock()
	return nil
}

// indexShardLocked replaces uri's contribution to every inverted index.
// Caller holds idx.mu for writing.
func (idx *Index) indexShardLocked(uri string, shard types.FileShard) {
	idx.unindexLocked(uri)

	ids := make(map[types.SymbolID]bool, len(shard.Symbols))
	for _, sym := range shard.Symbols {
		if idx.symbolNameIndex[sym.Name] == nil {
			idx.symbolNameIndex[sym.Name] = make(map[string]bool)
		}
		idx.symbolNameIndex[sym.Name][uri] = true
		idx.symbolIDIndex[sym.ID] = uri
		ids[sym.ID] = true
	}
	idx.fileToSymbolIDs[uri] = ids

	for _, ref := range shard.References {
		if idx.referenceNameIndex[ref.SymbolName] == nil {
			idx.referenceNameIndex[ref.SymbolName] = make(map[string]bool)
		}
		idx.referenceNameIndex[ref.SymbolName][uri] = true
	}

	idx.metadata[uri] = types.FileMetadata{
		ContentHash:   shard.ContentHash,
		Mtime:         shard.Mtime,
		LastIndexedAt: shard.LastIndexedAt,
		SymbolCount:   len(shard.Symbols),
		ShardVersion:  shard.ShardVersion,
	}
	idx.shardCache.Add(uri, shard)
}

// unindexLocked removes uri from every inverted index it may appear in.
// Caller holds idx.mu for writing.
func (idx *Index) unindexLocked(uri string) {
	for id := range idx.fileToSymbolIDs[uri] {
		delete(idx.symbolIDIndex, id)
	}
	delete(idx.fileToSymbolIDs, uri)

	for name, uris := range idx.symbolNameIndex {
		delete(uris, uri)
		if len(uris) == 0 {
			delete(idx.symbolNameIndex, name)
		}
	}
	for name, uris := range idx.referenceNameIndex {
		delete(uris, uri)
		if len(uris) == 0 {
			delete(idx.referenceNameIndex, name)
		}
	}
	delete(idx.metadata, uri)
}

// readShard reads uri's shard via the LRU cache, falling back to the
// store on a miss.
func (idx *Index) readShard(uri string) (types.FileShard, bool) {
	idx.mu.RLock()
	if shard, ok := idx.shardCache.Get(uri); ok {
		idx.mu.RUnlock()
		return shard, true
	}
	idx.mu.RUnlock()

	shard, found, err := idx.store.Read(uri)
	if err != nil || !found {
		return types.FileShard{}, false
	}

	idx.mu.Lock()
	idx.shardCache.Add(uri, shard)
	idx.mu.Unlock()
	return shard, true
}

// FindDefinitions implements spec §4.6's `findDefinitions(name)`.
func (idx *Index) FindDefinitions(name string) []types.IndexedSymbol {
	idx.mu.RLock()
	uris := make([]string, 0, len(idx.symbolNameIndex[name]))
	for uri := range idx.symbolNameIndex[name] {
		uris = append(uris, uri)
	}
	idx.mu.RUnlock()

	var out []types.IndexedSymbol
	for _, uri := range uris {
		shard, ok := idx.readShard(uri)
		if !ok {
			continue
		}
		for _, sym := range shard.Symbols {
			if sym.Name == name {
				out = append(out, sym)
			}
		}
	}
	return out
}

// FindReferencesByName implements spec §4.6's `findReferencesByName(name)`.
func (idx *Index) FindReferencesByName(name string) []types.IndexedReference {
	idx.mu.RLock()
	uris := make([]string, 0, len(idx.referenceNameIndex[name]))
	for uri := range idx.referenceNameIndex[name] {
		uris = append(uris, uri)
	}
	idx.mu.RUnlock()

	var out []types.IndexedReference
	for _, uri := range uris {
		shard, ok := idx.readShard(uri)
		if !ok {
			continue
		}
		for _, ref := range shard.References {
			if ref.SymbolName == name {
				out = append(out, ref)
			}
		}
	}
	return out
}

// GetFileSymbols implements spec §4.6's `getFileSymbols(uri)`.
func (idx *Index) GetFileSymbols(uri string) []types.IndexedSymbol {
	shard, ok := idx.readShard(uri)
	if !ok {
		return nil
	}
	return shard.Symbols
}

// GetFileImports implements spec §4.6's `getFileImports(uri)`.
func (idx *Index) GetFileImports(uri string) []types.ImportInfo {
	shard, ok := idx.readShard(uri)
	if !ok {
		return nil
	}
	return shard.Imports
}

// GetFileReferences returns every reference recorded in uri's shard, for
// the "definition lookup at (uri, line, col)" host protocol operation
// (spec §6), which must resolve a click position to a symbol name before
// calling FindDefinitions.
func (idx *Index) GetFileReferences(uri string) []types.IndexedReference {
	shard, ok := idx.readShard(uri)
	if !ok {
		return nil
	}
	return shard.References
}

// SearchSymbols implements spec §4.6's `searchSymbols(query, limit)`:
// fuzzy-rank every known symbol name against query, budgeted at
// min(limit*2, 1000) candidates before resolving full symbol records, tie
// broken by name then uri for deterministic output.
func (idx *Index) SearchSymbols(query string, limit int) []types.IndexedSymbol {
	if limit <= 0 {
		return nil
	}
	budget := limit * 2
	if budget > 1000 {
		budget = 1000
	}

	type scored struct {
		name  string
		score float64
	}

	idx.mu.RLock()
	candidates := make([]scored, 0, len(idx.symbolNameIndex))
	for name := range idx.symbolNameIndex {
		m := fuzzy.Score(query, name)
		if m.Matched {
			candidates = append(candidates, scored{name: name, score: m.Score})
		}
	}
	idx.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].name < candidates[j].name
	})
	if len(candidates) > budget {
		candidates = candidates[:budget]
	}

	var out []types.IndexedSymbol
	for _, c := range candidates {
		defs := idx.FindDefinitions(c.name)
		sort.Slice(defs, func(i, j int) bool { return defs[i].Location.URI < defs[j].Location.URI })
		out = append(out, defs...)
		if len(out) >= limit {
			break
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ContentHash returns the content hash last recorded for uri, as stored
// during its most recent UpdateFile, so callers (pkg/openfileindex's
// didOpen self-heal check) can detect external edits without re-reading
// the shard itself.
func (idx *Index) ContentHash(uri string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	meta, ok := idx.metadata[uri]
	if !ok {
		return "", false
	}
	return meta.ContentHash, true
}

// ContentHashOf is the same sha256 hash UpdateFile records, exported so
// callers computing a buffer's hash to compare against ContentHash use
// an identical algorithm.
func ContentHashOf(content []byte) string {
	return contentHash(content)
}

// Stats summarizes current in-memory index size for diagnostics.
type Stats struct {
	IndexedFiles int
	TotalSymbols int
	CachedShards int
}

func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	total := 0
	for _, ids := range idx.fileToSymbolIDs {
		total += len(ids)
	}
	return Stats{
		IndexedFiles: len(idx.metadata),
		TotalSymbols: total,
		CachedShards: idx.shardCache.Len(),
	}
}

// ErrPoolUnavailable is returned by operations that require a worker
// pool when none was configured.
var ErrPoolUnavailable = idxerrors.New(idxerrors.WorkerCrash, "extractParallel", "", fmt.Errorf("no worker pool configured"))
