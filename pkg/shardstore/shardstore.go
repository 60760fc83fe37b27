// Package shardstore persists types.FileShard values to disk under a
// two-level hash-fanout directory layout, with per-URI serialization,
// write coalescing, and backpressure (spec §4.4).
//
// Grounded on no single teacher file (gnana997-uispec has no on-disk
// persistence layer at all — catalogs load fully into memory from JSON at
// startup); the hash-fanout directory scheme is grounded on the general
// sharding idiom in standardbeagle-lci's internal/idcodec package, and
// xxhash is standardbeagle-lci's own hashing dependency.
package shardstore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/smartindex/core/pkg/idxerrors"
	"github.com/smartindex/core/pkg/shardcodec"
	"github.com/smartindex/core/pkg/types"
)

// Config configures the store's coalescing and backpressure behavior.
type Config struct {
	// Root is the cache directory; shards live under Root/index/.
	Root string
	// CoalesceWindow is how long a write() waits before durably persisting,
	// so that a burst of writes to the same URI collapses into one disk
	// write (spec §4.4: "last-write-wins" within the window). Zero disables
	// coalescing (every write is synchronous).
	CoalesceWindow time.Duration
	// PendingCeiling forces a synchronous flush of the oldest pending
	// writes once the number of buffered-but-not-yet-flushed shards
	// exceeds this value (spec §4.4 backpressure, default 100).
	PendingCeiling int
	// LockHighWaterMark is the per-URI lock-map size above which
	// zero-waiter entries are evicted (spec §4.4, default 10000).
	LockHighWaterMark int
}

// DefaultConfig returns the spec's suggested defaults.
func DefaultConfig(root string) Config {
	return Config{
		Root:              root,
		CoalesceWindow:    100 * time.Millisecond,
		PendingCeiling:    100,
		LockHighWaterMark: 10000,
	}
}

// Store is the on-disk shard store. Safe for concurrent use.
type Store struct {
	cfg    Config
	logger *slog.Logger

	locks *lockTable

	mu      sync.Mutex
	pending map[string]*pendingWrite // uri -> latest unwritten shard
	order   []string                 // uris in pending, oldest first (for ceiling flush)
}

type pendingWrite struct {
	shard types.FileShard
	timer *time.Timer
}

// New constructs a Store rooted at cfg.Root. The directory is created lazily
// on first write.
func New(cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PendingCeiling <= 0 {
		cfg.PendingCeiling = 100
	}
	if cfg.LockHighWaterMark <= 0 {
		cfg.LockHighWaterMark = 10000
	}
	return &Store{
		cfg:     cfg,
		logger:  logger,
		locks:   newLockTable(cfg.LockHighWaterMark),
		pending: make(map[string]*pendingWrite),
	}
}

// pathFor computes the two-level hash-fanout path for uri:
// <root>/index/<h[0:2]>/<h[2:4]>/<h>.bin
func (s *Store) pathFor(uri string) string {
	h := fmt.Sprintf("%016x", xxhash.Sum64String(uri))
	return filepath.Join(s.cfg.Root, "index", h[0:2], h[2:4], h+".bin")
}

// Read returns the stored shard for uri, or (types.FileShard{}, false, nil)
// if absent. It fails only on I/O errors (spec §4.4).
func (s *Store) Read(uri string) (types.FileShard, bool, error) {
	var result types.FileShard
	var found bool
	var rerr error
	s.withLock(uri, func(readNoLock func() (types.FileShard, bool, error), _ func(types.FileShard) error) {
		result, found, rerr = readNoLock()
	})
	return result, found, rerr
}

// readNoLock reads uri's shard straight from disk (or the still-pending
// in-memory write, if one hasn't flushed yet), without acquiring the
// per-URI lock. Only safe to call from inside withLock's callback.
func (s *Store) readNoLock(uri string) (types.FileShard, bool, error) {
	s.mu.Lock()
	if pw, ok := s.pending[uri]; ok {
		s.mu.Unlock()
		return pw.shard, true, nil
	}
	s.mu.Unlock()

	path := s.pathFor(uri)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.FileShard{}, false, nil
		}
		return types.FileShard{}, false, idxerrors.New(idxerrors.IOFailure, "readShard", uri, err)
	}

	shard, err := shardcodec.Decode(data)
	if err == shardcodec.ErrNotBinary {
		shard, err = shardcodec.DecodeLegacy(data)
		if err == nil {
			// Transparent upgrade: rewrite in the binary format next time
			// this shard is persisted (spec §4.3 migration path). We don't
			// write synchronously here to keep Read side-effect-free
			// beyond the in-memory pending buffer.
			s.logger.Debug("decoded legacy shard, will rewrite on next persist", "uri", uri)
		}
	}
	if err != nil {
		return types.FileShard{}, false, idxerrors.New(idxerrors.IOFailure, "decodeShard", uri, err)
	}
	return shard, true, nil
}

// Write durably persists shard, subject to coalescing (spec §4.4).
func (s *Store) Write(shard types.FileShard) error {
	var werr error
	s.withLock(shard.URI, func(_ func() (types.FileShard, bool, error), writeNoLock func(types.FileShard) error) {
		werr = writeNoLock(shard)
	})
	return werr
}

func (s *Store) writeNoLock(shard types.FileShard) error {
	if s.cfg.CoalesceWindow <= 0 {
		return s.flushOne(shard)
	}

	s.mu.Lock()
	if existing, ok := s.pending[shard.URI]; ok {
		existing.shard = shard // last-write-wins within the window
		existing.timer.Reset(s.cfg.CoalesceWindow)
		s.mu.Unlock()
		return nil
	}

	pw := &pendingWrite{shard: shard}
	s.pending[shard.URI] = pw
	s.order = append(s.order, shard.URI)
	needsCeilingFlush := len(s.pending) > s.cfg.PendingCeiling
	s.mu.Unlock()

	pw.timer = time.AfterFunc(s.cfg.CoalesceWindow, func() {
		s.flushPending(shard.URI)
	})

	if needsCeilingFlush {
		s.flushOldest()
	}
	return nil
}

func (s *Store) flushOldest() {
	s.mu.Lock()
	if len(s.order) == 0 {
		s.mu.Unlock()
		return
	}
	uri := s.order[0]
	s.mu.Unlock()
	s.flushPending(uri)
}

func (s *Store) flushPending(uri string) {
	s.mu.Lock()
	pw, ok := s.pending[uri]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, uri)
	s.removeFromOrder(uri)
	s.mu.Unlock()

	if pw.timer != nil {
		pw.timer.Stop()
	}
	if err := s.flushOne(pw.shard); err != nil {
		s.logger.Error("failed to flush shard", "uri", uri, "error", err)
	}
}

func (s *Store) removeFromOrder(uri string) {
	for i, u := range s.order {
		if u == uri {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// flushOne writes shard to disk atomically (write-to-temp + rename).
func (s *Store) flushOne(shard types.FileShard) error {
	path := s.pathFor(shard.URI)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return idxerrors.New(idxerrors.IOFailure, "mkdirShardDir", shard.URI, err)
	}

	data, err := shardcodec.Encode(shard)
	if err != nil {
		return idxerrors.New(idxerrors.IOFailure, "encodeShard", shard.URI, err)
	}

	tmp := path + fmt.Sprintf(".tmp-%d", time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return idxerrors.New(idxerrors.IOFailure, "writeTempShard", shard.URI, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return idxerrors.New(idxerrors.IOFailure, "renameShard", shard.URI, err)
	}
	return nil
}

// Remove deletes the shard for uri if present. Idempotent.
func (s *Store) Remove(uri string) error {
	var rerr error
	s.withLock(uri, func(_ func() (types.FileShard, bool, error), _ func(types.FileShard) error) {
		s.mu.Lock()
		if pw, ok := s.pending[uri]; ok {
			if pw.timer != nil {
				pw.timer.Stop()
			}
			delete(s.pending, uri)
			s.removeFromOrder(uri)
		}
		s.mu.Unlock()

		path := s.pathFor(uri)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			rerr = idxerrors.New(idxerrors.IOFailure, "removeShard", uri, err)
		}
	})
	return rerr
}

// Flush waits until all pending coalesced writes have completed (spec §4.4
// durability guarantee: "shutdown flushes").
func (s *Store) Flush() {
	s.mu.Lock()
	uris := append([]string(nil), s.order...)
	s.mu.Unlock()
	for _, uri := range uris {
		s.flushPending(uri)
	}
}

// Walk visits every persisted shard under the store root, decoding each one
// (tolerating the legacy JSON format) and calling fn. pkg/persistentindex
// uses it at startup to rebuild its in-memory FileMetadata map from the
// shard store itself (see DESIGN.md's "workspace metadata summary" decision)
// rather than from a separate summary file that could drift out of sync,
// and again in Finalize to gather every shard for the action-group lookup.
// Walk does not take per-URI locks, and it reads only files already on
// disk: writes still held in the coalescing buffer are not visited.
func (s *Store) Walk(fn func(types.FileShard) error) error {
	root := filepath.Join(s.cfg.Root, "index")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return idxerrors.New(idxerrors.IOFailure, "walkShardRoot", root, err)
	}
	for _, top := range entries {
		if !top.IsDir() {
			continue
		}
		topPath := filepath.Join(root, top.Name())
		subs, err := os.ReadDir(topPath)
		if err != nil {
			return idxerrors.New(idxerrors.IOFailure, "walkShardSubdir", topPath, err)
		}
		for _, sub := range subs {
			if !sub.IsDir() {
				continue
			}
			subPath := filepath.Join(topPath, sub.Name())
			files, err := os.ReadDir(subPath)
			if err != nil {
				return idxerrors.New(idxerrors.IOFailure, "walkShardFiles", subPath, err)
			}
			for _, f := range files {
				if f.IsDir() {
					continue
				}
				data, err := os.ReadFile(filepath.Join(subPath, f.Name()))
				if err != nil {
					return idxerrors.New(idxerrors.IOFailure, "readShardFile", f.Name(), err)
				}
				shard, err := shardcodec.Decode(data)
				if err == shardcodec.ErrNotBinary {
					shard, err = shardcodec.DecodeLegacy(data)
				}
				if err != nil {
					s.logger.Warn("skipping unreadable shard during walk", "file", f.Name(), "error", err)
					continue
				}
				if err := fn(shard); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// WithLock runs fn under an exclusive per-URI lock. fn receives lock-free
// readNoLock/writeNoLock callbacks (spec §4.4 lock-skipping discipline);
// calling Read/Write instead of these from inside fn would deadlock against
// the very lock WithLock is holding.
func (s *Store) WithLock(uri string, fn func(readNoLock func() (types.FileShard, bool, error), writeNoLock func(types.FileShard) error)) {
	s.withLock(uri, fn)
}

func (s *Store) withLock(uri string, fn func(readNoLock func() (types.FileShard, bool, error), writeNoLock func(types.FileShard) error)) {
	release := s.locks.acquire(uri)
	defer release()

	fn(
		func() (types.FileShard, bool, error) { return s.readNoLock(uri) },
		func(shard types.FileShard) error { return s.writeNoLock(shard) },
	)
}
