package shardstore

import "sync"

// lockTable hands out exclusive per-URI locks. Entries are reference
// counted so that a lock mutex for a URI with no current holders or
// waiters can be evicted once the table grows past highWaterMark (spec
// §4.4) instead of growing unboundedly across the lifetime of a long
// index session touching many thousands of distinct files.
type lockTable struct {
	mu            sync.Mutex
	entries       map[string]*lockEntry
	highWaterMark int
}

type lockEntry struct {
	mu       sync.Mutex
	refCount int
}

func newLockTable(highWaterMark int) *lockTable {
	return &lockTable{
		entries:       make(map[string]*lockEntry),
		highWaterMark: highWaterMark,
	}
}

// acquire locks uri exclusively and returns a release function. Safe to
// call concurrently for different URIs; calls for the same URI serialize.
func (t *lockTable) acquire(uri string) (release func()) {
	t.mu.Lock()
	e, ok := t.entries[uri]
	if !ok {
		e = &lockEntry{}
		t.entries[uri] = e
	}
	e.refCount++
	if len(t.entries) > t.highWaterMark {
		t.sweepLocked()
	}
	t.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		t.mu.Lock()
		e.refCount--
		if e.refCount == 0 {
			delete(t.entries, uri)
		}
		t.mu.Unlock()
	}
}

// sweepLocked drops zero-refcount entries once the table has grown past
// highWaterMark. Must be called with t.mu held. In practice refCount only
// reaches zero inside acquire's release closure (which also deletes), so
// this sweep mainly guards against pathological churn patterns where many
// distinct URIs are locked once and never revisited.
func (t *lockTable) sweepLocked() {
	for uri, e := range t.entries {
		if e.refCount == 0 {
			delete(t.entries, uri)
		}
	}
}
