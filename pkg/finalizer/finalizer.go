// Package finalizer implements the batch cross-file linking phase of the
// symbol index (spec §4.9 / SPEC_FULL.md §4.10): resolving deferred
// action-group member references against the container symbols extracted
// from other files, then persisting the newly-resolved references back to
// their owning shards under a per-file timeout.
//
// No teacher file performs this role (gnana997-uispec's catalogs never
// defer cross-file resolution — a catalog component either refers to
// another catalog's symbol directly or not at all). This package is
// grounded on the general "resolve in memory, then batch-write under a
// timeout" shape spec §4.6 Phase 3 specifies, reusing
// pkg/extractor.CamelCase/PascalCase so the three resolution tiers use the
// exact transform that minted each virtual-method name in the first place.
package finalizer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/smartindex/core/pkg/extractor"
	"github.com/smartindex/core/pkg/idxerrors"
	"github.com/smartindex/core/pkg/shardstore"
	"github.com/smartindex/core/pkg/types"
)

// DefaultWriteTimeout is the per-file batch-write deadline (spec §4.6
// Phase 3: "default 5s").
const DefaultWriteTimeout = 5 * time.Second

// VirtualMethod is one action-group event, exposed as a virtual method
// symbol on its container.
type VirtualMethod struct {
	EventKey string
	Name     string
	Location types.Location
}

// ActionGroupEntry is one action-group container: the file it lives in and
// the virtual methods it exposes.
type ActionGroupEntry struct {
	URI     string
	Methods []VirtualMethod
}

// Lookup maps a container's binding name to its action-group entry,
// spec §4.6 Phase 2's `actionGroupLookup`.
type Lookup map[string]ActionGroupEntry

// BuildLookup scans a set of decoded shards for container symbols whose
// metadata declares an action group (`types.ActionGroupMetadata.IsGroup`)
// and the sibling virtual-method symbols in the same file, assembling the
// cross-file Lookup consumed by Resolve.
func BuildLookup(shards map[string]types.FileShard) Lookup {
	lookup := make(Lookup)
	for uri, shard := range shards {
		for _, sym := range shard.Symbols {
			ag, ok := sym.Metadata["actionGroup"].(types.ActionGroupMetadata)
			if !ok || !ag.IsGroup {
				continue
			}
			entry := ActionGroupEntry{URI: uri}
			for _, other := range shard.Symbols {
				if other.Kind != types.SymbolVirtualMethod || other.ContainerName != sym.Name {
					continue
				}
				eventKey, _ := other.Metadata["eventKey"].(string)
				entry.Methods = append(entry.Methods, VirtualMethod{
					EventKey: eventKey,
					Name:     other.Name,
					Location: other.Location,
				})
			}
			lookup[sym.Name] = entry
		}
	}
	return lookup
}

// Resolution is one successfully-resolved pending reference, destined for
// the shard at URI.
type Resolution struct {
	URI       string
	Reference types.IndexedReference
}

// Resolve implements spec §4.6 Phase 3 step 1: for every pending reference,
// look up its container and match Member against the container's event
// keys in order exact -> camelCase -> PascalCase (spec §4.9; no snake_case
// tier, see DESIGN.md's Open Questions decision). Returns the resolved
// references keyed by the URI they belong in, plus whatever pending
// references remain unresolved per file (left intact for a future run —
// spec §4.9 "silently leaves any that never match unresolved").
func Resolve(lookup Lookup, pendingByFile map[string][]types.PendingReference) (resolved map[string][]Resolution, stillPending map[string][]types.PendingReference) {
	resolved = make(map[string][]Resolution)
	stillPending = make(map[string][]types.PendingReference)

	for uri, pendings := range pendingByFile {
		for _, p := range pendings {
			entry, ok := lookup[p.Container]
			if !ok {
				stillPending[uri] = append(stillPending[uri], p)
				continue
			}
			method, found := matchMember(entry, p.Member)
			if !found {
				stillPending[uri] = append(stillPending[uri], p)
				continue
			}
			resolved[uri] = append(resolved[uri], Resolution{
				URI: uri,
				Reference: types.IndexedReference{
					SymbolName:    method.Name,
					Location:      p.Location,
					Range:         p.Range,
					ContainerName: p.ContainerName,
					HasContainer:  p.HasContainer,
				},
			})
		}
	}
	return resolved, stillPending
}

// matchMember implements the exact -> camelCase -> PascalCase tiers.
func matchMember(entry ActionGroupEntry, member string) (VirtualMethod, bool) {
	for _, m := range entry.Methods {
		if m.EventKey == member {
			return m, true
		}
	}
	for _, m := range entry.Methods {
		if extractor.CamelCase(m.EventKey) == member {
			return m, true
		}
	}
	for _, m := range entry.Methods {
		if extractor.PascalCase(m.EventKey) == member {
			return m, true
		}
	}
	return VirtualMethod{}, false
}

// WriteBack implements spec §4.6 Phase 3 step 2: for every file that
// gained resolved references, read-modify-write its shard under the
// store's per-URI lock, deduplicating by (symbolName, line, column) and
// dropping the pending entries that resolved. Each file's write is
// wrapped in its own timeout; a file that times out is logged and
// skipped, the batch continues (spec: "partial-failure semantics").
func WriteBack(ctx context.Context, store *shardstore.Store, logger *slog.Logger, resolved map[string][]Resolution, stillPending map[string][]types.PendingReference, timeout time.Duration) {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}

	for uri, newRefs := range resolved {
		done := make(chan error, 1)
		go func(uri string, newRefs []Resolution) {
			done <- writeOne(store, uri, newRefs, stillPending[uri])
		}(uri, newRefs)

		select {
		case err := <-done:
			if err != nil {
				logger.Error("finalizer batch write failed", "uri", uri, "error", err)
			}
		case <-time.After(timeout):
			logger.Error("finalizer batch write timed out, skipping", "uri", uri, "timeout", timeout)
		case <-ctx.Done():
			logger.Warn("finalizer batch write cancelled", "uri", uri)
			return
		}
	}
}

func writeOne(store *shardstore.Store, uri string, newRefs []Resolution, remainingPending []types.PendingReference) error {
	var writeErr error
	store.WithLock(uri, func(readNoLock func() (types.FileShard, bool, error), writeNoLock func(types.FileShard) error) {
		shard, found, err := readNoLock()
		if err != nil {
			writeErr = err
			return
		}
		if !found {
			writeErr = idxerrors.New(idxerrors.IOFailure, "finalizerWriteBack", uri, errShardMissing)
			return
		}

		existing := make(map[dedupKey]bool, len(shard.References))
		for _, ref := range shard.References {
			existing[dedupKeyOf(ref.SymbolName, ref.Location)] = true
		}
		for _, res := range newRefs {
			key := dedupKeyOf(res.Reference.SymbolName, res.Reference.Location)
			if existing[key] {
				continue
			}
			existing[key] = true
			shard.References = append(shard.References, res.Reference)
		}

		shard.PendingReferences = remainingPending
		writeErr = writeNoLock(shard)
	})
	return writeErr
}

type dedupKey struct {
	name string
	line uint32
	col  uint32
}

func dedupKeyOf(name string, loc types.Location) dedupKey {
	return dedupKey{name: name, line: loc.Line, col: loc.Column}
}

var errShardMissing = errors.New("shard missing at finalization time")
