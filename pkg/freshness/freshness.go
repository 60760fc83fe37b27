// Package freshness drives pkg/persistentindex from the three change
// sources spec.md §4.10 / SPEC_FULL.md §4.11 names: editor document
// events, a debounced file-system watcher, and a version-control watcher
// that diffs commit trees on a HEAD change.
//
// Grounded on gnana997-uispec/pkg/indexer/watcher.go's FileWatcher: the
// same fsnotify-events-plus-debounce-timer-map shape, generalized with a
// write-finish stabilization window spec §4.10 adds and that the teacher
// doesn't need (its extraction is cheap enough not to race a half-written
// file).
package freshness

import (
	"context"
	"log/slog"

	"github.com/smartindex/core/pkg/openfileindex"
	"github.com/smartindex/core/pkg/persistentindex"
)

// Driver forwards change events from all three sources to the indexes
// they affect. It owns no goroutines of its own beyond whatever
// FileWatcher/VCSWatcher instances are started against it — editor
// events are synchronous pass-throughs.
type Driver struct {
	persistent *persistentindex.Index
	openFiles  *openfileindex.Index
	logger     *slog.Logger
}

// New constructs a Driver over persistent and openFiles.
func New(persistent *persistentindex.Index, openFiles *openfileindex.Index, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{persistent: persistent, openFiles: openFiles, logger: logger}
}

// DidOpen forwards an editor "document opened" event directly to the
// open-file index (spec §4.10 source 1).
func (d *Driver) DidOpen(ctx context.Context, uri string, content []byte) error {
	return d.openFiles.DidOpen(ctx, uri, content)
}

// DidChange forwards an editor "document changed" event directly to the
// open-file index, which applies its own 500ms debounce.
func (d *Driver) DidChange(uri string, content []byte) {
	d.openFiles.DidChange(uri, content)
}

// DidClose forwards an editor "document closed" event directly to the
// open-file index.
func (d *Driver) DidClose(uri string) {
	d.openFiles.DidClose(uri)
}
