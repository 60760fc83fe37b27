package freshness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/smartindex/core/pkg/persistentindex"
)

// DefaultStabilizationWindow is spec §5's "write-finish stabilization"
// timeout: how long a file's mtime must stay unchanged, polled at
// DefaultPollInterval, before a write is considered finished.
const DefaultStabilizationWindow = 300 * time.Millisecond

// DefaultPollInterval is the stabilization poll frequency.
const DefaultPollInterval = 100 * time.Millisecond

// DefaultFileSystemDebounce is spec §5's per-path fsnotify debounce.
const DefaultFileSystemDebounce = 600 * time.Millisecond

// WatcherOptions configures FileWatcher.
type WatcherOptions struct {
	Stabilization time.Duration
	PollInterval  time.Duration
	Debounce      time.Duration
	// Exclude reports whether path should be ignored entirely (mirroring
	// the persistent index's own exclusion list, per spec §4.10).
	Exclude func(path string) bool
}

func (o *WatcherOptions) setDefaults() {
	if o.Stabilization <= 0 {
		o.Stabilization = DefaultStabilizationWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultFileSystemDebounce
	}
	if o.Exclude == nil {
		o.Exclude = func(string) bool { return false }
	}
}

// FileWatcher watches a directory tree and keeps persistentindex current
// with on-disk changes (spec §4.10 source 2). Grounded on the teacher's
// pkg/indexer/watcher.go FileWatcher: one fsnotify.Watcher, a per-path
// debounce-timer map, and recursive directory registration.
type FileWatcher struct {
	watcher    *fsnotify.Watcher
	persistent *persistentindex.Index
	logger     *slog.Logger
	opts       WatcherOptions

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer
	inProgress     map[string]bool

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewFileWatcher constructs a FileWatcher over persistent. Call Start to
// begin watching.
func NewFileWatcher(persistent *persistentindex.Index, opts WatcherOptions, logger *slog.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts.setDefaults()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("freshness: create watcher: %w", err)
	}
	return &FileWatcher{
		watcher:        w,
		persistent:     persistent,
		logger:         logger,
		opts:           opts,
		debounceTimers: make(map[string]*time.Timer),
		inProgress:     make(map[string]bool),
		stopChan:       make(chan struct{}),
	}, nil
}

// Start begins watching rootPath and every non-excluded subdirectory,
// then runs the event loop in the background.
func (fw *FileWatcher) Start(rootPath string) error {
	if err := fw.watcher.Add(rootPath); err != nil {
		return fmt.Errorf("freshness: watch %s: %w", rootPath, err)
	}

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if fw.opts.Exclude(path) {
			return filepath.SkipDir
		}
		if addErr := fw.watcher.Add(path); addErr != nil {
			fw.logger.Warn("failed to watch directory", "path", path, "error", addErr)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("freshness: walk %s: %w", rootPath, err)
	}

	go fw.eventLoop()
	return nil
}

// Stop stops the watcher. Idempotent.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.stopChan)

		fw.debounceMu.Lock()
		for _, timer := range fw.debounceTimers {
			timer.Stop()
		}
		fw.debounceTimers = make(map[string]*time.Timer)
		fw.debounceMu.Unlock()

		err = fw.watcher.Close()
	})
	return err
}

func (fw *FileWatcher) eventLoop() {
	for {
		select {
		case <-fw.stopChan:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("file watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	if fw.opts.Exclude(event.Name) {
		return
	}

	switch {
	case event.Op&fsnotify.Write == fsnotify.Write, event.Op&fsnotify.Create == fsnotify.Create:
		fw.debounceReindex(event.Name)
	case event.Op&fsnotify.Remove == fsnotify.Remove, event.Op&fsnotify.Rename == fsnotify.Rename:
		fw.remove(event.Name)
	}
}

// debounceReindex schedules a stabilize-then-reindex after Debounce has
// elapsed with no further events for path, dropping duplicate triggers
// for a path already being processed.
func (fw *FileWatcher) debounceReindex(path string) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if fw.inProgress[path] {
		return
	}
	if timer, exists := fw.debounceTimers[path]; exists {
		timer.Stop()
	}
	fw.debounceTimers[path] = time.AfterFunc(fw.opts.Debounce, func() {
		fw.debounceMu.Lock()
		delete(fw.debounceTimers, path)
		fw.inProgress[path] = true
		fw.debounceMu.Unlock()

		fw.waitForStableThenReindex(path)

		fw.debounceMu.Lock()
		delete(fw.inProgress, path)
		fw.debounceMu.Unlock()
	})
}

// waitForStableThenReindex polls path's mtime every PollInterval until it
// stops changing for one full Stabilization window (spec §5's
// "write-finish stabilization"), then hands it to persistentindex.
func (fw *FileWatcher) waitForStableThenReindex(path string) {
	deadline := time.Now().Add(10 * time.Second)
	var lastMtime time.Time
	stableSince := time.Time{}

	for time.Now().Before(deadline) {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				fw.remove(path)
				return
			}
			fw.logger.Warn("stat failed during stabilization wait", "path", path, "error", err)
			return
		}

		mtime := info.ModTime()
		if mtime.Equal(lastMtime) {
			if stableSince.IsZero() {
				stableSince = time.Now()
			}
			if time.Since(stableSince) >= fw.opts.Stabilization {
				break
			}
		} else {
			lastMtime = mtime
			stableSince = time.Time{}
		}
		time.Sleep(fw.opts.PollInterval)
	}

	if err := fw.persistent.EnsureUpToDate(context.Background(), []string{path}); err != nil {
		fw.logger.Warn("reindex after file-system change failed", "path", path, "error", err)
	}
}

func (fw *FileWatcher) remove(path string) {
	if err := fw.persistent.RemoveFile(path); err != nil {
		fw.logger.Warn("remove after file-system delete failed", "path", path, "error", err)
	}
}
