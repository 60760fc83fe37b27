// Package smartconfig is the symbol index's configuration surface
// (SPEC_FULL.md §6): the cache root, exclusion globs, timeout overrides,
// and logging options that every other component reads at construction
// time. Grounded on the teacher's cmd/uispec/config.go YAML loading
// (gopkg.in/yaml.v3, a project-relative config file with a documented
// fallback chain when absent).
package smartconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/smartindex/core/pkg/logging"
)

// DefaultRootDirName is the default cache root directory name, created
// relative to the workspace root (spec §6: ".smart-index/" default).
const DefaultRootDirName = ".smart-index"

// Config is the full external configuration surface for the symbol
// index, loadable from a project YAML file and overridable by flags.
type Config struct {
	// Root is the cache directory shards and logs live under. Defaults to
	// "<workspace>/.smart-index".
	Root string `yaml:"root"`

	// Exclude is the list of doublestar glob patterns (matching the
	// teacher's scanner's glob conventions) identifying paths never to
	// index: node_modules, build output, etc.
	Exclude []string `yaml:"exclude"`

	// Timeouts overrides the default durations named throughout spec §5.
	// Zero fields fall back to their package-level defaults.
	Timeouts TimeoutsConfig `yaml:"timeouts"`

	// Logging configures the shared structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// MaxCachedShards bounds pkg/persistentindex's decoded-shard LRU cache.
	MaxCachedShards int `yaml:"max_cached_shards"`
}

// TimeoutsConfig overrides spec §5's named timeouts. Durations are
// parsed from Go duration strings ("60s", "500ms").
type TimeoutsConfig struct {
	WorkerTask             time.Duration `yaml:"worker_task"`
	FinalizationWrite      time.Duration `yaml:"finalization_write"`
	WriteCoalesceWindow    time.Duration `yaml:"write_coalesce_window"`
	EditorDebounce         time.Duration `yaml:"editor_debounce"`
	FileSystemDebounce     time.Duration `yaml:"filesystem_debounce"`
	WriteFinishStabilizer  time.Duration `yaml:"write_finish_stabilizer"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level           string `yaml:"level"`
	Format          string `yaml:"format"`
	RotatedFilePath string `yaml:"rotated_file_path"`
}

// DefaultExclude mirrors the teacher's watcher.shouldIgnore default
// ignore set, expressed as doublestar globs instead of a base-name
// switch so it composes with user-supplied patterns.
var DefaultExclude = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/dist/**",
	"**/build/**",
	"**/.next/**",
	"**/out/**",
}

// Default returns the zero-config defaults for a workspace rooted at
// workspaceRoot.
func Default(workspaceRoot string) Config {
	return Config{
		Root:    filepath.Join(workspaceRoot, DefaultRootDirName),
		Exclude: append([]string(nil), DefaultExclude...),
		Timeouts: TimeoutsConfig{
			WorkerTask:            60 * time.Second,
			FinalizationWrite:     5 * time.Second,
			WriteCoalesceWindow:   100 * time.Millisecond,
			EditorDebounce:        500 * time.Millisecond,
			FileSystemDebounce:    600 * time.Millisecond,
			WriteFinishStabilizer: 300 * time.Millisecond,
		},
		Logging:         LoggingConfig{Level: string(logging.LevelInfo), Format: string(logging.FormatJSON)},
		MaxCachedShards: 500,
	}
}

// ConfigFileName is the project config file loaded relative to the
// workspace root, matching the teacher's ".uispec/config.yaml"
// convention with this project's own directory name.
const ConfigFileName = DefaultRootDirName + "/config.yaml"

// Load reads <workspaceRoot>/.smart-index/config.yaml, falling back to
// Default(workspaceRoot) unchanged if the file does not exist. Present
// fields in the file override the defaults field-by-field; absent fields
// keep their default.
func Load(workspaceRoot string) (Config, error) {
	cfg := Default(workspaceRoot)

	path := filepath.Join(workspaceRoot, ConfigFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("smartconfig: read %s: %w", path, err)
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Config{}, fmt.Errorf("smartconfig: parse %s: %w", path, err)
	}
	applyOverrides(&cfg, override, data)
	return cfg, nil
}

// applyOverrides merges override onto cfg. Durations and the shard cache
// size are only overridden when the raw YAML actually set them (a zero
// Duration is ambiguous with "not specified"), detected via a second
// pass with yaml.Node so an explicit "0s" in the file is honored.
func applyOverrides(cfg *Config, override Config, raw []byte) {
	if override.Root != "" {
		cfg.Root = override.Root
	}
	if len(override.Exclude) > 0 {
		cfg.Exclude = override.Exclude
	}
	if override.Logging.Level != "" {
		cfg.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		cfg.Logging.Format = override.Logging.Format
	}
	if override.Logging.RotatedFilePath != "" {
		cfg.Logging.RotatedFilePath = override.Logging.RotatedFilePath
	}

	var probe struct {
		Timeouts        map[string]any `yaml:"timeouts"`
		MaxCachedShards *int           `yaml:"max_cached_shards"`
	}
	_ = yaml.Unmarshal(raw, &probe)

	if probe.MaxCachedShards != nil {
		cfg.MaxCachedShards = *probe.MaxCachedShards
	}
	if _, ok := probe.Timeouts["worker_task"]; ok {
		cfg.Timeouts.WorkerTask = override.Timeouts.WorkerTask
	}
	if _, ok := probe.Timeouts["finalization_write"]; ok {
		cfg.Timeouts.FinalizationWrite = override.Timeouts.FinalizationWrite
	}
	if _, ok := probe.Timeouts["write_coalesce_window"]; ok {
		cfg.Timeouts.WriteCoalesceWindow = override.Timeouts.WriteCoalesceWindow
	}
	if _, ok := probe.Timeouts["editor_debounce"]; ok {
		cfg.Timeouts.EditorDebounce = override.Timeouts.EditorDebounce
	}
	if _, ok := probe.Timeouts["filesystem_debounce"]; ok {
		cfg.Timeouts.FileSystemDebounce = override.Timeouts.FileSystemDebounce
	}
	if _, ok := probe.Timeouts["write_finish_stabilizer"]; ok {
		cfg.Timeouts.WriteFinishStabilizer = override.Timeouts.WriteFinishStabilizer
	}
}

// ExcludeMatcher compiles patterns into a predicate usable as
// persistentindex.Config.Exclude, matching paths with doublestar so
// "**/node_modules/**"-style globs work.
func ExcludeMatcher(patterns []string) func(path string) bool {
	compiled := append([]string(nil), patterns...)
	return func(path string) bool {
		normalized := filepath.ToSlash(path)
		for _, pattern := range compiled {
			if ok, _ := doublestar.PathMatch(pattern, normalized); ok {
				return true
			}
		}
		return false
	}
}
