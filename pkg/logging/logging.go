// Package logging builds the structured slog.Logger shared by every
// component of the symbol index. The level/format/output shape is the
// teacher's own pkg/util.NewLogger; the optional file output is a plain
// JSONL append-file modeled on the teacher's pkg/mcplog. That file is
// never rotated, date-stamped or pruned.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Level is the configured logging verbosity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format is the configured log-line encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config configures the shared logger.
type Config struct {
	Level  Level
	Format Format
	Output io.Writer

	// RotatedFilePath, if non-empty, also opens an append-only JSONL file
	// at this path (parent directories created automatically) and mirrors
	// every record there in addition to Output. The file is not rotated:
	// it keeps growing at one fixed path, with no date stamp and no
	// removal of old records. Intended for the "what did
	// the background indexer actually do" audit trail described in spec
	// §6's MCP surface.
	RotatedFilePath string
}

// DefaultConfig returns info-level JSON logging to stdout, matching the
// teacher's DefaultLoggerConfig.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Format: FormatJSON, Output: os.Stdout}
}

// New builds a *slog.Logger per Config. The returned closer must be closed
// on shutdown when RotatedFilePath is set; it is a no-op otherwise.
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var rotated *os.File
	if cfg.RotatedFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.RotatedFilePath), 0o755); err != nil {
			return nil, noopCloser{}, fmt.Errorf("logging: create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.RotatedFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, noopCloser{}, fmt.Errorf("logging: open log file: %w", err)
		}
		rotated = f
		output = io.MultiWriter(output, f)
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch cfg.Format {
	case FormatText:
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	logger := slog.New(handler).With("startedAt", time.Now().UTC().Format(time.RFC3339))

	if rotated != nil {
		return logger, rotated, nil
	}
	return logger, noopCloser{}, nil
}

func parseLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }
