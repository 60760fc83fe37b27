// Package extractor implements unified per-file extraction of the symbol
// index's value types (pkg/types) from TypeScript/JavaScript source.
//
// Critical optimization carried over from the teacher: parse each file ONCE
// and run every query (symbols, imports, types) against the same tree.
package extractor

import (
	"github.com/smartindex/core/pkg/parser"
	"github.com/smartindex/core/pkg/types"
)

// PerFileResult is everything extracted from one file in a single pass.
// pkg/persistentindex converts this into a types.FileShard once content
// hash and mtime are attached.
type PerFileResult struct {
	FilePath string
	Language parser.Language

	Symbols           []types.IndexedSymbol
	References        []types.IndexedReference
	Imports           []types.ImportInfo
	ReExports         []types.ReExportInfo
	PendingReferences []types.PendingReference

	// TypeAnnotations maps variable/parameter/property names to their
	// declared types, e.g. "service" -> "UserService". Returned to the
	// caller only; no other extraction step reads it, and it is not
	// persisted as part of the shard.
	TypeAnnotations map[string]string
}

// SkippedResult records a file the extractor declined to process — a read
// failure, an unsupported extension, or a parse that produced no usable
// tree. The caller (pkg/workerpool via pkg/persistentindex) logs these and
// continues the batch rather than aborting it (spec §8: partial-failure
// semantics).
type SkippedResult struct {
	FilePath string
	Reason   string
	Err      error
}
