// Package types holds the value types shared across the symbol index: the
// unit of definition (IndexedSymbol), the unit of usage (IndexedReference),
// deferred cross-file references, import/export metadata, and the per-file
// shard that bundles them for persistence.
//
// Every type here is a plain value — no pointers into a parser AST, no
// shared mutable state. Workers hand these across goroutine boundaries by
// value or by owned slice, never by reference into a tree-sitter tree.
package types

import "fmt"

// SymbolKind enumerates the declaration kinds the extractor recognizes.
type SymbolKind string

const (
	SymbolFunction      SymbolKind = "function"
	SymbolClass         SymbolKind = "class"
	SymbolMethod        SymbolKind = "method"
	SymbolProperty      SymbolKind = "property"
	SymbolVariable      SymbolKind = "variable"
	SymbolConstant      SymbolKind = "constant"
	SymbolInterface     SymbolKind = "interface"
	SymbolType          SymbolKind = "type"
	SymbolEnum          SymbolKind = "enum"
	SymbolVirtualMethod SymbolKind = "virtual-method"
)

// SymbolID is the stable identifier described in spec §3:
// <filePathHash8>:<containerPath>.<symbolName>[#sigHash4]
//
// It survives line edits and changes only when name, container, signature,
// or the owning file's path changes. Construct it with NewSymbolID; never
// build one by hand-formatting the string, so the format can evolve in one
// place. pkg/shardcodec stores the ID as an opaque string and never parses
// it.
type SymbolID string

// NewSymbolID builds a SymbolID from its constituent parts. sigHash is the
// overload disambiguator (spec §3: encodes isStatic + parameter arity); pass
// "" when the symbol can't be overloaded (classes, variables, etc).
func NewSymbolID(filePathHash8 string, containerPath string, name string, sigHash4 string) SymbolID {
	base := fmt.Sprintf("%s:%s", filePathHash8, joinContainer(containerPath, name))
	if sigHash4 != "" {
		base = base + "#" + sigHash4
	}
	return SymbolID(base)
}

func joinContainer(containerPath, name string) string {
	if containerPath == "" {
		return name
	}
	return containerPath + "." + name
}

// SigHash computes the 4-character overload disambiguator from staticness
// and parameter count, per spec §3 ("Overload disambiguator encodes isStatic
// and parameter arity").
func SigHash(isStatic bool, parameterCount int) string {
	s := 0
	if isStatic {
		s = 1
	}
	return fmt.Sprintf("s%d%02d", s, parameterCount%100)
}

// Location is a single point in source: (uri, line, column). Line and
// column are 1-based (editor/LSP convention).
type Location struct {
	URI    string
	Line   uint32
	Column uint32
}

// Range is a span in source, start inclusive and end exclusive, 1-based
// line/column.
type Range struct {
	StartLine   uint32
	StartColumn uint32
	EndLine     uint32
	EndColumn   uint32
}

// ActionGroupMetadata is the concrete shape stored under
// IndexedSymbol.Metadata["actionGroup"] for action-group container symbols:
// it maps each original event-key string to its camelCased virtual-method
// name. pkg/finalizer does not read Events; it derives the camelCase and
// PascalCase forms itself from each virtual method's "eventKey" metadata.
type ActionGroupMetadata struct {
	// IsGroup marks the container symbol itself (spec §4.6 Phase 2:
	// "symbols whose framework metadata declares isGroup=true").
	IsGroup bool
	// Events maps original event-key string -> camelCase virtual method name.
	Events map[string]string
}

// RoleMetadata marks a symbol produced by an action-creator/effect/reducer
// factory (spec §4.2 built-in behaviours).
type RoleMetadata struct {
	Role string // "action" | "effect" | "reducer"
}

// IndexedSymbol is the unit of "definition" (spec §3).
type IndexedSymbol struct {
	ID       SymbolID
	Name     string
	Kind     SymbolKind
	Location Location
	Range    Range

	ContainerName     string
	ContainerKind     SymbolKind
	FullContainerPath string
	HasContainer      bool

	IsStatic         bool
	HasIsStatic      bool
	ParametersCount  int
	HasParamsCount   bool

	// Metadata carries opaque, framework-specific payloads. Known keys:
	// "actionGroup" -> ActionGroupMetadata, "role" -> RoleMetadata.
	Metadata map[string]any
}

// IndexedReference is the unit of "usage" (spec §3). An identifier at a
// declaration site is never represented here — see the Declaration
// exclusion invariant in spec §8.
type IndexedReference struct {
	SymbolName string
	Location   Location
	Range      Range

	ContainerName string
	HasContainer  bool
	ScopeID       string
	HasScopeID    bool
	IsLocal       bool
	HasIsLocal    bool
	IsImport      bool
	HasIsImport   bool
}

// PendingReference is a deferred reference whose target needs cross-file
// context to resolve — canonically, an action-group member access
// (spec §3, §4.9, GLOSSARY).
type PendingReference struct {
	Container     string
	Member        string
	Location      Location
	Range         Range
	ContainerName string
	HasContainer  bool
}

// ImportInfo represents one imported binding (spec §3).
type ImportInfo struct {
	LocalName        string
	ModuleSpecifier  string
	IsDefault        bool
	IsNamespace      bool
	ExportedName     string
	HasExportedName  bool
}

// ReExportInfo represents a `export … from '…'` re-export statement.
type ReExportInfo struct {
	ModuleSpecifier string
	IsAll           bool
	ExportedNames   []string
}

// FileShard is everything extracted from one source file (spec §3).
// Ownership: exclusively owned on disk by the shard store (pkg/shardstore);
// the persistent index only ever holds transient copies while applying an
// update.
type FileShard struct {
	URI         string
	ContentHash string
	Mtime       int64 // unix nanoseconds

	Symbols            []IndexedSymbol
	References         []IndexedReference
	Imports            []ImportInfo
	ReExports          []ReExportInfo
	PendingReferences  []PendingReference

	ShardVersion  int
	LastIndexedAt int64 // unix milliseconds
}

// CurrentShardVersion is bumped whenever the extractor's output shape
// changes in a way that invalidates previously persisted shards (spec
// §4.3: "shardVersion field ... mismatch forces a re-index").
const CurrentShardVersion = 1

// FileMetadata is the persistent index's in-memory summary of one file,
// always consistent with the on-disk shard at quiescence (spec §3).
type FileMetadata struct {
	ContentHash   string
	Mtime         int64
	LastIndexedAt int64
	SymbolCount   int
	ShardVersion  int
}
