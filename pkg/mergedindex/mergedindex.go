// Package mergedindex is the stateless read façade spec.md §4.8 /
// SPEC_FULL.md §4.9 names (C9): every read operation queries the
// open-file index (C8) and the persistent index (C7) in parallel, unions
// the results, and dedups by (name, uri, line, column) with the open-file
// copy always winning a URI overlap — an open buffer is definitionally
// more current than whatever is last persisted to disk.
//
// Holds no state of its own; grounded on gnana997-uispec's catalog
// lookups being thin read-only wrappers with no independent storage,
// generalized here to a two-source merge instead of a single map read.
package mergedindex

import (
	"sort"
	"sync"

	"github.com/smartindex/core/pkg/fuzzy"
	"github.com/smartindex/core/pkg/openfileindex"
	"github.com/smartindex/core/pkg/persistentindex"
	"github.com/smartindex/core/pkg/types"
)

// Index merges pkg/openfileindex (C8) and pkg/persistentindex (C7) into
// one read surface. Safe for concurrent use (both sources are).
type Index struct {
	openFiles  *openfileindex.Index
	persistent *persistentindex.Index
}

// New constructs a merged read façade over openFiles and persistent.
func New(openFiles *openfileindex.Index, persistent *persistentindex.Index) *Index {
	return &Index{openFiles: openFiles, persistent: persistent}
}

type symbolKey struct {
	name   string
	uri    string
	line   uint32
	column uint32
}

func keyOfSymbol(s types.IndexedSymbol) symbolKey {
	return symbolKey{name: s.Name, uri: s.Location.URI, line: s.Location.Line, column: s.Location.Column}
}

func keyOfReference(r types.IndexedReference) symbolKey {
	return symbolKey{name: r.SymbolName, uri: r.Location.URI, line: r.Location.Line, column: r.Location.Column}
}

// FindDefinitions merges open-file and persistent-index definitions for
// name, open-file copies winning on overlap.
func (m *Index) FindDefinitions(name string) []types.IndexedSymbol {
	var openSyms, persistentSyms []types.IndexedSymbol
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); openSyms = m.openFileDefinitions(name) }()
	go func() { defer wg.Done(); persistentSyms = m.persistent.FindDefinitions(name) }()
	wg.Wait()

	return mergeSymbols(openSyms, persistentSyms)
}

func (m *Index) openFileDefinitions(name string) []types.IndexedSymbol {
	var out []types.IndexedSymbol
	for uri := range m.openFiles.OpenURIs() {
		for _, sym := range m.openFiles.GetSymbols(uri) {
			if sym.Name == name {
				out = append(out, sym)
			}
		}
	}
	return out
}

// FindReferencesByName merges open-file and persistent-index references
// for name, open-file copies winning on overlap.
func (m *Index) FindReferencesByName(name string) []types.IndexedReference {
	var openRefs, persistentRefs []types.IndexedReference
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); openRefs = m.openFileReferences(name) }()
	go func() { defer wg.Done(); persistentRefs = m.persistent.FindReferencesByName(name) }()
	wg.Wait()

	return mergeReferences(openRefs, persistentRefs)
}

func (m *Index) openFileReferences(name string) []types.IndexedReference {
	var out []types.IndexedReference
	for uri := range m.openFiles.OpenURIs() {
		for _, ref := range m.openFiles.GetReferences(uri) {
			if ref.SymbolName == name {
				out = append(out, ref)
			}
		}
	}
	return out
}

// GetFileSymbols returns uri's symbols from the open-file mirror if uri
// is currently open, otherwise from the persistent index.
func (m *Index) GetFileSymbols(uri string) []types.IndexedSymbol {
	if m.openFiles.IsOpen(uri) {
		return m.openFiles.GetSymbols(uri)
	}
	return m.persistent.GetFileSymbols(uri)
}

// GetFileImports returns uri's imports from the open-file mirror if uri
// is currently open, otherwise from the persistent index.
func (m *Index) GetFileImports(uri string) []types.ImportInfo {
	if shard, ok := m.openFiles.Shard(uri); ok {
		return shard.Imports
	}
	return m.persistent.GetFileImports(uri)
}

// GetFileReferences returns uri's references from the open-file mirror if
// uri is currently open, otherwise from the persistent index.
func (m *Index) GetFileReferences(uri string) []types.IndexedReference {
	if m.openFiles.IsOpen(uri) {
		return m.openFiles.GetReferences(uri)
	}
	return m.persistent.GetFileReferences(uri)
}

// FindDefinitionAt implements spec §6's "definition lookup at (uri, line,
// col)": if the position lands exactly on a symbol's own declaration, that
// symbol is its own definition; otherwise, if it lands on a reference, the
// reference's symbol name is looked up across the whole workspace via
// FindDefinitions. Returns nil if the position matches neither.
func (m *Index) FindDefinitionAt(uri string, line, column uint32) []types.IndexedSymbol {
	for _, sym := range m.GetFileSymbols(uri) {
		if sym.Location.Line == line && sym.Location.Column == column {
			return []types.IndexedSymbol{sym}
		}
	}
	for _, ref := range m.GetFileReferences(uri) {
		if ref.Location.Line == line && ref.Location.Column == column {
			return m.FindDefinitions(ref.SymbolName)
		}
	}
	return nil
}

// searchCandidate is one matched name with its raw fuzzy score;
// SearchSymbols adds the context bonus afterwards, once per resolved
// symbol location.
type searchCandidate struct {
	name  string
	score float64
}

// SearchSymbols merges open-file and persistent-index symbol names,
// scores each against query with pkg/fuzzy.Score, adds
// pkg/fuzzy.ContextBonus (open-file / same-directory / node_modules /
// build-output adjustments) on top, and returns the top limit symbols.
// originURI, if non-empty, is the file the search was issued from (for
// the same-directory bonus).
func (m *Index) SearchSymbols(query string, limit int, originURI string) []types.IndexedSymbol {
	if limit <= 0 {
		return nil
	}

	names := make(map[string]bool)
	for uri := range m.openFiles.OpenURIs() {
		for _, sym := range m.openFiles.GetSymbols(uri) {
			names[sym.Name] = true
		}
	}
	// Persistent-index search already ranks by raw fuzzy score; pull its
	// matched names back out rather than re-scanning every shard here.
	for _, sym := range m.persistent.SearchSymbols(query, limit*2) {
		names[sym.Name] = true
	}

	openURIs := m.openFiles.OpenURIs()

	var candidates []searchCandidate
	for name := range names {
		match := fuzzy.Score(query, name)
		if !match.Matched {
			continue
		}
		candidates = append(candidates, searchCandidate{name: name, score: match.Score})
	}

	var resolved []types.IndexedSymbol
	for _, c := range candidates {
		for _, sym := range m.FindDefinitions(c.name) {
			bonus := fuzzy.ContextBonus(sym.Location.URI, openURIs, originURI)
			sym.Metadata = withRankMetadata(sym.Metadata, c.score+float64(bonus))
			resolved = append(resolved, sym)
		}
	}

	sort.Slice(resolved, func(i, j int) bool {
		si := rankOf(resolved[i])
		sj := rankOf(resolved[j])
		if si != sj {
			return si > sj
		}
		if resolved[i].Name != resolved[j].Name {
			return resolved[i].Name < resolved[j].Name
		}
		return resolved[i].Location.URI < resolved[j].Location.URI
	})
	if len(resolved) > limit {
		resolved = resolved[:limit]
	}
	return resolved
}

func withRankMetadata(meta map[string]any, rank float64) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out["searchRank"] = rank
	return out
}

func rankOf(sym types.IndexedSymbol) float64 {
	if r, ok := sym.Metadata["searchRank"].(float64); ok {
		return r
	}
	return 0
}

func mergeSymbols(openSyms, persistentSyms []types.IndexedSymbol) []types.IndexedSymbol {
	seen := make(map[symbolKey]bool, len(openSyms))
	openURIs := make(map[string]bool, len(openSyms))
	out := make([]types.IndexedSymbol, 0, len(openSyms)+len(persistentSyms))
	for _, s := range openSyms {
		seen[keyOfSymbol(s)] = true
		openURIs[s.Location.URI] = true
		out = append(out, s)
	}
	for _, s := range persistentSyms {
		if seen[keyOfSymbol(s)] || openURIs[s.Location.URI] {
			continue
		}
		out = append(out, s)
	}
	return out
}

func mergeReferences(openRefs, persistentRefs []types.IndexedReference) []types.IndexedReference {
	seen := make(map[symbolKey]bool, len(openRefs))
	openURIs := make(map[string]bool, len(openRefs))
	out := make([]types.IndexedReference, 0, len(openRefs)+len(persistentRefs))
	for _, r := range openRefs {
		seen[keyOfReference(r)] = true
		openURIs[r.Location.URI] = true
		out = append(out, r)
	}
	for _, r := range persistentRefs {
		if seen[keyOfReference(r)] || openURIs[r.Location.URI] {
			continue
		}
		out = append(out, r)
	}
	return out
}

