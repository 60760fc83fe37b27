// Package shardcodec serializes a types.FileShard into a compact binary
// form and back. The format is custom to this project (spec §4.3 names an
// exact byte layout target — short field tags, a deduplicated scope table,
// a single URI in the header) so there is no ecosystem wire-format library
// to delegate to; this package is necessarily built on encoding/binary
// rather than a third-party serializer (see DESIGN.md).
//
// Layout (all multi-byte integers little-endian):
//
//	magic      [4]byte  "SIX1"
//	version    uint32   types.CurrentShardVersion at write time
//	uri        string   (uint32 length prefix + utf8 bytes)
//	contentHash string  (length-prefixed)
//	mtime      int64
//	lastIndexedAt int64
//	scopeTable []string (uint32 count, then each length-prefixed string)
//	symbols    []IndexedSymbol (uint32 count, then each record)
//	references []IndexedReference (uint32 count, then each record; scopeId
//	            stored as a fixed 4-byte uint32 index into scopeTable, or
//	            the sentinel ^uint32(0) when HasScopeID is false)
//	imports    []ImportInfo
//	reExports  []ReExportInfo
//	pending    []PendingReference
package shardcodec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/smartindex/core/pkg/types"
)

var magic = [4]byte{'S', 'I', 'X', '1'}

const noScopeIndex = ^uint32(0)

// Encode serializes shard into the binary wire format described above.
func Encode(shard types.FileShard) ([]byte, error) {
	var buf bytes.Buffer
	w := &writer{w: &buf}

	w.write(magic[:])
	w.writeUint32(uint32(shard.ShardVersion))
	w.writeString(shard.URI)
	w.writeString(shard.ContentHash)
	w.writeInt64(shard.Mtime)
	w.writeInt64(shard.LastIndexedAt)

	scopeTable, scopeIndex := buildScopeTable(shard.References)
	w.writeUint32(uint32(len(scopeTable)))
	for _, s := range scopeTable {
		w.writeString(s)
	}

	w.writeUint32(uint32(len(shard.Symbols)))
	for _, s := range shard.Symbols {
		w.writeSymbol(s)
	}

	w.writeUint32(uint32(len(shard.References)))
	for _, r := range shard.References {
		w.writeReference(r, scopeIndex)
	}

	w.writeUint32(uint32(len(shard.Imports)))
	for _, imp := range shard.Imports {
		w.writeImport(imp)
	}

	w.writeUint32(uint32(len(shard.ReExports)))
	for _, re := range shard.ReExports {
		w.writeReExport(re)
	}

	w.writeUint32(uint32(len(shard.PendingReferences)))
	for _, p := range shard.PendingReferences {
		w.writePending(p)
	}

	if w.err != nil {
		return nil, w.err
	}
	return buf.Bytes(), nil
}

// Decode parses the binary wire format produced by Encode. It does not
// accept the legacy textual format — that path is legacy.go's DecodeLegacy,
// tried by callers as a fallback when Decode reports ErrNotBinary.
func Decode(data []byte) (types.FileShard, error) {
	var shard types.FileShard
	r := &reader{r: bufio.NewReader(bytes.NewReader(data))}

	var gotMagic [4]byte
	if err := r.readFull(gotMagic[:]); err != nil {
		return shard, fmt.Errorf("shardcodec: read magic: %w", err)
	}
	if gotMagic != magic {
		return shard, ErrNotBinary
	}

	version := r.readUint32()
	shard.ShardVersion = int(version)
	shard.URI = r.readString()
	shard.ContentHash = r.readString()
	shard.Mtime = r.readInt64()
	shard.LastIndexedAt = r.readInt64()

	scopeCount := r.readUint32()
	scopeTable := make([]string, scopeCount)
	for i := range scopeTable {
		scopeTable[i] = r.readString()
	}

	symCount := r.readUint32()
	shard.Symbols = make([]types.IndexedSymbol, symCount)
	for i := range shard.Symbols {
		shard.Symbols[i] = r.readSymbol(shard.URI)
	}

	refCount := r.readUint32()
	shard.References = make([]types.IndexedReference, refCount)
	for i := range shard.References {
		shard.References[i] = r.readReference(shard.URI, scopeTable)
	}

	impCount := r.readUint32()
	shard.Imports = make([]types.ImportInfo, impCount)
	for i := range shard.Imports {
		shard.Imports[i] = r.readImport()
	}

	reCount := r.readUint32()
	shard.ReExports = make([]types.ReExportInfo, reCount)
	for i := range shard.ReExports {
		shard.ReExports[i] = r.readReExport()
	}

	pendCount := r.readUint32()
	shard.PendingReferences = make([]types.PendingReference, pendCount)
	for i := range shard.PendingReferences {
		shard.PendingReferences[i] = r.readPending(shard.URI)
	}

	if r.err != nil && r.err != io.EOF {
		return shard, fmt.Errorf("shardcodec: decode: %w", r.err)
	}
	return shard, nil
}

// ErrNotBinary is returned by Decode when data doesn't start with the
// binary magic — the caller should retry via DecodeLegacy (legacy.go).
var ErrNotBinary = fmt.Errorf("shardcodec: not a recognized binary shard")

func buildScopeTable(refs []types.IndexedReference) ([]string, map[string]uint32) {
	index := make(map[string]uint32)
	var table []string
	for _, r := range refs {
		if !r.HasScopeID {
			continue
		}
		if _, ok := index[r.ScopeID]; ok {
			continue
		}
		index[r.ScopeID] = uint32(len(table))
		table = append(table, r.ScopeID)
	}
	return table, index
}

type writer struct {
	w   io.Writer
	err error
}

func (w *writer) write(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(b)
}

func (w *writer) writeUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.write(b[:])
}

func (w *writer) writeInt64(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	w.write(b[:])
}

func (w *writer) writeString(s string) {
	w.writeUint32(uint32(len(s)))
	w.write([]byte(s))
}

func (w *writer) writeBool(b bool) {
	if b {
		w.write([]byte{1})
	} else {
		w.write([]byte{0})
	}
}

func (w *writer) writeLocation(l types.Location) {
	w.writeUint32(l.Line)
	w.writeUint32(l.Column)
}

func (w *writer) writeRange(r types.Range) {
	w.writeUint32(r.StartLine)
	w.writeUint32(r.StartColumn)
	w.writeUint32(r.EndLine)
	w.writeUint32(r.EndColumn)
}

func (w *writer) writeSymbol(s types.IndexedSymbol) {
	w.writeString(string(s.ID))
	w.writeString(s.Name)
	w.writeString(string(s.Kind))
	w.writeLocation(s.Location)
	w.writeRange(s.Range)
	w.writeString(s.ContainerName)
	w.writeString(string(s.ContainerKind))
	w.writeString(s.FullContainerPath)
	w.writeBool(s.HasContainer)
	w.writeBool(s.IsStatic)
	w.writeBool(s.HasIsStatic)
	w.writeUint32(uint32(s.ParametersCount))
	w.writeBool(s.HasParamsCount)
	w.writeMetadata(s.Metadata)
}

func (w *writer) writeReference(r types.IndexedReference, scopeIndex map[string]uint32) {
	w.writeString(r.SymbolName)
	w.writeLocation(r.Location)
	w.writeRange(r.Range)
	w.writeString(r.ContainerName)
	w.writeBool(r.HasContainer)
	idx := noScopeIndex
	if r.HasScopeID {
		idx = scopeIndex[r.ScopeID]
	}
	w.writeUint32(idx)
	w.writeBool(r.HasScopeID)
	w.writeBool(r.IsLocal)
	w.writeBool(r.HasIsLocal)
	w.writeBool(r.IsImport)
	w.writeBool(r.HasIsImport)
}

func (w *writer) writeImport(imp types.ImportInfo) {
	w.writeString(imp.LocalName)
	w.writeString(imp.ModuleSpecifier)
	w.writeBool(imp.IsDefault)
	w.writeBool(imp.IsNamespace)
	w.writeString(imp.ExportedName)
	w.writeBool(imp.HasExportedName)
}

func (w *writer) writeReExport(re types.ReExportInfo) {
	w.writeString(re.ModuleSpecifier)
	w.writeBool(re.IsAll)
	w.writeUint32(uint32(len(re.ExportedNames)))
	for _, n := range re.ExportedNames {
		w.writeString(n)
	}
}

func (w *writer) writePending(p types.PendingReference) {
	w.writeString(p.Container)
	w.writeString(p.Member)
	w.writeLocation(p.Location)
	w.writeRange(p.Range)
	w.writeString(p.ContainerName)
	w.writeBool(p.HasContainer)
}

// writeMetadata encodes the small, known metadata shapes this project
// defines (ActionGroupMetadata, RoleMetadata, or a plain event-key string);
// an unrecognized value is dropped rather than failing the whole shard —
// metadata is advisory, not load-bearing for the invariants C7 maintains.
func (w *writer) writeMetadata(m map[string]any) {
	w.writeUint32(uint32(len(m)))
	for k, v := range m {
		w.writeString(k)
		switch val := v.(type) {
		case types.ActionGroupMetadata:
			w.write([]byte{1})
			w.writeBool(val.IsGroup)
			w.writeUint32(uint32(len(val.Events)))
			for ek, cn := range val.Events {
				w.writeString(ek)
				w.writeString(cn)
			}
		case types.RoleMetadata:
			w.write([]byte{2})
			w.writeString(val.Role)
		case string:
			w.write([]byte{3})
			w.writeString(val)
		default:
			w.write([]byte{0})
		}
	}
}
