package shardcodec

import (
	"encoding/binary"
	"io"

	"github.com/smartindex/core/pkg/types"
)

type reader struct {
	r   io.Reader
	err error
}

func (r *reader) readFull(b []byte) error {
	_, err := io.ReadFull(r.r, b)
	return err
}

func (r *reader) readN(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.err = err
	}
	return b
}

func (r *reader) readUint32() uint32 {
	return binary.LittleEndian.Uint32(r.readN(4))
}

func (r *reader) readInt64() int64 {
	return int64(binary.LittleEndian.Uint64(r.readN(8)))
}

func (r *reader) readString() string {
	n := r.readUint32()
	if r.err != nil {
		return ""
	}
	return string(r.readN(int(n)))
}

func (r *reader) readBool() bool {
	return r.readN(1)[0] != 0
}

func (r *reader) readLocation(uri string) types.Location {
	line := r.readUint32()
	col := r.readUint32()
	return types.Location{URI: uri, Line: line, Column: col}
}

func (r *reader) readRange() types.Range {
	return types.Range{
		StartLine:   r.readUint32(),
		StartColumn: r.readUint32(),
		EndLine:     r.readUint32(),
		EndColumn:   r.readUint32(),
	}
}

func (r *reader) readSymbol(uri string) types.IndexedSymbol {
	var s types.IndexedSymbol
	s.ID = types.SymbolID(r.readString())
	s.Name = r.readString()
	s.Kind = types.SymbolKind(r.readString())
	s.Location = r.readLocation(uri)
	s.Range = r.readRange()
	s.ContainerName = r.readString()
	s.ContainerKind = types.SymbolKind(r.readString())
	s.FullContainerPath = r.readString()
	s.HasContainer = r.readBool()
	s.IsStatic = r.readBool()
	s.HasIsStatic = r.readBool()
	s.ParametersCount = int(r.readUint32())
	s.HasParamsCount = r.readBool()
	s.Metadata = r.readMetadata()
	return s
}

func (r *reader) readReference(uri string, scopeTable []string) types.IndexedReference {
	var ref types.IndexedReference
	ref.SymbolName = r.readString()
	ref.Location = r.readLocation(uri)
	ref.Range = r.readRange()
	ref.ContainerName = r.readString()
	ref.HasContainer = r.readBool()
	idx := r.readUint32()
	ref.HasScopeID = r.readBool()
	if ref.HasScopeID && int(idx) < len(scopeTable) {
		ref.ScopeID = scopeTable[idx]
	}
	ref.IsLocal = r.readBool()
	ref.HasIsLocal = r.readBool()
	ref.IsImport = r.readBool()
	ref.HasIsImport = r.readBool()
	return ref
}

func (r *reader) readImport() types.ImportInfo {
	var imp types.ImportInfo
	imp.LocalName = r.readString()
	imp.ModuleSpecifier = r.readString()
	imp.IsDefault = r.readBool()
	imp.IsNamespace = r.readBool()
	imp.ExportedName = r.readString()
	imp.HasExportedName = r.readBool()
	return imp
}

func (r *reader) readReExport() types.ReExportInfo {
	var re types.ReExportInfo
	re.ModuleSpecifier = r.readString()
	re.IsAll = r.readBool()
	n := r.readUint32()
	re.ExportedNames = make([]string, n)
	for i := range re.ExportedNames {
		re.ExportedNames[i] = r.readString()
	}
	return re
}

func (r *reader) readPending(uri string) types.PendingReference {
	var p types.PendingReference
	p.Container = r.readString()
	p.Member = r.readString()
	p.Location = r.readLocation(uri)
	p.Range = r.readRange()
	p.ContainerName = r.readString()
	p.HasContainer = r.readBool()
	return p
}

func (r *reader) readMetadata() map[string]any {
	n := r.readUint32()
	if n == 0 {
		return nil
	}
	m := make(map[string]any, n)
	for i := uint32(0); i < n; i++ {
		key := r.readString()
		tag := r.readN(1)[0]
		switch tag {
		case 1:
			isGroup := r.readBool()
			evCount := r.readUint32()
			events := make(map[string]string, evCount)
			for j := uint32(0); j < evCount; j++ {
				ek := r.readString()
				cn := r.readString()
				events[ek] = cn
			}
			m[key] = types.ActionGroupMetadata{IsGroup: isGroup, Events: events}
		case 2:
			m[key] = types.RoleMetadata{Role: r.readString()}
		case 3:
			m[key] = r.readString()
		}
	}
	return m
}
