package shardcodec

import (
	"encoding/json"

	"github.com/smartindex/core/pkg/types"
)

// legacyShard mirrors the pre-binary, naive textual encoding this project
// shipped before the codec above. DecodeLegacy exists purely as a migration
// path (spec §4.3): if shard bytes don't start with the binary magic, try
// parsing them as this JSON shape before giving up.
type legacyShard struct {
	URI               string                   `json:"uri"`
	ContentHash       string                   `json:"contentHash"`
	Mtime             int64                    `json:"mtime"`
	Symbols           []types.IndexedSymbol    `json:"symbols"`
	References        []types.IndexedReference `json:"references"`
	Imports           []types.ImportInfo       `json:"imports"`
	ReExports         []types.ReExportInfo     `json:"reExports"`
	PendingReferences []types.PendingReference `json:"pendingReferences"`
	ShardVersion      int                      `json:"shardVersion"`
	LastIndexedAt     int64                    `json:"lastIndexedAt"`
}

// DecodeLegacy attempts to parse data as the old JSON shard format. Callers
// should try this only after Decode returns ErrNotBinary. A shard decoded
// this way is transparently rewritten in the binary format on next persist
// by pkg/shardstore — DecodeLegacy never writes anything itself.
func DecodeLegacy(data []byte) (types.FileShard, error) {
	var legacy legacyShard
	if err := json.Unmarshal(data, &legacy); err != nil {
		return types.FileShard{}, err
	}
	return types.FileShard{
		URI:               legacy.URI,
		ContentHash:       legacy.ContentHash,
		Mtime:             legacy.Mtime,
		Symbols:           legacy.Symbols,
		References:        legacy.References,
		Imports:           legacy.Imports,
		ReExports:         legacy.ReExports,
		PendingReferences: legacy.PendingReferences,
		ShardVersion:      legacy.ShardVersion,
		LastIndexedAt:     legacy.LastIndexedAt,
	}, nil
}
