package shardcodec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartindex/core/pkg/types"
)

func sampleShard() types.FileShard {
	return types.FileShard{
		URI:         "file:///a.ts",
		ContentHash: "abc123",
		Mtime:       1000,
		Symbols: []types.IndexedSymbol{
			{
				ID:   types.NewSymbolID("deadbeef", "UserService", "getUser", "s0a01"),
				Name: "getUser",
				Kind: types.SymbolMethod,
				Location: types.Location{URI: "file:///a.ts", Line: 3, Column: 3},
				Range: types.Range{StartLine: 2, StartColumn: 1, EndLine: 4, EndColumn: 2},
				ContainerName: "UserService",
				HasContainer:  true,
				Metadata: map[string]any{
					"role": types.RoleMetadata{Role: "action"},
				},
			},
		},
		References: []types.IndexedReference{
			{
				SymbolName: "service",
				Location:   types.Location{URI: "file:///a.ts", Line: 8, Column: 10},
				Range:      types.Range{StartLine: 8, StartColumn: 10, EndLine: 8, EndColumn: 17},
				ScopeID:    "function_declaration@42",
				HasScopeID: true,
				IsLocal:    true,
				HasIsLocal: true,
			},
		},
		Imports: []types.ImportInfo{
			{LocalName: "React", ModuleSpecifier: "react", IsDefault: true},
		},
		ReExports: []types.ReExportInfo{
			{ModuleSpecifier: "./other", ExportedNames: []string{"foo", "bar"}},
		},
		PendingReferences: []types.PendingReference{
			{Container: "PageActions", Member: "loadData", ContainerName: "PageActions", HasContainer: true},
		},
		ShardVersion:  types.CurrentShardVersion,
		LastIndexedAt: 5000,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	shard := sampleShard()

	data, err := Encode(shard)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, shard.URI, got.URI)
	assert.Equal(t, shard.ContentHash, got.ContentHash)
	assert.Equal(t, shard.Mtime, got.Mtime)
	assert.Equal(t, shard.ShardVersion, got.ShardVersion)
	require.Len(t, got.Symbols, 1)
	assert.Equal(t, shard.Symbols[0].ID, got.Symbols[0].ID)
	assert.Equal(t, shard.Symbols[0].Metadata["role"], got.Symbols[0].Metadata["role"])
	require.Len(t, got.References, 1)
	assert.Equal(t, shard.References[0].ScopeID, got.References[0].ScopeID)
	require.Len(t, got.ReExports, 1)
	assert.Equal(t, []string{"foo", "bar"}, got.ReExports[0].ExportedNames)
}

func TestDecodeRejectsNonBinary(t *testing.T) {
	_, err := Decode([]byte("not a shard"))
	assert.ErrorIs(t, err, ErrNotBinary)
}

func TestDecodeLegacyJSON(t *testing.T) {
	shard := sampleShard()
	legacyBytes, err := json.Marshal(legacyShard{
		URI:          shard.URI,
		ContentHash:  shard.ContentHash,
		Mtime:        shard.Mtime,
		Symbols:      shard.Symbols,
		ShardVersion: shard.ShardVersion,
	})
	require.NoError(t, err)

	got, err := DecodeLegacy(legacyBytes)
	require.NoError(t, err)
	assert.Equal(t, shard.URI, got.URI)
	assert.Equal(t, shard.ContentHash, got.ContentHash)
}

func TestEncodedSizeSmallerThanJSON(t *testing.T) {
	shard := sampleShard()
	binBytes, err := Encode(shard)
	require.NoError(t, err)
	jsonBytes, err := json.Marshal(shard)
	require.NoError(t, err)

	assert.Less(t, len(binBytes), len(jsonBytes))
}
