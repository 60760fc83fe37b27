package extractor

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// filePathHash8 computes the 8 hex-character file identifier used as the
// first segment of every SymbolID minted for symbols in this file (spec §3).
// xxhash is already a module dependency for shard-path fanout
// (pkg/shardstore); reusing it here keeps the codebase to one hashing
// primitive instead of two.
func filePathHash8(filePath string) string {
	sum := xxhash.Sum64String(filePath)
	return fmt.Sprintf("%08x", uint32(sum))
}
