package hashindex

import (
	"github.com/cespare/xxhash/v2"

	"github.com/raipay/chronik-sub000/internal/primitives"
)

// bucketHash64 is the single hash function backing every bucketed index in
// this engine. spec §4.2/§6 name seahash64 truncated to u32; we use xxhash64
// truncated the same way (see DESIGN.md — the algorithm choice isn't
// load-bearing, only that it's fast and stable within one running index).
func bucketHash64(b []byte) uint64 { return xxhash.Sum64(b) }

// HashTxid is the Hasher for the tx_index_by_txid column.
func HashTxid(t primitives.Txid) uint32 { return uint32(bucketHash64(t[:])) }

// HashBlockHash is the Hasher for the blocks_index_by_hash column.
func HashBlockHash(h primitives.BlockHash) uint32 { return uint32(bucketHash64(h[:])) }

// Hash64 exposes the full 64-bit hash for callers outside this package that
// need the un-truncated value rather than a bucket index — spec §4.11's
// transient-data record stores seahash64(txid) (here, its xxhash64
// substitute) at full width, not truncated to a bucket.
func Hash64(b []byte) uint64 { return bucketHash64(b) }
