// Package primitives defines the identifier and key types shared by every
// column family in the indexer (spec §3). Types here are kept tiny and
// comparable so they can be used directly as map keys in the mempool
// overlay and the token-validator batch.
package primitives

import (
	"encoding/hex"
	"fmt"
)

// BlockHeight is a 32-bit signed block height. -1 means "no tip".
type BlockHeight int32

// NoTip is the sentinel height of an empty index.
const NoTip BlockHeight = -1

// TxNum is the dense, monotonically assigned serial for a confirmed tx.
type TxNum uint64

// TokenNum is the dense serial assigned to a token at its first GENESIS.
type TokenNum uint32

// Txid is a 32-byte transaction digest, stored and compared in its natural
// (not reversed) byte order; hex display reverses bytes the way the rest of
// the Bitcoin-family ecosystem displays hashes.
type Txid [32]byte

// BlockHash is a 32-byte block digest with the same display convention.
type BlockHash [32]byte

func reverseHex(b []byte) string {
	rev := make([]byte, len(b))
	for i, v := range b {
		rev[len(b)-1-i] = v
	}
	return hex.EncodeToString(rev)
}

func (t Txid) String() string      { return reverseHex(t[:]) }
func (b BlockHash) String() string { return reverseHex(b[:]) }

// CoinbaseOutIdx marks the pseudo-input of a coinbase transaction.
const CoinbaseOutIdx uint32 = 0xFFFFFFFF

// OutPoint references a single transaction output.
type OutPoint struct {
	Txid   Txid
	OutIdx uint32
}

func (o OutPoint) IsCoinbase() bool { return o.OutIdx == CoinbaseOutIdx }

func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.Txid, o.OutIdx)
}

// PayloadPrefix tags the canonical form of a ScriptPayload.
type PayloadPrefix byte

const (
	PrefixOther        PayloadPrefix = 0
	PrefixP2PK         PayloadPrefix = 1
	PrefixP2PKLegacy    PayloadPrefix = 2
	PrefixP2PKH        PayloadPrefix = 3
	PrefixP2SH         PayloadPrefix = 4
	PrefixP2TRCommit   PayloadPrefix = 5
	PrefixP2TRState    PayloadPrefix = 6
)

func (p PayloadPrefix) String() string {
	switch p {
	case PrefixOther:
		return "Other"
	case PrefixP2PK:
		return "P2PK"
	case PrefixP2PKLegacy:
		return "P2PKLegacy"
	case PrefixP2PKH:
		return "P2PKH"
	case PrefixP2SH:
		return "P2SH"
	case PrefixP2TRCommit:
		return "P2TRCommit"
	case PrefixP2TRState:
		return "P2TRState"
	default:
		return "Unknown"
	}
}

// ScriptPayload is the canonicalized, prefix-tagged key used to group script
// activity: a standard script yields one payload, a taproot script carrying
// a state commitment yields two partial payloads, OP_RETURN yields none, and
// anything unrecognized falls back to PrefixOther over the raw bytecode.
type ScriptPayload struct {
	Prefix  PayloadPrefix
	Payload []byte
}

// Key returns the canonical on-disk key form: prefix_byte ‖ bytes.
func (p ScriptPayload) Key() []byte {
	out := make([]byte, 1+len(p.Payload))
	out[0] = byte(p.Prefix)
	copy(out[1:], p.Payload)
	return out
}

// KeyString is a map-friendly form of Key, since []byte cannot be a map key.
func (p ScriptPayload) KeyString() string { return string(p.Key()) }

// IsNull reports whether p is the sentinel "no payload" value an OP_RETURN
// output yields (spec: "Null-data (OP_RETURN) scripts yield no payloads").
// This is distinct from a genuine PrefixOther payload, which always carries
// the script's raw bytes in Payload.
func (p ScriptPayload) IsNull() bool { return p.Prefix == PrefixOther && p.Payload == nil }

// ScriptPayloadFromKey parses a key produced by Key.
func ScriptPayloadFromKey(key []byte) ScriptPayload {
	if len(key) == 0 {
		return ScriptPayload{}
	}
	payload := make([]byte, len(key)-1)
	copy(payload, key[1:])
	return ScriptPayload{Prefix: PayloadPrefix(key[0]), Payload: payload}
}

// ScriptPayloadState pairs a payload with whether it's a partial (taproot
// commitment/state split) representation of the originating script.
type ScriptPayloadState struct {
	Payload   ScriptPayload
	IsPartial bool
}

// TokenId is a 32-byte token identifier (the GENESIS txid).
type TokenId [32]byte

func (t TokenId) String() string { return reverseHex(t[:]) }
