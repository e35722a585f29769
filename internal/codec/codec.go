// Package codec implements the fixed-layout record encoding used by every
// column family (spec §2.2, §6). Keys that participate in ordered range
// scans are encoded big-endian so byte-order sorting matches numeric order;
// values that are only ever point-read use little-endian for cheaper native
// decoding, mirroring the convention wire.ReadElement/WriteElement follow in
// the teacher (big-endian keys, little-endian payload fields).
package codec

import (
	"encoding/binary"

	"github.com/raipay/chronik-sub000/internal/primitives"
)

// BEHeight encodes a BlockHeight as a big-endian 4-byte key, so lexical scan
// order equals numeric order for non-negative heights. The -1 "no tip"
// sentinel encodes as 0xFFFFFFFF and so sorts after every real height.
func BEHeight(h primitives.BlockHeight) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(int32(h)))
	return b
}

func DecodeBEHeight(b []byte) primitives.BlockHeight {
	return primitives.BlockHeight(int32(binary.BigEndian.Uint32(b)))
}

// BETxNum encodes a TxNum as a big-endian 8-byte key.
func BETxNum(n primitives.TxNum) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(n))
	return b
}

func DecodeBETxNum(b []byte) primitives.TxNum {
	return primitives.TxNum(binary.BigEndian.Uint64(b))
}

// BETokenNum encodes a TokenNum as a big-endian 4-byte key.
func BETokenNum(n primitives.TokenNum) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(n))
	return b
}

func DecodeBETokenNum(b []byte) primitives.TokenNum {
	return primitives.TokenNum(binary.BigEndian.Uint32(b))
}

// BEUint32 / BEUint64 are general big-endian helpers for list-element
// fields that must sort (out_idx inside utxos/spends records).
func BEUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func DecodeBEUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

func LEUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func DecodeLEUint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

func LEUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func DecodeLEUint64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

func LEInt64(v int64) []byte { return LEUint64(uint64(v)) }

func DecodeLEInt64(b []byte) int64 { return int64(DecodeLEUint64(b)) }

// PutTxid/GetTxid copy a 32-byte digest in and out of a record buffer.
func PutTxid(dst []byte, t primitives.Txid) { copy(dst, t[:]) }

func GetTxid(src []byte) primitives.Txid {
	var t primitives.Txid
	copy(t[:], src)
	return t
}

func PutBlockHash(dst []byte, h primitives.BlockHash) { copy(dst, h[:]) }

func GetBlockHash(src []byte) primitives.BlockHash {
	var h primitives.BlockHash
	copy(h[:], src)
	return h
}

func PutTokenId(dst []byte, id primitives.TokenId) { copy(dst, id[:]) }

func GetTokenId(src []byte) primitives.TokenId {
	var id primitives.TokenId
	copy(id[:], src)
	return id
}

// PutInt128 writes a signed 128-bit integer as two little-endian i64 limbs
// (low, high). TokenStats values use this for total_minted/total_burned.
func PutInt128(dst []byte, v Int128) {
	binary.LittleEndian.PutUint64(dst[0:8], v.Lo)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(v.Hi))
}

func GetInt128(src []byte) Int128 {
	return Int128{
		Lo: binary.LittleEndian.Uint64(src[0:8]),
		Hi: int64(binary.LittleEndian.Uint64(src[8:16])),
	}
}

// Int128 is a minimal signed 128-bit integer: Hi holds the signed high limb,
// Lo the unsigned low limb. Token supply deltas never approach the range
// where the split representation itself needs carrying logic beyond Add.
type Int128 struct {
	Lo uint64
	Hi int64
}

func Int128FromInt64(v int64) Int128 {
	if v < 0 {
		return Int128{Lo: uint64(v), Hi: -1}
	}
	return Int128{Lo: uint64(v), Hi: 0}
}

// Add returns a+b with a 64-bit carry/borrow across the limb boundary.
func (a Int128) Add(b Int128) Int128 {
	lo := a.Lo + b.Lo
	hi := a.Hi + b.Hi
	if lo < a.Lo { // unsigned carry out of the low limb
		hi++
	}
	return Int128{Lo: lo, Hi: hi}
}

func (a Int128) Sub(b Int128) Int128 {
	return a.Add(Int128{Lo: ^b.Lo + 1, Hi: ^b.Hi + boolToInt64(b.Lo == 0)})
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
