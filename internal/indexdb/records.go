// Package indexdb implements the primary indexes of spec §4.3-§4.8: blocks,
// block-stats, txs, script-txs, utxos, spends, and token-state, each its own
// file here mirroring the one-file-per-entity layout of chronik-rocksdb
// (blocks.rs, txs.rs, script_txs.rs, utxos.rs, spends.rs, slp.rs).
package indexdb

import (
	"github.com/raipay/chronik-sub000/internal/codec"
	"github.com/raipay/chronik-sub000/internal/primitives"
	"github.com/raipay/chronik-sub000/internal/store"
)

// txNumCodec is the store.RecordCodec for an ordered list of TxNum — used
// by script_txs pages, and as the serial type of both hash-bucket indexes.
type txNumCodec struct{}

func (txNumCodec) Size() int                         { return 8 }
func (txNumCodec) Encode(n primitives.TxNum) []byte  { return codec.BETxNum(n) }
func (txNumCodec) Decode(b []byte) primitives.TxNum  { return codec.DecodeBETxNum(b) }
func (txNumCodec) Compare(a, b primitives.TxNum) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

var TxNumCodec store.RecordCodec[primitives.TxNum] = txNumCodec{}

// heightCodec is the store.RecordCodec for an ordered list of BlockHeight —
// the serial type of blocks_index_by_hash.
type heightCodec struct{}

func (heightCodec) Size() int                            { return 4 }
func (heightCodec) Encode(h primitives.BlockHeight) []byte { return codec.BEHeight(h) }
func (heightCodec) Decode(b []byte) primitives.BlockHeight { return codec.DecodeBEHeight(b) }
func (heightCodec) Compare(a, b primitives.BlockHeight) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

var HeightCodec store.RecordCodec[primitives.BlockHeight] = heightCodec{}

// Outpoint is a (TxNum, OutIdx) pair: the utxos list-element type.
type Outpoint struct {
	TxNum  primitives.TxNum
	OutIdx uint32
}

type outpointCodec struct{}

func (outpointCodec) Size() int { return 12 }
func (outpointCodec) Encode(o Outpoint) []byte {
	b := make([]byte, 12)
	copy(b[0:8], codec.BETxNum(o.TxNum))
	copy(b[8:12], codec.BEUint32(o.OutIdx))
	return b
}
func (outpointCodec) Decode(b []byte) Outpoint {
	return Outpoint{TxNum: codec.DecodeBETxNum(b[0:8]), OutIdx: codec.DecodeBEUint32(b[8:12])}
}
func (outpointCodec) Compare(a, b Outpoint) int {
	if a.TxNum != b.TxNum {
		if a.TxNum < b.TxNum {
			return -1
		}
		return 1
	}
	if a.OutIdx != b.OutIdx {
		if a.OutIdx < b.OutIdx {
			return -1
		}
		return 1
	}
	return 0
}

var OutpointCodec store.RecordCodec[Outpoint] = outpointCodec{}

// SpendRecord is a (out_idx, spending_tx_num, input_idx) triple: the spends
// list-element type (spec §4.7).
type SpendRecord struct {
	OutIdx        uint32
	SpendingTxNum primitives.TxNum
	InputIdx      uint32
}

type spendRecordCodec struct{}

func (spendRecordCodec) Size() int { return 16 }
func (spendRecordCodec) Encode(r SpendRecord) []byte {
	b := make([]byte, 16)
	copy(b[0:4], codec.BEUint32(r.OutIdx))
	copy(b[4:12], codec.BETxNum(r.SpendingTxNum))
	copy(b[12:16], codec.BEUint32(r.InputIdx))
	return b
}
func (spendRecordCodec) Decode(b []byte) SpendRecord {
	return SpendRecord{
		OutIdx:        codec.DecodeBEUint32(b[0:4]),
		SpendingTxNum: codec.DecodeBETxNum(b[4:12]),
		InputIdx:      codec.DecodeBEUint32(b[12:16]),
	}
}
func (spendRecordCodec) Compare(a, b SpendRecord) int {
	if a.OutIdx != b.OutIdx {
		if a.OutIdx < b.OutIdx {
			return -1
		}
		return 1
	}
	if a.SpendingTxNum != b.SpendingTxNum {
		if a.SpendingTxNum < b.SpendingTxNum {
			return -1
		}
		return 1
	}
	if a.InputIdx != b.InputIdx {
		if a.InputIdx < b.InputIdx {
			return -1
		}
		return 1
	}
	return 0
}

var SpendRecordCodec store.RecordCodec[SpendRecord] = spendRecordCodec{}
