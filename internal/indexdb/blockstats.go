package indexdb

import (
	"github.com/raipay/chronik-sub000/internal/codec"
	"github.com/raipay/chronik-sub000/internal/primitives"
	"github.com/raipay/chronik-sub000/internal/store"
)

// BlockStats mirrors spec §3's BlockStats aggregate.
type BlockStats struct {
	BlockSize             uint64
	NumTxs                uint64
	NumInputs             uint64
	NumOutputs            uint64
	SumInputSats          int64
	SumCoinbaseOutputSats int64
	SumNormalOutputSats   int64
	SumBurnedSats         int64
}

const blockStatsSize = 8 * 8

func encodeBlockStats(s BlockStats) []byte {
	buf := make([]byte, blockStatsSize)
	copy(buf[0:8], codec.LEUint64(s.BlockSize))
	copy(buf[8:16], codec.LEUint64(s.NumTxs))
	copy(buf[16:24], codec.LEUint64(s.NumInputs))
	copy(buf[24:32], codec.LEUint64(s.NumOutputs))
	copy(buf[32:40], codec.LEInt64(s.SumInputSats))
	copy(buf[40:48], codec.LEInt64(s.SumCoinbaseOutputSats))
	copy(buf[48:56], codec.LEInt64(s.SumNormalOutputSats))
	copy(buf[56:64], codec.LEInt64(s.SumBurnedSats))
	return buf
}

func decodeBlockStats(buf []byte) BlockStats {
	return BlockStats{
		BlockSize:             codec.DecodeLEUint64(buf[0:8]),
		NumTxs:                codec.DecodeLEUint64(buf[8:16]),
		NumInputs:             codec.DecodeLEUint64(buf[16:24]),
		NumOutputs:            codec.DecodeLEUint64(buf[24:32]),
		SumInputSats:          codec.DecodeLEInt64(buf[32:40]),
		SumCoinbaseOutputSats: codec.DecodeLEInt64(buf[40:48]),
		SumNormalOutputSats:   codec.DecodeLEInt64(buf[48:56]),
		SumBurnedSats:         codec.DecodeLEInt64(buf[56:64]),
	}
}

// BlockStatsStore is the per-block counter index of spec §4.3's sibling,
// "BlockStats".
type BlockStatsStore struct{ db *store.DB }

func NewBlockStatsStore(db *store.DB) *BlockStatsStore { return &BlockStatsStore{db: db} }

func (s *BlockStatsStore) Insert(batch *store.Batch, h primitives.BlockHeight, stats BlockStats) {
	batch.Put(store.CFBlockStats, codec.BEHeight(h), encodeBlockStats(stats))
}

func (s *BlockStatsStore) Delete(batch *store.Batch, h primitives.BlockHeight) {
	batch.Delete(store.CFBlockStats, codec.BEHeight(h))
}

func (s *BlockStatsStore) ByHeight(h primitives.BlockHeight) (*BlockStats, error) {
	raw, err := s.db.Get(store.CFBlockStats, codec.BEHeight(h))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	stats := decodeBlockStats(raw)
	return &stats, nil
}
