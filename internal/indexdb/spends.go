package indexdb

import (
	"github.com/raipay/chronik-sub000/internal/codec"
	"github.com/raipay/chronik-sub000/internal/primitives"
	"github.com/raipay/chronik-sub000/internal/store"
)

// spendsKey is keyed by the spent transaction's TxNum alone; the column's
// value is the merge-ordered list of every SpendRecord against any output
// of that tx (spec §4.7).
func spendsKey(txNum primitives.TxNum) []byte {
	return codec.BETxNum(txNum)
}

// SpendStore is the merge-based ordered-list index of spec §4.7: records
// which output of a transaction was spent by which later input.
type SpendStore struct{ db *store.DB }

func NewSpendStore(db *store.DB) *SpendStore { return &SpendStore{db: db} }

// InsertSpend records that spentTxNum's output outIdx was consumed by
// input inputIdx of spendingTxNum.
func (s *SpendStore) InsertSpend(batch *store.Batch, spentTxNum primitives.TxNum, rec SpendRecord) {
	val := store.InsertOperand(SpendRecordCodec, rec)
	batch.Merge(store.CFSpends, spendsKey(spentTxNum), val)
}

// DeleteSpend undoes a previously recorded spend (used on disconnect, and
// when a mempool tx referencing the spend is evicted without mining).
func (s *SpendStore) DeleteSpend(batch *store.Batch, spentTxNum primitives.TxNum, rec SpendRecord) {
	val := store.DeleteOperand(SpendRecordCodec, rec)
	batch.Merge(store.CFSpends, spendsKey(spentTxNum), val)
}

// BySpentTx lists every recorded spend against outputs of spentTxNum.
func (s *SpendStore) BySpentTx(spentTxNum primitives.TxNum) ([]SpendRecord, error) {
	raw, err := s.db.Get(store.CFSpends, spendsKey(spentTxNum))
	if err != nil {
		return nil, err
	}
	return store.DecodeList(SpendRecordCodec, raw), nil
}

// ByOutpoint finds the spend (if any) of a single output, by linear scan of
// the (usually short) per-tx spend list.
func (s *SpendStore) ByOutpoint(spentTxNum primitives.TxNum, outIdx uint32) (*SpendRecord, error) {
	recs, err := s.BySpentTx(spentTxNum)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r.OutIdx == outIdx {
			return &r, nil
		}
	}
	return nil, nil
}
