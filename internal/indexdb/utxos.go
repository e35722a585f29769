package indexdb

import (
	"github.com/raipay/chronik-sub000/internal/primitives"
	"github.com/raipay/chronik-sub000/internal/store"
)

// UtxoStore is the payload-keyed ordered-outpoint-list index of spec §4.6
// ("script -> [(tx_num, out_idx)]"), grounded on
// chronik-rocksdb/src/utxos.rs's `CF_UTXOS` schema: key is the canonical
// ScriptPayload (`prefix ‖ payload`), value is the merge-maintained sorted
// list of outpoints currently unspent under that script (Outpoint/
// OutpointCodec, the list-element type spec §4.1's merge primitive already
// defines). The value/is-coinbase-ness of a given outpoint is never stored
// here — exactly as in the original schema — since the node already hands
// the engine that data on every RawInput.SpentOutput/RawOutput it supplies;
// duplicating it into this column would just be a second, driftable copy.
type UtxoStore struct{ db *store.DB }

func NewUtxoStore(db *store.DB) *UtxoStore { return &UtxoStore{db: db} }

// Insert adds a newly minted output to payload's outpoint list.
func (s *UtxoStore) Insert(batch *store.Batch, payload primitives.ScriptPayload, txNum primitives.TxNum, outIdx uint32) {
	batch.Merge(store.CFUtxos, payload.Key(), store.InsertOperand(OutpointCodec, Outpoint{TxNum: txNum, OutIdx: outIdx}))
}

// Spend removes a now-spent outpoint from payload's list (spec §4.7: a
// spent output's utxos-list membership is revoked outright; its history
// survives only in the spends column).
func (s *UtxoStore) Spend(batch *store.Batch, payload primitives.ScriptPayload, txNum primitives.TxNum, outIdx uint32) {
	batch.Merge(store.CFUtxos, payload.Key(), store.DeleteOperand(OutpointCodec, Outpoint{TxNum: txNum, OutIdx: outIdx}))
}

// ByPayload lists every outpoint currently unspent under payload, in
// ascending (TxNum, OutIdx) order (spec scenario 1: "utxos(P2SH,
// hash(S)).len() == 10", Testable Property 5 "Utxo projection").
func (s *UtxoStore) ByPayload(payload primitives.ScriptPayload) ([]Outpoint, error) {
	raw, err := s.db.Get(store.CFUtxos, payload.Key())
	if err != nil {
		return nil, err
	}
	return store.DecodeList(OutpointCodec, raw), nil
}
