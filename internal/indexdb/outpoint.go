package indexdb

import "github.com/raipay/chronik-sub000/internal/primitives"

// OutpointResolver resolves a wire-level (txid, out_idx) outpoint to the
// dense (tx_num, out_idx) form every other column keys on. It exists as its
// own small helper (SPEC_FULL's supplemented "outpoint-data helper column");
// the engine's mempool path uses it to resolve a mempool tx's confirmed
// inputs and needs nothing else from TxStore.
type OutpointResolver struct {
	txs *TxStore
}

func NewOutpointResolver(txs *TxStore) *OutpointResolver {
	return &OutpointResolver{txs: txs}
}

// Resolve maps a wire outpoint to its dense form. Returns (zero, false, nil)
// if the referenced transaction isn't indexed (the input is unconfirmed or
// unknown); callers distinguish "not yet confirmed" from "never existed" by
// also checking the mempool overlay.
func (r *OutpointResolver) Resolve(op primitives.OutPoint) (Outpoint, bool, error) {
	txNum, ok, err := r.txs.TxNumByTxid(op.Txid)
	if err != nil || !ok {
		return Outpoint{}, false, err
	}
	return Outpoint{TxNum: txNum, OutIdx: op.OutIdx}, true, nil
}

// ResolveMany batches Resolve over a list of outpoints (one call per tx
// rather than per input), stopping at the first error. Nothing in the
// engine calls it at present.
func (r *OutpointResolver) ResolveMany(ops []primitives.OutPoint) ([]Outpoint, []bool, error) {
	out := make([]Outpoint, len(ops))
	found := make([]bool, len(ops))
	for i, op := range ops {
		resolved, ok, err := r.Resolve(op)
		if err != nil {
			return nil, nil, err
		}
		out[i], found[i] = resolved, ok
	}
	return out, found, nil
}
