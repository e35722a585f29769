// Package mempool implements the in-memory overlay of spec §4.9: mirrors of
// script-txs, utxos, spends, and token state for unconfirmed transactions,
// keyed by raw Txid since mempool txs never receive a TxNum. Grounded on
// chronik-rocksdb/src/mempool.rs's MempoolWriter/MempoolData plus
// mempool_slp_data.rs for the token-state mirror.
package mempool

import (
	"fmt"

	"github.com/raipay/chronik-sub000/internal/indexdb"
	"github.com/raipay/chronik-sub000/internal/indexerr"
	"github.com/raipay/chronik-sub000/internal/primitives"
)

// DeleteMode distinguishes an explicit eviction from a just-mined removal
// (spec §4.9): Mined turns a tx's outputs into confirmed deletions relative
// to any still-present mempool descendant; Remove simply erases them.
type DeleteMode int

const (
	Remove DeleteMode = iota
	Mined
)

// TxOutputInfo is the per-output shape the overlay needs to maintain utxos
// and script-txs: the value and payload a mempool tx's own output carries.
type TxOutputInfo struct {
	Sats    int64
	Payload primitives.ScriptPayload
}

// TxInputInfo is one resolved input: the outpoint it spends and (if known)
// the script payload of the spent output, used to update per-payload
// script-txs/utxo-delta bookkeeping without a second store round-trip.
type TxInputInfo struct {
	Prev       primitives.OutPoint
	IsCoinbase bool
	Payload    primitives.ScriptPayload
}

// Tx is one mempool-resident transaction, along with every piece of
// information the overlay needs to maintain its mirrors.
type Tx struct {
	Txid          primitives.Txid
	Inputs        []TxInputInfo
	Outputs       []TxOutputInfo
	TimeFirstSeen int64
	Token         *indexdb.SlpTxEntry // nil if not a recognized token tx
}

// UtxoDelta accumulates, per script payload, the outpoints a batch of
// mempool activity adds and removes relative to the confirmed UTXO set.
// inserts and deletes never both contain the same outpoint (spec §4.9
// invariant); a delta that becomes empty removes its own map entry.
type UtxoDelta struct {
	Inserts map[primitives.OutPoint]bool
	Deletes map[primitives.OutPoint]bool
}

func newDelta() *UtxoDelta {
	return &UtxoDelta{Inserts: map[primitives.OutPoint]bool{}, Deletes: map[primitives.OutPoint]bool{}}
}

func (d *UtxoDelta) empty() bool { return len(d.Inserts) == 0 && len(d.Deletes) == 0 }

// Overlay is the mempool mirror of spec §4.9.
type Overlay struct {
	txs map[primitives.Txid]*Tx

	// scriptTxs maps a payload to the ordered-by-first-seen set of txids
	// touching it (spec: "a (time_first_seen, txid) tuple keyed by each
	// touched script payload").
	scriptTxs map[string][]primitives.Txid

	utxos map[primitives.OutPoint]TxOutputInfo
	deltas map[string]*UtxoDelta

	spends map[primitives.OutPoint]primitives.Txid // outpoint -> spending txid

	tokenState map[primitives.Txid]*indexdb.SlpTxEntry
}

func New() *Overlay {
	return &Overlay{
		txs:        map[primitives.Txid]*Tx{},
		scriptTxs:  map[string][]primitives.Txid{},
		utxos:      map[primitives.OutPoint]TxOutputInfo{},
		deltas:     map[string]*UtxoDelta{},
		spends:     map[primitives.OutPoint]primitives.Txid{},
		tokenState: map[primitives.Txid]*indexdb.SlpTxEntry{},
	}
}

// Has reports whether txid is currently mirrored.
func (o *Overlay) Has(txid primitives.Txid) bool {
	_, ok := o.txs[txid]
	return ok
}

// Tx returns the mirrored tx, or nil if absent.
func (o *Overlay) Tx(txid primitives.Txid) *Tx { return o.txs[txid] }

func (o *Overlay) delta(payload primitives.ScriptPayload) *UtxoDelta {
	key := payload.KeyString()
	d, ok := o.deltas[key]
	if !ok {
		d = newDelta()
		o.deltas[key] = d
	}
	return d
}

func (o *Overlay) pruneDelta(payload primitives.ScriptPayload) {
	key := payload.KeyString()
	if d, ok := o.deltas[key]; ok && d.empty() {
		delete(o.deltas, key)
	}
}

// Delta exposes the current UtxoDelta for a payload, or nil if untouched.
func (o *Overlay) Delta(payload primitives.ScriptPayload) *UtxoDelta {
	return o.deltas[payload.KeyString()]
}

// insertOne applies a single already-validated tx to every in-memory
// mirror. Callers (single-tx insert and each round of the batch fixpoint)
// must have already confirmed the tx doesn't double-spend or duplicate.
func (o *Overlay) insertOne(tx *Tx) error {
	if o.Has(tx.Txid) {
		return indexerr.New(indexerr.Critical, indexerr.CodeInconsistentDatabase,
			fmt.Sprintf("duplicate mempool txid %s", tx.Txid))
	}
	for _, in := range tx.Inputs {
		if in.IsCoinbase {
			continue
		}
		if spender, ok := o.spends[in.Prev]; ok {
			return indexerr.New(indexerr.Critical, indexerr.CodeInconsistentDatabase,
				fmt.Sprintf("double spend of %s by both %s and %s", in.Prev, spender, tx.Txid))
		}
	}

	o.txs[tx.Txid] = tx

	for i, out := range tx.Outputs {
		op := primitives.OutPoint{Txid: tx.Txid, OutIdx: uint32(i)}
		o.utxos[op] = out
		d := o.delta(out.Payload)
		d.Inserts[op] = true
		key := out.Payload.KeyString()
		o.scriptTxs[key] = appendByFirstSeen(o.scriptTxs[key], tx.Txid, tx.TimeFirstSeen, o)
	}

	for _, in := range tx.Inputs {
		if in.IsCoinbase {
			continue
		}
		o.spends[in.Prev] = tx.Txid
		delete(o.utxos, in.Prev)
		if in.Payload.Payload != nil || in.Payload.Prefix != 0 {
			d := o.delta(in.Payload)
			if d.Inserts[in.Prev] {
				delete(d.Inserts, in.Prev)
			} else {
				d.Deletes[in.Prev] = true
			}
			key := in.Payload.KeyString()
			o.scriptTxs[key] = appendByFirstSeen(o.scriptTxs[key], tx.Txid, tx.TimeFirstSeen, o)
		}
	}

	if tx.Token != nil {
		o.tokenState[tx.Txid] = tx.Token
	}
	return nil
}

func appendByFirstSeen(list []primitives.Txid, txid primitives.Txid, timeFirstSeen int64, o *Overlay) []primitives.Txid {
	pos := len(list)
	for i, existing := range list {
		if existing == txid {
			return list
		}
		if pos == len(list) && o.txs[existing] != nil && o.txs[existing].TimeFirstSeen > timeFirstSeen {
			pos = i
		}
	}
	list = append(list, primitives.Txid{})
	copy(list[pos+1:], list[pos:])
	list[pos] = txid
	return list
}

// Insert adds a single mempool tx (spec §4.9 "Insert a mempool tx").
// Token validation happens one layer up (internal/slp + internal/engine),
// since it needs access to the confirmed store as well as this overlay;
// this method assumes tx.Token already reflects that validation's outcome.
func (o *Overlay) Insert(tx *Tx) error {
	return o.insertOne(tx)
}

// InsertBatch runs the topological fixpoint of spec §4.9 "Batch insert":
// repeatedly insert any tx whose inputs are either outside the batch or
// already inserted. A round with no progress over a non-empty remainder is
// a cycle: the txs still pending are rejected with an error, while txs
// inserted in earlier rounds stay in the overlay.
func (o *Overlay) InsertBatch(txs []*Tx) error {
	pending := make(map[primitives.Txid]*Tx, len(txs))
	for _, t := range txs {
		pending[t.Txid] = t
	}
	for len(pending) > 0 {
		inBatch := make(map[primitives.Txid]bool, len(pending))
		for txid := range pending {
			inBatch[txid] = true
		}
		next := make(map[primitives.Txid]*Tx)
		progressed := false

	txLoop:
		for txid, tx := range pending {
			for _, in := range tx.Inputs {
				if !in.IsCoinbase && inBatch[in.Prev.Txid] {
					next[txid] = tx
					continue txLoop
				}
			}
			progressed = true
			if err := o.insertOne(tx); err != nil {
				return err
			}
		}
		if !progressed {
			remaining := make([]primitives.Txid, 0, len(next))
			for txid := range next {
				remaining = append(remaining, txid)
			}
			return indexerr.New(indexerr.Critical, indexerr.CodeFoundTxCircle,
				fmt.Sprintf("mempool batch contains a cycle among %v", remaining))
		}
		pending = next
	}
	return nil
}

// deleteOne removes a single tx's footprint from every mirror. mode
// controls whether its outputs are simply erased (Remove) or become
// confirmed deletions relative to mempool descendants still present
// (Mined) — see spec §4.9.
func (o *Overlay) deleteOne(txid primitives.Txid, mode DeleteMode) error {
	tx, ok := o.txs[txid]
	if !ok {
		return indexerr.New(indexerr.Critical, indexerr.CodeInconsistentNoSuchMempool,
			fmt.Sprintf("no such mempool tx: %s", txid))
	}

	for i, out := range tx.Outputs {
		op := primitives.OutPoint{Txid: txid, OutIdx: uint32(i)}
		delete(o.utxos, op)
		d := o.delta(out.Payload)
		switch mode {
		case Mined:
			if d.Inserts[op] {
				delete(d.Inserts, op)
			} else {
				d.Deletes[op] = true
			}
		case Remove:
			delete(d.Inserts, op)
		}
		o.pruneDelta(out.Payload)
	}

	for _, in := range tx.Inputs {
		if in.IsCoinbase {
			continue
		}
		delete(o.spends, in.Prev)
		if mode == Remove {
			if in.Payload.Payload != nil || in.Payload.Prefix != 0 {
				d := o.delta(in.Payload)
				delete(d.Deletes, in.Prev)
				o.pruneDelta(in.Payload)
			}
		}
	}

	delete(o.txs, txid)
	delete(o.tokenState, txid)
	return nil
}

// Delete evicts a single mempool tx explicitly (not via mining).
func (o *Overlay) Delete(txid primitives.Txid) error {
	return o.deleteOne(txid, Remove)
}

// DrainMined deletes every txid now confirmed in a block, in topological
// parent-first order within the mined set (spec §4.9 "Mempool-mined
// drain"): a mined child cannot be removed before its mined parent because
// the parent's utxo-delta bookkeeping needs to observe the child still
// holding a mempool-side spend against it.
func (o *Overlay) DrainMined(txids []primitives.Txid) error {
	pending := make(map[primitives.Txid]bool, len(txids))
	for _, t := range txids {
		pending[t] = true
	}
	for len(pending) > 0 {
		next := make(map[primitives.Txid]bool)
		progressed := false

	txLoop:
		for txid := range pending {
			tx, ok := o.txs[txid]
			if !ok {
				// Not in the overlay at all (e.g. first-seen only at
				// mining time) — nothing to drain.
				progressed = true
				continue
			}
			for _, in := range tx.Inputs {
				if !in.IsCoinbase && pending[in.Prev.Txid] {
					next[txid] = true
					continue txLoop
				}
			}
			progressed = true
			if err := o.deleteOne(txid, Mined); err != nil {
				return err
			}
		}
		if !progressed {
			remaining := make([]primitives.Txid, 0, len(next))
			for txid := range next {
				remaining = append(remaining, txid)
			}
			return indexerr.New(indexerr.Critical, indexerr.CodeFoundTxCircle,
				fmt.Sprintf("mined drain set contains a cycle among %v", remaining))
		}
		pending = next
	}
	return nil
}

// TokenState returns the mirrored token record for a mempool tx, consulted
// by the validator's "input-token lookup consulting the overlay first"
// rule (spec §4.9).
func (o *Overlay) TokenState(txid primitives.Txid) *indexdb.SlpTxEntry {
	return o.tokenState[txid]
}

// Utxo returns the mirrored output, if still unspent in the overlay.
func (o *Overlay) Utxo(op primitives.OutPoint) (TxOutputInfo, bool) {
	u, ok := o.utxos[op]
	return u, ok
}

// IsSpent reports whether op has been spent by a mempool tx.
func (o *Overlay) IsSpent(op primitives.OutPoint) (primitives.Txid, bool) {
	txid, ok := o.spends[op]
	return txid, ok
}
