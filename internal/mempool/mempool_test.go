package mempool

import (
	"testing"

	"github.com/raipay/chronik-sub000/internal/indexerr"
	"github.com/raipay/chronik-sub000/internal/primitives"
)

func txid(b byte) primitives.Txid {
	var t primitives.Txid
	t[0] = b
	return t
}

func payload(b byte) primitives.ScriptPayload {
	return primitives.ScriptPayload{Prefix: primitives.PrefixP2PKH, Payload: []byte{b}}
}

func TestOverlayInsertAndUtxo(t *testing.T) {
	o := New()
	tx := &Tx{
		Txid:    txid(1),
		Outputs: []TxOutputInfo{{Sats: 1000, Payload: payload(0xAA)}},
	}
	if err := o.Insert(tx); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !o.Has(txid(1)) {
		t.Fatalf("expected tx to be mirrored")
	}
	op := primitives.OutPoint{Txid: txid(1), OutIdx: 0}
	if u, ok := o.Utxo(op); !ok || u.Sats != 1000 {
		t.Fatalf("Utxo = %+v, %v, want 1000 sats present", u, ok)
	}
	d := o.Delta(payload(0xAA))
	if d == nil || !d.Inserts[op] {
		t.Fatalf("expected delta insert for output's payload")
	}
}

func TestOverlayInsertDuplicateRejected(t *testing.T) {
	o := New()
	tx := &Tx{Txid: txid(1), Outputs: []TxOutputInfo{{Sats: 1, Payload: payload(1)}}}
	if err := o.Insert(tx); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := o.Insert(tx); err == nil {
		t.Fatalf("expected duplicate insert to fail")
	}
}

func TestOverlaySpendChain(t *testing.T) {
	o := New()
	parent := &Tx{Txid: txid(1), Outputs: []TxOutputInfo{{Sats: 100, Payload: payload(1)}}}
	if err := o.Insert(parent); err != nil {
		t.Fatalf("insert parent: %v", err)
	}
	parentOut := primitives.OutPoint{Txid: txid(1), OutIdx: 0}

	child := &Tx{
		Txid:    txid(2),
		Inputs:  []TxInputInfo{{Prev: parentOut, Payload: payload(1)}},
		Outputs: []TxOutputInfo{{Sats: 90, Payload: payload(2)}},
	}
	if err := o.Insert(child); err != nil {
		t.Fatalf("insert child: %v", err)
	}

	if _, ok := o.Utxo(parentOut); ok {
		t.Fatalf("parent output should be spent by child")
	}
	if spender, ok := o.IsSpent(parentOut); !ok || spender != txid(2) {
		t.Fatalf("IsSpent = %v, %v, want txid(2)", spender, ok)
	}

	// insert + spend of the same payload within the overlay nets to no
	// visible delta on that payload (output created and spent in-mempool).
	d := o.Delta(payload(1))
	if d != nil && d.Inserts[parentOut] {
		t.Fatalf("spent output must not remain in Inserts")
	}
}

func TestOverlayDoubleSpendRejected(t *testing.T) {
	o := New()
	parent := &Tx{Txid: txid(1), Outputs: []TxOutputInfo{{Sats: 100, Payload: payload(1)}}}
	if err := o.Insert(parent); err != nil {
		t.Fatalf("insert parent: %v", err)
	}
	parentOut := primitives.OutPoint{Txid: txid(1), OutIdx: 0}

	childA := &Tx{Txid: txid(2), Inputs: []TxInputInfo{{Prev: parentOut, Payload: payload(1)}}}
	childB := &Tx{Txid: txid(3), Inputs: []TxInputInfo{{Prev: parentOut, Payload: payload(1)}}}

	if err := o.Insert(childA); err != nil {
		t.Fatalf("insert childA: %v", err)
	}
	if err := o.Insert(childB); err == nil {
		t.Fatalf("expected double spend to be rejected")
	}
}

func TestOverlayInsertBatchTopologicalOrder(t *testing.T) {
	o := New()
	parentOut := primitives.OutPoint{Txid: txid(1), OutIdx: 0}
	child := &Tx{
		Txid:    txid(2),
		Inputs:  []TxInputInfo{{Prev: parentOut, Payload: payload(1)}},
		Outputs: []TxOutputInfo{{Sats: 1, Payload: payload(2)}},
	}
	parent := &Tx{Txid: txid(1), Outputs: []TxOutputInfo{{Sats: 100, Payload: payload(1)}}}

	// child listed before parent: InsertBatch must still resolve it since
	// it iterates to a fixpoint rather than depending on slice order.
	if err := o.InsertBatch([]*Tx{child, parent}); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	if !o.Has(txid(1)) || !o.Has(txid(2)) {
		t.Fatalf("expected both txs inserted")
	}
}

func TestOverlayInsertBatchCycleRejected(t *testing.T) {
	o := New()
	opA := primitives.OutPoint{Txid: txid(1), OutIdx: 0}
	opB := primitives.OutPoint{Txid: txid(2), OutIdx: 0}
	txA := &Tx{Txid: txid(1), Inputs: []TxInputInfo{{Prev: opB}}, Outputs: []TxOutputInfo{{Sats: 1, Payload: payload(1)}}}
	txB := &Tx{Txid: txid(2), Inputs: []TxInputInfo{{Prev: opA}}, Outputs: []TxOutputInfo{{Sats: 1, Payload: payload(2)}}}

	err := o.InsertBatch([]*Tx{txA, txB})
	if err == nil {
		t.Fatalf("expected cycle to be rejected")
	}
	ierr, ok := err.(*indexerr.Error)
	if !ok || ierr.Code != indexerr.CodeFoundTxCircle {
		t.Fatalf("expected CodeFoundTxCircle, got %v", err)
	}
}

func TestOverlayDeleteRemove(t *testing.T) {
	o := New()
	tx := &Tx{Txid: txid(1), Outputs: []TxOutputInfo{{Sats: 1, Payload: payload(1)}}}
	if err := o.Insert(tx); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := o.Delete(txid(1)); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if o.Has(txid(1)) {
		t.Fatalf("expected tx removed")
	}
	if d := o.Delta(payload(1)); d != nil {
		t.Fatalf("expected empty delta pruned, got %+v", d)
	}
}

func TestOverlayDrainMinedParentFirst(t *testing.T) {
	o := New()
	parentOut := primitives.OutPoint{Txid: txid(1), OutIdx: 0}
	parent := &Tx{Txid: txid(1), Outputs: []TxOutputInfo{{Sats: 100, Payload: payload(1)}}}
	child := &Tx{
		Txid:    txid(2),
		Inputs:  []TxInputInfo{{Prev: parentOut, Payload: payload(1)}},
		Outputs: []TxOutputInfo{{Sats: 1, Payload: payload(2)}},
	}
	if err := o.InsertBatch([]*Tx{parent, child}); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	// mined set listed child-first; DrainMined must still resolve it.
	if err := o.DrainMined([]primitives.Txid{txid(2), txid(1)}); err != nil {
		t.Fatalf("DrainMined: %v", err)
	}
	if o.Has(txid(1)) || o.Has(txid(2)) {
		t.Fatalf("expected both txs drained")
	}
}

func TestOverlayDeleteUnknownTx(t *testing.T) {
	o := New()
	if err := o.Delete(txid(9)); err == nil {
		t.Fatalf("expected delete of unknown tx to fail")
	}
}
