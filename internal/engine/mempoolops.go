package engine

import (
	"github.com/raipay/chronik-sub000/internal/mempool"
	"github.com/raipay/chronik-sub000/internal/primitives"
	"github.com/raipay/chronik-sub000/internal/slp"
	"github.com/raipay/chronik-sub000/internal/subscribe"
)

// resolveMempoolInput resolves a non-coinbase input against the combined
// confirmed+mempool view (spec §4.9: "input-token lookup consulting the
// overlay first"), returning both the bookkeeping info the overlay needs
// and (if the spent output carried a token) its SpentOutput. The confirmed
// fallback trusts in.SpentOutput for the output's value/payload rather
// than querying the utxos store, which (spec §4.6) is keyed by script and
// has no per-outpoint point lookup.
func (e *Engine) resolveMempoolInput(in RawInput) (mempool.TxInputInfo, *slp.SpentOutput, error) {
	op := in.PrevOut
	if u, ok := e.pool.Utxo(op); ok {
		var spent *slp.SpentOutput
		if entry := e.pool.TokenState(op.Txid); entry != nil {
			outIdx := int(op.OutIdx)
			if outIdx < len(entry.OutputTokens) && entry.OutputTokens[outIdx].Amount > 0 {
				spent = &slp.SpentOutput{TokenType: entry.TokenType, Amount: entry.OutputTokens[outIdx]}
			}
		}
		return mempool.TxInputInfo{Prev: op, Payload: u.Payload}, spent, nil
	}

	resolved, ok, err := e.outres.Resolve(op)
	if err != nil {
		return mempool.TxInputInfo{}, nil, err
	}
	if !ok {
		return mempool.TxInputInfo{}, nil, unknownInputSpent(op)
	}
	info := mempool.TxInputInfo{Prev: op, Payload: in.SpentOutput.Payload}

	var spent *slp.SpentOutput
	entry, err := e.tokens.TxData(resolved.TxNum)
	if err != nil {
		return mempool.TxInputInfo{}, nil, err
	}
	if entry != nil && int(op.OutIdx) < len(entry.OutputTokens) && entry.OutputTokens[op.OutIdx].Amount > 0 {
		spent = &slp.SpentOutput{TokenType: entry.TokenType, Amount: entry.OutputTokens[op.OutIdx]}
	}
	return info, spent, nil
}

// buildMempoolTx resolves every input/output of raw against the combined
// view and runs the token validator, producing the mempool.Tx ready for
// Overlay.Insert / Overlay.InsertBatch.
func (e *Engine) buildMempoolTx(raw RawTx) (*mempool.Tx, error) {
	inputs := make([]mempool.TxInputInfo, len(raw.Inputs))
	spentOutputs := make([]*slp.SpentOutput, len(raw.Inputs))
	for i, in := range raw.Inputs {
		if in.PrevOut.IsCoinbase() {
			inputs[i] = mempool.TxInputInfo{Prev: in.PrevOut, IsCoinbase: true}
			continue
		}
		info, spent, err := e.resolveMempoolInput(in)
		if err != nil {
			return nil, err
		}
		inputs[i] = info
		spentOutputs[i] = spent
	}

	outputs := make([]mempool.TxOutputInfo, len(raw.Outputs))
	for i, out := range raw.Outputs {
		outputs[i] = mempool.TxOutputInfo{Sats: out.Sats, Payload: out.Payload}
	}

	tx := &mempool.Tx{
		Txid:          raw.Txid,
		Inputs:        inputs,
		Outputs:       outputs,
		TimeFirstSeen: raw.TimeFirstSeen,
	}

	if e.parser != nil {
		parsed := e.parser.Parse(raw.RawBytes)
		if parsed.Ok {
			valid, _ := slp.Validate(parsed, spentOutputs)
			entry := valid.Entry
			entry.Burns = valid.Burns
			tx.Token = &entry
		}
	}
	return tx, nil
}

// handleTxAddedToMempool implements spec §4.9's single-tx insert path,
// called from the Live message dispatch (spec §4.10).
func (e *Engine) handleTxAddedToMempool(raw RawTx) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.buildMempoolTx(raw)
	if err != nil {
		return err
	}
	if err := e.pool.Insert(tx); err != nil {
		return err
	}
	e.publishMempoolAdd(tx)
	return nil
}

// handleTxRemovedFromMempool implements the explicit-eviction half of
// spec §4.9 (DeleteMode Remove, as opposed to the Mined drain that runs
// from connectBlock).
func (e *Engine) handleTxRemovedFromMempool(txid primitives.Txid) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := e.pool.Tx(txid)
	if tx == nil {
		return nil
	}
	if err := e.pool.Delete(txid); err != nil {
		return err
	}
	e.publishMempoolRemove(tx)
	return nil
}

// insertMempoolSnapshot implements spec §4.9's batch insert, used by
// LeaveCatchup to adopt the node's full mempool at once.
func (e *Engine) insertMempoolSnapshot(raws []RawTx) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	txs := make([]*mempool.Tx, 0, len(raws))
	for _, raw := range raws {
		tx, err := e.buildMempoolTx(raw)
		if err != nil {
			return err
		}
		txs = append(txs, tx)
	}
	if err := e.pool.InsertBatch(txs); err != nil {
		return err
	}
	for _, tx := range txs {
		e.publishMempoolAdd(tx)
	}
	return nil
}

func (e *Engine) publishMempoolAdd(tx *mempool.Tx) {
	e.subs.PublishAllTxs(subscribe.AllTxsMsg{Txid: tx.Txid})
	for _, out := range tx.Outputs {
		if out.Payload.IsNull() {
			continue
		}
		e.subs.PublishScript(out.Payload, subscribe.ScriptMsg{
			Kind: out.Payload, Type: subscribe.ScriptAddedToMempool, Txid: tx.Txid,
		})
	}
	for _, in := range tx.Inputs {
		if in.IsCoinbase || in.Payload.IsNull() {
			continue
		}
		e.subs.PublishScript(in.Payload, subscribe.ScriptMsg{
			Kind: in.Payload, Type: subscribe.ScriptAddedToMempool, Txid: tx.Txid,
		})
	}
}

func (e *Engine) publishMempoolRemove(tx *mempool.Tx) {
	for _, out := range tx.Outputs {
		if out.Payload.IsNull() {
			continue
		}
		e.subs.PublishScript(out.Payload, subscribe.ScriptMsg{
			Kind: out.Payload, Type: subscribe.ScriptRemovedFromMempool, Txid: tx.Txid,
		})
	}
}
