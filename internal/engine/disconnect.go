package engine

import (
	"github.com/raipay/chronik-sub000/internal/indexdb"
	"github.com/raipay/chronik-sub000/internal/indexerr"
	"github.com/raipay/chronik-sub000/internal/primitives"
	"github.com/raipay/chronik-sub000/internal/subscribe"
)

// disconnectBlock is the exact inverse of connectBlock (spec §4.10:
// "Disconnect reverses every step of connect, in reverse order, from the
// same single write batch"). raw is the same shape connect received, with
// every RawInput's SpentOutput now populated from the node's undo data —
// the one piece of information this column layout cannot reconstruct from
// the confirmed state alone, since spending an output deletes its utxos
// record outright (spec §4.6/§4.7).
func (e *Engine) disconnectBlock(raw RawBlock) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	firstTxNum, ok, err := e.txs.FirstTxNumByBlock(raw.Height)
	if err != nil {
		return err
	}
	if !ok {
		return indexerr.New(indexerr.Critical, indexerr.CodeInconsistentNoSuchBlockTx,
			"disconnect: no block recorded at this height")
	}

	batch := e.db.NewBatch()
	touchedScriptTxs := indexdb.PayloadTxNums{}

	for i := len(raw.Txs) - 1; i >= 0; i-- {
		tx := raw.Txs[i]
		txNum := firstTxNum + primitives.TxNum(i)

		if entry, err := e.tokens.TxData(txNum); err != nil {
			return err
		} else if entry != nil {
			if err := e.applyTokenStats(batch, *entry, -1); err != nil {
				return err
			}
			if entry.TxType == indexdb.TxTypeGenesis && entry.HasToken {
				if id, ok, err := e.tokens.TokenIdByNum(entry.TokenNum); err != nil {
					return err
				} else if ok {
					e.tokens.DeleteToken(batch, id, entry.TokenNum)
				}
			}
			e.tokens.DeleteTxData(batch, txNum)
		}
		e.tokens.DeleteInvalidMessage(batch, txNum)

		for outIdx, out := range tx.Outputs {
			e.utxos.Spend(batch, out.Payload, txNum, uint32(outIdx))
			addTouched(touchedScriptTxs, out.Payload, txNum)
		}

		for inIdx := len(tx.Inputs) - 1; inIdx >= 0; inIdx-- {
			in := tx.Inputs[inIdx]
			if in.PrevOut.IsCoinbase() {
				continue
			}
			spentTxNum, ok, err := e.txs.TxNumByTxid(in.PrevOut.Txid)
			if err != nil {
				return err
			}
			if !ok {
				return unknownInputSpent(in.PrevOut)
			}
			e.utxos.Insert(batch, in.SpentOutput.Payload, spentTxNum, in.PrevOut.OutIdx)
			e.spends.DeleteSpend(batch, spentTxNum, indexdb.SpendRecord{
				OutIdx: in.PrevOut.OutIdx, SpendingTxNum: txNum, InputIdx: uint32(inIdx),
			})
			addTouched(touchedScriptTxs, in.SpentOutput.Payload, txNum)
		}
	}

	if err := e.script.DeleteBlockTxs(batch, e.scriptTxsCache, touchedScriptTxs, true); err != nil {
		return err
	}
	e.stats.Delete(batch, raw.Height)
	if err := e.txs.DeleteBlockTxs(batch, raw.Height, firstTxNum, len(raw.Txs)); err != nil {
		return err
	}
	if err := e.blocks.DeleteByHeight(batch, raw.Height); err != nil {
		return err
	}

	if err := batch.Commit(); err != nil {
		return err
	}

	if err := e.maybeRewindTransient(raw.Height); err != nil {
		return err
	}

	e.subs.PublishBlock(subscribe.BlockMsg{Type: subscribe.BlockDisconnectedMsg, Height: raw.Height, Hash: raw.Hash})
	return nil
}

// maybeRewindTransient undoes a transient record written for a height that
// just got disconnected, keeping the transient tip from pointing past the
// main index's tip (mirrors maybeAdvanceTransient's forward counterpart).
func (e *Engine) maybeRewindTransient(height primitives.BlockHeight) error {
	tTip, err := e.transient.Tip()
	if err != nil {
		return err
	}
	if tTip != height {
		return nil
	}
	return e.transient.DeleteBlockRecord(height, height-1)
}
