package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/raipay/chronik-sub000/internal/codec"
	"github.com/raipay/chronik-sub000/internal/hashindex"
	"github.com/raipay/chronik-sub000/internal/indexdb"
	"github.com/raipay/chronik-sub000/internal/indexerr"
	"github.com/raipay/chronik-sub000/internal/primitives"
	"github.com/raipay/chronik-sub000/internal/slp"
	"github.com/raipay/chronik-sub000/internal/store"
	"github.com/raipay/chronik-sub000/internal/subscribe"
	"github.com/raipay/chronik-sub000/internal/transientdb"
)

// txParse bundles the per-tx outputs of connectBlock's parallel stage:
// token parsing and input-tx-num resolution. Input token states are not
// fetched in that stage; connectBlock reads them afterwards in a sequential
// pass over the block's txs.
type txParse struct {
	raw         RawBlock
	entry       RawTx
	parsed      slp.ParsedTx
	inputTxNums []primitives.TxNum
	inputOutIdx []uint32
	isCoinbase  []bool
	inputTokens []*slp.SpentOutput
}

// connectBlock assembles and commits the single write batch spanning every
// column family for one block (spec §4.10: "Each block-connect assembles a
// single write batch ... applies it atomically"), then drains mined txs
// from the mempool and fans out subscriptions post-commit.
func (e *Engine) connectBlock(ctx context.Context, raw RawBlock) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	batch := e.db.NewBatch()

	blockTxs := indexdb.BlockTxs{Height: raw.Height}
	for _, tx := range raw.Txs {
		blockTxs.Txs = append(blockTxs.Txs, indexdb.TxEntry{
			Txid:          tx.Txid,
			DataPos:       tx.DataPos,
			TxSize:        tx.TxSize,
			UndoPos:       tx.UndoPos,
			UndoSize:      tx.UndoSize,
			TimeFirstSeen: tx.TimeFirstSeen,
			IsCoinbase:    tx.IsCoinbase,
		})
	}
	firstTxNum, err := e.txs.InsertBlockTxs(batch, blockTxs)
	if err != nil {
		return err
	}

	e.blocks.Insert(batch, indexdb.Block{
		Hash:      raw.Hash,
		Height:    raw.Height,
		NBits:     raw.NBits,
		Timestamp: raw.Timestamp,
		FileNum:   raw.FileNum,
		DataPos:   raw.DataPos,
	})

	stats := indexdb.BlockStats{}
	touchedScriptTxs := indexdb.PayloadTxNums{}

	newlyAssigned := make(map[primitives.Txid]primitives.TxNum, len(raw.Txs))
	for i, tx := range raw.Txs {
		newlyAssigned[tx.Txid] = firstTxNum + primitives.TxNum(i)
	}

	parses := make([]*txParse, len(raw.Txs))
	g, gctx := errgroup.WithContext(ctx)
	for i := range raw.Txs {
		i := i
		g.Go(func() error {
			_ = gctx
			tx := raw.Txs[i]
			tp := &txParse{raw: raw, entry: tx}
			if e.parser != nil {
				tp.parsed = e.parser.Parse(tx.RawBytes)
			}
			tp.inputTxNums = make([]primitives.TxNum, len(tx.Inputs))
			tp.inputOutIdx = make([]uint32, len(tx.Inputs))
			tp.isCoinbase = make([]bool, len(tx.Inputs))
			for j, in := range tx.Inputs {
				tp.inputOutIdx[j] = in.PrevOut.OutIdx
				if in.PrevOut.IsCoinbase() {
					tp.isCoinbase[j] = true
					continue
				}
				if n, ok := newlyAssigned[in.PrevOut.Txid]; ok {
					tp.inputTxNums[j] = n
					continue
				}
				n, ok, err := e.txs.TxNumByTxid(in.PrevOut.Txid)
				if err != nil {
					return err
				}
				if !ok {
					return unknownInputSpent(in.PrevOut)
				}
				tp.inputTxNums[j] = n
			}
			parses[i] = tp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	pending := map[primitives.TxNum]slp.BatchTx{}
	known := map[slp.Outpoint]*slp.SpentOutput{}
	for i, tx := range raw.Txs {
		txNum := firstTxNum + primitives.TxNum(i)
		tp := parses[i]
		if !tp.parsed.Ok {
			if tp.parsed.Err != "" && !slp.IsIgnored(tp.parsed.Err) {
				e.tokens.PutInvalidMessage(batch, txNum, string(tp.parsed.Err))
			}
			continue
		}
		pending[txNum] = slp.BatchTx{
			TxNum:           txNum,
			Parsed:          tp.parsed,
			InputTxNums:     tp.inputTxNums,
			InputOutIdx:     tp.inputOutIdx,
			IsCoinbaseInput: tp.isCoinbase,
		}
		for j, inputTxNum := range tp.inputTxNums {
			if tp.isCoinbase[j] {
				continue
			}
			op := slp.Outpoint{TxNum: inputTxNum, OutIdx: tp.inputOutIdx[j]}
			if _, ok := known[op]; ok {
				continue
			}
			entry, err := e.tokens.TxData(inputTxNum)
			if err != nil {
				return err
			}
			if entry == nil {
				continue
			}
			outIdx := int(tp.inputOutIdx[j])
			if outIdx < len(entry.OutputTokens) && entry.OutputTokens[outIdx].Amount > 0 {
				known[op] = &slp.SpentOutput{TokenType: entry.TokenType, Amount: entry.OutputTokens[outIdx]}
			}
		}
	}
	validated := map[primitives.TxNum]slp.ValidTx{}
	if len(pending) > 0 {
		assigner, err := newTokenNumAssigner(e.tokens)
		if err != nil {
			return err
		}
		resolve := func(parsed slp.ParsedTx) (slp.TokenNumResult, error) {
			var res slp.TokenNumResult
			if parsed.HasTokenId {
				num, hasToken, err := assigner.resolve(batch, parsed.TokenId,
					parsed.TxType == indexdb.TxTypeGenesis, parsed.TokenType, parsed.Metadata)
				if err != nil {
					return res, err
				}
				res.TokenNum, res.HasToken = num, hasToken
			}
			if parsed.HasGroup {
				groupNum, hasGroup, err := assigner.resolve(batch, parsed.GroupTokenId,
					false, indexdb.TokenTypeUnknown, indexdb.TokenMetadata{})
				if err != nil {
					return res, err
				}
				res.GroupTokenNum, res.HasGroup = groupNum, hasGroup
			}
			return res, nil
		}
		validated, err = slp.ValidateBatch(pending, known, resolve)
		if err != nil {
			return err
		}
	}

	for i, tx := range raw.Txs {
		txNum := firstTxNum + primitives.TxNum(i)
		stats.NumTxs++

		for outIdx, out := range tx.Outputs {
			e.utxos.Insert(batch, out.Payload, txNum, uint32(outIdx))
			stats.NumOutputs++
			if tx.IsCoinbase {
				stats.SumCoinbaseOutputSats += out.Sats
			} else {
				stats.SumNormalOutputSats += out.Sats
			}
			if out.Payload.IsNull() {
				stats.SumBurnedSats += out.Sats
			}
			addTouched(touchedScriptTxs, out.Payload, txNum)
		}

		for inIdx, in := range tx.Inputs {
			stats.NumInputs++
			if in.PrevOut.IsCoinbase() {
				continue
			}
			spentTxNum := parses[i].inputTxNums[inIdx]
			e.spends.InsertSpend(batch, spentTxNum, indexdb.SpendRecord{
				OutIdx: in.PrevOut.OutIdx, SpendingTxNum: txNum, InputIdx: uint32(inIdx),
			})
			stats.SumInputSats += in.SpentOutput.Sats
			addTouched(touchedScriptTxs, in.SpentOutput.Payload, txNum)
			e.utxos.Spend(batch, in.SpentOutput.Payload, spentTxNum, in.PrevOut.OutIdx)
		}

		if valid, ok := validated[txNum]; ok {
			entry := valid.Entry
			entry.Burns = valid.Burns
			e.tokens.PutTxData(batch, txNum, entry)
			if err := e.applyTokenStats(batch, entry, 1); err != nil {
				return err
			}
		}
	}

	if err := e.script.InsertBlockTxs(batch, e.scriptTxsCache, touchedScriptTxs); err != nil {
		return err
	}
	e.stats.Insert(batch, raw.Height, stats)

	if err := batch.Commit(); err != nil {
		return err
	}

	minedTxids := make([]primitives.Txid, 0, len(raw.Txs))
	for _, tx := range raw.Txs {
		if e.pool.Has(tx.Txid) {
			minedTxids = append(minedTxids, tx.Txid)
		}
	}
	if len(minedTxids) > 0 {
		if err := e.pool.DrainMined(minedTxids); err != nil {
			return err
		}
	}

	if err := e.maybeAdvanceTransient(raw.Height); err != nil {
		return err
	}

	e.publishBlockConnected(raw)
	return nil
}

// applyTokenStats implements spec §4.8 step 5's stats update rule: Send
// burns add to total_burned; every other outcome (including invalid) burns
// the sum of input amounts; Genesis/Mint mint the sum of output amounts.
// sign is 1 on connect and -1 on disconnect, so a block's stats impact is
// undone by replaying the exact same deltas negated (spec §4.8:
// "Disconnect reverses every step ... apply inverse stat deltas").
func (e *Engine) applyTokenStats(batch *store.Batch, entry indexdb.SlpTxEntry, sign int64) error {
	tokensByNum := map[primitives.TokenNum]struct{ minted, burned uint64 }{}
	for _, b := range entry.Burns {
		cur := tokensByNum[b.Amount.TokenNum]
		cur.burned += b.Amount.Amount
		tokensByNum[b.Amount.TokenNum] = cur
	}
	if entry.TxType == indexdb.TxTypeGenesis || entry.TxType == indexdb.TxTypeMint {
		for _, out := range entry.OutputTokens {
			if out.Amount == 0 {
				continue
			}
			cur := tokensByNum[out.TokenNum]
			cur.minted += out.Amount
			tokensByNum[out.TokenNum] = cur
		}
	}
	for num, delta := range tokensByNum {
		mintedDelta := sign * int64(delta.minted)
		burnedDelta := sign * int64(delta.burned)
		if err := e.tokens.ApplyStatsDelta(batch, num,
			int128FromInt64(mintedDelta), int128FromInt64(burnedDelta)); err != nil {
			return err
		}
	}
	return nil
}

// tokenNumAssigner resolves a TokenId to its dense TokenNum across a single
// block's worth of GENESIS/MINT/SEND txs (spec §4.8 step 5). The "next"
// counter is fetched once and incremented locally rather than re-read from
// tokens.NextTokenNum per GENESIS, since two fresh GENESIS txs in the same
// block would otherwise both read the same not-yet-committed "next" value
// from the store and collide.
type tokenNumAssigner struct {
	tokens *indexdb.TokenStore
	fresh  map[primitives.TokenId]primitives.TokenNum
	next   primitives.TokenNum
}

func newTokenNumAssigner(tokens *indexdb.TokenStore) (*tokenNumAssigner, error) {
	next, err := tokens.NextTokenNum()
	if err != nil {
		return nil, err
	}
	return &tokenNumAssigner{tokens: tokens, fresh: map[primitives.TokenId]primitives.TokenNum{}, next: next}, nil
}

// resolve looks up id's already-assigned TokenNum (checking this block's
// fresh map first), assigning a new one via AssignToken when
// assignIfMissing is set and id is unseen by either the store or this
// block so far.
func (a *tokenNumAssigner) resolve(batch *store.Batch, id primitives.TokenId, assignIfMissing bool,
	tokenType indexdb.TokenType, meta indexdb.TokenMetadata,
) (primitives.TokenNum, bool, error) {
	if num, ok := a.fresh[id]; ok {
		return num, true, nil
	}
	num, ok, err := a.tokens.TokenNumById(id)
	if err != nil {
		return 0, false, err
	}
	if ok {
		a.fresh[id] = num
		return num, true, nil
	}
	if !assignIfMissing {
		return 0, false, nil
	}
	meta.TokenType = tokenType
	a.tokens.AssignToken(batch, id, a.next, meta)
	a.fresh[id] = a.next
	num = a.next
	a.next++
	return num, true, nil
}

// addTouched records a script-history touch, skipping the OP_RETURN
// sentinel: null-data scripts yield no payloads, so they never enter
// script_txs (spec: "Null-data (OP_RETURN) scripts yield no payloads").
func addTouched(m indexdb.PayloadTxNums, payload primitives.ScriptPayload, txNum primitives.TxNum) {
	if payload.IsNull() {
		return
	}
	m.Add(payload, txNum)
}

// maybeAdvanceTransient applies spec §4.10's close-to-tip heuristic: the
// live path only writes transient data when transient_tip+12 >= new_tip,
// leaving deeper catch-up to the background task (RunTransientCatchup in
// transienttask.go).
func (e *Engine) maybeAdvanceTransient(newTip primitives.BlockHeight) error {
	tTip, err := e.transient.Tip()
	if err != nil {
		return err
	}
	if int64(tTip)+12 < int64(newTip) {
		return nil
	}
	start := tTip + 1
	if tTip == primitives.NoTip {
		start = 0
	}
	for h := start; h <= newTip; h++ {
		if err := e.writeTransientRecord(h); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) writeTransientRecord(h primitives.BlockHeight) error {
	firstTxNum, ok, err := e.txs.FirstTxNumByBlock(h)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	// end is the exclusive upper bound of this block's TxNum range: the
	// next block's first_tx_num, or (at the tip) one past the last
	// assigned TxNum.
	end, ok, err := e.txs.FirstTxNumByBlock(h + 1)
	if err != nil {
		return err
	}
	if !ok {
		end, err = e.txs.NextTxNum()
		if err != nil {
			return err
		}
	}

	var timings []transientdb.TxTiming
	for n := firstTxNum; n < end; n++ {
		entry, err := e.txs.ByTxNum(n)
		if err != nil {
			return err
		}
		if entry == nil || entry.TimeFirstSeen <= 0 {
			continue
		}
		timings = append(timings, transientdb.TxTiming{
			TxidHash64:    hashindex.Hash64(entry.Txid[:]),
			TimeFirstSeen: entry.TimeFirstSeen,
		})
	}
	return e.transient.PutBlockRecord(h, timings)
}

func (e *Engine) publishBlockConnected(raw RawBlock) {
	e.subs.PublishBlock(subscribe.BlockMsg{Type: subscribe.BlockConnectedMsg, Height: raw.Height, Hash: raw.Hash})
	for _, tx := range raw.Txs {
		for _, out := range tx.Outputs {
			e.subs.PublishScript(out.Payload, subscribe.ScriptMsg{Kind: out.Payload, Type: subscribe.ScriptConfirmed, Txid: tx.Txid})
		}
	}
}

func unknownInputSpent(op primitives.OutPoint) error {
	return indexerr.New(indexerr.Critical, indexerr.CodeUnknownInputSpent,
		fmt.Sprintf("input spends unknown tx %s", op))
}

func int128FromInt64(v int64) codec.Int128 { return codec.Int128FromInt64(v) }
