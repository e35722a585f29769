package slp

import (
	"fmt"

	"github.com/raipay/chronik-sub000/internal/indexerr"
	"github.com/raipay/chronik-sub000/internal/primitives"
)

// BatchTx is one pending transaction in a batch: its parsed token data and
// the already-resolved TxNum of each non-coinbase input (spec §4.8 step 2).
// IsCoinbaseInput marks inputs that are the coinbase pseudo-input, which
// never carries a token regardless of what InputTxNums holds for that slot.
type BatchTx struct {
	TxNum           primitives.TxNum
	Parsed          ParsedTx
	InputTxNums     []primitives.TxNum
	InputOutIdx     []uint32 // out_idx, within the spent tx, each input consumes
	IsCoinbaseInput []bool
}

// Outpoint is the (tx_num, out_idx) key known_slp_outputs is keyed by — the
// Go analogue of chronik-rocksdb's OutpointEntry.
type Outpoint struct {
	TxNum  primitives.TxNum
	OutIdx uint32
}

// ValidateBatch runs the topological fixpoint of spec §4.8 step 4 /
// §4.9 "batch insert": repeatedly validate every pending tx whose inputs
// (restricted to inputs whose TxNum is itself in the batch) are already
// resolved in known; a round that validates nothing is either done (no
// pending left) or stuck (FoundTxCircle).
//
// known is both input and output: callers seed it with step-3's resolved
// confirmed/overlay input token states, and ValidateBatch inserts each
// validated tx's own outputs as it goes, so later pending txs spending this
// block's own outputs resolve correctly.
func ValidateBatch(pending map[primitives.TxNum]BatchTx, known map[Outpoint]*SpentOutput, resolve TokenNumResolver) (map[primitives.TxNum]ValidTx, error) {
	inBatch := make(map[primitives.TxNum]bool, len(pending))
	for n := range pending {
		inBatch[n] = true
	}

	result := make(map[primitives.TxNum]ValidTx, len(pending))
	for len(pending) > 0 {
		nextRound := make(map[primitives.TxNum]BatchTx)
		progressed := false

	txLoop:
		for txNum, tx := range pending {
			for i, inputTxNum := range tx.InputTxNums {
				if i < len(tx.IsCoinbaseInput) && tx.IsCoinbaseInput[i] {
					continue
				}
				op := Outpoint{TxNum: inputTxNum, OutIdx: tx.InputOutIdx[i]}
				if _, resolved := known[op]; !resolved && inBatch[inputTxNum] {
					nextRound[txNum] = tx
					continue txLoop
				}
			}

			progressed = true
			spent := make([]*SpentOutput, len(tx.InputTxNums))
			for i, inputTxNum := range tx.InputTxNums {
				if i < len(tx.IsCoinbaseInput) && tx.IsCoinbaseInput[i] {
					continue
				}
				op := Outpoint{TxNum: inputTxNum, OutIdx: tx.InputOutIdx[i]}
				spent[i] = known[op]
			}

			valid, ok, err := ValidateAndStamp(tx.Parsed, spent, resolve)
			if err != nil {
				return nil, err
			}
			if ok {
				for outIdx, amt := range valid.Entry.OutputTokens {
					if amt.Amount == 0 && !amt.IsMintBaton {
						continue
					}
					known[Outpoint{TxNum: txNum, OutIdx: uint32(outIdx)}] = &SpentOutput{
						TokenId:   tokenIdOf(tx.Parsed),
						TokenType: tx.Parsed.TokenType,
						Amount:    amt,
					}
				}
			} else {
				for outIdx := range tx.Parsed.OutputAmounts {
					known[Outpoint{TxNum: txNum, OutIdx: uint32(outIdx)}] = nil
				}
			}
			result[txNum] = valid
		}

		if !progressed {
			remaining := make([]primitives.TxNum, 0, len(nextRound))
			for n := range nextRound {
				remaining = append(remaining, n)
			}
			return nil, indexerr.New(indexerr.Critical, indexerr.CodeFoundTxCircle,
				fmt.Sprintf("batch contains transactions forming a circle: %v", remaining))
		}
		pending = nextRound
	}
	return result, nil
}

func tokenIdOf(p ParsedTx) primitives.TokenId {
	if p.HasTokenId {
		return p.TokenId
	}
	return primitives.TokenId{}
}
