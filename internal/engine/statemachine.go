package engine

import (
	"context"
	"fmt"

	"github.com/raipay/chronik-sub000/internal/indexerr"
	"github.com/raipay/chronik-sub000/internal/primitives"
)

const catchupBatchSize = 50

// CatchupStep runs one iteration of spec §4.10's Catchup state against node.
// It returns done == true once the index has reached the node's tip and the
// node itself is out of initial block download, signalling the caller to
// invoke LeaveCatchup next.
func (e *Engine) CatchupStep(ctx context.Context, node Node) (done bool, err error) {
	info, err := node.ChainInfo(ctx)
	if err != nil {
		return false, err
	}

	tipHeight := primitives.NoTip
	var tipHash primitives.BlockHash
	if tip, err := e.Tip(); err != nil {
		return false, err
	} else if tip != nil {
		tipHeight, tipHash = tip.Height, tip.Hash
	}

	switch {
	case tipHeight == info.Height && tipHash == info.BestBlockHash && !info.InitialBlockDownload:
		return true, nil

	case tipHeight == info.Height && tipHash == info.BestBlockHash:
		msgCh, err := node.Subscribe(ctx)
		if err != nil {
			return false, err
		}
		_ = msgCh
		raw, err := node.RecvBlockConnected(ctx)
		if err != nil {
			return false, err
		}
		if err := e.connectBlock(ctx, raw); err != nil {
			return false, err
		}
		return false, nil

	case tipHeight < info.Height:
		from := tipHeight + 1
		if tipHeight == primitives.NoTip {
			from = 0
		}
		blocks, err := node.FetchBlockRange(ctx, from, catchupBatchSize)
		if err != nil {
			return false, err
		}
		for _, raw := range blocks {
			if err := e.connectBlock(ctx, raw); err != nil {
				return false, err
			}
		}
		return false, nil

	default:
		return false, indexerr.New(indexerr.Critical, indexerr.CodeIndexDiverged,
			fmt.Sprintf("index tip %d (node tip %d, hashes match=%v): node behind or hash mismatch",
				tipHeight, info.Height, tipHash == info.BestBlockHash))
	}
}

// LeaveCatchup implements spec §4.10's transition out of Catchup: pull the
// node's current mempool snapshot, batch-insert it, subscribe to the live
// message stream, and flip to Live. The returned channel is the one Run
// dispatches from.
func (e *Engine) LeaveCatchup(ctx context.Context, node Node) (<-chan Message, error) {
	snapshot, err := node.MempoolSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.insertMempoolSnapshot(snapshot); err != nil {
		return nil, err
	}

	msgCh, err := node.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.state = StateLive
	e.mu.Unlock()

	return msgCh, nil
}

// Run drives the Catchup→Live lifecycle end to end: repeated CatchupStep
// calls until done, then LeaveCatchup, then an unbounded ProcessMsg
// dispatch loop until ctx is cancelled or node's stream closes.
func (e *Engine) Run(ctx context.Context, node Node) error {
	for {
		done, err := e.CatchupStep(ctx, node)
		if err != nil {
			return err
		}
		if done {
			break
		}
	}

	msgCh, err := e.LeaveCatchup(ctx, node)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgCh:
			if !ok {
				return nil
			}
			if err := e.ProcessMsg(ctx, msg); err != nil {
				return err
			}
		}
	}
}

// ProcessMsg dispatches one Live-state message to its handler (spec §4.10:
// "every received message dispatches to handle_block, ..."). Any other
// message kind is a fatal protocol violation.
func (e *Engine) ProcessMsg(ctx context.Context, msg Message) error {
	switch msg.Kind {
	case MsgBlockConnected:
		return e.connectBlock(ctx, *msg.Block)
	case MsgBlockDisconnected:
		return e.disconnectBlock(*msg.Block)
	case MsgTransactionAddedToMempool:
		return e.handleTxAddedToMempool(*msg.Tx)
	case MsgTransactionRemovedFromMempool:
		return e.handleTxRemovedFromMempool(msg.Tx.Txid)
	default:
		return indexerr.New(indexerr.Critical, indexerr.CodeUnexpectedPluginMessage,
			fmt.Sprintf("unexpected message kind %d", msg.Kind))
	}
}
