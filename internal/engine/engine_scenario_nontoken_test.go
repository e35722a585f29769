package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/raipay/chronik-sub000/internal/engine"
	"github.com/raipay/chronik-sub000/internal/engine/enginetest"
	"github.com/raipay/chronik-sub000/internal/primitives"
	"github.com/raipay/chronik-sub000/internal/subscribe"
)

func coinbaseBlock(height primitives.BlockHeight, hash, prevHash primitives.BlockHash, txid primitives.Txid, sats int64, reward primitives.ScriptPayload) engine.RawBlock {
	tx := enginetest.Tx(txid, true, 0, nil, []engine.RawInput{enginetest.CoinbaseInput()}, []engine.RawOutput{enginetest.Output(sats, reward)})
	return enginetest.Block(height, hash, prevHash, tx)
}

// TestColdCatchupAndNonTokenSend chains spec §8 scenarios 1 and 2 (the
// second continues the first's confirmed chain): a handful of blocks
// (scaled down from the spec's literal 111/101) end with ten outputs
// confirmed to script S and nothing else spent from it, then a broadcast
// tx spending one of those ten is added to the mempool.
func TestColdCatchupAndNonTokenSend(t *testing.T) {
	h := enginetest.Open(t)
	ctx := context.Background()

	burn := enginetest.OpReturn()
	s := enginetest.P2SH(1)
	scriptT := enginetest.P2PKH(2)

	hash0 := enginetest.BlockHash(0)
	block0 := coinbaseBlock(0, hash0, primitives.BlockHash{}, enginetest.Txid(0), 5000, burn)
	require.NoError(t, h.Engine.ProcessMsg(ctx, engine.Message{Kind: engine.MsgBlockConnected, Block: &block0}))

	hash1 := enginetest.BlockHash(1)
	block1 := coinbaseBlock(1, hash1, hash0, enginetest.Txid(1), 5000, burn)
	require.NoError(t, h.Engine.ProcessMsg(ctx, engine.Message{Kind: engine.MsgBlockConnected, Block: &block1}))

	// Block 2 mints ten outputs to S in a single tx spending block 2's own
	// coinbase reward.
	hash2 := enginetest.BlockHash(2)
	txFund := enginetest.Txid(2)
	coinbase2 := enginetest.Tx(txFund, true, 0, nil, []engine.RawInput{enginetest.CoinbaseInput()}, []engine.RawOutput{enginetest.Output(500000, burn)})
	mintOutputs := make([]engine.RawOutput, 10)
	for i := range mintOutputs {
		mintOutputs[i] = enginetest.Output(50000, s)
	}
	txMint := enginetest.Tx(enginetest.Txid(3), false, 0, nil,
		[]engine.RawInput{enginetest.Input(txFund, 0, enginetest.Output(500000, burn))}, mintOutputs)
	block2 := enginetest.Block(2, hash2, hash1, coinbase2, txMint)
	require.NoError(t, h.Engine.ProcessMsg(ctx, engine.Message{Kind: engine.MsgBlockConnected, Block: &block2}))

	hash3 := enginetest.BlockHash(3)
	block3 := coinbaseBlock(3, hash3, hash2, enginetest.Txid(4), 5000, burn)
	require.NoError(t, h.Engine.ProcessMsg(ctx, engine.Message{Kind: engine.MsgBlockConnected, Block: &block3}))

	hash4 := enginetest.BlockHash(4)
	block4 := coinbaseBlock(4, hash4, hash3, enginetest.Txid(5), 5000, burn)
	require.NoError(t, h.Engine.ProcessMsg(ctx, engine.Message{Kind: engine.MsgBlockConnected, Block: &block4}))

	t.Run("ColdCatchup", func(t *testing.T) {
		tip, err := h.Engine.Tip()
		require.NoError(t, err)
		require.EqualValues(t, 4, tip.Height)
		require.Equal(t, hash4, tip.Hash)

		utxosS, err := h.Engine.Utxos(s)
		require.NoError(t, err)
		require.Len(t, utxosS, 10)
	})

	t.Run("NonTokenSend", func(t *testing.T) {
		// Mempool notifications fire for every output payload and every
		// spent input's payload; this subscriber watches the output's scriptT.
		ch := h.Engine.Subscriptions().SubscribeScript(scriptT)
		defer h.Engine.Subscriptions().UnsubscribeScript(scriptT, ch)

		spendTxid := enginetest.Txid(6)
		spendTx := enginetest.Tx(spendTxid, false, 1234, nil,
			[]engine.RawInput{enginetest.Input(enginetest.Txid(3), 0, enginetest.Output(50000, s))},
			[]engine.RawOutput{enginetest.Output(10000, burn), enginetest.Output(40000, scriptT)})

		require.NoError(t, h.Engine.ProcessMsg(ctx, engine.Message{Kind: engine.MsgTransactionAddedToMempool, Tx: &spendTx}))

		mempoolTx := h.Engine.MempoolTx(spendTxid)
		require.NotNil(t, mempoolTx)

		deltaT := h.Engine.MempoolUtxoDelta(scriptT)
		require.NotNil(t, deltaT)
		require.Len(t, deltaT.Inserts, 1)

		deltaS := h.Engine.MempoolUtxoDelta(s)
		require.NotNil(t, deltaS)
		require.Len(t, deltaS.Deletes, 1)
		require.Empty(t, deltaS.Inserts)

		confirmedS, err := h.Engine.Utxos(s)
		require.NoError(t, err)
		require.Len(t, confirmedS, 10, "the confirmed column itself never changes on a mempool event")
		require.Equal(t, 9, len(confirmedS)-len(deltaS.Deletes), "utxos(S) under the combined view must read nine")

		select {
		case msg := <-ch:
			require.Equal(t, subscribe.ScriptAddedToMempool, msg.Type)
			require.Equal(t, spendTxid, msg.Txid)
		case <-time.After(50 * time.Millisecond):
			t.Fatal("per-script subscriber did not observe AddedToMempool within 50ms")
		}
	})
}

// TestReorg exercises spec §8 scenario 3: a mined tx gets reorged out by a
// BlockDisconnected/BlockConnected pair, and the per-block subscriber
// observes the two events in that exact order.
func TestReorg(t *testing.T) {
	h := enginetest.Open(t)
	ctx := context.Background()
	burn := enginetest.OpReturn()

	hash0 := enginetest.BlockHash(0)
	block0 := coinbaseBlock(0, hash0, primitives.BlockHash{}, enginetest.Txid(0), 5000, burn)
	require.NoError(t, h.Engine.ProcessMsg(ctx, engine.Message{Kind: engine.MsgBlockConnected, Block: &block0}))

	scriptX := enginetest.P2PKH(10)
	scriptY := enginetest.P2PKH(11)

	hashOld := enginetest.BlockHash(100)
	blockOld := coinbaseBlock(1, hashOld, hash0, enginetest.Txid(100), 5000, scriptX)
	require.NoError(t, h.Engine.ProcessMsg(ctx, engine.Message{Kind: engine.MsgBlockConnected, Block: &blockOld}))

	chBlocks := h.Engine.Subscriptions().SubscribeBlocks()
	defer h.Engine.Subscriptions().UnsubscribeBlocks(chBlocks)

	require.NoError(t, h.Engine.ProcessMsg(ctx, engine.Message{Kind: engine.MsgBlockDisconnected, Block: &blockOld}))

	hashNew := enginetest.BlockHash(101)
	blockNew := coinbaseBlock(1, hashNew, hash0, enginetest.Txid(101), 5000, scriptY)
	require.NoError(t, h.Engine.ProcessMsg(ctx, engine.Message{Kind: engine.MsgBlockConnected, Block: &blockNew}))

	utxosX, err := h.Engine.Utxos(scriptX)
	require.NoError(t, err)
	require.Empty(t, utxosX, "the reorged-out chain's output must no longer be listed")

	utxosY, err := h.Engine.Utxos(scriptY)
	require.NoError(t, err)
	require.Len(t, utxosY, 1)

	tip, err := h.Engine.Tip()
	require.NoError(t, err)
	require.Equal(t, hashNew, tip.Hash)

	first := readBlockMsg(t, chBlocks)
	require.Equal(t, subscribe.BlockDisconnectedMsg, first.Type)
	require.Equal(t, hashOld, first.Hash)

	second := readBlockMsg(t, chBlocks)
	require.Equal(t, subscribe.BlockConnectedMsg, second.Type)
	require.Equal(t, hashNew, second.Hash)
}

func readBlockMsg(t *testing.T, ch <-chan subscribe.BlockMsg) subscribe.BlockMsg {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(50 * time.Millisecond):
		t.Fatal("timed out waiting for a block subscription message")
		return subscribe.BlockMsg{}
	}
}
