package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raipay/chronik-sub000/internal/engine"
	"github.com/raipay/chronik-sub000/internal/engine/enginetest"
	"github.com/raipay/chronik-sub000/internal/indexdb"
	"github.com/raipay/chronik-sub000/internal/primitives"
)

// TestPagedHistoryAtEngineLevel exercises spec §8 scenario 6 end to end
// through connectBlock rather than against ScriptTxsStore directly: 25
// single-coinbase blocks all rewarding the same script, a page_size of 7,
// num_pages() == 4, and the most recent page listing the newest entries
// first.
func TestPagedHistoryAtEngineLevel(t *testing.T) {
	h := enginetest.OpenWithPageSize(t, 7)
	ctx := context.Background()
	s := enginetest.P2PKH(1)

	var prevHash primitives.BlockHash
	for height := primitives.BlockHeight(0); height < 25; height++ {
		hash := enginetest.BlockHash(uint32(height) + 1)
		block := coinbaseBlock(height, hash, prevHash, enginetest.Txid(uint32(height)+1), 5000, s)
		require.NoError(t, h.Engine.ProcessMsg(ctx, engine.Message{Kind: engine.MsgBlockConnected, Block: &block}))
		prevHash = hash
	}

	script := indexdb.NewScriptTxsStore(h.DB, 7)
	numPages, err := script.NumPages(s)
	require.NoError(t, err)
	require.EqualValues(t, 4, numPages)

	recent, err := script.RevHistoryPage(s, 0, 10)
	require.NoError(t, err)
	require.Len(t, recent, 10)

	for i := 1; i < len(recent); i++ {
		require.Greater(t, recent[i-1], recent[i], "the most recent page must list newest-first")
	}
}
