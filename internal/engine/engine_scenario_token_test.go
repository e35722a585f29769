package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raipay/chronik-sub000/internal/codec"
	"github.com/raipay/chronik-sub000/internal/engine"
	"github.com/raipay/chronik-sub000/internal/engine/enginetest"
	"github.com/raipay/chronik-sub000/internal/indexdb"
	"github.com/raipay/chronik-sub000/internal/primitives"
	"github.com/raipay/chronik-sub000/internal/slp"
)

// coinbaseTx is a small per-block filler tx so every block in these
// scenarios looks like a real one, without itself touching any script a
// test cares about.
func coinbaseTx(n uint32) engine.RawTx {
	return enginetest.Tx(enginetest.Txid(n), true, 0, nil,
		[]engine.RawInput{enginetest.CoinbaseInput()},
		[]engine.RawOutput{enginetest.Output(5000, enginetest.OpReturn())})
}

// TestTokenLifecycleWithBurn exercises spec §8 scenario 4: a GENESIS mints
// 200 tokens with a mint baton, a later SEND declares only 170 of the 200 it
// consumes, burning the remaining 30, and the token's persisted stats
// reflect exactly that.
func TestTokenLifecycleWithBurn(t *testing.T) {
	h := enginetest.Open(t)
	ctx := context.Background()
	holder := enginetest.P2PKH(1)
	recipient := enginetest.P2PKH(2)
	tokenId := enginetest.TokenId(1)

	genesisTxid := enginetest.Txid(10)
	genesisRaw := []byte("genesis-fungible-200")
	h.Parser.RegisterSlp(genesisRaw, slp.ParsedTx{
		Ok:            true,
		TxType:        indexdb.TxTypeGenesis,
		TokenType:     indexdb.TokenTypeFungible,
		TokenId:       tokenId,
		HasTokenId:    true,
		OutputAmounts: []uint64{0, 200, 0},
		MintBatonIdx:  2,
	})
	genesisTx := enginetest.Tx(genesisTxid, false, 0, genesisRaw, nil,
		[]engine.RawOutput{
			enginetest.Output(0, enginetest.OpReturn()),
			enginetest.Output(1000, holder),
			enginetest.Output(546, holder),
		})

	hash0 := enginetest.BlockHash(0)
	block0 := enginetest.Block(0, hash0, primitives.BlockHash{}, coinbaseTx(0), genesisTx)
	require.NoError(t, h.Engine.ProcessMsg(ctx, engine.Message{Kind: engine.MsgBlockConnected, Block: &block0}))

	tokenNum, ok, err := indexdb.NewTokenStore(h.DB).TokenNumById(tokenId)
	require.NoError(t, err)
	require.True(t, ok)

	statsAfterGenesis, err := indexdb.NewTokenStore(h.DB).Stats(tokenNum)
	require.NoError(t, err)
	require.Equal(t, codec.Int128FromInt64(200), statsAfterGenesis.TotalMinted)
	require.Equal(t, codec.Int128FromInt64(0), statsAfterGenesis.TotalBurned)

	sendTxid := enginetest.Txid(11)
	sendRaw := []byte("send-declares-170")
	h.Parser.RegisterSlp(sendRaw, slp.ParsedTx{
		Ok:            true,
		TxType:        indexdb.TxTypeSend,
		TokenType:     indexdb.TokenTypeFungible,
		TokenId:       tokenId,
		HasTokenId:    true,
		InputAmounts:  []uint64{170},
		OutputAmounts: []uint64{170},
		MintBatonIdx:  -1,
	})
	sendTx := enginetest.Tx(sendTxid, false, 0, sendRaw,
		[]engine.RawInput{enginetest.Input(genesisTxid, 1, enginetest.Output(1000, holder))},
		[]engine.RawOutput{enginetest.Output(800, recipient)})

	hash1 := enginetest.BlockHash(1)
	block1 := enginetest.Block(1, hash1, hash0, coinbaseTx(1), sendTx)
	require.NoError(t, h.Engine.ProcessMsg(ctx, engine.Message{Kind: engine.MsgBlockConnected, Block: &block1}))

	statsAfterSend, err := indexdb.NewTokenStore(h.DB).Stats(tokenNum)
	require.NoError(t, err)
	require.Equal(t, codec.Int128FromInt64(200), statsAfterSend.TotalMinted)
	require.Equal(t, codec.Int128FromInt64(30), statsAfterSend.TotalBurned, "200 consumed minus 170 declared must burn 30")
}

// TestCrossBlockNFT1Child exercises spec §8 scenario 5: an NFT1 group token
// is sent with a burn, then an NFT1-child GENESIS spends one of the group's
// SEND outputs — itself burning that single group-token input per the
// protocol's "group tokens are never re-emitted by a child GENESIS" rule.
func TestCrossBlockNFT1Child(t *testing.T) {
	h := enginetest.Open(t)
	ctx := context.Background()
	groupHolder := enginetest.P2PKH(20)
	sendHolder1 := enginetest.P2PKH(21)
	sendHolder2 := enginetest.P2PKH(22)
	childHolder := enginetest.P2PKH(23)
	groupTokenId := enginetest.TokenId(2)
	childTokenId := enginetest.TokenId(3)

	groupGenesisTxid := enginetest.Txid(30)
	groupGenesisRaw := []byte("genesis-nft1-group-100")
	h.Parser.RegisterSlp(groupGenesisRaw, slp.ParsedTx{
		Ok:            true,
		TxType:        indexdb.TxTypeGenesis,
		TokenType:     indexdb.TokenTypeNFT1Group,
		TokenId:       groupTokenId,
		HasTokenId:    true,
		OutputAmounts: []uint64{0, 100},
		MintBatonIdx:  -1,
	})
	groupGenesisTx := enginetest.Tx(groupGenesisTxid, false, 0, groupGenesisRaw, nil,
		[]engine.RawOutput{enginetest.Output(0, enginetest.OpReturn()), enginetest.Output(1000, groupHolder)})

	hash0 := enginetest.BlockHash(0)
	block0 := enginetest.Block(0, hash0, primitives.BlockHash{}, coinbaseTx(0), groupGenesisTx)
	require.NoError(t, h.Engine.ProcessMsg(ctx, engine.Message{Kind: engine.MsgBlockConnected, Block: &block0}))

	groupTokenNum, ok, err := indexdb.NewTokenStore(h.DB).TokenNumById(groupTokenId)
	require.NoError(t, err)
	require.True(t, ok)

	sendTxid := enginetest.Txid(31)
	sendRaw := []byte("send-nft1-group-51-of-100")
	h.Parser.RegisterSlp(sendRaw, slp.ParsedTx{
		Ok:            true,
		TxType:        indexdb.TxTypeSend,
		TokenType:     indexdb.TokenTypeNFT1Group,
		TokenId:       groupTokenId,
		HasTokenId:    true,
		InputAmounts:  []uint64{51},
		OutputAmounts: []uint64{1, 50},
		MintBatonIdx:  -1,
	})
	sendTx := enginetest.Tx(sendTxid, false, 0, sendRaw,
		[]engine.RawInput{enginetest.Input(groupGenesisTxid, 1, enginetest.Output(1000, groupHolder))},
		[]engine.RawOutput{enginetest.Output(600, sendHolder1), enginetest.Output(400, sendHolder2)})

	hash1 := enginetest.BlockHash(1)
	block1 := enginetest.Block(1, hash1, hash0, coinbaseTx(1), sendTx)
	require.NoError(t, h.Engine.ProcessMsg(ctx, engine.Message{Kind: engine.MsgBlockConnected, Block: &block1}))

	statsAfterSend, err := indexdb.NewTokenStore(h.DB).Stats(groupTokenNum)
	require.NoError(t, err)
	require.Equal(t, codec.Int128FromInt64(49), statsAfterSend.TotalBurned, "100 consumed minus 51 declared must burn 49")

	childGenesisTxid := enginetest.Txid(32)
	childGenesisRaw := []byte("genesis-nft1-child")
	h.Parser.RegisterSlp(childGenesisRaw, slp.ParsedTx{
		Ok:            true,
		TxType:        indexdb.TxTypeGenesis,
		TokenType:     indexdb.TokenTypeNFT1Child,
		TokenId:       childTokenId,
		HasTokenId:    true,
		GroupTokenId:  groupTokenId,
		HasGroup:      true,
		OutputAmounts: []uint64{0, 1},
		MintBatonIdx:  -1,
	})
	childGenesisTx := enginetest.Tx(childGenesisTxid, false, 0, childGenesisRaw,
		[]engine.RawInput{enginetest.Input(sendTxid, 0, enginetest.Output(600, sendHolder1))},
		[]engine.RawOutput{enginetest.Output(0, enginetest.OpReturn()), enginetest.Output(546, childHolder)})

	hash2 := enginetest.BlockHash(2)
	block2 := enginetest.Block(2, hash2, hash1, coinbaseTx(2), childGenesisTx)
	require.NoError(t, h.Engine.ProcessMsg(ctx, engine.Message{Kind: engine.MsgBlockConnected, Block: &block2}))

	childTxNum, ok, err := indexdb.NewTxStore(h.DB).TxNumByTxid(childGenesisTxid)
	require.NoError(t, err)
	require.True(t, ok)

	childEntry, err := indexdb.NewTokenStore(h.DB).TxData(childTxNum)
	require.NoError(t, err)
	require.NotNil(t, childEntry)
	require.Equal(t, groupTokenNum, childEntry.GroupTokenNum, "the child's own entry must record its resolved group token_num")

	statsAfterChildGenesis, err := indexdb.NewTokenStore(h.DB).Stats(groupTokenNum)
	require.NoError(t, err)
	require.Equal(t, codec.Int128FromInt64(50), statsAfterChildGenesis.TotalBurned,
		"a child GENESIS never re-emits the group token it consumes, so the single unit it spent is burned too")

	childTokenNum, ok, err := indexdb.NewTokenStore(h.DB).TokenNumById(childTokenId)
	require.NoError(t, err)
	require.True(t, ok)
	childTokenStats, err := indexdb.NewTokenStore(h.DB).Stats(childTokenNum)
	require.NoError(t, err)
	require.Equal(t, codec.Int128FromInt64(1), childTokenStats.TotalMinted)
}
