package indexdb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raipay/chronik-sub000/internal/primitives"
)

func blockHash(b byte) primitives.BlockHash {
	var h primitives.BlockHash
	h[0] = b
	return h
}

// TestTipConsistency exercises Testable Property 1: height() tracks the net
// connect/disconnect count, tip().hash is the most recently connected
// block, and tip().prev_hash (recovered via PrevHash) matches the record at
// height-1.
func TestTipConsistency(t *testing.T) {
	db := newTestDB(t)
	blocks := NewBlockStore(db)

	require.Equal(t, primitives.NoTip, mustHeight(t, blocks))

	batch := db.NewBatch()
	blocks.Insert(batch, Block{Hash: blockHash(1), Height: 0})
	commit(t, batch)
	batch = db.NewBatch()
	blocks.Insert(batch, Block{Hash: blockHash(2), Height: 1})
	commit(t, batch)
	batch = db.NewBatch()
	blocks.Insert(batch, Block{Hash: blockHash(3), Height: 2})
	commit(t, batch)

	require.EqualValues(t, 2, mustHeight(t, blocks))
	tip, err := blocks.Tip()
	require.NoError(t, err)
	require.Equal(t, blockHash(3), tip.Hash)

	prev, err := blocks.PrevHash(2)
	require.NoError(t, err)
	require.Equal(t, blockHash(2), prev)

	// disconnect the tip: height drops by one, the new tip is the prior
	// block, and genesis's prev_hash is the zero value.
	batch = db.NewBatch()
	require.NoError(t, blocks.DeleteByHeight(batch, 2))
	commit(t, batch)

	require.EqualValues(t, 1, mustHeight(t, blocks))
	prev, err = blocks.PrevHash(0)
	require.NoError(t, err)
	require.Equal(t, primitives.BlockHash{}, prev)
}

// TestByHashResolvesThroughSecondaryIndex confirms the hash-bucketed
// secondary index (spec §4.2) round-trips a block lookup by hash.
func TestByHashResolvesThroughSecondaryIndex(t *testing.T) {
	db := newTestDB(t)
	blocks := NewBlockStore(db)

	batch := db.NewBatch()
	blocks.Insert(batch, Block{Hash: blockHash(7), Height: 0})
	commit(t, batch)

	got, err := blocks.ByHash(blockHash(7))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.EqualValues(t, 0, got.Height)

	miss, err := blocks.ByHash(blockHash(8))
	require.NoError(t, err)
	require.Nil(t, miss)
}

func mustHeight(t *testing.T, blocks *BlockStore) primitives.BlockHeight {
	t.Helper()
	h, err := blocks.Height()
	require.NoError(t, err)
	return h
}
