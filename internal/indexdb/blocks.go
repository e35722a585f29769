package indexdb

import (
	"github.com/pkg/errors"

	"github.com/raipay/chronik-sub000/internal/codec"
	"github.com/raipay/chronik-sub000/internal/hashindex"
	"github.com/raipay/chronik-sub000/internal/indexerr"
	"github.com/raipay/chronik-sub000/internal/primitives"
	"github.com/raipay/chronik-sub000/internal/store"
)

// Block mirrors spec §3's Block entity. prev_hash is never stored; it is
// recovered by reading the record at height-1 (spec §4.3).
type Block struct {
	Hash      primitives.BlockHash
	Height    primitives.BlockHeight
	NBits     uint32
	Timestamp int64
	FileNum   uint32
	DataPos   uint32
}

const blockRecordSize = 32 + 4 + 8 + 4 + 4 // hash, n_bits_le, timestamp_le, file_num_le, data_pos_le

func encodeBlock(b Block) []byte {
	buf := make([]byte, blockRecordSize)
	codec.PutBlockHash(buf[0:32], b.Hash)
	copy(buf[32:36], codec.LEUint32(b.NBits))
	copy(buf[36:44], codec.LEInt64(b.Timestamp))
	copy(buf[44:48], codec.LEUint32(b.FileNum))
	copy(buf[48:52], codec.LEUint32(b.DataPos))
	return buf
}

func decodeBlock(height primitives.BlockHeight, buf []byte) Block {
	return Block{
		Hash:      codec.GetBlockHash(buf[0:32]),
		Height:    height,
		NBits:     codec.DecodeLEUint32(buf[32:36]),
		Timestamp: codec.DecodeLEInt64(buf[36:44]),
		FileNum:   codec.DecodeLEUint32(buf[44:48]),
		DataPos:   codec.DecodeLEUint32(buf[48:52]),
	}
}

// BlockStore is the primary index of spec §4.3.
type BlockStore struct {
	db  *store.DB
	idx *hashindex.Index[primitives.BlockHash, primitives.BlockHeight]
}

func NewBlockStore(db *store.DB) *BlockStore {
	bs := &BlockStore{db: db}
	bs.idx = hashindex.New(db, store.CFBlocksIndexByHash, hashindex.HashBlockHash, HeightCodec, bs.lookupHashByHeight)
	return bs
}

func (bs *BlockStore) lookupHashByHeight(h primitives.BlockHeight) (primitives.BlockHash, bool, error) {
	blk, err := bs.ByHeight(h)
	if err != nil {
		return primitives.BlockHash{}, false, err
	}
	if blk == nil {
		return primitives.BlockHash{}, false, nil
	}
	return blk.Hash, true, nil
}

// Insert writes a new block record and its hash-index entry into batch.
func (bs *BlockStore) Insert(batch *store.Batch, b Block) {
	batch.Put(store.CFBlocks, codec.BEHeight(b.Height), encodeBlock(b))
	cf, key, val := bs.idx.InsertOp(b.Hash, b.Height)
	batch.Merge(cf, key, val)
}

// DeleteByHeight removes the block record at h and its hash-index entry.
func (bs *BlockStore) DeleteByHeight(batch *store.Batch, h primitives.BlockHeight) error {
	blk, err := bs.ByHeight(h)
	if err != nil {
		return err
	}
	if blk == nil {
		return nil
	}
	batch.Delete(store.CFBlocks, codec.BEHeight(h))
	cf, key, val := bs.idx.DeleteOp(blk.Hash, h)
	batch.Merge(cf, key, val)
	return nil
}

// ByHeight performs a point read. Returns (nil, nil) if no block exists at h.
func (bs *BlockStore) ByHeight(h primitives.BlockHeight) (*Block, error) {
	raw, err := bs.db.Get(store.CFBlocks, codec.BEHeight(h))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	blk := decodeBlock(h, raw)
	return &blk, nil
}

// ByHash resolves hash through the secondary index, then point-reads.
func (bs *BlockStore) ByHash(hash primitives.BlockHash) (*Block, error) {
	h, ok, err := bs.idx.Lookup(hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return bs.ByHeight(h)
}

// Tip returns the highest-height block, or nil if the index is empty.
func (bs *BlockStore) Tip() (*Block, error) {
	it := bs.db.NewIterator(store.CFBlocks)
	defer it.Close()
	it.SeekToLast()
	if !it.Valid() {
		return nil, nil
	}
	key := it.Key()
	val := it.Value()
	h := codec.DecodeBEHeight(keyBytes(key))
	blk := decodeBlock(h, valBytes(val))
	key.Free()
	val.Free()
	return &blk, nil
}

// Height returns the current tip height, or primitives.NoTip if empty.
func (bs *BlockStore) Height() (primitives.BlockHeight, error) {
	tip, err := bs.Tip()
	if err != nil {
		return primitives.NoTip, err
	}
	if tip == nil {
		return primitives.NoTip, nil
	}
	return tip.Height, nil
}

// PrevHash recovers a block's declared predecessor hash by reading height-1.
// Raises OrphanBlock if a non-zero height lacks its predecessor (spec §4.3).
func (bs *BlockStore) PrevHash(height primitives.BlockHeight) (primitives.BlockHash, error) {
	if height == 0 {
		return primitives.BlockHash{}, nil
	}
	prev, err := bs.ByHeight(height - 1)
	if err != nil {
		return primitives.BlockHash{}, err
	}
	if prev == nil {
		return primitives.BlockHash{}, indexerr.New(indexerr.Critical, indexerr.CodeOrphanBlock,
			errors.Errorf("block at height %d has no predecessor at %d", height, height-1).Error())
	}
	return prev.Hash, nil
}

// keyBytes/valBytes copy a grocksdb.Slice's bytes before it's freed by the
// caller; kept here rather than importing grocksdb directly into every file
// that walks an iterator.
func keyBytes(s interface{ Data() []byte }) []byte {
	b := s.Data()
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func valBytes(s interface{ Data() []byte }) []byte {
	return keyBytes(s)
}
