package indexdb

import (
	"github.com/raipay/chronik-sub000/internal/codec"
	"github.com/raipay/chronik-sub000/internal/hashindex"
	"github.com/raipay/chronik-sub000/internal/indexerr"
	"github.com/raipay/chronik-sub000/internal/primitives"
	"github.com/raipay/chronik-sub000/internal/store"
)

// TxEntry mirrors spec §3's TxEntry, addressed by its TxNum.
type TxEntry struct {
	Txid         primitives.Txid
	DataPos      uint32
	TxSize       uint32
	UndoPos      uint32
	UndoSize     uint32
	TimeFirstSeen int64
	IsCoinbase   bool
}

const txEntrySize = 32 + 4 + 4 + 4 + 4 + 8 + 1

func encodeTxEntry(e TxEntry) []byte {
	buf := make([]byte, txEntrySize)
	codec.PutTxid(buf[0:32], e.Txid)
	copy(buf[32:36], codec.LEUint32(e.DataPos))
	copy(buf[36:40], codec.LEUint32(e.TxSize))
	copy(buf[40:44], codec.LEUint32(e.UndoPos))
	copy(buf[44:48], codec.LEUint32(e.UndoSize))
	copy(buf[48:56], codec.LEInt64(e.TimeFirstSeen))
	if e.IsCoinbase {
		buf[56] = 1
	}
	return buf
}

func decodeTxEntry(buf []byte) TxEntry {
	return TxEntry{
		Txid:          codec.GetTxid(buf[0:32]),
		DataPos:       codec.DecodeLEUint32(buf[32:36]),
		TxSize:        codec.DecodeLEUint32(buf[36:40]),
		UndoPos:       codec.DecodeLEUint32(buf[40:44]),
		UndoSize:      codec.DecodeLEUint32(buf[44:48]),
		TimeFirstSeen: codec.DecodeLEInt64(buf[48:56]),
		IsCoinbase:    buf[56] != 0,
	}
}

// BlockTxs is the write-path input of TxStore.InsertBlockTxs: the full set
// of transactions confirmed in one block, in block order.
type BlockTxs struct {
	Height primitives.BlockHeight
	Txs    []TxEntry
}

// TxStore is the primary index of spec §4.4.
type TxStore struct {
	db  *store.DB
	idx *hashindex.Index[primitives.Txid, primitives.TxNum]
}

func NewTxStore(db *store.DB) *TxStore {
	ts := &TxStore{db: db}
	ts.idx = hashindex.New(db, store.CFTxIndexByTxid, hashindex.HashTxid, TxNumCodec, ts.lookupTxidByNum)
	return ts
}

func (ts *TxStore) lookupTxidByNum(n primitives.TxNum) (primitives.Txid, bool, error) {
	e, err := ts.ByTxNum(n)
	if err != nil {
		return primitives.Txid{}, false, err
	}
	if e == nil {
		return primitives.Txid{}, false, nil
	}
	return e.Txid, true, nil
}

// NextTxNum reads the current max TxNum + 1 (0 on an empty DB).
func (ts *TxStore) NextTxNum() (primitives.TxNum, error) {
	it := ts.db.NewIterator(store.CFTxs)
	defer it.Close()
	it.SeekToLast()
	if !it.Valid() {
		return 0, nil
	}
	key := it.Key()
	n := codec.DecodeBETxNum(keyBytes(key))
	key.Free()
	return n + 1, nil
}

// InsertBlockTxs assigns a contiguous TxNum range to bt.Txs and writes the
// block↔first-tx-num inverse pair, per spec §4.4.
func (ts *TxStore) InsertBlockTxs(batch *store.Batch, bt BlockTxs) (primitives.TxNum, error) {
	firstTxNum, err := ts.NextTxNum()
	if err != nil {
		return 0, err
	}

	batch.Put(store.CFBlockByFirstTx, codec.BETxNum(firstTxNum), codec.BEHeight(bt.Height))
	batch.Put(store.CFFirstTxByBlock, codec.BEHeight(bt.Height), codec.BETxNum(firstTxNum))

	for i, entry := range bt.Txs {
		txNum := firstTxNum + primitives.TxNum(i)
		batch.Put(store.CFTxs, codec.BETxNum(txNum), encodeTxEntry(entry))
		cf, key, val := ts.idx.InsertOp(entry.Txid, txNum)
		batch.Merge(cf, key, val)
	}
	return firstTxNum, nil
}

// DeleteBlockTxs removes every TxEntry in [firstTxNum, firstTxNum+numTxs)
// along with its secondary-index entry and the block↔first-tx-num pair.
func (ts *TxStore) DeleteBlockTxs(batch *store.Batch, height primitives.BlockHeight, firstTxNum primitives.TxNum, numTxs int) error {
	for i := 0; i < numTxs; i++ {
		txNum := firstTxNum + primitives.TxNum(i)
		e, err := ts.ByTxNum(txNum)
		if err != nil {
			return err
		}
		if e == nil {
			continue
		}
		batch.Delete(store.CFTxs, codec.BETxNum(txNum))
		cf, key, val := ts.idx.DeleteOp(e.Txid, txNum)
		batch.Merge(cf, key, val)
	}
	batch.Delete(store.CFBlockByFirstTx, codec.BETxNum(firstTxNum))
	batch.Delete(store.CFFirstTxByBlock, codec.BEHeight(height))
	return nil
}

func (ts *TxStore) ByTxNum(n primitives.TxNum) (*TxEntry, error) {
	raw, err := ts.db.Get(store.CFTxs, codec.BETxNum(n))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	e := decodeTxEntry(raw)
	return &e, nil
}

func (ts *TxStore) TxNumByTxid(txid primitives.Txid) (primitives.TxNum, bool, error) {
	return ts.idx.Lookup(txid)
}

func (ts *TxStore) ByTxid(txid primitives.Txid) (*TxEntry, primitives.TxNum, error) {
	n, ok, err := ts.TxNumByTxid(txid)
	if err != nil || !ok {
		return nil, 0, err
	}
	e, err := ts.ByTxNum(n)
	return e, n, err
}

// FirstTxNumByBlock is the inverse map block→first_tx_num.
func (ts *TxStore) FirstTxNumByBlock(h primitives.BlockHeight) (primitives.TxNum, bool, error) {
	raw, err := ts.db.Get(store.CFFirstTxByBlock, codec.BEHeight(h))
	if err != nil {
		return 0, false, err
	}
	if raw == nil {
		return 0, false, nil
	}
	return codec.DecodeBETxNum(raw), true, nil
}

// BlockHeightByFirstTxNum is the inverse map first_tx_num→block, used to
// recover a TxEntry's containing block height without storing it redundantly
// (spec §3: "no column stores another's payload by value").
func (ts *TxStore) BlockHeightByFirstTxNum(firstTxNum primitives.TxNum) (primitives.BlockHeight, bool, error) {
	raw, err := ts.db.Get(store.CFBlockByFirstTx, codec.BETxNum(firstTxNum))
	if err != nil {
		return 0, false, err
	}
	if raw == nil {
		return 0, false, nil
	}
	return codec.DecodeBEHeight(raw), true, nil
}

// BlockHeightByTxNum reverse-scans block_by_first_tx to find the block
// whose first_tx_num is the greatest value <= txNum (spec §4.4's
// "by_tx_num ... reverse-scan on block_by_first_tx").
func (ts *TxStore) BlockHeightByTxNum(txNum primitives.TxNum) (primitives.BlockHeight, error) {
	it := ts.db.NewIterator(store.CFBlockByFirstTx)
	defer it.Close()
	it.SeekForPrev(codec.BETxNum(txNum))
	if !it.Valid() {
		return 0, indexerr.New(indexerr.Critical, indexerr.CodeInconsistentNoSuchBlockTx,
			"no block contains the given tx_num")
	}
	val := it.Value()
	h := codec.DecodeBEHeight(valBytes(val))
	val.Free()
	return h, nil
}
