package indexdb

import (
	"github.com/linxGnu/grocksdb"

	"github.com/raipay/chronik-sub000/internal/store"
)

// Mergers builds the per-column grocksdb.MergeOperator set store.Open needs,
// one OrderedListMerger per column in store's mergeColumnFamilies, each
// bound to the record codec that column's writer/reader already use.
func Mergers() map[string]grocksdb.MergeOperator {
	return map[string]grocksdb.MergeOperator{
		store.CFScriptTxs:         store.NewOrderedListMerger(store.CFScriptTxs, TxNumCodec),
		store.CFUtxos:             store.NewOrderedListMerger(store.CFUtxos, OutpointCodec),
		store.CFSpends:            store.NewOrderedListMerger(store.CFSpends, SpendRecordCodec),
		store.CFBlocksIndexByHash: store.NewOrderedListMerger(store.CFBlocksIndexByHash, HeightCodec),
		store.CFTxIndexByTxid:     store.NewOrderedListMerger(store.CFTxIndexByTxid, TxNumCodec),
	}
}
