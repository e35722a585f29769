// Package hashindex implements the generic hash-bucketed secondary index of
// spec §4.2: a key type K (e.g. Txid, BlockHash) is hashed into a small
// bucket; the bucket holds an ordered list of a serial type S (e.g. TxNum,
// BlockHeight) via the store's ordered-list merge primitive; the primary
// column maps S back to the full record (which embeds K so lookups can
// disambiguate hash collisions).
//
// Grounded on chronik-rocksdb's tx_index_by_txid / blocks_index_by_hash
// column pair (chronik-rocksdb/src/index.rs), generalized here with Go
// generics instead of being duplicated per key/serial type.
package hashindex

import (
	"github.com/raipay/chronik-sub000/internal/codec"
	"github.com/raipay/chronik-sub000/internal/indexerr"
	"github.com/raipay/chronik-sub000/internal/store"
)

// Hasher produces the 32-bit bucket hash for a key.
type Hasher[K any] func(K) uint32

// PrimaryLookup fetches the embedded key K for serial S from the primary
// column, so a bucket hit can be confirmed against a hash collision.
type PrimaryLookup[K comparable, S any] func(s S) (K, bool, error)

// Index is a read/write handle to one hash-bucketed secondary index living
// in hashCF, whose buckets are ordered lists of S encoded via codec.
type Index[K comparable, S any] struct {
	db         *store.DB
	hashCF     string
	hasher     Hasher[K]
	codec      store.RecordCodec[S]
	lookupByS PrimaryLookup[K, S]
}

func New[K comparable, S any](db *store.DB, hashCF string, hasher Hasher[K], codec store.RecordCodec[S], lookup PrimaryLookup[K, S]) *Index[K, S] {
	return &Index[K, S]{db: db, hashCF: hashCF, hasher: hasher, codec: codec, lookupByS: lookup}
}

func (idx *Index[K, S]) bucketKey(k K) []byte {
	return codec.BEUint32(idx.hasher(k))
}

// Lookup finds the serial S whose primary record embeds key k. Returns
// (zero, false, nil) when k is not indexed at all. A bucket entry whose
// primary record is missing is an InconsistentDatabase critical error
// (spec §4.2).
func (idx *Index[K, S]) Lookup(k K) (S, bool, error) {
	var zero S
	raw, err := idx.db.Get(idx.hashCF, idx.bucketKey(k))
	if err != nil {
		return zero, false, err
	}
	if raw == nil {
		return zero, false, nil
	}
	for _, s := range store.DecodeList(idx.codec, raw) {
		key, ok, err := idx.lookupByS(s)
		if err != nil {
			return zero, false, err
		}
		if !ok {
			return zero, false, indexerr.New(indexerr.Critical, indexerr.CodeInconsistentDatabase,
				"hash bucket references a serial absent from the primary column")
		}
		if key == k {
			return s, true, nil
		}
	}
	return zero, false, nil
}

// InsertOp returns the merge operand that adds s to k's bucket.
func (idx *Index[K, S]) InsertOp(k K, s S) (cf string, key, value []byte) {
	return idx.hashCF, idx.bucketKey(k), store.InsertOperand(idx.codec, s)
}

// DeleteOp returns the merge operand that removes s from k's bucket.
func (idx *Index[K, S]) DeleteOp(k K, s S) (cf string, key, value []byte) {
	return idx.hashCF, idx.bucketKey(k), store.DeleteOperand(idx.codec, s)
}
