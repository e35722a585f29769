// Package store implements the ordered-list merge primitive of spec §4.1 as
// a generic grocksdb.MergeOperator: a merge operand is [tag byte, fixed-size
// record], tag is InsertTag or DeleteTag, and the full-merge materializes
// the existing value as a sorted slice of records and applies each operand
// by binary search. This is the same algorithm as the original's
// full_merge_ordered_list / partial_merge_ordered_list
// (chronik-rocksdb/src/merge_ops.rs), ported from a Rust generic over
// `AsBytes + FromBytes + Unaligned + Ord` to a Go generic over a small
// RecordCodec interface (grocksdb has no equivalent of zerocopy derives, so
// decoding goes through an explicit codec rather than a transmute).
package store

import "sort"

const (
	// InsertTag prefixes a merge operand that adds a record to the list.
	InsertTag byte = 'I'
	// DeleteTag prefixes a merge operand that removes a record from the list.
	DeleteTag byte = 'D'
)

// RecordCodec describes a fixed-width, totally-ordered record type that can
// live in an ordered-list column. Implementations are value types (e.g. a
// TxNum, or a (TxNum,OutIdx) pair) with a fixed on-disk Size().
type RecordCodec[T any] interface {
	Size() int
	Encode(T) []byte
	Decode([]byte) T
	Compare(a, b T) int
}

// OrderedListMerger is a grocksdb.MergeOperator for a single list-valued
// column family. One instance is created per column at store-open time.
type OrderedListMerger[T any] struct {
	name  string
	codec RecordCodec[T]
}

func NewOrderedListMerger[T any](name string, codec RecordCodec[T]) *OrderedListMerger[T] {
	return &OrderedListMerger[T]{name: name, codec: codec}
}

func (m *OrderedListMerger[T]) Name() string { return m.name }

// FullMerge applies every operand (in delivery order) to the materialized
// existing list. Duplicate inserts and missing deletes are no-ops, exactly
// as spec §4.1 requires.
func (m *OrderedListMerger[T]) FullMerge(_ []byte, existingValue []byte, operands [][]byte) ([]byte, bool) {
	entries := m.decodeList(existingValue)
	for _, operand := range operands {
		if len(operand) == 0 {
			continue
		}
		tag, rec := operand[0], m.codec.Decode(operand[1:])
		idx := sort.Search(len(entries), func(i int) bool { return m.codec.Compare(entries[i], rec) >= 0 })
		switch tag {
		case InsertTag:
			if idx >= len(entries) || m.codec.Compare(entries[idx], rec) != 0 {
				entries = append(entries, rec)
				copy(entries[idx+1:], entries[idx:])
				entries[idx] = rec
			}
		case DeleteTag:
			if idx < len(entries) && m.codec.Compare(entries[idx], rec) == 0 {
				entries = append(entries[:idx], entries[idx+1:]...)
			}
		}
	}
	return m.encodeList(entries), true
}

// PartialMerge never combines operands eagerly: spec §4.1 requires this so
// INSERT/DELETE ordering against the (unknown at compaction time) existing
// value is always resolved by the full merge.
func (m *OrderedListMerger[T]) PartialMerge(_, _, _ []byte) ([]byte, bool) {
	return nil, false
}

func (m *OrderedListMerger[T]) decodeList(buf []byte) []T {
	if len(buf) == 0 {
		return nil
	}
	size := m.codec.Size()
	n := len(buf) / size
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = m.codec.Decode(buf[i*size : (i+1)*size])
	}
	return out
}

func (m *OrderedListMerger[T]) encodeList(entries []T) []byte {
	size := m.codec.Size()
	out := make([]byte, 0, len(entries)*size)
	for _, e := range entries {
		out = append(out, m.codec.Encode(e)...)
	}
	return out
}

// InsertOperand builds a merge operand requesting rec be inserted.
func InsertOperand[T any](codec RecordCodec[T], rec T) []byte {
	return append([]byte{InsertTag}, codec.Encode(rec)...)
}

// DeleteOperand builds a merge operand requesting rec be removed.
func DeleteOperand[T any](codec RecordCodec[T], rec T) []byte {
	return append([]byte{DeleteTag}, codec.Encode(rec)...)
}

// DecodeList decodes a raw column value into a slice of records — used by
// readers that just want the materialized list without going through the
// merge operator (the value at rest is already fully merged by RocksDB
// compaction/point-read semantics).
func DecodeList[T any](codec RecordCodec[T], buf []byte) []T {
	if len(buf) == 0 {
		return nil
	}
	size := codec.Size()
	n := len(buf) / size
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = codec.Decode(buf[i*size : (i+1)*size])
	}
	return out
}
