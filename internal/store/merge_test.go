package store

import (
	"encoding/binary"
	"reflect"
	"testing"
)

// uint64Codec is a minimal RecordCodec[uint64] for exercising
// OrderedListMerger without pulling in internal/indexdb's real codecs.
type uint64Codec struct{}

func (uint64Codec) Size() int { return 8 }
func (uint64Codec) Encode(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
func (uint64Codec) Decode(b []byte) uint64 { return binary.BigEndian.Uint64(b) }
func (uint64Codec) Compare(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func TestOrderedListMergerInsertSortsAndDedupes(t *testing.T) {
	m := NewOrderedListMerger[uint64]("test", uint64Codec{})

	operands := [][]byte{
		InsertOperand[uint64](uint64Codec{}, 30),
		InsertOperand[uint64](uint64Codec{}, 10),
		InsertOperand[uint64](uint64Codec{}, 20),
		InsertOperand[uint64](uint64Codec{}, 10), // duplicate insert, no-op
	}
	merged, ok := m.FullMerge(nil, nil, operands)
	if !ok {
		t.Fatalf("FullMerge reported failure")
	}

	got := DecodeList[uint64](uint64Codec{}, merged)
	want := []uint64{10, 20, 30}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestOrderedListMergerDelete(t *testing.T) {
	m := NewOrderedListMerger[uint64]("test", uint64Codec{})

	existing := uint64Codec{}.Encode(10)
	existing = append(existing, uint64Codec{}.Encode(20)...)
	existing = append(existing, uint64Codec{}.Encode(30)...)

	operands := [][]byte{
		DeleteOperand[uint64](uint64Codec{}, 20),
		DeleteOperand[uint64](uint64Codec{}, 999), // missing delete, no-op
	}
	merged, ok := m.FullMerge(nil, existing, operands)
	if !ok {
		t.Fatalf("FullMerge reported failure")
	}

	got := DecodeList[uint64](uint64Codec{}, merged)
	want := []uint64{10, 30}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestOrderedListMergerPartialMergeNeverCombines(t *testing.T) {
	m := NewOrderedListMerger[uint64]("test", uint64Codec{})
	if _, ok := m.PartialMerge(nil, nil, nil); ok {
		t.Fatalf("PartialMerge must always defer to FullMerge")
	}
}

func TestDecodeListEmpty(t *testing.T) {
	if got := DecodeList[uint64](uint64Codec{}, nil); got != nil {
		t.Fatalf("DecodeList(nil) = %v, want nil", got)
	}
}
