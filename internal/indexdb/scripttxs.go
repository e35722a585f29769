package indexdb

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/raipay/chronik-sub000/internal/codec"
	"github.com/raipay/chronik-sub000/internal/primitives"
	"github.com/raipay/chronik-sub000/internal/store"
)

// DefaultScriptTxsPageSize is the page_size used when the config doesn't
// override it (spec §4.5).
const DefaultScriptTxsPageSize = 1000

// ScriptTxsWriterCache amortizes the "discover N(payload) by reverse scan"
// step across the contiguous blocks a single writer processes, exactly as
// chronik-rocksdb's ScriptTxsWriterCache (an lru::LruCache<Vec<u8>, u32>)
// does; ported to hashicorp/golang-lru since that's the LRU already present
// in the example pack (AKJUS-bsc-erigon/go.mod).
type ScriptTxsWriterCache struct {
	cache *lru.Cache[string, uint32]
}

func NewScriptTxsWriterCache(capacity int) *ScriptTxsWriterCache {
	c, _ := lru.New[string, uint32](capacity)
	return &ScriptTxsWriterCache{cache: c}
}

// ScriptTxsStore is the paged per-script history index of spec §4.5.
type ScriptTxsStore struct {
	db       *store.DB
	pageSize uint32
}

func NewScriptTxsStore(db *store.DB, pageSize uint32) *ScriptTxsStore {
	if pageSize == 0 {
		pageSize = DefaultScriptTxsPageSize
	}
	return &ScriptTxsStore{db: db, pageSize: pageSize}
}

func pageKey(payload primitives.ScriptPayload, pageNum uint32) []byte {
	pk := payload.Key()
	key := make([]byte, len(pk)+4)
	copy(key, pk)
	copy(key[len(pk):], codec.BEUint32(pageNum))
	return key
}

// numTxs discovers N(payload): reverse-scan keys with the payload's prefix
// to the last non-empty page, returning page_num*page_size + len(page). A
// pageSizeOverride of 0 uses s.pageSize; callers pass DefaultScriptTxsPageSize
// explicitly for delete_block, matching the hard-coded 1000 the original
// source uses regardless of configured page_size (see DESIGN.md open
// question — we keep that latent inconsistency rather than silently "fixing"
// undocumented behavior).
func (s *ScriptTxsStore) numTxs(cache *ScriptTxsWriterCache, payload primitives.ScriptPayload, pageSizeOverride uint32) (uint32, error) {
	pageSize := s.pageSize
	if pageSizeOverride != 0 {
		pageSize = pageSizeOverride
	}
	cacheKey := payload.KeyString()
	if cache != nil {
		if n, ok := cache.cache.Get(cacheKey); ok {
			return n, nil
		}
	}

	prefix := payload.Key()
	it := s.db.NewIterator(store.CFScriptTxs)
	defer it.Close()

	// Seek to just past this payload's key space, then step back past any
	// pages emptied by deletes to the last non-empty matching key.
	upperBound := append(append([]byte{}, prefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	var n uint32
	for it.SeekForPrev(upperBound); it.Valid(); it.Prev() {
		key := it.Key()
		k := keyBytes(key)
		key.Free()
		if len(k) < len(prefix) || string(k[:len(prefix)]) != string(prefix) {
			break
		}
		val := it.Value()
		pageLen := uint32(len(valBytes(val)) / TxNumCodec.Size())
		val.Free()
		if pageLen == 0 {
			continue
		}
		pageNum := codec.DecodeBEUint32(k[len(prefix):])
		n = pageNum*pageSize + pageLen
		break
	}
	if cache != nil {
		cache.cache.Add(cacheKey, n)
	}
	return n, nil
}

// PayloadTxNums maps a deduplicated, sorted tx-num set per script payload
// touched by a block: every output's canonical payloads, plus every
// non-coinbase input's spent-output payloads (spec §4.5).
type PayloadTxNums map[string]*PayloadTxNumsEntry

type PayloadTxNumsEntry struct {
	Payload primitives.ScriptPayload
	TxNums  []primitives.TxNum // ascending; duplicates collapsed by Add
}

// Add records that payload was touched by txNum, creating the payload's
// entry on first touch, keeping TxNums ascending, and skipping a txNum
// already recorded for it (a tx can touch the same payload through more
// than one output/input).
func (m PayloadTxNums) Add(payload primitives.ScriptPayload, txNum primitives.TxNum) {
	key := payload.KeyString()
	e, ok := m[key]
	if !ok {
		e = &PayloadTxNumsEntry{Payload: payload}
		m[key] = e
	}
	pos := len(e.TxNums)
	for i, n := range e.TxNums {
		if n == txNum {
			return
		}
		if n > txNum && pos == len(e.TxNums) {
			pos = i
		}
	}
	e.TxNums = append(e.TxNums, 0)
	copy(e.TxNums[pos+1:], e.TxNums[pos:])
	e.TxNums[pos] = txNum
}

// InsertBlockTxs emits INSERT merge ops for each (payload, tx_num) pair not
// yet recorded, appending to whichever page is currently open.
func (s *ScriptTxsStore) InsertBlockTxs(batch *store.Batch, cache *ScriptTxsWriterCache, touched PayloadTxNums) error {
	for _, entry := range touched {
		start, err := s.numTxs(cache, entry.Payload, 0)
		if err != nil {
			return err
		}
		for i, txNum := range entry.TxNums {
			n := start + uint32(i)
			pageNum := n / s.pageSize
			val := store.InsertOperand(TxNumCodec, txNum)
			batch.Merge(store.CFScriptTxs, pageKey(entry.Payload, pageNum), val)
		}
		if cache != nil {
			cache.cache.Add(entry.Payload.KeyString(), start+uint32(len(entry.TxNums)))
		}
	}
	return nil
}

// DeleteBlockTxs mirrors InsertBlockTxs with DELETE ops, decrementing N.
// hardCodedPageSize controls whether the page_num computation uses the
// writer's configured page_size or the historical hard-coded 1000 (spec §9
// open question); pass true to replicate the original's literal behavior.
func (s *ScriptTxsStore) DeleteBlockTxs(batch *store.Batch, cache *ScriptTxsWriterCache, touched PayloadTxNums, hardCodedPageSize bool) error {
	override := uint32(0)
	pageSize := s.pageSize
	if hardCodedPageSize {
		override = DefaultScriptTxsPageSize
		pageSize = DefaultScriptTxsPageSize
	}
	for _, entry := range touched {
		total, err := s.numTxs(cache, entry.Payload, override)
		if err != nil {
			return err
		}
		start := total - uint32(len(entry.TxNums))
		for i, txNum := range entry.TxNums {
			n := start + uint32(i)
			pageNum := n / pageSize
			val := store.DeleteOperand(TxNumCodec, txNum)
			batch.Merge(store.CFScriptTxs, pageKey(entry.Payload, pageNum), val)
		}
		if cache != nil {
			cache.cache.Add(entry.Payload.KeyString(), start)
		}
	}
	return nil
}

// PageTxs is a single point read of one page's tx-num list.
func (s *ScriptTxsStore) PageTxs(payload primitives.ScriptPayload, pageNum uint32) ([]primitives.TxNum, error) {
	raw, err := s.db.Get(store.CFScriptTxs, pageKey(payload, pageNum))
	if err != nil {
		return nil, err
	}
	return store.DecodeList(TxNumCodec, raw), nil
}

// NumPages is a short forward scan counting non-empty pages with a matching
// prefix.
func (s *ScriptTxsStore) NumPages(payload primitives.ScriptPayload) (uint32, error) {
	prefix := payload.Key()
	it := s.db.NewIterator(store.CFScriptTxs)
	defer it.Close()
	var count uint32
	for it.Seek(prefix); it.Valid(); it.Next() {
		key := it.Key()
		k := keyBytes(key)
		key.Free()
		if len(k) < len(prefix) || string(k[:len(prefix)]) != string(prefix) {
			break
		}
		val := it.Value()
		nonEmpty := val.Size() > 0
		val.Free()
		if nonEmpty {
			count++
		}
	}
	return count, nil
}

// RevHistoryPage returns up to pageSize TxNums, most-recent-first, starting
// pageNum pages back from the end of the full history (used by the
// out-of-scope query surface; exercised directly in tests per spec §8
// scenario 6).
func (s *ScriptTxsStore) RevHistoryPage(payload primitives.ScriptPayload, pageNum, pageSize int) ([]primitives.TxNum, error) {
	numPages, err := s.NumPages(payload)
	if err != nil {
		return nil, err
	}
	var all []primitives.TxNum
	for p := uint32(0); p < numPages; p++ {
		txs, err := s.PageTxs(payload, p)
		if err != nil {
			return nil, err
		}
		all = append(all, txs...)
	}
	// reverse
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	start := pageNum * pageSize
	if start >= len(all) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}
