// Package store is the key-value façade of spec §4.1-ish "leaf" layer: it
// wraps an embedded ordered LSM-style store (grocksdb, the Go binding for
// RocksDB — see DESIGN.md for why this replaces the teacher's own
// database/ffldb goleveldb wrapper) and exposes column families, point
// reads, write batches, and per-column merge operators, modeled on
// chronik-rocksdb/src/db.rs's Db::open/Db::cf/Db::get/Db::write_batch.
package store

import (
	"os"
	"path/filepath"

	"github.com/linxGnu/grocksdb"
	"github.com/pkg/errors"

	"github.com/raipay/chronik-sub000/internal/indexerr"
)

// Column family names (spec §6 table).
const (
	CFBlocks             = "blocks"
	CFBlocksIndexByHash   = "blocks_index_by_hash"
	CFBlockStats         = "block_stats"
	CFTxs                = "txs"
	CFBlockByFirstTx     = "block_by_first_tx"
	CFFirstTxByBlock     = "first_tx_by_block"
	CFTxIndexByTxid      = "tx_index_by_txid"
	CFScriptTxs          = "script_txs"
	CFUtxos              = "utxos"
	CFSpends             = "spends"
	CFSlpTokenIdByNum    = "slp_token_id_by_num"
	CFSlpTokenNumById    = "slp_token_num_by_id"
	CFSlpTokenMetadata   = "slp_token_metadata"
	CFSlpTxData          = "slp_tx_data"
	CFSlpTxInvalidMsg    = "slp_tx_invalid_message"
	CFSlpTokenStats      = "slp_token_stats"
	CFSchema             = "schema"
)

// allColumnFamilies lists every CF in open order. Index 0 is always the
// default CF grocksdb requires; it goes unused by this engine.
var allColumnFamilies = []string{
	"default",
	CFBlocks, CFBlocksIndexByHash, CFBlockStats,
	CFTxs, CFBlockByFirstTx, CFFirstTxByBlock, CFTxIndexByTxid,
	CFScriptTxs, CFUtxos, CFSpends,
	CFSlpTokenIdByNum, CFSlpTokenNumById, CFSlpTokenMetadata,
	CFSlpTxData, CFSlpTxInvalidMsg, CFSlpTokenStats,
	CFSchema,
}

// mergeColumnFamilies are the CFs that use the ordered-list merge operator
// (spec: "script_txs, utxos, spends, and the hash-bucket secondary
// indexes"), each an append/remove-only sorted list keyed by something
// other than the list element itself (a script payload, a spent tx_num, a
// hash bucket).
var mergeColumnFamilies = map[string]bool{
	CFScriptTxs:        true,
	CFUtxos:            true,
	CFSpends:           true,
	CFBlocksIndexByHash: true,
	CFTxIndexByTxid:     true,
}

// DB is the open handle to the indexer's persistent store.
type DB struct {
	rocks *grocksdb.DB
	cfs   map[string]*grocksdb.ColumnFamilyHandle
	ro    *grocksdb.ReadOptions
	wo    *grocksdb.WriteOptions
}

// Open opens (creating if missing) the RocksDB database at path. txNumMerger
// and out_idx-list mergers are installed per column per spec §4.1/§4.2; the
// caller supplies them so the generic record codecs (internal/indexdb) stay
// decoupled from the store package.
func Open(path string, mergers map[string]grocksdb.MergeOperator) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating db directory")
	}

	dbOpts := grocksdb.NewDefaultOptions()
	dbOpts.SetCreateIfMissing(true)
	dbOpts.SetCreateIfMissingColumnFamilies(true)

	cfOpts := make([]*grocksdb.Options, len(allColumnFamilies))
	for i, name := range allColumnFamilies {
		opts := grocksdb.NewDefaultOptions()
		if merger, ok := mergers[name]; ok {
			opts.SetMergeOperator(merger)
		}
		cfOpts[i] = opts
	}

	rocks, handles, err := grocksdb.OpenDbColumnFamilies(dbOpts, path, allColumnFamilies, cfOpts)
	if err != nil {
		return nil, indexerr.Wrap(indexerr.Critical, indexerr.CodeStoreError, "opening rocksdb", err)
	}

	cfs := make(map[string]*grocksdb.ColumnFamilyHandle, len(allColumnFamilies))
	for i, name := range allColumnFamilies {
		cfs[name] = handles[i]
	}

	return &DB{
		rocks: rocks,
		cfs:   cfs,
		ro:    grocksdb.NewDefaultReadOptions(),
		wo:    grocksdb.NewDefaultWriteOptions(),
	}, nil
}

func (db *DB) Close() {
	for _, cf := range db.cfs {
		cf.Destroy()
	}
	db.ro.Destroy()
	db.wo.Destroy()
	db.rocks.Close()
}

// CF returns the handle for a column family name. Panics on an unknown name
// since CF names are a closed, compile-time-known set (spec §6 table) —
// an unknown name here is a programmer error, not a runtime condition.
func (db *DB) CF(name string) *grocksdb.ColumnFamilyHandle {
	cf, ok := db.cfs[name]
	if !ok {
		panic("store: unknown column family " + name)
	}
	return cf
}

// Get performs a point read, returning (nil, nil) for a missing key.
func (db *DB) Get(cfName string, key []byte) ([]byte, error) {
	slice, err := db.rocks.GetCF(db.ro, db.CF(cfName), key)
	if err != nil {
		return nil, indexerr.Wrap(indexerr.Critical, indexerr.CodeStoreError, "get", err)
	}
	defer slice.Free()
	if !slice.Exists() {
		return nil, nil
	}
	out := make([]byte, slice.Size())
	copy(out, slice.Data())
	return out, nil
}

// NewIterator opens a read-snapshot-free iterator over cfName. Callers that
// need a consistent view across multiple iterators/reads should take a
// Snapshot instead.
func (db *DB) NewIterator(cfName string) *grocksdb.Iterator {
	return db.rocks.NewIteratorCF(db.ro, db.CF(cfName))
}

// Snapshot pins a point-in-time view of the store. Readers that must not
// observe a write landing mid-scan (e.g. a paginated script-history read
// spanning several point reads) take a snapshot at the start of the request.
type Snapshot struct {
	db   *DB
	snap *grocksdb.Snapshot
	ro   *grocksdb.ReadOptions
}

func (db *DB) NewSnapshot() *Snapshot {
	snap := db.rocks.NewSnapshot()
	ro := grocksdb.NewDefaultReadOptions()
	ro.SetSnapshot(snap)
	return &Snapshot{db: db, snap: snap, ro: ro}
}

func (s *Snapshot) Get(cfName string, key []byte) ([]byte, error) {
	slice, err := s.db.rocks.GetCF(s.ro, s.db.CF(cfName), key)
	if err != nil {
		return nil, indexerr.Wrap(indexerr.Critical, indexerr.CodeStoreError, "get", err)
	}
	defer slice.Free()
	if !slice.Exists() {
		return nil, nil
	}
	out := make([]byte, slice.Size())
	copy(out, slice.Data())
	return out, nil
}

func (s *Snapshot) NewIterator(cfName string) *grocksdb.Iterator {
	return s.db.rocks.NewIteratorCF(s.ro, s.db.CF(cfName))
}

func (s *Snapshot) Release() {
	s.ro.Destroy()
	s.db.rocks.ReleaseSnapshot(s.snap)
}

// Batch wraps a grocksdb.WriteBatch with CF-qualified helpers. One Batch
// spans every column family touched by a single block-connect or
// block-disconnect, so it commits atomically (spec §7: "a single
// block-connect is all-or-nothing").
type Batch struct {
	db *DB
	wb *grocksdb.WriteBatch
}

func (db *DB) NewBatch() *Batch {
	return &Batch{db: db, wb: grocksdb.NewWriteBatch()}
}

func (b *Batch) Put(cfName string, key, value []byte) {
	b.wb.PutCF(b.db.CF(cfName), key, value)
}

func (b *Batch) Merge(cfName string, key, value []byte) {
	b.wb.MergeCF(b.db.CF(cfName), key, value)
}

func (b *Batch) Delete(cfName string, key []byte) {
	b.wb.DeleteCF(b.db.CF(cfName), key)
}

func (b *Batch) Commit() error {
	defer b.wb.Destroy()
	if err := b.db.rocks.Write(b.db.wo, b.wb); err != nil {
		return indexerr.Wrap(indexerr.Critical, indexerr.CodeStoreError, "committing write batch", err)
	}
	return nil
}

// MergeColumnFamilyNames exposes which CFs are merge-operator lists, for
// packages (indexdb) that build the merger set passed to Open.
func MergeColumnFamilyNames() map[string]bool { return mergeColumnFamilies }
