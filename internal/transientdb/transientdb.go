// Package transientdb is the separate, single-column-family store of spec
// §4.11: first-seen-in-mempool timestamps per tx, persisted out-of-band so
// re-indexing from block bytes alone does not lose them. It is physically
// independent from the main index (its own grocksdb.DB at
// transient_data_path) because it has its own tip and its own writer
// discipline — the live state machine writes to it only when within 12
// blocks of the node tip, the background catchup task otherwise (spec
// §4.11's "two writers coexist ... mutually exclusive by construction").
package transientdb

import (
	"os"
	"path/filepath"

	"github.com/linxGnu/grocksdb"
	"github.com/pkg/errors"

	"github.com/raipay/chronik-sub000/internal/codec"
	"github.com/raipay/chronik-sub000/internal/indexerr"
	"github.com/raipay/chronik-sub000/internal/primitives"
)

const cfRecords = "transient_records"
const tipKey = "tip"

// TxTiming is one entry of a block's transient record: a tx's hashed txid
// (spec names seahash64; this engine's bucket hash substitutes xxhash64,
// see internal/hashindex/hashfn.go) paired with the unix time it was first
// seen in the mempool.
type TxTiming struct {
	TxidHash64    uint64
	TimeFirstSeen int64
}

// DB is the open handle to the transient store.
type DB struct {
	rocks *grocksdb.DB
	cf    *grocksdb.ColumnFamilyHandle
	ro    *grocksdb.ReadOptions
	wo    *grocksdb.WriteOptions
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating transient db directory")
	}
	dbOpts := grocksdb.NewDefaultOptions()
	dbOpts.SetCreateIfMissing(true)
	dbOpts.SetCreateIfMissingColumnFamilies(true)
	cfNames := []string{"default", cfRecords}
	cfOpts := []*grocksdb.Options{grocksdb.NewDefaultOptions(), grocksdb.NewDefaultOptions()}
	rocks, handles, err := grocksdb.OpenDbColumnFamilies(dbOpts, path, cfNames, cfOpts)
	if err != nil {
		return nil, indexerr.Wrap(indexerr.Critical, indexerr.CodeStoreError, "opening transient rocksdb", err)
	}
	return &DB{
		rocks: rocks,
		cf:    handles[1],
		ro:    grocksdb.NewDefaultReadOptions(),
		wo:    grocksdb.NewDefaultWriteOptions(),
	}, nil
}

func (db *DB) Close() {
	db.cf.Destroy()
	db.ro.Destroy()
	db.wo.Destroy()
	db.rocks.Close()
}

// Tip returns the highest block height for which a transient record has
// been committed, or primitives.NoTip if the store is empty.
func (db *DB) Tip() (primitives.BlockHeight, error) {
	raw, err := db.rocks.GetCF(db.ro, db.cf, []byte(tipKey))
	if err != nil {
		return primitives.NoTip, indexerr.Wrap(indexerr.Critical, indexerr.CodeStoreError, "reading transient tip", err)
	}
	defer raw.Free()
	if !raw.Exists() {
		return primitives.NoTip, nil
	}
	return codec.DecodeBEHeight(raw.Data()), nil
}

// PutBlockRecord commits height's transient record (one entry per tx with
// time_first_seen > 0) and advances the stored tip to height.
func (db *DB) PutBlockRecord(height primitives.BlockHeight, timings []TxTiming) error {
	buf := make([]byte, 0, len(timings)*16)
	for _, t := range timings {
		if t.TimeFirstSeen <= 0 {
			continue
		}
		buf = append(buf, codec.LEUint64(t.TxidHash64)...)
		buf = append(buf, codec.LEInt64(t.TimeFirstSeen)...)
	}
	wb := grocksdb.NewWriteBatch()
	defer wb.Destroy()
	wb.PutCF(db.cf, codec.BEHeight(height), buf)
	wb.PutCF(db.cf, []byte(tipKey), codec.BEHeight(height))
	if err := db.rocks.Write(db.wo, wb); err != nil {
		return indexerr.Wrap(indexerr.Critical, indexerr.CodeStoreError, "committing transient record", err)
	}
	return nil
}

// BlockRecord reads back the timings committed for height.
func (db *DB) BlockRecord(height primitives.BlockHeight) ([]TxTiming, error) {
	raw, err := db.rocks.GetCF(db.ro, db.cf, codec.BEHeight(height))
	if err != nil {
		return nil, indexerr.Wrap(indexerr.Critical, indexerr.CodeStoreError, "reading transient record", err)
	}
	defer raw.Free()
	if !raw.Exists() {
		return nil, nil
	}
	data := raw.Data()
	n := len(data) / 16
	out := make([]TxTiming, n)
	for i := 0; i < n; i++ {
		rec := data[i*16 : (i+1)*16]
		out[i] = TxTiming{
			TxidHash64:    codec.DecodeLEUint64(rec[0:8]),
			TimeFirstSeen: codec.DecodeLEInt64(rec[8:16]),
		}
	}
	return out, nil
}

// DeleteBlockRecord removes height's record, used when disconnect unwinds a
// transient-tip height (kept symmetric with the main index's disconnect
// path even though spec §4.11 doesn't dwell on this; a reorg past the
// transient tip must not leave stale future-height records behind).
func (db *DB) DeleteBlockRecord(height primitives.BlockHeight, newTip primitives.BlockHeight) error {
	wb := grocksdb.NewWriteBatch()
	defer wb.Destroy()
	wb.DeleteCF(db.cf, codec.BEHeight(height))
	wb.PutCF(db.cf, []byte(tipKey), codec.BEHeight(newTip))
	if err := db.rocks.Write(db.wo, wb); err != nil {
		return indexerr.Wrap(indexerr.Critical, indexerr.CodeStoreError, "deleting transient record", err)
	}
	return nil
}
