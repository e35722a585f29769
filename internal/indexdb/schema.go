package indexdb

import (
	"fmt"

	"github.com/raipay/chronik-sub000/internal/codec"
	"github.com/raipay/chronik-sub000/internal/indexerr"
	"github.com/raipay/chronik-sub000/internal/store"
)

// schemaVersion is the on-disk layout version written to store.CFSchema's
// "version" key. Bump whenever a column family's key or value layout
// changes in a way that isn't forward/backward compatible.
const schemaVersion uint32 = 1

const schemaVersionKey = "version"

// SchemaStore owns the single schema-version self-check of SPEC_FULL.md's
// supplemented feature list, modeled on chronik-rocksdb's db_schema.rs and
// on the version-stamp pattern daglabs-btcd's own database layer uses to
// refuse opening a store from an incompatible future/past version.
type SchemaStore struct{ db *store.DB }

func NewSchemaStore(db *store.DB) *SchemaStore { return &SchemaStore{db: db} }

// CheckOrInitialize reads the stored schema version. On a freshly created
// database (no key present) it stamps schemaVersion. Otherwise it compares
// against schemaVersion and fails closed rather than risk silently
// misinterpreting an incompatible layout.
func (s *SchemaStore) CheckOrInitialize(batch *store.Batch) error {
	raw, err := s.db.Get(store.CFSchema, []byte(schemaVersionKey))
	if err != nil {
		return err
	}
	if raw == nil {
		batch.Put(store.CFSchema, []byte(schemaVersionKey), codec.LEUint32(schemaVersion))
		return nil
	}
	stored := codec.DecodeLEUint32(raw)
	switch {
	case stored < schemaVersion:
		return indexerr.New(indexerr.Critical, indexerr.CodeDbTooOld,
			fmt.Sprintf("database schema version %d predates supported version %d", stored, schemaVersion))
	case stored > schemaVersion:
		return indexerr.New(indexerr.Critical, indexerr.CodeDbTooNew,
			fmt.Sprintf("database schema version %d is newer than supported version %d", stored, schemaVersion))
	}
	return nil
}
