package indexdb

import (
	"testing"

	"github.com/raipay/chronik-sub000/internal/store"
)

// newTestDB opens a real temp-dir grocksdb instance with the production
// merger set, closed automatically via tb.Cleanup — this package's stores
// are never tested against a mock (spec §10 "Test tooling").
func newTestDB(tb testing.TB) *store.DB {
	tb.Helper()
	db, err := store.Open(tb.TempDir()+"/db", Mergers())
	if err != nil {
		tb.Fatalf("opening store: %v", err)
	}
	tb.Cleanup(db.Close)
	return db
}

func commit(tb testing.TB, batch *store.Batch) {
	tb.Helper()
	if err := batch.Commit(); err != nil {
		tb.Fatalf("committing batch: %v", err)
	}
}
