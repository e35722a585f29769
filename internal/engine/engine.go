package engine

import (
	"sync"

	"github.com/raipay/chronik-sub000/internal/indexdb"
	"github.com/raipay/chronik-sub000/internal/mempool"
	"github.com/raipay/chronik-sub000/internal/primitives"
	"github.com/raipay/chronik-sub000/internal/store"
	"github.com/raipay/chronik-sub000/internal/subscribe"
	"github.com/raipay/chronik-sub000/internal/transientdb"
)

// State is the indexer's top-level mode (spec §4.10).
type State int

const (
	StateCatchup State = iota
	StateLive
)

// Engine is the single exclusive writer of spec §5: it owns every primary
// index store, the mempool overlay, and the subscription hub, serialized
// behind mu so HTTP-style readers can take the read lane concurrently with
// the writer's event loop (modeled on daglabs-btcd's own dagLock pattern in
// blockdag.BlockDAG).
type Engine struct {
	mu sync.RWMutex

	db     *store.DB
	blocks *indexdb.BlockStore
	stats  *indexdb.BlockStatsStore
	txs    *indexdb.TxStore
	script *indexdb.ScriptTxsStore
	utxos  *indexdb.UtxoStore
	spends *indexdb.SpendStore
	tokens *indexdb.TokenStore
	outres *indexdb.OutpointResolver

	transient *transientdb.DB

	pool *mempool.Overlay
	subs *subscribe.Hub

	scriptTxsCache *indexdb.ScriptTxsWriterCache

	parser TokenParser

	state State

	// CheckSlpStrict holds the "check_slp" setting from the config. The
	// engine has no broadcast path, and nothing in it reads this field.
	CheckSlpStrict bool
}

// Deps bundles the already-opened stores an Engine is built from; callers
// (cmd/chronikd) are responsible for calling store.Open and
// transientdb.Open first so failures there are reported before the engine
// exists at all.
type Deps struct {
	DB             *store.DB
	Transient      *transientdb.DB
	PageSize       uint32
	ScriptTxsCache int
	CheckSlpStrict bool
	Parser         TokenParser
}

// New constructs the engine and runs the schema self-check (SPEC_FULL.md
// supplemented feature 3) against d.DB before returning, so an incompatible
// on-disk layout fails at startup rather than on the first write.
func New(d Deps) (*Engine, error) {
	e := &Engine{
		db:             d.DB,
		blocks:         indexdb.NewBlockStore(d.DB),
		stats:          indexdb.NewBlockStatsStore(d.DB),
		txs:            indexdb.NewTxStore(d.DB),
		script:         indexdb.NewScriptTxsStore(d.DB, d.PageSize),
		utxos:          indexdb.NewUtxoStore(d.DB),
		spends:         indexdb.NewSpendStore(d.DB),
		tokens:         indexdb.NewTokenStore(d.DB),
		transient:      d.Transient,
		pool:           mempool.New(),
		subs:           subscribe.NewHub(),
		scriptTxsCache: indexdb.NewScriptTxsWriterCache(d.ScriptTxsCache),
		parser:         d.Parser,
		state:          StateCatchup,
		CheckSlpStrict: d.CheckSlpStrict,
	}
	e.outres = indexdb.NewOutpointResolver(e.txs)

	schema := indexdb.NewSchemaStore(d.DB)
	batch := d.DB.NewBatch()
	if err := schema.CheckOrInitialize(batch); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) State() State { return e.state }

// Subscriptions exposes the fan-out hub to the (out-of-scope) query
// surface so it can register receivers.
func (e *Engine) Subscriptions() *subscribe.Hub { return e.subs }

// Tip is a read-lane query: the current confirmed chain tip.
func (e *Engine) Tip() (*indexdb.Block, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.blocks.Tip()
}

// Utxos is a read-lane query: every outpoint currently unspent under
// payload (spec §4.6/scenario 1: "utxos(P2SH, hash(S)).len() == 10").
func (e *Engine) Utxos(payload primitives.ScriptPayload) ([]indexdb.Outpoint, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.utxos.ByPayload(payload)
}

// MempoolTx is a read-lane query: the mempool-mirrored view of txid, or nil
// if it isn't (or is no longer) mempool-resident.
func (e *Engine) MempoolTx(txid primitives.Txid) *mempool.Tx {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pool.Tx(txid)
}

// MempoolUtxoDelta is a read-lane query: the mempool overlay's pending
// insert/delete set for payload relative to the confirmed utxos column
// (spec §4.9) — added to the confirmed UtxoStore.ByPayload count, this is
// what a combined confirmed+mempool utxo view (spec §8 scenario 2) would
// report.
func (e *Engine) MempoolUtxoDelta(payload primitives.ScriptPayload) *mempool.UtxoDelta {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pool.Delta(payload)
}
