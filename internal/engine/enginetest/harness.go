// Package enginetest is the scenario-test harness of spec §8/§10 ("Test
// tooling"), modeled on chronik-indexer's tests/test_mempool.rs,
// tests/test_slp.rs, tests/test_non_slp.rs, and tests/test_transient_data.rs:
// a real temp-dir store.DB/transientdb.DB pair plus small builders for the
// RawBlock/RawTx fixtures spec §8's literal scenarios describe. It never
// mocks the store — every scenario test runs against a real, if ephemeral,
// grocksdb instance, exactly as the original Rust test suite does.
package enginetest

import (
	"testing"

	"github.com/raipay/chronik-sub000/internal/engine"
	"github.com/raipay/chronik-sub000/internal/indexdb"
	"github.com/raipay/chronik-sub000/internal/primitives"
	"github.com/raipay/chronik-sub000/internal/slp"
	"github.com/raipay/chronik-sub000/internal/store"
	"github.com/raipay/chronik-sub000/internal/transientdb"
)

// Harness bundles one scenario test's engine and its backing stores, closed
// automatically via tb.Cleanup. DB/Transient are exported so a scenario can
// reach past the engine's intentionally narrow read-lane query surface
// (Tip/Utxos/MempoolTx/MempoolUtxoDelta) to assert directly against a
// column's on-disk state, e.g. spec §8 Testable Property 7's byte-for-byte
// reorg-idempotence check.
type Harness struct {
	Engine    *engine.Engine
	Parser    *FakeParser
	DB        *store.DB
	Transient *transientdb.DB
}

// Open constructs a fresh Engine over a temp-dir store.DB/transientdb.DB
// pair with the default script-txs page size, registering cleanup with tb
// so callers never leak a RocksDB handle across subtests.
func Open(tb testing.TB) *Harness {
	return OpenWithPageSize(tb, indexdb.DefaultScriptTxsPageSize)
}

// OpenWithPageSize is Open with an overridden script-txs page size, for
// scenarios that assert on paging directly (spec §8 scenario 6's
// page_size=7).
func OpenWithPageSize(tb testing.TB, pageSize uint32) *Harness {
	tb.Helper()

	dbDir := tb.TempDir()
	db, err := store.Open(dbDir+"/main", indexdb.Mergers())
	if err != nil {
		tb.Fatalf("opening store: %v", err)
	}
	tb.Cleanup(db.Close)

	transDir := tb.TempDir()
	transient, err := transientdb.Open(transDir + "/transient")
	if err != nil {
		tb.Fatalf("opening transientdb: %v", err)
	}
	tb.Cleanup(transient.Close)

	parser := &FakeParser{}

	eng, err := engine.New(engine.Deps{
		DB:             db,
		Transient:      transient,
		PageSize:       pageSize,
		ScriptTxsCache: 64,
		CheckSlpStrict: false,
		Parser:         parser,
	})
	if err != nil {
		tb.Fatalf("engine.New: %v", err)
	}

	return &Harness{Engine: eng, Parser: parser, DB: db, Transient: transient}
}

// FakeParser implements engine.TokenParser by looking a tx's RawBytes up in
// a table the test populates via RegisterSlp, standing in for spec §1's
// out-of-scope bytecode parser (its contract is "pure function from tx
// bytes to ParsedTx"; tests stub that function rather than parse real
// script opcodes).
type FakeParser struct {
	parsed map[string]slp.ParsedTx
}

// RegisterSlp associates rawBytes (used only as a map key, never actually
// parsed) with the ParsedTx the fake should return for it.
func (p *FakeParser) RegisterSlp(rawBytes []byte, parsed slp.ParsedTx) {
	if p.parsed == nil {
		p.parsed = map[string]slp.ParsedTx{}
	}
	p.parsed[string(rawBytes)] = parsed
}

func (p *FakeParser) Parse(rawTx []byte) slp.ParsedTx {
	if parsed, ok := p.parsed[string(rawTx)]; ok {
		return parsed
	}
	return slp.ParsedTx{Ok: false, Err: slp.ErrNoOpcodes}
}

// Txid builds a deterministic, collision-free Txid from a dense counter, so
// scenario tests covering many blocks/txs never accidentally alias two
// distinct transactions onto the same id.
func Txid(n uint32) primitives.Txid {
	var t primitives.Txid
	t[0], t[1], t[2], t[3] = byte(n), byte(n>>8), byte(n>>16), byte(n>>24)
	return t
}

func BlockHash(n uint32) primitives.BlockHash {
	var h primitives.BlockHash
	h[0], h[1], h[2], h[3] = byte(n), byte(n>>8), byte(n>>16), byte(n>>24)
	return h
}

func TokenId(n uint32) primitives.TokenId {
	var id primitives.TokenId
	id[0], id[1], id[2], id[3] = byte(n), byte(n>>8), byte(n>>16), byte(n>>24)
	return id
}

// P2PKH builds a distinct ScriptPayload for script index n, standing in for
// a hashed standard script the way spec §8 scenario 1 refers to "script S".
func P2PKH(n byte) primitives.ScriptPayload {
	return primitives.ScriptPayload{Prefix: primitives.PrefixP2PKH, Payload: []byte{n}}
}

func P2SH(n byte) primitives.ScriptPayload {
	return primitives.ScriptPayload{Prefix: primitives.PrefixP2SH, Payload: []byte{n}}
}

// OpReturn is the canonical "no payload" sentinel a burn output carries
// (spec: "Null-data (OP_RETURN) scripts yield no payloads").
func OpReturn() primitives.ScriptPayload {
	return primitives.ScriptPayload{Prefix: primitives.PrefixOther, Payload: nil}
}

// CoinbaseInput is the pseudo-input every coinbase tx carries.
func CoinbaseInput() engine.RawInput {
	return engine.RawInput{PrevOut: primitives.OutPoint{OutIdx: primitives.CoinbaseOutIdx}}
}

// Output is a small builder for an engine.RawOutput.
func Output(sats int64, payload primitives.ScriptPayload) engine.RawOutput {
	return engine.RawOutput{Sats: sats, Payload: payload}
}

// Input references a prior RawTx's output by value, carrying the
// SpentOutput the node is contractually responsible for supplying on every
// RawInput regardless of connect/disconnect direction.
func Input(prevTxid primitives.Txid, outIdx uint32, spent engine.RawOutput) engine.RawInput {
	return engine.RawInput{
		PrevOut:     primitives.OutPoint{Txid: prevTxid, OutIdx: outIdx},
		SpentOutput: spent,
	}
}

// Tx is a small builder for an engine.RawTx; rawBytes is only ever used as
// the FakeParser's lookup key, never actually decoded.
func Tx(txid primitives.Txid, isCoinbase bool, timeFirstSeen int64, rawBytes []byte, inputs []engine.RawInput, outputs []engine.RawOutput) engine.RawTx {
	return engine.RawTx{
		Txid:          txid,
		IsCoinbase:    isCoinbase,
		TimeFirstSeen: timeFirstSeen,
		Inputs:        inputs,
		Outputs:       outputs,
		RawBytes:      rawBytes,
	}
}

// Block is a small builder for an engine.RawBlock at height holding exactly
// the txs the caller supplies; it adds no coinbase tx of its own.
func Block(height primitives.BlockHeight, hash, prevHash primitives.BlockHash, txs ...engine.RawTx) engine.RawBlock {
	return engine.RawBlock{
		Hash:     hash,
		PrevHash: prevHash,
		Height:   height,
		Txs:      txs,
	}
}
