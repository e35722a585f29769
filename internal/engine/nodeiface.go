// Package engine is the indexer state machine of spec §4.10: the Catchup
// and Live states, the block-connect/disconnect pipeline, and the
// background transient-data catchup task. Grounded on
// chronik-indexer/src/indexer.rs's SlpIndexer and on daglabs-btcd's own
// blockdag processing loop for the Go idiom (a single exclusive writer
// goroutine driven by an event channel, readers taking a sync.RWMutex).
package engine

import (
	"context"

	"github.com/raipay/chronik-sub000/internal/primitives"
	"github.com/raipay/chronik-sub000/internal/slp"
)

// RawBlock is the random-access block payload the node supplies on demand
// (spec §1: "supplies raw block/undo byte ranges on demand").
type RawBlock struct {
	Hash      primitives.BlockHash
	PrevHash  primitives.BlockHash
	Height    primitives.BlockHeight
	Timestamp int64
	NBits     uint32
	FileNum   uint32
	DataPos   uint32
	Txs       []RawTx
}

// RawTx is one transaction's engine-relevant fields within a RawBlock or a
// mempool event; the byte-level parsing/SLP bytecode interpretation is the
// out-of-scope "token-protocol parser" (spec §1).
type RawTx struct {
	Txid          primitives.Txid
	IsCoinbase    bool
	DataPos       uint32
	TxSize        uint32
	UndoPos       uint32
	UndoSize      uint32
	TimeFirstSeen int64
	Inputs        []RawInput
	Outputs       []RawOutput

	// RawBytes is the tx's serialized form, handed verbatim to the
	// token-protocol parser (spec §1: the parser is an external
	// collaborator, "pure functions operating on transaction bytes"; this
	// engine never interprets bytecode itself).
	RawBytes []byte
}

// TokenParser is the named interface of spec §1's out-of-scope
// token-protocol parser: a stateless function from one transaction's bytes
// to a ParsedTx. The engine calls it once per tx, in parallel across a
// block, and never inspects script opcodes on its own.
type TokenParser interface {
	Parse(rawTx []byte) slp.ParsedTx
}

type RawInput struct {
	PrevOut primitives.OutPoint
	// SpentOutput is the value/payload the spent outpoint carried. The node
	// supplies it on every RawInput regardless of direction (spec §1:
	// "supplies raw block/undo byte ranges on demand") — at connect time
	// from its own live UTXO view, at disconnect time from undo data. The
	// utxos column never stores Sats/Payload itself (spec §4.6 keys it by
	// script, not by outpoint), so this is the only place either side of a
	// spend gets a value from.
	SpentOutput RawOutput
}

type RawOutput struct {
	Sats    int64
	Payload primitives.ScriptPayload
}

// MessageKind tags the node event stream's variants (spec §1/§4.10).
type MessageKind int

const (
	MsgBlockConnected MessageKind = iota
	MsgBlockDisconnected
	MsgTransactionAddedToMempool
	MsgTransactionRemovedFromMempool
)

// Message is one event off the node's block/mempool stream.
type Message struct {
	Kind  MessageKind
	Block *RawBlock // set for MsgBlockConnected/MsgBlockDisconnected
	Tx    *RawTx    // set for the mempool-add/remove variants
}

// ChainInfo is the subset of the node's chain-state query this engine
// needs to drive catchup_step (spec §4.10).
type ChainInfo struct {
	Height              primitives.BlockHeight
	BestBlockHash       primitives.BlockHash
	InitialBlockDownload bool
}

// Node is the contract the out-of-scope node-event-stream collaborator
// implements (spec §1). The engine never parses node wire formats itself.
type Node interface {
	ChainInfo(ctx context.Context) (ChainInfo, error)
	// FetchBlockRange returns up to limit consecutive blocks starting at
	// from, in height order.
	FetchBlockRange(ctx context.Context, from primitives.BlockHeight, limit int) ([]RawBlock, error)
	// MempoolSnapshot returns every tx currently in the node's mempool.
	MempoolSnapshot(ctx context.Context) ([]RawTx, error)
	// Subscribe begins delivering Messages on the returned channel until
	// ctx is cancelled.
	Subscribe(ctx context.Context) (<-chan Message, error)
	// RecvBlockConnected blocks for a single BlockConnected message,
	// used by the Catchup state while the node is still in its own
	// initial block download (spec §4.10).
	RecvBlockConnected(ctx context.Context) (RawBlock, error)
}
