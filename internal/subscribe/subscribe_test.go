package subscribe

import (
	"testing"

	"github.com/raipay/chronik-sub000/internal/primitives"
)

func scriptPayload(b byte) primitives.ScriptPayload {
	return primitives.ScriptPayload{Prefix: primitives.PrefixP2PKH, Payload: []byte{b}}
}

func TestHubScriptPublishSubscribe(t *testing.T) {
	h := NewHub()
	p := scriptPayload(1)
	ch := h.SubscribeScript(p)

	msg := ScriptMsg{Kind: p, Type: ScriptAddedToMempool, Txid: primitives.Txid{0x1}}
	h.PublishScript(p, msg)

	select {
	case got := <-ch:
		if got.Type != ScriptAddedToMempool || got.Txid != msg.Txid {
			t.Fatalf("got %+v, want %+v", got, msg)
		}
	default:
		t.Fatalf("expected message to be delivered")
	}
}

func TestHubUnsubscribeScriptGarbageCollectsFamily(t *testing.T) {
	h := NewHub()
	p := scriptPayload(2)
	ch := h.SubscribeScript(p)

	h.UnsubscribeScript(p, ch)

	h.mu.Lock()
	_, ok := h.scriptChans[p.KeyString()]
	h.mu.Unlock()
	if ok {
		t.Fatalf("expected channel family to be removed once empty")
	}
}

func TestHubPublishScriptDetachesSlowReceiver(t *testing.T) {
	h := NewHub()
	p := scriptPayload(3)
	ch := h.SubscribeScript(p)

	// Fill the channel's buffer without ever draining it.
	for i := 0; i < perScriptCapacity+1; i++ {
		h.PublishScript(p, ScriptMsg{Kind: p, Type: ScriptConfirmed})
	}

	h.mu.Lock()
	_, stillSubscribed := h.scriptChans[p.KeyString()]
	h.mu.Unlock()
	if stillSubscribed {
		t.Fatalf("expected slow receiver to be detached and family garbage collected")
	}

	// The detached channel must have been closed, not merely abandoned.
	drained := 0
	for range ch {
		drained++
	}
	if drained != perScriptCapacity {
		t.Fatalf("drained %d buffered messages, want %d", drained, perScriptCapacity)
	}
}

func TestHubBlocksAndAllTxsPublishSubscribe(t *testing.T) {
	h := NewHub()

	blockCh := h.SubscribeBlocks()
	h.PublishBlock(BlockMsg{Type: BlockConnectedMsg, Height: 100})
	select {
	case got := <-blockCh:
		if got.Height != 100 || got.Type != BlockConnectedMsg {
			t.Fatalf("got %+v", got)
		}
	default:
		t.Fatalf("expected block message delivered")
	}
	h.UnsubscribeBlocks(blockCh)
	if len(h.blockChans) != 0 {
		t.Fatalf("expected blockChans to be empty after unsubscribe")
	}

	allTxCh := h.SubscribeAllTxs()
	txid := primitives.Txid{0xAB}
	h.PublishAllTxs(AllTxsMsg{Txid: txid})
	select {
	case got := <-allTxCh:
		if got.Txid != txid {
			t.Fatalf("got %+v, want txid %v", got, txid)
		}
	default:
		t.Fatalf("expected all-tx message delivered")
	}
	h.UnsubscribeAllTxs(allTxCh)
	if len(h.allTxChans) != 0 {
		t.Fatalf("expected allTxChans to be empty after unsubscribe")
	}
}

func TestHubMultipleSubscribersIndependentDelivery(t *testing.T) {
	h := NewHub()
	p := scriptPayload(4)
	a := h.SubscribeScript(p)
	b := h.SubscribeScript(p)

	h.PublishScript(p, ScriptMsg{Kind: p, Type: ScriptReorg})

	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected both subscribers to receive the broadcast")
	}
}
