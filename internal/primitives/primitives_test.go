package primitives

import "testing"

func TestScriptPayloadIsNull(t *testing.T) {
	null := ScriptPayload{}
	if !null.IsNull() {
		t.Fatalf("zero-value ScriptPayload should be null (OP_RETURN sentinel)")
	}

	other := ScriptPayload{Prefix: PrefixOther, Payload: []byte{0x6a}}
	if other.IsNull() {
		t.Fatalf("a PrefixOther payload carrying bytes must not be treated as null")
	}

	p2pkh := ScriptPayload{Prefix: PrefixP2PKH, Payload: make([]byte, 20)}
	if p2pkh.IsNull() {
		t.Fatalf("a standard payload must not be treated as null")
	}
}

func TestScriptPayloadKeyRoundtrip(t *testing.T) {
	p := ScriptPayload{Prefix: PrefixP2SH, Payload: []byte{1, 2, 3}}
	key := p.Key()
	if key[0] != byte(PrefixP2SH) {
		t.Fatalf("Key()[0] = %d, want prefix byte %d", key[0], PrefixP2SH)
	}
	if string(key[1:]) != string(p.Payload) {
		t.Fatalf("Key() payload suffix mismatch")
	}
	if p.KeyString() != string(key) {
		t.Fatalf("KeyString() must match Key()")
	}
}

func TestOutPointIsCoinbase(t *testing.T) {
	cb := OutPoint{OutIdx: CoinbaseOutIdx}
	if !cb.IsCoinbase() {
		t.Fatalf("OutIdx == CoinbaseOutIdx must report IsCoinbase")
	}
	normal := OutPoint{OutIdx: 0}
	if normal.IsCoinbase() {
		t.Fatalf("OutIdx 0 must not report IsCoinbase unless it equals the sentinel")
	}
}
