package indexdb

import (
	"github.com/raipay/chronik-sub000/internal/codec"
	"github.com/raipay/chronik-sub000/internal/primitives"
	"github.com/raipay/chronik-sub000/internal/store"
)

// TokenType distinguishes the SLP/ALP token-family variant a tx belongs to.
// Unknown is a reserved type byte: accepted as valid-but-opaque, carrying no
// token id and no supply impact (spec §4.8).
type TokenType byte

const (
	TokenTypeUnknown TokenType = 0
	TokenTypeFungible TokenType = 1
	TokenTypeNFT1Group TokenType = 2
	TokenTypeNFT1Child TokenType = 3
)

// TxType tags which of GENESIS/MINT/SEND outcome a validated tx produced.
type TxType byte

const (
	TxTypeGenesis TxType = 1
	TxTypeMint    TxType = 2
	TxTypeSend    TxType = 3
)

// TokenMetadata is the parsed GENESIS info stored once per TokenNum (spec §3
// "TokenMetadata").
type TokenMetadata struct {
	TokenType    TokenType
	Ticker       []byte
	Name         []byte
	URL          []byte
	DocumentHash []byte
	Decimals     uint8
}

func encodeTokenMetadata(m TokenMetadata) []byte {
	buf := make([]byte, 1+1+4+len(m.Ticker)+4+len(m.Name)+4+len(m.URL)+4+len(m.DocumentHash))
	i := 0
	buf[i] = byte(m.TokenType)
	i++
	buf[i] = m.Decimals
	i++
	i = putLenPrefixed(buf, i, m.Ticker)
	i = putLenPrefixed(buf, i, m.Name)
	i = putLenPrefixed(buf, i, m.URL)
	i = putLenPrefixed(buf, i, m.DocumentHash)
	return buf[:i]
}

func decodeTokenMetadata(buf []byte) TokenMetadata {
	m := TokenMetadata{TokenType: TokenType(buf[0]), Decimals: buf[1]}
	i := 2
	m.Ticker, i = getLenPrefixed(buf, i)
	m.Name, i = getLenPrefixed(buf, i)
	m.URL, i = getLenPrefixed(buf, i)
	m.DocumentHash, i = getLenPrefixed(buf, i)
	return m
}

func putLenPrefixed(buf []byte, i int, v []byte) int {
	copy(buf[i:i+4], codec.LEUint32(uint32(len(v))))
	i += 4
	copy(buf[i:i+len(v)], v)
	return i + len(v)
}

func getLenPrefixed(buf []byte, i int) ([]byte, int) {
	n := int(codec.DecodeLEUint32(buf[i : i+4]))
	i += 4
	out := make([]byte, n)
	copy(out, buf[i:i+n])
	return out, i + n
}

// TokenAmount pairs a token-colored quantity with the token it belongs to,
// the unit attached to every SlpTxEntry input/output slot.
type TokenAmount struct {
	TokenNum     primitives.TokenNum
	TokenType    TokenType
	GroupTokenNum primitives.TokenNum // meaningful only for NFT1 child slots
	HasGroup     bool
	Amount       uint64
	IsMintBaton  bool
}

// Burn is a per-input record of token amount consumed but not re-emitted.
type Burn struct {
	InputIdx uint32
	Amount   TokenAmount
}

// SlpTxEntry is the per-validated-tx record of spec §3 ("SlpTxEntry"),
// keyed by TxNum in slp_tx_data.
type SlpTxEntry struct {
	TxType        TxType
	TokenType     TokenType
	TokenNum      primitives.TokenNum
	HasToken      bool // false for Unknown-type or not-yet-assigned
	GroupTokenNum primitives.TokenNum
	HasGroup      bool
	InputTokens   []TokenAmount // sparse: zero-value entries mean "no token"
	OutputTokens  []TokenAmount
	Burns         []Burn
}

func encodeSlpTxEntry(e SlpTxEntry) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, byte(e.TxType), byte(e.TokenType))
	buf = append(buf, boolByte(e.HasToken))
	buf = append(buf, codec.BETokenNum(e.TokenNum)...)
	buf = append(buf, boolByte(e.HasGroup))
	buf = append(buf, codec.BETokenNum(e.GroupTokenNum)...)
	buf = appendAmounts(buf, e.InputTokens)
	buf = appendAmounts(buf, e.OutputTokens)
	buf = append(buf, codec.LEUint32(uint32(len(e.Burns)))...)
	for _, b := range e.Burns {
		buf = append(buf, codec.LEUint32(b.InputIdx)...)
		buf = appendAmount(buf, b.Amount)
	}
	return buf
}

func appendAmounts(buf []byte, amounts []TokenAmount) []byte {
	buf = append(buf, codec.LEUint32(uint32(len(amounts)))...)
	for _, a := range amounts {
		buf = appendAmount(buf, a)
	}
	return buf
}

func appendAmount(buf []byte, a TokenAmount) []byte {
	buf = append(buf, codec.BETokenNum(a.TokenNum)...)
	buf = append(buf, byte(a.TokenType))
	buf = append(buf, boolByte(a.HasGroup))
	buf = append(buf, codec.BETokenNum(a.GroupTokenNum)...)
	buf = append(buf, codec.LEUint64(a.Amount)...)
	buf = append(buf, boolByte(a.IsMintBaton))
	return buf
}

func decodeSlpTxEntry(buf []byte) SlpTxEntry {
	i := 0
	e := SlpTxEntry{TxType: TxType(buf[i]), TokenType: TokenType(buf[i+1])}
	i += 2
	e.HasToken = buf[i] != 0
	i++
	e.TokenNum = codec.DecodeBETokenNum(buf[i : i+4])
	i += 4
	e.HasGroup = buf[i] != 0
	i++
	e.GroupTokenNum = codec.DecodeBETokenNum(buf[i : i+4])
	i += 4
	e.InputTokens, i = readAmounts(buf, i)
	e.OutputTokens, i = readAmounts(buf, i)
	numBurns := int(codec.DecodeLEUint32(buf[i : i+4]))
	i += 4
	e.Burns = make([]Burn, numBurns)
	for b := 0; b < numBurns; b++ {
		e.Burns[b].InputIdx = codec.DecodeLEUint32(buf[i : i+4])
		i += 4
		var amt TokenAmount
		amt, i = readAmount(buf, i)
		e.Burns[b].Amount = amt
	}
	return e
}

func readAmounts(buf []byte, i int) ([]TokenAmount, int) {
	n := int(codec.DecodeLEUint32(buf[i : i+4]))
	i += 4
	out := make([]TokenAmount, n)
	for k := 0; k < n; k++ {
		out[k], i = readAmount(buf, i)
	}
	return out, i
}

func readAmount(buf []byte, i int) (TokenAmount, int) {
	var a TokenAmount
	a.TokenNum = codec.DecodeBETokenNum(buf[i : i+4])
	i += 4
	a.TokenType = TokenType(buf[i])
	i++
	a.HasGroup = buf[i] != 0
	i++
	a.GroupTokenNum = codec.DecodeBETokenNum(buf[i : i+4])
	i += 4
	a.Amount = codec.DecodeLEUint64(buf[i : i+8])
	i += 8
	a.IsMintBaton = buf[i] != 0
	i++
	return a, i
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// TokenStats is the signed 128-bit supply accounting of spec §3/§6.
type TokenStats struct {
	TotalMinted codec.Int128
	TotalBurned codec.Int128
}

// TokenStore is the persist layer of spec §4.8: token_id_by_num,
// token_num_by_id, token_metadata, tx_data, tx_invalid_message, token_stats.
type TokenStore struct{ db *store.DB }

func NewTokenStore(db *store.DB) *TokenStore { return &TokenStore{db: db} }

// NextTokenNum reads the current max TokenNum + 1 (0 on an empty set).
func (t *TokenStore) NextTokenNum() (primitives.TokenNum, error) {
	it := t.db.NewIterator(store.CFSlpTokenIdByNum)
	defer it.Close()
	it.SeekToLast()
	if !it.Valid() {
		return 0, nil
	}
	key := it.Key()
	n := codec.DecodeBETokenNum(keyBytes(key))
	key.Free()
	return n + 1, nil
}

// AssignToken stamps a brand-new TokenNum for a GENESIS tx's token id.
func (t *TokenStore) AssignToken(batch *store.Batch, id primitives.TokenId, num primitives.TokenNum, meta TokenMetadata) {
	batch.Put(store.CFSlpTokenIdByNum, codec.BETokenNum(num), id[:])
	batch.Put(store.CFSlpTokenNumById, id[:], codec.BETokenNum(num))
	batch.Put(store.CFSlpTokenMetadata, codec.BETokenNum(num), encodeTokenMetadata(meta))
}

// DeleteToken undoes AssignToken (used on disconnect of a GENESIS tx).
func (t *TokenStore) DeleteToken(batch *store.Batch, id primitives.TokenId, num primitives.TokenNum) {
	batch.Delete(store.CFSlpTokenIdByNum, codec.BETokenNum(num))
	batch.Delete(store.CFSlpTokenNumById, id[:])
	batch.Delete(store.CFSlpTokenMetadata, codec.BETokenNum(num))
}

func (t *TokenStore) TokenIdByNum(num primitives.TokenNum) (primitives.TokenId, bool, error) {
	raw, err := t.db.Get(store.CFSlpTokenIdByNum, codec.BETokenNum(num))
	if err != nil || raw == nil {
		return primitives.TokenId{}, false, err
	}
	return codec.GetTokenId(raw), true, nil
}

func (t *TokenStore) TokenNumById(id primitives.TokenId) (primitives.TokenNum, bool, error) {
	raw, err := t.db.Get(store.CFSlpTokenNumById, id[:])
	if err != nil || raw == nil {
		return 0, false, err
	}
	return codec.DecodeBETokenNum(raw), true, nil
}

func (t *TokenStore) Metadata(num primitives.TokenNum) (*TokenMetadata, error) {
	raw, err := t.db.Get(store.CFSlpTokenMetadata, codec.BETokenNum(num))
	if err != nil || raw == nil {
		return nil, err
	}
	m := decodeTokenMetadata(raw)
	return &m, nil
}

// PutTxData writes (or overwrites) the validated token record for a tx.
func (t *TokenStore) PutTxData(batch *store.Batch, txNum primitives.TxNum, entry SlpTxEntry) {
	batch.Put(store.CFSlpTxData, codec.BETxNum(txNum), encodeSlpTxEntry(entry))
}

func (t *TokenStore) DeleteTxData(batch *store.Batch, txNum primitives.TxNum) {
	batch.Delete(store.CFSlpTxData, codec.BETxNum(txNum))
}

func (t *TokenStore) TxData(txNum primitives.TxNum) (*SlpTxEntry, error) {
	raw, err := t.db.Get(store.CFSlpTxData, codec.BETxNum(txNum))
	if err != nil || raw == nil {
		return nil, err
	}
	e := decodeSlpTxEntry(raw)
	return &e, nil
}

func (t *TokenStore) PutInvalidMessage(batch *store.Batch, txNum primitives.TxNum, message string) {
	batch.Put(store.CFSlpTxInvalidMsg, codec.BETxNum(txNum), []byte(message))
}

func (t *TokenStore) DeleteInvalidMessage(batch *store.Batch, txNum primitives.TxNum) {
	batch.Delete(store.CFSlpTxInvalidMsg, codec.BETxNum(txNum))
}

func (t *TokenStore) InvalidMessage(txNum primitives.TxNum) (string, bool, error) {
	raw, err := t.db.Get(store.CFSlpTxInvalidMsg, codec.BETxNum(txNum))
	if err != nil || raw == nil {
		return "", false, err
	}
	return string(raw), true, nil
}

func encodeTokenStats(s TokenStats) []byte {
	buf := make([]byte, 32)
	codec.PutInt128(buf[0:16], s.TotalMinted)
	codec.PutInt128(buf[16:32], s.TotalBurned)
	return buf
}

func decodeTokenStats(buf []byte) TokenStats {
	return TokenStats{TotalMinted: codec.GetInt128(buf[0:16]), TotalBurned: codec.GetInt128(buf[16:32])}
}

func (t *TokenStore) Stats(num primitives.TokenNum) (TokenStats, error) {
	raw, err := t.db.Get(store.CFSlpTokenStats, codec.BETokenNum(num))
	if err != nil {
		return TokenStats{}, err
	}
	if raw == nil {
		return TokenStats{}, nil
	}
	return decodeTokenStats(raw), nil
}

// ApplyStatsDelta adds (possibly negative, via Int128's two's-complement
// limbs) deltas to a token's running totals and writes the result. Passing
// the negated deltas is how disconnect reverses a connect-time update
// (spec §4.8: "Disconnect reverses every step ... apply inverse stat
// deltas").
func (t *TokenStore) ApplyStatsDelta(batch *store.Batch, num primitives.TokenNum, mintedDelta, burnedDelta codec.Int128) error {
	cur, err := t.Stats(num)
	if err != nil {
		return err
	}
	next := TokenStats{
		TotalMinted: cur.TotalMinted.Add(mintedDelta),
		TotalBurned: cur.TotalBurned.Add(burnedDelta),
	}
	batch.Put(store.CFSlpTokenStats, codec.BETokenNum(num), encodeTokenStats(next))
	return nil
}
