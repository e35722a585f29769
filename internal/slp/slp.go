// Package slp defines the contract types of the stateless token-bytecode
// parser (the parser itself is external) and implements the single-tx
// validator and the cross-tx topological batch validator of spec
// §4.8/§4.9. Grounded on
// bitcoinsuite_slp::validate_slp_tx (the "external collaborator" parser the
// spec treats as a pure function) and chronik-rocksdb/src/slp_batch.rs's
// validate_slp_batch for the batch fixpoint.
package slp

import (
	"github.com/raipay/chronik-sub000/internal/indexdb"
	"github.com/raipay/chronik-sub000/internal/primitives"
)

// ParseError classifies why the bytecode parser rejected a tx. The
// "ignored" subset means "this plainly isn't a token tx"; everything else
// is an invalid-but-recognized token tx, which still gets an invalid
// message record (spec §4.8 step 1).
type ParseError string

const (
	ErrNoOpcodes       ParseError = "NoOpcodes"
	ErrMissingOpReturn ParseError = "MissingOpReturn"
	ErrInvalidLokadId  ParseError = "InvalidLokadId"
	ErrBytesError      ParseError = "BytesError"

	// The remainder are non-ignored parse failures a real tokenizer would
	// surface (malformed field counts, bad decimals, unknown tx-type byte
	// combinations, ...); the stateless parser itself lives outside this
	// repo's scope (spec §1, "the token-protocol parser ... Contract: pure
	// functions operating on transaction bytes"), so IsIgnored is the only
	// contract this package needs from it.
)

// IsIgnored reports whether e means "not a token tx at all" (spec §4.8
// step 1's ignored set), as opposed to "parsed as a token tx, but invalid".
func IsIgnored(e ParseError) bool {
	switch e {
	case ErrNoOpcodes, ErrMissingOpReturn, ErrInvalidLokadId, ErrBytesError:
		return true
	default:
		return false
	}
}

// ParsedTx is the parser's pure output for one transaction: either a
// recognized-but-possibly-invalid token tx (Ok == true) or a parse error.
type ParsedTx struct {
	Ok            bool
	Err           ParseError
	TokenType     indexdb.TokenType
	TxType        indexdb.TxType
	TokenId       primitives.TokenId
	HasTokenId    bool
	GroupTokenId  primitives.TokenId
	HasGroup      bool
	Decimals      uint8
	Metadata      indexdb.TokenMetadata // meaningful only when TxType == Genesis
	InputAmounts  []uint64             // declared SEND/burn-relevant amounts per input slot, 0 if not referenced
	OutputAmounts []uint64             // token amount assigned to each output, including the baton/mint marker at OutputAmounts[i]
	MintBatonIdx  int                  // -1 if none
}

// SpentOutput is the resolved token state of a single confirmed or
// in-batch input, the Go analogue of bitcoinsuite_slp::SlpSpentOutput.
type SpentOutput struct {
	TokenId      primitives.TokenId
	TokenType    indexdb.TokenType
	Amount       indexdb.TokenAmount
	GroupTokenId primitives.TokenId
	HasGroup     bool
}

// ValidTx is the result of successfully validating a ParsedTx against its
// resolved inputs: the SlpTxEntry-shaped output token assignment plus any
// burns.
type ValidTx struct {
	Entry indexdb.SlpTxEntry
	Burns []indexdb.Burn
}

// Validate applies the token-protocol rules to a single parsed tx given its
// resolved input token states (nil entries mean "non-token input"). This is
// the per-tx rule kernel both the single-tx mempool path and the batch
// fixpoint call once every input is resolved.
//
// NFT1-child GENESIS requires input 0 to carry an NFT1 group token of
// quantity >= 1 (spec §4.8 edge case); every other outcome is accepted as
// parsed with burns computed from whichever inputs carried tokens.
func Validate(parsed ParsedTx, spentInputs []*SpentOutput) (ValidTx, bool) {
	if !parsed.Ok {
		return ValidTx{}, false
	}

	if parsed.TxType == indexdb.TxTypeGenesis && parsed.TokenType == indexdb.TokenTypeNFT1Child {
		if len(spentInputs) == 0 || spentInputs[0] == nil ||
			spentInputs[0].TokenType != indexdb.TokenTypeNFT1Group || spentInputs[0].Amount.Amount < 1 {
			return invalidBurnsAll(spentInputs, len(parsed.OutputAmounts)), false
		}
	}

	entry := indexdb.SlpTxEntry{
		TxType:    parsed.TxType,
		TokenType: parsed.TokenType,
		HasToken:  parsed.TokenType != indexdb.TokenTypeUnknown,
	}
	if parsed.HasGroup {
		entry.HasGroup = true
	}

	var burns []indexdb.Burn
	entry.InputTokens = make([]indexdb.TokenAmount, len(spentInputs))
	for i, in := range spentInputs {
		if in == nil {
			continue
		}
		entry.InputTokens[i] = in.Amount
		switch parsed.TxType {
		case indexdb.TxTypeSend:
			declared := uint64(0)
			if i < len(parsed.InputAmounts) {
				declared = parsed.InputAmounts[i]
			}
			if in.Amount.Amount > declared {
				burns = append(burns, indexdb.Burn{
					InputIdx: uint32(i),
					Amount:   indexdb.TokenAmount{TokenNum: in.Amount.TokenNum, TokenType: in.Amount.TokenType, Amount: in.Amount.Amount - declared},
				})
			}
		default:
			// Genesis/Mint/Unknown: every input token amount is burned —
			// none of these outcomes re-emits an existing token's supply.
			burns = append(burns, indexdb.Burn{InputIdx: uint32(i), Amount: in.Amount})
		}
	}

	entry.OutputTokens = make([]indexdb.TokenAmount, len(parsed.OutputAmounts))
	for i, amt := range parsed.OutputAmounts {
		if amt == 0 && i != parsed.MintBatonIdx {
			continue
		}
		entry.OutputTokens[i] = indexdb.TokenAmount{
			Amount:      amt,
			IsMintBaton: i == parsed.MintBatonIdx,
		}
	}

	return ValidTx{Entry: entry, Burns: burns}, true
}

// TokenNumResult is what a TokenNumResolver resolves a parsed tx's declared
// token id (and, for an NFT1 child, its group's token id) to.
type TokenNumResult struct {
	TokenNum      primitives.TokenNum
	HasToken      bool
	GroupTokenNum primitives.TokenNum
	HasGroup      bool
}

// TokenNumResolver resolves a parsed tx's TokenId/GroupTokenId to the dense
// TokenNum spec §3 assigns at persist time (and assigns a fresh one for a
// GENESIS declaring an unseen TokenId). Kept as an injected function so
// this package never touches the store directly: TokenNum assignment is
// store-backed state, the same external-data boundary spec §1 draws around
// everything else this package treats as a pure function.
type TokenNumResolver func(parsed ParsedTx) (TokenNumResult, error)

// stampTokenNums writes a resolved TokenNumResult into entry: the tx's own
// TokenNum (propagated onto every non-empty output slot, since a tx's
// outputs always belong to its own token) and, for an NFT1 child, its
// group's TokenNum.
func stampTokenNums(entry *indexdb.SlpTxEntry, res TokenNumResult) {
	if res.HasToken {
		entry.TokenNum = res.TokenNum
		for i := range entry.OutputTokens {
			if entry.OutputTokens[i].Amount == 0 && !entry.OutputTokens[i].IsMintBaton {
				continue
			}
			entry.OutputTokens[i].TokenNum = res.TokenNum
			entry.OutputTokens[i].TokenType = entry.TokenType
			if res.HasGroup {
				entry.OutputTokens[i].GroupTokenNum = res.GroupTokenNum
				entry.OutputTokens[i].HasGroup = true
			}
		}
	}
	if res.HasGroup {
		entry.GroupTokenNum = res.GroupTokenNum
	}
}

// ValidateAndStamp runs Validate and, on success, resolves and stamps
// TokenNum/GroupTokenNum via resolve. A nil resolve leaves the entry's
// TokenNum fields zero-valued, which is fine for callers (like a
// not-yet-persisted mempool preview) that never read them.
func ValidateAndStamp(parsed ParsedTx, spentInputs []*SpentOutput, resolve TokenNumResolver) (ValidTx, bool, error) {
	valid, ok := Validate(parsed, spentInputs)
	if !ok || resolve == nil {
		return valid, ok, nil
	}
	res, err := resolve(parsed)
	if err != nil {
		return ValidTx{}, false, err
	}
	stampTokenNums(&valid.Entry, res)
	return valid, ok, nil
}

func invalidBurnsAll(spentInputs []*SpentOutput, numOutputs int) ValidTx {
	var burns []indexdb.Burn
	for i, in := range spentInputs {
		if in != nil {
			burns = append(burns, indexdb.Burn{InputIdx: uint32(i), Amount: in.Amount})
		}
	}
	_ = numOutputs
	return ValidTx{Burns: burns}
}
