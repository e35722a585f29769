// Package indexerr defines the severity-tagged error taxonomy used across
// the indexer engine (spec §7). Every error the engine returns across a
// package boundary carries one of these severities so the (external) query
// surface can map it to a status code without inspecting error strings.
package indexerr

import "fmt"

// Severity classifies how a failure should be handled by callers.
type Severity int

const (
	// Critical errors are internal consistency violations or storage
	// failures. They are fatal to the indexer's guarantees past the
	// offending operation and should be logged in full and surfaced to
	// clients as a generic 5xx.
	Critical Severity = iota
	// InvalidUserInput marks a malformed query parameter.
	InvalidUserInput
	// InvalidClientInput marks a rejected client-submitted transaction or
	// action (e.g. a broadcast that fails token validation).
	InvalidClientInput
	// NotFound marks a lookup that legitimately found nothing.
	NotFound
)

func (s Severity) String() string {
	switch s {
	case Critical:
		return "critical"
	case InvalidUserInput:
		return "invalid-user-input"
	case InvalidClientInput:
		return "invalid-client-input"
	case NotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

// Code identifies a specific error kind within a Severity. Code values are
// stable strings so they can be logged, matched in tests, and (by the
// out-of-scope HTTP layer) mapped to structured client-facing reasons.
type Code string

// Error is the typed error value every engine package returns. It wraps an
// underlying cause (often produced by github.com/pkg/errors) while pinning
// down the severity and code a caller needs to react correctly.
type Error struct {
	Severity Severity
	Code     Code
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Code, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Severity, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no underlying cause.
func New(sev Severity, code Code, message string) *Error {
	return &Error{Severity: sev, Code: code, Message: message}
}

// Wrap builds an Error around an existing cause.
func Wrap(sev Severity, code Code, message string, cause error) *Error {
	return &Error{Severity: sev, Code: code, Message: message, Cause: cause}
}

// Critical error codes (spec §7).
const (
	CodeInconsistentDatabase       Code = "InconsistentDatabase"
	CodeInconsistentNoSuchMempool  Code = "InconsistentNoSuchMempoolTx"
	CodeInconsistentNoSuchBlockTx  Code = "InconsistentNoSuchBlockTxNum"
	CodeOrphanBlock                Code = "OrphanBlock"
	CodeIndexDiverged               Code = "IndexDiverged"
	CodeUnknownInputSpent           Code = "UnknownInputSpent"
	CodeDbTooOld                    Code = "DbTooOld"
	CodeDbTooNew                    Code = "DbTooNew"
	CodeFoundTxCircle               Code = "FoundTxCircle"
	CodeUnexpectedPluginMessage     Code = "UnexpectedPluginMessage"
	CodeStoreError                  Code = "StoreError"
)

// Invalid-client-input error codes.
const (
	CodeInvalidSlpTx       Code = "InvalidSlpTx"
	CodeInvalidSlpBurns    Code = "InvalidSlpBurns"
	CodeBitcoindRejectedTx Code = "BitcoindRejectedTx"
)

// Invalid-user-input and not-found error codes.
const (
	CodeBadHex          Code = "BadHex"
	CodeBadPageParams   Code = "BadPageParams"
	CodeUnknownScript   Code = "UnknownScriptType"
	CodeTxNotFound      Code = "TxNotFound"
	CodeBlockNotFound   Code = "BlockNotFound"
	CodeTokenNotFound   Code = "TokenNotFound"
)

// IsCritical reports whether err (or anything it wraps) is a Critical
// indexerr.Error. Used by the engine to decide whether a failure should
// abort the write batch entirely.
func IsCritical(err error) bool {
	var e *Error
	for err != nil {
		if ie, ok := err.(*Error); ok {
			e = ie
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Severity == Critical
}
