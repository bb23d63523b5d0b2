// Package enclave implements the request layer, deposit crediting,
// settlement-order construction, and checkpoint production - the
// service that sits on top of pkg/book and pkg/ledger and is exposed
// over HTTP by pkg/api.
package enclave

import "fmt"

// Kind is an abstract error category. It deliberately carries
// no Go type per kind - one Error struct, switched on Kind - since the
// HTTP layer only needs to map a kind to a status code and a caller-facing
// label.
type Kind string

const (
	// Authentication
	KindInvalidSignature Kind = "invalid_signature"
	KindSignatureRecovery Kind = "signature_recovery"
	KindUnauthorized Kind = "unauthorized"
	KindNotTaker Kind = "not_taker"

	// Admission
	KindInvalidTimestamp Kind = "invalid_timestamp"
	KindInvalidRequestType Kind = "invalid_request_type"
	KindInvalidOrderParams Kind = "invalid_order_params"

	// State
	KindOrderNotFound Kind = "order_not_found"
	KindNoOrdersFound Kind = "no_orders_found"
	KindInvalidBook Kind = "invalid_book"
	KindInsufficientBalance Kind = "insufficient_balance"

	// Cryptography
	KindSignerCreation Kind = "signer_creation"
	KindSigning Kind = "signing"
	KindSignatureConversion Kind = "signature_conversion"
	KindEncryption Kind = "encryption"

	// External
	KindTransaction Kind = "transaction_error"
	KindSnapshot Kind = "snapshot_error"
	KindGulp Kind = "gulp_error"
)

// Error is the single error type the enclave returns; Kind drives both
// the HTTP status mapping and caller-facing classification, Token/Msg
// carry kind-specific detail.
type Error struct {
	Kind Kind
	Token string
	Msg string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInsufficientBalance:
		return fmt.Sprintf("insufficient balance: %s", e.Token)
	case KindSnapshot, KindGulp:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	default:
		return string(e.Kind)
	}
}

// New constructs a plain Error of kind.
func New(kind Kind) *Error { return &Error{Kind: kind} }

// Insufficient constructs KindInsufficientBalance for token.
func Insufficient(token string) *Error {
	return &Error{Kind: KindInsufficientBalance, Token: token}
}

// Snapshot constructs KindSnapshot with msg.
func Snapshot(msg string) *Error { return &Error{Kind: KindSnapshot, Msg: msg} }

// Gulp constructs KindGulp with msg.
func Gulp(msg string) *Error { return &Error{Kind: KindGulp, Msg: msg} }

// StatusCode maps a Kind to the HTTP status the API layer should respond
// with: 401 for InvalidSignature, Unauthorized and NotTaker, 404 for the
// two not-found kinds, 400 for everything else
// malformed/insufficient/timestamp/signature-recovery, 200 is the
// caller's own business (no error at all).
func StatusCode(err *Error) int {
	switch err.Kind {
	case KindInvalidSignature, KindUnauthorized, KindNotTaker:
		return 401
	case KindOrderNotFound, KindNoOrdersFound:
		return 404
	default:
		return 400
	}
}
