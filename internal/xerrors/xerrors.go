// Package xerrors maps engine failures onto the alert-description error
// kinds from spec §7, and attaches a stack trace to the ones that
// represent a backend or programming fault rather than a peer-triggered
// protocol violation.
package xerrors

import (
	"fmt"

	goerrors "github.com/go-errors/errors"

	"github.com/vlet/tls12/internal/wire"
)

// AlertError is an error that carries the TLS alert it should produce.
// The state machine type-asserts inbound errors to this type to
// decide which alert to enqueue before transitioning to CLOSED.
type AlertError struct {
	Level       wire.AlertLevel
	Description wire.AlertDescription
	Op          string
	err         error
}

func (e *AlertError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("tls12: %s: %s: %v", e.Op, e.Description, e.err)
	}
	return fmt.Sprintf("tls12: %s: %s", e.Op, e.Description)
}

func (e *AlertError) Unwrap() error { return e.err }

// Fatal builds a fatal AlertError for a given alert description.
func Fatal(op string, desc wire.AlertDescription, cause error) *AlertError {
	return &AlertError{Level: wire.AlertLevelFatal, Description: desc, Op: op, err: cause}
}

// Warning builds a warning-level AlertError (currently only used for
// no_renegotiation).
func Warning(op string, desc wire.AlertDescription, cause error) *AlertError {
	return &AlertError{Level: wire.AlertLevelWarning, Description: desc, Op: op, err: cause}
}

// UnexpectedMessage is shorthand for the most common handshake-layer
// fatal alert.
func UnexpectedMessage(op string, cause error) *AlertError {
	return Fatal(op, wire.AlertUnexpectedMessage, cause)
}

// BadRecordMAC is shorthand for MAC/padding verification failures.
func BadRecordMAC(op string, cause error) *AlertError {
	return Fatal(op, wire.AlertBadRecordMAC, cause)
}

// HandshakeFailure is shorthand for cipher-negotiation and
// Finished-verification failures.
func HandshakeFailure(op string, cause error) *AlertError {
	return Fatal(op, wire.AlertHandshakeFailure, cause)
}

// ProtocolVersion is shorthand for unsupported record-layer versions.
func ProtocolVersion(op string, cause error) *AlertError {
	return Fatal(op, wire.AlertProtocolVersion, cause)
}

// RecordOverflow is shorthand for over-length records (spec §9(d)).
func RecordOverflow(op string, cause error) *AlertError {
	return Fatal(op, wire.AlertRecordOverflow, cause)
}

// Internal wraps a backend/programming fault with a stack trace via
// go-errors/errors, mirroring how the teacher attaches traces to its own
// "this should never happen" paths, then tags it as an internal_error
// AlertError so the state machine can still map it onto the wire.
func Internal(op string, cause error) *AlertError {
	traced := goerrors.Wrap(cause, 1)
	return Fatal(op, wire.AlertInternalError, traced)
}

// NoRenegotiation is the warning-level rejection of a renegotiation
// attempt (spec §9(e) / SPEC_FULL §12): the connection stays open.
func NoRenegotiation(op string) *AlertError {
	return Warning(op, wire.AlertNoRenegotiation, nil)
}
