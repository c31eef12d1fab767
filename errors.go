package mysql

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error per spec.md §7.
type Kind int

const (
	// KindClient is raised for API misuse: unknown DSN option, arity
	// mismatch on Exec, operating on a non-prepared statement. SQLSTATE
	// is unused for this kind.
	KindClient Kind = iota
	// KindProtocol is raised when received bytes do not conform to the
	// packet grammar, or a transport I/O call fails. Always fatal to
	// the connection.
	KindProtocol
	// KindServer is raised for a received ERR packet. The connection
	// remains usable; callers may retry.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindProtocol:
		return "protocol"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// defaultSQLState is returned by Error.SQLState for errors that never
// carry a server-supplied SQLSTATE (spec.md §6 "default 00000").
const defaultSQLState = "00000"

// Error is the single public error type this driver returns: every
// client, protocol, and server failure carries a Kind plus the errno/
// sqlstate/message triple spec.md §6 requires from "every error".
type Error struct {
	Kind     Kind
	Number   uint16
	SQLState string
	Message  string
	cause    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindServer:
		return fmt.Sprintf("mysql: server error %d (%s): %s", e.Number, e.SQLState, e.Message)
	case KindProtocol:
		if e.cause != nil {
			return fmt.Sprintf("mysql: protocol error: %s: %v", e.Message, e.cause)
		}
		return fmt.Sprintf("mysql: protocol error: %s", e.Message)
	default:
		return fmt.Sprintf("mysql: %s", e.Message)
	}
}

// Unwrap exposes the underlying transport/decode cause, if any, so
// errors.Is/errors.As see through to it. Error has no Cause method,
// so pkg/errors.Cause stops at the *Error itself.
func (e *Error) Unwrap() error { return e.cause }

func clientError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindClient, SQLState: defaultSQLState, Message: fmt.Sprintf(format, args...)}
}

func protocolError(cause error, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{
		Kind:     KindProtocol,
		SQLState: defaultSQLState,
		Message:  msg,
		cause:    errors.WithMessage(cause, msg),
	}
}

func protocolErrorf(format string, args ...interface{}) *Error {
	return protocolError(nil, format, args...)
}

func serverError(number uint16, sqlState, message string) *Error {
	if sqlState == "" {
		sqlState = defaultSQLState
	}
	return &Error{Kind: KindServer, Number: number, SQLState: sqlState, Message: message}
}

// IsProtocolFatal reports whether err should mark the owning
// connection unusable per spec.md §4.8/§7: anything except a plain
// server ERR packet is fatal to the connection.
func IsProtocolFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind != KindServer
	}
	return err != nil
}

// ---- transitional read/write packet error, in the teacher's own
// vocabulary. It is not an *Error, so IsProtocolFatal treats it as
// fatal and handleCommandError maps it to driver.ErrBadConn ----

const (
	WriteErrTypeWriteZeroBytes = "write zero bytes"
	WriteErrTypeWriteSocket    = "write socket"
	WriteErrTypeMarshalError   = "marshal error"
)

const (
	ReadErrTypeSocket       = "read socket"
	ReadErrTypeErrPkt       = "read err pkt"
	ReadErrTypeUnknownPkt   = "read unknown pkt"
	ReadErrTypeMalformedPkt = "read malformed pkt"
)

// ErrorReadWritePkt wraps a framing-layer I/O failure with enough
// detail for the connection state machine to decide whether the
// underlying socket is salvageable.
type ErrorReadWritePkt struct {
	event   string
	errType string
	raw     error
}

func (e *ErrorReadWritePkt) Error() string {
	return fmt.Sprintf("mysql: event=%s errType=%s: %v", e.event, e.errType, e.raw)
}

func (e *ErrorReadWritePkt) Unwrap() error { return e.raw }

// AsProtocolError adapts a read/write packet failure into the public
// *Error surface, preserving its KindProtocol classification.
func (e *ErrorReadWritePkt) AsProtocolError() *Error {
	return protocolError(e.raw, "%s (%s)", e.event, e.errType)
}

var (
	// ErrConnHasBeenClosed is returned by operations attempted on a
	// connection that has already had Close called on it.
	ErrConnHasBeenClosed = clientError("connection has been closed")
)
