package querywire

import (
	"fmt"
	"time"
)

// TransportErrorKind identifies the failure mode of a transport operation.
type TransportErrorKind int

const (
	// SendError is a failure while transmitting bytes, as seen by the
	// local program.
	SendError TransportErrorKind = iota
	// ReceiveError is a failure while receiving bytes, as seen by the
	// local program.
	ReceiveError
	// ConnectError is a failure while establishing a connection.
	ConnectError
	// ReceiveTimeout means a receive did not complete within the
	// configured duration.
	ReceiveTimeout
	// SerializeError is a failure encoding a value to wire bytes.
	SerializeError
	// DeserializeError is a failure decoding wire bytes into a value.
	DeserializeError
)

func (k TransportErrorKind) String() string {
	switch k {
	case SendError:
		return "SendError"
	case ReceiveError:
		return "ReceiveError"
	case ConnectError:
		return "ConnectError"
	case ReceiveTimeout:
		return "ReceiveTimeout"
	case SerializeError:
		return "SerializeError"
	case DeserializeError:
		return "DeserializeError"
	default:
		return fmt.Sprintf("TransportErrorKind(%d)", int(k))
	}
}

// ErrTransport is a sentinel for use with errors.Is to check whether any
// error in a chain is a *TransportError.
var ErrTransport = &TransportError{}

// TransportError is the error type for every transport-level failure:
// connecting, sending, receiving, timing out, and encoding or decoding
// wire bytes.
type TransportError struct {
	Kind    TransportErrorKind
	Cause   string
	Timeout time.Duration // set when Kind is ReceiveTimeout

	err error
}

func (e *TransportError) Error() string {
	if e.Kind == ReceiveTimeout {
		return fmt.Sprintf("%s: %s", e.Kind, e.Timeout)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
}

// Is supports errors.Is by matching any *TransportError target.
func (e *TransportError) Is(target error) bool {
	_, ok := target.(*TransportError)
	return ok
}

// Unwrap exposes the underlying error, if any.
func (e *TransportError) Unwrap() error { return e.err }

func sendErr(err error) *TransportError {
	return &TransportError{Kind: SendError, Cause: err.Error(), err: err}
}

func receiveErr(err error) *TransportError {
	return &TransportError{Kind: ReceiveError, Cause: err.Error(), err: err}
}

func connectErr(err error) *TransportError {
	return &TransportError{Kind: ConnectError, Cause: err.Error(), err: err}
}

func timeoutErr(d time.Duration) *TransportError {
	return &TransportError{Kind: ReceiveTimeout, Timeout: d}
}

func serializeErr(err error) *TransportError {
	return &TransportError{Kind: SerializeError, Cause: err.Error(), err: err}
}

func deserializeErr(err error) *TransportError {
	return &TransportError{Kind: DeserializeError, Cause: err.Error(), err: err}
}

// Error type names carried in response envelopes.
const (
	// ErrTypeTransport marks errors raised by the transport itself rather
	// than by a handler.
	ErrTypeTransport = "TransportError"
	// ErrTypeHandler marks plain errors returned by a handler.
	ErrTypeHandler = "HandlerError"
	// ErrTypeUnknownMethod marks calls to a name with no registered handler.
	ErrTypeUnknownMethod = "UnknownMethod"
	// ErrTypeBadQuery marks query payloads that failed to decode.
	ErrTypeBadQuery = "TypeError"
	// ErrTypeSerialization marks results that failed to encode.
	ErrTypeSerialization = "SerializationError"
)

// ErrRpc is a sentinel for use with errors.Is to check whether any error
// in a chain is an *RpcError.
var ErrRpc = &RpcError{}

// RpcError represents an error surfaced through the RPC layer, either
// locally or propagated from the remote side of a call.
type RpcError struct {
	Type    string // error class name, e.g. "TransportError"
	Message string

	cause error
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Is supports errors.Is by matching any *RpcError target.
func (e *RpcError) Is(target error) bool {
	_, ok := target.(*RpcError)
	return ok
}

// Unwrap exposes the underlying error, if any.
func (e *RpcError) Unwrap() error { return e.cause }

// wrapTransport lifts a transport failure into the RPC error taxonomy.
// The original error stays reachable through errors.As and errors.Is.
func wrapTransport(err error) error {
	if err == nil {
		return nil
	}
	return &RpcError{Type: ErrTypeTransport, Message: err.Error(), cause: err}
}
