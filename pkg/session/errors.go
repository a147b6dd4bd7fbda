package session

import (
	"errors"
	"fmt"

	"github.com/iotcraft/mqttsession/pkg/engine"
)

// Kind classifies a session error.
type Kind uint8

// Error kinds.
const (
	// KindInvalidArgument covers caller mistakes: empty topic names,
	// oversized client ids.
	KindInvalidArgument Kind = iota

	// KindAllocationFailure means the engine handle could not be
	// created. The session is Faulted afterwards.
	KindAllocationFailure

	// KindProtocolError wraps a non-success result reported by the
	// engine, with its reason code.
	KindProtocolError

	// KindNotConnected means the operation needs an engine handle and
	// none is present.
	KindNotConnected
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindAllocationFailure:
		return "allocation failure"
	case KindProtocolError:
		return "protocol error"
	case KindNotConnected:
		return "not connected"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Sentinels matchable with errors.Is against any *Error of that kind.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrAllocationFailure = errors.New("allocation failure")
	ErrProtocol          = errors.New("protocol error")
	ErrNotConnected      = errors.New("not connected")
)

// Error is the error type returned by all session operations. It carries
// the failing operation, a kind, the engine reason code when one exists,
// and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Code engine.ReasonCode
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("session: %s: %s", e.Op, e.Kind)
	if e.Kind == KindProtocolError {
		msg = fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels, so callers can write
// errors.Is(err, session.ErrNotConnected).
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidArgument:
		return e.Kind == KindInvalidArgument
	case ErrAllocationFailure:
		return e.Kind == KindAllocationFailure
	case ErrProtocol:
		return e.Kind == KindProtocolError
	case ErrNotConnected:
		return e.Kind == KindNotConnected
	}
	return false
}

// wrapEngineErr converts an error returned by an engine operation into a
// session *Error.
func wrapEngineErr(op string, err error) *Error {
	if errors.Is(err, engine.ErrNotConnected) {
		return &Error{Kind: KindNotConnected, Op: op, Err: err}
	}
	return &Error{Kind: KindProtocolError, Op: op, Code: engine.CodeOf(err), Err: err}
}
