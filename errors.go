package pgmq

import (
	"errors"
	"fmt"
)

var (
	// ErrClientClosed is returned when an operation is attempted after the
	// Client has been closed.
	ErrClientClosed = errors.New("pgmq: client is closed")

	// ErrInvalidConfig wraps local validation failures (bad poll interval,
	// non-positive batch count, and the like). Validation errors short-circuit
	// before any store call is made.
	ErrInvalidConfig = errors.New("pgmq: invalid configuration")

	// ErrMessageNotFound is returned when an operation targets a message id
	// that is not present in the queue's active backlog.
	ErrMessageNotFound = errors.New("pgmq: message not found")
)

// EncodeError reports that a payload value could not be serialized by the
// client's codec. The failure is local; the store is never reached.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string { return fmt.Sprintf("pgmq: encode payload: %v", e.Err) }

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError reports that a payload retrieved from the store could not be
// decoded. The store enforces well-formed encoding at write time, so a decode
// failure indicates a corrupted invariant rather than a recoverable caller
// error; callers should treat it as fatal.
type DecodeError struct {
	MsgID int64
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("pgmq: decode payload of message %d: %v", e.MsgID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
