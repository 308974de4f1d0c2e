package conn

import (
	"errors"
	"fmt"
)

// Sentinel errors for connection operations.
var (
	// ErrClosed is returned when an operation is attempted on a shut down connection.
	ErrClosed = errors.New("conn: connection closed")

	// ErrReadInProgress is passed to a read completion when another read is
	// still outstanding.
	ErrReadInProgress = errors.New("conn: read already in progress")

	// ErrRequestTooLarge is logged when a request head exceeds the configured limit.
	ErrRequestTooLarge = errors.New("conn: request head too large")

	// ErrPoolClosed is returned when posting to a stopped pool.
	ErrPoolClosed = errors.New("conn: pool closed")
)

// OpError wraps a socket error with the connection and operation it belongs to.
type OpError struct {
	ID  uint64
	Op  string // "read" or "write"
	Err error
}

// Error returns the error message with connection context.
func (e *OpError) Error() string {
	return fmt.Sprintf("conn %d: %s: %v", e.ID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *OpError) Unwrap() error {
	return e.Err
}
