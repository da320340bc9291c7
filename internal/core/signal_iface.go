package core

import "errors"

// Frame is a raw text payload (one JSON message).
type Frame []byte

// ConnID identifies a transport connection in logs and stats.
type ConnID string

var (
	ErrConnClosed   = errors.New("connection closed")
	ErrBackpressure = errors.New("backpressure")
)

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
// Implementations are compared by identity, so they must be pointer types.
type SignalConnection interface {
	ID() ConnID
	// TrySend queues f without blocking. It returns ErrConnClosed once the
	// connection is closed and ErrBackpressure when the send queue is full.
	TrySend(f Frame) error
	Close()
}
