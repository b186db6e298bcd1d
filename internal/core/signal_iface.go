package core

import "errors"

// Frame is an encoded outbound payload (one JSON document per frame).
type Frame []byte

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues without blocking. It returns ErrBackpressure when the
	// outbound queue is full and ErrClosed after Close.
	TrySend(Frame) error
	Close()
}
