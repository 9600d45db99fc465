// Package transport carries encoded envelopes to the broker's request/reply
// port and back. A Transport performs exactly one exchange at a time.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrTransport marks every connection-level failure.
	ErrTransport = errors.New("transport error")
	// ErrTimeout is returned when no reply arrives before the deadline.
	ErrTimeout = errors.New("reply timeout")
	// ErrClosed is returned by RoundTrip after Close.
	ErrClosed = errors.New("transport closed")
)

// Transport sends one request and waits for its reply.
type Transport interface {
	RoundTrip(ctx context.Context, req []byte) ([]byte, error)
	Close() error
}

// Func adapts a plain function to the Transport interface.
type Func func(ctx context.Context, req []byte) ([]byte, error)

func (f Func) RoundTrip(ctx context.Context, req []byte) ([]byte, error) {
	return f(ctx, req)
}

func (Func) Close() error { return nil }
