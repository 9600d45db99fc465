// Package rpc composes a transport, a codec and a logical clock into a
// single-flight request/reply session against the chat service.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync/atomic"

	"chat-bot/internal/clock"
	"chat-bot/internal/codec"
	"chat-bot/internal/transport"
)

// ClockField is the payload key carrying the logical clock.
const ClockField = "clock"

// ErrCallInFlight is returned when Call is invoked while another call on the
// same session has not resolved yet.
var ErrCallInFlight = errors.New("rpc: call already in flight")

// TransportError wraps a connection-level failure of one call.
type TransportError struct {
	Service string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rpc %s: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes every TransportError match transport.ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == transport.ErrTransport
}

// Option configures a Session.
type Option func(*Session)

// WithoutClockField stops the session from stamping the clock into outbound
// payloads, for service revisions that predate it. The clock still ticks
// and still merges reply clocks.
func WithoutClockField() Option {
	return func(s *Session) { s.stamp = false }
}

// Session performs one call at a time over a Transport.
type Session struct {
	transport transport.Transport
	codec     codec.Codec
	clock     *clock.Clock
	stamp     bool

	inflight atomic.Bool
}

// NewSession returns a session that owns t and a fresh logical clock.
func NewSession(t transport.Transport, c codec.Codec, opts ...Option) *Session {
	s := &Session{
		transport: t,
		codec:     c,
		clock:     clock.New(),
		stamp:     true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Call sends payload to service and returns the reply data with the clock
// field stripped. The caller's payload map is not modified.
//
// The reply clock is read from data.clock. When data carries none, a
// top-level clock on the reply envelope is merged instead, since some chat
// server revisions stamp it there; every other top-level field is ignored.
//
// Transport failures are returned as *TransportError, undecodable replies
// wrap codec.ErrMalformed. Nothing is retried here.
func (s *Session) Call(ctx context.Context, service string, payload map[string]any) (map[string]any, error) {
	if !s.inflight.CompareAndSwap(false, true) {
		return nil, ErrCallInFlight
	}
	defer s.inflight.Store(false)

	data := make(map[string]any, len(payload)+1)
	maps.Copy(data, payload)
	tick := s.clock.Tick()
	if s.stamp {
		data[ClockField] = int64(tick)
	} else {
		delete(data, ClockField)
	}

	req, err := s.codec.Encode(codec.Envelope{Service: service, Data: data})
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", service, err)
	}

	raw, err := s.transport.RoundTrip(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, &TransportError{Service: service, Err: err}
	}

	reply, err := s.codec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", service, err)
	}

	if received, ok := reply.Data[ClockField]; ok {
		s.clock.Merge(received)
		delete(reply.Data, ClockField)
	} else {
		s.clock.Merge(reply.Clock)
	}

	return reply.Data, nil
}

// Clock returns the current logical clock value.
func (s *Session) Clock() uint64 {
	return s.clock.Value()
}

// Close releases the underlying transport.
func (s *Session) Close() error {
	return s.transport.Close()
}
