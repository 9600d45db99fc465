package transport

import (
	"context"
	"fmt"
	"log"
	"sync"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"
)

const pollSlice = 100 * time.Millisecond

// ZMQ is a REQ socket connected to a fixed endpoint.
//
// A REQ socket that missed a reply can neither send nor receive again, so
// after any failure the socket is closed and a fresh one is connected on
// the next RoundTrip.
type ZMQ struct {
	addr    string
	timeout time.Duration
	logger  *log.Logger

	mu     sync.Mutex
	sock   *zmq.Socket
	closed bool
}

// DialZMQ connects a REQ socket to addr. timeout bounds both the send and
// the wait for the reply.
func DialZMQ(addr string, timeout time.Duration, logger *log.Logger) (*ZMQ, error) {
	if logger == nil {
		logger = log.Default()
	}
	t := &ZMQ{addr: addr, timeout: timeout, logger: logger}
	if err := t.connect(); err != nil {
		return nil, err
	}
	return t, nil
}

// Addr returns the endpoint the socket connects to.
func (t *ZMQ) Addr() string {
	return t.addr
}

func (t *ZMQ) connect() error {
	sock, err := zmq.NewSocket(zmq.REQ)
	if err != nil {
		return fmt.Errorf("%w: new REQ socket: %v", ErrTransport, err)
	}
	// pending requests are dropped on close
	if err := sock.SetLinger(0); err != nil {
		sock.Close()
		return fmt.Errorf("%w: set linger: %v", ErrTransport, err)
	}
	if t.timeout > 0 {
		if err := sock.SetSndtimeo(t.timeout); err != nil {
			sock.Close()
			return fmt.Errorf("%w: set send timeout: %v", ErrTransport, err)
		}
	}
	if err := sock.Connect(t.addr); err != nil {
		sock.Close()
		return fmt.Errorf("%w: connect %s: %v", ErrTransport, t.addr, err)
	}
	t.sock = sock
	return nil
}

func (t *ZMQ) reset() {
	if t.sock == nil {
		return
	}
	if err := t.sock.Close(); err != nil {
		t.logger.Printf("[ZMQ][WARN] close %s: %v", t.addr, err)
	}
	t.sock = nil
}

// RoundTrip sends req and blocks until the reply, the timeout or ctx ends.
func (t *ZMQ) RoundTrip(ctx context.Context, req []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, fmt.Errorf("%w: %w", ErrTransport, ErrClosed)
	}
	if t.sock == nil {
		if err := t.connect(); err != nil {
			return nil, err
		}
	}

	if _, err := t.sock.SendBytes(req, 0); err != nil {
		t.reset()
		return nil, fmt.Errorf("%w: send %s: %v", ErrTransport, t.addr, err)
	}

	poller := zmq.NewPoller()
	poller.Add(t.sock, zmq.POLLIN)

	var deadline time.Time
	if t.timeout > 0 {
		deadline = time.Now().Add(t.timeout)
	}

	for {
		if err := ctx.Err(); err != nil {
			t.reset()
			return nil, err
		}

		wait := pollSlice
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				t.reset()
				return nil, fmt.Errorf("%w: %s after %s: %w", ErrTransport, t.addr, t.timeout, ErrTimeout)
			}
			wait = min(wait, remaining)
		}

		polled, err := poller.Poll(wait)
		if err != nil {
			if zmq.AsErrno(err) == zmq.Errno(syscall.EINTR) {
				continue
			}
			t.reset()
			return nil, fmt.Errorf("%w: poll %s: %v", ErrTransport, t.addr, err)
		}
		if len(polled) == 0 {
			continue
		}

		reply, err := t.sock.RecvBytes(0)
		if err != nil {
			t.reset()
			return nil, fmt.Errorf("%w: recv %s: %v", ErrTransport, t.addr, err)
		}
		return reply, nil
	}
}

// Close releases the socket. Further calls to RoundTrip fail.
func (t *ZMQ) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.sock == nil {
		return nil
	}
	err := t.sock.Close()
	t.sock = nil
	return err
}
