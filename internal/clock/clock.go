// Package clock implements the Lamport logical clock each bot keeps with the
// chat service.
//
// The clock is advanced once per outbound request and merged once per reply.
// It is owned by a single rpc.Session and is not safe for concurrent use.
package clock

import (
	"encoding/json"
	"math"
)

// Max is the largest clock value. The wire carries clocks as int64.
const Max = math.MaxInt64

// Clock is a process-local, monotonically non-decreasing counter.
type Clock struct {
	value uint64
}

// New returns a clock starting at zero.
func New() *Clock {
	return &Clock{}
}

// Tick increments the clock and returns the new value. It saturates at Max.
func (c *Clock) Tick() uint64 {
	if c.value < Max {
		c.value++
	}
	return c.value
}

// Merge sets the clock to max(current, received) when received is a valid
// non-negative integer no larger than Max. Anything else (nil, negative,
// fractional, out of range, strings) leaves the clock unchanged. It reports whether received was accepted.
func (c *Clock) Merge(received any) bool {
	v, ok := asClock(received)
	if !ok {
		return false
	}
	if v > c.value {
		c.value = v
	}
	return true
}

// Value returns the current clock.
func (c *Clock) Value() uint64 {
	return c.value
}

func asClock(v any) (uint64, bool) {
	switch t := v.(type) {
	case int:
		return signed(int64(t))
	case int8:
		return signed(int64(t))
	case int16:
		return signed(int64(t))
	case int32:
		return signed(int64(t))
	case int64:
		return signed(t)
	case uint:
		return bounded(uint64(t))
	case uint8:
		return bounded(uint64(t))
	case uint16:
		return bounded(uint64(t))
	case uint32:
		return bounded(uint64(t))
	case uint64:
		return bounded(t)
	case float32:
		return integral(float64(t))
	case float64:
		// JSON peers without UseNumber send every number as float64
		return integral(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return signed(i)
		}
		return 0, false
	default:
		return 0, false
	}
}

func signed(i int64) (uint64, bool) {
	if i < 0 {
		return 0, false
	}
	return uint64(i), true
}

func bounded(u uint64) (uint64, bool) {
	if u > Max {
		return 0, false
	}
	return u, true
}

func integral(f float64) (uint64, bool) {
	// float64(Max) rounds up to 2^63, which is already out of range
	if f < 0 || f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) || f >= float64(Max) {
		return 0, false
	}
	return uint64(f), true
}
