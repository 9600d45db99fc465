// Package codec serializes the request/reply envelopes exchanged with the
// chat service. Two interchangeable strategies exist: MessagePack ("binary")
// and JSON ("text"). Both produce the same normalized Envelope on decode.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformed is returned by Decode for truncated or type-mismatched input.
var ErrMalformed = errors.New("malformed message")

// Envelope é o formato padrão de troca de mensagens.
//
// Requests carry Service and Data. Replies carry Data and may carry extra
// top-level fields; only Clock is kept, since some service revisions stamp
// their logical clock there instead of inside Data.
type Envelope struct {
	Service string         `msgpack:"service,omitempty" json:"service,omitempty"`
	Data    map[string]any `msgpack:"data" json:"data"`
	Clock   any            `msgpack:"clock,omitempty" json:"clock,omitempty"`
}

// Codec converts envelopes to bytes and back.
type Codec interface {
	Name() string
	Encode(env Envelope) ([]byte, error)
	Decode(raw []byte) (Envelope, error)
}

const (
	Binary = "binary"
	Text   = "text"
)

// New returns the codec registered under name. "msgpack" and "json" are
// accepted as aliases.
func New(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Binary, "msgpack":
		return MsgpackCodec{}, nil
	case Text, "json":
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec: %q", name)
	}
}

func malformed(codec string, err error) error {
	return fmt.Errorf("%s decode: %w: %v", codec, ErrMalformed, err)
}

// finish normalizes a freshly decoded envelope so both codecs yield the
// same value types.
func finish(env Envelope) Envelope {
	if env.Data == nil {
		env.Data = map[string]any{}
	}
	for k, v := range env.Data {
		env.Data[k] = Normalize(v)
	}
	env.Clock = Normalize(env.Clock)
	return env
}

// Normalize maps decoded values onto a small canonical set: integers become
// int64 (uint64 only when out of range), floats become float64, arrays
// become []any and string-keyed maps become map[string]any.
func Normalize(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case uint:
		return normalizeUint(uint64(t))
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return normalizeUint(t)
	case float32:
		return float64(t)
	case json.Number:
		// the literal decides: "2" is an integer, "2.0" and "2e0" are floats
		if !strings.ContainsAny(t.String(), ".eE") {
			if i, err := t.Int64(); err == nil {
				return i
			}
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = Normalize(e)
		}
		return out
	default:
		return v
	}
}

func normalizeUint(u uint64) any {
	if u > math.MaxInt64 {
		return u
	}
	return int64(u)
}
