package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// JSONCodec is the plain text strategy.
type JSONCodec struct{}

func (JSONCodec) Name() string { return Text }

func (JSONCodec) Encode(env Envelope) ([]byte, error) {
	out := Envelope{Service: env.Service, Clock: floatsAsFloats(env.Clock)}
	if env.Data != nil {
		out.Data = floatsAsFloats(env.Data).(map[string]any)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return raw, nil
}

func (JSONCodec) Decode(raw []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, malformed("json", errors.New("not an object"))
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, malformed("json", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Envelope{}, malformed("json", errors.New("trailing data after object"))
	}
	return finish(env), nil
}

// jsonFloat keeps a decimal point on whole values, so 2.0 reads back as a
// float and not as the integer 2.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil, fmt.Errorf("unsupported float value: %v", v)
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return []byte(s), nil
}

// floatsAsFloats copies v, wrapping every float in jsonFloat.
func floatsAsFloats(v any) any {
	switch t := v.(type) {
	case float64:
		return jsonFloat(t)
	case float32:
		return jsonFloat(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = floatsAsFloats(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = floatsAsFloats(e)
		}
		return out
	default:
		return v
	}
}
