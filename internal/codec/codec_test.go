package codec

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"testing"
)

func codecs(t *testing.T) []Codec {
	t.Helper()
	var out []Codec
	for _, name := range []string{Binary, Text} {
		c, err := New(name)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		out = append(out, c)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"binary", Binary, false},
		{"msgpack", Binary, false},
		{" TEXT ", Text, false},
		{"json", Text, false},
		{"protobuf", "", true},
	}

	for _, tt := range tests {
		c, err := New(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("New(%q): expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("New(%q): unexpected error %v", tt.name, err)
			continue
		}
		if c.Name() != tt.want {
			t.Errorf("New(%q).Name() = %q, want %q", tt.name, c.Name(), tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	envelopes := []Envelope{
		{
			Service: "login",
			Data: map[string]any{
				"user":      "bot-1a2b3c4d",
				"timestamp": int64(1760400000),
				"clock":     int64(1),
			},
		},
		{
			Service: "publish",
			Data: map[string]any{
				"user":      "bot-1a2b3c4d",
				"channel":   "geral",
				"message":   "Mensagem aleatória 3 de bot-1a2b3c4d",
				"timestamp": int64(1760400001),
			},
		},
		{
			Data: map[string]any{
				"users":  []any{"geral", "random"},
				"status": "sucesso",
				"ratio":  0.25,
				"whole":  float64(2),
				"big":    1e21,
				"floats": []any{float64(3), -0.5},
				"ok":     true,
				"nested": map[string]any{"clock": int64(42)},
			},
			Clock: int64(7),
		},
		{
			Data: map[string]any{},
		},
	}

	for _, c := range codecs(t) {
		for i, env := range envelopes {
			raw, err := c.Encode(env)
			if err != nil {
				t.Fatalf("%s: encode #%d: %v", c.Name(), i, err)
			}
			got, err := c.Decode(raw)
			if err != nil {
				t.Fatalf("%s: decode #%d: %v", c.Name(), i, err)
			}
			if !reflect.DeepEqual(got, env) {
				t.Errorf("%s: round trip #%d\n got  %#v\n want %#v", c.Name(), i, got, env)
			}
		}
	}
}

func TestDecodeNormalizesIntegers(t *testing.T) {
	for _, c := range codecs(t) {
		raw, err := c.Encode(Envelope{Service: "x", Data: map[string]any{"n": 5, "u": uint8(9)}})
		if err != nil {
			t.Fatalf("%s: encode: %v", c.Name(), err)
		}
		got, err := c.Decode(raw)
		if err != nil {
			t.Fatalf("%s: decode: %v", c.Name(), err)
		}
		if got.Data["n"] != int64(5) || got.Data["u"] != int64(9) {
			t.Errorf("%s: expected int64 values, got %#v", c.Name(), got.Data)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, c := range codecs(t) {
		good, err := c.Encode(Envelope{Service: "channels", Data: map[string]any{"timestamp": int64(1)}})
		if err != nil {
			t.Fatalf("%s: encode: %v", c.Name(), err)
		}

		inputs := map[string][]byte{
			"empty":     nil,
			"truncated": good[:len(good)/2],
			"raw ERR":   []byte("ERR"),
		}
		for name, raw := range inputs {
			_, err := c.Decode(raw)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("%s/%s: expected ErrMalformed, got %v", c.Name(), name, err)
			}
		}
	}
}

func TestDecodeTypeMismatch(t *testing.T) {
	_, err := JSONCodec{}.Decode([]byte(`{"data":"not a map"}`))
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("json: expected ErrMalformed, got %v", err)
	}
	_, err = JSONCodec{}.Decode([]byte(`{"service":12,"data":{}}`))
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("json: expected ErrMalformed for numeric service, got %v", err)
	}

	// fixstr "x" where a map is expected
	_, err = MsgpackCodec{}.Decode([]byte{0xa1, 'x'})
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("msgpack: expected ErrMalformed, got %v", err)
	}
}

func TestJSONWholeFloats(t *testing.T) {
	raw, err := JSONCodec{}.Encode(Envelope{Data: map[string]any{"f": float64(2), "i": int64(2)}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Contains(raw, []byte(`"f":2.0`)) || !bytes.Contains(raw, []byte(`"i":2`)) {
		t.Errorf("unexpected encoding %s", raw)
	}

	got, err := JSONCodec{}.Decode([]byte(`{"data":{"a":2,"b":2.0,"c":2e0,"d":-7}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]any{"a": int64(2), "b": float64(2), "c": float64(2), "d": int64(-7)}
	if !reflect.DeepEqual(got.Data, want) {
		t.Errorf("got %#v, want %#v", got.Data, want)
	}
}

func TestJSONTrailingData(t *testing.T) {
	for _, raw := range []string{`{"data":{}}garbage`, `{"data":{}}{"data":{}}`, `{"data":{}} 1`} {
		if _, err := (JSONCodec{}).Decode([]byte(raw)); !errors.Is(err, ErrMalformed) {
			t.Errorf("%q: expected ErrMalformed, got %v", raw, err)
		}
	}
	if _, err := (JSONCodec{}).Decode([]byte("{\"data\":{}}\n")); err != nil {
		t.Errorf("trailing newline should be accepted: %v", err)
	}
}

func TestJSONEncodeRejectsNaN(t *testing.T) {
	if _, err := (JSONCodec{}).Encode(Envelope{Data: map[string]any{"x": math.NaN()}}); err == nil {
		t.Error("expected error encoding NaN")
	}
}

func TestDecodeMissingData(t *testing.T) {
	for _, c := range codecs(t) {
		raw, err := c.Encode(Envelope{Service: "heartbeat"})
		if err != nil {
			t.Fatalf("%s: encode: %v", c.Name(), err)
		}
		got, err := c.Decode(raw)
		if err != nil {
			t.Fatalf("%s: decode: %v", c.Name(), err)
		}
		if got.Data == nil || len(got.Data) != 0 {
			t.Errorf("%s: expected empty data map, got %#v", c.Name(), got.Data)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{int32(-3), int64(-3)},
		{uint64(10), int64(10)},
		{uint64(1 << 63), uint64(1 << 63)},
		{float32(0.5), float64(0.5)},
		{map[any]any{"k": int8(1)}, map[string]any{"k": int64(1)}},
		{nil, nil},
		{"s", "s"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Normalize(%#v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}
