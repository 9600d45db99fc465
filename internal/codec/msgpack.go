package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackCodec is the compact binary strategy.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return Binary }

func (MsgpackCodec) Encode(env Envelope) ([]byte, error) {
	raw, err := msgpack.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("msgpack encode: %w", err)
	}
	return raw, nil
}

func (MsgpackCodec) Decode(raw []byte) (Envelope, error) {
	if len(raw) == 0 {
		return Envelope{}, malformed("msgpack", errors.New("empty message"))
	}

	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.UseLooseInterfaceDecoding(true)

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, malformed("msgpack", err)
	}
	return finish(env), nil
}
