package stub

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"chat-bot/internal/codec"
	"chat-bot/internal/rpc"
	"chat-bot/internal/transport"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestHandle(t *testing.T) {
	s := New(codec.MsgpackCodec{}, "", quietLogger())

	tests := []struct {
		service string
		data    map[string]any
		status  any
	}{
		{"login", map[string]any{"user": " Bot-1 "}, "sucesso"},
		{"login", map[string]any{}, "erro"},
		{"channel", map[string]any{"channel": "Geral"}, "sucesso"},
		{"channel", map[string]any{"channel": "geral"}, "erro"},
		{"channel", map[string]any{"channel": "  "}, "erro"},
		{"publish", map[string]any{"channel": "geral", "user": "bot-1", "message": "oi"}, "sucesso"},
		{"publish", map[string]any{"channel": "nope", "message": "oi"}, "erro"},
		{"publish", map[string]any{"channel": "geral"}, "erro"},
		{"unknown", map[string]any{}, "erro"},
	}

	for i, tt := range tests {
		resp := s.Handle(codec.Envelope{Service: tt.service, Data: tt.data})
		if resp.Data["status"] != tt.status {
			t.Errorf("#%d %s: status %v, want %v (%#v)", i, tt.service, resp.Data["status"], tt.status, resp.Data)
		}
		if _, ok := resp.Data["clock"].(int64); !ok {
			t.Errorf("#%d %s: reply carries no clock", i, tt.service)
		}
	}

	if got := s.Users(); len(got) != 1 || got[0] != "bot-1" {
		t.Errorf("unexpected users %v", got)
	}
	if got := s.Channels(); len(got) != 1 || got[0] != "geral" {
		t.Errorf("unexpected channels %v", got)
	}
	if s.Published("GERAL") != 1 {
		t.Errorf("expected 1 published message, got %d", s.Published("geral"))
	}
}

func TestHandleChannelsKey(t *testing.T) {
	s := New(codec.MsgpackCodec{}, "channels", quietLogger())
	s.Handle(codec.Envelope{Service: "channel", Data: map[string]any{"channel": "room1"}})

	resp := s.Handle(codec.Envelope{Service: "channels", Data: map[string]any{}})
	list, ok := resp.Data["channels"].([]string)
	if !ok || len(list) != 1 || list[0] != "room1" {
		t.Errorf("unexpected channels reply %#v", resp.Data)
	}

	def := New(codec.MsgpackCodec{}, "", quietLogger())
	resp = def.Handle(codec.Envelope{Service: "channels", Data: map[string]any{}})
	if _, ok := resp.Data[DefaultChannelsKey]; !ok {
		t.Errorf("expected list under %q, got %#v", DefaultChannelsKey, resp.Data)
	}
}

func TestHandleClock(t *testing.T) {
	s := New(codec.JSONCodec{}, "", quietLogger())

	resp := s.Handle(codec.Envelope{Service: "channels", Data: map[string]any{"clock": int64(10)}})
	if resp.Data["clock"] != int64(11) {
		t.Errorf("expected reply clock 11, got %v", resp.Data["clock"])
	}
	resp = s.Handle(codec.Envelope{Service: "channels", Data: map[string]any{"clock": int64(2)}})
	if resp.Data["clock"] != int64(12) {
		t.Errorf("expected reply clock 12, got %v", resp.Data["clock"])
	}
}

func TestHandleBytesMalformed(t *testing.T) {
	s := New(codec.MsgpackCodec{}, "", quietLogger())
	if got := s.HandleBytes([]byte{0xc1}); string(got) != "ERR" {
		t.Errorf("expected ERR, got %q", got)
	}
}

func TestServeOverZMQ(t *testing.T) {
	for _, name := range []string{codec.Binary, codec.Text} {
		t.Run(name, func(t *testing.T) {
			c, _ := codec.New(name)
			s := New(c, "", quietLogger())
			addr := "inproc://stub-serve-" + name

			ctx, cancel := context.WithCancel(context.Background())
			served := make(chan error, 1)
			go func() { served <- s.Serve(ctx, addr) }()
			defer func() {
				cancel()
				if err := <-served; err != nil {
					t.Errorf("serve: %v", err)
				}
			}()

			// inproc needs the bind to happen before the connect
			time.Sleep(50 * time.Millisecond)

			tr, err := transport.DialZMQ(addr, 2*time.Second, quietLogger())
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			session := rpc.NewSession(tr, c)
			defer session.Close()

			if _, err := session.Call(ctx, "login", map[string]any{"user": "bot-zmq"}); err != nil {
				t.Fatalf("login: %v", err)
			}
			if _, err := session.Call(ctx, "channel", map[string]any{"channel": "geral"}); err != nil {
				t.Fatalf("channel: %v", err)
			}
			data, err := session.Call(ctx, "channels", map[string]any{})
			if err != nil {
				t.Fatalf("channels: %v", err)
			}
			list, _ := data[DefaultChannelsKey].([]any)
			if len(list) != 1 || list[0] != "geral" {
				t.Errorf("unexpected channels reply %#v", data)
			}
			if _, err := session.Call(ctx, "publish", map[string]any{"channel": "geral", "user": "bot-zmq", "message": "oi"}); err != nil {
				t.Fatalf("publish: %v", err)
			}

			if s.Published("geral") != 1 {
				t.Errorf("expected 1 published message, got %d", s.Published("geral"))
			}
			// 4 round trips against a peer that ticks after every merge
			if session.Clock() != 8 {
				t.Errorf("expected session clock 8, got %d", session.Clock())
			}
		})
	}
}
