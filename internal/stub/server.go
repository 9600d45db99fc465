// Package stub is a small in-memory chat service that speaks the broker's
// request/reply protocol. It backs local runs of the bot and the
// integration tests; it keeps no state across restarts.
package stub

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"

	"chat-bot/internal/clock"
	"chat-bot/internal/codec"
)

// DefaultChannelsKey is the reply field the chat service lists channels under.
const DefaultChannelsKey = "users"

// Server holds users, channels and published message counts.
type Server struct {
	codec       codec.Codec
	channelsKey string
	logger      *log.Logger

	mu        sync.Mutex
	clock     *clock.Clock
	users     []string
	channels  []string
	published map[string]int
}

// New returns an empty server. An empty channelsKey selects DefaultChannelsKey.
func New(c codec.Codec, channelsKey string, logger *log.Logger) *Server {
	if channelsKey == "" {
		channelsKey = DefaultChannelsKey
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		codec:       c,
		channelsKey: channelsKey,
		logger:      logger,
		clock:       clock.New(),
		published:   map[string]int{},
	}
}

// HandleBytes decodes one request and encodes its reply. REP precisa
// responder SEMPRE, so undecodable input gets a raw "ERR".
func (s *Server) HandleBytes(raw []byte) []byte {
	req, err := s.codec.Decode(raw)
	if err != nil {
		s.logger.Printf("[STUB][ERRO] decode: %v", err)
		return []byte("ERR")
	}

	out, err := s.codec.Encode(s.Handle(req))
	if err != nil {
		s.logger.Printf("[STUB][ERRO] encode: %v", err)
		return []byte("ERR")
	}
	return out
}

// Handle dispatches one decoded request.
func (s *Server) Handle(req codec.Envelope) codec.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock.Merge(req.Data["clock"])

	var data map[string]any
	switch req.Service {
	case "login":
		data = s.login(req.Data)
	case "users":
		data = map[string]any{"users": slices.Clone(s.users)}
	case "channels":
		data = map[string]any{s.channelsKey: slices.Clone(s.channels)}
	case "channel":
		data = s.createChannel(req.Data)
	case "publish":
		data = s.publish(req.Data)
	default:
		data = failure("serviço desconhecido")
	}

	data["clock"] = int64(s.clock.Tick())
	return codec.Envelope{Service: req.Service, Data: data}
}

func (s *Server) login(in map[string]any) map[string]any {
	user := normalize(in["user"])
	if user == "" {
		return map[string]any{"status": "erro", "description": "usuário inválido"}
	}
	if !slices.Contains(s.users, user) {
		s.users = append(s.users, user)
	}
	return map[string]any{"status": "sucesso", "user": user}
}

func (s *Server) createChannel(in map[string]any) map[string]any {
	ch := normalize(in["channel"])
	if ch == "" {
		return failure("nome inválido")
	}
	if slices.Contains(s.channels, ch) {
		return failure("canal já existe")
	}
	s.channels = append(s.channels, ch)
	s.logger.Printf("[STUB][INFO] canal criado: %s", ch)
	return map[string]any{"status": "sucesso", "channel": ch}
}

func (s *Server) publish(in map[string]any) map[string]any {
	ch := normalize(in["channel"])
	if !slices.Contains(s.channels, ch) {
		return failure("canal inexistente")
	}
	if _, ok := in["message"].(string); !ok {
		return failure("mensagem inválida")
	}
	s.published[ch]++
	return map[string]any{"status": "sucesso"}
}

// Channels returns a copy of the channel list.
func (s *Server) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.channels)
}

// Users returns a copy of the logged-in users.
func (s *Server) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.users)
}

// Published returns how many messages were accepted on channel.
func (s *Server) Published(channel string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published[normalize(channel)]
}

// Serve binds a REP socket on addr and answers requests until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	rep, err := zmq.NewSocket(zmq.REP)
	if err != nil {
		return fmt.Errorf("new REP socket: %w", err)
	}
	defer rep.Close()

	if err := rep.SetLinger(0); err != nil {
		return fmt.Errorf("set linger: %w", err)
	}
	if err := rep.Bind(addr); err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	s.logger.Printf("[STUB][INFO] REP em %s (codec %s)", addr, s.codec.Name())

	poller := zmq.NewPoller()
	poller.Add(rep, zmq.POLLIN)

	for {
		if ctx.Err() != nil {
			return nil
		}

		polled, err := poller.Poll(100 * time.Millisecond)
		if err != nil {
			if zmq.AsErrno(err) == zmq.Errno(syscall.EINTR) {
				continue
			}
			return fmt.Errorf("poll: %w", err)
		}
		if len(polled) == 0 {
			continue
		}

		raw, err := rep.RecvBytes(0)
		if err != nil {
			s.logger.Printf("[STUB][ERRO] recv: %v", err)
			continue
		}
		if _, err := rep.SendBytes(s.HandleBytes(raw), 0); err != nil {
			s.logger.Printf("[STUB][ERRO] send: %v", err)
		}
	}
}

func failure(msg string) map[string]any {
	return map[string]any{"status": "erro", "message": msg}
}

func normalize(v any) string {
	s, _ := v.(string)
	return strings.ToLower(strings.TrimSpace(s))
}
