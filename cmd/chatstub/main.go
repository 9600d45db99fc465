// Command chatstub serves an in-memory chat service on a REP socket, for
// running bots without the full broker and server stack.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chat-bot/internal/codec"
	"chat-bot/internal/stub"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	addr := flag.String("addr", getenv("STUB_ADDRESS", "tcp://*:5555"), "endereço REP")
	codecName := flag.String("codec", getenv("STUB_CODEC", codec.Binary), "codec (binary/text)")
	channelsKey := flag.String("channels-key", getenv("STUB_CHANNELS_KEY", stub.DefaultChannelsKey), "campo da lista de canais")
	flag.Parse()

	c, err := codec.New(*codecName)
	if err != nil {
		log.Fatalf("[STUB] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := stub.New(c, *channelsKey, log.Default())
	if err := srv.Serve(ctx, *addr); err != nil {
		log.Fatalf("[STUB] %v", err)
	}
	log.Printf("[STUB] encerrando: %d usuários, %d canais", len(srv.Users()), len(srv.Channels()))
}

func getenv(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}
