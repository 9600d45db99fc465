// Command bot runs one or more synthetic chat clients against the broker.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"chat-bot/internal/bot"
	"chat-bot/internal/codec"
	"chat-bot/internal/config"
	"chat-bot/internal/rpc"
	"chat-bot/internal/transport"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	configFile := flag.String("config", "", "arquivo de configuração (YAML/TOML)")
	bots := flag.Int("bots", 0, "quantidade de bots neste processo (sobrepõe a configuração)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("[BOT] configuração inválida: %v", err)
	}
	if *bots > 0 {
		cfg.Bots = *bots
	}

	c, err := codec.New(cfg.Codec)
	if err != nil {
		log.Fatalf("[BOT] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("[BOT] REQ %s | SUB %s (não utilizado) | codec %s | %d bot(s)",
		cfg.RequestAddress, cfg.SubscribeAddress, c.Name(), cfg.Bots)

	runAll(ctx, cfg.Bots, func(ctx context.Context) error {
		return runBot(ctx, cfg, c)
	})
	log.Println("[BOT] encerrado")
}

// runAll runs n bots and returns once ctx is done. Bots that stop on their
// own, such as after a refused login, do not end the process.
func runAll(ctx context.Context, n int, run func(context.Context) error) {
	var wg sync.WaitGroup
	var failed atomic.Int32
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				failed.Add(1)
			}
		}()
	}
	wg.Wait()

	if ctx.Err() == nil {
		log.Printf("[BOT] %d de %d bot(s) encerrados com erro, aguardando sinal de término", failed.Load(), n)
		<-ctx.Done()
	}
}

// runBot owns one identity, socket, session and driver. The socket is
// closed before it returns.
func runBot(ctx context.Context, cfg config.Config, c codec.Codec) error {
	id := bot.NewIdentity()
	logger := log.New(os.Stderr, "["+id+"] ", log.LstdFlags|log.Lmicroseconds)

	tr, err := transport.DialZMQ(cfg.RequestAddress, cfg.Timeout, logger)
	if err != nil {
		logger.Printf("[BOT][ERRO] %v", err)
		return err
	}

	var opts []rpc.Option
	if !cfg.Clock {
		opts = append(opts, rpc.WithoutClockField())
	}
	session := rpc.NewSession(tr, c, opts...)
	defer func() {
		if err := session.Close(); err != nil {
			logger.Printf("[BOT][WARN] fechando socket: %v", err)
		}
		logger.Println("[BOT][INFO] socket fechado")
	}()

	driver := bot.New(session, id, cfg.Workload, logger)
	logger.Printf("[BOT][INFO] %s iniciado", id)

	err = driver.Run(ctx)
	if err != nil {
		logger.Printf("[BOT][ERRO] %v", err)
	}

	s := driver.Stats()
	logger.Printf("[BOT][INFO] iterações=%d publicações=%d falhas=%d relógio=%d",
		s.Iterations, s.Publishes, s.Failures, session.Clock())
	return err
}
