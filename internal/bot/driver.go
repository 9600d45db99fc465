package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// ErrFatalStartup is returned by Run when login fails.
var ErrFatalStartup = errors.New("fatal startup error")

// Caller issues one request/reply call. *rpc.Session implements it.
type Caller interface {
	Call(ctx context.Context, service string, payload map[string]any) (map[string]any, error)
}

// Config tunes the workload.
type Config struct {
	DefaultChannel string        // created when discovery finds nothing
	ChannelsKey    string        // reply field holding the channel list
	BurstSize      int           // publish calls per iteration
	PublishPause   time.Duration // between consecutive publishes
	Cooldown       time.Duration // after a complete burst
	Backoff        time.Duration // after a failed iteration
}

// DefaultConfig returns the settings the chat deployment runs with.
//
// The chat service lists channels under "users"; that is its contract, not
// a typo on this side.
func DefaultConfig() Config {
	return Config{
		DefaultChannel: "geral",
		ChannelsKey:    "users",
		BurstSize:      10,
		PublishPause:   100 * time.Millisecond,
		Cooldown:       5 * time.Second,
		Backoff:        10 * time.Second,
	}
}

// Stats counts what a driver has done so far.
type Stats struct {
	Iterations uint64
	Publishes  uint64
	Failures   uint64
}

// iteration is the state of one pass through the loop.
type iteration struct {
	target string
	failed State
}

// Driver runs the workload for one identity.
type Driver struct {
	caller   Caller
	identity string
	config   Config
	logger   *log.Logger

	rng     *rand.Rand
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	observe func(from, to State)

	state      atomic.Int32
	iterations atomic.Uint64
	publishes  atomic.Uint64
	failures   atomic.Uint64
}

// New creates a driver. Empty names and a non-positive burst size fall back
// to DefaultConfig; zero durations mean no wait.
func New(caller Caller, identity string, config Config, logger *log.Logger) *Driver {
	def := DefaultConfig()
	if config.DefaultChannel == "" {
		config.DefaultChannel = def.DefaultChannel
	}
	if config.ChannelsKey == "" {
		config.ChannelsKey = def.ChannelsKey
	}
	if config.BurstSize <= 0 {
		config.BurstSize = def.BurstSize
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Driver{
		caller:   caller,
		identity: identity,
		config:   config,
		logger:   logger,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Identity returns the name the driver logs in and publishes as.
func (d *Driver) Identity() string {
	return d.identity
}

// State returns the current state.
func (d *Driver) State() State {
	return State(d.state.Load())
}

// Stats returns a snapshot of the counters.
func (d *Driver) Stats() Stats {
	return Stats{
		Iterations: d.iterations.Load(),
		Publishes:  d.publishes.Load(),
		Failures:   d.failures.Load(),
	}
}

// Run drives the state machine until ctx is done (nil) or login fails
// (an error wrapping ErrFatalStartup).
func (d *Driver) Run(ctx context.Context) error {
	var it iteration
	state := StateBootstrapping
	d.state.Store(int32(state))

	for state != StateStopped {
		next := StateStopped
		if ctx.Err() == nil {
			var err error
			next, err = d.step(ctx, state, &it)
			if err != nil {
				d.transition(state, StateStopped)
				return err
			}
		}
		d.transition(state, next)
		state = next
	}
	return nil
}

func (d *Driver) transition(from, to State) {
	d.state.Store(int32(to))
	if d.observe != nil {
		d.observe(from, to)
	}
}

func (d *Driver) step(ctx context.Context, state State, it *iteration) (State, error) {
	switch state {
	case StateBootstrapping:
		return StateLoggingIn, nil
	case StateLoggingIn:
		return d.login(ctx)
	case StateDiscovering:
		*it = iteration{}
		return d.discover(ctx, it), nil
	case StateEnsuring:
		return d.ensure(ctx, it), nil
	case StatePublishing:
		return d.publish(ctx, it), nil
	case StateCooldown:
		if d.sleep(ctx, d.config.Cooldown) != nil {
			return StateStopped, nil
		}
		return StateDiscovering, nil
	case StateBackoff:
		d.logger.Printf("[BOT][INFO] aguardando %s antes de recomeçar (falhou em %s)", d.config.Backoff, it.failed)
		if d.sleep(ctx, d.config.Backoff) != nil {
			return StateStopped, nil
		}
		return StateDiscovering, nil
	default:
		return StateStopped, fmt.Errorf("bot: unexpected state %s", state)
	}
}

func (d *Driver) login(ctx context.Context) (State, error) {
	data, err := d.caller.Call(ctx, "login", map[string]any{
		"user":      d.identity,
		"timestamp": d.timestamp(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return StateStopped, nil
		}
		d.logger.Printf("[BOT][ERRO] login: %v", err)
		return StateStopped, fmt.Errorf("%w: login %s: %w", ErrFatalStartup, d.identity, err)
	}
	if status(data) == "erro" {
		reason := describe(data)
		d.logger.Printf("[BOT][ERRO] login recusado: %s", reason)
		return StateStopped, fmt.Errorf("%w: login %s refused: %s", ErrFatalStartup, d.identity, reason)
	}

	d.logger.Printf("[BOT][INFO] %s fez login", d.identity)
	return StateDiscovering, nil
}

func (d *Driver) discover(ctx context.Context, it *iteration) State {
	d.iterations.Add(1)

	data, err := d.caller.Call(ctx, "channels", map[string]any{
		"timestamp": d.timestamp(),
	})
	if err != nil {
		return d.fail(ctx, StateDiscovering, err, it)
	}

	channels := channelList(data, d.config.ChannelsKey)
	if len(channels) == 0 {
		return StateEnsuring
	}
	it.target = channels[d.rng.IntN(len(channels))]
	return StatePublishing
}

func (d *Driver) ensure(ctx context.Context, it *iteration) State {
	name := d.config.DefaultChannel
	data, err := d.caller.Call(ctx, "channel", map[string]any{
		"channel":   name,
		"timestamp": d.timestamp(),
	})
	if err != nil {
		return d.fail(ctx, StateEnsuring, err, it)
	}

	if status(data) == "erro" {
		// another bot may have created it first
		d.logger.Printf("[BOT][WARN] canal '%s': %s", name, describe(data))
	} else {
		d.logger.Printf("[BOT][INFO] criou o canal padrão '%s'", name)
	}
	it.target = name
	return StatePublishing
}

func (d *Driver) publish(ctx context.Context, it *iteration) State {
	n := d.config.BurstSize
	d.logger.Printf("[BOT][INFO] publicando %d mensagens no canal '%s'", n, it.target)

	for i := 0; i < n; i++ {
		data, err := d.caller.Call(ctx, "publish", map[string]any{
			"user":      d.identity,
			"channel":   it.target,
			"message":   fmt.Sprintf("Mensagem aleatória %d de %s", i, d.identity),
			"timestamp": d.timestamp(),
		})
		if err != nil {
			return d.fail(ctx, StatePublishing, fmt.Errorf("message %d/%d: %w", i+1, n, err), it)
		}
		d.publishes.Add(1)
		if status(data) == "erro" {
			d.logger.Printf("[BOT][WARN] publish %d em '%s': %s", i, it.target, describe(data))
		}

		if i < n-1 {
			if d.sleep(ctx, d.config.PublishPause) != nil {
				return StateStopped
			}
		}
	}

	d.logger.Printf("[BOT][INFO] publicação concluída, aguardando %s", d.config.Cooldown)
	return StateCooldown
}

// fail records a loop error and moves to Backoff, or to Stopped when the
// error came from shutdown.
func (d *Driver) fail(ctx context.Context, step State, err error, it *iteration) State {
	if ctx.Err() != nil {
		return StateStopped
	}
	d.failures.Add(1)
	it.failed = step
	d.logger.Printf("[BOT][ERRO] %s: %v", step, err)
	return StateBackoff
}

func (d *Driver) timestamp() int64 {
	return d.now().Unix()
}

// channelList reads the channel names under key. A missing or mistyped
// field yields an empty list.
func channelList(data map[string]any, key string) []string {
	var out []string
	switch v := data[key].(type) {
	case []string:
		for _, s := range v {
			if s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func status(data map[string]any) string {
	s, _ := data["status"].(string)
	return s
}

func describe(data map[string]any) string {
	for _, k := range []string{"description", "message"} {
		if s, ok := data[k].(string); ok && s != "" {
			return s
		}
	}
	return "sem descrição"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
