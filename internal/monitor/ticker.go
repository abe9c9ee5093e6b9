package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrAlreadyRunning is returned by Start while a loop is active.
	ErrAlreadyRunning = errors.New("monitor: already running")
	// ErrNotRunning is returned by Wait when no loop was ever started.
	ErrNotRunning = errors.New("monitor: not running")
)

// TickFunc is invoked once per cycle.
type TickFunc func(ctx context.Context, now time.Time) error

// Ticker drives periodic evaluation. It owns a single background goroutine;
// Stop is cooperative and never interrupts an in-flight cycle.
type Ticker struct {
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTicker constructs a Ticker with the given cycle interval.
func NewTicker(interval time.Duration, logger zerolog.Logger) *Ticker {
	if interval <= 0 {
		panic("ticker interval must be positive")
	}
	return &Ticker{
		interval: interval,
		logger:   logger.With().Str("component", "ticker").Logger(),
	}
}

// Start launches the periodic loop. The first cycle runs immediately,
// subsequent ones every interval. Starting a running ticker fails with
// ErrAlreadyRunning.
func (t *Ticker) Start(ctx context.Context, tick TickFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done
	t.running = true

	go t.loop(loopCtx, tick, done)

	t.logger.Info().Dur("interval", t.interval).Msg("monitoring started")
	return nil
}

func (t *Ticker) loop(ctx context.Context, tick TickFunc, done chan struct{}) {
	defer close(done)

	t.runOnce(ctx, tick, time.Now().UTC())

	timer := time.NewTimer(t.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("monitoring loop exited")
			return
		case now := <-timer.C:
			t.runOnce(ctx, tick, now.UTC())
			timer.Reset(t.interval)
		}
	}
}

// runOnce executes one cycle. Cycle errors are logged and the loop keeps
// running.
func (t *Ticker) runOnce(ctx context.Context, tick TickFunc, now time.Time) {
	if ctx.Err() != nil {
		return
	}
	if err := tick(ctx, now); err != nil {
		t.logger.Error().Err(err).Time("cycle", now).Msg("cycle execution failed")
	}
}

// Stop signals the loop to exit. The loop observes the signal at its next
// wakeup; an in-flight cycle finishes first. Stopping a stopped ticker is a
// no-op.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.cancel()
	t.running = false
	t.logger.Info().Msg("monitoring stop requested")
}

// Wait blocks until the current loop goroutine has exited. It returns
// ErrNotRunning when the ticker was never started.
func (t *Ticker) Wait() error {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	if done == nil {
		return ErrNotRunning
	}
	<-done
	return nil
}

// Running reports whether the ticker is between Start and Stop.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
