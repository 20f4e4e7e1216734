// Package bot schedules decision cycles per (user, instrument) and forwards
// qualifying signals to execution.
package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tradebot-go/internal/execution"
	"tradebot-go/internal/generator"
	"tradebot-go/internal/metrics"
	"tradebot-go/internal/signal"
)

// DefaultInterval is used when Config.Interval is unset.
const DefaultInterval = 30 * time.Second

// Config identifies one bot.
type Config struct {
	UserID     string        `json:"user_id" validate:"required"`
	Instrument string        `json:"instrument" validate:"required"`
	Strategy   string        `json:"strategy" validate:"required"`
	Interval   time.Duration `json:"interval"`
}

// State is a read-only view of a runner.
type State struct {
	UserID      string                `json:"user_id"`
	Instrument  string                `json:"instrument"`
	Strategy    string                `json:"strategy"`
	Venue       string                `json:"venue,omitempty"`
	Running     bool                  `json:"running"`
	IntervalMs  int64                 `json:"interval_ms"`
	Cycles      int64                 `json:"cycles"`
	LastCycleAt time.Time             `json:"last_cycle_at,omitempty"`
	LastOutcome string                `json:"last_outcome,omitempty"`
	LastError   string                `json:"last_error,omitempty"`
	LastSignal  *signal.TradingSignal `json:"last_signal,omitempty"`
}

// Runner executes one decision cycle per interval. The next timer is armed
// only after the previous cycle returns, so cycles never overlap.
type Runner struct {
	cfg  Config
	gen  *generator.Generator
	exec *execution.Executor
	log  zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	state   State
}

// NewRunner checks the strategy up front so misconfigured bots never start.
// A nil executor runs in signal-only mode.
func NewRunner(cfg Config, gen *generator.Generator, exec *execution.Executor, log zerolog.Logger) (*Runner, error) {
	cfg.Instrument = strings.ToUpper(strings.TrimSpace(cfg.Instrument))
	if cfg.UserID == "" || cfg.Instrument == "" {
		return nil, errors.New("bot needs a user and an instrument")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	profile, err := gen.Catalog().Resolve(cfg.Strategy, cfg.Instrument)
	if err != nil {
		return nil, err
	}
	cfg.Strategy = profile.Name

	r := &Runner{
		cfg:  cfg,
		gen:  gen,
		exec: exec,
		log: log.With().Str("component", "bot").Str("user", cfg.UserID).
			Str("sym", cfg.Instrument).Str("strategy", cfg.Strategy).Logger(),
		state: State{
			UserID:     cfg.UserID,
			Instrument: cfg.Instrument,
			Strategy:   cfg.Strategy,
			IntervalMs: cfg.Interval.Milliseconds(),
		},
	}
	if exec != nil {
		r.state.Venue = exec.Venue().Name()
	}
	return r, nil
}

// Config returns the runner's normalized configuration.
func (r *Runner) Config() Config { return r.cfg }

// Start begins the schedule. It reports false if the runner was already running.
func (r *Runner) Start(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	r.running = true
	r.cancel = cancel
	r.done = make(chan struct{})
	r.state.Running = true
	metrics.RunningBots.Inc()
	go r.loop(ctx, r.done)
	r.log.Info().Dur("interval", r.cfg.Interval).Msg("bot started")
	return true
}

// Stop cancels the schedule and any in-flight cycle, then waits for the loop
// to exit. Stopping a stopped runner does nothing.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel, done := r.cancel, r.done
	r.running = false
	r.cancel = nil
	r.state.Running = false
	r.mu.Unlock()

	cancel()
	<-done
	metrics.RunningBots.Dec()
	r.log.Info().Msg("bot stopped")
}

// IsRunning reports whether the schedule is active.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// State returns a snapshot of the runner.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer r.exited(done)
	timer := time.NewTimer(r.cfg.Interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			r.RunOnce(ctx)
			timer.Reset(r.cfg.Interval)
		}
	}
}

// exited marks the runner stopped when its parent context ended the loop.
// After Stop the runner is already marked and nothing changes.
func (r *Runner) exited(done chan struct{}) {
	r.mu.Lock()
	if !r.running || r.done != done {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.state.Running = false
	r.cancel()
	r.cancel = nil
	r.mu.Unlock()
	metrics.RunningBots.Dec()
	r.log.Info().Msg("bot stopped by parent context")
}

// RunOnce executes a single cycle synchronously and returns its outcome.
// A cycle cut short by cancellation before producing a signal is not recorded.
func (r *Runner) RunOnce(ctx context.Context) string {
	start := time.Now()
	sig, outcome, err := r.cycle(ctx)
	if sig == nil && ctx.Err() != nil {
		r.log.Debug().Msg("cycle canceled")
		return metrics.OutcomeCanceled
	}
	metrics.CyclesTotal.WithLabelValues(r.cfg.Strategy, outcome).Inc()
	metrics.CycleDuration.WithLabelValues(r.cfg.Strategy).Observe(time.Since(start).Seconds())

	r.mu.Lock()
	r.state.Cycles++
	r.state.LastCycleAt = start
	r.state.LastOutcome = outcome
	r.state.LastError = ""
	if err != nil {
		r.state.LastError = err.Error()
	}
	if sig != nil {
		r.state.LastSignal = sig
	}
	r.mu.Unlock()
	return outcome
}

func (r *Runner) cycle(ctx context.Context) (sig *signal.TradingSignal, outcome string, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Str("panic", fmt.Sprint(p)).Bytes("stack", debug.Stack()).Msg("cycle panicked")
			sig, outcome, err = nil, metrics.OutcomeFailed, fmt.Errorf("panic: %v", p)
		}
	}()

	sig, err = r.gen.Generate(ctx, r.cfg.Instrument, r.cfg.Strategy)
	if err != nil {
		r.log.Error().Err(err).Msg("cycle failed")
		return nil, metrics.OutcomeFailed, err
	}
	if sig == nil {
		return nil, metrics.OutcomeNoSignal, nil
	}
	if r.exec == nil {
		return sig, metrics.OutcomeSignal, nil
	}
	if _, err := r.exec.Submit(ctx, r.cfg.UserID, sig); err != nil {
		return sig, metrics.OutcomeRejected, err
	}
	return sig, metrics.OutcomeOrdered, nil
}
