package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ErrConflict is returned when a running bot is asked to switch strategy.
var ErrConflict = errors.New("bot already running with a different strategy")

// Key identifies a bot.
type Key struct {
	UserID     string
	Instrument string
}

// NewKey normalizes the instrument.
func NewKey(userID, instrument string) Key {
	return Key{UserID: userID, Instrument: strings.ToUpper(strings.TrimSpace(instrument))}
}

// Factory builds a runner with its own collaborators.
type Factory func(cfg Config) (*Runner, error)

// Registry owns every runner. Isolation between runners is up to the
// factory, which should give each one its own collaborators.
type Registry struct {
	ctx     context.Context
	factory Factory
	log     zerolog.Logger

	mu   sync.Mutex
	bots map[Key]*Runner
}

// NewRegistry starts runners under ctx; canceling it stops them all.
func NewRegistry(ctx context.Context, factory Factory, log zerolog.Logger) *Registry {
	return &Registry{ctx: ctx, factory: factory, log: log, bots: make(map[Key]*Runner)}
}

// Start launches a bot, or returns the running one for the same key and
// strategy. started is false when nothing new was launched.
func (r *Registry) Start(cfg Config) (runner *Runner, started bool, err error) {
	key := NewKey(cfg.UserID, cfg.Instrument)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.bots[key]; ok && existing.IsRunning() {
		if !strings.EqualFold(existing.Config().Strategy, strings.TrimSpace(cfg.Strategy)) {
			return existing, false, fmt.Errorf("%w: %s/%s runs %s", ErrConflict, key.UserID, key.Instrument, existing.Config().Strategy)
		}
		return existing, false, nil
	}

	runner, err = r.factory(cfg)
	if err != nil {
		return nil, false, err
	}
	runner.Start(r.ctx)
	r.bots[key] = runner
	return runner, true, nil
}

// Stop halts the bot for key. It reports whether a bot was found.
func (r *Registry) Stop(key Key) bool {
	r.mu.Lock()
	runner, ok := r.bots[key]
	delete(r.bots, key)
	r.mu.Unlock()
	if ok {
		runner.Stop()
	}
	return ok
}

// Get returns the bot for key.
func (r *Registry) Get(key Key) (*Runner, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	runner, ok := r.bots[key]
	return runner, ok
}

// List returns bot states ordered by user then instrument.
func (r *Registry) List() []State {
	r.mu.Lock()
	runners := make([]*Runner, 0, len(r.bots))
	for _, runner := range r.bots {
		runners = append(runners, runner)
	}
	r.mu.Unlock()

	states := make([]State, 0, len(runners))
	for _, runner := range runners {
		states = append(states, runner.State())
	}
	sort.Slice(states, func(i, j int) bool {
		if states[i].UserID != states[j].UserID {
			return states[i].UserID < states[j].UserID
		}
		return states[i].Instrument < states[j].Instrument
	})
	return states
}

// StopAll stops every bot and empties the registry.
func (r *Registry) StopAll() {
	r.mu.Lock()
	runners := r.bots
	r.bots = make(map[Key]*Runner)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, runner := range runners {
		wg.Add(1)
		go func(runner *Runner) {
			defer wg.Done()
			runner.Stop()
		}(runner)
	}
	wg.Wait()
	r.log.Info().Int("bots", len(runners)).Msg("all bots stopped")
}
