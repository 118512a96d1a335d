// Package activity implements the idle timer and activity score that gate
// time-entry accrual while a user is tracking work.
package activity

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const MaxScore = 100

// scoreEpsilon absorbs float error in the blend so that, for example, a
// score of 100 blended toward 100 floors to 100 and not 99.
const scoreEpsilon = 1e-9

type Config struct {
	// IdleThreshold is how long without input before the tracker goes idle.
	IdleThreshold time.Duration
	Tick          time.Duration
	// WorkInterval is the accrued time between WorkInterval emissions.
	WorkInterval time.Duration
	// ActiveEventThreshold is the number of input events a tick must exceed
	// to pull the score toward MaxScore.
	ActiveEventThreshold int64
	DecayStep            int
	Smoothing            float64
}

func DefaultConfig() Config {
	return Config{
		IdleThreshold:        15 * time.Second,
		Tick:                 time.Second,
		WorkInterval:         60 * time.Second,
		ActiveEventThreshold: 2,
		DecayStep:            5,
		Smoothing:            0.9,
	}
}

// withDefaults fills unset or out-of-range fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = d.IdleThreshold
	}
	if c.Tick <= 0 {
		c.Tick = d.Tick
	}
	if c.WorkInterval <= 0 {
		c.WorkInterval = d.WorkInterval
	}
	if c.ActiveEventThreshold <= 0 {
		c.ActiveEventThreshold = d.ActiveEventThreshold
	}
	if c.DecayStep <= 0 {
		c.DecayStep = d.DecayStep
	}
	if c.Smoothing <= 0 || c.Smoothing >= 1 {
		c.Smoothing = d.Smoothing
	}
	return c
}

// State is a copy of the tracker's state at one instant.
type State struct {
	LastInput time.Time     `json:"lastInput"`
	Elapsed   time.Duration `json:"elapsed"`
	Score     int           `json:"score"`
	Idle      bool          `json:"idle"`
	Running   bool          `json:"running"`
}

func (s State) ElapsedSeconds() int64 {
	return int64(s.Elapsed / time.Second)
}

// WorkInterval is emitted each time accrued time crosses a multiple of
// Config.WorkInterval.
type WorkInterval struct {
	Elapsed time.Duration
	Score   int
	At      time.Time
}

type TransitionKind string

const (
	TransitionIdle   TransitionKind = "idle"
	TransitionResume TransitionKind = "resume"
)

type Transition struct {
	Kind    TransitionKind
	At      time.Time
	Elapsed time.Duration
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// OnWorkInterval registers the consumer of work intervals. It is called from
// the tick goroutine and must not block.
func OnWorkInterval(fn func(WorkInterval)) Option {
	return func(t *Tracker) {
		t.onInterval = fn
	}
}

// OnTransition registers the observer of idle and resume transitions.
func OnTransition(fn func(Transition)) Option {
	return func(t *Tracker) {
		t.onTransition = fn
	}
}

// Tracker accrues elapsed work time only while the user is active.
//
// RecordInput touches only atomics, so input callbacks never contend with a
// tick. Tick state is guarded by mu. Idle is cleared only by Resume.
type Tracker struct {
	cfg          Config
	now          func() time.Time
	logger       *slog.Logger
	onInterval   func(WorkInterval)
	onTransition func(Transition)

	lastInput atomic.Int64
	events    atomic.Int64
	running   atomic.Bool

	mu      sync.Mutex
	elapsed time.Duration
	score   int
	idle    bool

	runMu  sync.Mutex
	runCtx context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a stopped tracker. Zero or out-of-range Config fields take their
// DefaultConfig values.
func New(cfg Config, opts ...Option) *Tracker {
	t := &Tracker{
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		logger: slog.Default(),
		score:  MaxScore,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.lastInput.Store(t.now().UnixNano())
	return t
}

// RecordInput notes one qualifying input event.
func (t *Tracker) RecordInput(at time.Time) {
	t.lastInput.Store(at.UnixNano())
	t.events.Add(1)
}

// Tick advances the tracker by one period. Start calls it once per
// Config.Tick; it is exported so callers can drive the tracker with their
// own clock.
func (t *Tracker) Tick(now time.Time) {
	var (
		interval   *WorkInterval
		transition *Transition
	)

	t.mu.Lock()
	sinceInput := now.Sub(time.Unix(0, t.lastInput.Load()))
	accrued := false
	switch {
	case sinceInput > t.cfg.IdleThreshold:
		if !t.idle {
			t.idle = true
			transition = &Transition{Kind: TransitionIdle, At: now, Elapsed: t.elapsed}
		}
	case !t.idle:
		t.elapsed += t.cfg.Tick
		accrued = true
	}

	t.score = t.nextScore(t.events.Swap(0))

	if accrued && t.crossedInterval() {
		interval = &WorkInterval{Elapsed: t.elapsed, Score: t.score, At: now}
	}
	t.mu.Unlock()

	if transition != nil {
		t.logger.Info("activity idle",
			"elapsed_seconds", int64(transition.Elapsed/time.Second),
			"idle_for", sinceInput.String(),
		)
		if t.onTransition != nil {
			t.onTransition(*transition)
		}
	}
	if interval != nil && t.onInterval != nil {
		t.onInterval(*interval)
	}
}

// nextScore blends the score toward its target and floors it. Caller holds mu.
func (t *Tracker) nextScore(events int64) int {
	target := MaxScore
	if events <= t.cfg.ActiveEventThreshold {
		target = max(0, t.score-t.cfg.DecayStep)
	}
	blended := t.cfg.Smoothing*float64(t.score) + (1-t.cfg.Smoothing)*float64(target)
	return min(MaxScore, max(0, int(math.Floor(blended+scoreEpsilon))))
}

// crossedInterval reports whether the last accrual reached a new multiple of
// the work interval. Caller holds mu.
func (t *Tracker) crossedInterval() bool {
	if t.cfg.WorkInterval <= 0 || t.elapsed <= 0 {
		return false
	}
	return t.elapsed/t.cfg.WorkInterval > (t.elapsed-t.cfg.Tick)/t.cfg.WorkInterval
}

// Resume is the explicit "I'm back" acknowledgement. It clears idle and
// re-arms the idle window from now. Elapsed time is kept.
func (t *Tracker) Resume(now time.Time) {
	t.lastInput.Store(now.UnixNano())

	t.mu.Lock()
	wasIdle := t.idle
	t.idle = false
	elapsed := t.elapsed
	t.mu.Unlock()

	if !wasIdle {
		return
	}
	t.logger.Info("activity resumed", "elapsed_seconds", int64(elapsed/time.Second))
	if t.onTransition != nil {
		t.onTransition(Transition{Kind: TransitionResume, At: now, Elapsed: elapsed})
	}
}

// Start runs the tick loop until ctx is cancelled or Stop is called. Calling
// Start on a running tracker does nothing. Elapsed time and score carry over
// from any previous run.
func (t *Tracker) Start(ctx context.Context) {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if t.done != nil {
		if t.runCtx.Err() == nil {
			return
		}
		// the previous run ended with its context; let it finish exiting
		<-t.done
		t.cancel()
	}

	t.lastInput.Store(t.now().UnixNano())
	ctx, cancel := context.WithCancel(ctx)
	t.runCtx = ctx
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running.Store(true)
	go t.run(ctx, t.done)
}

func (t *Tracker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer t.running.Store(false)

	ticker := time.NewTicker(t.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			t.Tick(t.now())
		}
	}
}

// Stop cancels the tick loop and waits for it to exit. No tick runs after
// Stop returns. Stopping a stopped tracker does nothing.
func (t *Tracker) Stop() {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if t.done == nil {
		return
	}
	t.cancel()
	<-t.done
	t.runCtx = nil
	t.cancel = nil
	t.done = nil
}

// Reset zeroes elapsed time, restores the score to MaxScore and clears idle.
func (t *Tracker) Reset() {
	t.events.Store(0)
	t.lastInput.Store(t.now().UnixNano())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.elapsed = 0
	t.score = MaxScore
	t.idle = false
}

func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{
		LastInput: time.Unix(0, t.lastInput.Load()),
		Elapsed:   t.elapsed,
		Score:     t.score,
		Idle:      t.idle,
		Running:   t.running.Load(),
	}
}
