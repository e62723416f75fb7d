// Package scheduler drives the adaptive refresh loop. The cadence is a
// pure function of the activity monitor's presence and the user-togglable
// auto-refresh flag; the scheduler adds no hysteresis of its own beyond
// the monitor's idle-window debounce.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hirelight/hirelight/internal/activity"
	"github.com/hirelight/hirelight/internal/logging"
)

// Scheduler errors.
var (
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
)

// Cadence is the polling mode the scheduler is in.
type Cadence string

const (
	// CadencePaused: visible and actively used; rely on push and manual
	// refresh so the list never reflows under the cursor.
	CadencePaused Cadence = "paused"

	// CadenceFast: visible but idle; short interval.
	CadenceFast Cadence = "fast"

	// CadenceSlow: backgrounded; long interval.
	CadenceSlow Cadence = "slow"

	// CadenceDisabled: auto-refresh toggled off.
	CadenceDisabled Cadence = "disabled"
)

// CadenceFor maps (presence, enabled) to a cadence.
func CadenceFor(presence activity.Presence, enabled bool) Cadence {
	if !enabled {
		return CadenceDisabled
	}
	switch presence {
	case activity.PresenceBackground:
		return CadenceSlow
	case activity.PresenceIdle:
		return CadenceFast
	default:
		return CadencePaused
	}
}

// FetchFunc performs one refresh against the backend.
type FetchFunc func(ctx context.Context) error

// Config contains the two polling intervals.
type Config struct {
	// FastInterval is the cadence for a visible but idle session.
	// Default: 2m
	FastInterval time.Duration

	// SlowInterval is the cadence for a backgrounded session.
	// Default: 10m
	SlowInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FastInterval: 2 * time.Minute,
		SlowInterval: 10 * time.Minute,
	}
}

// Scheduler owns the refresh ticker for one user session.
type Scheduler struct {
	config  Config
	monitor *activity.Monitor
	fetch   FetchFunc
	logger  zerolog.Logger

	mu      sync.Mutex
	running bool
	enabled bool
	cadence Cadence
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	kick    chan struct{}
	unsub   func()
}

// New creates a Scheduler. The enabled flag starts as given and is later
// driven by SetEnabled (the auto-refresh toggle).
func New(config Config, monitor *activity.Monitor, fetch FetchFunc, enabled bool) *Scheduler {
	defaults := DefaultConfig()
	if config.FastInterval <= 0 {
		config.FastInterval = defaults.FastInterval
	}
	if config.SlowInterval <= 0 {
		config.SlowInterval = defaults.SlowInterval
	}
	return &Scheduler{
		config:  config,
		monitor: monitor,
		fetch:   fetch,
		logger:  logging.Component("refresh-scheduler"),
		enabled: enabled,
		cadence: CadenceFor(monitor.Presence(), enabled),
		kick:    make(chan struct{}, 1),
	}
}

// Start begins the refresh loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.unsub = s.monitor.Subscribe(func(activity.Presence) {
		s.reevaluate()
	})

	s.logger.Info().
		Dur("fast_interval", s.config.FastInterval).
		Dur("slow_interval", s.config.SlowInterval).
		Str("cadence", string(s.cadence)).
		Msg("refresh scheduler starting")

	s.wg.Add(1)
	go s.runLoop()

	return nil
}

// Stop halts the refresh loop. The pending timer is torn down
// deterministically; no fetch started after Stop returns.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.cancel()
	s.running = false
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("refresh scheduler stopped")
	return nil
}

// Cadence returns the current cadence.
func (s *Scheduler) Cadence() Cadence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cadence
}

// Enabled returns the auto-refresh flag.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetEnabled flips the auto-refresh toggle and re-evaluates the cadence.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
	s.reevaluate()
}

// RefreshNow bypasses cadence entirely: it always fetches and hands the
// outcome to the caller.
func (s *Scheduler) RefreshNow(ctx context.Context) error {
	return s.fetch(ctx)
}

// reevaluate recomputes the cadence; on a change it wakes the loop, which
// refetches immediately when the new cadence polls.
func (s *Scheduler) reevaluate() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	next := CadenceFor(s.monitor.Presence(), s.enabled)
	if next == s.cadence {
		s.mu.Unlock()
		return
	}
	prev := s.cadence
	s.cadence = next
	s.mu.Unlock()

	s.logger.Debug().
		Str("from", string(prev)).
		Str("to", string(next)).
		Msg("cadence changed")

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Scheduler) pollInterval(cadence Cadence) (time.Duration, bool) {
	switch cadence {
	case CadenceFast:
		return s.config.FastInterval, true
	case CadenceSlow:
		return s.config.SlowInterval, true
	default:
		return 0, false
	}
}

// runLoop is the scheduler's single goroutine. Ticks re-evaluate nothing;
// they just fetch. Cadence changes arrive via the kick channel, reset the
// ticker, and trigger the one immediate refetch per transition.
func (s *Scheduler) runLoop() {
	defer s.wg.Done()

	var tickCh <-chan time.Time
	var ticker *time.Ticker
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickCh = nil
		}
	}
	defer stopTicker()

	apply := func(refetch bool) {
		stopTicker()
		interval, polling := s.pollInterval(s.Cadence())
		if !polling {
			return
		}
		ticker = time.NewTicker(interval)
		tickCh = ticker.C
		if refetch {
			s.doFetch()
		}
	}

	// Establish the initial ticker without an immediate fetch; the owner
	// performs the first load itself.
	apply(false)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.kick:
			apply(true)
		case <-tickCh:
			s.doFetch()
		}
	}
}

// doFetch runs one scheduled fetch. Failures are logged and otherwise
// silent; the next tick is the retry.
func (s *Scheduler) doFetch() {
	if err := s.fetch(s.ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Warn().Err(err).Str("cadence", string(s.Cadence())).Msg("scheduled refresh failed")
	}
}
