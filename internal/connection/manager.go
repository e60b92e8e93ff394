// manager.go - Network-health state machine for the transfer engine.
//
// The Manager owns the process-wide NetworkState and drives the endpoint
// toward usable: Disconnected -> Verifying -> Connected, with linear-backoff
// retries through Reconnecting and a terminal Failed state once retries are
// exhausted. A single-flight gate guarantees at most one probe is in flight
// at a time; concurrent callers share the in-flight result.

package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Phase is one state of the connection machine.
type Phase string

const (
	Disconnected Phase = "disconnected"
	Verifying    Phase = "verifying"
	Connected    Phase = "connected"
	Reconnecting Phase = "reconnecting"
	Failed       Phase = "failed"
)

var (
	// ErrProbeFailed wraps a single failed health probe. It never crosses
	// the Manager boundary: callers of EnsureConnected only ever see
	// ErrExhaustedRetries.
	ErrProbeFailed = errors.New("connection: health probe failed")

	// ErrExhaustedRetries is returned once maxRetries probes in a row have
	// failed. Recoverable: the caller may Reset and retry later.
	ErrExhaustedRetries = errors.New("connection: retries exhausted")

	errClosed      = errors.New("connection: manager closed")
	errInterrupted = errors.New("connection: reset interrupted reconnection")
)

// Prober performs one health check against the remote endpoint.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// Config holds the Manager tunables. Zero values take the documented
// defaults.
type Config struct {
	Endpoint          string
	MaxRetries        int           // default 3
	BackoffBase       time.Duration // default 1s; wait is BackoffBase * attempt
	HealthCheckPeriod time.Duration // default 30s
}

func (c *Config) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.HealthCheckPeriod <= 0 {
		c.HealthCheckPeriod = 30 * time.Second
	}
}

// State is a point-in-time snapshot of the machine. RetryCount is monotone
// within a reconnection episode and resets only on success or manual Reset.
type State struct {
	Phase      Phase
	RetryCount int
	LastError  string
}

// Manager drives and reports the connection state. All state transitions are
// strictly sequential; it is safe for concurrent use.
type Manager struct {
	cfg    Config
	prober Prober
	logger *slog.Logger

	flight singleflight.Group

	mu         sync.Mutex
	phase      Phase
	retryCount int
	lastErr    error
	checkStop  chan struct{} // non-nil while the periodic recheck runs
	epoch      int           // bumped by Reset; stale episodes abandon
	resetC     chan struct{} // closed and replaced by Reset

	done chan struct{} // closed by Close; cancels pending backoff waits
}

// NewManager creates a Manager in the Disconnected phase. The prober is the
// injected health-check capability; logger may be nil.
func NewManager(cfg Config, prober Prober, logger *slog.Logger) *Manager {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		cfg:    cfg,
		prober: prober,
		logger: logger,
		phase:  Disconnected,
		resetC: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Snapshot returns the current state without blocking on in-flight probes.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := State{Phase: m.phase, RetryCount: m.retryCount}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

// probe issues one health check through the single-flight gate. Concurrent
// callers (manual, periodic, reconnection episodes) share one probe result
// rather than issuing redundant checks.
func (m *Manager) probe(ctx context.Context) error {
	_, err, _ := m.flight.Do("probe", func() (interface{}, error) {
		return nil, m.prober.Probe(ctx)
	})
	return err
}

// VerifyConnection performs a single health probe and reports its outcome.
// It does not drive retries. A success moves the machine to Connected; a
// failure records the error and moves to Reconnecting (or Failed when
// retries are already spent) without waiting or reprobing.
func (m *Manager) VerifyConnection(ctx context.Context) bool {
	m.mu.Lock()
	if m.phase == Disconnected {
		m.phase = Verifying
	}
	m.mu.Unlock()

	err := m.probe(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		m.toConnected()
		return true
	}
	m.lastErr = fmt.Errorf("%w: %v", ErrProbeFailed, err)
	if m.retryCount < m.cfg.MaxRetries {
		m.phase = Reconnecting
	} else {
		m.phase = Failed
	}
	return false
}

// EnsureConnected runs the state machine until the endpoint is usable or
// retries are exhausted. Concurrent callers share a single episode through
// the single-flight gate; the shared episode runs under the first caller's
// context. Probe failures are absorbed into the retry loop and surface only
// as ErrExhaustedRetries.
func (m *Manager) EnsureConnected(ctx context.Context) error {
	_, err, _ := m.flight.Do("connect", func() (interface{}, error) {
		return nil, m.runEpisode(ctx)
	})
	return err
}

func (m *Manager) runEpisode(ctx context.Context) error {
	m.mu.Lock()
	switch m.phase {
	case Connected:
		m.mu.Unlock()
		return nil
	case Failed:
		// Terminal until an explicit Reset.
		m.mu.Unlock()
		return fmt.Errorf("%w (endpoint %s)", ErrExhaustedRetries, m.cfg.Endpoint)
	}
	m.phase = Verifying
	epoch := m.epoch
	resetC := m.resetC
	m.mu.Unlock()

	for {
		err := m.probe(ctx)

		m.mu.Lock()
		if m.epoch != epoch {
			// Reset happened mid-episode. The machine is Disconnected;
			// leave it untouched.
			m.mu.Unlock()
			return errInterrupted
		}
		if err == nil {
			m.toConnected()
			m.mu.Unlock()
			m.logger.Info("endpoint connected", "endpoint", m.cfg.Endpoint)
			return nil
		}
		m.lastErr = fmt.Errorf("%w: %v", ErrProbeFailed, err)
		m.retryCount++
		attempt := m.retryCount
		if attempt >= m.cfg.MaxRetries {
			m.phase = Failed
			m.mu.Unlock()
			m.logger.Error("endpoint unreachable, giving up",
				"endpoint", m.cfg.Endpoint, "attempts", attempt)
			return fmt.Errorf("%w after %d attempts: %v", ErrExhaustedRetries, attempt, err)
		}
		m.phase = Reconnecting
		m.mu.Unlock()

		wait := m.cfg.BackoffBase * time.Duration(attempt)
		m.logger.Warn("probe failed, backing off",
			"endpoint", m.cfg.Endpoint, "attempt", attempt, "wait", wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-m.done:
			timer.Stop()
			return errClosed
		case <-resetC:
			timer.Stop()
			return errInterrupted
		case <-timer.C:
		}

		m.mu.Lock()
		if m.epoch != epoch {
			m.mu.Unlock()
			return errInterrupted
		}
		m.phase = Verifying
		m.mu.Unlock()
	}
}

// toConnected is called with mu held on every successful verification.
func (m *Manager) toConnected() {
	m.phase = Connected
	m.retryCount = 0
	m.lastErr = nil
	m.startRecheckLocked()
}

// startRecheckLocked launches the periodic re-verification loop if it is not
// already running. Callers hold mu.
func (m *Manager) startRecheckLocked() {
	if m.checkStop != nil {
		return
	}
	stop := make(chan struct{})
	m.checkStop = stop
	go m.recheckLoop(stop)
}

// recheckLoop re-verifies a Connected endpoint on a fixed period. Callers'
// view of "connected" is only disturbed when a check actually fails, in
// which case the machine re-enters the reconnection episode directly
// (never through Disconnected). The loop ends when the machine reaches
// Failed or the stop channel closes.
func (m *Manager) recheckLoop(stop chan struct{}) {
	ticker := time.NewTicker(m.cfg.HealthCheckPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if err := m.probe(context.Background()); err == nil {
			continue
		}

		m.mu.Lock()
		if m.phase == Connected {
			m.phase = Reconnecting
		}
		m.mu.Unlock()
		m.logger.Warn("periodic health check failed", "endpoint", m.cfg.Endpoint)

		if err := m.EnsureConnected(context.Background()); err != nil {
			m.stopRecheck()
			return
		}
	}
}

func (m *Manager) stopRecheck() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkStop != nil {
		close(m.checkStop)
		m.checkStop = nil
	}
}

// Reset returns the machine to Disconnected, zeroing the retry counter and
// the recorded error. Any pending timer dies with the transition: the
// periodic recheck stops and an episode parked in its backoff wait is
// released and abandons without touching the machine. It is the only way
// out of Failed.
func (m *Manager) Reset() {
	m.stopRecheck()
	m.mu.Lock()
	m.phase = Disconnected
	m.retryCount = 0
	m.lastErr = nil
	m.epoch++
	close(m.resetC)
	m.resetC = make(chan struct{})
	m.mu.Unlock()

	// Drop the stale in-flight episode so the next EnsureConnected starts
	// fresh instead of joining it.
	m.flight.Forget("connect")
}

// Close shuts the manager down: pending backoff waits are released and the
// periodic recheck stops. The manager is unusable afterwards.
func (m *Manager) Close() {
	m.stopRecheck()
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.done:
	default:
		close(m.done)
	}
	m.phase = Disconnected
}
