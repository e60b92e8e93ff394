package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeProber counts probes and answers from a switchable script.
type fakeProber struct {
	mu       sync.Mutex
	calls    int32
	failures int // fail this many probes, then succeed
	alwaysOK bool
	down     bool
}

func (p *fakeProber) Probe(context.Context) error {
	atomic.AddInt32(&p.calls, 1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.down {
		return errors.New("endpoint down")
	}
	if p.alwaysOK {
		return nil
	}
	if p.failures > 0 {
		p.failures--
		return errors.New("endpoint down")
	}
	return nil
}

func (p *fakeProber) probes() int { return int(atomic.LoadInt32(&p.calls)) }

func (p *fakeProber) setDown(down bool) {
	p.mu.Lock()
	p.down = down
	p.mu.Unlock()
}

func testConfig() Config {
	return Config{
		Endpoint:          "http://stub",
		MaxRetries:        3,
		BackoffBase:       time.Millisecond,
		HealthCheckPeriod: time.Hour, // effectively disabled
	}
}

func TestEnsureConnectedSuccess(t *testing.T) {
	prober := &fakeProber{alwaysOK: true}
	m := NewManager(testConfig(), prober, nil)
	defer m.Close()

	if err := m.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}
	s := m.Snapshot()
	if s.Phase != Connected {
		t.Errorf("phase = %s, want connected", s.Phase)
	}
	if s.RetryCount != 0 {
		t.Errorf("retryCount = %d, want 0", s.RetryCount)
	}
	if s.LastError != "" {
		t.Errorf("lastError should be cleared, got %q", s.LastError)
	}
}

func TestEnsureConnectedRecoversWithinBudget(t *testing.T) {
	prober := &fakeProber{failures: 2}
	m := NewManager(testConfig(), prober, nil)
	defer m.Close()

	if err := m.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}
	if got := prober.probes(); got != 3 {
		t.Errorf("probe count = %d, want 3", got)
	}
	if s := m.Snapshot(); s.RetryCount != 0 {
		t.Errorf("retryCount not reset on success: %d", s.RetryCount)
	}
}

func TestEnsureConnectedExhaustsRetries(t *testing.T) {
	prober := &fakeProber{down: true}
	m := NewManager(testConfig(), prober, nil)
	defer m.Close()

	err := m.EnsureConnected(context.Background())
	if !errors.Is(err, ErrExhaustedRetries) {
		t.Fatalf("expected ErrExhaustedRetries, got %v", err)
	}
	// Exactly maxRetries probes, not more, not fewer.
	if got := prober.probes(); got != 3 {
		t.Errorf("probe count = %d, want 3", got)
	}
	if s := m.Snapshot(); s.Phase != Failed {
		t.Errorf("phase = %s, want failed", s.Phase)
	}

	// Failed is terminal: further calls return without probing again.
	if err := m.EnsureConnected(context.Background()); !errors.Is(err, ErrExhaustedRetries) {
		t.Fatalf("expected ErrExhaustedRetries from terminal state, got %v", err)
	}
	if got := prober.probes(); got != 3 {
		t.Errorf("terminal Failed issued extra probes: %d", got)
	}
}

func TestEnsureConnectedSingleFlight(t *testing.T) {
	prober := &fakeProber{down: true}
	m := NewManager(testConfig(), prober, nil)
	defer m.Close()

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.EnsureConnected(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, ErrExhaustedRetries) {
			t.Errorf("caller %d: expected ErrExhaustedRetries, got %v", i, err)
		}
	}
	// One shared episode: the probe count is bounded by one episode's
	// budget, not by the number of callers.
	if got := prober.probes(); got > 3 {
		t.Errorf("probe count = %d, want at most 3 for a single episode", got)
	}
}

func TestVerifyConnection(t *testing.T) {
	prober := &fakeProber{failures: 1}
	m := NewManager(testConfig(), prober, nil)
	defer m.Close()

	if m.VerifyConnection(context.Background()) {
		t.Fatal("first probe should fail")
	}
	if s := m.Snapshot(); s.Phase != Reconnecting {
		t.Errorf("phase after failed verify = %s, want reconnecting", s.Phase)
	}
	if !m.VerifyConnection(context.Background()) {
		t.Fatal("second probe should succeed")
	}
	if s := m.Snapshot(); s.Phase != Connected {
		t.Errorf("phase after successful verify = %s, want connected", s.Phase)
	}
}

func TestResetFromFailed(t *testing.T) {
	prober := &fakeProber{down: true}
	m := NewManager(testConfig(), prober, nil)
	defer m.Close()

	if err := m.EnsureConnected(context.Background()); !errors.Is(err, ErrExhaustedRetries) {
		t.Fatalf("expected ErrExhaustedRetries, got %v", err)
	}

	m.Reset()
	s := m.Snapshot()
	if s.Phase != Disconnected || s.RetryCount != 0 || s.LastError != "" {
		t.Errorf("Reset did not restore initial state: %+v", s)
	}

	prober.setDown(false)
	if err := m.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected after reset failed: %v", err)
	}
}

func TestResetAbortsReconnectionInFlight(t *testing.T) {
	prober := &fakeProber{down: true}
	cfg := testConfig()
	cfg.BackoffBase = time.Hour // force the episode to park in backoff
	m := NewManager(cfg, prober, nil)
	defer m.Close()

	done := make(chan error, 1)
	go func() { done <- m.EnsureConnected(context.Background()) }()

	// Wait until the first probe failed and the episode entered backoff.
	for prober.probes() == 0 {
		time.Sleep(time.Millisecond)
	}
	before := prober.probes()
	m.Reset()

	select {
	case err := <-done:
		if errors.Is(err, ErrExhaustedRetries) {
			t.Fatalf("abandoned episode still exhausted retries: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Reset did not release the backoff wait")
	}

	// The dead episode must not have reprobed or touched the machine.
	time.Sleep(20 * time.Millisecond)
	if got := prober.probes(); got != before {
		t.Errorf("probes after reset = %d, want %d", got, before)
	}
	s := m.Snapshot()
	if s.Phase != Disconnected || s.RetryCount != 0 || s.LastError != "" {
		t.Errorf("state overwritten by stale episode: %+v", s)
	}

	// A fresh EnsureConnected starts its own episode, not the stale one.
	prober.setDown(false)
	if err := m.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected after reset failed: %v", err)
	}
	if m.Snapshot().Phase != Connected {
		t.Errorf("phase = %s, want connected", m.Snapshot().Phase)
	}
}

func TestEnsureConnectedHonorsCancellation(t *testing.T) {
	prober := &fakeProber{down: true}
	cfg := testConfig()
	cfg.BackoffBase = time.Hour // force the episode to park in backoff
	m := NewManager(cfg, prober, nil)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.EnsureConnected(ctx) }()

	// Wait until the first probe happened, then cancel during backoff.
	for prober.probes() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("EnsureConnected did not return after cancellation")
	}
}

func TestPeriodicRecheckDrivesReconnect(t *testing.T) {
	prober := &fakeProber{}
	cfg := testConfig()
	cfg.HealthCheckPeriod = 10 * time.Millisecond
	m := NewManager(cfg, prober, nil)
	defer m.Close()

	if err := m.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}

	prober.setDown(true)
	deadline := time.After(2 * time.Second)
	for {
		if s := m.Snapshot(); s.Phase == Failed {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("manager never reached failed, state: %+v", m.Snapshot())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
