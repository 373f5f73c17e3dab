package linking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"walink/cmd/internal/credstore"
)

// discardTimeout bounds credential cleanup once a session is closing.
const discardTimeout = 5 * time.Second

// Manager creates and tears down sessions.
type Manager struct {
	log      *slog.Logger
	cfg      Config
	clock    clockwork.Clock
	store    credstore.Store
	factory  ClientFactory
	versions VersionSource
	registry *Registry
	metrics  *Metrics
}

// ManagerOption configures optional Manager dependencies.
type ManagerOption func(*Manager)

// WithClock overrides the wall clock (tests use a fake clock).
func WithClock(c clockwork.Clock) ManagerOption {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithRegistry overrides the session registry.
func WithRegistry(r *Registry) ManagerOption {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(mt *Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager constructs a Manager.
func NewManager(log *slog.Logger, cfg Config, store credstore.Store, factory ClientFactory, versions VersionSource, opts ...ManagerOption) (*Manager, error) {
	if store == nil || factory == nil || versions == nil {
		return nil, errors.New("linking: store, factory and version source are required")
	}
	if log == nil {
		log = slog.Default()
	}

	m := &Manager{
		log:      log,
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		store:    store,
		factory:  factory,
		versions: versions,
		registry: NewRegistry(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(m)
	}
	return m, nil
}

// Registry returns the live-session ledger.
func (m *Manager) Registry() *Registry { return m.registry }

// Config returns the flow configuration.
func (m *Manager) Config() Config { return m.cfg }

// Create provisions a new session of the given kind: a fresh id, a credential
// context keyed by it, the latest protocol version and a connected client.
//
// Failures are reported as ErrProvisioning and leave nothing behind.
func (m *Manager) Create(ctx context.Context, kind Kind) (*Session, error) {
	now := m.clock.Now()

	id, err := NewSessionID(kind, now)
	if err != nil {
		return nil, fmt.Errorf("%w: session id: %w", ErrProvisioning, err)
	}

	creds, save, err := m.store.OpenOrCreate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: credentials: %w", ErrProvisioning, err)
	}

	version, err := m.versions.LatestVersion(ctx)
	if err != nil {
		m.discard(ctx, id)
		return nil, fmt.Errorf("%w: protocol version: %w", ErrProvisioning, err)
	}

	client, err := m.factory.Connect(ctx, ConnectParams{
		SessionID:   id,
		Kind:        kind,
		Credentials: creds,
		Version:     version,
		Device:      m.cfg.deviceFor(kind),
	})
	if err != nil {
		m.discard(ctx, id)
		m.log.Warn("session.connect.fail", "session_id", id, "kind", kind.String(), "err", err)
		return nil, fmt.Errorf("%w: connect: %w", ErrProvisioning, err)
	}
	client.OnCredentialUpdate(save)

	s := newSession(id, kind, now, client, creds, now.Add(m.cfg.ttlFor(kind)))
	if err := m.registry.add(s); err != nil {
		client.Terminate()
		m.discard(ctx, id)
		return nil, fmt.Errorf("%w: %w", ErrProvisioning, err)
	}

	m.metrics.sessionCreated(kind)
	m.log.Info("session.create", "session_id", id, "kind", kind.String(), "version", version.String())
	return s, nil
}

// Close terminates the client, discards the credential context and removes
// the session from the registry. Only the first call does anything; it
// returns true for that call.
func (m *Manager) Close(ctx context.Context, s *Session, reason CloseReason) bool {
	if s == nil {
		return false
	}
	prev, ok := s.beginClose()
	if !ok {
		return false
	}

	s.client.Terminate()
	m.discard(ctx, s.id)
	m.registry.remove(s.id)

	m.metrics.sessionClosed(s.kind, reason)
	m.log.Info("session.close",
		"session_id", s.id,
		"kind", s.kind.String(),
		"reason", string(reason),
		"from_state", prev.String(),
		"lifetime_ms", m.clock.Since(s.createdAt).Milliseconds(),
	)
	return true
}

// ScheduleClose arms a one-shot timer that closes s after the given duration.
// Arming again replaces the previous timer. Returns false if s is already closed.
func (m *Manager) ScheduleClose(s *Session, after time.Duration) bool {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return false
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
	gen := s.timerGen
	s.deadlineAt = m.clock.Now().Add(after)
	s.mu.Unlock()

	// Armed outside the lock: the callback takes s.mu itself.
	t := m.clock.AfterFunc(after, func() { m.fireDeadline(s, gen) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timerGen != gen {
		// Closed or re-armed while we were arming.
		t.Stop()
		return s.state != StateClosed
	}
	s.timer = t
	return true
}

// fireDeadline closes s unless its timer was replaced after this one was armed.
func (m *Manager) fireDeadline(s *Session, gen uint64) {
	s.mu.Lock()
	stale := s.timerGen != gen
	s.mu.Unlock()
	if stale {
		return
	}
	m.Close(context.Background(), s, ReasonDeadline)
}

// Sweep closes every live session whose deadline has passed and returns how
// many it closed. Timers normally get there first; the sweep catches sessions
// whose deadline was never armed (e.g. a flow stuck in a blocking call).
func (m *Manager) Sweep(ctx context.Context) int {
	n := 0
	for _, s := range m.registry.Expired(m.clock.Now()) {
		if m.Close(ctx, s, ReasonSweep) {
			n++
		}
	}
	return n
}

// CloseAll closes every live session. Used at shutdown.
func (m *Manager) CloseAll(ctx context.Context) int {
	n := 0
	for _, s := range m.registry.Snapshot() {
		if m.Close(ctx, s, ReasonShutdown) {
			n++
		}
	}
	return n
}

// discard removes a credential context even when ctx is already canceled:
// cleanup must not depend on the request that created the session.
func (m *Manager) discard(ctx context.Context, id string) {
	if ctx == nil {
		ctx = context.Background()
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discardTimeout)
	defer cancel()

	if err := m.store.Discard(dctx, id); err != nil {
		m.log.Error("session.discard.fail", "session_id", id, "err", err)
	}
}

// sleep suspends for d on the manager clock. It returns early with an error
// if ctx is canceled or the session closes.
func (m *Manager) sleep(ctx context.Context, s *Session, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := m.clock.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.Done():
		return ErrSessionClosed
	}
}

// waitReady waits on the client's readiness signal when it has one,
// bounded by timeout; otherwise it falls back to the fixed warm-up.
func (m *Manager) waitReady(ctx context.Context, s *Session, warmUp, timeout time.Duration) error {
	rw, ok := s.client.(ReadinessWaiter)
	if !ok {
		return m.sleep(ctx, s, warmUp)
	}

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- rw.WaitReady(rctx) }()

	var deadline <-chan time.Time
	if timeout > 0 {
		t := m.clock.NewTimer(timeout)
		defer t.Stop()
		deadline = t.Chan()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.Done():
		return ErrSessionClosed
	case <-deadline:
		return ErrNotReady
	}
}
