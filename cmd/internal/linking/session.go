package linking

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"walink/cmd/internal/credstore"
)

// Session is one linking attempt. It exclusively owns its client and credential context.
type Session struct {
	id        string
	kind      Kind
	createdAt time.Time

	client Client
	creds  *credstore.Context

	responseSent atomic.Bool

	mu         sync.Mutex
	state      State
	deadlineAt time.Time
	timer      clockwork.Timer
	timerGen   uint64
	done       chan struct{}
}

func newSession(id string, kind Kind, now time.Time, client Client, creds *credstore.Context, deadlineAt time.Time) *Session {
	return &Session{
		id:         id,
		kind:       kind,
		createdAt:  now,
		client:     client,
		creds:      creds,
		state:      StateInitializing,
		deadlineAt: deadlineAt,
		done:       make(chan struct{}),
	}
}

func (s *Session) ID() string                      { return s.id }
func (s *Session) Kind() Kind                      { return s.kind }
func (s *Session) CreatedAt() time.Time            { return s.createdAt }
func (s *Session) Client() Client                  { return s.client }
func (s *Session) Credentials() *credstore.Context { return s.creds }

// Done is closed when the session enters Closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// ResponseSent reports whether the milestone has been delivered.
func (s *Session) ResponseSent() bool { return s.responseSent.Load() }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// DeadlineAt returns the time after which the session is force-closed.
func (s *Session) DeadlineAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadlineAt
}

// markAwaiting moves Initializing -> AwaitingMilestone.
func (s *Session) markAwaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceLocked(StateAwaitingMilestone)
}

// deliver claims the right to hand the milestone to the caller. It returns
// true exactly once per session, and never after the session is closed.
func (s *Session) deliver() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !canAdvance(s.state, StateMilestoneIssued) {
		return false
	}
	if !s.responseSent.CompareAndSwap(false, true) {
		return false
	}
	s.state = StateMilestoneIssued
	return true
}

func (s *Session) advanceLocked(to State) bool {
	if !canAdvance(s.state, to) {
		return false
	}
	s.state = to
	return true
}

// beginClose transitions to Closed and detaches the timer. Only the first caller gets true.
func (s *Session) beginClose() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	if !s.advanceLocked(StateClosed) {
		return prev, false
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
	close(s.done)
	return prev, true
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateClosed && !s.deadlineAt.IsZero() && !now.Before(s.deadlineAt)
}
