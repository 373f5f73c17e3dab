package linking

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var errDuplicateSession = errors.New("duplicate session id")

// Registry is the process-wide ledger of live sessions. It is not a lookup
// service: flows hold their own *Session, the registry only exists so that
// every session can be reaped and counted.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.id]; ok {
		return errDuplicateSession
	}
	r.sessions[s.id] = s
	return nil
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot returns live sessions ordered by creation time.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].createdAt.Equal(out[j].createdAt) {
			return out[i].id < out[j].id
		}
		return out[i].createdAt.Before(out[j].createdAt)
	})
	return out
}

// Expired returns live sessions whose deadline is at or before now.
func (r *Registry) Expired(now time.Time) []*Session {
	var out []*Session
	for _, s := range r.Snapshot() {
		if s.expired(now) {
			out = append(out, s)
		}
	}
	return out
}
