package credstore

import (
	"context"
	"sync"
)

// MemoryStore keeps credential contexts in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string]map[string][]byte
	closed bool
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

// OpenOrCreate implements Store.
func (s *MemoryStore) OpenOrCreate(ctx context.Context, key string) (*Context, SaveFunc, error) {
	if !ValidKey(key) {
		return nil, nil, ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, ErrClosed
	}
	entries, ok := s.data[key]
	if !ok {
		entries = make(map[string][]byte)
		s.data[key] = entries
	}
	c := NewContext(key, entries)
	s.mu.Unlock()

	save := newSaveFunc(c, func(ctx context.Context, u Update) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.closed {
			return ErrClosed
		}
		cur, ok := s.data[key]
		if !ok {
			// Discarded while the session was still streaming updates.
			return nil
		}
		for name, data := range u {
			if data == nil {
				delete(cur, name)
				continue
			}
			cur[name] = append([]byte(nil), data...)
		}
		return nil
	})
	return c, save, nil
}

// Discard implements Store.
func (s *MemoryStore) Discard(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = make(map[string]map[string][]byte)
	return nil
}

// Len returns the number of credential contexts currently held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Has reports whether a context exists for key.
func (s *MemoryStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}
