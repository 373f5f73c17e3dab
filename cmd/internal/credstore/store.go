package credstore

import (
	"context"
	"sort"
	"sync"
)

// Update is a batch of credential mutations. A nil value deletes the entry.
type Update map[string][]byte

// SaveFunc applies an Update to a credential context and persists it.
type SaveFunc func(ctx context.Context, u Update) error

// Store provisions and discards credential contexts keyed by session id.
type Store interface {
	// OpenOrCreate loads the context stored under key, creating an empty one if absent.
	OpenOrCreate(ctx context.Context, key string) (*Context, SaveFunc, error)

	// Discard removes every entry stored under key. Discarding a missing key is not an error.
	Discard(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Context is the live, in-memory view of one session's credentials.
type Context struct {
	key string

	mu      sync.RWMutex
	entries map[string][]byte
}

// NewContext builds a context for key seeded with a copy of entries.
func NewContext(key string, entries map[string][]byte) *Context {
	c := &Context{key: key, entries: make(map[string][]byte, len(entries))}
	for name, data := range entries {
		c.entries[name] = append([]byte(nil), data...)
	}
	return c
}

// Key returns the session key this context belongs to.
func (c *Context) Key() string { return c.key }

// Get returns a copy of the named entry.
func (c *Context) Get(name string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Names returns entry names in sorted order.
func (c *Context) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.entries))
	for name := range c.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of entries.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Context) apply(u Update) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, data := range u {
		if data == nil {
			delete(c.entries, name)
			continue
		}
		c.entries[name] = append([]byte(nil), data...)
	}
}

// newSaveFunc validates an update, persists it, then mirrors it into c.
// The in-memory view only changes once the backend accepted the write.
func newSaveFunc(c *Context, persist func(ctx context.Context, u Update) error) SaveFunc {
	return func(ctx context.Context, u Update) error {
		if len(u) == 0 {
			return nil
		}
		for name := range u {
			if !validName(name) {
				return ErrInvalidKey
			}
		}
		if err := persist(ctx, u); err != nil {
			return err
		}
		c.apply(u)
		return nil
	}
}

// ValidKey reports whether key is usable as a session key by every backend.
func ValidKey(key string) bool { return validName(key) && key != "." && key != ".." }

func validName(s string) bool {
	if s == "" || len(s) > 128 {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '_', ch == '-', ch == '.':
		default:
			return false
		}
	}
	return s != "." && s != ".."
}
