package linking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Version is the protocol version token a client negotiates with.
type Version [3]uint32

func (v Version) String() string { return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2]) }

// IsZero reports whether v is unset.
func (v Version) IsZero() bool { return v == Version{} }

// VersionSource yields the freshest known protocol version.
type VersionSource interface {
	LatestVersion(ctx context.Context) (Version, error)
}

// VersionFunc adapts a function to VersionSource.
type VersionFunc func(ctx context.Context) (Version, error)

// LatestVersion implements VersionSource.
func (f VersionFunc) LatestVersion(ctx context.Context) (Version, error) { return f(ctx) }

// StaticVersion always returns itself.
type StaticVersion Version

// LatestVersion implements VersionSource.
func (v StaticVersion) LatestVersion(context.Context) (Version, error) { return Version(v), nil }

// CachedVersionSource queries its upstream on every call and falls back to
// the last successful answer (or a seed) when the upstream fails.
type CachedVersionSource struct {
	log      *slog.Logger
	upstream VersionSource

	mu   sync.Mutex
	last Version
}

// NewCachedVersionSource wraps upstream. seed may be zero.
func NewCachedVersionSource(log *slog.Logger, upstream VersionSource, seed Version) *CachedVersionSource {
	if log == nil {
		log = slog.Default()
	}
	return &CachedVersionSource{log: log, upstream: upstream, last: seed}
}

// LatestVersion implements VersionSource.
func (c *CachedVersionSource) LatestVersion(ctx context.Context) (Version, error) {
	v, err := c.upstream.LatestVersion(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil && !v.IsZero() {
		c.last = v
		return v, nil
	}
	if c.last.IsZero() {
		if err == nil {
			err = fmt.Errorf("empty protocol version")
		}
		return Version{}, err
	}
	c.log.Warn("version.fetch.fallback", "err", err, "version", c.last.String())
	return c.last, nil
}
