package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Policy controls how long a cached value is served after it was stored.
// All windows are measured from the store time and must be ordered
// MaxAge <= StaleWhileRevalidate <= StaleIfError.
type Policy struct {
	// MaxAge is the hard TTL. Inside it a value is served with no
	// upstream call at all.
	MaxAge time.Duration
	// StaleWhileRevalidate is the end of the window in which a stale
	// value is served immediately while one background refresh runs.
	StaleWhileRevalidate time.Duration
	// StaleIfError is the end of the window in which a failing
	// synchronous refresh falls back to the stale value instead of
	// propagating the error.
	StaleIfError time.Duration
}

func (p Policy) validate() error {
	if p.MaxAge < 0 || p.StaleWhileRevalidate < p.MaxAge || p.StaleIfError < p.StaleWhileRevalidate {
		return errors.New("cache: policy windows must satisfy 0 <= MaxAge <= StaleWhileRevalidate <= StaleIfError")
	}
	return nil
}

// ComputeFunc produces a fresh value for a key on miss or refresh.
type ComputeFunc[T any] func(ctx context.Context) (T, error)

// flight is one in-progress computation shared by every caller that
// needs the same key refreshed. done is closed exactly once.
type flight[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// entry is a stored value. Entries are only added to the LRU when a
// computation succeeds, so every entry carries a value.
type entry[T any] struct {
	value    T
	storedAt time.Time
}

// Cache is a freshness-aware, single-flight, LRU-bounded cache keyed by
// opaque strings. The LRU ceiling evicts least-recently-used keys
// independent of their staleness state. In-flight computations are
// tracked separately from the LRU, so eviction of a key mid-computation
// cannot start a second concurrent compute for it.
type Cache[T any] struct {
	mu      sync.Mutex
	lru     *simplelru.LRU[string, *entry[T]]
	flights map[string]*flight[T]
	policy  Policy
	log     *slog.Logger

	now func() time.Time // overridden in tests
}

// New creates a cache holding at most maxEntries keys under the given
// freshness policy.
func New[T any](maxEntries int, policy Policy) (*Cache[T], error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}
	lru, err := simplelru.NewLRU[string, *entry[T]](maxEntries, nil)
	if err != nil {
		return nil, err
	}
	return &Cache[T]{
		lru:     lru,
		flights: make(map[string]*flight[T]),
		policy:  policy,
		log:     slog.Default(),
		now:     time.Now,
	}, nil
}

// Len returns the number of keys currently held.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// GetOrCompute returns the value for key according to the freshness
// state machine: fresh values are served directly, stale-revalidate
// values are served while one background refresh runs, stale-if-error
// values absorb refresh failures, and expired or missing values force a
// synchronous computation whose failure propagates. Concurrent callers
// for the same key share a single in-flight computation.
func (c *Cache[T]) GetOrCompute(ctx context.Context, key string, compute ComputeFunc[T]) (T, error) {
	c.mu.Lock()
	if e, ok := c.lru.Get(key); ok {
		age := c.now().Sub(e.storedAt)

		switch {
		case age < c.policy.MaxAge:
			v := e.value
			c.mu.Unlock()
			return v, nil

		case age < c.policy.StaleWhileRevalidate:
			v := e.value
			if c.flights[key] == nil {
				c.startFlight(ctx, key, compute)
			}
			c.mu.Unlock()
			return v, nil

		case age < c.policy.StaleIfError:
			v := e.value
			f := c.flights[key]
			if f == nil {
				f = c.startFlight(ctx, key, compute)
			}
			c.mu.Unlock()
			<-f.done
			if f.err != nil {
				return v, nil
			}
			return f.value, nil
		}
	}

	// Missing or expired: wait on the shared flight.
	f := c.flights[key]
	if f == nil {
		f = c.startFlight(ctx, key, compute)
	}
	c.mu.Unlock()
	<-f.done
	if f.err != nil {
		var zero T
		return zero, f.err
	}
	return f.value, nil
}

// startFlight registers a new in-flight computation for key and runs it
// in the background. Must be called with c.mu held and no flight
// registered for key. The computation is detached from the caller's
// cancellation so a client disconnect still populates the cache. The
// value enters the LRU only on success; a failed compute never occupies
// a slot.
func (c *Cache[T]) startFlight(ctx context.Context, key string, compute ComputeFunc[T]) *flight[T] {
	f := &flight[T]{done: make(chan struct{})}
	c.flights[key] = f

	go func() {
		f.value, f.err = compute(context.WithoutCancel(ctx))

		c.mu.Lock()
		delete(c.flights, key)
		if f.err == nil {
			c.lru.Add(key, &entry[T]{value: f.value, storedAt: c.now()})
		} else {
			c.log.Warn("cache refresh failed", "key", key, "err", f.err)
		}
		c.mu.Unlock()

		close(f.done)
	}()
	return f
}
