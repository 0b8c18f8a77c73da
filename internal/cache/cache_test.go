package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testClock lets tests drive the cache's notion of time.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestCache(t *testing.T, maxEntries int, policy Policy) (*Cache[string], *testClock) {
	t.Helper()
	c, err := New[string](maxEntries, policy)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clock := &testClock{now: time.Unix(1000, 0)}
	c.now = clock.Now
	return c, clock
}

var testPolicy = Policy{
	MaxAge:               10 * time.Second,
	StaleWhileRevalidate: 100 * time.Second,
	StaleIfError:         200 * time.Second,
}

func TestPolicyOrderingEnforced(t *testing.T) {
	bad := []Policy{
		{MaxAge: -1},
		{MaxAge: 10, StaleWhileRevalidate: 5, StaleIfError: 20},
		{MaxAge: 10, StaleWhileRevalidate: 20, StaleIfError: 15},
	}
	for _, p := range bad {
		if _, err := New[string](10, p); err == nil {
			t.Errorf("expected error for policy %+v", p)
		}
	}
}

func TestFreshValueServedWithoutCompute(t *testing.T) {
	c, clock := newTestCache(t, 10, testPolicy)
	base := clock.Now()

	var calls int32
	compute := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "v1", nil
	}

	if v, err := c.GetOrCompute(context.Background(), "k", compute); err != nil || v != "v1" {
		t.Fatalf("initial get = %q, %v", v, err)
	}

	clock.Set(base.Add(5 * time.Second))
	v, err := c.GetOrCompute(context.Background(), "k", compute)
	if err != nil || v != "v1" {
		t.Fatalf("fresh get = %q, %v", v, err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 compute call, got %d", got)
	}
}

func TestStaleRevalidateServesStaleAndRefreshesOnce(t *testing.T) {
	c, clock := newTestCache(t, 10, testPolicy)
	base := clock.Now()

	seed := func(context.Context) (string, error) { return "v1", nil }
	if _, err := c.GetOrCompute(context.Background(), "k", seed); err != nil {
		t.Fatal(err)
	}

	clock.Set(base.Add(50 * time.Second))

	gate := make(chan struct{})
	var calls int32
	refresh := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-gate
		return "v2", nil
	}

	// Two reads inside the stale-revalidate window both get the stale
	// value immediately and share one background refresh.
	for i := 0; i < 2; i++ {
		v, err := c.GetOrCompute(context.Background(), "k", refresh)
		if err != nil || v != "v1" {
			t.Fatalf("stale read %d = %q, %v", i, v, err)
		}
	}
	close(gate)

	// Once the refresh lands the new value is served.
	deadline := time.Now().Add(2 * time.Second)
	for {
		v, err := c.GetOrCompute(context.Background(), "k", refresh)
		if err != nil {
			t.Fatal(err)
		}
		if v == "v2" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("background refresh never landed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 refresh call, got %d", got)
	}
}

func TestStaleIfErrorReturnsStaleOnFailure(t *testing.T) {
	c, clock := newTestCache(t, 10, testPolicy)
	base := clock.Now()

	seed := func(context.Context) (string, error) { return "v1", nil }
	if _, err := c.GetOrCompute(context.Background(), "k", seed); err != nil {
		t.Fatal(err)
	}

	clock.Set(base.Add(150 * time.Second))
	failing := func(context.Context) (string, error) {
		return "", errors.New("upstream down")
	}
	v, err := c.GetOrCompute(context.Background(), "k", failing)
	if err != nil {
		t.Fatalf("stale-if-error read should not fail: %v", err)
	}
	if v != "v1" {
		t.Fatalf("expected stale value, got %q", v)
	}
}

func TestStaleIfErrorReturnsFreshOnSuccess(t *testing.T) {
	c, clock := newTestCache(t, 10, testPolicy)
	base := clock.Now()

	seed := func(context.Context) (string, error) { return "v1", nil }
	if _, err := c.GetOrCompute(context.Background(), "k", seed); err != nil {
		t.Fatal(err)
	}

	clock.Set(base.Add(150 * time.Second))
	refresh := func(context.Context) (string, error) { return "v2", nil }
	v, err := c.GetOrCompute(context.Background(), "k", refresh)
	if err != nil || v != "v2" {
		t.Fatalf("synchronous refresh = %q, %v", v, err)
	}
}

func TestExpiredPropagatesFailure(t *testing.T) {
	c, clock := newTestCache(t, 10, testPolicy)
	base := clock.Now()

	seed := func(context.Context) (string, error) { return "v1", nil }
	if _, err := c.GetOrCompute(context.Background(), "k", seed); err != nil {
		t.Fatal(err)
	}

	clock.Set(base.Add(250 * time.Second))
	wantErr := errors.New("upstream down")
	failing := func(context.Context) (string, error) { return "", wantErr }
	if _, err := c.GetOrCompute(context.Background(), "k", failing); !errors.Is(err, wantErr) {
		t.Fatalf("expected propagated error, got %v", err)
	}
}

func TestColdKeySingleFlight(t *testing.T) {
	c, _ := newTestCache(t, 10, testPolicy)

	const n = 20
	var calls int32
	started := make(chan struct{}, n)
	gate := make(chan struct{})
	compute := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-gate
		return "v1", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- struct{}{}
			v, err := c.GetOrCompute(context.Background(), "k", compute)
			if err != nil || v != "v1" {
				t.Errorf("get = %q, %v", v, err)
			}
		}()
	}
	for i := 0; i < n; i++ {
		<-started
	}
	// Give every goroutine a chance to reach the wait point before
	// releasing the single compute.
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 compute for %d concurrent callers, got %d", n, got)
	}
}

func TestSingleFlightSurvivesEviction(t *testing.T) {
	c, _ := newTestCache(t, 1, testPolicy)

	var calls int32
	gate := make(chan struct{})
	started := make(chan struct{})
	slow := func(context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-gate
		return "va", nil
	}

	first := make(chan struct{})
	go func() {
		defer close(first)
		if v, err := c.GetOrCompute(context.Background(), "a", slow); err != nil || v != "va" {
			t.Errorf("first get = %q, %v", v, err)
		}
	}()
	<-started

	// Cycle a different key through the single LRU slot while the
	// computation for "a" is still running.
	if _, err := c.GetOrCompute(context.Background(), "b", func(context.Context) (string, error) {
		return "vb", nil
	}); err != nil {
		t.Fatal(err)
	}

	second := make(chan struct{})
	go func() {
		defer close(second)
		if v, err := c.GetOrCompute(context.Background(), "a", slow); err != nil || v != "va" {
			t.Errorf("second get = %q, %v", v, err)
		}
	}()
	time.Sleep(20 * time.Millisecond)
	close(gate)
	<-first
	<-second

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 compute for concurrent gets across eviction, got %d", got)
	}
}

func TestFailedComputeOccupiesNoSlot(t *testing.T) {
	c, _ := newTestCache(t, 1, testPolicy)

	var calls int32
	seed := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "va", nil
	}
	if _, err := c.GetOrCompute(context.Background(), "a", seed); err != nil {
		t.Fatal(err)
	}

	failing := func(context.Context) (string, error) {
		return "", errors.New("upstream down")
	}
	if _, err := c.GetOrCompute(context.Background(), "b", failing); err == nil {
		t.Fatal("expected error for failed cold compute")
	}
	if got := c.Len(); got != 1 {
		t.Fatalf("failed compute should not occupy a slot, got %d entries", got)
	}

	// The stored value survives and is still served fresh.
	if v, err := c.GetOrCompute(context.Background(), "a", seed); err != nil || v != "va" {
		t.Fatalf("get after failed neighbor = %q, %v", v, err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected cached value without recompute, got %d calls", got)
	}
}

func TestLRUEvictsBeyondCeiling(t *testing.T) {
	c, _ := newTestCache(t, 2, testPolicy)

	for _, key := range []string{"a", "b", "c"} {
		key := key
		if _, err := c.GetOrCompute(context.Background(), key, func(context.Context) (string, error) {
			return key, nil
		}); err != nil {
			t.Fatal(err)
		}
	}
	if got := c.Len(); got != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", got)
	}
}
