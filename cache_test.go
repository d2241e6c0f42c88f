package cache_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	cache "github.com/krisalay/memocache"
	"github.com/krisalay/memocache/expiration"
)

//
// ================= TEST HELPERS =================
//

type recordingMetrics struct {
	mu        sync.Mutex
	hits      int
	misses    int
	stored    int
	failed    int
	remaining []time.Duration
}

func (m *recordingMetrics) Hit(_ context.Context, remaining time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
	m.remaining = append(m.remaining, remaining)
}

func (m *recordingMetrics) Miss(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
}

func (m *recordingMetrics) Stored(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored++
}

func (m *recordingMetrics) Failed(context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed++
}

// counter returns a computation that counts its calls and returns result.
func counter(calls *atomic.Int32, result int, err error) func(context.Context) (int, error) {
	return func(context.Context) (int, error) {
		calls.Add(1)
		return result, err
	}
}

func newTestCache(clock expiration.Clock) *cache.Cache[string, int] {
	return cache.New[string, int](cache.WithName("test"), cache.WithClock(clock))
}

var epoch = time.Unix(1_700_000_000, 0)

//
// ================= BASIC OPERATIONS =================
//

func TestMissThenCompute(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(expiration.NewManualClock(epoch))

	var calls atomic.Int32
	v, err := c.GetOrInsertWith(ctx, "k", time.Minute, counter(&calls, 42, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected compute to run once, ran %d times", calls.Load())
	}
	if c.Len() != 1 {
		t.Fatalf("expected one stored entry, got %d", c.Len())
	}
}

func TestHitWithinWindow(t *testing.T) {
	ctx := context.Background()
	clock := expiration.NewManualClock(epoch)
	c := newTestCache(clock)

	var calls atomic.Int32
	c.GetOrInsertWith(ctx, "k", 10*time.Second, counter(&calls, 1, nil))

	for _, step := range []time.Duration{0, 3 * time.Second, 6*time.Second + 999*time.Millisecond} {
		clock.Advance(step)
		v, err := c.GetOrInsertWith(ctx, "k", 10*time.Second, counter(&calls, 2, nil))
		if err != nil || v != 1 {
			t.Fatalf("expected cached 1, got %d, %v", v, err)
		}
	}

	if calls.Load() != 1 {
		t.Fatalf("expected compute to run once, ran %d times", calls.Load())
	}
}

func TestMissAfterExpiry(t *testing.T) {
	ctx := context.Background()
	clock := expiration.NewManualClock(epoch)
	c := newTestCache(clock)

	var calls atomic.Int32
	c.GetOrInsertWith(ctx, "k", 10*time.Second, counter(&calls, 1, nil))

	// exactly t0 + ttl is already stale
	clock.Advance(10 * time.Second)

	v, _ := c.GetOrInsertWith(ctx, "k", 10*time.Second, counter(&calls, 2, nil))
	if v != 2 {
		t.Fatalf("expected recomputed 2, got %d", v)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected two computations, got %d", calls.Load())
	}

	// the stale entry was replaced, not added next to
	if c.Len() != 1 {
		t.Fatalf("expected one entry, got %d", c.Len())
	}
}

func TestNoNegativeCaching(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(expiration.NewManualClock(epoch))

	boom := errors.New("boom")
	var calls atomic.Int32

	if _, err := c.GetOrInsertWith(ctx, "k", time.Minute, counter(&calls, 0, boom)); err != boom {
		t.Fatalf("expected boom, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("failed computation must not create an entry")
	}

	v, err := c.GetOrInsertWith(ctx, "k", time.Minute, counter(&calls, 7, nil))
	if err != nil || v != 7 {
		t.Fatalf("expected fresh 7, got %d, %v", v, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected second lookup to compute again, calls=%d", calls.Load())
	}
}

func TestFailureKeepsPreviousEntry(t *testing.T) {
	ctx := context.Background()
	clock := expiration.NewManualClock(epoch)
	c := newTestCache(clock)

	var calls atomic.Int32
	c.GetOrInsertWith(ctx, "k", time.Second, counter(&calls, 1, nil))
	clock.Advance(2 * time.Second)

	boom := errors.New("boom")
	if _, err := c.GetOrInsertWith(ctx, "k", time.Second, counter(&calls, 0, boom)); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	// the stale entry is untouched by the failure and still stale
	if got := c.TTL("k"); got != -2 {
		t.Fatalf("expected stale entry, TTL=%v", got)
	}
	if c.Len() != 1 {
		t.Fatalf("stale entry should remain physically present, len=%d", c.Len())
	}
}

func TestZeroTTLNeverHits(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(expiration.NewManualClock(epoch))

	var calls atomic.Int32
	c.GetOrInsertWith(ctx, "k", 0, counter(&calls, 1, nil))
	c.GetOrInsertWith(ctx, "k", 0, counter(&calls, 1, nil))

	if calls.Load() != 2 {
		t.Fatalf("zero ttl should never produce a hit, calls=%d", calls.Load())
	}
}

func TestTupleKeys(t *testing.T) {
	type key struct {
		Chain   string
		Address string
	}

	ctx := context.Background()
	c := cache.New[key, int](cache.WithClock(expiration.NewManualClock(epoch)))

	var calls atomic.Int32
	c.GetOrInsertWith(ctx, key{"eth", "0x1"}, time.Minute, counter(&calls, 1, nil))
	c.GetOrInsertWith(ctx, key{"eth", "0x1"}, time.Minute, counter(&calls, 1, nil))
	c.GetOrInsertWith(ctx, key{"sol", "0x1"}, time.Minute, counter(&calls, 1, nil))

	if calls.Load() != 2 {
		t.Fatalf("expected one computation per distinct key, got %d", calls.Load())
	}
}

//
// ================= SCENARIOS =================
//

func TestScenarioBalanceWindow(t *testing.T) {
	ctx := context.Background()
	clock := expiration.NewManualClock(epoch)
	c := newTestCache(clock)

	var calls atomic.Int32
	v, _ := c.GetOrInsertWith(ctx, "123", 10*time.Second, counter(&calls, 500, nil))
	if v != 500 {
		t.Fatalf("expected 500, got %d", v)
	}

	clock.Set(epoch.Add(5 * time.Second))
	v, _ = c.GetOrInsertWith(ctx, "123", 10*time.Second, counter(&calls, 600, nil))
	if v != 500 || calls.Load() != 1 {
		t.Fatalf("t=5: expected cached 500 without compute, got %d (calls=%d)", v, calls.Load())
	}

	clock.Set(epoch.Add(11 * time.Second))
	v, _ = c.GetOrInsertWith(ctx, "123", 10*time.Second, counter(&calls, 600, nil))
	if v != 600 || calls.Load() != 2 {
		t.Fatalf("t=11: expected recomputed 600, got %d (calls=%d)", v, calls.Load())
	}
}

func TestScenarioErrorRetried(t *testing.T) {
	ctx := context.Background()
	clock := expiration.NewManualClock(epoch)
	c := newTestCache(clock)

	var calls atomic.Int32
	boom := errors.New("boom")
	if _, err := c.GetOrInsertWith(ctx, "abc", 10*time.Second, counter(&calls, 0, boom)); err != boom {
		t.Fatalf("expected boom, got %v", err)
	}

	clock.Advance(time.Millisecond)
	if _, err := c.GetOrInsertWith(ctx, "abc", 10*time.Second, counter(&calls, 0, boom)); err != boom {
		t.Fatalf("expected boom again, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected compute on both lookups, got %d", calls.Load())
	}
}

//
// ================= TTL & METRICS =================
//

func TestTTL(t *testing.T) {
	ctx := context.Background()
	clock := expiration.NewManualClock(epoch)
	c := newTestCache(clock)

	if got := c.TTL("k"); got != -2 {
		t.Fatalf("expected -2 for missing key, got %v", got)
	}

	var calls atomic.Int32
	c.GetOrInsertWith(ctx, "k", 10*time.Second, counter(&calls, 1, nil))
	clock.Advance(4 * time.Second)

	if got := c.TTL("k"); got != 6*time.Second {
		t.Fatalf("expected 6s remaining, got %v", got)
	}

	clock.Advance(6 * time.Second)
	if got := c.TTL("k"); got != -2 {
		t.Fatalf("expected -2 for stale key, got %v", got)
	}
}

// The window starts when the value is stored, not when the lookup began.
func TestExpiryCountsFromInsertTime(t *testing.T) {
	ctx := context.Background()
	clock := expiration.NewManualClock(epoch)
	c := newTestCache(clock)

	var calls atomic.Int32
	slow := func(context.Context) (int, error) {
		calls.Add(1)
		clock.Advance(3 * time.Second)
		return 1, nil
	}

	if _, err := c.GetOrInsertWith(ctx, "k", 10*time.Second, slow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.TTL("k"); got != 10*time.Second {
		t.Fatalf("expected full 10s right after insert, got %v", got)
	}

	inserted := epoch.Add(3 * time.Second)

	clock.Set(inserted.Add(10*time.Second - time.Nanosecond))
	v, _ := c.GetOrInsertWith(ctx, "k", 10*time.Second, counter(&calls, 2, nil))
	if v != 1 || calls.Load() != 1 {
		t.Fatalf("expected cached 1 just before insert+ttl, got %d after %d calls", v, calls.Load())
	}

	clock.Set(inserted.Add(10 * time.Second))
	v, _ = c.GetOrInsertWith(ctx, "k", 10*time.Second, counter(&calls, 2, nil))
	if v != 2 || calls.Load() != 2 {
		t.Fatalf("expected recompute at insert+ttl, got %d after %d calls", v, calls.Load())
	}
}

func TestMetricsEvents(t *testing.T) {
	ctx := context.Background()
	clock := expiration.NewManualClock(epoch)
	m := &recordingMetrics{}
	c := cache.New[string, int](cache.WithClock(clock), cache.WithMetrics(m))

	var calls atomic.Int32
	c.GetOrInsertWith(ctx, "k", 10*time.Second, counter(&calls, 1, nil))
	clock.Advance(3 * time.Second)
	c.GetOrInsertWith(ctx, "k", 10*time.Second, counter(&calls, 1, nil))
	c.GetOrInsertWith(ctx, "other", 10*time.Second, counter(&calls, 0, errors.New("nope")))

	if m.hits != 1 || m.misses != 2 || m.stored != 1 || m.failed != 1 {
		t.Fatalf("unexpected events: hits=%d misses=%d stored=%d failed=%d",
			m.hits, m.misses, m.stored, m.failed)
	}
	if m.remaining[0] != 7*time.Second {
		t.Fatalf("expected hit to carry 7s remaining, got %v", m.remaining[0])
	}
}

//
// ================= CANCELLATION =================
//

func TestCancelledComputeStoresNothing(t *testing.T) {
	c := newTestCache(expiration.NewManualClock(epoch))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetOrInsertWith(ctx, "k", time.Minute, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("cancelled computation must not leave an entry")
	}
}

//
// ================= CONCURRENCY TEST =================
//

// Concurrent misses for the same key are not deduplicated: both callers
// compute and the last write wins.
func TestConcurrentMissesMayBothCompute(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(expiration.NewManualClock(epoch))

	var calls atomic.Int32
	entered := make(chan struct{}, 2)
	release := make(chan struct{})

	compute := func(context.Context) (int, error) {
		n := calls.Add(1)
		entered <- struct{}{}
		<-release
		return int(n), nil
	}

	var wg sync.WaitGroup
	results := make([]int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			v, err := c.GetOrInsertWith(ctx, "k", time.Minute, compute)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[id] = v
		}(i)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			close(release)
			t.Fatalf("expected both callers to be computing concurrently")
		}
	}
	close(release)
	wg.Wait()

	if calls.Load() != 2 {
		t.Fatalf("expected both misses to compute, got %d", calls.Load())
	}
	if c.Len() != 1 {
		t.Fatalf("expected a single entry after racing inserts, got %d", c.Len())
	}

	// whichever insert came last is now served
	v, _ := c.GetOrInsertWith(ctx, "k", time.Minute, counter(&calls, 99, nil))
	if v != 1 && v != 2 {
		t.Fatalf("expected one of the raced values, got %d", v)
	}
}

func TestSingleFlightComputesOnce(t *testing.T) {
	ctx := context.Background()
	c := cache.New[int, string](
		cache.WithClock(expiration.NewManualClock(epoch)),
		cache.WithSingleFlight(strconv.Itoa),
	)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrInsertWith(ctx, 42, time.Minute, compute)
			if err != nil || v != "value" {
				t.Errorf("expected value, got %q, %v", v, err)
			}
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected a single computation, got %d", calls.Load())
	}
}

// Only the caller that computes reports a miss. A later flight that finds
// the value on its re-check reports a hit.
func TestSingleFlightMissesMatchComputations(t *testing.T) {
	ctx := context.Background()
	m := &recordingMetrics{}
	c := cache.New[int, string](
		cache.WithClock(expiration.NewManualClock(epoch)),
		cache.WithMetrics(m),
		cache.WithSingleFlight(strconv.Itoa),
	)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetOrInsertWith(ctx, 7, time.Minute, compute)
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.misses != int(calls.Load()) || m.misses != 1 {
		t.Fatalf("expected one miss for one computation, got misses=%d calls=%d", m.misses, calls.Load())
	}
	if m.stored != 1 {
		t.Fatalf("expected one store, got %d", m.stored)
	}
	if m.hits > 9 {
		t.Fatalf("expected at most one event per follower, got %d hits", m.hits)
	}
}

func TestSingleFlightKeyTypeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for mismatched key function")
		}
	}()

	cache.New[string, int](cache.WithSingleFlight(strconv.Itoa))
}

func TestConcurrentGet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(expiration.NewManualClock(epoch))

	c.GetOrInsertWith(ctx, "key", time.Minute, func(context.Context) (int, error) { return 1, nil })

	wg := sync.WaitGroup{}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _ := c.GetOrInsertWith(ctx, "key", time.Minute, func(context.Context) (int, error) {
				return 2, nil
			})
			if v != 1 {
				t.Errorf("expected 1, got %v", v)
			}
		}()
	}

	wg.Wait()
}
