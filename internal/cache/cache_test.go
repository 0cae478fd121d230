package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGet_MissFetchesSynchronously(t *testing.T) {
	c := New[string](time.Minute, testLogger())

	var calls int64
	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt64(&calls, 1)
		return "value", nil
	}

	got, err := c.Get(context.Background(), "campaign:1", fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "value" {
		t.Errorf("got %q, want %q", got, "value")
	}
	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Errorf("fetcher called %d times, want 1", n)
	}

	// Fresh hit: no second fetch.
	got, err = c.Get(context.Background(), "campaign:1", fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "value" {
		t.Errorf("got %q, want %q", got, "value")
	}
	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Errorf("fetcher called %d times after fresh hit, want 1", n)
	}
}

func TestGet_SingleFlightCoalescesConcurrentFetches(t *testing.T) {
	c := New[int](time.Minute, testLogger())

	var calls int64
	release := make(chan struct{})
	fetch := func(ctx context.Context) (int, error) {
		atomic.AddInt64(&calls, 1)
		<-release
		return 42, nil
	}

	const concurrency = 10
	results := make([]int, concurrency)
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background(), "metrics:7", fetch)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[i] = v
		}(i)
	}

	// Give every caller time to reach the in-flight fetch before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Errorf("fetcher called %d times, want exactly 1", n)
	}
	for i, v := range results {
		if v != 42 {
			t.Errorf("caller %d got %d, want 42", i, v)
		}
	}
}

func TestGet_MissFetchErrorCachesNothing(t *testing.T) {
	c := New[string](time.Minute, testLogger())

	var calls int64
	fetchErr := errors.New("backend unavailable")
	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt64(&calls, 1)
		return "", fetchErr
	}

	if _, err := c.Get(context.Background(), "campaign:1", fetch); !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("failed miss left %d entries cached, want 0", c.Len())
	}

	// Next call must attempt a fresh fetch, not return a cached failure.
	if _, err := c.Get(context.Background(), "campaign:1", fetch); !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if n := atomic.LoadInt64(&calls); n != 2 {
		t.Errorf("fetcher called %d times, want 2", n)
	}
}

func TestInvalidate_NextGetFetchesSynchronously(t *testing.T) {
	c := New[string](time.Minute, testLogger())

	var calls int64
	fetch := func(ctx context.Context) (string, error) {
		if atomic.AddInt64(&calls, 1) == 1 {
			return "old", nil
		}
		return "new", nil
	}

	if _, err := c.Get(context.Background(), "campaign:3", fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.Invalidate("campaign:3")

	got, err := c.Get(context.Background(), "campaign:3", fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "new" {
		t.Errorf("got %q after invalidate, want %q", got, "new")
	}
	if n := atomic.LoadInt64(&calls); n != 2 {
		t.Errorf("fetcher called %d times, want 2", n)
	}
}

func TestInvalidatePrefix_RemovesMatchingKeysOnly(t *testing.T) {
	c := New[string](time.Minute, testLogger())

	fetch := func(v string) Fetcher[string] {
		return func(ctx context.Context) (string, error) { return v, nil }
	}

	ctx := context.Background()
	c.Get(ctx, "campaigns:list:page=1", fetch("a"))
	c.Get(ctx, "campaigns:list:page=2", fetch("b"))
	c.Get(ctx, "campaign:9", fetch("c"))

	c.InvalidatePrefix("campaigns:list")

	if c.Len() != 1 {
		t.Errorf("cache holds %d entries after prefix invalidation, want 1", c.Len())
	}

	var calls int64
	counted := func(ctx context.Context) (string, error) {
		atomic.AddInt64(&calls, 1)
		return "c", nil
	}
	if _, err := c.Get(ctx, "campaign:9", counted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := atomic.LoadInt64(&calls); n != 0 {
		t.Errorf("detail entry was evicted by unrelated prefix invalidation")
	}
}

func TestInvalidatePrefix_DiscardsInFlightMissResults(t *testing.T) {
	c := New[string](time.Minute, testLogger())

	started := make(chan struct{})
	release := make(chan struct{})
	preMutation := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "before", nil
	}

	// A list fetch is in flight when the mutation invalidates the prefix.
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		if _, err := c.Get(context.Background(), "campaigns:list:page=1", preMutation); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}()
	<-started

	c.InvalidatePrefix("campaigns:list")
	close(release)
	<-firstDone

	// The pre-mutation result must not have re-entered the cache: the next
	// Get fetches synchronously and sees post-mutation data.
	var calls int64
	postMutation := func(ctx context.Context) (string, error) {
		atomic.AddInt64(&calls, 1)
		return "after", nil
	}

	got, err := c.Get(context.Background(), "campaigns:list:page=1", postMutation)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "after" {
		t.Errorf("got %q, want %q: stale in-flight result survived prefix invalidation", got, "after")
	}
	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Errorf("fetcher called %d times, want 1 synchronous fetch after invalidation", n)
	}
}

func TestFlightRecordsPrunedAfterFetch(t *testing.T) {
	c := New[string](time.Minute, testLogger())

	fetch := func(v string) Fetcher[string] {
		return func(ctx context.Context) (string, error) { return v, nil }
	}

	ctx := context.Background()
	for i, key := range []string{"campaigns:list:page=1", "campaigns:list:page=2", "campaign:1"} {
		if _, err := c.Get(ctx, key, fetch("v")); err != nil {
			t.Fatalf("get %d: unexpected error: %v", i, err)
		}
	}

	// Invalidations must not leave bookkeeping behind once nothing is in
	// flight, no matter how many distinct keys come and go.
	c.InvalidatePrefix("campaigns:list")
	c.Invalidate("campaign:1")
	c.Invalidate("campaign:2")

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.flights) != 0 {
		t.Errorf("%d flight records retained with no fetch in flight, want 0", len(c.flights))
	}
}

func TestGet_StaleHitReturnsCachedThenRevalidates(t *testing.T) {
	c := New[string](0, testLogger()) // every hit is stale

	var calls int64
	fetch := func(ctx context.Context) (string, error) {
		if atomic.AddInt64(&calls, 1) == 1 {
			return "v1", nil
		}
		return "v2", nil
	}

	ctx := context.Background()
	if _, err := c.Get(ctx, "campaign:5", fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Stale hit: the cached value comes back immediately while the refresh
	// runs in the background.
	got, err := c.Get(ctx, "campaign:5", fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "v1" {
		t.Errorf("stale hit returned %q, want cached %q", got, "v1")
	}

	// The background pass eventually lands the refreshed value.
	deadline := time.After(2 * time.Second)
	for {
		got, _ = c.Get(ctx, "campaign:5", fetch)
		if got == "v2" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("refreshed value never applied, still %q", got)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestGet_BackgroundRefreshFailureKeepsStaleValue(t *testing.T) {
	c := New[string](0, testLogger())

	var calls int64
	failed := make(chan struct{}, 8)
	fetch := func(ctx context.Context) (string, error) {
		if atomic.AddInt64(&calls, 1) == 1 {
			return "v1", nil
		}
		failed <- struct{}{}
		return "", errors.New("refresh failed")
	}

	ctx := context.Background()
	if _, err := c.Get(ctx, "campaign:8", fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := c.Get(ctx, "campaign:8", fetch)
	if err != nil {
		t.Fatalf("stale hit surfaced background error: %v", err)
	}
	if got != "v1" {
		t.Errorf("got %q, want stale %q", got, "v1")
	}

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("background refresh never ran")
	}

	// The stale value survives the failed refresh.
	got, err = c.Get(ctx, "campaign:8", fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "v1" {
		t.Errorf("got %q after failed refresh, want stale %q", got, "v1")
	}
}

func TestReset_DiscardsInFlightResults(t *testing.T) {
	c := New[string](0, testLogger())

	prime := func(ctx context.Context) (string, error) { return "v1", nil }
	if _, err := c.Get(context.Background(), "campaign:2", prime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	slow := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "v2", nil
	}

	// Stale hit kicks off the slow background refresh.
	if _, err := c.Get(context.Background(), "campaign:2", slow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-started

	// Scope teardown while the refresh is in flight.
	c.Reset()
	close(release)

	// The late result must be discarded on arrival, not applied.
	deadline := time.After(time.Second)
	for c.Len() != 0 {
		select {
		case <-deadline:
			t.Fatalf("in-flight result was applied after reset, %d entries cached", c.Len())
		case <-time.After(5 * time.Millisecond):
		}
	}
	time.Sleep(20 * time.Millisecond)
	if c.Len() != 0 {
		t.Errorf("in-flight result resurrected %d entries after reset", c.Len())
	}
}

func TestApply_OlderFetchNeverOverwritesNewer(t *testing.T) {
	c := New[string](time.Minute, testLogger())

	c.apply("campaign:4", fetchResult[string]{value: "newer", seq: 2}, 0, 0)
	c.apply("campaign:4", fetchResult[string]{value: "older", seq: 1}, 0, 0)

	got, err := c.Get(context.Background(), "campaign:4", func(ctx context.Context) (string, error) {
		return "", errors.New("should not fetch")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "newer" {
		t.Errorf("got %q, want %q: older in-flight result overwrote newer one", got, "newer")
	}
}
