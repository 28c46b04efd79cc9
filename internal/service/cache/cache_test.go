package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clinical-notes-service/internal/service/fingerprint"
)

func newTestCache(t *testing.T, capacity int) *Cache {
	t.Helper()
	c, err := New(Config{Capacity: capacity})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNew_RejectsNonPositiveCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		if _, err := New(Config{Capacity: capacity}); err == nil {
			t.Errorf("capacity %d: expected error", capacity)
		}
	}
}

func TestInsertLookup(t *testing.T) {
	c := newTestCache(t, 4)
	fp := fingerprint.FromBytes([]byte("audio"))

	if _, ok := c.Lookup(fp); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Insert(fp, "hello")
	got, ok := c.Lookup(fp)
	if !ok || got != "hello" {
		t.Fatalf("Lookup() = %q, %v; want hello, true", got, ok)
	}

	c.Insert(fp, "hello again")
	if got, _ := c.Lookup(fp); got != "hello again" {
		t.Errorf("expected overwrite, got %q", got)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestGetOrCompute_HitSkipsCompute(t *testing.T) {
	c := newTestCache(t, 4)
	fp := fingerprint.FromBytes([]byte("audio"))
	c.Insert(fp, "cached")

	got, src, err := c.GetOrCompute(context.Background(), fp, func(context.Context) (string, error) {
		t.Error("compute must not run on a hit")
		return "", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "cached" || src != SourceMemory || !src.Hit() {
		t.Errorf("got %q from %s", got, src)
	}
}

func TestGetOrCompute_ConcurrentIdenticalComputesOnce(t *testing.T) {
	c := newTestCache(t, 4)
	fp := fingerprint.FromBytes([]byte("same audio"))

	const callers = 8
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "transcript", nil
	}

	var wg sync.WaitGroup
	results := make([]string, callers)
	sources := make([]Source, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], sources[i], errs[i] = c.GetOrCompute(context.Background(), fp, compute)
		}(i)
	}

	waitFor(t, "callers to coalesce", func() bool {
		return c.Stats().Coalesced == callers-1
	})
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("compute ran %d times, want 1", n)
	}
	computed := 0
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d: unexpected error %v", i, errs[i])
		}
		if results[i] != "transcript" {
			t.Errorf("caller %d: got %q", i, results[i])
		}
		if sources[i] == SourceComputed {
			computed++
		}
	}
	if computed != 1 {
		t.Errorf("expected exactly one computing caller, got %d", computed)
	}
	if got, ok := c.Lookup(fp); !ok || got != "transcript" {
		t.Errorf("expected cached transcript, got %q, %v", got, ok)
	}
	if stats := c.Stats(); stats.Misses != 1 || stats.InFlight != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestGetOrCompute_FailureNotCached(t *testing.T) {
	c := newTestCache(t, 4)
	fp := fingerprint.FromBytes([]byte("audio"))
	boom := errors.New("model unavailable")

	_, _, err := c.GetOrCompute(context.Background(), fp, func(context.Context) (string, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
	if _, ok := c.Lookup(fp); ok {
		t.Fatal("failed computation must not be cached")
	}

	got, src, err := c.GetOrCompute(context.Background(), fp, func(context.Context) (string, error) {
		return "second try", nil
	})
	if err != nil || got != "second try" || src != SourceComputed {
		t.Errorf("retry got %q, %s, %v", got, src, err)
	}
}

func TestGetOrCompute_PanicBecomesError(t *testing.T) {
	c := newTestCache(t, 4)
	fp := fingerprint.FromBytes([]byte("audio"))

	_, _, err := c.GetOrCompute(context.Background(), fp, func(context.Context) (string, error) {
		panic("decoder exploded")
	})
	if err == nil {
		t.Fatal("expected error from panicking compute")
	}
	if _, ok := c.Lookup(fp); ok {
		t.Error("panicked computation must not be cached")
	}
}

func TestGetOrCompute_LastWaiterCancelsComputation(t *testing.T) {
	c := newTestCache(t, 4)
	fp := fingerprint.FromBytes([]byte("audio"))

	started := make(chan struct{})
	sawCancel := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(ctx, fp, func(fctx context.Context) (string, error) {
			close(started)
			<-fctx.Done()
			close(sawCancel)
			return "late result", nil
		})
		errCh <- err
	}()

	<-started
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	select {
	case <-sawCancel:
	case <-time.After(2 * time.Second):
		t.Fatal("computation was not cancelled after the last waiter left")
	}

	got, src, err := c.GetOrCompute(context.Background(), fp, func(context.Context) (string, error) {
		return "fresh", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "fresh" || src != SourceComputed {
		t.Errorf("cancelled computation leaked into cache: got %q from %s", got, src)
	}
}

func TestGetOrCompute_RemainingWaiterKeepsComputation(t *testing.T) {
	c := newTestCache(t, 4)
	fp := fingerprint.FromBytes([]byte("audio"))

	release := make(chan struct{})
	var computeCancelled atomic.Bool
	compute := func(fctx context.Context) (string, error) {
		select {
		case <-release:
			return "transcript", nil
		case <-fctx.Done():
			computeCancelled.Store(true)
			return "", fctx.Err()
		}
	}

	leaverCtx, leave := context.WithCancel(context.Background())
	leaverErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(leaverCtx, fp, compute)
		leaverErr <- err
	}()
	waitFor(t, "first caller to start a flight", func() bool { return c.Stats().InFlight == 1 })

	stayerDone := make(chan string, 1)
	go func() {
		got, _, _ := c.GetOrCompute(context.Background(), fp, compute)
		stayerDone <- got
	}()
	waitFor(t, "second caller to join", func() bool { return c.Stats().Coalesced == 1 })

	leave()
	if err := <-leaverErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected leaver to get context.Canceled, got %v", err)
	}

	close(release)
	if got := <-stayerDone; got != "transcript" {
		t.Errorf("remaining waiter got %q", got)
	}
	if computeCancelled.Load() {
		t.Error("computation was cancelled while a waiter remained")
	}
}

func TestGetOrCompute_DistinctFingerprintsDoNotBlock(t *testing.T) {
	c := newTestCache(t, 4)
	slow := fingerprint.FromBytes([]byte("slow"))
	fast := fingerprint.FromBytes([]byte("fast"))

	release := make(chan struct{})
	defer close(release)
	go c.GetOrCompute(context.Background(), slow, func(context.Context) (string, error) {
		<-release
		return "slow", nil
	})
	waitFor(t, "slow flight", func() bool { return c.Stats().InFlight == 1 })

	done := make(chan struct{})
	go func() {
		defer close(done)
		got, _, err := c.GetOrCompute(context.Background(), fast, func(context.Context) (string, error) {
			return "fast", nil
		})
		if err != nil || got != "fast" {
			t.Errorf("fast got %q, %v", got, err)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("distinct fingerprint blocked behind an unrelated computation")
	}
}

func TestEviction_MakesLookupMiss(t *testing.T) {
	c := newTestCache(t, 2)
	a := fingerprint.FromBytes([]byte("a"))
	b := fingerprint.FromBytes([]byte("b"))
	d := fingerprint.FromBytes([]byte("d"))

	c.Insert(a, "A")
	c.Insert(b, "B")
	c.Lookup(a) // a is now most recently used
	c.Insert(d, "D")

	if _, ok := c.Lookup(b); ok {
		t.Error("expected least recently used entry to be evicted")
	}
	if _, ok := c.Lookup(a); !ok {
		t.Error("recently used entry should survive")
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("expected 1 eviction, got %d", got)
	}

	var calls int
	got, src, err := c.GetOrCompute(context.Background(), b, func(context.Context) (string, error) {
		calls++
		return "B again", nil
	})
	if err != nil || got != "B again" || src != SourceComputed || calls != 1 {
		t.Errorf("evicted entry: got %q from %s, calls=%d, err=%v", got, src, calls, err)
	}
}
