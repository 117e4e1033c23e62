package prefetch

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeCache struct {
	mu  sync.Mutex
	has map[string]bool
}

func (c *fakeCache) HasThreadDetail(threadID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.has[threadID]
}

type recorder struct {
	mu    sync.Mutex
	calls []string
	times []time.Time
	ch    chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 16)}
}

func (r *recorder) fetch(ctx context.Context, sourceID, threadID string) error {
	r.mu.Lock()
	r.calls = append(r.calls, sourceID+"/"+threadID)
	r.times = append(r.times, time.Now())
	r.mu.Unlock()
	r.ch <- threadID
	return nil
}

func (r *recorder) wait(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-r.ch:
		if got != want {
			t.Fatalf("fetched %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fetch of %q", want)
	}
}

func testQueue(t *testing.T, cache *fakeCache, network Network) (*Queue, *recorder) {
	t.Helper()
	if cache == nil {
		cache = &fakeCache{}
	}
	rec := newRecorder()
	q := NewQueue(cache, network, rec.fetch, 20*time.Millisecond, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go q.Run(ctx)
	return q, rec
}

func TestSeenEnqueuesAfterDebounce(t *testing.T) {
	q, rec := testQueue(t, nil, nil)
	q.Seen("fake", "t1")

	rec.mu.Lock()
	early := len(rec.calls)
	rec.mu.Unlock()
	if early != 0 {
		t.Fatal("fetched before the debounce window elapsed")
	}
	rec.wait(t, "t1")
}

func TestDismissBeforeDebounceCancels(t *testing.T) {
	q, rec := testQueue(t, nil, nil)
	q.Seen("fake", "t1")
	q.Dismiss("t1")
	q.Seen("fake", "t2")
	rec.wait(t, "t2")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, c := range rec.calls {
		if c == "fake/t1" {
			t.Fatal("dismissed thread was fetched")
		}
	}
}

func TestCacheResidentThreadsAreSkipped(t *testing.T) {
	cache := &fakeCache{has: map[string]bool{"t1": true}}
	q, rec := testQueue(t, cache, nil)
	q.Seen("fake", "t1")
	q.Seen("fake", "t2")
	rec.wait(t, "t2")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.calls) != 1 {
		t.Fatalf("calls = %v, want only the uncached thread", rec.calls)
	}
}

type flakyNetwork struct {
	mu          sync.Mutex
	constrained bool
}

func (n *flakyNetwork) Constrained() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.constrained
}

func (n *flakyNetwork) set(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.constrained = v
}

func TestNetworkRecheckedPerItem(t *testing.T) {
	network := &flakyNetwork{constrained: true}
	q, rec := testQueue(t, nil, network)

	q.Seen("fake", "t1")
	// Give the constrained item time to be processed and dropped.
	time.Sleep(150 * time.Millisecond)
	rec.mu.Lock()
	dropped := len(rec.calls)
	rec.mu.Unlock()
	if dropped != 0 {
		t.Fatal("fetched on a constrained network")
	}

	network.set(false)
	q.Seen("fake", "t2")
	rec.wait(t, "t2")
}

func TestItemsGoOutSequentiallyWithSpacing(t *testing.T) {
	cache := &fakeCache{}
	rec := newRecorder()
	q := NewQueue(cache, nil, rec.fetch, time.Millisecond, 80*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go q.Run(ctx)

	q.Seen("fake", "t1")
	time.Sleep(10 * time.Millisecond)
	q.Seen("fake", "t2")
	rec.wait(t, "t1")
	rec.wait(t, "t2")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if gap := rec.times[1].Sub(rec.times[0]); gap < 60*time.Millisecond {
		t.Errorf("items only %v apart, want the limiter to pace them", gap)
	}
}
