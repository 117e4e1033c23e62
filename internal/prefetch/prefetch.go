// Package prefetch warms the thread detail cache for content the user is
// scrolling past. It is deliberately gentle: nothing is fetched until a
// thread has stayed visible past the debounce window, items go out one at
// a time behind a rate limiter, and a constrained network pauses
// everything. Queue state is memory-only.
package prefetch

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultDebounce = 400 * time.Millisecond
	defaultInterval = time.Second
	queueDepth      = 64
)

// Network reports whether the current connection should not be used for
// speculative traffic. Checked again before every item, not just once.
type Network interface {
	Constrained() bool
}

// Unconstrained is the Network for deployments without a metered link.
type Unconstrained struct{}

func (Unconstrained) Constrained() bool { return false }

// DetailCache is the slice of the snapshot store the queue needs.
type DetailCache interface {
	HasThreadDetail(threadID string) bool
}

// FetchFunc loads one thread detail into the cache.
type FetchFunc func(ctx context.Context, sourceID, threadID string) error

type item struct {
	sourceID string
	threadID string
}

type Queue struct {
	cache    DetailCache
	network  Network
	fetch    FetchFunc
	debounce time.Duration
	limiter  *rate.Limiter

	mu      sync.Mutex
	pending map[string]*time.Timer
	items   chan item
}

// NewQueue builds a queue. Non-positive debounce or interval values fall
// back to the defaults.
func NewQueue(cache DetailCache, network Network, fetch FetchFunc, debounce, interval time.Duration) *Queue {
	if network == nil {
		network = Unconstrained{}
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Queue{
		cache:    cache,
		network:  network,
		fetch:    fetch,
		debounce: debounce,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		pending:  make(map[string]*time.Timer),
		items:    make(chan item, queueDepth),
	}
}

// Seen reports that a thread became visible. It enqueues only if the
// thread stays visible for the debounce window without a Dismiss.
func (q *Queue) Seen(sourceID, threadID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.pending[threadID]; ok {
		t.Stop()
	}
	q.pending[threadID] = time.AfterFunc(q.debounce, func() {
		q.mu.Lock()
		delete(q.pending, threadID)
		q.mu.Unlock()
		select {
		case q.items <- item{sourceID: sourceID, threadID: threadID}:
		default:
			// Full queue: the reader is outrunning the worker, drop.
		}
	})
}

// Dismiss reports that a thread scrolled out of view before the debounce
// window elapsed. Already-queued items are not recalled.
func (q *Queue) Dismiss(threadID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.pending[threadID]; ok {
		t.Stop()
		delete(q.pending, threadID)
	}
}

// Run drains the queue sequentially until the context ends.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-q.items:
			q.process(ctx, it)
		}
	}
}

func (q *Queue) process(ctx context.Context, it item) {
	if err := q.limiter.Wait(ctx); err != nil {
		return
	}
	if q.network.Constrained() {
		return
	}
	if q.cache.HasThreadDetail(it.threadID) {
		return
	}
	if err := q.fetch(ctx, it.sourceID, it.threadID); err != nil {
		if ctx.Err() == nil {
			log.Debugf("prefetch of %s/%s failed: %v", it.sourceID, it.threadID, err)
		}
	}
}
