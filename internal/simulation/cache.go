package simulation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/couchcryptid/storm-data-flood-service/internal/domain"
	"github.com/couchcryptid/storm-data-flood-service/internal/observability"
	"golang.org/x/sync/singleflight"
)

// CachedSimulator wraps a Runner with an in-memory LRU cache of summaries.
// Identical requests in flight at the same time share one engine run. The
// shared run is detached from any single caller's cancellation; each caller
// stops waiting when its own context ends. Cached summaries are shared between
// callers and must not be mutated.
type CachedSimulator struct {
	inner   Runner
	cache   *lruCache[domain.FloodSummary]
	group   singleflight.Group
	metrics *observability.Metrics
}

// NewCachedSimulator creates a cache decorator around a runner.
func NewCachedSimulator(inner Runner, maxEntries int, metrics *observability.Metrics) *CachedSimulator {
	return &CachedSimulator{
		inner:   inner,
		cache:   newLRUCache[domain.FloodSummary](maxEntries),
		metrics: metrics,
	}
}

// CheckReadiness delegates to the wrapped runner.
func (c *CachedSimulator) CheckReadiness(ctx context.Context) error {
	return c.inner.CheckReadiness(ctx)
}

// Simulate returns a cached summary for an identical earlier request or runs
// the wrapped simulator. Only successful runs are cached.
func (c *CachedSimulator) Simulate(ctx context.Context, req domain.SimulationRequest) (domain.FloodSummary, error) {
	key, err := requestKey(req)
	if err != nil {
		return domain.FloodSummary{}, err
	}
	if summary, ok := c.cache.get(key); ok {
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return summary, nil
	}
	c.metrics.CacheLookups.WithLabelValues("miss").Inc()

	// The engine timeout bounds the detached run.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// A call that finished since the lookup above may have filled the entry.
		if summary, ok := c.cache.get(key); ok {
			return summary, nil
		}
		summary, err := c.inner.Simulate(shared, req)
		if err != nil {
			return domain.FloodSummary{}, err
		}
		c.cache.put(key, summary)
		return summary, nil
	})

	select {
	case <-ctx.Done():
		return domain.FloodSummary{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.FloodSummary{}, res.Err
		}
		return res.Val.(domain.FloodSummary), nil
	}
}

// requestKey hashes the request's JSON form. Map keys marshal sorted, so equal
// requests hash equally regardless of construction order.
func requestKey(req domain.SimulationRequest) (string, error) {
	if req.Rainfall.IsZero() {
		req.Rainfall = nil
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("hash request: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// lruCache is a thread-safe least-recently-used cache. Entries hang off a
// circular list around a sentinel: root.next is the newest, root.prev the oldest.
type lruCache[V any] struct {
	mu       sync.Mutex
	capacity int
	index    map[string]*lruNode[V]
	root     lruNode[V]
}

type lruNode[V any] struct {
	key        string
	value      V
	prev, next *lruNode[V]
}

func newLRUCache[V any](capacity int) *lruCache[V] {
	c := &lruCache[V]{capacity: capacity, index: make(map[string]*lruNode[V])}
	c.root.prev = &c.root
	c.root.next = &c.root
	return c
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.unlink(n)
	c.pushFront(n)
	return n.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.index[key]; ok {
		n.value = value
		c.unlink(n)
		c.pushFront(n)
		return
	}

	n := &lruNode[V]{key: key, value: value}
	c.index[key] = n
	c.pushFront(n)

	for len(c.index) > c.capacity {
		oldest := c.root.prev
		c.unlink(oldest)
		delete(c.index, oldest.key)
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *lruCache[V]) pushFront(n *lruNode[V]) {
	n.prev = &c.root
	n.next = c.root.next
	c.root.next.prev = n
	c.root.next = n
}

func (c *lruCache[V]) unlink(n *lruNode[V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}
