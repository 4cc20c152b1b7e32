package thumbs

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"dataset-studio/internal/dataset"
	"dataset-studio/internal/logging"
	"dataset-studio/internal/metrics"
	"dataset-studio/internal/workers"
)

const (
	// DefaultMaxDim is the thumbnail bounding box when the request doesn't
	// specify one.
	DefaultMaxDim = 256

	// DefaultBudgetMB bounds the cache when no budget is configured.
	DefaultBudgetMB = 256

	// failureTTL is how long a render failure is remembered before the
	// item is retried. Keeps a corrupt file from being re-decoded on every
	// grid paint without hiding it forever.
	failureTTL = 30 * time.Second
)

// RenderFunc produces thumbnail bytes for an image file. Injectable for
// tests; production wiring uses Render.
type RenderFunc func(path string, maxDim int) ([]byte, error)

// PauseWaiter blocks bulk rendering while the process is under memory
// pressure. Satisfied by *memory.Monitor.
type PauseWaiter interface {
	WaitIfPaused() bool
}

type cacheEntry struct {
	key        string
	data       []byte
	err        error
	renderedAt time.Time
}

// Cache is a byte-bounded in-memory LRU of rendered thumbnails. Keys
// include the image fingerprint, so an externally modified image misses
// rather than serving the old pixels; the stale entry ages out through
// normal LRU pressure.
type Cache struct {
	render  RenderFunc
	budget  int64
	failTTL time.Duration

	mem PauseWaiter

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recent
	bytes   int64
}

// SetMemoryMonitor installs a backpressure source consulted during Prewarm.
func (c *Cache) SetMemoryMonitor(mem PauseWaiter) { c.mem = mem }

// NewCache creates a cache with the given byte budget. A zero or negative
// budget gets DefaultBudgetMB. A nil render falls back to Render.
func NewCache(budgetBytes int64, render RenderFunc) *Cache {
	if budgetBytes <= 0 {
		budgetBytes = DefaultBudgetMB * 1024 * 1024
	}
	if render == nil {
		render = Render
	}
	logging.Debug("Thumbnail cache budget: %d bytes", budgetBytes)
	return &Cache{
		render:  render,
		budget:  budgetBytes,
		failTTL: failureTTL,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

func cacheKey(id string, fp dataset.Fingerprint, maxDim int) string {
	return fmt.Sprintf("%s|%s|%d", id, fp, maxDim)
}

// Get returns thumbnail bytes for the item, rendering on miss. fp is the
// item's current image fingerprint and path its absolute image path.
func (c *Cache) Get(id string, fp dataset.Fingerprint, path string, maxDim int) ([]byte, error) {
	if maxDim <= 0 {
		maxDim = DefaultMaxDim
	}
	key := cacheKey(id, fp, maxDim)

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		if entry.err == nil {
			c.order.MoveToFront(el)
			metrics.ThumbnailCacheHits.Inc()
			data := entry.data
			c.mu.Unlock()
			return data, nil
		}
		if time.Since(entry.renderedAt) < c.failTTL {
			metrics.ThumbnailCacheHits.Inc()
			err := entry.err
			c.mu.Unlock()
			return nil, err
		}
		// Failure entry expired: drop it and re-render.
		c.removeLocked(el)
	}
	metrics.ThumbnailCacheMisses.Inc()
	c.mu.Unlock()

	start := time.Now()
	data, err := c.render(path, maxDim)
	metrics.ThumbnailRenderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ThumbnailRenderTotal.WithLabelValues("error").Inc()
		logging.Warn("Thumbnail render failed for %s: %v", id, err)
		c.put(&cacheEntry{key: key, err: err, renderedAt: time.Now()})
		return nil, err
	}
	metrics.ThumbnailRenderTotal.WithLabelValues("success").Inc()

	c.put(&cacheEntry{key: key, data: data, renderedAt: time.Now()})
	return data, nil
}

func (c *Cache) put(entry *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A concurrent Get may have rendered the same key; keep the winner.
	if el, ok := c.entries[entry.key]; ok {
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(entry)
	c.entries[entry.key] = el
	c.bytes += int64(len(entry.data))

	for c.bytes > c.budget && c.order.Len() > 1 {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		metrics.ThumbnailEvictionsTotal.Inc()
	}

	metrics.ThumbnailCacheBytes.Set(float64(c.bytes))
	metrics.ThumbnailCacheEntries.Set(float64(c.order.Len()))
}

func (c *Cache) removeLocked(el *list.Element) {
	entry := el.Value.(*cacheEntry)
	c.order.Remove(el)
	delete(c.entries, entry.key)
	c.bytes -= int64(len(entry.data))
	metrics.ThumbnailCacheBytes.Set(float64(c.bytes))
	metrics.ThumbnailCacheEntries.Set(float64(c.order.Len()))
}

// Invalidate drops every cached rendition of one item. Called when an item
// is deleted; fingerprint keying already handles modification.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := id + "|"
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		entry := el.Value.(*cacheEntry)
		if len(entry.key) > len(prefix) && entry.key[:len(prefix)] == prefix {
			c.removeLocked(el)
		}
		el = next
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Bytes returns the cached payload size.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Prewarm renders thumbnails for the given items in parallel, typically
// right after the initial scan. Abs resolves an item to its absolute image
// path. Render failures are recorded per item and don't stop the warmup.
func (c *Cache) Prewarm(ctx context.Context, items []*dataset.Item, abs func(*dataset.Item) string) {
	if len(items) == 0 {
		return
	}

	n := workers.ForCPU(8)
	logging.Info("Prewarming %d thumbnails with %d workers", len(items), n)

	jobs := make(chan *dataset.Item)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range jobs {
				if ctx.Err() != nil {
					return
				}
				if c.mem != nil && !c.mem.WaitIfPaused() {
					return
				}
				_, _ = c.Get(it.ID, it.ImageFP, abs(it), DefaultMaxDim)
			}
		}()
	}

	for _, it := range items {
		if ctx.Err() != nil {
			break
		}
		jobs <- it
	}
	close(jobs)
	wg.Wait()

	logging.Info("Thumbnail prewarm complete: %d entries, %d bytes", c.Len(), c.Bytes())
}
