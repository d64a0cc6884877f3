// Package cache memoizes rendered pages for the lifetime of the process.
//
// A page is computed at most once per key: concurrent misses for the same key
// share a single computation and wait for its result, while misses for other
// keys proceed independently. Failed computations are not stored, so the next
// request for that key runs the pipeline again.
package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/Bitlatte/blogserve/internal/model"
)

// Pipeline produces the page for key. It is the expensive part: loading the
// source, rendering it and assembling the page.
type Pipeline func(ctx context.Context, key model.ContentKey) (model.RenderedPage, error)

// Stats are counters describing cache activity since creation.
type Stats struct {
	Hits         uint64
	Misses       uint64
	Computations uint64
	Failures     uint64
}

// Cache maps content keys to rendered pages.
type Cache struct {
	pipeline Pipeline
	tracer   trace.Tracer

	mu      sync.RWMutex
	entries map[model.ContentKey]model.RenderedPage

	flight singleflight.Group

	hits, misses, computations, failures atomic.Uint64
}

const tracerName = "github.com/Bitlatte/blogserve/internal/cache"

// Option configures a Cache.
type Option func(*Cache)

// WithTracerProvider records a span per computation with tp instead of the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Cache) { c.tracer = tp.Tracer(tracerName) }
}

// New returns an empty cache filled on demand by pipeline.
func New(pipeline Pipeline, opts ...Option) *Cache {
	c := &Cache{
		pipeline: pipeline,
		tracer:   otel.Tracer(tracerName),
		entries:  make(map[model.ContentKey]model.RenderedPage),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the page for key, running the pipeline if no page has been
// published for it yet. Errors from the pipeline are returned unchanged.
func (c *Cache) Get(ctx context.Context, key model.ContentKey) (model.RenderedPage, error) {
	if page, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return page, nil
	}
	c.misses.Add(1)

	v, err, _ := c.flight.Do(string(key), func() (any, error) {
		// A flight for key may have published between lookup and Do.
		if page, ok := c.lookup(key); ok {
			return page, nil
		}
		page, err := c.compute(ctx, key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = page
		c.mu.Unlock()
		return page, nil
	})
	if err != nil {
		return model.RenderedPage{}, err
	}
	return v.(model.RenderedPage), nil
}

func (c *Cache) compute(ctx context.Context, key model.ContentKey) (model.RenderedPage, error) {
	ctx, span := c.tracer.Start(ctx, "cache.compute", trace.WithAttributes(attribute.String("content.key", string(key))))
	defer span.End()

	c.computations.Add(1)
	page, err := c.pipeline(ctx, key)
	if err != nil {
		c.failures.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.RenderedPage{}, err
	}
	return page, nil
}

func (c *Cache) lookup(key model.ContentKey) (model.RenderedPage, bool) {
	c.mu.RLock()
	page, ok := c.entries[key]
	c.mu.RUnlock()
	return page, ok
}

// Len reports the number of published pages.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the published keys in sorted order.
func (c *Cache) Keys() []model.ContentKey {
	c.mu.RLock()
	keys := make([]model.ContentKey, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Computations: c.computations.Load(),
		Failures:     c.failures.Load(),
	}
}
