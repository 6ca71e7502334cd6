// Package querycache is a keyed cache with fetch-on-miss semantics over a pluggable Store.
package querycache

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrNilValue is returned by Set when asked to store a nil pointer-like value.
var ErrNilValue = errors.New("querycache: value is nil")

// Key is a composite cache key such as {"organizations", orgID, "me"}.
type Key []string

// String joins the key parts with ':'.
func (k Key) String() string { return strings.Join(k, ":") }

// Store is the backing key-value storage. Get reports a miss with ok=false and a nil error.
type Store[T any] interface {
	Get(ctx context.Context, key string) (v T, ok bool, err error)
	Set(ctx context.Context, key string, v T) error
	Delete(ctx context.Context, key string) error
}

// Outcome tells the caller which branch GetOrFetch took.
type Outcome int

const (
	// OutcomeCached means the value came from the store; no fetch ran.
	OutcomeCached Outcome = iota + 1
	// OutcomeFetched means the fetch ran and its result was written to the store.
	OutcomeFetched
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCached:
		return "cached"
	case OutcomeFetched:
		return "fetched"
	}
	return "unknown"
}

// FetchFunc loads the value for a missed key.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// ErrorHandler receives store failures. Store failures never fail a lookup: a failed read is a miss
// and a failed write leaves the fetched value uncached.
type ErrorHandler func(op string, key Key, err error)

// Cache wraps a Store with fetch-on-miss and hit/miss counters.
type Cache[T any] struct {
	name    string
	store   Store[T]
	onError ErrorHandler
	hits    metric.Int64Counter
	misses  metric.Int64Counter
	attrs   metric.MeasurementOption
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	meter   metric.Meter
	onError ErrorHandler
}

// WithMeter records hit/miss counters on m instead of the global meter provider.
func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

// WithErrorHandler sets the handler for store failures.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) { o.onError = h }
}

// New returns a cache named name (used as the "cache" metric attribute) over store.
func New[T any](name string, store Store[T], opts ...Option) *Cache[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.meter == nil {
		o.meter = otel.Meter("orgaccess/querycache")
	}
	c := &Cache[T]{
		name:    name,
		store:   store,
		onError: o.onError,
		attrs:   metric.WithAttributes(attribute.String("cache", name)),
	}
	// Instrument creation only fails on invalid names; the no-op fallback keeps lookups working.
	c.hits, _ = o.meter.Int64Counter("querycache.hits", metric.WithDescription("Cache lookups served from the store"))
	c.misses, _ = o.meter.Int64Counter("querycache.misses", metric.WithDescription("Cache lookups that required a fetch"))
	return c
}

// Get returns the stored value for key.
func (c *Cache[T]) Get(ctx context.Context, key Key) (T, bool) {
	v, ok, err := c.store.Get(ctx, key.String())
	if err != nil {
		c.report("get", key, err)
		var zero T
		return zero, false
	}
	return v, ok
}

// Set overwrites the stored value for key.
func (c *Cache[T]) Set(ctx context.Context, key Key, v T) error {
	if isNil(v) {
		return ErrNilValue
	}
	return c.store.Set(ctx, key.String(), v)
}

// Invalidate removes key from the store.
func (c *Cache[T]) Invalidate(ctx context.Context, key Key) error {
	return c.store.Delete(ctx, key.String())
}

// GetOrFetch returns the cached value for key, or runs fetch, stores its result and returns it.
// Concurrent misses on the same key are not coalesced: each runs fetch and writes, last write wins.
func (c *Cache[T]) GetOrFetch(ctx context.Context, key Key, fetch FetchFunc[T]) (T, Outcome, error) {
	if v, ok := c.Get(ctx, key); ok {
		c.count(ctx, c.hits)
		return v, OutcomeCached, nil
	}
	c.count(ctx, c.misses)

	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, 0, err
	}
	if err := c.Set(ctx, key, v); err != nil {
		c.report("set", key, err)
	}
	return v, OutcomeFetched, nil
}

func (c *Cache[T]) count(ctx context.Context, counter metric.Int64Counter) {
	if counter != nil {
		counter.Add(ctx, 1, c.attrs)
	}
}

func (c *Cache[T]) report(op string, key Key, err error) {
	if c.onError != nil {
		c.onError(op, key, err)
	}
}

func isNil[T any](v T) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
