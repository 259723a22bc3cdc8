// Package querycache holds query results keyed by endpoint and parameters,
// shares identical in-flight calls and drops entries by tag on mutation.
package querycache

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/dtroode/catalog-client/internal/logger"
	"github.com/dtroode/catalog-client/internal/model"
)

// Key identifies a query: endpoint name plus canonical parameters.
type Key struct {
	Endpoint string
	Params   string
}

// NewKey builds a key. url.Values.Encode sorts by parameter name, so equal
// parameter sets always produce equal keys.
func NewKey(endpoint string, params url.Values) Key {
	return Key{Endpoint: endpoint, Params: params.Encode()}
}

func (k Key) String() string {
	if k.Params == "" {
		return k.Endpoint
	}
	return k.Endpoint + "?" + k.Params
}

// Fetcher performs the network call for a query.
type Fetcher func(ctx context.Context) (any, error)

// Entry is a read-only view of a cache entry.
type Entry struct {
	Value     any
	HasValue  bool
	Err       error
	Tags      []model.Tag
	Loading   bool
	Stale     bool
	FetchedAt time.Time
}

// Fresh reports whether the entry can be served without a network call.
func (e Entry) Fresh() bool {
	return e.HasValue && e.Err == nil && !e.Stale
}

type entry struct {
	value     any
	hasValue  bool
	err       error
	tags      []model.Tag
	stale     bool
	fetchedAt time.Time

	// applied is the sequence number of the response currently held.
	applied uint64

	// epoch changes on every invalidation; flights from an older epoch
	// are no longer joined.
	epoch uint64

	// pending holds the tags requested by calls still in flight so that an
	// invalidation during the first fetch is not missed.
	pending  []model.Tag
	inflight int
	flying   bool
	flyEpoch uint64
}

func (e *entry) view() Entry {
	return Entry{
		Value:     e.value,
		HasValue:  e.hasValue,
		Err:       e.err,
		Tags:      append([]model.Tag(nil), e.tags...),
		Loading:   e.inflight > 0,
		Stale:     e.stale,
		FetchedAt: e.fetchedAt,
	}
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[Key, *entry]
	group   singleflight.Group
	seq     uint64
	// generation changes on Reset so flights started before it are dropped.
	generation uint64

	metrics *Metrics
	logger  *logger.Logger
	now     func() time.Time
}

// New creates a cache holding at most size entries.
func New(size int, metrics *Metrics, logger *logger.Logger) (*Cache, error) {
	entries, err := lru.New[Key, *entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru: %w", err)
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Cache{
		entries: entries,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}, nil
}

type queryOptions struct {
	force bool
	tags  []model.Tag
}

// Option configures a single query.
type Option func(*queryOptions)

// Force refetches even when a fresh entry exists. An identical call that is
// already in flight is joined rather than duplicated.
func Force() Option {
	return func(o *queryOptions) { o.force = true }
}

// Provides labels the entry with tags for later invalidation.
func Provides(tags ...model.Tag) Option {
	return func(o *queryOptions) { o.tags = append(o.tags, tags...) }
}

// Query returns the cached value for key or runs fetch. Concurrent callers
// with the same key share one call. When fetch fails the error is returned
// and any previous value stays available through Peek.
func (c *Cache) Query(ctx context.Context, key Key, fetch Fetcher, opts ...Option) (any, error) {
	o := queryOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	c.mu.Lock()
	e, ok := c.entries.Get(key)
	if !ok {
		e = &entry{}
		c.entries.Add(key, e)
		c.metrics.entries.Set(float64(c.entries.Len()))
	}
	if !o.force && e.hasValue && e.err == nil && !e.stale {
		v := e.value
		c.mu.Unlock()
		c.metrics.hits.WithLabelValues(key.Endpoint).Inc()
		return v, nil
	}

	c.metrics.misses.WithLabelValues(key.Endpoint).Inc()
	if o.tags != nil {
		e.pending = o.tags
	}
	if e.flying && e.flyEpoch == e.epoch {
		c.metrics.shared.WithLabelValues(key.Endpoint).Inc()
	}
	e.flying = true
	e.flyEpoch = e.epoch
	flightKey := fmt.Sprintf("%d/%s#%d", c.generation, key, e.epoch)
	gen, epoch := c.generation, e.epoch
	c.mu.Unlock()

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.run(flightCtx, key, e, gen, epoch, o.tags, fetch)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run performs one network call and applies its outcome unless a newer one
// has already been applied. Provided tags are attached only on success.
func (c *Cache) run(ctx context.Context, key Key, e *entry, gen, epoch uint64, tags []model.Tag, fetch Fetcher) (any, error) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	e.inflight++
	if tags != nil {
		e.pending = tags
	}
	c.mu.Unlock()

	v, err := fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	e.inflight--
	if e.flyEpoch == epoch {
		e.flying = false
	}
	if e.inflight == 0 {
		e.pending = nil
	}

	if gen != c.generation {
		return v, err
	}
	if cur, ok := c.entries.Peek(key); !ok || cur != e {
		if ok {
			return v, err
		}
		// evicted while in flight
		c.entries.Add(key, e)
		c.metrics.entries.Set(float64(c.entries.Len()))
	}

	if seq < e.applied {
		c.metrics.discarded.WithLabelValues(key.Endpoint).Inc()
		c.logger.Debug("Query cache: discarding out-of-order response",
			"key", key.String(),
			"seq", seq,
			"applied", e.applied)
		return v, err
	}

	e.applied = seq
	if err != nil {
		e.err = err
		c.logger.Debug("Query cache: fetch failed",
			"key", key.String(),
			"error", err.Error())
		return v, err
	}

	if tags != nil {
		e.tags = tags
	}
	e.value = v
	e.hasValue = true
	e.err = nil
	e.fetchedAt = c.now()
	e.stale = epoch != e.epoch

	return v, nil
}

// Peek returns the entry for key without fetching.
func (c *Cache) Peek(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Peek(key)
	if !ok {
		return Entry{}, false
	}
	return e.view(), true
}

// Invalidate marks every entry carrying a tag matched by tags as stale.
// In-flight calls for those entries are left to finish but new callers
// start a fresh call. It returns the number of entries affected.
func (c *Cache) Invalidate(tags ...model.Tag) int {
	if len(tags) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	affected := 0
	for _, key := range c.entries.Keys() {
		e, ok := c.entries.Peek(key)
		if !ok {
			continue
		}
		matched, ok := matchAny(tags, e.tags)
		if !ok {
			matched, ok = matchAny(tags, e.pending)
		}
		if !ok {
			continue
		}
		e.stale = true
		e.epoch++
		affected++
		c.metrics.invalidated.WithLabelValues(matched.Type).Inc()
	}

	c.logger.Debug("Query cache: tags invalidated",
		"tags", fmt.Sprint(tags),
		"entries", affected)

	return affected
}

func matchAny(invalidated, provided []model.Tag) (model.Tag, bool) {
	for _, inv := range invalidated {
		for _, p := range provided {
			if inv.Matches(p) {
				return inv, true
			}
		}
	}
	return model.Tag{}, false
}

// Reset drops every entry. Calls in flight complete for their callers but
// their results are not stored.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Purge()
	c.generation++
	c.metrics.entries.Set(0)

	c.logger.Debug("Query cache: reset")
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
