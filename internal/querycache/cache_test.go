package querycache

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/catalog-client/internal/model"
	"github.com/dtroode/catalog-client/internal/testutil"
)

func newTestCache(t *testing.T, size int) (*Cache, *Metrics) {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	c, err := New(size, m, testutil.MakeNoopLogger())
	require.NoError(t, err)
	return c, m
}

type counter struct {
	calls atomic.Int32
}

func (c *counter) fetcher(v any, err error) Fetcher {
	return func(ctx context.Context) (any, error) {
		c.calls.Add(1)
		return v, err
	}
}

func TestNew_InvalidSize(t *testing.T) {
	_, err := New(0, nil, testutil.MakeNoopLogger())
	require.Error(t, err)
}

func TestNewKey_Canonical(t *testing.T) {
	a := NewKey("products", url.Values{"skip": {"0"}, "limit": {"20"}, "sort_by": {"price"}})
	b := NewKey("products", url.Values{"sort_by": {"price"}, "limit": {"20"}, "skip": {"0"}})
	assert.Equal(t, a, b)
	assert.Equal(t, "products?limit=20&skip=0&sort_by=price", a.String())
	assert.Equal(t, "categories", NewKey("categories", nil).String())
	assert.NotEqual(t, a, NewKey("search", url.Values{"skip": {"0"}, "limit": {"20"}, "sort_by": {"price"}}))
}

func TestCache_ServesFreshEntry(t *testing.T) {
	c, m := newTestCache(t, 8)
	ctx := context.Background()
	key := NewKey("categories", nil)
	var cnt counter

	v, err := c.Query(ctx, key, cnt.fetcher([]string{"Books"}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Books"}, v)

	v, err = c.Query(ctx, key, cnt.fetcher([]string{"other"}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Books"}, v)

	assert.EqualValues(t, 1, cnt.calls.Load())
	assert.Equal(t, 1.0, promtest.ToFloat64(m.hits.WithLabelValues("categories")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.misses.WithLabelValues("categories")))
}

func TestCache_ForceRefetches(t *testing.T) {
	c, _ := newTestCache(t, 8)
	ctx := context.Background()
	key := NewKey("stats", nil)
	var cnt counter

	_, err := c.Query(ctx, key, cnt.fetcher(1, nil))
	require.NoError(t, err)
	v, err := c.Query(ctx, key, cnt.fetcher(2, nil), Force())
	require.NoError(t, err)

	assert.Equal(t, 2, v)
	assert.EqualValues(t, 2, cnt.calls.Load())
}

func TestCache_DeduplicatesConcurrentCalls(t *testing.T) {
	c, m := newTestCache(t, 8)
	key := NewKey("products", url.Values{"limit": {"20"}})

	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "page", nil
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([]any, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Query(context.Background(), key, fetch)
		}(i)
	}

	require.Eventually(t, func() bool {
		e, ok := c.Peek(key)
		return ok && e.Loading && promtest.ToFloat64(m.misses.WithLabelValues("products")) == callers
	}, time.Second, time.Millisecond)

	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "page", results[i])
	}
	assert.Equal(t, float64(callers-1), promtest.ToFloat64(m.shared.WithLabelValues("products")))

	e, ok := c.Peek(key)
	require.True(t, ok)
	assert.False(t, e.Loading)
	assert.True(t, e.Fresh())
}

func TestCache_FailureKeepsPreviousValue(t *testing.T) {
	c, _ := newTestCache(t, 8)
	ctx := context.Background()
	key := NewKey("featured", url.Values{"limit": {"10"}})
	boom := errors.New("boom")
	var cnt counter

	_, err := c.Query(ctx, key, cnt.fetcher("v1", nil))
	require.NoError(t, err)

	_, err = c.Query(ctx, key, cnt.fetcher(nil, boom), Force())
	require.ErrorIs(t, err, boom)

	e, ok := c.Peek(key)
	require.True(t, ok)
	assert.Equal(t, "v1", e.Value)
	assert.ErrorIs(t, e.Err, boom)
	assert.False(t, e.Fresh())

	// an entry with an error is never served from cache
	v, err := c.Query(ctx, key, cnt.fetcher("v2", nil))
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
	assert.EqualValues(t, 3, cnt.calls.Load())

	e, _ = c.Peek(key)
	assert.NoError(t, e.Err)
}

func TestCache_InvalidateTagSemantics(t *testing.T) {
	c, m := newTestCache(t, 16)
	ctx := context.Background()

	list := NewKey("products", url.Values{"limit": {"20"}})
	p7 := NewKey("product", url.Values{"id": {"7"}})
	p8 := NewKey("product", url.Values{"id": {"8"}})
	cats := NewKey("categories", nil)

	fill := func(k Key, tags ...model.Tag) {
		_, err := c.Query(ctx, k, func(context.Context) (any, error) { return k.String(), nil }, Provides(tags...))
		require.NoError(t, err)
	}
	fill(list, model.TypeTag(model.TagProduct))
	fill(p7, model.IDTag(model.TagProduct, 7))
	fill(p8, model.IDTag(model.TagProduct, 8))
	fill(cats, model.TypeTag(model.TagCategories))

	stale := func(k Key) bool {
		e, ok := c.Peek(k)
		require.True(t, ok)
		return e.Stale
	}

	assert.Equal(t, 1, c.Invalidate(model.IDTag(model.TagProduct, 7)))
	assert.False(t, stale(list))
	assert.True(t, stale(p7))
	assert.False(t, stale(p8))
	assert.False(t, stale(cats))

	assert.Equal(t, 3, c.Invalidate(model.TypeTag(model.TagProduct)))
	assert.True(t, stale(list))
	assert.True(t, stale(p8))
	assert.False(t, stale(cats))

	assert.Equal(t, 4.0, promtest.ToFloat64(m.invalidated.WithLabelValues(model.TagProduct)))
	assert.Equal(t, 0, c.Invalidate())
}

func TestCache_StaleEntryRefetchedOnNextAccess(t *testing.T) {
	c, _ := newTestCache(t, 8)
	ctx := context.Background()
	key := NewKey("products", nil)
	var cnt counter

	_, err := c.Query(ctx, key, cnt.fetcher("old", nil), Provides(model.TypeTag(model.TagProduct)))
	require.NoError(t, err)

	c.Invalidate(model.TypeTag(model.TagProduct))

	e, _ := c.Peek(key)
	assert.Equal(t, "old", e.Value)
	assert.True(t, e.Stale)

	v, err := c.Query(ctx, key, cnt.fetcher("new", nil), Provides(model.TypeTag(model.TagProduct)))
	require.NoError(t, err)
	assert.Equal(t, "new", v)
	assert.EqualValues(t, 2, cnt.calls.Load())

	e, _ = c.Peek(key)
	assert.False(t, e.Stale)
}

func TestCache_TagsAttachedOnlyOnSuccess(t *testing.T) {
	c, _ := newTestCache(t, 8)
	ctx := context.Background()
	key := NewKey("product", url.Values{"id": {"7"}})
	tag := model.IDTag(model.TagProduct, 7)
	boom := errors.New("boom")
	var cnt counter

	_, err := c.Query(ctx, key, cnt.fetcher(nil, boom), Provides(tag))
	require.ErrorIs(t, err, boom)

	e, ok := c.Peek(key)
	require.True(t, ok)
	assert.Empty(t, e.Tags)
	assert.Zero(t, c.Invalidate(tag))

	_, err = c.Query(ctx, key, cnt.fetcher("v1", nil), Provides(tag))
	require.NoError(t, err)

	e, _ = c.Peek(key)
	assert.Equal(t, []model.Tag{tag}, e.Tags)
	assert.Equal(t, 1, c.Invalidate(model.TypeTag(model.TagProduct)))
}

func TestCache_InvalidationDuringFlightStartsNewCall(t *testing.T) {
	c, m := newTestCache(t, 8)
	key := NewKey("history", nil)
	tag := Provides(model.TypeTag(model.TagInteractionHistory))

	release := make(chan struct{})
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = c.Query(context.Background(), key, func(context.Context) (any, error) {
			<-release
			return "old", nil
		}, tag)
	}()

	require.Eventually(t, func() bool {
		e, ok := c.Peek(key)
		return ok && e.Loading
	}, time.Second, time.Millisecond)

	c.Invalidate(model.TypeTag(model.TagInteractionHistory))

	// not joined with the pre-invalidation call
	v, err := c.Query(context.Background(), key, func(context.Context) (any, error) {
		return "new", nil
	}, tag)
	require.NoError(t, err)
	assert.Equal(t, "new", v)

	close(release)
	<-firstDone

	// the older response finished last and is discarded
	e, _ := c.Peek(key)
	assert.Equal(t, "new", e.Value)
	assert.False(t, e.Stale)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.discarded.WithLabelValues("history")))
}

func TestCache_OutOfOrderResponsesDiscarded(t *testing.T) {
	c, m := newTestCache(t, 8)
	key := NewKey("products", url.Values{"search": {"lamp"}})

	slow := make(chan struct{})
	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		v, err := c.Query(context.Background(), key, func(context.Context) (any, error) {
			<-slow
			return "first", nil
		}, Provides(model.TypeTag(model.TagProduct)))
		// the caller still gets its own response
		assert.NoError(t, err)
		assert.Equal(t, "first", v)
	}()

	require.Eventually(t, func() bool {
		e, ok := c.Peek(key)
		return ok && e.Loading
	}, time.Second, time.Millisecond)

	// Force would join the in-flight call, so start the newer one after an invalidation.
	c.Invalidate(model.TypeTag(model.TagProduct))

	v, err := c.Query(context.Background(), key, func(context.Context) (any, error) {
		return "second", nil
	}, Provides(model.TypeTag(model.TagProduct)))
	require.NoError(t, err)
	assert.Equal(t, "second", v)

	close(slow)
	<-slowDone

	got, _ := c.Peek(key)
	assert.Equal(t, "second", got.Value)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.discarded.WithLabelValues("products")))
}

func TestCache_CallerCancellationLeavesFlightRunning(t *testing.T) {
	c, _ := newTestCache(t, 8)
	key := NewKey("analytics", nil)

	release := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Query(ctx, key, func(fctx context.Context) (any, error) {
			<-release
			return "done", fctx.Err()
		})
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		e, ok := c.Peek(key)
		return ok && e.Loading
	}, time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		e, _ := c.Peek(key)
		return e.Fresh() && e.Value == "done"
	}, time.Second, time.Millisecond)
}

func TestCache_ResetDropsEntriesAndInFlightResults(t *testing.T) {
	c, _ := newTestCache(t, 8)
	ctx := context.Background()
	done := NewKey("history", url.Values{"page": {"1"}})
	flying := NewKey("analytics", nil)

	_, err := c.Query(ctx, done, func(context.Context) (any, error) { return "user-a", nil })
	require.NoError(t, err)

	release := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_, _ = c.Query(ctx, flying, func(context.Context) (any, error) {
			<-release
			return "user-a analytics", nil
		})
	}()
	require.Eventually(t, func() bool {
		e, ok := c.Peek(flying)
		return ok && e.Loading
	}, time.Second, time.Millisecond)

	c.Reset()
	assert.Equal(t, 0, c.Len())

	close(release)
	<-finished

	_, ok := c.Peek(flying)
	assert.False(t, ok)
	_, ok = c.Peek(done)
	assert.False(t, ok)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(t, 2)
	ctx := context.Background()
	var cnt counter

	a, b, d := NewKey("a", nil), NewKey("b", nil), NewKey("d", nil)
	for _, k := range []Key{a, b, d} {
		_, err := c.Query(ctx, k, cnt.fetcher(k.String(), nil))
		require.NoError(t, err)
	}

	assert.Equal(t, 2, c.Len())
	_, ok := c.Peek(a)
	assert.False(t, ok)
}

func TestFetch_Typed(t *testing.T) {
	c, _ := newTestCache(t, 8)
	ctx := context.Background()
	key := NewKey("categories", nil)

	got, err := Fetch(ctx, c, key, func(context.Context) ([]string, error) {
		return []string{"Books", "Toys"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Books", "Toys"}, got)

	_, err = Fetch(ctx, c, key, func(context.Context) (int, error) { return 1, nil })
	require.Error(t, err)
}

func TestMutate_InvalidatesOnSuccessAndFailure(t *testing.T) {
	c, _ := newTestCache(t, 8)
	ctx := context.Background()
	key := NewKey("products", nil)
	tag := model.TypeTag(model.TagProduct)

	reset := func() {
		_, err := c.Query(ctx, key, func(context.Context) (any, error) { return "x", nil }, Provides(tag), Force())
		require.NoError(t, err)
	}

	reset()
	_, err := Mutate(ctx, c, func(context.Context) (int, error) { return 1, nil }, tag)
	require.NoError(t, err)
	e, _ := c.Peek(key)
	assert.True(t, e.Stale)

	reset()
	_, err = Mutate(ctx, c, func(context.Context) (int, error) { return 0, errors.New("nope") }, tag)
	require.Error(t, err)
	e, _ = c.Peek(key)
	assert.True(t, e.Stale)
}
