package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/catalog-client/internal/filter"
	"github.com/dtroode/catalog-client/internal/model"
	"github.com/dtroode/catalog-client/internal/querycache"
	"github.com/dtroode/catalog-client/internal/testutil"
)

type call struct {
	query model.ProductQuery
	force bool
}

// fakeSource serves pages from a fixed result set and records every call.
type fakeSource struct {
	mu    sync.Mutex
	total int
	calls []call
	fail  map[int]error
	gates map[string]chan struct{}
}

func (f *fakeSource) Products(ctx context.Context, q model.ProductQuery, opts ...querycache.Option) ([]model.Product, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{query: q, force: len(opts) > 0})
	gate := f.gates[q.Search]
	err := f.fail[q.Skip]
	total := f.total
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	var page []model.Product
	for i := q.Skip; i < min(q.Skip+q.Limit, total); i++ {
		page = append(page, model.Product{ID: int64(i + 1), Name: fmt.Sprintf("%s-%d", q.Search, i+1)})
	}
	return page, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSource) lastCall() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func identity(s filter.State) filter.State { return s }

func TestBrowser_LoadMoreAccumulatesPages(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{total: 25}
	b := NewBrowser(src, 20, testutil.MakeNoopLogger())

	require.NoError(t, b.Apply(ctx, identity))
	v := b.View()
	assert.Len(t, v.Products, 20)
	assert.True(t, v.HasMore)
	assert.Equal(t, 0, src.lastCall().query.Skip)

	require.NoError(t, b.LoadMore(ctx))
	v = b.View()
	assert.Len(t, v.Products, 25)
	assert.False(t, v.HasMore)
	assert.Equal(t, 20, src.lastCall().query.Skip)
	assert.Equal(t, int64(25), v.Products[24].ID)

	require.NoError(t, b.LoadMore(ctx))
	assert.Equal(t, 2, src.callCount())
}

func TestBrowser_FilterChangeRestartsFromFirstPage(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{total: 50}
	b := NewBrowser(src, 20, testutil.MakeNoopLogger())

	require.NoError(t, b.Apply(ctx, identity))
	require.NoError(t, b.LoadMore(ctx))
	assert.Len(t, b.View().Products, 40)

	require.NoError(t, b.Apply(ctx, func(s filter.State) filter.State { return s.ToggleCategory("Books") }))
	last := src.lastCall().query
	assert.Equal(t, 0, last.Skip)
	assert.Equal(t, []string{"Books"}, last.Categories)
	assert.Len(t, b.View().Products, 20)
	assert.Equal(t, 1, b.View().Filter.ActiveCount())
}

// cachedSource puts a query cache in front of upstream the way the catalog
// service does.
type cachedSource struct {
	cache    *querycache.Cache
	upstream *fakeSource
}

func (s cachedSource) Products(ctx context.Context, q model.ProductQuery, opts ...querycache.Option) ([]model.Product, error) {
	key := querycache.NewKey("products", q.Values())
	opts = append(opts, querycache.Provides(model.TypeTag(model.TagProduct)))
	return querycache.Fetch(ctx, s.cache, key, func(ctx context.Context) ([]model.Product, error) {
		return s.upstream.Products(ctx, q)
	}, opts...)
}

func TestBrowser_UnchangedQueryServedFromCacheUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	cache, err := querycache.New(16, querycache.NewMetrics(prometheus.NewRegistry()), testutil.MakeNoopLogger())
	require.NoError(t, err)
	upstream := &fakeSource{total: 5}
	b := NewBrowser(cachedSource{cache: cache, upstream: upstream}, 20, testutil.MakeNoopLogger())

	require.NoError(t, b.Apply(ctx, identity))
	require.NoError(t, b.Apply(ctx, func(s filter.State) filter.State {
		return s.SetSort(filter.DefaultSortBy, filter.DefaultSortOrder)
	}))
	assert.Equal(t, 1, upstream.callCount())
	assert.Len(t, b.View().Products, 5)

	// a product was created elsewhere and the listing invalidated
	upstream.mu.Lock()
	upstream.total = 6
	upstream.mu.Unlock()
	require.Equal(t, 1, cache.Invalidate(model.TypeTag(model.TagProduct)))

	require.NoError(t, b.Apply(ctx, identity))
	assert.Equal(t, 2, upstream.callCount())
	v := b.View()
	assert.Len(t, v.Products, 6)
	assert.NoError(t, v.Err)
}

func TestBrowser_FirstPageErrorClearsProducts(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("server error")
	src := &fakeSource{total: 30}
	b := NewBrowser(src, 20, testutil.MakeNoopLogger())

	require.NoError(t, b.Apply(ctx, identity))
	require.NotEmpty(t, b.View().Products)

	src.mu.Lock()
	src.fail = map[int]error{0: boom}
	src.mu.Unlock()

	err := b.Apply(ctx, func(s filter.State) filter.State { return s.SetSearch("lamp") })
	require.ErrorIs(t, err, boom)

	v := b.View()
	assert.Empty(t, v.Products)
	assert.False(t, v.HasMore)
	assert.ErrorIs(t, v.Err, boom)
	assert.Equal(t, "lamp", v.Filter.Search())
}

func TestBrowser_LaterPageErrorKeepsProducts(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("server error")
	src := &fakeSource{total: 30, fail: map[int]error{20: boom}}
	b := NewBrowser(src, 20, testutil.MakeNoopLogger())

	require.NoError(t, b.Apply(ctx, identity))
	require.ErrorIs(t, b.LoadMore(ctx), boom)

	v := b.View()
	assert.Len(t, v.Products, 20)
	assert.True(t, v.HasMore)
	assert.ErrorIs(t, v.Err, boom)
	assert.Equal(t, 0, v.Filter.Skip())

	src.mu.Lock()
	src.fail = nil
	src.mu.Unlock()

	require.NoError(t, b.LoadMore(ctx))
	v = b.View()
	assert.Len(t, v.Products, 30)
	assert.NoError(t, v.Err)
	assert.Equal(t, 20, src.lastCall().query.Skip)
}

func TestBrowser_SupersededResponseDropped(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	src := &fakeSource{total: 3, gates: map[string]chan struct{}{"slow": gate}}
	b := NewBrowser(src, 20, testutil.MakeNoopLogger())

	done := make(chan error, 1)
	go func() {
		done <- b.Apply(ctx, func(s filter.State) filter.State { return s.SetSearch("slow") })
	}()
	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, time.Millisecond)
	assert.True(t, b.View().Loading)

	require.NoError(t, b.Apply(ctx, func(s filter.State) filter.State { return s.SetSearch("fast") }))
	close(gate)
	require.NoError(t, <-done)

	v := b.View()
	require.Len(t, v.Products, 3)
	assert.Equal(t, "fast-1", v.Products[0].Name)
	assert.Equal(t, "fast", v.Filter.Search())
	assert.False(t, v.Loading)
}

func TestBrowser_RefreshForcesFirstPage(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{total: 50}
	b := NewBrowser(src, 20, testutil.MakeNoopLogger())

	require.NoError(t, b.Apply(ctx, identity))
	require.NoError(t, b.LoadMore(ctx))
	require.NoError(t, b.Refresh(ctx))

	last := src.lastCall()
	assert.True(t, last.force)
	assert.Equal(t, 0, last.query.Skip)
	assert.Len(t, b.View().Products, 20)
}

func TestBrowser_ViewIsACopy(t *testing.T) {
	src := &fakeSource{total: 2}
	b := NewBrowser(src, 20, testutil.MakeNoopLogger())
	require.NoError(t, b.Apply(context.Background(), identity))

	v := b.View()
	v.Products[0].Name = "changed"
	assert.NotEqual(t, "changed", b.View().Products[0].Name)
}
