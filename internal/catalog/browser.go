// Package catalog drives a paged product listing from filter state.
package catalog

import (
	"context"
	"slices"
	"sync"

	"github.com/dtroode/catalog-client/internal/filter"
	"github.com/dtroode/catalog-client/internal/logger"
	"github.com/dtroode/catalog-client/internal/model"
	"github.com/dtroode/catalog-client/internal/querycache"
)

// ProductSource lists one page of products. *service.Catalog implements it.
type ProductSource interface {
	Products(ctx context.Context, q model.ProductQuery, opts ...querycache.Option) ([]model.Product, error)
}

// View is a snapshot of the listing.
type View struct {
	Filter   filter.State
	Products []model.Product
	HasMore  bool
	Loading  bool
	Err      error
}

// Browser accumulates pages for the current filter state. A response that
// belongs to a superseded request is dropped.
type Browser struct {
	source ProductSource
	logger *logger.Logger

	mu       sync.Mutex
	state    filter.State
	products []model.Product
	hasMore  bool
	loading  bool
	err      error
	gen      uint64
}

func NewBrowser(source ProductSource, pageSize int, logger *logger.Logger) *Browser {
	return &Browser{
		source: source,
		logger: logger,
		state:  filter.New(pageSize),
	}
}

// View returns a snapshot safe to keep.
func (b *Browser) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()

	return View{
		Filter:   b.state,
		Products: slices.Clone(b.products),
		HasMore:  b.hasMore,
		Loading:  b.loading,
		Err:      b.err,
	}
}

// Apply transitions the filter state and reloads the first page. An
// unchanged query is answered by the source's cache while its entry is
// fresh and refetched once the entry has been invalidated.
func (b *Browser) Apply(ctx context.Context, transition func(filter.State) filter.State) error {
	b.mu.Lock()
	prev := b.state
	next := transition(prev)
	b.mu.Unlock()

	return b.load(ctx, firstPage(next), prev)
}

// LoadMore fetches the next page and appends it. It does nothing when the
// last page was short or a request is in flight.
func (b *Browser) LoadMore(ctx context.Context) error {
	b.mu.Lock()
	if !b.hasMore || b.loading {
		b.mu.Unlock()
		return nil
	}
	prev := b.state
	b.mu.Unlock()

	return b.load(ctx, prev.LoadMore(), prev)
}

// Refresh reloads the first page for the current state bypassing the cache.
func (b *Browser) Refresh(ctx context.Context) error {
	b.mu.Lock()
	prev := b.state
	b.mu.Unlock()

	return b.load(ctx, firstPage(prev), prev, querycache.Force())
}

// load fetches the page st points at. prev is restored when a later page
// fails so that LoadMore retries the same page.
func (b *Browser) load(ctx context.Context, st, prev filter.State, opts ...querycache.Option) error {
	q := st.Query()

	b.mu.Lock()
	b.gen++
	gen := b.gen
	b.state = st
	b.loading = true
	b.mu.Unlock()

	page, err := b.source.Products(ctx, q, opts...)

	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		b.logger.Debug("Catalog browser: dropping superseded page",
			"skip", q.Skip,
			"generation", gen)
		return nil
	}
	b.loading = false

	if err != nil {
		b.err = err
		if q.Skip == 0 {
			b.products = nil
			b.hasMore = false
		} else {
			b.state = prev
		}
		b.logger.Warn("Catalog browser: failed to load products",
			"skip", q.Skip,
			"error", err.Error())
		return err
	}

	b.err = nil
	if q.Skip == 0 {
		b.products = page
	} else {
		b.products = append(slices.Clip(b.products), page...)
	}
	b.hasMore = filter.HasMore(len(page), q.Limit)

	return nil
}

// firstPage resets paging without touching the filters.
func firstPage(st filter.State) filter.State {
	if st.Skip() == 0 {
		return st
	}
	return st.SetLimit(st.Limit())
}
