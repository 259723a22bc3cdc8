// Package filter holds the catalog filter, sort and pagination state. State
// is a value: every transition returns a new State and leaves the receiver
// untouched.
package filter

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/dtroode/catalog-client/internal/model"
)

const (
	DefaultLimit     = 20
	DefaultSortBy    = model.SortByCreatedAt
	DefaultSortOrder = model.SortDesc
)

// Product rating filter bounds accepted by the API.
const (
	MinProductRating = 0.0
	MaxProductRating = 5.0
)

// State is the catalog query state. The zero value is not usable; start from New.
type State struct {
	skip         int
	limit        int
	initialLimit int

	search      string
	categories  []string
	subcategory string
	minPrice    *decimal.Decimal
	maxPrice    *decimal.Decimal
	minRating   *float64
	maxRating   *float64
	featured    bool
	onSale      bool
	inStock     bool

	sortBy    model.SortBy
	sortOrder model.SortOrder
}

// New returns the default state with the given page size. A non-positive
// limit means DefaultLimit.
func New(limit int) State {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return State{
		limit:        limit,
		initialLimit: limit,
		sortBy:       DefaultSortBy,
		sortOrder:    DefaultSortOrder,
	}
}

func (s State) Skip() int                  { return s.skip }
func (s State) Limit() int                 { return s.limit }
func (s State) Search() string             { return s.search }
func (s State) Categories() []string       { return slices.Clone(s.categories) }
func (s State) Subcategory() string        { return s.subcategory }
func (s State) SortBy() model.SortBy       { return s.sortBy }
func (s State) SortOrder() model.SortOrder { return s.sortOrder }

// SetSearch replaces the free-text search. An empty string removes it.
func (s State) SetSearch(text string) State {
	s.search = text
	s.skip = 0
	return s
}

// ToggleCategory adds the category if absent or removes it if present.
// Selection order is kept.
func (s State) ToggleCategory(category string) State {
	idx := slices.Index(s.categories, category)
	if idx >= 0 {
		s.categories = slices.Delete(slices.Clone(s.categories), idx, idx+1)
	} else {
		s.categories = append(slices.Clone(s.categories), category)
	}
	if len(s.categories) == 0 {
		s.categories = nil
	}
	s.skip = 0
	return s
}

// SetSubcategory narrows the category selection. An empty string removes it.
func (s State) SetSubcategory(subcategory string) State {
	s.subcategory = subcategory
	s.skip = 0
	return s
}

// SetPriceRange sets both bounds at once. Nil removes a bound. On error the
// receiver is returned unchanged.
func (s State) SetPriceRange(lo, hi *decimal.Decimal) (State, error) {
	if err := ValidatePriceRange(lo, hi); err != nil {
		return s, err
	}
	s.minPrice = copyDecimal(lo)
	s.maxPrice = copyDecimal(hi)
	s.skip = 0
	return s, nil
}

// SetRatingRange sets both bounds at once. Nil removes a bound. On error the
// receiver is returned unchanged.
func (s State) SetRatingRange(lo, hi *float64) (State, error) {
	if err := ValidateRatingRange(lo, hi); err != nil {
		return s, err
	}
	s.minRating = copyFloat(lo)
	s.maxRating = copyFloat(hi)
	s.skip = 0
	return s, nil
}

// ValidatePriceRange rejects negative bounds and a minimum above the maximum.
func ValidatePriceRange(lo, hi *decimal.Decimal) error {
	for _, b := range []struct {
		field string
		v     *decimal.Decimal
	}{{"min_price", lo}, {"max_price", hi}} {
		if b.v != nil && b.v.IsNegative() {
			return &model.ValidationError{Field: b.field, Message: "price must not be negative"}
		}
	}
	if lo != nil && hi != nil && lo.GreaterThan(*hi) {
		return &model.ValidationError{
			Field:   "min_price",
			Message: fmt.Sprintf("minimum price %s is above maximum price %s", lo, hi),
		}
	}
	return nil
}

// ValidateRatingRange rejects bounds outside MinProductRating and
// MaxProductRating and a minimum above the maximum.
func ValidateRatingRange(lo, hi *float64) error {
	for _, b := range []struct {
		field string
		v     *float64
	}{{"min_rating", lo}, {"max_rating", hi}} {
		if b.v != nil && (*b.v < MinProductRating || *b.v > MaxProductRating) {
			return &model.ValidationError{
				Field:   b.field,
				Message: fmt.Sprintf("rating must be between %g and %g", MinProductRating, MaxProductRating),
			}
		}
	}
	if lo != nil && hi != nil && *lo > *hi {
		return &model.ValidationError{
			Field:   "min_rating",
			Message: fmt.Sprintf("minimum rating %g is above maximum rating %g", *lo, *hi),
		}
	}
	return nil
}

func (s State) ToggleFeatured() State {
	s.featured = !s.featured
	s.skip = 0
	return s
}

func (s State) ToggleOnSale() State {
	s.onSale = !s.onSale
	s.skip = 0
	return s
}

func (s State) ToggleInStock() State {
	s.inStock = !s.inStock
	s.skip = 0
	return s
}

// SetSort changes key and order together.
func (s State) SetSort(by model.SortBy, order model.SortOrder) State {
	s.sortBy = by
	s.sortOrder = order
	s.skip = 0
	return s
}

// SetLimit changes the page size. Non-positive values are ignored.
func (s State) SetLimit(limit int) State {
	if limit > 0 {
		s.limit = limit
	}
	s.skip = 0
	return s
}

// LoadMore advances to the next page.
func (s State) LoadMore() State {
	s.skip += s.limit
	return s
}

// ClearAll returns to the defaults, including the page size chosen at New.
func (s State) ClearAll() State {
	return New(s.initialLimit)
}

// Query returns the request parameters. False booleans and unset ranges
// are left out.
func (s State) Query() model.ProductQuery {
	return model.ProductQuery{
		Skip:        s.skip,
		Limit:       s.limit,
		Search:      s.search,
		Categories:  slices.Clone(s.categories),
		Subcategory: s.subcategory,
		MinPrice:    copyDecimal(s.minPrice),
		MaxPrice:    copyDecimal(s.maxPrice),
		MinRating:   copyFloat(s.minRating),
		MaxRating:   copyFloat(s.maxRating),
		IsFeatured:  s.featured,
		IsOnSale:    s.onSale,
		InStock:     s.inStock,
		SortBy:      s.sortBy,
		SortOrder:   s.sortOrder,
	}
}

// FirstPage is Query with skip reset, which identifies the result list
// independent of how many pages were loaded.
func (s State) FirstPage() model.ProductQuery {
	q := s.Query()
	q.Skip = 0
	return q
}

// ActiveCount is the number of active filters: search, each selected
// category, subcategory, price range, rating range and each set flag.
// Sorting and paging are not filters.
func (s State) ActiveCount() int {
	n := len(s.categories)
	if s.search != "" {
		n++
	}
	if s.subcategory != "" {
		n++
	}
	if s.minPrice != nil || s.maxPrice != nil {
		n++
	}
	if s.minRating != nil || s.maxRating != nil {
		n++
	}
	for _, on := range []bool{s.featured, s.onSale, s.inStock} {
		if on {
			n++
		}
	}
	return n
}

// HasMore guesses whether another page exists: a full last page means
// there may be more.
func HasMore(lastPageLen, limit int) bool {
	return limit > 0 && lastPageLen == limit
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
