package model

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// LowStockThreshold is the quantity at or below which a product is shown as low on stock.
const LowStockThreshold = 10

// ProductAPI is the remote products surface.
type ProductAPI interface {
	ListProducts(ctx context.Context, q ProductQuery) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	Categories(ctx context.Context) ([]string, error)
	Subcategories(ctx context.Context, category string) ([]string, error)
	Featured(ctx context.Context, limit int) ([]Product, error)
	OnSale(ctx context.Context, limit int) ([]Product, error)
	Search(ctx context.Context, term string, limit int) ([]Product, error)
	CatalogStats(ctx context.Context) (CatalogStats, error)
	CreateProduct(ctx context.Context, p ProductCreate) (Product, error)
	UpdateProduct(ctx context.Context, id int64, p ProductUpdate) (Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// Product is a catalog item.
type Product struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	Category        string           `json:"category"`
	Subcategory     *string          `json:"subcategory"`
	Price           decimal.Decimal  `json:"price"`
	Manufacturer    *string          `json:"manufacturer"`
	Description     *string          `json:"description"`
	QuantityInStock int              `json:"quantity_in_stock"`
	IsFeatured      bool             `json:"is_featured"`
	IsOnSale        bool             `json:"is_on_sale"`
	SalePrice       *decimal.Decimal `json:"sale_price"`
	Weight          *float64         `json:"weight"`
	Dimensions      *string          `json:"dimensions"`
	ReleaseDate     *Timestamp       `json:"release_date"`
	Rating          float64          `json:"rating"`
	ImageURL        *string          `json:"image_url"`
	CreatedAt       Timestamp        `json:"created_at"`
	UpdatedAt       *Timestamp       `json:"updated_at"`
}

// HasDiscount reports whether the product is on sale below its list price.
func (p Product) HasDiscount() bool {
	return p.IsOnSale && p.SalePrice != nil && p.SalePrice.LessThan(p.Price)
}

// EffectivePrice is the price the user pays.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.HasDiscount() {
		return *p.SalePrice
	}
	return p.Price
}

// DiscountPercent returns the whole-percent discount, or zero without a discount.
func (p Product) DiscountPercent() int64 {
	if !p.HasDiscount() || p.Price.IsZero() {
		return 0
	}
	off := p.Price.Sub(*p.SalePrice).Div(p.Price).Mul(decimal.NewFromInt(100))
	return off.Round(0).IntPart()
}

func (p Product) InStock() bool {
	return p.QuantityInStock > 0
}

func (p Product) LowStock() bool {
	return p.InStock() && p.QuantityInStock <= LowStockThreshold
}

// ProductCreate is the body of a create product request.
type ProductCreate struct {
	Name            string           `json:"name"`
	Category        string           `json:"category"`
	Subcategory     *string          `json:"subcategory,omitempty"`
	Price           decimal.Decimal  `json:"price"`
	Manufacturer    *string          `json:"manufacturer,omitempty"`
	Description     *string          `json:"description,omitempty"`
	QuantityInStock int              `json:"quantity_in_stock"`
	IsFeatured      bool             `json:"is_featured"`
	IsOnSale        bool             `json:"is_on_sale"`
	SalePrice       *decimal.Decimal `json:"sale_price,omitempty"`
	Weight          *float64         `json:"weight,omitempty"`
	Dimensions      *string          `json:"dimensions,omitempty"`
	ImageURL        *string          `json:"image_url,omitempty"`
}

// ProductUpdate is a partial product change. Nil fields are not sent.
type ProductUpdate struct {
	Name            *string          `json:"name,omitempty"`
	Category        *string          `json:"category,omitempty"`
	Subcategory     *string          `json:"subcategory,omitempty"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	Manufacturer    *string          `json:"manufacturer,omitempty"`
	Description     *string          `json:"description,omitempty"`
	QuantityInStock *int             `json:"quantity_in_stock,omitempty"`
	IsFeatured      *bool            `json:"is_featured,omitempty"`
	IsOnSale        *bool            `json:"is_on_sale,omitempty"`
	SalePrice       *decimal.Decimal `json:"sale_price,omitempty"`
	ImageURL        *string          `json:"image_url,omitempty"`
}

// CategoryCount is a category with its number of products.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CatalogStats is the aggregate view returned by /products/stats.
type CatalogStats struct {
	TotalProducts    int             `json:"total_products"`
	TotalCategories  int             `json:"total_categories"`
	FeaturedProducts int             `json:"featured_products"`
	OnSaleProducts   int             `json:"on_sale_products"`
	OutOfStock       int             `json:"out_of_stock"`
	AveragePrice     decimal.Decimal `json:"average_price"`
	AverageRating    float64         `json:"average_rating"`
	Categories       []CategoryCount `json:"categories"`
}

// SortBy is a product sort key.
type SortBy string

const (
	SortByName       SortBy = "name"
	SortByPrice      SortBy = "price"
	SortByRating     SortBy = "rating"
	SortByCreatedAt  SortBy = "created_at"
	SortByPopularity SortBy = "popularity"
)

// ParseSortBy validates a sort key.
func ParseSortBy(s string) (SortBy, error) {
	switch SortBy(s) {
	case SortByName, SortByPrice, SortByRating, SortByCreatedAt, SortByPopularity:
		return SortBy(s), nil
	}
	return "", &ValidationError{Field: "sort_by", Message: fmt.Sprintf("unknown sort key %q", s)}
}

// SortOrder is asc or desc.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortOrder validates a sort order.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case SortAsc, SortDesc:
		return SortOrder(s), nil
	}
	return "", &ValidationError{Field: "sort_order", Message: fmt.Sprintf("unknown sort order %q", s)}
}

// ProductQuery is the full parameter set of the product list endpoint.
// Zero values are omitted from the request, except Skip and Limit.
type ProductQuery struct {
	Skip        int
	Limit       int
	Search      string
	Categories  []string
	Subcategory string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	MinRating   *float64
	MaxRating   *float64
	IsFeatured  bool
	IsOnSale    bool
	InStock     bool
	SortBy      SortBy
	SortOrder   SortOrder
}

// Values encodes the query the way the API expects it. Categories are
// comma-joined in selection order.
func (q ProductQuery) Values() url.Values {
	v := url.Values{}
	v.Set("skip", strconv.Itoa(q.Skip))
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if len(q.Categories) > 0 {
		v.Set("category", strings.Join(q.Categories, ","))
	}
	if q.Subcategory != "" {
		v.Set("subcategory", q.Subcategory)
	}
	if q.MinPrice != nil {
		v.Set("min_price", q.MinPrice.String())
	}
	if q.MaxPrice != nil {
		v.Set("max_price", q.MaxPrice.String())
	}
	if q.MinRating != nil {
		v.Set("min_rating", strconv.FormatFloat(*q.MinRating, 'f', -1, 64))
	}
	if q.MaxRating != nil {
		v.Set("max_rating", strconv.FormatFloat(*q.MaxRating, 'f', -1, 64))
	}
	if q.IsFeatured {
		v.Set("is_featured", "true")
	}
	if q.IsOnSale {
		v.Set("is_on_sale", "true")
	}
	if q.InStock {
		v.Set("in_stock", "true")
	}
	if q.SortBy != "" {
		v.Set("sort_by", string(q.SortBy))
	}
	if q.SortOrder != "" {
		v.Set("sort_order", string(q.SortOrder))
	}
	return v
}
