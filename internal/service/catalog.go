package service

import (
	"context"
	"net/url"
	"strconv"

	"github.com/dtroode/catalog-client/internal/logger"
	"github.com/dtroode/catalog-client/internal/model"
	"github.com/dtroode/catalog-client/internal/querycache"
)

// Endpoint names used in cache keys.
const (
	EndpointProducts      = "products"
	EndpointProduct       = "product"
	EndpointCategories    = "categories"
	EndpointSubcategories = "subcategories"
	EndpointFeatured      = "featured"
	EndpointOnSale        = "on_sale"
	EndpointSearch        = "search"
	EndpointCatalogStats  = "catalog_stats"
)

const (
	defaultFeaturedLimit = 10
	defaultOnSaleLimit   = 20
	defaultSearchLimit   = 20
)

// Catalog declares the product endpoints: reads go through the query cache
// and provide tags, mutations invalidate them.
type Catalog struct {
	api    model.ProductAPI
	cache  *querycache.Cache
	logger *logger.Logger
}

func NewCatalog(api model.ProductAPI, cache *querycache.Cache, logger *logger.Logger) *Catalog {
	return &Catalog{
		api:    api,
		cache:  cache,
		logger: logger,
	}
}

// provides appends the tag option to the caller's options without sharing
// their backing array.
func provides(opts []querycache.Option, tags ...model.Tag) []querycache.Option {
	out := make([]querycache.Option, 0, len(opts)+1)
	out = append(out, opts...)
	return append(out, querycache.Provides(tags...))
}

func idValues(id int64) url.Values {
	return url.Values{"id": {strconv.FormatInt(id, 10)}}
}

func limitValues(limit int) url.Values {
	return url.Values{"limit": {strconv.Itoa(limit)}}
}

// Products lists one page of products.
func (c *Catalog) Products(ctx context.Context, q model.ProductQuery, opts ...querycache.Option) ([]model.Product, error) {
	key := querycache.NewKey(EndpointProducts, q.Values())
	return querycache.Fetch(ctx, c.cache, key, func(ctx context.Context) ([]model.Product, error) {
		return c.api.ListProducts(ctx, q)
	}, provides(opts, model.TypeTag(model.TagProduct))...)
}

func (c *Catalog) Product(ctx context.Context, id int64, opts ...querycache.Option) (model.Product, error) {
	key := querycache.NewKey(EndpointProduct, idValues(id))
	return querycache.Fetch(ctx, c.cache, key, func(ctx context.Context) (model.Product, error) {
		return c.api.GetProduct(ctx, id)
	}, provides(opts, model.IDTag(model.TagProduct, id))...)
}

func (c *Catalog) Categories(ctx context.Context, opts ...querycache.Option) ([]string, error) {
	key := querycache.NewKey(EndpointCategories, nil)
	return querycache.Fetch(ctx, c.cache, key, c.api.Categories,
		provides(opts, model.TypeTag(model.TagCategories))...)
}

func (c *Catalog) Subcategories(ctx context.Context, category string, opts ...querycache.Option) ([]string, error) {
	key := querycache.NewKey(EndpointSubcategories, url.Values{"category": {category}})
	return querycache.Fetch(ctx, c.cache, key, func(ctx context.Context) ([]string, error) {
		return c.api.Subcategories(ctx, category)
	}, provides(opts, model.TypeTag(model.TagCategories))...)
}

// Featured lists featured products. A non-positive limit means 10.
func (c *Catalog) Featured(ctx context.Context, limit int, opts ...querycache.Option) ([]model.Product, error) {
	if limit <= 0 {
		limit = defaultFeaturedLimit
	}
	key := querycache.NewKey(EndpointFeatured, limitValues(limit))
	return querycache.Fetch(ctx, c.cache, key, func(ctx context.Context) ([]model.Product, error) {
		return c.api.Featured(ctx, limit)
	}, provides(opts, model.TypeTag(model.TagProduct))...)
}

// OnSale lists discounted products. A non-positive limit means 20.
func (c *Catalog) OnSale(ctx context.Context, limit int, opts ...querycache.Option) ([]model.Product, error) {
	if limit <= 0 {
		limit = defaultOnSaleLimit
	}
	key := querycache.NewKey(EndpointOnSale, limitValues(limit))
	return querycache.Fetch(ctx, c.cache, key, func(ctx context.Context) ([]model.Product, error) {
		return c.api.OnSale(ctx, limit)
	}, provides(opts, model.TypeTag(model.TagProduct))...)
}

// Search runs a free-text product search. A non-positive limit means 20.
func (c *Catalog) Search(ctx context.Context, term string, limit int, opts ...querycache.Option) ([]model.Product, error) {
	if term == "" {
		return nil, &model.ValidationError{Field: "q", Message: "Search term is required"}
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	params := limitValues(limit)
	params.Set("q", term)
	key := querycache.NewKey(EndpointSearch, params)
	return querycache.Fetch(ctx, c.cache, key, func(ctx context.Context) ([]model.Product, error) {
		return c.api.Search(ctx, term, limit)
	}, provides(opts, model.TypeTag(model.TagProduct))...)
}

func (c *Catalog) Stats(ctx context.Context, opts ...querycache.Option) (model.CatalogStats, error) {
	key := querycache.NewKey(EndpointCatalogStats, nil)
	return querycache.Fetch(ctx, c.cache, key, c.api.CatalogStats,
		provides(opts, model.TypeTag(model.TagProductStats))...)
}

func (c *Catalog) CreateProduct(ctx context.Context, p model.ProductCreate) (model.Product, error) {
	created, err := querycache.Mutate(ctx, c.cache, func(ctx context.Context) (model.Product, error) {
		return c.api.CreateProduct(ctx, p)
	},
		model.TypeTag(model.TagProduct),
		model.TypeTag(model.TagProductStats),
		model.TypeTag(model.TagCategories),
	)
	if err != nil {
		c.logger.Error("Catalog service: failed to create product",
			"name", p.Name,
			"error", err.Error())
		return model.Product{}, err
	}

	c.logger.Info("Catalog service: product created",
		"product_id", created.ID)

	return created, nil
}

func (c *Catalog) UpdateProduct(ctx context.Context, id int64, p model.ProductUpdate) (model.Product, error) {
	updated, err := querycache.Mutate(ctx, c.cache, func(ctx context.Context) (model.Product, error) {
		return c.api.UpdateProduct(ctx, id, p)
	},
		model.IDTag(model.TagProduct, id),
		model.TypeTag(model.TagProduct),
		model.TypeTag(model.TagProductStats),
	)
	if err != nil {
		c.logger.Error("Catalog service: failed to update product",
			"product_id", id,
			"error", err.Error())
		return model.Product{}, err
	}

	c.logger.Info("Catalog service: product updated",
		"product_id", id)

	return updated, nil
}

func (c *Catalog) DeleteProduct(ctx context.Context, id int64) error {
	_, err := querycache.Mutate(ctx, c.cache, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.api.DeleteProduct(ctx, id)
	},
		model.IDTag(model.TagProduct, id),
		model.TypeTag(model.TagProduct),
		model.TypeTag(model.TagProductStats),
		model.TypeTag(model.TagCategories),
	)
	if err != nil {
		c.logger.Error("Catalog service: failed to delete product",
			"product_id", id,
			"error", err.Error())
		return err
	}

	c.logger.Info("Catalog service: product deleted",
		"product_id", id)

	return nil
}
