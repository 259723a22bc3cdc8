package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dtroode/catalog-client/internal/model"
)

func productPath(id int64) string {
	return "/products/" + strconv.FormatInt(id, 10)
}

func limitQuery(limit int) url.Values {
	return url.Values{"limit": {strconv.Itoa(limit)}}
}

func (c *Client) ListProducts(ctx context.Context, q model.ProductQuery) ([]model.Product, error) {
	var out []model.Product
	err := c.do(ctx, request{method: http.MethodGet, path: "/products", query: q.Values()}, &out)
	return out, err
}

func (c *Client) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	var out model.Product
	err := c.do(ctx, request{method: http.MethodGet, path: productPath(id)}, &out)
	return out, err
}

func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var out []string
	err := c.do(ctx, request{method: http.MethodGet, path: "/products/categories"}, &out)
	return out, err
}

func (c *Client) Subcategories(ctx context.Context, category string) ([]string, error) {
	var out []string
	path := "/products/categories/" + url.PathEscape(category) + "/subcategories"
	err := c.do(ctx, request{method: http.MethodGet, path: path}, &out)
	return out, err
}

func (c *Client) Featured(ctx context.Context, limit int) ([]model.Product, error) {
	var out []model.Product
	err := c.do(ctx, request{method: http.MethodGet, path: "/products/featured", query: limitQuery(limit)}, &out)
	return out, err
}

func (c *Client) OnSale(ctx context.Context, limit int) ([]model.Product, error) {
	var out []model.Product
	err := c.do(ctx, request{method: http.MethodGet, path: "/products/on-sale", query: limitQuery(limit)}, &out)
	return out, err
}

func (c *Client) Search(ctx context.Context, term string, limit int) ([]model.Product, error) {
	q := limitQuery(limit)
	q.Set("q", term)

	var out []model.Product
	err := c.do(ctx, request{method: http.MethodGet, path: "/products/search", query: q}, &out)
	return out, err
}

func (c *Client) CatalogStats(ctx context.Context) (model.CatalogStats, error) {
	var out model.CatalogStats
	err := c.do(ctx, request{method: http.MethodGet, path: "/products/stats"}, &out)
	return out, err
}

func (c *Client) CreateProduct(ctx context.Context, p model.ProductCreate) (model.Product, error) {
	var out model.Product
	err := c.do(ctx, request{method: http.MethodPost, path: "/products", body: p}, &out)
	return out, err
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, p model.ProductUpdate) (model.Product, error) {
	var out model.Product
	err := c.do(ctx, request{method: http.MethodPut, path: productPath(id), body: p}, &out)
	return out, err
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: productPath(id)}, nil)
}
