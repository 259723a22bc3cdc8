package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dtroode/catalog-client/internal/model"
)

func daysBackQuery(daysBack int) url.Values {
	return url.Values{"days_back": {strconv.Itoa(daysBack)}}
}

func (c *Client) CreateInteraction(ctx context.Context, in model.InteractionCreate) (model.Interaction, error) {
	var out model.Interaction
	err := c.do(ctx, request{method: http.MethodPost, path: "/interactions", body: in}, &out)
	return out, err
}

func (c *Client) History(ctx context.Context, p model.HistoryParams) (model.InteractionHistory, error) {
	var out model.InteractionHistory
	err := c.do(ctx, request{method: http.MethodGet, path: "/interactions/history", query: p.Values()}, &out)
	return out, err
}

func (c *Client) Analytics(ctx context.Context, daysBack int) (model.Analytics, error) {
	var out model.Analytics
	err := c.do(ctx, request{method: http.MethodGet, path: "/interactions/analytics", query: daysBackQuery(daysBack)}, &out)
	return out, err
}

func (c *Client) ProductStats(ctx context.Context, productID int64, daysBack int) (model.InteractionStats, error) {
	var out model.InteractionStats
	path := productPath(productID) + "/stats"
	err := c.do(ctx, request{method: http.MethodGet, path: path, query: daysBackQuery(daysBack)}, &out)
	return out, err
}

func (c *Client) Bulk(ctx context.Context, p model.BulkParams) ([]model.Interaction, error) {
	var out []model.Interaction
	err := c.do(ctx, request{method: http.MethodGet, path: "/interactions/bulk", query: p.Values()}, &out)
	return out, err
}

func (c *Client) DeleteInteraction(ctx context.Context, id int64) error {
	path := "/interactions/" + strconv.FormatInt(id, 10)
	return c.do(ctx, request{method: http.MethodDelete, path: path}, nil)
}
