package service

import (
	"context"
	"net/url"
	"strconv"

	"github.com/dtroode/catalog-client/internal/logger"
	"github.com/dtroode/catalog-client/internal/model"
	"github.com/dtroode/catalog-client/internal/querycache"
)

const (
	EndpointHistory          = "interaction_history"
	EndpointAnalytics        = "interaction_analytics"
	EndpointInteractionStats = "interaction_stats"
	EndpointBulk             = "interactions_bulk"
)

const (
	defaultHistoryPage    = 1
	defaultHistoryPerPage = 20
	defaultDaysBack       = 30
	defaultBulkLimit      = 100
)

// Interactions declares the interaction endpoints.
type Interactions struct {
	api    model.InteractionAPI
	cache  *querycache.Cache
	logger *logger.Logger
}

func NewInteractions(api model.InteractionAPI, cache *querycache.Cache, logger *logger.Logger) *Interactions {
	return &Interactions{
		api:    api,
		cache:  cache,
		logger: logger,
	}
}

// Record stores one interaction and invalidates everything derived from
// interactions.
func (i *Interactions) Record(ctx context.Context, in model.InteractionCreate) (model.Interaction, error) {
	return querycache.Mutate(ctx, i.cache, func(ctx context.Context) (model.Interaction, error) {
		return i.api.CreateInteraction(ctx, in)
	},
		model.TypeTag(model.TagInteraction),
		model.TypeTag(model.TagInteractionHistory),
		model.TypeTag(model.TagInteractionAnalytics),
		model.TypeTag(model.TagInteractionStats),
	)
}

// History returns one page of the user's interactions. Zero page and
// per-page values mean 1 and 20.
func (i *Interactions) History(ctx context.Context, p model.HistoryParams, opts ...querycache.Option) (model.InteractionHistory, error) {
	if p.Page <= 0 {
		p.Page = defaultHistoryPage
	}
	if p.PerPage <= 0 {
		p.PerPage = defaultHistoryPerPage
	}
	key := querycache.NewKey(EndpointHistory, p.Values())
	return querycache.Fetch(ctx, i.cache, key, func(ctx context.Context) (model.InteractionHistory, error) {
		return i.api.History(ctx, p)
	}, provides(opts, model.TypeTag(model.TagInteractionHistory))...)
}

// Analytics summarizes the user's activity over daysBack days (30 when zero).
func (i *Interactions) Analytics(ctx context.Context, daysBack int, opts ...querycache.Option) (model.Analytics, error) {
	if daysBack <= 0 {
		daysBack = defaultDaysBack
	}
	key := querycache.NewKey(EndpointAnalytics, url.Values{"days_back": {strconv.Itoa(daysBack)}})
	return querycache.Fetch(ctx, i.cache, key, func(ctx context.Context) (model.Analytics, error) {
		return i.api.Analytics(ctx, daysBack)
	}, provides(opts, model.TypeTag(model.TagInteractionAnalytics))...)
}

// ProductStats aggregates interactions with one product over daysBack days
// (30 when zero).
func (i *Interactions) ProductStats(ctx context.Context, productID int64, daysBack int, opts ...querycache.Option) (model.InteractionStats, error) {
	if daysBack <= 0 {
		daysBack = defaultDaysBack
	}
	params := idValues(productID)
	params.Set("days_back", strconv.Itoa(daysBack))
	key := querycache.NewKey(EndpointInteractionStats, params)
	return querycache.Fetch(ctx, i.cache, key, func(ctx context.Context) (model.InteractionStats, error) {
		return i.api.ProductStats(ctx, productID, daysBack)
	}, provides(opts, model.IDTag(model.TagInteractionStats, productID))...)
}

// Bulk lists interactions across products. A zero limit means 100.
func (i *Interactions) Bulk(ctx context.Context, p model.BulkParams, opts ...querycache.Option) ([]model.Interaction, error) {
	if p.Limit <= 0 {
		p.Limit = defaultBulkLimit
	}
	key := querycache.NewKey(EndpointBulk, p.Values())
	return querycache.Fetch(ctx, i.cache, key, func(ctx context.Context) ([]model.Interaction, error) {
		return i.api.Bulk(ctx, p)
	}, provides(opts, model.TypeTag(model.TagInteraction))...)
}

func (i *Interactions) Delete(ctx context.Context, id int64) error {
	_, err := querycache.Mutate(ctx, i.cache, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, i.api.DeleteInteraction(ctx, id)
	},
		model.TypeTag(model.TagInteraction),
		model.TypeTag(model.TagInteractionHistory),
		model.TypeTag(model.TagInteractionAnalytics),
	)
	if err != nil {
		i.logger.Error("Interactions service: failed to delete interaction",
			"interaction_id", id,
			"error", err.Error())
		return err
	}

	i.logger.Info("Interactions service: interaction deleted",
		"interaction_id", id)

	return nil
}
