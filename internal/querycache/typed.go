package querycache

import (
	"context"
	"fmt"

	"github.com/dtroode/catalog-client/internal/model"
)

// Fetch is Query with a typed result.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	v, err := c.Query(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, opts...)
	if err != nil {
		var zero T
		return zero, err
	}

	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cached value for %s has type %T", key, v)
	}
	return out, nil
}

// Mutate runs a mutation and then invalidates tags. Invalidation happens
// whether or not the mutation succeeded, since a failed request may still
// have changed server state.
func Mutate[T any](ctx context.Context, c *Cache, mutate func(ctx context.Context) (T, error), tags ...model.Tag) (T, error) {
	out, err := mutate(ctx)
	c.Invalidate(tags...)
	return out, err
}
