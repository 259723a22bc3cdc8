package model

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// InteractionAPI is the remote interactions surface.
type InteractionAPI interface {
	CreateInteraction(ctx context.Context, in InteractionCreate) (Interaction, error)
	History(ctx context.Context, p HistoryParams) (InteractionHistory, error)
	Analytics(ctx context.Context, daysBack int) (Analytics, error)
	ProductStats(ctx context.Context, productID int64, daysBack int) (InteractionStats, error)
	Bulk(ctx context.Context, p BulkParams) ([]Interaction, error)
	DeleteInteraction(ctx context.Context, id int64) error
}

// InteractionType is the kind of user interaction with a product.
type InteractionType string

const (
	InteractionView      InteractionType = "view"
	InteractionLike      InteractionType = "like"
	InteractionAddToCart InteractionType = "add_to_cart"
	InteractionPurchase  InteractionType = "purchase"
	InteractionRating    InteractionType = "rating"
)

// ParseInteractionType validates an interaction type.
func ParseInteractionType(s string) (InteractionType, error) {
	switch InteractionType(s) {
	case InteractionView, InteractionLike, InteractionAddToCart, InteractionPurchase, InteractionRating:
		return InteractionType(s), nil
	}
	return "", &ValidationError{Field: "interaction_type", Message: fmt.Sprintf("unknown interaction type %q", s)}
}

// Rating bounds accepted by the API.
const (
	MinRating = 1.0
	MaxRating = 5.0
)

// InteractionCreate is the body of a record interaction request.
type InteractionCreate struct {
	ProductID int64           `json:"product_id"`
	Type      InteractionType `json:"interaction_type"`
	Rating    *float64        `json:"rating_value,omitempty"`
	Quantity  *int            `json:"quantity,omitempty"`
	SessionID *string         `json:"session_id,omitempty"`
	Metadata  map[string]any  `json:"interaction_metadata,omitempty"`
}

// Interaction is a recorded interaction as returned by the API.
type Interaction struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	ProductID int64           `json:"product_id"`
	Type      InteractionType `json:"interaction_type"`
	Rating    *float64        `json:"rating_value"`
	Quantity  *int            `json:"quantity"`
	SessionID *string         `json:"session_id"`
	Metadata  map[string]any  `json:"interaction_metadata"`
	Timestamp Timestamp       `json:"timestamp"`
}

// InteractionHistory is one page of the current user's interactions.
type InteractionHistory struct {
	Interactions []Interaction `json:"interactions"`
	TotalCount   int           `json:"total_count"`
	Page         int           `json:"page"`
	PerPage      int           `json:"per_page"`
}

// HasNext reports whether a later page exists.
func (h InteractionHistory) HasNext() bool {
	return h.Page*h.PerPage < h.TotalCount
}

// CategoryActivity counts interactions per category.
type CategoryActivity struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// ProductActivity counts interactions per product.
type ProductActivity struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Analytics summarizes the current user's activity.
type Analytics struct {
	TotalViews           int                `json:"total_views"`
	TotalLikes           int                `json:"total_likes"`
	TotalCartAdditions   int                `json:"total_cart_additions"`
	TotalPurchases       int                `json:"total_purchases"`
	TotalRatings         int                `json:"total_ratings"`
	AverageRating        *float64           `json:"average_rating"`
	MostViewedCategories []CategoryActivity `json:"most_viewed_categories"`
	MostLikedProducts    []ProductActivity  `json:"most_liked_products"`
	RecentActivity       []Interaction      `json:"recent_activity"`
}

// InteractionStats aggregates interactions for one product.
type InteractionStats struct {
	ProductID           int64    `json:"product_id"`
	TotalViews          int      `json:"total_views"`
	TotalLikes          int      `json:"total_likes"`
	TotalCartAdditions  int      `json:"total_cart_additions"`
	TotalPurchases      int      `json:"total_purchases"`
	TotalRatings        int      `json:"total_ratings"`
	AverageRating       *float64 `json:"average_rating"`
	ViewToCartRatio     *float64 `json:"view_to_cart_ratio"`
	CartToPurchaseRatio *float64 `json:"cart_to_purchase_ratio"`
}

// HistoryParams selects a page of interaction history.
type HistoryParams struct {
	Page    int
	PerPage int
	Type    InteractionType
}

func (p HistoryParams) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("per_page", strconv.Itoa(p.PerPage))
	if p.Type != "" {
		v.Set("interaction_type", string(p.Type))
	}
	return v
}

// BulkParams filters the bulk interactions listing.
type BulkParams struct {
	ProductIDs []int64
	Types      []InteractionType
	DaysBack   int
	Limit      int
}

func (p BulkParams) Values() url.Values {
	v := url.Values{}
	if len(p.ProductIDs) > 0 {
		ids := make([]string, len(p.ProductIDs))
		for i, id := range p.ProductIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		v.Set("product_ids", strings.Join(ids, ","))
	}
	if len(p.Types) > 0 {
		types := make([]string, len(p.Types))
		for i, t := range p.Types {
			types[i] = string(t)
		}
		v.Set("interaction_types", strings.Join(types, ","))
	}
	if p.DaysBack > 0 {
		v.Set("days_back", strconv.Itoa(p.DaysBack))
	}
	v.Set("limit", strconv.Itoa(p.Limit))
	return v
}
