package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/catalog-client/internal/logger"
	"github.com/dtroode/catalog-client/internal/model"
)

const defaultTrackingTimeout = 5 * time.Second

// Recorder stores interactions. *Interactions implements it.
type Recorder interface {
	Record(ctx context.Context, in model.InteractionCreate) (model.Interaction, error)
}

// Tracker sends interaction events in the background. Failures are logged
// and never reach the caller.
type Tracker struct {
	recorder  Recorder
	logger    *logger.Logger
	sessionID string
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewTracker creates a tracker with a fresh browsing session id. A
// non-positive timeout means 5s.
func NewTracker(recorder Recorder, timeout time.Duration, logger *logger.Logger) *Tracker {
	if timeout <= 0 {
		timeout = defaultTrackingTimeout
	}
	sid := uuid.NewString()
	return &Tracker{
		recorder:  recorder,
		logger:    logger.With("browsing_session", sid),
		sessionID: sid,
		timeout:   timeout,
	}
}

// SessionID is the browsing session id attached to every event.
func (t *Tracker) SessionID() string {
	return t.sessionID
}

func (t *Tracker) TrackView(ctx context.Context, productID int64, metadata map[string]any) {
	t.send(ctx, model.InteractionCreate{ProductID: productID, Type: model.InteractionView, Metadata: metadata})
}

func (t *Tracker) TrackLike(ctx context.Context, productID int64, metadata map[string]any) {
	t.send(ctx, model.InteractionCreate{ProductID: productID, Type: model.InteractionLike, Metadata: metadata})
}

// TrackAddToCart records a cart addition. Quantities below 1 count as 1.
func (t *Tracker) TrackAddToCart(ctx context.Context, productID int64, quantity int, metadata map[string]any) {
	q := max(quantity, 1)
	t.send(ctx, model.InteractionCreate{ProductID: productID, Type: model.InteractionAddToCart, Quantity: &q, Metadata: metadata})
}

// TrackPurchase records a purchase. Quantities below 1 count as 1.
func (t *Tracker) TrackPurchase(ctx context.Context, productID int64, quantity int, metadata map[string]any) {
	q := max(quantity, 1)
	t.send(ctx, model.InteractionCreate{ProductID: productID, Type: model.InteractionPurchase, Quantity: &q, Metadata: metadata})
}

// TrackRating records a rating between 1 and 5. Ratings outside that range
// are dropped.
func (t *Tracker) TrackRating(ctx context.Context, productID int64, rating float64, metadata map[string]any) {
	if rating < model.MinRating || rating > model.MaxRating {
		t.logger.Warn("Tracking: rating out of range, not sent",
			"product_id", productID,
			"rating", rating)
		return
	}
	t.send(ctx, model.InteractionCreate{ProductID: productID, Type: model.InteractionRating, Rating: &rating, Metadata: metadata})
}

func (t *Tracker) send(ctx context.Context, in model.InteractionCreate) {
	sid := t.sessionID
	in.SessionID = &sid

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
		defer cancel()

		if _, err := t.recorder.Record(ctx, in); err != nil {
			t.logger.Warn("Tracking: failed to record interaction",
				"product_id", in.ProductID,
				"interaction_type", in.Type,
				"error", err.Error())
			return
		}

		t.logger.Debug("Tracking: interaction recorded",
			"product_id", in.ProductID,
			"interaction_type", in.Type)
	}()
}

// Wait blocks until every event sent so far has been delivered or dropped.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
