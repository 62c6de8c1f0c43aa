package cache

import (
	"context"
	"time"

	"github.com/unclebandit/bulksms-campaigns/internal/model"
)

// AnalyticsCache stores computed analytics per owner, period and window
// start, so a result never outlives the window it was computed for.
type AnalyticsCache interface {
	Get(ctx context.Context, ownerID, period string, from time.Time) (*model.Analytics, bool, error)
	Set(ctx context.Context, ownerID, period string, from time.Time, a *model.Analytics) error
	// Invalidate drops every cached entry for ownerID.
	Invalidate(ctx context.Context, ownerID string) error
}

// Noop never caches.
type Noop struct{}

func (Noop) Get(context.Context, string, string, time.Time) (*model.Analytics, bool, error) {
	return nil, false, nil
}

func (Noop) Set(context.Context, string, string, time.Time, *model.Analytics) error { return nil }

func (Noop) Invalidate(context.Context, string) error { return nil }
