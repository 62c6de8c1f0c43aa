package repository

import (
	"context"
	"errors"
	"time"

	"github.com/unclebandit/bulksms-campaigns/internal/model"
)

// ErrStatusConflict is returned by conditional writes when the stored status
// no longer matches what the caller expected.
var ErrStatusConflict = errors.New("campaign status changed concurrently")

// CampaignRepositoryInterface is the campaign store. Implementations must be
// safe for concurrent use.
type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	// GetByIDAndOwner returns appErrors.NotFoundError when the id does not
	// resolve under ownerID.
	GetByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Campaign, error)
	// List returns one page ordered by created_at DESC plus the total match count.
	List(ctx context.Context, ownerID string, f ListFilter) ([]*model.Campaign, int, error)
	// ListUpcoming returns scheduled campaigns due at or after from, earliest first.
	ListUpcoming(ctx context.Context, ownerID string, from time.Time) ([]*model.Campaign, error)
	// ListCreatedBetween returns campaigns with from <= created_at < to.
	ListCreatedBetween(ctx context.Context, ownerID string, from, to time.Time) ([]*model.Campaign, error)
	// FindDue returns scheduled campaigns with scheduled_date_time <= now, across owners.
	FindDue(ctx context.Context, now time.Time) ([]*model.Campaign, error)

	// Update writes every mutable column of c if the stored status still equals
	// expected, otherwise ErrStatusConflict.
	Update(ctx context.Context, c *model.Campaign, expected model.CampaignStatus) error
	// TransitionStatus atomically moves id from any of from to to and reports
	// whether this caller won. Moving to sending also stamps started_at.
	TransitionStatus(ctx context.Context, id string, from []model.CampaignStatus, to model.CampaignStatus, at time.Time) (bool, error)
	// MarkFailed sets status failed and completed_at while the campaign is
	// still in one of FailableStatuses, otherwise ErrStatusConflict.
	MarkFailed(ctx context.Context, id string, at time.Time) error
	// Delete removes the campaign unless it is sending (ErrStatusConflict).
	Delete(ctx context.Context, id, ownerID string) error
}

// FailableStatuses are the statuses MarkFailed may move out of. Completed,
// failed and cancelled campaigns are final.
var FailableStatuses = []model.CampaignStatus{model.StatusDraft, model.StatusScheduled, model.StatusSending}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status model.CampaignStatus
	Search string
	Offset int
	Limit  int
}

func statusStrings(ss []model.CampaignStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
