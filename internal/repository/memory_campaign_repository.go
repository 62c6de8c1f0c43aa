package repository

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	appErrors "github.com/unclebandit/bulksms-campaigns/internal/errors"
	"github.com/unclebandit/bulksms-campaigns/internal/model"
)

// MemoryCampaignRepository keeps campaigns in process memory. It is used when
// no DATABASE_URL is configured and by tests. Stored values are copied on the
// way in and out so callers never share state with the store.
type MemoryCampaignRepository struct {
	mu        sync.RWMutex
	campaigns map[string]*model.Campaign
}

func NewMemoryCampaignRepository() *MemoryCampaignRepository {
	return &MemoryCampaignRepository{campaigns: make(map[string]*model.Campaign)}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneCampaign(c *model.Campaign) *model.Campaign {
	cp := *c
	cp.RecipientNumbers = slices.Clone(c.RecipientNumbers)
	cp.SelectedCountries = slices.Clone(c.SelectedCountries)
	cp.ScheduledDateTime = cloneTime(c.ScheduledDateTime)
	cp.StartedAt = cloneTime(c.StartedAt)
	cp.CompletedAt = cloneTime(c.CompletedAt)
	if c.MessageStatuses != nil {
		cp.MessageStatuses = make([]model.RecipientOutcome, len(c.MessageStatuses))
		for i, o := range c.MessageStatuses {
			o.SentAt = cloneTime(o.SentAt)
			o.DeliveredAt = cloneTime(o.DeliveredAt)
			cp.MessageStatuses[i] = o
		}
	}
	return &cp
}

func (r *MemoryCampaignRepository) Create(_ context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[c.ID] = cloneCampaign(c)
	return nil
}

func (r *MemoryCampaignRepository) GetByID(_ context.Context, id string) (*model.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return cloneCampaign(c), nil
}

func (r *MemoryCampaignRepository) GetByIDAndOwner(_ context.Context, id, ownerID string) (*model.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.campaigns[id]
	if !ok || c.UserID != ownerID {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return cloneCampaign(c), nil
}

// filter returns copies of the campaigns matching keep, in no particular order.
func (r *MemoryCampaignRepository) filter(keep func(*model.Campaign) bool) []*model.Campaign {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*model.Campaign{}
	for _, c := range r.campaigns {
		if keep(c) {
			out = append(out, cloneCampaign(c))
		}
	}
	return out
}

func (r *MemoryCampaignRepository) List(_ context.Context, ownerID string, f ListFilter) ([]*model.Campaign, int, error) {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	matched := r.filter(func(c *model.Campaign) bool {
		if c.UserID != ownerID {
			return false
		}
		if f.Status != "" && c.Status != f.Status {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Name), search) &&
			!strings.Contains(strings.ToLower(c.Message), search) &&
			!strings.Contains(strings.ToLower(c.Tags), search) {
			return false
		}
		return true
	})

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(max(f.Offset, 0), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return matched[start:end], total, nil
}

func (r *MemoryCampaignRepository) ListUpcoming(_ context.Context, ownerID string, from time.Time) ([]*model.Campaign, error) {
	out := r.filter(func(c *model.Campaign) bool {
		return c.UserID == ownerID && c.Status == model.StatusScheduled &&
			c.ScheduledDateTime != nil && !c.ScheduledDateTime.Before(from)
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledDateTime.Before(*out[j].ScheduledDateTime)
	})
	return out, nil
}

func (r *MemoryCampaignRepository) ListCreatedBetween(_ context.Context, ownerID string, from, to time.Time) ([]*model.Campaign, error) {
	return r.filter(func(c *model.Campaign) bool {
		return c.UserID == ownerID && !c.CreatedAt.Before(from) && c.CreatedAt.Before(to)
	}), nil
}

func (r *MemoryCampaignRepository) FindDue(_ context.Context, now time.Time) ([]*model.Campaign, error) {
	return r.filter(func(c *model.Campaign) bool {
		return c.Status == model.StatusScheduled && c.ScheduledDateTime != nil && !c.ScheduledDateTime.After(now)
	}), nil
}

func (r *MemoryCampaignRepository) Update(_ context.Context, c *model.Campaign, expected model.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.campaigns[c.ID]
	if !ok || cur.Status != expected {
		return ErrStatusConflict
	}
	next := cloneCampaign(c)
	next.UserID = cur.UserID
	next.CreatedAt = cur.CreatedAt
	r.campaigns[c.ID] = next
	return nil
}

func (r *MemoryCampaignRepository) TransitionStatus(_ context.Context, id string, from []model.CampaignStatus, to model.CampaignStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || !slices.Contains(from, c.Status) {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = at
	if to == model.StatusSending {
		c.StartedAt = cloneTime(&at)
	}
	return true, nil
}

func (r *MemoryCampaignRepository) MarkFailed(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	if !slices.Contains(FailableStatuses, c.Status) {
		return ErrStatusConflict
	}
	c.Status = model.StatusFailed
	c.CompletedAt = cloneTime(&at)
	c.UpdatedAt = at
	return nil
}

func (r *MemoryCampaignRepository) Delete(_ context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.UserID != ownerID {
		return appErrors.NewCampaignNotFound(id)
	}
	if c.Status == model.StatusSending {
		return ErrStatusConflict
	}
	delete(r.campaigns, id)
	return nil
}

var _ CampaignRepositoryInterface = (*MemoryCampaignRepository)(nil)
