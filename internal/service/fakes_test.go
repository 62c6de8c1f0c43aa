package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/unclebandit/bulksms-campaigns/internal/dispatcher"
	"github.com/unclebandit/bulksms-campaigns/internal/model"
	"github.com/unclebandit/bulksms-campaigns/internal/queue"
	"github.com/unclebandit/bulksms-campaigns/internal/repository"
)

var errStore = errors.New("store unavailable")

func alwaysDeliver() dispatcher.Dispatcher {
	return dispatcher.Func(func(_ context.Context, phone, _ string) model.RecipientOutcome {
		now := time.Now()
		return model.RecipientOutcome{PhoneNumber: phone, Status: model.OutcomeDelivered, SentAt: &now, DeliveredAt: &now}
	})
}

func alwaysFail() dispatcher.Dispatcher {
	return dispatcher.NewSimulatedWithSource(0, 0, rand.NewPCG(1, 2))
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.CampaignEvent
}

func (p *recordingPublisher) Publish(topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if topic == queue.CampaignEventsTopic {
		p.events = append(p.events, payload.(queue.CampaignEvent))
	}
	return nil
}

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// faultyRepo wraps the memory store and injects failures.
type faultyRepo struct {
	*repository.MemoryCampaignRepository
	failUpdate     bool
	failMarkFailed bool
	failTransition bool
	markedFailed   int
}

func (r *faultyRepo) TransitionStatus(ctx context.Context, id string, from []model.CampaignStatus, to model.CampaignStatus, at time.Time) (bool, error) {
	if r.failTransition {
		return false, errStore
	}
	return r.MemoryCampaignRepository.TransitionStatus(ctx, id, from, to, at)
}

func (r *faultyRepo) Update(ctx context.Context, c *model.Campaign, expected model.CampaignStatus) error {
	if r.failUpdate {
		return errStore
	}
	return r.MemoryCampaignRepository.Update(ctx, c, expected)
}

func (r *faultyRepo) MarkFailed(ctx context.Context, id string, at time.Time) error {
	r.markedFailed++
	if r.failMarkFailed {
		return errStore
	}
	return r.MemoryCampaignRepository.MarkFailed(ctx, id, at)
}

// mapCache is an in-process AnalyticsCache.
type mapCache struct {
	mu   sync.Mutex
	data map[string]*model.Analytics
	hits int
}

func newMapCache() *mapCache { return &mapCache{data: map[string]*model.Analytics{}} }

func mapCacheKey(owner, period string, from time.Time) string {
	return owner + "/" + period + "/" + from.UTC().Format(time.RFC3339)
}

func (c *mapCache) Get(_ context.Context, owner, period string, from time.Time) (*model.Analytics, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.data[mapCacheKey(owner, period, from)]
	if ok {
		c.hits++
	}
	return a, ok, nil
}

func (c *mapCache) Set(_ context.Context, owner, period string, from time.Time, a *model.Analytics) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[mapCacheKey(owner, period, from)] = a
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, owner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if strings.HasPrefix(k, owner+"/") {
			delete(c.data, k)
		}
	}
	return nil
}

type fixture struct {
	repo  *repository.MemoryCampaignRepository
	pub   *recordingPublisher
	exec  *Executor
	svc   *CampaignService
	cache *mapCache
}

func newFixture(t *testing.T, d dispatcher.Dispatcher) *fixture {
	t.Helper()
	repo := repository.NewMemoryCampaignRepository()
	pub := &recordingPublisher{}
	exec := NewExecutor(repo, d, pub, nil)
	c := newMapCache()
	exec.Cache = c
	svc := NewCampaignService(repo, exec, c, nil)
	return &fixture{repo: repo, pub: pub, exec: exec, svc: svc, cache: c}
}

func threeRecipients() CreateCampaignInput {
	return CreateCampaignInput{
		Name:             "Spring promo",
		Message:          "20% off this week",
		RecipientNumbers: []string{"+15550001", "+15550002", "+15550003"},
	}
}

func ptr[T any](v T) *T { return &v }

func newSeededDispatcher() dispatcher.Dispatcher {
	return dispatcher.NewSimulatedWithSource(0.5, 0, rand.NewPCG(7, 11))
}
