package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/bulksms-campaigns/internal/cache"
	"github.com/unclebandit/bulksms-campaigns/internal/dispatcher"
	appErrors "github.com/unclebandit/bulksms-campaigns/internal/errors"
	"github.com/unclebandit/bulksms-campaigns/internal/logger"
	"github.com/unclebandit/bulksms-campaigns/internal/model"
	"github.com/unclebandit/bulksms-campaigns/internal/queue"
	"github.com/unclebandit/bulksms-campaigns/internal/repository"
)

// ErrClaimLost means another run moved the campaign out of a sendable status
// first. The campaign is left untouched.
var ErrClaimLost = errors.New("campaign already claimed by another run")

// Executor runs a single campaign: claim it for sending, dispatch every
// recipient, then persist the outcomes as completed. It is shared by the
// on-demand send path and the scheduler.
type Executor struct {
	Repo        repository.CampaignRepositoryInterface
	Dispatcher  dispatcher.Dispatcher
	Publisher   queue.Publisher
	Cache       cache.AnalyticsCache
	Concurrency int
	Logger      *zap.Logger
	Now         func() time.Time
}

func NewExecutor(repo repository.CampaignRepositoryInterface, d dispatcher.Dispatcher, pub queue.Publisher, l *zap.Logger) *Executor {
	return &Executor{
		Repo:        repo,
		Dispatcher:  d,
		Publisher:   pub,
		Cache:       cache.Noop{},
		Concurrency: 1,
		Logger:      logger.OrNop(l),
		Now:         time.Now,
	}
}

func (e *Executor) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Executor) log() *zap.Logger {
	return logger.OrNop(e.Logger)
}

// Execute claims c with an atomic draft|scheduled -> sending transition and
// runs it to completion. It returns ErrClaimLost when the claim fails.
// Only c.ID is used: the campaign is re-read once claimed, so edits saved
// after c was loaded are the ones sent.
func (e *Executor) Execute(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	if err := e.claim(ctx, c.ID); err != nil {
		return nil, err
	}
	return e.runClaimed(ctx, c.ID)
}

func (e *Executor) claim(ctx context.Context, id string) error {
	won, err := e.Repo.TransitionStatus(ctx, id, SendableStatuses, model.StatusSending, e.now())
	if err != nil {
		return fmt.Errorf("claim campaign: %w", err)
	}
	if !won {
		return ErrClaimLost
	}
	return nil
}

func (e *Executor) runClaimed(ctx context.Context, id string) (*model.Campaign, error) {
	c, err := e.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load claimed campaign: %w", err)
	}
	startedAt := e.now()
	if c.StartedAt != nil {
		startedAt = *c.StartedAt
	}
	e.publish(queue.EventSending, c)

	outcomes := dispatcher.DispatchAll(ctx, e.Dispatcher, c.RecipientNumbers, c.Message, e.Concurrency)

	completedAt := e.now()
	c.TotalRecipients = len(c.RecipientNumbers)
	c.SetOutcomes(outcomes)
	c.Status = model.StatusCompleted
	c.CompletedAt = &completedAt
	c.UpdatedAt = completedAt

	if err := e.Repo.Update(ctx, c, model.StatusSending); err != nil {
		return nil, fmt.Errorf("persist results: %w", err)
	}

	e.log().Info("campaign completed",
		zap.String("campaign_id", c.ID),
		zap.Int("recipients", c.TotalRecipients),
		zap.Int("delivered", c.DeliveredCount),
		zap.Int("failed", c.FailedCount),
		zap.Duration("took", completedAt.Sub(startedAt)))

	e.publish(queue.EventCompleted, c)
	e.invalidate(ctx, c.UserID)
	return c, nil
}

// Run wraps Execute for callers that need failure recovery. Errors and
// panics are returned as an appErrors.ExecutionError; once the claim has been
// won they also mark the campaign failed on a best effort basis. A run that
// never owned the campaign leaves it untouched.
func (e *Executor) Run(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	if err := recovered(func() error { return e.claim(ctx, c.ID) }); err != nil {
		if errors.Is(err, ErrClaimLost) {
			return nil, err
		}
		e.log().Error("campaign claim failed", zap.String("campaign_id", c.ID), zap.Error(err))
		return nil, appErrors.NewExecution(c.ID, err)
	}

	var out *model.Campaign
	err := recovered(func() (err error) {
		out, err = e.runClaimed(ctx, c.ID)
		return err
	})
	if err == nil {
		return out, nil
	}

	execErr := appErrors.NewExecution(c.ID, err)
	e.log().Error("campaign execution failed", zap.String("campaign_id", c.ID), zap.Error(err))

	failedAt := e.now()
	if markErr := e.Repo.MarkFailed(context.WithoutCancel(ctx), c.ID, failedAt); markErr != nil {
		e.log().Error("failed to mark campaign as failed",
			zap.String("campaign_id", c.ID), zap.Error(markErr))
		return nil, execErr
	}

	failed := *c
	failed.Status = model.StatusFailed
	failed.CompletedAt = &failedAt
	e.publish(queue.EventFailed, &failed)
	e.invalidate(ctx, c.UserID)
	return nil, execErr
}

func recovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during execution: %v", r)
		}
	}()
	return fn()
}

func (e *Executor) publish(t queue.EventType, c *model.Campaign) {
	if e.Publisher == nil {
		return
	}
	ev := queue.CampaignEvent{
		Type:       t,
		CampaignID: c.ID,
		UserID:     c.UserID,
		Status:     c.Status,
		Counters:   c.Counters,
		At:         e.now(),
	}
	if err := e.Publisher.Publish(queue.CampaignEventsTopic, ev); err != nil {
		e.log().Warn("failed to publish campaign event",
			zap.String("campaign_id", c.ID), zap.String("event", string(t)), zap.Error(err))
	}
}

func (e *Executor) invalidate(ctx context.Context, ownerID string) {
	if e.Cache == nil {
		return
	}
	if err := e.Cache.Invalidate(context.WithoutCancel(ctx), ownerID); err != nil {
		e.log().Warn("failed to invalidate analytics cache", zap.String("user_id", ownerID), zap.Error(err))
	}
}
