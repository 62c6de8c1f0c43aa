// Package app assembles the campaign services from configuration. Optional
// backends fall back to in-process implementations when left unconfigured.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/unclebandit/bulksms-campaigns/internal/cache"
	"github.com/unclebandit/bulksms-campaigns/internal/config"
	"github.com/unclebandit/bulksms-campaigns/internal/db"
	"github.com/unclebandit/bulksms-campaigns/internal/dispatcher"
	"github.com/unclebandit/bulksms-campaigns/internal/queue"
	"github.com/unclebandit/bulksms-campaigns/internal/repository"
	"github.com/unclebandit/bulksms-campaigns/internal/scheduler"
	"github.com/unclebandit/bulksms-campaigns/internal/service"
)

type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Repo      repository.CampaignRepositoryInterface
	Queue     queue.Queue
	Cache     cache.AnalyticsCache
	Executor  *service.Executor
	Service   *service.CampaignService
	Scheduler *scheduler.Scheduler

	closers []func() error
}

// Build connects every configured backend and wires the executor, service
// and scheduler on top of them. Close releases whatever Build opened.
func Build(ctx context.Context, cfg *config.Config, l *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: l}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openQueue(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openCache(ctx); err != nil {
		a.Close()
		return nil, err
	}

	d := dispatcher.NewSimulated(cfg.Dispatch.SuccessRate, cfg.Dispatch.Delay)

	a.Executor = service.NewExecutor(a.Repo, d, a.Queue, l)
	a.Executor.Concurrency = cfg.Dispatch.Concurrency
	a.Executor.Cache = a.Cache

	a.Service = service.NewCampaignService(a.Repo, a.Executor, a.Cache, l)
	a.Service.WeekStart = cfg.Analytics.WeekStart
	a.Service.Location = cfg.Analytics.Location

	sched, err := scheduler.New(cfg.Scheduler.Interval, a.Repo, a.Executor, l)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Scheduler = sched

	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	if a.Config.Database.URL == "" {
		a.Logger.Warn("DATABASE_URL not set, using in-memory campaign store")
		a.Repo = repository.NewMemoryCampaignRepository()
		return nil
	}

	conn, err := db.Open(ctx, a.Config.Database.URL)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, conn.Close)
	if err := db.Migrate(ctx, conn); err != nil {
		return err
	}
	a.Repo = repository.NewCampaignRepository(conn)
	a.Logger.Info("connected to postgres")
	return nil
}

func (a *App) openQueue() error {
	if !a.Config.AMQP.Enabled {
		a.Queue = queue.NewInMemoryQueue(a.Logger)
		return nil
	}

	q, err := queue.DialAMQP(a.Config.AMQP.URL, a.Logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, q.Close)
	a.Queue = q
	a.Logger.Info("connected to rabbitmq")
	return nil
}

func (a *App) openCache(ctx context.Context) error {
	rc := a.Config.Redis
	if !rc.Enabled {
		a.Cache = cache.Noop{}
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Address,
		Password: rc.Password,
		DB:       rc.DB,
	})
	a.closers = append(a.closers, rdb.Close)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis at %s: %w", rc.Address, err)
	}
	a.Cache = cache.NewRedisAnalyticsCache(rdb, rc.TTL)
	a.Logger.Info("connected to redis", zap.String("addr", rc.Address))
	return nil
}

// LogEvents subscribes a handler that logs every campaign lifecycle event.
func (a *App) LogEvents() error {
	return a.Queue.Subscribe(queue.CampaignEventsTopic, func(payload any) error {
		ev, err := queue.DecodeEvent(payload)
		if err != nil {
			return err
		}
		a.Logger.Info("campaign event",
			zap.String("event", string(ev.Type)),
			zap.String("campaign_id", ev.CampaignID),
			zap.String("user_id", ev.UserID),
			zap.String("status", string(ev.Status)),
			zap.Int("delivered", ev.DeliveredCount),
			zap.Int("failed", ev.FailedCount))
		return nil
	})
}

// Close releases backends in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
