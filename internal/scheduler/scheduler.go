// Package scheduler runs due scheduled campaigns on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/bulksms-campaigns/internal/logger"
	"github.com/unclebandit/bulksms-campaigns/internal/model"
	"github.com/unclebandit/bulksms-campaigns/internal/service"
)

// DefaultInterval is the tick period when none is configured.
const DefaultInterval = time.Minute

// ErrRunning is returned by Drain while the tick loop can still start new ticks.
var ErrRunning = errors.New("scheduler is running; call Stop before Drain")

// DueFinder is the store query the scheduler polls.
type DueFinder interface {
	FindDue(ctx context.Context, now time.Time) ([]*model.Campaign, error)
}

// Runner executes one campaign and is responsible for marking it failed.
// *service.Executor implements it.
type Runner interface {
	Run(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
}

// Ticker is the timer abstraction; *time.Ticker satisfies it through NewStdTicker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

func NewStdTicker(d time.Duration) Ticker { return stdTicker{time.NewTicker(d)} }

// TickResult counts what happened to the due campaigns of one tick.
type TickResult struct {
	Due       int
	Completed int
	Failed    int
	Skipped   int
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running    bool       `json:"isRunning"`
	Interval   string     `json:"interval"`
	Ticks      int64      `json:"ticks"`
	InFlight   int64      `json:"inFlight"`
	LastTickAt *time.Time `json:"lastTickAt,omitempty"`
}

type Scheduler struct {
	interval time.Duration
	store    DueFinder
	runner   Runner
	logger   *zap.Logger

	// NewTicker and Now may be replaced before Start.
	NewTicker func(time.Duration) Ticker
	Now       func() time.Time

	running atomic.Bool
	ticks   atomic.Int64
	active  atomic.Int64
	last    atomic.Pointer[time.Time]

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	inflight sync.WaitGroup
}

func New(interval time.Duration, store DueFinder, runner Runner, l *zap.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if store == nil {
		return nil, errors.New("store must not be nil")
	}
	if runner == nil {
		return nil, errors.New("runner must not be nil")
	}
	return &Scheduler{
		interval:  interval,
		store:     store,
		runner:    runner,
		logger:    logger.OrNop(l),
		NewTicker: NewStdTicker,
		Now:       time.Now,
	}, nil
}

// Start begins ticking. The first tick fires one interval after Start.
// It returns false, and logs, when the scheduler is already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		s.logger.Info("scheduler already running")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	ticker := s.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		defer ticker.Stop()

		s.logger.Info("scheduler started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				// Ticks run detached so a long send never delays the next
				// tick and Stop never cancels a send in progress.
				s.inflight.Add(1)
				s.active.Add(1)
				go func() {
					defer s.inflight.Done()
					defer s.active.Add(-1)
					s.safeTick(context.Background())
				}()
			}
		}
	}()

	return true
}

// Stop prevents future ticks. In-flight ticks keep running; use Drain to
// wait for them. It returns false when the scheduler is not running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		s.logger.Info("scheduler not running")
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	s.logger.Info("scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// Drain waits for in-flight ticks to finish or ctx to end. It must follow
// Stop, and Start must not be called again until it returns; while the loop
// is running it returns ErrRunning without waiting.
func (s *Scheduler) Drain(ctx context.Context) error {
	s.mu.Lock()
	running := s.running.Load()
	s.mu.Unlock()
	if running {
		return ErrRunning
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Status() Status {
	return Status{
		Running:    s.running.Load(),
		Interval:   s.interval.String(),
		Ticks:      s.ticks.Load(),
		InFlight:   s.active.Load(),
		LastTickAt: s.last.Load(),
	}
}

func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler tick panic recovered", zap.Any("panic", r))
		}
	}()

	start := s.now()
	res, err := s.Tick(ctx)
	if err != nil {
		s.logger.Error("scheduler tick failed", zap.Error(err))
		return
	}
	if res.Due > 0 {
		s.logger.Info("scheduler tick completed",
			zap.Int("due", res.Due),
			zap.Int("completed", res.Completed),
			zap.Int("failed", res.Failed),
			zap.Int("skipped", res.Skipped),
			zap.Duration("took", s.now().Sub(start)))
	}
}

// Tick runs every campaign that is due now, one at a time. A failure or panic
// in one campaign does not stop the others.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	now := s.now()
	s.ticks.Add(1)
	s.last.Store(&now)

	due, err := s.store.FindDue(ctx, now)
	if err != nil {
		return TickResult{}, fmt.Errorf("find due campaigns: %w", err)
	}

	res := TickResult{Due: len(due)}
	for _, c := range due {
		switch err := s.runOne(ctx, c); {
		case err == nil:
			res.Completed++
		case errors.Is(err, service.ErrClaimLost):
			res.Skipped++
			s.logger.Debug("campaign already claimed", zap.String("campaign_id", c.ID))
		default:
			res.Failed++
			s.logger.Error("scheduled campaign failed",
				zap.String("campaign_id", c.ID), zap.Error(err))
		}
	}
	return res, nil
}

func (s *Scheduler) runOne(ctx context.Context, c *model.Campaign) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic running campaign %s: %v", c.ID, r)
		}
	}()
	_, err = s.runner.Run(ctx, c)
	return err
}

func (s *Scheduler) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
