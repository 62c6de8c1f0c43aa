// Package dispatcher performs the per-recipient send of a campaign.
//
// SimulatedDispatcher is the default: it succeeds with a configurable
// probability and sleeps between sends to stand in for gateway latency.
// A real SMS gateway client plugs in by implementing Dispatcher.
package dispatcher

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/unclebandit/bulksms-campaigns/internal/model"
)

const (
	DefaultSuccessRate = 0.9
	DefaultDelay       = 50 * time.Millisecond

	// FailureMessage is recorded on every simulated failed outcome.
	FailureMessage = "Network error or invalid number"

	maxDeliveryLag = 10 * time.Second
)

// Dispatcher sends one message to one recipient and reports the outcome.
// Failures are part of the outcome, never returned as errors.
type Dispatcher interface {
	Dispatch(ctx context.Context, phoneNumber, message string) model.RecipientOutcome
}

// Func adapts a plain function to the Dispatcher interface.
type Func func(ctx context.Context, phoneNumber, message string) model.RecipientOutcome

func (f Func) Dispatch(ctx context.Context, phoneNumber, message string) model.RecipientOutcome {
	return f(ctx, phoneNumber, message)
}

type SimulatedDispatcher struct {
	SuccessRate float64
	Delay       time.Duration
	Now         func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated returns a dispatcher seeded from the wall clock.
func NewSimulated(successRate float64, delay time.Duration) *SimulatedDispatcher {
	return NewSimulatedWithSource(successRate, delay, rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
}

// NewSimulatedWithSource makes the outcome sequence reproducible for a given source.
func NewSimulatedWithSource(successRate float64, delay time.Duration, src rand.Source) *SimulatedDispatcher {
	return &SimulatedDispatcher{
		SuccessRate: successRate,
		Delay:       delay,
		Now:         time.Now,
		rng:         rand.New(src),
	}
}

func (d *SimulatedDispatcher) Dispatch(ctx context.Context, phoneNumber, _ string) model.RecipientOutcome {
	if d.Delay > 0 {
		timer := time.NewTimer(d.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	d.mu.Lock()
	roll := d.rng.Float64()
	lag := time.Duration(d.rng.Int64N(int64(maxDeliveryLag)))
	d.mu.Unlock()

	sentAt := d.now()
	if roll < d.SuccessRate {
		deliveredAt := sentAt.Add(lag)
		return model.RecipientOutcome{
			PhoneNumber: phoneNumber,
			Status:      model.OutcomeDelivered,
			SentAt:      &sentAt,
			DeliveredAt: &deliveredAt,
		}
	}
	return model.RecipientOutcome{
		PhoneNumber:  phoneNumber,
		Status:       model.OutcomeFailed,
		SentAt:       &sentAt,
		ErrorMessage: FailureMessage,
	}
}

func (d *SimulatedDispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
