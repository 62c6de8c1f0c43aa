package queue

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/bulksms-campaigns/internal/model"
)

func TestInMemoryQueue_NoSubscribers(t *testing.T) {
	q := NewInMemoryQueue(nil)
	err := q.Publish("nobody", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no subscribers")
}

func TestInMemoryQueue_DeliversToAllSubscribers(t *testing.T) {
	q := NewInMemoryQueue(nil)

	var mu sync.Mutex
	var got []any
	for i := 0; i < 2; i++ {
		require.NoError(t, q.Subscribe("t", func(p any) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, p)
			return nil
		}))
	}

	require.NoError(t, q.Publish("t", "hello"))
	q.Wait()

	assert.Equal(t, []any{"hello", "hello"}, got)
}

func TestInMemoryQueue_RetriesThenSucceeds(t *testing.T) {
	q := NewInMemoryQueue(nil)
	q.RetryDelay = time.Millisecond

	var attempts atomic.Int64
	require.NoError(t, q.Subscribe("t", func(any) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	require.NoError(t, q.Publish("t", 1))
	q.Wait()
	assert.Equal(t, int64(3), attempts.Load())
}

func TestInMemoryQueue_GivesUpAfterMaxRetries(t *testing.T) {
	q := NewInMemoryQueue(nil)
	q.RetryDelay = time.Millisecond
	q.MaxRetries = 2

	var attempts atomic.Int64
	require.NoError(t, q.Subscribe("t", func(any) error {
		attempts.Add(1)
		return errors.New("permanent")
	}))

	require.NoError(t, q.Publish("t", 1))
	q.Wait()
	assert.Equal(t, int64(3), attempts.Load())
}

func TestDecodeEvent(t *testing.T) {
	ev := CampaignEvent{Type: EventCompleted, CampaignID: "c1", Status: model.StatusCompleted}
	ev.DeliveredCount = 2

	got, err := DecodeEvent(ev)
	require.NoError(t, err)
	assert.Equal(t, ev, got)

	got, err = DecodeEvent(&ev)
	require.NoError(t, err)
	assert.Equal(t, ev, got)

	got, err = DecodeEvent([]byte(`{"type":"campaign.failed","campaignId":"c2","status":"failed","failedCount":1}`))
	require.NoError(t, err)
	assert.Equal(t, EventFailed, got.Type)
	assert.Equal(t, "c2", got.CampaignID)
	assert.Equal(t, 1, got.FailedCount)

	_, err = DecodeEvent(42)
	assert.Error(t, err)
	_, err = DecodeEvent([]byte("nope"))
	assert.Error(t, err)
}
