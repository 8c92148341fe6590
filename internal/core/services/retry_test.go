package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-intel/internal/domain"
)

func TestFloodRetrier_RetriesAfterRequestedWait(t *testing.T) {
	timer := newFakeTimer()
	r := newTestRetrier(timer)

	calls := 0
	err := r.Do(context.Background(), "test", func(context.Context) error {
		calls++
		if calls == 1 {
			return tgerr.New(420, "FLOOD_WAIT_3")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{4 * time.Second}, timer.Waits())
}

func TestFloodRetrier_BudgetExhausted(t *testing.T) {
	timer := newFakeTimer()
	r := NewFloodRetrier(RetryConfig{MaxRetries: 2, Pad: time.Second},
		WithRetrierLogger(discardLogger),
		WithTimer(func() backoff.Timer { return timer }),
	)

	calls := 0
	err := r.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return tgerr.New(420, "FLOOD_WAIT_1")
	})

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 3, calls)
	assert.Len(t, timer.Waits(), 2)
}

func TestFloodRetrier_WaitAboveLimitIsNotRetried(t *testing.T) {
	timer := newFakeTimer()
	r := NewFloodRetrier(RetryConfig{MaxRetries: 5, MaxWait: time.Minute, Pad: time.Second},
		WithRetrierLogger(discardLogger),
		WithTimer(func() backoff.Timer { return timer }),
	)

	calls := 0
	err := r.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return tgerr.New(420, "FLOOD_WAIT_3600")
	})

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 1, calls)
	assert.Empty(t, timer.Waits())
}

func TestFloodRetrier_OtherErrorsReturnedImmediately(t *testing.T) {
	timer := newFakeTimer()
	r := newTestRetrier(timer)
	boom := errors.New("boom")

	calls := 0
	err := r.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 1, calls)
	assert.Empty(t, timer.Waits())
}

func TestFloodRetrier_Pause(t *testing.T) {
	timer := newFakeTimer()
	r := newTestRetrier(timer)

	require.NoError(t, r.Pause(context.Background(), time.Second))
	assert.Equal(t, []time.Duration{time.Second}, timer.Waits())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Pause(ctx, 0), context.Canceled)
}

func TestFloodRetrier_RealTimerPause(t *testing.T) {
	r := NewFloodRetrier(DefaultRetryConfig(), WithRetrierLogger(discardLogger))

	start := time.Now()
	require.NoError(t, r.Pause(context.Background(), 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Pause(ctx, time.Hour), context.DeadlineExceeded)
}
