package workqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bitebase/intelligence-engine/pkg/retry"
)

func quickRetry() *retry.Config {
	return &retry.Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestSerialQueue_AppliesInSubmissionOrder(t *testing.T) {
	q := New(zap.NewNop(), WithRetryConfig(quickRetry()))

	var mu sync.Mutex
	var order []int

	for i := 0; i < 20; i++ {
		i := i
		err := q.Enqueue(Job{
			Name: "ordered",
			Run: func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			},
		})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	require.Len(t, order, 20)
	for i, got := range order {
		assert.Equal(t, i, got)
	}
}

func TestSerialQueue_RetriesTransientFailures(t *testing.T) {
	q := New(zap.NewNop(), WithRetryConfig(quickRetry()))

	var mu sync.Mutex
	attempts := 0

	err := q.Enqueue(Job{
		Name: "flaky",
		Run: func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts < 3 {
				return errors.New("connection refused")
			}
			return nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestSerialQueue_PermanentFailureDoesNotBlockLaterJobs(t *testing.T) {
	q := New(zap.NewNop(), WithRetryConfig(quickRetry()))

	var mu sync.Mutex
	var applied []string

	require.NoError(t, q.Enqueue(Job{
		Name: "doomed",
		Run: func(ctx context.Context) error {
			return errors.New("constraint violation")
		},
	}))
	require.NoError(t, q.Enqueue(Job{
		Name: "survivor",
		Run: func(ctx context.Context) error {
			mu.Lock()
			applied = append(applied, "survivor")
			mu.Unlock()
			return nil
		},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	assert.Equal(t, []string{"survivor"}, applied)
}

func TestSerialQueue_EnqueueAfterStop(t *testing.T) {
	q := New(zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	err := q.Enqueue(Job{Name: "late", Run: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestSerialQueue_FullBufferRejects(t *testing.T) {
	release := make(chan struct{})
	q := New(zap.NewNop(), WithDepth(1))

	// First job blocks the worker; second fills the buffer.
	require.NoError(t, q.Enqueue(Job{
		Name: "blocker",
		Run: func(ctx context.Context) error {
			<-release
			return nil
		},
	}))

	// The worker may not have picked up the blocker yet, so fill until full.
	var full bool
	for i := 0; i < 3; i++ {
		if err := q.Enqueue(Job{Name: "filler", Run: func(ctx context.Context) error { return nil }}); errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
	}
	assert.True(t, full, "expected ErrQueueFull once buffer and worker are both occupied")

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))
}

func TestSerialQueue_StopCancelsInFlightJob(t *testing.T) {
	q := New(zap.NewNop())

	started := make(chan struct{})
	require.NoError(t, q.Enqueue(Job{
		Name: "slow",
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}))

	<-started
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := q.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
