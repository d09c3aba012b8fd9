package providers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstSuccess_FirstWinnerReturned(t *testing.T) {
	release := make(chan struct{})
	tasks := []Task[string]{
		func(ctx context.Context) (string, error) {
			select {
			case <-release:
				return "slow", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
		func(ctx context.Context) (string, error) {
			return "fast", nil
		},
	}

	idx, val, errs := FirstSuccess(context.Background(), tasks)
	close(release)

	assert.Equal(t, 1, idx)
	assert.Equal(t, "fast", val)
	assert.Nil(t, errs)
}

func TestFirstSuccess_SkipsFailures(t *testing.T) {
	tasks := []Task[int]{
		func(ctx context.Context) (int, error) { return 0, errors.New("a failed") },
		func(ctx context.Context) (int, error) {
			time.Sleep(20 * time.Millisecond)
			return 42, nil
		},
	}

	idx, val, errs := FirstSuccess(context.Background(), tasks)
	assert.Equal(t, 1, idx)
	assert.Equal(t, 42, val)
	assert.Nil(t, errs)
}

func TestFirstSuccess_AllFail(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	tasks := []Task[int]{
		func(ctx context.Context) (int, error) {
			time.Sleep(10 * time.Millisecond)
			return 0, errA
		},
		func(ctx context.Context) (int, error) { return 0, errB },
	}

	idx, val, errs := FirstSuccess(context.Background(), tasks)
	assert.Equal(t, -1, idx)
	assert.Zero(t, val)
	require.Len(t, errs, 2)
	assert.Same(t, errA, errs[0])
	assert.Same(t, errB, errs[1])
}

func TestFirstSuccess_CancelsLosers(t *testing.T) {
	var canceled atomic.Bool
	done := make(chan struct{})
	tasks := []Task[string]{
		func(ctx context.Context) (string, error) { return "winner", nil },
		func(ctx context.Context) (string, error) {
			defer close(done)
			<-ctx.Done()
			canceled.Store(true)
			return "", ctx.Err()
		},
	}

	_, val, _ := FirstSuccess(context.Background(), tasks)
	assert.Equal(t, "winner", val)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("losing task was not canceled")
	}
	assert.True(t, canceled.Load())
}

func TestFirstSuccess_ReturnsWithoutWaitingForSlowTasks(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	tasks := []Task[string]{
		func(ctx context.Context) (string, error) {
			<-block // ignores cancellation
			return "late", nil
		},
		func(ctx context.Context) (string, error) { return "now", nil },
	}

	start := time.Now()
	_, val, _ := FirstSuccess(context.Background(), tasks)
	assert.Equal(t, "now", val)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestFirstSuccess_NoTasks(t *testing.T) {
	idx, _, errs := FirstSuccess[string](context.Background(), nil)
	assert.Equal(t, -1, idx)
	assert.Empty(t, errs)
}
