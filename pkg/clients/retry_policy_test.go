package clients

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestExecuteSucceedsAfterRetries(t *testing.T) {
	policy := fastPolicy(3)

	calls := 0
	err := policy.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	policy := fastPolicy(3)

	calls := 0
	failure := errors.New("still broken")
	err := policy.Execute(context.Background(), func() error {
		calls++
		return failure
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, failure)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
}

func TestExecuteWithConditionStopsEarly(t *testing.T) {
	policy := fastPolicy(5)

	calls := 0
	fatal := errors.New("bad credentials")
	err := policy.ExecuteWithCondition(context.Background(),
		func() error {
			calls++
			return fatal
		},
		func(err error) bool { return false })

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, fatal)
}

func TestExecuteRespectsContext(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     time.Second,
		Multiplier:   1.0,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	calls := 0
	err := policy.Execute(ctx, func() error {
		calls++
		return errors.New("transient")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCalculateDelayGrowth(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	assert.Equal(t, 100*time.Millisecond, policy.GetDelay(0))
	assert.Equal(t, 200*time.Millisecond, policy.GetDelay(1))
	assert.Equal(t, 400*time.Millisecond, policy.GetDelay(2))
	// Capped by MaxDelay.
	assert.Equal(t, time.Second, policy.GetDelay(10))
}

func TestCalculateDelayJitterBounds(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:     3,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.25,
	}

	for i := 0; i < 50; i++ {
		d := policy.GetDelay(0)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}

func TestCloneAndWith(t *testing.T) {
	base := DefaultRetryPolicy()

	modified := base.WithMaxAttempts(7).WithDelay(time.Millisecond, time.Second)
	assert.Equal(t, 7, modified.MaxAttempts)
	assert.Equal(t, time.Millisecond, modified.InitialDelay)
	assert.Equal(t, time.Second, modified.MaxDelay)

	// Base stays untouched.
	assert.Equal(t, 4, base.MaxAttempts)
	assert.Equal(t, time.Second, base.InitialDelay)
}

func TestNoRetryPolicy(t *testing.T) {
	calls := 0
	err := NoRetryPolicy().Execute(context.Background(), func() error {
		calls++
		return errors.New("nope")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
