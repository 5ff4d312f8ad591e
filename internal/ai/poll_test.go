package ai_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trace-go/internal/ai"
	"trace-go/internal/ai/aitest"
)

func countingSleep(n *int, total *time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*n++
		*total += d
		return nil
	}
}

func TestWaitForActiveAfterProcessing(t *testing.T) {
	fake := &aitest.Fake{States: []ai.FileState{ai.StateProcessing, ai.StateProcessing, ai.StateActive}}
	var sleeps int
	var waited time.Duration

	f, err := ai.WaitForActive(context.Background(), fake, "files/1", ai.PollConfig{
		Interval:    time.Second,
		MaxAttempts: 30,
		Sleep:       countingSleep(&sleeps, &waited),
	})
	require.NoError(t, err)
	assert.Equal(t, ai.StateActive, f.State)
	assert.Equal(t, 2, sleeps)
	assert.Equal(t, 2*time.Second, waited)
	assert.Equal(t, 3, fake.Gets)
}

func TestWaitForActiveTimeout(t *testing.T) {
	fake := &aitest.Fake{States: []ai.FileState{ai.StateProcessing}}
	var sleeps int
	var waited time.Duration

	_, err := ai.WaitForActive(context.Background(), fake, "files/1", ai.PollConfig{
		Interval:    time.Second,
		MaxAttempts: 30,
		Sleep:       countingSleep(&sleeps, &waited),
	})
	require.ErrorIs(t, err, ai.ErrProcessingTimeout)
	assert.Equal(t, 30, sleeps)
	assert.Equal(t, 30*time.Second, waited, "ceiling is interval times attempts")
	assert.Equal(t, 31, fake.Gets)
}

func TestWaitForActiveFailed(t *testing.T) {
	fake := &aitest.Fake{States: []ai.FileState{ai.StateProcessing, ai.StateFailed}, FileError: "bad codec"}

	_, err := ai.WaitForActive(context.Background(), fake, "files/1", ai.PollConfig{
		Interval: time.Second, MaxAttempts: 30, Sleep: aitest.NoSleep,
	})
	require.ErrorIs(t, err, ai.ErrProcessingFailed)
	assert.Contains(t, err.Error(), "bad codec")
}

func TestWaitForActiveUnknownState(t *testing.T) {
	fake := &aitest.Fake{States: []ai.FileState{"STATE_UNSPECIFIED"}}

	_, err := ai.WaitForActive(context.Background(), fake, "files/1", ai.PollConfig{
		Interval: time.Second, MaxAttempts: 3, Sleep: aitest.NoSleep,
	})
	require.ErrorIs(t, err, ai.ErrProcessingFailed)
}

func TestWaitForActiveGetError(t *testing.T) {
	boom := errors.New("unavailable")
	fake := &aitest.Fake{GetErr: boom}

	_, err := ai.WaitForActive(context.Background(), fake, "files/1", ai.PollConfig{MaxAttempts: 3, Sleep: aitest.NoSleep})
	require.ErrorIs(t, err, boom)
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ai.SleepContext(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
