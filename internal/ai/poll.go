package ai

import (
	"context"
	"fmt"
	"time"
)

// PollConfig bounds the wait for an upload to become active. Sleep is
// injectable so tests do not wait on the wall clock.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
	Sleep       func(ctx context.Context, d time.Duration) error
}

// ReleaseTimeout bounds a remote file delete that runs after the request
// context may already be gone.
const ReleaseTimeout = 30 * time.Second

// ReleaseContext returns a context for cleanup that survives cancellation of
// ctx but still ends after ReleaseTimeout.
func ReleaseContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), ReleaseTimeout)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WaitForActive polls the named upload until it leaves the processing state or
// the attempt budget is spent. The ceiling is Interval * MaxAttempts.
func WaitForActive(ctx context.Context, files Files, name string, cfg PollConfig) (*File, error) {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	f, err := files.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", name, err)
	}

	for attempts := 0; f.State == StateProcessing && attempts < cfg.MaxAttempts; attempts++ {
		if err := sleep(ctx, cfg.Interval); err != nil {
			return nil, err
		}
		if f, err = files.Get(ctx, name); err != nil {
			return nil, fmt.Errorf("get file %s: %w", name, err)
		}
	}

	switch f.State {
	case StateActive:
		return f, nil
	case StateProcessing:
		return nil, fmt.Errorf("%w: %s still processing after %d attempts", ErrProcessingTimeout, name, cfg.MaxAttempts)
	case StateFailed:
		if f.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrProcessingFailed, f.Error)
		}
		return nil, fmt.Errorf("%w: %s", ErrProcessingFailed, name)
	default:
		return nil, fmt.Errorf("%w: unexpected state %q", ErrProcessingFailed, f.State)
	}
}
