// Package poll implements the bounded wait loop shared by every provider that
// submits an asynchronous job and has to watch it until it reaches a terminal
// state.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when the attempt or wall-clock budget ran out
// before the terminal predicate matched.
var ErrExhausted = errors.New("poll: budget exhausted before terminal state")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config bounds a polling loop. At least one of MaxAttempts or Timeout should
// be set; with neither, the loop only stops on a terminal result, an error or
// context cancellation.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
	Sleep       SleepFunc
	Now         func() time.Time
}

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Until calls fetch, then sleeps Interval between calls, until done reports a
// terminal result. An error from fetch ends the loop immediately. The last
// fetched value is returned alongside ErrExhausted so callers can report the
// state the job was left in.
func Until[T any](ctx context.Context, cfg Config, fetch func(context.Context) (T, error), done func(T) bool) (T, error) {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	start := now()

	var last T
	for attempt := 1; ; attempt++ {
		result, err := fetch(ctx)
		if err != nil {
			return result, err
		}
		last = result
		if done(result) {
			return result, nil
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return last, ErrExhausted
		}
		if cfg.Timeout > 0 && now().Sub(start) >= cfg.Timeout {
			return last, ErrExhausted
		}
		if err := sleep(ctx, cfg.Interval); err != nil {
			return last, err
		}
	}
}
