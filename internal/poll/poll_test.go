package poll

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingSleeper struct {
	calls int
	total time.Duration
	clock *fakeClock
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.calls++
	s.total += d
	if s.clock != nil {
		s.clock.now = s.clock.now.Add(d)
	}
	return ctx.Err()
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func sequence(statuses ...string) func(context.Context) (string, error) {
	i := 0
	return func(context.Context) (string, error) {
		if i >= len(statuses) {
			return statuses[len(statuses)-1], nil
		}
		s := statuses[i]
		i++
		return s, nil
	}
}

func isTerminal(s string) bool { return s == "succeeded" || s == "failed" }

func TestUntilReturnsAfterTwoIntervals(t *testing.T) {
	sleeper := &recordingSleeper{}
	cfg := Config{Interval: 2 * time.Second, MaxAttempts: 15, Sleep: sleeper.sleep}

	got, err := Until(context.Background(), cfg, sequence("processing", "processing", "succeeded"), isTerminal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "succeeded" {
		t.Fatalf("result = %q, want succeeded", got)
	}
	if sleeper.calls != 2 {
		t.Fatalf("sleep calls = %d, want 2", sleeper.calls)
	}
	if sleeper.total != 4*time.Second {
		t.Fatalf("slept %s, want 4s", sleeper.total)
	}
}

func TestUntilExhaustsAttempts(t *testing.T) {
	sleeper := &recordingSleeper{}
	cfg := Config{Interval: time.Second, MaxAttempts: 3, Sleep: sleeper.sleep}

	calls := 0
	fetch := func(context.Context) (string, error) {
		calls++
		return "processing", nil
	}
	got, err := Until(context.Background(), cfg, fetch, isTerminal)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if got != "processing" {
		t.Fatalf("last result = %q, want processing", got)
	}
	if calls != 3 {
		t.Fatalf("fetch calls = %d, want 3", calls)
	}
	if sleeper.calls != 2 {
		t.Fatalf("sleep calls = %d, want 2", sleeper.calls)
	}
}

func TestUntilHonorsWallClockTimeout(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	sleeper := &recordingSleeper{clock: clock}
	cfg := Config{Interval: 10 * time.Second, Timeout: 60 * time.Second, Sleep: sleeper.sleep, Now: clock.Now}

	calls := 0
	fetch := func(context.Context) (string, error) {
		calls++
		return "RUNNING", nil
	}
	_, err := Until(context.Background(), cfg, fetch, func(s string) bool { return s == "SUCCEEDED" })
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	// fetches at t=0,10,...,60; the check after the t=60 fetch stops the loop.
	if calls != 7 {
		t.Fatalf("fetch calls = %d, want 7", calls)
	}
}

func TestUntilStopsOnFetchError(t *testing.T) {
	boom := errors.New("boom")
	sleeper := &recordingSleeper{}
	cfg := Config{Interval: time.Second, MaxAttempts: 5, Sleep: sleeper.sleep}

	_, err := Until(context.Background(), cfg, func(context.Context) (string, error) {
		return "", boom
	}, isTerminal)
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if sleeper.calls != 0 {
		t.Fatalf("sleep should not be called, got %d", sleeper.calls)
	}
}

func TestUntilStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := Config{Interval: time.Hour, MaxAttempts: 5}

	_, err := Until(ctx, cfg, sequence("processing"), isTerminal)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
