// Package ratelimit enforces the hourly per-user operation quota. Windows are
// aligned to the hour and stored through a pluggable Store.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"aidispatch/internal/domain"
	"aidispatch/internal/infra"
)

const (
	// WindowSeconds is the length of one quota window.
	WindowSeconds = 3600
	// DefaultCeiling is the number of operations allowed per window.
	DefaultCeiling = 10
	// retention keeps a window readable for one extra hour past its start.
	retention = 2 * WindowSeconds
)

// ErrWindowExists is returned by Store.Create when the window row is already
// present.
var ErrWindowExists = errors.New("ratelimit: window already exists")

// DefaultAdminIDs are exempt from the quota.
var DefaultAdminIDs = []string{"admin", "test-user"}

// Window is one (user, hour) counter.
type Window struct {
	UserID      string
	WindowStart int64
	Operations  int
	TTL         int64
}

// Store persists windows. Get returns nil, nil when the window is absent or
// expired.
type Store interface {
	Get(ctx context.Context, userID string, windowStart int64) (*Window, error)
	Increment(ctx context.Context, userID string, windowStart, ttl int64) error
	Create(ctx context.Context, userID string, windowStart, ttl int64) error
}

// Resetter is implemented by stores that can drop a window.
type Resetter interface {
	Delete(ctx context.Context, userID string, windowStart int64) error
}

// WindowStart aligns a unix timestamp to the start of its hour.
func WindowStart(now int64) int64 {
	return now - now%WindowSeconds
}

// RetryAfter is the number of seconds until the next window opens.
func RetryAfter(now int64) int {
	return int(WindowSeconds - now%WindowSeconds)
}

// Options configures a Limiter.
type Options struct {
	Store    Store
	Ceiling  int
	AdminIDs []string
	// Policy decides whether store failures let the operation through.
	Policy domain.FailurePolicy
	Logger *infra.Logger
	Now    func() time.Time
}

// Limiter checks and counts operations against the hourly ceiling.
type Limiter struct {
	store    Store
	ceiling  int
	adminIDs []string
	policy   domain.FailurePolicy
	logger   *infra.Logger
	now      func() time.Time
}

func NewLimiter(opts Options) (*Limiter, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("ratelimit: store is required")
	}
	ceiling := opts.Ceiling
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	admins := opts.AdminIDs
	if admins == nil {
		admins = DefaultAdminIDs
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		store:    opts.Store,
		ceiling:  ceiling,
		adminIDs: slices.Clone(admins),
		policy:   opts.Policy,
		logger:   logger,
		now:      now,
	}, nil
}

// Ceiling reports the configured operations per window.
func (l *Limiter) Ceiling() int { return l.ceiling }

// IsAdmin reports whether userID bypasses the quota.
func (l *Limiter) IsAdmin(userID string) bool {
	return slices.Contains(l.adminIDs, userID)
}

// Check admits one operation for userID and counts it. It returns a
// *domain.RateLimitError once the window is full. Store failures are logged
// and then resolved by the failure policy.
func (l *Limiter) Check(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.InvalidInputf("identity is required for rate limiting")
	}
	if l.IsAdmin(userID) {
		l.logger.Info().Str("identity_id", userID).Msg("ratelimit: admin override, skipping quota")
		return nil
	}

	now := l.now().Unix()
	windowStart := WindowStart(now)
	ttl := now + retention

	window, err := l.store.Get(ctx, userID, windowStart)
	if err != nil {
		l.logger.Error().Err(err).
			Str("identity_id", userID).
			Int64("window_start", windowStart).
			Str("policy", l.policy.String()).
			Msg("ratelimit: read window failed")
		if err := l.policy.Apply(err); err != nil {
			return fmt.Errorf("ratelimit: read window: %w", err)
		}
		window = nil
	}

	if window != nil && window.Operations >= l.ceiling {
		retryAfter := RetryAfter(now)
		l.logger.Info().
			Str("identity_id", userID).
			Int("operations", window.Operations).
			Int("retry_after", retryAfter).
			Msg("ratelimit: quota exhausted")
		return &domain.RateLimitError{RetryAfter: retryAfter, Limit: l.ceiling}
	}

	if err := l.store.Increment(ctx, userID, windowStart, ttl); err != nil {
		l.logger.Warn().Err(err).
			Str("identity_id", userID).
			Int64("window_start", windowStart).
			Msg("ratelimit: increment failed, creating window")
		if err := l.store.Create(ctx, userID, windowStart, ttl); err != nil {
			if errors.Is(err, ErrWindowExists) {
				// a concurrent request created the window; its count stands
				return nil
			}
			l.logger.Error().Err(err).
				Str("identity_id", userID).
				Int64("window_start", windowStart).
				Str("policy", l.policy.String()).
				Msg("ratelimit: create window failed")
			if err := l.policy.Apply(err); err != nil {
				return fmt.Errorf("ratelimit: record operation: %w", err)
			}
		}
	}
	return nil
}

// Status returns the current window for userID, or a zero-count window.
func (l *Limiter) Status(ctx context.Context, userID string) (Window, error) {
	now := l.now().Unix()
	windowStart := WindowStart(now)
	window, err := l.store.Get(ctx, userID, windowStart)
	if err != nil {
		return Window{}, fmt.Errorf("ratelimit: read window: %w", err)
	}
	if window == nil {
		return Window{UserID: userID, WindowStart: windowStart}, nil
	}
	return *window, nil
}

// Reset drops the current window for userID.
func (l *Limiter) Reset(ctx context.Context, userID string) error {
	resetter, ok := l.store.(Resetter)
	if !ok {
		return fmt.Errorf("ratelimit: store does not support reset")
	}
	return resetter.Delete(ctx, userID, WindowStart(l.now().Unix()))
}
