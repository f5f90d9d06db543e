package ratelimit

import (
	"context"
	"time"

	"aidispatch/internal/infra"
)

// Purger removes expired windows from stores without native expiry.
type Purger interface {
	Purge(ctx context.Context, now time.Time) (int64, error)
}

// RunPurge calls p.Purge every interval until ctx is done.
func RunPurge(ctx context.Context, p Purger, interval time.Duration, logger infra.Logger) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := p.Purge(ctx, now)
			if err != nil {
				logger.Error().Err(err).Msg("ratelimit: purge failed")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("rows", n).Msg("ratelimit: purged expired windows")
			}
		}
	}
}
