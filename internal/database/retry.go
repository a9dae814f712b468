package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	pingAttempts   = 5
	pingBackoffMin = 500 * time.Millisecond
)

// pingWithRetry pings a backend until it answers, doubling the wait between
// attempts. Containers started together rarely come up in order.
func pingWithRetry(ctx context.Context, log zerolog.Logger, backend string, ping func(context.Context) error) error {
	wait := pingBackoffMin
	var err error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		if err = ping(ctx); err == nil {
			return nil
		}
		if attempt == pingAttempts {
			break
		}

		log.Warn().Err(err).
			Str("backend", backend).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("Backend not ready")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return fmt.Errorf("ping %s: %w", backend, err)
}
