package server

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper removes rows that have passed their expiry.
type Sweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// RunJanitor sweeps every named sweeper once per interval until ctx is
// done. Expired rows are already ignored on read, so a failed sweep is
// only logged.
func RunJanitor(ctx context.Context, interval time.Duration, sweepers map[string]Sweeper) {
	if interval <= 0 || len(sweepers) == 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, sweepers)
		}
	}
}

func sweep(ctx context.Context, sweepers map[string]Sweeper) {
	for name, sw := range sweepers {
		n, err := sw.DeleteExpired(ctx)
		if err != nil {
			log.Error().Err(err).Str("sweeper", name).Msg("janitor sweep failed")
			continue
		}
		if n > 0 {
			log.Debug().Str("sweeper", name).Int64("deleted", n).Msg("janitor sweep")
		}
	}
}
