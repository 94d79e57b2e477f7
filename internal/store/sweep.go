// internal/store/sweep.go
//
// Backend selection and the periodic expiry sweep.
//   - Open maps STORE_DRIVER to a backend.
//   - StartSweeper schedules Sweeper.Sweep on a gocron DurationJob.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

// Open builds the backend named by driver ("memory", "redis" or "sqlite").
func Open(ctx context.Context, driver, redisURL, sqlitePath string, opts Options) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(opts), nil
	case "redis":
		return OpenRedis(ctx, redisURL, opts)
	case "sqlite":
		return OpenSQLite(sqlitePath, opts)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// StartSweeper runs sw.Sweep every interval until the returned stop function is
// called. Backends without their own expiry (memory, sqlite) need this to keep
// abandoned games from accumulating.
func StartSweeper(sw Sweeper, interval time.Duration) (stop func() error, err error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			n, err := sw.Sweep(ctx)
			if err != nil {
				log.Error().Err(err).Msg("sweep expired games")
				return
			}
			if n > 0 {
				log.Info().Int("deleted", n).Msg("swept expired games")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	sched.Start()
	return sched.Shutdown, nil
}
