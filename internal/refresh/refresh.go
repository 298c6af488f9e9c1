// Package refresh runs the periodic agenda refresh on a cron schedule.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "confsched/internal/log"
)

// Job is one refresh run.
type Job func(ctx context.Context) error

// Start schedules job on spec (standard 5-field cron, or descriptors such
// as "@every 10m") in loc and returns once the scheduler runs. Runs never
// overlap; a tick that fires while the previous run is busy is skipped.
// The scheduler stops when ctx is done.
func Start(ctx context.Context, spec string, loc *time.Location, job Job) (*cron.Cron, error) {
	if loc == nil {
		loc = time.Local
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := c.AddFunc(spec, func() {
		started := time.Now()
		if err := job(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err, "spec", spec)
			return
		}
		appLog.Info("scheduled refresh done", "elapsed", time.Since(started).Round(time.Millisecond))
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}

	c.Start()
	appLog.Info("refresh scheduler started", "spec", spec, "tz", loc.String())

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Debug("refresh scheduler stopped")
	}()

	return c, nil
}
