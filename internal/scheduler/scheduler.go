// Package scheduler implements the periodic report dispatcher: a ~4s
// ticker that fires each due schedule exactly once via the store's
// de-duplication set, even across ticker overlap or restart.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcourtman/insightctl/internal/logging"
	"github.com/rcourtman/insightctl/internal/state"
)

const (
	minIntervalMinutes = 5
	maxIntervalMinutes = 1440
	tickInterval        = 4 * time.Second
)

// Callback runs one schedule's report-and-deliver pipeline. Errors are
// logged and swallowed; the tick is still considered consumed and
// lastRunAt/nextRunAt still advance, preserving exactly-once firing.
type Callback func(ctx context.Context, sch state.ReportSchedule, tick time.Time) error

// Scheduler drives Callback against every due schedule in the store.
type Scheduler struct {
	store    *state.Store
	callback Callback
	log      zerolog.Logger
}

// ClampInterval enforces the [5, 1440]-minute bound on a schedule's
// intervalMinutes.
func ClampInterval(minutes int) int {
	if minutes < minIntervalMinutes {
		return minIntervalMinutes
	}
	if minutes > maxIntervalMinutes {
		return maxIntervalMinutes
	}
	return minutes
}

// New builds a scheduler bound to store and invoking callback for each
// consumed tick.
func New(store *state.Store, callback Callback) *Scheduler {
	return &Scheduler{store: store, callback: callback, log: logging.Named("scheduler")}
}

// Run blocks, ticking every ~4 seconds until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.runOnce(ctx, now)
		}
	}
}

// runOnce processes every schedule due at now, exactly once per
// (scheduleId, nextRunAt) pair.
func (s *Scheduler) runOnce(ctx context.Context, now time.Time) {
	for _, sch := range s.store.DueSchedules(now) {
		tick := sch.NextRunAt
		if !s.store.TryConsumeTick(sch.ID, tick) {
			continue
		}

		if err := s.callback(ctx, sch, tick); err != nil {
			s.log.Error().Err(err).Str("scheduleId", sch.ID).Msg("scheduled report callback failed")
		}

		s.store.AdvanceSchedule(sch.ID, tick, now)
	}
}
