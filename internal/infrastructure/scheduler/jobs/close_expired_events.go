// Package jobs contains the scheduled jobs of the nominations worker.
package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/valores-hub/nominations/internal/application/command"
	"github.com/valores-hub/nominations/pkg/logger"
)

// EventSweeper closes expired events. Implemented by
// command.CloseExpiredEventsHandler.
type EventSweeper interface {
	Handle(ctx context.Context) (*command.CloseExpiredEventsResult, error)
}

// SweepStats summarizes the last sweep.
type SweepStats struct {
	SweptAt time.Time
	Closed  int
	Total   int64
}

// CloseExpiredEventsJob flips the active flag off on every event whose
// deadline has passed. Admission never depends on this job running: an
// expired event is refused whether or not it has been swept.
type CloseExpiredEventsJob struct {
	sweeper EventSweeper
	log     *logger.Logger
	total   atomic.Int64
	last    atomic.Value // SweepStats
}

// NewCloseExpiredEventsJob creates the job.
func NewCloseExpiredEventsJob(sweeper EventSweeper, log *logger.Logger) *CloseExpiredEventsJob {
	if log == nil {
		log = logger.Nop()
	}
	return &CloseExpiredEventsJob{sweeper: sweeper, log: log.With(logger.Component("close_expired_events"))}
}

func (j *CloseExpiredEventsJob) Name() string { return "close_expired_events" }

func (j *CloseExpiredEventsJob) Description() string {
	return "Deactivates nomination events whose close time has passed"
}

// Run performs one sweep.
func (j *CloseExpiredEventsJob) Run(ctx context.Context) error {
	res, err := j.sweeper.Handle(ctx)
	if err != nil {
		return err
	}
	total := j.total.Add(int64(len(res.ClosedIDs)))
	j.last.Store(SweepStats{SweptAt: res.SweptAt, Closed: len(res.ClosedIDs), Total: total})
	if len(res.ClosedIDs) > 0 {
		j.log.Info("sweep closed events", logger.Int("closed", len(res.ClosedIDs)), logger.Int64("total", total))
	}
	return nil
}

// LastStats returns the stats of the most recent successful sweep.
func (j *CloseExpiredEventsJob) LastStats() (SweepStats, bool) {
	s, ok := j.last.Load().(SweepStats)
	return s, ok
}
