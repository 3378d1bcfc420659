package scheduler

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// IntervalSchedule runs a job every Interval. When the interval divides a
// day evenly, runs land on multiples of it counted from local midnight, so
// "@every 15m" sweeps at :00, :15, :30 and :45 of school time no matter when
// the process started.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Aligned reports whether runs snap to day-relative boundaries.
func (s *IntervalSchedule) Aligned() bool {
	return s.Interval > 0 && day%s.Interval == 0
}

// Next returns the first run strictly after t, in t's location.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	if !s.Aligned() {
		return t.Add(s.Interval)
	}
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	elapsed := t.Sub(midnight)
	return midnight.Add((elapsed/s.Interval + 1) * s.Interval)
}

// String returns the descriptor form used by cron.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval)
}
