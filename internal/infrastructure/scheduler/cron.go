package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CronSchedule runs a job on a standard 5-field cron expression, or one of
// the descriptors such as "@hourly" and "@every 1m".
// Examples:
//   - "*/5 * * * *"  - every 5 minutes
//   - "0 21 * * *"   - every day at 21:00
type CronSchedule struct {
	raw   string
	inner cron.Schedule
}

// ParseCron parses a cron expression. Times are evaluated in the location
// of the time passed to Next.
func ParseCron(expr string) (*CronSchedule, error) {
	inner, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return &CronSchedule{raw: expr, inner: inner}, nil
}

// MustParseCron is ParseCron that panics on error.
func MustParseCron(expr string) *CronSchedule {
	s, err := ParseCron(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// Next returns the next activation strictly after t.
func (s *CronSchedule) Next(t time.Time) time.Time {
	return s.inner.Next(t)
}

// String returns the original expression.
func (s *CronSchedule) String() string {
	return s.raw
}

// ParseSchedule accepts either a Go duration ("30s") or a cron expression.
func ParseSchedule(spec string) (Schedule, error) {
	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("schedule interval must be positive: %s", spec)
		}
		return NewIntervalSchedule(d), nil
	}
	return ParseCron(spec)
}
