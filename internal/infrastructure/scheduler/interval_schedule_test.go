package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalSchedule_AlignsToSchoolDay(t *testing.T) {
	cst := time.FixedZone("CST", -6*60*60)

	tests := []struct {
		name     string
		interval time.Duration
		at       time.Time
		want     time.Time
	}{
		{
			name:     "mid interval",
			interval: 15 * time.Minute,
			at:       time.Date(2025, 3, 10, 8, 7, 12, 0, cst),
			want:     time.Date(2025, 3, 10, 8, 15, 0, 0, cst),
		},
		{
			name:     "on a boundary moves to the next one",
			interval: 15 * time.Minute,
			at:       time.Date(2025, 3, 10, 8, 15, 0, 0, cst),
			want:     time.Date(2025, 3, 10, 8, 30, 0, 0, cst),
		},
		{
			name:     "crosses midnight",
			interval: time.Hour,
			at:       time.Date(2025, 3, 10, 23, 40, 0, 0, cst),
			want:     time.Date(2025, 3, 11, 0, 0, 0, 0, cst),
		},
		{
			name:     "hours counted from local midnight",
			interval: 5 * time.Hour,
			at:       time.Date(2025, 3, 10, 4, 0, 0, 0, cst),
			want:     time.Date(2025, 3, 10, 5, 0, 0, 0, cst),
		},
		{
			name:     "uneven interval runs from the given time",
			interval: 7 * time.Minute,
			at:       time.Date(2025, 3, 10, 8, 2, 0, 0, cst),
			want:     time.Date(2025, 3, 10, 8, 9, 0, 0, cst),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewIntervalSchedule(tt.interval).Next(tt.at)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestIntervalSchedule_Aligned(t *testing.T) {
	assert.True(t, NewIntervalSchedule(time.Minute).Aligned())
	assert.True(t, NewIntervalSchedule(8*time.Hour).Aligned())
	assert.False(t, NewIntervalSchedule(7*time.Minute).Aligned())
	assert.False(t, NewIntervalSchedule(0).Aligned())
	assert.Equal(t, "@every 15m0s", NewIntervalSchedule(15*time.Minute).String())
}

func TestScheduler_SweepLandsOnLocalBoundary(t *testing.T) {
	cst := time.FixedZone("CST", -6*60*60)
	clock := &fakeClock{now: time.Date(2025, 3, 10, 14, 7, 0, 0, time.UTC)}
	s := New(Config{Now: clock.Now, Timezone: cst})
	require.NoError(t, s.Register(&countingJob{name: "sweep"}, NewIntervalSchedule(30*time.Minute)))

	info, err := s.GetJobInfo("sweep")
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 3, 10, 8, 30, 0, 0, cst).Equal(info.NextRun))
}
