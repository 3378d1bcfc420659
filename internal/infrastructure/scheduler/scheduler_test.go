package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valores-hub/nominations/internal/infrastructure/metrics"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
		}
	}
	return j.err
}

type panickingJob struct{}

func (panickingJob) Name() string              { return "panics" }
func (panickingJob) Description() string       { return "" }
func (panickingJob) Run(context.Context) error { panic("boom") }

func newTestScheduler(clock *fakeClock, m *metrics.Recorder) *Scheduler {
	return New(Config{Now: clock.Now, Metrics: m, Tick: 10 * time.Millisecond})
}

func TestRegister(t *testing.T) {
	s := newTestScheduler(&fakeClock{now: time.Now()}, nil)
	job := &countingJob{name: "sweep"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "x"}, nil), ErrNilSchedule)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, "@every 1m0s", infos[0].Schedule)
	assert.True(t, infos[0].Enabled)
}

func TestRunDue_RespectsSchedule(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	m := metrics.New()
	s := newTestScheduler(clock, m)
	job := &countingJob{name: "sweep"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))

	assert.Empty(t, s.RunDue(context.Background()))

	clock.Advance(time.Minute)
	assert.Equal(t, []string{"sweep"}, s.RunDue(context.Background()))
	require.Eventually(t, func() bool { return len(s.History(0)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())

	info, err := s.GetJobInfo("sweep")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.RunCount)
	assert.Equal(t, clock.Now().Add(time.Minute), info.NextRun)

	series, err := testutil.GatherAndCount(m.Registry(), "valores_scheduler_job_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series)
}

func TestRunDue_SkipsDisabledAndInFlight(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	s := newTestScheduler(clock, nil)
	block := make(chan struct{})
	slow := &countingJob{name: "slow", block: block}
	off := &countingJob{name: "off"}
	require.NoError(t, s.Register(slow, NewIntervalSchedule(time.Second)))
	require.NoError(t, s.Register(off, NewIntervalSchedule(time.Second)))
	require.NoError(t, s.SetEnabled("off", false))

	clock.Advance(time.Second)
	assert.Equal(t, []string{"slow"}, s.RunDue(context.Background()))
	require.Eventually(t, func() bool { return slow.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	clock.Advance(time.Second)
	assert.Empty(t, s.RunDue(context.Background()), "a job never overlaps with itself")

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrJobRunning)

	close(block)
	require.Eventually(t, func() bool { return len(s.History(0)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, off.runs.Load())
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler(&fakeClock{now: time.Now()}, nil)
	failing := &countingJob{name: "failing", err: errors.New("db down")}
	require.NoError(t, s.Register(failing, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(panickingJob{}, NewIntervalSchedule(time.Hour)))

	res, err := s.RunNow(context.Background(), "failing")
	assert.EqualError(t, err, "db down")
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.True(t, res.Manual)

	res, err = s.RunNow(context.Background(), "panics")
	assert.ErrorIs(t, err, ErrJobPanicked)
	assert.False(t, res.Success)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	info, err := s.GetJobInfo("failing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.FailCount)
	require.NotNil(t, info.LastResult)
	assert.Len(t, s.History(1), 1)
}

func TestOnJobComplete_SkipsManualRuns(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	s := newTestScheduler(clock, nil)
	require.NoError(t, s.Register(&countingJob{name: "sweep"}, NewIntervalSchedule(time.Second)))

	var hooked atomic.Int32
	s.OnJobComplete(func(JobResult) { hooked.Add(1) })

	_, err := s.RunNow(context.Background(), "sweep")
	require.NoError(t, err)
	assert.Zero(t, hooked.Load())

	clock.Advance(time.Second)
	s.RunDue(context.Background())
	require.Eventually(t, func() bool { return hooked.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestStartStop(t *testing.T) {
	s := New(Config{Tick: 5 * time.Millisecond})
	job := &countingJob{name: "sweep"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Millisecond)))

	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.Eventually(t, func() bool { return job.runs.Load() > 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func TestHistoryIsBounded(t *testing.T) {
	s := New(Config{MaxHistorySize: 2})
	require.NoError(t, s.Register(&countingJob{name: "sweep"}, NewIntervalSchedule(time.Hour)))
	for i := 0; i < 5; i++ {
		_, err := s.RunNow(context.Background(), "sweep")
		require.NoError(t, err)
	}
	assert.Len(t, s.History(0), 2)
}
