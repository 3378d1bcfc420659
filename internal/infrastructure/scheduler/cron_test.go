package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	base := time.Date(2025, 3, 10, 8, 2, 30, 0, time.UTC)

	s, err := ParseSchedule("30s")
	require.NoError(t, err)
	assert.IsType(t, &IntervalSchedule{}, s)
	assert.Equal(t, base.Add(30*time.Second), s.Next(base))

	s, err = ParseSchedule("*/5 * * * *")
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", s.String())
	assert.Equal(t, time.Date(2025, 3, 10, 8, 5, 0, 0, time.UTC), s.Next(base))

	s, err = ParseSchedule("@hourly")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), s.Next(base))

	_, err = ParseSchedule("-1m")
	assert.Error(t, err)

	_, err = ParseSchedule("every now and then")
	assert.Error(t, err)
}

func TestCronSchedule_UsesLocationOfInput(t *testing.T) {
	loc := time.FixedZone("CST", -6*60*60)
	s := MustParseCron("0 21 * * *")

	next := s.Next(time.Date(2025, 3, 10, 20, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2025, 3, 10, 21, 0, 0, 0, loc), next)
	assert.Equal(t, time.Date(2025, 3, 11, 3, 0, 0, 0, time.UTC), next.UTC())
}

func TestMustParseCron_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParseCron("61 * * * *") })
}
