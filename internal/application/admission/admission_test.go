package admission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valores-hub/nominations/internal/domain/calendar"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/internal/infrastructure/persistence/memory"
)

var now = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func mustEvent(t *testing.T, cycleID, cohort string, closesIn time.Duration, active bool) *calendar.Event {
	t.Helper()
	e, err := calendar.New(cycleID, "evento", shared.Cohort(cohort), now.Add(closesIn), now.Add(closesIn+time.Hour), active)
	require.NoError(t, err)
	return e
}

// withEvents stores events and runs fn against the calendar of one transaction.
func withEvents(t *testing.T, events []*calendar.Event, fn func(repo calendar.Repository)) {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.WithTx(ctx, func(tx uow.Tx) error {
		for _, e := range events {
			if err := tx.Events().Create(ctx, e); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, store.WithTx(ctx, func(tx uow.Tx) error {
		fn(tx.Events())
		return nil
	}))
}

func TestCheckAdmission(t *testing.T) {
	ctx := context.Background()
	expired := mustEvent(t, "c1", "", -time.Minute, true)
	scoped := mustEvent(t, "c1", "3A", 2*time.Hour, true)
	general := mustEvent(t, "c1", "", 3*time.Hour, true)
	disabled := mustEvent(t, "c1", "", time.Hour, false)
	other := mustEvent(t, "c2", "", time.Minute, true)

	withEvents(t, []*calendar.Event{expired, scoped, general, disabled, other}, func(repo calendar.Repository) {
		e, err := CheckAdmission(ctx, repo, "c1", "3A", now)
		require.NoError(t, err)
		assert.Equal(t, scoped.ID, e.ID)

		e, err = CheckAdmission(ctx, repo, "c1", "5B", now)
		require.NoError(t, err)
		assert.Equal(t, general.ID, e.ID)

		_, err = CheckAdmission(ctx, repo, "c1", "3A", general.CloseAt)
		assert.ErrorIs(t, err, shared.ErrNoOpenEvent)

		_, err = CheckAdmission(ctx, repo, "c3", "", now)
		assert.ErrorIs(t, err, shared.ErrNoOpenEvent)

		// reading never closes anything
		got, err := repo.GetByID(ctx, expired.ID)
		require.NoError(t, err)
		assert.True(t, got.Active)
	})
}

func TestAdmit_ExplicitEvent(t *testing.T) {
	ctx := context.Background()
	open := mustEvent(t, "c1", "3A", time.Hour, true)
	closed := mustEvent(t, "c1", "", -time.Hour, true)
	foreign := mustEvent(t, "c2", "", time.Hour, true)

	withEvents(t, []*calendar.Event{open, closed, foreign}, func(repo calendar.Repository) {
		e, err := Admit(ctx, repo, "c1", "3a", open.ID, now)
		require.NoError(t, err)
		assert.Equal(t, open.ID, e.ID)

		_, err = Admit(ctx, repo, "c1", "5B", open.ID, now)
		assert.ErrorIs(t, err, shared.ErrNoOpenEvent)

		_, err = Admit(ctx, repo, "c1", "3A", closed.ID, now)
		assert.ErrorIs(t, err, shared.ErrEventClosed)

		_, err = Admit(ctx, repo, "c1", "3A", foreign.ID, now)
		assert.ErrorIs(t, err, shared.ErrNoOpenEvent)

		_, err = Admit(ctx, repo, "c1", "3A", "missing", now)
		assert.ErrorIs(t, err, shared.ErrNoOpenEvent)

		e, err = Admit(ctx, repo, "c1", "3A", "", now)
		require.NoError(t, err)
		assert.Equal(t, open.ID, e.ID)
	})
}

func TestEnsureOpen(t *testing.T) {
	ctx := context.Background()
	open := mustEvent(t, "c1", "", time.Hour, true)

	withEvents(t, []*calendar.Event{open}, func(repo calendar.Repository) {
		assert.NoError(t, EnsureOpen(ctx, repo, open.ID, now))
		assert.ErrorIs(t, EnsureOpen(ctx, repo, open.ID, open.CloseAt), shared.ErrEventClosed)
		assert.ErrorIs(t, EnsureOpen(ctx, repo, "", now), shared.ErrEventClosed)
		assert.ErrorIs(t, EnsureOpen(ctx, repo, "missing", now), shared.ErrEventClosed)
	})
}
