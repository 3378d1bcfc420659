package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valores-hub/nominations/internal/domain/cycle"
	"github.com/valores-hub/nominations/internal/domain/nomination"
	"github.com/valores-hub/nominations/internal/domain/recognition"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/subject"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/internal/domain/value"
	"github.com/valores-hub/nominations/internal/infrastructure/persistence/memory"
)

type seeded struct {
	store  *memory.Store
	cycle  *cycle.Cycle
	values map[string]*value.Value
	now    time.Time
}

func seed(t *testing.T) *seeded {
	t.Helper()
	ctx := context.Background()
	s := &seeded{
		store:  memory.NewStore(),
		values: make(map[string]*value.Value),
		now:    time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC),
	}

	require.NoError(t, s.store.WithTx(ctx, func(tx uow.Tx) error {
		c, err := cycle.New("2024-2025", nil, nil)
		require.NoError(t, err)
		require.NoError(t, tx.Cycles().Create(ctx, c))
		require.NoError(t, tx.Cycles().Activate(ctx, c.ID))
		s.cycle = c

		for _, name := range []string{"Respeto", "Colaboración", "Empatía"} {
			v, err := value.New(c.ID, name)
			require.NoError(t, err)
			require.NoError(t, tx.Values().Create(ctx, v))
			s.values[name] = v
		}

		people := []struct {
			id, name string
			kind     subject.Kind
		}{
			{"m", "Maestra M", subject.KindStaff},
			{"n", "Maestro N", subject.KindStaff},
			{"o", "Alumno O", subject.KindStudent},
		}
		for _, p := range people {
			sub, err := subject.New(p.id, c.ID, p.kind, p.name, "")
			require.NoError(t, err)
			require.NoError(t, tx.Subjects().Upsert(ctx, sub))
		}
		return nil
	}))
	return s
}

// add inserts a nomination and recomputes in the same transaction.
func (s *seeded) add(t *testing.T, e *Engine, nominator, nominee, valueName, comment string) (*nomination.Nomination, Outcome) {
	t.Helper()
	ctx := context.Background()
	var (
		n   *nomination.Nomination
		out Outcome
	)
	require.NoError(t, s.store.WithTx(ctx, func(tx uow.Tx) error {
		kind := nomination.KindStudent
		if nominee == "m" || nominee == "n" {
			kind = nomination.KindStaff
		}
		n = nomination.New(s.cycle.ID, "ev-1", nomination.Draft{
			NominatorID: nominator, NomineeID: nominee, ValueID: s.values[valueName].ID, Comment: comment,
		}, kind, s.now)
		if err := tx.Nominations().Create(ctx, n); err != nil {
			return err
		}
		var err error
		out, err = e.Recompute(ctx, tx, s.cycle.ID, nominee, s.now)
		return err
	}))
	return n, out
}

func (s *seeded) recompute(t *testing.T, e *Engine, nominee string, mutate func(tx uow.Tx)) Outcome {
	t.Helper()
	ctx := context.Background()
	var out Outcome
	require.NoError(t, s.store.WithTx(ctx, func(tx uow.Tx) error {
		if mutate != nil {
			mutate(tx)
		}
		var err error
		out, err = e.Recompute(ctx, tx, s.cycle.ID, nominee, s.now)
		return err
	}))
	return out
}

func TestNewEngine_RejectsInvalidRules(t *testing.T) {
	_, err := NewEngine(recognition.Rules{Threshold: 0, ExcellenceName: "Excelencia", Policy: recognition.PolicyFirstN})
	assert.Error(t, err)

	e, err := NewEngine(recognition.DefaultRules())
	require.NoError(t, err)
	assert.True(t, e.IsExcellenceName("  EXCELENCIA "))
	assert.False(t, e.IsExcellenceName("Respeto"))
}

func TestRecompute_GrantCreatesReservedValueAndRecord(t *testing.T) {
	s := seed(t)
	e, err := NewEngine(recognition.DefaultRules())
	require.NoError(t, err)

	s.add(t, e, "m", "o", "Respeto", "a")
	s.add(t, e, "n", "o", "Colaboración", "b")
	_, out := s.add(t, e, "m", "o", "Empatía", "")

	require.Equal(t, recognition.ActionGrant, out.Plan.Action)
	require.NotNil(t, out.Record)
	assert.True(t, out.Record.Derived)
	assert.Equal(t, nomination.KindStudent, out.Record.Kind)
	assert.Equal(t, "Maestra M: Respeto - a; Empatía\nMaestro N: Colaboración - b", out.Record.Comment)
	require.Len(t, out.Events, 1)
	assert.Equal(t, shared.EventExcellenceGranted, out.Events[0].EventType())

	ctx := context.Background()
	require.NoError(t, s.store.WithTx(ctx, func(tx uow.Tx) error {
		v, err := tx.Values().GetByID(ctx, out.Record.ValueID)
		require.NoError(t, err)
		assert.True(t, v.Reserved)
		assert.Equal(t, "Excelencia", v.Name)
		assert.True(t, s.now.Equal(v.CreatedAt), "stamped with the caller's clock")
		assert.True(t, s.now.Equal(out.Record.CreatedAt))

		regular, err := tx.Nominations().ListForNominee(ctx, s.cycle.ID, "o")
		require.NoError(t, err)
		for _, n := range regular {
			assert.True(t, n.Counted, n.ID)
		}
		return nil
	}))

	// nothing changed, nothing written
	again := s.recompute(t, e, "o", nil)
	assert.Equal(t, recognition.ActionNone, again.Plan.Action)
	assert.Empty(t, again.Events)
	assert.Equal(t, out.Record.ID, again.Record.ID)
}

func TestRecompute_ReusesReservedValueAcrossNominees(t *testing.T) {
	s := seed(t)
	rules := recognition.DefaultRules()
	rules.Threshold = 1
	e, err := NewEngine(rules)
	require.NoError(t, err)

	_, first := s.add(t, e, "m", "o", "Respeto", "")
	_, second := s.add(t, e, "m", "n", "Respeto", "")

	require.NotNil(t, first.Record)
	require.NotNil(t, second.Record)
	assert.Equal(t, first.Record.ValueID, second.Record.ValueID)
	assert.Equal(t, nomination.KindStaff, second.Record.Kind)
}

func TestRecompute_RevokeDeletesRecord(t *testing.T) {
	s := seed(t)
	rules := recognition.DefaultRules()
	rules.Threshold = 2
	e, err := NewEngine(rules)
	require.NoError(t, err)

	a, _ := s.add(t, e, "m", "o", "Respeto", "")
	_, granted := s.add(t, e, "n", "o", "Respeto", "")
	require.NotNil(t, granted.Record)

	ctx := context.Background()
	out := s.recompute(t, e, "o", func(tx uow.Tx) {
		require.NoError(t, tx.Nominations().Delete(ctx, a.ID))
	})
	assert.Equal(t, recognition.ActionRevoke, out.Plan.Action)
	assert.Nil(t, out.Record)
	require.Len(t, out.Events, 1)
	assert.Equal(t, shared.EventExcellenceRevoked, out.Events[0].EventType())

	require.NoError(t, s.store.WithTx(ctx, func(tx uow.Tx) error {
		_, err := tx.Nominations().GetDerived(ctx, s.cycle.ID, "o")
		assert.ErrorIs(t, err, shared.ErrNominationNotFound)
		regular, err := tx.Nominations().ListForNominee(ctx, s.cycle.ID, "o")
		require.NoError(t, err)
		require.Len(t, regular, 1)
		assert.False(t, regular[0].Counted)
		return nil
	}))
}

func TestRecompute_UnknownNominatorFallsBackToID(t *testing.T) {
	s := seed(t)
	rules := recognition.DefaultRules()
	rules.Threshold = 1
	e, err := NewEngine(rules)
	require.NoError(t, err)

	_, out := s.add(t, e, "ghost", "o", "Respeto", "hola")
	require.NotNil(t, out.Record)
	assert.Equal(t, "ghost: Respeto - hola", out.Record.Comment)
}
