package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valores-hub/nominations/internal/domain/nomination"
	"github.com/valores-hub/nominations/internal/domain/recognition"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/uow"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROMOTION
// ══════════════════════════════════════════════════════════════════════════════

func TestCreateNomination_GrantsExcellenceAtThreshold(t *testing.T) {
	f := newFixture(t)

	first := f.mustNominate(staffM, "student-o", "Respeto", "ayuda a todos")
	assert.Equal(t, f.event.ID, first.Event.ID)
	assert.Equal(t, recognition.ActionNone, first.Tier.Plan.Action)
	assert.False(t, first.Nomination.Counted)

	second := f.mustNominate(staffN, "student-o", "Colaboración", "trabaja en equipo")
	assert.Equal(t, recognition.ActionNone, second.Tier.Plan.Action)
	assert.Nil(t, f.derived("student-o"))

	third := f.mustNominate(staffM, "student-o", "Empatía", "escucha")
	require.Equal(t, recognition.ActionGrant, third.Tier.Plan.Action)
	require.NotNil(t, third.Tier.Record)
	assert.True(t, third.Nomination.Counted)

	record := f.derived("student-o")
	require.NotNil(t, record)
	assert.Equal(t, third.Tier.Record.ID, record.ID)
	assert.Equal(t, nomination.KindStudent, record.Kind)
	assert.Empty(t, record.NominatorID)
	assert.Nil(t, record.EventID)
	assert.Equal(t,
		"Maestra M: Respeto - ayuda a todos; Empatía - escucha\nMaestro N: Colaboración - trabaja en equipo",
		record.Comment)
	assert.ElementsMatch(t,
		[]string{first.Nomination.ID, second.Nomination.ID, third.Nomination.ID},
		f.counted("student-o"))

	assert.Equal(t, []shared.EventType{
		shared.EventCycleActivated,
		shared.EventNominationCreated,
		shared.EventNominationCreated,
		shared.EventNominationCreated,
		shared.EventExcellenceGranted,
	}, f.bus.types())

	series, err := testutil.GatherAndCount(f.metrics.Registry(), "valores_recognition_tier_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series)
}

func TestCreateNomination_ReservedValueIsCreatedOnce(t *testing.T) {
	f := newFixture(t)
	for _, v := range []string{"Respeto", "Colaboración", "Empatía"} {
		f.mustNominate(staffM, "student-o", v, "")
		f.mustNominate(staffN, "student-p", v, "")
	}

	o, p := f.derived("student-o"), f.derived("student-p")
	require.NotNil(t, o)
	require.NotNil(t, p)
	assert.Equal(t, o.ValueID, p.ValueID)
	assert.NotContains(t, f.values, "Excelencia")

	_, err := f.create.Handle(f.ctx, CreateNominationCommand{
		Actor: staffM, CycleID: f.cycle.ID, NominatorID: "staff-m", NomineeID: "student-p", ValueID: o.ValueID,
	})
	assert.Equal(t, "value_inactive", shared.Reason(err))
}

func TestCreateNomination_FirstNFreezesContributors(t *testing.T) {
	f := newFixture(t)
	f.mustNominate(staffM, "student-o", "Respeto", "a")
	f.mustNominate(staffN, "student-o", "Respeto", "b")
	f.mustNominate(staffM, "student-o", "Colaboración", "c")
	before := f.derived("student-o")
	require.NotNil(t, before)

	fourth := f.mustNominate(staffN, "student-o", "Empatía", "d")
	assert.Equal(t, recognition.ActionNone, fourth.Tier.Plan.Action)
	assert.False(t, fourth.Nomination.Counted)

	after := f.derived("student-o")
	assert.Equal(t, before.Comment, after.Comment)
	assert.Len(t, f.counted("student-o"), 3)
}

func TestCreateNomination_PolicyAllRefreshes(t *testing.T) {
	rules := recognition.DefaultRules()
	rules.Policy = recognition.PolicyAll
	f := newFixture(t, withRules(rules))

	f.mustNominate(staffM, "student-o", "Respeto", "a")
	f.mustNominate(staffN, "student-o", "Respeto", "b")
	f.mustNominate(staffM, "student-o", "Colaboración", "c")

	fourth := f.mustNominate(staffN, "student-o", "Empatía", "d")
	assert.Equal(t, recognition.ActionRefresh, fourth.Tier.Plan.Action)
	assert.True(t, fourth.Nomination.Counted)
	assert.Contains(t, f.derived("student-o").Comment, "Empatía - d")
	assert.Len(t, f.counted("student-o"), 4)
}

func TestCreateNomination_StaffNomineeGetsStaffRecord(t *testing.T) {
	rules := recognition.DefaultRules()
	rules.Threshold = 1
	f := newFixture(t, withRules(rules))

	res := f.mustNominate(staffM, "staff-n", "Respeto", "")
	require.Equal(t, recognition.ActionGrant, res.Tier.Plan.Action)
	assert.Equal(t, nomination.KindStaff, res.Nomination.Kind)
	assert.Equal(t, nomination.KindStaff, f.derived("staff-n").Kind)
}

// ══════════════════════════════════════════════════════════════════════════════
// REJECTIONS
// ══════════════════════════════════════════════════════════════════════════════

func TestCreateNomination_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.mustNominate(staffM, "student-o", "Respeto", "")

	_, err := f.nominate(staffM, "student-o", "Respeto", "otra vez")
	assert.ErrorIs(t, err, shared.ErrDuplicateNomination)

	// a different value or a different nominator is not a duplicate
	f.mustNominate(staffM, "student-o", "Empatía", "")
	f.mustNominate(staffN, "student-o", "Respeto", "")
}

func TestCreateNomination_ConcurrentDuplicatesAdmitOne(t *testing.T) {
	f := newFixture(t)

	const writers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, dups int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.nominate(staffM, "student-o", "Respeto", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, shared.ErrDuplicateNomination):
				dups++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, writers-1, dups)
	assert.Len(t, f.ledger(), 1)
}

func TestCreateNomination_ClosesAtCloseInstant(t *testing.T) {
	f := newFixture(t)

	f.clock.Set(f.event.CloseAt.Add(-time.Second))
	f.mustNominate(staffM, "student-o", "Respeto", "")

	f.clock.Set(f.event.CloseAt)
	_, err := f.nominate(staffM, "student-p", "Respeto", "")
	assert.ErrorIs(t, err, shared.ErrNoOpenEvent)

	_, err = f.create.Handle(f.ctx, CreateNominationCommand{
		Actor: staffM, CycleID: f.cycle.ID, NominatorID: "staff-m", NomineeID: "student-p",
		ValueID: f.values["Respeto"], EventID: f.event.ID,
	})
	assert.ErrorIs(t, err, shared.ErrEventClosed)
}

func TestCreateNomination_PicksEarliestEventForCohort(t *testing.T) {
	f := newFixture(t)
	scoped := f.openEvent("Bloque 3A", "3A", 30*time.Minute)
	f.openEvent("Otra cohorte", "5B", 10*time.Minute)

	res := f.mustNominate(staffM, "student-o", "Respeto", "")
	// the scoped event occurs before the fixture's unscoped one
	assert.Equal(t, scoped.ID, res.Event.ID)

	res = f.mustNominate(staffM, "staff-n", "Respeto", "")
	assert.Equal(t, f.event.ID, res.Event.ID, "staff have no cohort, only unscoped events admit them")
}

func TestCreateNomination_ExplicitEventMustAdmitCohort(t *testing.T) {
	f := newFixture(t)
	other := f.openEvent("Otra cohorte", "5B", time.Hour)

	_, err := f.create.Handle(f.ctx, CreateNominationCommand{
		Actor: staffM, CycleID: f.cycle.ID, NominatorID: "staff-m", NomineeID: "student-o",
		ValueID: f.values["Respeto"], EventID: other.ID,
	})
	assert.ErrorIs(t, err, shared.ErrNoOpenEvent)
}

func TestCreateNomination_Rejections(t *testing.T) {
	f := newFixture(t)

	inactive, err := f.newCycle.Handle(f.ctx, CreateCycleCommand{Actor: admin, Name: "2025-2026"})
	require.NoError(t, err)

	_, err = f.upsertSubs.Handle(f.ctx, UpsertSubjectsCommand{
		Actor:   admin,
		CycleID: f.cycle.ID,
		Subjects: []SubjectInput{
			{ID: "staff-gone", Kind: "staff", DisplayName: "Ex maestro", Inactive: true},
			{ID: "student-gone", Kind: "student", DisplayName: "Ex alumno", Cohort: "3A", Inactive: true},
		},
	})
	require.NoError(t, err)

	_, err = f.toggleVal.Handle(f.ctx, SetValueActiveCommand{Actor: admin, ValueID: f.values["Empatía"], Active: false})
	require.NoError(t, err)

	tests := []struct {
		name string
		cmd  CreateNominationCommand
		want string
	}{
		{
			name: "cycle not active",
			cmd:  CreateNominationCommand{CycleID: inactive.ID, NominatorID: "staff-m", NomineeID: "student-o", ValueID: f.values["Respeto"]},
			want: "cycle_not_active",
		},
		{
			name: "no cycle resolved",
			cmd:  CreateNominationCommand{NominatorID: "staff-m", NomineeID: "student-o", ValueID: f.values["Respeto"]},
			want: "cycle_not_active",
		},
		{
			name: "unknown nominee",
			cmd:  CreateNominationCommand{CycleID: f.cycle.ID, NominatorID: "staff-m", NomineeID: "ghost", ValueID: f.values["Respeto"]},
			want: "subject_not_found",
		},
		{
			name: "student nominator",
			cmd:  CreateNominationCommand{Actor: admin, CycleID: f.cycle.ID, NominatorID: "student-p", NomineeID: "student-o", ValueID: f.values["Respeto"]},
			want: "subject_not_found",
		},
		{
			name: "inactive staff nominating staff",
			cmd:  CreateNominationCommand{Actor: admin, CycleID: f.cycle.ID, NominatorID: "staff-gone", NomineeID: "staff-m", ValueID: f.values["Respeto"]},
			want: "subject_inactive",
		},
		{
			name: "inactive value",
			cmd:  CreateNominationCommand{CycleID: f.cycle.ID, NominatorID: "staff-m", NomineeID: "student-o", ValueID: f.values["Empatía"]},
			want: "value_inactive",
		},
		{
			name: "unknown value",
			cmd:  CreateNominationCommand{CycleID: f.cycle.ID, NominatorID: "staff-m", NomineeID: "student-o", ValueID: "nope"},
			want: "value_inactive",
		},
		{
			name: "self nomination",
			cmd:  CreateNominationCommand{CycleID: f.cycle.ID, NominatorID: "staff-m", NomineeID: "staff-m", ValueID: f.values["Respeto"]},
			want: "self_nomination",
		},
		{
			name: "acting for someone else",
			cmd:  CreateNominationCommand{CycleID: f.cycle.ID, NominatorID: "staff-n", NomineeID: "student-o", ValueID: f.values["Respeto"]},
			want: "not_authorized",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.cmd
			if cmd.Actor == (shared.Actor{}) {
				cmd.Actor = staffM
			}
			_, err := f.create.Handle(f.ctx, cmd)
			require.Error(t, err)
			assert.Equal(t, tt.want, shared.Reason(err), err.Error())
		})
	}
	assert.Empty(t, f.ledger())
}

func TestCreateNomination_InactiveStaffMayStillNominateStudents(t *testing.T) {
	f := newFixture(t)
	_, err := f.upsertSubs.Handle(f.ctx, UpsertSubjectsCommand{
		Actor:    admin,
		CycleID:  f.cycle.ID,
		Subjects: []SubjectInput{{ID: "staff-m", Kind: "staff", DisplayName: "Maestra M", Inactive: true}},
	})
	require.NoError(t, err)

	f.mustNominate(staffM, "student-o", "Respeto", "")
}

func TestCreateNomination_ValidationFailures(t *testing.T) {
	f := newFixture(t)
	long := make([]byte, nomination.MaxCommentLength+1)
	for i := range long {
		long[i] = 'a'
	}

	_, err := f.nominate(staffM, "student-o", "Respeto", string(long))
	assert.True(t, shared.IsValidation(err))

	_, err = f.create.Handle(f.ctx, CreateNominationCommand{Actor: staffM, CycleID: f.cycle.ID, NominatorID: "staff-m"})
	assert.True(t, shared.IsValidation(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// EDIT AND DELETE
// ══════════════════════════════════════════════════════════════════════════════

func TestCreateNominations_SeveralValuesInOneTransaction(t *testing.T) {
	f := newFixture(t)
	f.mustNominate(staffN, "student-o", "Respeto", "ayuda a todos")

	res, err := f.bulk.Handle(f.ctx, CreateNominationsCommand{
		Actor:       staffM,
		CycleID:     f.cycle.ID,
		NominatorID: "staff-m",
		NomineeID:   "student-o",
		ValueIDs:    []string{f.values["Empatía"], f.values["Colaboración"]},
		Comment:     "  siempre dispuesto  ",
	})
	require.NoError(t, err)
	require.Len(t, res.Nominations, 2)
	assert.Equal(t, f.values["Empatía"], res.Nominations[0].ValueID)
	assert.Equal(t, "siempre dispuesto", res.Nominations[1].Comment)
	assert.Equal(t, f.event.ID, res.Event.ID)

	// the tier is recomputed once, after both rows exist
	require.Equal(t, recognition.ActionGrant, res.Tier.Plan.Action)
	assert.True(t, res.Nominations[0].Counted)
	assert.True(t, res.Nominations[1].Counted)
	assert.Len(t, f.counted("student-o"), 3)
	assert.Equal(t, []shared.EventType{
		shared.EventCycleActivated,
		shared.EventNominationCreated,
		shared.EventNominationCreated,
		shared.EventNominationCreated,
		shared.EventExcellenceGranted,
	}, f.bus.types())
}

func TestCreateNominations_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.mustNominate(staffM, "student-o", "Respeto", "")
	_, err := f.toggleVal.Handle(f.ctx, SetValueActiveCommand{Actor: admin, ValueID: f.values["Responsabilidad"], Active: false})
	require.NoError(t, err)

	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{name: "one value already nominated", values: []string{"Empatía", "Respeto"}, want: "duplicate_nomination"},
		{name: "one value inactive", values: []string{"Empatía", "Responsabilidad"}, want: "value_inactive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := make([]string, 0, len(tt.values))
			for _, v := range tt.values {
				ids = append(ids, f.values[v])
			}
			_, err := f.bulk.Handle(f.ctx, CreateNominationsCommand{
				Actor: staffM, CycleID: f.cycle.ID, NominatorID: "staff-m", NomineeID: "student-o", ValueIDs: ids,
			})
			require.Error(t, err)
			assert.Equal(t, tt.want, shared.Reason(err), err.Error())
			assert.Len(t, f.ledger(), 1)
		})
	}

	_, err = f.bulk.Handle(f.ctx, CreateNominationsCommand{
		Actor: staffM, CycleID: f.cycle.ID, NominatorID: "staff-m", NomineeID: "student-o",
		ValueIDs: []string{f.values["Empatía"], f.values["Empatía"]},
	})
	assert.True(t, shared.IsValidation(err))

	_, err = f.bulk.Handle(f.ctx, CreateNominationsCommand{
		Actor: staffM, CycleID: f.cycle.ID, NominatorID: "staff-m", NomineeID: "student-o",
	})
	assert.True(t, shared.IsValidation(err))
}

func TestDeleteNomination_RevokesExcellence(t *testing.T) {
	f := newFixture(t)
	a := f.mustNominate(staffM, "student-o", "Respeto", "a")
	f.mustNominate(staffN, "student-o", "Respeto", "b")
	f.mustNominate(staffM, "student-o", "Colaboración", "c")
	require.NotNil(t, f.derived("student-o"))

	res, err := f.del.Handle(f.ctx, DeleteNominationCommand{Actor: staffM, CycleID: f.cycle.ID, NominationID: a.Nomination.ID})
	require.NoError(t, err)
	assert.Equal(t, recognition.ActionRevoke, res.Tier.Plan.Action)
	assert.Nil(t, res.Tier.Record)

	assert.Nil(t, f.derived("student-o"))
	assert.Empty(t, f.counted("student-o"))
	assert.Len(t, f.ledger(), 2)
	assert.Contains(t, f.bus.types(), shared.EventExcellenceRevoked)
}

func TestDeleteNomination_PromotesNextUnderFirstN(t *testing.T) {
	f := newFixture(t)
	a := f.mustNominate(staffM, "student-o", "Respeto", "a")
	f.mustNominate(staffN, "student-o", "Respeto", "b")
	f.mustNominate(staffM, "student-o", "Colaboración", "c")
	d := f.mustNominate(staffN, "student-o", "Empatía", "d")

	res, err := f.del.Handle(f.ctx, DeleteNominationCommand{Actor: staffM, CycleID: f.cycle.ID, NominationID: a.Nomination.ID})
	require.NoError(t, err)
	assert.Equal(t, recognition.ActionRefresh, res.Tier.Plan.Action)
	assert.Contains(t, f.counted("student-o"), d.Nomination.ID)
	assert.NotContains(t, f.derived("student-o").Comment, "Respeto - a")
}

func TestDeleteNomination_Authorization(t *testing.T) {
	f := newFixture(t)
	a := f.mustNominate(staffM, "student-o", "Respeto", "a")

	_, err := f.del.Handle(f.ctx, DeleteNominationCommand{Actor: staffN, CycleID: f.cycle.ID, NominationID: a.Nomination.ID})
	assert.ErrorIs(t, err, shared.ErrNotAuthorized)

	f.clock.Set(f.event.CloseAt)
	_, err = f.del.Handle(f.ctx, DeleteNominationCommand{Actor: staffM, CycleID: f.cycle.ID, NominationID: a.Nomination.ID})
	assert.ErrorIs(t, err, shared.ErrEventClosed)

	_, err = f.del.Handle(f.ctx, DeleteNominationCommand{Actor: admin, CycleID: f.cycle.ID, NominationID: a.Nomination.ID})
	assert.NoError(t, err)
	assert.Empty(t, f.ledger())
}

func TestEditNomination_RefreshesExcellenceComment(t *testing.T) {
	f := newFixture(t)
	f.mustNominate(staffM, "student-o", "Respeto", "a")
	b := f.mustNominate(staffN, "student-o", "Respeto", "b")
	f.mustNominate(staffM, "student-o", "Colaboración", "c")

	res, err := f.edit.Handle(f.ctx, EditNominationCommand{
		Actor: staffN, CycleID: f.cycle.ID, NominationID: b.Nomination.ID,
		ValueID: f.values["Empatía"], Comment: "muy empático",
	})
	require.NoError(t, err)
	assert.Equal(t, recognition.ActionRefresh, res.Tier.Plan.Action)
	assert.True(t, res.Nomination.Counted)
	assert.Contains(t, f.derived("student-o").Comment, "Maestro N: Empatía - muy empático")
	assert.Contains(t, f.bus.types(), shared.EventExcellenceRefreshed)
}

func TestEditNomination_Rejections(t *testing.T) {
	f := newFixture(t)
	a := f.mustNominate(staffM, "student-o", "Respeto", "a")
	f.mustNominate(staffM, "student-o", "Empatía", "b")

	_, err := f.edit.Handle(f.ctx, EditNominationCommand{
		Actor: staffM, CycleID: f.cycle.ID, NominationID: a.Nomination.ID, ValueID: f.values["Empatía"],
	})
	assert.ErrorIs(t, err, shared.ErrDuplicateNomination)

	_, err = f.edit.Handle(f.ctx, EditNominationCommand{
		Actor: staffN, CycleID: f.cycle.ID, NominationID: a.Nomination.ID, ValueID: f.values["Colaboración"],
	})
	assert.ErrorIs(t, err, shared.ErrNotAuthorized)

	_, err = f.edit.Handle(f.ctx, EditNominationCommand{
		Actor: staffM, CycleID: f.cycle.ID, NominationID: "missing", ValueID: f.values["Colaboración"],
	})
	assert.True(t, shared.IsNotFound(err))

	f.clock.Set(f.event.CloseAt.Add(time.Minute))
	_, err = f.edit.Handle(f.ctx, EditNominationCommand{
		Actor: staffM, CycleID: f.cycle.ID, NominationID: a.Nomination.ID, ValueID: f.values["Colaboración"],
	})
	assert.ErrorIs(t, err, shared.ErrEventClosed)
}

func TestEditNomination_SubjectRosteredInLaterCycle(t *testing.T) {
	f := newFixture(t)
	a := f.mustNominate(staffM, "student-o", "Respeto", "a")

	next, err := f.newCycle.Handle(f.ctx, CreateCycleCommand{Actor: admin, Name: "2025-2026"})
	require.NoError(t, err)
	_, err = f.upsertSubs.Handle(f.ctx, UpsertSubjectsCommand{
		Actor:    admin,
		CycleID:  next.ID,
		Subjects: []SubjectInput{{ID: "student-o", Kind: "student", DisplayName: "Alumno O", Cohort: "5A"}},
	})
	require.NoError(t, err)

	res, err := f.edit.Handle(f.ctx, EditNominationCommand{
		Actor: staffM, CycleID: f.cycle.ID, NominationID: a.Nomination.ID,
		ValueID: f.values["Colaboración"], Comment: "sigue en este ciclo",
	})
	require.NoError(t, err)
	assert.Equal(t, f.values["Colaboración"], res.Nomination.ValueID)
}

func TestDerivedRecordIsImmutable(t *testing.T) {
	rules := recognition.DefaultRules()
	rules.Threshold = 1
	f := newFixture(t, withRules(rules))
	f.mustNominate(staffM, "student-o", "Respeto", "")
	record := f.derived("student-o")
	require.NotNil(t, record)

	_, err := f.edit.Handle(f.ctx, EditNominationCommand{
		Actor: admin, CycleID: f.cycle.ID, NominationID: record.ID, ValueID: f.values["Respeto"],
	})
	assert.ErrorIs(t, err, shared.ErrDerivedRecordImmutable)

	_, err = f.del.Handle(f.ctx, DeleteNominationCommand{Actor: admin, CycleID: f.cycle.ID, NominationID: record.ID})
	assert.ErrorIs(t, err, shared.ErrDerivedRecordImmutable)
	assert.NotNil(t, f.derived("student-o"))
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTIONS
// ══════════════════════════════════════════════════════════════════════════════

type faultyStore struct {
	uow.Store
	setCountedErr error
	conflicts     int
	attempts      int
}

func (s *faultyStore) WithTx(ctx context.Context, fn func(tx uow.Tx) error) error {
	s.attempts++
	if s.conflicts > 0 {
		s.conflicts--
		return shared.WrapError("store", "Commit", shared.ErrConcurrentModification, "serialization failure", nil)
	}
	return s.Store.WithTx(ctx, func(tx uow.Tx) error {
		return fn(faultyTx{Tx: tx, setCountedErr: s.setCountedErr})
	})
}

type faultyTx struct {
	uow.Tx
	setCountedErr error
}

func (t faultyTx) Nominations() nomination.Repository {
	return faultyNominations{Repository: t.Tx.Nominations(), setCountedErr: t.setCountedErr}
}

type faultyNominations struct {
	nomination.Repository
	setCountedErr error
}

func (r faultyNominations) SetCounted(ctx context.Context, cycleID, nomineeID string, ids []string) error {
	if r.setCountedErr != nil {
		return r.setCountedErr
	}
	return r.Repository.SetCounted(ctx, cycleID, nomineeID, ids)
}

func TestCreateNomination_RollsBackWhenPromotionFails(t *testing.T) {
	faulty := &faultyStore{}
	rules := recognition.DefaultRules()
	rules.Threshold = 1
	f := newFixture(t, withRules(rules), withStoreWrapper(func(s uow.Store) uow.Store {
		faulty.Store = s
		return faulty
	}))
	faulty.setCountedErr = errors.New("disk full")

	_, err := f.nominate(staffM, "student-o", "Respeto", "")
	require.Error(t, err)

	assert.Empty(t, f.ledger(), "the nomination and the excellence record roll back together")
	var reserved int
	require.NoError(t, f.mem.WithTx(f.ctx, func(tx uow.Tx) error {
		vs, err := tx.Values().ListByCycle(f.ctx, f.cycle.ID, true)
		for _, v := range vs {
			if v.Reserved {
				reserved++
			}
		}
		return err
	}))
	assert.Zero(t, reserved)
	assert.NotContains(t, f.bus.types(), shared.EventNominationCreated)
}

func TestExecutor_ReplaysConflicts(t *testing.T) {
	faulty := &faultyStore{}
	f := newFixture(t, withStoreWrapper(func(s uow.Store) uow.Store {
		faulty.Store = s
		return faulty
	}))
	faulty.attempts = 0
	faulty.conflicts = 2

	f.mustNominate(staffM, "student-o", "Respeto", "")
	assert.Equal(t, 3, faulty.attempts)
	assert.Len(t, f.ledger(), 1)
}

func TestExecutor_GivesUpAfterMaxAttempts(t *testing.T) {
	faulty := &faultyStore{}
	f := newFixture(t, withStoreWrapper(func(s uow.Store) uow.Store {
		faulty.Store = s
		return faulty
	}))
	faulty.attempts = 0
	faulty.conflicts = DefaultMaxAttempts

	_, err := f.nominate(staffM, "student-o", "Respeto", "")
	assert.True(t, shared.IsRetryable(err))
	assert.Equal(t, DefaultMaxAttempts, faulty.attempts)
	assert.Empty(t, f.ledger())
}
