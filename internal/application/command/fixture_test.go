package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/valores-hub/nominations/internal/application/promotion"
	"github.com/valores-hub/nominations/internal/domain/calendar"
	"github.com/valores-hub/nominations/internal/domain/cycle"
	"github.com/valores-hub/nominations/internal/domain/nomination"
	"github.com/valores-hub/nominations/internal/domain/recognition"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/internal/infrastructure/metrics"
	"github.com/valores-hub/nominations/internal/infrastructure/persistence/memory"
	"github.com/valores-hub/nominations/pkg/timeutil"
)

var (
	admin   = shared.SystemActor
	staffM  = shared.Actor{SubjectID: "staff-m"}
	staffN  = shared.Actor{SubjectID: "staff-n"}
	startAt = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
)

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   uow.Store
	mem     *memory.Store
	clock   *timeutil.FixedClock
	bus     *recorder
	metrics *metrics.Recorder
	engine  *promotion.Engine

	create     *CreateNominationHandler
	bulk       *CreateNominationsHandler
	edit       *EditNominationHandler
	del        *DeleteNominationHandler
	newCycle   *CreateCycleHandler
	activate   *ActivateCycleHandler
	newValue   *CreateValueHandler
	toggleVal  *SetValueActiveHandler
	seed       *SeedValuesHandler
	newEvent   *CreateEventHandler
	toggleEvt  *SetEventActiveHandler
	sweep      *CloseExpiredEventsHandler
	upsertSubs *UpsertSubjectsHandler

	cycle  *cycle.Cycle
	values map[string]string // name -> id
	event  *calendar.Event
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	rules recognition.Rules
	wrap  func(uow.Store) uow.Store
}

func withRules(r recognition.Rules) fixtureOption {
	return func(c *fixtureConfig) { c.rules = r }
}

func withStoreWrapper(fn func(uow.Store) uow.Store) fixtureOption {
	return func(c *fixtureConfig) { c.wrap = fn }
}

// newFixture builds an active cycle with staff M and N, students O and P in
// cohort "3A", the default values and one open event closing at
// startAt+1h.
func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{rules: recognition.DefaultRules()}
	for _, opt := range opts {
		opt(&cfg)
	}

	mem := memory.NewStore()
	var store uow.Store = mem
	if cfg.wrap != nil {
		store = cfg.wrap(mem)
	}

	engine, err := promotion.NewEngine(cfg.rules)
	require.NoError(t, err)

	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		store:   store,
		mem:     mem,
		clock:   timeutil.NewFixedClock(startAt),
		bus:     &recorder{},
		metrics: metrics.New(),
		engine:  engine,
		values:  make(map[string]string),
	}
	exec := NewExecutor(store, WithPublisher(f.bus), WithClock(f.clock), WithMetrics(f.metrics))
	f.create = NewCreateNominationHandler(exec, engine)
	f.bulk = NewCreateNominationsHandler(exec, engine)
	f.edit = NewEditNominationHandler(exec, engine)
	f.del = NewDeleteNominationHandler(exec, engine)
	f.newCycle = NewCreateCycleHandler(exec)
	f.activate = NewActivateCycleHandler(exec)
	f.newValue = NewCreateValueHandler(exec, engine)
	f.toggleVal = NewSetValueActiveHandler(exec)
	f.seed = NewSeedValuesHandler(exec, engine, nil)
	f.newEvent = NewCreateEventHandler(exec)
	f.toggleEvt = NewSetEventActiveHandler(exec)
	f.sweep = NewCloseExpiredEventsHandler(exec)
	f.upsertSubs = NewUpsertSubjectsHandler(exec)

	f.cycle, err = f.newCycle.Handle(f.ctx, CreateCycleCommand{Actor: admin, Name: "2024-2025", Activate: true})
	require.NoError(t, err)

	seeded, err := f.seed.Handle(f.ctx, SeedValuesCommand{Actor: admin, CycleID: f.cycle.ID})
	require.NoError(t, err)
	for _, v := range seeded.Created {
		f.values[v.Name] = v.ID
	}

	_, err = f.upsertSubs.Handle(f.ctx, UpsertSubjectsCommand{
		Actor:   admin,
		CycleID: f.cycle.ID,
		Subjects: []SubjectInput{
			{ID: "staff-m", Kind: "staff", DisplayName: "Maestra M"},
			{ID: "staff-n", Kind: "staff", DisplayName: "Maestro N"},
			{ID: "student-o", Kind: "student", DisplayName: "Alumno O", Cohort: "3A"},
			{ID: "student-p", Kind: "student", DisplayName: "Alumna P", Cohort: "3A"},
		},
	})
	require.NoError(t, err)

	f.event = f.openEvent("Asamblea marzo", "", time.Hour)
	return f
}

func (f *fixture) openEvent(name, cohort string, closesIn time.Duration) *calendar.Event {
	f.t.Helper()
	now := f.clock.Now()
	e, err := f.newEvent.Handle(f.ctx, CreateEventCommand{
		Actor:    admin,
		CycleID:  f.cycle.ID,
		Name:     name,
		Cohort:   shared.Cohort(cohort),
		CloseAt:  now.Add(closesIn),
		OccursAt: now.Add(closesIn + 24*time.Hour),
	})
	require.NoError(f.t, err)
	return e
}

func (f *fixture) nominate(actor shared.Actor, nominee, valueName, comment string) (*CreateNominationResult, error) {
	return f.create.Handle(f.ctx, CreateNominationCommand{
		Actor:       actor,
		CycleID:     f.cycle.ID,
		NominatorID: actor.SubjectID,
		NomineeID:   nominee,
		ValueID:     f.values[valueName],
		Comment:     comment,
	})
}

func (f *fixture) mustNominate(actor shared.Actor, nominee, valueName, comment string) *CreateNominationResult {
	f.t.Helper()
	res, err := f.nominate(actor, nominee, valueName, comment)
	require.NoError(f.t, err)
	return res
}

// ledger returns every row of the cycle, derived included.
func (f *fixture) ledger() []*nomination.Nomination {
	f.t.Helper()
	var rows []*nomination.Nomination
	err := f.mem.WithTx(f.ctx, func(tx uow.Tx) error {
		var err error
		rows, err = tx.Nominations().List(f.ctx, nomination.Filter{CycleID: f.cycle.ID, IncludeDerived: true})
		return err
	})
	require.NoError(f.t, err)
	return rows
}

func (f *fixture) derived(nomineeID string) *nomination.Nomination {
	f.t.Helper()
	for _, n := range f.ledger() {
		if n.Derived && n.NomineeID == nomineeID {
			return n
		}
	}
	return nil
}

func (f *fixture) counted(nomineeID string) []string {
	var ids []string
	for _, n := range f.ledger() {
		if !n.Derived && n.NomineeID == nomineeID && n.Counted {
			ids = append(ids, n.ID)
		}
	}
	return ids
}
