package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valores-hub/nominations/internal/application/command"
	"github.com/valores-hub/nominations/internal/application/promotion"
	"github.com/valores-hub/nominations/internal/domain/cycle"
	"github.com/valores-hub/nominations/internal/domain/recognition"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/infrastructure/messaging"
	"github.com/valores-hub/nominations/internal/infrastructure/persistence/memory"
	"github.com/valores-hub/nominations/pkg/logger"
	"github.com/valores-hub/nominations/pkg/timeutil"
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	clock  *timeutil.FixedClock
	reader *Reader
	rules  recognition.Rules
	create *command.CreateNominationHandler
	cycle  *cycle.Cycle
	values map[string]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	clock := timeutil.NewFixedClock(time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC))
	engine, err := promotion.NewEngine(recognition.DefaultRules())
	require.NoError(t, err)
	exec := command.NewExecutor(store, command.WithClock(clock))
	admin := shared.SystemActor

	c, err := command.NewCreateCycleHandler(exec).Handle(ctx, command.CreateCycleCommand{Actor: admin, Name: "2024-2025", Activate: true})
	require.NoError(t, err)
	seeded, err := command.NewSeedValuesHandler(exec, engine, []string{"Respeto", "Empatía", "Colaboración"}).
		Handle(ctx, command.SeedValuesCommand{Actor: admin, CycleID: c.ID})
	require.NoError(t, err)
	values := make(map[string]string)
	for _, v := range seeded.Created {
		values[v.Name] = v.ID
	}

	_, err = command.NewUpsertSubjectsHandler(exec).Handle(ctx, command.UpsertSubjectsCommand{
		Actor:   admin,
		CycleID: c.ID,
		Subjects: []command.SubjectInput{
			{ID: "m", Kind: "staff", DisplayName: "Maestra M"},
			{ID: "n", Kind: "staff", DisplayName: "Maestro N"},
			{ID: "p", Kind: "staff", DisplayName: "Maestro P"},
			{ID: "o", Kind: "student", DisplayName: "Olga", Cohort: "Secundaria"},
			{ID: "q", Kind: "student", DisplayName: "Quique", Cohort: "Primaria"},
		},
	})
	require.NoError(t, err)

	_, err = command.NewCreateEventHandler(exec).Handle(ctx, command.CreateEventCommand{
		Actor:    admin,
		CycleID:  c.ID,
		Name:     "Honores",
		CloseAt:  clock.Now().Add(48 * time.Hour),
		OccursAt: clock.Now().Add(72 * time.Hour),
	})
	require.NoError(t, err)

	return &fixture{
		t:      t,
		ctx:    ctx,
		clock:  clock,
		reader: NewReader(store, clock, nil),
		rules:  engine.Rules(),
		create: command.NewCreateNominationHandler(exec, engine),
		cycle:  c,
		values: values,
	}
}

func (f *fixture) nominate(by, nominee, valueName string) {
	f.t.Helper()
	f.clock.Advance(time.Minute)
	_, err := f.create.Handle(f.ctx, command.CreateNominationCommand{
		Actor:       shared.Actor{SubjectID: by},
		CycleID:     f.cycle.ID,
		NominatorID: by,
		NomineeID:   nominee,
		ValueID:     f.values[valueName],
		Comment:     valueName,
	})
	require.NoError(f.t, err)
}

func TestListNominations(t *testing.T) {
	f := newFixture(t)
	f.nominate("m", "o", "Respeto")
	f.nominate("n", "o", "Empatía")
	f.nominate("p", "o", "Respeto")
	f.nominate("m", "q", "Colaboración")

	h := NewListNominationsHandler(f.reader)

	res, err := h.Handle(f.ctx, ListNominationsQuery{CycleID: f.cycle.ID, NomineeID: "o"})
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	for _, item := range res.Items {
		assert.False(t, item.Derived)
		assert.NotEmpty(t, item.ValueName)
	}

	res, err = h.Handle(f.ctx, ListNominationsQuery{CycleID: f.cycle.ID, NomineeID: "o", IncludeDerived: true})
	require.NoError(t, err)
	assert.Len(t, res.Items, 4)

	res, err = h.Handle(f.ctx, ListNominationsQuery{CycleID: f.cycle.ID, OnlyDerived: true})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "o", res.Items[0].NomineeID)
	assert.Equal(t, f.rules.ExcellenceName, res.Items[0].ValueName)

	res, err = h.Handle(f.ctx, ListNominationsQuery{CycleID: f.cycle.ID, NominatorID: "m", PageSize: 1})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
	assert.Equal(t, 1, res.PageSize)

	_, err = h.Handle(f.ctx, ListNominationsQuery{})
	assert.ErrorIs(t, err, shared.ErrCycleNotActive)
	_, err = h.Handle(f.ctx, ListNominationsQuery{CycleID: f.cycle.ID, Kind: "alumni"})
	assert.True(t, shared.IsValidation(err))
}

func TestGetTierStatus(t *testing.T) {
	f := newFixture(t)
	h := NewGetTierStatusHandler(f.reader, f.rules)

	f.nominate("m", "o", "Respeto")
	status, err := h.Handle(f.ctx, GetTierStatusQuery{CycleID: f.cycle.ID, NomineeID: "o"})
	require.NoError(t, err)
	assert.Equal(t, 1, status.Count)
	assert.Equal(t, 2, status.Remaining)
	assert.Empty(t, status.Contributors)
	assert.Nil(t, status.Excellence)

	f.nominate("n", "o", "Respeto")
	f.nominate("p", "o", "Empatía")
	f.nominate("m", "o", "Empatía")
	status, err = h.Handle(f.ctx, GetTierStatusQuery{CycleID: f.cycle.ID, NomineeID: "o"})
	require.NoError(t, err)
	assert.Equal(t, 4, status.Count)
	assert.Zero(t, status.Remaining)
	assert.Len(t, status.Contributors, 3, "first-N keeps the earliest three")
	require.NotNil(t, status.Excellence)
	assert.Equal(t, f.rules.ExcellenceName, status.Excellence.ValueName)

	_, err = h.Handle(f.ctx, GetTierStatusQuery{CycleID: f.cycle.ID, NomineeID: "ghost"})
	assert.True(t, shared.IsNotFound(err))
	_, err = h.Handle(f.ctx, GetTierStatusQuery{CycleID: f.cycle.ID})
	assert.True(t, shared.IsValidation(err))
}

func TestRecognitionBoard(t *testing.T) {
	f := newFixture(t)
	f.nominate("m", "o", "Respeto")
	f.nominate("n", "o", "Respeto")
	f.nominate("p", "o", "Respeto")
	f.nominate("m", "q", "Empatía")
	f.nominate("m", "n", "Colaboración")

	h := NewRecognitionBoardHandler(f.reader)

	board, err := h.Handle(f.ctx, RecognitionBoardQuery{CycleID: f.cycle.ID})
	require.NoError(t, err)
	require.Len(t, board, 3)
	names := []string{board[0].DisplayName, board[1].DisplayName, board[2].DisplayName}
	assert.Equal(t, []string{"Maestro N", "Olga", "Quique"}, names)
	require.NotNil(t, board[1].Excellence)
	assert.Empty(t, board[1].Nominations, "counted nominations fold into the excellence record")
	assert.Nil(t, board[2].Excellence)

	board, err = h.Handle(f.ctx, RecognitionBoardQuery{CycleID: f.cycle.ID, Kind: "student", Cohort: "primaria"})
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "q", board[0].NomineeID)

	_, err = h.Handle(f.ctx, RecognitionBoardQuery{})
	assert.ErrorIs(t, err, shared.ErrCycleNotActive)
}

func TestCatalog(t *testing.T) {
	f := newFixture(t)
	h := NewCatalogHandler(f.reader)

	// granting excellence creates the reserved value
	f.nominate("m", "o", "Respeto")
	f.nominate("n", "o", "Respeto")
	f.nominate("p", "o", "Respeto")

	values, err := h.ListValues(f.ctx, f.cycle.ID, false)
	require.NoError(t, err)
	assert.Len(t, values, 3)
	for _, v := range values {
		assert.False(t, v.Reserved)
	}
	values, err = h.ListValues(f.ctx, f.cycle.ID, true)
	require.NoError(t, err)
	assert.Len(t, values, 4)

	events, err := h.ListEvents(f.ctx, f.cycle.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Active)

	open, err := h.CheckAdmission(f.ctx, f.cycle.ID, shared.NewCohort("Secundaria"))
	require.NoError(t, err)
	assert.Equal(t, events[0].ID, open.ID)

	f.clock.Advance(72 * time.Hour)
	_, err = h.CheckAdmission(f.ctx, f.cycle.ID, shared.NewCohort("Secundaria"))
	assert.ErrorIs(t, err, shared.ErrNoOpenEvent)
}

// fakeCycleCache counts hits against an in-memory slot.
type fakeCycleCache struct {
	cached      *cycle.Cycle
	readErr     error
	gets, sets  int
	invalidated int
}

func (c *fakeCycleCache) GetActive(context.Context) (*cycle.Cycle, error) {
	c.gets++
	return c.cached, c.readErr
}

func (c *fakeCycleCache) SetActive(_ context.Context, cy *cycle.Cycle) error {
	c.sets++
	c.cached = cy
	return nil
}

func (c *fakeCycleCache) Invalidate(context.Context) error {
	c.invalidated++
	c.cached = nil
	return nil
}

func TestGetActiveCycle_UsesCache(t *testing.T) {
	f := newFixture(t)
	cache := &fakeCycleCache{}
	h := NewGetActiveCycleHandler(f.reader, cache, logger.Nop())

	got, err := h.Handle(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, f.cycle.ID, got.ID)
	assert.Equal(t, 1, cache.sets)

	got, err = h.Handle(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, f.cycle.ID, got.ID)
	assert.Equal(t, 1, cache.sets, "second read is served from the cache")

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{AsyncMode: false})
	require.NoError(t, h.InvalidateOnActivation(bus))
	require.NoError(t, bus.Publish(shared.NewCycleActivatedEvent(f.cycle.ID, f.cycle.Name)))
	assert.Equal(t, 1, cache.invalidated)
	assert.Nil(t, cache.cached)

	cache.readErr = errors.New("redis down")
	got, err = h.Handle(f.ctx)
	require.NoError(t, err, "cache failures fall back to the store")
	assert.Equal(t, f.cycle.ID, got.ID)

	cycles, err := h.ListCycles(f.ctx)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.True(t, cycles[0].Active)
}

func TestGetActiveCycle_NoneActive(t *testing.T) {
	h := NewGetActiveCycleHandler(NewReader(memory.NewStore(), timeutil.SystemClock{}, nil), nil, nil)
	_, err := h.Handle(context.Background())
	assert.ErrorIs(t, err, shared.ErrCycleNotActive)
	assert.NoError(t, h.InvalidateOnActivation(nil))
}
