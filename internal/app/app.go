// Package app wires configuration, storage, messaging and the application
// handlers into a runnable service. Both binaries build on it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/valores-hub/nominations/config"
	"github.com/valores-hub/nominations/internal/application/command"
	"github.com/valores-hub/nominations/internal/application/eventhandler"
	"github.com/valores-hub/nominations/internal/application/promotion"
	"github.com/valores-hub/nominations/internal/application/query"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/internal/infrastructure/messaging"
	"github.com/valores-hub/nominations/internal/infrastructure/metrics"
	"github.com/valores-hub/nominations/internal/infrastructure/persistence/memory"
	"github.com/valores-hub/nominations/internal/infrastructure/persistence/postgres"
	"github.com/valores-hub/nominations/internal/infrastructure/persistence/redis"
	"github.com/valores-hub/nominations/internal/infrastructure/scheduler"
	"github.com/valores-hub/nominations/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/valores-hub/nominations/internal/interface/http"
	"github.com/valores-hub/nominations/internal/interface/http/handlers"
	"github.com/valores-hub/nominations/pkg/circuitbreaker"
	"github.com/valores-hub/nominations/pkg/logger"
	"github.com/valores-hub/nominations/pkg/timeutil"
	"github.com/valores-hub/nominations/pkg/tracing"
)

// eventBus is what both bus implementations offer.
type eventBus interface {
	shared.EventBus
	Close() error
}

// App holds the wired service.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Metrics  *metrics.Recorder
	Features *config.FeatureFlags
	Clock    timeutil.Clock

	Store  uow.Store
	Engine *promotion.Engine
	Bus    shared.EventBus
	Health *handlers.CompositeHealthChecker

	Commands httpapi.Commands
	Queries  httpapi.Queries
	TierLog  *eventhandler.OnTierChangedHandler

	closers []func()
}

// Option customizes Build.
type Option func(*buildOptions)

type buildOptions struct {
	store uow.Store
	clock timeutil.Clock
}

// WithStore replaces the configured store, for tests.
func WithStore(s uow.Store) Option {
	return func(o *buildOptions) { o.store = s }
}

// WithClock replaces the system clock, for tests.
func WithClock(c timeutil.Clock) Option {
	return func(o *buildOptions) { o.clock = c }
}

// Build connects every dependency named by cfg. Close releases them.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (*App, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = timeutil.SystemClock{}
	}

	a := &App{
		Config:   cfg,
		Log:      log,
		Features: config.NewFeatureFlags(cfg.Features),
		Clock:    o.clock,
		Health:   handlers.NewCompositeHealthChecker(cfg.App.Version),
	}
	if cfg.Observability.MetricsEnabled {
		a.Metrics = metrics.New()
	}

	shutdownTracing := tracing.Init(cfg.App.Name, cfg.Observability.TracingEnabled)
	a.closers = append(a.closers, func() { _ = shutdownTracing(context.Background()) })

	if err := a.openStore(ctx, o.store); err != nil {
		a.Close()
		return nil, err
	}
	a.Health.AddCheck("store", handlers.NewPingCheck(a.Store))

	cycleCache, err := a.openRedis()
	if err != nil {
		a.Close()
		return nil, err
	}

	engine, err := promotion.NewEngine(cfg.Recognition.Rules())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("recognition rules: %w", err)
	}
	a.Engine = engine

	exec := command.NewExecutor(a.Store,
		command.WithPublisher(a.Bus),
		command.WithClock(a.Clock),
		command.WithMetrics(a.Metrics),
		command.WithLogger(log),
	)
	a.Commands = httpapi.Commands{
		CreateNomination: command.NewCreateNominationHandler(exec, engine),
		CreateBulk:       command.NewCreateNominationsHandler(exec, engine),
		EditNomination:   command.NewEditNominationHandler(exec, engine),
		DeleteNomination: command.NewDeleteNominationHandler(exec, engine),
		CreateCycle:      command.NewCreateCycleHandler(exec),
		ActivateCycle:    command.NewActivateCycleHandler(exec),
		CreateValue:      command.NewCreateValueHandler(exec, engine),
		SetValueActive:   command.NewSetValueActiveHandler(exec),
		SeedValues:       command.NewSeedValuesHandler(exec, engine, cfg.Recognition.DefaultValues),
		CreateEvent:      command.NewCreateEventHandler(exec),
		SetEventActive:   command.NewSetEventActiveHandler(exec),
		CloseExpired:     command.NewCloseExpiredEventsHandler(exec),
		UpsertSubjects:   command.NewUpsertSubjectsHandler(exec),
	}

	reader := query.NewReader(a.Store, a.Clock, a.Metrics)
	var activeCache query.ActiveCycleCache
	if cycleCache != nil {
		activeCache = cycleCache
	}
	active := query.NewGetActiveCycleHandler(reader, activeCache, log)
	if err := active.InvalidateOnActivation(a.Bus); err != nil {
		a.Close()
		return nil, fmt.Errorf("subscribe cache invalidation: %w", err)
	}
	a.Queries = httpapi.Queries{
		ActiveCycle:      active,
		ListNominations:  query.NewListNominationsHandler(reader),
		TierStatus:       query.NewGetTierStatusHandler(reader, engine.Rules()),
		RecognitionBoard: query.NewRecognitionBoardHandler(reader),
		Catalog:          query.NewCatalogHandler(reader),
	}

	a.TierLog = eventhandler.NewOnTierChangedHandler(log, 200)
	if err := a.TierLog.Register(a.Bus); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context, override uow.Store) error {
	cfg := a.Config
	switch {
	case override != nil:
		a.Store = override
		return nil
	case cfg.UseMemoryStore():
		a.Log.Warn("no database configured, using the in-memory store")
		a.Store = memory.NewStore()
		return nil
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	pgCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, conn.Close)

	if cfg.Database.MigrateOnStart {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	a.Store = postgres.NewStore(conn)
	a.Log.Info("connected to postgres")
	return nil
}

// openRedis connects Redis when enabled and selects the event bus. Without
// Redis the bus is in-process and there is no active-cycle cache.
func (a *App) openRedis() (*redis.CycleCache, error) {
	cfg := a.Config
	local := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
		Logger:         a.Log,
	})

	if cfg.Redis.Disabled {
		a.useBus(local)
		return nil, nil
	}

	rcfg := redis.DefaultConfig()
	rcfg.URL = cfg.Redis.URL
	rcfg.Host = cfg.Redis.Host
	rcfg.Port = cfg.Redis.Port
	rcfg.Password = cfg.Redis.Password
	rcfg.DB = cfg.Redis.DB
	if cfg.Redis.PoolSize > 0 {
		rcfg.PoolSize = cfg.Redis.PoolSize
	}
	cache, err := redis.NewCache(rcfg)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = cache.Close() })
	a.Health.AddCheck("redis", handlers.NewPingCheck(cache))
	a.Log.Info("connected to redis")

	if !a.Features.IsEnabled(config.FeatureCrossProcessEvents) {
		a.useBus(local)
	} else {
		_ = local.Close()
		bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:      messaging.NewGoRedisClient(cache.Client()),
			ChannelName: cfg.Redis.Channel,
			Logger:      a.Log,
			LocalBusConfig: messaging.InMemoryEventBusConfig{
				AsyncMode:      true,
				WorkerPoolSize: 10,
			},
		})
		if err != nil {
			return nil, err
		}
		a.useBus(bus)
	}

	breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
		a.Log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
	return redis.NewCycleCache(cache, cfg.Redis.ActiveCycleTTL, redis.WithBreaker(breaker)), nil
}

func (a *App) useBus(bus eventBus) {
	a.Bus = bus
	a.closers = append(a.closers, func() { _ = bus.Close() })
}

// Scheduler builds a scheduler with the expiry sweep registered.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	cfg := a.Config.Scheduler

	var sched scheduler.Schedule = scheduler.NewIntervalSchedule(cfg.SweepInterval)
	if cfg.SweepCron != "" {
		parsed, err := scheduler.ParseSchedule(cfg.SweepCron)
		if err != nil {
			return nil, fmt.Errorf("scheduler.sweep_cron: %w", err)
		}
		sched = parsed
	}

	s := scheduler.New(scheduler.Config{
		Logger:   a.Log,
		Metrics:  a.Metrics,
		Timezone: a.Config.App.Location(),
	})
	job := jobs.NewCloseExpiredEventsJob(a.Commands.CloseExpired, a.Log)
	if err := s.Register(withTimeout(job, cfg.JobTimeout), sched); err != nil {
		return nil, err
	}
	return s, nil
}

// HTTPServer builds the API server.
func (a *App) HTTPServer() *httpapi.Server {
	return httpapi.NewServer(httpapi.Config{
		Addr:           a.Config.HTTP.Addr,
		ReadTimeout:    a.Config.HTTP.ReadTimeout,
		WriteTimeout:   a.Config.HTTP.WriteTimeout,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Location:       a.Config.App.Location(),
		Version:        a.Config.App.Version,
	}, httpapi.Dependencies{
		Commands:      a.Commands,
		Queries:       a.Queries,
		Features:      a.Features,
		Metrics:       a.Metrics,
		HealthChecker: a.Health,
		Logger:        a.Log,
		Clock:         a.Clock,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// timeoutJob bounds every run of a job.
type timeoutJob struct {
	scheduler.Job
	timeout time.Duration
}

func withTimeout(j scheduler.Job, d time.Duration) scheduler.Job {
	if d <= 0 {
		return j
	}
	return timeoutJob{Job: j, timeout: d}
}

func (j timeoutJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	return j.Job.Run(ctx)
}

// NewLogger builds the process logger from the observability settings.
func NewLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
		Format: cfg.Observability.LogFormat,
		Fields: []logger.Field{
			logger.String("service", cfg.App.Name),
			logger.String("env", string(cfg.App.Environment)),
		},
	})
}
