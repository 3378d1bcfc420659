// Package http exposes the nomination service over a JSON REST API.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/valores-hub/nominations/config"
	"github.com/valores-hub/nominations/internal/application/command"
	"github.com/valores-hub/nominations/internal/application/query"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/infrastructure/metrics"
	"github.com/valores-hub/nominations/internal/interface/http/handlers"
	"github.com/valores-hub/nominations/pkg/logger"
	"github.com/valores-hub/nominations/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// Location is the school timezone used to read wall-clock event times.
	Location *time.Location

	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Location:       time.UTC,
		Version:        "v1",
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Commands groups the write-side handlers.
type Commands struct {
	CreateNomination *command.CreateNominationHandler
	CreateBulk       *command.CreateNominationsHandler
	EditNomination   *command.EditNominationHandler
	DeleteNomination *command.DeleteNominationHandler
	CreateCycle      *command.CreateCycleHandler
	ActivateCycle    *command.ActivateCycleHandler
	CreateValue      *command.CreateValueHandler
	SetValueActive   *command.SetValueActiveHandler
	SeedValues       *command.SeedValuesHandler
	CreateEvent      *command.CreateEventHandler
	SetEventActive   *command.SetEventActiveHandler
	CloseExpired     *command.CloseExpiredEventsHandler
	UpsertSubjects   *command.UpsertSubjectsHandler
}

// Queries groups the read-side handlers.
type Queries struct {
	ActiveCycle      *query.GetActiveCycleHandler
	ListNominations  *query.ListNominationsHandler
	TierStatus       *query.GetTierStatusHandler
	RecognitionBoard *query.RecognitionBoardHandler
	Catalog          *query.CatalogHandler
}

// Dependencies contains everything the handlers need.
type Dependencies struct {
	Commands      Commands
	Queries       Queries
	Features      *config.FeatureFlags
	Metrics       *metrics.Recorder
	HealthChecker handlers.HealthChecker
	Logger        *logger.Logger

	// Clock decides event states in responses. Defaults to the system clock.
	Clock timeutil.Clock
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	engine     *gin.Engine
	httpServer *http.Server
	log        *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(cfg Config, deps Dependencies) *Server {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.HealthChecker == nil {
		deps.HealthChecker = handlers.NewCompositeHealthChecker(cfg.Version)
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock{}
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		log:    deps.Logger.With(logger.Component("http")),
	}
	s.engine = s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:           cfg.Addr,
		Handler:        s.engine,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes() *gin.Engine {
	r := gin.New()
	r.Use(
		handlers.Recovery(s.log),
		handlers.RequestID(s.log),
		handlers.Tracing(),
		handlers.Metrics(s.deps.Metrics),
		handlers.RequestLogger(s.log),
	)

	r.GET("/", s.handleRoot)
	r.GET("/live", handlers.Live)
	r.GET("/health", handlers.Health(s.deps.HealthChecker))
	r.GET("/healthz", handlers.Health(s.deps.HealthChecker))
	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	api := r.Group("/api/v1", handlers.Actor())

	api.GET("/cycles", s.handleListCycles)
	api.GET("/cycles/active", s.handleGetActiveCycle)
	api.POST("/cycles", s.handleCreateCycle)
	api.POST("/cycles/:cycle_id/activate", s.handleActivateCycle)

	api.GET("/cycles/:cycle_id/values", s.handleListValues)
	api.POST("/cycles/:cycle_id/values", s.handleCreateValue)
	api.POST("/cycles/:cycle_id/values/seed", s.handleSeedValues)
	api.PATCH("/values/:value_id", s.handleSetValueActive)

	api.GET("/cycles/:cycle_id/events", s.handleListEvents)
	api.POST("/cycles/:cycle_id/events", s.handleCreateEvent)
	api.GET("/cycles/:cycle_id/admission", s.handleCheckAdmission)
	api.PATCH("/events/:event_id", s.handleSetEventActive)

	api.PUT("/cycles/:cycle_id/subjects", s.handleUpsertSubjects)

	api.GET("/cycles/:cycle_id/nominations", s.handleListNominations)
	api.POST("/nominations", s.handleCreateNomination)
	api.POST("/nominations/bulk", s.handleCreateNominations)
	api.PATCH("/nominations/:nomination_id", s.handleEditNomination)
	api.DELETE("/nominations/:nomination_id", s.handleDeleteNomination)

	api.GET("/cycles/:cycle_id/nominees/:nominee_id/tier", s.handleGetTierStatus)
	api.GET("/cycles/:cycle_id/board", s.handleRecognitionBoard)

	admin := api.Group("/admin")
	admin.POST("/sweep", s.handleSweep)
	admin.GET("/features", s.handleListFeatures)
	admin.PUT("/features/:name", s.handleSetFeature)

	return r
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.log.Info("http server listening", logger.String("addr", s.config.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}
	return nil
}

// StartAsync starts the server in a goroutine. The channel receives the
// serve error, if any, and is closed when serving stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Start(); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.log.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns how long the server has been serving.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError describes a failed request. Code is the stable rejection
// reason when there is one.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(c *gin.Context, status int, data any) {
	c.JSON(status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		RequestID: handlers.GetRequestID(c),
	})
}

func writeJSONError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, JSONResponse{
		Error:     &APIError{Code: code, Message: message},
		RequestID: handlers.GetRequestID(c),
	})
}

// writeError maps a domain error onto a status code. Rejections carry their
// reason code; unexpected failures are logged and hidden.
func (s *Server) writeError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status >= 500 {
		logger.FromContext(c.Request.Context()).Error("request failed",
			logger.String("route", c.FullPath()),
			logger.Err(err),
		)
		writeJSONError(c, status, code, http.StatusText(status))
		return
	}
	writeJSONError(c, status, code, errorMessage(err))
}

func errorStatus(err error) (int, string) {
	if reason := shared.Reason(err); reason != "" {
		switch {
		case errors.Is(err, shared.ErrNotAuthorized), errors.Is(err, shared.ErrDerivedRecordImmutable):
			return http.StatusForbidden, reason
		case errors.Is(err, shared.ErrDuplicateNomination):
			return http.StatusConflict, reason
		default:
			return http.StatusUnprocessableEntity, reason
		}
	}

	switch {
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "already_exists"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, shared.ErrStateTransition), errors.Is(err, shared.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case shared.IsRetryable(err):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal_error"
}

func errorMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}
