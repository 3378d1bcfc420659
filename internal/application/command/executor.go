// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/internal/infrastructure/metrics"
	"github.com/valores-hub/nominations/pkg/logger"
	"github.com/valores-hub/nominations/pkg/retry"
	"github.com/valores-hub/nominations/pkg/timeutil"
	"github.com/valores-hub/nominations/pkg/tracing"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXECUTOR
// Shared plumbing for every command: one transaction per attempt, replay on
// serialization conflicts, events published after commit.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultMaxAttempts bounds transaction replays.
const DefaultMaxAttempts = 4

// Executor runs command bodies inside the unit of work.
type Executor struct {
	store       uow.Store
	publisher   shared.EventPublisher
	clock       timeutil.Clock
	metrics     *metrics.Recorder
	log         *logger.Logger
	maxAttempts int
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPublisher sets the event publisher.
func WithPublisher(p shared.EventPublisher) ExecutorOption {
	return func(e *Executor) { e.publisher = p }
}

// WithClock overrides the wall clock.
func WithClock(c timeutil.Clock) ExecutorOption {
	return func(e *Executor) { e.clock = c }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) ExecutorOption {
	return func(e *Executor) { e.log = l }
}

// WithMaxAttempts bounds transaction replays.
func WithMaxAttempts(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// NewExecutor creates an Executor over store.
func NewExecutor(store uow.Store, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:       store,
		clock:       timeutil.SystemClock{},
		log:         logger.Nop(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the executor's current time.
func (e *Executor) Now() time.Time {
	return e.clock.Now()
}

// txFunc is a command body. It returns the events to publish on commit.
type txFunc func(ctx context.Context, tx uow.Tx) ([]shared.Event, error)

// Run executes fn in a transaction, replaying it on retryable conflicts.
func (e *Executor) Run(ctx context.Context, op string, fn txFunc) error {
	ctx, span := tracing.StartSpan(ctx, "command."+op)
	defer span.End()

	started := time.Now()
	retrier := retry.TransactionRetrier(e.maxAttempts, shared.IsRetryable,
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			e.metrics.TxRetry(op)
			e.log.Debug("replaying transaction",
				logger.Operation(op), logger.Int("attempt", attempt), logger.Err(err), logger.Duration("delay", delay))
		}),
	)

	var events []shared.Event
	err := retrier.Do(ctx, func(ctx context.Context) error {
		events = nil
		return e.store.WithTx(ctx, func(tx uow.Tx) error {
			evs, err := fn(ctx, tx)
			if err != nil {
				return err
			}
			events = evs
			return nil
		})
	})

	reason := shared.Reason(err)
	e.metrics.Operation(op, started, reason, err != nil)
	if err != nil {
		tracing.RecordError(span, err)
		if reason != "" {
			e.log.Info("operation rejected", logger.Operation(op), logger.Reason(reason))
		} else {
			e.log.Error("operation failed", logger.Operation(op), logger.Err(err))
		}
		return err
	}

	e.publish(events)
	return nil
}

func (e *Executor) publish(events []shared.Event) {
	for _, ev := range events {
		if tc, ok := ev.(shared.TierChangedEvent); ok {
			e.metrics.TierTransition(tierAction(tc.EventType()))
		}
		if e.publisher == nil {
			continue
		}
		if err := e.publisher.Publish(ev); err != nil {
			e.log.Warn("publish failed", logger.String("event_type", string(ev.EventType())), logger.Err(err))
		}
	}
}

func tierAction(t shared.EventType) string {
	return strings.TrimPrefix(string(t), "recognition.excellence_")
}

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateCommand runs struct tags and maps failures to ErrValidation.
func validateCommand(op string, cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.WrapError("command", op, shared.ErrValidation, "invalid command", err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return shared.WrapError("command", op, shared.ErrValidation, strings.Join(parts, ", "), err)
}
