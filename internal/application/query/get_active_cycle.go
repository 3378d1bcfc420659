package query

import (
	"context"

	"github.com/valores-hub/nominations/internal/domain/cycle"
	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/domain/uow"
	"github.com/valores-hub/nominations/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACTIVE CYCLE QUERY
// Every nomination starts by resolving the active cycle, so the answer is
// cached and dropped whenever a cycle is activated.
// ══════════════════════════════════════════════════════════════════════════════

// ActiveCycleCache stores the active cycle. GetActive returns nil on a miss.
type ActiveCycleCache interface {
	GetActive(ctx context.Context) (*cycle.Cycle, error)
	SetActive(ctx context.Context, c *cycle.Cycle) error
	Invalidate(ctx context.Context) error
}

// CycleDTO is the read model of a cycle.
type CycleDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// ToCycleDTO converts a cycle.
func ToCycleDTO(c *cycle.Cycle) CycleDTO {
	return CycleDTO{ID: c.ID, Name: c.Name, Active: c.Active}
}

// GetActiveCycleHandler resolves the active cycle.
type GetActiveCycleHandler struct {
	reader *Reader
	cache  ActiveCycleCache
	log    *logger.Logger
}

// NewGetActiveCycleHandler creates a handler. cache may be nil.
func NewGetActiveCycleHandler(reader *Reader, cache ActiveCycleCache, log *logger.Logger) *GetActiveCycleHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetActiveCycleHandler{reader: reader, cache: cache, log: log}
}

// Handle returns the active cycle or ErrCycleNotActive. Cache failures fall
// through to the store.
func (h *GetActiveCycleHandler) Handle(ctx context.Context) (*cycle.Cycle, error) {
	if h.cache != nil {
		c, err := h.cache.GetActive(ctx)
		if err != nil {
			h.log.Warn("active cycle cache read failed", logger.Err(err))
		} else if c != nil {
			return c, nil
		}
	}

	var active *cycle.Cycle
	err := h.reader.read(ctx, "get_active_cycle", func(ctx context.Context, tx uow.Tx) error {
		c, err := tx.Cycles().GetActive(ctx)
		if err != nil {
			return err
		}
		active = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.SetActive(ctx, active); err != nil {
			h.log.Warn("active cycle cache write failed", logger.Err(err))
		}
	}
	return active, nil
}

// InvalidateOnActivation drops the cache whenever a cycle is activated.
func (h *GetActiveCycleHandler) InvalidateOnActivation(sub shared.EventSubscriber) error {
	if h.cache == nil {
		return nil
	}
	return sub.Subscribe(shared.EventCycleActivated, func(shared.Event) error {
		return h.cache.Invalidate(context.Background())
	})
}

// ListCycles returns every cycle, newest first.
func (h *GetActiveCycleHandler) ListCycles(ctx context.Context) ([]CycleDTO, error) {
	var out []CycleDTO
	err := h.reader.read(ctx, "list_cycles", func(ctx context.Context, tx uow.Tx) error {
		cs, err := tx.Cycles().List(ctx)
		if err != nil {
			return err
		}
		out = make([]CycleDTO, 0, len(cs))
		for _, c := range cs {
			out = append(out, ToCycleDTO(c))
		}
		return nil
	})
	return out, err
}
