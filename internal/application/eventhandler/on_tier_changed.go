// Package eventhandler contains subscribers reacting to committed domain
// events. Handlers read only Payload so they work for events replayed from
// other instances as well as local ones.
package eventhandler

import (
	"fmt"
	"sync"
	"time"

	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/pkg/logger"
)

// TierChange is one recorded excellence transition.
type TierChange struct {
	Type       shared.EventType `json:"type"`
	CycleID    string           `json:"cycle_id"`
	NomineeID  string           `json:"nominee_id"`
	RecordID   string           `json:"record_id,omitempty"`
	Count      int              `json:"count"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// OnTierChangedHandler writes an audit line for every excellence grant,
// refresh and revoke, and keeps the most recent ones in memory.
type OnTierChangedHandler struct {
	log *logger.Logger

	mu     sync.Mutex
	recent []TierChange
	limit  int
}

// NewOnTierChangedHandler creates the handler. limit bounds Recent.
func NewOnTierChangedHandler(log *logger.Logger, limit int) *OnTierChangedHandler {
	if log == nil {
		log = logger.Nop()
	}
	if limit <= 0 {
		limit = 100
	}
	return &OnTierChangedHandler{log: log.With(logger.Component("tier_audit")), limit: limit}
}

// Register subscribes the handler to the tier events.
func (h *OnTierChangedHandler) Register(sub shared.EventSubscriber) error {
	for _, t := range []shared.EventType{
		shared.EventExcellenceGranted,
		shared.EventExcellenceRefreshed,
		shared.EventExcellenceRevoked,
	} {
		if err := sub.Subscribe(t, h.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

// Handle records one event.
func (h *OnTierChangedHandler) Handle(event shared.Event) error {
	p := event.Payload()
	change := TierChange{
		Type:       event.EventType(),
		CycleID:    payloadString(p, "cycle_id"),
		NomineeID:  payloadString(p, "nominee_id"),
		RecordID:   payloadString(p, "record_id"),
		Count:      payloadInt(p, "count"),
		OccurredAt: event.OccurredAt(),
	}
	if change.NomineeID == "" {
		change.NomineeID = event.AggregateID()
	}

	h.mu.Lock()
	h.recent = append(h.recent, change)
	if len(h.recent) > h.limit {
		h.recent = h.recent[len(h.recent)-h.limit:]
	}
	h.mu.Unlock()

	h.log.Info("excellence tier changed",
		logger.String("type", string(change.Type)),
		logger.CycleID(change.CycleID),
		logger.NomineeID(change.NomineeID),
		logger.Int("count", change.Count),
	)
	return nil
}

// Recent returns the recorded changes, oldest first.
func (h *OnTierChangedHandler) Recent() []TierChange {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]TierChange, len(h.recent))
	copy(out, h.recent)
	return out
}

func payloadString(p map[string]interface{}, key string) string {
	s, _ := p[key].(string)
	return s
}

// Payloads decoded from JSON carry numbers as float64.
func payloadInt(p map[string]interface{}, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
