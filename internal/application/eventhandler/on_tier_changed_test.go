package eventhandler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valores-hub/nominations/internal/domain/shared"
	"github.com/valores-hub/nominations/internal/infrastructure/messaging"
)

func TestOnTierChanged_RecordsTransitions(t *testing.T) {
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{AsyncMode: false})
	h := NewOnTierChangedHandler(nil, 2)
	require.NoError(t, h.Register(bus))

	require.NoError(t, bus.Publish(shared.NewTierChangedEvent(shared.EventExcellenceGranted, "o", "c1", "x1", 3, []string{"a", "b", "c"})))
	require.NoError(t, bus.Publish(shared.NewNominationChangedEvent(shared.EventNominationCreated, "n4", "c1", "m", "o", "v")))
	require.NoError(t, bus.Publish(shared.NewTierChangedEvent(shared.EventExcellenceRefreshed, "o", "c1", "x1", 4, []string{"a", "b", "c"})))
	require.NoError(t, bus.Publish(shared.NewTierChangedEvent(shared.EventExcellenceRevoked, "o", "c1", "x1", 2, nil)))

	recent := h.Recent()
	require.Len(t, recent, 2, "only the newest changes are kept")
	assert.Equal(t, shared.EventExcellenceRefreshed, recent[0].Type)
	assert.Equal(t, 4, recent[0].Count)
	assert.Equal(t, shared.EventExcellenceRevoked, recent[1].Type)
	assert.Equal(t, "o", recent[1].NomineeID)
	assert.Equal(t, "x1", recent[1].RecordID)
}

func TestPayloadInt_AcceptsDecodedNumbers(t *testing.T) {
	p := map[string]interface{}{"a": 3, "b": int64(4), "c": float64(5), "d": "6"}
	assert.Equal(t, 3, payloadInt(p, "a"))
	assert.Equal(t, 4, payloadInt(p, "b"))
	assert.Equal(t, 5, payloadInt(p, "c"))
	assert.Equal(t, 0, payloadInt(p, "d"))
}
