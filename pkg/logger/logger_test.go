package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestContextLogger(t *testing.T) {
	core, logs := observer.New(LevelDebug)
	l := &Logger{z: zap.New(core)}

	ctx := WithContext(context.Background(), l.WithRequestID("req-1"))
	FromContext(ctx).Info("nomination created", CycleID("c1"), NomineeID("o"), Reason(""))

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-1", fields[RequestIDKey])
		assert.Equal(t, "c1", fields["cycle_id"])
		assert.Equal(t, "o", fields["nominee_id"])
	}

	assert.NotNil(t, FromContext(context.Background()))
	assert.NotPanics(t, func() { Nop().With(Component("x")).Warn("dropped") })
}
