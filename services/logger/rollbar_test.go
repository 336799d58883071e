package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/user"
)

func TestRollbarLogger(t *testing.T) {
	conf := &core.Config{Env: "TEST", Debug: true, AppName: "Escalas"}
	obsCore, logs := observer.New(zapcore.DebugLevel)
	logger := NewRollbarLogger(zap.New(obsCore), conf)

	usr := user.User{ID: "u-1", Name: "Ana Souza", Email: "ana@example.com"}
	logger.Error("saving schedule", errors.New("boom"), usr, map[string]interface{}{"schedule_id": "s-1"})
	logger.Info("started")

	entries := logs.All()
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, zapcore.ErrorLevel, first.Level)
	assert.Equal(t, "saving schedule", first.Message)
	ctx := first.ContextMap()
	assert.Equal(t, "u-1", ctx["user_id"])
	assert.Equal(t, "s-1", ctx["schedule_id"])
	assert.Equal(t, "boom", ctx["error"])

	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Empty(t, entries[1].ContextMap())
}
