package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapTraceLoggerMapsLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zapTraceLogger(zap.New(core))

	l.Log(context.Background(), tracelog.LogLevelError, "Query", map[string]any{"sql": "select 1"})
	l.Log(context.Background(), tracelog.LogLevelWarn, "Exec", nil)
	l.Log(context.Background(), tracelog.LogLevelTrace, "Prepare", nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "select 1", entries[0].ContextMap()["sql"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
}

func TestConnectRejectsBadDSN(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse dsn")
}
