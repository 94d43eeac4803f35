package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLoggerLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	gl := NewGormLogger(zap.New(core), DefaultGormLoggerConfig())
	query := func() (string, int64) { return "UPDATE order_sequences SET last_value = last_value + 1", 1 }

	gl.Trace(context.Background(), time.Now(), query, nil)
	assert.Equal(t, 0, logs.Len())

	gl.Trace(context.Background(), time.Now(), query, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	gl.Trace(context.Background(), time.Now(), query, errors.New("boom"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "UPDATE", entry.ContextMap()["operation"])

	gl.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)

	gl.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), query, errors.New("boom"))
	assert.Equal(t, 2, logs.Len())
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "SELECT", operationFromSQL("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.Equal(t, "SAVEPOINT", operationFromSQL("SAVEPOINT order_insert"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}
