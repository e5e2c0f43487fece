package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db := newSQLite(t)
	require.NoError(t, RegisterDBTracing(db, DBTracingConfig{Enabled: false}, zap.NewNop()))
	assert.Nil(t, db.Callback().Query().Get("storyvoice:trace_end_query"))
}

func TestRegisterDBTracing_Enabled(t *testing.T) {
	db := newSQLite(t)
	require.NoError(t, RegisterDBTracing(db, DBTracingConfig{Enabled: true}, zap.NewNop()))
	assert.NotNil(t, db.Callback().Query().Get("storyvoice:trace_end_query"))
	assert.NotNil(t, db.Callback().Create().Get("storyvoice:trace_start_create"))
}

func TestAnnotateSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ctx, span := tp.Tracer("test").Start(context.Background(), "query")

	db := newSQLite(t)
	tx := db.Session(&gorm.Session{})
	tx.Statement.Context = context.WithValue(ctx, queryStartKey{}, time.Now().Add(-time.Second))
	tx.Statement.Table = "usage_records"
	tx.Statement.RowsAffected = 1
	tx.Error = errors.New("deadlock detected")

	annotateSpan(tx, 100*time.Millisecond)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	attrs := attribute.NewSet(ended[0].Attributes()...)
	table, _ := attrs.Value("db.sql.table")
	assert.Equal(t, "usage_records", table.AsString())
	slow, _ := attrs.Value("db.slow_query")
	assert.True(t, slow.AsBool())
}

func TestRegisterPoolMetrics(t *testing.T) {
	reader, provider := newTestMeter(t)
	db := newSQLite(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	reg, err := RegisterPoolMetrics(provider.Meter("db"), sqlDB)
	require.NoError(t, err)
	defer func() { _ = reg.Unregister() }()

	got := collect(t, reader)
	assert.Contains(t, got, "db_pool_connections")
	assert.Contains(t, got, "db_pool_max_open")
	assert.Contains(t, got, "db_pool_wait_total")

	_, err = RegisterPoolMetrics(nil, sqlDB)
	assert.ErrorIs(t, err, ErrMeterNil)
}
