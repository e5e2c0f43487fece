package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls the otelgorm plugin
type DBTracingConfig struct {
	Enabled bool
	// IncludeVariables puts bound query values into spans; keep it off outside development
	IncludeVariables bool
	SlowThreshold    time.Duration
}

type queryStartKey struct{}

// RegisterDBTracing installs otelgorm and a callback that annotates spans
// with affected rows, errors and a slow-query marker
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = 200 * time.Millisecond
	}

	opts := []otelgorm.Option{otelgorm.WithDBName("postgresql")}
	if !cfg.IncludeVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	start := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	finish := func(tx *gorm.DB) { annotateSpan(tx, cfg.SlowThreshold) }

	cb := db.Callback()
	if err := errors.Join(
		cb.Create().Before("gorm:create").Register("storyvoice:trace_start_create", start),
		cb.Query().Before("gorm:query").Register("storyvoice:trace_start_query", start),
		cb.Update().Before("gorm:update").Register("storyvoice:trace_start_update", start),
		cb.Delete().Before("gorm:delete").Register("storyvoice:trace_start_delete", start),
		cb.Row().Before("gorm:row").Register("storyvoice:trace_start_row", start),
		cb.Raw().Before("gorm:raw").Register("storyvoice:trace_start_raw", start),
		cb.Create().After("gorm:create").Register("storyvoice:trace_end_create", finish),
		cb.Query().After("gorm:query").Register("storyvoice:trace_end_query", finish),
		cb.Update().After("gorm:update").Register("storyvoice:trace_end_update", finish),
		cb.Delete().After("gorm:delete").Register("storyvoice:trace_end_delete", finish),
		cb.Row().After("gorm:row").Register("storyvoice:trace_end_row", finish),
		cb.Raw().After("gorm:raw").Register("storyvoice:trace_end_raw", finish),
	); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("include_variables", cfg.IncludeVariables),
		zap.Duration("slow_threshold", cfg.SlowThreshold))
	return nil
}

func annotateSpan(tx *gorm.DB, slowThreshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, tx.Error.Error())
		span.RecordError(tx.Error)
	}
	if started, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		if elapsed := time.Since(started); elapsed > slowThreshold {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()))
		}
	}
}
