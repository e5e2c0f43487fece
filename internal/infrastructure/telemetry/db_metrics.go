package telemetry

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AttrPoolState distinguishes in-use and idle connections
var AttrPoolState = attribute.Key("db.pool.state")

// RegisterPoolMetrics observes the connection pool of db on every collection.
// Unregister the returned registration before closing db.
func RegisterPoolMetrics(meter metric.Meter, db *sql.DB) (metric.Registration, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	conns, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Open database connections by state"),
		metric.WithUnit("{connections}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create db_pool_connections: %w", err)
	}
	maxOpen, err := meter.Int64ObservableGauge("db_pool_max_open",
		metric.WithDescription("Configured maximum open connections"),
		metric.WithUnit("{connections}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create db_pool_max_open: %w", err)
	}
	waits, err := meter.Int64ObservableCounter("db_pool_wait_total",
		metric.WithDescription("Connections waited for because the pool was exhausted"),
		metric.WithUnit("{waits}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create db_pool_wait_total: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := db.Stats()
		o.ObserveInt64(conns, int64(stats.InUse), metric.WithAttributes(AttrPoolState.String("in_use")))
		o.ObserveInt64(conns, int64(stats.Idle), metric.WithAttributes(AttrPoolState.String("idle")))
		o.ObserveInt64(maxOpen, int64(stats.MaxOpenConnections))
		o.ObserveInt64(waits, stats.WaitCount)
		return nil
	}, conns, maxOpen, waits)
}
