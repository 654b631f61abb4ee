// Package availability tracks the live driver pool: last known location,
// capacity and availability flag per driver, fed by heartbeats. Snapshots
// older than the staleness window are invisible to matching.
package availability

import (
	"context"
	"time"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/geo"
)

// Store is the read/write boundary over the live driver pool.
type Store interface {
	// Upsert records the latest heartbeat snapshot for a driver.
	Upsert(ctx context.Context, snap driver.Availability) error
	// Remove forgets a driver entirely (explicit offline).
	Remove(ctx context.Context, driverID string) error
	// Get returns the latest snapshot regardless of freshness.
	Get(ctx context.Context, driverID string) (driver.Availability, bool, error)
	// Nearby returns fresh AVAILABLE drivers within radiusKM of center,
	// closest first, at most limit entries.
	Nearby(ctx context.Context, center geo.Location, radiusKM float64, limit int, now time.Time) ([]driver.Availability, error)
}
