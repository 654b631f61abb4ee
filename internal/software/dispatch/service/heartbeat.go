package service

import (
	"context"
	"fmt"
	"time"

	"ride-dispatch/internal/contracts"
	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/ports"
)

// SendHeartbeat records one driver location/availability report. With a
// heartbeat sink wired the report goes through Kafka and the ingest worker
// applies it; otherwise it lands in the availability store directly.
func (service *Service) SendHeartbeat(ctx context.Context, in ports.HeartbeatInput) error {
	status := driver.StatusUnavailable
	if in.Available {
		status = driver.StatusAvailable
	}
	capacity := in.Capacity
	if capacity == 0 {
		capacity = 1
	}

	now := time.Now().UTC()
	snap, err := driver.NewAvailability(in.DriverID, status, capacity, in.Location, now)
	if err != nil {
		return fmt.Errorf("%w: %s", ports.ErrValidation, err)
	}

	if service.heartbeats != nil {
		return service.heartbeats.Publish(ctx, contracts.HeartbeatMessage{
			DriverID:  snap.DriverID,
			Status:    snap.Status.String(),
			Capacity:  snap.Capacity,
			Location:  contracts.GeoPoint{Lat: snap.Location.Lat, Lng: snap.Location.Lng},
			Timestamp: snap.LastHeartbeat,
		})
	}
	return service.pool.Upsert(ctx, snap)
}
