package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"ride-dispatch/internal/contracts"
	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/ride"
)

// Fare quote model: base plus per-kilometer and per-minute rates, scaled by
// the surge multiplier carried on the request. Duration is estimated from
// straight-line distance at city average speed.
const (
	baseFare      = 500.0
	perKMRate     = 120.0
	perMinRate    = 40.0
	quoteSpeedKMH = 30.0
)

// generateRideNumber returns an ID like RIDE_YYYYMMDD_HHMMSS_XXX where XXX
// is a millisecond fragment to reduce collisions.
func generateRideNumber() string {
	now := time.Now().UTC()
	return fmt.Sprintf("RIDE_%04d%02d%02d_%02d%02d%02d_%03d",
		now.Year(), int(now.Month()), now.Day(),
		now.Hour(), now.Minute(), now.Second(),
		now.Nanosecond()/1e6,
	)
}

func computeFareQuote(pickup, dropoff geo.Location, surge float64) float64 {
	distKM := pickup.DistanceKM(dropoff)
	minutes := distKM / quoteSpeedKMH * 60
	quote := (baseFare + perKMRate*distKM + perMinRate*minutes) * surge
	return math.Round(quote*100) / 100
}

// publishRideStatus emits a ride lifecycle event with routing key
// ride.status.{status}. Publish failures are logged, never surfaced; the
// event stream is best-effort while the database is the source of truth.
func (service *Service) publishRideStatus(ctx context.Context, eventType string, r *ride.Ride) {
	if service.pub == nil {
		return
	}

	msg := contracts.RideStatusEvent{
		Type:       eventType,
		RideID:     r.ID,
		RideNumber: r.RideNumber,
		Status:     r.Status.String(),
		FinalFare:  r.FinalFare,
		Envelope:   contracts.NewEnvelope("dispatch_service", r.ID),
	}
	if r.DriverID != nil {
		msg.DriverID = *r.DriverID
	}
	if r.CancellationReason != nil {
		msg.CancellationReason = *r.CancellationReason
	}

	routingKey := contracts.RouteRideStatusPrefix + strings.ToLower(r.Status.String())
	body, err := json.Marshal(msg)
	if err == nil {
		err = service.pub.Publish(contracts.ExchangeRideTopic, routingKey, body)
	}
	if err != nil {
		service.logger.Error(ctx, "ride_status_publish_failed", "Failed to publish ride status", err, map[string]any{
			"ride_id":     r.ID,
			"routing_key": routingKey,
		})
		return
	}
	service.logger.Debug(ctx, "ride_status_published", "Published ride status", map[string]any{
		"ride_id":     r.ID,
		"routing_key": routingKey,
	})
}

// publishOfferEvent emits an offer audit event with routing key
// offer.{outcome}, e.g. offer.created or offer.declined.
func (service *Service) publishOfferEvent(ctx context.Context, eventType, outcome string, msg contracts.OfferEvent) {
	if service.pub == nil {
		return
	}

	msg.Type = eventType
	msg.Envelope = contracts.NewEnvelope("dispatch_service", msg.RideID)

	routingKey := contracts.RouteOfferPrefix + strings.ToLower(outcome)
	body, err := json.Marshal(msg)
	if err == nil {
		err = service.pub.Publish(contracts.ExchangeOfferTopic, routingKey, body)
	}
	if err != nil {
		service.logger.Error(ctx, "offer_event_publish_failed", "Failed to publish offer event", err, map[string]any{
			"assignment_id": msg.AssignmentID,
			"routing_key":   routingKey,
		})
	}
}

// notifyPassenger pushes a lifecycle update over the passenger's socket.
func (service *Service) notifyPassenger(r *ride.Ride) {
	n := service.getNotifier()
	if n == nil {
		return
	}

	msg := contracts.WSPassengerRideStatus{
		Type:       "ride_status_update",
		RideID:     r.ID,
		RideNumber: r.RideNumber,
		Status:     r.Status.String(),
		Envelope:   contracts.NewEnvelope("dispatch_service", r.ID),
	}
	if r.DriverID != nil {
		msg.DriverID = *r.DriverID
	}
	if r.CancellationReason != nil {
		msg.CancellationReason = *r.CancellationReason
	}
	_ = n.NotifyPassenger(r.PassengerID, msg)
}

// markDriverAvailability flips the stored snapshot for a driver, keeping the
// matching pool honest while the driver is on a ride.
func (service *Service) markDriverAvailability(ctx context.Context, driverID string, available bool) {
	snap, ok, err := service.pool.Get(ctx, driverID)
	if err != nil || !ok {
		return
	}
	if available {
		snap.Status = driver.StatusAvailable
	} else {
		snap.Status = driver.StatusUnavailable
	}
	if err := service.pool.Upsert(ctx, snap); err != nil {
		service.logger.Error(ctx, "pool_update_failed", "Failed to update driver availability", err,
			map[string]any{"driver_id": driverID})
	}
}
