package service

import (
	"context"
	"fmt"

	"ride-dispatch/internal/contracts"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/general/metrics"
	"ride-dispatch/internal/ports"
)

// RequestRide opens a ride in REQUESTED state, quotes the fare, and kicks
// off the dispatch loop in the background. The caller gets the quote back
// immediately; driver assignment arrives over the passenger's socket and the
// event stream.
func (service *Service) RequestRide(ctx context.Context, in ports.RequestRideInput) (ports.RequestRideResult, error) {
	surge := in.SurgeMultiplier
	if surge == 0 {
		surge = 1.0
	}

	r, err := ride.NewRide(generateRideNumber(), in.PassengerID, in.Pickup, in.Dropoff, in.Seats, surge)
	if err != nil {
		return ports.RequestRideResult{}, fmt.Errorf("%w: %s", ports.ErrValidation, err)
	}

	quote := computeFareQuote(in.Pickup, in.Dropoff, surge)
	r.FareQuote = &quote

	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.rideRepo.Create(txCtx, r)
	})
	if err != nil {
		service.logger.Error(ctx, "ride_request_failed", "Failed to persist ride request", err, map[string]any{
			"passenger_id": in.PassengerID,
			"ride_number":  r.RideNumber,
		})
		return ports.RequestRideResult{}, err
	}

	ctx = service.logger.WithRideID(ctx, r.ID)
	service.logger.Info(ctx, "ride_requested", "Ride request accepted", map[string]any{
		"passenger_id": in.PassengerID,
		"ride_number":  r.RideNumber,
		"seats":        in.Seats,
		"fare_quote":   quote,
	})

	service.publishRideStatus(ctx, contracts.EventRideRequested, r)

	// the loop outlives the HTTP request
	service.startDispatch(context.WithoutCancel(ctx), r.ID)

	return ports.RequestRideResult{
		RideID:              r.ID,
		RideNumber:          r.RideNumber,
		Status:              r.Status.String(),
		FareQuote:           quote,
		EstimatedDistanceKM: in.Pickup.DistanceKM(in.Dropoff),
	}, nil
}

// startDispatch spawns the dispatch loop unless one is already running for
// this ride in this process.
func (service *Service) startDispatch(ctx context.Context, rideID string) {
	if _, loaded := service.dispatching.LoadOrStore(rideID, struct{}{}); loaded {
		return
	}

	metrics.ActiveDispatches.Inc()
	go func() {
		defer func() {
			service.dispatching.Delete(rideID)
			metrics.ActiveDispatches.Dec()
		}()
		service.runDispatch(ctx, rideID)
	}()
}
