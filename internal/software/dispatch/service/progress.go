package service

import (
	"context"
	"fmt"
	"time"

	"ride-dispatch/internal/contracts"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/ports"
)

// Progress event names drivers report.
const (
	ProgressEnroutePickup    = "enroute_pickup"
	ProgressPassengerOnboard = "passenger_onboard"
	ProgressCompleted        = "completed"
)

// ReportProgress advances an active ride along its lifecycle on behalf of
// the assigned driver. Transitions run under the ride's keyed mutex and a
// row lock, so two concurrent reports serialize and the loser gets a state
// conflict from the domain entity.
func (service *Service) ReportProgress(ctx context.Context, in ports.ProgressInput) (ports.ProgressResult, error) {
	ctx = service.logger.WithRideID(ctx, in.RideID)

	var (
		updated   *ride.Ride
		eventType string
	)

	var txErr error
	service.rideMu.WithLock("ride:"+in.RideID, func() {
		txErr = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
			r, err := service.rideRepo.GetByIDForUpdate(txCtx, in.RideID)
			if err != nil {
				return err
			}
			if r.DriverID == nil || *r.DriverID != in.DriverID {
				return fmt.Errorf("%w: ride is not assigned to driver %s", ports.ErrValidation, in.DriverID)
			}

			switch in.Event {
			case ProgressEnroutePickup:
				err = r.MarkEnroutePickup()
				eventType = contracts.EventRideEnroutePickup
			case ProgressPassengerOnboard:
				err = r.MarkPassengerOnboard()
				eventType = contracts.EventRideOnboard
			case ProgressCompleted:
				if in.FinalFare < 0 {
					return fmt.Errorf("%w: final fare must not be negative", ports.ErrValidation)
				}
				fare := in.FinalFare
				if fare == 0 && r.FareQuote != nil {
					fare = *r.FareQuote
				}
				err = r.Complete(fare)
				eventType = contracts.EventRideCompleted
			default:
				return fmt.Errorf("%w: unknown progress event %q", ports.ErrValidation, in.Event)
			}
			if err != nil {
				return err
			}

			if err := service.rideRepo.Update(txCtx, r); err != nil {
				return err
			}
			updated = r
			return nil
		})
	})
	if txErr != nil {
		return ports.ProgressResult{}, txErr
	}

	service.logger.Info(ctx, "ride_progress", "Ride advanced", map[string]any{
		"event":     in.Event,
		"driver_id": in.DriverID,
		"status":    updated.Status.String(),
	})

	service.publishRideStatus(ctx, eventType, updated)
	service.notifyPassenger(updated)

	if updated.Status == ride.StatusCompleted {
		service.rel.RecordCompleted(in.DriverID, time.Now().UTC())
		service.markDriverAvailability(ctx, in.DriverID, true)
	}

	res := ports.ProgressResult{
		RideID: updated.ID,
		Status: updated.Status.String(),
	}
	if updated.FinalFare != nil {
		res.FinalFare = *updated.FinalFare
	}
	return res, nil
}
