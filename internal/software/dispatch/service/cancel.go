package service

import (
	"context"
	"fmt"
	"time"

	"ride-dispatch/internal/contracts"
	"ride-dispatch/internal/domain/assignment"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/domain/user"
	"ride-dispatch/internal/general/metrics"
	"ride-dispatch/internal/ports"
)

// CancelRide routes a cancellation by actor. Passengers may cancel until the
// ride is onboard. A driver bailing before pickup sends the ride back to
// REQUESTED and dispatch starts over; after pickup the cancellation is
// terminal. Admin cancellation is the system path.
func (service *Service) CancelRide(ctx context.Context, in ports.CancelRideInput) (ports.CancelRideResult, error) {
	ctx = service.logger.WithRideID(ctx, in.RideID)

	role, err := user.ParseRole(in.Role)
	if err != nil {
		return ports.CancelRideResult{}, fmt.Errorf("%w: %s", ports.ErrValidation, err)
	}

	var (
		cancelled *ride.Ride
		requeued  bool
	)

	var txErr error
	service.rideMu.WithLock("ride:"+in.RideID, func() {
		txErr = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
			r, err := service.rideRepo.GetByIDForUpdate(txCtx, in.RideID)
			if err != nil {
				return err
			}
			hadDriver := r.DriverID != nil
			bailReason := assignment.ReasonRideCancelled

			switch role {
			case user.RolePassenger:
				if r.PassengerID != in.ActorID {
					return fmt.Errorf("%w: ride belongs to another passenger", ports.ErrValidation)
				}
				err = r.CancelByPassenger(in.Reason)

			case user.RoleDriver:
				if r.DriverID == nil || *r.DriverID != in.ActorID {
					return fmt.Errorf("%w: ride is not assigned to driver %s", ports.ErrValidation, in.ActorID)
				}
				bailReason = assignment.ReasonDriverBailed
				requeued, err = r.CancelByDriver(in.Reason)

			default: // admin
				err = r.CancelBySystem(in.Reason)
			}
			if err != nil {
				return err
			}

			// resolve the accepted assignment, if the ride had one
			if hadDriver {
				if rerr := service.reassignAccepted(txCtx, in.RideID, bailReason); rerr != nil {
					return rerr
				}
			}

			if err := service.rideRepo.Update(txCtx, r); err != nil {
				return err
			}
			cancelled = r
			return nil
		})
	})
	if txErr != nil {
		return ports.CancelRideResult{}, txErr
	}

	// abort any in-flight offer; the dispatch loop resolves its assignment
	service.offers.CancelRide(in.RideID)

	res := ports.CancelRideResult{
		RideID:   cancelled.ID,
		Status:   cancelled.Status.String(),
		Requeued: requeued,
	}

	if requeued {
		now := time.Now().UTC()
		res.RequeuedAt = now.Format(time.RFC3339)
		service.logger.Info(ctx, "ride_requeued", "Driver bailed, ride returned to matching", map[string]any{
			"driver_id": in.ActorID,
		})
		service.publishRideStatus(ctx, contracts.EventRideRequested, cancelled)
		service.notifyPassenger(cancelled)
		service.markDriverAvailability(ctx, in.ActorID, true)
		service.startDispatch(context.WithoutCancel(ctx), cancelled.ID)
		return res, nil
	}

	metrics.RidesCancelledTotal.WithLabelValues(role.String()).Inc()
	service.logger.Info(ctx, "ride_cancelled", "Ride cancelled", map[string]any{
		"actor_id": in.ActorID,
		"role":     role.String(),
		"status":   cancelled.Status.String(),
	})
	service.publishRideStatus(ctx, contracts.EventRideCancelled, cancelled)
	service.notifyPassenger(cancelled)

	// a driver released by a passenger or system cancel is matchable again
	if cancelled.DriverID != nil && role != user.RoleDriver {
		service.markDriverAvailability(ctx, *cancelled.DriverID, true)
	}

	return res, nil
}

// reassignAccepted resolves the ride's ACCEPTED assignment as REASSIGNED.
func (service *Service) reassignAccepted(txCtx context.Context, rideID, reason string) error {
	asgs, err := service.asgRepo.ListByRide(txCtx, rideID)
	if err != nil {
		return err
	}
	for _, asg := range asgs {
		if asg.Status != assignment.StatusAccepted {
			continue
		}
		if err := asg.Reassign(reason); err != nil {
			return err
		}
		if err := service.asgRepo.Update(txCtx, asg); err != nil {
			return err
		}
	}
	return nil
}
