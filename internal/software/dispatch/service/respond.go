package service

import (
	"context"
	"errors"
	"fmt"

	"ride-dispatch/internal/domain/assignment"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/offer"
	"ride-dispatch/internal/ports"
)

// RespondToOffer routes a driver's accept/decline into the waiting offer
// session. The dispatch loop owns the actual state writes; this call only
// delivers the answer. A response that arrives after the offer resolved is a
// state conflict, which is also what an accept on an expired offer gets.
func (service *Service) RespondToOffer(ctx context.Context, in ports.OfferResponseInput) (ports.OfferResponseResult, error) {
	if in.AssignmentID == "" {
		return ports.OfferResponseResult{}, fmt.Errorf("%w: assignment id is required", ports.ErrValidation)
	}

	rideID, err := service.offers.Respond(in.AssignmentID, in.DriverID, in.Accept)
	if err != nil {
		switch {
		case errors.Is(err, offer.ErrNoPendingOffer):
			// the offer already resolved; the answer changes nothing but
			// the driver's lateness still counts against them
			service.rel.RecordLate(in.DriverID)
			service.logger.Info(ctx, "offer_response_late", "Response for a resolved or unknown offer", map[string]any{
				"assignment_id": in.AssignmentID,
				"driver_id":     in.DriverID,
			})
			return ports.OfferResponseResult{}, fmt.Errorf("offer %s: %w", in.AssignmentID, ride.ErrConflictingState)
		case errors.Is(err, offer.ErrWrongDriver):
			return ports.OfferResponseResult{}, fmt.Errorf("%w: offer belongs to another driver", ports.ErrValidation)
		default:
			return ports.OfferResponseResult{}, err
		}
	}

	status := assignment.StatusDeclined
	if in.Accept {
		status = assignment.StatusAccepted
	}
	service.logger.Info(service.logger.WithRideID(ctx, rideID), "offer_response_received", "Driver responded to offer", map[string]any{
		"assignment_id": in.AssignmentID,
		"driver_id":     in.DriverID,
		"accepted":      in.Accept,
	})

	return ports.OfferResponseResult{
		AssignmentID: in.AssignmentID,
		RideID:       rideID,
		Status:       status.String(),
	}, nil
}
