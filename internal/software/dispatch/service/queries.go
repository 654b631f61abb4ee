package service

import (
	"context"

	"ride-dispatch/internal/domain/assignment"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/ports"
)

// GetRide returns the external projection of a ride.
func (service *Service) GetRide(ctx context.Context, rideID string) (ports.RideView, error) {
	var r *ride.Ride
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		r, err = service.rideRepo.GetByID(txCtx, rideID)
		return err
	})
	if err != nil {
		return ports.RideView{}, err
	}

	view := ports.RideView{
		RideID:      r.ID,
		RideNumber:  r.RideNumber,
		PassengerID: r.PassengerID,
		Status:      r.Status.String(),
		Pickup:      r.Pickup,
		Dropoff:     r.Dropoff,
		FareQuote:   r.FareQuote,
		FinalFare:   r.FinalFare,
		RequestedAt: r.RequestedAt,
		CompletedAt: r.CompletedAt,
	}
	if r.DriverID != nil {
		view.DriverID = *r.DriverID
	}
	if r.CancellationReason != nil {
		view.CancellationReason = *r.CancellationReason
	}
	return view, nil
}

// ListOffers returns the full offer history for a ride, oldest first. The
// resolved records double as the dispatch audit trail.
func (service *Service) ListOffers(ctx context.Context, rideID string) ([]ports.OfferView, error) {
	var asgs []*assignment.Assignment
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		asgs, err = service.asgRepo.ListByRide(txCtx, rideID)
		return err
	})
	if err != nil {
		return nil, err
	}

	views := make([]ports.OfferView, 0, len(asgs))
	for _, asg := range asgs {
		views = append(views, ports.OfferView{
			AssignmentID: asg.ID,
			DriverID:     asg.DriverID,
			Status:       asg.Status.String(),
			MatchScore:   asg.MatchScore,
			ReasonCode:   asg.ReasonCode,
			OfferedAt:    asg.CreatedAt,
			ExpiresAt:    asg.ExpiresAt,
			RespondedAt:  asg.RespondedAt,
		})
	}
	return views, nil
}
