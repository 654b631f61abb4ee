package service

import (
	"context"
	"errors"
	"time"

	"ride-dispatch/internal/contracts"
	"ride-dispatch/internal/domain/assignment"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/general/metrics"
	"ride-dispatch/internal/matching"
	"ride-dispatch/internal/offer"
	"ride-dispatch/internal/ports"
)

// runDispatch is the per-ride coordinator loop. Each round queries the live
// pool, ranks it, and walks the ranked list offering the ride to one driver
// at a time. Rounds are separated by the retry backoff; when every round
// comes up empty the ride is cancelled by the system.
func (service *Service) runDispatch(ctx context.Context, rideID string) {
	ctx = service.logger.WithRideID(ctx, rideID)

	for attempt := 0; attempt <= service.cfg.Dispatch.MatchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(service.cfg.Dispatch.RetryBackoff):
			}
		}

		r, ok := service.loadDispatchable(ctx, rideID)
		if !ok {
			return
		}

		now := time.Now().UTC()
		pool, err := service.pool.Nearby(ctx, r.Pickup, service.cfg.Dispatch.SearchRadiusKM,
			service.cfg.Dispatch.MaxCandidates, now)
		if err != nil {
			service.logger.Error(ctx, "dispatch_pool_failed", "Failed to query driver pool", err, nil)
			continue
		}

		excluded := service.bailedDrivers(ctx, rideID)

		candidates := service.ranker.Rank(ctx, matching.Request{Pickup: r.Pickup, Seats: r.Seats}, pool, now)
		if len(candidates) == 0 {
			service.logger.Info(ctx, "dispatch_no_candidates", "No eligible drivers this round", map[string]any{
				"attempt":   attempt + 1,
				"pool_size": len(pool),
			})
			continue
		}

		for _, cand := range candidates {
			if _, bailed := excluded[cand.Driver.DriverID]; bailed {
				continue
			}
			metrics.DispatchAttemptsTotal.Inc()

			done, assigned := service.offerToDriver(ctx, r, cand)
			if assigned || done {
				return
			}

			// the ride may have been cancelled while the offer was out
			r, ok = service.loadDispatchable(ctx, rideID)
			if !ok {
				return
			}
		}
	}

	service.cancelBySystem(ctx, rideID, ride.ReasonNoDriversAvailable)
}

// bailedDrivers returns the drivers who abandoned this ride after accepting
// it. They are never offered the same ride again.
func (service *Service) bailedDrivers(ctx context.Context, rideID string) map[string]struct{} {
	var asgs []*assignment.Assignment
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		asgs, err = service.asgRepo.ListByRide(txCtx, rideID)
		return err
	})
	if err != nil {
		service.logger.Error(ctx, "dispatch_history_failed", "Failed to load assignment history", err, nil)
		return nil
	}

	excluded := make(map[string]struct{})
	for _, asg := range asgs {
		if asg.ReasonCode == assignment.ReasonDriverBailed {
			excluded[asg.DriverID] = struct{}{}
		}
	}
	return excluded
}

// driverHasPendingOffer checks the database for a live offer to the driver.
// The in-process session manager only guards this instance; with several
// dispatchers running the persisted PENDING row is the source of truth.
func (service *Service) driverHasPendingOffer(ctx context.Context, driverID string) bool {
	var pending bool
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		_, err := service.asgRepo.GetPendingByDriver(txCtx, driverID)
		if err != nil {
			if errors.Is(err, ports.ErrNotFound) {
				return nil
			}
			return err
		}
		pending = true
		return nil
	})
	if err != nil {
		service.logger.Error(ctx, "dispatch_pending_check_failed", "Failed to check driver pending offers", err, map[string]any{
			"driver_id": driverID,
		})
		return false
	}
	return pending
}

// loadDispatchable fetches the ride and reports whether it still wants a
// driver. Anything other than REQUESTED ends the loop.
func (service *Service) loadDispatchable(ctx context.Context, rideID string) (*ride.Ride, bool) {
	var r *ride.Ride
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		r, err = service.rideRepo.GetByID(txCtx, rideID)
		return err
	})
	if err != nil {
		service.logger.Error(ctx, "dispatch_load_failed", "Failed to load ride", err, nil)
		return nil, false
	}
	if r.Status != ride.StatusRequested {
		return nil, false
	}
	return r, true
}

// offerToDriver runs one complete offer: persist the PENDING assignment,
// push it to the driver, wait for resolution, and record the outcome.
// assigned reports a successful assignment; done reports that the dispatch
// loop should stop for other reasons (cancellation, shutdown).
func (service *Service) offerToDriver(ctx context.Context, r *ride.Ride, cand matching.Candidate) (done, assigned bool) {
	driverID := cand.Driver.DriverID
	asgID := contracts.NewID("asg")

	session, err := service.offers.Begin(r.ID, asgID, driverID)
	if err != nil {
		// busy with an offer from another ride; skip without penalty
		return false, false
	}
	if service.driverHasPendingOffer(ctx, driverID) {
		// another instance already has an offer out to this driver
		service.offers.Abort(session)
		return false, false
	}

	asg, err := assignment.NewAssignment(asgID, r.ID, driverID, cand.Score, session.ExpiresAt)
	if err == nil {
		err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
			return service.asgRepo.Create(txCtx, asg)
		})
	}
	if err != nil {
		service.offers.Abort(session)
		service.logger.Error(ctx, "offer_create_failed", "Failed to persist assignment", err, map[string]any{
			"driver_id": driverID,
		})
		return false, false
	}

	service.rel.RecordOffered(driverID)
	service.pushOffer(r, cand, asg)
	service.publishOfferEvent(ctx, contracts.EventOfferCreated, "created", contracts.OfferEvent{
		AssignmentID: asgID,
		RideID:       r.ID,
		DriverID:     driverID,
		Status:       asg.Status.String(),
		MatchScore:   cand.Score,
		ExpiresAt:    &asg.ExpiresAt,
	})
	service.logger.Info(ctx, "offer_sent", "Offer pushed to driver", map[string]any{
		"assignment_id": asgID,
		"driver_id":     driverID,
		"match_score":   cand.Score,
		"expires_at":    asg.ExpiresAt,
	})

	outcome := service.offers.Await(ctx, session)

	switch outcome {
	case offer.OutcomeAccepted:
		assigned, done = service.finalizeAccept(ctx, r.ID, asgID, driverID)
		return done, assigned

	case offer.OutcomeDeclined:
		service.rel.RecordDeclined(driverID)
		service.resolveAssignment(ctx, asgID, "declined", (*assignment.Assignment).Decline)
		return false, false

	case offer.OutcomeExpired:
		service.rel.RecordExpired(driverID)
		service.resolveAssignment(ctx, asgID, "expired", (*assignment.Assignment).Expire)
		service.withdrawOffer(driverID, asgID, r.ID, assignment.ReasonOfferTimeout)
		return false, false

	case offer.OutcomeCancelled:
		service.resolveAssignment(ctx, asgID, "reassigned", func(a *assignment.Assignment) error {
			return a.Reassign(assignment.ReasonRideCancelled)
		})
		service.withdrawOffer(driverID, asgID, r.ID, assignment.ReasonRideCancelled)
		return true, false

	default: // OutcomeInterrupted: process shutting down
		service.resolveAssignment(ctx, asgID, "reassigned", func(a *assignment.Assignment) error {
			return a.Reassign(ride.ReasonDispatchInterrupted)
		})
		return true, false
	}
}

// finalizeAccept moves the assignment to ACCEPTED and the ride to
// DRIVER_ASSIGNED in one transaction under the ride's keyed mutex. When the
// ride was cancelled while the driver was deciding, the acceptance loses:
// the assignment resolves REASSIGNED and the loop stops.
func (service *Service) finalizeAccept(ctx context.Context, rideID, asgID, driverID string) (assigned, done bool) {
	var assignedRide *ride.Ride

	service.rideMu.WithLock("ride:"+rideID, func() {
		err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
			asg, err := service.asgRepo.GetByIDForUpdate(txCtx, asgID)
			if err != nil {
				return err
			}
			r, err := service.rideRepo.GetByIDForUpdate(txCtx, rideID)
			if err != nil {
				return err
			}

			if err := r.AssignDriver(driverID); err != nil {
				// ride cancelled mid-offer; resolve the assignment and stop
				if rerr := asg.Reassign(assignment.ReasonRideCancelled); rerr == nil {
					if uerr := service.asgRepo.Update(txCtx, asg); uerr != nil {
						return uerr
					}
				}
				done = true
				return nil
			}

			if err := asg.Accept(); err != nil {
				return err
			}
			if err := service.asgRepo.Update(txCtx, asg); err != nil {
				return err
			}
			if err := service.rideRepo.Update(txCtx, r); err != nil {
				return err
			}
			assignedRide = r
			return nil
		})
		if err != nil {
			service.logger.Error(ctx, "offer_accept_failed", "Failed to finalize acceptance", err, map[string]any{
				"assignment_id": asgID,
				"driver_id":     driverID,
			})
		}
	})

	if assignedRide == nil {
		return false, done
	}

	service.rel.RecordAccepted(driverID)
	metrics.RidesAssignedTotal.Inc()
	service.markDriverAvailability(ctx, driverID, false)

	service.logger.Info(ctx, "driver_assigned", "Driver accepted the ride", map[string]any{
		"assignment_id": asgID,
		"driver_id":     driverID,
	})
	service.publishRideStatus(ctx, contracts.EventRideDriverAssigned, assignedRide)
	service.publishOfferEvent(ctx, contracts.EventOfferResolved, "accepted", contracts.OfferEvent{
		AssignmentID: asgID,
		RideID:       rideID,
		DriverID:     driverID,
		Status:       assignment.StatusAccepted.String(),
	})
	service.notifyPassenger(assignedRide)

	return true, true
}

// resolveAssignment applies a terminal resolution to a persisted assignment.
func (service *Service) resolveAssignment(ctx context.Context, asgID, outcome string, resolve func(*assignment.Assignment) error) {
	var resolved *assignment.Assignment
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		asg, err := service.asgRepo.GetByIDForUpdate(txCtx, asgID)
		if err != nil {
			return err
		}
		if err := resolve(asg); err != nil {
			return err
		}
		if err := service.asgRepo.Update(txCtx, asg); err != nil {
			return err
		}
		resolved = asg
		return nil
	})
	if err != nil {
		service.logger.Error(ctx, "assignment_resolve_failed", "Failed to resolve assignment", err, map[string]any{
			"assignment_id": asgID,
			"outcome":       outcome,
		})
		return
	}

	service.publishOfferEvent(ctx, contracts.EventOfferResolved, outcome, contracts.OfferEvent{
		AssignmentID: resolved.ID,
		RideID:       resolved.RideID,
		DriverID:     resolved.DriverID,
		Status:       resolved.Status.String(),
		ReasonCode:   resolved.ReasonCode,
	})
}

// pushOffer sends the offer payload to the driver's socket.
func (service *Service) pushOffer(r *ride.Ride, cand matching.Candidate, asg *assignment.Assignment) {
	n := service.getNotifier()
	if n == nil {
		return
	}

	msg := contracts.WSDriverRideOffer{
		Type:               "ride_offer",
		AssignmentID:       asg.ID,
		RideID:             r.ID,
		RideNumber:         r.RideNumber,
		Pickup:             contracts.GeoPoint{Lat: r.Pickup.Lat, Lng: r.Pickup.Lng},
		Dropoff:            contracts.GeoPoint{Lat: r.Dropoff.Lat, Lng: r.Dropoff.Lng},
		Seats:              r.Seats,
		DistanceToPickupKM: cand.Driver.Location.DistanceKM(r.Pickup),
		ExpiresAt:          asg.ExpiresAt.Format(time.RFC3339),
		Envelope:           contracts.NewEnvelope("dispatch_service", r.ID),
	}
	if r.FareQuote != nil {
		msg.FareQuote = *r.FareQuote
	}
	_ = n.SendToDriver(asg.DriverID, msg)
}

// withdrawOffer tells the driver the offer is no longer live.
func (service *Service) withdrawOffer(driverID, asgID, rideID, reason string) {
	n := service.getNotifier()
	if n == nil {
		return
	}
	_ = n.SendToDriver(driverID, contracts.WSOfferWithdrawn{
		Type:         "offer_withdrawn",
		AssignmentID: asgID,
		RideID:       rideID,
		Reason:       reason,
		Envelope:     contracts.NewEnvelope("dispatch_service", rideID),
	})
}

// cancelBySystem ends a ride the engine could not serve.
func (service *Service) cancelBySystem(ctx context.Context, rideID, reason string) {
	var cancelled *ride.Ride

	service.rideMu.WithLock("ride:"+rideID, func() {
		err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
			r, err := service.rideRepo.GetByIDForUpdate(txCtx, rideID)
			if err != nil {
				return err
			}
			if err := r.CancelBySystem(reason); err != nil {
				// already terminal; nothing to do
				return nil
			}
			if err := service.rideRepo.Update(txCtx, r); err != nil {
				return err
			}
			cancelled = r
			return nil
		})
		if err != nil {
			service.logger.Error(ctx, "system_cancel_failed", "Failed to cancel ride", err, map[string]any{
				"reason": reason,
			})
		}
	})

	if cancelled == nil {
		return
	}

	metrics.RidesCancelledTotal.WithLabelValues("system").Inc()
	service.logger.Info(ctx, "ride_cancelled_system", "Ride cancelled by the system", map[string]any{
		"reason": reason,
	})
	service.publishRideStatus(ctx, contracts.EventRideCancelled, cancelled)
	service.notifyPassenger(cancelled)
}
