package service

import (
	"context"
	"errors"
	"time"

	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/ports"
)

// RunBackgroundWorkers starts the requeue sweeper and blocks until ctx is
// done. The sweeper picks up REQUESTED rides with no live dispatch loop in
// this process, which is how dispatch resumes after a restart and how
// requeued rides survive a crashed loop.
func (service *Service) RunBackgroundWorkers(ctx context.Context) {
	interval := service.cfg.Dispatch.RetryBackoff
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// one eager pass so restarts recover promptly
	service.sweepRequested(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			service.sweepRequested(ctx)
		}
	}
}

func (service *Service) sweepRequested(ctx context.Context) {
	var stuck []*ride.Ride
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		stuck, err = service.rideRepo.ListByStatus(txCtx, ride.StatusRequested)
		return err
	})
	if err != nil {
		service.logger.Error(ctx, "requeue_sweep_failed", "Failed to list open ride requests", err, nil)
		return
	}

	for _, r := range stuck {
		if _, running := service.dispatching.Load(r.ID); running {
			continue
		}
		service.resolveOrphanedPending(ctx, r.ID)
		service.logger.Info(ctx, "requeue_sweep_pickup", "Resuming dispatch for open ride", map[string]any{
			"ride_id":     r.ID,
			"ride_number": r.RideNumber,
		})
		service.startDispatch(context.WithoutCancel(ctx), r.ID)
	}
}

// resolveOrphanedPending clears a PENDING assignment whose dispatch loop died
// with the process. The row would otherwise block the one-pending-per-ride
// constraint when the restarted loop creates its next offer.
func (service *Service) resolveOrphanedPending(ctx context.Context, rideID string) {
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		asg, err := service.asgRepo.GetPendingByRide(txCtx, rideID)
		if err != nil {
			if errors.Is(err, ports.ErrNotFound) {
				return nil
			}
			return err
		}
		if err := asg.Reassign(ride.ReasonDispatchInterrupted); err != nil {
			return err
		}
		service.logger.Info(txCtx, "requeue_sweep_orphan", "Resolving pending offer with no live loop", map[string]any{
			"ride_id":       rideID,
			"assignment_id": asg.ID,
			"driver_id":     asg.DriverID,
		})
		return service.asgRepo.Update(txCtx, asg)
	})
	if err != nil {
		service.logger.Error(ctx, "requeue_sweep_orphan_failed", "Failed to resolve orphaned pending offer", err, map[string]any{
			"ride_id": rideID,
		})
	}
}
