package ports

import (
	"context"

	"ride-dispatch/internal/domain/assignment"
	"ride-dispatch/internal/domain/ride"
)

// UnitOfWork runs fn inside a single database transaction. Repositories
// called within fn pick the transaction up from the context.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type RideRepository interface {
	Create(ctx context.Context, r *ride.Ride) error
	GetByID(ctx context.Context, id string) (*ride.Ride, error)
	// GetByIDForUpdate acquires a row lock so concurrent transitions on
	// the same ride serialize at the database.
	GetByIDForUpdate(ctx context.Context, id string) (*ride.Ride, error)
	Update(ctx context.Context, r *ride.Ride) error
	ListActiveByPassenger(ctx context.Context, passengerID string) ([]*ride.Ride, error)
	ListActiveByDriver(ctx context.Context, driverID string) ([]*ride.Ride, error)
	// ListByStatus returns rides currently in the given state, oldest first.
	// The coordinator sweeps REQUESTED rides with it after a restart.
	ListByStatus(ctx context.Context, status ride.Status) ([]*ride.Ride, error)
}

type AssignmentRepository interface {
	Create(ctx context.Context, a *assignment.Assignment) error
	GetByID(ctx context.Context, id string) (*assignment.Assignment, error)
	GetByIDForUpdate(ctx context.Context, id string) (*assignment.Assignment, error)
	Update(ctx context.Context, a *assignment.Assignment) error
	GetPendingByRide(ctx context.Context, rideID string) (*assignment.Assignment, error)
	GetPendingByDriver(ctx context.Context, driverID string) (*assignment.Assignment, error)
	ListByRide(ctx context.Context, rideID string) ([]*assignment.Assignment, error)
}
