package postgres

import (
	"context"
	"errors"
	"fmt"

	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// RideRepo persists rides using pgx and plain SQL. All methods must run
// inside a UnitOfWork transaction.
type RideRepo struct{}

func NewRideRepo() ports.RideRepository {
	return &RideRepo{}
}

const rideColumns = `
	id, ride_number, passenger_id, driver_id, status, seats, surge_multiplier,
	pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, fare_quote, final_fare,
	requested_at, assigned_at, enroute_at, onboard_at, completed_at,
	cancelled_at, cancellation_reason, created_at, updated_at`

// Create inserts a new ride row. The database generates the id.
func (repo *RideRepo) Create(ctx context.Context, r *ride.Ride) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO rides (
			ride_number, passenger_id, status, seats, surge_multiplier,
			pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			fare_quote, requested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`,
		r.RideNumber,
		r.PassengerID,
		r.Status.String(),
		r.Seats,
		r.SurgeMultiplier,
		r.Pickup.Lat, r.Pickup.Lng,
		r.Dropoff.Lat, r.Dropoff.Lng,
		r.FareQuote,
		r.RequestedAt,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	return nil
}

// GetByID fetches a ride by primary key.
func (repo *RideRepo) GetByID(ctx context.Context, id string) (*ride.Ride, error) {
	return repo.getOne(ctx, id, false)
}

// GetByIDForUpdate fetches a ride and holds a row lock until the enclosing
// transaction ends, serializing concurrent transitions on the same ride.
func (repo *RideRepo) GetByIDForUpdate(ctx context.Context, id string) (*ride.Ride, error) {
	return repo.getOne(ctx, id, true)
}

func (repo *RideRepo) getOne(ctx context.Context, id string, forUpdate bool) (*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	r, err := scanRide(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ride %s: %w", id, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("query ride: %w", err)
	}
	return r, nil
}

// Update writes every mutable column back. Callers mutate the entity through
// its transition methods first, holding the row lock from GetByIDForUpdate.
func (repo *RideRepo) Update(ctx context.Context, r *ride.Ride) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides SET
			driver_id = $2,
			status = $3,
			fare_quote = $4,
			final_fare = $5,
			assigned_at = $6,
			enroute_at = $7,
			onboard_at = $8,
			completed_at = $9,
			cancelled_at = $10,
			cancellation_reason = $11,
			updated_at = now()
		WHERE id = $1
	`,
		r.ID,
		r.DriverID,
		r.Status.String(),
		r.FareQuote,
		r.FinalFare,
		r.AssignedAt,
		r.EnrouteAt,
		r.OnboardAt,
		r.CompletedAt,
		r.CancelledAt,
		r.CancellationReason,
	)
	if err != nil {
		return fmt.Errorf("update ride: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ride %s: %w", r.ID, ports.ErrNotFound)
	}
	return nil
}

// ListActiveByPassenger returns the passenger's non-terminal rides, newest first.
func (repo *RideRepo) ListActiveByPassenger(ctx context.Context, passengerID string) ([]*ride.Ride, error) {
	return repo.listActive(ctx, "passenger_id", passengerID)
}

// ListActiveByDriver returns the driver's non-terminal rides, newest first.
func (repo *RideRepo) ListActiveByDriver(ctx context.Context, driverID string) ([]*ride.Ride, error) {
	return repo.listActive(ctx, "driver_id", driverID)
}

func (repo *RideRepo) listActive(ctx context.Context, column, actorID string) ([]*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE `+column+` = $1
		  AND status IN ('REQUESTED', 'DRIVER_ASSIGNED', 'ENROUTE_PICKUP', 'PASSENGER_ONBOARD')
		ORDER BY created_at DESC
	`, actorID)
	if err != nil {
		return nil, fmt.Errorf("query active rides: %w", err)
	}
	defer rows.Close()
	return collectRides(rows)
}

// ListByStatus returns rides in the given state, oldest first.
func (repo *RideRepo) ListByStatus(ctx context.Context, status ride.Status) ([]*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE status = $1
		ORDER BY created_at ASC
	`, status.String())
	if err != nil {
		return nil, fmt.Errorf("query rides by status: %w", err)
	}
	defer rows.Close()
	return collectRides(rows)
}

func collectRides(rows pgx.Rows) ([]*ride.Ride, error) {
	var out []*ride.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRide(row pgx.Row) (*ride.Ride, error) {
	var r ride.Ride
	var status string
	err := row.Scan(
		&r.ID, &r.RideNumber, &r.PassengerID, &r.DriverID, &status, &r.Seats, &r.SurgeMultiplier,
		&r.Pickup.Lat, &r.Pickup.Lng, &r.Dropoff.Lat, &r.Dropoff.Lng, &r.FareQuote, &r.FinalFare,
		&r.RequestedAt, &r.AssignedAt, &r.EnrouteAt, &r.OnboardAt, &r.CompletedAt,
		&r.CancelledAt, &r.CancellationReason, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = ride.Status(status)
	return &r, nil
}
