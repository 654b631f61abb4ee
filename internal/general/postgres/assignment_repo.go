package postgres

import (
	"context"
	"errors"
	"fmt"

	"ride-dispatch/internal/domain/assignment"
	"ride-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// AssignmentRepo persists dispatch assignments. The assignments table carries
// a partial unique index on (ride_id) WHERE status = 'PENDING', so the
// database itself rejects a second concurrent pending offer for a ride.
type AssignmentRepo struct{}

func NewAssignmentRepo() ports.AssignmentRepository {
	return &AssignmentRepo{}
}

const assignmentColumns = `
	id, ride_id, driver_id, status, match_score, reason_code,
	offered_at, expires_at, responded_at`

func (repo *AssignmentRepo) Create(ctx context.Context, a *assignment.Assignment) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO assignments (
			id, ride_id, driver_id, status, match_score, offered_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		a.ID,
		a.RideID,
		a.DriverID,
		a.Status.String(),
		a.MatchScore,
		a.CreatedAt,
		a.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func (repo *AssignmentRepo) GetByID(ctx context.Context, id string) (*assignment.Assignment, error) {
	return repo.getOne(ctx, `WHERE id = $1`, id, false)
}

func (repo *AssignmentRepo) GetByIDForUpdate(ctx context.Context, id string) (*assignment.Assignment, error) {
	return repo.getOne(ctx, `WHERE id = $1`, id, true)
}

// GetPendingByRide returns the single pending assignment for a ride, or
// ErrNotFound when no offer is outstanding.
func (repo *AssignmentRepo) GetPendingByRide(ctx context.Context, rideID string) (*assignment.Assignment, error) {
	return repo.getOne(ctx, `WHERE ride_id = $1 AND status = 'PENDING'`, rideID, false)
}

// GetPendingByDriver returns the offer the driver is currently holding, if any.
func (repo *AssignmentRepo) GetPendingByDriver(ctx context.Context, driverID string) (*assignment.Assignment, error) {
	return repo.getOne(ctx, `WHERE driver_id = $1 AND status = 'PENDING'`, driverID, false)
}

func (repo *AssignmentRepo) getOne(ctx context.Context, where, arg string, forUpdate bool) (*assignment.Assignment, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + assignmentColumns + ` FROM assignments ` + where
	if forUpdate {
		query += ` FOR UPDATE`
	}

	a, err := scanAssignment(tx.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("assignment: %w", ports.ErrNotFound)
		}
		return nil, fmt.Errorf("query assignment: %w", err)
	}
	return a, nil
}

func (repo *AssignmentRepo) Update(ctx context.Context, a *assignment.Assignment) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE assignments SET
			status = $2,
			reason_code = $3,
			responded_at = $4
		WHERE id = $1
	`,
		a.ID,
		a.Status.String(),
		a.ReasonCode,
		a.RespondedAt,
	)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("assignment %s: %w", a.ID, ports.ErrNotFound)
	}
	return nil
}

// ListByRide returns every offer made for a ride in offer order.
func (repo *AssignmentRepo) ListByRide(ctx context.Context, rideID string) ([]*assignment.Assignment, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments
		WHERE ride_id = $1
		ORDER BY offered_at ASC
	`, rideID)
	if err != nil {
		return nil, fmt.Errorf("query assignments by ride: %w", err)
	}
	defer rows.Close()

	var out []*assignment.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAssignment(row pgx.Row) (*assignment.Assignment, error) {
	var a assignment.Assignment
	var status string
	err := row.Scan(
		&a.ID, &a.RideID, &a.DriverID, &status, &a.MatchScore, &a.ReasonCode,
		&a.CreatedAt, &a.ExpiresAt, &a.RespondedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = assignment.Status(status)
	return &a, nil
}
