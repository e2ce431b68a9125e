package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gymkey/gymkey/internal/model"
)

// Common errors for checkin repository operations.
var (
	ErrCheckinNotFound = errors.New("checkin not found")
	ErrCheckinExists   = errors.New("checkin id already exists")
	ErrStatusConflict  = errors.New("checkin status changed concurrently")
)

const checkinColumns = `id, user_id, facility_type, date, start_time, duration, total_price, pin_code, payment_reference, status, created_at, updated_at`

// CreateCheckin inserts a new checkin.
// Returns ErrCheckinExists on an id collision.
func (r *Repository) CreateCheckin(ctx context.Context, checkin *model.Checkin) error {
	query := `
		INSERT INTO checkins (` + checkinColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		checkin.ID,
		checkin.UserID,
		checkin.FacilityType,
		checkin.Date,
		checkin.StartTime,
		checkin.Duration,
		checkin.TotalPrice,
		checkin.PinCode,
		checkin.PaymentReference,
		checkin.Status,
		checkin.CreatedAt,
		checkin.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrCheckinExists
		}
		return fmt.Errorf("failed to create checkin: %w", err)
	}

	return nil
}

// GetCheckinByID retrieves a checkin by id without owner scoping.
// Only the payment confirm callback may use this; every user-facing
// lookup goes through GetCheckinForUser.
func (r *Repository) GetCheckinByID(ctx context.Context, id string) (*model.Checkin, error) {
	query := `SELECT ` + checkinColumns + ` FROM checkins WHERE id = $1`

	checkin, err := scanCheckin(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCheckinNotFound
		}
		return nil, fmt.Errorf("failed to get checkin by id: %w", err)
	}

	return checkin, nil
}

// GetCheckinForUser retrieves a checkin scoped by owner.
// A correct id with the wrong owner is indistinguishable from a missing row.
func (r *Repository) GetCheckinForUser(ctx context.Context, id, userID string) (*model.Checkin, error) {
	query := `SELECT ` + checkinColumns + ` FROM checkins WHERE id = $1 AND user_id = $2`

	checkin, err := scanCheckin(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCheckinNotFound
		}
		return nil, fmt.Errorf("failed to get checkin for user: %w", err)
	}

	return checkin, nil
}

// ListCheckinsForUser retrieves a user's checkins, most recent first.
func (r *Repository) ListCheckinsForUser(ctx context.Context, userID string) ([]*model.Checkin, error) {
	query := `
		SELECT ` + checkinColumns + `
		FROM checkins
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkins: %w", err)
	}
	defer rows.Close()

	var checkins []*model.Checkin
	for rows.Next() {
		checkin, err := scanCheckin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkin: %w", err)
		}
		checkins = append(checkins, checkin)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkins: %w", err)
	}

	return checkins, nil
}

// UpdateCheckinStatus performs a conditional status transition.
// The write succeeds only if the stored status still equals expected;
// otherwise ErrStatusConflict is returned and the row is untouched.
// This is the ordering primitive that makes payment confirmation and
// cancellation safe under duplicate callbacks.
func (r *Repository) UpdateCheckinStatus(ctx context.Context, id string, expected, next model.CheckinStatus, update model.StatusUpdate) (*model.Checkin, error) {
	query := `
		UPDATE checkins
		SET status = $3,
		    pin_code = COALESCE($4, pin_code),
		    payment_reference = COALESCE($5, payment_reference),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + checkinColumns

	checkin, err := scanCheckin(r.pool.QueryRow(ctx, query, id, expected, next, update.PinCode, update.PaymentReference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Row missing or status moved on since the caller read it.
			if _, getErr := r.GetCheckinByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("failed to update checkin status: %w", err)
	}

	return checkin, nil
}

// SetPaymentReference stores the gateway transaction id without touching status.
// Written after a successful payment request, before the user is redirected.
func (r *Repository) SetPaymentReference(ctx context.Context, id, reference string) error {
	query := `
		UPDATE checkins
		SET payment_reference = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, reference)
	if err != nil {
		return fmt.Errorf("failed to set payment reference: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrCheckinNotFound
	}

	return nil
}

// scanCheckin scans a single row into a Checkin model.
func scanCheckin(row pgx.Row) (*model.Checkin, error) {
	var checkin model.Checkin
	err := row.Scan(
		&checkin.ID,
		&checkin.UserID,
		&checkin.FacilityType,
		&checkin.Date,
		&checkin.StartTime,
		&checkin.Duration,
		&checkin.TotalPrice,
		&checkin.PinCode,
		&checkin.PaymentReference,
		&checkin.Status,
		&checkin.CreatedAt,
		&checkin.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &checkin, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	// PostgreSQL error code 23505 is unique_violation
	if err == nil {
		return false
	}
	msg := err.Error()
	return containsSubstring(msg, "23505") || containsSubstring(msg, "unique")
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
