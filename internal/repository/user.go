package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gymkey/gymkey/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrExternalIDUsed = errors.New("external id already registered")
)

// CreateUser inserts a new user.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, external_id, display_name, picture_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.ExternalID,
		user.DisplayName,
		user.PictureURL,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrExternalIDUsed
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by id.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `
		SELECT id, external_id, display_name, picture_url, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.getUser(ctx, query, id)
}

// GetUserByExternalID retrieves a user by the identity provider's id.
func (r *Repository) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	query := `
		SELECT id, external_id, display_name, picture_url, created_at, updated_at
		FROM users
		WHERE external_id = $1
	`
	return r.getUser(ctx, query, externalID)
}

// GetOrCreateUser finds the user for an external identity, creating it on
// first resolution and refreshing the profile fields on every later one.
func (r *Repository) GetOrCreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	existing, err := r.GetUserByExternalID(ctx, user.ExternalID)
	if err == nil {
		return r.UpdateUserProfile(ctx, existing.ID, user.DisplayName, user.PictureURL)
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if err := r.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent first resolution.
		if errors.Is(err, ErrExternalIDUsed) {
			return r.GetUserByExternalID(ctx, user.ExternalID)
		}
		return nil, err
	}

	return user, nil
}

// UpdateUserProfile refreshes the mutable profile fields.
func (r *Repository) UpdateUserProfile(ctx context.Context, id, displayName string, pictureURL *string) (*model.User, error) {
	query := `
		UPDATE users
		SET display_name = $2, picture_url = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, external_id, display_name, picture_url, created_at, updated_at
	`

	var user model.User
	err := r.pool.QueryRow(ctx, query, id, displayName, pictureURL).Scan(
		&user.ID,
		&user.ExternalID,
		&user.DisplayName,
		&user.PictureURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user profile: %w", err)
	}

	return &user, nil
}

func (r *Repository) getUser(ctx context.Context, query string, arg any) (*model.User, error) {
	var user model.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.ExternalID,
		&user.DisplayName,
		&user.PictureURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
