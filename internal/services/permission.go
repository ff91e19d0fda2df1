package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dimitrije/querydraft/internal/database"
	"github.com/dimitrije/querydraft/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PermissionService answers capability checks against the users table.
type PermissionService struct {
	db *database.DB
}

func NewPermissionService(db *database.DB) *PermissionService {
	return &PermissionService{db: db}
}

func (s *PermissionService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	var capabilities string
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, email, name, role, status, capabilities, created_at, updated_at
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.Status, &capabilities, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.Capabilities = models.ParseCapabilities(capabilities)
	return &user, nil
}

// HasPermission reports whether an active user holds capability. Unknown
// users hold nothing.
func (s *PermissionService) HasPermission(ctx context.Context, userID uuid.UUID, capability string) (bool, error) {
	user, err := s.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.Has(capability), nil
}

// Grant adds capability to the user with the given email.
func (s *PermissionService) Grant(ctx context.Context, email, capability string) error {
	if !isKnownCapability(capability) {
		return fmt.Errorf("%w: unknown capability %q", ErrValidation, capability)
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID uuid.UUID
	var raw string
	err = tx.QueryRow(ctx, `
		SELECT id, capabilities FROM users WHERE email = $1 FOR UPDATE
	`, email).Scan(&userID, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	current := models.ParseCapabilities(raw)
	if slices.Contains(current, capability) {
		return tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET capabilities = $1, updated_at = NOW()
		WHERE id = $2
	`, strings.Join(append(current, capability), ","), userID)
	if err != nil {
		return fmt.Errorf("failed to update capabilities: %w", err)
	}

	return tx.Commit(ctx)
}

func isKnownCapability(capability string) bool {
	return slices.Contains(models.DefaultCapabilities[models.UserRoleAdmin], capability)
}
