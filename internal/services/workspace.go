package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dimitrije/querydraft/internal/database"
	"github.com/dimitrije/querydraft/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type WorkspaceService struct {
	db *database.DB
}

func NewWorkspaceService(db *database.DB) *WorkspaceService {
	return &WorkspaceService{db: db}
}

// Create stores a workspace and makes its owner the first ADMIN member.
func (s *WorkspaceService) Create(ctx context.Context, ownerID uuid.UUID, name, description string) (*models.Workspace, error) {
	name = strings.TrimSpace(name)
	if ownerID == uuid.Nil || name == "" {
		return nil, fmt.Errorf("%w: owner and name are required", ErrValidation)
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var workspace models.Workspace
	err = tx.QueryRow(ctx, `
		INSERT INTO workspaces (name, description, owner_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, owner_id, status, created_at
	`, name, description, ownerID).Scan(&workspace.ID, &workspace.Name, &workspace.Description, &workspace.OwnerID, &workspace.Status, &workspace.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`, workspace.ID, ownerID, string(models.WorkspaceRoleAdmin), workspace.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add owner as member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	workspace.Members = []models.WorkspaceMember{{
		UserID:   ownerID,
		Role:     models.WorkspaceRoleAdmin,
		JoinedAt: workspace.CreatedAt,
	}}

	return &workspace, nil
}

// Invite adds userID to the workspace. Only ADMIN members may invite.
// The workspace row is locked so concurrent invites for the same user
// resolve to exactly one success.
func (s *WorkspaceService) Invite(ctx context.Context, workspaceID, inviterID, userID uuid.UUID, role models.WorkspaceRole) (*models.WorkspaceMember, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id uuid.UUID
	var inviterRole *string
	err = tx.QueryRow(ctx, `
		SELECT w.id, m.role
		FROM workspaces w
		LEFT JOIN workspace_members m ON m.workspace_id = w.id AND m.user_id = $2
		WHERE w.id = $1
		FOR UPDATE OF w
	`, workspaceID, inviterID).Scan(&id, &inviterRole)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("workspace %s: %w", workspaceID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load inviter role: %w", err)
	}

	if inviterRole == nil || models.WorkspaceRole(*inviterRole) != models.WorkspaceRoleAdmin {
		return nil, fmt.Errorf("only workspace admins can invite: %w", ErrPermissionDenied)
	}

	member := models.WorkspaceMember{
		UserID:    userID,
		Role:      role,
		InvitedBy: &inviterID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role, invited_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workspace_id, user_id) DO NOTHING
		RETURNING joined_at
	`, workspaceID, userID, string(role), inviterID).Scan(&member.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlreadyMember
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &member, nil
}

func (s *WorkspaceService) GetByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	var workspace models.Workspace
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, name, description, owner_id, status, created_at
		FROM workspaces WHERE id = $1
	`, id).Scan(&workspace.ID, &workspace.Name, &workspace.Description, &workspace.OwnerID, &workspace.Status, &workspace.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("workspace %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}

	members, err := s.GetMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	workspace.Members = members

	return &workspace, nil
}

func (s *WorkspaceService) GetMembers(ctx context.Context, workspaceID uuid.UUID) ([]models.WorkspaceMember, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT user_id, role, joined_at, invited_by
		FROM workspace_members
		WHERE workspace_id = $1
		ORDER BY joined_at
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	var members []models.WorkspaceMember
	for rows.Next() {
		var m models.WorkspaceMember
		var role string
		if err := rows.Scan(&m.UserID, &role, &m.JoinedAt, &m.InvitedBy); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Role = models.WorkspaceRole(role)
		members = append(members, m)
	}

	return members, rows.Err()
}

// GetMemberRole returns ErrNotFound for an unknown workspace and
// ErrPermissionDenied when userID is not a member of it.
func (s *WorkspaceService) GetMemberRole(ctx context.Context, workspaceID, userID uuid.UUID) (models.WorkspaceRole, error) {
	var role *string
	err := s.db.Pool.QueryRow(ctx, `
		SELECT m.role
		FROM workspaces w
		LEFT JOIN workspace_members m ON m.workspace_id = w.id AND m.user_id = $2
		WHERE w.id = $1
	`, workspaceID, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("workspace %s: %w", workspaceID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get member role: %w", err)
	}
	if role == nil {
		return "", fmt.Errorf("not a workspace member: %w", ErrPermissionDenied)
	}

	return models.WorkspaceRole(*role), nil
}

func (s *WorkspaceService) GetUserWorkspaces(ctx context.Context, userID uuid.UUID) ([]models.Workspace, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT w.id, w.name, w.description, w.owner_id, w.status, w.created_at
		FROM workspaces w
		INNER JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1
		ORDER BY w.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workspaces: %w", err)
	}
	defer rows.Close()

	var workspaces []models.Workspace
	for rows.Next() {
		var w models.Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.Description, &w.OwnerID, &w.Status, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		workspaces = append(workspaces, w)
	}

	return workspaces, rows.Err()
}
