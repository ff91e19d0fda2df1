package testutil

import (
	"context"
	"time"

	"github.com/dimitrije/querydraft/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockWorkspaceService mocks the WorkspaceService
type MockWorkspaceService struct {
	mock.Mock
}

func (m *MockWorkspaceService) Create(ctx context.Context, ownerID uuid.UUID, name, description string) (*models.Workspace, error) {
	args := m.Called(ctx, ownerID, name, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Workspace), args.Error(1)
}

func (m *MockWorkspaceService) Invite(ctx context.Context, workspaceID, inviterID, userID uuid.UUID, role models.WorkspaceRole) (*models.WorkspaceMember, error) {
	args := m.Called(ctx, workspaceID, inviterID, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkspaceMember), args.Error(1)
}

func (m *MockWorkspaceService) GetByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Workspace), args.Error(1)
}

func (m *MockWorkspaceService) GetMemberRole(ctx context.Context, workspaceID, userID uuid.UUID) (models.WorkspaceRole, error) {
	args := m.Called(ctx, workspaceID, userID)
	return args.Get(0).(models.WorkspaceRole), args.Error(1)
}

func (m *MockWorkspaceService) GetUserWorkspaces(ctx context.Context, userID uuid.UUID) ([]models.Workspace, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Workspace), args.Error(1)
}

// MockPermissionService mocks the PermissionService
type MockPermissionService struct {
	mock.Mock
}

func (m *MockPermissionService) HasPermission(ctx context.Context, userID uuid.UUID, capability string) (bool, error) {
	args := m.Called(ctx, userID, capability)
	return args.Bool(0), args.Error(1)
}

// MockSessionManager mocks the collaboration session manager
type MockSessionManager struct {
	mock.Mock
}

func (m *MockSessionManager) CreateSession(ctx context.Context, sessionID, workspaceID, creatorID uuid.UUID, initialText string) (*models.Session, error) {
	args := m.Called(ctx, sessionID, workspaceID, creatorID, initialText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionManager) Session(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionManager) Join(ctx context.Context, sessionID, userID uuid.UUID, connectionID string) (*models.Membership, error) {
	args := m.Called(ctx, sessionID, userID, connectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Membership), args.Error(1)
}

func (m *MockSessionManager) Leave(ctx context.Context, sessionID, userID uuid.UUID) error {
	args := m.Called(ctx, sessionID, userID)
	return args.Error(0)
}

func (m *MockSessionManager) Disconnect(ctx context.Context, connectionID string) error {
	args := m.Called(ctx, connectionID)
	return args.Error(0)
}

func (m *MockSessionManager) ProcessEdit(ctx context.Context, sessionID, userID uuid.UUID, kind models.EditKind, position int, content string) (models.EditResult, error) {
	args := m.Called(ctx, sessionID, userID, kind, position, content)
	return args.Get(0).(models.EditResult), args.Error(1)
}

func (m *MockSessionManager) Cursor(ctx context.Context, sessionID, userID uuid.UUID, position int) error {
	args := m.Called(ctx, sessionID, userID, position)
	return args.Error(0)
}

func (m *MockSessionManager) Heartbeat(ctx context.Context, sessionID, userID uuid.UUID) (time.Time, error) {
	args := m.Called(ctx, sessionID, userID)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockSessionManager) GetStatus(ctx context.Context, sessionID uuid.UUID) (*models.SessionStatus, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionStatus), args.Error(1)
}

func (m *MockSessionManager) UserStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserStats), args.Error(1)
}
