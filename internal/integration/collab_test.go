//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/dimitrije/querydraft/internal/collab"
	"github.com/dimitrije/querydraft/internal/hub"
	"github.com/dimitrije/querydraft/internal/models"
	"github.com/dimitrije/querydraft/internal/services"
	"github.com/dimitrije/querydraft/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sessions resolve roles through the PostgreSQL workspace registry.
func TestManager_Integration_WorkspaceRoles(t *testing.T) {
	tdb := setupTest(t)
	workspaces := services.NewWorkspaceService(tdb.DB)
	ctx := context.Background()

	owner := tdb.CreateUser(t, "owner@example.com", models.UserRoleUser)
	member := tdb.CreateUser(t, "member@example.com", models.UserRoleUser)
	viewer := tdb.CreateUser(t, "viewer@example.com", models.UserRoleViewer)
	outsider := tdb.CreateUser(t, "outsider@example.com", models.UserRoleUser)

	ws, err := workspaces.Create(ctx, owner.ID, "Analytics", "")
	require.NoError(t, err)
	_, err = workspaces.Invite(ctx, ws.ID, owner.ID, member.ID, models.WorkspaceRoleMember)
	require.NoError(t, err)
	_, err = workspaces.Invite(ctx, ws.ID, owner.ID, viewer.ID, models.WorkspaceRoleViewer)
	require.NoError(t, err)

	connections := hub.NewHub(testutil.DiscardLogger())
	defer connections.Close()
	manager := collab.NewManager(workspaces, connections, collab.Options{}, testutil.DiscardLogger())
	defer manager.Close()

	sessionID := uuid.New()
	_, err = manager.CreateSession(ctx, sessionID, ws.ID, owner.ID, "SELECT")
	require.NoError(t, err)

	_, err = manager.CreateSession(ctx, uuid.New(), ws.ID, viewer.ID, "")
	assert.ErrorIs(t, err, services.ErrPermissionDenied)

	p, err := manager.Join(ctx, sessionID, member.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantRoleCollaborator, p.Role)

	p, err = manager.Join(ctx, sessionID, viewer.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantRoleViewer, p.Role)

	_, err = manager.Join(ctx, sessionID, outsider.ID, "")
	assert.ErrorIs(t, err, services.ErrPermissionDenied)

	result, err := manager.ProcessEdit(ctx, sessionID, member.ID, models.EditInsert, 6, " 1")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", result.NewText)

	_, err = manager.ProcessEdit(ctx, sessionID, viewer.ID, models.EditInsert, 0, "x")
	assert.ErrorIs(t, err, services.ErrPermissionDenied)
}
