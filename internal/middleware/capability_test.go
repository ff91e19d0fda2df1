package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dimitrije/querydraft/internal/models"
	"github.com/dimitrije/querydraft/internal/testutil"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func capabilityApp(checker CapabilityChecker) http.Handler {
	app := drift.New()
	app.Use(Auth(testutil.TestJWTService()))
	app.Use(RequireCapability(checker, models.CapabilityQueryData))
	app.Get("/protected", func(c *drift.Context) {
		_ = c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	return app
}

func TestRequireCapability(t *testing.T) {
	tests := []struct {
		name       string
		allowed    bool
		err        error
		wantStatus int
		wantBody   string
	}{
		{"granted", true, nil, http.StatusOK, "ok"},
		{"missing", false, nil, http.StatusForbidden, "missing capability QUERY_DATA"},
		{"store failure", false, errors.New("connection refused"), http.StatusInternalServerError, "failed to check permissions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := new(testutil.MockPermissionService)
			userID := uuid.New()
			checker.On("HasPermission", mock.Anything, userID, models.CapabilityQueryData).Return(tt.allowed, tt.err)

			token := testutil.GenerateTestToken(t, testutil.TestJWTService(), userID)
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", testutil.AuthHeader(token))
			rec := httptest.NewRecorder()

			capabilityApp(checker).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			checker.AssertExpectations(t)
		})
	}
}

func TestRequireCapability_NoUser(t *testing.T) {
	checker := new(testutil.MockPermissionService)

	app := drift.New()
	app.Use(RequireCapability(checker, models.CapabilityQueryData))
	app.Get("/protected", func(c *drift.Context) {
		_ = c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	checker.AssertNotCalled(t, "HasPermission")
}
