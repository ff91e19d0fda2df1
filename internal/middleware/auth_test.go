package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimitrije/querydraft/internal/services"
	"github.com/dimitrije/querydraft/internal/testutil"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protectedApp(jwtSvc *services.JWTService, handler drift.HandlerFunc) http.Handler {
	app := drift.New()
	app.Use(Auth(jwtSvc))
	if handler == nil {
		handler = func(c *drift.Context) {
			_ = c.JSON(http.StatusOK, map[string]string{"status": "ok"})
		}
	}
	app.Get("/protected", handler)
	return app
}

func TestAuth_Rejections(t *testing.T) {
	jwtSvc := testutil.TestJWTService()
	otherSvc := services.NewJWTService("another-secret", 15*time.Minute)
	foreign := testutil.GenerateTestToken(t, otherSvc, uuid.New())

	tests := []struct {
		name    string
		header  string
		target  string
		message string
	}{
		{"missing header", "", "/protected", "missing authorization header"},
		{"not bearer", "Token some-token", "/protected", "invalid authorization header format"},
		{"bearer without token", "Bearer", "/protected", "invalid authorization header format"},
		{"bearer with empty token", "Bearer ", "/protected", "invalid authorization header format"},
		{"garbage token", "Bearer invalid-token", "/protected", "invalid or expired token"},
		{"signed with another secret", "Bearer " + foreign, "/protected", "invalid or expired token"},
		{"garbage query token", "", "/protected?token=nope", "invalid or expired token"},
	}

	app := protectedApp(jwtSvc, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			app.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
		})
	}
}

func TestAuth_ExpiredToken(t *testing.T) {
	jwtSvc := services.NewJWTService("test-secret-key", time.Millisecond)
	token := testutil.GenerateTestToken(t, jwtSvc, uuid.New())
	time.Sleep(10 * time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	protectedApp(jwtSvc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_ValidToken(t *testing.T) {
	jwtSvc := testutil.TestJWTService()
	userID := uuid.New()
	token := testutil.GenerateTestToken(t, jwtSvc, userID)

	var gotUserID uuid.UUID
	var gotEmail string
	app := protectedApp(jwtSvc, func(c *drift.Context) {
		gotUserID = GetUserID(c)
		gotEmail = GetUserEmail(c)
		_ = c.JSON(http.StatusOK, nil)
	})

	for _, scheme := range []string{"Bearer", "bearer", "BEARER"} {
		t.Run(scheme, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", scheme+" "+token)
			rec := httptest.NewRecorder()

			app.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, userID, gotUserID)
			assert.Equal(t, "test@example.com", gotEmail)
		})
	}
}

func TestAuth_QueryToken(t *testing.T) {
	jwtSvc := testutil.TestJWTService()
	userID := uuid.New()
	token := testutil.GenerateTestToken(t, jwtSvc, userID)

	var gotUserID uuid.UUID
	app := protectedApp(jwtSvc, func(c *drift.Context) {
		gotUserID = GetUserID(c)
		_ = c.JSON(http.StatusOK, nil)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, gotUserID)
}

func TestGetUserID_NotSet(t *testing.T) {
	app := drift.New()

	gotUserID := uuid.New()
	gotEmail := "unset"
	app.Get("/test", func(c *drift.Context) {
		gotUserID = GetUserID(c)
		gotEmail = GetUserEmail(c)
		_ = c.JSON(http.StatusOK, nil)
	})

	app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, uuid.Nil, gotUserID)
	assert.Equal(t, "", gotEmail)
}
