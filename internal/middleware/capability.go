package middleware

import (
	"context"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

// CapabilityChecker is answered by the identity store.
type CapabilityChecker interface {
	HasPermission(ctx context.Context, userID uuid.UUID, capability string) (bool, error)
}

// RequireCapability rejects callers that do not hold capability. It must run
// after Auth.
func RequireCapability(checker CapabilityChecker, capability string) drift.HandlerFunc {
	return func(c *drift.Context) {
		userID := GetUserID(c)
		if userID == uuid.Nil {
			c.Unauthorized("unauthorized")
			return
		}

		ok, err := checker.HasPermission(c.Request.Context(), userID, capability)
		if err != nil {
			c.InternalServerError("failed to check permissions")
			return
		}
		if !ok {
			c.Forbidden("missing capability " + capability)
			return
		}

		c.Next()
	}
}
