package collab

import (
	"time"

	"github.com/dimitrije/querydraft/internal/models"
	"github.com/google/uuid"
)

// detectConflicts reports a CONCURRENT_EDIT when another user committed an
// operation strictly inside the window and strictly closer than distance
// to position. At most one conflict is returned; it names the most recent
// offending operation.
func detectConflicts(log *editLog, userID uuid.UUID, position int, now time.Time, window time.Duration, distance int) []models.Conflict {
	cutoff := now.Add(-window)

	for i := log.len() - 1; i >= 0; i-- {
		op := log.at(i)
		if !op.Timestamp.After(cutoff) || op.UserID == userID {
			continue
		}
		if abs(op.Position-position) < distance {
			return []models.Conflict{{
				Type:        models.ConflictConcurrentEdit,
				Position:    position,
				UserID:      op.UserID,
				OperationID: op.ID,
			}}
		}
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
