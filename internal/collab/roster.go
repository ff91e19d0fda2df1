package collab

import (
	"github.com/dimitrije/querydraft/internal/models"
	"github.com/google/uuid"
)

// roster is the participant directory of one session. Participants are
// never removed, only marked OFFLINE.
type roster struct {
	order []uuid.UUID
	byID  map[uuid.UUID]*models.Participant
}

func newRoster() *roster {
	return &roster{byID: make(map[uuid.UUID]*models.Participant)}
}

func (r *roster) get(userID uuid.UUID) (*models.Participant, bool) {
	p, ok := r.byID[userID]
	return p, ok
}

func (r *roster) add(p models.Participant) *models.Participant {
	if existing, ok := r.byID[p.UserID]; ok {
		return existing
	}
	r.order = append(r.order, p.UserID)
	r.byID[p.UserID] = &p
	return &p
}

func (r *roster) len() int { return len(r.order) }

func (r *roster) online() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.order))
	for _, id := range r.order {
		if r.byID[id].Status == models.ParticipantOnline {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *roster) list() []models.Participant {
	out := make([]models.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out
}
