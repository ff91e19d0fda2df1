package collab

import (
	"github.com/dimitrije/querydraft/internal/models"
	"github.com/google/uuid"
)

// editLog keeps the most recent committed operations. Once full, each
// append evicts the oldest entry.
type editLog struct {
	ops   []models.EditOperation
	start int
	size  int
}

func newEditLog(capacity int) *editLog {
	return &editLog{ops: make([]models.EditOperation, capacity)}
}

func (l *editLog) append(op models.EditOperation) {
	if l.size < len(l.ops) {
		l.ops[(l.start+l.size)%len(l.ops)] = op
		l.size++
		return
	}
	l.ops[l.start] = op
	l.start = (l.start + 1) % len(l.ops)
}

func (l *editLog) len() int { return l.size }

// at returns the i-th retained operation, oldest first.
func (l *editLog) at(i int) models.EditOperation {
	return l.ops[(l.start+i)%len(l.ops)]
}

func (l *editLog) countBy(userID uuid.UUID) int {
	n := 0
	for i := 0; i < l.size; i++ {
		if l.at(i).UserID == userID {
			n++
		}
	}
	return n
}
