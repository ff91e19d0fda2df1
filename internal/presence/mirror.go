package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Writer is the subset of Store the Mirror drives.
type Writer interface {
	Touch(ctx context.Context, sessionID, userID uuid.UUID) error
	Remove(ctx context.Context, sessionID, userID uuid.UUID) error
}

type update struct {
	sessionID uuid.UUID
	userID    uuid.UUID
	remove    bool
}

// Mirror forwards presence changes to a Writer from a single background
// goroutine. Touch and Remove never block; when the queue is full the
// update is dropped and the next heartbeat repairs the entry.
type Mirror struct {
	writer  Writer
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan update
	done   chan struct{}
}

func NewMirror(writer Writer, queueSize int, logger *slog.Logger) *Mirror {
	if queueSize <= 0 {
		queueSize = 1024
	}
	m := &Mirror{
		writer:  writer,
		timeout: 2 * time.Second,
		logger:  logger,
		queue:   make(chan update, queueSize),
		done:    make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Mirror) Touch(sessionID, userID uuid.UUID) {
	m.enqueue(update{sessionID: sessionID, userID: userID})
}

func (m *Mirror) Remove(sessionID, userID uuid.UUID) {
	m.enqueue(update{sessionID: sessionID, userID: userID, remove: true})
}

func (m *Mirror) enqueue(u update) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return
	}

	select {
	case m.queue <- u:
	default:
		m.logger.Warn("presence queue full, dropping update", "session_id", u.sessionID, "user_id", u.userID)
	}
}

func (m *Mirror) run() {
	defer close(m.done)
	for u := range m.queue {
		m.apply(u)
	}
}

func (m *Mirror) apply(u update) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var err error
	if u.remove {
		err = m.writer.Remove(ctx, u.sessionID, u.userID)
	} else {
		err = m.writer.Touch(ctx, u.sessionID, u.userID)
	}
	if err != nil {
		m.logger.Warn("failed to mirror presence", "session_id", u.sessionID, "user_id", u.userID, "remove", u.remove, "error", err)
	}
}

// Close flushes queued updates and stops the worker.
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	<-m.done
}
