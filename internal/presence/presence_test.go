package presence

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dimitrije/querydraft/internal/testutil"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skip: redis not available: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestStore_TouchAndOnline(t *testing.T) {
	rdb := redisClient(t)
	ctx := context.Background()
	store := NewStore(rdb, 30*time.Second)
	sessionID := uuid.New()
	t.Cleanup(func() {
		rdb.Del(ctx, roomKey(sessionID))
		rdb.SRem(ctx, sessionsKey, sessionID.String())
	})

	alice := uuid.New()
	bob := uuid.New()
	require.NoError(t, store.Touch(ctx, sessionID, alice))
	require.NoError(t, store.Touch(ctx, sessionID, bob))

	online, err := store.Online(ctx, sessionID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{alice, bob}, online)

	require.NoError(t, store.Remove(ctx, sessionID, bob))

	online, err = store.Online(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{alice}, online)

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	assert.Contains(t, sessions, sessionID)
}

func TestStore_ExpiredMembersArePruned(t *testing.T) {
	rdb := redisClient(t)
	ctx := context.Background()
	store := NewStore(rdb, 30*time.Second)
	sessionID := uuid.New()
	t.Cleanup(func() {
		rdb.Del(ctx, roomKey(sessionID))
		rdb.SRem(ctx, sessionsKey, sessionID.String())
	})

	start := time.Now()
	store.now = func() time.Time { return start }
	require.NoError(t, store.Touch(ctx, sessionID, uuid.New()))

	store.now = func() time.Time { return start.Add(time.Minute) }
	online, err := store.Online(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, online)

	count, err := rdb.ZCard(ctx, roomKey(sessionID)).Result()
	require.NoError(t, err)
	assert.Zero(t, count)
}

type call struct {
	sessionID uuid.UUID
	userID    uuid.UUID
	remove    bool
}

type fakeWriter struct {
	mu    sync.Mutex
	calls []call
	block chan struct{}
	err   error
}

func (w *fakeWriter) record(c call) error {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, c)
	return w.err
}

func (w *fakeWriter) Touch(_ context.Context, sessionID, userID uuid.UUID) error {
	return w.record(call{sessionID: sessionID, userID: userID})
}

func (w *fakeWriter) Remove(_ context.Context, sessionID, userID uuid.UUID) error {
	return w.record(call{sessionID: sessionID, userID: userID, remove: true})
}

func (w *fakeWriter) all() []call {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]call(nil), w.calls...)
}

func TestMirror_ForwardsInOrder(t *testing.T) {
	writer := &fakeWriter{}
	mirror := NewMirror(writer, 8, testutil.DiscardLogger())
	sessionID := uuid.New()
	userID := uuid.New()

	mirror.Touch(sessionID, userID)
	mirror.Remove(sessionID, userID)
	mirror.Close()

	assert.Equal(t, []call{
		{sessionID: sessionID, userID: userID},
		{sessionID: sessionID, userID: userID, remove: true},
	}, writer.all())
}

func TestMirror_DropsWhenFull(t *testing.T) {
	writer := &fakeWriter{block: make(chan struct{})}
	mirror := NewMirror(writer, 1, testutil.DiscardLogger())
	sessionID := uuid.New()

	for i := 0; i < 10; i++ {
		mirror.Touch(sessionID, uuid.New())
	}

	close(writer.block)
	mirror.Close()

	// one update in flight plus one queued
	assert.LessOrEqual(t, len(writer.all()), 2)
	assert.NotEmpty(t, writer.all())
}

func TestMirror_WriterErrorsDoNotStopWorker(t *testing.T) {
	writer := &fakeWriter{err: errors.New("connection refused")}
	mirror := NewMirror(writer, 8, testutil.DiscardLogger())

	mirror.Touch(uuid.New(), uuid.New())
	mirror.Touch(uuid.New(), uuid.New())
	mirror.Close()

	assert.Len(t, writer.all(), 2)
}

func TestMirror_IgnoresUpdatesAfterClose(t *testing.T) {
	writer := &fakeWriter{}
	mirror := NewMirror(writer, 8, testutil.DiscardLogger())
	mirror.Close()

	mirror.Touch(uuid.New(), uuid.New())
	mirror.Close()

	assert.Empty(t, writer.all())
}
