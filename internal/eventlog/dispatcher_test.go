package eventlog

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/dimitrije/querydraft/internal/models"
	"github.com/dimitrije/querydraft/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEdit(version int64) models.CommittedEdit {
	return models.CommittedEdit{
		SessionID:   uuid.New(),
		WorkspaceID: uuid.New(),
		Operation: models.EditOperation{
			ID:          uuid.New(),
			UserID:      uuid.New(),
			Kind:        models.EditInsert,
			Position:    3,
			Content:     "DEF",
			BaseVersion: version - 1,
		},
		Version:     version,
		Text:        "ABCDEF",
		CommittedAt: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher_PublishesRecord(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	edit := testEdit(1)

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var rec EditRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		if rec.EventType != EventEditCommitted || rec.SessionID != edit.SessionID || rec.Version != 1 {
			return errors.New("unexpected record")
		}
		if rec.OperationID != edit.Operation.ID || rec.Content != "DEF" || rec.Text != "ABCDEF" {
			return errors.New("operation not carried over")
		}
		return nil
	})

	d := NewDispatcher(producer, "query-edits", Options{Workers: 1}, testutil.DiscardLogger())

	assert.True(t, d.Publish(edit))
	require.NoError(t, d.Close())
}

func TestDispatcher_RetriesWithBackoff(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndSucceed()

	d := NewDispatcher(producer, "query-edits", Options{
		Workers:     1,
		MaxRetry:    3,
		BaseBackoff: 10 * time.Millisecond,
		MaxBackoff:  15 * time.Millisecond,
	}, testutil.DiscardLogger())

	var mu sync.Mutex
	var slept []time.Duration
	d.sleep = func(b time.Duration) {
		mu.Lock()
		slept = append(slept, b)
		mu.Unlock()
	}

	assert.True(t, d.Publish(testEdit(1)))
	require.NoError(t, d.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 15 * time.Millisecond}, slept)
}

func TestDispatcher_DropsAfterMaxRetry(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndSucceed()

	d := NewDispatcher(producer, "query-edits", Options{Workers: 1, MaxRetry: 1}, testutil.DiscardLogger())
	d.sleep = func(time.Duration) {}

	// the first edit gives up after two attempts, the second goes through
	assert.True(t, d.Publish(testEdit(1)))
	assert.True(t, d.Publish(testEdit(2)))
	require.NoError(t, d.Close())
}

// blockingProducer holds every send until release is closed.
type blockingProducer struct {
	sarama.SyncProducer
	release chan struct{}
	sent    chan struct{}
}

func (p *blockingProducer) SendMessage(*sarama.ProducerMessage) (int32, int64, error) {
	p.sent <- struct{}{}
	<-p.release
	return 0, 0, nil
}

func (p *blockingProducer) Close() error { return nil }

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	producer := &blockingProducer{release: make(chan struct{}), sent: make(chan struct{}, 16)}
	d := NewDispatcher(producer, "query-edits", Options{Workers: 1, QueueSize: 2}, testutil.DiscardLogger())

	require.True(t, d.Publish(testEdit(1)))
	<-producer.sent // worker is now stuck on the first edit

	assert.True(t, d.Publish(testEdit(2)))
	assert.True(t, d.Publish(testEdit(3)))
	assert.False(t, d.Publish(testEdit(4)))

	close(producer.release)
	require.NoError(t, d.Close())
}

func TestDispatcher_PublishAfterClose(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	d := NewDispatcher(producer, "query-edits", Options{}, testutil.DiscardLogger())

	require.NoError(t, d.Close())
	assert.False(t, d.Publish(testEdit(1)))
	assert.NoError(t, d.Close())
}

func TestBackoff(t *testing.T) {
	d := &Dispatcher{opts: Options{BaseBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}}

	assert.Equal(t, 100*time.Millisecond, d.backoff(0))
	assert.Equal(t, 200*time.Millisecond, d.backoff(1))
	assert.Equal(t, 800*time.Millisecond, d.backoff(3))
	assert.Equal(t, time.Second, d.backoff(4))
	assert.Equal(t, time.Second, d.backoff(40))
}

// recordingProducer keeps the versions it sent, stalling on stallVersion.
type recordingProducer struct {
	sarama.SyncProducer
	stallVersion int64

	mu       sync.Mutex
	versions []int64
}

func (p *recordingProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	raw, err := msg.Value.Encode()
	if err != nil {
		return 0, 0, err
	}
	var rec EditRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return 0, 0, err
	}
	if rec.Version == p.stallVersion {
		time.Sleep(50 * time.Millisecond)
	}

	p.mu.Lock()
	p.versions = append(p.versions, rec.Version)
	p.mu.Unlock()
	return 0, 0, nil
}

func (p *recordingProducer) Close() error { return nil }

func TestDispatcher_KeepsSessionOrderAcrossWorkers(t *testing.T) {
	producer := &recordingProducer{stallVersion: 1}
	d := NewDispatcher(producer, "query-edits", Options{Workers: 4}, testutil.DiscardLogger())

	sessionID := uuid.New()
	for v := int64(1); v <= 5; v++ {
		edit := testEdit(v)
		edit.SessionID = sessionID
		require.True(t, d.Publish(edit))
	}
	require.NoError(t, d.Close())

	producer.mu.Lock()
	defer producer.mu.Unlock()
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, producer.versions)
}

func TestDispatcher_QueueForIsStable(t *testing.T) {
	d := &Dispatcher{queues: make([]chan models.CommittedEdit, 3)}
	for i := range d.queues {
		d.queues[i] = make(chan models.CommittedEdit)
	}

	sessionID := uuid.New()
	first := d.queueFor(sessionID)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, d.queueFor(sessionID))
	}
}
