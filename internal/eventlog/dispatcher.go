// Package eventlog ships committed edits to a Kafka topic. Publishing never
// blocks the session that committed the edit: edits queue locally and a
// small worker pool sends them with bounded retries. Each session is pinned
// to one worker so its edits reach the topic in commit order.
package eventlog

import (
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/dimitrije/querydraft/internal/config"
	"github.com/dimitrije/querydraft/internal/models"
	"github.com/google/uuid"
)

const EventEditCommitted = "EDIT_COMMITTED"

// EditRecord is the message value written to the topic.
type EditRecord struct {
	EventType   string          `json:"event_type"`
	SessionID   uuid.UUID       `json:"session_id"`
	WorkspaceID uuid.UUID       `json:"workspace_id"`
	OperationID uuid.UUID       `json:"operation_id"`
	UserID      uuid.UUID       `json:"user_id"`
	Kind        models.EditKind `json:"kind"`
	Position    int             `json:"position"`
	Content     string          `json:"content"`
	BaseVersion int64           `json:"base_version"`
	Version     int64           `json:"version"`
	Text        string          `json:"text"`
	CommittedAt time.Time       `json:"committed_at"`
}

func recordFor(edit models.CommittedEdit) EditRecord {
	return EditRecord{
		EventType:   EventEditCommitted,
		SessionID:   edit.SessionID,
		WorkspaceID: edit.WorkspaceID,
		OperationID: edit.Operation.ID,
		UserID:      edit.Operation.UserID,
		Kind:        edit.Operation.Kind,
		Position:    edit.Operation.Position,
		Content:     edit.Operation.Content,
		BaseVersion: edit.Operation.BaseVersion,
		Version:     edit.Version,
		Text:        edit.Text,
		CommittedAt: edit.CommittedAt.UTC(),
	}
}

type Options struct {
	QueueSize   int
	Workers     int
	MaxRetry    int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func OptionsFromConfig(cfg config.KafkaConfig) Options {
	return Options{
		QueueSize:   cfg.QueueSize,
		Workers:     cfg.Workers,
		MaxRetry:    cfg.MaxRetry,
		BaseBackoff: cfg.BaseBackoff,
		MaxBackoff:  cfg.MaxBackoff,
	}
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 4096
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.MaxRetry < 0 {
		o.MaxRetry = 0
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 100 * time.Millisecond
	}
	if o.MaxBackoff < o.BaseBackoff {
		o.MaxBackoff = o.BaseBackoff
	}
	return o
}

// Dispatcher is a set of bounded queues in front of a sarama.SyncProducer,
// one per worker. A full queue drops the edit instead of holding up the
// caller.
type Dispatcher struct {
	producer sarama.SyncProducer
	topic    string
	opts     Options
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	queues []chan models.CommittedEdit
	wg     sync.WaitGroup

	sleep func(time.Duration)
}

func NewDispatcher(producer sarama.SyncProducer, topic string, opts Options, logger *slog.Logger) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		producer: producer,
		topic:    topic,
		opts:     opts,
		logger:   logger,
		queues:   make([]chan models.CommittedEdit, opts.Workers),
		sleep:    time.Sleep,
	}

	for i := range d.queues {
		d.queues[i] = make(chan models.CommittedEdit, opts.QueueSize)
		d.wg.Add(1)
		go d.worker(i, d.queues[i])
	}
	return d
}

// Publish queues edit and reports whether it was accepted.
func (d *Dispatcher) Publish(edit models.CommittedEdit) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}

	select {
	case d.queueFor(edit.SessionID) <- edit:
		return true
	default:
		return false
	}
}

// Close stops accepting edits, waits for the queue to drain and closes the
// producer.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.wg.Wait()
	return d.producer.Close()
}

// queueFor picks the worker queue that owns sessionID.
func (d *Dispatcher) queueFor(sessionID uuid.UUID) chan models.CommittedEdit {
	if len(d.queues) == 1 {
		return d.queues[0]
	}
	h := fnv.New32a()
	_, _ = h.Write(sessionID[:])
	return d.queues[h.Sum32()%uint32(len(d.queues))]
}

func (d *Dispatcher) worker(id int, queue <-chan models.CommittedEdit) {
	defer d.wg.Done()
	for edit := range queue {
		d.sendWithRetry(id, edit)
	}
}

func (d *Dispatcher) sendWithRetry(workerID int, edit models.CommittedEdit) {
	for attempt := 0; attempt <= d.opts.MaxRetry; attempt++ {
		err := d.sendOnce(edit)
		if err == nil {
			return
		}

		if attempt == d.opts.MaxRetry {
			d.logger.Error("failed to publish edit, dropping",
				"session_id", edit.SessionID,
				"operation_id", edit.Operation.ID,
				"version", edit.Version,
				"worker", workerID,
				"error", err)
			return
		}

		d.sleep(d.backoff(attempt))
	}
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	if attempt > 30 {
		return d.opts.MaxBackoff
	}
	b := d.opts.BaseBackoff * time.Duration(1<<attempt)
	if b > d.opts.MaxBackoff {
		return d.opts.MaxBackoff
	}
	return b
}

func (d *Dispatcher) sendOnce(edit models.CommittedEdit) error {
	value, err := json.Marshal(recordFor(edit))
	if err != nil {
		return err
	}

	_, _, err = d.producer.SendMessage(&sarama.ProducerMessage{
		Topic: d.topic,
		Key:   sarama.StringEncoder(edit.SessionID.String()),
		Value: sarama.ByteEncoder(value),
	})
	return err
}

// NewProducer builds the SyncProducer the Dispatcher sends through.
func NewProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return sarama.NewSyncProducer(brokers, cfg)
}
