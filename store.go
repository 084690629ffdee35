package pgmq

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Store provides the durable, atomic queue primitives the Client is layered
// on. The single correctness-critical property any implementation must
// preserve: ReadBatch is atomic and mutually exclusive across concurrent
// callers, so no two readers ever receive the same message while its
// visibility timeout is unexpired.
//
// The primary implementation is PgxStore, which drives the pgmq PostgreSQL
// extension. Substitute implementations (in-memory stores for tests, other
// backends) plug in via New.
type Store interface {
	// CreateQueue provisions a queue. Idempotent: creating an existing
	// queue is a no-op.
	CreateQueue(ctx context.Context, queue string) error

	// CreateUnloggedQueue provisions a queue backed by an unlogged table,
	// trading durability across crashes for write throughput. Idempotent.
	CreateUnloggedQueue(ctx context.Context, queue string) error

	// DropQueue destroys a queue and its entire backlog, active and
	// archived. Fails if the queue does not exist.
	DropQueue(ctx context.Context, queue string) error

	// Send enqueues one encoded payload with vt = now + delaySec and
	// returns the new message id.
	Send(ctx context.Context, queue string, payload []byte, delaySec int) (int64, error)

	// SendBatch enqueues payloads in one atomic call and returns the new
	// message ids in order.
	SendBatch(ctx context.Context, queue string, payloads [][]byte, delaySec int) ([]int64, error)

	// ReadBatch atomically selects up to count visible messages, oldest
	// first, sets each message's vt to now + vtSec and increments its read
	// count. Returns between 0 and count messages; either the whole call
	// succeeds or it fails wholesale.
	ReadBatch(ctx context.Context, queue string, vtSec int, count int) ([]*Message, error)

	// Pop atomically reads and deletes the oldest visible message,
	// bypassing visibility timeouts. Returns nil when the backlog is empty.
	Pop(ctx context.Context, queue string) (*Message, error)

	// Archive moves one message out of the active backlog into the queue's
	// archive. Returns false when the id is not in the active backlog.
	Archive(ctx context.Context, queue string, id int64) (bool, error)

	// ArchiveBatch archives ids in one call and returns the subset that was
	// actually archived.
	ArchiveBatch(ctx context.Context, queue string, ids []int64) ([]int64, error)

	// Delete removes ids permanently and returns the subset actually
	// deleted. Missing ids are skipped, not errors.
	Delete(ctx context.Context, queue string, ids []int64) ([]int64, error)

	// SetVT replaces a message's visibility timeout with now + vtSec and
	// returns the updated message, or nil when the id is not in the active
	// backlog.
	SetVT(ctx context.Context, queue string, id int64, vtSec int) (*Message, error)

	// Purge deletes every message in the active backlog and returns the
	// number removed.
	Purge(ctx context.Context, queue string) (int64, error)

	// ListQueues returns all queues known to the store.
	ListQueues(ctx context.Context) ([]QueueInfo, error)

	// Metrics returns backlog statistics for one queue.
	Metrics(ctx context.Context, queue string) (*QueueMetrics, error)

	// Close releases resources held by the store.
	Close()
}

// QueueInfo describes a queue returned by ListQueues.
type QueueInfo struct {
	Name          string
	CreatedAt     time.Time
	IsPartitioned bool
	IsUnlogged    bool
}

// QueueMetrics holds backlog statistics for a queue, as reported by
// pgmq.metrics.
type QueueMetrics struct {
	QueueName string
	// QueueLength is the number of messages currently in the active backlog.
	QueueLength int64
	// NewestMsgAgeSec / OldestMsgAgeSec are nil when the backlog is empty.
	NewestMsgAgeSec *int64
	OldestMsgAgeSec *int64
	// TotalMessages counts every message ever sent to the queue.
	TotalMessages int64
	ScrapeTime    time.Time
}

// PgxStore implements Store against the pgmq extension using a pgx connection
// pool. Each method maps to exactly one pgmq SQL function call; atomicity and
// reader exclusivity come from pgmq's row-locking SELECT ... FOR UPDATE SKIP
// LOCKED reads.
//
// Transient database errors (serialization failures, deadlocks, connection
// errors) are retried with exponential backoff per the store's RetryConfig;
// see WithoutRetries. All other errors pass through wrapped with their cause.
type PgxStore struct {
	pool    Pool
	ownPool bool
	retry   RetryConfig
	logger  LevelLogger
}

// StoreOption configures a PgxStore at construction time.
type StoreOption func(*PgxStore)

// WithRetryConfig sets the transient-error retry policy used for store calls.
func WithRetryConfig(cfg RetryConfig) StoreOption {
	return func(s *PgxStore) {
		s.retry = cfg
	}
}

// WithoutRetries disables transient-error retries; every store call maps to
// exactly one attempt.
func WithoutRetries() StoreOption {
	return func(s *PgxStore) {
		s.retry.Disabled = true
	}
}

// WithStoreLogger installs a leveled logger used for retry warnings.
func WithStoreLogger(logger LevelLogger) StoreOption {
	return func(s *PgxStore) {
		s.logger = logger
	}
}

// NewPgxStore wraps an existing Pool (typically *pgxpool.Pool) in a PgxStore.
// The store does not own the pool and will not close it.
func NewPgxStore(pool Pool, opts ...StoreOption) (*PgxStore, error) {
	s := &PgxStore{
		pool:   pool,
		retry:  defaultRetryConfig(),
		logger: NoopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.retry.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateExtension installs the pgmq extension if it is not already present.
// Requires a role with CREATE privilege on the database.
func CreateExtension(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS pgmq CASCADE"); err != nil {
		return fmt.Errorf("failed to create pgmq extension: %w", err)
	}
	return nil
}

func (s *PgxStore) CreateQueue(ctx context.Context, queue string) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		if _, err := s.pool.Exec(ctx, "SELECT pgmq.create($1)", queue); err != nil {
			return fmt.Errorf("failed to create queue: %w", err)
		}
		return nil
	})
}

func (s *PgxStore) CreateUnloggedQueue(ctx context.Context, queue string) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		if _, err := s.pool.Exec(ctx, "SELECT pgmq.create_unlogged($1)", queue); err != nil {
			return fmt.Errorf("failed to create unlogged queue: %w", err)
		}
		return nil
	})
}

func (s *PgxStore) DropQueue(ctx context.Context, queue string) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		if _, err := s.pool.Exec(ctx, "SELECT pgmq.drop_queue($1)", queue); err != nil {
			return fmt.Errorf("failed to drop queue: %w", err)
		}
		return nil
	})
}

func (s *PgxStore) Send(ctx context.Context, queue string, payload []byte, delaySec int) (int64, error) {
	var id int64
	err := s.withRetry(ctx, func(ctx context.Context) error {
		err := s.pool.QueryRow(ctx,
			"SELECT * FROM pgmq.send($1, $2::jsonb, $3)",
			queue, string(payload), delaySec).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
		return nil
	})
	return id, err
}

func (s *PgxStore) SendBatch(ctx context.Context, queue string, payloads [][]byte, delaySec int) ([]int64, error) {
	encoded := make([]string, len(payloads))
	for i, p := range payloads {
		encoded[i] = string(p)
	}

	var ids []int64
	err := s.withRetry(ctx, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx,
			"SELECT * FROM pgmq.send_batch($1, $2::jsonb[], $3)",
			queue, encoded, delaySec)
		if err != nil {
			return fmt.Errorf("failed to send message batch: %w", err)
		}
		defer rows.Close()

		ids = nil // reset on retry
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	return ids, err
}

func (s *PgxStore) ReadBatch(ctx context.Context, queue string, vtSec int, count int) ([]*Message, error) {
	var messages []*Message
	err := s.withRetry(ctx, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx,
			"SELECT msg_id, read_ct, enqueued_at, vt, message FROM pgmq.read($1, $2, $3)",
			queue, vtSec, count)
		if err != nil {
			return fmt.Errorf("failed to read messages: %w", err)
		}
		defer rows.Close()

		messages, err = scanMessages(rows)
		return err
	})
	return messages, err
}

func (s *PgxStore) Pop(ctx context.Context, queue string) (*Message, error) {
	var msg *Message
	err := s.withRetry(ctx, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx,
			"SELECT msg_id, read_ct, enqueued_at, vt, message FROM pgmq.pop($1)",
			queue)
		if err != nil {
			return fmt.Errorf("failed to pop message: %w", err)
		}
		defer rows.Close()

		msgs, err := scanMessages(rows)
		if err != nil {
			return err
		}
		msg = nil
		if len(msgs) > 0 {
			msg = msgs[0]
		}
		return nil
	})
	return msg, err
}

func (s *PgxStore) Archive(ctx context.Context, queue string, id int64) (bool, error) {
	var archived bool
	err := s.withRetry(ctx, func(ctx context.Context) error {
		err := s.pool.QueryRow(ctx,
			"SELECT pgmq.archive($1, $2::bigint)",
			queue, id).Scan(&archived)
		if err != nil {
			return fmt.Errorf("failed to archive message: %w", err)
		}
		return nil
	})
	return archived, err
}

func (s *PgxStore) ArchiveBatch(ctx context.Context, queue string, ids []int64) ([]int64, error) {
	var archived []int64
	err := s.withRetry(ctx, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx,
			"SELECT * FROM pgmq.archive($1, $2::bigint[])",
			queue, ids)
		if err != nil {
			return fmt.Errorf("failed to archive messages: %w", err)
		}
		defer rows.Close()

		archived = nil
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			archived = append(archived, id)
		}
		return rows.Err()
	})
	return archived, err
}

func (s *PgxStore) Delete(ctx context.Context, queue string, ids []int64) ([]int64, error) {
	var deleted []int64
	err := s.withRetry(ctx, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx,
			"SELECT * FROM pgmq.delete($1, $2::bigint[])",
			queue, ids)
		if err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		defer rows.Close()

		deleted = nil
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			deleted = append(deleted, id)
		}
		return rows.Err()
	})
	return deleted, err
}

func (s *PgxStore) SetVT(ctx context.Context, queue string, id int64, vtSec int) (*Message, error) {
	var msg *Message
	err := s.withRetry(ctx, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx,
			"SELECT msg_id, read_ct, enqueued_at, vt, message FROM pgmq.set_vt($1, $2, $3)",
			queue, id, vtSec)
		if err != nil {
			return fmt.Errorf("failed to set message visibility timeout: %w", err)
		}
		defer rows.Close()

		msgs, err := scanMessages(rows)
		if err != nil {
			return err
		}
		msg = nil
		if len(msgs) > 0 {
			msg = msgs[0]
		}
		return nil
	})
	return msg, err
}

func (s *PgxStore) Purge(ctx context.Context, queue string) (int64, error) {
	var purged int64
	err := s.withRetry(ctx, func(ctx context.Context) error {
		err := s.pool.QueryRow(ctx, "SELECT pgmq.purge_queue($1)", queue).Scan(&purged)
		if err != nil {
			return fmt.Errorf("failed to purge queue: %w", err)
		}
		return nil
	})
	return purged, err
}

func (s *PgxStore) ListQueues(ctx context.Context) ([]QueueInfo, error) {
	var queues []QueueInfo
	err := s.withRetry(ctx, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx,
			"SELECT queue_name, created_at, is_partitioned, is_unlogged FROM pgmq.list_queues()")
		if err != nil {
			return fmt.Errorf("failed to list queues: %w", err)
		}
		defer rows.Close()

		queues = make([]QueueInfo, 0)
		for rows.Next() {
			var q QueueInfo
			if err := rows.Scan(&q.Name, &q.CreatedAt, &q.IsPartitioned, &q.IsUnlogged); err != nil {
				return err
			}
			queues = append(queues, q)
		}
		return rows.Err()
	})
	return queues, err
}

func (s *PgxStore) Metrics(ctx context.Context, queue string) (*QueueMetrics, error) {
	var m QueueMetrics
	err := s.withRetry(ctx, func(ctx context.Context) error {
		err := s.pool.QueryRow(ctx,
			"SELECT queue_name, queue_length, newest_msg_age_sec, oldest_msg_age_sec, total_messages, scrape_time FROM pgmq.metrics($1)",
			queue).Scan(&m.QueueName, &m.QueueLength, &m.NewestMsgAgeSec, &m.OldestMsgAgeSec, &m.TotalMessages, &m.ScrapeTime)
		if err != nil {
			return fmt.Errorf("failed to get queue metrics: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Close closes the underlying pool if the store owns it (Dial); otherwise it
// is a no-op.
func (s *PgxStore) Close() {
	if s.ownPool {
		s.pool.Close()
	}
}

func scanMessages(rows pgx.Rows) ([]*Message, error) {
	var messages []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ReadCount, &m.EnqueuedAt, &m.VT, &m.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
