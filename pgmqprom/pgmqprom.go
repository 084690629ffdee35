// Package pgmqprom instruments a pgmq.Store with Prometheus metrics.
//
// Wrap the store before handing it to the client:
//
//	store, _ := pgmq.NewPgxStore(pool)
//	client, _ := pgmq.New(pgmqprom.Instrument(store))
package pgmqprom

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	pgmq "github.com/pgqueue/pgmq-go"
)

var (
	messagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgmq_messages_sent_total",
			Help: "Total number of messages sent",
		},
		[]string{"queue"},
	)

	messagesRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgmq_messages_read_total",
			Help: "Total number of messages returned by reads",
		},
		[]string{"queue"},
	)

	messagesArchived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgmq_messages_archived_total",
			Help: "Total number of messages archived",
		},
		[]string{"queue"},
	)

	messagesDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgmq_messages_deleted_total",
			Help: "Total number of messages deleted",
		},
		[]string{"queue"},
	)

	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgmq_store_errors_total",
			Help: "Total number of failed store operations",
		},
		[]string{"operation"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pgmq_store_operation_duration_seconds",
			Help:    "Latency of store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// Instrument wraps next so that every store operation is counted and timed.
func Instrument(next pgmq.Store) pgmq.Store {
	return &instrumentedStore{next: next}
}

type instrumentedStore struct {
	next pgmq.Store
}

func observe(op string, start time.Time, err error) {
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		storeErrors.WithLabelValues(op).Inc()
	}
}

func (s *instrumentedStore) CreateQueue(ctx context.Context, queue string) error {
	start := time.Now()
	err := s.next.CreateQueue(ctx, queue)
	observe("create_queue", start, err)
	return err
}

func (s *instrumentedStore) CreateUnloggedQueue(ctx context.Context, queue string) error {
	start := time.Now()
	err := s.next.CreateUnloggedQueue(ctx, queue)
	observe("create_unlogged_queue", start, err)
	return err
}

func (s *instrumentedStore) DropQueue(ctx context.Context, queue string) error {
	start := time.Now()
	err := s.next.DropQueue(ctx, queue)
	observe("drop_queue", start, err)
	return err
}

func (s *instrumentedStore) Send(ctx context.Context, queue string, payload []byte, delaySec int) (int64, error) {
	start := time.Now()
	id, err := s.next.Send(ctx, queue, payload, delaySec)
	observe("send", start, err)
	if err == nil {
		messagesSent.WithLabelValues(queue).Inc()
	}
	return id, err
}

func (s *instrumentedStore) SendBatch(ctx context.Context, queue string, payloads [][]byte, delaySec int) ([]int64, error) {
	start := time.Now()
	ids, err := s.next.SendBatch(ctx, queue, payloads, delaySec)
	observe("send_batch", start, err)
	if err == nil {
		messagesSent.WithLabelValues(queue).Add(float64(len(ids)))
	}
	return ids, err
}

func (s *instrumentedStore) ReadBatch(ctx context.Context, queue string, vtSec int, count int) ([]*pgmq.Message, error) {
	start := time.Now()
	msgs, err := s.next.ReadBatch(ctx, queue, vtSec, count)
	observe("read_batch", start, err)
	if err == nil {
		messagesRead.WithLabelValues(queue).Add(float64(len(msgs)))
	}
	return msgs, err
}

func (s *instrumentedStore) Pop(ctx context.Context, queue string) (*pgmq.Message, error) {
	start := time.Now()
	msg, err := s.next.Pop(ctx, queue)
	observe("pop", start, err)
	if err == nil && msg != nil {
		messagesRead.WithLabelValues(queue).Inc()
	}
	return msg, err
}

func (s *instrumentedStore) Archive(ctx context.Context, queue string, id int64) (bool, error) {
	start := time.Now()
	archived, err := s.next.Archive(ctx, queue, id)
	observe("archive", start, err)
	if err == nil && archived {
		messagesArchived.WithLabelValues(queue).Inc()
	}
	return archived, err
}

func (s *instrumentedStore) ArchiveBatch(ctx context.Context, queue string, ids []int64) ([]int64, error) {
	start := time.Now()
	archived, err := s.next.ArchiveBatch(ctx, queue, ids)
	observe("archive_batch", start, err)
	if err == nil {
		messagesArchived.WithLabelValues(queue).Add(float64(len(archived)))
	}
	return archived, err
}

func (s *instrumentedStore) Delete(ctx context.Context, queue string, ids []int64) ([]int64, error) {
	start := time.Now()
	deleted, err := s.next.Delete(ctx, queue, ids)
	observe("delete", start, err)
	if err == nil {
		messagesDeleted.WithLabelValues(queue).Add(float64(len(deleted)))
	}
	return deleted, err
}

func (s *instrumentedStore) SetVT(ctx context.Context, queue string, id int64, vtSec int) (*pgmq.Message, error) {
	start := time.Now()
	msg, err := s.next.SetVT(ctx, queue, id, vtSec)
	observe("set_vt", start, err)
	return msg, err
}

func (s *instrumentedStore) Purge(ctx context.Context, queue string) (int64, error) {
	start := time.Now()
	purged, err := s.next.Purge(ctx, queue)
	observe("purge", start, err)
	if err == nil {
		messagesDeleted.WithLabelValues(queue).Add(float64(purged))
	}
	return purged, err
}

func (s *instrumentedStore) ListQueues(ctx context.Context) ([]pgmq.QueueInfo, error) {
	start := time.Now()
	queues, err := s.next.ListQueues(ctx)
	observe("list_queues", start, err)
	return queues, err
}

func (s *instrumentedStore) Metrics(ctx context.Context, queue string) (*pgmq.QueueMetrics, error) {
	start := time.Now()
	m, err := s.next.Metrics(ctx, queue)
	observe("metrics", start, err)
	return m, err
}

func (s *instrumentedStore) Close() {
	s.next.Close()
}
