package pgmq_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	pgmq "github.com/pgqueue/pgmq-go"
)

// memStore is an in-memory Store used by the unit tests. It honors the same
// contract as the pgx-backed store: reads are atomic under a single lock, a
// read hides the message until its vt and increments its read count, archive
// is terminal and non-destructive, delete is terminal and destructive.
//
// The clock can be advanced manually so visibility expiry is testable without
// real sleeps.
type memStore struct {
	mu      sync.Mutex
	base    time.Time
	offset  time.Duration
	queues  map[string]*memQueue
	reads   int // number of ReadBatch calls, for poll assertions
	sends   int
	deletes int
}

type memQueue struct {
	nextID   int64
	active   []*memMessage
	archived map[int64][]byte
}

type memMessage struct {
	id         int64
	payload    []byte
	enqueuedAt time.Time
	readCount  int64
	vt         time.Time
}

func newMemStore() *memStore {
	return &memStore{
		base:   time.Now(),
		queues: make(map[string]*memQueue),
	}
}

func (s *memStore) now() time.Time {
	return s.base.Add(s.offset)
}

// advance moves the store's clock forward without sleeping.
func (s *memStore) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset += d
}

func (s *memStore) readCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *memStore) sendCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sends
}

func (s *memStore) deleteCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}

func (s *memStore) queue(name string) (*memQueue, error) {
	q, ok := s.queues[name]
	if !ok {
		return nil, fmt.Errorf("queue %q does not exist", name)
	}
	return q, nil
}

func (s *memStore) CreateQueue(ctx context.Context, queue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queues[queue]; !ok {
		s.queues[queue] = &memQueue{nextID: 1, archived: make(map[int64][]byte)}
	}
	return nil
}

func (s *memStore) CreateUnloggedQueue(ctx context.Context, queue string) error {
	return s.CreateQueue(ctx, queue)
}

func (s *memStore) DropQueue(ctx context.Context, queue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queues[queue]; !ok {
		return fmt.Errorf("queue %q does not exist", queue)
	}
	delete(s.queues, queue)
	return nil
}

func (s *memStore) Send(ctx context.Context, queue string, payload []byte, delaySec int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends++
	return s.enqueue(queue, payload, delaySec)
}

func (s *memStore) SendBatch(ctx context.Context, queue string, payloads [][]byte, delaySec int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends++
	ids := make([]int64, 0, len(payloads))
	for _, p := range payloads {
		id, err := s.enqueue(queue, p, delaySec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memStore) enqueue(queue string, payload []byte, delaySec int) (int64, error) {
	q, err := s.queue(queue)
	if err != nil {
		return 0, err
	}
	now := s.now()
	msg := &memMessage{
		id:         q.nextID,
		payload:    append([]byte(nil), payload...),
		enqueuedAt: now,
		vt:         now.Add(time.Duration(delaySec) * time.Second),
	}
	q.nextID++
	q.active = append(q.active, msg)
	return msg.id, nil
}

func (s *memStore) ReadBatch(ctx context.Context, queue string, vtSec int, count int) ([]*pgmq.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	q, err := s.queue(queue)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var out []*pgmq.Message
	for _, m := range q.active {
		if len(out) == count {
			break
		}
		if m.vt.After(now) {
			continue
		}
		m.vt = now.Add(time.Duration(vtSec) * time.Second)
		m.readCount++
		out = append(out, m.snapshot())
	}
	return out, nil
}

func (s *memStore) Pop(ctx context.Context, queue string) (*pgmq.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.queue(queue)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i, m := range q.active {
		if m.vt.After(now) {
			continue
		}
		q.active = append(q.active[:i], q.active[i+1:]...)
		return m.snapshot(), nil
	}
	return nil, nil
}

func (s *memStore) Archive(ctx context.Context, queue string, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.queue(queue)
	if err != nil {
		return false, err
	}
	for i, m := range q.active {
		if m.id == id {
			q.archived[id] = m.payload
			q.active = append(q.active[:i], q.active[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ArchiveBatch(ctx context.Context, queue string, ids []int64) ([]int64, error) {
	var archived []int64
	for _, id := range ids {
		ok, err := s.Archive(ctx, queue, id)
		if err != nil {
			return nil, err
		}
		if ok {
			archived = append(archived, id)
		}
	}
	return archived, nil
}

func (s *memStore) Delete(ctx context.Context, queue string, ids []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	q, err := s.queue(queue)
	if err != nil {
		return nil, err
	}
	var deleted []int64
	for _, id := range ids {
		for i, m := range q.active {
			if m.id == id {
				q.active = append(q.active[:i], q.active[i+1:]...)
				deleted = append(deleted, id)
				break
			}
		}
	}
	return deleted, nil
}

func (s *memStore) SetVT(ctx context.Context, queue string, id int64, vtSec int) (*pgmq.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.queue(queue)
	if err != nil {
		return nil, err
	}
	for _, m := range q.active {
		if m.id == id {
			m.vt = s.now().Add(time.Duration(vtSec) * time.Second)
			return m.snapshot(), nil
		}
	}
	return nil, nil
}

func (s *memStore) Purge(ctx context.Context, queue string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.queue(queue)
	if err != nil {
		return 0, err
	}
	n := int64(len(q.active))
	q.active = nil
	return n, nil
}

func (s *memStore) ListQueues(ctx context.Context) ([]pgmq.QueueInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queues := make([]pgmq.QueueInfo, 0, len(s.queues))
	for name := range s.queues {
		queues = append(queues, pgmq.QueueInfo{Name: name})
	}
	return queues, nil
}

func (s *memStore) Metrics(ctx context.Context, queue string) (*pgmq.QueueMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.queue(queue)
	if err != nil {
		return nil, err
	}
	return &pgmq.QueueMetrics{
		QueueName:     queue,
		QueueLength:   int64(len(q.active)),
		TotalMessages: q.nextID - 1,
		ScrapeTime:    s.now(),
	}, nil
}

func (s *memStore) Close() {}

func (m *memMessage) snapshot() *pgmq.Message {
	return &pgmq.Message{
		ID:         m.id,
		Payload:    append([]byte(nil), m.payload...),
		EnqueuedAt: m.enqueuedAt,
		ReadCount:  m.readCount,
		VT:         m.vt,
	}
}
