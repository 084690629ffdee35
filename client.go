package pgmq

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Client is a handle to queues managed by a pgmq-style durable store.
//
// The client is stateless apart from its configuration: it holds no locks
// across store calls and every method maps to exactly one atomic store
// operation, so a single Client is safe for unrestricted concurrent use
// across any number of queues and goroutines. Delivery exclusivity is
// delegated entirely to the store's atomic read primitive; the client never
// holds a server-side lock itself.
//
// Empty-queue reads are successful results, not errors: Read and Pop return
// (nil, nil), ReadBatch and ReadWithPoll return an empty slice.
type Client struct {
	store  Store
	codec  Codec
	poll   PollConfig
	logger LevelLogger

	closeOnce  sync.Once
	closedFlag chan struct{}
}

// Dial creates a Client with its own pgx connection pool built from config.
// The client owns the pool and closes it on Close.
func Dial(ctx context.Context, config *pgxpool.Config, opts ...ClientOption) (*Client, error) {
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	c, err := dialPool(pool, true, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

// DialFromPool creates a Client over an existing Pool (typically
// *pgxpool.Pool). The client does not own the pool and will not close it.
func DialFromPool(ctx context.Context, pool Pool, opts ...ClientOption) (*Client, error) {
	return dialPool(pool, false, opts...)
}

// New creates a Client over any Store implementation. Use this to plug in a
// substitute backend or a decorated store (for example pgmqprom.Instrument).
func New(store Store, opts ...ClientOption) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store must not be nil", ErrInvalidConfig)
	}
	return newClient(store, opts...)
}

func dialPool(pool Pool, ownPool bool, opts ...ClientOption) (*Client, error) {
	c, err := newClient(nil, opts...)
	if err != nil {
		return nil, err
	}
	store, err := NewPgxStore(pool, WithStoreLogger(c.logger))
	if err != nil {
		return nil, err
	}
	store.ownPool = ownPool
	c.store = store
	return c, nil
}

func newClient(store Store, opts ...ClientOption) (*Client, error) {
	c := &Client{
		store:      store,
		codec:      JSONCodec{},
		poll:       defaultPollConfig(),
		logger:     NoopLogger{},
		closedFlag: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.codec == nil {
		return nil, fmt.Errorf("%w: codec must not be nil", ErrInvalidConfig)
	}
	if err := c.poll.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Close releases the underlying store. It is idempotent; operations attempted
// after Close fail with ErrClientClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closedFlag)
		c.store.Close()
	})
	return nil
}

// CreateQueue provisions a queue. The operation is idempotent: creating a
// queue that already exists succeeds without effect.
func (c *Client) CreateQueue(ctx context.Context, queue string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	return c.store.CreateQueue(ctx, queue)
}

// CreateUnloggedQueue provisions a queue backed by an unlogged table. Faster
// writes, but the backlog does not survive a server crash. Idempotent.
func (c *Client) CreateUnloggedQueue(ctx context.Context, queue string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	return c.store.CreateUnloggedQueue(ctx, queue)
}

// DropQueue destroys a queue and its entire backlog, active and archived.
// Dropping a queue that does not exist fails with the store's error.
func (c *Client) DropQueue(ctx context.Context, queue string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	return c.store.DropQueue(ctx, queue)
}

// Send encodes v with the client's codec and enqueues it, returning the new
// message id. Encoding failures are local (*EncodeError) and never reach the
// store. The message is immediately visible unless delayed with WithDelay.
func (c *Client) Send(ctx context.Context, queue string, v any, opts ...SendOption) (int64, error) {
	if err := c.checkClosed(); err != nil {
		return 0, err
	}
	options, err := buildSendOptions(opts)
	if err != nil {
		return 0, err
	}
	payload, err := c.codec.Encode(v)
	if err != nil {
		return 0, &EncodeError{Err: err}
	}
	return c.store.Send(ctx, queue, payload, options.delaySec)
}

// SendBatch encodes values and enqueues them in one atomic store call,
// returning the new message ids in order. If any value fails to encode the
// whole call fails locally and nothing is sent.
func (c *Client) SendBatch(ctx context.Context, queue string, values []any, opts ...SendOption) ([]int64, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	options, err := buildSendOptions(opts)
	if err != nil {
		return nil, err
	}
	payloads := make([][]byte, len(values))
	for i, v := range values {
		p, err := c.codec.Encode(v)
		if err != nil {
			return nil, &EncodeError{Err: err}
		}
		payloads[i] = p
	}
	return c.store.SendBatch(ctx, queue, payloads, options.delaySec)
}

// Read atomically takes the single oldest visible message: its vt is set to
// now + vtSec seconds, its read count is incremented, and its body is decoded.
// Returns (nil, nil) when the backlog has no visible message.
//
// Until the vt expires no other reader can receive the message; if it is not
// archived or deleted by then it becomes visible again and will be
// redelivered (at-least-once delivery).
func (c *Client) Read(ctx context.Context, queue string, vtSec int) (*Message, error) {
	msgs, err := c.ReadBatch(ctx, queue, vtSec, 1)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return msgs[0], nil
}

// ReadBatch is Read applied to up to count messages in one atomic store call.
// It returns between 0 and count messages; there are no partial failures —
// either the call succeeds with whatever subset is visible, or it fails
// wholesale on a store error.
func (c *Client) ReadBatch(ctx context.Context, queue string, vtSec int, count int) ([]*Message, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	if vtSec < 0 {
		return nil, fmt.Errorf("%w: visibility timeout must not be negative", ErrInvalidConfig)
	}
	if count < 1 {
		return nil, fmt.Errorf("%w: count must be positive", ErrInvalidConfig)
	}
	msgs, err := c.store.ReadBatch(ctx, queue, vtSec, count)
	if err != nil {
		return nil, err
	}
	if err := c.decodeAll(msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Pop atomically reads and deletes the oldest visible message, skipping the
// visibility-timeout protocol entirely. Returns (nil, nil) on an empty
// backlog. Use it when redelivery on failure is not wanted.
func (c *Client) Pop(ctx context.Context, queue string) (*Message, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	msg, err := c.store.Pop(ctx, queue)
	if err != nil || msg == nil {
		return nil, err
	}
	if err := c.decode(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Archive moves a message out of the active backlog into the queue's archive.
// Terminal and non-destructive: the message stays retrievable from the
// archive table but never reappears in reads. Returns ErrMessageNotFound when
// id is not in the active backlog.
func (c *Client) Archive(ctx context.Context, queue string, id int64) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	archived, err := c.store.Archive(ctx, queue, id)
	if err != nil {
		return err
	}
	if !archived {
		return ErrMessageNotFound
	}
	return nil
}

// ArchiveBatch archives ids in one atomic call and returns the subset that
// was actually archived. Missing ids are skipped, not errors.
func (c *Client) ArchiveBatch(ctx context.Context, queue string, ids []int64) ([]int64, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return c.store.ArchiveBatch(ctx, queue, ids)
}

// Delete permanently removes messages. Idempotent with partial-success
// semantics: the returned slice is the subset of ids actually deleted, ids
// that were already deleted or never existed are skipped without error, and
// an empty ids list is a no-op that succeeds without touching the store.
func (c *Client) Delete(ctx context.Context, queue string, ids ...int64) ([]int64, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return c.store.Delete(ctx, queue, ids)
}

// SetVT replaces a message's visibility timeout with now + vtSec seconds and
// returns the updated message. vtSec of 0 makes the message immediately
// visible again, releasing it to other readers. Returns ErrMessageNotFound
// when id is not in the active backlog.
func (c *Client) SetVT(ctx context.Context, queue string, id int64, vtSec int) (*Message, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	if vtSec < 0 {
		return nil, fmt.Errorf("%w: visibility timeout must not be negative", ErrInvalidConfig)
	}
	msg, err := c.store.SetVT(ctx, queue, id, vtSec)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if err := c.decode(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// PurgeQueue deletes every message in the queue's active backlog and returns
// the number removed. The queue itself and its archive remain.
func (c *Client) PurgeQueue(ctx context.Context, queue string) (int64, error) {
	if err := c.checkClosed(); err != nil {
		return 0, err
	}
	return c.store.Purge(ctx, queue)
}

// ListQueues returns all queues known to the store.
func (c *Client) ListQueues(ctx context.Context) ([]QueueInfo, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	return c.store.ListQueues(ctx)
}

// Metrics returns backlog statistics for a queue.
func (c *Client) Metrics(ctx context.Context, queue string) (*QueueMetrics, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	return c.store.Metrics(ctx, queue)
}

func (c *Client) decodeAll(msgs []*Message) error {
	for _, m := range msgs {
		if err := c.decode(m); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) decode(m *Message) error {
	body, err := c.codec.Decode(m.Payload)
	if err != nil {
		return &DecodeError{MsgID: m.ID, Err: err}
	}
	m.Body = body
	return nil
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closedFlag:
		return true
	default:
		return false
	}
}

func (c *Client) checkClosed() error {
	if c.isClosed() {
		return ErrClientClosed
	}
	return nil
}
