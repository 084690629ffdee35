package pgmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Consumer continuously fetches messages from a single queue into a buffered
// channel. Create via Client.Consume.
//
// The fetch loop runs ReadWithPoll in a dedicated goroutine, so the channel
// fills as messages arrive without the application busy-polling. A received
// message is protected by its visibility timeout; the application settles it
// with Client.Archive or Client.Delete before the vt expires, or it will be
// redelivered.
type Consumer struct {
	client       *Client
	queue        string
	messages     chan *Message
	batchSize    int
	vtSec        int
	checkTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	logger       LevelLogger
}

// consumeOptions holds configuration for message consumption.
type consumeOptions struct {
	batchSize    int
	vtSec        int
	checkTimeout time.Duration
}

// ConsumeOption configures a Consumer.
type ConsumeOption func(*consumeOptions)

func defaultConsumeOptions() consumeOptions {
	return consumeOptions{
		batchSize:    5,
		vtSec:        30,
		checkTimeout: 10 * time.Second,
	}
}

func (o consumeOptions) validate() error {
	if o.batchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	if o.vtSec <= 0 {
		return fmt.Errorf("%w: visibility timeout must be positive", ErrInvalidConfig)
	}
	if o.checkTimeout <= 0 {
		return fmt.Errorf("%w: check timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// WithBatchSize sets how many messages to fetch per read. The Messages
// channel is buffered to this size. Default 5.
func WithBatchSize(n int) ConsumeOption {
	return func(o *consumeOptions) {
		o.batchSize = n
	}
}

// WithVT sets the visibility timeout (seconds) applied to fetched messages.
// It should comfortably exceed the application's processing time. Default 30.
func WithVT(seconds int) ConsumeOption {
	return func(o *consumeOptions) {
		o.vtSec = seconds
	}
}

// WithCheckTimeout bounds each poll pass over an empty queue. Shorter values
// make Stop more responsive at the cost of more frequent reads. Default 10s.
func WithCheckTimeout(d time.Duration) ConsumeOption {
	return func(o *consumeOptions) {
		o.checkTimeout = d
	}
}

// Consume starts a Consumer for queue. It returns immediately; messages flow
// on the Messages channel until Stop is called or ctx is cancelled.
func (c *Client) Consume(ctx context.Context, queue string, opts ...ConsumeOption) (*Consumer, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	options := defaultConsumeOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	consumer := &Consumer{
		client:       c,
		queue:        queue,
		messages:     make(chan *Message, options.batchSize),
		batchSize:    options.batchSize,
		vtSec:        options.vtSec,
		checkTimeout: options.checkTimeout,
		ctx:          ctx,
		cancel:       cancel,
		logger:       c.logger,
	}
	consumer.wg.Add(1)
	go consumer.run()
	return consumer, nil
}

// Messages returns the channel the fetch loop delivers to. It is closed
// after Stop.
func (c *Consumer) Messages() <-chan *Message {
	return c.messages
}

// Stop halts the fetch loop, releases fetched-but-undelivered messages back
// to the queue and closes the Messages channel. Messages already delivered to
// the application stay locked until their vt expires or they are settled.
func (c *Consumer) Stop() {
	c.cancel()
	c.wg.Wait()
}

func (c *Consumer) run() {
	defer c.wg.Done()
	defer close(c.messages)

	// The client's poll interval may exceed a short check timeout; clamp it
	// so each fetch stays a valid bounded poll.
	interval := c.client.poll.Interval
	if interval > c.checkTimeout {
		interval = c.checkTimeout
	}

	for {
		msgs, err := c.client.ReadWithPoll(c.ctx, c.queue, c.vtSec, c.batchSize,
			WithMaxWait(c.checkTimeout), WithPollInterval(interval))
		if err != nil {
			if c.ctx.Err() != nil || errors.Is(err, ErrClientClosed) {
				return
			}
			c.logger.Errorf("Failed to fetch messages from queue %s: %v", c.queue, err)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for i, msg := range msgs {
			select {
			case c.messages <- msg:
			case <-c.ctx.Done():
				c.release(msgs[i:])
				return
			}
		}

		if c.ctx.Err() != nil {
			return
		}
	}
}

// release makes fetched but undelivered messages immediately visible again
// instead of leaving them hidden until their vt runs out.
func (c *Consumer) release(msgs []*Message) {
	// Shutdown path: the consumer context is already cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, msg := range msgs {
		if _, err := c.client.SetVT(ctx, c.queue, msg.ID, 0); err != nil {
			c.logger.Warnf("Failed to release message %d on queue %s: %v", msg.ID, c.queue, err)
		}
	}
}
