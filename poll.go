package pgmq

import (
	"context"
	"fmt"
	"time"
)

// Default poll timing for ReadWithPoll. Override per client with
// WithPollConfig or per call with WithMaxWait / WithPollInterval.
const (
	DefaultPollMaxWait  = 5 * time.Second
	DefaultPollInterval = 250 * time.Millisecond
)

// PollConfig controls the bounded wait performed by ReadWithPoll.
type PollConfig struct {
	// MaxWait bounds the total time spent waiting for a message to appear.
	// Zero or negative means a single read with no waiting.
	MaxWait time.Duration

	// Interval is the pause between empty reads. Must be positive and, when
	// MaxWait is positive, must not exceed it.
	Interval time.Duration
}

func defaultPollConfig() PollConfig {
	return PollConfig{MaxWait: DefaultPollMaxWait, Interval: DefaultPollInterval}
}

func (p PollConfig) withDefaults() PollConfig {
	if p.MaxWait == 0 {
		p.MaxWait = DefaultPollMaxWait
	}
	if p.Interval == 0 {
		p.Interval = DefaultPollInterval
	}
	return p
}

func (p PollConfig) validate() error {
	if p.Interval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if p.MaxWait > 0 && p.Interval > p.MaxWait {
		return fmt.Errorf("%w: poll interval must not exceed max wait", ErrInvalidConfig)
	}
	return nil
}

// PollOption overrides the client's poll defaults for one ReadWithPoll call.
type PollOption func(*PollConfig)

// WithMaxWait bounds the total wait of a ReadWithPoll call. Zero or negative
// degrades the call to a single ReadBatch with no waiting.
func WithMaxWait(d time.Duration) PollOption {
	return func(p *PollConfig) {
		p.MaxWait = d
	}
}

// WithPollInterval sets the pause between empty reads.
func WithPollInterval(d time.Duration) PollOption {
	return func(p *PollConfig) {
		p.Interval = d
	}
}

// ReadWithPoll is ReadBatch with a bounded wait: it re-reads the queue every
// poll interval until a message appears or MaxWait elapses, amortizing
// empty-backlog checks into one call instead of requiring the caller to
// busy-poll.
//
// Timeout expiry with zero messages is a successful empty result, never an
// error, so callers can always distinguish "nothing available" from failure.
// The wait suspends only the calling goroutine; any number of pollers can run
// concurrently. Cancelling ctx mid-wait returns ctx.Err() and leaves no
// cleanup obligation — messages claimed by an earlier iteration are protected
// only by the vt already set, which expires on its own.
//
// pgmq also offers a server-side read_with_poll that performs the whole
// bounded wait in one round trip; this client polls itself so that any Store
// implementation, which only has to provide an atomic batch read, gets the
// same behavior.
func (c *Client) ReadWithPoll(ctx context.Context, queue string, vtSec int, count int, opts ...PollOption) ([]*Message, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	cfg := c.poll
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.MaxWait <= 0 {
		return c.ReadBatch(ctx, queue, vtSec, count)
	}

	deadline := time.Now().Add(cfg.MaxWait)
	for {
		msgs, err := c.ReadBatch(ctx, queue, vtSec, count)
		if err != nil || len(msgs) > 0 {
			return msgs, err
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.Interval):
		}
	}
}
