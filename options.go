package pgmq

import (
	"fmt"
	"time"
)

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithCodec installs the payload codec used by Send and every read path.
// Defaults to JSONCodec.
func WithCodec(codec Codec) ClientOption {
	return func(c *Client) {
		c.codec = codec
	}
}

// WithLogger installs a Printf-style logger, adapted to leveled output.
func WithLogger(logger Logger) ClientOption {
	return func(c *Client) {
		c.logger = &levelLogAdapter{logger: logger}
	}
}

// WithLevelLogger installs a leveled logger. zap's SugaredLogger satisfies
// the interface directly.
func WithLevelLogger(logger LevelLogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithPollConfig sets the client-wide defaults for ReadWithPoll. Per-call
// PollOptions override these. Zero fields keep their defaults (MaxWait 5s,
// Interval 250ms).
func WithPollConfig(cfg PollConfig) ClientOption {
	return func(c *Client) {
		c.poll = cfg.withDefaults()
	}
}

// SendOption configures a single Send or SendBatch call.
type SendOption func(*sendOptions)

type sendOptions struct {
	delaySec int
}

// WithDelay delays a sent message's initial visibility by d, rounded down to
// whole seconds (the store's vt granularity).
func WithDelay(d time.Duration) SendOption {
	return func(o *sendOptions) {
		o.delaySec = int(d / time.Second)
	}
}

func buildSendOptions(opts []SendOption) (sendOptions, error) {
	var options sendOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.delaySec < 0 {
		return options, fmt.Errorf("%w: send delay must not be negative", ErrInvalidConfig)
	}
	return options, nil
}
