package transfer

import (
	"time"

	"github.com/kestrel-vision/stereolink/pkg/log"
)

const (
	defaultDialTimeout     = 2 * time.Second
	defaultLivenessTimeout = 3 * time.Second
	defaultBackoffInitial  = 250 * time.Millisecond
	defaultBackoffMax      = 5 * time.Second
)

// Option configures a Session or AsyncClient.
type Option func(*options)

type options struct {
	logger          log.Logger
	dialTimeout     time.Duration
	livenessTimeout time.Duration
	backoffInitial  time.Duration
	backoffMax      time.Duration
}

func defaultOptions() options {
	return options{
		logger:          log.Nop(),
		dialTimeout:     defaultDialTimeout,
		livenessTimeout: defaultLivenessTimeout,
		backoffInitial:  defaultBackoffInitial,
		backoffMax:      defaultBackoffMax,
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDialTimeout bounds connection establishment per attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.dialTimeout = d
		}
	}
}

// WithLivenessTimeout sets the silence threshold: a streaming session that
// receives nothing for this long is considered lost.
func WithLivenessTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.livenessTimeout = d
		}
	}
}

// WithReconnectBackoff bounds the pause between reconnection attempts.
// The pause grows exponentially from initial to max and resets after a
// successful handshake.
func WithReconnectBackoff(initial, max time.Duration) Option {
	return func(o *options) {
		if initial > 0 {
			o.backoffInitial = initial
		}
		if max >= initial {
			o.backoffMax = max
		}
	}
}
