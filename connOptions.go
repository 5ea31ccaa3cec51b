package redislog

import "time"

// ConnOptions are used to customize how a Config talks to Redis.
//
// # Invalid options are coerced
//
// NB: The struct pointer options approach is used to be consistent with the
// options used for the Handler, which uses the struct pointer approach to be
// consistent with the `HandlerOptions` used by log/slog.
type ConnOptions struct {

	// DialTimeout sets the timeout for dialing the server, when the Config
	// opens its own connection from a URL. It overrides any dial_timeout
	// given in the URL. The default is 5s.
	DialTimeout time.Duration

	// MaxDialTries limits the number of times the builder will try to reach
	// the server (with exponential backoff between attempts) before Build
	// returns an error. If the value is < 0, Build will not return until the
	// server answers. The default is 3.
	MaxDialTries int

	// WriteTimeout bounds each pipelined round trip. The record is dropped if
	// the server does not answer in time. If WriteTimeout < 0, no timeout is
	// set beyond the client's own read and write timeouts. The default is 5s.
	WriteTimeout time.Duration

	// Verbose controls whether debug logs are written to the internal logger.
	Verbose bool
}

const (
	defaultDialTimeout  = time.Second * 5
	defaultDialTries    = 3
	defaultWriteTimeout = time.Second * 5
)

// DefaultConnOptions returns *ConnOptions with all default values.
func DefaultConnOptions() *ConnOptions {
	return &ConnOptions{
		DialTimeout:  defaultDialTimeout,
		MaxDialTries: defaultDialTries,
		WriteTimeout: defaultWriteTimeout,
	}
}

// resolve ensures that all options have valid values.
func (o *ConnOptions) resolve() {

	// must be positive
	if o.DialTimeout < 1 {
		o.DialTimeout = defaultDialTimeout
	}

	// can be negative (infinity) or positive, but not 0
	if o.MaxDialTries == 0 {
		o.MaxDialTries = defaultDialTries
	}

	// can be negative (none) or positive, but not 0
	if o.WriteTimeout == 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
}
