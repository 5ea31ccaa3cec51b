package redislog

import "errors"

var (
	// ErrClientNotSet is returned by ConfigBuilder.Build when neither a client
	// nor a connection URL was supplied.
	ErrClientNotSet = errors.New("redislog: redis client not set")

	// ErrChannelNotSet is returned by ConfigBuilder.Build when no channels and
	// no streams were supplied, or when a supplied list is empty.
	ErrChannelNotSet = errors.New("redislog: channels not set; set at least one pub/sub channel and/or one stream name")

	// ErrConnection wraps failures to open a connection from a URL.
	ErrConnection = errors.New("redislog: connect to redis")

	// ErrConnectionPoisoned is the panic value raised when a Config is used
	// after a goroutine panicked while holding its connection lock.
	ErrConnectionPoisoned = errors.New("redislog: connection lock poisoned by an earlier panic")
)
