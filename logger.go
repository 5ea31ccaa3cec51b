package redislog

import (
	"context"
)

// Logger is the sink itself: it drops records below its threshold, encodes
// the rest once per delivery mode, and sends each record to Redis in a single
// pipelined round trip. A Logger is safe for concurrent use, and holds no
// state besides its threshold and Config.
type Logger struct {
	level Level
	cfg   *Config
}

// NewLogger returns a Logger that accepts records at level or more severe.
func NewLogger(level Level, cfg *Config) *Logger {
	return &Logger{level: level, cfg: cfg}
}

// Level returns the threshold.
func (l *Logger) Level() Level { return l.level }

// Config returns the Config the Logger sends through.
func (l *Logger) Config() *Config { return l.cfg }

// Enabled reports whether records at level pass the threshold, i.e. whether
// level is at least as severe.
func (l *Logger) Enabled(level Level) bool {
	return l.level.admits(level)
}

// Log sends r to every configured channel and stream. It blocks until Redis
// answers or the WriteTimeout expires. Delivery errors are written to the
// InternalLogger, and never returned: logging must not fail the caller.
//
// Cancellation of ctx is ignored; its values are passed on to the Redis
// client hooks.
//
// Log panics with ErrConnectionPoisoned if an earlier round trip on the same
// Config panicked while holding the connection.
func (l *Logger) Log(ctx context.Context, r *Record) {
	if !l.Enabled(r.Level) {
		return
	}

	// encode outside the lock, once per mode, no matter the fan-out
	var message []byte
	if enc := l.cfg.PubSubEncoder(); enc != nil {
		message = enc.EncodeMessage(r)
	}
	var fields []StreamField
	if enc := l.cfg.StreamEncoder(); enc != nil {
		fields = enc.EncodeFields(r)
	}

	ctx = context.WithoutCancel(ctx)
	if l.cfg.opts.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.opts.WriteTimeout)
		defer cancel()
	}

	pipe := l.cfg.pipeline(ctx, message, fields)
	n := pipe.Len() // Exec empties the pipeline
	if err := l.cfg.exec(ctx, pipe); err != nil {
		InternalLogger().Printf("failed to dispatch record to redis: %v", err)
		return
	}
	if l.cfg.opts.Verbose {
		debug(true, "dispatched %s record in a pipeline of %d commands", r.Level, n)
	}
}

// Flush is a no-op: records are sent synchronously, so there is never
// anything buffered.
func (l *Logger) Flush() {}
