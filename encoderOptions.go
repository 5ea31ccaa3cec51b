package redislog

import "time"

// EncoderOptions are used to customize the MsgpackPubSubEncoder and its buffer
// pool.
//
// NB: The struct pointer options approach is used to be consistent with the
// options used for the Handler, which uses the struct pointer approach to be
// consistent with the `HandlerOptions` used by log/slog.
type EncoderOptions struct {
	//NewBufferCap sets the capacity, in bytes, for newly created encoder
	//buffers. The minimum value is 64 bytes. The default is 1KiB (1<<10).
	NewBufferCap int

	// MaxBufferCap sets the maximum buffer capacity , in bytes, beyond which a
	// buffer will not be returned to the shared pool, to prevent rare,
	// unusually large buffers from staying resident in memory. The minimum
	// value is the `NewBufferCap`. The default is 8KiB (1<<13).
	MaxBufferCap int

	// TimeFormat controls how time values inside record attrs get serialized.
	// It does not change the record timestamp itself. The default is
	// time.RFC3339Nano.
	TimeFormat string

	// UseCoarseTimestamps controls whether the record time is serialized as
	// Unix epoch seconds instead of an EventTime extension value.
	UseCoarseTimestamps bool
}

const (
	minBufferCap        = 64
	defaultNewBufferCap = 1024
	defaultMaxBufferCap = 8192
	defaultTimeFormat   = time.RFC3339Nano
)

// DefaultEncoderOptions returns *EncoderOptions with all default values.
func DefaultEncoderOptions() *EncoderOptions {
	return &EncoderOptions{
		NewBufferCap: defaultNewBufferCap,
		MaxBufferCap: defaultMaxBufferCap,
		TimeFormat:   defaultTimeFormat,
	}
}

// resolve ensures that all options have valid values.
func (o *EncoderOptions) resolve() {
	if o.NewBufferCap == 0 {
		o.NewBufferCap = defaultNewBufferCap
	}
	o.NewBufferCap = max(o.NewBufferCap, minBufferCap)
	if o.MaxBufferCap == 0 {
		o.MaxBufferCap = defaultMaxBufferCap
	}
	o.MaxBufferCap = max(o.NewBufferCap, o.MaxBufferCap)
	if len(o.TimeFormat) == 0 {
		o.TimeFormat = defaultTimeFormat
	}
}
