package redislog

// HandlerOptions are used to customize the redislog slog.Handler.
//
// NB: The struct pointer options approach is used to be consistent with the
// approach used in the standard library for `HandlerOptions`.
type HandlerOptions struct {

	// Level reports the least severe level that will be sent to Redis. If
	// Level is nil, the handler assumes LevelInfo. It is read once, when the
	// handler is created. Use LevelOff to disable the handler.
	Level Leveler

	// Target names the logical source of the records, and is written to the
	// "target" field. If empty, the package path of the calling function is
	// used, or "" when the source is unknown.
	Target string

	// OmitSource stops the handler from resolving the source file, line and
	// package of the log call. They are then encoded as absent.
	OmitSource bool

	// Verbose controls whether debug logs are written to the internal logger.
	Verbose bool
}

// DefaultHandlerOptions returns *HandlerOptions with all default values.
func DefaultHandlerOptions() *HandlerOptions {
	return &HandlerOptions{
		Level: LevelInfo,
	}
}

// resolve ensures that all options have valid values.
func (o *HandlerOptions) resolve() {

	// set default log level if not provided
	if o.Level == nil {
		o.Level = LevelInfo
	}

	// out of range levels fall back to the default
	if l := o.Level.Level(); l < LevelOff || l > LevelTrace {
		InternalLogger().Printf("HandlerOptions.Level is invalid: %d; using %s", int(l), LevelInfo)
		o.Level = LevelInfo
	}
}
