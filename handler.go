package redislog

import (
	"context"
	"log/slog"
	"runtime"
	"slices"
)

type ccKey struct{}

// ContextKey is used to extract a log value from context.Context. The value
// must be be `slog.Attr`.
//
//		Example:
//	 	ctx := context.WithValue(ctx, redislog.ContextKey,
//	 		slog.Group("req",
//	 			slog.String("method", r.Method),
//	 			slog.String("url", r.URL.String()),
//	 		)
//	 	)
//
// These attrs are added to the top scope of the Record attrs.
var ContextKey *ccKey = &ccKey{}

// Handler adapts a Logger to slog.Handler, so the Redis sink can sit behind
// the standard structured logging API.
//
//	// Example of basic usage
//	cfg, err := redislog.WithStreamsDefault(redisURL, []string{"logs"}).Build()
//	if err != nil {
//	   log.Fatalln(err)
//	}
//
//	logger := slog.New(redislog.NewHandler(cfg, nil))
//	slog.SetDefault(logger)
//
//	slog.Info("unrecognized user", "user_id", user_id)
type Handler struct {
	*HandlerOptions
	logger *Logger

	// attrs from WithAttrs, already nested under the groups open at the time
	attrs []slog.Attr

	// groups opened by WithGroup, outermost first
	groups []string
}

// NewHandler creates a Handler that sends records through cfg. A nil opts
// uses DefaultHandlerOptions.
func NewHandler(cfg *Config, opts *HandlerOptions) *Handler {
	if opts == nil {
		opts = DefaultHandlerOptions()
	} else {
		o := *opts
		opts = &o
		opts.resolve()
	}

	return &Handler{
		HandlerOptions: opts,
		logger:         NewLogger(opts.Level.Level(), cfg),
	}
}

// Init creates a Handler and installs it as the process-wide default logger
// with slog.SetDefault. It is meant to be called once, at program start. A
// later call replaces the default installed by an earlier one, and leaves the
// earlier Handler's connection open.
func Init(cfg *Config, opts *HandlerOptions) *Handler {
	h := NewHandler(cfg, opts)
	slog.SetDefault(slog.New(h))
	h.debug("installed as the default slog handler: level: %s", h.logger.Level())
	return h
}

// Logger returns the underlying Logger.
func (h *Handler) Logger() *Logger { return h.logger }

// Flush is a no-op; see Logger.Flush.
func (h *Handler) Flush() { h.logger.Flush() }

// Shutdown closes the connection owned by the Config. You MUST NOT call any
// other logger methods after calling Shutdown.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.debug("shutting down the logging stack")
	done := make(chan error, 1)
	go func() { done <- h.logger.Config().Close() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (h *Handler) debug(format string, args ...any) {
	debug(h.Verbose, format, args...)
}

// Enabled reports whether the handler handles records at the given level,
// after mapping it onto the five-level scheme with LevelFromSlog.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.Enabled(LevelFromSlog(level))
}

// Handle converts r into a Record and sends it. Delivery errors go to the
// InternalLogger, so Handle always returns nil.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	rec := &Record{
		Level:   LevelFromSlog(r.Level),
		Message: r.Message,
		Time:    r.Time,
		Target:  h.Target,
	}

	// rule: ignore source if no program counter
	if !h.OmitSource && r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		rec.File = f.File
		rec.Line = f.Line
		rec.ModulePath = modulePath(f.Function)
	}
	if rec.Target == "" {
		rec.Target = rec.ModulePath
	}

	rec.Attrs = h.recordAttrs(ctx, r)

	h.logger.Log(ctx, rec)
	return nil
}

// recordAttrs merges the context attr, the WithAttrs attrs, and the record's
// own attrs, nesting the latter under the open groups.
func (h *Handler) recordAttrs(ctx context.Context, r slog.Record) []slog.Attr {
	ctxAttr, hasCtxAttr := ctx.Value(ContextKey).(slog.Attr)
	if !hasCtxAttr && len(h.attrs) == 0 && r.NumAttrs() == 0 {
		return nil
	}

	attrs := make([]slog.Attr, 0, len(h.attrs)+2)
	if hasCtxAttr {
		attrs = append(attrs, ctxAttr)
	}
	attrs = append(attrs, h.attrs...)

	if r.NumAttrs() > 0 {
		own := make([]slog.Attr, 0, r.NumAttrs())
		r.Attrs(func(a slog.Attr) bool {
			own = append(own, a)
			return true // continue iterating
		})
		attrs = append(attrs, nest(h.groups, own)...)
	}
	return attrs
}

// nest wraps attrs in the given groups, outermost first.
func nest(groups []string, attrs []slog.Attr) []slog.Attr {
	for i := len(groups) - 1; i >= 0; i-- {
		attrs = []slog.Attr{{Key: groups[i], Value: slog.GroupValue(attrs...)}}
	}
	return attrs
}

// WithAttrs returns a new Handler whose attributes consist of both the
// receiver's attributes and the arguments.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {

	// rule: skip if no attrs
	if len(attrs) == 0 {
		return h
	}

	h2 := *h
	h2.attrs = append(slices.Clip(h.attrs), nest(h.groups, slices.Clone(attrs))...)
	return &h2
}

// WithGroup returns a new Handler with the given group appended to the
// receiver's existing groups. Attrs added later, by WithAttrs or on the
// record, are nested under it.
//
// If the name is empty, WithGroup returns the receiver, which results in the
// nested attributes being inlined into the parent scope.
func (h *Handler) WithGroup(name string) slog.Handler {

	// rule: ignore if name is empty (true for any attr)
	if len(name) == 0 {
		return h
	}

	h2 := *h
	h2.groups = append(slices.Clip(h.groups), name)
	return &h2
}
