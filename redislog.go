/*
Package redislog provides a Go logging sink that forwards log events to Redis,
including:

  - `redislog.Logger` - filters by severity, encodes each record, and submits
    one pipelined batch of `PUBLISH` and `XADD` commands per record
  - `redislog.Handler` - adapts the Logger to `slog.Handler`, so it can be
    registered as the process-wide default logger
  - `redislog.Config` - the immutable sink configuration, built and validated
    by `redislog.ConfigBuilder`
  - `redislog.PubSubEncoder` and `redislog.StreamEncoder` - pluggable encoders
    for pub/sub payloads and stream entries, with defaults for both

Delivery is fire-and-forget. Each record costs exactly one network round trip,
no matter how many channels and streams it fans out to, and the encoders run
exactly once per record per delivery mode:

  - the pub/sub payload is encoded once and published to every channel
  - the stream fields are encoded once and appended to every stream
  - encoding happens before the shared connection is locked; only the
    pipeline execution holds the lock

Failed deliveries are reported through the InternalLogger and never reach the
logging call site. The only fatal condition is a connection whose lock was
held by a goroutine that panicked mid-request, since the connection state is
unknown from then on.

	cfg, err := redislog.WithPubSubAndStreamsDefault(
		"redis://localhost:6379/0",
		[]string{"logs"},
		[]string{"logs:stream"},
	).Build()
	if err != nil {
		log.Fatalln(err)
	}
	redislog.Init(cfg, &redislog.HandlerOptions{Level: redislog.LevelDebug})

	slog.Info("unrecognized user", "user_id", userID)
*/
package redislog
