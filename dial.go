package redislog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitdabbler/backoff"
	"github.com/redis/go-redis/v9"
)

// Conn is the connection a Config owns. *redis.Client, *redis.ClusterClient
// and *redis.Ring all satisfy it.
//
// Each record must cost one round trip, and be bounded by
// ConnOptions.WriteTimeout, so a client passed to ConfigBuilder.Client should
// be created with MaxRetries: -1 and ContextTimeoutEnabled: true. Clients
// opened from a URL are always configured this way.
type Conn interface {
	Pipeline() redis.Pipeliner
	Close() error
}

// dial opens a client from a redis:// or rediss:// URL and waits until the
// server answers a PING. The returned error always wraps ErrConnection.
//
// Retries are disabled, whatever the URL says, and context deadlines apply to
// socket I/O.
func dial(ctx context.Context, url string, opts *ConnOptions) (*redis.Client, error) {
	ro, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url: %w", ErrConnection, err)
	}
	ro.DialTimeout = opts.DialTimeout
	ro.MaxRetries = -1
	ro.ContextTimeoutEnabled = true

	c := redis.NewClient(ro)
	if err := tryPing(ctx, c, opts); err != nil {
		if cerr := c.Close(); cerr != nil {
			InternalLogger().Printf("error closing unused client: %v", cerr)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, ro.Addr, err)
	}
	return c, nil
}

func tryPing(ctx context.Context, c *redis.Client, opts *ConnOptions) error {
	debug(opts.Verbose, "attempting to reach redis at %s", c.Options().Addr)

	b, err := backoff.New(
		backoff.WithInitialDelay(0),
		backoff.WithExponentialLimit(time.Second*20),
	)
	if err != nil {
		return err
	}

	maxAttempts := opts.MaxDialTries
	i := 0
	for {
		i++
		err = ping(ctx, c, opts.DialTimeout)
		if err == nil {
			debug(opts.Verbose, "redis answered on attempt %d", i)
			return nil
		}

		debug(opts.Verbose, "failed to reach redis on attempt %d: %v", i, err)

		if maxAttempts > 0 && i >= maxAttempts {
			break
		}
		if ctx.Err() != nil {
			return errors.Join(err, ctx.Err())
		}

		if serr := sleep(ctx, b); serr != nil {
			return errors.Join(err, serr)
		}
	}

	return fmt.Errorf("maxAttempts reached: %d: %w", maxAttempts, err)
}

// sleep backs off, returning early when ctx is done.
func sleep(ctx context.Context, b *backoff.Backoff) error {
	done := make(chan struct{})
	go func() {
		b.Sleep()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func ping(ctx context.Context, c *redis.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Ping(ctx).Err()
}

func debug(verbose bool, format string, args ...any) {
	if !verbose {
		return
	}
	InternalLogger().Printf(format, args...)
}
