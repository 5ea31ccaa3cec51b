package redislog

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

type channelSet struct {
	names   []string
	encoder PubSubEncoder
}

type streamSet struct {
	names   []string
	encoder StreamEncoder
	maxLen  int64
	approx  bool
}

// Config is the validated, immutable configuration of a Logger. It owns the
// connection to Redis and serializes access to it. A Config can only be
// created by a ConfigBuilder, and always has at least one channel or stream.
type Config struct {
	opts     *ConnOptions
	channels *channelSet
	streams  *streamSet

	mu       sync.Mutex // guards conn and poisoned
	conn     Conn
	poisoned bool
}

// Channels returns a copy of the pub/sub channel names, or nil when pub/sub
// delivery is not configured.
func (c *Config) Channels() []string {
	if c.channels == nil {
		return nil
	}
	return append([]string(nil), c.channels.names...)
}

// Streams returns a copy of the stream names, or nil when stream delivery is
// not configured.
func (c *Config) Streams() []string {
	if c.streams == nil {
		return nil
	}
	return append([]string(nil), c.streams.names...)
}

// PubSubEncoder returns the encoder for pub/sub payloads, or nil.
func (c *Config) PubSubEncoder() PubSubEncoder {
	if c.channels == nil {
		return nil
	}
	return c.channels.encoder
}

// StreamEncoder returns the encoder for stream entries, or nil.
func (c *Config) StreamEncoder() StreamEncoder {
	if c.streams == nil {
		return nil
	}
	return c.streams.encoder
}

// Close closes the connection. The Config must not be used afterwards.
func (c *Config) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// pipeline queues one PUBLISH per channel and one XADD per stream. The
// payloads are shared across channels and streams; nothing touches the
// network until exec.
func (c *Config) pipeline(ctx context.Context, message []byte, fields []StreamField) redis.Pipeliner {
	pipe := c.conn.Pipeline()

	if c.channels != nil {
		for _, ch := range c.channels.names {
			pipe.Publish(ctx, ch, message)
		}
	}

	if c.streams != nil {
		values := make([]any, 0, 2*len(fields))
		for _, f := range fields {
			values = append(values, f.Name, f.Value)
		}
		for _, s := range c.streams.names {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: s,
				MaxLen: c.streams.maxLen,
				Approx: c.streams.approx,
				ID:     "*",
				Values: values,
			})
		}
	}

	return pipe
}

// exec sends the pipeline in one round trip while holding the connection
// lock. A panic inside the round trip poisons the Config, and every later call
// panics with ErrConnectionPoisoned.
func (c *Config) exec(ctx context.Context, pipe redis.Pipeliner) error {
	c.mu.Lock()
	if c.poisoned {
		c.mu.Unlock()
		panic(ErrConnectionPoisoned)
	}

	completed := false
	defer func() {
		if !completed {
			c.poisoned = true
		}
		c.mu.Unlock()
	}()

	n := pipe.Len()
	_, err := pipe.Exec(ctx)
	completed = true
	if err != nil {
		return fmt.Errorf("pipeline of %d commands failed: %w", n, err)
	}
	return nil
}
