package redislog

import (
	"context"
	"fmt"
)

// ConfigBuilder collects the parts of a Config. Setters may be called in any
// order, and each one replaces the value previously set for its slot: calling
// Channels twice keeps only the second list.
//
//	cfg, err := redislog.NewConfigBuilder().
//		Client(rdb).
//		Channels([]string{"logs"}, nil).
//		Streams([]string{"logs:stream"}, myEncoder).
//		Build()
type ConfigBuilder struct {
	conn     Conn
	url      string
	opts     *ConnOptions
	channels *channelSet
	streams  *streamSet
	maxLen   int64
	approx   bool
}

// NewConfigBuilder returns an empty builder.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

// Client sets an already open connection. It replaces any URL set earlier.
// See Conn for the client options that keep a record to one round trip.
func (b *ConfigBuilder) Client(conn Conn) *ConfigBuilder {
	b.conn = conn
	b.url = ""
	return b
}

// URL sets a redis:// or rediss:// URL that Build will connect to. It replaces
// any client set earlier.
func (b *ConfigBuilder) URL(url string) *ConfigBuilder {
	b.url = url
	b.conn = nil
	return b
}

// Channels sets the pub/sub channels and their encoder. A nil encoder selects
// DefaultPubSubEncoder.
func (b *ConfigBuilder) Channels(names []string, encoder PubSubEncoder) *ConfigBuilder {
	if encoder == nil {
		encoder = DefaultPubSubEncoder{}
	}
	b.channels = &channelSet{names: names, encoder: encoder}
	return b
}

// Streams sets the streams and their encoder. A nil encoder selects
// DefaultStreamEncoder.
func (b *ConfigBuilder) Streams(names []string, encoder StreamEncoder) *ConfigBuilder {
	if encoder == nil {
		encoder = DefaultStreamEncoder{}
	}
	b.streams = &streamSet{names: names, encoder: encoder}
	return b
}

// StreamMaxLen caps every stream at n entries (MAXLEN on each XADD). With
// approx set, Redis may keep a few more entries in exchange for cheaper
// trimming (MAXLEN ~). A value of 0 disables trimming, which is the default.
func (b *ConfigBuilder) StreamMaxLen(n int64, approx bool) *ConfigBuilder {
	b.maxLen = max(n, 0)
	b.approx = approx
	return b
}

// Options sets the connection options. A nil opts restores the defaults.
func (b *ConfigBuilder) Options(opts *ConnOptions) *ConfigBuilder {
	b.opts = opts
	return b
}

// Build validates the builder and returns the Config. The checks run in
// order, and nothing is dialed until they all pass:
//
//   - no client and no URL: ErrClientNotSet
//   - no channels and no streams: ErrChannelNotSet
//   - an empty channel or stream list: ErrChannelNotSet
//   - URL given, but the server cannot be reached: ErrConnection
func (b *ConfigBuilder) Build() (*Config, error) {
	return b.BuildContext(context.Background())
}

// BuildContext is Build, with a Context that can cancel or set a deadline for
// connecting to a URL.
func (b *ConfigBuilder) BuildContext(ctx context.Context) (*Config, error) {
	if b.conn == nil && len(b.url) == 0 {
		return nil, ErrClientNotSet
	}
	if b.channels == nil && b.streams == nil {
		return nil, ErrChannelNotSet
	}
	if b.channels != nil && len(b.channels.names) == 0 {
		return nil, fmt.Errorf("%w: empty channel list", ErrChannelNotSet)
	}
	if b.streams != nil && len(b.streams.names) == 0 {
		return nil, fmt.Errorf("%w: empty stream list", ErrChannelNotSet)
	}

	opts := b.opts
	if opts == nil {
		opts = DefaultConnOptions()
	} else {
		o := *opts
		opts = &o
		opts.resolve()
	}

	cfg := &Config{opts: opts}

	// copy the name lists, so later changes by the caller cannot leak in
	if b.channels != nil {
		cfg.channels = &channelSet{
			names:   append([]string(nil), b.channels.names...),
			encoder: b.channels.encoder,
		}
	}
	if b.streams != nil {
		cfg.streams = &streamSet{
			names:   append([]string(nil), b.streams.names...),
			encoder: b.streams.encoder,
			maxLen:  b.maxLen,
			approx:  b.approx,
		}
	}

	if b.conn != nil {
		cfg.conn = b.conn
		return cfg, nil
	}

	c, err := dial(ctx, b.url, opts)
	if err != nil {
		return nil, err
	}
	cfg.conn = c
	debug(opts.Verbose, "built config: channels: %v: streams: %v", cfg.Channels(), cfg.Streams())
	return cfg, nil
}

// MustBuild is like Build but panics if the configuration is invalid or the
// connection cannot be opened. It is meant for fixed configuration at program
// start, where there is no sensible fallback.
func (b *ConfigBuilder) MustBuild() *Config {
	cfg, err := b.Build()
	if err != nil {
		panic(err)
	}
	return cfg
}

// WithPubSub returns a builder that publishes to channels using encoder, over
// a connection opened from url.
func WithPubSub(url string, channels []string, encoder PubSubEncoder) *ConfigBuilder {
	return NewConfigBuilder().URL(url).Channels(channels, encoder)
}

// WithPubSubDefault is WithPubSub with DefaultPubSubEncoder.
func WithPubSubDefault(url string, channels []string) *ConfigBuilder {
	return WithPubSub(url, channels, DefaultPubSubEncoder{})
}

// WithStreams returns a builder that appends to streams using encoder, over a
// connection opened from url.
func WithStreams(url string, streams []string, encoder StreamEncoder) *ConfigBuilder {
	return NewConfigBuilder().URL(url).Streams(streams, encoder)
}

// WithStreamsDefault is WithStreams with DefaultStreamEncoder.
func WithStreamsDefault(url string, streams []string) *ConfigBuilder {
	return WithStreams(url, streams, DefaultStreamEncoder{})
}

// WithPubSubAndStreams returns a builder that both publishes to channels and
// appends to streams, over a connection opened from url.
func WithPubSubAndStreams(
	url string,
	channels []string,
	pubSubEncoder PubSubEncoder,
	streams []string,
	streamEncoder StreamEncoder,
) *ConfigBuilder {
	return NewConfigBuilder().
		URL(url).
		Channels(channels, pubSubEncoder).
		Streams(streams, streamEncoder)
}

// WithPubSubAndStreamsDefault is WithPubSubAndStreams with both default
// encoders.
func WithPubSubAndStreamsDefault(url string, channels, streams []string) *ConfigBuilder {
	return WithPubSubAndStreams(url, channels, DefaultPubSubEncoder{}, streams, DefaultStreamEncoder{})
}
