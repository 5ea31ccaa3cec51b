package redislog

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordCapture is a PubSubEncoder that keeps every record it is given.
type recordCapture struct {
	mu      sync.Mutex
	records []Record
}

func (c *recordCapture) EncodeMessage(r *Record) []byte {
	c.mu.Lock()
	c.records = append(c.records, *r)
	c.mu.Unlock()
	return DefaultPubSubEncoder{}.EncodeMessage(r)
}

func (c *recordCapture) last(t *testing.T) Record {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.records, "no record was sent")
	return c.records[len(c.records)-1]
}

func (c *recordCapture) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func newTestHandler(t *testing.T, opts *HandlerOptions) (*Handler, *recordCapture, *redis.Client) {
	t.Helper()
	client, _, _ := setupTestRedis(t)
	capture := &recordCapture{}
	cfg, err := NewConfigBuilder().
		Client(client).
		Channels([]string{"logs"}, capture).
		Build()
	require.NoError(t, err)
	return NewHandler(cfg, opts), capture, client
}

func TestHandler_SourceInfo(t *testing.T) {
	h, capture, _ := newTestHandler(t, nil)

	slog.New(h).Info("test-msg", "k", "v")

	r := capture.last(t)
	assert.Equal(t, LevelInfo, r.Level)
	assert.Equal(t, "test-msg", r.Message)
	assert.True(t, strings.HasSuffix(r.File, "handler_test.go"), "unexpected file: %s", r.File)
	assert.Positive(t, r.Line)
	assert.Equal(t, "github.com/bitdabbler/redislog", r.ModulePath)
	assert.Equal(t, r.ModulePath, r.Target, "expected target to fall back to the module path")
	assert.False(t, r.Time.IsZero())
}

func TestHandler_TargetOption(t *testing.T) {
	h, capture, _ := newTestHandler(t, &HandlerOptions{Target: "billing"})

	slog.New(h).Warn("test-msg")

	r := capture.last(t)
	assert.Equal(t, LevelWarn, r.Level)
	assert.Equal(t, "billing", r.Target)
	assert.Equal(t, "github.com/bitdabbler/redislog", r.ModulePath)
}

func TestHandler_OmitSource(t *testing.T) {
	h, capture, _ := newTestHandler(t, &HandlerOptions{OmitSource: true})

	slog.New(h).Error("test-msg")

	r := capture.last(t)
	assert.Equal(t, LevelError, r.Level)
	assert.Empty(t, r.File)
	assert.Zero(t, r.Line)
	assert.Empty(t, r.ModulePath)
	assert.Empty(t, r.Target)
}

func TestHandler_LogLevelOption(t *testing.T) {
	h, capture, _ := newTestHandler(t, nil)
	l := slog.New(h)
	l.Debug("dropped")
	assert.Zero(t, capture.len(), "expected debug records to be filtered by default")

	h, capture, _ = newTestHandler(t, &HandlerOptions{Level: LevelDebug})
	l = slog.New(h)
	l.Debug("kept")
	l.Log(context.Background(), SlogLevelTrace, "dropped")
	require.Equal(t, 1, capture.len())
	assert.Equal(t, LevelDebug, capture.last(t).Level)

	h, capture, _ = newTestHandler(t, &HandlerOptions{Level: LevelOff})
	slog.New(h).Error("dropped")
	assert.Zero(t, capture.len(), "expected LevelOff to disable the handler")
}

func TestHandler_Enabled(t *testing.T) {
	h, _, _ := newTestHandler(t, &HandlerOptions{Level: LevelDebug})
	ctx := context.Background()

	assert.True(t, h.Enabled(ctx, slog.LevelError))
	assert.True(t, h.Enabled(ctx, slog.LevelInfo))
	assert.True(t, h.Enabled(ctx, slog.LevelDebug))
	assert.False(t, h.Enabled(ctx, SlogLevelTrace))
}

func TestHandler_Attrs(t *testing.T) {
	h, capture, _ := newTestHandler(t, nil)

	ctx := context.WithValue(context.Background(), ContextKey,
		slog.Group("req", slog.String("method", "GET")))

	l := slog.New(h).With("svc", "api").WithGroup("call")
	l.InfoContext(ctx, "test-msg", "id", 7)

	r := capture.last(t)
	require.Len(t, r.Attrs, 3)
	assert.Equal(t, "req", r.Attrs[0].Key)
	assert.Equal(t, "svc", r.Attrs[1].Key)
	assert.Equal(t, "api", r.Attrs[1].Value.String())
	assert.Equal(t, "call", r.Attrs[2].Key)
	inner := r.Attrs[2].Value.Group()
	require.Len(t, inner, 1)
	assert.Equal(t, "id", inner[0].Key)
	assert.Equal(t, int64(7), inner[0].Value.Int64())
}

func TestHandler_WithAttrsNestedUnderGroup(t *testing.T) {
	h, capture, _ := newTestHandler(t, nil)

	l := slog.New(h).WithGroup("a").With("k", "v").WithGroup("b")
	l.Info("test-msg", "n", 1)

	r := capture.last(t)
	require.Len(t, r.Attrs, 2)
	assert.Equal(t, "a", r.Attrs[0].Key)
	assert.Equal(t, "v", r.Attrs[0].Value.Group()[0].Value.String())

	a := r.Attrs[1].Value.Group()
	require.Len(t, a, 1)
	assert.Equal(t, "b", a[0].Key)
	assert.Equal(t, "n", a[0].Value.Group()[0].Key)
}

func TestHandler_WithDoesNotLeak(t *testing.T) {
	h, capture, _ := newTestHandler(t, nil)

	base := slog.New(h).With("shared", 1)
	base.With("one", 1).Info("first")
	first := capture.last(t)
	base.With("two", 2).Info("second")
	second := capture.last(t)

	require.Len(t, first.Attrs, 2)
	require.Len(t, second.Attrs, 2)
	assert.Equal(t, "one", first.Attrs[1].Key)
	assert.Equal(t, "two", second.Attrs[1].Key)

	assert.Same(t, h, h.WithGroup(""))
	assert.Same(t, h, h.WithAttrs(nil))
}

func TestHandler_HandleNeverFails(t *testing.T) {
	captureInternalLog(t)
	client, mr, _ := setupTestRedis(t)
	cfg, err := NewConfigBuilder().
		Client(client).
		Streams([]string{"s"}, nil).
		Options(&ConnOptions{WriteTimeout: time.Second}).
		Build()
	require.NoError(t, err)
	h := NewHandler(cfg, nil)

	mr.Close()

	r := slog.NewRecord(time.Now(), slog.LevelError, "test-msg", 0)
	assert.NoError(t, h.Handle(context.Background(), r))
}

func TestInit(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	client, _, _ := setupTestRedis(t)
	capture := &recordCapture{}
	cfg, err := NewConfigBuilder().
		Client(client).
		Channels([]string{"logs"}, capture).
		Build()
	require.NoError(t, err)

	h := Init(cfg, &HandlerOptions{Target: "init"})
	assert.Same(t, h, slog.Default().Handler())

	slog.Info("via default")
	assert.Equal(t, "init", capture.last(t).Target)
}

func TestHandler_Shutdown(t *testing.T) {
	h, _, client := newTestHandler(t, nil)
	h.Flush()

	require.NoError(t, h.Shutdown(context.Background()))
	assert.ErrorIs(t, client.Ping(context.Background()).Err(), redis.ErrClosed)
}

func TestInit_ReplacesEarlierDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	client, _, _ := setupTestRedis(t)
	first := &recordCapture{}
	second := &recordCapture{}
	cfg1 := NewConfigBuilder().Client(client).Channels([]string{"a"}, first).MustBuild()
	cfg2 := NewConfigBuilder().Client(client).Channels([]string{"b"}, second).MustBuild()

	Init(cfg1, nil)
	h := Init(cfg2, nil)
	assert.Same(t, h, slog.Default().Handler())

	slog.Info("after second init")
	assert.Zero(t, first.len())
	assert.Equal(t, 1, second.len())
}
