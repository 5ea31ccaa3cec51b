package redislog

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// pipelineHook records every pipeline sent by a client. It implements
// redis.Hook.
type pipelineHook struct {
	mu    sync.Mutex
	execs [][]string // command names per round trip
	panic bool
}

func (h *pipelineHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *pipelineHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		return next(ctx, cmd)
	}
}

func (h *pipelineHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		names := make([]string, len(cmds))
		for i, c := range cmds {
			names[i] = c.Name()
		}
		h.mu.Lock()
		h.execs = append(h.execs, names)
		doPanic := h.panic
		h.mu.Unlock()

		if doPanic {
			panic("pipelineHook: simulated crash mid-request")
		}
		return next(ctx, cmds)
	}
}

// dispatches returns the recorded round trips that carried log records,
// ignoring any connection setup the client may pipeline on its own.
func (h *pipelineHook) dispatches() [][]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out [][]string
	for _, names := range h.execs {
		for _, n := range names {
			if n == "publish" || n == "xadd" {
				out = append(out, names)
				break
			}
		}
	}
	return out
}

func (h *pipelineHook) setPanic(v bool) {
	h.mu.Lock()
	h.panic = v
	h.mu.Unlock()
}

// setupTestRedis starts an in-process Redis, and a client to it with a
// pipelineHook installed. Both are closed when the test ends.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis, *pipelineHook) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr:                  mr.Addr(),
		MaxRetries:            -1,
		ContextTimeoutEnabled: true,
	})
	t.Cleanup(func() { client.Close() })

	hook := &pipelineHook{}
	client.AddHook(hook)

	return client, mr, hook
}

// captureInternalLog redirects the InternalLogger into a buffer for the
// duration of the test.
func captureInternalLog(t *testing.T) *syncBuffer {
	t.Helper()
	prev := InternalLogger()
	buf := &syncBuffer{}
	SetInternalLogger(log.New(buf, "", 0))
	t.Cleanup(func() { SetInternalLogger(prev) })
	return buf
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// countingPubSubEncoder wraps an encoder and counts its calls.
type countingPubSubEncoder struct {
	PubSubEncoder
	calls atomic.Int64
}

func (e *countingPubSubEncoder) EncodeMessage(r *Record) []byte {
	e.calls.Add(1)
	return e.PubSubEncoder.EncodeMessage(r)
}

// countingStreamEncoder wraps an encoder and counts its calls.
type countingStreamEncoder struct {
	StreamEncoder
	calls atomic.Int64
}

func (e *countingStreamEncoder) EncodeFields(r *Record) []StreamField {
	e.calls.Add(1)
	return e.StreamEncoder.EncodeFields(r)
}

func testRecord() *Record {
	return &Record{
		Level:      LevelInfo,
		Message:    "Test message",
		ModulePath: "my_module",
		Target:     "my_target",
		File:       "my_file",
		Line:       42,
	}
}

// stubRedis is a bare RESP server for failure modes miniredis cannot produce.
// It answers PING, rejects every connection setup command, and either drops
// the connection on XADD or never answers it.
type stubRedis struct {
	ln    net.Listener
	hang  bool
	xadds atomic.Int64

	mu    sync.Mutex
	conns []net.Conn
}

func startStubRedis(t *testing.T, hang bool) *stubRedis {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &stubRedis{ln: ln, hang: hang}
	go s.serve()
	t.Cleanup(s.close)
	return s
}

func (s *stubRedis) url() string { return "redis://" + s.ln.Addr().String() }

func (s *stubRedis) serve() {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, c)
		s.mu.Unlock()
		go s.handle(c)
	}
}

func (s *stubRedis) handle(c net.Conn) {
	defer c.Close()
	r := bufio.NewReader(c)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		var reply string
		switch strings.ToLower(args[0]) {
		case "ping":
			reply = "+PONG\r\n"
		case "xadd":
			s.xadds.Add(1)
			if s.hang {
				continue
			}
			return
		default:
			reply = fmt.Sprintf("-ERR unknown command '%s'\r\n", args[0])
		}
		if _, err := io.WriteString(c, reply); err != nil {
			return
		}
	}
}

func (s *stubRedis) close() {
	s.ln.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
}

// readCommand reads one RESP array of bulk strings.
func readCommand(r *bufio.Reader) ([]string, error) {
	n, err := readLength(r, '*')
	if err != nil {
		return nil, err
	}
	args := make([]string, n)
	for i := range args {
		size, err := readLength(r, '$')
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args[i] = string(buf[:size])
	}
	if n == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return args, nil
}

func readLength(r *bufio.Reader, prefix byte) (int, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return 0, err
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 2 || line[0] != prefix {
		return 0, fmt.Errorf("unexpected line: %q", line)
	}
	return strconv.Atoi(line[1:])
}
