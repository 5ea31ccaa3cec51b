package redislog

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// msgpackBuffer provides a msgpack encoder and its underlying bytes.Buffer.
type msgpackBuffer struct {
	*bytes.Buffer
	enc *msgpack.Encoder
}

// MsgpackPubSubEncoder encodes a Record as a msgpack map, for consumers that
// want a compact binary payload. The map holds the keys of the default JSON
// encoding (with nil for absent attributes), plus:
//
//   - "time": the record time, as an EventTime (or Unix seconds when
//     UseCoarseTimestamps is set)
//   - "attrs": a map of the record's slog attrs, with groups as nested maps
//
// Buffers are pooled, so encoding allocates only the returned payload.
type MsgpackPubSubEncoder struct {
	*EncoderOptions
	p sync.Pool
}

// NewMsgpackPubSubEncoder creates a MsgpackPubSubEncoder. A nil opts uses
// DefaultEncoderOptions.
func NewMsgpackPubSubEncoder(opts *EncoderOptions) *MsgpackPubSubEncoder {
	if opts == nil {
		opts = DefaultEncoderOptions()
	} else {
		o := *opts
		opts = &o
		opts.resolve()
	}

	e := &MsgpackPubSubEncoder{EncoderOptions: opts}
	e.p = sync.Pool{
		New: func() any {
			buf := bytes.NewBuffer(make([]byte, 0, opts.NewBufferCap))
			return &msgpackBuffer{Buffer: buf, enc: msgpack.NewEncoder(buf)}
		},
	}
	return e
}

func (e *MsgpackPubSubEncoder) get() *msgpackBuffer {
	return e.p.Get().(*msgpackBuffer)
}

func (e *MsgpackPubSubEncoder) put(b *msgpackBuffer) {

	// drop if the buffer got too large
	if b.Cap() > e.MaxBufferCap {
		return
	}

	b.Reset()
	b.enc.Reset(b.Buffer)
	e.p.Put(b)
}

// EncodeMessage implements PubSubEncoder.
func (e *MsgpackPubSubEncoder) EncodeMessage(r *Record) []byte {
	b := e.get()
	defer e.put(b)

	if err := e.encodeRecord(b.enc, r); err != nil {
		InternalLogger().Printf("encoding errors in MsgpackPubSubEncoder:\n%v", err)
	}

	// the buffer goes back to the pool, so hand out a copy
	out := make([]byte, b.Len())
	copy(out, b.Bytes())
	return out
}

// encodeRecord serializes the record, collecting errors rather than stopping
// at the first one, so a bad attr cannot drop the whole record.
func (e *MsgpackPubSubEncoder) encodeRecord(enc *msgpack.Encoder, r *Record) error {
	errs := new(encErrs)

	attrs := flattenAttrs(r.Attrs)
	nKeys := 7
	if len(attrs) > 0 {
		nKeys++
	}
	errs.join("record length", enc.EncodeMapLen(nKeys))

	errs.join("level key", enc.EncodeString(LevelKey))
	errs.join("level", enc.EncodeString(r.Level.String()))
	errs.join("message key", enc.EncodeString(MessageKey))
	errs.join("message", enc.EncodeString(r.Message))
	errs.join("module path key", enc.EncodeString(ModulePathKey))
	errs.join("module path", encodeOptionalString(enc, r.ModulePath))
	errs.join("target key", enc.EncodeString(TargetKey))
	errs.join("target", enc.EncodeString(r.Target))
	errs.join("file key", enc.EncodeString(FileKey))
	errs.join("file", encodeOptionalString(enc, r.File))
	errs.join("line key", enc.EncodeString(LineKey))
	if r.Line != 0 {
		errs.join("line", enc.EncodeInt(int64(r.Line)))
	} else {
		errs.join("line", enc.EncodeNil())
	}

	errs.join("time key", enc.EncodeString("time"))
	if e.UseCoarseTimestamps {
		errs.join("time as int64", enc.EncodeInt64(r.Time.Unix()))
	} else {
		t := EventTime(r.Time)
		errs.join("time as EventTime", enc.Encode(&t))
	}

	if len(attrs) > 0 {
		errs.join("attrs key", enc.EncodeString("attrs"))
		errs.join("attrs", e.encodeAttrs(enc, attrs))
	}

	return errs.err
}

func encodeOptionalString(enc *msgpack.Encoder, s string) error {
	if s == "" {
		return enc.EncodeNil()
	}
	return enc.EncodeString(s)
}

// encodeAttrs writes attrs, which must already be flattened, as one map.
func (e *MsgpackPubSubEncoder) encodeAttrs(enc *msgpack.Encoder, attrs []slog.Attr) error {
	errs := new(encErrs)
	errs.join("attrs length", enc.EncodeMapLen(len(attrs)))
	for _, a := range attrs {
		errs.join("attr key", enc.EncodeString(a.Key))
		errs.join("attr value for key: "+a.Key, e.encodeValue(enc, a.Value))
	}
	return errs.err
}

func (e *MsgpackPubSubEncoder) encodeValue(enc *msgpack.Encoder, v slog.Value) error {
	switch vk := v.Kind(); vk {
	case slog.KindAny:
		a := v.Any()
		if err, ok := a.(error); ok {
			return enc.EncodeString(err.Error())
		}

		// encode aside first, so a failure cannot leave a partial value in
		// the map
		b, err := msgpack.Marshal(a)
		if err != nil {
			return errors.Join(err, enc.EncodeString(fmt.Sprint(a)))
		}
		return enc.Encode(msgpack.RawMessage(b))
	case slog.KindBool:
		return enc.EncodeBool(v.Bool())
	case slog.KindDuration:
		return enc.EncodeDuration(v.Duration())
	case slog.KindFloat64:
		return enc.EncodeFloat64(v.Float64())
	case slog.KindInt64:
		return enc.EncodeInt64(v.Int64())
	case slog.KindString:
		return enc.EncodeString(v.String())
	case slog.KindTime:
		return enc.EncodeString(v.Time().Format(e.TimeFormat))
	case slog.KindUint64:
		return enc.EncodeUint64(v.Uint64())
	case slog.KindGroup:
		return e.encodeAttrs(enc, v.Group())
	case slog.KindLogValuer:
		return errors.New("Value.Resolve() invariant violation")
	default:
		return fmt.Errorf("unknown slog.Value.Kind: %d", vk)
	}
}

// flattenAttrs applies the slog.Handler rules ahead of encoding, so map
// lengths are known up front:
//   - values are resolved
//   - attrs whose key and value are both zero are dropped
//   - non-group attrs with empty keys are dropped
//   - empty groups are dropped
//   - groups with empty keys are inlined into the parent
func flattenAttrs(attrs []slog.Attr) []slog.Attr {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			continue
		}
		if a.Value.Kind() != slog.KindGroup {
			if a.Key != "" {
				out = append(out, a)
			}
			continue
		}
		g := flattenAttrs(a.Value.Group())
		switch {
		case len(g) == 0:
		case a.Key == "":
			out = append(out, g...)
		default:
			out = append(out, slog.Attr{Key: a.Key, Value: slog.GroupValue(g...)})
		}
	}
	return out
}

// encErrs collects serialization errors
type encErrs struct {
	err error
}

func (e *encErrs) join(target string, err error) {
	if err == nil {
		return
	}
	e.err = errors.Join(e.err, fmt.Errorf("failed to encode %s: %w", target, err))
}
