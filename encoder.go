package redislog

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// PubSubEncoder turns a Record into the payload published to pub/sub channels.
//
// Implementations must be total (every Record encodes, absent attributes
// included), must not modify the Record, and must be safe for concurrent use.
// The Logger calls EncodeMessage once per record, and reuses the result for
// every configured channel.
type PubSubEncoder interface {
	EncodeMessage(r *Record) []byte
}

// StreamField is one field of a stream entry.
type StreamField struct {
	Name  string
	Value []byte
}

// StreamEncoder turns a Record into the fields of a stream entry. Field names
// must be unique within one entry. Order is preserved on the wire, but Redis
// stores the entry as a map.
//
// The same contract as PubSubEncoder applies: total, side-effect free, and
// safe for concurrent use.
type StreamEncoder interface {
	EncodeFields(r *Record) []StreamField
}

// PubSubEncoderFunc adapts an ordinary function to a PubSubEncoder.
type PubSubEncoderFunc func(r *Record) []byte

// EncodeMessage calls f(r).
func (f PubSubEncoderFunc) EncodeMessage(r *Record) []byte { return f(r) }

// StreamEncoderFunc adapts an ordinary function to a StreamEncoder.
type StreamEncoderFunc func(r *Record) []StreamField

// EncodeFields calls f(r).
func (f StreamEncoderFunc) EncodeFields(r *Record) []StreamField { return f(r) }

// Keys used by the default encodings.
const (
	LevelKey      = "level"
	MessageKey    = "args"
	ModulePathKey = "module_path"
	TargetKey     = "target"
	FileKey       = "file"
	LineKey       = "line"
)

// NullPlaceholder is the value DefaultStreamEncoder writes for absent
// attributes. Keys are never omitted, so consumers see a stable schema.
const NullPlaceholder = "null"

// DefaultPubSubEncoder encodes a Record as a JSON object:
//
//	{"args":"msg","file":"main.go","level":"INFO","line":42,"module_path":"main","target":"main"}
//
// Absent module_path, file and line are encoded as JSON null.
type DefaultPubSubEncoder struct{}

// jsonRecord fixes the key order of the default pub/sub payload.
type jsonRecord struct {
	Args       string  `json:"args"`
	File       *string `json:"file"`
	Level      string  `json:"level"`
	Line       *int    `json:"line"`
	ModulePath *string `json:"module_path"`
	Target     string  `json:"target"`
}

// EncodeMessage implements PubSubEncoder.
func (DefaultPubSubEncoder) EncodeMessage(r *Record) []byte {
	jr := jsonRecord{
		Args:   r.Message,
		Level:  r.Level.String(),
		Target: r.Target,
	}
	if r.File != "" {
		jr.File = &r.File
	}
	if r.Line != 0 {
		jr.Line = &r.Line
	}
	if r.ModulePath != "" {
		jr.ModulePath = &r.ModulePath
	}

	// strings and ints only, so this cannot fail
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(jr); err != nil {
		InternalLogger().Printf("failed to encode record as JSON: %v", err)
		return []byte("{}")
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

// DefaultStreamEncoder encodes a Record as the stream fields level, args,
// module_path, target, file and line, in that order. Absent attributes are
// written as NullPlaceholder.
type DefaultStreamEncoder struct{}

// EncodeFields implements StreamEncoder.
func (DefaultStreamEncoder) EncodeFields(r *Record) []StreamField {
	line := NullPlaceholder
	if r.Line != 0 {
		line = strconv.Itoa(r.Line)
	}
	return []StreamField{
		{LevelKey, []byte(r.Level.String())},
		{MessageKey, []byte(r.Message)},
		{ModulePathKey, []byte(orNull(r.ModulePath))},
		{TargetKey, []byte(r.Target)},
		{FileKey, []byte(orNull(r.File))},
		{LineKey, []byte(line)},
	}
}

func orNull(s string) string {
	if s == "" {
		return NullPlaceholder
	}
	return s
}
