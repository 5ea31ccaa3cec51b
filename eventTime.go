package redislog

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// EventTime is a timestamp with nanosecond precision, serialized as msgpack
// extension type 0 with an 8 byte body:
//
// +-------+----+----+----+----+----+----+----+----+----+
// |     1 |  2 |  3 |  4 |  5 |  6 |  7 |  8 |  9 | 10 |
// +-------+----+----+----+----+----+----+----+----+----+
// |    D7 | 00 | second from epoch |     nanosecond    |
// +-------+----+----+----+----+----+----+----+----+----+
// |fixext8|type| 32bits integer BE | 32bits integer BE |
// +-------+----+----+----+----+----+----+----+----+----+
//
// This is the layout used by the Fluent forward protocol, so msgpack payloads
// published by MsgpackPubSubEncoder can be relayed to Fluent collectors as-is.
type EventTime time.Time

var _ msgpack.CustomEncoder = (*EventTime)(nil)
var _ msgpack.CustomDecoder = (*EventTime)(nil)

const (
	TimeExtType = 0
	TimeLen     = 8
)

// EncodeMsgpack implements msgpack.CustomEncoder.
func (t *EventTime) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeExtHeader(TimeExtType, TimeLen); err != nil {
		return fmt.Errorf("failed to encode EventTime header: %w", err)
	}

	// NB: 64bit -> 32bit seconds => constrained to 1970-2106
	utc := time.Time(*t).UTC()
	var body [TimeLen]byte
	binary.BigEndian.PutUint32(body[:4], uint32(utc.Unix()))
	binary.BigEndian.PutUint32(body[4:], uint32(utc.Nanosecond()))

	if _, err := enc.Writer().Write(body[:]); err != nil {
		return fmt.Errorf("failed to encode EventTime body: %w", err)
	}
	return nil
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (t *EventTime) DecodeMsgpack(dec *msgpack.Decoder) error {
	var buf [2 + TimeLen]byte
	if err := dec.ReadFull(buf[:]); err != nil {
		return fmt.Errorf("failed to decode EventTime: %w", err)
	}
	if buf[0] != 0xD7 || buf[1] != TimeExtType {
		return fmt.Errorf("failed to decode EventTime: header % X, expected: D7 00", buf[:2])
	}

	secs := int64(binary.BigEndian.Uint32(buf[2:6]))
	nsecs := int64(binary.BigEndian.Uint32(buf[6:]))
	*t = EventTime(time.Unix(secs, nsecs).UTC())
	return nil
}
