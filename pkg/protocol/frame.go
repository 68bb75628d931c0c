package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Syracusa/ce-ef/pkg/observability"
	"github.com/Syracusa/ce-ef/pkg/protocol/codec"
)

// Frame layout on the wire:
//
//	0 ..1   Length  u16 big-endian, payload bytes that follow
//	2 ..    Payload codec-encoded record with a string `type` field
const (
	lengthSize = 2
	// MaxPayload is the largest payload a 2-byte length prefix can describe.
	MaxPayload = 0xFFFF
)

// ErrFrameTooLarge is returned by Encode when the payload does not fit the
// 2-byte length prefix.
var ErrFrameTooLarge = errors.New("frame payload exceeds 65535 bytes")

// Encode serializes m with c and prepends the payload length.
func Encode(c codec.Codec, m Message) ([]byte, error) {
	body, err := c.Marshal(m.payload())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type, err)
	}
	if len(body) > MaxPayload {
		return nil, fmt.Errorf("%w: %s payload is %d bytes", ErrFrameTooLarge, m.Type, len(body))
	}
	frame := make([]byte, lengthSize+len(body))
	binary.BigEndian.PutUint16(frame[:lengthSize], uint16(len(body)))
	copy(frame[lengthSize:], body)
	observability.FramesEncoded.Inc()
	return frame, nil
}

// Decode extracts every complete frame from buf and returns the decoded
// messages in stream order plus the unconsumed tail (a partial length prefix
// and/or a partial payload). A payload that fails to parse is dropped; the
// length prefix alone delimits frames, so later frames are unaffected.
func Decode(c codec.Codec, buf []byte) ([]Message, []byte) {
	var out []Message
	for len(buf) >= lengthSize {
		n := int(binary.BigEndian.Uint16(buf[:lengthSize]))
		if len(buf) < lengthSize+n {
			break
		}
		body := buf[lengthSize : lengthSize+n]
		buf = buf[lengthSize+n:]

		m, err := parsePayload(c, body)
		if err != nil {
			observability.FramesDropped.Inc()
			zap.L().Warn("dropping malformed frame", zap.Int("len", n), zap.Error(err))
			continue
		}
		observability.FramesDecoded.Inc()
		out = append(out, m)
	}
	return out, buf
}

func parsePayload(c codec.Codec, body []byte) (Message, error) {
	var rec map[string]any
	if err := c.Unmarshal(body, &rec); err != nil {
		return Message{}, err
	}
	return messageFromPayload(rec)
}

// Decoder accumulates stream chunks and yields complete messages.
// The retained tail never exceeds one frame (2+65535 bytes) because every
// complete frame is consumed as soon as it is buffered.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	codec codec.Codec
	buf   []byte
}

func NewDecoder(c codec.Codec) *Decoder { return &Decoder{codec: c} }

// Feed appends chunk and returns the messages it completed.
func (d *Decoder) Feed(chunk []byte) []Message {
	d.buf = append(d.buf, chunk...)
	msgs, rest := Decode(d.codec, d.buf)
	n := copy(d.buf, rest)
	d.buf = d.buf[:n]
	return msgs
}

// Reset discards any partial frame, e.g. one left over from a previous
// connection.
func (d *Decoder) Reset() { d.buf = d.buf[:0] }

// Buffered reports how many bytes of an incomplete frame are held.
func (d *Decoder) Buffered() int { return len(d.buf) }
