package protocol

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// typeKey is the discriminator field present in every payload.
const typeKey = "type"

// ErrMissingType is returned for payloads without a string `type` field.
var ErrMissingType = errors.New("payload has no type field")

// Message is one decoded frame payload: a type discriminator plus the
// remaining fields exactly as the payload codec produced them.
type Message struct {
	Type   string
	Fields map[string]any
}

// NewMessage builds a Message of type typ whose fields are taken from payload.
// payload may be nil (for field-less messages such as Status), a
// map[string]any, or a struct with json tags.
func NewMessage(typ string, payload any) (Message, error) {
	m := Message{Type: typ, Fields: map[string]any{}}
	if payload == nil {
		return m, nil
	}
	if fields, ok := payload.(map[string]any); ok {
		for k, v := range fields {
			if k != typeKey {
				m.Fields[k] = v
			}
		}
		return m, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &m.Fields,
	})
	if err != nil {
		return Message{}, err
	}
	if err := dec.Decode(payload); err != nil {
		return Message{}, fmt.Errorf("flatten %s payload: %w", typ, err)
	}
	return m, nil
}

// MustMessage is NewMessage for payloads known to flatten.
func MustMessage(typ string, payload any) Message {
	m, err := NewMessage(typ, payload)
	if err != nil {
		panic(err)
	}
	return m
}

// Decode maps the message fields onto out, a pointer to a payload struct.
// Numbers are converted across the float64 (JSON, Protobuf) and
// uint64/int64 (CBOR) representations.
func (m Message) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(m.Fields); err != nil {
		return fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return nil
}

// payload returns the record that goes on the wire.
func (m Message) payload() map[string]any {
	out := make(map[string]any, len(m.Fields)+1)
	for k, v := range m.Fields {
		out[k] = v
	}
	out[typeKey] = m.Type
	return out
}

// messageFromPayload splits a decoded record into type and fields.
func messageFromPayload(rec map[string]any) (Message, error) {
	t, ok := rec[typeKey].(string)
	if !ok || t == "" {
		return Message{}, ErrMissingType
	}
	delete(rec, typeKey)
	return Message{Type: t, Fields: rec}, nil
}
