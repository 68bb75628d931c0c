package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type protoCodec struct {
	mo proto.MarshalOptions
	uo proto.UnmarshalOptions
}

// Proto returns a Protocol Buffers codec with deterministic marshaling.
// Generic payloads travel as google.protobuf.Struct.
// Content-Type: application/x-protobuf
func Proto() Codec {
	return protoCodec{
		mo: proto.MarshalOptions{Deterministic: true},
		uo: proto.UnmarshalOptions{},
	}
}

func (p protoCodec) ContentType() string { return "application/x-protobuf" }

func (p protoCodec) Marshal(v any) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return p.mo.Marshal(msg)
	}
	fields, err := toStructMap(v)
	if err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("protobuf: %w", err)
	}
	return p.mo.Marshal(s)
}

func (p protoCodec) Unmarshal(data []byte, v any) error {
	switch out := v.(type) {
	case proto.Message:
		return p.uo.Unmarshal(data, out)
	case *map[string]any:
		var s structpb.Struct
		if err := p.uo.Unmarshal(data, &s); err != nil {
			return err
		}
		*out = s.AsMap()
		return nil
	default:
		return fmt.Errorf("protobuf: unsupported target %T", v)
	}
}

// toStructMap normalizes arbitrary Go values ([]int, structs, ...) into the
// map/[]any/float64 shapes structpb accepts.
func toStructMap(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok && structpbFriendly(m) {
		return m, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protobuf: normalize: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("protobuf: payload is not an object: %w", err)
	}
	return out, nil
}

func structpbFriendly(m map[string]any) bool {
	for _, v := range m {
		switch v.(type) {
		case nil, bool, string, float64, int, int64, int32, uint32, uint64:
		default:
			return false
		}
	}
	return true
}
