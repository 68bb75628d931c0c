package codec

import (
	"fmt"
	"strings"
)

// Codec defines a simple interface for marshaling frame payloads.
// Implementations must decode a payload into *map[string]any so the frame
// decoder can read the type discriminator without knowing the message shape.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps format/content type aliases to codecs.
type Registry struct {
	byType map[string]Codec
	byName map[string]Codec
}

// NewRegistry constructs a registry preloaded with the built-in codecs:
// JSON (the wire default), CBOR and Protobuf.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]Codec), byName: make(map[string]Codec)}
	r.Register("json", JSON())
	r.Register("cbor", CBOR())
	r.Register("proto", Proto())
	r.byName["protobuf"] = r.byName["proto"]
	return r
}

// Register adds a codec under a short name and its content type.
func (r *Registry) Register(name string, c Codec) {
	r.byType[c.ContentType()] = c
	r.byName[strings.ToLower(name)] = c
}

// Get returns a codec by content type, or nil.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }

// ByName returns a codec by its config name (json, cbor, proto).
func (r *Registry) ByName(name string) (Codec, error) {
	c, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", name)
	}
	return c, nil
}
