package codec

import (
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

func TestJSONCodec(t *testing.T) {
	c := JSON()
	in := map[string]any{"a": 1, "b": "x"}
	b, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := c.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["a"].(float64) != 1 || out["b"].(string) != "x" {
		t.Fatalf("roundtrip mismatch: %#v", out)
	}
}

func TestCBORCodec(t *testing.T) {
	c := CBOR()
	in := map[string]any{"n": 42, "path": []int{1, 2}}
	b, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := c.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n, ok := out["n"].(uint64); !ok || n != 42 {
		t.Fatalf("roundtrip mismatch: %#v", out)
	}
	if p, ok := out["path"].([]any); !ok || len(p) != 2 {
		t.Fatalf("path mismatch: %#v", out["path"])
	}
}

func TestProtoCodec(t *testing.T) {
	c := Proto()
	s, err := structpb.NewStruct(map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("struct: %v", err)
	}
	b, err := c.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out structpb.Struct
	if err := c.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Fields["k"].GetStringValue() != "v" {
		t.Fatalf("roundtrip mismatch")
	}
}

func TestProtoCodecGenericMap(t *testing.T) {
	c := Proto()
	b, err := c.Marshal(map[string]any{"type": "Route", "path": []int{3, 4}, "hopcount": 3})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := c.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["type"] != "Route" || out["hopcount"].(float64) != 3 {
		t.Fatalf("roundtrip mismatch: %#v", out)
	}
	if p := out["path"].([]any); len(p) != 2 || p[1].(float64) != 4 {
		t.Fatalf("path mismatch: %#v", out["path"])
	}
}

func TestRegistryByName(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"json", "CBOR", "proto", "protobuf"} {
		if _, err := r.ByName(name); err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
	}
	if _, err := r.ByName("xml"); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
	if r.Get("application/json") == nil {
		t.Fatalf("json not registered by content type")
	}
}
