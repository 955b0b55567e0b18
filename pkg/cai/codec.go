package cai

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// wire is the JSON codec shared by REST bodies and WebSocket frames. ConfigStd
// sorts map keys and escapes HTML the same way encoding/json does.
var wire = sonic.ConfigStd

func marshal(v any) ([]byte, error) {
	return wire.Marshal(v)
}

func unmarshal(data []byte, v any) error {
	return wire.Unmarshal(data, v)
}

// Payload is a decoded REST response object.
type Payload map[string]any

// Decode re-encodes the payload into v, typically a struct with json tags.
func (p Payload) Decode(v any) error {
	data, err := marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// String returns the string value stored under key, or "" when the key is
// missing or holds another type.
func (p Payload) String(key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

// Object returns the nested object stored under key.
func (p Payload) Object(key string) (Payload, bool) {
	m, ok := p[key].(map[string]any)
	if !ok {
		return nil, false
	}
	return Payload(m), true
}
