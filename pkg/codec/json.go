package codec

import (
	"encoding/json"
)

// JSONCodec encodes structured bodies as JSON.
type JSONCodec struct{}

// ContentType returns the JSON media type.
func (c *JSONCodec) ContentType() string {
	return "application/json; charset=utf-8"
}

// Marshal encodes v as JSON.
func (c *JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// NewJSONCodec creates a new JSONCodec instance.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}
