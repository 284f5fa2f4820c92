package store

import (
	"encoding/json"

	"github.com/LavishGent/propkit/internal/types"
)

// JSONSerializer implements Serializer using JSON encoding.
type JSONSerializer struct{}

// NewJSONSerializer creates a new JSON serializer.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

// Marshal serializes a value to JSON bytes.
func (s *JSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal deserializes JSON bytes into the destination.
func (s *JSONSerializer) Unmarshal(data []byte, dest any) error {
	return json.Unmarshal(data, dest)
}

// JSONCodec decodes values back into T, so typed attributes get typed values
// from byte-oriented stores.
type JSONCodec[T any] struct {
	serializer types.Serializer
}

// NewJSONCodec creates a codec for values of type T.
func NewJSONCodec[T any]() *JSONCodec[T] {
	return &JSONCodec[T]{serializer: NewJSONSerializer()}
}

// Marshal encodes v as JSON.
func (c *JSONCodec[T]) Marshal(v any) ([]byte, error) {
	return c.serializer.Marshal(v)
}

// Unmarshal decodes JSON into a T.
func (c *JSONCodec[T]) Unmarshal(data []byte) (any, error) {
	var v T
	if err := c.serializer.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

var (
	_ types.Serializer = (*JSONSerializer)(nil)
	_ types.Codec      = (*JSONCodec[int])(nil)
)
