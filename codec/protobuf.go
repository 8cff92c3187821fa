package codec

import (
	"errors"

	"google.golang.org/protobuf/proto"
)

// Protobuf is a Codec for protobuf messages. Use NewProtobuf; the zero value
// cannot decode.
type Protobuf[T proto.Message] struct {
	new func() T // constructor for an empty message
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

// Encode uses deterministic marshaling so equal records encode equally.
func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	if c.new == nil {
		var zero T
		return zero, errors.New("codec: protobuf codec without constructor")
	}
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
