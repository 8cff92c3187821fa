package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack encodes records with vmihailenco/msgpack. Record fields need
// `msgpack` tags to get the same names as their JSON form.
type Msgpack[R any] struct{}

var _ Codec[struct{}] = Msgpack[struct{}]{}

func (Msgpack[R]) Encode(rec R) ([]byte, error) { return msgpack.Marshal(rec) }

func (Msgpack[R]) Decode(raw []byte) (R, error) {
	var rec R
	if err := msgpack.Unmarshal(raw, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}
