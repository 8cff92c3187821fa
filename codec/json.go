package codec

import "encoding/json"

// JSON is the default resolution codec.
type JSON[R any] struct{}

var _ Codec[struct{}] = JSON[struct{}]{}

func (JSON[R]) Encode(rec R) ([]byte, error) { return json.Marshal(rec) }

func (JSON[R]) Decode(raw []byte) (R, error) {
	var rec R
	err := json.Unmarshal(raw, &rec)
	return rec, err
}
