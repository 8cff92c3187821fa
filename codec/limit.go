package codec

import "fmt"

// LimitCodec refuses to decode records longer than MaxDecode bytes before
// handing them to Inner. Use it in front of stores other processes write to.
// MaxDecode <= 0 turns the check off.
type LimitCodec[R any] struct {
	Inner     Codec[R]
	MaxDecode int
}

func (c LimitCodec[R]) Encode(rec R) ([]byte, error) { return c.Inner.Encode(rec) }

func (c LimitCodec[R]) Decode(raw []byte) (R, error) {
	if c.MaxDecode > 0 && len(raw) > c.MaxDecode {
		var none R
		return none, fmt.Errorf("codec: record is %d bytes, limit %d", len(raw), c.MaxDecode)
	}
	return c.Inner.Decode(raw)
}
