package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR encodes records with fxamacker/cbor. Build it with NewCBOR or
// MustCBOR; the zero value has no modes and cannot encode.
//
// Processes sharing one store should agree on deterministic so equal
// resolutions produce equal bytes.
type CBOR[R any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR picks core deterministic encoding (RFC 8949) when deterministic is
// set and preferred unsorted encoding otherwise. Duplicate map keys fail
// decoding.
func NewCBOR[R any](deterministic bool) (CBOR[R], error) {
	opts := cbor.PreferredUnsortedEncOptions()
	if deterministic {
		opts = cbor.CoreDetEncOptions()
	}
	enc, err := opts.EncMode()
	if err != nil {
		return CBOR[R]{}, err
	}
	dec, err := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		return CBOR[R]{}, err
	}
	return CBOR[R]{enc: enc, dec: dec}, nil
}

// MustCBOR panics where NewCBOR would fail.
func MustCBOR[R any](deterministic bool) CBOR[R] {
	c, err := NewCBOR[R](deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[R]) Encode(rec R) ([]byte, error) { return c.enc.Marshal(rec) }

func (c CBOR[R]) Decode(raw []byte) (R, error) {
	var rec R
	if err := c.dec.Unmarshal(raw, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}
