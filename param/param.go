// Package param defines the typed key/value slots exchanged with
// implementations when reading or writing algorithm and context parameters.
//
// The same shape serves both directions. For a set, the caller fills Value.
// For a get, the caller passes a Request slot and the implementation fills
// Value and marks it Modified. Keys an implementation does not know are left
// untouched; that is not an error.
package param

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrType     = errors.New("param: type mismatch")
	ErrCapacity = errors.New("param: value exceeds capacity")
	ErrNoValue  = errors.New("param: no value")
)

// Type is the declared type of a slot.
type Type uint8

const (
	Integer Type = iota + 1
	UnsignedInteger
	OctetString
	UTF8String
)

func (t Type) String() string {
	switch t {
	case Integer:
		return "integer"
	case UnsignedInteger:
		return "unsigned integer"
	case OctetString:
		return "octet string"
	case UTF8String:
		return "utf8 string"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Param is a single slot.
type Param struct {
	Key  string
	Type Type
	// Capacity bounds the length of OctetString and UTF8String values
	// written into a request slot. Zero means unbounded.
	Capacity int
	// Value holds int64, uint64, []byte or string according to Type.
	Value    any
	Modified bool
}

// Params is an ordered parameter array.
type Params []Param

// Int returns an Integer slot carrying v.
func Int(key string, v int64) Param { return Param{Key: key, Type: Integer, Value: v} }

// Uint returns an UnsignedInteger slot carrying v.
func Uint(key string, v uint64) Param { return Param{Key: key, Type: UnsignedInteger, Value: v} }

// Octets returns an OctetString slot carrying b.
func Octets(key string, b []byte) Param { return Param{Key: key, Type: OctetString, Value: b} }

// UTF8 returns a UTF8String slot carrying s.
func UTF8(key string, s string) Param { return Param{Key: key, Type: UTF8String, Value: s} }

// Request returns an empty slot for a get call.
func Request(key string, t Type) Param { return Param{Key: key, Type: t} }

// RequestBounded is Request with a capacity limit for string types.
func RequestBounded(key string, t Type, capacity int) Param {
	return Param{Key: key, Type: t, Capacity: capacity}
}

// Locate returns the first slot named key, or nil.
func (ps Params) Locate(key string) *Param {
	for i := range ps {
		if ps[i].Key == key {
			return &ps[i]
		}
	}
	return nil
}

// Keys lists slot keys in order.
func (ps Params) Keys() []string {
	out := make([]string, len(ps))
	for i := range ps {
		out[i] = ps[i].Key
	}
	return out
}

// Int reads p as a signed integer. Unsigned values that fit are converted.
func (p *Param) Int() (int64, error) {
	switch v := p.Value.(type) {
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %s overflows int64", ErrType, p.Key)
		}
		return int64(v), nil
	case nil:
		return 0, fmt.Errorf("%w: %s", ErrNoValue, p.Key)
	default:
		return 0, fmt.Errorf("%w: %s holds %T", ErrType, p.Key, p.Value)
	}
}

// Uint reads p as an unsigned integer. Non-negative signed values are
// converted.
func (p *Param) Uint() (uint64, error) {
	switch v := p.Value.(type) {
	case uint64:
		return v, nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("%w: %s is negative", ErrType, p.Key)
		}
		return uint64(v), nil
	case nil:
		return 0, fmt.Errorf("%w: %s", ErrNoValue, p.Key)
	default:
		return 0, fmt.Errorf("%w: %s holds %T", ErrType, p.Key, p.Value)
	}
}

// Octets reads p as an octet string.
func (p *Param) Octets() ([]byte, error) {
	switch v := p.Value.(type) {
	case []byte:
		return v, nil
	case nil:
		return nil, fmt.Errorf("%w: %s", ErrNoValue, p.Key)
	default:
		return nil, fmt.Errorf("%w: %s holds %T", ErrType, p.Key, p.Value)
	}
}

// UTF8 reads p as a string.
func (p *Param) UTF8() (string, error) {
	switch v := p.Value.(type) {
	case string:
		return v, nil
	case nil:
		return "", fmt.Errorf("%w: %s", ErrNoValue, p.Key)
	default:
		return "", fmt.Errorf("%w: %s holds %T", ErrType, p.Key, p.Value)
	}
}

// SetInt stores v, honoring the slot's declared type.
func (p *Param) SetInt(v int64) error {
	switch p.Type {
	case Integer:
		p.Value = v
	case UnsignedInteger:
		if v < 0 {
			return fmt.Errorf("%w: negative value for unsigned %s", ErrType, p.Key)
		}
		p.Value = uint64(v)
	default:
		return fmt.Errorf("%w: %s is %s", ErrType, p.Key, p.Type)
	}
	p.Modified = true
	return nil
}

// SetUint stores v, honoring the slot's declared type.
func (p *Param) SetUint(v uint64) error {
	switch p.Type {
	case UnsignedInteger:
		p.Value = v
	case Integer:
		if v > math.MaxInt64 {
			return fmt.Errorf("%w: %s overflows int64", ErrType, p.Key)
		}
		p.Value = int64(v)
	default:
		return fmt.Errorf("%w: %s is %s", ErrType, p.Key, p.Type)
	}
	p.Modified = true
	return nil
}

// SetOctets stores a copy of b.
func (p *Param) SetOctets(b []byte) error {
	if p.Type != OctetString {
		return fmt.Errorf("%w: %s is %s", ErrType, p.Key, p.Type)
	}
	if p.Capacity > 0 && len(b) > p.Capacity {
		return fmt.Errorf("%w: %s needs %d bytes, has %d", ErrCapacity, p.Key, len(b), p.Capacity)
	}
	p.Value = append([]byte(nil), b...)
	p.Modified = true
	return nil
}

// SetUTF8 stores s.
func (p *Param) SetUTF8(s string) error {
	if p.Type != UTF8String {
		return fmt.Errorf("%w: %s is %s", ErrType, p.Key, p.Type)
	}
	if p.Capacity > 0 && len(s) > p.Capacity {
		return fmt.Errorf("%w: %s needs %d bytes, has %d", ErrCapacity, p.Key, len(s), p.Capacity)
	}
	p.Value = s
	p.Modified = true
	return nil
}

// Descriptor advertises a parameter an implementation accepts or returns.
type Descriptor struct {
	Key  string
	Type Type
}

// Descriptors is a gettable or settable list.
type Descriptors []Descriptor

// Has reports whether key is described.
func (ds Descriptors) Has(key string) bool {
	for _, d := range ds {
		if d.Key == key {
			return true
		}
	}
	return false
}

// Requests turns descriptors into empty request slots, one per key.
func (ds Descriptors) Requests() Params {
	out := make(Params, len(ds))
	for i, d := range ds {
		out[i] = Request(d.Key, d.Type)
	}
	return out
}
