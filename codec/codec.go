// Package codec turns resolution records into the bytes a resolution store
// keeps, and back.
package codec

// Codec encodes records of type R. The fetch engine treats any Decode error
// as a damaged record and rewrites it after a fresh provider scan.
type Codec[R any] interface {
	Encode(rec R) ([]byte, error)
	Decode(raw []byte) (R, error)
}
