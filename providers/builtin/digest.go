package builtin

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding"
	"errors"
	"hash"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/unkn0wn-root/algfetch"
	"github.com/unkn0wn-root/algfetch/param"
)

type digestDef struct {
	names []string
	desc  string
	new   func() hash.Hash
	// dup advertises a dupctx slot.
	dup bool
}

var digests = []digestDef{
	{names: []string{"SHA2-256", "SHA-256", "SHA256"}, desc: "SHA-256", new: sha256.New, dup: true},
	{names: []string{"SHA2-512", "SHA-512", "SHA512"}, desc: "SHA-512", new: sha512.New, dup: true},
	{names: []string{"SHA3-256"}, desc: "SHA3-256", new: sha3.New256},
	{names: []string{"BLAKE2B-512", "BLAKE2b512"}, desc: "BLAKE2b-512", new: newBlake2b512, dup: true},
}

func newBlake2b512() hash.Hash {
	h, _ := blake2b.New512(nil) // only fails for keys over 64 bytes
	return h
}

// lookupDigest resolves a digest name for HMAC, PBKDF2, HKDF and RSA-OAEP.
func lookupDigest(name string) (func() hash.Hash, bool) {
	for _, d := range digests {
		for _, n := range d.names {
			if strings.EqualFold(n, name) {
				return d.new, true
			}
		}
	}
	return nil, false
}

func digestDispatch(d digestDef) algfetch.Dispatch {
	h := d.new()
	get := sizes(h.Size(), h.BlockSize(), 0, 0)
	out := algfetch.Dispatch{
		algfetch.Entry(algfetch.FuncNewCtx, func() (any, error) { return &digestState{}, nil }),
		algfetch.Entry(algfetch.FuncFreeCtx, func(any) {}),
		algfetch.Entry(algfetch.FuncGetParams, func(ps param.Params) int { return answer(ps, get) }),
		algfetch.Entry(algfetch.FuncGettableParams, func() param.Descriptors { return sizeDescriptors(get) }),
		algfetch.Entry(algfetch.FuncDigestInit, func(ctx any, _ param.Params) error {
			ctx.(*digestState).h = d.new()
			return nil
		}),
		algfetch.Entry(algfetch.FuncDigestUpdate, func(ctx any, data []byte) error {
			_, err := ctx.(*digestState).h.Write(data)
			return err
		}),
		algfetch.Entry(algfetch.FuncDigestFinal, func(ctx any) ([]byte, error) {
			return ctx.(*digestState).h.Sum(nil), nil
		}),
	}
	if d.dup {
		out = append(out, algfetch.Entry(algfetch.FuncDupCtx, func(ctx any) (any, error) {
			return ctx.(*digestState).clone(d.new)
		}))
	}
	return out
}

type digestState struct {
	h hash.Hash // nil until init
}

func (s *digestState) clone(newH func() hash.Hash) (any, error) {
	if s.h == nil {
		return &digestState{}, nil
	}
	m, ok := s.h.(encoding.BinaryMarshaler)
	if !ok {
		return nil, errors.New("builtin: digest state cannot be copied")
	}
	b, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}
	cp := newH()
	if err := cp.(encoding.BinaryUnmarshaler).UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return &digestState{h: cp}, nil
}
