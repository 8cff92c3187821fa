package builtin

import (
	"crypto/hmac"
	"errors"
	"fmt"
	"hash"

	"github.com/unkn0wn-root/algfetch"
	"github.com/unkn0wn-root/algfetch/param"
)

const defaultDigest = "SHA2-256"

type hmacState struct {
	digest string
	h      hash.Hash // nil until init
}

// set applies a "digest" parameter if present. Returns false for an
// unknown digest or a badly typed value.
func (s *hmacState) set(ps param.Params) bool {
	p := ps.Locate(param.KeyDigest)
	if p == nil {
		return true
	}
	name, err := p.UTF8()
	if err != nil {
		return false
	}
	if _, found := lookupDigest(name); !found {
		return false
	}
	s.digest = name
	return true
}

func hmacDispatch() algfetch.Dispatch {
	return algfetch.Dispatch{
		algfetch.Entry(algfetch.FuncNewCtx, func() (any, error) { return &hmacState{digest: defaultDigest}, nil }),
		algfetch.Entry(algfetch.FuncFreeCtx, func(ctx any) { ctx.(*hmacState).h = nil }),
		algfetch.Entry(algfetch.FuncDupCtx, func(ctx any) (any, error) {
			s := ctx.(*hmacState)
			if s.h != nil {
				return nil, errors.New("builtin: keyed HMAC state cannot be copied")
			}
			return &hmacState{digest: s.digest}, nil
		}),
		algfetch.Entry(algfetch.FuncSetCtxParams, func(ctx any, ps param.Params) int {
			if !ctx.(*hmacState).set(ps) {
				return fail
			}
			return ok
		}),
		algfetch.Entry(algfetch.FuncGetCtxParams, func(ctx any, ps param.Params) int {
			s := ctx.(*hmacState)
			newH, _ := lookupDigest(s.digest)
			return answer(ps, map[string]func(*param.Param) error{
				param.KeySize:   func(p *param.Param) error { return p.SetUint(uint64(newH().Size())) },
				param.KeyDigest: func(p *param.Param) error { return p.SetUTF8(s.digest) },
			})
		}),
		algfetch.Entry(algfetch.FuncSettableCtxParams, func() param.Descriptors {
			return param.Descriptors{{Key: param.KeyDigest, Type: param.UTF8String}}
		}),
		algfetch.Entry(algfetch.FuncGettableCtxParams, func() param.Descriptors {
			return param.Descriptors{
				{Key: param.KeySize, Type: param.UnsignedInteger},
				{Key: param.KeyDigest, Type: param.UTF8String},
			}
		}),
		algfetch.Entry(algfetch.FuncMACInit, func(ctx any, key []byte, ps param.Params) error {
			s := ctx.(*hmacState)
			if !s.set(ps) {
				return fmt.Errorf("builtin: bad HMAC digest parameter")
			}
			if len(key) == 0 {
				return errors.New("builtin: HMAC needs a key")
			}
			newH, _ := lookupDigest(s.digest)
			s.h = hmac.New(newH, key)
			return nil
		}),
		algfetch.Entry(algfetch.FuncMACUpdate, func(ctx any, data []byte) error {
			_, err := ctx.(*hmacState).h.Write(data)
			return err
		}),
		algfetch.Entry(algfetch.FuncMACFinal, func(ctx any) ([]byte, error) {
			return ctx.(*hmacState).h.Sum(nil), nil
		}),
	}
}
