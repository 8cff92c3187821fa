package builtin

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/algfetch"
	"github.com/unkn0wn-root/algfetch/param"
)

type oaepState struct {
	key    *keyData
	digest string
	label  []byte
}

func (s *oaepState) apply(ps param.Params) error {
	if p := ps.Locate(param.KeyDigest); p != nil {
		name, err := p.UTF8()
		if err != nil {
			return err
		}
		if _, found := lookupDigest(name); !found {
			return fmt.Errorf("builtin: unknown OAEP digest %q", name)
		}
		s.digest = name
	}
	if p := ps.Locate(param.KeyLabel); p != nil {
		b, err := octets(p)
		if err != nil {
			return err
		}
		s.label = b
	}
	return nil
}

func rsaOAEPDispatch() algfetch.Dispatch {
	initWith := func(needPriv bool) algfetch.KeyInitFunc {
		return func(ctx any, key any, ps param.Params) error {
			k, err := data(key, "RSA")
			if err != nil {
				return err
			}
			if needPriv && k.rsaPriv == nil {
				return errors.New("builtin: RSA decryption needs a private key")
			}
			if k.rsaPub == nil {
				return errors.New("builtin: RSA key is empty")
			}
			s := ctx.(*oaepState)
			if err := s.apply(ps); err != nil {
				return err
			}
			s.key = k
			return nil
		}
	}
	return algfetch.Dispatch{
		algfetch.Entry(algfetch.FuncNewCtx, func() (any, error) { return &oaepState{digest: defaultDigest}, nil }),
		algfetch.Entry(algfetch.FuncFreeCtx, func(ctx any) { ctx.(*oaepState).key = nil }),
		algfetch.Entry(algfetch.FuncDupCtx, func(ctx any) (any, error) {
			cp := *ctx.(*oaepState)
			return &cp, nil
		}),
		algfetch.Entry(algfetch.FuncSetCtxParams, func(ctx any, ps param.Params) int {
			if ctx.(*oaepState).apply(ps) != nil {
				return fail
			}
			return ok
		}),
		algfetch.Entry(algfetch.FuncSettableCtxParams, func() param.Descriptors {
			return param.Descriptors{
				{Key: param.KeyDigest, Type: param.UTF8String},
				{Key: param.KeyLabel, Type: param.OctetString},
			}
		}),
		algfetch.Entry(algfetch.FuncAsymEncryptInit, initWith(false)),
		algfetch.Entry(algfetch.FuncAsymEncrypt, func(ctx any, in []byte) ([]byte, error) {
			s := ctx.(*oaepState)
			newH, _ := lookupDigest(s.digest)
			return rsa.EncryptOAEP(newH(), rand.Reader, s.key.rsaPub, in, s.label)
		}),
		algfetch.Entry(algfetch.FuncAsymDecryptInit, initWith(true)),
		algfetch.Entry(algfetch.FuncAsymDecrypt, func(ctx any, in []byte) ([]byte, error) {
			s := ctx.(*oaepState)
			newH, _ := lookupDigest(s.digest)
			return rsa.DecryptOAEP(newH(), nil, s.key.rsaPriv, in, s.label)
		}),
	}
}
