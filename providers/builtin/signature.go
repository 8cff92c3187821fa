package builtin

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"strings"

	"github.com/unkn0wn-root/algfetch"
	"github.com/unkn0wn-root/algfetch/param"
)

// sigState buffers the message for the streaming calls: pure Ed25519 signs
// the whole message, not a digest of it.
type sigState struct {
	key *keyData
	buf bytes.Buffer
}

func ed25519Dispatch() algfetch.Dispatch {
	initPriv := func(ctx any, key any, _ param.Params) error {
		k, err := data(key, "ED25519")
		if err != nil {
			return err
		}
		if k.edPriv == nil {
			return errors.New("builtin: Ed25519 signing needs a private key")
		}
		s := ctx.(*sigState)
		s.key = k
		s.buf.Reset()
		return nil
	}
	initPub := func(ctx any, key any, _ param.Params) error {
		k, err := data(key, "ED25519")
		if err != nil {
			return err
		}
		if k.edPub == nil {
			return errors.New("builtin: Ed25519 verification needs a public key")
		}
		s := ctx.(*sigState)
		s.key = k
		s.buf.Reset()
		return nil
	}
	// Ed25519 hashes internally; only an empty or SHA2-512 digest is accepted.
	digestCheck := func(init func(any, any, param.Params) error) algfetch.DigestSignInitFunc {
		return func(ctx any, digest string, key any, ps param.Params) error {
			if digest != "" && !isSHA512(digest) {
				return errors.New("builtin: Ed25519 does not take an external digest")
			}
			return init(ctx, key, ps)
		}
	}
	write := func(ctx any, b []byte) error {
		_, err := ctx.(*sigState).buf.Write(b)
		return err
	}
	sign := func(ctx any, msg []byte) ([]byte, error) {
		return ed25519.Sign(ctx.(*sigState).key.edPriv, msg), nil
	}
	verify := func(ctx any, sig, msg []byte) (bool, error) {
		return ed25519.Verify(ctx.(*sigState).key.edPub, msg, sig), nil
	}
	return algfetch.Dispatch{
		algfetch.Entry(algfetch.FuncNewCtx, func() (any, error) { return &sigState{}, nil }),
		algfetch.Entry(algfetch.FuncFreeCtx, func(ctx any) { ctx.(*sigState).key = nil }),
		algfetch.Entry(algfetch.FuncDupCtx, func(ctx any) (any, error) {
			s := ctx.(*sigState)
			cp := &sigState{key: s.key}
			cp.buf.Write(s.buf.Bytes())
			return cp, nil
		}),
		algfetch.Entry(algfetch.FuncSignInit, initPriv),
		algfetch.Entry(algfetch.FuncSign, sign),
		algfetch.Entry(algfetch.FuncVerifyInit, initPub),
		algfetch.Entry(algfetch.FuncVerify, verify),
		algfetch.Entry(algfetch.FuncDigestSignInit, digestCheck(initPriv)),
		algfetch.Entry(algfetch.FuncDigestSignUpdate, write),
		algfetch.Entry(algfetch.FuncDigestSignFinal, func(ctx any) ([]byte, error) {
			return sign(ctx, ctx.(*sigState).buf.Bytes())
		}),
		algfetch.Entry(algfetch.FuncDigestVerifyInit, digestCheck(initPub)),
		algfetch.Entry(algfetch.FuncDigestVerifyUpdate, write),
		algfetch.Entry(algfetch.FuncDigestVerifyFinal, func(ctx any, sig []byte) (bool, error) {
			return verify(ctx, sig, ctx.(*sigState).buf.Bytes())
		}),
	}
}

func isSHA512(name string) bool {
	for _, d := range digests {
		if d.desc != "SHA-512" {
			continue
		}
		for _, n := range d.names {
			if strings.EqualFold(n, name) {
				return true
			}
		}
	}
	return false
}
