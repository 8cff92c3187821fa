package builtin

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"

	"github.com/unkn0wn-root/algfetch"
	"github.com/unkn0wn-root/algfetch/param"
)

// kdfState accumulates settings across SetParams and Derive calls.
type kdfState struct {
	digest  string
	pass    []byte
	salt    []byte
	key     []byte
	info    []byte
	iter    uint64
	memory  uint64 // KiB
	threads uint64
}

func newKDFState() *kdfState {
	return &kdfState{digest: defaultDigest, memory: 64 * 1024, threads: 1}
}

func (s *kdfState) apply(ps param.Params) error {
	for i := range ps {
		p := &ps[i]
		var err error
		switch p.Key {
		case param.KeyDigest:
			var name string
			if name, err = p.UTF8(); err != nil {
				break
			}
			if _, found := lookupDigest(name); !found {
				err = fmt.Errorf("builtin: unknown digest %q", name)
				break
			}
			s.digest = name
		case param.KeyPassword:
			s.pass, err = octets(p)
		case param.KeySalt:
			s.salt, err = octets(p)
		case param.KeyKey:
			s.key, err = octets(p)
		case param.KeyInfo:
			s.info, err = octets(p)
		case param.KeyIter:
			s.iter, err = p.Uint()
		case param.KeyMemory:
			s.memory, err = p.Uint()
		case param.KeyThreads:
			s.threads, err = p.Uint()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func octets(p *param.Param) ([]byte, error) {
	b, err := p.Octets()
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

type kdfDef struct {
	names    []string
	desc     string
	settable param.Descriptors
	derive   func(s *kdfState, keylen int) ([]byte, error)
}

var kdfs = []kdfDef{
	{
		names: []string{"PBKDF2"},
		desc:  "PBKDF2 (RFC 8018)",
		settable: param.Descriptors{
			{Key: param.KeyPassword, Type: param.OctetString},
			{Key: param.KeySalt, Type: param.OctetString},
			{Key: param.KeyIter, Type: param.UnsignedInteger},
			{Key: param.KeyDigest, Type: param.UTF8String},
		},
		derive: derivePBKDF2,
	},
	{
		names: []string{"HKDF"},
		desc:  "HKDF (RFC 5869)",
		settable: param.Descriptors{
			{Key: param.KeyKey, Type: param.OctetString},
			{Key: param.KeySalt, Type: param.OctetString},
			{Key: param.KeyInfo, Type: param.OctetString},
			{Key: param.KeyDigest, Type: param.UTF8String},
		},
		derive: deriveHKDF,
	},
	{
		names: []string{"ARGON2ID", "argon2id"},
		desc:  "Argon2id (RFC 9106)",
		settable: param.Descriptors{
			{Key: param.KeyPassword, Type: param.OctetString},
			{Key: param.KeySalt, Type: param.OctetString},
			{Key: param.KeyIter, Type: param.UnsignedInteger},
			{Key: param.KeyMemory, Type: param.UnsignedInteger},
			{Key: param.KeyThreads, Type: param.UnsignedInteger},
		},
		derive: deriveArgon2id,
	},
}

const defaultPBKDF2Iter = 600000

func derivePBKDF2(s *kdfState, keylen int) ([]byte, error) {
	if len(s.pass) == 0 {
		return nil, errors.New("builtin: PBKDF2 needs a password")
	}
	iter := s.iter
	if iter == 0 {
		iter = defaultPBKDF2Iter
	}
	newH, _ := lookupDigest(s.digest)
	return pbkdf2.Key(s.pass, s.salt, int(iter), keylen, newH), nil
}

func deriveHKDF(s *kdfState, keylen int) ([]byte, error) {
	if len(s.key) == 0 {
		return nil, errors.New("builtin: HKDF needs a key")
	}
	newH, _ := lookupDigest(s.digest)
	out := make([]byte, keylen)
	if _, err := io.ReadFull(hkdf.New(newH, s.key, s.salt, s.info), out); err != nil {
		return nil, err
	}
	return out, nil
}

func deriveArgon2id(s *kdfState, keylen int) ([]byte, error) {
	if len(s.pass) == 0 {
		return nil, errors.New("builtin: ARGON2ID needs a password")
	}
	iter := s.iter
	if iter == 0 {
		iter = 1
	}
	if s.threads == 0 || s.threads > 255 {
		return nil, fmt.Errorf("builtin: ARGON2ID threads %d out of range", s.threads)
	}
	return argon2.IDKey(s.pass, s.salt, uint32(iter), uint32(s.memory), uint8(s.threads), uint32(keylen)), nil
}

func kdfDispatch(k kdfDef) algfetch.Dispatch {
	return algfetch.Dispatch{
		algfetch.Entry(algfetch.FuncNewCtx, func() (any, error) { return newKDFState(), nil }),
		algfetch.Entry(algfetch.FuncFreeCtx, func(ctx any) { *ctx.(*kdfState) = kdfState{} }),
		algfetch.Entry(algfetch.FuncDupCtx, func(ctx any) (any, error) {
			cp := *ctx.(*kdfState)
			return &cp, nil
		}),
		algfetch.Entry(algfetch.FuncSetCtxParams, func(ctx any, ps param.Params) int {
			if ctx.(*kdfState).apply(ps) != nil {
				return fail
			}
			return ok
		}),
		algfetch.Entry(algfetch.FuncSettableCtxParams, func() param.Descriptors { return k.settable }),
		algfetch.Entry(algfetch.FuncKDFReset, func(ctx any) { *ctx.(*kdfState) = *newKDFState() }),
		algfetch.Entry(algfetch.FuncKDFDerive, func(ctx any, keylen int, ps param.Params) ([]byte, error) {
			s := ctx.(*kdfState)
			if err := s.apply(ps); err != nil {
				return nil, err
			}
			return k.derive(s, keylen)
		}),
	}
}
