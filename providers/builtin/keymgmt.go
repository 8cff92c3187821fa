package builtin

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/algfetch"
	"github.com/unkn0wn-root/algfetch/param"
)

// keyData is the provider-side key object handed to exchange, signature and
// asymmetric cipher slots. Exactly one of the typed fields pairs is set once
// the key holds material.
type keyData struct {
	typ     string
	edPriv  ed25519.PrivateKey
	edPub   ed25519.PublicKey
	xPriv   *ecdh.PrivateKey
	xPub    *ecdh.PublicKey
	rsaPriv *rsa.PrivateKey
	rsaPub  *rsa.PublicKey
}

func (k *keyData) hasPriv() bool { return k.edPriv != nil || k.xPriv != nil || k.rsaPriv != nil }
func (k *keyData) hasPub() bool  { return k.edPub != nil || k.xPub != nil || k.rsaPub != nil }

func (k *keyData) bits() int {
	switch {
	case k.rsaPub != nil:
		return k.rsaPub.N.BitLen()
	case k.edPub != nil, k.xPub != nil:
		return 256
	}
	return 0
}

type keyType struct {
	names []string
	desc  string
	// generate fills k; bits applies to RSA only.
	generate func(k *keyData, bits int) error
	// encode and decode map key material to the "pub" and "priv" octets.
	encodePub  func(k *keyData) ([]byte, error)
	encodePriv func(k *keyData) ([]byte, error)
	decodePub  func(k *keyData, b []byte) error
	decodePriv func(k *keyData, b []byte) error
}

const defaultRSABits = 2048

var keyTypes = []keyType{
	{
		names: []string{"ED25519", "Ed25519"},
		desc:  "Ed25519 keys",
		generate: func(k *keyData, _ int) error {
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			k.edPub, k.edPriv = pub, priv
			return err
		},
		encodePub:  func(k *keyData) ([]byte, error) { return k.edPub, nil },
		encodePriv: func(k *keyData) ([]byte, error) { return k.edPriv.Seed(), nil },
		decodePub: func(k *keyData, b []byte) error {
			if len(b) != ed25519.PublicKeySize {
				return fmt.Errorf("builtin: ed25519 public key is %d bytes", len(b))
			}
			k.edPub = append(ed25519.PublicKey(nil), b...)
			return nil
		},
		decodePriv: func(k *keyData, b []byte) error {
			if len(b) != ed25519.SeedSize {
				return fmt.Errorf("builtin: ed25519 seed is %d bytes", len(b))
			}
			k.edPriv = ed25519.NewKeyFromSeed(b)
			k.edPub = k.edPriv.Public().(ed25519.PublicKey)
			return nil
		},
	},
	{
		names: []string{"X25519"},
		desc:  "X25519 keys",
		generate: func(k *keyData, _ int) error {
			priv, err := ecdh.X25519().GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			k.xPriv, k.xPub = priv, priv.PublicKey()
			return nil
		},
		encodePub:  func(k *keyData) ([]byte, error) { return k.xPub.Bytes(), nil },
		encodePriv: func(k *keyData) ([]byte, error) { return k.xPriv.Bytes(), nil },
		decodePub: func(k *keyData, b []byte) error {
			pub, err := ecdh.X25519().NewPublicKey(b)
			k.xPub = pub
			return err
		},
		decodePriv: func(k *keyData, b []byte) error {
			priv, err := ecdh.X25519().NewPrivateKey(b)
			if err != nil {
				return err
			}
			k.xPriv, k.xPub = priv, priv.PublicKey()
			return nil
		},
	},
	{
		names: []string{"RSA", "rsaEncryption"},
		desc:  "RSA keys",
		generate: func(k *keyData, bits int) error {
			if bits == 0 {
				bits = defaultRSABits
			}
			priv, err := rsa.GenerateKey(rand.Reader, bits)
			if err != nil {
				return err
			}
			k.rsaPriv, k.rsaPub = priv, &priv.PublicKey
			return nil
		},
		encodePub:  func(k *keyData) ([]byte, error) { return x509.MarshalPKIXPublicKey(k.rsaPub) },
		encodePriv: func(k *keyData) ([]byte, error) { return x509.MarshalPKCS8PrivateKey(k.rsaPriv) },
		decodePub: func(k *keyData, b []byte) error {
			pk, err := x509.ParsePKIXPublicKey(b)
			if err != nil {
				return err
			}
			pub, isRSA := pk.(*rsa.PublicKey)
			if !isRSA {
				return errors.New("builtin: not an RSA public key")
			}
			k.rsaPub = pub
			return nil
		},
		decodePriv: func(k *keyData, b []byte) error {
			pk, err := x509.ParsePKCS8PrivateKey(b)
			if err != nil {
				return err
			}
			priv, isRSA := pk.(*rsa.PrivateKey)
			if !isRSA {
				return errors.New("builtin: not an RSA private key")
			}
			k.rsaPriv, k.rsaPub = priv, &priv.PublicKey
			return nil
		},
	},
}

type genCtx struct {
	selection int
	bits      int
}

func keymgmtDispatch(t keyType) algfetch.Dispatch {
	name := t.names[0]
	return algfetch.Dispatch{
		algfetch.Entry(algfetch.FuncKeyNew, func() (any, error) { return &keyData{typ: name}, nil }),
		algfetch.Entry(algfetch.FuncKeyFree, func(key any) { *key.(*keyData) = keyData{} }),
		algfetch.Entry(algfetch.FuncKeyGenInit, func(selection int, ps param.Params) (any, error) {
			g := &genCtx{selection: selection}
			if p := ps.Locate(param.KeyBits); p != nil {
				b, err := p.Uint()
				if err != nil {
					return nil, err
				}
				g.bits = int(b)
			}
			return g, nil
		}),
		algfetch.Entry(algfetch.FuncKeyGenSetParams, func(ctx any, ps param.Params) int {
			g, isGen := ctx.(*genCtx)
			if !isGen {
				return fail
			}
			if p := ps.Locate(param.KeyBits); p != nil {
				b, err := p.Uint()
				if err != nil {
					return fail
				}
				g.bits = int(b)
			}
			return ok
		}),
		algfetch.Entry(algfetch.FuncKeyGen, func(ctx any) (any, error) {
			g := ctx.(*genCtx)
			if g.selection&algfetch.SelectKeyPair == 0 {
				return nil, errors.New("builtin: nothing to generate for selection")
			}
			k := &keyData{typ: name}
			if err := t.generate(k, g.bits); err != nil {
				return nil, err
			}
			return k, nil
		}),
		algfetch.Entry(algfetch.FuncKeyGenCleanup, func(any) {}),
		algfetch.Entry(algfetch.FuncKeyHas, func(key any, selection int) bool {
			k := key.(*keyData)
			if selection&algfetch.SelectPrivateKey != 0 && !k.hasPriv() {
				return false
			}
			if selection&algfetch.SelectPublicKey != 0 && !k.hasPub() {
				return false
			}
			return true
		}),
		algfetch.Entry(algfetch.FuncKeyValidate, func(key any, selection int) error {
			k := key.(*keyData)
			if selection&algfetch.SelectPrivateKey != 0 && k.rsaPriv != nil {
				return k.rsaPriv.Validate()
			}
			if selection&algfetch.SelectKeyPair != 0 && !k.hasPub() {
				return errors.New("builtin: key is empty")
			}
			return nil
		}),
		algfetch.Entry(algfetch.FuncKeyMatch, func(a, b any, selection int) bool {
			ka, kb := a.(*keyData), b.(*keyData)
			if ka.typ != kb.typ {
				return false
			}
			if selection&algfetch.SelectPublicKey != 0 || selection&algfetch.SelectPrivateKey != 0 {
				pa, errA := t.encodePub(ka)
				pb, errB := t.encodePub(kb)
				return errA == nil && errB == nil && bytes.Equal(pa, pb)
			}
			return true
		}),
		algfetch.Entry(algfetch.FuncKeyImport, func(key any, selection int, ps param.Params) error {
			k := key.(*keyData)
			if selection&algfetch.SelectPrivateKey != 0 {
				if p := ps.Locate(param.KeyPrivateKey); p != nil {
					b, err := p.Octets()
					if err != nil {
						return err
					}
					return t.decodePriv(k, b)
				}
			}
			if selection&algfetch.SelectPublicKey != 0 {
				if p := ps.Locate(param.KeyPublicKey); p != nil {
					b, err := p.Octets()
					if err != nil {
						return err
					}
					return t.decodePub(k, b)
				}
			}
			return errors.New("builtin: no key material for selection")
		}),
		algfetch.Entry(algfetch.FuncKeyExport, func(key any, selection int) (param.Params, error) {
			k := key.(*keyData)
			var out param.Params
			if selection&algfetch.SelectPublicKey != 0 && k.hasPub() {
				b, err := t.encodePub(k)
				if err != nil {
					return nil, err
				}
				out = append(out, param.Octets(param.KeyPublicKey, b))
			}
			if selection&algfetch.SelectPrivateKey != 0 && k.hasPriv() {
				b, err := t.encodePriv(k)
				if err != nil {
					return nil, err
				}
				out = append(out, param.Octets(param.KeyPrivateKey, b))
			}
			if len(out) == 0 {
				return nil, errors.New("builtin: key lacks the selected components")
			}
			return out, nil
		}),
		algfetch.Entry(algfetch.FuncKeyGetParams, func(key any, ps param.Params) int {
			k := key.(*keyData)
			return answer(ps, map[string]func(*param.Param) error{
				param.KeyBits: func(p *param.Param) error { return p.SetUint(uint64(k.bits())) },
			})
		}),
	}
}

// data unwraps the key object passed to operation slots and checks its type.
func data(key any, typ string) (*keyData, error) {
	k, isKey := key.(*keyData)
	if !isKey || k.typ != typ {
		return nil, fmt.Errorf("builtin: expected a %s key", typ)
	}
	return k, nil
}
