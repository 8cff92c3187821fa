package algfetch

import (
	"bytes"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/unkn0wn-root/algfetch/param"
)

// toyKey uses the same byte for both halves, so every toy operation can be
// checked by hand.
type toyKey struct {
	priv, pub []byte
}

type toyPK struct {
	serial   atomic.Int32
	frees    atomic.Int32
	cleanups atomic.Int32
}

type toyOpState struct {
	key  *toyKey
	peer *toyKey
}

func (tp *toyPK) provider(name string) *fakeProvider {
	props := "provider=" + name
	newState := func() (any, error) { return &toyOpState{}, nil }
	free := func(any) {}
	return newFakeProvider(name).
		add(OpKeyMgmt, props, tp.keymgmt(), "TOY-PK").
		add(OpSignature, props, Dispatch{
			Entry(FuncNewCtx, newState),
			Entry(FuncFreeCtx, free),
			Entry(FuncSignInit, func(ctx, key any, _ param.Params) error {
				k := key.(*toyKey)
				if len(k.priv) == 0 {
					return errors.New("no private half")
				}
				ctx.(*toyOpState).key = k
				return nil
			}),
			Entry(FuncSign, func(ctx any, tbs []byte) ([]byte, error) {
				return append(append([]byte(nil), ctx.(*toyOpState).key.priv...), tbs...), nil
			}),
			Entry(FuncVerifyInit, func(ctx, key any, _ param.Params) error {
				ctx.(*toyOpState).key = key.(*toyKey)
				return nil
			}),
			Entry(FuncVerify, func(ctx any, sig, tbs []byte) (bool, error) {
				want := append(append([]byte(nil), ctx.(*toyOpState).key.pub...), tbs...)
				return bytes.Equal(sig, want), nil
			}),
		}, "TOY-PK").
		add(OpKeyExch, props, Dispatch{
			Entry(FuncNewCtx, newState),
			Entry(FuncFreeCtx, free),
			Entry(FuncExchInit, func(ctx, key any, _ param.Params) error {
				ctx.(*toyOpState).key = key.(*toyKey)
				return nil
			}),
			Entry(FuncExchSetPeer, func(ctx, peer any) error {
				ctx.(*toyOpState).peer = peer.(*toyKey)
				return nil
			}),
			Entry(FuncExchDerive, func(ctx any) ([]byte, error) {
				s := ctx.(*toyOpState)
				if s.peer == nil {
					return nil, errors.New("peer not set")
				}
				return []byte{s.key.priv[0] ^ s.peer.pub[0]}, nil
			}),
		}, "TOY-PK").
		add(OpAsymCipher, props, Dispatch{
			Entry(FuncNewCtx, newState),
			Entry(FuncFreeCtx, free),
			Entry(FuncAsymEncryptInit, func(ctx, key any, _ param.Params) error {
				ctx.(*toyOpState).key = key.(*toyKey)
				return nil
			}),
			Entry(FuncAsymEncrypt, func(ctx any, in []byte) ([]byte, error) {
				return xorWith(in, ctx.(*toyOpState).key.pub[0]), nil
			}),
			Entry(FuncAsymDecryptInit, func(ctx, key any, _ param.Params) error {
				ctx.(*toyOpState).key = key.(*toyKey)
				return nil
			}),
			Entry(FuncAsymDecrypt, func(ctx any, in []byte) ([]byte, error) {
				return xorWith(in, ctx.(*toyOpState).key.priv[0]), nil
			}),
		}, "TOY-PK")
}

func (tp *toyPK) keymgmt() Dispatch {
	return Dispatch{
		Entry(FuncKeyNew, func() (any, error) { return &toyKey{}, nil }),
		Entry(FuncKeyFree, func(any) { tp.frees.Add(1) }),
		Entry(FuncKeyGenInit, func(selection int, _ param.Params) (any, error) {
			if selection&SelectPrivateKey == 0 {
				return nil, errors.New("can only generate key pairs")
			}
			return new(int), nil
		}),
		Entry(FuncKeyGen, func(any) (any, error) {
			b := byte(tp.serial.Add(1))
			return &toyKey{priv: []byte{b}, pub: []byte{b}}, nil
		}),
		Entry(FuncKeyGenCleanup, func(any) { tp.cleanups.Add(1) }),
		Entry(FuncKeyHas, func(key any, selection int) bool {
			k := key.(*toyKey)
			if selection&SelectPrivateKey != 0 && len(k.priv) == 0 {
				return false
			}
			return selection&SelectPublicKey == 0 || len(k.pub) > 0
		}),
		Entry(FuncKeyMatch, func(a, b any, _ int) bool {
			return bytes.Equal(a.(*toyKey).pub, b.(*toyKey).pub)
		}),
		Entry(FuncKeyImport, func(key any, _ int, ps param.Params) error {
			p := ps.Locate(param.KeyPublicKey)
			if p == nil {
				return errors.New("missing public key")
			}
			b, err := p.Octets()
			if err != nil {
				return err
			}
			key.(*toyKey).pub = append([]byte(nil), b...)
			return nil
		}),
		Entry(FuncKeyExport, func(key any, _ int) (param.Params, error) {
			return param.Params{param.Octets(param.KeyPublicKey, key.(*toyKey).pub)}, nil
		}),
	}
}

func xorWith(in []byte, k byte) []byte {
	out := make([]byte, len(in))
	for i := range in {
		out[i] = in[i] ^ k
	}
	return out
}

func fetchKeyMgmt(t *testing.T, lib *Library, props string) *KeyMgmt {
	t.Helper()
	km, err := lib.FetchKeyMgmt("TOY-PK", props)
	if err != nil {
		t.Fatalf("FetchKeyMgmt: %v", err)
	}
	return km
}

func genToyKey(t *testing.T, km *KeyMgmt) *Key {
	t.Helper()
	k, err := GenerateKey(km, SelectKeyPair, nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return k
}

func TestKeyLifecycle(t *testing.T) {
	tp := &toyPK{}
	lib := newTestLib(t, Options{}, tp.provider("p1"))
	km := fetchKeyMgmt(t, lib, "")
	defer km.Release()

	k := genToyKey(t, km)
	if km.RefCount() != 2 || k.KeyMgmt() != km {
		t.Fatalf("key should hold its manager: refs %d", km.RefCount())
	}
	if tp.cleanups.Load() != 1 {
		t.Fatalf("generation context not cleaned up")
	}
	if !k.Has(SelectKeyPair) {
		t.Fatalf("generated key lacks components")
	}

	exported, err := k.Export(SelectPublicKey)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	pub, err := ImportKey(km, SelectPublicKey, exported)
	if err != nil {
		t.Fatalf("ImportKey: %v", err)
	}
	defer pub.Free()
	if pub.Has(SelectPrivateKey) || !pub.Has(SelectPublicKey) {
		t.Fatalf("imported key has wrong components")
	}
	if ok, err := k.Match(pub, SelectPublicKey); err != nil || !ok {
		t.Fatalf("Match = %v, %v", ok, err)
	}
	if err := k.Validate(SelectKeyPair); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("validate without slot: %v", err)
	}
	if r, err := k.GetParams(nil); err != nil || !r.Unsupported() {
		t.Fatalf("GetParams = %v, %v", r, err)
	}

	frees := tp.frees.Load()
	if _, err := ImportKey(km, SelectPublicKey, nil); !errors.Is(err, ErrBackendFailure) {
		t.Fatalf("import without data: %v", err)
	}
	if tp.frees.Load() != frees+1 || km.RefCount() != 3 {
		t.Fatalf("failed import leaked: frees %d, refs %d", tp.frees.Load(), km.RefCount())
	}

	k.Free()
	k.Free()
	if k.Has(SelectPublicKey) {
		t.Fatalf("freed key still answers")
	}
	if _, err := k.Export(SelectPublicKey); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("export after free: %v", err)
	}
	if r, err := k.GetParams(nil); !errors.Is(err, ErrInvalidState) || r.Valid() {
		t.Fatalf("GetParams after free = %v, %v", r, err)
	}
	if km.RefCount() != 2 {
		t.Fatalf("refs after free = %d", km.RefCount())
	}
}

func TestKeyGenCtx(t *testing.T) {
	tp := &toyPK{}
	lib := newTestLib(t, Options{}, tp.provider("p1"))
	km := fetchKeyMgmt(t, lib, "")
	defer km.Release()

	c, err := NewKeyGenCtx(km)
	if err != nil {
		t.Fatalf("NewKeyGenCtx: %v", err)
	}
	defer c.Free()
	if _, err := c.Generate(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("generate before init: %v", err)
	}
	if err := c.Init(SelectPublicKey, nil); !errors.Is(err, ErrBackendFailure) {
		t.Fatalf("init with bad selection: %v", err)
	}
	if err := c.Init(SelectKeyPair, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	k1, err := c.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer k1.Free()
	k2, err := c.Generate()
	if err != nil {
		t.Fatalf("Generate again: %v", err)
	}
	defer k2.Free()
	if ok, _ := k1.Match(k2, SelectPublicKey); ok {
		t.Fatalf("two generated keys should differ")
	}
}

func TestSignatureCtx(t *testing.T) {
	lib := newTestLib(t, Options{}, (&toyPK{}).provider("p1"))
	km := fetchKeyMgmt(t, lib, "")
	defer km.Release()
	k := genToyKey(t, km)
	defer k.Free()

	sig, err := lib.FetchSignature("TOY-PK", "")
	if err != nil {
		t.Fatalf("FetchSignature: %v", err)
	}
	defer sig.Release()

	signer, _ := NewSignatureCtx(sig)
	defer signer.Free()
	if _, err := signer.Sign([]byte("m")); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("sign before init: %v", err)
	}
	if err := signer.SignInit(k, nil); err != nil {
		t.Fatalf("SignInit: %v", err)
	}
	s1, err := signer.Sign([]byte("m1"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	// one-shot calls may repeat
	if _, err := signer.Sign([]byte("m2")); err != nil {
		t.Fatalf("second Sign: %v", err)
	}
	if _, err := signer.Verify(s1, []byte("m1")); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("verify on a signing context: %v", err)
	}
	if err := signer.DigestSignInit("", k, nil); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("digest sign without slot: %v", err)
	}
	if signer.State() != Uninitialized {
		t.Fatalf("state after failed init = %s", signer.State())
	}

	verifier, _ := NewSignatureCtx(sig)
	defer verifier.Free()
	if err := verifier.VerifyInit(k, nil); err != nil {
		t.Fatalf("VerifyInit: %v", err)
	}
	if ok, err := verifier.Verify(s1, []byte("m1")); err != nil || !ok {
		t.Fatalf("Verify = %v, %v", ok, err)
	}
	if ok, err := verifier.Verify(s1, []byte("tampered")); err != nil || ok {
		t.Fatalf("tampered Verify = %v, %v", ok, err)
	}
}

func TestKeyFromAnotherProvider(t *testing.T) {
	tp := &toyPK{}
	lib := newTestLib(t, Options{}, tp.provider("p1"), tp.provider("p2"))
	km1 := fetchKeyMgmt(t, lib, "provider=p1")
	defer km1.Release()
	km2 := fetchKeyMgmt(t, lib, "provider=p2")
	defer km2.Release()
	k1 := genToyKey(t, km1)
	defer k1.Free()
	k2 := genToyKey(t, km2)
	defer k2.Free()

	if _, err := k1.Match(k2, SelectPublicKey); !errors.Is(err, ErrKeyMismatch) {
		t.Fatalf("cross-provider match: %v", err)
	}

	sig, err := lib.FetchSignature("TOY-PK", "provider=p1")
	if err != nil {
		t.Fatalf("FetchSignature: %v", err)
	}
	defer sig.Release()
	c, _ := NewSignatureCtx(sig)
	defer c.Free()
	if err := c.SignInit(k2, nil); !errors.Is(err, ErrKeyMismatch) {
		t.Fatalf("SignInit with foreign key: %v", err)
	}
	if c.State() != Uninitialized {
		t.Fatalf("state = %s", c.State())
	}
	if err := c.SignInit(k1, nil); err != nil {
		t.Fatalf("SignInit with own key: %v", err)
	}
}

func TestKeyExchCtx(t *testing.T) {
	lib := newTestLib(t, Options{}, (&toyPK{}).provider("p1"))
	km := fetchKeyMgmt(t, lib, "")
	defer km.Release()
	a := genToyKey(t, km)
	defer a.Free()
	b := genToyKey(t, km)
	defer b.Free()

	x, err := lib.FetchKeyExch("TOY-PK", "")
	if err != nil {
		t.Fatalf("FetchKeyExch: %v", err)
	}
	defer x.Release()

	ca, _ := NewKeyExchCtx(x)
	defer ca.Free()
	if _, err := ca.Derive(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("derive before init: %v", err)
	}
	if err := ca.SetPeer(b); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("set peer before init: %v", err)
	}
	if err := ca.Init(a, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := ca.Derive(); !errors.Is(err, ErrBackendFailure) {
		t.Fatalf("derive without peer: %v", err)
	}
	if err := ca.SetPeer(b); err != nil {
		t.Fatalf("SetPeer: %v", err)
	}
	s1, err := ca.Derive()
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	cb, _ := NewKeyExchCtx(x)
	defer cb.Free()
	_ = cb.Init(b, nil)
	_ = cb.SetPeer(a)
	s2, _ := cb.Derive()
	if !bytes.Equal(s1, s2) {
		t.Fatalf("shared secrets differ: %x %x", s1, s2)
	}
}

func TestAsymCipherCtx(t *testing.T) {
	lib := newTestLib(t, Options{}, (&toyPK{}).provider("p1"))
	km := fetchKeyMgmt(t, lib, "")
	defer km.Release()
	k := genToyKey(t, km)
	defer k.Free()

	ac, err := lib.FetchAsymCipher("TOY-PK", "")
	if err != nil {
		t.Fatalf("FetchAsymCipher: %v", err)
	}
	defer ac.Release()

	enc, _ := NewAsymCipherCtx(ac)
	defer enc.Free()
	if err := enc.EncryptInit(k, nil); err != nil || !enc.Encrypting() {
		t.Fatalf("EncryptInit: %v", err)
	}
	ct, err := enc.Encrypt([]byte("hi"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := enc.Decrypt(ct); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("decrypt on an encrypting context: %v", err)
	}

	dec, _ := NewAsymCipherCtx(ac)
	defer dec.Free()
	if err := dec.DecryptInit(k, nil); err != nil {
		t.Fatalf("DecryptInit: %v", err)
	}
	pt, err := dec.Decrypt(ct)
	if err != nil || string(pt) != "hi" {
		t.Fatalf("Decrypt = %q, %v", pt, err)
	}
}
