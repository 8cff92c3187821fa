package builtin_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"

	"github.com/unkn0wn-root/algfetch"
	"github.com/unkn0wn-root/algfetch/param"
	"github.com/unkn0wn-root/algfetch/providers/builtin"
)

func newLib(t *testing.T) (*algfetch.Library, *builtin.Provider) {
	t.Helper()
	p := builtin.New(builtin.Options{})
	reg, err := algfetch.NewRegistry(p)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	lib, err := algfetch.New(algfetch.Options{Providers: reg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close(context.Background()) })
	return lib, p
}

// must turns a (value, error) pair into a value, failing t on error:
// must(algfetch.Fetch(...))(t).
func must[T any](v T, err error) func(testing.TB) T {
	return func(t testing.TB) T {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return v
	}
}

func genKey(t *testing.T, lib *algfetch.Library, name string, ps param.Params) *algfetch.Key {
	t.Helper()
	km := must(algfetch.Fetch(lib, algfetch.KeyMgmtKind, name, ""))(t)
	defer km.Release()
	k, err := algfetch.GenerateKey(km, algfetch.SelectKeyPair, ps)
	if err != nil {
		t.Fatalf("GenerateKey %s: %v", name, err)
	}
	return k
}

func TestDigestKnownVector(t *testing.T) {
	lib, p := newLib(t)
	for _, name := range []string{"SHA2-256", "sha256", "SHA-256"} {
		md := must(algfetch.Fetch(lib, algfetch.DigestKind, name, ""))(t)
		got, err := algfetch.Sum(md, []byte("abc"))
		if err != nil {
			t.Fatalf("Sum: %v", err)
		}
		if hex.EncodeToString(got) != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
			t.Fatalf("%s: got %x", name, got)
		}
		if md.Constants().Size != 32 {
			t.Fatalf("size=%d want 32", md.Constants().Size)
		}
		md.Release()
	}
	if p.Refs() != 0 {
		t.Fatalf("provider refs=%d want 0", p.Refs())
	}
}

func TestDigestDupContinuesIndependently(t *testing.T) {
	lib, _ := newLib(t)
	md := must(algfetch.Fetch(lib, algfetch.DigestKind, "SHA2-512", ""))(t)
	defer md.Release()

	c, err := algfetch.NewDigestCtx(md)
	if err != nil {
		t.Fatalf("NewDigestCtx: %v", err)
	}
	defer c.Free()
	_ = c.Init(nil)
	_ = c.Update([]byte("ab"))
	d, err := c.Dup()
	if err != nil {
		t.Fatalf("Dup: %v", err)
	}
	defer d.Free()
	_ = c.Update([]byte("c"))
	_ = d.Update([]byte("c"))
	a, _ := c.Final()
	b, _ := d.Final()
	if !bytes.Equal(a, b) {
		t.Fatalf("dup diverged: %x vs %x", a, b)
	}
}

func TestDigestWithoutDupSlot(t *testing.T) {
	lib, _ := newLib(t)
	md := must(algfetch.Fetch(lib, algfetch.DigestKind, "SHA3-256", ""))(t)
	defer md.Release()
	c, err := algfetch.NewDigestCtx(md)
	if err != nil {
		t.Fatalf("NewDigestCtx: %v", err)
	}
	defer c.Free()
	_ = c.Init(nil)
	if _, err := c.Dup(); !errors.Is(err, algfetch.ErrUnsupported) {
		t.Fatalf("Dup err=%v want ErrUnsupported", err)
	}
}

func TestCipherRoundTrip(t *testing.T) {
	lib, _ := newLib(t)
	for _, name := range []string{"AES-128-CTR", "AES-256-CTR", "CHACHA20"} {
		ci := must(algfetch.Fetch(lib, algfetch.CipherKind, name, ""))(t)
		k := ci.Constants()
		key := bytes.Repeat([]byte{7}, k.KeyLen)
		iv := bytes.Repeat([]byte{9}, k.IVLen)
		msg := []byte("attack at dawn, or maybe after lunch")

		enc, _ := algfetch.NewCipherCtx(ci)
		if err := enc.EncryptInit(key, iv, nil); err != nil {
			t.Fatalf("%s EncryptInit: %v", name, err)
		}
		ct, _ := enc.Update(msg)
		enc.Free()

		dec, _ := algfetch.NewCipherCtx(ci)
		if err := dec.DecryptInit(key, iv, nil); err != nil {
			t.Fatalf("%s DecryptInit: %v", name, err)
		}
		pt, _ := dec.Update(ct)
		dec.Free()
		if !bytes.Equal(pt, msg) {
			t.Fatalf("%s round trip: %q", name, pt)
		}
		ci.Release()
	}
}

func TestHMACMatchesStdlib(t *testing.T) {
	lib, _ := newLib(t)
	mac := must(algfetch.Fetch(lib, algfetch.MACKind, "HMAC", ""))(t)
	defer mac.Release()

	c, err := algfetch.NewMACCtx(mac)
	if err != nil {
		t.Fatalf("NewMACCtx: %v", err)
	}
	defer c.Free()
	key := []byte("secret")
	if err := c.Init(key, param.Params{param.UTF8(param.KeyDigest, "SHA2-256")}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	_ = c.Update([]byte("hello"))
	got, err := c.Final()
	if err != nil {
		t.Fatalf("Final: %v", err)
	}
	h := hmac.New(sha256.New, key)
	h.Write([]byte("hello"))
	if !bytes.Equal(got, h.Sum(nil)) {
		t.Fatalf("hmac mismatch")
	}

	ps := param.Params{param.Request(param.KeyDigest, param.UTF8String)}
	res, err := c.GetParams(ps)
	if err != nil || res.Code() != 1 {
		t.Fatalf("GetParams: %v %v", res, err)
	}
	if s, _ := ps[0].UTF8(); s != "SHA2-256" {
		t.Fatalf("digest param=%q", s)
	}
}

func TestHMACRejectsUnknownDigest(t *testing.T) {
	lib, _ := newLib(t)
	mac := must(algfetch.Fetch(lib, algfetch.MACKind, "HMAC", ""))(t)
	defer mac.Release()
	c, _ := algfetch.NewMACCtx(mac)
	defer c.Free()
	err := c.Init([]byte("k"), param.Params{param.UTF8(param.KeyDigest, "MD5")})
	var be *algfetch.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("Init err=%v want BackendError", err)
	}
	if c.State() != algfetch.Uninitialized {
		t.Fatalf("state=%v want uninitialized", c.State())
	}
}

func TestKDFs(t *testing.T) {
	lib, _ := newLib(t)
	pass, salt := []byte("password"), []byte("salt")

	t.Run("pbkdf2", func(t *testing.T) {
		k := must(algfetch.Fetch(lib, algfetch.KDFKind, "PBKDF2", ""))(t)
		defer k.Release()
		c, _ := algfetch.NewKDFCtx(k)
		defer c.Free()
		got, err := c.Derive(32, param.Params{
			param.Octets(param.KeyPassword, pass),
			param.Octets(param.KeySalt, salt),
			param.Uint(param.KeyIter, 1000),
		})
		if err != nil {
			t.Fatalf("Derive: %v", err)
		}
		if !bytes.Equal(got, pbkdf2.Key(pass, salt, 1000, 32, sha256.New)) {
			t.Fatalf("pbkdf2 mismatch")
		}
		// parameters persist across derivations
		again, err := c.Derive(32, nil)
		if err != nil || !bytes.Equal(again, got) {
			t.Fatalf("second Derive: %v", err)
		}
	})

	t.Run("hkdf", func(t *testing.T) {
		k := must(algfetch.Fetch(lib, algfetch.KDFKind, "HKDF", ""))(t)
		defer k.Release()
		c, _ := algfetch.NewKDFCtx(k)
		defer c.Free()
		got, err := c.Derive(42, param.Params{
			param.Octets(param.KeyKey, pass),
			param.Octets(param.KeySalt, salt),
			param.Octets(param.KeyInfo, []byte("ctx")),
		})
		if err != nil {
			t.Fatalf("Derive: %v", err)
		}
		want := make([]byte, 42)
		_, _ = io.ReadFull(hkdf.New(sha256.New, pass, salt, []byte("ctx")), want)
		if !bytes.Equal(got, want) {
			t.Fatalf("hkdf mismatch")
		}
	})

	t.Run("argon2id", func(t *testing.T) {
		k := must(algfetch.Fetch(lib, algfetch.KDFKind, "argon2id", ""))(t)
		defer k.Release()
		c, _ := algfetch.NewKDFCtx(k)
		defer c.Free()
		ps := param.Params{
			param.Octets(param.KeyPassword, pass),
			param.Octets(param.KeySalt, []byte("somesalt")),
			param.Uint(param.KeyMemory, 1024),
		}
		a, err := c.Derive(16, ps)
		if err != nil {
			t.Fatalf("Derive: %v", err)
		}
		if err := c.Reset(); err != nil {
			t.Fatalf("Reset: %v", err)
		}
		b, err := c.Derive(16, ps)
		if err != nil || !bytes.Equal(a, b) || len(a) != 16 {
			t.Fatalf("argon2id not deterministic: %v", err)
		}
	})

	t.Run("missing password", func(t *testing.T) {
		k := must(algfetch.Fetch(lib, algfetch.KDFKind, "PBKDF2", ""))(t)
		defer k.Release()
		c, _ := algfetch.NewKDFCtx(k)
		defer c.Free()
		if _, err := c.Derive(16, nil); !errors.Is(err, algfetch.ErrBackendFailure) {
			t.Fatalf("err=%v want ErrBackendFailure", err)
		}
	})
}

func TestRandGenerate(t *testing.T) {
	lib, _ := newLib(t)
	r := must(algfetch.Fetch(lib, algfetch.RandKind, "SYSTEM", ""))(t)
	defer r.Release()
	c, _ := algfetch.NewRandCtx(r)
	defer c.Free()

	if _, err := c.Generate(8, 128, false, nil); !errors.Is(err, algfetch.ErrInvalidState) {
		t.Fatalf("Generate before Instantiate err=%v", err)
	}
	if err := c.Instantiate(256, false, nil, nil); err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	a, err := c.Generate(32, 128, false, nil)
	if err != nil || len(a) != 32 {
		t.Fatalf("Generate: %v", err)
	}
	b, _ := c.Generate(32, 128, false, nil)
	if bytes.Equal(a, b) {
		t.Fatalf("two draws are identical")
	}
	if err := c.Reseed(false, nil, nil); err != nil {
		t.Fatalf("Reseed: %v", err)
	}
	if err := c.Uninstantiate(); err != nil {
		t.Fatalf("Uninstantiate: %v", err)
	}
	if c.State() != algfetch.Uninitialized {
		t.Fatalf("state=%v", c.State())
	}
}

func TestEd25519SignVerify(t *testing.T) {
	lib, _ := newLib(t)
	key := genKey(t, lib, "ED25519", nil)
	defer key.Free()
	sig := must(algfetch.Fetch(lib, algfetch.SignatureKind, "Ed25519", ""))(t)
	defer sig.Release()

	c, _ := algfetch.NewSignatureCtx(sig)
	defer c.Free()
	msg := []byte("signed message")
	if err := c.SignInit(key, nil); err != nil {
		t.Fatalf("SignInit: %v", err)
	}
	s, err := c.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := c.VerifyInit(key, nil); err != nil {
		t.Fatalf("VerifyInit: %v", err)
	}
	if ok, err := c.Verify(s, msg); err != nil || !ok {
		t.Fatalf("Verify: %v %v", ok, err)
	}
	if ok, _ := c.Verify(s, []byte("tampered")); ok {
		t.Fatalf("tampered message verified")
	}

	// streaming form produces the same signature
	if err := c.DigestSignInit("", key, nil); err != nil {
		t.Fatalf("DigestSignInit: %v", err)
	}
	_ = c.DigestSignUpdate(msg[:6])
	_ = c.DigestSignUpdate(msg[6:])
	s2, err := c.DigestSignFinal()
	if err != nil || !bytes.Equal(s, s2) {
		t.Fatalf("DigestSignFinal: %v", err)
	}
	if err := c.DigestVerifyInit("SHA2-256", key, nil); err == nil {
		t.Fatalf("external digest accepted")
	}
}

func TestX25519Agreement(t *testing.T) {
	lib, _ := newLib(t)
	a := genKey(t, lib, "X25519", nil)
	defer a.Free()
	b := genKey(t, lib, "X25519", nil)
	defer b.Free()
	x := must(algfetch.Fetch(lib, algfetch.KeyExchKind, "X25519", ""))(t)
	defer x.Release()

	derive := func(self, peer *algfetch.Key) []byte {
		c, _ := algfetch.NewKeyExchCtx(x)
		defer c.Free()
		if err := c.Init(self, nil); err != nil {
			t.Fatalf("Init: %v", err)
		}
		if err := c.SetPeer(peer); err != nil {
			t.Fatalf("SetPeer: %v", err)
		}
		out, err := c.Derive()
		if err != nil {
			t.Fatalf("Derive: %v", err)
		}
		return out
	}
	if !bytes.Equal(derive(a, b), derive(b, a)) {
		t.Fatalf("shared secrets differ")
	}
}

func TestRSAOAEPRoundTrip(t *testing.T) {
	lib, _ := newLib(t)
	key := genKey(t, lib, "RSA", param.Params{param.Uint(param.KeyBits, 1024)})
	defer key.Free()

	bits := param.Params{param.Request(param.KeyBits, param.UnsignedInteger)}
	if _, err := key.GetParams(bits); err != nil {
		t.Fatalf("GetParams: %v", err)
	}
	if n, _ := bits[0].Uint(); n != 1024 {
		t.Fatalf("bits=%d", n)
	}

	a := must(algfetch.Fetch(lib, algfetch.AsymCipherKind, "RSA", ""))(t)
	defer a.Release()
	c, _ := algfetch.NewAsymCipherCtx(a)
	defer c.Free()
	label := param.Params{param.Octets(param.KeyLabel, []byte("l"))}
	if err := c.EncryptInit(key, label); err != nil {
		t.Fatalf("EncryptInit: %v", err)
	}
	ct, err := c.Encrypt([]byte("session key"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := c.Decrypt(ct); !errors.Is(err, algfetch.ErrInvalidState) {
		t.Fatalf("Decrypt on encrypt ctx err=%v", err)
	}
	if err := c.DecryptInit(key, label); err != nil {
		t.Fatalf("DecryptInit: %v", err)
	}
	pt, err := c.Decrypt(ct)
	if err != nil || string(pt) != "session key" {
		t.Fatalf("Decrypt: %q %v", pt, err)
	}
}

func TestKeyImportExportMatch(t *testing.T) {
	lib, _ := newLib(t)
	orig := genKey(t, lib, "ED25519", nil)
	defer orig.Free()

	pub, err := orig.Export(algfetch.SelectPublicKey)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	km := must(algfetch.Fetch(lib, algfetch.KeyMgmtKind, "ED25519", ""))(t)
	defer km.Release()
	imp, err := algfetch.ImportKey(km, algfetch.SelectPublicKey, pub)
	if err != nil {
		t.Fatalf("ImportKey: %v", err)
	}
	defer imp.Free()

	if imp.Has(algfetch.SelectPrivateKey) {
		t.Fatalf("public import has a private half")
	}
	if ok, err := imp.Match(orig, algfetch.SelectPublicKey); err != nil || !ok {
		t.Fatalf("Match: %v %v", ok, err)
	}
	other := genKey(t, lib, "ED25519", nil)
	defer other.Free()
	if ok, _ := imp.Match(other, algfetch.SelectPublicKey); ok {
		t.Fatalf("different keys matched")
	}
	if _, err := algfetch.ImportKey(km, algfetch.SelectPublicKey, param.Params{param.Octets(param.KeyPublicKey, []byte{1})}); err == nil {
		t.Fatalf("short public key imported")
	}
}

func TestWrongKeyType(t *testing.T) {
	lib, _ := newLib(t)
	key := genKey(t, lib, "X25519", nil)
	defer key.Free()
	sig := must(algfetch.Fetch(lib, algfetch.SignatureKind, "ED25519", ""))(t)
	defer sig.Release()
	c, _ := algfetch.NewSignatureCtx(sig)
	defer c.Free()
	if err := c.SignInit(key, nil); !errors.Is(err, algfetch.ErrBackendFailure) {
		t.Fatalf("SignInit err=%v want ErrBackendFailure", err)
	}
}

func TestClosedProviderRefusesConstruction(t *testing.T) {
	lib, p := newLib(t)
	md := must(algfetch.Fetch(lib, algfetch.DigestKind, "SHA2-256", ""))(t)
	p.Close()

	// already built: still served
	again, err := algfetch.Fetch(lib, algfetch.DigestKind, "SHA2-256", "")
	if err != nil {
		t.Fatalf("Fetch live method: %v", err)
	}
	again.Release()
	md.Release()

	if _, err := algfetch.Fetch(lib, algfetch.DigestKind, "SHA2-256", ""); !errors.Is(err, algfetch.ErrProviderUnavailable) {
		t.Fatalf("err=%v want ErrProviderUnavailable", err)
	}
	if p.Refs() != 0 {
		t.Fatalf("refs=%d want 0", p.Refs())
	}
}

func TestPropertiesAdvertised(t *testing.T) {
	lib, _ := newLib(t)
	if _, err := algfetch.Fetch(lib, algfetch.DigestKind, "SHA2-256", "fips=yes"); !errors.Is(err, algfetch.ErrNotFound) {
		t.Fatalf("fips=yes err=%v want ErrNotFound", err)
	}
	md, err := algfetch.Fetch(lib, algfetch.DigestKind, "SHA2-256", "provider=default")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer md.Release()
	if md.Properties()["fips"] != "no" {
		t.Fatalf("props=%v", md.Properties())
	}
}
