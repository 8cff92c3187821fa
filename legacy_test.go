package algfetch

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/unkn0wn-root/algfetch/legacy"
)

func testLegacy(t *testing.T) *legacy.Registry {
	t.Helper()
	r := legacy.NewRegistry()
	if err := r.AddDigest(legacy.Digest{Names: []string{"LEG-256", "TOY-256"}, New: sha256.New}); err != nil {
		t.Fatalf("AddDigest: %v", err)
	}
	err := r.AddCipher(legacy.Cipher{
		Names:     []string{"LEG-CTR"},
		KeySize:   16,
		IVSize:    aes.BlockSize,
		BlockSize: 1,
		New: func(key, iv []byte, _ bool) (cipher.Stream, error) {
			b, err := aes.NewCipher(key)
			if err != nil {
				return nil, err
			}
			return cipher.NewCTR(b, iv), nil
		},
	})
	if err != nil {
		t.Fatalf("AddCipher: %v", err)
	}
	return r
}

func TestLegacyFallbackDigest(t *testing.T) {
	hooks := &recordingHooks{}
	lib := newTestLib(t, Options{Legacy: testLegacy(t), Hooks: hooks})

	// properties do not apply to legacy implementations
	md := fetchDigest(t, lib, "leg-256", "fips=yes")
	defer md.Release()
	if !md.IsLegacy() || md.Provider() != nil || md.ProviderName() != "" {
		t.Fatalf("expected a legacy method")
	}
	want := sha256.Sum256([]byte("abc"))
	if got := sum(t, md, "abc"); got != string(want[:]) {
		t.Fatalf("legacy digest mismatch")
	}
	if c := md.Constants(); c.Size != 32 || c.BlockSize != 64 {
		t.Fatalf("constants = %+v", c)
	}
	if len(hooks.legacy) != 1 || hooks.legacy[0] != "LEG-256" {
		t.Fatalf("legacy hook = %v", hooks.legacy)
	}

	again := fetchDigest(t, lib, "LEG-256", "")
	defer again.Release()
	if again != md {
		t.Fatalf("legacy methods should be shared while live")
	}
}

func TestLegacyFallbackWarnsWhenPropertiesIgnored(t *testing.T) {
	logger := &recordingLogger{}
	lib := newTestLib(t, Options{Legacy: testLegacy(t), Logger: logger})

	plain := fetchDigest(t, lib, "LEG-256", "")
	plain.Release()
	if w := logger.warnings(); len(w) != 0 {
		t.Fatalf("unexpected warnings: %v", w)
	}

	md := fetchDigest(t, lib, "LEG-256", "fips=yes")
	defer md.Release()
	if !md.IsLegacy() {
		t.Fatalf("expected a legacy method")
	}
	if w := logger.warnings(); len(w) != 1 || w[0] != "legacy implementation ignores properties" {
		t.Fatalf("warnings = %v", w)
	}
}

func TestLegacyDigestDup(t *testing.T) {
	lib := newTestLib(t, Options{Legacy: testLegacy(t)})
	md := fetchDigest(t, lib, "LEG-256", "")
	defer md.Release()

	c := newDigestCtx(t, md)
	defer c.Free()
	_ = c.Init(nil)
	_ = c.Update([]byte("ab"))
	d, err := c.Dup()
	if err != nil {
		t.Fatalf("Dup: %v", err)
	}
	defer d.Free()
	_ = c.Update([]byte("c"))
	o1, _ := c.Final()
	o2, _ := d.Final()
	w1 := sha256.Sum256([]byte("abc"))
	w2 := sha256.Sum256([]byte("ab"))
	if !bytes.Equal(o1, w1[:]) || !bytes.Equal(o2, w2[:]) {
		t.Fatalf("dup diverged incorrectly")
	}
}

func TestProviderWinsOverLegacy(t *testing.T) {
	hooks := &recordingHooks{}
	p := newFakeProvider("a").add(OpDigest, "fips=no", (&toyDigest{tag: "A"}).dispatch(), "TOY-256")
	lib := newTestLib(t, Options{Legacy: testLegacy(t), Hooks: hooks}, p)

	md := fetchDigest(t, lib, "TOY-256", "")
	if md.IsLegacy() {
		t.Fatalf("provider implementation should take precedence")
	}
	md.Release()

	// no provider matches fips=yes, so the legacy alias answers
	md = fetchDigest(t, lib, "TOY-256", "fips=yes")
	defer md.Release()
	if !md.IsLegacy() || md.Name() != "LEG-256" {
		t.Fatalf("expected legacy fallback, got %q from %q", md.Name(), md.ProviderName())
	}
}

func TestLegacyCipher(t *testing.T) {
	lib := newTestLib(t, Options{Legacy: testLegacy(t)})
	ci, err := lib.FetchCipher("LEG-CTR", "")
	if err != nil {
		t.Fatalf("FetchCipher: %v", err)
	}
	defer ci.Release()
	if c := ci.Constants(); c.KeyLen != 16 || c.IVLen != 16 || c.BlockSize != 1 {
		t.Fatalf("constants = %+v", c)
	}

	key := bytes.Repeat([]byte{1}, 16)
	iv := bytes.Repeat([]byte{2}, 16)
	msg := []byte("stream me")

	enc, _ := NewCipherCtx(ci)
	defer enc.Free()
	if err := enc.EncryptInit(key, iv, nil); err != nil {
		t.Fatalf("EncryptInit: %v", err)
	}
	ct, _ := enc.Update(msg)
	if _, err := enc.Dup(); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("legacy cipher dup: %v", err)
	}

	dec, _ := NewCipherCtx(ci)
	defer dec.Free()
	if err := dec.DecryptInit(key, iv, nil); err != nil {
		t.Fatalf("DecryptInit: %v", err)
	}
	pt, _ := dec.Update(ct)
	if !bytes.Equal(pt, msg) {
		t.Fatalf("round trip = %q", pt)
	}
	if err := dec.DecryptInit([]byte("short"), iv, nil); !errors.Is(err, ErrBackendFailure) {
		t.Fatalf("bad key: %v", err)
	}
}

func TestLegacyOnlyCoversDigestAndCipher(t *testing.T) {
	lib := newTestLib(t, Options{Legacy: testLegacy(t)})
	if _, err := lib.FetchMAC("LEG-256", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLegacyRegisteredAfterNew(t *testing.T) {
	r := testLegacy(t)
	lib := newTestLib(t, Options{Legacy: r})
	if err := r.AddDigest(legacy.Digest{Names: []string{"LATE-256"}, New: sha256.New}); err != nil {
		t.Fatalf("AddDigest: %v", err)
	}
	md := fetchDigest(t, lib, "LATE-256", "")
	md.Release()
}
