package legacy

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"errors"
	"testing"
)

func TestRegistryLookupIsCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	if err := r.AddDigest(Digest{Names: []string{"SHA256", "SHA2-256"}, New: sha256.New}); err != nil {
		t.Fatalf("AddDigest: %v", err)
	}
	for _, name := range []string{"SHA256", "sha2-256", " Sha256 "} {
		d, ok := r.Digest(name)
		if !ok || d.Names[0] != "SHA256" {
			t.Fatalf("Digest(%q) = %v, %v", name, d.Names, ok)
		}
	}
	if _, ok := r.Digest("MD5"); ok {
		t.Fatalf("unexpected hit")
	}
}

func TestRegistryRejectsDuplicatesPerKind(t *testing.T) {
	r := NewRegistry()
	if err := r.AddDigest(Digest{Names: []string{"MD5"}, New: md5.New}); err != nil {
		t.Fatalf("AddDigest: %v", err)
	}
	if err := r.AddDigest(Digest{Names: []string{"X", "md5"}, New: md5.New}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate digest: %v", err)
	}
	// the failed add claims nothing
	if err := r.AddDigest(Digest{Names: []string{"X"}, New: md5.New}); err != nil {
		t.Fatalf("AddDigest after failed add: %v", err)
	}
	if len(r.Digests()) != 2 {
		t.Fatalf("digests = %d", len(r.Digests()))
	}
}

func TestRegistryValidatesEntries(t *testing.T) {
	r := NewRegistry()
	if err := r.AddDigest(Digest{Names: []string{"A"}}); err == nil {
		t.Fatalf("digest without constructor accepted")
	}
	if err := r.AddCipher(Cipher{New: Standard().Ciphers()[0].New}); err == nil {
		t.Fatalf("cipher without name accepted")
	}
	if err := r.AddCipher(Cipher{Names: []string{"C"}, New: Standard().Ciphers()[0].New}); err == nil {
		t.Fatalf("cipher without key size accepted")
	}
	if r.Epoch() != 0 {
		t.Fatalf("rejected entries moved the epoch to %d", r.Epoch())
	}
}

func TestEpochMovesOnRegistration(t *testing.T) {
	var r Registry
	e0 := r.Epoch()
	_ = r.AddDigest(Digest{Names: []string{"A"}, New: sha256.New})
	if r.Epoch() == e0 {
		t.Fatalf("epoch did not move")
	}
}

func TestStandardRegistry(t *testing.T) {
	r := Standard()
	d, ok := r.Digest("md5")
	if !ok {
		t.Fatalf("MD5 missing")
	}
	h := d.New()
	h.Write([]byte("abc"))
	want := md5.Sum([]byte("abc"))
	if !bytes.Equal(h.Sum(nil), want[:]) {
		t.Fatalf("md5 mismatch")
	}

	c, ok := r.Cipher("aes-128-ctr")
	if !ok || c.KeySize != 16 || c.IVSize != 16 || c.BlockSize != 1 {
		t.Fatalf("AES-128-CTR = %+v, %v", c, ok)
	}
	key := bytes.Repeat([]byte{7}, 16)
	iv := bytes.Repeat([]byte{9}, 16)
	enc, err := c.New(key, iv, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	msg := []byte("legacy stream")
	ct := make([]byte, len(msg))
	enc.XORKeyStream(ct, msg)
	dec, _ := c.New(key, iv, false)
	pt := make([]byte, len(ct))
	dec.XORKeyStream(pt, ct)
	if !bytes.Equal(pt, msg) {
		t.Fatalf("round trip = %q", pt)
	}

	if _, err := c.New(key[:8], iv, true); err == nil {
		t.Fatalf("short key accepted")
	}
	if _, err := c.New(key, iv[:4], true); err == nil {
		t.Fatalf("short iv accepted")
	}
}
