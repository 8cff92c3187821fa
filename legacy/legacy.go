// Package legacy holds non-provider digest and cipher implementations used
// as a fallback when no registered provider matches a fetch.
package legacy

import (
	"crypto/cipher"
	"errors"
	"fmt"
	"hash"
	"strings"
	"sync"
	"sync/atomic"
)

var ErrDuplicate = errors.New("legacy: duplicate name")

// Digest is a hash constructor plus its names; the first name is canonical.
type Digest struct {
	Names []string
	New   func() hash.Hash
}

// Cipher is a stream cipher constructor. Sizes are in bytes; BlockSize is 1
// for pure stream ciphers.
type Cipher struct {
	Names     []string
	KeySize   int
	IVSize    int
	BlockSize int
	New       func(key, iv []byte, encrypt bool) (cipher.Stream, error)
}

// Registry is an explicit set of legacy implementations. Order of
// registration is enumeration order. A zero Registry is ready to use.
type Registry struct {
	mu      sync.RWMutex
	digests []Digest
	ciphers []Cipher
	seen    map[string]struct{}
	epoch   atomic.Uint64
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) AddDigest(d Digest) error {
	if len(d.Names) == 0 || d.New == nil {
		return fmt.Errorf("legacy: digest needs a name and a constructor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claim("digest", d.Names); err != nil {
		return err
	}
	r.digests = append(r.digests, d)
	r.epoch.Add(1)
	return nil
}

func (r *Registry) AddCipher(c Cipher) error {
	if len(c.Names) == 0 || c.New == nil {
		return fmt.Errorf("legacy: cipher needs a name and a constructor")
	}
	if c.KeySize <= 0 {
		return fmt.Errorf("legacy: cipher %s: key size must be positive", c.Names[0])
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claim("cipher", c.Names); err != nil {
		return err
	}
	r.ciphers = append(r.ciphers, c)
	r.epoch.Add(1)
	return nil
}

// claim must be called with mu held.
func (r *Registry) claim(kind string, names []string) error {
	if r.seen == nil {
		r.seen = make(map[string]struct{})
	}
	for _, n := range names {
		if _, dup := r.seen[kind+":"+fold(n)]; dup {
			return fmt.Errorf("%w: %s %q", ErrDuplicate, kind, n)
		}
	}
	for _, n := range names {
		r.seen[kind+":"+fold(n)] = struct{}{}
	}
	return nil
}

// Digest looks up a digest by any of its names, case-insensitively.
func (r *Registry) Digest(name string) (Digest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.digests {
		if has(d.Names, name) {
			return d, true
		}
	}
	return Digest{}, false
}

// Cipher looks up a cipher by any of its names, case-insensitively.
func (r *Registry) Cipher(name string) (Cipher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.ciphers {
		if has(c.Names, name) {
			return c, true
		}
	}
	return Cipher{}, false
}

// Digests returns a snapshot in registration order.
func (r *Registry) Digests() []Digest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Digest(nil), r.digests...)
}

// Ciphers returns a snapshot in registration order.
func (r *Registry) Ciphers() []Cipher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Cipher(nil), r.ciphers...)
}

// Epoch changes on every registration.
func (r *Registry) Epoch() uint64 { return r.epoch.Load() }

func has(names []string, name string) bool {
	name = fold(name)
	for _, n := range names {
		if fold(n) == name {
			return true
		}
	}
	return false
}

func fold(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
