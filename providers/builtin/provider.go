// Package builtin is a reference provider assembled from the Go standard
// library and golang.org/x/crypto. It exists so the fetch engine has real
// implementations to hand out; the core itself never computes anything.
package builtin

import (
	"errors"
	"sync/atomic"

	"github.com/unkn0wn-root/algfetch"
	"github.com/unkn0wn-root/algfetch/param"
)

const (
	DefaultName       = "default"
	DefaultProperties = "provider=default,fips=no"
)

// ErrClosed is returned by Retain after Close.
var ErrClosed = errors.New("builtin: provider closed")

// Options configure a Provider. Zero values use the defaults.
type Options struct {
	Name string
	// Properties is the definition every algorithm advertises.
	Properties string
}

// Provider implements algfetch.Provider.
type Provider struct {
	name   string
	algs   map[algfetch.Operation][]algfetch.Algorithm
	refs   atomic.Int64
	closed atomic.Bool
}

var _ algfetch.Provider = (*Provider)(nil)

func New(opts Options) *Provider {
	name := opts.Name
	if name == "" {
		name = DefaultName
	}
	props := opts.Properties
	if props == "" {
		props = DefaultProperties
	}
	p := &Provider{name: name, algs: make(map[algfetch.Operation][]algfetch.Algorithm)}
	add := func(op algfetch.Operation, names []string, desc string, d algfetch.Dispatch) {
		p.algs[op] = append(p.algs[op], algfetch.Algorithm{
			Names:       names,
			Properties:  props,
			Description: desc,
			Dispatch:    d,
		})
	}
	for _, d := range digests {
		add(algfetch.OpDigest, d.names, d.desc, digestDispatch(d))
	}
	for _, c := range ciphers {
		add(algfetch.OpCipher, c.names, c.desc, cipherDispatch(c))
	}
	add(algfetch.OpMAC, []string{"HMAC"}, "HMAC over a configurable digest", hmacDispatch())
	for _, k := range kdfs {
		add(algfetch.OpKDF, k.names, k.desc, kdfDispatch(k))
	}
	add(algfetch.OpRand, []string{"SYSTEM"}, "operating system randomness", randDispatch())
	for _, k := range keyTypes {
		add(algfetch.OpKeyMgmt, k.names, k.desc, keymgmtDispatch(k))
	}
	add(algfetch.OpKeyExch, []string{"X25519"}, "X25519 Diffie-Hellman", x25519Dispatch())
	add(algfetch.OpSignature, []string{"ED25519", "Ed25519"}, "Ed25519 signatures", ed25519Dispatch())
	add(algfetch.OpAsymCipher, []string{"RSA", "rsaEncryption"}, "RSA-OAEP encryption", rsaOAEPDispatch())
	return p
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Query(op algfetch.Operation) []algfetch.Algorithm { return p.algs[op] }

func (p *Provider) Retain() error {
	if p.closed.Load() {
		return ErrClosed
	}
	p.refs.Add(1)
	return nil
}

func (p *Provider) Release() {
	if p.refs.Add(-1) < 0 {
		panic("builtin: release without retain")
	}
}

// Refs is the number of live Method Objects built from this provider.
func (p *Provider) Refs() int64 { return p.refs.Load() }

// Close makes further Retain calls fail. Methods already built keep working.
func (p *Provider) Close() { p.closed.Store(true) }

// Return codes for parameter calls.
const (
	fail = 0
	ok   = 1
)

// answer fills every request in ps whose key has a getter. Unknown keys are
// left alone.
func answer(ps param.Params, get map[string]func(*param.Param) error) int {
	for i := range ps {
		fn, found := get[ps[i].Key]
		if !found {
			continue
		}
		if err := fn(&ps[i]); err != nil {
			return fail
		}
	}
	return ok
}

func sizes(size, block, keylen, ivlen int) map[string]func(*param.Param) error {
	m := map[string]func(*param.Param) error{}
	put := func(key string, v int) {
		if v > 0 {
			m[key] = func(p *param.Param) error { return p.SetUint(uint64(v)) }
		}
	}
	put(param.KeySize, size)
	put(param.KeyBlockSize, block)
	put(param.KeyKeyLen, keylen)
	put(param.KeyIVLen, ivlen)
	return m
}

func sizeDescriptors(get map[string]func(*param.Param) error) param.Descriptors {
	var ds param.Descriptors
	for _, k := range []string{param.KeySize, param.KeyBlockSize, param.KeyKeyLen, param.KeyIVLen} {
		if _, found := get[k]; found {
			ds = append(ds, param.Descriptor{Key: k, Type: param.UnsignedInteger})
		}
	}
	return ds
}
