package algfetch

import (
	"crypto/cipher"

	"github.com/unkn0wn-root/algfetch/legacy"
	"github.com/unkn0wn-root/algfetch/param"
)

type cipherBackend interface {
	backend
	encryptInit(ctx any, key, iv []byte, ps param.Params) error
	decryptInit(ctx any, key, iv []byte, ps param.Params) error
	update(ctx any, in []byte) ([]byte, error)
	final(ctx any) ([]byte, error)
}

// CipherKind selects symmetric ciphers in Fetch and DoAll.
var CipherKind = &Kind[cipherBackend]{
	op:     OpCipher,
	build:  buildCipher,
	legacy: legacyCiphers,
}

type providerCipher struct {
	providerBase
	encInitFn CipherInitFunc
	decInitFn CipherInitFunc
	updateFn  CipherUpdateFunc
	finalFn   FinalFunc
}

func buildCipher(d Dispatch) (cipherBackend, error) {
	b := &binder{s: d.index()}
	p := &providerCipher{providerBase: bindBase(b, true)}
	bindSlot(b, FuncCipherEncryptInit, false, &p.encInitFn)
	bindSlot(b, FuncCipherDecryptInit, false, &p.decInitFn)
	bindSlot(b, FuncCipherUpdate, true, &p.updateFn)
	bindSlot(b, FuncCipherFinal, true, &p.finalFn)
	b.requireOne("cipher init", p.encInitFn != nil, p.decInitFn != nil)
	if b.err != nil {
		return nil, b.err
	}
	return p, nil
}

func (p *providerCipher) encryptInit(ctx any, key, iv []byte, ps param.Params) error {
	if p.encInitFn == nil {
		return ErrUnsupported
	}
	return p.encInitFn(ctx, key, iv, ps)
}

func (p *providerCipher) decryptInit(ctx any, key, iv []byte, ps param.Params) error {
	if p.decInitFn == nil {
		return ErrUnsupported
	}
	return p.decInitFn(ctx, key, iv, ps)
}

func (p *providerCipher) update(ctx any, in []byte) ([]byte, error) { return p.updateFn(ctx, in) }
func (p *providerCipher) final(ctx any) ([]byte, error)             { return p.finalFn(ctx) }

// legacyCipher wraps a stream cipher constructor.
type legacyCipher struct {
	legacyBase
	c legacy.Cipher
}

type legacyStream struct {
	s cipher.Stream
}

func legacyCiphers(r *legacy.Registry) []legacyImpl[cipherBackend] {
	cs := r.Ciphers()
	out := make([]legacyImpl[cipherBackend], 0, len(cs))
	for _, c := range cs {
		c := c
		out = append(out, legacyImpl[cipherBackend]{
			names: c.Names,
			desc:  "legacy " + c.Names[0],
			make:  func() cipherBackend { return &legacyCipher{c: c} },
		})
	}
	return out
}

func (l *legacyCipher) newCtx() (any, error) { return &legacyStream{}, nil }
func (l *legacyCipher) freeCtx(any)          {}

// dupCtx is unsupported: cipher.Stream exposes no way to copy its keystream
// position.
func (l *legacyCipher) dupCtx(any) (any, error) { return nil, ErrUnsupported }

func (l *legacyCipher) constants() Constants {
	return Constants{KeyLen: l.c.KeySize, IVLen: l.c.IVSize, BlockSize: l.c.BlockSize}
}

func (l *legacyCipher) encryptInit(ctx any, key, iv []byte, _ param.Params) error {
	return l.start(ctx, key, iv, true)
}

func (l *legacyCipher) decryptInit(ctx any, key, iv []byte, _ param.Params) error {
	return l.start(ctx, key, iv, false)
}

func (l *legacyCipher) start(ctx any, key, iv []byte, enc bool) error {
	s, err := l.c.New(key, iv, enc)
	if err != nil {
		return err
	}
	ctx.(*legacyStream).s = s
	return nil
}

func (l *legacyCipher) update(ctx any, in []byte) ([]byte, error) {
	out := make([]byte, len(in))
	ctx.(*legacyStream).s.XORKeyStream(out, in)
	return out, nil
}

func (l *legacyCipher) final(any) ([]byte, error) { return nil, nil }

// CipherCtx drives a symmetric cipher in one direction.
type CipherCtx struct {
	opCtx[cipherBackend]
	encrypting bool
}

func NewCipherCtx(c *Cipher) (*CipherCtx, error) {
	o, err := newOpCtx(c)
	if err != nil {
		return nil, err
	}
	return &CipherCtx{opCtx: o}, nil
}

func (c *CipherCtx) EncryptInit(key, iv []byte, ps param.Params) error {
	if err := c.begin("encrypt_init", func(s any) error { return c.m.impl.encryptInit(s, key, iv, ps) }); err != nil {
		return err
	}
	c.encrypting = true
	return nil
}

func (c *CipherCtx) DecryptInit(key, iv []byte, ps param.Params) error {
	if err := c.begin("decrypt_init", func(s any) error { return c.m.impl.decryptInit(s, key, iv, ps) }); err != nil {
		return err
	}
	c.encrypting = false
	return nil
}

// Update processes in and returns whatever output is ready.
func (c *CipherCtx) Update(in []byte) ([]byte, error) {
	var out []byte
	err := c.stream("update", func(s any) error {
		var err error
		out, err = c.m.impl.update(s, in)
		return err
	})
	return out, err
}

// Final flushes any buffered output.
func (c *CipherCtx) Final() ([]byte, error) {
	return finish(&c.opCtx, "final", func(s any) ([]byte, error) { return c.m.impl.final(s) })
}

// Encrypting reports the direction chosen by the last successful init.
func (c *CipherCtx) Encrypting() bool { return c.encrypting }

func (c *CipherCtx) Dup() (*CipherCtx, error) {
	d, err := c.dup()
	if err != nil {
		return nil, err
	}
	return &CipherCtx{opCtx: d, encrypting: c.encrypting}, nil
}
