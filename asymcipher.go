package algfetch

import "github.com/unkn0wn-root/algfetch/param"

type asymBackend interface {
	backend
	encryptInit(ctx, key any, ps param.Params) error
	encrypt(ctx any, in []byte) ([]byte, error)
	decryptInit(ctx, key any, ps param.Params) error
	decrypt(ctx any, in []byte) ([]byte, error)
}

// AsymCipherKind selects asymmetric ciphers in Fetch and DoAll.
var AsymCipherKind = &Kind[asymBackend]{op: OpAsymCipher, build: buildAsymCipher}

type providerAsymCipher struct {
	providerBase
	encInitFn KeyInitFunc
	encFn     TransformFunc
	decInitFn KeyInitFunc
	decFn     TransformFunc
}

func buildAsymCipher(d Dispatch) (asymBackend, error) {
	b := &binder{s: d.index()}
	p := &providerAsymCipher{providerBase: bindBase(b, true)}
	bindSlot(b, FuncAsymEncryptInit, false, &p.encInitFn)
	bindSlot(b, FuncAsymEncrypt, p.encInitFn != nil, &p.encFn)
	bindSlot(b, FuncAsymDecryptInit, false, &p.decInitFn)
	bindSlot(b, FuncAsymDecrypt, p.decInitFn != nil, &p.decFn)
	b.requireOne("asymmetric cipher", p.encInitFn != nil, p.decInitFn != nil)
	if b.err != nil {
		return nil, b.err
	}
	return p, nil
}

func (p *providerAsymCipher) encryptInit(ctx, key any, ps param.Params) error {
	if p.encInitFn == nil {
		return ErrUnsupported
	}
	return p.encInitFn(ctx, key, ps)
}

func (p *providerAsymCipher) decryptInit(ctx, key any, ps param.Params) error {
	if p.decInitFn == nil {
		return ErrUnsupported
	}
	return p.decInitFn(ctx, key, ps)
}

func (p *providerAsymCipher) encrypt(ctx any, in []byte) ([]byte, error) { return p.encFn(ctx, in) }
func (p *providerAsymCipher) decrypt(ctx any, in []byte) ([]byte, error) { return p.decFn(ctx, in) }

// AsymCipherCtx encrypts or decrypts whole messages with a key.
type AsymCipherCtx struct {
	opCtx[asymBackend]
	encrypting bool
}

func NewAsymCipherCtx(a *AsymCipher) (*AsymCipherCtx, error) {
	o, err := newOpCtx(a)
	if err != nil {
		return nil, err
	}
	return &AsymCipherCtx{opCtx: o}, nil
}

func (c *AsymCipherCtx) EncryptInit(key *Key, ps param.Params) error {
	return c.start("encrypt_init", key, true, func(s any) error { return c.m.impl.encryptInit(s, key.data, ps) })
}

func (c *AsymCipherCtx) DecryptInit(key *Key, ps param.Params) error {
	return c.start("decrypt_init", key, false, func(s any) error { return c.m.impl.decryptInit(s, key.data, ps) })
}

func (c *AsymCipherCtx) start(call string, key *Key, enc bool, fn func(any) error) error {
	if err := c.require(call, usable...); err != nil {
		return err
	}
	if err := sameProvider(c.m, key); err != nil {
		return err
	}
	if err := c.begin(call, fn); err != nil {
		return err
	}
	c.encrypting = enc
	return nil
}

// Encrypt requires a context initialized with EncryptInit.
func (c *AsymCipherCtx) Encrypt(in []byte) ([]byte, error) {
	if c.st != Freed && c.st != Uninitialized && !c.encrypting {
		return nil, &StateError{Op: c.op, Call: "encrypt", State: c.st}
	}
	return operate(&c.opCtx, "encrypt", func(s any) ([]byte, error) { return c.m.impl.encrypt(s, in) })
}

// Decrypt requires a context initialized with DecryptInit.
func (c *AsymCipherCtx) Decrypt(in []byte) ([]byte, error) {
	if c.st != Freed && c.st != Uninitialized && c.encrypting {
		return nil, &StateError{Op: c.op, Call: "decrypt", State: c.st}
	}
	return operate(&c.opCtx, "decrypt", func(s any) ([]byte, error) { return c.m.impl.decrypt(s, in) })
}

func (c *AsymCipherCtx) Encrypting() bool { return c.encrypting }

func (c *AsymCipherCtx) Dup() (*AsymCipherCtx, error) {
	d, err := c.dup()
	if err != nil {
		return nil, err
	}
	return &AsymCipherCtx{opCtx: d, encrypting: c.encrypting}, nil
}
