package algfetch

import "github.com/unkn0wn-root/algfetch/param"

type kdfBackend interface {
	backend
	reset(ctx any) error
	derive(ctx any, keylen int, ps param.Params) ([]byte, error)
}

// KDFKind selects key derivation functions in Fetch and DoAll.
var KDFKind = &Kind[kdfBackend]{op: OpKDF, build: buildKDF}

type providerKDF struct {
	providerBase
	resetFn  KDFResetFunc
	deriveFn KDFDeriveFunc
}

func buildKDF(d Dispatch) (kdfBackend, error) {
	b := &binder{s: d.index()}
	p := &providerKDF{providerBase: bindBase(b, true)}
	bindSlot(b, FuncKDFReset, false, &p.resetFn)
	bindSlot(b, FuncKDFDerive, true, &p.deriveFn)
	if b.err != nil {
		return nil, b.err
	}
	return p, nil
}

func (p *providerKDF) reset(ctx any) error {
	if p.resetFn == nil {
		return ErrUnsupported
	}
	p.resetFn(ctx)
	return nil
}

func (p *providerKDF) derive(ctx any, keylen int, ps param.Params) ([]byte, error) {
	return p.deriveFn(ctx, keylen, ps)
}

// KDFCtx drives a key derivation. There is no init step: parameters are
// passed to Derive or set beforehand with SetParams.
type KDFCtx struct {
	opCtx[kdfBackend]
}

func NewKDFCtx(k *KDF) (*KDFCtx, error) {
	o, err := newOpCtx(k)
	if err != nil {
		return nil, err
	}
	return &KDFCtx{o}, nil
}

// Derive produces keylen bytes. It can be called again on the same context.
func (c *KDFCtx) Derive(keylen int, ps param.Params) ([]byte, error) {
	if err := c.require("derive", Uninitialized, Finalized); err != nil {
		return nil, err
	}
	if keylen <= 0 {
		return nil, sizeErr("key length", keylen)
	}
	out, err := c.m.impl.derive(c.state, keylen, ps)
	if err != nil {
		return nil, c.fail("derive", err)
	}
	c.st = Finalized
	return out, nil
}

// Reset clears parameters. Implementations without a reset slot get a fresh
// state instead.
func (c *KDFCtx) Reset() error {
	if err := c.require("reset", Uninitialized, Finalized); err != nil {
		return err
	}
	if err := c.m.impl.reset(c.state); err != nil {
		c.discard()
		return nil
	}
	c.st = Uninitialized
	return nil
}

func (c *KDFCtx) Dup() (*KDFCtx, error) {
	d, err := c.dup()
	if err != nil {
		return nil, err
	}
	return &KDFCtx{d}, nil
}
