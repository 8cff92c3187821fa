package algfetch

import "github.com/unkn0wn-root/algfetch/param"

type randBackend interface {
	backend
	instantiate(ctx any, strength uint, pr bool, pers []byte, ps param.Params) error
	uninstantiate(ctx any) error
	generate(ctx any, out []byte, strength uint, pr bool, addin []byte) error
	reseed(ctx any, pr bool, entropy, addin []byte) error
}

// RandKind selects random generators in Fetch and DoAll.
var RandKind = &Kind[randBackend]{op: OpRand, build: buildRand}

type providerRand struct {
	providerBase
	instFn   RandInstantiateFunc
	uninstFn RandUninstantiateFunc
	genFn    RandGenerateFunc
	reseedFn RandReseedFunc
}

func buildRand(d Dispatch) (randBackend, error) {
	b := &binder{s: d.index()}
	p := &providerRand{providerBase: bindBase(b, true)}
	bindSlot(b, FuncRandInstantiate, true, &p.instFn)
	bindSlot(b, FuncRandUninstantiate, false, &p.uninstFn)
	bindSlot(b, FuncRandGenerate, true, &p.genFn)
	bindSlot(b, FuncRandReseed, false, &p.reseedFn)
	if b.err != nil {
		return nil, b.err
	}
	return p, nil
}

func (p *providerRand) instantiate(ctx any, strength uint, pr bool, pers []byte, ps param.Params) error {
	return p.instFn(ctx, strength, pr, pers, ps)
}

func (p *providerRand) uninstantiate(ctx any) error {
	if p.uninstFn == nil {
		return ErrUnsupported
	}
	return p.uninstFn(ctx)
}

func (p *providerRand) generate(ctx any, out []byte, strength uint, pr bool, addin []byte) error {
	return p.genFn(ctx, out, strength, pr, addin)
}

func (p *providerRand) reseed(ctx any, pr bool, entropy, addin []byte) error {
	if p.reseedFn == nil {
		return ErrUnsupported
	}
	return p.reseedFn(ctx, pr, entropy, addin)
}

// RandCtx drives a random generator. Instantiate is its init step; Generate
// may be called repeatedly afterwards.
type RandCtx struct {
	opCtx[randBackend]
}

func NewRandCtx(r *Rand) (*RandCtx, error) {
	o, err := newOpCtx(r)
	if err != nil {
		return nil, err
	}
	return &RandCtx{o}, nil
}

func (c *RandCtx) Instantiate(strength uint, predictionResistance bool, personalization []byte, ps param.Params) error {
	return c.begin("instantiate", func(s any) error {
		return c.m.impl.instantiate(s, strength, predictionResistance, personalization, ps)
	})
}

// Generate returns n random bytes.
func (c *RandCtx) Generate(n int, strength uint, predictionResistance bool, addin []byte) ([]byte, error) {
	if n < 0 {
		return nil, sizeErr("length", n)
	}
	return operate(&c.opCtx, "generate", func(s any) ([]byte, error) {
		out := make([]byte, n)
		if err := c.m.impl.generate(s, out, strength, predictionResistance, addin); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (c *RandCtx) Reseed(predictionResistance bool, entropy, addin []byte) error {
	if err := c.require("reseed", Initialized, Finalized); err != nil {
		return err
	}
	if err := c.m.impl.reseed(c.state, predictionResistance, entropy, addin); err != nil {
		return c.fail("reseed", err)
	}
	return nil
}

// Uninstantiate returns the generator to Uninitialized.
func (c *RandCtx) Uninstantiate() error {
	if err := c.require("uninstantiate", Initialized, Finalized); err != nil {
		return err
	}
	if err := c.m.impl.uninstantiate(c.state); err != nil {
		return c.fail("uninstantiate", err)
	}
	c.st = Uninitialized
	return nil
}

func (c *RandCtx) Dup() (*RandCtx, error) {
	d, err := c.dup()
	if err != nil {
		return nil, err
	}
	return &RandCtx{d}, nil
}
