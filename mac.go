package algfetch

import "github.com/unkn0wn-root/algfetch/param"

type macBackend interface {
	backend
	init(ctx any, key []byte, ps param.Params) error
	update(ctx any, data []byte) error
	final(ctx any) ([]byte, error)
}

// MACKind selects message authentication codes in Fetch and DoAll.
var MACKind = &Kind[macBackend]{op: OpMAC, build: buildMAC}

type providerMAC struct {
	providerBase
	initFn   MACInitFunc
	updateFn UpdateFunc
	finalFn  FinalFunc
}

func buildMAC(d Dispatch) (macBackend, error) {
	b := &binder{s: d.index()}
	p := &providerMAC{providerBase: bindBase(b, true)}
	bindSlot(b, FuncMACInit, true, &p.initFn)
	bindSlot(b, FuncMACUpdate, true, &p.updateFn)
	bindSlot(b, FuncMACFinal, true, &p.finalFn)
	if b.err != nil {
		return nil, b.err
	}
	return p, nil
}

func (p *providerMAC) init(ctx any, key []byte, ps param.Params) error { return p.initFn(ctx, key, ps) }
func (p *providerMAC) update(ctx any, data []byte) error               { return p.updateFn(ctx, data) }
func (p *providerMAC) final(ctx any) ([]byte, error)                   { return p.finalFn(ctx) }

// MACCtx drives a MAC. A nil key in Init reuses the key set earlier, if the
// implementation supports that.
type MACCtx struct {
	opCtx[macBackend]
}

func NewMACCtx(m *MAC) (*MACCtx, error) {
	o, err := newOpCtx(m)
	if err != nil {
		return nil, err
	}
	return &MACCtx{o}, nil
}

func (c *MACCtx) Init(key []byte, ps param.Params) error {
	return c.begin("init", func(s any) error { return c.m.impl.init(s, key, ps) })
}

func (c *MACCtx) Update(data []byte) error {
	return c.stream("update", func(s any) error { return c.m.impl.update(s, data) })
}

func (c *MACCtx) Final() ([]byte, error) {
	return finish(&c.opCtx, "final", func(s any) ([]byte, error) { return c.m.impl.final(s) })
}

func (c *MACCtx) Dup() (*MACCtx, error) {
	d, err := c.dup()
	if err != nil {
		return nil, err
	}
	return &MACCtx{d}, nil
}
