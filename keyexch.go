package algfetch

import "github.com/unkn0wn-root/algfetch/param"

type keyexchBackend interface {
	backend
	init(ctx, key any, ps param.Params) error
	setPeer(ctx, peer any) error
	derive(ctx any) ([]byte, error)
}

// KeyExchKind selects key exchange algorithms in Fetch and DoAll.
var KeyExchKind = &Kind[keyexchBackend]{op: OpKeyExch, build: buildKeyExch}

type providerKeyExch struct {
	providerBase
	initFn    KeyInitFunc
	setPeerFn SetPeerFunc
	deriveFn  DeriveFunc
}

func buildKeyExch(d Dispatch) (keyexchBackend, error) {
	b := &binder{s: d.index()}
	p := &providerKeyExch{providerBase: bindBase(b, true)}
	bindSlot(b, FuncExchInit, true, &p.initFn)
	bindSlot(b, FuncExchSetPeer, false, &p.setPeerFn)
	bindSlot(b, FuncExchDerive, true, &p.deriveFn)
	if b.err != nil {
		return nil, b.err
	}
	return p, nil
}

func (p *providerKeyExch) init(ctx, key any, ps param.Params) error { return p.initFn(ctx, key, ps) }
func (p *providerKeyExch) derive(ctx any) ([]byte, error)           { return p.deriveFn(ctx) }

func (p *providerKeyExch) setPeer(ctx, peer any) error {
	if p.setPeerFn == nil {
		return ErrUnsupported
	}
	return p.setPeerFn(ctx, peer)
}

// KeyExchCtx derives a shared secret from a private key and a peer key.
type KeyExchCtx struct {
	opCtx[keyexchBackend]
}

func NewKeyExchCtx(x *KeyExch) (*KeyExchCtx, error) {
	o, err := newOpCtx(x)
	if err != nil {
		return nil, err
	}
	return &KeyExchCtx{o}, nil
}

func (c *KeyExchCtx) Init(key *Key, ps param.Params) error {
	if err := c.require("init", usable...); err != nil {
		return err
	}
	if err := sameProvider(c.m, key); err != nil {
		return err
	}
	return c.begin("init", func(s any) error { return c.m.impl.init(s, key.data, ps) })
}

// SetPeer supplies the peer's public key. It does not change the state.
func (c *KeyExchCtx) SetPeer(peer *Key) error {
	if err := c.require("set_peer", Initialized, Finalized); err != nil {
		return err
	}
	if err := sameProvider(c.m, peer); err != nil {
		return err
	}
	if err := c.m.impl.setPeer(c.state, peer.data); err != nil {
		return c.fail("set_peer", err)
	}
	return nil
}

func (c *KeyExchCtx) Derive() ([]byte, error) {
	return operate(&c.opCtx, "derive", func(s any) ([]byte, error) { return c.m.impl.derive(s) })
}

func (c *KeyExchCtx) Dup() (*KeyExchCtx, error) {
	d, err := c.dup()
	if err != nil {
		return nil, err
	}
	return &KeyExchCtx{d}, nil
}
