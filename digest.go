package algfetch

import (
	"encoding"
	"fmt"
	"hash"

	"github.com/unkn0wn-root/algfetch/legacy"
	"github.com/unkn0wn-root/algfetch/param"
)

type digestBackend interface {
	backend
	init(ctx any, ps param.Params) error
	update(ctx any, data []byte) error
	final(ctx any) ([]byte, error)
}

// DigestKind selects message digests in Fetch and DoAll.
var DigestKind = &Kind[digestBackend]{
	op:     OpDigest,
	build:  buildDigest,
	legacy: legacyDigests,
}

type providerDigest struct {
	providerBase
	initFn   InitFunc
	updateFn UpdateFunc
	finalFn  FinalFunc
}

func buildDigest(d Dispatch) (digestBackend, error) {
	b := &binder{s: d.index()}
	p := &providerDigest{providerBase: bindBase(b, true)}
	bindSlot(b, FuncDigestInit, true, &p.initFn)
	bindSlot(b, FuncDigestUpdate, true, &p.updateFn)
	bindSlot(b, FuncDigestFinal, true, &p.finalFn)
	if b.err != nil {
		return nil, b.err
	}
	return p, nil
}

func (p *providerDigest) init(ctx any, ps param.Params) error { return p.initFn(ctx, ps) }
func (p *providerDigest) update(ctx any, data []byte) error  { return p.updateFn(ctx, data) }
func (p *providerDigest) final(ctx any) ([]byte, error)      { return p.finalFn(ctx) }

// legacyDigest wraps a hash.Hash constructor. Its context state is the
// running hash.
type legacyDigest struct {
	legacyBase
	d legacy.Digest
}

func legacyDigests(r *legacy.Registry) []legacyImpl[digestBackend] {
	ds := r.Digests()
	out := make([]legacyImpl[digestBackend], 0, len(ds))
	for _, d := range ds {
		d := d
		out = append(out, legacyImpl[digestBackend]{
			names: d.Names,
			desc:  "legacy " + d.Names[0],
			make:  func() digestBackend { return &legacyDigest{d: d} },
		})
	}
	return out
}

func (l *legacyDigest) newCtx() (any, error) { return l.d.New(), nil }
func (l *legacyDigest) freeCtx(any)          {}

// dupCtx clones the running hash through its binary marshaling, which every
// standard library hash implements.
func (l *legacyDigest) dupCtx(ctx any) (any, error) {
	h := ctx.(hash.Hash)
	m, ok := h.(encoding.BinaryMarshaler)
	if !ok {
		return nil, ErrUnsupported
	}
	state, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}
	cp := l.d.New()
	u, ok := cp.(encoding.BinaryUnmarshaler)
	if !ok {
		return nil, ErrUnsupported
	}
	if err := u.UnmarshalBinary(state); err != nil {
		return nil, err
	}
	return cp, nil
}

func (l *legacyDigest) constants() Constants {
	h := l.d.New()
	return Constants{Size: h.Size(), BlockSize: h.BlockSize()}
}

func (l *legacyDigest) init(ctx any, _ param.Params) error {
	ctx.(hash.Hash).Reset()
	return nil
}

func (l *legacyDigest) update(ctx any, data []byte) error {
	_, err := ctx.(hash.Hash).Write(data)
	return err
}

func (l *legacyDigest) final(ctx any) ([]byte, error) { return ctx.(hash.Hash).Sum(nil), nil }

// DigestCtx drives a message digest: Init, any number of Update, Final.
type DigestCtx struct {
	opCtx[digestBackend]
}

func NewDigestCtx(md *Digest) (*DigestCtx, error) {
	c, err := newOpCtx(md)
	if err != nil {
		return nil, err
	}
	return &DigestCtx{c}, nil
}

func (c *DigestCtx) Init(ps param.Params) error {
	return c.begin("init", func(s any) error { return c.m.impl.init(s, ps) })
}

func (c *DigestCtx) Update(data []byte) error {
	return c.stream("update", func(s any) error { return c.m.impl.update(s, data) })
}

func (c *DigestCtx) Final() ([]byte, error) {
	return finish(&c.opCtx, "final", func(s any) ([]byte, error) { return c.m.impl.final(s) })
}

// Dup returns an independent copy in the same state.
func (c *DigestCtx) Dup() (*DigestCtx, error) {
	d, err := c.dup()
	if err != nil {
		return nil, err
	}
	return &DigestCtx{d}, nil
}

// Sum is a one-shot convenience: new context, init, update, final, free.
func Sum(md *Digest, data []byte) ([]byte, error) {
	c, err := NewDigestCtx(md)
	if err != nil {
		return nil, err
	}
	defer c.Free()
	if err := c.Init(nil); err != nil {
		return nil, err
	}
	if err := c.Update(data); err != nil {
		return nil, err
	}
	out, err := c.Final()
	if err != nil {
		return nil, fmt.Errorf("algfetch: digest %s: %w", md.Name(), err)
	}
	return out, nil
}
