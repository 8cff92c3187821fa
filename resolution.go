package algfetch

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/algfetch/codec"
	gen "github.com/unkn0wn-root/algfetch/genstore"
	"github.com/unkn0wn-root/algfetch/internal/util"
	"github.com/unkn0wn-root/algfetch/internal/wire"
	st "github.com/unkn0wn-root/algfetch/store"
)

// Resolution records which implementation won a query: a provider's
// algorithm slot, or a legacy entry by canonical name.
type Resolution struct {
	Provider string `json:"provider,omitempty" cbor:"provider,omitempty" msgpack:"provider,omitempty"`
	Index    int    `json:"index" cbor:"index" msgpack:"index"`
	Legacy   string `json:"legacy,omitempty" cbor:"legacy,omitempty" msgpack:"legacy,omitempty"`
}

// resolver remembers scan results so a fetch after the live method was
// freed skips the provider scan. Records carry the per-operation generation
// observed before the scan and are dropped on any mismatch. A nil resolver
// is disabled.
type resolver struct {
	ns      string
	store   st.Store
	codec   c.Codec[Resolution]
	gen     gen.GenStore
	ttl     time.Duration
	timeout time.Duration
	cost    SetCostFunc
	log     Logger
	hooks   Hooks
}

func (r *resolver) ctx() (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.Background(), func() {}
	}
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *resolver) key(k queryKey) string {
	return util.ResolutionKey(r.ns, k.op.String(), k.id, k.props)
}

func (r *resolver) genKey(op Operation) string { return util.GenKey(r.ns, op.String()) }

func (r *resolver) get(k queryKey) (Resolution, bool) {
	var zero Resolution
	if r == nil {
		return zero, false
	}
	ctx, cancel := r.ctx()
	defer cancel()

	sk := r.key(k)
	raw, ok, err := r.store.Get(ctx, sk)
	if err != nil {
		r.log.Warn("resolution get failed", Fields{"key": sk, "err": err})
		return zero, false
	}
	if !ok {
		return zero, false
	}
	g, payload, err := wire.Decode(raw)
	if err != nil {
		r.heal(ctx, sk, "corrupt")
		return zero, false
	}
	if g != r.snapshotCtx(ctx, k.op) {
		r.heal(ctx, sk, "gen_mismatch")
		return zero, false
	}
	res, err := r.codec.Decode(payload)
	if err != nil {
		r.heal(ctx, sk, "decode")
		return zero, false
	}
	return res, true
}

// set writes res only if the operation's generation still equals observed.
func (r *resolver) set(k queryKey, res Resolution, observed uint64) {
	if r == nil {
		return
	}
	ctx, cancel := r.ctx()
	defer cancel()

	sk := r.key(k)
	if r.snapshotCtx(ctx, k.op) != observed {
		// generation moved; skip stale write
		r.log.Debug("resolution write skipped (gen mismatch)", Fields{"key": sk, "obs": observed})
		return
	}
	payload, err := r.codec.Encode(res)
	if err != nil {
		r.log.Warn("resolution encode failed", Fields{"key": sk, "err": err})
		return
	}
	b := wire.Encode(observed, payload)
	ok, err := r.store.Set(ctx, sk, b, r.cost(sk, b), r.ttl)
	if err != nil {
		r.log.Warn("resolution set failed", Fields{"key": sk, "err": err})
		return
	}
	if !ok {
		r.hooks.StoreSetRejected(sk)
		r.log.Debug("resolution rejected by store (pressure)", Fields{"key": sk})
	}
}

// drop deletes a record that decoded fine but no longer matches.
func (r *resolver) drop(k queryKey, reason string) {
	if r == nil {
		return
	}
	ctx, cancel := r.ctx()
	defer cancel()
	r.heal(ctx, r.key(k), reason)
}

func (r *resolver) heal(ctx context.Context, sk, reason string) {
	_ = r.store.Del(ctx, sk)
	r.hooks.ResolutionSelfHeal(sk, reason)
	r.log.Debug("resolution self-healed", Fields{"key": sk, "reason": reason})
}

// snapshot returns the operation's current generation, for use as the
// observed value of a later set.
func (r *resolver) snapshot(op Operation) uint64 {
	if r == nil {
		return 0
	}
	ctx, cancel := r.ctx()
	defer cancel()
	return r.snapshotCtx(ctx, op)
}

func (r *resolver) snapshotCtx(ctx context.Context, op Operation) uint64 {
	g, err := r.gen.Snapshot(ctx, r.genKey(op))
	if err != nil {
		// Conservative: treat as 0; records written under a later gen self-heal.
		r.hooks.GenSnapshotError(op, err)
		r.log.Warn("gen snapshot error", Fields{"op": op.String(), "err": err})
		return 0
	}
	return g
}

// invalidate bumps op's generation so every record for it becomes stale.
func (r *resolver) invalidate(op Operation) (uint64, error) {
	if r == nil {
		return 0, nil
	}
	ctx, cancel := r.ctx()
	defer cancel()
	g, err := r.gen.Bump(ctx, r.genKey(op))
	if err != nil {
		r.hooks.GenBumpError(op, err)
		r.log.Error("gen bump error", Fields{"op": op.String(), "err": err})
		return 0, err
	}
	r.log.Debug("invalidated resolutions", Fields{"op": op.String(), "newGen": g})
	return g, nil
}

// invalidateAll bumps every operation's generation in one call.
func (r *resolver) invalidateAll() error {
	if r == nil {
		return nil
	}
	ctx, cancel := r.ctx()
	defer cancel()
	ops := Operations()
	keys := make([]string, len(ops))
	for i, op := range ops {
		keys[i] = r.genKey(op)
	}
	if err := r.gen.BumpMany(ctx, keys); err != nil {
		for _, op := range ops {
			r.hooks.GenBumpError(op, err)
		}
		r.log.Error("gen bump error", Fields{"op": "all", "err": err})
		return err
	}
	return nil
}

func (r *resolver) close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	// gen store first (best effort)
	_ = r.gen.Close(ctx)
	return r.store.Close(ctx)
}
