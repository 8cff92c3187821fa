package algfetch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	c "github.com/unkn0wn-root/algfetch/codec"
	gen "github.com/unkn0wn-root/algfetch/genstore"
	"github.com/unkn0wn-root/algfetch/legacy"
	"github.com/unkn0wn-root/algfetch/property"
	st "github.com/unkn0wn-root/algfetch/store"
)

const (
	defaultNamespace     = "algfetch"
	defaultResolutionTTL = time.Hour
	defaultStoreTimeout  = 250 * time.Millisecond
	defaultSweep         = time.Hour
	defaultGenRetention  = 30 * 24 * time.Hour
)

// coalesce picks def for an unset option.
func coalesce[T comparable](v, def T) T {
	var unset T
	if v != unset {
		return v
	}
	return def
}

// SetCostFunc sizes a resolution record for stores that account cost.
type SetCostFunc func(key string, raw []byte) int64

// Options configure a Library. Only Providers is commonly set; everything
// else has a usable default.
type Options struct {
	Providers *Registry        // nil => empty registry
	Names     *NameMap         // nil => private map
	Legacy    *legacy.Registry // nil => no legacy fallback

	// DefaultProperties is merged under every fetch query.
	DefaultProperties string
	// SerializeConstruction makes concurrent fetches of one query wait for a
	// single construction instead of racing and discarding losers.
	SerializeConstruction bool

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks

	// Resolution cache. Disabled when ResolutionStore is nil.
	Namespace       string              // key prefix; "" => "algfetch"
	ResolutionStore st.Store            // byte store for resolution records
	ResolutionCodec c.Codec[Resolution] // nil => JSON
	ResolutionTTL   time.Duration       // 0 => 1h
	GenStore        gen.GenStore        // nil => in-process generations
	StoreTimeout    time.Duration       // per store call; 0 => 250ms
	ComputeSetCost  SetCostFunc         // default 1
}

// Library is the fetch engine. It is safe for concurrent use.
type Library struct {
	id        uuid.UUID
	reg       *Registry
	names     *NameMap
	legacy    *legacy.Registry
	serialize bool
	log       Logger
	hooks     Hooks

	defaults atomic.Pointer[property.Query]
	store    *methodStore
	group    singleflight.Group
	res      *resolver
	defs     sync.Map // definition string -> parsedDef

	syncMu    sync.Mutex
	regSynced atomic.Uint64 // registry epoch + 1; 0 => never
	legSynced atomic.Uint64 // legacy epoch + 1
	closed    atomic.Bool
	stats     counters
}

type parsedDef struct {
	attrs property.Attributes
	err   error
}

func New(opts Options) (*Library, error) {
	l := &Library{
		id:        uuid.New(),
		reg:       opts.Providers,
		names:     opts.Names,
		legacy:    opts.Legacy,
		serialize: opts.SerializeConstruction,
		store:     newMethodStore(),
	}
	if l.reg == nil {
		l.reg = &Registry{}
	}
	if l.names == nil {
		l.names = NewNameMap()
	}
	l.log = coalesce[Logger](opts.Logger, NopLogger{})
	l.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	if err := l.SetDefaultProperties(opts.DefaultProperties); err != nil {
		return nil, err
	}

	if opts.ResolutionStore != nil {
		r := &resolver{
			ns:      coalesce(opts.Namespace, defaultNamespace),
			store:   opts.ResolutionStore,
			codec:   opts.ResolutionCodec,
			gen:     opts.GenStore,
			ttl:     coalesce(opts.ResolutionTTL, defaultResolutionTTL),
			timeout: coalesce(opts.StoreTimeout, defaultStoreTimeout),
			cost:    opts.ComputeSetCost,
			log:     l.log,
			hooks:   l.hooks,
		}
		if r.codec == nil {
			r.codec = c.JSON[Resolution]{}
		}
		if r.gen == nil {
			// default to in-process generations with periodic cleanup
			r.gen = gen.NewLocalGenStore(defaultSweep, defaultGenRetention)
		}
		if r.cost == nil {
			r.cost = func(string, []byte) int64 { return 1 }
		}
		l.res = r
	}

	l.sync()
	l.log.Info("library ready", Fields{
		"lib":        l.id.String(),
		"providers":  len(l.reg.Providers()),
		"legacy":     l.legacy != nil,
		"resolution": l.res != nil,
		"serialize":  l.serialize,
	})
	return l, nil
}

// ID tags this library instance in logs.
func (l *Library) ID() uuid.UUID { return l.id }

func (l *Library) Registry() *Registry { return l.reg }
func (l *Library) Names() *NameMap     { return l.names }

// SetDefaultProperties replaces the query merged under every fetch. Methods
// already fetched are unaffected.
func (l *Library) SetDefaultProperties(props string) error {
	q, err := property.Parse(props)
	if err != nil {
		return fmt.Errorf("algfetch: default properties: %w", err)
	}
	l.defaults.Store(&q)
	return nil
}

// DefaultProperties returns the normalized default query.
func (l *Library) DefaultProperties() string { return l.defaults.Load().String() }

// Flush drops cached resolutions for op. Live methods are not affected.
func (l *Library) Flush(op Operation) error {
	if _, err := l.res.invalidate(op); err != nil {
		return fmt.Errorf("algfetch: flush %s: %w", op, err)
	}
	return nil
}

// Close stops background work and closes the resolution stores. Methods
// already fetched remain usable; further fetches fail with ErrClosed.
func (l *Library) Close(ctx context.Context) error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return l.res.close(ctx)
}

// Stats is a point-in-time snapshot of fetch engine counters.
type Stats struct {
	Hits          uint64 // served from a live method
	Misses        uint64 // needed a resolution
	Constructions uint64 // methods built (including transient and discarded)
	Races         uint64 // constructions discarded for a concurrent winner
	Live          int64  // methods built and not yet freed
	Published     int    // implementations currently in the method store
}

type counters struct {
	hits, misses, constructions, races atomic.Uint64
	live                               atomic.Int64
}

func (l *Library) Stats() Stats {
	return Stats{
		Hits:          l.stats.hits.Load(),
		Misses:        l.stats.misses.Load(),
		Constructions: l.stats.constructions.Load(),
		Races:         l.stats.races.Load(),
		Live:          l.stats.live.Load(),
		Published:     l.store.size(),
	}
}

func (l *Library) query(props string) (property.Query, error) {
	q, err := property.Parse(props)
	if err != nil {
		return property.Query{}, err
	}
	return property.Merge(*l.defaults.Load(), q), nil
}

// sync folds provider and legacy names into the name map once per registry
// or legacy change. A registry change also unpublishes live methods and
// invalidates every cached resolution.
func (l *Library) sync() {
	regEp := l.reg.Epoch() + 1
	legEp := uint64(1)
	if l.legacy != nil {
		legEp = l.legacy.Epoch() + 1
	}
	if l.regSynced.Load() == regEp && l.legSynced.Load() == legEp {
		return
	}

	l.syncMu.Lock()
	defer l.syncMu.Unlock()
	prevReg := l.regSynced.Load()
	if prevReg == regEp && l.legSynced.Load() == legEp {
		return
	}
	for _, p := range l.reg.Providers() {
		for _, op := range Operations() {
			for _, alg := range p.Query(op) {
				if len(alg.Names) > 0 {
					l.names.Add(alg.Names...)
				}
			}
		}
	}
	if l.legacy != nil {
		for _, d := range l.legacy.Digests() {
			l.names.Add(d.Names...)
		}
		for _, ci := range l.legacy.Ciphers() {
			l.names.Add(ci.Names...)
		}
	}
	if prevReg != 0 && prevReg != regEp {
		l.store.reset()
		_ = l.res.invalidateAll()
		l.log.Info("provider set changed", Fields{"lib": l.id.String(), "epoch": regEp - 1})
	}
	l.regSynced.Store(regEp)
	l.legSynced.Store(legEp)
}

// definition parses an algorithm's property definition, caching by string.
// Unparsable definitions are reported once and the algorithm is skipped.
func (l *Library) definition(p Provider, alg Algorithm) (property.Attributes, bool) {
	if v, ok := l.defs.Load(alg.Properties); ok {
		d := v.(parsedDef)
		return d.attrs, d.err == nil
	}
	attrs, err := property.ParseDefinition(alg.Properties)
	if _, loaded := l.defs.LoadOrStore(alg.Properties, parsedDef{attrs: attrs, err: err}); !loaded && err != nil {
		name := ""
		if len(alg.Names) > 0 {
			name = alg.Names[0]
		}
		l.hooks.BadDefinition(p.Name(), name, err)
		l.log.Warn("skipping algorithm with bad property definition", Fields{
			"provider": p.Name(), "name": name, "err": err,
		})
	}
	return attrs, err == nil
}

func (l *Library) hasID(names []string, id int) bool {
	for _, n := range names {
		if l.names.ID(n) == id {
			return true
		}
	}
	return false
}

// Typed fetch helpers.

func (l *Library) FetchDigest(name, props string) (*Digest, error) {
	return Fetch(l, DigestKind, name, props)
}

func (l *Library) FetchCipher(name, props string) (*Cipher, error) {
	return Fetch(l, CipherKind, name, props)
}

func (l *Library) FetchMAC(name, props string) (*MAC, error) {
	return Fetch(l, MACKind, name, props)
}

func (l *Library) FetchKDF(name, props string) (*KDF, error) {
	return Fetch(l, KDFKind, name, props)
}

func (l *Library) FetchRand(name, props string) (*Rand, error) {
	return Fetch(l, RandKind, name, props)
}

func (l *Library) FetchKeyMgmt(name, props string) (*KeyMgmt, error) {
	return Fetch(l, KeyMgmtKind, name, props)
}

func (l *Library) FetchKeyExch(name, props string) (*KeyExch, error) {
	return Fetch(l, KeyExchKind, name, props)
}

func (l *Library) FetchSignature(name, props string) (*Signature, error) {
	return Fetch(l, SignatureKind, name, props)
}

func (l *Library) FetchAsymCipher(name, props string) (*AsymCipher, error) {
	return Fetch(l, AsymCipherKind, name, props)
}
