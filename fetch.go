package algfetch

import (
	"fmt"
	"strconv"

	"github.com/unkn0wn-root/algfetch/legacy"
	"github.com/unkn0wn-root/algfetch/property"
)

// Kind describes how to build Method Objects of one operation kind. The
// package-level DigestKind, CipherKind, ... values are the only instances.
type Kind[B backend] struct {
	op    Operation
	build func(Dispatch) (B, error)
	// legacy lists fallback implementations; nil for kinds without one.
	legacy func(*legacy.Registry) []legacyImpl[B]
}

func (k *Kind[B]) Operation() Operation { return k.op }

type legacyImpl[B backend] struct {
	names []string
	desc  string
	make  func() B
}

// candidate is an implementation selected by a scan, not yet constructed.
type candidate[B backend] struct {
	prov     Provider
	dispatch Dispatch
	mk       func() B // legacy only
	attrs    property.Attributes
	names    []string
	desc     string
	key      implKey
}

// Fetch returns a new reference to a Method Object of kind implementing name
// and satisfying properties (merged over the library defaults).
func Fetch[B backend](lib *Library, kind *Kind[B], name, properties string) (*Method[B], error) {
	if lib.closed.Load() {
		return nil, ErrClosed
	}
	q, err := lib.query(properties)
	if err != nil {
		return nil, &FetchError{Op: kind.op, Name: name, Properties: properties, Err: err}
	}
	lib.sync()
	id := lib.names.ID(name)
	if id == 0 {
		return nil, &FetchError{Op: kind.op, Name: name, Properties: properties, Err: ErrNotFound}
	}
	m, err := fetch(lib, kind, id, q)
	if err != nil {
		return nil, &FetchError{Op: kind.op, Name: name, ID: id, Properties: properties, Err: err}
	}
	return m, nil
}

// FetchByNumber is Fetch with the name already resolved to an id.
func FetchByNumber[B backend](lib *Library, kind *Kind[B], id int, properties string) (*Method[B], error) {
	if lib.closed.Load() {
		return nil, ErrClosed
	}
	q, err := lib.query(properties)
	if err != nil {
		return nil, &FetchError{Op: kind.op, ID: id, Properties: properties, Err: err}
	}
	lib.sync()
	if lib.names.First(id) == "" {
		return nil, &FetchError{Op: kind.op, ID: id, Properties: properties, Err: ErrNotFound}
	}
	m, err := fetch(lib, kind, id, q)
	if err != nil {
		return nil, &FetchError{Op: kind.op, ID: id, Properties: properties, Err: err}
	}
	return m, nil
}

func fetch[B backend](lib *Library, kind *Kind[B], id int, q property.Query) (*Method[B], error) {
	qk := queryKey{op: kind.op, id: id, props: q.String()}
	if m, ok := lib.store.lookup(qk); ok {
		lib.stats.hits.Add(1)
		return m.(*Method[B]), nil
	}
	lib.stats.misses.Add(1)
	if !lib.serialize {
		return resolveAndBuild(lib, kind, qk, q)
	}

	gk := groupKey(qk)
	for {
		leader := false
		v, err, _ := lib.group.Do(gk, func() (any, error) {
			leader = true
			if m, ok := lib.store.lookup(qk); ok {
				return m, nil
			}
			return resolveAndBuild(lib, kind, qk, q)
		})
		if err != nil {
			return nil, err
		}
		if leader {
			return v.(*Method[B]), nil
		}
		// the reference taken inside Do belongs to the leader. Followers go
		// through the store, which never holds a method built for a
		// provider set that has since changed.
		if m, ok := lib.store.lookup(qk); ok {
			lib.stats.hits.Add(1)
			return m.(*Method[B]), nil
		}
	}
}

func groupKey(k queryKey) string {
	return k.op.String() + ":" + strconv.Itoa(k.id) + ":" + k.props
}

func resolveAndBuild[B backend](lib *Library, kind *Kind[B], qk queryKey, q property.Query) (*Method[B], error) {
	epoch := lib.store.current()
	c, err := resolve(lib, kind, qk, q)
	if err != nil {
		return nil, err
	}
	if m, ok := lib.store.lookupImpl(c.key, qk); ok {
		lib.stats.hits.Add(1)
		return m.(*Method[B]), nil
	}
	m, err := construct(lib, kind, qk.id, c)
	if err != nil {
		return nil, err
	}
	winner := lib.store.publish(qk, m, epoch).(*Method[B])
	if winner != m {
		lib.stats.races.Add(1)
		lib.hooks.ConstructionRace(kind.op, m.Name())
		lib.log.Debug("construction race; discarding loser", Fields{"op": kind.op.String(), "name": m.Name()})
		m.Release()
	}
	return winner, nil
}

// resolve picks the implementation for qk: the cached resolution if it still
// holds, otherwise a scan of providers in registration order, then legacy.
func resolve[B backend](lib *Library, kind *Kind[B], qk queryKey, q property.Query) (candidate[B], error) {
	if r, ok := lib.res.get(qk); ok {
		if c, ok := fromResolution(lib, kind, qk.id, q, r); ok {
			return c, nil
		}
		lib.res.drop(qk, "stale_provider")
	}

	obs := lib.res.snapshot(kind.op)
	c, ok := scanProviders(lib, kind, qk.id, q)
	if !ok {
		c, ok = scanLegacy(lib, kind, qk.id)
		if !ok {
			return candidate[B]{}, ErrNotFound
		}
		lib.hooks.LegacyFallback(kind.op, c.names[0])
		f := Fields{"op": kind.op.String(), "name": c.names[0]}
		if q.Empty() {
			lib.log.Debug("using legacy implementation", f)
		} else {
			f["properties"] = q.String()
			lib.log.Warn("legacy implementation ignores properties", f)
		}
	}
	lib.res.set(qk, Resolution{Provider: c.key.provider, Index: c.key.index, Legacy: c.key.legacy}, obs)
	return c, nil
}

func scanProviders[B backend](lib *Library, kind *Kind[B], id int, q property.Query) (candidate[B], bool) {
	for _, p := range lib.reg.Providers() {
		for i, alg := range p.Query(kind.op) {
			if c, ok := providerCandidate(lib, kind, p, i, alg, id, q); ok {
				return c, true
			}
		}
	}
	return candidate[B]{}, false
}

func providerCandidate[B backend](lib *Library, kind *Kind[B], p Provider, i int, alg Algorithm, id int, q property.Query) (candidate[B], bool) {
	if !lib.hasID(alg.Names, id) {
		return candidate[B]{}, false
	}
	attrs, ok := lib.definition(p, alg)
	if !ok || !q.Matches(attrs) {
		return candidate[B]{}, false
	}
	return candidate[B]{
		prov:     p,
		dispatch: alg.Dispatch,
		attrs:    attrs,
		names:    alg.Names,
		desc:     alg.Description,
		key:      implKey{op: kind.op, provider: p.Name(), index: i},
	}, true
}

func scanLegacy[B backend](lib *Library, kind *Kind[B], id int) (candidate[B], bool) {
	if kind.legacy == nil || lib.legacy == nil {
		return candidate[B]{}, false
	}
	for _, li := range kind.legacy(lib.legacy) {
		if lib.hasID(li.names, id) {
			return legacyCandidate(kind, li), true
		}
	}
	return candidate[B]{}, false
}

func legacyCandidate[B backend](kind *Kind[B], li legacyImpl[B]) candidate[B] {
	return candidate[B]{
		mk:    li.make,
		attrs: property.Attributes{},
		names: li.names,
		desc:  li.desc,
		key:   implKey{op: kind.op, legacy: fold(li.names[0])},
	}
}

// fromResolution rebuilds the candidate a cached resolution points at, and
// checks that it still matches the request.
func fromResolution[B backend](lib *Library, kind *Kind[B], id int, q property.Query, r Resolution) (candidate[B], bool) {
	if r.Legacy != "" {
		if kind.legacy == nil || lib.legacy == nil {
			return candidate[B]{}, false
		}
		for _, li := range kind.legacy(lib.legacy) {
			if fold(li.names[0]) == r.Legacy && lib.hasID(li.names, id) {
				return legacyCandidate(kind, li), true
			}
		}
		return candidate[B]{}, false
	}
	p, ok := lib.reg.Lookup(r.Provider)
	if !ok {
		return candidate[B]{}, false
	}
	algs := p.Query(kind.op)
	if r.Index < 0 || r.Index >= len(algs) {
		return candidate[B]{}, false
	}
	return providerCandidate(lib, kind, p, r.Index, algs[r.Index], id, q)
}

// construct builds a Method Object for c. On failure nothing is published
// and the provider reference is returned.
func construct[B backend](lib *Library, kind *Kind[B], id int, c candidate[B]) (*Method[B], error) {
	var impl B
	if c.prov != nil {
		if err := c.prov.Retain(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, c.prov.Name(), err)
		}
		b, err := kind.build(c.dispatch)
		if err != nil {
			c.prov.Release()
			lib.log.Warn("method construction failed", Fields{
				"op": kind.op.String(), "name": c.names[0], "provider": c.prov.Name(), "err": err,
			})
			return nil, err
		}
		impl = b
	} else {
		impl = c.mk()
	}
	lib.stats.constructions.Add(1)
	lib.stats.live.Add(1)
	m := newMethod(lib, kind.op, id, c, impl)
	lib.log.Debug("constructed method", Fields{
		"op": kind.op.String(), "name": m.Name(), "provider": m.ProviderName(), "lib": lib.id.String(),
	})
	return m, nil
}
