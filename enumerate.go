package algfetch

import "fmt"

// DoAll visits every implementation of kind: providers in registration
// order, each provider's algorithms in its own order, then legacy
// implementations. A live Method Object is reused when one exists;
// otherwise a transient one is built, visited and released without being
// published. Implementations that fail to construct are skipped.
//
// visit must not retain m past its return without calling m.Acquire.
func DoAll[B backend](lib *Library, kind *Kind[B], visit func(m *Method[B])) error {
	if lib.closed.Load() {
		return ErrClosed
	}
	lib.sync()
	for _, p := range lib.reg.Providers() {
		for i, alg := range p.Query(kind.op) {
			if len(alg.Names) == 0 {
				continue
			}
			attrs, ok := lib.definition(p, alg)
			if !ok {
				continue
			}
			c := candidate[B]{
				prov:     p,
				dispatch: alg.Dispatch,
				attrs:    attrs,
				names:    alg.Names,
				desc:     alg.Description,
				key:      implKey{op: kind.op, provider: p.Name(), index: i},
			}
			visitOne(lib, kind, c, visit)
		}
	}
	if kind.legacy == nil || lib.legacy == nil {
		return nil
	}
	for _, li := range kind.legacy(lib.legacy) {
		visitOne(lib, kind, legacyCandidate(kind, li), visit)
	}
	return nil
}

func visitOne[B backend](lib *Library, kind *Kind[B], c candidate[B], visit func(*Method[B])) {
	if lm, ok := lib.store.live(c.key); ok {
		m := lm.(*Method[B])
		defer m.Release()
		visit(m)
		return
	}
	m, err := construct(lib, kind, lib.names.ID(c.names[0]), c)
	if err != nil {
		lib.log.Debug("skipping implementation", Fields{
			"op": kind.op.String(), "name": c.names[0], "err": err,
		})
		return
	}
	defer m.Release()
	visit(m)
}

// Info summarizes one implementation.
type Info struct {
	Operation   Operation
	Name        string
	Names       []string
	Provider    string // empty for legacy
	Properties  string
	Description string
	Legacy      bool
}

func infoOf[B backend](m *Method[B]) Info {
	return Info{
		Operation:   m.op,
		Name:        m.Name(),
		Names:       m.Names(),
		Provider:    m.ProviderName(),
		Properties:  m.attrs.String(),
		Description: m.desc,
		Legacy:      m.IsLegacy(),
	}
}

func collect[B backend](l *Library, kind *Kind[B]) ([]Info, error) {
	var out []Info
	err := DoAll(l, kind, func(m *Method[B]) { out = append(out, infoOf(m)) })
	return out, err
}

// List enumerates op in DoAll order and returns a summary per
// implementation.
func (l *Library) List(op Operation) ([]Info, error) {
	switch op {
	case OpDigest:
		return collect(l, DigestKind)
	case OpCipher:
		return collect(l, CipherKind)
	case OpMAC:
		return collect(l, MACKind)
	case OpKDF:
		return collect(l, KDFKind)
	case OpRand:
		return collect(l, RandKind)
	case OpKeyMgmt:
		return collect(l, KeyMgmtKind)
	case OpKeyExch:
		return collect(l, KeyExchKind)
	case OpSignature:
		return collect(l, SignatureKind)
	case OpAsymCipher:
		return collect(l, AsymCipherKind)
	default:
		return nil, fmt.Errorf("algfetch: unknown operation %s", op)
	}
}
