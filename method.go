package algfetch

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/algfetch/param"
	"github.com/unkn0wn-root/algfetch/property"
)

// Method is a reference-counted handle to one implementation of an
// algorithm. It is immutable after construction except for its refcount and
// a few lazily cached fields. Every fetch returns a new reference that the
// caller must Release exactly once.
type Method[B backend] struct {
	op    Operation
	id    int
	prov  Provider // nil for legacy
	impl  B
	attrs property.Attributes
	names []string // as advertised by the implementation
	desc  string

	refs atomic.Int32

	// owner is the library whose store may publish this method; key is the
	// implementation identity used for sharing.
	owner *Library
	key   implKey
	// published query keys; guarded by owner.store.mu
	links []queryKey

	mu       sync.Mutex
	name     string
	gettable param.Descriptors
	gotList  bool
	consts   *Constants
}

func newMethod[B backend](lib *Library, op Operation, id int, c candidate[B], impl B) *Method[B] {
	m := &Method[B]{
		op:    op,
		id:    id,
		prov:  c.prov,
		impl:  impl,
		attrs: c.attrs,
		names: c.names,
		desc:  c.desc,
		owner: lib,
		key:   c.key,
	}
	m.refs.Store(1)
	return m
}

// Acquire takes another reference. Acquiring a freed method is a
// programming error and panics.
func (m *Method[B]) Acquire() *Method[B] {
	if !m.tryAcquire() {
		panic("algfetch: acquire on freed method")
	}
	return m
}

// tryAcquire takes a reference only if the method is still live.
func (m *Method[B]) tryAcquire() bool {
	for {
		n := m.refs.Load()
		if n <= 0 {
			return false
		}
		if m.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference. The last release unlinks the method from the
// store, runs the implementation's teardown and releases the provider.
func (m *Method[B]) Release() {
	n := m.refs.Add(-1)
	switch {
	case n > 0:
		return
	case n < 0:
		panic("algfetch: release on freed method")
	}
	if m.owner != nil {
		m.owner.store.unlink(m)
		m.owner.stats.live.Add(-1)
	}
	m.impl.teardown()
	if m.prov != nil {
		m.prov.Release()
	}
}

func (m *Method[B]) implKey() implKey      { return m.key }
func (m *Method[B]) setLinks(l []queryKey) { m.links = l }
func (m *Method[B]) getLinks() []queryKey  { return m.links }

func (m *Method[B]) Operation() Operation { return m.op }

// NameID is the numeric identity shared by all aliases of the algorithm.
func (m *Method[B]) NameID() int { return m.id }

// Name returns the implementation's canonical name.
func (m *Method[B]) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.name == "" {
		if len(m.names) > 0 {
			m.name = m.names[0]
		} else if m.owner != nil {
			m.name = m.owner.names.First(m.id)
		}
	}
	return m.name
}

// Names lists every known alias of the algorithm.
func (m *Method[B]) Names() []string {
	if m.owner == nil {
		return append([]string(nil), m.names...)
	}
	return m.owner.names.Names(m.id)
}

// IsA reports whether name is one of the algorithm's names.
func (m *Method[B]) IsA(name string) bool {
	if m.owner != nil {
		return m.owner.names.ID(name) == m.id
	}
	for _, n := range m.names {
		if fold(n) == fold(name) {
			return true
		}
	}
	return false
}

// Provider returns the owning provider, or nil for a legacy method.
func (m *Method[B]) Provider() Provider { return m.prov }

func (m *Method[B]) ProviderName() string {
	if m.prov == nil {
		return ""
	}
	return m.prov.Name()
}

func (m *Method[B]) IsLegacy() bool { return m.prov == nil }

// Properties returns a copy of the advertised attributes.
func (m *Method[B]) Properties() property.Attributes {
	out := make(property.Attributes, len(m.attrs))
	for k, v := range m.attrs {
		out[k] = v
	}
	return out
}

func (m *Method[B]) Description() string { return m.desc }

// RefCount is the number of outstanding references.
func (m *Method[B]) RefCount() int { return int(m.refs.Load()) }

// Constants returns the algorithm's fixed sizes, queried once.
func (m *Method[B]) Constants() Constants {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.consts == nil {
		c := m.impl.constants()
		m.consts = &c
	}
	return *m.consts
}

// GetParams reads algorithm-level parameters.
func (m *Method[B]) GetParams(ps param.Params) ParamResult { return m.impl.getParams(ps) }

// SetParams writes algorithm-level parameters.
func (m *Method[B]) SetParams(ps param.Params) ParamResult { return m.impl.setParams(ps) }

// GettableParams lists the algorithm-level parameters the implementation
// reports. The list is cached after the first call.
func (m *Method[B]) GettableParams() param.Descriptors {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.gotList {
		m.gettable = m.impl.gettableParams()
		m.gotList = true
	}
	return m.gettable
}

// Method Object aliases, one per operation kind.
type (
	Digest     = Method[digestBackend]
	Cipher     = Method[cipherBackend]
	MAC        = Method[macBackend]
	KDF        = Method[kdfBackend]
	Rand       = Method[randBackend]
	KeyMgmt    = Method[keymgmtBackend]
	KeyExch    = Method[keyexchBackend]
	Signature  = Method[signatureBackend]
	AsymCipher = Method[asymBackend]
)
