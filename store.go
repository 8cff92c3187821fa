package algfetch

import "sync"

// queryKey identifies a fetch request after normalization.
type queryKey struct {
	op    Operation
	id    int
	props string
}

// implKey identifies an implementation: a provider's algorithm slot, or a
// legacy entry by canonical name.
type implKey struct {
	op       Operation
	provider string
	index    int
	legacy   string
}

// liveMethod is the type-erased view of *Method[B] the store needs.
type liveMethod interface {
	tryAcquire() bool
	implKey() implKey
	getLinks() []queryKey
	setLinks([]queryKey)
}

// methodStore maps query and implementation keys to live Method Objects.
// It holds no references: a method is unlinked when its last reference is
// released, and lookups only succeed while the refcount is above zero.
type methodStore struct {
	mu      sync.Mutex
	byQuery map[queryKey]liveMethod
	byImpl  map[implKey]liveMethod
	epoch   uint64 // bumped by reset
}

func newMethodStore() *methodStore {
	return &methodStore{
		byQuery: make(map[queryKey]liveMethod),
		byImpl:  make(map[implKey]liveMethod),
	}
}

// lookup returns an acquired method published under k.
func (s *methodStore) lookup(k queryKey) (liveMethod, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byQuery[k]
	if !ok || !m.tryAcquire() {
		return nil, false
	}
	return m, true
}

// lookupImpl returns an acquired method for ik and links k to it, so a
// different query resolving to the same implementation shares the object.
func (s *methodStore) lookupImpl(ik implKey, k queryKey) (liveMethod, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byImpl[ik]
	if !ok || !m.tryAcquire() {
		return nil, false
	}
	s.link(k, m)
	return m, true
}

// publish inserts m under k unless a live method already occupies k or m's
// implementation key. The returned method is the one the caller must use;
// if it is not m, it has been acquired and m should be discarded.
//
// epoch is the value observed before m was resolved. If the store has been
// reset since, m came from a provider set that is gone: it is returned to
// its caller but never published.
func (s *methodStore) publish(k queryKey, m liveMethod, epoch uint64) liveMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return m
	}
	if cur, ok := s.byQuery[k]; ok && cur.tryAcquire() {
		return cur
	}
	if cur, ok := s.byImpl[m.implKey()]; ok && cur.tryAcquire() {
		s.link(k, cur)
		return cur
	}
	s.byImpl[m.implKey()] = m
	s.link(k, m)
	return m
}

// link must be called with mu held.
func (s *methodStore) link(k queryKey, m liveMethod) {
	s.byQuery[k] = m
	links := m.getLinks()
	for _, l := range links {
		if l == k {
			return
		}
	}
	m.setLinks(append(links, k))
}

// unlink removes every entry that still points at m.
func (s *methodStore) unlink(m liveMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range m.getLinks() {
		if s.byQuery[k] == m {
			delete(s.byQuery, k)
		}
	}
	if s.byImpl[m.implKey()] == m {
		delete(s.byImpl, m.implKey())
	}
	m.setLinks(nil)
}

// live returns an acquired method for ik without linking any query.
func (s *methodStore) live(ik implKey) (liveMethod, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byImpl[ik]
	if !ok || !m.tryAcquire() {
		return nil, false
	}
	return m, true
}

// current returns the epoch to hand back to publish.
func (s *methodStore) current() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// reset unpublishes everything. Live methods stay valid for their holders.
func (s *methodStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	for _, m := range s.byImpl {
		m.setLinks(nil)
	}
	for _, m := range s.byQuery {
		m.setLinks(nil)
	}
	s.byQuery = make(map[queryKey]liveMethod)
	s.byImpl = make(map[implKey]liveMethod)
}

// size returns the number of published implementations.
func (s *methodStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byImpl)
}
