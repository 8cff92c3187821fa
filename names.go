package algfetch

import (
	"strings"
	"sync"
)

// NameMap assigns numeric ids to algorithm names. Names are matched
// case-insensitively; names registered together are aliases sharing one id.
// Ids start at 1; 0 means unknown.
type NameMap struct {
	mu    sync.RWMutex
	ids   map[string]int
	names [][]string // names[id-1], first registration order
}

func NewNameMap() *NameMap {
	return &NameMap{ids: make(map[string]int)}
}

// Add registers names as one alias group and returns the group's id. If any
// name is already known, the others join its group. Names already bound to a
// different group keep their id.
func (m *NameMap) Add(names ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ids == nil {
		m.ids = make(map[string]int)
	}

	id := 0
	for _, n := range names {
		if got, ok := m.ids[fold(n)]; ok {
			id = got
			break
		}
	}
	if id == 0 {
		m.names = append(m.names, nil)
		id = len(m.names)
	}
	for _, n := range names {
		if n == "" {
			continue
		}
		k := fold(n)
		if _, ok := m.ids[k]; ok {
			continue
		}
		m.ids[k] = id
		m.names[id-1] = append(m.names[id-1], n)
	}
	return id
}

// ID returns the id for name, or 0.
func (m *NameMap) ID(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ids[fold(name)]
}

// Names returns every name in id's group, first registered first.
func (m *NameMap) Names(id int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id <= 0 || id > len(m.names) {
		return nil
	}
	return append([]string(nil), m.names[id-1]...)
}

// First returns the first registered name for id.
func (m *NameMap) First(id int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id <= 0 || id > len(m.names) || len(m.names[id-1]) == 0 {
		return ""
	}
	return m.names[id-1][0]
}

// DoAll calls fn for each name of id until fn returns false.
func (m *NameMap) DoAll(id int, fn func(name string) bool) {
	for _, n := range m.Names(id) {
		if !fn(n) {
			return
		}
	}
}

// Len is the number of alias groups.
func (m *NameMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.names)
}

func fold(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
