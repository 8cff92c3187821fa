package algfetch

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unkn0wn-root/algfetch/param"
	st "github.com/unkn0wn-root/algfetch/store"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memStore struct {
	mu   sync.Mutex
	m    map[string]memEntry
	sets int
}

var _ st.Store = (*memStore)(nil)

func newMemStore() *memStore { return &memStore{m: make(map[string]memEntry)} }

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(s.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	s.m[key] = memEntry{v: value, exp: exp}
	s.sets++
	return true, nil
}

func (s *memStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *memStore) Close(context.Context) error { return nil }

func (s *memStore) raw(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	return e.v, ok
}

func (s *memStore) put(key string, v []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = memEntry{v: v}
}

// fakeProvider serves a fixed algorithm table and counts provider-level
// references.
type fakeProvider struct {
	name    string
	algs    map[Operation][]Algorithm
	refs    atomic.Int32
	queries atomic.Int64
	down    atomic.Bool
	// hold, when set, runs inside Retain before the reference is counted.
	hold func()
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{name: name, algs: make(map[Operation][]Algorithm)}
}

func (p *fakeProvider) add(op Operation, props string, d Dispatch, names ...string) *fakeProvider {
	p.algs[op] = append(p.algs[op], Algorithm{
		Names:       names,
		Properties:  props,
		Description: p.name + " " + names[0],
		Dispatch:    d,
	})
	return p
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Query(op Operation) []Algorithm {
	p.queries.Add(1)
	return p.algs[op]
}

func (p *fakeProvider) Retain() error {
	if p.down.Load() {
		return errors.New("provider shut down")
	}
	if p.hold != nil {
		p.hold()
	}
	p.refs.Add(1)
	return nil
}

func (p *fakeProvider) Release() { p.refs.Add(-1) }

// toyDigest is a toy digest whose output is its tag followed by the input,
// with counters on the slots tests care about.
type toyDigest struct {
	tag      string
	newCtx   atomic.Int64
	freeCtx  atomic.Int64
	final    atomic.Int64
	teardown atomic.Int64
	initErr  error
	noDup    bool
}

func (d *toyDigest) dispatch() Dispatch {
	out := Dispatch{
		Entry(FuncNewCtx, func() (any, error) {
			d.newCtx.Add(1)
			return &bytes.Buffer{}, nil
		}),
		Entry(FuncFreeCtx, func(any) { d.freeCtx.Add(1) }),
		Entry(FuncDigestInit, func(ctx any, _ param.Params) error {
			if d.initErr != nil {
				return d.initErr
			}
			ctx.(*bytes.Buffer).Reset()
			return nil
		}),
		Entry(FuncDigestUpdate, func(ctx any, data []byte) error {
			ctx.(*bytes.Buffer).Write(data)
			return nil
		}),
		Entry(FuncDigestFinal, func(ctx any) ([]byte, error) {
			d.final.Add(1)
			return append([]byte(d.tag+":"), ctx.(*bytes.Buffer).Bytes()...), nil
		}),
		Entry(FuncGetParams, func(ps param.Params) int {
			if p := ps.Locate(param.KeySize); p != nil {
				_ = p.SetUint(uint64(len(d.tag)))
			}
			return 7
		}),
		Entry(FuncGetCtxParams, func(ctx any, ps param.Params) int {
			if p := ps.Locate("buffered"); p != nil {
				_ = p.SetUint(uint64(ctx.(*bytes.Buffer).Len()))
			}
			return 1
		}),
		Entry(FuncTeardown, func() { d.teardown.Add(1) }),
	}
	if !d.noDup {
		out = append(out, Entry(FuncDupCtx, func(ctx any) (any, error) {
			b := &bytes.Buffer{}
			b.Write(ctx.(*bytes.Buffer).Bytes())
			return b, nil
		}))
	}
	return out
}

type recordingHooks struct {
	NopHooks
	mu     sync.Mutex
	races  int
	legacy []string
	heals  []string
	bad    []string
}

func (h *recordingHooks) ConstructionRace(Operation, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.races++
}

func (h *recordingHooks) LegacyFallback(_ Operation, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.legacy = append(h.legacy, name)
}

func (h *recordingHooks) ResolutionSelfHeal(_, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.heals = append(h.heals, reason)
}

func (h *recordingHooks) BadDefinition(_, name string, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bad = append(h.bad, name)
}

func (h *recordingHooks) healReasons() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.heals...)
}

func newTestLib(t *testing.T, opts Options, provs ...Provider) *Library {
	t.Helper()
	if opts.Providers == nil {
		reg, err := NewRegistry(provs...)
		if err != nil {
			t.Fatalf("NewRegistry: %v", err)
		}
		opts.Providers = reg
	}
	lib, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close(context.Background()) })
	return lib
}

func fetchDigest(t *testing.T, lib *Library, name, props string) *Digest {
	t.Helper()
	md, err := lib.FetchDigest(name, props)
	if err != nil {
		t.Fatalf("FetchDigest(%q, %q): %v", name, props, err)
	}
	return md
}

func sum(t *testing.T, md *Digest, data string) string {
	t.Helper()
	out, err := Sum(md, []byte(data))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	return string(out)
}

// recordingLogger keeps warning messages.
type recordingLogger struct {
	NopLogger
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Warn(msg string, _ Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}
