// Package asynchook moves hook delivery off the fetch path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	lib, _ := algfetch.New(algfetch.Options{
//	    Providers: reg,
//	    Hooks:     hooks,
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/algfetch"
)

// Hooks forwards events to an inner Hooks on worker goroutines. Events that
// do not fit in the queue are dropped and counted.
type Hooks struct {
	inner   algfetch.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ algfetch.Hooks = (*Hooks)(nil)

func New(inner algfetch.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events arriving after
// Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped is the number of events discarded because the queue was full or
// closed.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) ConstructionRace(op algfetch.Operation, name string) {
	h.try(func() { h.inner.ConstructionRace(op, name) })
}

func (h *Hooks) LegacyFallback(op algfetch.Operation, name string) {
	h.try(func() { h.inner.LegacyFallback(op, name) })
}

func (h *Hooks) ResolutionSelfHeal(k, r string) { h.try(func() { h.inner.ResolutionSelfHeal(k, r) }) }
func (h *Hooks) StoreSetRejected(k string)      { h.try(func() { h.inner.StoreSetRejected(k) }) }

func (h *Hooks) GenSnapshotError(op algfetch.Operation, err error) {
	h.try(func() { h.inner.GenSnapshotError(op, err) })
}

func (h *Hooks) GenBumpError(op algfetch.Operation, err error) {
	h.try(func() { h.inner.GenBumpError(op, err) })
}

func (h *Hooks) BadDefinition(provider, name string, err error) {
	h.try(func() { h.inner.BadDefinition(provider, name, err) })
}
