package genstore

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	gen     uint64
	touched time.Time
}

// LocalGenStore keeps generations in process memory. Counters not bumped
// within the retention window are swept when a sweep interval is set.
type LocalGenStore struct {
	mu       sync.RWMutex
	counters map[string]counter

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ GenStore = (*LocalGenStore)(nil)

// NewLocalGenStore starts a background sweep when both durations are
// positive.
func NewLocalGenStore(sweepEvery, retention time.Duration) *LocalGenStore {
	s := &LocalGenStore{counters: make(map[string]counter)}
	if sweepEvery <= 0 || retention <= 0 {
		return s
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.sweepLoop(sweepEvery, retention)
	return s
}

func (s *LocalGenStore) sweepLoop(every, retention time.Duration) {
	defer close(s.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.Cleanup(retention)
		}
	}
}

func (s *LocalGenStore) Snapshot(_ context.Context, k string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[k].gen, nil
}

func (s *LocalGenStore) Bump(_ context.Context, k string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incr(k, time.Now()), nil
}

// BumpMany increments all keys under one lock.
func (s *LocalGenStore) BumpMany(_ context.Context, ks []string) error {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range ks {
		s.incr(k, now)
	}
	return nil
}

func (s *LocalGenStore) incr(k string, now time.Time) uint64 {
	c := s.counters[k]
	c.gen++
	c.touched = now
	s.counters[k] = c
	return c.gen
}

// Cleanup forgets counters idle for longer than retention. A forgotten key
// reads as generation 0 again, so retention has to outlive the resolution
// TTL.
func (s *LocalGenStore) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, c := range s.counters {
		if c.touched.Before(cutoff) {
			delete(s.counters, k)
		}
	}
}

// Close stops the sweep. Repeated calls are no-ops.
func (s *LocalGenStore) Close(_ context.Context) error {
	s.closeOnce.Do(func() {
		if s.stop != nil {
			close(s.stop)
			<-s.done
		}
	})
	return nil
}
