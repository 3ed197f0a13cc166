// Package collector produces one metric snapshot per tick and keeps the
// in-memory rolling window of recent snapshots.
package collector

import (
	"sync"
	"time"

	"github.com/reservly/pulsed/internal/model"
)

// SampleStore is a bounded rolling buffer of snapshots. A single writer (the
// collector loop) appends; readers never block appends and eviction never
// blocks readers. Oldest snapshots are evicted first, either when the count
// bound is exceeded or when they age past maxAge.
type SampleStore struct {
	mu     sync.RWMutex
	buf    []model.MetricSnapshot
	cap    int
	maxAge time.Duration
}

// NewSampleStore creates a store holding at most capacity snapshots no older
// than maxAge. maxAge <= 0 disables the age bound.
func NewSampleStore(capacity int, maxAge time.Duration) *SampleStore {
	if capacity < 1 {
		capacity = 1
	}
	return &SampleStore{cap: capacity, maxAge: maxAge}
}

// Append adds a snapshot and evicts from the front until both bounds hold.
func (s *SampleStore) Append(snap model.MetricSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, snap)
	start := 0
	if n := len(s.buf) - s.cap; n > 0 {
		start = n
	}
	if s.maxAge > 0 {
		cutoff := snap.Timestamp.Add(-s.maxAge)
		for start < len(s.buf)-1 && s.buf[start].Timestamp.Before(cutoff) {
			start++
		}
	}
	if start > 0 {
		s.buf = append(s.buf[:0], s.buf[start:]...)
	}
}

// Latest returns the most recent snapshot, if any.
func (s *SampleStore) Latest() (model.MetricSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.buf) == 0 {
		return model.MetricSnapshot{}, false
	}
	return s.buf[len(s.buf)-1], true
}

// Range returns snapshots with from <= Timestamp < to, oldest first.
func (s *SampleStore) Range(from, to time.Time) []model.MetricSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.MetricSnapshot
	for _, snap := range s.buf {
		if !snap.Timestamp.Before(from) && snap.Timestamp.Before(to) {
			out = append(out, snap)
		}
	}
	return out
}

// Len returns the number of buffered snapshots.
func (s *SampleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}
