// Package idset provides an exact string set with a Bloom filter in front of membership checks.
package idset

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	// FalsePositiveRate is the Bloom filter target rate at the estimated capacity
	FalsePositiveRate = 0.001
	minCapacity       = 64
)

// Set is a thread-safe set of ids. The Bloom filter only short-circuits misses;
// the map stays authoritative, so Has never reports a false positive.
// A nil *Set is a valid empty set for reads.
type Set struct {
	ids   map[string]struct{}
	order []string
	bloom *bloom.BloomFilter
	mutex sync.RWMutex
}

// New creates an empty set sized for roughly capacity ids.
func New(capacity int) *Set {
	if capacity < minCapacity {
		capacity = minCapacity
	}

	return &Set{
		ids:   make(map[string]struct{}, capacity),
		order: make([]string, 0, capacity),
		bloom: bloom.NewWithEstimates(uint(capacity), FalsePositiveRate),
	}
}

// From builds a set from ids, skipping empty strings.
func From(ids ...string) *Set {
	s := New(len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Has checks if id is in the set.
func (s *Set) Has(id string) bool {
	if s == nil || id == "" {
		return false
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.bloom.TestString(id) {
		return false
	}

	_, exists := s.ids[id]
	return exists
}

// Add inserts id and reports whether it was not present before.
// Empty ids are ignored.
func (s *Set) Add(id string) bool {
	if id == "" {
		return false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.ids[id]; exists {
		return false
	}

	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	s.bloom.AddString(id)
	return true
}

// Len returns the number of ids stored.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.ids)
}

// Slice returns the ids in insertion order.
func (s *Set) Slice() []string {
	if s == nil {
		return nil
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
