package stale

import "sync"

// Set tracks segment ids whose generated audio predates their current text.
//
// The member map is treated as immutable once published: mutations that change
// membership install a fresh map, while no-op calls (marking a member,
// clearing a non-member) keep the existing map so observers comparing
// Snapshot identity can skip redundant refreshes.
type Set struct {
	mu      sync.RWMutex
	members map[int64]struct{}
}

// NewSet returns an empty staleness set.
func NewSet() *Set {
	return &Set{members: map[int64]struct{}{}}
}

// Mark inserts a segment id. Idempotent: marking an existing member keeps the
// current snapshot.
func (s *Set) Mark(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[id]; ok {
		return
	}
	next := make(map[int64]struct{}, len(s.members)+1)
	for member := range s.members {
		next[member] = struct{}{}
	}
	next[id] = struct{}{}
	s.members = next
}

// Clear removes a segment id. Clearing a non-member keeps the current snapshot.
func (s *Set) Clear(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[id]; !ok {
		return
	}
	next := make(map[int64]struct{}, len(s.members)-1)
	for member := range s.members {
		if member != id {
			next[member] = struct{}{}
		}
	}
	s.members = next
}

// Has reports membership.
func (s *Set) Has(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[id]
	return ok
}

// Len returns the number of stale segments.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// Snapshot returns the current immutable member map. Callers must not mutate
// it; successive calls return the same map until membership changes.
func (s *Set) Snapshot() map[int64]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members
}

// Reset drops all members.
func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.members) == 0 {
		return
	}
	s.members = map[int64]struct{}{}
}
