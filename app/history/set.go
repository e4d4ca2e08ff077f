package history

import (
	"strings"
	"sync"
)

// Set is the ordered collection of processed entry identifiers.
// It is safe for concurrent use.
type Set struct {
	mu    sync.RWMutex
	ids   []string
	index map[string]struct{}
}

func NewSet(ids ...string) *Set {
	s := &Set{index: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s *Set) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.index[strings.TrimSpace(id)]
	return ok
}

// Add appends id and reports whether it was not already present.
// Blank identifiers are ignored.
func (s *Set) Add(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// IDs returns a copy of the identifiers in insertion order.
func (s *Set) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idsCopy := make([]string, len(s.ids))
	copy(idsCopy, s.ids)
	return idsCopy
}
