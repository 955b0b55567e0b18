package character

import "sync"

// Store caches characters resolved through the API.
type Store interface {
	List() []Character
	FindByID(id string) (Character, bool)
	Put(c Character)
}

// MemoryStore implements Store in memory, keeping insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	items map[string]Character
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied characters.
func NewMemoryStore(items []Character) *MemoryStore {
	s := &MemoryStore{items: make(map[string]Character, len(items))}
	for _, item := range items {
		s.Put(item)
	}
	return s
}

// List returns the cached characters.
func (s *MemoryStore) List() []Character {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Character, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// FindByID looks up a character by external id.
func (s *MemoryStore) FindByID(id string) (Character, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.items[id]
	return c, ok
}

// Put inserts or replaces a character.
func (s *MemoryStore) Put(c Character) {
	if c.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[c.ID]; !ok {
		s.order = append(s.order, c.ID)
	}
	s.items[c.ID] = c
}
