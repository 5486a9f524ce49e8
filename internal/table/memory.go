package table

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps items in memory. Used by dry runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Item
	puts  int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Item)}
}

// Put stores the item, replacing any previous one with the same key.
func (s *MemoryStore) Put(ctx context.Context, item Item) error {
	if item.Name == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.Name] = item
	s.puts++
	return nil
}

// Get returns the item stored under name.
func (s *MemoryStore) Get(name string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[name]
	return item, ok
}

// Items returns all items sorted by key.
func (s *MemoryStore) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of stored rows.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Puts returns how many writes were made, including overwrites.
func (s *MemoryStore) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}
