package root

import (
	"errors"
	"sync"
)

var (
	// ErrInvalid indicates a root without name or uri.
	ErrInvalid = errors.New("name and uri required")
	// ErrExists indicates a root with the same name or uri is already present.
	ErrExists = errors.New("root already exists")
	// ErrNotFound indicates no root has the name.
	ErrNotFound = errors.New("root not found")
)

// Root is a filesystem or logical root exposed to the server.
type Root struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// Store is the ordered root list. Names and uris are unique.
type Store struct {
	mu    sync.RWMutex
	roots []Root
}

// NewStore creates a store seeded with roots; duplicates are skipped.
func NewStore(initial ...Root) *Store {
	s := &Store{}
	for _, r := range initial {
		_ = s.Add(r)
	}
	return s
}

// Add appends r.
func (s *Store) Add(r Root) error {
	if r.Name == "" || r.URI == "" {
		return ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.roots {
		if existing.Name == r.Name || existing.URI == r.URI {
			return ErrExists
		}
	}
	s.roots = append(s.roots, r)
	return nil
}

// Remove deletes the root called name and returns it.
func (s *Store) Remove(name string) (Root, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.roots {
		if existing.Name == name {
			s.roots = append(s.roots[:i:i], s.roots[i+1:]...)
			return existing, nil
		}
	}
	return Root{}, ErrNotFound
}

// List returns a copy of the roots in insertion order.
func (s *Store) List() []Root {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Root, len(s.roots))
	copy(out, s.roots)
	return out
}
