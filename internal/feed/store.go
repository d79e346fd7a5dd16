package feed

import (
	"slices"

	"github.com/sujalbistaa/confessly/internal/models"
)

// Store is the authoritative in-memory window. Every change to the ordered
// sequence goes through Merge or Remove; per-entry updates may touch counts
// and comments but never the id or timestamp, so order is preserved.
//
// Store is not safe for concurrent use. Feed serialises access to it.
type Store struct {
	items []Confession
	index map[string]int
}

func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Merge integrates batch using mode and reports how many ids are new.
func (s *Store) Merge(batch []Confession, mode MergeMode) int {
	before := len(s.items)
	if mode == MergeReplace {
		before = 0
	}
	s.items = Merge(s.items, batch, mode)
	s.reindex()
	return len(s.items) - before
}

// Remove drops id from the window. Only moderator deletes use it.
func (s *Store) Remove(id string) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	s.reindex()
	return true
}

// Reset empties the window.
func (s *Store) Reset() {
	s.items = nil
	s.reindex()
}

// Get returns a copy of the entry for id.
func (s *Store) Get(id string) (Confession, bool) {
	i, ok := s.index[id]
	if !ok {
		return Confession{}, false
	}
	return s.items[i].clone(), true
}

// Len returns the number of entries in the window.
func (s *Store) Len() int {
	return len(s.items)
}

// Snapshot returns a deep copy of the window.
func (s *Store) Snapshot() []Confession {
	out := make([]Confession, len(s.items))
	for i, c := range s.items {
		out[i] = c.clone()
	}
	return out
}

// Oldest returns the cursor of the last entry.
func (s *Store) Oldest() (models.Cursor, bool) {
	if len(s.items) == 0 {
		return models.Cursor{}, false
	}
	return s.items[len(s.items)-1].Cursor(), true
}

// Newest returns the cursor of the first entry.
func (s *Store) Newest() (models.Cursor, bool) {
	if len(s.items) == 0 {
		return models.Cursor{}, false
	}
	return s.items[0].Cursor(), true
}

// update applies fn to the entry for id in place. fn must not change the id
// or timestamp.
func (s *Store) update(id string, fn func(*Confession)) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	c := &s.items[i]
	createdAt := c.CreatedAt
	fn(c)
	c.ID, c.CreatedAt = id, createdAt
	if c.CommentCount < len(c.Comments) {
		c.CommentCount = len(c.Comments)
	}
	if c.Likes < 0 {
		c.Likes = 0
	}
	return true
}

func (s *Store) reindex() {
	clear(s.index)
	for i, c := range s.items {
		s.index[c.ID] = i
	}
}
