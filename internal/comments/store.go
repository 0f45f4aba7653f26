package comments

import (
	"sync"

	"github.com/learnup/learnup/internal/model"
)

// Store holds the comments of the entity currently being viewed together
// with the author cache.
type Store interface {
	// Reset replaces the collection with comments, in the given order.
	Reset(ref model.EntityRef, comments []model.Comment)
	// Fail records a failed load and leaves the collection untouched.
	Fail(err error)
	AddRoot(c model.Comment)
	AddReply(c model.Comment)
	Replace(id string, patch model.Patch) bool
	Remove(id string) bool
	CacheAuthor(a model.Author)

	Entity() model.EntityRef
	Comments() []model.Comment
	Err() error
	Author(id string) (model.Author, bool)
	Authors() map[string]model.Author
	DisplayAuthor(ref model.AuthorRef) model.Author
}

// MemoryStore is a Store safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	entity   model.EntityRef
	comments []model.Comment
	authors  map[string]model.Author
	err      error
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{authors: make(map[string]model.Author)}
}

func (s *MemoryStore) Reset(ref model.EntityRef, comments []model.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entity = ref
	s.comments = append(make([]model.Comment, 0, len(comments)), comments...)
	s.err = nil
}

func (s *MemoryStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemoryStore) AddRoot(c model.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = append([]model.Comment{c}, s.comments...)
}

func (s *MemoryStore) AddReply(c model.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = append(s.comments, c)
}

func (s *MemoryStore) Replace(id string, patch model.Patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.comments {
		if s.comments[i].ID == id {
			s.comments[i].Content = patch.Content
			s.comments[i].UpdatedAt = patch.UpdatedAt
			return true
		}
	}
	return false
}

// Remove drops the comment with the given id. Its replies stay in the
// collection.
func (s *MemoryStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.comments {
		if s.comments[i].ID == id {
			s.comments = append(s.comments[:i:i], s.comments[i+1:]...)
			return true
		}
	}
	return false
}

func (s *MemoryStore) CacheAuthor(a model.Author) {
	if a.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authors[a.ID] = a
}

func (s *MemoryStore) Entity() model.EntityRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entity
}

// Comments returns a copy of the flat collection.
func (s *MemoryStore) Comments() []model.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Comment(nil), s.comments...)
}

func (s *MemoryStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *MemoryStore) Author(id string) (model.Author, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.authors[id]
	return a, ok
}

func (s *MemoryStore) Authors() map[string]model.Author {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Author, len(s.authors))
	for id, a := range s.authors {
		out[id] = a
	}
	return out
}

// DisplayAuthor prefers an embedded profile, then the cache, then the
// "Unknown" placeholder.
func (s *MemoryStore) DisplayAuthor(ref model.AuthorRef) model.Author {
	if ref.Profile != nil {
		return *ref.Profile
	}
	if a, ok := s.Author(ref.ID); ok {
		return a
	}
	return model.UnknownAuthor(ref.ID)
}
