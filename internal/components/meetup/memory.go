package meetup

import (
	"context"
	"slices"
	"sync"
)

// entry guards one post. Update holds mu for the whole read-modify-write.
type entry struct {
	mu      sync.Mutex
	post    *Post
	deleted bool
}

// MemoryStore keeps posts in memory with a lock per post.
type MemoryStore struct {
	mu    sync.RWMutex
	posts map[string]*entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{posts: make(map[string]*entry)}
}

func (s *MemoryStore) Create(ctx context.Context, p *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[p.ID]; ok {
		return ErrPostExists
	}
	s.posts[p.ID] = &entry{post: p.Clone()}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Post, error) {
	e := s.entry(id)
	if e == nil {
		return nil, ErrPostNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrPostNotFound
	}
	return e.post.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Post, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.posts))
	for _, e := range s.posts {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*Post, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			out = append(out, e.post.Clone())
		}
		e.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b *Post) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*Post) error) (*Post, error) {
	e := s.entry(id)
	if e == nil {
		return nil, ErrPostNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrPostNotFound
	}

	next := e.post.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	next.Version = e.post.Version + 1
	e.post = next
	return next.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.posts[id]
	if !ok {
		return ErrPostNotFound
	}
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	delete(s.posts, id)
	return nil
}

func (s *MemoryStore) entry(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.posts[id]
}
