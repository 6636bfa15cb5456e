// Package joinrequest implements the approval-gated path into a post: a
// request moves from pending to exactly one of accepted or rejected, and
// acceptance admits the requester through the same capacity check as a
// direct join.
package joinrequest

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound         = errors.New("join request not found")
	ErrDuplicatePending = errors.New("pending join request already exists")
	ErrNotPending       = errors.New("join request is not pending")
)

// Request statuses. accepted and rejected are terminal.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusAccepted || s == StatusRejected
}

// JoinRequest asks a post's host to admit the requester.
type JoinRequest struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	PostID      string     `json:"postId" gorm:"index"`
	RequesterID string     `json:"requesterId" gorm:"index"`
	HostID      string     `json:"hostId" gorm:"index"`
	Status      string     `json:"status" gorm:"index"`
	Message     string     `json:"message,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

func (r *JoinRequest) clone() *JoinRequest {
	cp := *r
	if r.RespondedAt != nil {
		at := *r.RespondedAt
		cp.RespondedAt = &at
	}
	return &cp
}

// Store persists join requests.
type Store interface {
	// CreatePending stores r as pending. It returns ErrDuplicatePending when
	// a pending request already exists for (r.PostID, r.RequesterID); the
	// check and the insert are atomic.
	CreatePending(ctx context.Context, r *JoinRequest) error

	Get(ctx context.Context, id string) (*JoinRequest, error)

	// Resolve moves a pending request to status, stamping RespondedAt. It
	// returns ErrNotPending when the request is no longer pending; the
	// compare and the write are atomic.
	Resolve(ctx context.Context, id, status string, at time.Time) (*JoinRequest, error)

	// ListByPost returns the post's requests oldest first, optionally
	// filtered by status ("" for all).
	ListByPost(ctx context.Context, postID, status string) ([]*JoinRequest, error)

	// ListByRequester returns the requester's requests newest first.
	ListByRequester(ctx context.Context, requesterID string) ([]*JoinRequest, error)

	HasPending(ctx context.Context, postID, requesterID string) (bool, error)
}

// MemoryStore keeps join requests in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*JoinRequest
	pending  map[string]string // pairKey -> request ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[string]*JoinRequest),
		pending:  make(map[string]string),
	}
}

func pairKey(postID, requesterID string) string {
	return postID + "\x00" + requesterID
}

func (s *MemoryStore) CreatePending(ctx context.Context, r *JoinRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(r.PostID, r.RequesterID)
	if _, ok := s.pending[key]; ok {
		return ErrDuplicatePending
	}
	r.Status = StatusPending
	s.requests[r.ID] = r.clone()
	s.pending[key] = r.ID
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*JoinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.clone(), nil
}

func (s *MemoryStore) Resolve(ctx context.Context, id, status string, at time.Time) (*JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != StatusPending {
		return nil, ErrNotPending
	}
	r.Status = status
	r.RespondedAt = &at
	delete(s.pending, pairKey(r.PostID, r.RequesterID))
	return r.clone(), nil
}

func (s *MemoryStore) ListByPost(ctx context.Context, postID, status string) ([]*JoinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*JoinRequest
	for _, r := range s.requests {
		if r.PostID == postID && (status == "" || r.Status == status) {
			out = append(out, r.clone())
		}
	}
	SortOldestFirst(out)
	return out, nil
}

func (s *MemoryStore) ListByRequester(ctx context.Context, requesterID string) ([]*JoinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*JoinRequest
	for _, r := range s.requests {
		if r.RequesterID == requesterID {
			out = append(out, r.clone())
		}
	}
	SortOldestFirst(out)
	slices.Reverse(out)
	return out, nil
}

func (s *MemoryStore) HasPending(ctx context.Context, postID, requesterID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pending[pairKey(postID, requesterID)]
	return ok, nil
}

// SortOldestFirst orders by CreatedAt, then ID.
func SortOldestFirst(rs []*JoinRequest) {
	slices.SortFunc(rs, func(a, b *JoinRequest) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
