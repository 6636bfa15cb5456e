// Package notifications records user-facing events produced by the
// participation workflow. Emission is fire-and-forget: a transition never
// fails because its notification could not be delivered.
package notifications

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("notification not found")

// Notification kinds.
const (
	KindJoinRequestReceived = "join_request_received"
	KindJoinRequestAccepted = "join_request_accepted"
	KindJoinRequestRejected = "join_request_rejected"
	KindParticipantJoined   = "participant_joined"
	KindParticipantLeft     = "participant_left"
)

// Payload identifies what a notification is about.
type Payload struct {
	PostID    string
	RequestID string
	ActorID   string
}

// Notification is a write-once record for one recipient. Only Read changes.
type Notification struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	RecipientID      string    `json:"recipientId" gorm:"index"`
	Kind             string    `json:"kind"`
	SubjectPostID    string    `json:"subjectPostId"`
	SubjectRequestID string    `json:"subjectRequestId,omitempty"`
	ActorID          string    `json:"actorId,omitempty"`
	Read             bool      `json:"read"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Emitter accepts notifications for asynchronous delivery.
type Emitter interface {
	Emit(recipientID, kind string, payload Payload)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(recipientID, kind string, payload Payload)

func (f EmitterFunc) Emit(recipientID, kind string, payload Payload) { f(recipientID, kind, payload) }

// Repo persists notifications.
type Repo interface {
	Create(ctx context.Context, n *Notification) error

	// Get returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Notification, error)

	// ListByRecipient returns newest first.
	ListByRecipient(ctx context.Context, recipientID string) ([]*Notification, error)

	// MarkRead returns ErrNotFound if absent. Marking twice is not an error.
	MarkRead(ctx context.Context, id string) error
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// MemoryRepo stores notifications in memory.
type MemoryRepo struct {
	mu    sync.RWMutex
	items map[string]*Notification
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: make(map[string]*Notification)}
}

func (r *MemoryRepo) Create(ctx context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.ID == "" {
		n.ID = newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	cp := *n
	r.items[n.ID] = &cp
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (r *MemoryRepo) ListByRecipient(ctx context.Context, recipientID string) ([]*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Notification
	for _, n := range r.items {
		if n.RecipientID == recipientID {
			cp := *n
			out = append(out, &cp)
		}
	}
	SortNewestFirst(out)
	return out, nil
}

func (r *MemoryRepo) MarkRead(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	n.Read = true
	return nil
}

// SortNewestFirst orders by CreatedAt descending, then ID descending.
func SortNewestFirst(ns []*Notification) {
	slices.SortFunc(ns, func(a, b *Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
}
