package identity

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Block records that BlockerID does not want to meet BlockedID.
type Block struct {
	BlockerID string    `json:"blockerId" gorm:"primaryKey"`
	BlockedID string    `json:"blockedId" gorm:"primaryKey"`
	CreatedAt time.Time `json:"createdAt"`
}

// BlockRepo stores directed block relations. Block and Unblock are idempotent.
type BlockRepo interface {
	Block(ctx context.Context, blockerID, blockedID string) error
	Unblock(ctx context.Context, blockerID, blockedID string) error
	IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
	ListBlocked(ctx context.Context, blockerID string) ([]string, error)
}

// MemoryBlockRepo keeps block relations in memory.
type MemoryBlockRepo struct {
	mu     sync.RWMutex
	blocks map[string]map[string]time.Time // blocker -> blocked -> since
}

func NewMemoryBlockRepo() *MemoryBlockRepo {
	return &MemoryBlockRepo{blocks: make(map[string]map[string]time.Time)}
}

func (r *MemoryBlockRepo) Block(ctx context.Context, blockerID, blockedID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.blocks[blockerID]
	if !ok {
		set = make(map[string]time.Time)
		r.blocks[blockerID] = set
	}
	if _, exists := set[blockedID]; !exists {
		set[blockedID] = time.Now()
	}
	return nil
}

func (r *MemoryBlockRepo) Unblock(ctx context.Context, blockerID, blockedID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.blocks[blockerID]; ok {
		delete(set, blockedID)
		if len(set) == 0 {
			delete(r.blocks, blockerID)
		}
	}
	return nil
}

func (r *MemoryBlockRepo) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.blocks[blockerID][blockedID]
	return ok, nil
}

func (r *MemoryBlockRepo) ListBlocked(ctx context.Context, blockerID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.blocks[blockerID]))
	for id := range r.blocks[blockerID] {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}
