package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MahdiBaghbani/huddle-go/internal/components/identity"
)

type blockRepo struct {
	db *gorm.DB
}

func (r *blockRepo) Block(ctx context.Context, blockerID, blockedID string) error {
	b := &identity.Block{BlockerID: blockerID, BlockedID: blockedID, CreatedAt: time.Now()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(b).Error
}

func (r *blockRepo) Unblock(ctx context.Context, blockerID, blockedID string) error {
	return r.db.WithContext(ctx).
		Delete(&identity.Block{}, "blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Error
}

func (r *blockRepo) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&identity.Block{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&n).
		Error
	return n > 0, err
}

func (r *blockRepo) ListBlocked(ctx context.Context, blockerID string) ([]string, error) {
	out := []string{}
	err := r.db.WithContext(ctx).
		Model(&identity.Block{}).
		Where("blocker_id = ?", blockerID).
		Order("blocked_id").
		Pluck("blocked_id", &out).
		Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
