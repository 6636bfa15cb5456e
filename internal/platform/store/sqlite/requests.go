package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/MahdiBaghbani/huddle-go/internal/components/joinrequest"
)

type requestStore struct {
	db *gorm.DB
}

func (s *requestStore) CreatePending(ctx context.Context, r *joinrequest.JoinRequest) error {
	r.Status = joinrequest.StatusPending
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		if isDuplicate(err) {
			return joinrequest.ErrDuplicatePending
		}
		return err
	}
	return nil
}

func (s *requestStore) Get(ctx context.Context, id string) (*joinrequest.JoinRequest, error) {
	var r joinrequest.JoinRequest
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, joinrequest.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// Resolve is a single conditional UPDATE; RowsAffected tells whether this
// call won the transition.
func (s *requestStore) Resolve(ctx context.Context, id, status string, at time.Time) (*joinrequest.JoinRequest, error) {
	res := s.db.WithContext(ctx).
		Model(&joinrequest.JoinRequest{}).
		Where("id = ? AND status = ?", id, joinrequest.StatusPending).
		Updates(map[string]any{"status": status, "responded_at": at})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, joinrequest.ErrNotPending
	}
	return s.Get(ctx, id)
}

func (s *requestStore) ListByPost(ctx context.Context, postID, status string) ([]*joinrequest.JoinRequest, error) {
	var rs []*joinrequest.JoinRequest
	q := s.db.WithContext(ctx).Where("post_id = ?", postID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("created_at, id").Find(&rs).Error; err != nil {
		return nil, err
	}
	return rs, nil
}

func (s *requestStore) ListByRequester(ctx context.Context, requesterID string) ([]*joinrequest.JoinRequest, error) {
	var rs []*joinrequest.JoinRequest
	err := s.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("created_at DESC, id DESC").
		Find(&rs).
		Error
	if err != nil {
		return nil, err
	}
	return rs, nil
}

func (s *requestStore) HasPending(ctx context.Context, postID, requesterID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&joinrequest.JoinRequest{}).
		Where("post_id = ? AND requester_id = ? AND status = ?", postID, requesterID, joinrequest.StatusPending).
		Count(&n).
		Error
	return n > 0, err
}
