package sqlite

import (
	"context"

	"gorm.io/gorm"

	"github.com/MahdiBaghbani/huddle-go/internal/components/notifications"
)

type notificationRepo struct {
	db *gorm.DB
}

func (r *notificationRepo) Create(ctx context.Context, n *notifications.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepo) Get(ctx context.Context, id string) (*notifications.Notification, error) {
	var n notifications.Notification
	if err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, notifications.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepo) ListByRecipient(ctx context.Context, recipientID string) ([]*notifications.Notification, error) {
	var ns []*notifications.Notification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC, id DESC").
		Find(&ns).
		Error
	if err != nil {
		return nil, err
	}
	return ns, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&notifications.Notification{}).
		Where("id = ?", id).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		_, err := r.Get(ctx, id)
		return err
	}
	return nil
}
