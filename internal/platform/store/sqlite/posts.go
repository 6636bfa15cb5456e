package sqlite

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/MahdiBaghbani/huddle-go/internal/components/meetup"
)

// maxUpdateAttempts bounds the compare-and-set retry loop in Update.
const maxUpdateAttempts = 5

var errVersionConflict = errors.New("post changed concurrently")

type postStore struct {
	db *gorm.DB
}

func (s *postStore) Create(ctx context.Context, p *meetup.Post) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		if isDuplicate(err) {
			return meetup.ErrPostExists
		}
		return err
	}
	return nil
}

func (s *postStore) Get(ctx context.Context, id string) (*meetup.Post, error) {
	var p meetup.Post
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, meetup.ErrPostNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *postStore) List(ctx context.Context) ([]*meetup.Post, error) {
	var ps []*meetup.Post
	if err := s.db.WithContext(ctx).Order("id").Find(&ps).Error; err != nil {
		return nil, err
	}
	return ps, nil
}

// Update reads the post, applies fn, and writes back only if the version is
// unchanged, retrying a bounded number of times on conflict.
func (s *postStore) Update(ctx context.Context, id string, fn func(*meetup.Post) error) (*meetup.Post, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		cur, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		next := cur.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next.Version = cur.Version + 1

		res := s.db.WithContext(context.WithoutCancel(ctx)).
			Model(next).
			Where("version = ?", cur.Version).
			Select("*").
			Updates(next)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			return next, nil
		}
	}
	return nil, errVersionConflict
}

func (s *postStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&meetup.Post{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return meetup.ErrPostNotFound
	}
	return nil
}
