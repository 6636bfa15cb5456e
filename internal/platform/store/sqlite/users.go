package sqlite

import (
	"context"

	"gorm.io/gorm"

	"github.com/MahdiBaghbani/huddle-go/internal/components/identity"
)

type userRepo struct {
	db *gorm.DB
}

func (r *userRepo) Create(ctx context.Context, user *identity.User) error {
	if user.ID == "" {
		user.ID = identity.UUIDv7()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := emailTaken(tx, user.Email, ""); err != nil {
			return err
		}
		if err := tx.Create(user).Error; err != nil {
			if isDuplicate(err) {
				return identity.ErrUserExists
			}
			return err
		}
		return nil
	})
}

func (r *userRepo) Get(ctx context.Context, id string) (*identity.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	norm := identity.NormalizeEmail(email)
	if norm == "" {
		return nil, identity.ErrUserNotFound
	}
	return r.first(ctx, "lower(email) = ?", norm)
}

func (r *userRepo) Update(ctx context.Context, user *identity.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing identity.User
		if err := tx.First(&existing, "id = ?", user.ID).Error; err != nil {
			if isNotFound(err) {
				return identity.ErrUserNotFound
			}
			return err
		}
		if identity.NormalizeEmail(existing.Email) != identity.NormalizeEmail(user.Email) {
			if err := emailTaken(tx, user.Email, user.ID); err != nil {
				return err
			}
		}
		if err := tx.Save(user).Error; err != nil {
			if isDuplicate(err) {
				return identity.ErrUserExists
			}
			return err
		}
		return nil
	})
}

func (r *userRepo) List(ctx context.Context) ([]*identity.User, error) {
	var users []*identity.User
	if err := r.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) first(ctx context.Context, query string, arg any) (*identity.User, error) {
	var user identity.User
	if err := r.db.WithContext(ctx).First(&user, query, arg).Error; err != nil {
		if isNotFound(err) {
			return nil, identity.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// emailTaken fails with ErrEmailExists when another account uses email.
func emailTaken(tx *gorm.DB, email, exceptID string) error {
	norm := identity.NormalizeEmail(email)
	if norm == "" {
		return nil
	}
	var n int64
	q := tx.Model(&identity.User{}).Where("lower(email) = ?", norm)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return identity.ErrEmailExists
	}
	return nil
}
