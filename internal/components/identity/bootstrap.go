package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/MahdiBaghbani/huddle-go/internal/platform/logutil"
)

// Bootstrap provisions the first administrator account.
type Bootstrap struct {
	repo   PartyRepo
	hasher *PasswordHasher
	log    *slog.Logger
}

func NewBootstrap(repo PartyRepo, hasher *PasswordHasher, log *slog.Logger) *Bootstrap {
	return &Bootstrap{
		repo:   repo,
		hasher: hasher,
		log:    logutil.NoopIfNil(log),
	}
}

// EnsureAdmin creates an active admin named username unless any admin
// already exists. An empty password generates a random one that is logged
// once. When an admin exists and rotate is set, its password is replaced.
func (b *Bootstrap) EnsureAdmin(ctx context.Context, username, password string, rotate bool) error {
	if username == "" {
		username = "admin"
	}
	users, err := b.repo.List(ctx)
	if err != nil {
		return err
	}

	for _, u := range users {
		if u.Role != RoleAdmin {
			continue
		}
		if rotate && password != "" {
			hash, err := b.hasher.Hash(password)
			if err != nil {
				return err
			}
			u.PasswordHash = hash
			if err := b.repo.Update(ctx, u); err != nil {
				return err
			}
			b.log.Info("admin password rotated", "username", u.Username)
		}
		return nil
	}

	generated := false
	if password == "" {
		password = generateRandomPassword()
		generated = true
	}
	hash, err := b.hasher.Hash(password)
	if err != nil {
		return err
	}

	admin := &User{
		ID:           UUIDv7(),
		Username:     username,
		DisplayName:  "Administrator",
		PasswordHash: hash,
		Role:         RoleAdmin,
		Status:       StatusActive,
		CreatedAt:    time.Now(),
	}
	if err := b.repo.Create(ctx, admin); err != nil {
		return err
	}

	if generated {
		b.log.Info("admin created with auto-generated password",
			"username", username,
			"password", password,
			"user_id", admin.ID)
	} else {
		b.log.Info("admin created", "username", username, "user_id", admin.ID)
	}
	return nil
}

func generateRandomPassword() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "changeme-" + UUIDv7()
	}
	return base64.URLEncoding.EncodeToString(b)
}
