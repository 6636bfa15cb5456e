// Package identity owns user accounts: storage, password hashing, signup and
// login, moderation (role and status changes), and user-to-user blocks.
package identity

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrEmailExists     = errors.New("email already in use")
	ErrInvalidPassword = errors.New("invalid password")
)

// Roles, lowest privilege first.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Account statuses. Only active accounts authenticate.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusBanned   = "banned"
)

// Roles lists every valid role.
var Roles = []string{RoleUser, RoleModerator, RoleAdmin}

// Statuses lists every valid account status.
var Statuses = []string{StatusActive, StatusInactive, StatusBanned}

func ValidRole(role string) bool     { return slices.Contains(Roles, role) }
func ValidStatus(status string) bool { return slices.Contains(Statuses, status) }

// User is a registered account.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex"`
	Email        string    `json:"email,omitempty" gorm:"index"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// EffectiveRole returns Role, defaulting to user when unset.
func (u *User) EffectiveRole() string {
	if u.Role == "" {
		return RoleUser
	}
	return u.Role
}

// EffectiveStatus returns Status, defaulting to active when unset.
func (u *User) EffectiveStatus() string {
	if u.Status == "" {
		return StatusActive
	}
	return u.Status
}

// PartyRepo provides user storage operations.
type PartyRepo interface {
	// Create stores a new user. Returns ErrUserExists or ErrEmailExists on collision.
	Create(ctx context.Context, user *User) error

	// Get returns ErrUserNotFound if no user has the id.
	Get(ctx context.Context, id string) (*User, error)

	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByEmail matches case-insensitively. Empty email never matches.
	GetByEmail(ctx context.Context, email string) (*User, error)

	Update(ctx context.Context, user *User) error

	List(ctx context.Context) ([]*User, error)
}

// UUIDv7 returns a time-ordered identifier.
func UUIDv7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NormalizeEmail lowercases and trims an address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryPartyRepo stores users in memory with username and email indexes.
type MemoryPartyRepo struct {
	mu         sync.RWMutex
	users      map[string]*User  // by ID
	byUsername map[string]string // username -> ID
	byEmail    map[string]string // normalized email -> ID
}

func NewMemoryPartyRepo() *MemoryPartyRepo {
	return &MemoryPartyRepo{
		users:      make(map[string]*User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

func (r *MemoryPartyRepo) Create(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[user.Username]; exists {
		return ErrUserExists
	}
	norm := NormalizeEmail(user.Email)
	if norm != "" {
		if _, exists := r.byEmail[norm]; exists {
			return ErrEmailExists
		}
	}

	if user.ID == "" {
		user.ID = UUIDv7()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	u := *user
	r.users[u.ID] = &u
	r.byUsername[u.Username] = u.ID
	if norm != "" {
		r.byEmail[norm] = u.ID
	}
	return nil
}

func (r *MemoryPartyRepo) Get(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (r *MemoryPartyRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *r.users[id]
	return &u, nil
}

func (r *MemoryPartyRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	norm := NormalizeEmail(email)
	if norm == "" {
		return nil, ErrUserNotFound
	}
	id, ok := r.byEmail[norm]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *r.users[id]
	return &u, nil
}

func (r *MemoryPartyRepo) Update(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}

	if existing.Username != user.Username {
		if _, taken := r.byUsername[user.Username]; taken {
			return ErrUserExists
		}
	}
	oldNorm := NormalizeEmail(existing.Email)
	newNorm := NormalizeEmail(user.Email)
	if oldNorm != newNorm && newNorm != "" {
		if owner, taken := r.byEmail[newNorm]; taken && owner != user.ID {
			return ErrEmailExists
		}
	}

	if existing.Username != user.Username {
		delete(r.byUsername, existing.Username)
		r.byUsername[user.Username] = user.ID
	}
	if oldNorm != newNorm {
		if oldNorm != "" {
			delete(r.byEmail, oldNorm)
		}
		if newNorm != "" {
			r.byEmail[newNorm] = user.ID
		}
	}

	u := *user
	r.users[user.ID] = &u
	return nil
}

func (r *MemoryPartyRepo) List(ctx context.Context) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*User, 0, len(r.users))
	for _, user := range r.users {
		u := *user
		out = append(out, &u)
	}
	slices.SortFunc(out, func(a, b *User) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}
