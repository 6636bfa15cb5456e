package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/MahdiBaghbani/huddle-go/internal/components/apperr"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/logutil"
)

// SignupInput is the data needed to register an account.
type SignupInput struct {
	Username    string
	Email       string
	DisplayName string
	Password    string
}

// Accounts implements signup, login, moderation and blocking on top of the
// user and block repositories. All failures are *apperr.Error.
type Accounts struct {
	users  PartyRepo
	blocks BlockRepo
	hasher *PasswordHasher
	log    *slog.Logger
}

func NewAccounts(users PartyRepo, blocks BlockRepo, hasher *PasswordHasher, log *slog.Logger) *Accounts {
	return &Accounts{
		users:  users,
		blocks: blocks,
		hasher: hasher,
		log:    logutil.NoopIfNil(log),
	}
}

// RoleRank orders roles by privilege. Unknown roles rank as user.
func RoleRank(role string) int {
	switch role {
	case RoleAdmin:
		return 2
	case RoleModerator:
		return 1
	default:
		return 0
	}
}

// Signup creates an active account with the user role.
func (a *Accounts) Signup(ctx context.Context, in SignupInput) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return nil, apperr.Validation(apperr.CodeInvalidRequest, "username and password are required")
	}

	hash, err := a.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	displayName := in.DisplayName
	if displayName == "" {
		displayName = in.Username
	}
	user := &User{
		ID:           UUIDv7(),
		Username:     in.Username,
		Email:        NormalizeEmail(in.Email),
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         RoleUser,
		Status:       StatusActive,
	}

	if err := a.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, ErrUserExists):
			return nil, apperr.Conflict(apperr.CodeUsernameTaken, "username is already taken")
		case errors.Is(err, ErrEmailExists):
			return nil, apperr.Conflict(apperr.CodeEmailTaken, "email is already in use")
		default:
			return nil, apperr.Internal(err)
		}
	}

	a.log.Info("account created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login verifies credentials. The password is checked before the account
// status so that status is never disclosed to a caller without the password.
func (a *Accounts) Login(ctx context.Context, username, password string) (*User, error) {
	invalid := apperr.Authentication(apperr.CodeInvalidCredentials, "invalid username or password")

	user, err := a.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrUserNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if err := a.hasher.Verify(user.PasswordHash, password); err != nil {
		return nil, invalid
	}

	switch user.EffectiveStatus() {
	case StatusInactive:
		return nil, apperr.Authentication(apperr.CodeAccountInactive, "account is inactive")
	case StatusBanned:
		return nil, apperr.Authentication(apperr.CodeAccountBanned, "account is banned")
	}
	return user, nil
}

// Get returns the account or a not-found error.
func (a *Accounts) Get(ctx context.Context, id string) (*User, error) {
	user, err := a.users.Get(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return user, nil
}

// SetStatus changes a target account's status. Actors may only moderate
// accounts of strictly lower rank, admins excepted, and never themselves.
func (a *Accounts) SetStatus(ctx context.Context, actorID, actorRole, targetID, status string) (*User, error) {
	if !ValidStatus(status) {
		return nil, apperr.Validation(apperr.CodeInvalidRequest, "unknown account status")
	}
	target, err := a.moderationTarget(ctx, actorID, actorRole, targetID)
	if err != nil {
		return nil, err
	}

	target.Status = status
	if err := a.users.Update(ctx, target); err != nil {
		return nil, apperr.Internal(err)
	}
	a.log.Info("account status changed", "actor_id", actorID, "user_id", targetID, "status", status)
	return target, nil
}

// SetRole changes a target account's role.
func (a *Accounts) SetRole(ctx context.Context, actorID, actorRole, targetID, role string) (*User, error) {
	if !ValidRole(role) {
		return nil, apperr.Validation(apperr.CodeInvalidRequest, "unknown role")
	}
	target, err := a.moderationTarget(ctx, actorID, actorRole, targetID)
	if err != nil {
		return nil, err
	}

	target.Role = role
	if err := a.users.Update(ctx, target); err != nil {
		return nil, apperr.Internal(err)
	}
	a.log.Info("account role changed", "actor_id", actorID, "user_id", targetID, "role", role)
	return target, nil
}

func (a *Accounts) moderationTarget(ctx context.Context, actorID, actorRole, targetID string) (*User, error) {
	if actorID == targetID {
		return nil, apperr.Validation(apperr.CodeInvalidTarget, "cannot moderate your own account")
	}
	target, err := a.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if actorRole != RoleAdmin && RoleRank(target.EffectiveRole()) >= RoleRank(actorRole) {
		return nil, apperr.Forbidden(apperr.CodeInsufficientRole, "cannot moderate an account of equal or higher role", actorRole)
	}
	return target, nil
}

// Block records that actorID blocks targetID.
func (a *Accounts) Block(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return apperr.Validation(apperr.CodeInvalidTarget, "cannot block yourself")
	}
	if _, err := a.Get(ctx, targetID); err != nil {
		return err
	}
	if err := a.blocks.Block(ctx, actorID, targetID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// Unblock removes a block. Removing a missing block succeeds.
func (a *Accounts) Unblock(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return apperr.Validation(apperr.CodeInvalidTarget, "cannot unblock yourself")
	}
	if err := a.blocks.Unblock(ctx, actorID, targetID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// IsBlocked reports whether blockerID blocked blockedID.
func (a *Accounts) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	return a.blocks.IsBlocked(ctx, blockerID, blockedID)
}
