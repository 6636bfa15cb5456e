package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MahdiBaghbani/huddle-go/internal/components/apperr"
	"github.com/MahdiBaghbani/huddle-go/internal/components/identity"
)

func newAccounts(t *testing.T) (*identity.Accounts, *identity.MemoryPartyRepo) {
	t.Helper()
	repo := identity.NewMemoryPartyRepo()
	return identity.NewAccounts(repo, identity.NewMemoryBlockRepo(), identity.NewPasswordHasherFast(), nil), repo
}

func TestAccounts_SignupAndLogin(t *testing.T) {
	accounts, _ := newAccounts(t)
	ctx := context.Background()

	user, err := accounts.Signup(ctx, identity.SignupInput{Username: "alice", Email: "Alice@Example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, identity.RoleUser, user.Role)
	assert.Equal(t, identity.StatusActive, user.Status)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "alice", user.DisplayName)

	got, err := accounts.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestAccounts_SignupConflicts(t *testing.T) {
	accounts, _ := newAccounts(t)
	ctx := context.Background()

	_, err := accounts.Signup(ctx, identity.SignupInput{Username: "bob", Email: "b@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = accounts.Signup(ctx, identity.SignupInput{Username: "bob", Password: "pw"})
	assert.Equal(t, apperr.CodeUsernameTaken, apperr.CodeOf(err))

	_, err = accounts.Signup(ctx, identity.SignupInput{Username: "bobby", Email: "B@example.com", Password: "pw"})
	assert.Equal(t, apperr.CodeEmailTaken, apperr.CodeOf(err))

	_, err = accounts.Signup(ctx, identity.SignupInput{Username: "  ", Password: "pw"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAccounts_LoginFailures(t *testing.T) {
	accounts, repo := newAccounts(t)
	ctx := context.Background()

	user, err := accounts.Signup(ctx, identity.SignupInput{Username: "carol", Password: "pw"})
	require.NoError(t, err)

	_, err = accounts.Login(ctx, "carol", "wrong")
	assert.Equal(t, apperr.CodeInvalidCredentials, apperr.CodeOf(err))

	_, err = accounts.Login(ctx, "nobody", "pw")
	assert.Equal(t, apperr.CodeInvalidCredentials, apperr.CodeOf(err))

	user.Status = identity.StatusBanned
	require.NoError(t, repo.Update(ctx, user))
	_, err = accounts.Login(ctx, "carol", "pw")
	assert.Equal(t, apperr.CodeAccountBanned, apperr.CodeOf(err))
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))

	// Status is not disclosed without the right password.
	_, err = accounts.Login(ctx, "carol", "wrong")
	assert.Equal(t, apperr.CodeInvalidCredentials, apperr.CodeOf(err))
}

func TestAccounts_Moderation(t *testing.T) {
	accounts, repo := newAccounts(t)
	ctx := context.Background()

	mod := &identity.User{Username: "mod", Role: identity.RoleModerator, Status: identity.StatusActive}
	admin := &identity.User{Username: "root", Role: identity.RoleAdmin, Status: identity.StatusActive}
	require.NoError(t, repo.Create(ctx, mod))
	require.NoError(t, repo.Create(ctx, admin))
	target, err := accounts.Signup(ctx, identity.SignupInput{Username: "dave", Password: "pw"})
	require.NoError(t, err)

	updated, err := accounts.SetStatus(ctx, mod.ID, mod.Role, target.ID, identity.StatusBanned)
	require.NoError(t, err)
	assert.Equal(t, identity.StatusBanned, updated.Status)

	// Moderators cannot moderate peers or admins.
	_, err = accounts.SetStatus(ctx, mod.ID, mod.Role, admin.ID, identity.StatusInactive)
	assert.Equal(t, apperr.CodeInsufficientRole, apperr.CodeOf(err))

	// Nobody moderates themselves.
	_, err = accounts.SetRole(ctx, admin.ID, admin.Role, admin.ID, identity.RoleUser)
	assert.Equal(t, apperr.CodeInvalidTarget, apperr.CodeOf(err))

	promoted, err := accounts.SetRole(ctx, admin.ID, admin.Role, target.ID, identity.RoleModerator)
	require.NoError(t, err)
	assert.Equal(t, identity.RoleModerator, promoted.Role)

	_, err = accounts.SetRole(ctx, admin.ID, admin.Role, target.ID, "overlord")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = accounts.SetStatus(ctx, admin.ID, admin.Role, "missing", identity.StatusActive)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAccounts_Blocks(t *testing.T) {
	accounts, _ := newAccounts(t)
	ctx := context.Background()

	a, err := accounts.Signup(ctx, identity.SignupInput{Username: "a", Password: "pw"})
	require.NoError(t, err)
	b, err := accounts.Signup(ctx, identity.SignupInput{Username: "b", Password: "pw"})
	require.NoError(t, err)

	assert.Equal(t, apperr.CodeInvalidTarget, apperr.CodeOf(accounts.Block(ctx, a.ID, a.ID)))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(accounts.Block(ctx, a.ID, "missing")))

	require.NoError(t, accounts.Block(ctx, a.ID, b.ID))
	require.NoError(t, accounts.Block(ctx, a.ID, b.ID))

	blocked, err := accounts.IsBlocked(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, blocked)

	reverse, err := accounts.IsBlocked(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, reverse, "blocks are directed")

	require.NoError(t, accounts.Unblock(ctx, a.ID, b.ID))
	blocked, _ = accounts.IsBlocked(ctx, a.ID, b.ID)
	assert.False(t, blocked)
}
