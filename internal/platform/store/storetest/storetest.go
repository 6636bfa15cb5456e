// Package storetest provides the shared test suite every store driver runs.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MahdiBaghbani/huddle-go/internal/components/apperr"
	"github.com/MahdiBaghbani/huddle-go/internal/components/identity"
	"github.com/MahdiBaghbani/huddle-go/internal/components/joinrequest"
	"github.com/MahdiBaghbani/huddle-go/internal/components/meetup"
	"github.com/MahdiBaghbani/huddle-go/internal/components/notifications"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/store"
)

// TestUser returns a user with the given username.
func TestUser(username string) *identity.User {
	return &identity.User{
		ID:           identity.UUIDv7(),
		Username:     username,
		Email:        username + "@example.com",
		DisplayName:  username,
		PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		Role:         identity.RoleUser,
		Status:       identity.StatusActive,
	}
}

// TestPost returns an open post hosted by hostID.
func TestPost(hostID string, max int) *meetup.Post {
	return &meetup.Post{
		ID:              identity.UUIDv7(),
		HostID:          hostID,
		Title:           "Picnic",
		Location:        meetup.Location{Lat: 48.8566, Lng: 2.3522},
		StartsAt:        time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		MaxParticipants: max,
		ParticipantIDs:  []string{hostID},
		Status:          meetup.StatusOpen,
		Version:         1,
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}
}

// TestRequest returns a pending request.
func TestRequest(postID, requesterID, hostID string) *joinrequest.JoinRequest {
	return &joinrequest.JoinRequest{
		ID:          identity.UUIDv7(),
		PostID:      postID,
		RequesterID: requesterID,
		HostID:      hostID,
		Status:      joinrequest.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

// RunDriverTests runs the standard test suite against a driver.
func RunDriverTests(t *testing.T, driverName string, cfg *store.DriverConfig) {
	t.Helper()
	ctx := context.Background()

	driver, err := store.New(cfg)
	require.NoError(t, err, "failed to create %s driver", driverName)
	require.NoError(t, driver.Init(ctx), "failed to init %s driver", driverName)
	t.Cleanup(func() { _ = driver.Close() })

	assert.Equal(t, driverName, driver.Name())
	repos := driver.Repos()

	t.Run("Users", func(t *testing.T) { testUsers(t, repos.Users) })
	t.Run("Blocks", func(t *testing.T) { testBlocks(t, repos.Blocks) })
	t.Run("Posts", func(t *testing.T) { testPosts(t, repos.Posts) })
	t.Run("PostsConcurrentJoin", func(t *testing.T) { testPostsConcurrentJoin(t, repos.Posts) })
	t.Run("Requests", func(t *testing.T) { testRequests(t, repos.Requests) })
	t.Run("RequestsConcurrent", func(t *testing.T) { testRequestsConcurrent(t, repos.Requests) })
	t.Run("Notifications", func(t *testing.T) { testNotifications(t, repos.Notifications) })
}

func testUsers(t *testing.T, repo identity.PartyRepo) {
	ctx := context.Background()
	alice := TestUser("alice")
	require.NoError(t, repo.Create(ctx, alice))

	got, err := repo.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, alice.PasswordHash, got.PasswordHash)

	got, err = repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	got, err = repo.GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = repo.GetByEmail(ctx, "")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)

	dup := TestUser("alice")
	dup.Email = "other@example.com"
	assert.ErrorIs(t, repo.Create(ctx, dup), identity.ErrUserExists)

	sameEmail := TestUser("alice2")
	sameEmail.Email = "alice@example.com"
	assert.ErrorIs(t, repo.Create(ctx, sameEmail), identity.ErrEmailExists)

	got.Status = identity.StatusBanned
	got.Role = identity.RoleModerator
	require.NoError(t, repo.Update(ctx, got))
	got, err = repo.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.StatusBanned, got.Status)
	assert.Equal(t, identity.RoleModerator, got.Role)

	assert.ErrorIs(t, repo.Update(ctx, TestUser("ghost")), identity.ErrUserNotFound)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func testBlocks(t *testing.T, repo identity.BlockRepo) {
	ctx := context.Background()

	require.NoError(t, repo.Block(ctx, "host", "mallory"))
	require.NoError(t, repo.Block(ctx, "host", "mallory"))
	require.NoError(t, repo.Block(ctx, "host", "eve"))

	blocked, err := repo.IsBlocked(ctx, "host", "mallory")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = repo.IsBlocked(ctx, "mallory", "host")
	require.NoError(t, err)
	assert.False(t, blocked, "blocks are directed")

	list, err := repo.ListBlocked(ctx, "host")
	require.NoError(t, err)
	assert.Equal(t, []string{"eve", "mallory"}, list)

	require.NoError(t, repo.Unblock(ctx, "host", "mallory"))
	require.NoError(t, repo.Unblock(ctx, "host", "mallory"))
	blocked, err = repo.IsBlocked(ctx, "host", "mallory")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func testPosts(t *testing.T, s meetup.Store) {
	ctx := context.Background()
	p := TestPost("host", 2)
	require.NoError(t, s.Create(ctx, p))
	assert.ErrorIs(t, s.Create(ctx, p), meetup.ErrPostExists)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"host"}, got.ParticipantIDs)
	assert.Equal(t, p.Location, got.Location)
	assert.True(t, p.StartsAt.Equal(got.StartsAt))

	updated, err := s.Update(ctx, p.ID, func(p *meetup.Post) error { return p.Join("bob") })
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, meetup.StatusFull, updated.Status)

	// A failing mutation writes nothing.
	_, err = s.Update(ctx, p.ID, func(p *meetup.Post) error { return p.Join("carol") })
	assert.ErrorIs(t, err, apperr.ErrCapacityFull)
	got, err = s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"host", "bob"}, got.ParticipantIDs)
	assert.Equal(t, int64(2), got.Version)

	// A cancelled context writes nothing.
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Update(cctx, p.ID, func(p *meetup.Post) error { return p.Leave("bob") })
	assert.Error(t, err)
	got, err = s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.ParticipantIDs, 2)

	_, err = s.Update(ctx, "missing", func(p *meetup.Post) error { return nil })
	assert.ErrorIs(t, err, meetup.ErrPostNotFound)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Delete(ctx, p.ID))
	assert.ErrorIs(t, s.Delete(ctx, p.ID), meetup.ErrPostNotFound)
	_, err = s.Get(ctx, p.ID)
	assert.ErrorIs(t, err, meetup.ErrPostNotFound)
}

func testPostsConcurrentJoin(t *testing.T, s meetup.Store) {
	ctx := context.Background()
	p := TestPost("host", 4)
	require.NoError(t, s.Create(ctx, p))

	var joined atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := s.Update(ctx, p.ID, func(p *meetup.Post) error { return p.Join(user) })
			if err == nil {
				joined.Add(1)
			}
		}(fmt.Sprintf("user-%d", i))
	}
	wg.Wait()

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got.ParticipantIDs), got.MaxParticipants)
	assert.Equal(t, int(joined.Load())+1, len(got.ParticipantIDs))
	assert.Equal(t, len(got.ParticipantIDs) == got.MaxParticipants, got.Status == meetup.StatusFull)
}

func testRequests(t *testing.T, s joinrequest.Store) {
	ctx := context.Background()
	r := TestRequest("post-1", "erin", "host")
	require.NoError(t, s.CreatePending(ctx, r))

	assert.ErrorIs(t, s.CreatePending(ctx, TestRequest("post-1", "erin", "host")), joinrequest.ErrDuplicatePending)
	require.NoError(t, s.CreatePending(ctx, TestRequest("post-2", "erin", "host")))

	pending, err := s.HasPending(ctx, "post-1", "erin")
	require.NoError(t, err)
	assert.True(t, pending)

	at := time.Now().UTC()
	resolved, err := s.Resolve(ctx, r.ID, joinrequest.StatusRejected, at)
	require.NoError(t, err)
	assert.Equal(t, joinrequest.StatusRejected, resolved.Status)
	require.NotNil(t, resolved.RespondedAt)

	_, err = s.Resolve(ctx, r.ID, joinrequest.StatusAccepted, at)
	assert.ErrorIs(t, err, joinrequest.ErrNotPending)
	_, err = s.Resolve(ctx, "missing", joinrequest.StatusAccepted, at)
	assert.ErrorIs(t, err, joinrequest.ErrNotFound)

	pending, err = s.HasPending(ctx, "post-1", "erin")
	require.NoError(t, err)
	assert.False(t, pending)

	// A resolved request frees the pair for a new pending one.
	again := TestRequest("post-1", "erin", "host")
	require.NoError(t, s.CreatePending(ctx, again))

	byPost, err := s.ListByPost(ctx, "post-1", "")
	require.NoError(t, err)
	assert.Len(t, byPost, 2)
	onlyPending, err := s.ListByPost(ctx, "post-1", joinrequest.StatusPending)
	require.NoError(t, err)
	require.Len(t, onlyPending, 1)
	assert.Equal(t, again.ID, onlyPending[0].ID)

	mine, err := s.ListByRequester(ctx, "erin")
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, joinrequest.ErrNotFound)
}

func testRequestsConcurrent(t *testing.T, s joinrequest.Store) {
	ctx := context.Background()

	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CreatePending(ctx, TestRequest("post-c", "frank", "host"))
			if err == nil {
				created.Add(1)
				return
			}
			assert.ErrorIs(t, err, joinrequest.ErrDuplicatePending)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), created.Load())

	list, err := s.ListByPost(ctx, "post-c", joinrequest.StatusPending)
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID

	var won atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := joinrequest.StatusAccepted
			if i%2 == 1 {
				status = joinrequest.StatusRejected
			}
			_, err := s.Resolve(ctx, id, status, time.Now())
			if err == nil {
				won.Add(1)
				return
			}
			assert.ErrorIs(t, err, joinrequest.ErrNotPending)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), won.Load())
}

func testNotifications(t *testing.T, repo notifications.Repo) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	first := &notifications.Notification{
		ID:            identity.UUIDv7(),
		RecipientID:   "host",
		Kind:          notifications.KindJoinRequestReceived,
		SubjectPostID: "post-1",
		CreatedAt:     base,
	}
	second := &notifications.Notification{
		ID:               identity.UUIDv7(),
		RecipientID:      "host",
		Kind:             notifications.KindParticipantJoined,
		SubjectPostID:    "post-1",
		SubjectRequestID: "req-1",
		CreatedAt:        base.Add(time.Second),
	}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	list, err := repo.ListByRecipient(ctx, "host")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, "req-1", list[0].SubjectRequestID)

	require.NoError(t, repo.MarkRead(ctx, first.ID))
	require.NoError(t, repo.MarkRead(ctx, first.ID))
	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)

	assert.ErrorIs(t, repo.MarkRead(ctx, "missing"), notifications.ErrNotFound)
	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, notifications.ErrNotFound)
}
