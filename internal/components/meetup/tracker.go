package meetup

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/huddle-go/internal/components/apperr"
	"github.com/MahdiBaghbani/huddle-go/internal/components/notifications"
	"github.com/MahdiBaghbani/huddle-go/internal/components/principal"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/logutil"
)

const (
	maxTitleLen       = 120
	maxDescriptionLen = 2000
)

// BlockChecker reports whether blockerID has blocked blockedID.
type BlockChecker interface {
	IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
}

// Tracker is the post service: creation, listing, editing, and the
// capacity-bounded join and leave operations.
type Tracker struct {
	posts   Store
	blocks  BlockChecker
	emitter notifications.Emitter
	now     func() time.Time
	log     *slog.Logger
}

// NewTracker creates a Tracker. blocks and emitter may be nil.
func NewTracker(posts Store, blocks BlockChecker, emitter notifications.Emitter, log *slog.Logger) *Tracker {
	if emitter == nil {
		emitter = notifications.EmitterFunc(func(string, string, notifications.Payload) {})
	}
	return &Tracker{
		posts:   posts,
		blocks:  blocks,
		emitter: emitter,
		now:     time.Now,
		log:     logutil.NoopIfNil(log),
	}
}

// CreateInput describes a new post.
type CreateInput struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Location        Location  `json:"location"`
	StartsAt        time.Time `json:"startsAt"`
	MaxParticipants int       `json:"maxParticipants"`
}

// EditInput changes a post's text. Nil fields are left alone.
type EditInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// Create stores a post hosted by hostID with the host as sole participant.
func (t *Tracker) Create(ctx context.Context, hostID string, in CreateInput) (*Post, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > maxTitleLen {
		return nil, apperr.Validation(apperr.CodeInvalidRequest, "title is required and must be at most 120 characters")
	}
	if len(in.Description) > maxDescriptionLen {
		return nil, apperr.Validation(apperr.CodeInvalidRequest, "description must be at most 2000 characters")
	}
	if in.MaxParticipants < MinParticipants {
		return nil, apperr.Validation(apperr.CodeInvalidCapacity, "maxParticipants must be at least 2")
	}
	if !ValidLocation(in.Location) {
		return nil, apperr.Validation(apperr.CodeInvalidRequest, "location is out of range")
	}

	p := &Post{
		ID:              newID(),
		HostID:          hostID,
		Title:           title,
		Description:     in.Description,
		Location:        in.Location,
		StartsAt:        in.StartsAt,
		MaxParticipants: in.MaxParticipants,
		ParticipantIDs:  []string{hostID},
		Status:          StatusOpen,
		Version:         1,
		CreatedAt:       t.now(),
	}
	if err := t.posts.Create(ctx, p); err != nil {
		return nil, apperr.Internal(err)
	}

	t.log.Info("post created", "post_id", p.ID, "host_id", hostID, "max_participants", p.MaxParticipants)
	return p, nil
}

func (t *Tracker) Get(ctx context.Context, id string) (*Post, error) {
	p, err := t.posts.Get(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return p, nil
}

// List returns every post, newest first.
func (t *Tracker) List(ctx context.Context) ([]*Post, error) {
	ps, err := t.posts.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	sortNewestFirst(ps)
	return ps, nil
}

// Nearby returns posts within radiusKm of center, nearest first.
func (t *Tracker) Nearby(ctx context.Context, center Location, radiusKm float64) ([]*Post, error) {
	if !ValidLocation(center) {
		return nil, apperr.Validation(apperr.CodeInvalidRequest, "location is out of range")
	}
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}

	ps, err := t.posts.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	type hit struct {
		post *Post
		dist float64
	}
	var hits []hit
	for _, p := range ps {
		if d := DistanceKm(center, p.Location); d <= radiusKm {
			hits = append(hits, hit{p, d})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		}
		return 0
	})

	out := make([]*Post, len(hits))
	for i, h := range hits {
		out[i] = h.post
	}
	return out, nil
}

// Join adds userID to the post. A user blocked by the host is refused before
// capacity is considered.
func (t *Tracker) Join(ctx context.Context, postID, userID string) (*Post, error) {
	current, err := t.posts.Get(ctx, postID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if err := t.CheckBlocked(ctx, current.HostID, userID); err != nil {
		return nil, err
	}

	p, err := t.Admit(ctx, postID, userID)
	if err != nil {
		return nil, err
	}

	t.log.Info("participant joined", "post_id", postID, "user_id", userID, "status", p.Status)
	t.emitter.Emit(p.HostID, notifications.KindParticipantJoined, notifications.Payload{PostID: postID, ActorID: userID})
	return p, nil
}

// Admit performs the capacity check and insertion as one atomic step. It
// applies no block check and emits nothing; callers own those.
func (t *Tracker) Admit(ctx context.Context, postID, userID string) (*Post, error) {
	p, err := t.posts.Update(ctx, postID, func(p *Post) error {
		return p.Join(userID)
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return p, nil
}

// Release undoes an Admit of userID without emitting anything.
func (t *Tracker) Release(ctx context.Context, postID, userID string) error {
	_, err := t.posts.Update(ctx, postID, func(p *Post) error {
		return p.Leave(userID)
	})
	if err != nil {
		return mapStoreErr(err)
	}
	return nil
}

// Leave removes userID from the post.
func (t *Tracker) Leave(ctx context.Context, postID, userID string) (*Post, error) {
	p, err := t.posts.Update(ctx, postID, func(p *Post) error {
		return p.Leave(userID)
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}

	t.log.Info("participant left", "post_id", postID, "user_id", userID, "status", p.Status)
	t.emitter.Emit(p.HostID, notifications.KindParticipantLeft, notifications.Payload{PostID: postID, ActorID: userID})
	return p, nil
}

// Edit updates title and description. Capacity is immutable.
func (t *Tracker) Edit(ctx context.Context, postID string, in EditInput) (*Post, error) {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" || len(title) > maxTitleLen {
			return nil, apperr.Validation(apperr.CodeInvalidRequest, "title is required and must be at most 120 characters")
		}
		in.Title = &title
	}
	if in.Description != nil && len(*in.Description) > maxDescriptionLen {
		return nil, apperr.Validation(apperr.CodeInvalidRequest, "description must be at most 2000 characters")
	}

	p, err := t.posts.Update(ctx, postID, func(p *Post) error {
		if in.Title != nil {
			p.Title = *in.Title
		}
		if in.Description != nil {
			p.Description = *in.Description
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return p, nil
}

func (t *Tracker) Delete(ctx context.Context, postID string) error {
	if err := t.posts.Delete(ctx, postID); err != nil {
		return mapStoreErr(err)
	}
	t.log.Info("post deleted", "post_id", postID)
	return nil
}

// OwnerOf reports the host of post ref.
func (t *Tracker) OwnerOf(ctx context.Context, ref string) (string, bool, error) {
	p, err := t.posts.Get(ctx, ref)
	if errors.Is(err, ErrPostNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return p.HostID, true, nil
}

// CheckBlocked fails with blocked_by_host when hostID has blocked userID.
func (t *Tracker) CheckBlocked(ctx context.Context, hostID, userID string) error {
	if t.blocks == nil {
		return nil
	}
	blocked, err := t.blocks.IsBlocked(ctx, hostID, userID)
	if err != nil {
		return apperr.Internal(err)
	}
	if blocked {
		return apperr.Forbidden(apperr.CodeBlockedByHost, "the host has blocked you", principal.RoleFrom(ctx))
	}
	return nil
}

func mapStoreErr(err error) error {
	if errors.Is(err, ErrPostNotFound) {
		return apperr.NotFound("post")
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Internal(err)
}

func sortNewestFirst(ps []*Post) {
	slices.SortStableFunc(ps, func(a, b *Post) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
