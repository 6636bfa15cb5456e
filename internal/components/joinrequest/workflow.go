package joinrequest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/huddle-go/internal/components/apperr"
	"github.com/MahdiBaghbani/huddle-go/internal/components/meetup"
	"github.com/MahdiBaghbani/huddle-go/internal/components/notifications"
	"github.com/MahdiBaghbani/huddle-go/internal/components/principal"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/logutil"
)

const maxMessageLen = 500

// Posts is the slice of the post service the workflow drives.
type Posts interface {
	Get(ctx context.Context, id string) (*meetup.Post, error)
	Admit(ctx context.Context, postID, userID string) (*meetup.Post, error)
	Release(ctx context.Context, postID, userID string) error
	CheckBlocked(ctx context.Context, hostID, userID string) error
}

// Workflow runs submit, accept and reject. Transitions on one request, and
// submissions for one (post, requester) pair, are serialized in process; the
// store's atomic CreatePending and Resolve hold the same invariants across
// processes.
type Workflow struct {
	requests Store
	posts    Posts
	emitter  notifications.Emitter
	locks    *keyLock
	now      func() time.Time
	log      *slog.Logger
}

// NewWorkflow creates a Workflow. emitter may be nil.
func NewWorkflow(requests Store, posts Posts, emitter notifications.Emitter, log *slog.Logger) *Workflow {
	if emitter == nil {
		emitter = notifications.EmitterFunc(func(string, string, notifications.Payload) {})
	}
	return &Workflow{
		requests: requests,
		posts:    posts,
		emitter:  emitter,
		locks:    newKeyLock(),
		now:      time.Now,
		log:      logutil.NoopIfNil(log),
	}
}

// Submit creates a pending request from requesterID to join postID.
func (w *Workflow) Submit(ctx context.Context, requesterID, postID, message string) (*JoinRequest, error) {
	message = strings.TrimSpace(message)
	if len(message) > maxMessageLen {
		return nil, apperr.Validation(apperr.CodeInvalidRequest, "message must be at most 500 characters")
	}

	unlock := w.locks.Lock("pair:" + pairKey(postID, requesterID))
	defer unlock()

	post, err := w.posts.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.HostID == requesterID {
		return nil, apperr.ErrSelfRequest
	}
	if post.IsParticipant(requesterID) {
		return nil, apperr.ErrAlreadyParticipant
	}
	if err := w.posts.CheckBlocked(ctx, post.HostID, requesterID); err != nil {
		return nil, err
	}
	pending, err := w.requests.HasPending(ctx, postID, requesterID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if pending {
		return nil, apperr.ErrDuplicatePending
	}
	if post.IsFull() {
		return nil, apperr.ErrCapacityFull
	}
	if err := ctx.Err(); err != nil {
		return nil, apperr.Internal(err)
	}

	r := &JoinRequest{
		ID:          newID(),
		PostID:      postID,
		RequesterID: requesterID,
		HostID:      post.HostID,
		Status:      StatusPending,
		Message:     message,
		CreatedAt:   w.now(),
	}
	if err := w.requests.CreatePending(context.WithoutCancel(ctx), r); err != nil {
		return nil, mapStoreErr(err)
	}

	w.log.Info("join request submitted", "request_id", r.ID, "post_id", postID, "requester_id", requesterID)
	w.emitter.Emit(r.HostID, notifications.KindJoinRequestReceived, notifications.Payload{
		PostID: postID, RequestID: r.ID, ActorID: requesterID,
	})
	return r, nil
}

// Accept admits the requester, re-checking capacity now, and marks the
// request accepted. On capacity_full or already_participant the request
// stays pending.
func (w *Workflow) Accept(ctx context.Context, hostID, requestID string) (*JoinRequest, error) {
	unlock := w.locks.Lock("request:" + requestID)
	defer unlock()

	r, err := w.pendingFor(ctx, hostID, requestID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperr.Internal(err)
	}

	if _, err := w.posts.Admit(ctx, r.PostID, r.RequesterID); err != nil {
		return nil, err
	}

	// The participant is committed; finish the transition regardless of the
	// caller going away.
	commitCtx := context.WithoutCancel(ctx)
	resolved, err := w.requests.Resolve(commitCtx, requestID, StatusAccepted, w.now())
	if err != nil {
		if rerr := w.posts.Release(commitCtx, r.PostID, r.RequesterID); rerr != nil {
			w.log.Error("failed to release participant after accept conflict",
				"request_id", requestID, "post_id", r.PostID, "error", rerr)
		}
		return nil, mapStoreErr(err)
	}

	w.log.Info("join request accepted", "request_id", requestID, "post_id", r.PostID, "requester_id", r.RequesterID)
	w.emitter.Emit(r.RequesterID, notifications.KindJoinRequestAccepted, notifications.Payload{
		PostID: r.PostID, RequestID: requestID, ActorID: hostID,
	})
	return resolved, nil
}

// Reject marks the request rejected. The post is never touched.
func (w *Workflow) Reject(ctx context.Context, hostID, requestID string) (*JoinRequest, error) {
	unlock := w.locks.Lock("request:" + requestID)
	defer unlock()

	r, err := w.pendingFor(ctx, hostID, requestID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperr.Internal(err)
	}

	resolved, err := w.requests.Resolve(context.WithoutCancel(ctx), requestID, StatusRejected, w.now())
	if err != nil {
		return nil, mapStoreErr(err)
	}

	w.log.Info("join request rejected", "request_id", requestID, "post_id", r.PostID, "requester_id", r.RequesterID)
	w.emitter.Emit(r.RequesterID, notifications.KindJoinRequestRejected, notifications.Payload{
		PostID: r.PostID, RequestID: requestID, ActorID: hostID,
	})
	return resolved, nil
}

func (w *Workflow) Get(ctx context.Context, requestID string) (*JoinRequest, error) {
	r, err := w.requests.Get(ctx, requestID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return r, nil
}

// ListForPost lists a post's requests, optionally filtered by status.
func (w *Workflow) ListForPost(ctx context.Context, postID, status string) ([]*JoinRequest, error) {
	if status != "" && !ValidStatus(status) {
		return nil, apperr.Validation(apperr.CodeInvalidRequest, "status must be pending, accepted or rejected")
	}
	rs, err := w.requests.ListByPost(ctx, postID, status)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if rs == nil {
		rs = []*JoinRequest{}
	}
	return rs, nil
}

// ListMine lists requests made by requesterID, newest first.
func (w *Workflow) ListMine(ctx context.Context, requesterID string) ([]*JoinRequest, error) {
	rs, err := w.requests.ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if rs == nil {
		rs = []*JoinRequest{}
	}
	return rs, nil
}

func (w *Workflow) HasPending(ctx context.Context, postID, requesterID string) (bool, error) {
	ok, err := w.requests.HasPending(ctx, postID, requesterID)
	if err != nil {
		return false, apperr.Internal(err)
	}
	return ok, nil
}

// OwnerOf reports the host of request ref.
func (w *Workflow) OwnerOf(ctx context.Context, ref string) (string, bool, error) {
	r, err := w.requests.Get(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return r.HostID, true, nil
}

func (w *Workflow) pendingFor(ctx context.Context, hostID, requestID string) (*JoinRequest, error) {
	r, err := w.requests.Get(ctx, requestID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if r.HostID != hostID {
		return nil, apperr.Forbidden(apperr.CodeNotOwner, "only the host may respond to this request", principal.RoleFrom(ctx))
	}
	if r.Status != StatusPending {
		return nil, apperr.ErrAlreadyResolved
	}
	return r, nil
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("join request")
	case errors.Is(err, ErrDuplicatePending):
		return apperr.ErrDuplicatePending
	case errors.Is(err, ErrNotPending):
		return apperr.ErrAlreadyResolved
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Internal(err)
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
