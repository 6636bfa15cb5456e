package notifications

import (
	"context"
	"errors"

	"github.com/MahdiBaghbani/huddle-go/internal/components/apperr"
)

// Inbox is the read side of notifications for their recipients.
type Inbox struct {
	repo Repo
}

func NewInbox(repo Repo) *Inbox {
	return &Inbox{repo: repo}
}

// List returns recipientID's notifications, newest first.
func (i *Inbox) List(ctx context.Context, recipientID string) ([]*Notification, error) {
	ns, err := i.repo.ListByRecipient(ctx, recipientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if ns == nil {
		ns = []*Notification{}
	}
	return ns, nil
}

// MarkRead marks one notification read and returns it.
func (i *Inbox) MarkRead(ctx context.Context, id string) (*Notification, error) {
	if err := i.repo.MarkRead(ctx, id); err != nil {
		return nil, mapErr(err)
	}
	n, err := i.repo.Get(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return n, nil
}

// OwnerOf reports the recipient of notification ref.
func (i *Inbox) OwnerOf(ctx context.Context, ref string) (string, bool, error) {
	n, err := i.repo.Get(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return n.RecipientID, true, nil
}

func mapErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("notification")
	}
	return apperr.Internal(err)
}
