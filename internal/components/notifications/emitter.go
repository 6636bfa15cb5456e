package notifications

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MahdiBaghbani/huddle-go/internal/platform/logutil"
)

const (
	DefaultQueueSize = 256
	persistTimeout   = 5 * time.Second
)

// AsyncEmitter queues notifications on a bounded channel drained by Run.
// Emit never blocks: when the queue is full or the worker has stopped the
// notification is dropped and logged.
type AsyncEmitter struct {
	repo  Repo
	queue chan *Notification

	// mu orders Emit against shutdown: once closed is set no send can
	// follow, so the final drain sees every accepted notification.
	mu     sync.Mutex
	closed bool

	dropped atomic.Int64
	now     func() time.Time
	log     *slog.Logger
}

// NewAsyncEmitter creates an emitter persisting into repo. size <= 0 uses
// DefaultQueueSize.
func NewAsyncEmitter(repo Repo, size int, log *slog.Logger) *AsyncEmitter {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &AsyncEmitter{
		repo:  repo,
		queue: make(chan *Notification, size),
		now:   time.Now,
		log:   logutil.NoopIfNil(log),
	}
}

// Emit enqueues a notification for recipientID.
func (e *AsyncEmitter) Emit(recipientID, kind string, payload Payload) {
	if recipientID == "" {
		return
	}
	n := &Notification{
		ID:               newID(),
		RecipientID:      recipientID,
		Kind:             kind,
		SubjectPostID:    payload.PostID,
		SubjectRequestID: payload.RequestID,
		ActorID:          payload.ActorID,
		CreatedAt:        e.now(),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		e.drop(n, "emitter stopped")
		return
	}
	select {
	case e.queue <- n:
	default:
		e.drop(n, "queue full")
	}
}

// Dropped reports how many notifications were discarded.
func (e *AsyncEmitter) Dropped() int64 { return e.dropped.Load() }

// Run persists queued notifications until ctx is done, then refuses new
// ones, drains whatever is already queued and returns. Cancel ctx only once
// nothing that may still commit a transition is running.
func (e *AsyncEmitter) Run(ctx context.Context) error {
	for {
		select {
		case n := <-e.queue:
			e.persist(n)
		case <-ctx.Done():
			e.mu.Lock()
			e.closed = true
			e.mu.Unlock()
			e.drain()
			return nil
		}
	}
}

func (e *AsyncEmitter) drain() {
	for {
		select {
		case n := <-e.queue:
			e.persist(n)
		default:
			return
		}
	}
}

func (e *AsyncEmitter) persist(n *Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := e.repo.Create(ctx, n); err != nil {
		e.log.Warn("failed to persist notification",
			"recipient_id", n.RecipientID, "kind", n.Kind, "error", err)
		return
	}
	e.log.Debug("notification persisted", "recipient_id", n.RecipientID, "kind", n.Kind)
}

func (e *AsyncEmitter) drop(n *Notification, reason string) {
	e.dropped.Add(1)
	e.log.Warn("notification dropped",
		"reason", reason, "recipient_id", n.RecipientID, "kind", n.Kind, "post_id", n.SubjectPostID)
}
