package worker

import (
	"context"
	"errors"

	id "registra/pkg/domain"
	"registra/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them. It keeps
// background processing testable without wiring queue implementations.
type Worker struct {
	store audit.Store
	inbox <-chan audit.Event
}

func New(store audit.Store, inbox <-chan audit.Event) *Worker {
	return &Worker{store: store, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}

// Queue fronts a Store with a bounded channel so audit persistence never
// blocks the request path. Reads go straight to the backing store and are
// eventually consistent with Append.
type Queue struct {
	backing audit.Store
	inbox   chan audit.Event
}

// NewQueue returns the queue plus the worker that drains it into backing.
func NewQueue(backing audit.Store, size int) (*Queue, *Worker) {
	inbox := make(chan audit.Event, size)
	return &Queue{backing: backing, inbox: inbox}, New(backing, inbox)
}

// Append enqueues the event. A full queue rejects rather than blocks; the
// caller treats audit failures as best-effort anyway.
func (q *Queue) Append(_ context.Context, event audit.Event) error {
	select {
	case q.inbox <- event:
		return nil
	default:
		return errors.New("audit queue full")
	}
}

func (q *Queue) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	return q.backing.ListByUser(ctx, userID)
}
