package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "registra/pkg/domain"
	"registra/pkg/platform/audit"
	auditmemory "registra/pkg/platform/audit/store/memory"
	"registra/pkg/platform/audit/worker"
)

func TestQueueDrainsIntoBackingStore(t *testing.T) {
	backing := auditmemory.New()
	queue, w := worker.NewQueue(backing, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	userID := id.NewUserID()
	require.NoError(t, queue.Append(ctx, audit.Event{
		Timestamp: time.Now(),
		UserID:    userID,
		Action:    "user_created",
		Outcome:   "success",
	}))

	require.Eventually(t, func() bool {
		events, err := queue.ListByUser(ctx, userID)
		return err == nil && len(events) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestQueueRejectsWhenFull(t *testing.T) {
	// No worker draining: the bounded queue must reject, not block.
	queue, _ := worker.NewQueue(auditmemory.New(), 1)

	ctx := context.Background()
	require.NoError(t, queue.Append(ctx, audit.Event{Action: "user_created"}))
	assert.Error(t, queue.Append(ctx, audit.Event{Action: "user_updated"}))
}
