package services

import (
	"context"
	"strconv"

	"github.com/relia/scheduler/internal/core/ports"
	"github.com/relia/scheduler/internal/infrastructure/store"
)

// QueueService manages the per-priority FIFO buckets and the index of
// priorities that have ever held a task. The index is advisory: it is never
// pruned when a bucket drains, so probing an empty bucket is an accepted
// cheap no-op. That avoids "last element removed" bookkeeping races entirely.
type QueueService struct {
	store ports.Store
	keys  store.Keys
}

func NewQueueService(st ports.Store, keys store.Keys) *QueueService {
	return &QueueService{store: st, keys: keys}
}

func (s *QueueService) Enqueue(ctx context.Context, priority int, taskID string) error {
	p := strconv.Itoa(priority)
	if err := s.store.LPush(ctx, s.keys.PriorityQueue(p), taskID); err != nil {
		return err
	}
	return s.store.ZAddNX(ctx, s.keys.Priorities(), float64(priority), p)
}

// DequeueNext walks the priority index ascending and pops the head of the
// first non-empty bucket. The pop is a single atomic RPOP, so exactly one
// concurrent caller observes any given task id. The index is re-read on
// every call, so a freshly enqueued higher-priority task is visible to the
// very next dequeue.
func (s *QueueService) DequeueNext(ctx context.Context) (string, bool, error) {
	priorities, err := s.store.ZRange(ctx, s.keys.Priorities(), 0, -1)
	if err != nil {
		return "", false, err
	}
	for _, p := range priorities {
		taskID, ok, err := s.store.RPop(ctx, s.keys.PriorityQueue(p))
		if err != nil {
			return "", false, err
		}
		if ok {
			return taskID, true, nil
		}
	}
	return "", false, nil
}

// Remove best-effort deletes a queued task id from its bucket. A zero count
// is fine: a concurrent assignment may already have popped the entry.
func (s *QueueService) Remove(ctx context.Context, priority, taskID string) error {
	_, err := s.store.LRem(ctx, s.keys.PriorityQueue(priority), 1, taskID)
	return err
}
