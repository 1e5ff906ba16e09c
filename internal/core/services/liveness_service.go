package services

import (
	"context"
	"strconv"
	"time"

	"github.com/relia/scheduler/internal/core/ports"
	"github.com/relia/scheduler/internal/domain"
	"github.com/relia/scheduler/internal/infrastructure/logger"
	"github.com/relia/scheduler/internal/infrastructure/store"
)

// CompletionReporter is the slice of the assignment coordinator the liveness
// monitor needs to reclaim an abandoned task.
type CompletionReporter interface {
	Complete(ctx context.Context, deviceBase string, role domain.DeviceRole, taskID string) (domain.TaskStatus, error)
}

// LivenessService tracks author polling and lazily reclaims tasks whose
// author went silent. There is no background sweep: the check runs before
// every assignment and status read, which is enough because a task only
// matters while some device or user is asking about it.
type LivenessService struct {
	store       ports.Store
	keys        store.Keys
	logger      *logger.Logger
	maxInactive time.Duration
	completer   CompletionReporter
}

func NewLivenessService(st ports.Store, keys store.Keys, log *logger.Logger, maxInactive time.Duration) *LivenessService {
	return &LivenessService{store: st, keys: keys, logger: log, maxInactive: maxInactive}
}

// SetCompleter wires the assignment coordinator in after construction; the
// two services reference each other.
func (s *LivenessService) SetCompleter(c CompletionReporter) {
	s.completer = c
}

// Touch stamps the task as polled. A missing task is ignored so a poll for a
// bad identifier cannot create a stray hash.
func (s *LivenessService) Touch(ctx context.Context, taskID string) error {
	_, exists, err := s.store.HGet(ctx, s.keys.Task(taskID), domain.FieldUniqueIdentifier)
	if err != nil || !exists {
		return err
	}
	return s.store.HSet(ctx, s.keys.Task(taskID), map[string]string{
		domain.FieldInactiveSince: formatUnix(time.Now()),
	})
}

// StopIfInactive force-completes both roles of a task whose author has not
// polled within the budget, freeing the bound devices for the next task.
// Both completion reports are issued; whichever applies given the current
// status takes effect and the other is a no-op.
func (s *LivenessService) StopIfInactive(ctx context.Context, deviceBase, taskID string) (bool, error) {
	if taskID == "" {
		return false, nil
	}
	raw, exists, err := s.store.HGet(ctx, s.keys.Task(taskID), domain.FieldInactiveSince)
	if err != nil || !exists {
		return false, err
	}
	since, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.logger.Warnw("inactive_since_unparsable", "task", taskID, "value", raw)
		return false, nil
	}
	elapsed := time.Since(time.Unix(0, int64(since*1e9)))
	if elapsed <= s.maxInactive {
		return false, nil
	}

	if _, err := s.completer.Complete(ctx, deviceBase, domain.RoleReceiver, taskID); err != nil {
		return false, err
	}
	if _, err := s.completer.Complete(ctx, deviceBase, domain.RoleTransmitter, taskID); err != nil {
		return false, err
	}
	s.logger.Warnw("task_reclaimed_inactive", "task", taskID, "device", deviceBase, "inactive", elapsed)
	return true, nil
}
