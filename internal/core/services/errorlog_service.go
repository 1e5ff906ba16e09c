package services

import (
	"context"
	"sort"
	"time"

	"github.com/relia/scheduler/internal/core/ports"
	"github.com/relia/scheduler/internal/domain"
	"github.com/relia/scheduler/internal/infrastructure/logger"
	"github.com/relia/scheduler/internal/infrastructure/store"
)

// ErrorLogService keeps the audit trail of validation and lifecycle
// failures. Records are queried per author, never surfaced inline in status
// responses.
type ErrorLogService struct {
	store  ports.Store
	keys   store.Keys
	logger *logger.Logger
}

func NewErrorLogService(st ports.Store, keys store.Keys, log *logger.Logger) *ErrorLogService {
	return &ErrorLogService{store: st, keys: keys, logger: log}
}

func (s *ErrorLogService) Record(ctx context.Context, taskID, author, message string) error {
	if _, err := s.store.SAdd(ctx, s.keys.Errors(), taskID); err != nil {
		return err
	}
	err := s.store.HSet(ctx, s.keys.Error(taskID), map[string]string{
		domain.FieldUniqueIdentifier: taskID,
		domain.FieldAuthor:           author,
		domain.FieldErrorMessage:     message,
		domain.FieldErrorTime:        time.Now().Format(domain.ISOTime),
	})
	if err != nil {
		return err
	}
	s.logger.Warnw("error_recorded", "task", taskID, "author", author, "message", message)
	return nil
}

// Recent scans both the task set and the error-record set for entries
// authored by author with a non-null error message, and returns the most
// recent limit entries ordered oldest first.
func (s *ErrorLogService) Recent(ctx context.Context, author string, limit int) ([]ports.ErrorEntry, error) {
	var entries []ports.ErrorEntry

	taskIDs, err := s.store.SMembers(ctx, s.keys.Tasks())
	if err != nil {
		return nil, err
	}
	for _, id := range taskIDs {
		entry, ok, err := s.entryFrom(ctx, s.keys.Task(id), author)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, entry)
		}
	}

	errorIDs, err := s.store.SMembers(ctx, s.keys.Errors())
	if err != nil {
		return nil, err
	}
	for _, id := range errorIDs {
		entry, ok, err := s.entryFrom(ctx, s.keys.Error(id), author)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		ti, erri := time.Parse(domain.ISOTime, entries[i].Time)
		tj, errj := time.Parse(domain.ISOTime, entries[j].Time)
		if erri != nil || errj != nil {
			return entries[i].Time < entries[j].Time
		}
		return ti.Before(tj)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func (s *ErrorLogService) entryFrom(ctx context.Context, key, author string) (ports.ErrorEntry, bool, error) {
	vals, err := s.store.HMGet(ctx, key,
		domain.FieldAuthor, domain.FieldErrorMessage,
		domain.FieldUniqueIdentifier, domain.FieldErrorTime)
	if err != nil {
		return ports.ErrorEntry{}, false, err
	}
	if vals[0] != author || vals[1] == domain.Null || vals[1] == "" {
		return ports.ErrorEntry{}, false, nil
	}
	return ports.ErrorEntry{TaskID: vals[2], Message: vals[1], Time: vals[3]}, true, nil
}
