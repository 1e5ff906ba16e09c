package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/relia/scheduler/internal/core/ports"
	"github.com/relia/scheduler/internal/domain"
	"github.com/relia/scheduler/internal/infrastructure/logger"
	"github.com/relia/scheduler/internal/infrastructure/store"
)

// RegistryService owns the task entity lifecycle: creation with payload
// validation, reads, and author-scoped deletion.
type RegistryService struct {
	store           ports.Store
	keys            store.Keys
	queue           *QueueService
	errorLog        *ErrorLogService
	logger          *logger.Logger
	maxPriority     int
	defaultPriority int
}

type RegistryServiceConfig struct {
	Store           ports.Store
	Keys            store.Keys
	Queue           *QueueService
	ErrorLog        *ErrorLogService
	Logger          *logger.Logger
	MaxPriority     int
	DefaultPriority int
}

func NewRegistryService(cfg RegistryServiceConfig) *RegistryService {
	return &RegistryService{
		store:           cfg.Store,
		keys:            cfg.Keys,
		queue:           cfg.Queue,
		errorLog:        cfg.ErrorLog,
		logger:          cfg.Logger,
		maxPriority:     cfg.MaxPriority,
		defaultPriority: cfg.DefaultPriority,
	}
}

// Create validates the submission, allocates a collision-free identifier and
// enqueues the task. A malformed submission still consumes the identifier:
// membership in the task set records that a creation was attempted, not that
// the task is active.
func (s *RegistryService) Create(ctx context.Context, input ports.CreateTaskInput) (string, error) {
	priority := s.normalizePriority(input.Priority)

	taskID, err := s.newTaskID(ctx)
	if err != nil {
		return "", err
	}

	if verr := s.validateFiles(ctx, taskID, input.Author, input.Files); verr != nil {
		return "", verr
	}

	now := time.Now()
	fields := map[string]string{
		domain.FieldUniqueIdentifier:           taskID,
		domain.FieldAuthor:                     input.Author,
		domain.FieldTransmitterFilename:        input.Files.Transmitter.Filename,
		domain.FieldTransmitterFile:            input.Files.Transmitter.Content,
		domain.FieldTransmitterFiletype:        input.Files.Transmitter.Type,
		domain.FieldReceiverFilename:           input.Files.Receiver.Filename,
		domain.FieldReceiverFile:               input.Files.Receiver.Content,
		domain.FieldReceiverFiletype:           input.Files.Receiver.Type,
		domain.FieldSessionID:                  input.SessionID,
		domain.FieldStartedTime:                now.Format(domain.ISOTime),
		domain.FieldPriority:                   strconv.Itoa(priority),
		domain.FieldTransmitterAssigned:        domain.Null,
		domain.FieldReceiverAssigned:           domain.Null,
		domain.FieldTransmitterProcessingStart: domain.Null,
		domain.FieldReceiverProcessingStart:    domain.Null,
		domain.FieldStatus:                     string(domain.StatusQueued),
		domain.FieldErrorMessage:               domain.Null,
		domain.FieldErrorTime:                  domain.Null,
		domain.FieldLocalTimeRemaining:         "0",
		domain.FieldInactiveSince:              formatUnix(now),
	}
	if err := s.store.HSet(ctx, s.keys.Task(taskID), fields); err != nil {
		return "", err
	}

	if err := s.queue.Enqueue(ctx, priority, taskID); err != nil {
		return "", err
	}

	s.logger.Infow("task_queued", "task", taskID, "priority", priority, "author", input.Author)
	return taskID, nil
}

func (s *RegistryService) Get(ctx context.Context, taskID string) (*domain.Task, error) {
	vals, err := s.store.HMGet(ctx, s.keys.Task(taskID),
		domain.FieldAuthor, domain.FieldStatus,
		domain.FieldReceiverAssigned, domain.FieldTransmitterAssigned, domain.FieldDeviceAssigned,
		domain.FieldReceiverFilename, domain.FieldTransmitterFilename,
		domain.FieldReceiverFile, domain.FieldTransmitterFile,
		domain.FieldReceiverFiletype, domain.FieldTransmitterFiletype,
		domain.FieldSessionID, domain.FieldPriority, domain.FieldStartedTime,
		domain.FieldErrorMessage, domain.FieldErrorTime)
	if err != nil {
		return nil, err
	}
	if vals[0] == "" {
		return nil, ErrTaskNotFound
	}

	status, err := domain.ParseStatus(vals[1])
	if err != nil {
		return nil, fmt.Errorf("registry: task %s: %w", taskID, err)
	}
	priority, _ := strconv.Atoi(vals[12])
	createdAt, _ := time.Parse(domain.ISOTime, vals[13])

	return &domain.Task{
		ID:                  taskID,
		Author:              vals[0],
		Status:              status,
		ReceiverAssigned:    vals[2],
		TransmitterAssigned: vals[3],
		DeviceAssigned:      vals[4],
		Receiver:            domain.Payload{Filename: vals[5], Content: vals[7], Type: vals[9]},
		Transmitter:         domain.Payload{Filename: vals[6], Content: vals[8], Type: vals[10]},
		SessionID:           vals[11],
		Priority:            priority,
		CreatedAt:           createdAt,
		ErrorMessage:        vals[14],
		ErrorTime:           vals[15],
	}, nil
}

// Delete marks the task deleted, prunes its bucket entry if still present,
// releases a bound device's assignment slot and drops set membership. The
// bucket removal is best-effort: a concurrent assignment may have popped the
// entry already.
func (s *RegistryService) Delete(ctx context.Context, taskID, requester string) error {
	vals, err := s.store.HMGet(ctx, s.keys.Task(taskID),
		domain.FieldPriority, domain.FieldAuthor, domain.FieldStatus, domain.FieldReceiverAssigned)
	if err != nil {
		return err
	}
	priority, author, rawStatus, receiverAssigned := vals[0], vals[1], vals[2], vals[3]

	if priority == "" {
		if rerr := s.errorLog.Record(ctx, taskID, "unknown", "Task identifier does not exist"); rerr != nil {
			return rerr
		}
		return ErrTaskNotFound
	}

	status, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return fmt.Errorf("registry: task %s: %w", taskID, err)
	}
	if status.Terminal() {
		return ErrTaskFinished
	}
	if requester != "" && requester != author {
		if rerr := s.errorLog.Record(ctx, taskID, requester, "Task belongs to another user"); rerr != nil {
			return rerr
		}
		return ErrNotTaskAuthor
	}

	if err := s.store.HSet(ctx, s.keys.Task(taskID), map[string]string{
		domain.FieldStatus: string(domain.StatusDeleted),
	}); err != nil {
		return err
	}

	if err := s.queue.Remove(ctx, priority, taskID); err != nil {
		return err
	}

	if receiverAssigned != "" && receiverAssigned != domain.Null {
		base, _, _ := strings.Cut(receiverAssigned, ":")
		if err := s.store.Set(ctx, s.keys.DeviceAssignment(base), domain.Null); err != nil {
			return err
		}
	}

	if err := s.store.SRem(ctx, s.keys.Tasks(), taskID); err != nil {
		return err
	}

	s.logger.Infow("task_deleted", "task", taskID, "requester", requester)
	return nil
}

func (s *RegistryService) normalizePriority(p *int) int {
	if p == nil {
		return s.defaultPriority
	}
	if *p < 0 || *p > s.maxPriority {
		s.logger.Warnw("priority_out_of_range", "priority", *p, "max", s.maxPriority, "using", s.defaultPriority)
		return s.defaultPriority
	}
	return *p
}

// newTaskID draws random URL-safe identifiers until the uniqueness set
// accepts one. The identifier doubles as an unguessable capability token.
func (s *RegistryService) newTaskID(ctx context.Context) (string, error) {
	for {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		id := base64.RawURLEncoding.EncodeToString(buf)
		added, err := s.store.SAdd(ctx, s.keys.Tasks(), id)
		if err != nil {
			return "", err
		}
		if added {
			return id, nil
		}
	}
}

func (s *RegistryService) validateFiles(ctx context.Context, taskID, author string, files *ports.TaskFiles) *ValidationError {
	if files == nil {
		return s.reject(ctx, taskID, author, "No grc_files provided")
	}
	for _, role := range []struct {
		name    string
		payload *domain.Payload
	}{
		{"receiver", files.Receiver},
		{"transmitter", files.Transmitter},
	} {
		if role.payload == nil {
			return s.reject(ctx, taskID, author, fmt.Sprintf("No %s found in grc_files", role.name))
		}
		if role.payload.Filename == "" {
			return s.reject(ctx, taskID, author, fmt.Sprintf("No filename found in %s in grc_files", role.name))
		}
		if role.payload.Content == "" {
			return s.reject(ctx, taskID, author, fmt.Sprintf("No content found in %s in grc_files", role.name))
		}
		if role.payload.Type == "grc" && !validGRCContent(role.payload.Content) {
			return s.reject(ctx, taskID, author, fmt.Sprintf("Invalid content (not yaml) for provided %s", role.name))
		}
	}
	return nil
}

func (s *RegistryService) reject(ctx context.Context, taskID, author, message string) *ValidationError {
	if err := s.errorLog.Record(ctx, taskID, author, message); err != nil {
		s.logger.Errorw("error_record_failed", "task", taskID, "error", err)
	}
	return &ValidationError{Message: message}
}

func formatUnix(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 6, 64)
}
