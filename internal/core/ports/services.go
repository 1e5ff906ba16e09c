package ports

import (
	"context"

	"github.com/relia/scheduler/internal/domain"
)

type CredentialVault interface {
	// VerifyDevice authenticates a "base:r"/"base:t" header and password.
	// Any parse failure, unknown device, or mismatch yields ok=false with no
	// partial information about which check failed.
	VerifyDevice(ctx context.Context, deviceHeader, password string) (domain.DeviceIdentity, bool)
	VerifyBackend(secret string) bool
}

type CreateTaskInput struct {
	Author    string
	SessionID string
	// Priority is nil when the submission carried none or an unparsable
	// value; the registry substitutes the configured default.
	Priority *int
	Files    *TaskFiles
}

// TaskFiles is the submitted payload pair. A nil role entry means the
// submission omitted it entirely.
type TaskFiles struct {
	Receiver    *domain.Payload
	Transmitter *domain.Payload
}

type TaskRegistry interface {
	Create(ctx context.Context, input CreateTaskInput) (string, error)
	Get(ctx context.Context, taskID string) (*domain.Task, error)
	// Delete refuses terminal tasks and, when requester is non-empty,
	// authors other than the requester.
	Delete(ctx context.Context, taskID, requester string) error
}

type PriorityQueue interface {
	Enqueue(ctx context.Context, priority int, taskID string) error
	// DequeueNext pops the oldest task of the lowest-numbered non-empty
	// priority bucket. ok=false means every bucket was empty at the moment
	// of iteration.
	DequeueNext(ctx context.Context) (string, bool, error)
}

// AssignmentResult is the payload handed to a device on a successful bind.
type AssignmentResult struct {
	TaskID    string
	Filename  string
	Content   string
	Filetype  string
	SessionID string
	// MaxTime is the run-time budget in seconds the device must honor.
	MaxTime float64
}

// DeviceStatus is the observability view of one device role.
type DeviceStatus struct {
	LastCheck  string `json:"last_check"`
	Assignment string `json:"assignment"`
}

type AssignmentCoordinator interface {
	RequestReceiver(ctx context.Context, device domain.DeviceIdentity, waitSeconds int) (*AssignmentResult, error)
	RequestTransmitter(ctx context.Context, device domain.DeviceIdentity, waitSeconds int) (*AssignmentResult, error)
	// Complete advances the two-phase completion state machine. The returned
	// status is StatusError when the current state admits no transition for
	// the reporting role.
	Complete(ctx context.Context, deviceBase string, role domain.DeviceRole, taskID string) (domain.TaskStatus, error)
	ReportError(ctx context.Context, taskID, message, errorTime string) error
	AvailableDevices(ctx context.Context) (map[string]DeviceStatus, error)
}

type LivenessMonitor interface {
	// Touch stamps the task as recently polled by its author.
	Touch(ctx context.Context, taskID string) error
	// StopIfInactive force-completes the task when the author has been
	// silent beyond the polling budget; reports whether it did.
	StopIfInactive(ctx context.Context, deviceBase, taskID string) (bool, error)
}

type ErrorEntry struct {
	TaskID  string
	Message string
	Time    string
}

type ErrorLog interface {
	Record(ctx context.Context, taskID, author, message string) error
	// Recent returns up to limit errors for the author, oldest first.
	Recent(ctx context.Context, author string, limit int) ([]ErrorEntry, error)
}
