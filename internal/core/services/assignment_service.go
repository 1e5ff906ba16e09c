package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/relia/scheduler/internal/core/ports"
	"github.com/relia/scheduler/internal/domain"
	"github.com/relia/scheduler/internal/infrastructure/logger"
	"github.com/relia/scheduler/internal/infrastructure/store"
)

const lastCheckTTL = 24 * time.Hour

// AssignmentService matches long-polling devices to queued tasks. The
// receiver is the primary role: it dequeues from the priority buckets and
// its binding parks the task id in the device-base assignment slot; the
// transmitter of the same base only follows that pointer, never the queue.
type AssignmentService struct {
	store          ports.Store
	keys           store.Keys
	queue          *QueueService
	liveness       *LivenessService
	errorLog       *ErrorLogService
	logger         *logger.Logger
	maxTimeRunning time.Duration
	pollInterval   time.Duration
	maxWait        time.Duration
}

type AssignmentServiceConfig struct {
	Store          ports.Store
	Keys           store.Keys
	Queue          *QueueService
	Liveness       *LivenessService
	ErrorLog       *ErrorLogService
	Logger         *logger.Logger
	MaxTimeRunning time.Duration
	PollInterval   time.Duration
	MaxWait        time.Duration
}

func NewAssignmentService(cfg AssignmentServiceConfig) *AssignmentService {
	return &AssignmentService{
		store:          cfg.Store,
		keys:           cfg.Keys,
		queue:          cfg.Queue,
		liveness:       cfg.Liveness,
		errorLog:       cfg.ErrorLog,
		logger:         cfg.Logger,
		maxTimeRunning: cfg.MaxTimeRunning,
		pollInterval:   cfg.PollInterval,
		maxWait:        cfg.MaxWait,
	}
}

// RequestReceiver hands the device the next queued task in priority order,
// long-polling up to the wait budget. A device whose previous task is still
// within its run-time budget is refused; past the budget the stale task is
// force-completed and the device becomes assignable again.
func (s *AssignmentService) RequestReceiver(ctx context.Context, device domain.DeviceIdentity, waitSeconds int) (*ports.AssignmentResult, error) {
	s.heartbeat(ctx, device)

	if err := s.checkDeviceFree(ctx, device.Base); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(s.clampWait(waitSeconds))
	for {
		taskID, ok, err := s.queue.DequeueNext(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			stopped, err := s.liveness.StopIfInactive(ctx, device.Base, taskID)
			if err != nil {
				return nil, err
			}
			if !stopped {
				return s.bindReceiver(ctx, device, taskID)
			}
			// reclaimed mid-dequeue; treat as if the bucket was empty
		}
		if !s.sleep(ctx, deadline) {
			return nil, nil
		}
	}
}

// RequestTransmitter waits for the device base's assignment slot to hold a
// task in receiver-assigned state, then binds the transmitter side. It never
// dequeues from a priority bucket.
func (s *AssignmentService) RequestTransmitter(ctx context.Context, device domain.DeviceIdentity, waitSeconds int) (*ports.AssignmentResult, error) {
	s.heartbeat(ctx, device)

	deadline := time.Now().Add(s.clampWait(waitSeconds))
	for {
		taskID, ok, err := s.store.Get(ctx, s.keys.DeviceAssignment(device.Base))
		if err != nil {
			return nil, err
		}
		if ok && taskID != "" && taskID != domain.Null {
			assignable, err := s.transmitterAssignable(ctx, device.Base, taskID)
			if err != nil {
				return nil, err
			}
			if assignable {
				return s.bindTransmitter(ctx, device, taskID)
			}
		}
		if !s.sleep(ctx, deadline) {
			return nil, nil
		}
	}
}

func (s *AssignmentService) transmitterAssignable(ctx context.Context, deviceBase, taskID string) (bool, error) {
	raw, found, err := s.store.HGet(ctx, s.keys.Task(taskID), domain.FieldStatus)
	if err != nil || !found {
		return false, err
	}
	status, err := domain.ParseStatus(raw)
	if err != nil {
		s.logger.Warnw("task_status_unparsable", "task", taskID, "status", raw)
		return false, nil
	}
	if status != domain.StatusReceiverAssigned {
		return false, nil
	}
	stopped, err := s.liveness.StopIfInactive(ctx, deviceBase, taskID)
	if err != nil {
		return false, err
	}
	return !stopped, nil
}

// Complete advances the two-phase completion machine. A task reaches
// completed only once both roles have reported, in either order; the two
// still-processing states record that one side is done. States admitting no
// transition for the reporting role leave the task untouched and yield
// StatusError. The receiver branch always clears the assignment slot so the
// device base frees up even on a duplicate report.
func (s *AssignmentService) Complete(ctx context.Context, deviceBase string, role domain.DeviceRole, taskID string) (domain.TaskStatus, error) {
	raw, found, err := s.store.HGet(ctx, s.keys.Task(taskID), domain.FieldStatus)
	if err != nil {
		return domain.StatusError, err
	}
	var current domain.TaskStatus
	if found {
		if current, err = domain.ParseStatus(raw); err != nil {
			s.logger.Warnw("task_status_unparsable", "task", taskID, "status", raw)
			current = ""
		}
	}

	result := domain.StatusError
	switch role {
	case domain.RoleReceiver:
		switch current {
		case domain.StatusReceiverAssigned, domain.StatusReceiverStillProcessing:
			result = domain.StatusCompleted
		case domain.StatusFullyAssigned:
			result = domain.StatusTransmitterStillProcessing
		}
		if result != domain.StatusError {
			if err := s.setStatus(ctx, taskID, result); err != nil {
				return domain.StatusError, err
			}
		}
		if err := s.store.Set(ctx, s.keys.DeviceAssignment(deviceBase), domain.Null); err != nil {
			return domain.StatusError, err
		}
	case domain.RoleTransmitter:
		switch current {
		case domain.StatusFullyAssigned:
			result = domain.StatusReceiverStillProcessing
		case domain.StatusTransmitterStillProcessing:
			result = domain.StatusCompleted
		}
		if result != domain.StatusError {
			if err := s.setStatus(ctx, taskID, result); err != nil {
				return domain.StatusError, err
			}
		}
	}

	if result != domain.StatusError {
		s.logger.Infow("task_completion_reported", "task", taskID, "device", deviceBase, "role", role, "status", result)
	}
	return result, nil
}

// ReportError overwrites the task's diagnostic error fields. Status is left
// alone; this is a diagnostics channel, not a lifecycle transition.
func (s *AssignmentService) ReportError(ctx context.Context, taskID, message, errorTime string) error {
	return s.store.HSet(ctx, s.keys.Task(taskID), map[string]string{
		domain.FieldErrorMessage: message,
		domain.FieldErrorTime:    errorTime,
	})
}

// AvailableDevices reports, per device role, when it last asked for work and
// what its base is currently bound to. Observability only.
func (s *AssignmentService) AvailableDevices(ctx context.Context) (map[string]ports.DeviceStatus, error) {
	keys, err := s.store.Keys(ctx, s.keys.DeviceLastCheckPattern())
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	out := make(map[string]ports.DeviceStatus, len(keys))
	for _, key := range keys {
		parts := strings.Split(key, ":")
		if len(parts) < 3 {
			continue
		}
		deviceID := strings.Join(parts[len(parts)-3:len(parts)-1], ":")
		deviceBase := parts[len(parts)-3]

		lastCheck := "Unknown number of seconds ago"
		if raw, ok, _ := s.store.Get(ctx, key); ok {
			if t, err := time.Parse(domain.ISOTime, raw); err == nil {
				lastCheck = fmt.Sprintf("%.1f seconds ago", now.Sub(t).Seconds())
			}
		}
		assignment, _, _ := s.store.Get(ctx, s.keys.DeviceAssignment(deviceBase))
		out[deviceID] = ports.DeviceStatus{LastCheck: lastCheck, Assignment: assignment}
	}
	return out, nil
}

// checkDeviceFree rejects the request while the device's current task is
// within its run-time budget, and reclaims the task once it is past it.
// Read-then-conditionally-write: the narrow race with a concurrent
// completion is known and accepted, the store offers no primitive to close
// it without a lock manager.
func (s *AssignmentService) checkDeviceFree(ctx context.Context, deviceBase string) error {
	current, ok, err := s.store.Get(ctx, s.keys.DeviceAssignment(deviceBase))
	if err != nil {
		return err
	}
	if !ok || current == "" || current == domain.Null {
		return nil
	}

	vals, err := s.store.HMGet(ctx, s.keys.Task(current),
		domain.FieldAuthor, domain.FieldReceiverProcessingStart)
	if err != nil {
		return err
	}
	author, startedRaw := vals[0], vals[1]

	if started, perr := time.Parse(domain.ISOTime, startedRaw); perr == nil {
		if time.Since(started) < s.maxTimeRunning {
			return ErrDeviceInUse
		}
	}

	if err := s.setStatus(ctx, current, domain.StatusCompleted); err != nil {
		return err
	}
	if err := s.store.Set(ctx, s.keys.DeviceAssignment(deviceBase), domain.Null); err != nil {
		return err
	}
	if err := s.errorLog.Record(ctx, current, author, "Receiver side: task timed out"); err != nil {
		return err
	}
	s.logger.Warnw("stale_task_reclaimed", "task", current, "device", deviceBase)
	return nil
}

func (s *AssignmentService) bindReceiver(ctx context.Context, device domain.DeviceIdentity, taskID string) (*ports.AssignmentResult, error) {
	t := s.keys.Task(taskID)
	vals, err := s.store.HMGet(ctx, t,
		domain.FieldReceiverFilename, domain.FieldReceiverFile,
		domain.FieldSessionID, domain.FieldReceiverFiletype)
	if err != nil {
		return nil, err
	}

	if err := s.store.HSet(ctx, t, map[string]string{
		domain.FieldReceiverAssigned: device.ID(),
		domain.FieldDeviceAssigned:   device.Base,
		domain.FieldStatus:           string(domain.StatusReceiverAssigned),
	}); err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, s.keys.DeviceAssignment(device.Base), taskID); err != nil {
		return nil, err
	}
	if err := s.store.HSet(ctx, t, map[string]string{
		domain.FieldReceiverProcessingStart: time.Now().Format(domain.ISOTime),
	}); err != nil {
		return nil, err
	}
	if _, err := s.store.SAdd(ctx, store.SessionDevices(vals[2]), device.ID()); err != nil {
		return nil, err
	}

	s.logger.Infow("receiver_assigned", "task", taskID, "device", device.Base)
	return &ports.AssignmentResult{
		TaskID:    taskID,
		Filename:  vals[0],
		Content:   vals[1],
		SessionID: vals[2],
		Filetype:  vals[3],
		MaxTime:   s.maxTimeRunning.Seconds(),
	}, nil
}

func (s *AssignmentService) bindTransmitter(ctx context.Context, device domain.DeviceIdentity, taskID string) (*ports.AssignmentResult, error) {
	t := s.keys.Task(taskID)
	vals, err := s.store.HMGet(ctx, t,
		domain.FieldTransmitterFilename, domain.FieldTransmitterFile,
		domain.FieldSessionID, domain.FieldTransmitterFiletype)
	if err != nil {
		return nil, err
	}

	if err := s.store.HSet(ctx, t, map[string]string{
		domain.FieldTransmitterAssigned: device.ID(),
		domain.FieldStatus:              string(domain.StatusFullyAssigned),
	}); err != nil {
		return nil, err
	}
	if err := s.store.HSet(ctx, t, map[string]string{
		domain.FieldTransmitterProcessingStart: time.Now().Format(domain.ISOTime),
	}); err != nil {
		return nil, err
	}
	if _, err := s.store.SAdd(ctx, store.SessionDevices(vals[2]), device.ID()); err != nil {
		return nil, err
	}

	s.logger.Infow("transmitter_assigned", "task", taskID, "device", device.Base)
	return &ports.AssignmentResult{
		TaskID:    taskID,
		Filename:  vals[0],
		Content:   vals[1],
		SessionID: vals[2],
		Filetype:  vals[3],
		MaxTime:   s.maxTimeRunning.Seconds(),
	}, nil
}

func (s *AssignmentService) heartbeat(ctx context.Context, device domain.DeviceIdentity) {
	err := s.store.SetWithTTL(ctx, s.keys.DeviceLastCheck(device.ID()),
		time.Now().UTC().Format(domain.ISOTime), lastCheckTTL)
	if err != nil {
		s.logger.Warnw("heartbeat_write_failed", "device", device.ID(), "error", err)
	}
}

func (s *AssignmentService) setStatus(ctx context.Context, taskID string, status domain.TaskStatus) error {
	return s.store.HSet(ctx, s.keys.Task(taskID), map[string]string{
		domain.FieldStatus: string(status),
	})
}

func (s *AssignmentService) clampWait(seconds int) time.Duration {
	wait := time.Duration(seconds) * time.Second
	if wait > s.maxWait {
		wait = s.maxWait
	}
	if wait < time.Second {
		wait = time.Second
	}
	return wait
}

// sleep waits one poll interval, bounded by the deadline and the request
// context. It reports false when the wait budget is exhausted.
func (s *AssignmentService) sleep(ctx context.Context, deadline time.Time) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false
	}
	interval := s.pollInterval
	if interval > remaining {
		interval = remaining
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
