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

// testEnv wires the full service graph over an in-memory store.
type testEnv struct {
	store      *store.MemoryStore
	keys       store.Keys
	queue      *QueueService
	errorLog   *ErrorLogService
	liveness   *LivenessService
	assignment *AssignmentService
	registry   *RegistryService
	vault      *VaultService
}

type testEnvConfig struct {
	maxTimeRunning time.Duration
	maxInactive    time.Duration
	backendToken   string
}

func newTestEnv() *testEnv {
	return newTestEnvWith(testEnvConfig{
		maxTimeRunning: 10 * time.Second,
		maxInactive:    time.Hour,
		backendToken:   "backend-secret",
	})
}

func newTestEnvWith(cfg testEnvConfig) *testEnv {
	st := store.NewMemoryStore()
	keys := store.NewKeys("test")
	log := logger.Nop()

	errorLog := NewErrorLogService(st, keys, log)
	queue := NewQueueService(st, keys)
	liveness := NewLivenessService(st, keys, log, cfg.maxInactive)

	assignment := NewAssignmentService(AssignmentServiceConfig{
		Store:          st,
		Keys:           keys,
		Queue:          queue,
		Liveness:       liveness,
		ErrorLog:       errorLog,
		Logger:         log,
		MaxTimeRunning: cfg.maxTimeRunning,
		PollInterval:   5 * time.Millisecond,
		MaxWait:        25 * time.Second,
	})
	liveness.SetCompleter(assignment)

	registry := NewRegistryService(RegistryServiceConfig{
		Store:           st,
		Keys:            keys,
		Queue:           queue,
		ErrorLog:        errorLog,
		Logger:          log,
		MaxPriority:     15,
		DefaultPriority: 10,
	})

	vault := NewVaultService(VaultServiceConfig{
		Store:        st,
		Keys:         keys,
		BackendToken: cfg.backendToken,
		Logger:       log,
	})

	return &testEnv{
		store:      st,
		keys:       keys,
		queue:      queue,
		errorLog:   errorLog,
		liveness:   liveness,
		assignment: assignment,
		registry:   registry,
		vault:      vault,
	}
}

func validInput(author string) ports.CreateTaskInput {
	return ports.CreateTaskInput{
		Author:    author,
		SessionID: "session-1",
		Files: &ports.TaskFiles{
			Receiver:    &domain.Payload{Filename: "rx.py", Content: "print('rx')", Type: "python"},
			Transmitter: &domain.Payload{Filename: "tx.py", Content: "print('tx')", Type: "python"},
		},
	}
}

func (e *testEnv) mustCreate(ctx context.Context, author string) string {
	id, err := e.registry.Create(ctx, validInput(author))
	if err != nil {
		panic(err)
	}
	return id
}

func (e *testEnv) taskField(ctx context.Context, taskID, field string) string {
	v, _, err := e.store.HGet(ctx, e.keys.Task(taskID), field)
	if err != nil {
		panic(err)
	}
	return v
}

func (e *testEnv) setTaskField(ctx context.Context, taskID, field, value string) {
	if err := e.store.HSet(ctx, e.keys.Task(taskID), map[string]string{field: value}); err != nil {
		panic(err)
	}
}

func (e *testEnv) assignmentSlot(ctx context.Context, deviceBase string) string {
	v, _, err := e.store.Get(ctx, e.keys.DeviceAssignment(deviceBase))
	if err != nil {
		panic(err)
	}
	return v
}

func receiver(base string) domain.DeviceIdentity {
	return domain.DeviceIdentity{Base: base, Role: domain.RoleReceiver}
}

func transmitter(base string) domain.DeviceIdentity {
	return domain.DeviceIdentity{Base: base, Role: domain.RoleTransmitter}
}

func intPtr(v int) *int { return &v }

// shortCtx expires fast so a long-poll with an empty queue returns promptly.
func shortCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 50*time.Millisecond)
}

func unixString(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 6, 64)
}
