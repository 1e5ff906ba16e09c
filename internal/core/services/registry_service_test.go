package services

import (
	"context"
	"testing"

	"github.com/relia/scheduler/internal/core/ports"
	"github.com/relia/scheduler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetRoundTrip(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	input := validInput("alice")
	input.Priority = intPtr(3)

	taskID, err := env.registry.Create(ctx, input)
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	task, err := env.registry.Get(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, "alice", task.Author)
	assert.Equal(t, domain.StatusQueued, task.Status)
	assert.Equal(t, 3, task.Priority)
	assert.Equal(t, "session-1", task.SessionID)
	assert.Equal(t, "rx.py", task.Receiver.Filename)
	assert.Equal(t, "tx.py", task.Transmitter.Filename)
	assert.Equal(t, domain.Null, task.ReceiverAssigned)
	assert.Equal(t, domain.Null, task.TransmitterAssigned)

	// The task must be dequeueable right away.
	id, ok, err := env.queue.DequeueNext(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, taskID, id)
}

func TestCreateIdentifiersUnique(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	first := env.mustCreate(ctx, "alice")
	second := env.mustCreate(ctx, "alice")
	assert.NotEqual(t, first, second)
}

func TestCreatePriorityDefaults(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	cases := []struct {
		name     string
		priority *int
		want     int
	}{
		{"missing", nil, 10},
		{"negative", intPtr(-1), 10},
		{"above max", intPtr(16), 10},
		{"zero is valid", intPtr(0), 0},
		{"max is valid", intPtr(15), 15},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput("alice")
			input.Priority = tc.priority
			taskID, err := env.registry.Create(ctx, input)
			require.NoError(t, err)
			task, err := env.registry.Get(ctx, taskID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, task.Priority)
		})
	}
}

func TestCreateValidationMessages(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	cases := []struct {
		name    string
		mutate  func(*ports.CreateTaskInput)
		message string
	}{
		{
			"no files at all",
			func(in *ports.CreateTaskInput) { in.Files = nil },
			"No grc_files provided",
		},
		{
			"missing receiver",
			func(in *ports.CreateTaskInput) { in.Files.Receiver = nil },
			"No receiver found in grc_files",
		},
		{
			"missing transmitter",
			func(in *ports.CreateTaskInput) { in.Files.Transmitter = nil },
			"No transmitter found in grc_files",
		},
		{
			"missing transmitter filename",
			func(in *ports.CreateTaskInput) { in.Files.Transmitter.Filename = "" },
			"No filename found in transmitter in grc_files",
		},
		{
			"missing receiver content",
			func(in *ports.CreateTaskInput) { in.Files.Receiver.Content = "" },
			"No content found in receiver in grc_files",
		},
		{
			"grc content not yaml",
			func(in *ports.CreateTaskInput) {
				in.Files.Receiver.Type = "grc"
				in.Files.Receiver.Content = "{not yaml"
			},
			"Invalid content (not yaml) for provided receiver",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput("alice")
			tc.mutate(&input)

			_, err := env.registry.Create(ctx, input)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.message, verr.Message)
		})
	}
}

func TestCreateAcceptsGRCYaml(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	input := validInput("alice")
	input.Files.Receiver.Type = "grc"
	input.Files.Receiver.Content = "options:\n  title: capture\nblocks: []\n"

	_, err := env.registry.Create(ctx, input)
	assert.NoError(t, err)
}

func TestCreateValidationIsRecorded(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	input := validInput("alice")
	input.Files = nil
	_, err := env.registry.Create(ctx, input)
	require.Error(t, err)

	entries, err := env.errorLog.Recent(ctx, "alice", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "No grc_files provided", entries[0].Message)
}

func TestGetUnknownTask(t *testing.T) {
	env := newTestEnv()
	_, err := env.registry.Get(context.Background(), "no-such-task")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestDeleteQueuedTask(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	taskID := env.mustCreate(ctx, "alice")
	require.NoError(t, env.registry.Delete(ctx, taskID, "alice"))

	task, err := env.registry.Get(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeleted, task.Status)

	// The bucket entry must be gone too.
	_, ok, err := env.queue.DequeueNext(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteReleasesDevice(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	taskID := env.mustCreate(ctx, "alice")
	_, err := env.assignment.RequestReceiver(ctx, receiver("sdr1"), 1)
	require.NoError(t, err)
	require.Equal(t, taskID, env.assignmentSlot(ctx, "sdr1"))

	require.NoError(t, env.registry.Delete(ctx, taskID, "alice"))
	assert.Equal(t, domain.Null, env.assignmentSlot(ctx, "sdr1"))
}

func TestDeleteWrongAuthor(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	taskID := env.mustCreate(ctx, "alice")
	err := env.registry.Delete(ctx, taskID, "mallory")
	require.ErrorIs(t, err, ErrNotTaskAuthor)

	// Untouched: still queued, still deletable by the author.
	task, err := env.registry.Get(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, task.Status)

	entries, err := env.errorLog.Recent(ctx, "mallory", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Task belongs to another user", entries[0].Message)
}

func TestDeleteFinishedTask(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	taskID := env.mustCreate(ctx, "alice")
	env.setTaskField(ctx, taskID, domain.FieldStatus, string(domain.StatusCompleted))

	err := env.registry.Delete(ctx, taskID, "alice")
	assert.ErrorIs(t, err, ErrTaskFinished)
}

func TestDeleteUnknownTask(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	err := env.registry.Delete(ctx, "no-such-task", "alice")
	require.ErrorIs(t, err, ErrTaskNotFound)

	entries, err := env.errorLog.Recent(ctx, "unknown", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Task identifier does not exist", entries[0].Message)
}
