package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/relia/scheduler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndRecent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	require.NoError(t, env.errorLog.Record(ctx, "task-1", "alice", "something broke"))

	entries, err := env.errorLog.Recent(ctx, "alice", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "task-1", entries[0].TaskID)
	assert.Equal(t, "something broke", entries[0].Message)
	assert.NotEmpty(t, entries[0].Time)
}

func TestRecentFiltersByAuthor(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	require.NoError(t, env.errorLog.Record(ctx, "task-1", "alice", "alice's problem"))
	require.NoError(t, env.errorLog.Record(ctx, "task-2", "bob", "bob's problem"))

	entries, err := env.errorLog.Recent(ctx, "alice", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "task-1", entries[0].TaskID)
}

func TestRecentIncludesTaskErrors(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// A device-reported error lives on the task hash, not in the record set.
	taskID := env.mustCreate(ctx, "alice")
	require.NoError(t, env.assignment.ReportError(ctx, taskID, "usrp disconnected",
		time.Now().Format(domain.ISOTime)))

	entries, err := env.errorLog.Recent(ctx, "alice", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, taskID, entries[0].TaskID)
	assert.Equal(t, "usrp disconnected", entries[0].Message)
}

func TestRecentSkipsHealthyTasks(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.mustCreate(ctx, "alice")

	entries, err := env.errorLog.Recent(ctx, "alice", 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecentOrderAndLimit(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// Seed seven records with strictly increasing timestamps.
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("task-%d", i)
		_, err := env.store.SAdd(ctx, env.keys.Errors(), id)
		require.NoError(t, err)
		require.NoError(t, env.store.HSet(ctx, env.keys.Error(id), map[string]string{
			domain.FieldUniqueIdentifier: id,
			domain.FieldAuthor:           "alice",
			domain.FieldErrorMessage:     fmt.Sprintf("failure %d", i),
			domain.FieldErrorTime:        base.Add(time.Duration(i) * time.Second).Format(domain.ISOTime),
		}))
	}

	entries, err := env.errorLog.Recent(ctx, "alice", 5)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	// Oldest of the kept window first, most recent last.
	assert.Equal(t, "task-2", entries[0].TaskID)
	assert.Equal(t, "task-6", entries[4].TaskID)
}

func TestRecentNoLimit(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	require.NoError(t, env.errorLog.Record(ctx, "task-1", "alice", "one"))
	require.NoError(t, env.errorLog.Record(ctx, "task-2", "alice", "two"))

	entries, err := env.errorLog.Recent(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
