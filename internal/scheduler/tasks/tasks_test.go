package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	maintenanceCalls int
	maintenanceErr   error
	cutoffs          []time.Time
	deleted          int64
	deleteErr        error
}

func (f *fakeStore) RunSQLMaintenance(context.Context) error {
	f.maintenanceCalls++
	return f.maintenanceErr
}

func (f *fakeStore) DeleteTurnsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.deleted, f.deleteErr
}

var fixedNow = time.Date(2025, 3, 14, 3, 30, 0, 0, time.UTC)

func newDeps(store *fakeStore, retentionDays int) TaskDeps {
	return TaskDeps{
		Store:         store,
		RetentionDays: retentionDays,
		Now:           func() time.Time { return fixedNow },
	}
}

func TestRegisterAllTasks(t *testing.T) {
	t.Parallel()

	got := RegisterAllTasks(newDeps(&fakeStore{}, 0))

	require.Len(t, got, 2)
	assert.Contains(t, got, SQLMaintenance)
	assert.Contains(t, got, LogRetention)
}

func TestSQLMaintenanceTask(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	tasks := RegisterAllTasks(newDeps(store, 0))

	require.NoError(t, tasks[SQLMaintenance](context.Background()))
	assert.Equal(t, 1, store.maintenanceCalls)

	store.maintenanceErr = errors.New("database is locked")
	err := tasks[SQLMaintenance](context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.maintenanceErr)
}

func TestLogRetentionTask(t *testing.T) {
	t.Parallel()

	store := &fakeStore{deleted: 12}
	tasks := RegisterAllTasks(newDeps(store, 30))

	require.NoError(t, tasks[LogRetention](context.Background()))
	require.Len(t, store.cutoffs, 1)
	assert.Equal(t, time.Date(2025, 2, 12, 3, 30, 0, 0, time.UTC), store.cutoffs[0])
}

func TestLogRetentionTask_Disabled(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	tasks := RegisterAllTasks(newDeps(store, 0))

	require.NoError(t, tasks[LogRetention](context.Background()))
	assert.Empty(t, store.cutoffs)
}

func TestLogRetentionTask_Error(t *testing.T) {
	t.Parallel()

	store := &fakeStore{deleteErr: errors.New("disk I/O error")}
	tasks := RegisterAllTasks(newDeps(store, 7))

	err := tasks[LogRetention](context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.deleteErr)
}
