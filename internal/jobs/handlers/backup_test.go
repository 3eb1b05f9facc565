package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/worklog-bot/internal/database"
	"github.com/Proton-105/worklog-bot/internal/domain"
	"github.com/Proton-105/worklog-bot/internal/jobs"
	"github.com/Proton-105/worklog-bot/internal/store"
	"github.com/Proton-105/worklog-bot/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockBackupStore struct {
	mock.Mock
}

func (m *mockBackupStore) ListUsers(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]string)
	return users, args.Error(1)
}

func (m *mockBackupStore) CreateBackup(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func TestSweepContinuesPastFailures(t *testing.T) {
	st := &mockBackupStore{}
	st.On("ListUsers", mock.Anything).Return([]string{"a", "b", "c"}, nil)
	st.On("CreateBackup", mock.Anything, "a").Return(nil)
	st.On("CreateBackup", mock.Anything, "b").Return(errors.New("disk full"))
	st.On("CreateBackup", mock.Anything, "c").Return(nil)

	result, err := NewBackupHandler(st, testLogger()).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Users)
	assert.Equal(t, []string{"b"}, result.Failed)
	st.AssertNumberOfCalls(t, "CreateBackup", 3)
}

func TestSweepFailsWhenUsersCannotBeListed(t *testing.T) {
	st := &mockBackupStore{}
	st.On("ListUsers", mock.Anything).Return(nil, errors.New("db closed"))

	_, err := NewBackupHandler(st, testLogger()).Sweep(context.Background())
	require.Error(t, err)
	st.AssertNotCalled(t, "CreateBackup", mock.Anything, mock.Anything)
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	st := &mockBackupStore{}
	st.On("ListUsers", mock.Anything).Return([]string{"a", "b"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBackupHandler(st, testLogger()).Sweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	st.AssertNotCalled(t, "CreateBackup", mock.Anything, mock.Anything)
}

func TestProcessTaskRejectsBadPayload(t *testing.T) {
	h := NewBackupHandler(&mockBackupStore{}, testLogger())

	err := h.ProcessTask(context.Background(), asynq.NewTask(jobs.TaskTypeBackupSweep, []byte("{")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessTaskWritesBackupsToStore(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver: database.DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "backup.db"),
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st := store.NewSQLStore(db, database.DriverSQLite, testLogger())
	for _, user := range []string{"u1", "u2"} {
		_, err := st.AddEntry(ctx, user, domain.WorkEntry{Date: "10.06.2025", Works: []string{"Трапеция"}})
		require.NoError(t, err)
	}

	task, err := jobs.NewBackupSweepTask("test", time.Now())
	require.NoError(t, err)
	require.NoError(t, NewBackupHandler(st, testLogger()).ProcessTask(ctx, task))

	for _, user := range []string{"u1", "u2"} {
		backups, err := st.ListBackups(ctx, user)
		require.NoError(t, err)
		assert.Len(t, backups, 1, user)
	}
}
