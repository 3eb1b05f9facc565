package reminder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/worklog-bot/internal/database"
	"github.com/Proton-105/worklog-bot/internal/dialog"
	"github.com/Proton-105/worklog-bot/internal/domain"
	apperrors "github.com/Proton-105/worklog-bot/internal/errors"
	"github.com/Proton-105/worklog-bot/internal/state"
	"github.com/Proton-105/worklog-bot/internal/store"
	"github.com/Proton-105/worklog-bot/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeScheduler struct {
	mu        sync.Mutex
	next      int
	tasks     map[Handle]func(context.Context)
	cancelled []Handle
	failNext  bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{tasks: make(map[Handle]func(context.Context))}
}

func (f *fakeScheduler) ScheduleDaily(jobID string, at TimeOfDay, task func(context.Context)) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNext {
		f.failNext = false
		return "", errors.New("scheduler closed")
	}

	f.next++
	h := Handle(fmt.Sprintf("h%d", f.next))
	f.tasks[h] = task
	return h, nil
}

func (f *fakeScheduler) Cancel(h Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.tasks, h)
	f.cancelled = append(f.cancelled, h)
	return nil
}

func (f *fakeScheduler) Start()          {}
func (f *fakeScheduler) Shutdown() error { return nil }

func (f *fakeScheduler) fireAll(ctx context.Context) {
	f.mu.Lock()
	tasks := make([]func(context.Context), 0, len(f.tasks))
	for _, t := range f.tasks {
		tasks = append(tasks, t)
	}
	f.mu.Unlock()

	for _, t := range tasks {
		t(ctx)
	}
}

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) Check(ctx context.Context, chatID int64, userID string) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

type stubSessions struct {
	sessions []*state.Session
	err      error
}

func (s stubSessions) GetAllSessions(context.Context) ([]*state.Session, error) {
	return s.sessions, s.err
}

var at1400 = TimeOfDay{Hour: 14, Minute: 0}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "14:00", want: TimeOfDay{Hour: 14}},
		{in: "09:05", want: TimeOfDay{Hour: 9, Minute: 5}},
		{in: " 23:59 ", want: TimeOfDay{Hour: 23, Minute: 59}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "1400", wantErr: true},
		{in: "aa:bb", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegisterBoundsJobsPerChat(t *testing.T) {
	sched := newFakeScheduler()
	reg := NewRegistry(sched, &mockChecker{}, at1400, testLogger())
	ctx := context.Background()

	var first Job
	for i := 0; i < DefaultMaxJobsPerChat; i++ {
		job, err := reg.Register(ctx, 1, "u1")
		require.NoError(t, err)
		if i == 0 {
			first = job
		}
	}
	require.Len(t, reg.ListJobs(1), DefaultMaxJobsPerChat)
	assert.Empty(t, sched.cancelled)

	eleventh, err := reg.Register(ctx, 1, "u1")
	require.NoError(t, err)

	jobs := reg.ListJobs(1)
	require.Len(t, jobs, DefaultMaxJobsPerChat)
	assert.Equal(t, []Handle{first.Handle}, sched.cancelled)
	assert.NotEqual(t, first.ID, jobs[0].ID)
	assert.Equal(t, eleventh.ID, jobs[len(jobs)-1].ID)
	assert.Len(t, sched.tasks, DefaultMaxJobsPerChat)
}

func TestRegisterCustomBoundAndChatIsolation(t *testing.T) {
	sched := newFakeScheduler()
	reg := NewRegistry(sched, &mockChecker{}, at1400, testLogger(), WithMaxJobsPerChat(2))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := reg.Register(ctx, 1, "u1")
		require.NoError(t, err)
	}
	_, err := reg.Register(ctx, 2, "u2")
	require.NoError(t, err)

	assert.Len(t, reg.ListJobs(1), 2)
	assert.Len(t, reg.ListJobs(2), 1)
	assert.Len(t, sched.cancelled, 3)
}

func TestListJobsCreationOrder(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := NewRegistry(newFakeScheduler(), &mockChecker{}, at1400, testLogger(), WithRegistryClock(clock))

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := reg.Register(context.Background(), 7, "u")
		require.NoError(t, err)
		ids = append(ids, job.ID)
		clock.Advance(time.Minute)
	}

	jobs := reg.ListJobs(7)
	require.Len(t, jobs, 3)
	for i, job := range jobs {
		assert.Equal(t, ids[i], job.ID)
		if i > 0 {
			assert.True(t, job.CreatedAt.After(jobs[i-1].CreatedAt))
		}
	}

	// the returned slice is a copy
	jobs[0].ID = "changed"
	assert.Equal(t, ids[0], reg.ListJobs(7)[0].ID)
}

func TestReplaceKeepsSingleJob(t *testing.T) {
	sched := newFakeScheduler()
	reg := NewRegistry(sched, &mockChecker{}, at1400, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := reg.Register(ctx, 1, "u1")
		require.NoError(t, err)
	}

	job, err := reg.Replace(ctx, 1, "u1")
	require.NoError(t, err)

	assert.Equal(t, []Job{job}, reg.ListJobs(1))
	assert.Len(t, sched.cancelled, 3)
	assert.Len(t, sched.tasks, 1)
}

func TestScheduleFailureLeavesRegistryUnchanged(t *testing.T) {
	sched := newFakeScheduler()
	reg := NewRegistry(sched, &mockChecker{}, at1400, testLogger())

	sched.failNext = true
	_, err := reg.Register(context.Background(), 1, "u1")
	require.Error(t, err)
	assert.Empty(t, reg.ListJobs(1))
}

func TestRestore(t *testing.T) {
	sched := newFakeScheduler()
	reg := NewRegistry(sched, &mockChecker{}, at1400, testLogger())

	sessions := stubSessions{sessions: []*state.Session{
		state.NewSession(1, "u1"),
		state.NewSession(2, "u2"),
		state.NewSession(3, ""),
		nil,
	}}

	n, err := reg.Restore(context.Background(), sessions)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, reg.ListJobs(1), 1)
	assert.Len(t, reg.ListJobs(2), 1)
	assert.Empty(t, reg.ListJobs(3))

	// restoring twice does not duplicate
	_, err = reg.Restore(context.Background(), sessions)
	require.NoError(t, err)
	assert.Len(t, reg.ListJobs(1), 1)

	_, err = reg.Restore(context.Background(), stubSessions{err: errors.New("redis down")})
	assert.Error(t, err)
}

func TestFiredJobRunsChecker(t *testing.T) {
	sched := newFakeScheduler()
	checker := &mockChecker{}
	checker.On("Check", mock.Anything, int64(5), "u5").Return(true, nil).Once()

	reg := NewRegistry(sched, checker, at1400, testLogger())
	_, err := reg.Register(context.Background(), 5, "u5")
	require.NoError(t, err)

	sched.fireAll(context.Background())
	checker.AssertExpectations(t)
}

func TestFiredJobSurvivesCheckerPanic(t *testing.T) {
	sched := newFakeScheduler()
	checker := &mockChecker{}
	checker.On("Check", mock.Anything, int64(5), "u5").Run(func(mock.Arguments) { panic("boom") }).Return(false, nil)

	reg := NewRegistry(sched, checker, at1400, testLogger())
	_, err := reg.Register(context.Background(), 5, "u5")
	require.NoError(t, err)

	assert.NotPanics(t, func() { sched.fireAll(context.Background()) })
}

func TestGocronSchedulerScheduleAndCancel(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	g, err := NewGocronScheduler(loc, clockwork.NewFakeClock(), testLogger())
	require.NoError(t, err)
	g.Start()
	t.Cleanup(func() { _ = g.Shutdown() })

	h, err := g.ScheduleDaily("reminder:1:test", at1400, func(context.Context) {})
	require.NoError(t, err)
	require.NotEmpty(t, h)

	jobs := g.s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "reminder:1:test", jobs[0].Name())

	require.NoError(t, g.Cancel(h))
	assert.Eventually(t, func() bool { return len(g.s.Jobs()) == 0 }, time.Second, 10*time.Millisecond)

	assert.Error(t, g.Cancel("not-a-uuid"))
}

type recordingSender struct {
	mu   sync.Mutex
	sent []dialog.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, _ int64, msg dialog.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := database.Open(context.Background(), config.DatabaseConfig{
		Driver: database.DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "reminder.db"),
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return store.NewSQLStore(db, database.DriverSQLite, testLogger())
}

// newNotifier returns a notifier whose clock reads 14:00 Moscow time on the given day.
func newNotifier(t *testing.T, st Store, sender Sender, year int, month time.Month, day int) *Notifier {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(year, month, day, 14, 0, 0, 0, loc))
	return NewNotifier(st, sender, nil, clock, loc, testLogger())
}

func TestScenarioE_ReminderOnlyWithoutTodayEntries(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sender := &recordingSender{}

	// Wednesday
	n := newNotifier(t, st, sender, 2025, time.June, 18)

	sent, err := n.Check(ctx, 1, "u1")
	require.NoError(t, err)
	assert.True(t, sent)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, reminderText, sender.sent[0].Text)
	assert.Equal(t, dialog.MainMenu(), sender.sent[0].Menu)

	_, err = st.AddEntry(ctx, "u1", domain.WorkEntry{Date: "18.06.2025", Works: []string{"Трапеция"}})
	require.NoError(t, err)

	sent, err = n.Check(ctx, 1, "u1")
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Len(t, sender.sent, 1)
}

func TestReminderSkipConditions(t *testing.T) {
	tests := []struct {
		name     string
		settings domain.UserSettings
		day      int
		entry    string
		wantSent bool
	}{
		{name: "work day without entries", settings: domain.DefaultSettings(), day: 18, wantSent: true},
		{name: "yesterday's entry does not count", settings: domain.DefaultSettings(), day: 18, entry: "17.06.2025", wantSent: true},
		{name: "reminders disabled", settings: domain.UserSettings{WorkDays: []domain.Weekday{0, 1, 2, 3, 4}}, day: 18},
		{name: "vacation", settings: domain.UserSettings{RemindersEnabled: true, VacationMode: true, WorkDays: []domain.Weekday{0, 1, 2, 3, 4}}, day: 18},
		{name: "saturday is a day off", settings: domain.DefaultSettings(), day: 21},
		{name: "saturday as work day", settings: domain.UserSettings{RemindersEnabled: true, WorkDays: []domain.Weekday{domain.Saturday}}, day: 21, wantSent: true},
		{name: "no work days", settings: domain.UserSettings{RemindersEnabled: true, WorkDays: []domain.Weekday{}}, day: 18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := newTestStore(t)
			require.NoError(t, st.SaveSettings(ctx, "u1", tt.settings))
			if tt.entry != "" {
				_, err := st.AddEntry(ctx, "u1", domain.WorkEntry{Date: tt.entry, Works: []string{"A"}})
				require.NoError(t, err)
			}

			sender := &recordingSender{}
			sent, err := newNotifier(t, st, sender, 2025, time.June, tt.day).Check(ctx, 1, "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSent, sent)
			assert.Equal(t, tt.wantSent, len(sender.sent) == 1)
		})
	}
}

type failingStore struct{}

func (failingStore) GetSettings(context.Context, string) (domain.UserSettings, error) {
	return domain.DefaultSettings(), apperrors.NewStorageError("get settings", errors.New("down"))
}

func (failingStore) GetEntries(context.Context, string, *domain.DateRange) ([]domain.WorkEntry, error) {
	return nil, nil
}

func TestReminderNotSentWhenSettingsUnavailable(t *testing.T) {
	sender := &recordingSender{}
	sent, err := newNotifier(t, failingStore{}, sender, 2025, time.June, 18).Check(context.Background(), 1, "u1")

	require.Error(t, err)
	assert.False(t, sent)
	assert.Empty(t, sender.sent)
}

func TestReminderSendFailureOpensBreaker(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sender := &recordingSender{err: errors.New("telegram: bot was blocked")}

	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(time.Date(2025, time.June, 18, 14, 0, 0, 0, loc))
	breaker := apperrors.NewCircuitBreaker(apperrors.BreakerConfig{
		ErrorThreshold:      0.5,
		MinRequests:         2,
		OpenTimeout:         time.Minute,
		HalfOpenMaxRequests: 1,
	}, clock)
	n := NewNotifier(st, sender, breaker, clock, loc, testLogger())

	for i := 0; i < 2; i++ {
		sent, err := n.Check(ctx, 1, "u1")
		require.Error(t, err)
		assert.False(t, sent)

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.CodeTransport, appErr.Code)
	}
	assert.Equal(t, apperrors.BreakerOpen, breaker.State())

	_, err = n.Check(ctx, 1, "u1")
	assert.ErrorIs(t, err, apperrors.ErrCircuitOpen)
}
