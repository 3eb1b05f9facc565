package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Proton-105/worklog-bot/internal/state"
)

// DefaultMaxJobsPerChat bounds how many reminder jobs one chat may hold at once.
const DefaultMaxJobsPerChat = 10

// Job is a reminder registered for a chat.
type Job struct {
	ID        string
	Handle    Handle
	ChatID    int64
	UserID    string
	CreatedAt time.Time
}

// Checker decides on fire whether to remind the user.
type Checker interface {
	Check(ctx context.Context, chatID int64, userID string) (bool, error)
}

// SessionSource lists persisted sessions for Restore.
type SessionSource interface {
	GetAllSessions(ctx context.Context) ([]*state.Session, error)
}

// Registry keeps track of reminder jobs per chat on top of a Scheduler.
type Registry struct {
	scheduler Scheduler
	checker   Checker
	at        TimeOfDay
	max       int
	clock     clockwork.Clock
	log       *slog.Logger

	mu   sync.Mutex
	jobs map[int64][]Job
}

type RegistryOption func(*Registry)

func WithMaxJobsPerChat(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.max = n
		}
	}
}

func WithRegistryClock(clock clockwork.Clock) RegistryOption {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

func NewRegistry(scheduler Scheduler, checker Checker, at TimeOfDay, log *slog.Logger, opts ...RegistryOption) *Registry {
	if log == nil {
		log = slog.Default()
	}

	r := &Registry{
		scheduler: scheduler,
		checker:   checker,
		at:        at,
		max:       DefaultMaxJobsPerChat,
		clock:     clockwork.NewRealClock(),
		log:       log,
		jobs:      make(map[int64][]Job),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a daily reminder for the chat. When the chat already holds the maximum
// number of jobs, the oldest ones are cancelled first.
func (r *Registry) Register(ctx context.Context, chatID int64, userID string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if excess := len(r.jobs[chatID]) - r.max + 1; excess > 0 {
		r.log.Warn("too many reminder jobs, removing oldest",
			slog.Int64("chat_id", chatID),
			slog.Int("jobs", len(r.jobs[chatID])),
			slog.Int("removed", excess),
		)
		r.cancelLocked(chatID, excess)
	}

	return r.scheduleLocked(chatID, userID)
}

// Replace cancels every reminder of the chat and registers a fresh one.
func (r *Registry) Replace(ctx context.Context, chatID int64, userID string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelLocked(chatID, len(r.jobs[chatID]))
	return r.scheduleLocked(chatID, userID)
}

// ListJobs returns the chat's jobs in creation order.
func (r *Registry) ListJobs(chatID int64) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Job(nil), r.jobs[chatID]...)
}

// Restore re-registers a reminder for every persisted session. It returns how many chats
// were restored; failures for single chats are logged and skipped.
func (r *Registry) Restore(ctx context.Context, sessions SessionSource) (int, error) {
	all, err := sessions.GetAllSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	restored := 0
	for _, s := range all {
		if s == nil || s.UserID == "" {
			continue
		}
		if _, err := r.Replace(ctx, s.ChatID, s.UserID); err != nil {
			r.log.Error("failed to restore reminder", slog.Int64("chat_id", s.ChatID), slog.Any("error", err))
			continue
		}
		restored++
	}

	r.log.Info("reminders restored", slog.Int("chats", restored))
	return restored, nil
}

func (r *Registry) scheduleLocked(chatID int64, userID string) (Job, error) {
	jobID := fmt.Sprintf("reminder:%d:%s", chatID, uuid.NewString())

	handle, err := r.scheduler.ScheduleDaily(jobID, r.at, func(ctx context.Context) {
		r.fire(ctx, chatID, userID)
	})
	if err != nil {
		return Job{}, err
	}

	job := Job{
		ID:        jobID,
		Handle:    handle,
		ChatID:    chatID,
		UserID:    userID,
		CreatedAt: r.clock.Now(),
	}
	r.jobs[chatID] = append(r.jobs[chatID], job)

	r.log.Info("reminder set", slog.Int64("chat_id", chatID), slog.String("user_id", userID), slog.String("at", r.at.String()))
	return job, nil
}

// cancelLocked removes the n oldest jobs of the chat.
func (r *Registry) cancelLocked(chatID int64, n int) {
	jobs := r.jobs[chatID]
	if n > len(jobs) {
		n = len(jobs)
	}

	for _, job := range jobs[:n] {
		if err := r.scheduler.Cancel(job.Handle); err != nil {
			r.log.Warn("failed to cancel reminder job", slog.String("job", job.ID), slog.Any("error", err))
		}
	}

	rest := append([]Job(nil), jobs[n:]...)
	if len(rest) == 0 {
		delete(r.jobs, chatID)
		return
	}
	r.jobs[chatID] = rest
}

func (r *Registry) fire(ctx context.Context, chatID int64, userID string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("reminder panic", slog.Int64("chat_id", chatID), slog.Any("panic", rec))
		}
	}()

	if _, err := r.checker.Check(ctx, chatID, userID); err != nil {
		r.log.Error("reminder check failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}
