package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionLockKeyPattern = "lock:session:%d"
	lockTTL               = 5 * time.Second
	lockRetryInterval     = 25 * time.Millisecond
)

var (
	// ErrSessionNotFound indicates that no session is stored for the chat.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionLocked indicates that another update for the same chat still holds the lock.
	ErrSessionLocked = errors.New("session is locked, try again later")
)

// releaseLockScript deletes the lock only while it still holds the caller's token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var (
	recorderMu         sync.RWMutex
	transitionRecorder = func(from, to string) {}
)

// RegisterTransitionRecorder allows external packages to observe dialog transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	recorderMu.Lock()
	defer recorderMu.Unlock()

	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

func recordTransition(from, to State) {
	recorderMu.RLock()
	rec := transitionRecorder
	recorderMu.RUnlock()

	rec(string(from), string(to))
}

// UpdateFunc receives a private copy of the session and returns the session to persist.
type UpdateFunc func(session *Session) (*Session, error)

// Manager serializes access to sessions: one update per chat at a time.
type Manager interface {
	// Update loads (or creates) the chat's session, applies fn and saves the result under the chat lock.
	Update(ctx context.Context, chatID int64, userID string, fn UpdateFunc) (*Session, error)
	Get(ctx context.Context, chatID int64) (*Session, error)
	Reset(ctx context.Context, chatID int64, userID string) error
	GetAllSessions(ctx context.Context) ([]*Session, error)
}

type manager struct {
	storage     Storage
	log         *slog.Logger
	redisClient *redis.Client
	lockWait    time.Duration

	mu    sync.Mutex
	local map[int64]*sync.Mutex
}

// NewManager creates a session manager. With a nil redis client, locks are process-local.
func NewManager(storage Storage, log *slog.Logger, redisClient *redis.Client) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		storage:     storage,
		log:         log,
		redisClient: redisClient,
		lockWait:    2 * time.Second,
		local:       make(map[int64]*sync.Mutex),
	}
}

func (m *manager) Get(ctx context.Context, chatID int64) (*Session, error) {
	return m.storage.GetSession(ctx, chatID)
}

func (m *manager) GetAllSessions(ctx context.Context) ([]*Session, error) {
	return m.storage.GetAllSessions(ctx)
}

func (m *manager) Update(ctx context.Context, chatID int64, userID string, fn UpdateFunc) (*Session, error) {
	unlock, err := m.lock(ctx, chatID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := m.storage.GetSession(ctx, chatID)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		current = NewSession(chatID, userID)
	case err != nil:
		return nil, err
	}
	if current.UserID == "" {
		current.UserID = userID
	}

	next, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}

	if next.State != current.State {
		if !IsTransitionAllowed(current.State, next.State) {
			m.log.Warn("unexpected dialog transition",
				slog.Int64("chat_id", chatID),
				slog.String("from", string(current.State)),
				slog.String("to", string(next.State)),
			)
		}
		recordTransition(current.State, next.State)
	}

	if err := m.storage.SaveSession(ctx, next); err != nil {
		return nil, err
	}

	return next, nil
}

func (m *manager) Reset(ctx context.Context, chatID int64, userID string) error {
	_, err := m.Update(ctx, chatID, userID, func(s *Session) (*Session, error) {
		s.Reset()
		return s, nil
	})
	return err
}

func (m *manager) lock(ctx context.Context, chatID int64) (func(), error) {
	if m.redisClient == nil {
		mu := m.localMutex(chatID)
		mu.Lock()
		return mu.Unlock, nil
	}

	key := fmt.Sprintf(sessionLockKeyPattern, chatID)
	token := uuid.NewString()
	deadline := time.Now().Add(m.lockWait)

	for {
		acquired, err := m.redisClient.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			m.log.Error("failed to acquire session lock", slog.Int64("chat_id", chatID), slog.Any("error", err))
			return nil, fmt.Errorf("acquire session lock: %w", err)
		}
		if acquired {
			return func() { m.unlock(chatID, key, token) }, nil
		}

		if time.Now().After(deadline) {
			m.log.Warn("session lock already held", slog.Int64("chat_id", chatID))
			return nil, ErrSessionLocked
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func (m *manager) unlock(chatID int64, key, token string) {
	// the caller's context may already be cancelled; the lock must still go
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	released, err := releaseLockScript.Run(ctx, m.redisClient, []string{key}, token).Int()
	if err != nil {
		m.log.Error("failed to release session lock", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return
	}
	if released == 0 {
		m.log.Warn("session lock expired before release", slog.Int64("chat_id", chatID))
	}
}

func (m *manager) localMutex(chatID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	mu, ok := m.local[chatID]
	if !ok {
		mu = &sync.Mutex{}
		m.local[chatID] = mu
	}
	return mu
}
