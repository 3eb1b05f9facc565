package state

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errStorageFailure = errors.New("storage error")

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) GetSession(ctx context.Context, chatID int64) (*Session, error) {
	args := m.Called(ctx, chatID)
	session, _ := args.Get(0).(*Session)
	return session, args.Error(1)
}

func (m *mockStorage) SaveSession(ctx context.Context, session *Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockStorage) ClearSession(ctx context.Context, chatID int64) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *mockStorage) GetAllSessions(ctx context.Context) ([]*Session, error) {
	args := m.Called(ctx)
	sessions, _ := args.Get(0).([]*Session)
	return sessions, args.Error(1)
}

func TestManager_Update(t *testing.T) {
	ctx := context.Background()
	chatID := int64(42)

	testCases := []struct {
		name        string
		setupMocks  func(ms *mockStorage)
		fn          UpdateFunc
		expectState State
		expectErr   error
	}{
		{
			name: "new chat starts at root",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetSession", mock.Anything, chatID).Return((*Session)(nil), ErrSessionNotFound).Once()
				ms.On("SaveSession", mock.Anything, mock.MatchedBy(func(s *Session) bool {
					return s.State == ShowerWork && s.UserID == "7" && s.Category == CategoryShower
				})).Return(nil).Once()
			},
			fn: func(s *Session) (*Session, error) {
				s.Category = CategoryShower
				s.State = ShowerWork
				return s, nil
			},
			expectState: ShowerWork,
		},
		{
			name: "handler error leaves storage untouched",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetSession", mock.Anything, chatID).Return(&Session{ChatID: chatID, State: AddAddress}, nil).Once()
			},
			fn: func(s *Session) (*Session, error) {
				return nil, errStorageFailure
			},
			expectErr: errStorageFailure,
		},
		{
			name: "load error is returned",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetSession", mock.Anything, chatID).Return((*Session)(nil), errStorageFailure).Once()
			},
			fn: func(s *Session) (*Session, error) {
				return s, nil
			},
			expectErr: errStorageFailure,
		},
		{
			name: "save error is returned",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetSession", mock.Anything, chatID).Return(&Session{ChatID: chatID, State: Root}, nil).Once()
				ms.On("SaveSession", mock.Anything, mock.Anything).Return(errStorageFailure).Once()
			},
			fn: func(s *Session) (*Session, error) {
				s.State = Settings
				return s, nil
			},
			expectErr: errStorageFailure,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ms := &mockStorage{}
			tc.setupMocks(ms)

			mgr := NewManager(ms, testLogger(), nil)
			session, err := mgr.Update(ctx, chatID, "7", tc.fn)

			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expectState, session.State)
			}

			ms.AssertExpectations(t)
		})
	}
}

func TestManager_UpdateHandsOutCopies(t *testing.T) {
	address := "ул. Ленина, 1"
	stored := &Session{ChatID: 1, State: AddComment, Works: []string{"Трапеция"}, Address: &address}

	ms := &mockStorage{}
	ms.On("GetSession", mock.Anything, int64(1)).Return(stored, nil).Once()
	ms.On("SaveSession", mock.Anything, mock.Anything).Return(nil).Once()

	mgr := NewManager(ms, testLogger(), nil)
	_, err := mgr.Update(context.Background(), 1, "1", func(s *Session) (*Session, error) {
		s.Works[0] = "changed"
		*s.Address = "changed"
		return s, nil
	})
	require.NoError(t, err)

	assert.Equal(t, "Трапеция", stored.Works[0])
	assert.Equal(t, "ул. Ленина, 1", *stored.Address)
}

func TestManager_RecordsTransitions(t *testing.T) {
	var got [][2]string
	RegisterTransitionRecorder(func(from, to string) {
		got = append(got, [2]string{from, to})
	})
	t.Cleanup(func() { RegisterTransitionRecorder(nil) })

	storage := newInMemoryStorage(0)
	mgr := NewManager(storage, testLogger(), nil)

	_, err := mgr.Update(context.Background(), 5, "5", func(s *Session) (*Session, error) {
		s.State = Settings
		return s, nil
	})
	require.NoError(t, err)

	_, err = mgr.Update(context.Background(), 5, "5", func(s *Session) (*Session, error) {
		return s, nil
	})
	require.NoError(t, err)

	assert.Equal(t, [][2]string{{string(SelectingWork), string(Settings)}}, got)
}

func TestManager_Reset(t *testing.T) {
	storage := newInMemoryStorage(0)
	mgr := NewManager(storage, testLogger(), nil)
	ctx := context.Background()

	_, err := mgr.Update(ctx, 9, "9", func(s *Session) (*Session, error) {
		s.State = AddAddress
		s.Works = []string{"Навес"}
		return s, nil
	})
	require.NoError(t, err)

	require.NoError(t, mgr.Reset(ctx, 9, "9"))

	session, err := mgr.Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, Root, session.State)
	assert.Empty(t, session.Works)
	assert.Equal(t, "9", session.UserID)
}

func TestManager_RedisLockSerializesUpdates(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := newInMemoryStorage(20 * time.Millisecond)
	mgr := NewManager(storage, testLogger(), client)
	ctx := context.Background()

	const workers = 5
	var wg sync.WaitGroup
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Update(ctx, 77, "77", func(s *Session) (*Session, error) {
				s.Works = append(s.Works, "work")
				return s, nil
			})
			errCh <- err
		}()
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	session, err := storage.GetSession(ctx, 77)
	require.NoError(t, err)
	assert.Len(t, session.Works, workers)
}

func TestManager_LockTimeout(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	require.NoError(t, client.Set(context.Background(), "lock:session:3", 1, time.Minute).Err())

	m := NewManager(newInMemoryStorage(0), testLogger(), client).(*manager)
	m.lockWait = 50 * time.Millisecond

	_, err := m.Update(context.Background(), 3, "3", func(s *Session) (*Session, error) {
		return s, nil
	})
	assert.ErrorIs(t, err, ErrSessionLocked)
}

func TestManager_UnlockKeepsLockTakenOverByAnotherHolder(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	mgr := NewManager(newInMemoryStorage(0), testLogger(), client)
	ctx := context.Background()

	_, err := mgr.Update(ctx, 5, "5", func(s *Session) (*Session, error) {
		// our lock expired and another update took it over
		require.NoError(t, client.Set(ctx, "lock:session:5", "other-holder", time.Minute).Err())
		return s, nil
	})
	require.NoError(t, err)

	holder, err := client.Get(ctx, "lock:session:5").Result()
	require.NoError(t, err)
	assert.Equal(t, "other-holder", holder)
}

func TestManager_UnlockReleasesOwnLock(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	mgr := NewManager(newInMemoryStorage(0), testLogger(), client)
	ctx := context.Background()

	_, err := mgr.Update(ctx, 6, "6", func(s *Session) (*Session, error) {
		return s, nil
	})
	require.NoError(t, err)

	_, err = client.Get(ctx, "lock:session:6").Result()
	assert.ErrorIs(t, err, redis.Nil)
}

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}

	return client, cleanup
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type inMemoryStorage struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	delay    time.Duration
}

func newInMemoryStorage(delay time.Duration) *inMemoryStorage {
	return &inMemoryStorage{
		sessions: make(map[int64]*Session),
		delay:    delay,
	}
}

func (s *inMemoryStorage) GetSession(ctx context.Context, chatID int64) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[chatID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return session.Clone(), nil
}

func (s *inMemoryStorage) SaveSession(ctx context.Context, session *Session) error {
	time.Sleep(s.delay)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ChatID] = session.Clone()
	return nil
}

func (s *inMemoryStorage) ClearSession(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, chatID)
	return nil
}

func (s *inMemoryStorage) GetAllSessions(ctx context.Context) ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session.Clone())
	}
	return out, nil
}
