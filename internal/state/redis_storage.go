package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPattern  = "session:%d"
	sessionScanPattern = "session:*"
)

// RedisStorage persists sessions in Redis as JSON without expiry.
type RedisStorage struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisStorage(client *redis.Client, log *slog.Logger) Storage {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStorage{
		client: client,
		log:    log,
	}
}

func (s *RedisStorage) GetSession(ctx context.Context, chatID int64) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(chatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}

		s.log.Error("failed to get session from redis", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		s.log.Error("failed to decode session", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return nil, fmt.Errorf("decode session: %w", err)
	}

	return &session, nil
}

// SaveSession writes the whole session in one SET so readers never see a partial update.
func (s *RedisStorage) SaveSession(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("nil session")
	}

	session.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(session)
	if err != nil {
		s.log.Error("failed to encode session", slog.Int64("chat_id", session.ChatID), slog.Any("error", err))
		return fmt.Errorf("encode session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(session.ChatID), data, 0).Err(); err != nil {
		s.log.Error("failed to save session in redis", slog.Int64("chat_id", session.ChatID), slog.Any("error", err))
		return fmt.Errorf("save session: %w", err)
	}

	return nil
}

func (s *RedisStorage) ClearSession(ctx context.Context, chatID int64) error {
	if err := s.client.Del(ctx, sessionKey(chatID)).Err(); err != nil {
		s.log.Error("failed to clear session", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return fmt.Errorf("clear session: %w", err)
	}

	return nil
}

func (s *RedisStorage) GetAllSessions(ctx context.Context) ([]*Session, error) {
	var (
		cursor uint64
		result []*Session
	)

	for {
		keys, nextCursor, err := s.client.Scan(ctx, cursor, sessionScanPattern, 100).Result()
		if err != nil {
			s.log.Error("failed to scan sessions", slog.Any("error", err))
			return nil, fmt.Errorf("scan sessions: %w", err)
		}

		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}

				s.log.Error("failed to fetch session", slog.String("key", key), slog.Any("error", err))
				return nil, fmt.Errorf("get session %s: %w", key, err)
			}

			var session Session
			if err := json.Unmarshal(data, &session); err != nil {
				s.log.Warn("skipping undecodable session", slog.String("key", key), slog.Any("error", err))
				continue
			}

			result = append(result, &session)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return result, nil
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf(sessionKeyPattern, chatID)
}
