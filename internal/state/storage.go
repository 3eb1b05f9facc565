// Package state manages dialog sessions and their persistence.
package state

import "context"

// Storage defines the persistence contract for dialog sessions.
type Storage interface {
	// GetSession returns the session for chatID or ErrSessionNotFound.
	GetSession(ctx context.Context, chatID int64) (*Session, error)
	// SaveSession persists the session atomically.
	SaveSession(ctx context.Context, session *Session) error
	// ClearSession removes the stored session.
	ClearSession(ctx context.Context, chatID int64) error
	// GetAllSessions returns every stored session.
	GetAllSessions(ctx context.Context) ([]*Session, error)
}
