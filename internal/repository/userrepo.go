package repository

import (
	"context"
	"time"

	"github.com/scmc-ops/hoscad/internal/model"
)

// UserRepository provides CRUD access for dispatcher accounts.
type UserRepository interface {
	// CreateUser inserts a new user. Returns errs.ErrAlreadyExists on a
	// username collision.
	CreateUser(ctx context.Context, u *model.User) error
	// GetUser loads a user by username. Returns errs.ErrNotFound when absent.
	GetUser(ctx context.Context, username string) (*model.User, error)
	// ListUsers returns every account ordered by username.
	ListUsers(ctx context.Context) ([]model.User, error)
	// UpdateUserPassword replaces the stored hash and salt.
	UpdateUserPassword(ctx context.Context, username string, hash, salt []byte) error
	// DeleteUser removes an account.
	DeleteUser(ctx context.Context, username string) error
}

// SessionRepository tracks live logins for the who list.
type SessionRepository interface {
	// PutSession inserts or refreshes a session row.
	PutSession(ctx context.Context, s *model.Session) error
	// GetSession loads a session by id. Returns errs.ErrNotFound when absent.
	GetSession(ctx context.Context, id string) (*model.Session, error)
	// TouchSession bumps last activity for a session id.
	TouchSession(ctx context.Context, id string, at time.Time) error
	// ListSessionsActiveSince returns sessions with activity >= since.
	ListSessionsActiveSince(ctx context.Context, since time.Time) ([]model.Session, error)
	// DeleteSession removes one session.
	DeleteSession(ctx context.Context, id string) error
	// DeleteSessionsIdleBefore removes sessions idle since cutoff, returns count.
	DeleteSessionsIdleBefore(ctx context.Context, cutoff time.Time) (int, error)
	// DeleteAllSessions clears the table.
	DeleteAllSessions(ctx context.Context) error
}
