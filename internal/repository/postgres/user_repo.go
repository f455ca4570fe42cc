package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/scmc-ops/hoscad/internal/errs"
	"github.com/scmc-ops/hoscad/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userCols = `username, first_name, last_name, pwd_hash, salt, created_at, created_by`

// CreateUser inserts a new dispatcher account.
func (r *UserRepo) CreateUser(ctx context.Context, u *model.User) error {
	const q = `INSERT INTO users (` + userCols + `) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.db.Pool.Exec(ctx, q,
		strings.ToLower(u.Username), u.FirstName, u.LastName, u.PwdHash, u.Salt, u.CreatedAt, u.CreatedBy)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.Username, &u.FirstName, &u.LastName, &u.PwdHash, &u.Salt, &u.CreatedAt, &u.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUser loads a user by username.
func (r *UserRepo) GetUser(ctx context.Context, username string) (*model.User, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE username=$1`, strings.ToLower(username))
	return scanUser(row)
}

// ListUsers returns every account ordered by username.
func (r *UserRepo) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+userCols+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// UpdateUserPassword replaces the stored hash and salt.
func (r *UserRepo) UpdateUserPassword(ctx context.Context, username string, hash, salt []byte) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET pwd_hash=$2, salt=$3 WHERE username=$1`, strings.ToLower(username), hash, salt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// DeleteUser removes an account.
func (r *UserRepo) DeleteUser(ctx context.Context, username string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE username=$1`, strings.ToLower(username))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SessionRepo implements SessionRepository using PostgreSQL.
type SessionRepo struct{ db *DB }

// NewSessionRepo constructs a session repository.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionCols = `id, username, full_name, role, login_time, last_activity`

// PutSession inserts or refreshes a session row.
func (r *SessionRepo) PutSession(ctx context.Context, s *model.Session) error {
	const q = `
INSERT INTO sessions (` + sessionCols + `)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET last_activity=EXCLUDED.last_activity`
	_, err := r.db.Pool.Exec(ctx, q, s.ID, s.Username, s.FullName, s.Role, s.LoginTime, s.LastActivity)
	return err
}

// GetSession loads a session by id.
func (r *SessionRepo) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	err := r.db.Pool.QueryRow(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE id=$1`, id).
		Scan(&s.ID, &s.Username, &s.FullName, &s.Role, &s.LoginTime, &s.LastActivity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// TouchSession bumps last activity for a session id.
func (r *SessionRepo) TouchSession(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE sessions SET last_activity=$2 WHERE id=$1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListSessionsActiveSince returns sessions with activity >= since.
func (r *SessionRepo) ListSessionsActiveSince(ctx context.Context, since time.Time) ([]model.Session, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE last_activity >= $1 ORDER BY login_time`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		var s model.Session
		if err := rows.Scan(&s.ID, &s.Username, &s.FullName, &s.Role, &s.LoginTime, &s.LastActivity); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSession removes one session.
func (r *SessionRepo) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE id=$1`, id)
	return err
}

// DeleteSessionsIdleBefore removes sessions idle since cutoff.
func (r *SessionRepo) DeleteSessionsIdleBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE last_activity < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// DeleteAllSessions clears the table.
func (r *SessionRepo) DeleteAllSessions(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions`)
	return err
}
