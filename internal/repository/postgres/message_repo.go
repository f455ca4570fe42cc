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

// MessageRepo implements MessageRepository using PostgreSQL.
type MessageRepo struct{ db *DB }

// NewMessageRepo constructs a message repository.
func NewMessageRepo(db *DB) *MessageRepo { return &MessageRepo{db: db} }

const messageCols = `message_id, ts, from_role, from_initials, to_role, body, urgent, read`

// NextMessageSeq returns the next value of the message id sequence.
func (r *MessageRepo) NextMessageSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := r.db.Pool.QueryRow(ctx, `SELECT nextval('message_seq')`).Scan(&seq)
	return seq, err
}

// PutMessage inserts or replaces a message.
func (r *MessageRepo) PutMessage(ctx context.Context, m *model.Message) error {
	const q = `
INSERT INTO messages (` + messageCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (message_id) DO UPDATE SET read=EXCLUDED.read`
	_, err := r.db.Pool.Exec(ctx, q,
		m.MessageID, m.TS, m.FromRole, m.FromInitials, strings.ToUpper(m.ToRole),
		m.Body, m.Urgent, m.Read)
	return err
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	var m model.Message
	err := row.Scan(&m.MessageID, &m.TS, &m.FromRole, &m.FromInitials, &m.ToRole,
		&m.Body, &m.Urgent, &m.Read)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// GetMessage loads a message by id.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (*model.Message, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+messageCols+` FROM messages WHERE message_id=$1`, messageID)
	return scanMessage(row)
}

// ListMessagesTo returns messages addressed to the recipient, newest first.
func (r *MessageRepo) ListMessagesTo(ctx context.Context, to string) ([]model.Message, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+messageCols+` FROM messages WHERE to_role=$1 ORDER BY ts DESC`, strings.ToUpper(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// DeleteMessage removes a single message.
func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM messages WHERE message_id=$1`, messageID)
	return err
}

// DeleteMessagesTo removes every message addressed to the recipient.
func (r *MessageRepo) DeleteMessagesTo(ctx context.Context, to string) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM messages WHERE to_role=$1`, strings.ToUpper(to))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// DeleteMessagesBefore removes messages older than cutoff.
func (r *MessageRepo) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM messages WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// DeleteAllMessages clears the table.
func (r *MessageRepo) DeleteAllMessages(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM messages`)
	return err
}
