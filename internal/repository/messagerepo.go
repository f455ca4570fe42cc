package repository

import (
	"context"
	"time"

	"github.com/scmc-ops/hoscad/internal/model"
)

// MessageRepository stores dispatcher messages.
type MessageRepository interface {
	// NextMessageSeq returns a monotonically increasing message sequence.
	NextMessageSeq(ctx context.Context) (int64, error)
	// PutMessage inserts or replaces a message.
	PutMessage(ctx context.Context, m *model.Message) error
	// GetMessage loads a message by id. Returns errs.ErrNotFound when absent.
	GetMessage(ctx context.Context, messageID string) (*model.Message, error)
	// ListMessagesTo returns messages addressed to the recipient, newest first.
	ListMessagesTo(ctx context.Context, to string) ([]model.Message, error)
	// DeleteMessage removes a single message.
	DeleteMessage(ctx context.Context, messageID string) error
	// DeleteMessagesTo removes every message addressed to the recipient, returns count.
	DeleteMessagesTo(ctx context.Context, to string) (int, error)
	// DeleteMessagesBefore removes messages older than cutoff, returns count.
	DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int, error)
	// DeleteAllMessages clears the table.
	DeleteAllMessages(ctx context.Context) error
}
