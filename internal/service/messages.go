package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scmc-ops/hoscad/internal/errs"
	"github.com/scmc-ops/hoscad/internal/model"
	"github.com/scmc-ops/hoscad/internal/repository"
)

// Notifier delivers out-of-band alerts for urgent traffic. The push
// worker implements it; tests use a nop.
type Notifier interface {
	Notify(ctx context.Context, unitID, title, body string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string, string) {}

// Messages routes desk-to-desk and desk-to-unit traffic. A message is
// addressed to a role, a unit callsign, or ALL; broadcasts fan out one
// copy per dispatcher role with a live session.
type Messages struct {
	msgs     repository.MessageRepository
	units    repository.UnitRepository
	sessions repository.SessionRepository
	notify   Notifier
	now      Clock
	log      *zap.Logger
}

// NewMessages wires the messaging service.
func NewMessages(
	msgs repository.MessageRepository,
	units repository.UnitRepository,
	sessions repository.SessionRepository,
	notify Notifier,
	now Clock,
	log *zap.Logger,
) *Messages {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	if notify == nil {
		notify = nopNotifier{}
	}
	return &Messages{msgs: msgs, units: units, sessions: sessions, notify: notify, now: now, log: log}
}

// inbox returns the key a caller's messages are filed under: role for
// dispatchers, callsign for field units.
func inbox(id Identity) string {
	if id.Role == "UNIT" {
		return strings.ToUpper(id.Username)
	}
	return id.Role
}

// Send delivers a message to a role, a unit callsign, or ALL. Returns
// the ids of the stored copies.
func (m *Messages) Send(ctx context.Context, from Identity, to, body string, urgent bool) ([]string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: message body required", errs.ErrValidation)
	}
	to = strings.ToUpper(strings.TrimSpace(to))
	if to == "" {
		return nil, fmt.Errorf("%w: recipient required", errs.ErrValidation)
	}

	if to == "ALL" {
		return m.broadcast(ctx, from, body, urgent)
	}

	isUnit, err := m.validateRecipient(ctx, to)
	if err != nil {
		return nil, err
	}
	id, err := m.deliver(ctx, from, to, body, urgent)
	if err != nil {
		return nil, err
	}
	if isUnit {
		// Unit-addressed traffic always pushes; units have no console in
		// front of them.
		m.notify.Notify(ctx, to, "Message from "+from.Actor, body)
	}
	return []string{id}, nil
}

// validateRecipient reports whether the recipient is a unit callsign as
// opposed to a dispatcher role.
func (m *Messages) validateRecipient(ctx context.Context, to string) (bool, error) {
	for _, r := range Roles {
		if r != "UNIT" && r == to {
			return false, nil
		}
	}
	if _, err := m.units.GetUnit(ctx, to); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, fmt.Errorf("%w: unknown recipient %s", errs.ErrValidation, to)
		}
		return false, err
	}
	return true, nil
}

func (m *Messages) broadcast(ctx context.Context, from Identity, body string, urgent bool) ([]string, error) {
	active, err := m.sessions.ListSessionsActiveSince(ctx, m.now().Add(-whoWindow))
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{from.Role: true, "UNIT": true}
	var ids []string
	for _, s := range active {
		if seen[s.Role] {
			continue
		}
		seen[s.Role] = true
		id, err := m.deliver(ctx, from, s.Role, body, urgent)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Messages) deliver(ctx context.Context, from Identity, to, body string, urgent bool) (string, error) {
	seq, err := m.msgs.NextMessageSeq(ctx)
	if err != nil {
		return "", err
	}
	msg := model.Message{
		MessageID:    fmt.Sprintf("MSG%d", seq),
		TS:           m.now(),
		FromRole:     from.Role,
		FromInitials: strings.ToUpper(from.Username),
		ToRole:       to,
		Body:         body,
		Urgent:       urgent,
	}
	if err := m.msgs.PutMessage(ctx, &msg); err != nil {
		return "", err
	}
	return msg.MessageID, nil
}

// List returns the caller's inbox, newest first.
func (m *Messages) List(ctx context.Context, id Identity) ([]model.Message, error) {
	return m.msgs.ListMessagesTo(ctx, inbox(id))
}

// MarkRead flags a message read. Only the addressee may do so.
func (m *Messages) MarkRead(ctx context.Context, id Identity, messageID string) error {
	msg, err := m.owned(ctx, id, messageID)
	if err != nil {
		return err
	}
	if msg.Read {
		return nil
	}
	msg.Read = true
	return m.msgs.PutMessage(ctx, msg)
}

// Delete removes a single message from the caller's inbox.
func (m *Messages) Delete(ctx context.Context, id Identity, messageID string) error {
	if _, err := m.owned(ctx, id, messageID); err != nil {
		return err
	}
	return m.msgs.DeleteMessage(ctx, messageID)
}

// DeleteAll empties the caller's inbox and returns how many messages
// were removed.
func (m *Messages) DeleteAll(ctx context.Context, id Identity) (int, error) {
	return m.msgs.DeleteMessagesTo(ctx, inbox(id))
}

func (m *Messages) owned(ctx context.Context, id Identity, messageID string) (*model.Message, error) {
	msg, err := m.msgs.GetMessage(ctx, strings.ToUpper(strings.TrimSpace(messageID)))
	if err != nil {
		return nil, err
	}
	if msg.ToRole != inbox(id) {
		return nil, fmt.Errorf("not the addressee: %w", errs.ErrUnauthorized)
	}
	return msg, nil
}
