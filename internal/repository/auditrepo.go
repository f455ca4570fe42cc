package repository

import (
	"context"
	"time"

	"github.com/scmc-ops/hoscad/internal/model"
)

// AuditRepository is the append-only unit audit ledger.
type AuditRepository interface {
	// AppendAudit adds one entry. Entries are never updated.
	AppendAudit(ctx context.Context, e *model.AuditEntry) error
	// ListAuditSince returns entries with ts >= since, oldest first.
	ListAuditSince(ctx context.Context, since time.Time) ([]model.AuditEntry, error)
	// ListUnitAuditSince returns one unit's entries with ts >= since, oldest first.
	ListUnitAuditSince(ctx context.Context, unitID string, since time.Time) ([]model.AuditEntry, error)
	// LastUnitAudit returns the most recent entry for a unit, or errs.ErrNotFound.
	LastUnitAudit(ctx context.Context, unitID string) (*model.AuditEntry, error)
	// DeleteAuditBefore removes entries older than cutoff, returns count.
	DeleteAuditBefore(ctx context.Context, cutoff time.Time) (int, error)
	// DeleteAllAudit clears the ledger.
	DeleteAllAudit(ctx context.Context) error
}

// IncidentAuditRepository is the free-text incident narrative log.
type IncidentAuditRepository interface {
	// AppendIncidentAudit adds one narrative line.
	AppendIncidentAudit(ctx context.Context, e *model.IncidentAuditEntry) error
	// ListIncidentAudit returns up to limit lines for an incident, newest first.
	ListIncidentAudit(ctx context.Context, incidentID string, limit int) ([]model.IncidentAuditEntry, error)
	// ListAllIncidentAudit returns every line, oldest first.
	ListAllIncidentAudit(ctx context.Context) ([]model.IncidentAuditEntry, error)
	// DeleteIncidentAuditBefore removes lines older than cutoff, returns count.
	DeleteIncidentAuditBefore(ctx context.Context, cutoff time.Time) (int, error)
	// DeleteAllIncidentAudit clears the log.
	DeleteAllIncidentAudit(ctx context.Context) error
}
