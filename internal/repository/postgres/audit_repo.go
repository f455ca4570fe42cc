package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/scmc-ops/hoscad/internal/errs"
	"github.com/scmc-ops/hoscad/internal/model"
)

// AuditRepo implements AuditRepository using PostgreSQL. Snapshots are
// stored as jsonb so the schema never chases unit field changes.
type AuditRepo struct{ db *DB }

// NewAuditRepo constructs an audit repository.
func NewAuditRepo(db *DB) *AuditRepo { return &AuditRepo{db: db} }

// AppendAudit adds one ledger entry.
func (r *AuditRepo) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	prev, err := json.Marshal(e.Prev)
	if err != nil {
		return err
	}
	next, err := json.Marshal(e.Next)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO unit_audit (ts, unit_id, action, prev, next, actor)
VALUES ($1,$2,$3,$4,$5,$6)`
	_, err = r.db.Pool.Exec(ctx, q, e.TS, strings.ToUpper(e.UnitID), string(e.Action), prev, next, e.Actor)
	return err
}

func scanAudit(row pgx.Row) (*model.AuditEntry, error) {
	var e model.AuditEntry
	var action string
	var prev, next []byte
	err := row.Scan(&e.TS, &e.UnitID, &action, &prev, &next, &e.Actor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	e.Action = model.AuditAction(action)
	if err := json.Unmarshal(prev, &e.Prev); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(next, &e.Next); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *AuditRepo) listAudit(ctx context.Context, q string, args ...any) ([]model.AuditEntry, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

const auditCols = `ts, unit_id, action, prev, next, actor`

// ListAuditSince returns entries with ts >= since, oldest first.
func (r *AuditRepo) ListAuditSince(ctx context.Context, since time.Time) ([]model.AuditEntry, error) {
	return r.listAudit(ctx,
		`SELECT `+auditCols+` FROM unit_audit WHERE ts >= $1 ORDER BY ts ASC, id ASC`, since)
}

// ListUnitAuditSince returns one unit's entries with ts >= since, oldest first.
func (r *AuditRepo) ListUnitAuditSince(ctx context.Context, unitID string, since time.Time) ([]model.AuditEntry, error) {
	return r.listAudit(ctx,
		`SELECT `+auditCols+` FROM unit_audit WHERE unit_id=$1 AND ts >= $2 ORDER BY ts ASC, id ASC`,
		strings.ToUpper(unitID), since)
}

// LastUnitAudit returns the most recent entry for a unit.
func (r *AuditRepo) LastUnitAudit(ctx context.Context, unitID string) (*model.AuditEntry, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+auditCols+` FROM unit_audit WHERE unit_id=$1 ORDER BY ts DESC, id DESC LIMIT 1`,
		strings.ToUpper(unitID))
	return scanAudit(row)
}

// DeleteAuditBefore removes entries older than cutoff.
func (r *AuditRepo) DeleteAuditBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM unit_audit WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// DeleteAllAudit clears the ledger.
func (r *AuditRepo) DeleteAllAudit(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM unit_audit`)
	return err
}

// IncidentAuditRepo implements IncidentAuditRepository using PostgreSQL.
type IncidentAuditRepo struct{ db *DB }

// NewIncidentAuditRepo constructs an incident audit repository.
func NewIncidentAuditRepo(db *DB) *IncidentAuditRepo { return &IncidentAuditRepo{db: db} }

// AppendIncidentAudit adds one narrative line.
func (r *IncidentAuditRepo) AppendIncidentAudit(ctx context.Context, e *model.IncidentAuditEntry) error {
	const q = `INSERT INTO incident_audit (ts, incident_id, message, actor) VALUES ($1,$2,$3,$4)`
	_, err := r.db.Pool.Exec(ctx, q, e.TS, strings.ToUpper(e.IncidentID), e.Message, e.Actor)
	return err
}

func (r *IncidentAuditRepo) listIncidentAudit(ctx context.Context, q string, args ...any) ([]model.IncidentAuditEntry, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.IncidentAuditEntry
	for rows.Next() {
		var e model.IncidentAuditEntry
		if err := rows.Scan(&e.TS, &e.IncidentID, &e.Message, &e.Actor); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListIncidentAudit returns up to limit lines for an incident, newest first.
func (r *IncidentAuditRepo) ListIncidentAudit(ctx context.Context, incidentID string, limit int) ([]model.IncidentAuditEntry, error) {
	if limit <= 0 {
		limit = 25
	}
	return r.listIncidentAudit(ctx,
		`SELECT ts, incident_id, message, actor FROM incident_audit WHERE incident_id=$1 ORDER BY ts DESC, id DESC LIMIT $2`,
		strings.ToUpper(incidentID), limit)
}

// ListAllIncidentAudit returns every line, oldest first.
func (r *IncidentAuditRepo) ListAllIncidentAudit(ctx context.Context) ([]model.IncidentAuditEntry, error) {
	return r.listIncidentAudit(ctx,
		`SELECT ts, incident_id, message, actor FROM incident_audit ORDER BY ts ASC, id ASC`)
}

// DeleteIncidentAuditBefore removes lines older than cutoff.
func (r *IncidentAuditRepo) DeleteIncidentAuditBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM incident_audit WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// DeleteAllIncidentAudit clears the log.
func (r *IncidentAuditRepo) DeleteAllIncidentAudit(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM incident_audit`)
	return err
}
