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

// IncidentRepo implements IncidentRepository using PostgreSQL. The unit
// membership set is stored comma-joined in a single column and split on
// scan; the domain type only ever sees the slice.
type IncidentRepo struct{ db *DB }

// NewIncidentRepo constructs an incident repository.
func NewIncidentRepo(db *DB) *IncidentRepo { return &IncidentRepo{db: db} }

const incidentCols = `incident_id, created_at, created_by, status, units, destination, note, incident_type, last_update, updated_by`

func joinUnits(units []string) string { return strings.Join(units, ",") }

func splitUnits(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func scanIncident(row pgx.Row) (*model.Incident, error) {
	var inc model.Incident
	var status, units string
	err := row.Scan(&inc.IncidentID, &inc.CreatedAt, &inc.CreatedBy, &status, &units,
		&inc.Destination, &inc.Note, &inc.Type, &inc.LastUpdate, &inc.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	inc.Status = model.IncidentStatus(status)
	inc.Units = splitUnits(units)
	return &inc, nil
}

// ListIncidents returns every incident newest first.
func (r *IncidentRepo) ListIncidents(ctx context.Context) ([]model.Incident, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+incidentCols+` FROM incidents ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inc)
	}
	return out, rows.Err()
}

// GetIncident loads one incident by id.
func (r *IncidentRepo) GetIncident(ctx context.Context, incidentID string) (*model.Incident, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+incidentCols+` FROM incidents WHERE incident_id=$1`, strings.ToUpper(incidentID))
	return scanIncident(row)
}

// PutIncident inserts or replaces an incident record.
func (r *IncidentRepo) PutIncident(ctx context.Context, inc *model.Incident) error {
	const q = `
INSERT INTO incidents (` + incidentCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (incident_id) DO UPDATE SET
  status=EXCLUDED.status, units=EXCLUDED.units, destination=EXCLUDED.destination,
  note=EXCLUDED.note, incident_type=EXCLUDED.incident_type,
  last_update=EXCLUDED.last_update, updated_by=EXCLUDED.updated_by`
	_, err := r.db.Pool.Exec(ctx, q,
		strings.ToUpper(inc.IncidentID), inc.CreatedAt, inc.CreatedBy, string(inc.Status),
		joinUnits(inc.Units), inc.Destination, inc.Note, inc.Type, inc.LastUpdate, inc.UpdatedBy)
	return err
}

// DeleteClosedBefore removes closed incidents idle since cutoff.
func (r *IncidentRepo) DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM incidents WHERE status='CLOSED' AND last_update < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// DeleteAllIncidents clears the directory.
func (r *IncidentRepo) DeleteAllIncidents(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM incidents`)
	return err
}

// CounterRepo persists the per-year incident sequence in a single row.
type CounterRepo struct{ db *DB }

// NewCounterRepo constructs a counter repository.
func NewCounterRepo(db *DB) *CounterRepo { return &CounterRepo{db: db} }

// GetCounter returns the stored year and last issued sequence.
func (r *CounterRepo) GetCounter(ctx context.Context) (int, int, error) {
	var year, seq int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT year, seq FROM incident_counter WHERE id=1`).Scan(&year, &seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return year, seq, nil
}

// SetCounter persists the year and last issued sequence.
func (r *CounterRepo) SetCounter(ctx context.Context, year, seq int) error {
	const q = `
INSERT INTO incident_counter (id, year, seq) VALUES (1,$1,$2)
ON CONFLICT (id) DO UPDATE SET year=EXCLUDED.year, seq=EXCLUDED.seq`
	_, err := r.db.Pool.Exec(ctx, q, year, seq)
	return err
}
