package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/scmc-ops/hoscad/internal/errs"
	"github.com/scmc-ops/hoscad/internal/model"
)

// UnitRepo implements UnitRepository using PostgreSQL.
type UnitRepo struct{ db *DB }

// NewUnitRepo constructs a unit repository.
func NewUnitRepo(db *DB) *UnitRepo { return &UnitRepo{db: db} }

const unitCols = `unit_id, display_name, unit_type, active, status, note, unit_info, incident, destination, updated_at, updated_by, push_token`

func scanUnit(row pgx.Row) (*model.Unit, error) {
	var u model.Unit
	var status string
	err := row.Scan(&u.UnitID, &u.DisplayName, &u.Type, &u.Active, &status, &u.Note,
		&u.UnitInfo, &u.Incident, &u.Destination, &u.UpdatedAt, &u.UpdatedBy, &u.PushToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	u.Status = model.UnitStatus(status)
	return &u, nil
}

// ListUnits returns every unit ordered by unit id.
func (r *UnitRepo) ListUnits(ctx context.Context) ([]model.Unit, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+unitCols+` FROM units ORDER BY unit_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// GetUnit loads one unit by id.
func (r *UnitRepo) GetUnit(ctx context.Context, unitID string) (*model.Unit, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+unitCols+` FROM units WHERE unit_id=$1`, strings.ToUpper(unitID))
	return scanUnit(row)
}

// PutUnit inserts or replaces a unit record.
func (r *UnitRepo) PutUnit(ctx context.Context, u *model.Unit) error {
	const q = `
INSERT INTO units (` + unitCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (unit_id) DO UPDATE SET
  display_name=EXCLUDED.display_name, unit_type=EXCLUDED.unit_type,
  active=EXCLUDED.active, status=EXCLUDED.status, note=EXCLUDED.note,
  unit_info=EXCLUDED.unit_info, incident=EXCLUDED.incident,
  destination=EXCLUDED.destination, updated_at=EXCLUDED.updated_at,
  updated_by=EXCLUDED.updated_by, push_token=EXCLUDED.push_token`
	_, err := r.db.Pool.Exec(ctx, q,
		strings.ToUpper(u.UnitID), u.DisplayName, u.Type, u.Active, string(u.Status),
		u.Note, u.UnitInfo, u.Incident, u.Destination, u.UpdatedAt, u.UpdatedBy, u.PushToken)
	return err
}

// DeleteUnit removes a unit record.
func (r *UnitRepo) DeleteUnit(ctx context.Context, unitID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM units WHERE unit_id=$1`, strings.ToUpper(unitID))
	return err
}

// DeleteInactiveUnits removes every logged-off unit.
func (r *UnitRepo) DeleteInactiveUnits(ctx context.Context) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM units WHERE active=false`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// DeleteAllUnits clears the directory.
func (r *UnitRepo) DeleteAllUnits(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM units`)
	return err
}
