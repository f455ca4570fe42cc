package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/scmc-ops/hoscad/internal/model"
)

// ReferenceRepo implements ReferenceRepository using PostgreSQL.
type ReferenceRepo struct{ db *DB }

// NewReferenceRepo constructs a reference data repository.
func NewReferenceRepo(db *DB) *ReferenceRepo { return &ReferenceRepo{db: db} }

// ListDestinations returns the transport destination table.
func (r *ReferenceRepo) ListDestinations(ctx context.Context) ([]model.Destination, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT code, name FROM destinations ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Destination
	for rows.Next() {
		var d model.Destination
		if err := rows.Scan(&d.Code, &d.Name); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListAddresses returns the address book.
func (r *ReferenceRepo) ListAddresses(ctx context.Context) ([]model.Address, error) {
	const q = `
SELECT id, name, address, city, state, zip, category, aliases, phone, notes
FROM addresses ORDER BY name`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Address
	for rows.Next() {
		var a model.Address
		if err := rows.Scan(&a.ID, &a.Name, &a.Address, &a.City, &a.State, &a.Zip,
			&a.Category, &a.Aliases, &a.Phone, &a.Notes); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetBanner returns the banner value for a key, "" when unset.
func (r *ReferenceRepo) GetBanner(ctx context.Context, key string) (string, error) {
	var v string
	err := r.db.Pool.QueryRow(ctx, `SELECT value FROM banners WHERE key=$1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// SetBanner stores a banner value; empty value clears it.
func (r *ReferenceRepo) SetBanner(ctx context.Context, key, value string) error {
	if value == "" {
		_, err := r.db.Pool.Exec(ctx, `DELETE FROM banners WHERE key=$1`, key)
		return err
	}
	const q = `
INSERT INTO banners (key, value) VALUES ($1,$2)
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value`
	_, err := r.db.Pool.Exec(ctx, q, key, value)
	return err
}
