// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/scmc-ops/hoscad/internal/model"
)

// UnitRepository provides keyed access to the unit directory.
type UnitRepository interface {
	// ListUnits returns every unit, ordered by unit id.
	ListUnits(ctx context.Context) ([]model.Unit, error)
	// GetUnit loads a unit by id. Returns errs.ErrNotFound when absent.
	GetUnit(ctx context.Context, unitID string) (*model.Unit, error)
	// PutUnit inserts or replaces a unit record.
	PutUnit(ctx context.Context, u *model.Unit) error
	// DeleteUnit removes a unit record.
	DeleteUnit(ctx context.Context, unitID string) error
	// DeleteInactiveUnits removes every logged-off unit and returns the count.
	DeleteInactiveUnits(ctx context.Context) (int, error)
	// DeleteAllUnits clears the directory.
	DeleteAllUnits(ctx context.Context) error
}
