package repository

import (
	"context"
	"time"

	"github.com/scmc-ops/hoscad/internal/model"
)

// IncidentRepository provides keyed access to the incident directory.
type IncidentRepository interface {
	// ListIncidents returns every incident, newest first.
	ListIncidents(ctx context.Context) ([]model.Incident, error)
	// GetIncident loads an incident by id. Returns errs.ErrNotFound when absent.
	GetIncident(ctx context.Context, incidentID string) (*model.Incident, error)
	// PutIncident inserts or replaces an incident record.
	PutIncident(ctx context.Context, inc *model.Incident) error
	// DeleteClosedBefore removes closed incidents idle since cutoff, returns count.
	DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int, error)
	// DeleteAllIncidents clears the directory.
	DeleteAllIncidents(ctx context.Context) error
}

// CounterRepository holds the per-year incident sequence state.
type CounterRepository interface {
	// GetCounter returns the stored year and last issued sequence.
	GetCounter(ctx context.Context) (year int, seq int, err error)
	// SetCounter persists the year and last issued sequence.
	SetCounter(ctx context.Context, year int, seq int) error
}
