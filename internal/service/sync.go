package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scmc-ops/hoscad/internal/errs"
	"github.com/scmc-ops/hoscad/internal/model"
	"github.com/scmc-ops/hoscad/internal/repository"
)

// Syncer reconciles incident membership after every unit write. Detach and
// attach are set operations, so replaying the same (before, after) pair is
// a no-op beyond the first call.
type Syncer struct {
	incidents repository.IncidentRepository
	now       Clock
	log       *zap.Logger
}

// NewSyncer constructs the synchronization engine.
func NewSyncer(incidents repository.IncidentRepository, now Clock, log *zap.Logger) *Syncer {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{incidents: incidents, now: now, log: log}
}

// Reconcile applies the membership consequences of a unit moving from
// before to after. before may be nil on first contact.
func (s *Syncer) Reconcile(ctx context.Context, before, after *model.Unit, actor string) error {
	if err := s.detach(ctx, before, after, actor); err != nil {
		return err
	}
	return s.attach(ctx, after, actor)
}

func (s *Syncer) detach(ctx context.Context, before, after *model.Unit, actor string) error {
	if before == nil || before.Incident == "" || before.Incident == after.Incident {
		return nil
	}
	inc, err := s.incidents.GetIncident(ctx, before.Incident)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load incident %s: %w", before.Incident, err)
	}

	inc.RemoveUnit(after.UnitID)
	inc.LastUpdate = s.now()
	inc.UpdatedBy = actor
	if len(inc.Units) == 0 {
		inc.Status = model.IncidentClosed
	}
	return s.incidents.PutIncident(ctx, inc)
}

func (s *Syncer) attach(ctx context.Context, after *model.Unit, actor string) error {
	if after.Incident == "" {
		return nil
	}
	now := s.now()

	inc, err := s.incidents.GetIncident(ctx, after.Incident)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		// Ad-hoc incidents are born from the unit write itself. A colliding
		// id issued elsewhere lands in the branch below and merges instead.
		inc = &model.Incident{
			IncidentID:  after.Incident,
			CreatedAt:   now,
			CreatedBy:   actor,
			Status:      model.IncidentActive,
			Units:       []string{after.UnitID},
			Destination: after.Destination,
			LastUpdate:  now,
			UpdatedBy:   actor,
		}
		return s.incidents.PutIncident(ctx, inc)
	case err != nil:
		return fmt.Errorf("load incident %s: %w", after.Incident, err)
	}

	inc.AddUnit(after.UnitID)
	// Attaching always reactivates, even a CLOSED incident.
	inc.Status = model.IncidentActive
	if after.Destination != "" {
		inc.Destination = after.Destination
	}
	inc.LastUpdate = now
	inc.UpdatedBy = actor
	return s.incidents.PutIncident(ctx, inc)
}
