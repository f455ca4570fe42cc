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

// Incidents is the incident lifecycle service: queue creation, explicit
// close/reopen, field updates, and the narrative log.
type Incidents struct {
	incidents repository.IncidentRepository
	incAudit  repository.IncidentAuditRepository
	units     repository.UnitRepository
	audit     repository.AuditRepository
	issuer    *Issuer
	sync      *Syncer
	now       Clock
	log       *zap.Logger
}

// NewIncidents wires the incident service.
func NewIncidents(
	incidents repository.IncidentRepository,
	incAudit repository.IncidentAuditRepository,
	units repository.UnitRepository,
	audit repository.AuditRepository,
	issuer *Issuer,
	sync *Syncer,
	now Clock,
	log *zap.Logger,
) *Incidents {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Incidents{
		incidents: incidents, incAudit: incAudit, units: units, audit: audit,
		issuer: issuer, sync: sync, now: now, log: log,
	}
}

func (s *Incidents) normalize(raw string) (string, error) {
	id, err := model.NormalizeIncidentID(raw, s.now())
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	return id, nil
}

func (s *Incidents) narrate(ctx context.Context, incidentID, message, actor string) {
	e := model.IncidentAuditEntry{TS: s.now(), IncidentID: incidentID, Message: message, Actor: actor}
	if err := s.incAudit.AppendIncidentAudit(ctx, &e); err != nil {
		s.log.Error("incident audit append failed", zap.String("incident", incidentID), zap.Error(err))
	}
}

// List returns every incident, newest first.
func (s *Incidents) List(ctx context.Context) ([]model.Incident, error) {
	return s.incidents.ListIncidents(ctx)
}

// Get returns an incident and its last narrative lines, oldest first.
func (s *Incidents) Get(ctx context.Context, incidentID string) (*model.Incident, []model.IncidentAuditEntry, error) {
	id, err := s.normalize(incidentID)
	if err != nil {
		return nil, nil, err
	}
	inc, err := s.incidents.GetIncident(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("incident %s: %w", id, err)
	}
	lines, err := s.incAudit.ListIncidentAudit(ctx, id, 25)
	if err != nil {
		return nil, nil, err
	}
	// Repos hand lines back newest first; readers want chronological order.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return inc, lines, nil
}

// CreateQueued opens a new incident in the dispatch queue. Destination is
// required; an optional unit assignment sends that unit enroute and
// activates the incident immediately.
func (s *Incidents) CreateQueued(ctx context.Context, destination, note string, urgent bool, assignUnitID, incidentType, actor string) (string, error) {
	dest := strings.ToUpper(strings.TrimSpace(destination))
	if dest == "" {
		return "", fmt.Errorf("%w: destination required", errs.ErrValidation)
	}

	id, err := s.issuer.Next(ctx)
	if err != nil {
		return "", err
	}
	now := s.now()
	inc := model.Incident{
		IncidentID:  id,
		CreatedAt:   now,
		CreatedBy:   actor,
		Status:      model.IncidentQueued,
		Destination: dest,
		Note:        strings.ToUpper(strings.TrimSpace(note)),
		Type:        strings.ToUpper(strings.TrimSpace(incidentType)),
		LastUpdate:  now,
		UpdatedBy:   actor,
	}
	if err := s.incidents.PutIncident(ctx, &inc); err != nil {
		return "", fmt.Errorf("write incident %s: %w", id, err)
	}

	msg := "INCIDENT CREATED IN QUEUE"
	if urgent {
		msg += " [URGENT]"
	}
	s.narrate(ctx, id, msg, actor)

	unitID := strings.ToUpper(strings.TrimSpace(assignUnitID))
	if unitID == "" {
		return id, nil
	}
	before, err := s.units.GetUnit(ctx, unitID)
	if errors.Is(err, errs.ErrNotFound) {
		// Queue entry stands even when the named unit is unknown.
		return id, nil
	}
	if err != nil {
		return id, err
	}

	next := *before
	next.Status = model.StatusEnroute
	next.Incident = id
	next.Destination = dest
	next.UpdatedAt = model.FormatTime(now)
	next.UpdatedBy = actor
	if err := s.units.PutUnit(ctx, &next); err != nil {
		return id, fmt.Errorf("write unit %s: %w", unitID, err)
	}
	if err := s.sync.Reconcile(ctx, before, &next, actor); err != nil {
		s.log.Error("incident sync failed after assignment", zap.String("unit", unitID), zap.Error(err))
	}
	e := model.AuditEntry{
		TS: now, UnitID: unitID, Action: model.ActionAssign, Actor: actor,
		Prev: before.Snapshot(), Next: next.Snapshot(),
	}
	if err := s.audit.AppendAudit(ctx, &e); err != nil {
		s.log.Error("audit append failed after assignment", zap.String("unit", unitID), zap.Error(err))
	}
	return id, nil
}

// Update patches incident note, type, and destination. At least one field
// must be supplied; a nil destination leaves it alone while an empty one
// clears it.
func (s *Incidents) Update(ctx context.Context, incidentID, note, incidentType string, destination *string, actor string) error {
	id, err := s.normalize(incidentID)
	if err != nil {
		return err
	}
	msg := strings.ToUpper(strings.TrimSpace(note))
	newType := strings.ToUpper(strings.TrimSpace(incidentType))
	if msg == "" && newType == "" && destination == nil {
		return fmt.Errorf("%w: nothing to update", errs.ErrValidation)
	}

	inc, err := s.incidents.GetIncident(ctx, id)
	if err != nil {
		return fmt.Errorf("incident %s: %w", id, err)
	}

	var parts []string
	if msg != "" {
		inc.Note = msg
		parts = append(parts, msg)
	}
	if newType != "" {
		inc.Type = newType
		parts = append(parts, "[TYPE: "+newType+"]")
	}
	if destination != nil {
		dest := strings.ToUpper(strings.TrimSpace(*destination))
		inc.Destination = dest
		if dest == "" {
			dest = "CLEARED"
		}
		parts = append(parts, "[DEST: "+dest+"]")
	}
	inc.LastUpdate = s.now()
	inc.UpdatedBy = actor
	if err := s.incidents.PutIncident(ctx, inc); err != nil {
		return fmt.Errorf("write incident %s: %w", id, err)
	}
	s.narrate(ctx, id, strings.Join(parts, " "), actor)
	return nil
}

// AppendNote replaces the incident note and logs the line.
func (s *Incidents) AppendNote(ctx context.Context, incidentID, message, actor string) error {
	id, err := s.normalize(incidentID)
	if err != nil {
		return err
	}
	msg := strings.ToUpper(strings.TrimSpace(message))
	if msg == "" {
		return fmt.Errorf("%w: missing note message", errs.ErrValidation)
	}
	inc, err := s.incidents.GetIncident(ctx, id)
	if err != nil {
		return fmt.Errorf("incident %s: %w", id, err)
	}
	inc.Note = msg
	inc.LastUpdate = s.now()
	inc.UpdatedBy = actor
	if err := s.incidents.PutIncident(ctx, inc); err != nil {
		return fmt.Errorf("write incident %s: %w", id, err)
	}
	s.narrate(ctx, id, msg, actor)
	return nil
}

// Touch bumps an incident's freshness stamp, resetting its staleness clock.
func (s *Incidents) Touch(ctx context.Context, incidentID, actor string) error {
	id, err := s.normalize(incidentID)
	if err != nil {
		return err
	}
	inc, err := s.incidents.GetIncident(ctx, id)
	if err != nil {
		return fmt.Errorf("incident %s: %w", id, err)
	}
	inc.LastUpdate = s.now()
	inc.UpdatedBy = actor
	return s.incidents.PutIncident(ctx, inc)
}

// Close marks an incident CLOSED regardless of membership.
func (s *Incidents) Close(ctx context.Context, incidentID, actor string) error {
	id, err := s.normalize(incidentID)
	if err != nil {
		return err
	}
	inc, err := s.incidents.GetIncident(ctx, id)
	if err != nil {
		return fmt.Errorf("incident %s: %w", id, err)
	}
	inc.Status = model.IncidentClosed
	inc.LastUpdate = s.now()
	inc.UpdatedBy = actor
	if err := s.incidents.PutIncident(ctx, inc); err != nil {
		return fmt.Errorf("write incident %s: %w", id, err)
	}
	s.narrate(ctx, id, "INCIDENT MANUALLY CLOSED", actor)
	return nil
}

// Reopen moves an incident back to ACTIVE without restoring members.
func (s *Incidents) Reopen(ctx context.Context, incidentID, actor string) error {
	id, err := s.normalize(incidentID)
	if err != nil {
		return err
	}
	inc, err := s.incidents.GetIncident(ctx, id)
	if err != nil {
		return fmt.Errorf("incident %s: %w", id, err)
	}
	inc.Status = model.IncidentActive
	inc.LastUpdate = s.now()
	inc.UpdatedBy = actor
	if err := s.incidents.PutIncident(ctx, inc); err != nil {
		return fmt.Errorf("write incident %s: %w", id, err)
	}
	s.narrate(ctx, id, "INCIDENT REOPENED", actor)
	return nil
}
