// Package service contains the dispatch engine: unit mutation with the
// optimistic concurrency guard, incident lifecycle, audit/undo, metrics,
// auth, and messaging.
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
	"github.com/scmc-ops/hoscad/internal/transition"
)

// Board is the unit mutation service. Every write runs the same pipeline:
// concurrency guard, patch merge, rule evaluation, primary write, then
// best-effort incident sync and audit append.
//
// The guard check and the write are separate store calls, so a narrow
// read-modify-write window remains between them; the updated_at token is
// the only lost-update protection.
type Board struct {
	units     repository.UnitRepository
	incidents repository.IncidentRepository
	audit     repository.AuditRepository
	incAudit  repository.IncidentAuditRepository
	issuer    *Issuer
	sync      *Syncer
	now       Clock
	log       *zap.Logger
}

// NewBoard wires the unit mutation service.
func NewBoard(
	units repository.UnitRepository,
	incidents repository.IncidentRepository,
	audit repository.AuditRepository,
	incAudit repository.IncidentAuditRepository,
	issuer *Issuer,
	sync *Syncer,
	now Clock,
	log *zap.Logger,
) *Board {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Board{
		units: units, incidents: incidents, audit: audit, incAudit: incAudit,
		issuer: issuer, sync: sync, now: now, log: log,
	}
}

func normalizeUnitID(raw string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if id == "" {
		return "", fmt.Errorf("%w: missing unit", errs.ErrValidation)
	}
	return id, nil
}

// ListUnits returns the whole board.
func (b *Board) ListUnits(ctx context.Context) ([]model.Unit, error) {
	return b.units.ListUnits(ctx)
}

// GetUnit returns one unit.
func (b *Board) GetUnit(ctx context.Context, unitID string) (*model.Unit, error) {
	id, err := normalizeUnitID(unitID)
	if err != nil {
		return nil, err
	}
	return b.units.GetUnit(ctx, id)
}

// UpsertUnit creates or mutates a unit. expectedUpdatedAt is the caller's
// version token; when the record exists and a non-empty token mismatches,
// the call fails with a ConflictError carrying the current record and
// nothing is written. An empty token bypasses the guard (last writer wins,
// used by bulk operations).
//
// Incident sync and the audit append run after the primary write and are
// best effort: their failures are logged, not rolled back.
func (b *Board) UpsertUnit(ctx context.Context, unitID string, patch *model.UnitPatch, expectedUpdatedAt, actor string) (*model.Unit, error) {
	id, err := normalizeUnitID(unitID)
	if err != nil {
		return nil, err
	}
	now := b.now()

	before, err := b.units.GetUnit(ctx, id)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("load unit %s: %w", id, err)
	}
	if errors.Is(err, errs.ErrNotFound) {
		before = nil
	}

	if before != nil && expectedUpdatedAt != "" && before.UpdatedAt != expectedUpdatedAt {
		return nil, &errs.ConflictError{Current: before}
	}

	next := model.Unit{
		UnitID: id, DisplayName: id, Active: true, Status: model.StatusAvailable,
	}
	if before != nil {
		next = *before
	}
	applyPatch(&next, patch)
	normalizeUnit(&next)

	if _, err := model.ParseUnitStatus(string(next.Status)); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}

	fx := transition.Evaluate(before, &next, patch)
	if fx.AutoCreateIncident {
		incID, err := b.issuer.Next(ctx)
		if err != nil {
			return nil, err
		}
		next.Incident = incID
	}
	if fx.CloseIncident != "" {
		if err := b.forceClose(ctx, fx.CloseIncident, actor, now); err != nil {
			return nil, err
		}
	}
	if fx.ClearIncidentRef {
		next.Incident = ""
	}
	if fx.ClearNote {
		next.Note = ""
	}
	if fx.ActivateIncident != "" {
		if err := b.promoteQueued(ctx, fx.ActivateIncident, actor, now); err != nil {
			return nil, err
		}
	}

	next.UpdatedAt = model.FormatTime(now)
	next.UpdatedBy = actor

	if err := b.units.PutUnit(ctx, &next); err != nil {
		return nil, fmt.Errorf("write unit %s: %w", id, err)
	}

	b.reconcile(ctx, before, &next, actor)
	b.appendAudit(ctx, before, &next, actor, "", now)

	return &next, nil
}

func applyPatch(next *model.Unit, patch *model.UnitPatch) {
	if patch == nil {
		return
	}
	if patch.DisplayName != nil {
		if v := strings.TrimSpace(*patch.DisplayName); v != "" {
			next.DisplayName = v
		}
	}
	if patch.Type != nil {
		next.Type = strings.TrimSpace(*patch.Type)
	}
	if patch.Active != nil {
		next.Active = *patch.Active
	}
	if patch.Status != nil {
		next.Status = model.UnitStatus(strings.TrimSpace(*patch.Status))
	}
	if patch.Note != nil {
		next.Note = *patch.Note
	}
	if patch.UnitInfo != nil {
		next.UnitInfo = *patch.UnitInfo
	}
	if patch.Destination != nil {
		next.Destination = *patch.Destination
	}
	if patch.Incident != nil {
		next.Incident = strings.TrimSpace(*patch.Incident)
	}
	if patch.PushToken != nil {
		next.PushToken = *patch.PushToken
	}
}

// normalizeUnit uppercases stored fields, CAD style.
func normalizeUnit(u *model.Unit) {
	u.DisplayName = strings.ToUpper(u.DisplayName)
	u.Type = strings.ToUpper(u.Type)
	if u.Status == "" {
		u.Status = model.StatusAvailable
	}
	u.Status = model.UnitStatus(strings.ToUpper(string(u.Status)))
	u.Note = strings.ToUpper(u.Note)
	u.UnitInfo = strings.ToUpper(u.UnitInfo)
	u.Destination = strings.ToUpper(u.Destination)
	u.Incident = strings.ToUpper(u.Incident)
}

func (b *Board) forceClose(ctx context.Context, incidentID, actor string, now time.Time) error {
	inc, err := b.incidents.GetIncident(ctx, incidentID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load incident %s: %w", incidentID, err)
	}
	inc.Status = model.IncidentClosed
	inc.LastUpdate = now
	inc.UpdatedBy = actor
	return b.incidents.PutIncident(ctx, inc)
}

func (b *Board) promoteQueued(ctx context.Context, incidentID, actor string, now time.Time) error {
	inc, err := b.incidents.GetIncident(ctx, incidentID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load incident %s: %w", incidentID, err)
	}
	if inc.Status != model.IncidentQueued {
		return nil
	}
	inc.Status = model.IncidentActive
	inc.LastUpdate = now
	inc.UpdatedBy = actor
	return b.incidents.PutIncident(ctx, inc)
}

func (b *Board) reconcile(ctx context.Context, before, after *model.Unit, actor string) {
	if err := b.sync.Reconcile(ctx, before, after, actor); err != nil {
		b.log.Error("incident sync failed after unit write",
			zap.String("unit", after.UnitID), zap.Error(err))
	}
}

func (b *Board) appendAudit(ctx context.Context, before, after *model.Unit, actor string, override model.AuditAction, now time.Time) {
	action := override
	if action == "" {
		action = model.DeriveAction(before, after)
	}
	e := model.AuditEntry{TS: now, UnitID: after.UnitID, Action: action, Actor: actor, Next: after.Snapshot()}
	if before != nil {
		e.Prev = before.Snapshot()
	}
	if err := b.audit.AppendAudit(ctx, &e); err != nil {
		b.log.Error("audit append failed after unit write",
			zap.String("unit", after.UnitID), zap.Error(err))
	}
}

// TouchUnit refreshes a unit's version token without changing fields,
// resetting its staleness clock. Guarded like any other mutation.
func (b *Board) TouchUnit(ctx context.Context, unitID, expectedUpdatedAt, actor string) (*model.Unit, error) {
	id, err := normalizeUnitID(unitID)
	if err != nil {
		return nil, err
	}
	before, err := b.units.GetUnit(ctx, id)
	if err != nil {
		return nil, err
	}
	if expectedUpdatedAt != "" && before.UpdatedAt != expectedUpdatedAt {
		return nil, &errs.ConflictError{Current: before}
	}

	now := b.now()
	next := *before
	next.UpdatedAt = model.FormatTime(now)
	next.UpdatedBy = actor
	if err := b.units.PutUnit(ctx, &next); err != nil {
		return nil, fmt.Errorf("write unit %s: %w", id, err)
	}
	b.appendAudit(ctx, before, &next, actor, model.ActionTouch, now)
	return &next, nil
}

// TouchAllOnScene touches every active on-scene unit and returns their ids.
func (b *Board) TouchAllOnScene(ctx context.Context, actor string) ([]string, error) {
	units, err := b.units.ListUnits(ctx)
	if err != nil {
		return nil, err
	}
	now := b.now()
	touched := []string{}
	for i := range units {
		u := units[i]
		if !u.Active || u.Status != model.StatusOnScene {
			continue
		}
		next := u
		next.UpdatedAt = model.FormatTime(now)
		next.UpdatedBy = actor
		if err := b.units.PutUnit(ctx, &next); err != nil {
			return touched, fmt.Errorf("write unit %s: %w", u.UnitID, err)
		}
		b.appendAudit(ctx, &u, &next, actor, model.ActionTouch, now)
		touched = append(touched, u.UnitID)
	}
	return touched, nil
}

// UndoUnit restores the unit to the previous snapshot of its most recent
// audit entry, stamped fresh, then re-syncs incident membership. Single
// step only; a unit with no history is NOT_FOUND.
func (b *Board) UndoUnit(ctx context.Context, unitID, actor string) (*model.Unit, error) {
	id, err := normalizeUnitID(unitID)
	if err != nil {
		return nil, err
	}
	last, err := b.audit.LastUnitAudit(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("no audit record for %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	current, err := b.units.GetUnit(ctx, id)
	if err != nil {
		return nil, err
	}

	now := b.now()
	restored := model.Unit{UnitID: id, PushToken: current.PushToken}
	restored.Restore(last.Prev)
	if restored.DisplayName == "" {
		restored.DisplayName = id
	}
	if restored.Status == "" {
		restored.Status = model.StatusAvailable
	}
	restored.UpdatedAt = model.FormatTime(now)
	restored.UpdatedBy = actor

	if err := b.units.PutUnit(ctx, &restored); err != nil {
		return nil, fmt.Errorf("write unit %s: %w", id, err)
	}
	b.reconcile(ctx, current, &restored, actor)
	b.appendAudit(ctx, current, &restored, actor, model.ActionUndo, now)
	return &restored, nil
}

// LogoffUnit marks a unit inactive.
func (b *Board) LogoffUnit(ctx context.Context, unitID, expectedUpdatedAt, actor string) (*model.Unit, error) {
	off := false
	return b.UpsertUnit(ctx, unitID, &model.UnitPatch{Active: &off}, expectedUpdatedAt, actor)
}

// RidoffUnit returns a unit to a clean available state.
func (b *Board) RidoffUnit(ctx context.Context, unitID, expectedUpdatedAt, actor string) (*model.Unit, error) {
	av, empty := "AV", ""
	return b.UpsertUnit(ctx, unitID, &model.UnitPatch{
		Status: &av, Note: &empty, Incident: &empty, Destination: &empty,
	}, expectedUpdatedAt, actor)
}

// MassDispatch sends every active available unit to the destination, each
// on its own freshly issued incident. Last-writer-wins: there is no client
// token for a bulk action.
func (b *Board) MassDispatch(ctx context.Context, destination, actor string) ([]string, error) {
	dest := strings.ToUpper(strings.TrimSpace(destination))
	if dest == "" {
		return nil, fmt.Errorf("%w: destination required", errs.ErrValidation)
	}
	units, err := b.units.ListUnits(ctx)
	if err != nil {
		return nil, err
	}

	now := b.now()
	updated := []string{}
	for i := range units {
		u := units[i]
		if !u.Active || u.Status != model.StatusAvailable {
			continue
		}
		incID, err := b.issuer.Next(ctx)
		if err != nil {
			return updated, err
		}
		next := u
		next.Status = model.StatusPending
		next.Destination = dest
		next.Incident = incID
		next.UpdatedAt = model.FormatTime(now)
		next.UpdatedBy = actor
		if err := b.units.PutUnit(ctx, &next); err != nil {
			return updated, fmt.Errorf("write unit %s: %w", u.UnitID, err)
		}
		b.reconcile(ctx, &u, &next, actor)
		b.appendAudit(ctx, &u, &next, actor, model.ActionMass, now)
		updated = append(updated, u.UnitID)
	}
	return updated, nil
}

// LinkUnits attaches two units to the same incident, preserving their
// statuses.
func (b *Board) LinkUnits(ctx context.Context, unit1ID, unit2ID, incidentID, actor string) ([]model.Unit, error) {
	inc, err := model.NormalizeIncidentID(incidentID, b.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	u1, err := normalizeUnitID(unit1ID)
	if err != nil {
		return nil, err
	}
	u2, err := normalizeUnitID(unit2ID)
	if err != nil {
		return nil, err
	}

	first, err := b.units.GetUnit(ctx, u1)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", u1, err)
	}
	second, err := b.units.GetUnit(ctx, u2)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", u2, err)
	}

	now := b.now()
	out := make([]model.Unit, 0, 2)
	for _, before := range []*model.Unit{first, second} {
		next := *before
		next.Incident = inc
		next.UpdatedAt = model.FormatTime(now)
		next.UpdatedBy = actor
		if err := b.units.PutUnit(ctx, &next); err != nil {
			return nil, fmt.Errorf("write unit %s: %w", before.UnitID, err)
		}
		b.reconcile(ctx, before, &next, actor)
		b.appendAudit(ctx, before, &next, actor, model.ActionLink, now)
		out = append(out, next)
	}
	return out, nil
}

// TransferIncident hands an incident from one unit to another: the source
// goes available with its reference cleared, the target takes the
// incident with its status preserved.
func (b *Board) TransferIncident(ctx context.Context, fromUnitID, toUnitID, incidentID, actor string) (*model.Unit, *model.Unit, error) {
	inc, err := model.NormalizeIncidentID(incidentID, b.now())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	fromID, err := normalizeUnitID(fromUnitID)
	if err != nil {
		return nil, nil, err
	}
	toID, err := normalizeUnitID(toUnitID)
	if err != nil {
		return nil, nil, err
	}

	from, err := b.units.GetUnit(ctx, fromID)
	if err != nil {
		return nil, nil, fmt.Errorf("unit %s: %w", fromID, err)
	}
	to, err := b.units.GetUnit(ctx, toID)
	if err != nil {
		return nil, nil, fmt.Errorf("unit %s: %w", toID, err)
	}

	now := b.now()
	nextFrom := *from
	nextFrom.Incident = ""
	nextFrom.Status = model.StatusAvailable
	nextFrom.UpdatedAt = model.FormatTime(now)
	nextFrom.UpdatedBy = actor

	nextTo := *to
	nextTo.Incident = inc
	nextTo.UpdatedAt = model.FormatTime(now)
	nextTo.UpdatedBy = actor

	if err := b.units.PutUnit(ctx, &nextFrom); err != nil {
		return nil, nil, fmt.Errorf("write unit %s: %w", fromID, err)
	}
	if err := b.units.PutUnit(ctx, &nextTo); err != nil {
		return nil, nil, fmt.Errorf("write unit %s: %w", toID, err)
	}

	b.reconcile(ctx, from, &nextFrom, actor)
	b.reconcile(ctx, to, &nextTo, actor)
	b.appendAudit(ctx, from, &nextFrom, actor, model.ActionTransfer, now)
	b.appendAudit(ctx, to, &nextTo, actor, model.ActionTransfer, now)

	narrative := model.IncidentAuditEntry{
		TS: now, IncidentID: inc,
		Message: fmt.Sprintf("TRANSFERRED FROM %s TO %s", fromID, toID),
		Actor:   actor,
	}
	if err := b.incAudit.AppendIncidentAudit(ctx, &narrative); err != nil {
		b.log.Error("incident audit append failed", zap.String("incident", inc), zap.Error(err))
	}
	return &nextFrom, &nextTo, nil
}
