package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scmc-ops/hoscad/internal/errs"
	"github.com/scmc-ops/hoscad/internal/model"
	"github.com/scmc-ops/hoscad/internal/repository"
)

// Retention cutoffs for the purge pass.
const (
	messageRetention  = 7 * 24 * time.Hour
	sessionRetention  = 7 * 24 * time.Hour
	auditRetention    = 30 * 24 * time.Hour
	incidentRetention = 30 * 24 * time.Hour
)

const (
	searchMinChars = 2
	searchCap      = 50
	summaryLen     = 80
)

// SearchResult is one hit from the cross-log search.
type SearchResult struct {
	Kind    string    `json:"kind"` // audit, incident, incident_log
	Ref     string    `json:"ref"`
	TS      time.Time `json:"ts"`
	Summary string    `json:"summary"`
}

// PurgeReport counts what a retention pass removed.
type PurgeReport struct {
	Messages      int `json:"messages"`
	Sessions      int `json:"sessions"`
	Audit         int `json:"audit"`
	IncidentAudit int `json:"incident_audit"`
	Incidents     int `json:"incidents"`
}

// Admin covers supervisor-only maintenance: search, bulk data clears,
// and the retention purge.
type Admin struct {
	units    repository.UnitRepository
	incs     repository.IncidentRepository
	audit    repository.AuditRepository
	incAudit repository.IncidentAuditRepository
	msgs     repository.MessageRepository
	sessions repository.SessionRepository
	now      Clock
	log      *zap.Logger
}

// NewAdmin wires the maintenance service.
func NewAdmin(
	units repository.UnitRepository,
	incs repository.IncidentRepository,
	audit repository.AuditRepository,
	incAudit repository.IncidentAuditRepository,
	msgs repository.MessageRepository,
	sessions repository.SessionRepository,
	now Clock,
	log *zap.Logger,
) *Admin {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Admin{
		units: units, incs: incs, audit: audit, incAudit: incAudit,
		msgs: msgs, sessions: sessions, now: now, log: log,
	}
}

func summarize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > summaryLen {
		return s[:summaryLen-3] + "..."
	}
	return s
}

// Search scans the audit ledger, the incident directory, and the incident
// narrative for a case-insensitive substring. Queries shorter than two
// characters are rejected; results are capped at fifty.
func (a *Admin) Search(ctx context.Context, query string) ([]SearchResult, error) {
	q := strings.ToUpper(strings.TrimSpace(query))
	if len(q) < searchMinChars {
		return nil, fmt.Errorf("%w: query too short", errs.ErrValidation)
	}

	match := func(fields ...string) bool {
		for _, f := range fields {
			if strings.Contains(strings.ToUpper(f), q) {
				return true
			}
		}
		return false
	}

	var out []SearchResult
	add := func(r SearchResult) bool {
		out = append(out, r)
		return len(out) >= searchCap
	}

	entries, err := a.audit.ListAuditSince(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if !match(e.UnitID, e.Actor, string(e.Action), e.Prev.Incident, e.Next.Incident, e.Prev.Note, e.Next.Note) {
			continue
		}
		sum := fmt.Sprintf("%s %s %s>%s", e.UnitID, e.Action, e.Prev.Status, e.Next.Status)
		if add(SearchResult{Kind: "audit", Ref: e.UnitID, TS: e.TS, Summary: summarize(sum)}) {
			return out, nil
		}
	}

	incs, err := a.incs.ListIncidents(ctx)
	if err != nil {
		return nil, err
	}
	for _, inc := range incs {
		if !match(inc.IncidentID, inc.Type, inc.Destination, inc.Note, strings.Join(inc.Units, " ")) {
			continue
		}
		sum := fmt.Sprintf("%s %s %s", inc.IncidentID, inc.Status, inc.Type)
		if add(SearchResult{Kind: "incident", Ref: inc.IncidentID, TS: inc.LastUpdate, Summary: summarize(sum)}) {
			return out, nil
		}
	}

	lines, err := a.incAudit.ListAllIncidentAudit(ctx)
	if err != nil {
		return nil, err
	}
	for i := len(lines) - 1; i >= 0; i-- {
		l := lines[i]
		if !match(l.IncidentID, l.Message, l.Actor) {
			continue
		}
		if add(SearchResult{Kind: "incident_log", Ref: l.IncidentID, TS: l.TS, Summary: summarize(l.IncidentID + ": " + l.Message)}) {
			return out, nil
		}
	}
	return out, nil
}

// ClearData bulk-deletes a named dataset. Supervisor roles only; the
// target is one of UNITS, INACTIVE, AUDIT, INCIDENTS, MESSAGES, ALL.
func (a *Admin) ClearData(ctx context.Context, id Identity, target string) error {
	if !strings.HasPrefix(id.Role, "SUPV") {
		return fmt.Errorf("supervisor role required: %w", errs.ErrUnauthorized)
	}

	t := strings.ToUpper(strings.TrimSpace(target))
	clear := func(fns ...func() error) error {
		for _, fn := range fns {
			if err := fn(); err != nil {
				return err
			}
		}
		a.log.Info("data cleared", zap.String("target", t), zap.String("actor", id.Actor))
		return nil
	}

	clearUnits := func() error { return a.units.DeleteAllUnits(ctx) }
	clearInactive := func() error { _, err := a.units.DeleteInactiveUnits(ctx); return err }
	clearAudit := func() error { return a.audit.DeleteAllAudit(ctx) }
	clearIncidents := func() error {
		if err := a.incs.DeleteAllIncidents(ctx); err != nil {
			return err
		}
		return a.incAudit.DeleteAllIncidentAudit(ctx)
	}
	clearMessages := func() error { return a.msgs.DeleteAllMessages(ctx) }

	switch t {
	case "UNITS":
		return clear(clearUnits)
	case "INACTIVE":
		return clear(clearInactive)
	case "AUDIT":
		return clear(clearAudit)
	case "INCIDENTS":
		return clear(clearIncidents)
	case "MESSAGES":
		return clear(clearMessages)
	case "ALL":
		return clear(clearUnits, clearAudit, clearIncidents, clearMessages)
	default:
		return fmt.Errorf("%w: unknown clear target %q", errs.ErrValidation, target)
	}
}

// Purge applies the retention policy: week-old messages and idle
// sessions, month-old audit rows and closed incidents.
func (a *Admin) Purge(ctx context.Context) (PurgeReport, error) {
	now := a.now()
	var rpt PurgeReport
	var err error

	if rpt.Messages, err = a.msgs.DeleteMessagesBefore(ctx, now.Add(-messageRetention)); err != nil {
		return rpt, err
	}
	if rpt.Sessions, err = a.sessions.DeleteSessionsIdleBefore(ctx, now.Add(-sessionRetention)); err != nil {
		return rpt, err
	}
	if rpt.Audit, err = a.audit.DeleteAuditBefore(ctx, now.Add(-auditRetention)); err != nil {
		return rpt, err
	}
	if rpt.IncidentAudit, err = a.incAudit.DeleteIncidentAuditBefore(ctx, now.Add(-auditRetention)); err != nil {
		return rpt, err
	}
	if rpt.Incidents, err = a.incs.DeleteClosedBefore(ctx, now.Add(-incidentRetention)); err != nil {
		return rpt, err
	}

	if rpt != (PurgeReport{}) {
		a.log.Info("retention purge",
			zap.Int("messages", rpt.Messages),
			zap.Int("sessions", rpt.Sessions),
			zap.Int("audit", rpt.Audit),
			zap.Int("incident_audit", rpt.IncidentAudit),
			zap.Int("incidents", rpt.Incidents),
		)
	}
	return rpt, nil
}

// Reference serves the lookup tables and the dispatcher banner.
type Reference struct {
	refs repository.ReferenceRepository
}

// NewReference wires the reference service.
func NewReference(refs repository.ReferenceRepository) *Reference {
	return &Reference{refs: refs}
}

// Destinations returns the transport destination table.
func (r *Reference) Destinations(ctx context.Context) ([]model.Destination, error) {
	return r.refs.ListDestinations(ctx)
}

// Addresses returns the address book.
func (r *Reference) Addresses(ctx context.Context) ([]model.Address, error) {
	return r.refs.ListAddresses(ctx)
}

// Banner returns the banner text for a key, empty when unset.
func (r *Reference) Banner(ctx context.Context, key string) (string, error) {
	return r.refs.GetBanner(ctx, strings.ToLower(strings.TrimSpace(key)))
}

// SetBanner stores banner text; an empty value clears the banner.
func (r *Reference) SetBanner(ctx context.Context, key, value string) error {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return fmt.Errorf("%w: banner key required", errs.ErrValidation)
	}
	return r.refs.SetBanner(ctx, k, strings.TrimSpace(value))
}
