package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/scmc-ops/hoscad/internal/model"
	"github.com/scmc-ops/hoscad/internal/repository"
)

// StaleThresholds classify how long a unit may sit untouched in a transit
// status before the board flags it. Minutes.
type StaleThresholds struct {
	Warn          int `yaml:"warn_minutes"`
	Alert         int `yaml:"alert_minutes"`
	Critical      int `yaml:"critical_minutes"`
	IncidentStale int `yaml:"incident_stale_minutes"`
}

// DefaultStaleThresholds mirrors long-standing dispatch practice.
func DefaultStaleThresholds() StaleThresholds {
	return StaleThresholds{Warn: 10, Alert: 20, Critical: 30, IncidentStale: 30}
}

// StaleUnit is one advisory staleness flag. Nothing is auto-transitioned.
type StaleUnit struct {
	UnitID   string           `json:"unit_id"`
	Status   model.UnitStatus `json:"status"`
	Minutes  int              `json:"minutes"`
	Severity string           `json:"severity"`
}

// TransitionAverages maps pair labels like "D>DE" to average minutes; a
// nil value means no qualifying samples in the window.
type TransitionAverages map[string]*float64

// Metrics is the transition-timing report.
type Metrics struct {
	WindowHours     int                `json:"windowHours"`
	AveragesMinutes TransitionAverages `json:"averagesMinutes"`
	LongestOnScene  *StaleUnit         `json:"longestCurrentlyOnScene,omitempty"`
}

// SystemStatus is the at-a-glance board summary.
type SystemStatus struct {
	TotalUnits      int            `json:"totalUnits"`
	ActiveUnits     int            `json:"activeUnits"`
	ByStatus        map[string]int `json:"byStatus"`
	ActiveIncidents int            `json:"activeIncidents"`
	StaleIncidents  int            `json:"staleIncidents"`
}

// OOSPeriod is one out-of-service span inside the report window.
type OOSPeriod struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Minutes int       `json:"duration"`
	Ongoing bool      `json:"ongoing,omitempty"`
}

// OOSUnitReport aggregates a unit's out-of-service time.
type OOSUnitReport struct {
	UnitID       string      `json:"unit"`
	Periods      []OOSPeriod `json:"periods"`
	TotalMinutes int         `json:"totalMinutes"`
}

// OOSReport is the out-of-service summary for a trailing window.
type OOSReport struct {
	Start        time.Time       `json:"startTime"`
	End          time.Time       `json:"endTime"`
	TotalMinutes int             `json:"totalOOSMinutes"`
	TotalHours   string          `json:"totalOOSHours"`
	Units        []OOSUnitReport `json:"units"`
}

// Reporter derives staleness and timing statistics from the directory and
// the audit ledger. Read-only; everything is recomputed per call.
type Reporter struct {
	units      repository.UnitRepository
	incidents  repository.IncidentRepository
	audit      repository.AuditRepository
	thresholds StaleThresholds
	now        Clock
}

// NewReporter wires the metrics service.
func NewReporter(
	units repository.UnitRepository,
	incidents repository.IncidentRepository,
	audit repository.AuditRepository,
	thresholds StaleThresholds,
	now Clock,
) *Reporter {
	if now == nil {
		now = time.Now
	}
	if thresholds == (StaleThresholds{}) {
		thresholds = DefaultStaleThresholds()
	}
	return &Reporter{units: units, incidents: incidents, audit: audit, thresholds: thresholds, now: now}
}

// Thresholds returns the configured staleness thresholds.
func (r *Reporter) Thresholds() StaleThresholds { return r.thresholds }

// clampWindow bounds a report window to 1..168 hours, defaulting to 12.
func clampWindow(hours int) int {
	if hours <= 0 {
		return 12
	}
	if hours > 168 {
		return 168
	}
	return hours
}

func minutesSince(now time.Time, iso string) (int, bool) {
	t, err := time.Parse(model.TimeLayout, iso)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, iso); err != nil {
			return 0, false
		}
	}
	return int(now.Sub(t).Minutes()), true
}

// Staleness flags active transit-status units past the warn threshold.
func (r *Reporter) Staleness(ctx context.Context) ([]StaleUnit, error) {
	units, err := r.units.ListUnits(ctx)
	if err != nil {
		return nil, err
	}
	now := r.now()

	var out []StaleUnit
	for _, u := range units {
		if !u.Active || !u.Status.InTransit() {
			continue
		}
		mins, ok := minutesSince(now, u.UpdatedAt)
		if !ok || mins < r.thresholds.Warn {
			continue
		}
		sev := "warn"
		switch {
		case mins >= r.thresholds.Critical:
			sev = "critical"
		case mins >= r.thresholds.Alert:
			sev = "alert"
		}
		out = append(out, StaleUnit{UnitID: u.UnitID, Status: u.Status, Minutes: mins, Severity: sev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Minutes > out[j].Minutes })
	return out, nil
}

// expected transition pairs for timing averages.
var transitionPairs = [][2]model.UnitStatus{
	{model.StatusPending, model.StatusEnroute},
	{model.StatusEnroute, model.StatusOnScene},
	{model.StatusOnScene, model.StatusTransporting},
	{model.StatusTransporting, model.StatusAvailable},
}

func pairKey(from, to model.UnitStatus) string { return string(from) + ">" + string(to) }

// GetMetrics averages durations of expected status transitions over the
// trailing window. Pairs outside 0..24h are dropped as outliers.
func (r *Reporter) GetMetrics(ctx context.Context, windowHours int) (*Metrics, error) {
	hours := clampWindow(windowHours)
	now := r.now()
	entries, err := r.audit.ListAuditSince(ctx, now.Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		return nil, err
	}

	type event struct {
		t      time.Time
		status model.UnitStatus
	}
	byUnit := map[string][]event{}
	for _, e := range entries {
		if e.Next.Status == "" {
			continue
		}
		byUnit[e.UnitID] = append(byUnit[e.UnitID], event{t: e.TS, status: e.Next.Status})
	}

	sums := map[string]float64{}
	counts := map[string]int{}
	for _, p := range transitionPairs {
		sums[pairKey(p[0], p[1])] = 0
		counts[pairKey(p[0], p[1])] = 0
	}

	for _, ev := range byUnit {
		sort.Slice(ev, func(i, j int) bool { return ev[i].t.Before(ev[j].t) })
		for j := 0; j+1 < len(ev); j++ {
			key := pairKey(ev[j].status, ev[j+1].status)
			if _, ok := sums[key]; !ok {
				continue
			}
			mins := ev[j+1].t.Sub(ev[j].t).Minutes()
			if mins < 0 || mins > 24*60 {
				continue
			}
			sums[key] += mins
			counts[key]++
		}
	}

	averages := TransitionAverages{}
	for key, sum := range sums {
		if counts[key] == 0 {
			averages[key] = nil
			continue
		}
		avg := math.Round(sum/float64(counts[key])*10) / 10
		averages[key] = &avg
	}

	m := &Metrics{WindowHours: hours, AveragesMinutes: averages}

	units, err := r.units.ListUnits(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range units {
		if !u.Active || u.Status != model.StatusOnScene {
			continue
		}
		mins, ok := minutesSince(now, u.UpdatedAt)
		if !ok {
			continue
		}
		if m.LongestOnScene == nil || mins > m.LongestOnScene.Minutes {
			m.LongestOnScene = &StaleUnit{UnitID: u.UnitID, Status: u.Status, Minutes: mins}
		}
	}
	return m, nil
}

// GetSystemStatus summarizes the board.
func (r *Reporter) GetSystemStatus(ctx context.Context) (*SystemStatus, error) {
	units, err := r.units.ListUnits(ctx)
	if err != nil {
		return nil, err
	}
	incidents, err := r.incidents.ListIncidents(ctx)
	if err != nil {
		return nil, err
	}
	now := r.now()

	st := &SystemStatus{TotalUnits: len(units), ByStatus: map[string]int{}}
	for _, s := range model.Statuses {
		st.ByStatus[string(s.Code)] = 0
	}
	for _, u := range units {
		if !u.Active {
			continue
		}
		st.ActiveUnits++
		if _, ok := st.ByStatus[string(u.Status)]; ok {
			st.ByStatus[string(u.Status)]++
		}
	}
	for _, inc := range incidents {
		if inc.Status != model.IncidentActive {
			continue
		}
		st.ActiveIncidents++
		if int(now.Sub(inc.LastUpdate).Minutes()) >= r.thresholds.IncidentStale {
			st.StaleIncidents++
		}
	}
	return st, nil
}

// GetUnitHistory returns a unit's audit trail for a trailing window,
// oldest first.
func (r *Reporter) GetUnitHistory(ctx context.Context, unitID string, windowHours int) ([]model.AuditEntry, error) {
	id, err := normalizeUnitID(unitID)
	if err != nil {
		return nil, err
	}
	hours := clampWindow(windowHours)
	since := r.now().Add(-time.Duration(hours) * time.Hour)
	return r.audit.ListUnitAuditSince(ctx, id, since)
}

// GetOOSReport totals out-of-service time per unit over the window. A
// stretch still open at report time counts up to now.
func (r *Reporter) GetOOSReport(ctx context.Context, windowHours int) (*OOSReport, error) {
	hours := windowHours
	if hours <= 0 {
		hours = 24
	}
	now := r.now()
	start := now.Add(-time.Duration(hours) * time.Hour)

	entries, err := r.audit.ListAuditSince(ctx, start)
	if err != nil {
		return nil, err
	}

	type tracker struct {
		open    *time.Time
		periods []OOSPeriod
		total   int
	}
	byUnit := map[string]*tracker{}
	order := []string{}
	for _, e := range entries {
		tr := byUnit[e.UnitID]
		if tr == nil {
			tr = &tracker{}
			byUnit[e.UnitID] = tr
			order = append(order, e.UnitID)
		}
		wentOOS := e.Next.Status == model.StatusOutOfService && e.Prev.Status != model.StatusOutOfService
		cameBack := e.Prev.Status == model.StatusOutOfService && e.Next.Status != model.StatusOutOfService
		if wentOOS {
			ts := e.TS
			tr.open = &ts
		}
		if cameBack && tr.open != nil {
			mins := int(e.TS.Sub(*tr.open).Minutes())
			tr.periods = append(tr.periods, OOSPeriod{Start: *tr.open, End: e.TS, Minutes: mins})
			tr.total += mins
			tr.open = nil
		}
	}

	report := &OOSReport{Start: start, End: now}
	sort.Strings(order)
	for _, id := range order {
		tr := byUnit[id]
		if tr.open != nil {
			mins := int(now.Sub(*tr.open).Minutes())
			tr.periods = append(tr.periods, OOSPeriod{Start: *tr.open, End: now, Minutes: mins, Ongoing: true})
			tr.total += mins
		}
		if len(tr.periods) == 0 {
			continue
		}
		report.Units = append(report.Units, OOSUnitReport{UnitID: id, Periods: tr.periods, TotalMinutes: tr.total})
		report.TotalMinutes += tr.total
	}
	report.TotalHours = formatMinutes(report.TotalMinutes)
	return report, nil
}

// ExportAuditCSV renders the trailing audit window as CSV.
func (r *Reporter) ExportAuditCSV(ctx context.Context, windowHours int) ([]byte, error) {
	hours := clampWindow(windowHours)
	since := r.now().Add(-time.Duration(hours) * time.Hour)
	entries, err := r.audit.ListAuditSince(ctx, since)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"ts", "unit_id", "action", "prev_status", "new_status", "prev_incident", "new_incident", "actor"})
	for _, e := range entries {
		_ = w.Write([]string{
			e.TS.UTC().Format(time.RFC3339),
			e.UnitID,
			string(e.Action),
			string(e.Prev.Status),
			string(e.Next.Status),
			e.Prev.Incident,
			e.Next.Incident,
			e.Actor,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

// formatMinutes renders a minute count as H.M hours for report footers.
func formatMinutes(mins int) string {
	return strconv.FormatFloat(float64(mins)/60, 'f', 1, 64)
}
