package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/scmc-ops/hoscad/internal/model"
	"github.com/scmc-ops/hoscad/internal/repository/memory"
)

func newReporterFixture(t *testing.T) (*memory.Store, *Reporter, time.Time) {
	t.Helper()
	store := memory.NewStore()
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	rep := NewReporter(store, store, store, DefaultStaleThresholds(), func() time.Time { return now })
	return store, rep, now
}

func auditAt(ts time.Time, unit string, from, to model.UnitStatus) *model.AuditEntry {
	return &model.AuditEntry{
		TS: ts, UnitID: unit, Action: model.ActionUpdate, Actor: actor,
		Prev: model.UnitSnapshot{Status: from},
		Next: model.UnitSnapshot{Status: to},
	}
}

func TestStalenessClassification(t *testing.T) {
	store, rep, now := newReporterFixture(t)
	ctx := context.Background()

	put := func(id string, st model.UnitStatus, age time.Duration, active bool) {
		store.PutUnit(ctx, &model.Unit{
			UnitID: id, Active: active, Status: st,
			UpdatedAt: model.FormatTime(now.Add(-age)),
		})
	}
	put("M1", model.StatusEnroute, 5*time.Minute, true)       // fresh
	put("M2", model.StatusEnroute, 15*time.Minute, true)      // warn
	put("M3", model.StatusOnScene, 25*time.Minute, true)      // alert
	put("M4", model.StatusTransporting, 45*time.Minute, true) // critical
	put("M5", model.StatusBreak, 90*time.Minute, true)        // not transit
	put("M6", model.StatusPending, 45*time.Minute, false)     // inactive

	stale, err := rep.Staleness(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 3 {
		t.Fatalf("stale = %+v", stale)
	}
	// Sorted by minutes, most stale first.
	if stale[0].UnitID != "M4" || stale[0].Severity != "critical" {
		t.Fatalf("stale[0] = %+v", stale[0])
	}
	if stale[1].UnitID != "M3" || stale[1].Severity != "alert" {
		t.Fatalf("stale[1] = %+v", stale[1])
	}
	if stale[2].UnitID != "M2" || stale[2].Severity != "warn" {
		t.Fatalf("stale[2] = %+v", stale[2])
	}
}

func TestMetricsAveragesPairs(t *testing.T) {
	store, rep, now := newReporterFixture(t)
	ctx := context.Background()

	base := now.Add(-2 * time.Hour)
	// M1: D at t0, DE +4m, OS +10m.
	store.AppendAudit(ctx, auditAt(base, "M1", model.StatusAvailable, model.StatusPending))
	store.AppendAudit(ctx, auditAt(base.Add(4*time.Minute), "M1", model.StatusPending, model.StatusEnroute))
	store.AppendAudit(ctx, auditAt(base.Add(10*time.Minute), "M1", model.StatusEnroute, model.StatusOnScene))
	// M2: D then DE 8 minutes later.
	store.AppendAudit(ctx, auditAt(base, "M2", model.StatusAvailable, model.StatusPending))
	store.AppendAudit(ctx, auditAt(base.Add(8*time.Minute), "M2", model.StatusPending, model.StatusEnroute))

	m, err := rep.GetMetrics(ctx, 12)
	if err != nil {
		t.Fatal(err)
	}
	avg := m.AveragesMinutes["D>DE"]
	if avg == nil || *avg != 6 {
		t.Fatalf("D>DE = %v", avg)
	}
	avg = m.AveragesMinutes["DE>OS"]
	if avg == nil || *avg != 6 {
		t.Fatalf("DE>OS = %v", avg)
	}
	if m.AveragesMinutes["T>AV"] != nil {
		t.Fatal("no samples must yield nil average")
	}
}

func TestMetricsDropsOutliers(t *testing.T) {
	store, rep, now := newReporterFixture(t)
	ctx := context.Background()

	base := now.Add(-100 * time.Hour)
	store.AppendAudit(ctx, auditAt(base, "M1", model.StatusAvailable, model.StatusPending))
	// 30 hours from D to DE is outside the sane bound.
	store.AppendAudit(ctx, auditAt(base.Add(30*time.Hour), "M1", model.StatusPending, model.StatusEnroute))

	m, err := rep.GetMetrics(ctx, 168)
	if err != nil {
		t.Fatal(err)
	}
	if m.AveragesMinutes["D>DE"] != nil {
		t.Fatal("outlier pair must be excluded")
	}
}

func TestMetricsWindowClamp(t *testing.T) {
	_, rep, _ := newReporterFixture(t)
	ctx := context.Background()

	m, _ := rep.GetMetrics(ctx, 0)
	if m.WindowHours != 12 {
		t.Fatalf("default window = %d", m.WindowHours)
	}
	m, _ = rep.GetMetrics(ctx, 500)
	if m.WindowHours != 168 {
		t.Fatalf("clamped window = %d", m.WindowHours)
	}
}

func TestSystemStatus(t *testing.T) {
	store, rep, now := newReporterFixture(t)
	ctx := context.Background()

	store.PutUnit(ctx, &model.Unit{UnitID: "M1", Active: true, Status: model.StatusAvailable})
	store.PutUnit(ctx, &model.Unit{UnitID: "M2", Active: true, Status: model.StatusOnScene})
	store.PutUnit(ctx, &model.Unit{UnitID: "M3", Active: false, Status: model.StatusAvailable})

	store.PutIncident(ctx, &model.Incident{IncidentID: "26-0001", Status: model.IncidentActive, LastUpdate: now.Add(-45 * time.Minute)})
	store.PutIncident(ctx, &model.Incident{IncidentID: "26-0002", Status: model.IncidentActive, LastUpdate: now})
	store.PutIncident(ctx, &model.Incident{IncidentID: "26-0003", Status: model.IncidentClosed, LastUpdate: now.Add(-2 * time.Hour)})

	st, err := rep.GetSystemStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalUnits != 3 || st.ActiveUnits != 2 {
		t.Fatalf("status = %+v", st)
	}
	if st.ByStatus["AV"] != 1 || st.ByStatus["OS"] != 1 {
		t.Fatalf("byStatus = %v", st.ByStatus)
	}
	if st.ActiveIncidents != 2 || st.StaleIncidents != 1 {
		t.Fatalf("incidents = %+v", st)
	}
}

func TestOOSReport(t *testing.T) {
	store, rep, now := newReporterFixture(t)
	ctx := context.Background()

	base := now.Add(-5 * time.Hour)
	store.AppendAudit(ctx, auditAt(base, "M1", model.StatusAvailable, model.StatusOutOfService))
	store.AppendAudit(ctx, auditAt(base.Add(90*time.Minute), "M1", model.StatusOutOfService, model.StatusAvailable))
	// M2 went OOS and never came back.
	store.AppendAudit(ctx, auditAt(now.Add(-30*time.Minute), "M2", model.StatusAvailable, model.StatusOutOfService))

	rpt, err := rep.GetOOSReport(ctx, 24)
	if err != nil {
		t.Fatal(err)
	}
	if rpt.TotalMinutes != 120 {
		t.Fatalf("total = %d", rpt.TotalMinutes)
	}
	if len(rpt.Units) != 2 {
		t.Fatalf("units = %+v", rpt.Units)
	}
	if rpt.Units[0].UnitID != "M1" || rpt.Units[0].TotalMinutes != 90 {
		t.Fatalf("m1 = %+v", rpt.Units[0])
	}
	if !rpt.Units[1].Periods[0].Ongoing || rpt.Units[1].TotalMinutes != 30 {
		t.Fatalf("m2 = %+v", rpt.Units[1])
	}
}

func TestUnitHistoryWindow(t *testing.T) {
	store, rep, now := newReporterFixture(t)
	ctx := context.Background()

	store.AppendAudit(ctx, auditAt(now.Add(-20*time.Hour), "M1", model.StatusAvailable, model.StatusPending))
	store.AppendAudit(ctx, auditAt(now.Add(-2*time.Hour), "M1", model.StatusPending, model.StatusEnroute))

	entries, err := rep.GetUnitHistory(ctx, "m1", 12)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
}

func TestExportAuditCSV(t *testing.T) {
	store, rep, now := newReporterFixture(t)
	ctx := context.Background()

	store.AppendAudit(ctx, auditAt(now.Add(-time.Hour), "M1", model.StatusPending, model.StatusEnroute))

	out, err := rep.ExportAuditCSV(ctx, 12)
	if err != nil {
		t.Fatal(err)
	}
	text := string(out)
	if !strings.HasPrefix(text, "ts,unit_id,action") {
		t.Fatalf("header missing: %q", text)
	}
	if !strings.Contains(text, "M1") || !strings.Contains(text, "DE") {
		t.Fatalf("row missing: %q", text)
	}
}
