package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scmc-ops/hoscad/internal/errs"
	"github.com/scmc-ops/hoscad/internal/model"
)

func TestUnitRoundTripAndCaseFolding(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if _, err := s.GetUnit(ctx, "M1"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	u := &model.Unit{UnitID: "M1", Status: model.StatusAvailable, Active: true}
	if err := s.PutUnit(ctx, u); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetUnit(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if got.UnitID != "M1" {
		t.Fatalf("got %q", got.UnitID)
	}

	// Mutating the returned copy must not leak into the store.
	got.Status = model.StatusBreak
	again, _ := s.GetUnit(ctx, "M1")
	if again.Status != model.StatusAvailable {
		t.Fatal("store handed out a live reference")
	}
}

func TestDeleteInactiveUnits(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.PutUnit(ctx, &model.Unit{UnitID: "M1", Active: true})
	s.PutUnit(ctx, &model.Unit{UnitID: "M2", Active: false})
	s.PutUnit(ctx, &model.Unit{UnitID: "M3", Active: false})

	n, err := s.DeleteInactiveUnits(ctx)
	if err != nil || n != 2 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	units, _ := s.ListUnits(ctx)
	if len(units) != 1 || units[0].UnitID != "M1" {
		t.Fatalf("units=%v", units)
	}
}

func TestIncidentUnitsSliceIsolated(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	inc := &model.Incident{IncidentID: "26-0001", Status: model.IncidentActive, Units: []string{"M1"}}
	s.PutIncident(ctx, inc)

	got, err := s.GetIncident(ctx, "26-0001")
	if err != nil {
		t.Fatal(err)
	}
	got.AddUnit("M2")
	again, _ := s.GetIncident(ctx, "26-0001")
	if len(again.Units) != 1 {
		t.Fatal("membership slice shared with caller")
	}
}

func TestDeleteClosedBefore(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()
	s.PutIncident(ctx, &model.Incident{IncidentID: "26-0001", Status: model.IncidentClosed, LastUpdate: now.Add(-40 * 24 * time.Hour)})
	s.PutIncident(ctx, &model.Incident{IncidentID: "26-0002", Status: model.IncidentClosed, LastUpdate: now})
	s.PutIncident(ctx, &model.Incident{IncidentID: "26-0003", Status: model.IncidentActive, LastUpdate: now.Add(-40 * 24 * time.Hour)})

	n, _ := s.DeleteClosedBefore(ctx, now.Add(-30*24*time.Hour))
	if n != 1 {
		t.Fatalf("n=%d", n)
	}
	if _, err := s.GetIncident(ctx, "26-0003"); err != nil {
		t.Fatal("active incident must survive purge")
	}
}

func TestAuditScanAndLast(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		s.AppendAudit(ctx, &model.AuditEntry{UnitID: "M1", TS: base.Add(time.Duration(i) * time.Minute), Action: model.ActionUpdate})
	}
	s.AppendAudit(ctx, &model.AuditEntry{UnitID: "M2", TS: base.Add(10 * time.Minute), Action: model.ActionCreate})

	last, err := s.LastUnitAudit(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if !last.TS.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("last=%v", last.TS)
	}

	if _, err := s.LastUnitAudit(ctx, "M9"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	entries, _ := s.ListUnitAuditSince(ctx, "M1", base.Add(time.Minute))
	if len(entries) != 2 {
		t.Fatalf("entries=%d", len(entries))
	}
}

func TestCounterRoundTrip(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.SetCounter(ctx, 2026, 41); err != nil {
		t.Fatal(err)
	}
	year, seq, err := s.GetCounter(ctx)
	if err != nil || year != 2026 || seq != 41 {
		t.Fatalf("year=%d seq=%d err=%v", year, seq, err)
	}
}

func TestMessageSeqAndOwnership(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a, _ := s.NextMessageSeq(ctx)
	b, _ := s.NextMessageSeq(ctx)
	if b != a+1 {
		t.Fatalf("seq not monotonic: %d %d", a, b)
	}

	now := time.Now()
	s.PutMessage(ctx, &model.Message{MessageID: "MSG1", ToRole: "STA1", TS: now})
	s.PutMessage(ctx, &model.Message{MessageID: "MSG2", ToRole: "STA1", TS: now.Add(time.Second)})
	s.PutMessage(ctx, &model.Message{MessageID: "MSG3", ToRole: "EMS", TS: now})

	msgs, _ := s.ListMessagesTo(ctx, "sta1")
	if len(msgs) != 2 || msgs[0].MessageID != "MSG2" {
		t.Fatalf("msgs=%v", msgs)
	}

	n, _ := s.DeleteMessagesTo(ctx, "STA1")
	if n != 2 {
		t.Fatalf("n=%d", n)
	}
}

func TestUserUniqueness(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.CreateUser(ctx, &model.User{Username: "smithj"}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateUser(ctx, &model.User{Username: "SmithJ"}); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
}

func TestSessionIdlePurge(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()
	s.PutSession(ctx, &model.Session{ID: "a", LastActivity: now})
	s.PutSession(ctx, &model.Session{ID: "b", LastActivity: now.Add(-13 * time.Hour)})

	n, _ := s.DeleteSessionsIdleBefore(ctx, now.Add(-12*time.Hour))
	if n != 1 {
		t.Fatalf("n=%d", n)
	}
	if _, err := s.GetSession(ctx, "a"); err != nil {
		t.Fatal("live session must survive")
	}
}

func TestBanners(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.SetBanner(ctx, "note", "x|STA1|check radios")
	v, _ := s.GetBanner(ctx, "note")
	if v == "" {
		t.Fatal("banner not stored")
	}
	s.SetBanner(ctx, "note", "")
	if v, _ := s.GetBanner(ctx, "note"); v != "" {
		t.Fatal("empty value must clear")
	}
}
