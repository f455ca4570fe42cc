package service

import (
	"context"
	"testing"
	"time"

	"github.com/scmc-ops/hoscad/internal/model"
	"github.com/scmc-ops/hoscad/internal/repository/memory"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func TestReconcileCreatesIncidentOnAttach(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	sy := NewSyncer(store, fixedClock(now), nil)

	after := &model.Unit{UnitID: "M1", Incident: "26-0001", Destination: "SCMC"}
	if err := sy.Reconcile(context.Background(), nil, after, "STA1/SMITHJ"); err != nil {
		t.Fatal(err)
	}

	inc, err := store.GetIncident(context.Background(), "26-0001")
	if err != nil {
		t.Fatal(err)
	}
	if inc.Status != model.IncidentActive {
		t.Fatalf("status = %s", inc.Status)
	}
	if len(inc.Units) != 1 || inc.Units[0] != "M1" {
		t.Fatalf("units = %v", inc.Units)
	}
	if inc.Destination != "SCMC" {
		t.Fatalf("destination = %q", inc.Destination)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	store := memory.NewStore()
	sy := NewSyncer(store, nil, nil)
	ctx := context.Background()

	before := &model.Unit{UnitID: "M1"}
	after := &model.Unit{UnitID: "M1", Incident: "26-0001"}
	for i := 0; i < 3; i++ {
		if err := sy.Reconcile(ctx, before, after, "STA1/SMITHJ"); err != nil {
			t.Fatal(err)
		}
	}

	inc, _ := store.GetIncident(ctx, "26-0001")
	if len(inc.Units) != 1 {
		t.Fatalf("duplicate membership: %v", inc.Units)
	}
}

func TestReconcileDetachClosesWhenEmpty(t *testing.T) {
	store := memory.NewStore()
	sy := NewSyncer(store, nil, nil)
	ctx := context.Background()

	store.PutIncident(ctx, &model.Incident{
		IncidentID: "26-0002", Status: model.IncidentActive, Units: []string{"M1"},
	})

	before := &model.Unit{UnitID: "M1", Incident: "26-0002"}
	after := &model.Unit{UnitID: "M1"}
	if err := sy.Reconcile(ctx, before, after, "STA1/SMITHJ"); err != nil {
		t.Fatal(err)
	}

	inc, _ := store.GetIncident(ctx, "26-0002")
	if inc.Status != model.IncidentClosed {
		t.Fatalf("status = %s", inc.Status)
	}
	if len(inc.Units) != 0 {
		t.Fatalf("units = %v", inc.Units)
	}
}

func TestReconcileDetachKeepsOpenWithMembers(t *testing.T) {
	store := memory.NewStore()
	sy := NewSyncer(store, nil, nil)
	ctx := context.Background()

	store.PutIncident(ctx, &model.Incident{
		IncidentID: "26-0003", Status: model.IncidentActive, Units: []string{"M1", "M2"},
	})

	before := &model.Unit{UnitID: "M1", Incident: "26-0003"}
	after := &model.Unit{UnitID: "M1"}
	sy.Reconcile(ctx, before, after, "STA1/SMITHJ")

	inc, _ := store.GetIncident(ctx, "26-0003")
	if inc.Status != model.IncidentActive {
		t.Fatalf("status = %s", inc.Status)
	}
	if len(inc.Units) != 1 || inc.Units[0] != "M2" {
		t.Fatalf("units = %v", inc.Units)
	}
}

func TestReconcileAttachReopensClosed(t *testing.T) {
	store := memory.NewStore()
	sy := NewSyncer(store, nil, nil)
	ctx := context.Background()

	store.PutIncident(ctx, &model.Incident{
		IncidentID: "26-0004", Status: model.IncidentClosed, Destination: "SCMC",
	})

	after := &model.Unit{UnitID: "M3", Incident: "26-0004"}
	sy.Reconcile(ctx, nil, after, "STA1/SMITHJ")

	inc, _ := store.GetIncident(ctx, "26-0004")
	if inc.Status != model.IncidentActive {
		t.Fatal("attach must reactivate a closed incident")
	}
	// A unit without a destination never blanks the incident's.
	if inc.Destination != "SCMC" {
		t.Fatalf("destination = %q", inc.Destination)
	}
}

func TestReconcileSwitchMovesMembership(t *testing.T) {
	store := memory.NewStore()
	sy := NewSyncer(store, nil, nil)
	ctx := context.Background()

	store.PutIncident(ctx, &model.Incident{
		IncidentID: "26-0005", Status: model.IncidentActive, Units: []string{"M1"},
	})

	before := &model.Unit{UnitID: "M1", Incident: "26-0005"}
	after := &model.Unit{UnitID: "M1", Incident: "26-0006"}
	sy.Reconcile(ctx, before, after, "STA1/SMITHJ")

	old, _ := store.GetIncident(ctx, "26-0005")
	if old.Status != model.IncidentClosed || len(old.Units) != 0 {
		t.Fatalf("old incident: %+v", old)
	}
	cur, _ := store.GetIncident(ctx, "26-0006")
	if cur.Status != model.IncidentActive || len(cur.Units) != 1 {
		t.Fatalf("new incident: %+v", cur)
	}
}
