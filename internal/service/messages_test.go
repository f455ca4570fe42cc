package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scmc-ops/hoscad/internal/errs"
	"github.com/scmc-ops/hoscad/internal/model"
	"github.com/scmc-ops/hoscad/internal/repository/memory"
)

type pushRecord struct {
	unitID, body string
}

type fakeNotifier struct {
	sent []pushRecord
}

func (f *fakeNotifier) Notify(_ context.Context, unitID, _, body string) {
	f.sent = append(f.sent, pushRecord{unitID, body})
}

type msgFixture struct {
	store  *memory.Store
	msgs   *Messages
	notify *fakeNotifier
	now    time.Time
}

func newMsgFixture(t *testing.T) *msgFixture {
	t.Helper()
	f := &msgFixture{
		store:  memory.NewStore(),
		notify: &fakeNotifier{},
		now:    time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
	}
	f.msgs = NewMessages(f.store, f.store, f.store, f.notify, func() time.Time { return f.now }, nil)
	return f
}

func dispatcher(role, username string) Identity {
	return Identity{Actor: role + "/" + username, Role: role, Username: username}
}

func TestSendToRole(t *testing.T) {
	f := newMsgFixture(t)
	ctx := context.Background()
	from := dispatcher("STA1", "smithj")

	ids, err := f.msgs.Send(ctx, from, "ems", "med consult on 26-0001", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "MSG1" {
		t.Fatalf("ids = %v", ids)
	}

	got, err := f.msgs.List(ctx, dispatcher("EMS", "jonesk"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].FromRole != "STA1" || got[0].ToRole != "EMS" {
		t.Fatalf("inbox = %+v", got)
	}
	if len(f.notify.sent) != 0 {
		t.Fatal("role traffic must not push")
	}
}

func TestSendToUnitPushes(t *testing.T) {
	f := newMsgFixture(t)
	ctx := context.Background()
	f.store.PutUnit(ctx, &model.Unit{UnitID: "EMS1", Active: true, Status: model.StatusAvailable})

	_, err := f.msgs.Send(ctx, dispatcher("STA1", "smithj"), "ems1", "return to base", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.notify.sent) != 1 || f.notify.sent[0].unitID != "EMS1" {
		t.Fatalf("pushes = %+v", f.notify.sent)
	}
}

func TestSendUnknownRecipient(t *testing.T) {
	f := newMsgFixture(t)
	_, err := f.msgs.Send(context.Background(), dispatcher("STA1", "smithj"), "NOPE9", "hi", false)
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestBroadcastFansToActiveRoles(t *testing.T) {
	f := newMsgFixture(t)
	ctx := context.Background()

	put := func(id, role string, age time.Duration) {
		f.store.PutSession(ctx, &model.Session{
			ID: id, Role: role, Username: "u" + id,
			LoginTime: f.now.Add(-age), LastActivity: f.now.Add(-age),
		})
	}
	put("s1", "STA1", time.Minute)      // sender's own role, skipped
	put("s2", "EMS", 2*time.Minute)     // delivered
	put("s3", "EMS", time.Minute)       // duplicate role, one copy
	put("s4", "UNIT", time.Minute)      // units never get broadcasts
	put("s5", "SUPV1", 2*time.Hour)     // idle, skipped
	put("s6", "TCRN", 10*time.Minute)   // delivered

	ids, err := f.msgs.Send(ctx, dispatcher("STA1", "smithj"), "ALL", "shift change 1900", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v", ids)
	}
	if got, _ := f.msgs.List(ctx, dispatcher("EMS", "x")); len(got) != 1 {
		t.Fatalf("ems inbox = %+v", got)
	}
	if got, _ := f.msgs.List(ctx, dispatcher("SUPV1", "x")); len(got) != 0 {
		t.Fatalf("idle supv1 inbox = %+v", got)
	}
}

func TestMarkReadAndOwnership(t *testing.T) {
	f := newMsgFixture(t)
	ctx := context.Background()

	ids, _ := f.msgs.Send(ctx, dispatcher("STA1", "smithj"), "EMS", "ping", false)

	err := f.msgs.MarkRead(ctx, dispatcher("TCRN", "x"), ids[0])
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}

	if err := f.msgs.MarkRead(ctx, dispatcher("EMS", "x"), ids[0]); err != nil {
		t.Fatal(err)
	}
	got, _ := f.msgs.List(ctx, dispatcher("EMS", "x"))
	if !got[0].Read {
		t.Fatal("message must be marked read")
	}
}

func TestDeleteAllOwnInbox(t *testing.T) {
	f := newMsgFixture(t)
	ctx := context.Background()

	f.msgs.Send(ctx, dispatcher("STA1", "smithj"), "EMS", "one", false)
	f.msgs.Send(ctx, dispatcher("STA1", "smithj"), "EMS", "two", false)
	f.msgs.Send(ctx, dispatcher("STA1", "smithj"), "TCRN", "three", false)

	n, err := f.msgs.DeleteAll(ctx, dispatcher("EMS", "x"))
	if err != nil || n != 2 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if got, _ := f.msgs.List(ctx, dispatcher("TCRN", "x")); len(got) != 1 {
		t.Fatalf("tcrn inbox = %+v", got)
	}
}

func TestUnitInboxUsesCallsign(t *testing.T) {
	f := newMsgFixture(t)
	ctx := context.Background()
	f.store.PutUnit(ctx, &model.Unit{UnitID: "EMS1", Active: true, Status: model.StatusAvailable})

	f.msgs.Send(ctx, dispatcher("STA1", "smithj"), "EMS1", "status check", true)

	unit := Identity{Actor: "UNIT/EMS1", Role: "UNIT", Username: "ems1"}
	got, err := f.msgs.List(ctx, unit)
	if err != nil || len(got) != 1 {
		t.Fatalf("inbox = %+v err=%v", got, err)
	}
	if !got[0].Urgent {
		t.Fatal("urgent flag must survive")
	}
}
