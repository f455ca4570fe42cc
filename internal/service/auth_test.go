package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scmc-ops/hoscad/internal/errs"
	"github.com/scmc-ops/hoscad/internal/limiter"
	"github.com/scmc-ops/hoscad/internal/repository/memory"
)

type authFixture struct {
	store *memory.Store
	auth  *Auth
	clock time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		store: memory.NewStore(),
		clock: time.Date(2026, 8, 28, 8, 0, 0, 0, time.UTC),
	}
	lim := limiter.NewMemory(time.Minute, 5, time.Minute)
	f.auth = NewAuth(f.store, f.store, []byte("test-sign-key"), 12*time.Hour,
		lim, []string{"holdenc"}, func() time.Time { return f.clock }, nil)
	return f
}

func TestLoginRejectsUnknownRole(t *testing.T) {
	f := newAuthFixture(t)
	_, _, err := f.auth.Login(context.Background(), "CHIEF", "smithj", "pw", "10.0.0.1")
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestUnitLoginNeedsNoPassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	token, id, err := f.auth.Login(ctx, "unit", "ems1", "", "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if id.Actor != "UNIT/EMS1" || id.Role != "UNIT" {
		t.Fatalf("identity = %+v", id)
	}

	got, err := f.auth.Authenticate(ctx, token)
	if err != nil {
		t.Fatal(err)
	}
	if got.Actor != "UNIT/EMS1" {
		t.Fatalf("resolved = %+v", got)
	}
}

func TestDispatcherLoginRoundTrip(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	username, err := f.auth.NewUser(ctx, "Smith", "Jane", actor)
	if err != nil {
		t.Fatal(err)
	}
	if username != "smithj" {
		t.Fatalf("username = %q", username)
	}

	token, id, err := f.auth.Login(ctx, "STA1", "smithj", "12345", "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if id.Actor != "STA1/SMITHJ" {
		t.Fatalf("actor = %q", id.Actor)
	}

	if _, err := f.auth.Authenticate(ctx, token); err != nil {
		t.Fatal(err)
	}

	_, _, err = f.auth.Login(ctx, "STA1", "smithj", "wrong", "10.0.0.1")
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestNewUserCollisionSuffix(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	first, _ := f.auth.NewUser(ctx, "Smith", "Jane", actor)
	second, err := f.auth.NewUser(ctx, "Smith", "John", actor)
	if err != nil {
		t.Fatal(err)
	}
	if first != "smithj" || second != "smithj2" {
		t.Fatalf("usernames = %q %q", first, second)
	}
}

func TestITRoleAllowlist(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.auth.NewUser(ctx, "Smith", "Jane", actor)
	_, _, err := f.auth.Login(ctx, "IT", "smithj", "12345", "10.0.0.1")
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestLoginRateLimited(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.auth.NewUser(ctx, "Smith", "Jane", actor)

	var last error
	for i := 0; i < 6; i++ {
		_, _, last = f.auth.Login(ctx, "STA1", "smithj", "wrong", "10.0.0.1")
	}
	if !errors.Is(last, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", last)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	token, id, _ := f.auth.Login(ctx, "UNIT", "ems1", "", "10.0.0.1")
	if err := f.auth.Logout(ctx, id.SessionID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.auth.Authenticate(ctx, token); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	token, _, _ := f.auth.Login(ctx, "UNIT", "ems1", "", "10.0.0.1")
	f.clock = f.clock.Add(13 * time.Hour)
	if _, err := f.auth.Authenticate(ctx, token); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestWhoSkipsUnitsAndIdle(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.auth.NewUser(ctx, "Smith", "Jane", actor)
	f.auth.Login(ctx, "STA1", "smithj", "12345", "10.0.0.1")
	f.auth.Login(ctx, "UNIT", "ems1", "", "10.0.0.1")

	f.clock = f.clock.Add(40 * time.Minute)
	f.auth.NewUser(ctx, "Jones", "Kim", actor)
	f.auth.Login(ctx, "STA2", "jonesk", "12345", "10.0.0.1")

	who, err := f.auth.Who(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(who) != 1 || who[0].Username != "jonesk" {
		t.Fatalf("who = %+v", who)
	}
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.auth.NewUser(ctx, "Smith", "Jane", actor)

	if err := f.auth.ChangePassword(ctx, "smithj", "wrong", "newpw"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if err := f.auth.ChangePassword(ctx, "smithj", "12345", "newpw"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.auth.Login(ctx, "STA1", "smithj", "newpw", "10.0.0.1"); err != nil {
		t.Fatal(err)
	}
}
