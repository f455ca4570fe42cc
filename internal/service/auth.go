package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/scmc-ops/hoscad/internal/crypto"
	"github.com/scmc-ops/hoscad/internal/errs"
	"github.com/scmc-ops/hoscad/internal/limiter"
	"github.com/scmc-ops/hoscad/internal/model"
	"github.com/scmc-ops/hoscad/internal/repository"
)

// Roles is the closed dispatcher role set. UNIT logs in with a callsign
// and no password; IT is restricted to an allowlist.
var Roles = []string{
	"STA1", "STA2", "STA3", "STA4", "STA5", "STA6",
	"SUPV1", "SUPV2", "MGR1", "MGR2",
	"EMS", "TCRN", "PLRN", "IT", "UNIT",
}

// whoWindow bounds how far back the who list looks.
const whoWindow = 30 * time.Minute

// defaultPassword is assigned to new accounts; holders change it on first
// login.
const defaultPassword = "12345"

// Identity is the resolved caller the engine attributes writes to.
type Identity struct {
	Actor     string `json:"actor"`
	Role      string `json:"role"`
	Username  string `json:"username"`
	SessionID string `json:"-"`
}

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth issues and resolves dispatcher tokens and manages accounts.
type Auth struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	signKey  []byte
	tokenTTL time.Duration
	lim      limiter.Limiter
	itUsers  []string
	now      Clock
	log      *zap.Logger
}

// NewAuth wires the auth service.
func NewAuth(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	signKey []byte,
	tokenTTL time.Duration,
	lim limiter.Limiter,
	itUsers []string,
	now Clock,
	log *zap.Logger,
) *Auth {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &Auth{
		users: users, sessions: sessions, signKey: signKey, tokenTTL: tokenTTL,
		lim: lim, itUsers: itUsers, now: now, log: log,
	}
}

func validRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Login authenticates and returns a signed token plus the identity it
// encodes. Failed dispatcher logins are rate-limited per (username, ip).
func (a *Auth) Login(ctx context.Context, role, username, password, ip string) (string, Identity, error) {
	r := strings.ToUpper(strings.TrimSpace(role))
	u := strings.ToLower(strings.TrimSpace(username))

	if !validRole(r) {
		return "", Identity{}, fmt.Errorf("%w: invalid role", errs.ErrValidation)
	}
	if len(u) < 2 {
		return "", Identity{}, fmt.Errorf("%w: username required", errs.ErrValidation)
	}
	if r == "IT" && !a.itAllowed(u) {
		return "", Identity{}, fmt.Errorf("it role access denied: %w", errs.ErrUnauthorized)
	}

	// Field units authenticate by callsign alone.
	if r == "UNIT" {
		return a.openSession(ctx, r, strings.ToUpper(u), strings.ToUpper(u))
	}

	if password == "" {
		return "", Identity{}, fmt.Errorf("%w: password required", errs.ErrValidation)
	}

	ipHash := limiter.HashIP(ip)
	allowed, _, err := a.lim.Allow(ctx, u, ipHash)
	if err != nil {
		return "", Identity{}, err
	}
	if !allowed {
		return "", Identity{}, errs.ErrRateLimited
	}

	user, err := a.users.GetUser(ctx, u)
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), user.Salt, user.PwdHash) {
		if blocked, _, ferr := a.lim.Failure(ctx, u, ipHash); ferr == nil && blocked {
			return "", Identity{}, errs.ErrRateLimited
		}
		// Unknown user and bad password are indistinguishable to callers.
		return "", Identity{}, errs.ErrUnauthorized
	}
	_ = a.lim.Success(ctx, u, ipHash)

	fullName := strings.TrimSpace(user.FirstName + " " + user.LastName)
	return a.openSession(ctx, r, u, fullName)
}

func (a *Auth) itAllowed(username string) bool {
	for _, allowed := range a.itUsers {
		if strings.EqualFold(allowed, username) {
			return true
		}
	}
	return false
}

func (a *Auth) openSession(ctx context.Context, role, username, fullName string) (string, Identity, error) {
	now := a.now()
	jti, err := uuid.NewV4()
	if err != nil {
		return "", Identity{}, err
	}
	actor := role + "/" + strings.ToUpper(username)

	claims := sessionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor,
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.signKey)
	if err != nil {
		return "", Identity{}, err
	}

	sess := model.Session{
		ID: jti.String(), Username: username, FullName: fullName, Role: role,
		LoginTime: now, LastActivity: now,
	}
	if err := a.sessions.PutSession(ctx, &sess); err != nil {
		return "", Identity{}, fmt.Errorf("record session: %w", err)
	}
	return signed, Identity{Actor: actor, Role: role, Username: username, SessionID: jti.String()}, nil
}

// Authenticate resolves a bearer token to an identity. The session row
// must still exist, which is what makes logout and ClearSessions revoke
// outstanding tokens.
func (a *Auth) Authenticate(ctx context.Context, token string) (Identity, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.signKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return a.now() }))
	if err != nil || !parsed.Valid {
		return Identity{}, errs.ErrUnauthorized
	}

	if _, err := a.sessions.GetSession(ctx, claims.ID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return Identity{}, errs.ErrUnauthorized
		}
		return Identity{}, err
	}
	if err := a.sessions.TouchSession(ctx, claims.ID, a.now()); err != nil && !errors.Is(err, errs.ErrNotFound) {
		a.log.Warn("session touch failed", zap.Error(err))
	}

	username := claims.Subject
	if i := strings.IndexByte(username, '/'); i >= 0 {
		username = username[i+1:]
	}
	return Identity{
		Actor: claims.Subject, Role: claims.Role,
		Username: strings.ToLower(username), SessionID: claims.ID,
	}, nil
}

// Logout drops the caller's session, revoking the token.
func (a *Auth) Logout(ctx context.Context, sessionID string) error {
	return a.sessions.DeleteSession(ctx, sessionID)
}

// Who lists dispatcher sessions active in the last half hour, most recent
// first. Field units are omitted; the board already shows them.
func (a *Auth) Who(ctx context.Context) ([]model.Session, error) {
	now := a.now()
	if _, err := a.sessions.DeleteSessionsIdleBefore(ctx, now.Add(-a.tokenTTL)); err != nil {
		a.log.Warn("stale session sweep failed", zap.Error(err))
	}
	all, err := a.sessions.ListSessionsActiveSince(ctx, now.Add(-whoWindow))
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, s := range all {
		if s.Role != "UNIT" {
			out = append(out, s)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ClearSessions logs everyone out.
func (a *Auth) ClearSessions(ctx context.Context) error {
	return a.sessions.DeleteAllSessions(ctx)
}

// NewUser creates a dispatcher account named lastname plus first initial,
// suffixing a counter on collision, with the default password. Returns
// the generated username.
func (a *Auth) NewUser(ctx context.Context, lastName, firstName, actor string) (string, error) {
	ln := strings.ToUpper(strings.TrimSpace(lastName))
	fn := strings.ToUpper(strings.TrimSpace(firstName))
	if ln == "" || fn == "" {
		return "", fmt.Errorf("%w: last and first name required", errs.ErrValidation)
	}

	base := strings.ToLower(ln + fn[:1])
	username := base
	salt, err := pkgcrypto.RandBytes(16)
	if err != nil {
		return "", err
	}
	user := model.User{
		FirstName: fn, LastName: ln,
		PwdHash: pkgcrypto.HashPassword([]byte(defaultPassword), salt), Salt: salt,
		CreatedAt: a.now(), CreatedBy: actor,
	}
	for suffix := 2; ; suffix++ {
		user.Username = username
		err := a.users.CreateUser(ctx, &user)
		if err == nil {
			return username, nil
		}
		if !errors.Is(err, errs.ErrAlreadyExists) {
			return "", err
		}
		username = fmt.Sprintf("%s%d", base, suffix)
	}
}

// DelUser removes an account.
func (a *Auth) DelUser(ctx context.Context, username string) error {
	u := strings.ToLower(strings.TrimSpace(username))
	if u == "" {
		return fmt.Errorf("%w: username required", errs.ErrValidation)
	}
	return a.users.DeleteUser(ctx, u)
}

// ListUsers returns every dispatcher account.
func (a *Auth) ListUsers(ctx context.Context) ([]model.User, error) {
	return a.users.ListUsers(ctx)
}

// ChangePassword rotates the caller's password after verifying the old one.
func (a *Auth) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password required", errs.ErrValidation)
	}
	user, err := a.users.GetUser(ctx, username)
	if err != nil {
		return err
	}
	if !pkgcrypto.VerifyPassword([]byte(oldPassword), user.Salt, user.PwdHash) {
		return fmt.Errorf("incorrect old password: %w", errs.ErrUnauthorized)
	}
	salt, err := pkgcrypto.RandBytes(16)
	if err != nil {
		return err
	}
	return a.users.UpdateUserPassword(ctx, user.Username,
		pkgcrypto.HashPassword([]byte(newPassword), salt), salt)
}
