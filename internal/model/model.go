// Package model defines domain entities used by services and repositories.
package model

import (
	"strings"
	"time"
)

// TimeLayout is the wire format for every timestamp crossing the API
// boundary. It matches JavaScript's Date.toISOString so tokens issued by
// the previous backend remain comparable.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders a timestamp in the boundary layout (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Unit is a trackable field resource. UpdatedAt doubles as the optimistic
// concurrency token: callers echo it back on mutation and a mismatch is a
// conflict (see service.Board).
type Unit struct {
	UnitID      string     `json:"unit_id"`
	DisplayName string     `json:"display_name"`
	Type        string     `json:"type"`
	Active      bool       `json:"active"`
	Status      UnitStatus `json:"status"`
	Note        string     `json:"note"`
	UnitInfo    string     `json:"unit_info"`
	Incident    string     `json:"incident"`
	Destination string     `json:"destination"`
	UpdatedAt   string     `json:"updated_at"`
	UpdatedBy   string     `json:"updated_by"`
	PushToken   string     `json:"-"` // opaque push handle, never exposed to readers
}

// UnitPatch is a partial unit update. Nil fields are left untouched.
// Whether Note was explicitly supplied matters to the AV transition, which
// is why this is a pointer struct rather than a value merge.
type UnitPatch struct {
	DisplayName *string `json:"displayName"`
	Type        *string `json:"type"`
	Active      *bool   `json:"active"`
	Status      *string `json:"status"`
	Note        *string `json:"note"`
	UnitInfo    *string `json:"unitInfo"`
	Incident    *string `json:"incident"`
	Destination *string `json:"destination"`
	PushToken   *string `json:"pushToken"`
}

// UnitSnapshot is the full field set recorded on both sides of an audit
// entry. Complete snapshots (not diffs) are what make single-step undo
// possible without replaying history.
type UnitSnapshot struct {
	DisplayName string     `json:"display_name"`
	Type        string     `json:"type"`
	Active      bool       `json:"active"`
	Status      UnitStatus `json:"status"`
	Note        string     `json:"note"`
	UnitInfo    string     `json:"unit_info"`
	Incident    string     `json:"incident"`
	Destination string     `json:"destination"`
	UpdatedAt   string     `json:"updated_at"`
	UpdatedBy   string     `json:"updated_by"`
}

// Snapshot captures the auditable fields of the unit.
func (u *Unit) Snapshot() UnitSnapshot {
	return UnitSnapshot{
		DisplayName: u.DisplayName,
		Type:        u.Type,
		Active:      u.Active,
		Status:      u.Status,
		Note:        u.Note,
		UnitInfo:    u.UnitInfo,
		Incident:    u.Incident,
		Destination: u.Destination,
		UpdatedAt:   u.UpdatedAt,
		UpdatedBy:   u.UpdatedBy,
	}
}

// Restore writes a snapshot back onto the unit, leaving UnitID and
// PushToken alone.
func (u *Unit) Restore(s UnitSnapshot) {
	u.DisplayName = s.DisplayName
	u.Type = s.Type
	u.Active = s.Active
	u.Status = s.Status
	u.Note = s.Note
	u.UnitInfo = s.UnitInfo
	u.Incident = s.Incident
	u.Destination = s.Destination
}

// Incident is a dispatch event with a set of attached units. Units is a
// true set: no duplicates, order-insignificant. Status CLOSED and a
// non-empty Units list never coexist; the synchronization engine enforces
// that, not callers.
type Incident struct {
	IncidentID  string         `json:"incident_id"`
	CreatedAt   time.Time      `json:"created_at"`
	CreatedBy   string         `json:"created_by"`
	Status      IncidentStatus `json:"status"`
	Units       []string       `json:"units"`
	Destination string         `json:"destination"`
	Note        string         `json:"incident_note"`
	Type        string         `json:"incident_type"`
	LastUpdate  time.Time      `json:"last_update"`
	UpdatedBy   string         `json:"updated_by"`
}

// HasUnit reports set membership (case-insensitive on the stored side).
func (i *Incident) HasUnit(unitID string) bool {
	for _, u := range i.Units {
		if strings.EqualFold(u, unitID) {
			return true
		}
	}
	return false
}

// AddUnit inserts the unit id if absent. Idempotent.
func (i *Incident) AddUnit(unitID string) {
	if !i.HasUnit(unitID) {
		i.Units = append(i.Units, unitID)
	}
}

// RemoveUnit drops the unit id if present.
func (i *Incident) RemoveUnit(unitID string) {
	kept := i.Units[:0]
	for _, u := range i.Units {
		if !strings.EqualFold(u, unitID) {
			kept = append(kept, u)
		}
	}
	i.Units = kept
}

// AuditEntry is one immutable row of the unit audit ledger.
type AuditEntry struct {
	TS     time.Time    `json:"ts"`
	UnitID string       `json:"unit_id"`
	Action AuditAction  `json:"action"`
	Prev   UnitSnapshot `json:"prev"`
	Next   UnitSnapshot `json:"next"`
	Actor  string       `json:"actor"`
}

// IncidentAuditEntry is one row of the free-text incident narrative log.
type IncidentAuditEntry struct {
	TS         time.Time `json:"ts"`
	IncidentID string    `json:"incident_id"`
	Message    string    `json:"message"`
	Actor      string    `json:"actor"`
}

// Message is a role- or callsign-addressed dispatcher message.
type Message struct {
	MessageID    string    `json:"message_id"`
	TS           time.Time `json:"ts"`
	FromRole     string    `json:"from_role"`
	FromInitials string    `json:"from_initials"`
	ToRole       string    `json:"to_role"`
	Body         string    `json:"message"`
	Urgent       bool      `json:"urgent"`
	Read         bool      `json:"read"`
}

// User is a dispatcher account. Passwords are stored as argon2id hashes.
type User struct {
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	PwdHash   []byte    `json:"-"`
	Salt      []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy"`
}

// Session tracks a logged-in actor for the who list. The ID is the JWT's
// jti claim so logout can revoke a single token.
type Session struct {
	ID           string    `json:"session_id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
}

// Destination is a short-code transport destination.
type Destination struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Address is an address-book entry with lookup aliases.
type Address struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	City     string   `json:"city"`
	State    string   `json:"state"`
	Zip      string   `json:"zip"`
	Category string   `json:"category"`
	Aliases  []string `json:"aliases"`
	Phone    string   `json:"phone"`
	Notes    string   `json:"notes"`
}

// Banner is a dispatcher-wide note or alert line.
type Banner struct {
	TS      string `json:"ts"`
	Actor   string `json:"actor"`
	Message string `json:"message"`
}
