package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// UnitStatus is a CAD status code. The set is closed; any other value is
// rejected at the boundary. There is no transition graph between codes —
// any code may follow any code.
type UnitStatus string

const (
	StatusPending      UnitStatus = "D"   // pending dispatch
	StatusEnroute      UnitStatus = "DE"  // enroute
	StatusOnScene      UnitStatus = "OS"  // on scene / arrived
	StatusFollowUp     UnitStatus = "F"   // follow up
	StatusFlaggedDown  UnitStatus = "FD"  // flagged down
	StatusTransporting UnitStatus = "T"   // transporting
	StatusAvailable    UnitStatus = "AV"  // available
	StatusUnavailable  UnitStatus = "UV"  // unavailable
	StatusBreak        UnitStatus = "BRK" // break / lunch
	StatusOutOfService UnitStatus = "OOS" // out of service
)

// StatusInfo pairs a status code with its board label.
type StatusInfo struct {
	Code  UnitStatus `json:"code"`
	Label string     `json:"label"`
}

// Statuses lists every legal status in board display order.
var Statuses = []StatusInfo{
	{StatusPending, "PENDING DISPATCH"},
	{StatusEnroute, "ENROUTE"},
	{StatusOnScene, "ON SCENE / ARRIVED"},
	{StatusFollowUp, "FOLLOW UP"},
	{StatusFlaggedDown, "FLAGGED DOWN"},
	{StatusTransporting, "TRANSPORTING"},
	{StatusAvailable, "AVAILABLE"},
	{StatusUnavailable, "UNAVAILABLE"},
	{StatusBreak, "BREAK / LUNCH"},
	{StatusOutOfService, "OUT OF SERVICE"},
}

// ParseUnitStatus validates a raw code against the closed status set.
func ParseUnitStatus(raw string) (UnitStatus, error) {
	code := UnitStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, s := range Statuses {
		if s.Code == code {
			return code, nil
		}
	}
	return "", fmt.Errorf("invalid status: %s", raw)
}

// InTransit reports whether the status counts toward staleness alerting.
func (s UnitStatus) InTransit() bool {
	switch s {
	case StatusPending, StatusEnroute, StatusOnScene, StatusTransporting:
		return true
	}
	return false
}

// IncidentStatus is the lifecycle state of an incident.
type IncidentStatus string

const (
	IncidentQueued IncidentStatus = "QUEUED"
	IncidentActive IncidentStatus = "ACTIVE"
	IncidentClosed IncidentStatus = "CLOSED"
)

// AuditAction labels a unit audit entry. Derived from the before/after
// diff unless an operation supplies an explicit override.
type AuditAction string

const (
	ActionCreate   AuditAction = "CREATE"
	ActionUpdate   AuditAction = "UPDATE"
	ActionLogon    AuditAction = "LOGON"
	ActionLogoff   AuditAction = "LOGOFF"
	ActionTouch    AuditAction = "TOUCH"
	ActionUndo     AuditAction = "UNDO"
	ActionLink     AuditAction = "LINK"
	ActionTransfer AuditAction = "TRANSFER"
	ActionMass     AuditAction = "MASS"
	ActionAssign   AuditAction = "ASSIGN"
)

// DeriveAction computes the audit label for a unit write.
func DeriveAction(before *Unit, after *Unit) AuditAction {
	switch {
	case before == nil:
		return ActionCreate
	case before.Active && !after.Active:
		return ActionLogoff
	case !before.Active && after.Active:
		return ActionLogon
	default:
		return ActionUpdate
	}
}

var incidentIDRe = regexp.MustCompile(`^\d{2}-\d{4}$`)
var bareSeqRe = regexp.MustCompile(`^\d{4}$`)

// NormalizeIncidentID canonicalizes dispatcher input to YY-NNNN. It strips
// an INC prefix and expands a bare 4-digit sequence with the current year.
func NormalizeIncidentID(raw string, now time.Time) (string, error) {
	inc := strings.ToUpper(strings.TrimSpace(raw))
	if inc == "" {
		return "", fmt.Errorf("missing incident")
	}
	inc = strings.TrimSpace(strings.TrimPrefix(inc, "INC"))
	if bareSeqRe.MatchString(inc) {
		inc = fmt.Sprintf("%02d-%s", now.Year()%100, inc)
	}
	if !incidentIDRe.MatchString(inc) {
		return "", fmt.Errorf("incident format must be 26-0001, INC26-0001, or 0001 (auto-year)")
	}
	return inc, nil
}

// FormatIncidentID renders a year/sequence pair as YY-NNNN.
func FormatIncidentID(year, seq int) string {
	return fmt.Sprintf("%02d-%04d", year%100, seq)
}
