// Package memory implements the repository contracts over plain maps.
// It backs tests and standalone mode (empty DSN); a single mutex guards
// all tables, which is plenty at dispatch-board scale.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/scmc-ops/hoscad/internal/errs"
	"github.com/scmc-ops/hoscad/internal/model"
)

// Store holds every table in process memory.
type Store struct {
	mu sync.Mutex

	units         map[string]model.Unit
	incidents     map[string]model.Incident
	audit         []model.AuditEntry
	incidentAudit []model.IncidentAuditEntry

	counterYear int
	counterSeq  int

	messages map[string]model.Message
	msgSeq   int64

	users    map[string]model.User
	sessions map[string]model.Session

	destinations []model.Destination
	addresses    []model.Address
	banners      map[string]string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		units:     make(map[string]model.Unit),
		incidents: make(map[string]model.Incident),
		messages:  make(map[string]model.Message),
		users:     make(map[string]model.User),
		sessions:  make(map[string]model.Session),
		banners:   make(map[string]string),
	}
}

// SeedReference installs the lookup tables served by ListDestinations and
// ListAddresses.
func (s *Store) SeedReference(dests []model.Destination, addrs []model.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destinations = append([]model.Destination(nil), dests...)
	s.addresses = append([]model.Address(nil), addrs...)
}

func (s *Store) ListUnits(_ context.Context) ([]model.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Unit, 0, len(s.units))
	for _, u := range s.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitID < out[j].UnitID })
	return out, nil
}

func (s *Store) GetUnit(_ context.Context, unitID string) (*model.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[strings.ToUpper(unitID)]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := u
	return &cp, nil
}

func (s *Store) PutUnit(_ context.Context, u *model.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[strings.ToUpper(u.UnitID)] = *u
	return nil
}

func (s *Store) DeleteUnit(_ context.Context, unitID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.units, strings.ToUpper(unitID))
	return nil
}

func (s *Store) DeleteInactiveUnits(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, u := range s.units {
		if !u.Active {
			delete(s.units, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteAllUnits(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units = make(map[string]model.Unit)
	return nil
}

func (s *Store) ListIncidents(_ context.Context) ([]model.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Incident, 0, len(s.incidents))
	for _, inc := range s.incidents {
		inc.Units = append([]string(nil), inc.Units...)
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetIncident(_ context.Context, incidentID string) (*model.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[strings.ToUpper(incidentID)]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := inc
	cp.Units = append([]string(nil), inc.Units...)
	return &cp, nil
}

func (s *Store) PutIncident(_ context.Context, inc *model.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inc
	cp.Units = append([]string(nil), inc.Units...)
	s.incidents[strings.ToUpper(inc.IncidentID)] = cp
	return nil
}

func (s *Store) DeleteClosedBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, inc := range s.incidents {
		if inc.Status == model.IncidentClosed && inc.LastUpdate.Before(cutoff) {
			delete(s.incidents, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteAllIncidents(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = make(map[string]model.Incident)
	return nil
}

func (s *Store) GetCounter(_ context.Context) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counterYear, s.counterSeq, nil
}

func (s *Store) SetCounter(_ context.Context, year, seq int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counterYear, s.counterSeq = year, seq
	return nil
}

func (s *Store) AppendAudit(_ context.Context, e *model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *e)
	return nil
}

func (s *Store) ListAuditSince(_ context.Context, since time.Time) ([]model.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AuditEntry
	for _, e := range s.audit {
		if !e.TS.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) ListUnitAuditSince(_ context.Context, unitID string, since time.Time) ([]model.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AuditEntry
	for _, e := range s.audit {
		if strings.EqualFold(e.UnitID, unitID) && !e.TS.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) LastUnitAudit(_ context.Context, unitID string) (*model.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.audit) - 1; i >= 0; i-- {
		if strings.EqualFold(s.audit[i].UnitID, unitID) {
			cp := s.audit[i]
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (s *Store) DeleteAuditBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.audit[:0]
	n := 0
	for _, e := range s.audit {
		if e.TS.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.audit = kept
	return n, nil
}

func (s *Store) DeleteAllAudit(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = nil
	return nil
}

func (s *Store) AppendIncidentAudit(_ context.Context, e *model.IncidentAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidentAudit = append(s.incidentAudit, *e)
	return nil
}

func (s *Store) ListIncidentAudit(_ context.Context, incidentID string, limit int) ([]model.IncidentAuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.IncidentAuditEntry
	for i := len(s.incidentAudit) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if strings.EqualFold(s.incidentAudit[i].IncidentID, incidentID) {
			out = append(out, s.incidentAudit[i])
		}
	}
	return out, nil
}

func (s *Store) ListAllIncidentAudit(_ context.Context) ([]model.IncidentAuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.IncidentAuditEntry(nil), s.incidentAudit...), nil
}

func (s *Store) DeleteIncidentAuditBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.incidentAudit[:0]
	n := 0
	for _, e := range s.incidentAudit {
		if e.TS.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.incidentAudit = kept
	return n, nil
}

func (s *Store) DeleteAllIncidentAudit(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidentAudit = nil
	return nil
}

func (s *Store) NextMessageSeq(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgSeq++
	return s.msgSeq, nil
}

func (s *Store) PutMessage(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.MessageID] = *m
	return nil
}

func (s *Store) GetMessage(_ context.Context, messageID string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := m
	return &cp, nil
}

func (s *Store) ListMessagesTo(_ context.Context, to string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	for _, m := range s.messages {
		if strings.EqualFold(m.ToRole, to) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TS.After(out[j].TS) })
	return out, nil
}

func (s *Store) DeleteMessage(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, messageID)
	return nil
}

func (s *Store) DeleteMessagesTo(_ context.Context, to string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, m := range s.messages {
		if strings.EqualFold(m.ToRole, to) {
			delete(s.messages, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteMessagesBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, m := range s.messages {
		if m.TS.Before(cutoff) {
			delete(s.messages, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteAllMessages(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make(map[string]model.Message)
	return nil
}

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Username)
	if _, ok := s.users[key]; ok {
		return errs.ErrAlreadyExists
	}
	s.users[key] = *u
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(username)]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := u
	return &cp, nil
}

func (s *Store) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, hash, salt []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(username)
	u, ok := s.users[key]
	if !ok {
		return errs.ErrNotFound
	}
	u.PwdHash = append([]byte(nil), hash...)
	u.Salt = append([]byte(nil), salt...)
	s.users[key] = u
	return nil
}

func (s *Store) DeleteUser(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(username)
	if _, ok := s.users[key]; !ok {
		return errs.ErrNotFound
	}
	delete(s.users, key)
	return nil
}

func (s *Store) PutSession(_ context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := sess
	return &cp, nil
}

func (s *Store) TouchSession(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return errs.ErrNotFound
	}
	sess.LastActivity = at
	s.sessions[id] = sess
	return nil
}

func (s *Store) ListSessionsActiveSince(_ context.Context, since time.Time) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Session
	for _, sess := range s.sessions {
		if !sess.LastActivity.Before(since) {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoginTime.Before(out[j].LoginTime) })
	return out, nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *Store) DeleteSessionsIdleBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteAllSessions(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]model.Session)
	return nil
}

func (s *Store) ListDestinations(_ context.Context) ([]model.Destination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Destination(nil), s.destinations...), nil
}

func (s *Store) ListAddresses(_ context.Context) ([]model.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Address(nil), s.addresses...), nil
}

func (s *Store) GetBanner(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banners[key], nil
}

func (s *Store) SetBanner(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.banners, key)
		return nil
	}
	s.banners[key] = value
	return nil
}
