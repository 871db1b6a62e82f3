package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"rollcall/internal/attendance/models"
	"rollcall/internal/geofence"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// InMemoryStore implements Ledger with a mutex-guarded map. The open-session
// index doubles as the atomic check-and-set: Open holds the write lock across
// the existence check and insert, so two concurrent check-ins for one
// employee serialize and the loser sees the conflict. For production use the
// Postgres store, which enforces the same invariant with a partial unique
// index.
type InMemoryStore struct {
	mu       sync.RWMutex
	open     map[id.EmployeeID]*models.Session
	sessions map[id.EmployeeID][]*models.Session
}

// NewInMemoryStore creates an empty in-memory ledger.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		open:     make(map[id.EmployeeID]*models.Session),
		sessions: make(map[id.EmployeeID][]*models.Session),
	}
}

func (s *InMemoryStore) Open(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.open[session.EmployeeID]; exists {
		return sentinel.ErrConflict
	}

	stored := session.Clone()
	s.open[session.EmployeeID] = stored
	s.sessions[session.EmployeeID] = append(s.sessions[session.EmployeeID], stored)
	return nil
}

func (s *InMemoryStore) Close(_ context.Context, employeeID id.EmployeeID, at time.Time, loc geofence.Coordinate) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.open[employeeID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}

	session.Close(at, loc)
	delete(s.open, employeeID)
	return session.Clone(), nil
}

func (s *InMemoryStore) ForceClose(_ context.Context, employeeID id.EmployeeID, at time.Time, loc *geofence.Coordinate, reason string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.open[employeeID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}

	closeLoc := session.CheckInLocation
	if loc != nil {
		closeLoc = *loc
	}
	session.Close(at, closeLoc)
	session.ForceCloseReason = reason
	delete(s.open, employeeID)
	return session.Clone(), nil
}

func (s *InMemoryStore) Active(_ context.Context, employeeID id.EmployeeID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if session, exists := s.open[employeeID]; exists {
		return session.Clone(), nil
	}
	return nil, nil
}

func (s *InMemoryStore) AllActive(_ context.Context) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Session, 0, len(s.open))
	for _, session := range s.open {
		out = append(out, session.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CheckInAt.After(out[j].CheckInAt)
	})
	return out, nil
}

func (s *InMemoryStore) History(_ context.Context, employeeID id.EmployeeID, from, to time.Time) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Session
	for _, session := range s.sessions[employeeID] {
		if inRange(session.CheckInAt, from, to) {
			out = append(out, session.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CheckInAt.After(out[j].CheckInAt)
	})
	return out, nil
}
