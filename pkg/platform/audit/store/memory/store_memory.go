// Package memory is the in-memory audit store used by tests and
// single-process deployments.
package memory

import (
	"context"
	"sync"

	id "rollcall/pkg/domain"
	audit "rollcall/pkg/platform/audit"
)

// InMemoryStore keeps events per employee, in append order.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.EmployeeID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.EmployeeID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.EmployeeID] = append(s.events[event.EmployeeID], event)
	return nil
}

// ListByEmployee returns the employee's events in append order.
func (s *InMemoryStore) ListByEmployee(_ context.Context, employeeID id.EmployeeID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event(nil), s.events[employeeID]...), nil
}
