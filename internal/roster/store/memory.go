package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"rollcall/internal/biometric"
	"rollcall/internal/roster/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// InMemoryStore implements Store with a mutex-guarded map. Used by unit tests
// and single-process deployments.
type InMemoryStore struct {
	mu        sync.RWMutex
	employees map[id.EmployeeID]*models.Employee
	byEmail   map[string]id.EmployeeID
}

// NewInMemoryStore creates an empty in-memory roster.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		employees: make(map[id.EmployeeID]*models.Employee),
		byEmail:   make(map[string]id.EmployeeID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, employee *models.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(employee.Email)
	if _, exists := s.byEmail[email]; exists {
		return sentinel.ErrConflict
	}

	stored := employee.Clone()
	s.employees[employee.ID] = stored
	s.byEmail[email] = employee.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, employeeID id.EmployeeID) (*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employee, exists := s.employees[employeeID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return employee.Clone(), nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employeeID, exists := s.byEmail[normalizeEmail(email)]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return s.employees[employeeID].Clone(), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Employee, 0, len(s.employees))
	for _, employee := range s.employees {
		out = append(out, employee.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FullName < out[j].FullName
	})
	return out, nil
}

func (s *InMemoryStore) SetActive(_ context.Context, employeeID id.EmployeeID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	employee, exists := s.employees[employeeID]
	if !exists {
		return sentinel.ErrNotFound
	}
	employee.Active = active
	employee.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) SaveEncoding(_ context.Context, employeeID id.EmployeeID, enc biometric.Encoding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	employee, exists := s.employees[employeeID]
	if !exists {
		return sentinel.ErrNotFound
	}
	employee.Encoding = biometric.Encoding{
		Version: enc.Version,
		Values:  append([]float64(nil), enc.Values...),
	}
	employee.UpdatedAt = time.Now()
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
