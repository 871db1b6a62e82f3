package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/attendance/models"
	"rollcall/internal/geofence"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

var office = geofence.Coordinate{Lat: 40.7128, Lng: -74.0060}

func openSession(t *testing.T, store *InMemoryStore, employeeID id.EmployeeID, at time.Time) *models.Session {
	t.Helper()
	session := models.NewSession(employeeID, at, office)
	require.NoError(t, store.Open(context.Background(), session))
	return session
}

func TestOpen_RejectsSecondOpenSession(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	employeeID := id.NewEmployeeID()

	openSession(t, store, employeeID, time.Now())

	err := store.Open(ctx, models.NewSession(employeeID, time.Now(), office))
	require.ErrorIs(t, err, sentinel.ErrConflict)

	t.Run("other employees are unaffected", func(t *testing.T) {
		err := store.Open(ctx, models.NewSession(id.NewEmployeeID(), time.Now(), office))
		require.NoError(t, err)
	})
}

func TestOpen_ConcurrentAttempts_ExactlyOneWins(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	employeeID := id.NewEmployeeID()

	const goroutines = 50
	var wg sync.WaitGroup
	var succeeded, conflicted atomic.Int32

	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			err := store.Open(ctx, models.NewSession(employeeID, time.Now(), office))
			switch {
			case err == nil:
				succeeded.Add(1)
			case err == sentinel.ErrConflict:
				conflicted.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load(), "exactly one concurrent check-in must win")
	assert.Equal(t, int32(goroutines-1), conflicted.Load())

	active, err := store.Active(ctx, employeeID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.True(t, active.IsOpen())
}

func TestClose(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	employeeID := id.NewEmployeeID()
	openAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	t.Run("no open session", func(t *testing.T) {
		_, err := store.Close(ctx, employeeID, openAt, office)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	openSession(t, store, employeeID, openAt)

	closed, err := store.Close(ctx, employeeID, openAt.Add(8*time.Hour), office)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.Status)
	require.NotNil(t, closed.WorkingHours)
	assert.Equal(t, 8.0, *closed.WorkingHours)

	t.Run("closing again fails", func(t *testing.T) {
		_, err := store.Close(ctx, employeeID, openAt.Add(9*time.Hour), office)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("a new session can open after close", func(t *testing.T) {
		err := store.Open(ctx, models.NewSession(employeeID, openAt.Add(24*time.Hour), office))
		require.NoError(t, err)
	})
}

func TestForceClose(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	employeeID := id.NewEmployeeID()
	openAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	openSession(t, store, employeeID, openAt)

	t.Run("nil location falls back to the check-in location", func(t *testing.T) {
		closed, err := store.ForceClose(ctx, employeeID, openAt.Add(10*time.Hour), nil, "forgot to check out")
		require.NoError(t, err)
		require.NotNil(t, closed.CheckOutLocation)
		assert.Equal(t, office, *closed.CheckOutLocation)
		assert.Equal(t, "forgot to check out", closed.ForceCloseReason)
		assert.Equal(t, models.StatusClosed, closed.Status)
	})

	t.Run("explicit location is recorded", func(t *testing.T) {
		other := id.NewEmployeeID()
		openSession(t, store, other, openAt)

		elsewhere := geofence.Coordinate{Lat: 40.7130, Lng: -74.0050}
		closed, err := store.ForceClose(ctx, other, openAt.Add(time.Hour), &elsewhere, "shift ended")
		require.NoError(t, err)
		assert.Equal(t, elsewhere, *closed.CheckOutLocation)
	})

	t.Run("no open session", func(t *testing.T) {
		_, err := store.ForceClose(ctx, id.NewEmployeeID(), openAt, nil, "x")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestActive_ReturnsCopy(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	employeeID := id.NewEmployeeID()
	openSession(t, store, employeeID, time.Now())

	first, err := store.Active(ctx, employeeID)
	require.NoError(t, err)
	first.Status = models.StatusClosed

	second, err := store.Active(ctx, employeeID)
	require.NoError(t, err)
	assert.True(t, second.IsOpen(), "mutating a returned session must not touch store state")
}

func TestActive_NilWhenNone(t *testing.T) {
	store := NewInMemoryStore()
	active, err := store.Active(context.Background(), id.NewEmployeeID())
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestAllActive(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	for i := range 3 {
		openSession(t, store, id.NewEmployeeID(), base.Add(time.Duration(i)*time.Hour))
	}

	active, err := store.AllActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.True(t, active[0].CheckInAt.After(active[1].CheckInAt))
	assert.True(t, active[1].CheckInAt.After(active[2].CheckInAt))
}

func TestHistory(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	employeeID := id.NewEmployeeID()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	// Three day-long sessions on consecutive days.
	for day := range 3 {
		openAt := base.AddDate(0, 0, day)
		openSession(t, store, employeeID, openAt)
		_, err := store.Close(ctx, employeeID, openAt.Add(8*time.Hour), office)
		require.NoError(t, err)
	}

	t.Run("unbounded range returns all, most recent first", func(t *testing.T) {
		history, err := store.History(ctx, employeeID, time.Time{}, time.Time{})
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.True(t, history[0].CheckInAt.After(history[1].CheckInAt))
		assert.True(t, history[1].CheckInAt.After(history[2].CheckInAt))
	})

	t.Run("range filters by check-in time", func(t *testing.T) {
		history, err := store.History(ctx, employeeID, base.AddDate(0, 0, 1), base.AddDate(0, 0, 1).Add(12*time.Hour))
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, base.AddDate(0, 0, 1), history[0].CheckInAt)
	})

	t.Run("unknown employee has empty history", func(t *testing.T) {
		history, err := store.History(ctx, id.NewEmployeeID(), time.Time{}, time.Time{})
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}
