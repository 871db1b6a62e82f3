package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"rollcall/internal/attendance/models"
	"rollcall/internal/geofence"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// RedisStore implements Ledger on Redis. The active-session key per employee
// is claimed with SET NX, which is the atomic check-and-set: of N concurrent
// check-ins, Redis accepts exactly one. Closed sessions are kept in a
// per-employee list, most recent first.
type RedisStore struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed ledger.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func activeKey(employeeID id.EmployeeID) string {
	return "attendance:active:" + employeeID.String()
}

func historyKey(employeeID id.EmployeeID) string {
	return "attendance:history:" + employeeID.String()
}

func (s *RedisStore) Open(ctx context.Context, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, activeKey(session.EmployeeID), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("claim active session: %w", err)
	}
	if !ok {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *RedisStore) Close(ctx context.Context, employeeID id.EmployeeID, at time.Time, loc geofence.Coordinate) (*models.Session, error) {
	return s.close(ctx, employeeID, func(session *models.Session) {
		session.Close(at, loc)
	})
}

func (s *RedisStore) ForceClose(ctx context.Context, employeeID id.EmployeeID, at time.Time, loc *geofence.Coordinate, reason string) (*models.Session, error) {
	return s.close(ctx, employeeID, func(session *models.Session) {
		closeLoc := session.CheckInLocation
		if loc != nil {
			closeLoc = *loc
		}
		session.Close(at, closeLoc)
		session.ForceCloseReason = reason
	})
}

// close loads the active session under WATCH, applies the mutation, and moves
// it to the history list in one transaction. A concurrent writer invalidates
// the WATCH and the whole attempt reports a conflict rather than racing.
func (s *RedisStore) close(ctx context.Context, employeeID id.EmployeeID, mutate func(*models.Session)) (*models.Session, error) {
	key := activeKey(employeeID)
	var closed *models.Session

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load active session: %w", err)
		}

		var session models.Session
		if err := json.Unmarshal([]byte(payload), &session); err != nil {
			return fmt.Errorf("unmarshal active session: %w", err)
		}
		mutate(&session)

		out, err := json.Marshal(&session)
		if err != nil {
			return fmt.Errorf("marshal closed session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.LPush(ctx, historyKey(employeeID), out)
			return nil
		})
		if err != nil {
			return err
		}
		closed = &session
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, sentinel.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func (s *RedisStore) Active(ctx context.Context, employeeID id.EmployeeID) (*models.Session, error) {
	payload, err := s.client.Get(ctx, activeKey(employeeID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return nil, fmt.Errorf("unmarshal active session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) AllActive(ctx context.Context) ([]*models.Session, error) {
	var out []*models.Session
	iter := s.client.Scan(ctx, 0, "attendance:active:*", 100).Iterator()
	for iter.Next(ctx) {
		payload, err := s.client.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue // closed between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("load active session: %w", err)
		}
		var session models.Session
		if err := json.Unmarshal([]byte(payload), &session); err != nil {
			return nil, fmt.Errorf("unmarshal active session: %w", err)
		}
		out = append(out, &session)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan active sessions: %w", err)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CheckInAt.After(out[j].CheckInAt)
	})
	return out, nil
}

func (s *RedisStore) History(ctx context.Context, employeeID id.EmployeeID, from, to time.Time) ([]*models.Session, error) {
	payloads, err := s.client.LRange(ctx, historyKey(employeeID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}

	var out []*models.Session
	for _, payload := range payloads {
		var session models.Session
		if err := json.Unmarshal([]byte(payload), &session); err != nil {
			return nil, fmt.Errorf("unmarshal session: %w", err)
		}
		if inRange(session.CheckInAt, from, to) {
			out = append(out, &session)
		}
	}

	// Include the still-open session the way the SQL stores do.
	if active, err := s.Active(ctx, employeeID); err != nil {
		return nil, err
	} else if active != nil && inRange(active.CheckInAt, from, to) {
		out = append(out, active)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CheckInAt.After(out[j].CheckInAt)
	})
	return out, nil
}
