// Package kafka ships audit events to a Kafka topic, keyed by employee so
// one employee's trail stays ordered within a partition.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/circuit"
)

const DefaultTopic = "attendance.audit"

// record is the wire form of an audit event.
type record struct {
	Timestamp  time.Time `json:"timestamp"`
	EmployeeID string    `json:"employee_id"`
	SessionID  string    `json:"session_id,omitempty"`
	Action     string    `json:"action"`
	Reason     string    `json:"reason,omitempty"`
	DistanceKm float64   `json:"distance_km,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	DeviceName string    `json:"device_name,omitempty"`
}

type Store struct {
	client  *kgo.Client
	topic   string
	logger  *slog.Logger
	breaker *circuit.Breaker
}

type Option func(*Store)

func WithTopic(topic string) Option {
	return func(s *Store) {
		s.topic = topic
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore connects to the given brokers and ensures the audit topic exists.
func NewStore(ctx context.Context, brokers []string, opts ...Option) (*Store, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka audit store requires at least one broker")
	}
	s := &Store{
		topic:   DefaultTopic,
		logger:  slog.Default(),
		breaker: circuit.New("kafka-audit"),
	}
	for _, opt := range opts {
		opt(s)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(s.topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	s.client = client

	if err := s.ensureTopic(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureTopic(ctx context.Context) error {
	adm := kadm.NewClient(s.client)
	resp, err := adm.CreateTopics(ctx, 3, 1, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", s.topic, err)
	}
	for _, res := range resp {
		// Already-exists is fine; the topic survives restarts.
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			s.logger.Warn("audit topic create", "topic", res.Topic, "error", res.Err)
		}
	}
	return nil
}

// Append produces one event and waits for the broker ack. When the brokers
// keep failing the breaker opens and events are dropped until a probe after
// the cooldown succeeds; the audit trail is best-effort, the gate is not.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if s.breaker.IsOpen() {
		s.logger.DebugContext(ctx, "audit event dropped, circuit open",
			"action", event.Action,
			"employee_id", event.EmployeeID,
		)
		return nil
	}

	var sessionID string
	if !event.SessionID.IsNil() {
		sessionID = event.SessionID.String()
	}
	payload, err := json.Marshal(record{
		Timestamp:  event.Timestamp,
		EmployeeID: event.EmployeeID.String(),
		SessionID:  sessionID,
		Action:     string(event.Action),
		Reason:     event.Reason,
		DistanceKm: event.DistanceKm,
		RequestID:  event.RequestID,
		ActorID:    event.ActorID,
		DeviceName: event.DeviceName,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	rec := &kgo.Record{
		Key:   []byte(event.EmployeeID.String()),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.ErrorContext(ctx, "audit brokers unavailable, circuit opened", "error", err)
		}
		return fmt.Errorf("produce audit event: %w", err)
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "audit brokers recovered, circuit closed")
	}
	return nil
}

func (s *Store) Close() {
	s.client.Close()
}
