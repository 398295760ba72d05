package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Event types published by the variation engine
const (
	TypeVariationsGenerated = "variation.generation_completed"
	TypeSignatureFallback   = "variation.signature_fallback"
	TypeResultScored        = "result.scored"
	TypeExamPublished       = "exam.published"
)

// Event is the envelope for every message on the bus
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent builds an envelope with generated ID and current timestamp
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    "variation-engine",
		Version:   "1.0",
		Timestamp: time.Now(),
		Data:      data,
	}
}

// EventPublisher publishes domain events to the message bus
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// ===== EVENT PAYLOADS =====

// VariationsGeneratedEvent is emitted after a full exam generation commits
type VariationsGeneratedEvent struct {
	ExamID         uint   `json:"exam_id"`
	VariationCount int    `json:"variation_count"`
	QuestionCount  int    `json:"question_count"`
	DurationMS     int64  `json:"duration_ms"`
	TriggeredBy    string `json:"triggered_by"`
}

// SignatureFallbackEvent records a variation that kept a duplicate
// question combination because the pool was too tight to avoid it.
type SignatureFallbackEvent struct {
	ExamID          uint `json:"exam_id"`
	VariationNumber int  `json:"variation_number"`
	PoolSize        int  `json:"pool_size"`
	Attempts        int  `json:"attempts"`
}

// ResultScoredEvent is emitted after a submission is scored
type ResultScoredEvent struct {
	ResultID    uint    `json:"result_id"`
	ExamID      uint    `json:"exam_id"`
	VariationID uint    `json:"variation_id"`
	StudentID   string  `json:"student_id"`
	Score       float64 `json:"score"`
	Passed      bool    `json:"passed"`
}

// ExamPublishedEvent is emitted on exam lifecycle transition to published
type ExamPublishedEvent struct {
	ExamID      uint   `json:"exam_id"`
	PublishedBy string `json:"published_by"`
}

// ===== KAFKA PUBLISHER =====

// KafkaEventPublisher publishes events to Kafka via watermill
type KafkaEventPublisher struct {
	publisher message.Publisher
	topic     string
	logger    *slog.Logger
}

// NewKafkaEventPublisher creates a watermill Kafka publisher
func NewKafkaEventPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaEventPublisher, error) {
	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:   brokers,
			Marshaler: kafka.DefaultMarshaler{},
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	return &KafkaEventPublisher{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}, nil
}

// Publish serializes the event and sends it to the configured topic
func (p *KafkaEventPublisher) Publish(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.Type, err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", event.Type)
	msg.Metadata.Set("source", event.Source)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Type, err)
	}

	p.logger.DebugContext(ctx, "Event published",
		"event_id", event.ID,
		"event_type", event.Type,
		"topic", p.topic)

	return nil
}

// Close closes the underlying publisher
func (p *KafkaEventPublisher) Close() error {
	return p.publisher.Close()
}

// ===== MOCK PUBLISHER =====

// MockEventPublisher collects events in memory for tests
type MockEventPublisher struct {
	mu     sync.Mutex
	events []*Event
	logger *slog.Logger
}

// NewMockEventPublisher creates an in-memory publisher for tests
func NewMockEventPublisher(logger *slog.Logger) *MockEventPublisher {
	return &MockEventPublisher{
		logger: logger,
	}
}

// Publish records the event in memory
func (m *MockEventPublisher) Publish(ctx context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, event)
	m.logger.DebugContext(ctx, "Mock event recorded",
		"event_id", event.ID,
		"event_type", event.Type)

	return nil
}

// GetPublishedEvents returns a snapshot of the recorded events
func (m *MockEventPublisher) GetPublishedEvents() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make([]*Event, len(m.events))
	copy(snapshot, m.events)
	return snapshot
}

// ClearEvents drops all recorded events
func (m *MockEventPublisher) ClearEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = nil
}

// Close is a no-op for the mock
func (m *MockEventPublisher) Close() error {
	return nil
}
