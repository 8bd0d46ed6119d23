package repository

import (
	"context"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/domain/repository"
)

type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaPublisher implements EventPublisher for Kafka. Messages are keyed by dataset.
type KafkaPublisher struct {
	producer producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(p producer, topic string) repository.EventPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

type signalEvent struct {
	Type         string            `json:"type"`
	ID           string            `json:"id"`
	Table        models.Dataset    `json:"table"`
	Timestamp    time.Time         `json:"timestamp"`
	Decision     models.Decision   `json:"decision"`
	Label        string            `json:"label"`
	Price        float64           `json:"price"`
	Strength     float64           `json:"strength"`
	MLConfidence float64           `json:"mlConfidence"`
	Message      string            `json:"message,omitempty"`
	Trend        models.Trend      `json:"trend"`
	Indicators   models.Indicators `json:"indicators"`
}

func (p *KafkaPublisher) PublishSignal(ctx context.Context, s models.Signal) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Dataset), signalEvent{
		Type:         "signal.new",
		ID:           s.ID,
		Table:        s.Dataset,
		Timestamp:    s.Timestamp,
		Decision:     s.Decision,
		Label:        s.Label,
		Price:        s.Price,
		Strength:     s.Strength,
		MLConfidence: s.MLConfidence,
		Message:      s.Message,
		Trend:        s.Trend,
		Indicators:   s.Indicators,
	})
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
