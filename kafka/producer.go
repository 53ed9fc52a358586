package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Allocation lifecycle event types.
const (
	EventRequestAssigned  = "request.assigned"
	EventRequestCompleted = "request.completed"
	EventRequestRejected  = "request.rejected"
	EventAgencyLocked     = "agency.locked"
	EventAgencyUnlocked   = "agency.unlocked"
)

// Event is one allocation lifecycle notification.
type Event struct {
	Type      string    `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	AgencyID  string    `json:"agency_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ProducerAPI is the publishing surface used by services; events are
// best-effort and never fail the operation that emitted them.
type ProducerAPI interface {
	PublishEvent(ctx context.Context, evt Event) error
	Close() error
}

type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	logger.Info("kafka producer initialized",
		zap.String("topic", topic),
		zap.Strings("brokers", brokers),
	)
	return &Producer{writer: w, topic: topic, logger: logger}
}

// PublishEvent writes one event keyed by agency so that per-agency
// ordering is preserved on the topic.
func (p *Producer) PublishEvent(ctx context.Context, evt Event) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(evt.AgencyID),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("type", evt.Type),
			zap.String("request_id", evt.RequestID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (p *Producer) Close() error {
	p.logger.Info("closing kafka producer", zap.String("topic", p.topic))
	return p.writer.Close()
}
