package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"lisst-auth/internal/config"
	"lisst-auth/internal/util"
)

// Auth lifecycle event types.
const (
	TypeLogin          = "login"
	TypeLogout         = "logout"
	TypeOTPVerified    = "otp_verified"
	TypeProfileUpdated = "profile_updated"
	TypeAccountDeleted = "account_deleted"
)

// Event is one auth lifecycle audit record.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	PhoneNumber string    `json:"phone_number"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Producer writes auth lifecycle events to Kafka. A nil Producer is valid and
// drops everything, so the service runs unchanged when Kafka is not
// configured.
type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

func NewProducer(cfg *config.Config, logger *zap.Logger) (*Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("no Kafka brokers configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("failed to write auth events",
					zap.Error(err),
					zap.Int("event_count", len(messages)),
				)
			}
		},
	}

	util.Info("Auth event producer initialized",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
	)

	return &Producer{
		writer: writer,
		topic:  cfg.Kafka.Topic,
		logger: logger,
	}, nil
}

// Emit publishes one lifecycle event. Failures are logged, never surfaced:
// auditing must not break an auth flow.
func (p *Producer) Emit(ctx context.Context, eventType, phoneNumber string) {
	if p == nil {
		return
	}

	event := Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		PhoneNumber: phoneNumber,
		OccurredAt:  time.Now().UTC(),
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal auth event", zap.Error(err))
		return
	}

	msg := kafka.Message{
		Key:   []byte(phoneNumber),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to produce auth event",
			zap.String("type", eventType),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("Auth event produced",
		zap.String("type", eventType),
		zap.String("event_id", event.ID),
	)
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		util.Get().Error("failed to close auth event producer", zap.Error(err))
		return err
	}
	util.Info("Auth event producer closed")
	return nil
}
