// Package events publishes executed trades to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"papertrade-go/internal/config"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TradeEvent is emitted once per committed trade.
type TradeEvent struct {
	EventID       string          `json:"event_id"`
	TransactionID uint            `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"type"`
	Quantity      int64           `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Total         decimal.Decimal `json:"total"`
	CashBalance   decimal.Decimal `json:"cash_balance"`
	ExecutedAt    time.Time       `json:"executed_at"`
}

// Publisher delivers trade events. Delivery is best effort.
type Publisher interface {
	PublishTrade(ctx context.Context, ev TradeEvent) error
	Close() error
}

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	_ Publisher     = (*KafkaPublisher)(nil)
	_ Publisher     = NopPublisher{}
	_ MessageWriter = (*kafka.Writer)(nil)
)

type KafkaPublisher struct {
	writer MessageWriter
	logger *zap.Logger
}

func NewKafkaPublisher(writer MessageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, logger: logger.Named("events")}
}

// PublishTrade writes the event keyed by user so one user's trades stay ordered
// within a partition.
func (p *KafkaPublisher) PublishTrade(ctx context.Context, ev TradeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode trade event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.UserID),
		Value: payload,
		Time:  ev.ExecutedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish trade %d: %w", ev.TransactionID, err)
	}
	p.logger.Debug("Trade event published", zap.Uint("transaction_id", ev.TransactionID), zap.String("user_id", ev.UserID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishTrade(context.Context, TradeEvent) error { return nil }
func (NopPublisher) Close() error                                   { return nil }

// NewPublisher returns a Kafka-backed publisher when events are enabled.
func NewPublisher(cfg config.Events, logger *zap.Logger) Publisher {
	if !cfg.Enabled {
		return NopPublisher{}
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	logger.Info("Trade events enabled", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return NewKafkaPublisher(writer, logger)
}
